/*
Package token implements the provisioning token protocol.

A token is two unpadded base64url segments joined by a period:

	base64url(JSON payload) "." base64url(HMAC-SHA256 signature)

The signature is computed over the ASCII bytes of the encoded payload
segment, not the decoded JSON, keyed by the site signing key. The payload
requires v (version, must be 1), n (node identity) and s (spec name); iat and
any caller-defined extra claims are carried but not interpreted. There is no
expiry: a token stays valid until the signing key rotates.

Verification binds n to the URL path the token is presented on, while s may
name a different spec. That indirection is the point of the protocol: a token
authorizes one specific node path to fetch one specific document.

Mint, Verify and Inspect share one encoding and one comparison path, so the
server and the offline inspector cannot drift apart.
*/
package token
