package token

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"strings"
	"time"

	"github.com/fleetyard/provisioning-server/interfaces"
)

// SupportedVersion is the only token version this server accepts.
const SupportedVersion = 1

// Claims is the decoded payload of a provisioning token. Node is the identity
// the token is bound to; Spec is the document the bearer is authorized to
// fetch. The two may differ: one token can provision node "edge-03" with spec
// "edge". IssuedAt is informational only; no expiry is enforced.
type Claims struct {
	Version  int
	Node     string
	Spec     string
	IssuedAt int64

	// Extra holds caller-defined claims beyond the required set, preserved
	// byte-for-byte for display but never interpreted.
	Extra map[string]json.RawMessage
}

// MarshalJSON emits the wire payload: required short-form keys plus any extra
// claims at the top level. Required keys win on collision.
func (c Claims) MarshalJSON() ([]byte, error) {
	doc := make(map[string]any, len(c.Extra)+4)
	for k, v := range c.Extra {
		doc[k] = v
	}
	doc["v"] = c.Version
	doc["n"] = c.Node
	doc["s"] = c.Spec
	doc["iat"] = c.IssuedAt
	return json.Marshal(doc)
}

// UnmarshalJSON parses the wire payload, splitting required keys from extras.
func (c *Claims) UnmarshalJSON(data []byte) error {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}

	parse := func(key string, out any) error {
		raw, ok := doc[key]
		if !ok {
			return nil
		}
		if err := json.Unmarshal(raw, out); err != nil {
			return err
		}
		delete(doc, key)
		return nil
	}

	if err := parse("v", &c.Version); err != nil {
		return err
	}
	if err := parse("n", &c.Node); err != nil {
		return err
	}
	if err := parse("s", &c.Spec); err != nil {
		return err
	}
	if err := parse("iat", &c.IssuedAt); err != nil {
		return err
	}
	if len(doc) > 0 {
		c.Extra = doc
	}
	return nil
}

// Mint signs claims into wire form: base64url(payload) "." base64url(sig),
// both unpadded, with an HMAC-SHA256 signature computed over the ASCII bytes
// of the encoded payload segment. Version defaults to SupportedVersion and
// IssuedAt to the current time when unset.
//
// Minting belongs to the control plane; it lives here so the verifier and
// issuer can never disagree on the encoding, and so tests and operator
// tooling can produce tokens.
func Mint(claims Claims, key []byte) (string, error) {
	if claims.Version == 0 {
		claims.Version = SupportedVersion
	}
	if claims.IssuedAt == 0 {
		claims.IssuedAt = time.Now().Unix()
	}

	payload, err := json.Marshal(claims)
	if err != nil {
		return "", err
	}

	payloadSeg := base64.RawURLEncoding.EncodeToString(payload)
	sig := computeMAC(key, payloadSeg)
	return payloadSeg + "." + base64.RawURLEncoding.EncodeToString(sig), nil
}

// Verify checks a token against the signing key and the identity the request
// was addressed to, returning trusted claims on success.
//
// Check order is fixed: structure, signature, payload decode, version,
// required claims, identity binding. Signature-segment decode failures and
// MAC mismatches surface identically so error types cannot be used as an
// oracle. The version is checked only after the MAC verifies, so a forged
// token cannot probe version handling.
func Verify(tok string, key []byte, urlIdentity string) (*Claims, error) {
	if len(key) == 0 {
		return nil, interfaces.NewInternal("no signing key configured", nil)
	}

	payloadSeg, sigSeg, err := splitToken(tok)
	if err != nil {
		return nil, err
	}

	sig, err := base64.RawURLEncoding.DecodeString(sigSeg)
	if err != nil {
		return nil, interfaces.NewInvalidSignature()
	}
	if !hmac.Equal(sig, computeMAC(key, payloadSeg)) {
		return nil, interfaces.NewInvalidSignature()
	}

	claims, err := decodePayload(payloadSeg)
	if err != nil {
		return nil, err
	}
	if claims.Version != SupportedVersion {
		return nil, interfaces.NewMalformedToken("unsupported token version")
	}
	if claims.Node == "" {
		return nil, interfaces.NewMalformedToken("missing required claim n")
	}
	if claims.Spec == "" {
		return nil, interfaces.NewMalformedToken("missing required claim s")
	}
	if claims.Node != urlIdentity {
		return nil, interfaces.NewInvalidSignature()
	}
	return claims, nil
}

// Decode parses a token's claims without checking the signature. Structure is
// still enforced with the same rule Verify applies, so the inspector never
// decodes a token the server would reject as malformed. The result is
// untrusted and suitable only for display.
func Decode(tok string) (*Claims, error) {
	payloadSeg, _, err := splitToken(tok)
	if err != nil {
		return nil, err
	}
	return decodePayload(payloadSeg)
}

// splitToken enforces the two-segment wire shape shared by Verify and Decode.
func splitToken(tok string) (payloadSeg, sigSeg string, err error) {
	payloadSeg, sigSeg, ok := strings.Cut(tok, ".")
	if !ok || strings.Contains(sigSeg, ".") {
		return "", "", interfaces.NewMalformedToken("expected exactly two segments")
	}
	return payloadSeg, sigSeg, nil
}

func decodePayload(payloadSeg string) (*Claims, error) {
	payload, err := base64.RawURLEncoding.DecodeString(payloadSeg)
	if err != nil {
		return nil, interfaces.NewMalformedToken("payload is not valid base64url")
	}
	claims := &Claims{}
	if err := json.Unmarshal(payload, claims); err != nil {
		return nil, interfaces.NewMalformedToken("payload is not valid JSON")
	}
	return claims, nil
}

// computeMAC returns the HMAC-SHA256 of the still-encoded payload segment.
func computeMAC(key []byte, payloadSeg string) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(payloadSeg))
	return mac.Sum(nil)
}
