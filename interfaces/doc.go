/*
Package interfaces defines the shared contracts and domain types of the
provisioning server: the configuration store and spec resolver interfaces,
the raw and resolved spec document types, postures, and the typed error
taxonomy every component reports failures through.

# Document types

A RawSpec is a configuration document exactly as authored on disk. A
ResolvedSpec is the same document after foreign-key expansion: site defaults
copied in, the posture reference validated, and user SSH key IDs replaced by
key material. ResolvedSpecInternal additionally carries the full posture for
in-process authorization decisions; it is a separate type precisely so the
posture can never be serialized into an external response.

# Errors

All failures carry a stable ErrorCode and a suggested HTTP status. Components
return *Error values (usually wrapped); the HTTP layer extracts them with
AsError and is the only place that maps codes to response statuses.
*/
package interfaces
