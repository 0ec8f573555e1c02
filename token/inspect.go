package token

// Inspection is the operator-facing view of a token: its decoded (untrusted)
// claims plus, when a key was supplied, the outcome of the exact verification
// the server performs.
type Inspection struct {
	// Claims are the decoded payload fields. Untrusted until Valid is true.
	Claims *Claims

	// Verified reports whether a signature check was performed at all.
	Verified bool

	// Valid reports whether the signature check passed. Only meaningful when
	// Verified is true.
	Valid bool
}

// Inspect decodes a token for display. When key is non-empty, it additionally
// re-runs Verify against the token's own node claim, so the inspector and the
// server can never disagree about a token's validity.
func Inspect(tok string, key []byte) (*Inspection, error) {
	claims, err := Decode(tok)
	if err != nil {
		return nil, err
	}

	insp := &Inspection{Claims: claims}
	if len(key) > 0 {
		insp.Verified = true
		_, verr := Verify(tok, key, claims.Node)
		insp.Valid = verr == nil
	}
	return insp, nil
}
