package interfaces

// ConfigStore provides read access to the on-disk configuration tree: site
// defaults, secrets, postures, and raw specs. Implementations must be safe
// for any number of concurrent readers; a reload replaces the whole snapshot
// atomically so readers never observe a partially updated tree.
type ConfigStore interface {
	// SiteDefaults returns the site-wide default attributes applied to specs
	// that omit them. The returned map must not be mutated.
	SiteDefaults() map[string]any

	// RawSpec returns the as-authored document for an identity, reading it
	// from disk on first access. Missing spec files yield CodeSpecNotFound.
	RawSpec(identity string) (*RawSpec, error)

	// SpecNames lists every known raw-spec identity, sorted ascending.
	SpecNames() ([]string, error)

	// GetPosture returns the posture with the given name, or a
	// CodePostureNotFound error.
	GetPosture(name string) (*Posture, error)

	// ResolveSSHKeys maps key IDs to public key strings, preserving order.
	// The first unknown ID fails the whole call with CodeSSHKeyNotFound.
	ResolveSSHKeys(ids []string) ([]string, error)

	// AllSSHKeys returns every known public key, ordered by key ID. A user
	// entry that omits ssh_keys is granted this full set.
	AllSSHKeys() []string

	// SigningKey returns the token signing key, or a CodeInternal error when
	// none is configured.
	SigningKey() ([]byte, error)

	// APIToken returns the static API token registered for a node, if any.
	APIToken(node string) (string, bool)

	// ClearCache drops lazily read raw specs. The eagerly parsed tree (site
	// defaults, secrets, postures) is unaffected; use Reload on the concrete
	// store to pick up changed top-level files.
	ClearCache()
}

// SpecResolver builds fully expanded spec documents. Resolution is cached per
// identity; failures are never cached, so a fixed configuration is picked up
// on the next call without an explicit reset.
type SpecResolver interface {
	// Resolve returns the expanded document for the identity, computing and
	// caching it on first request.
	Resolve(identity string) (*ResolvedSpecInternal, error)

	// Reset drops every cached resolution. Invoked on administrative reload.
	Reset()
}
