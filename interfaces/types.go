package interfaces

import "encoding/json"

// Posture is a named, reusable security/access policy bundle. Specs reference
// postures by name; the resolver fetches the full posture during foreign-key
// expansion. Name is set from the file name at load time, not authored.
type Posture struct {
	Name                string     `yaml:"-" json:"-"`
	Auth                AuthPolicy `yaml:"auth" json:"auth"`
	SSH                 SSHPolicy  `yaml:"ssh" json:"ssh"`
	Sudo                SudoPolicy `yaml:"sudo" json:"sudo"`
	IntrusionPrevention bool       `yaml:"intrusion_prevention" json:"intrusion_prevention"`
	Packages            []string   `yaml:"packages" json:"packages"`
}

// AuthPolicy selects how nodes running under this posture authenticate to the
// provisioning server: "token" (signed provisioning token) or "network"
// (trusted-network mode, no per-request credential).
type AuthPolicy struct {
	Method string `yaml:"method" json:"method"`
}

// SSHPolicy carries the SSH hardening settings applied on the node.
type SSHPolicy struct {
	PermitRootLogin bool `yaml:"permit_root_login" json:"permit_root_login"`
	PasswordAuth    bool `yaml:"password_auth" json:"password_auth"`
	Port            int  `yaml:"port,omitempty" json:"port,omitempty"`
}

// SudoPolicy carries the node's sudo configuration.
type SudoPolicy struct {
	Passwordless bool     `yaml:"passwordless" json:"passwordless"`
	Groups       []string `yaml:"groups,omitempty" json:"groups,omitempty"`
}

// IdentitySection names the node a spec document describes.
type IdentitySection struct {
	Hostname string `yaml:"hostname,omitempty" json:"hostname"`
	Domain   string `yaml:"domain,omitempty" json:"domain"`
}

// RawUser is a user entry as authored: SSHKeys holds key IDs, and a nil list
// means "grant every known key" rather than "no keys".
type RawUser struct {
	Name    string   `yaml:"name"`
	SSHKeys []string `yaml:"ssh_keys"`
}

// AccessSection is the as-authored access block of a spec. Posture is a
// foreign key into the posture store; empty means the default posture.
type AccessSection struct {
	Posture string    `yaml:"posture,omitempty"`
	Users   []RawUser `yaml:"users,omitempty"`
}

// RawSpec is a configuration document exactly as authored, prior to
// foreign-key expansion. Fields outside the known sections are preserved in
// Extra and carried through resolution untouched.
type RawSpec struct {
	Identity IdentitySection `yaml:"identity"`
	Config   map[string]any  `yaml:"config"`
	Access   AccessSection   `yaml:"access"`
	Extra    map[string]any  `yaml:",inline"`
}

// ResolvedUser is a user entry after key expansion: SSHKeys holds the actual
// public key strings, never IDs.
type ResolvedUser struct {
	Name    string   `json:"name"`
	SSHKeys []string `json:"ssh_keys"`
}

// ResolvedAccess is the externally visible access block of a resolved spec.
// It carries the posture name only; the full posture lives on
// ResolvedSpecInternal and never reaches the wire.
type ResolvedAccess struct {
	Posture string         `json:"posture"`
	Users   []ResolvedUser `json:"users"`
}

// ResolvedSpec is the fully expanded, externally servable document for one
// identity. It is derived, never persisted.
type ResolvedSpec struct {
	Identity IdentitySection `json:"identity"`
	Config   map[string]any  `json:"config"`
	Access   ResolvedAccess  `json:"access"`
	Extra    map[string]any  `json:"-"`
}

// MarshalJSON flattens Extra back into the top level so passthrough fields
// appear exactly where they were authored. The known sections win on key
// collision.
func (s ResolvedSpec) MarshalJSON() ([]byte, error) {
	doc := make(map[string]any, len(s.Extra)+3)
	for k, v := range s.Extra {
		doc[k] = v
	}
	doc["identity"] = s.Identity
	doc["config"] = s.Config
	doc["access"] = s.Access
	return json.Marshal(doc)
}

// ResolvedSpecInternal pairs the servable document with the full posture the
// resolver fetched during expansion. Keeping the posture here lets an
// authorization layer consult auth.method without a second store lookup. The
// type is distinct from ResolvedSpec so the posture cannot be serialized by
// accident: external responses go through Document().
type ResolvedSpecInternal struct {
	ResolvedSpec

	// Posture is the fully expanded posture referenced by Access.Posture.
	Posture *Posture
}

// Document projects the internal result onto the externally servable
// document, dropping the posture.
func (s *ResolvedSpecInternal) Document() ResolvedSpec {
	return s.ResolvedSpec
}
