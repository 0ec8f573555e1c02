// Package resolver expands raw spec documents into fully resolved ones:
// site defaults applied, the posture foreign key fetched, user SSH key IDs
// replaced with key material, and the result validated and cached.
package resolver

import (
	"fmt"
	"log/slog"
	"maps"
	"sync"

	"github.com/miekg/dns"

	"github.com/fleetyard/provisioning-server/interfaces"
	"github.com/fleetyard/provisioning-server/metrics"
)

// DefaultPosture is applied when a spec's access section omits the posture
// foreign key.
const DefaultPosture = "dev"

// identityDefaults names the site default attributes that land in the
// identity section rather than config.
var identityDefaults = map[string]bool{"domain": true}

// Resolver expands raw specs into fully resolved documents, caching results
// per identity. Failed resolutions are never cached, so a configuration fix
// takes effect on the next request without a reset.
type Resolver struct {
	store interfaces.ConfigStore
	log   *slog.Logger

	mu    sync.RWMutex
	cache map[string]*interfaces.ResolvedSpecInternal
}

var _ interfaces.SpecResolver = (*Resolver)(nil)

// New creates a resolver backed by the given store.
func New(store interfaces.ConfigStore, log *slog.Logger) *Resolver {
	return &Resolver{
		store: store,
		log:   log,
		cache: make(map[string]*interfaces.ResolvedSpecInternal),
	}
}

// Resolve returns the expanded document for identity.
//
// The pipeline runs in fixed order: raw spec load, site defaulting, hostname
// defaulting, posture expansion, user key expansion, validation. Each step
// feeds the next; any failure aborts the call and leaves the cache untouched.
func (r *Resolver) Resolve(identity string) (*interfaces.ResolvedSpecInternal, error) {
	r.mu.RLock()
	cached, ok := r.cache[identity]
	r.mu.RUnlock()
	if ok {
		metrics.ResolveCache.WithLabelValues("hit").Inc()
		return cached, nil
	}
	metrics.ResolveCache.WithLabelValues("miss").Inc()

	raw, err := r.store.RawSpec(identity)
	if err != nil {
		return nil, err
	}

	resolved := &interfaces.ResolvedSpecInternal{
		ResolvedSpec: interfaces.ResolvedSpec{
			Identity: raw.Identity,
			Config:   maps.Clone(raw.Config),
			Extra:    maps.Clone(raw.Extra),
		},
	}
	if resolved.Config == nil {
		resolved.Config = map[string]any{}
	}

	r.applySiteDefaults(resolved)

	if resolved.Identity.Hostname == "" {
		resolved.Identity.Hostname = identity
	}

	postureName := raw.Access.Posture
	if postureName == "" {
		postureName = DefaultPosture
	}
	posture, err := r.store.GetPosture(postureName)
	if err != nil {
		return nil, fmt.Errorf("resolving posture for %q: %w", identity, err)
	}
	resolved.Access.Posture = postureName
	resolved.Posture = posture

	users, err := r.resolveUsers(raw.Access.Users)
	if err != nil {
		return nil, fmt.Errorf("resolving users for %q: %w", identity, err)
	}
	resolved.Access.Users = users

	if err := r.validate(resolved); err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.cache[identity] = resolved
	r.mu.Unlock()

	r.log.Debug("Resolved spec",
		slog.String("identity", identity),
		slog.String("posture", postureName),
		slog.Int("users", len(users)))

	return resolved, nil
}

// Reset drops every cached resolution.
func (r *Resolver) Reset() {
	r.mu.Lock()
	r.cache = make(map[string]*interfaces.ResolvedSpecInternal)
	r.mu.Unlock()
}

// applySiteDefaults copies each site default the spec did not set explicitly:
// identity-level attributes into the identity section, everything else into
// config. Explicit values are never overwritten.
func (r *Resolver) applySiteDefaults(resolved *interfaces.ResolvedSpecInternal) {
	for attr, value := range r.store.SiteDefaults() {
		if identityDefaults[attr] {
			if attr == "domain" && resolved.Identity.Domain == "" {
				if domain, ok := value.(string); ok {
					resolved.Identity.Domain = domain
				}
			}
			continue
		}
		if _, ok := resolved.Config[attr]; !ok {
			resolved.Config[attr] = value
		}
	}
}

// resolveUsers expands each user's key IDs into key material. A nil ssh_keys
// list is the documented "grant every known key" policy, not an error.
func (r *Resolver) resolveUsers(users []interfaces.RawUser) ([]interfaces.ResolvedUser, error) {
	resolved := make([]interfaces.ResolvedUser, 0, len(users))
	for _, user := range users {
		var keys []string
		var err error
		if user.SSHKeys != nil {
			keys, err = r.store.ResolveSSHKeys(user.SSHKeys)
			if err != nil {
				return nil, err
			}
		} else {
			keys = r.store.AllSSHKeys()
		}
		resolved = append(resolved, interfaces.ResolvedUser{Name: user.Name, SSHKeys: keys})
	}
	return resolved, nil
}

// validate checks the resolved document before it is cached or served. The
// node's FQDN must be a well-formed DNS name, and every resolved user must
// carry at least one SSH key whenever the secrets store holds any. A keyless
// user is tolerated only when the store itself is empty, so bootstrap trees
// without secrets still resolve.
func (r *Resolver) validate(resolved *interfaces.ResolvedSpecInternal) error {
	fqdn := resolved.Identity.Hostname
	if resolved.Identity.Domain != "" {
		fqdn = fqdn + "." + resolved.Identity.Domain
	}
	if _, ok := dns.IsDomainName(fqdn); !ok {
		return interfaces.NewSchemaViolation(fmt.Sprintf("%q is not a valid DNS name", fqdn))
	}
	for _, user := range resolved.Access.Users {
		if len(user.SSHKeys) == 0 && len(r.store.AllSSHKeys()) > 0 {
			return interfaces.NewSchemaViolation(fmt.Sprintf("user %q resolved to no SSH keys", user.Name))
		}
	}
	return nil
}
