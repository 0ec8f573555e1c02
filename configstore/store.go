package configstore

import (
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"go.uber.org/atomic"
	"golang.org/x/crypto/ssh"
	"gopkg.in/yaml.v3"

	"github.com/fleetyard/provisioning-server/interfaces"
)

// File names inside the configuration tree.
const (
	siteFile    = "site.yaml"
	secretsFile = "secrets.yaml"
	postureDir  = "postures"
	specDir     = "specs"
)

// secretsDocument is the on-disk shape of secrets.yaml. The file is decrypted
// by the operator tooling before this process reads it.
type secretsDocument struct {
	SigningKey string            `yaml:"signing_key"`
	SSHKeys    map[string]string `yaml:"ssh_keys"`
	APITokens  map[string]string `yaml:"api_tokens"`
}

// snapshot holds one fully parsed configuration tree. Snapshots are immutable
// except for the lazily populated raw-spec cache, which is guarded by its own
// lock and replaced wholesale on reload.
type snapshot struct {
	siteDefaults map[string]any
	signingKey   []byte
	sshKeys      map[string]string
	sshKeyIDs    []string // sorted; defines the order of AllSSHKeys
	apiTokens    map[string]string
	postures     map[string]*interfaces.Posture

	mu    sync.RWMutex
	specs map[string]*interfaces.RawSpec
}

// Store loads and serves the on-disk configuration tree. All read methods
// operate on an atomically swapped snapshot, so concurrent readers never see
// a partially reloaded tree.
type Store struct {
	root string
	log  *slog.Logger
	snap atomic.Pointer[snapshot]
}

var _ interfaces.ConfigStore = (*Store)(nil)

// New parses the configuration tree rooted at root and returns a ready store.
// Missing or unparsable top-level files fail construction.
func New(root string, log *slog.Logger) (*Store, error) {
	s := &Store{root: root, log: log}
	snap, err := s.load()
	if err != nil {
		return nil, err
	}
	s.snap.Store(snap)
	return s, nil
}

// load parses site.yaml, secrets.yaml and postures/*.yaml eagerly. Raw specs
// are read on demand; load only checks the directory exists.
func (s *Store) load() (*snapshot, error) {
	snap := &snapshot{
		specs: make(map[string]*interfaces.RawSpec),
	}

	if err := readYAMLFile(filepath.Join(s.root, siteFile), &snap.siteDefaults); err != nil {
		return nil, fmt.Errorf("loading site defaults: %w", err)
	}
	if snap.siteDefaults == nil {
		snap.siteDefaults = map[string]any{}
	}

	var secrets secretsDocument
	if err := readYAMLFile(filepath.Join(s.root, secretsFile), &secrets); err != nil {
		return nil, fmt.Errorf("loading secrets: %w", err)
	}

	if secrets.SigningKey != "" {
		key, err := hex.DecodeString(secrets.SigningKey)
		if err != nil {
			return nil, fmt.Errorf("decoding signing key: %w", err)
		}
		snap.signingKey = key
	}

	snap.sshKeys = secrets.SSHKeys
	if snap.sshKeys == nil {
		snap.sshKeys = map[string]string{}
	}
	snap.sshKeyIDs = make([]string, 0, len(snap.sshKeys))
	for id, key := range snap.sshKeys {
		snap.sshKeyIDs = append(snap.sshKeyIDs, id)
		if _, _, _, _, err := ssh.ParseAuthorizedKey([]byte(key)); err != nil {
			s.log.Warn("SSH public key does not parse as an authorized key",
				slog.String("keyID", id), "err", err)
		}
	}
	sort.Strings(snap.sshKeyIDs)

	snap.apiTokens = secrets.APITokens
	if snap.apiTokens == nil {
		snap.apiTokens = map[string]string{}
	}

	postures, err := s.loadPostures()
	if err != nil {
		return nil, err
	}
	snap.postures = postures

	if _, err := os.Stat(filepath.Join(s.root, specDir)); err != nil {
		return nil, fmt.Errorf("spec directory unavailable: %w", err)
	}

	s.log.Debug("Configuration tree loaded",
		slog.String("root", s.root),
		slog.Int("postures", len(snap.postures)),
		slog.Int("sshKeys", len(snap.sshKeyIDs)))

	return snap, nil
}

func (s *Store) loadPostures() (map[string]*interfaces.Posture, error) {
	dir := filepath.Join(s.root, postureDir)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading posture directory: %w", err)
	}

	postures := make(map[string]*interfaces.Posture, len(entries))
	for _, entry := range entries {
		name, ok := strings.CutSuffix(entry.Name(), ".yaml")
		if !ok || entry.IsDir() {
			continue
		}
		posture := &interfaces.Posture{}
		if err := readYAMLFile(filepath.Join(dir, entry.Name()), posture); err != nil {
			return nil, fmt.Errorf("loading posture %q: %w", name, err)
		}
		posture.Name = name
		postures[name] = posture
	}
	return postures, nil
}

// Reload parses the tree from scratch and publishes it as a single atomic
// swap. In-flight readers keep the snapshot they started with. The lazy
// raw-spec cache starts empty in the new snapshot.
func (s *Store) Reload() error {
	snap, err := s.load()
	if err != nil {
		return err
	}
	s.snap.Store(snap)
	s.log.Info("Configuration tree reloaded", slog.String("root", s.root))
	return nil
}

// ClearCache drops the lazily read raw specs. The eagerly parsed tree is
// kept; changed top-level files require Reload.
func (s *Store) ClearCache() {
	snap := s.snap.Load()
	snap.mu.Lock()
	snap.specs = make(map[string]*interfaces.RawSpec)
	snap.mu.Unlock()
}

// SiteDefaults returns the site-wide default attributes.
func (s *Store) SiteDefaults() map[string]any {
	return s.snap.Load().siteDefaults
}

// RawSpec returns the as-authored spec document for identity, reading
// specs/<identity>.yaml on first access and caching the parsed result.
func (s *Store) RawSpec(identity string) (*interfaces.RawSpec, error) {
	snap := s.snap.Load()

	snap.mu.RLock()
	spec, ok := snap.specs[identity]
	snap.mu.RUnlock()
	if ok {
		return spec, nil
	}

	if !validIdentity(identity) {
		return nil, interfaces.NewSpecNotFound(identity)
	}

	path := filepath.Join(s.root, specDir, identity+".yaml")
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, interfaces.NewSpecNotFound(identity)
	}
	if err != nil {
		return nil, interfaces.NewInternal("failed to read spec file", err)
	}

	spec = &interfaces.RawSpec{}
	if err := yaml.Unmarshal(data, spec); err != nil {
		return nil, interfaces.NewInternal(fmt.Sprintf("spec file for %q does not parse", identity), err)
	}

	snap.mu.Lock()
	snap.specs[identity] = spec
	snap.mu.Unlock()

	s.log.Debug("Loaded raw spec from file",
		slog.String("identity", identity),
		slog.String("path", path))

	return spec, nil
}

// SpecNames lists every raw-spec identity present on disk, sorted ascending.
func (s *Store) SpecNames() ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(s.root, specDir))
	if err != nil {
		return nil, interfaces.NewInternal("failed to read spec directory", err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if name, ok := strings.CutSuffix(entry.Name(), ".yaml"); ok && !entry.IsDir() {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}

// GetPosture returns the named posture.
func (s *Store) GetPosture(name string) (*interfaces.Posture, error) {
	posture, ok := s.snap.Load().postures[name]
	if !ok {
		return nil, interfaces.NewPostureNotFound(name)
	}
	return posture, nil
}

// ResolveSSHKeys maps key IDs to public key strings, preserving the input
// order. The first unknown ID aborts the whole lookup.
func (s *Store) ResolveSSHKeys(ids []string) ([]string, error) {
	snap := s.snap.Load()
	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		key, ok := snap.sshKeys[id]
		if !ok {
			return nil, interfaces.NewSSHKeyNotFound(id)
		}
		keys = append(keys, key)
	}
	return keys, nil
}

// AllSSHKeys returns every known public key, ordered by key ID. User entries
// that omit ssh_keys are granted this full set.
func (s *Store) AllSSHKeys() []string {
	snap := s.snap.Load()
	keys := make([]string, 0, len(snap.sshKeyIDs))
	for _, id := range snap.sshKeyIDs {
		keys = append(keys, snap.sshKeys[id])
	}
	return keys
}

// SigningKey returns the token signing key.
func (s *Store) SigningKey() ([]byte, error) {
	key := s.snap.Load().signingKey
	if len(key) == 0 {
		return nil, interfaces.NewInternal("no signing key configured", nil)
	}
	return key, nil
}

// APIToken returns the static API token registered for a node.
func (s *Store) APIToken(node string) (string, bool) {
	token, ok := s.snap.Load().apiTokens[node]
	return token, ok
}

// validIdentity rejects identities that would escape the spec directory.
func validIdentity(identity string) bool {
	if identity == "" || identity == "." || identity == ".." {
		return false
	}
	return !strings.ContainsAny(identity, "/\\")
}

func readYAMLFile(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parsing %s: %w", filepath.Base(path), err)
	}
	return nil
}
