// Package cache persists a compiled delta pool across CLI invocations,
// keyed by a content fingerprint of the source file (SPEC_FULL.md §3).
// It is a tooling convenience around repeated runs of the same source,
// not a change to the CSE machine's execution strategy.
package cache

import (
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fxamacker/cbor/v2"
	"golang.org/x/crypto/blake2b"

	"github.com/aledsdavies/rpal/internal/symbol"
)

// Fingerprint returns the hex-encoded BLAKE2b-256 digest of source,
// used as the cache key for its compiled delta pool.
func Fingerprint(source []byte) string {
	sum := blake2b.Sum256(source)
	return hex.EncodeToString(sum[:])
}

// Store persists compiled delta pools under a directory, one file per
// fingerprint. A nil *Store is a valid, inert "no cache" value: every
// method on it is a no-op miss, so callers can hold a possibly-nil
// Store without a separate enabled/disabled flag.
type Store struct {
	dir string
}

// Open returns a Store rooted at dir. The directory is created lazily,
// on first Save.
func Open(dir string) *Store {
	return &Store{dir: dir}
}

func (s *Store) path(fingerprint string) string {
	return filepath.Join(s.dir, fingerprint+".cbor")
}

// Load returns the cached delta pool for fingerprint. A missing or
// corrupt entry is reported as ok=false, never an error — a cache is
// only ever a shortcut, and falling back to recompiling is always safe.
func (s *Store) Load(fingerprint string) (root *symbol.Delta, ok bool) {
	if s == nil {
		return nil, false
	}
	data, err := os.ReadFile(s.path(fingerprint))
	if err != nil {
		return nil, false
	}
	var d symbol.Delta
	if err := cbor.Unmarshal(data, &d); err != nil {
		return nil, false
	}
	return &d, true
}

// Save persists root under fingerprint, replacing any existing entry.
func (s *Store) Save(fingerprint string, root *symbol.Delta) error {
	if s == nil {
		return nil
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("cache: creating %s: %w", s.dir, err)
	}
	data, err := cbor.Marshal(root)
	if err != nil {
		return fmt.Errorf("cache: encoding delta pool: %w", err)
	}
	tmp := s.path(fingerprint) + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("cache: writing %s: %w", tmp, err)
	}
	return os.Rename(tmp, s.path(fingerprint))
}
