// Package credential stores the bearer token used for the authenticated
// alternate source.
package credential

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/ZebulonRouseFrantzich/manifold/internal/transaction"
)

// ErrInvalid is returned by Set for a token that does not carry the
// configured prefix.
var ErrInvalid = errors.New("invalid credential")

// Store is a file-backed token. It is safe for concurrent use.
type Store struct {
	path   string
	prefix string

	mu        sync.RWMutex
	token     string
	loaded    bool
	listeners []func()
}

// NewStore creates a store backed by path. When prefix is non-empty, Set
// rejects tokens that do not start with it.
func NewStore(path, prefix string) *Store {
	return &Store{path: path, prefix: prefix}
}

// Path returns the backing file.
func (s *Store) Path() string { return s.path }

// Load reads the token from disk. A missing file is an empty token.
func (s *Store) Load() (string, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("read credential: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

// Token returns the current token, loading it on first use. Read errors
// yield an empty token.
func (s *Store) Token() string {
	s.mu.RLock()
	if s.loaded {
		defer s.mu.RUnlock()
		return s.token
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.loaded {
		s.token, _ = s.Load()
		s.loaded = true
	}
	return s.token
}

// Reload re-reads the backing file and notifies listeners if the token
// changed.
func (s *Store) Reload() (bool, error) {
	tok, err := s.Load()
	if err != nil {
		return false, err
	}
	return s.swap(tok), nil
}

// Set validates and persists token with owner-only permissions. An empty
// token clears the credential.
func (s *Store) Set(token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return s.Clear()
	}
	if s.prefix != "" && !strings.HasPrefix(token, s.prefix) {
		return fmt.Errorf("%w: expected prefix %q", ErrInvalid, s.prefix)
	}
	if err := transaction.WriteFileAtomic(s.path, []byte(token+"\n"), 0600); err != nil {
		return fmt.Errorf("write credential: %w", err)
	}
	s.swap(token)
	return nil
}

// Clear removes the stored token.
func (s *Store) Clear() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove credential: %w", err)
	}
	s.swap("")
	return nil
}

// OnChange registers fn to run after the token changes.
func (s *Store) OnChange(fn func()) {
	s.mu.Lock()
	s.listeners = append(s.listeners, fn)
	s.mu.Unlock()
}

func (s *Store) swap(tok string) bool {
	s.mu.Lock()
	changed := !s.loaded || s.token != tok
	s.token = tok
	s.loaded = true
	listeners := append([]func(){}, s.listeners...)
	s.mu.Unlock()

	if changed {
		for _, fn := range listeners {
			fn()
		}
	}
	return changed
}
