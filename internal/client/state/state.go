// Package state persists the client's account and token material as a
// single JSON document.
package state

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// Account identifies the tenant this installation belongs to.
type Account struct {
	FaxUser             string   `json:"fax_user"`
	DomainUUID          string   `json:"domain_uuid"`
	AuthenticationToken string   `json:"authentication_token"`
	AllFaxNumbers       []string `json:"all_fax_numbers"`
	ValidationStatus    bool     `json:"validation_status"`
}

// Token holds the locally cached access and upstream bearer tokens.
type Token struct {
	JWTToken             string `json:"jwt_token"`
	BearerToken          string `json:"bearer_token"`
	BearerTokenExpiresAt string `json:"bearer_token_expires_at"`
	BearerTokenRetrieved string `json:"bearer_token_retrieved"`
}

// State is the full persisted document. Exactly these fields, nothing else.
type State struct {
	Account Account `json:"Account"`
	Token   Token   `json:"Token"`
}

// Store guards the state file with a process-wide lock. Every update is
// written through to disk and fsynced before it returns.
type Store struct {
	mu    sync.Mutex
	path  string
	state State
}

// Load opens the store at path, reading existing state if present. A
// missing file yields an empty state.
func Load(path string) (*Store, error) {
	s := &Store{path: path}

	raw, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(raw, &s.state); err != nil {
		return nil, err
	}
	return s, nil
}

// Get returns a copy of the current state.
func (s *Store) Get() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Update applies fn to the state and persists the result.
func (s *Store) Update(fn func(*State)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.state
	fn(&next)

	if err := s.write(next); err != nil {
		return err
	}
	s.state = next
	return nil
}

func (s *Store) write(st State) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return err
	}

	f, err := os.OpenFile(s.path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(st); err != nil {
		return err
	}
	return f.Sync()
}
