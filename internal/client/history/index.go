// Package history keeps the client's download ledger in step with the
// server: a durable local index, an offline queue, and a sync engine.
package history

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// Index is the durable set of item ids this installation has already
// downloaded. Stored as a JSON object of id -> true.
type Index struct {
	mu   sync.Mutex
	path string
	ids  map[string]bool
}

// OpenIndex loads the index at path, starting empty when absent.
func OpenIndex(path string) (*Index, error) {
	idx := &Index{path: path, ids: map[string]bool{}}

	raw, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return idx, nil
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(raw, &idx.ids); err != nil {
		return nil, err
	}
	return idx, nil
}

// Has reports membership.
func (x *Index) Has(id string) bool {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.ids[id]
}

// Len returns the number of known ids.
func (x *Index) Len() int {
	x.mu.Lock()
	defer x.mu.Unlock()
	return len(x.ids)
}

// Snapshot returns a copy of the full set.
func (x *Index) Snapshot() map[string]bool {
	x.mu.Lock()
	defer x.mu.Unlock()
	out := make(map[string]bool, len(x.ids))
	for id, v := range x.ids {
		if v {
			out[id] = true
		}
	}
	return out
}

// Add records ids as downloaded and persists the result.
func (x *Index) Add(ids ...string) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	changed := false
	for _, id := range ids {
		if id != "" && !x.ids[id] {
			x.ids[id] = true
			changed = true
		}
	}
	if !changed {
		return nil
	}
	return writeJSON(x.path, x.ids)
}

// writeJSON persists v at path with flush-then-fsync durability.
func writeJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := json.NewEncoder(f).Encode(v); err != nil {
		return err
	}
	return f.Sync()
}
