package history

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"strings"
	"sync"
)

// Queue is the durable FIFO of ids that could not be delivered to the
// server. Stored as a JSON array; order is preserved across restarts.
type Queue struct {
	mu   sync.Mutex
	path string
	ids  []string
}

// OpenQueue loads the queue at path, starting empty when absent.
func OpenQueue(path string) (*Queue, error) {
	q := &Queue{path: path}

	raw, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return q, nil
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(raw, &q.ids); err != nil {
		return nil, err
	}
	q.ids = cleanIDs(q.ids)
	return q, nil
}

// Pending returns a copy of the queued ids in order.
func (q *Queue) Pending() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]string(nil), q.ids...)
}

// Enqueue appends ids and persists the queue.
func (q *Queue) Enqueue(ids ...string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	next := cleanIDs(append(append([]string(nil), q.ids...), ids...))
	if err := writeJSON(q.path, next); err != nil {
		return err
	}
	q.ids = next
	return nil
}

// Replace swaps the queue's full contents, persisting first.
func (q *Queue) Replace(ids []string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	next := cleanIDs(ids)
	if err := writeJSON(q.path, next); err != nil {
		return err
	}
	q.ids = next
	return nil
}

// cleanIDs trims and deduplicates preserving first-seen order.
func cleanIDs(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
