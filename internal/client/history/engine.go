package history

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"strings"
	"time"

	"github.com/telany/faxrelay/internal/errs"
)

// MaxPage caps list and post batch sizes, mirroring the server.
const MaxPage = 500

const (
	maxAttempts = 5
	backoffBase = 500 * time.Millisecond
	backoffCap  = 8 * time.Second
)

// TokenSource supplies the access token and refreshes it after an
// authorization failure.
type TokenSource interface {
	Token() (string, error)
	Refresh(ctx context.Context) error
}

// PostResult reports the server's view of a delivered batch.
type PostResult struct {
	OK       bool `json:"ok"`
	Inserted int  `json:"inserted"`
	Total    int  `json:"total"`
}

// Engine synchronizes the local download ledger with the server. Network
// failures degrade to the durable queue instead of losing ids.
type Engine struct {
	baseURL string
	tokens  TokenSource
	http    *http.Client
	index   *Index
	queue   *Queue
	sleep   func(time.Duration)
	rand    func() float64
}

// Option customizes an Engine.
type Option func(*Engine)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(e *Engine) { e.http = c }
}

// WithSleep overrides the backoff sleeper. Intended for tests.
func WithSleep(fn func(time.Duration)) Option {
	return func(e *Engine) { e.sleep = fn }
}

// WithJitter overrides the jitter source. Intended for tests.
func WithJitter(fn func() float64) Option {
	return func(e *Engine) { e.rand = fn }
}

// NewEngine constructs an Engine over the given ledger files.
func NewEngine(baseURL string, tokens TokenSource, index *Index, queue *Queue, opts ...Option) *Engine {
	e := &Engine{
		baseURL: baseURL,
		tokens:  tokens,
		http:    &http.Client{Timeout: 30 * time.Second},
		index:   index,
		queue:   queue,
		sleep:   time.Sleep,
		rand:    rand.Float64,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Index exposes the local ledger.
func (e *Engine) Index() *Index { return e.index }

// Queue exposes the offline queue.
func (e *Engine) Queue() *Queue { return e.queue }

// Post delivers ids to the server. Blank and duplicate entries are
// dropped; an empty batch is a successful no-op.
func (e *Engine) Post(ctx context.Context, ids []string) (PostResult, error) {
	ids = cleanIDs(ids)
	if len(ids) == 0 {
		return PostResult{OK: true}, nil
	}

	var res PostResult
	if err := e.post(ctx, "/sync/post", map[string]any{"ids": ids}, &res); err != nil {
		return PostResult{}, err
	}
	return res, nil
}

type listResponse struct {
	IDs        []string `json:"ids"`
	Offset     int      `json:"offset"`
	Limit      int      `json:"limit"`
	Total      int      `json:"total"`
	NextOffset *int     `json:"next_offset"`
}

// ListPage fetches one page of the server's set.
func (e *Engine) ListPage(ctx context.Context, offset, limit int) ([]string, *int, int, error) {
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 || limit > MaxPage {
		limit = MaxPage
	}

	var res listResponse
	err := e.post(ctx, "/sync/list", map[string]int{"offset": offset, "limit": limit}, &res)
	if err != nil {
		return nil, nil, 0, err
	}
	return res.IDs, res.NextOffset, res.Total, nil
}

// listAll walks every page of the server's set.
func (e *Engine) listAll(ctx context.Context) ([]string, error) {
	var all []string
	offset := 0
	for {
		ids, next, _, err := e.ListPage(ctx, offset, MaxPage)
		if err != nil {
			return nil, err
		}
		if len(ids) == 0 {
			return all, nil
		}
		all = append(all, ids...)
		if next == nil {
			return all, nil
		}
		offset = *next
	}
}

// PullIfMissing rebuilds the local index from the server when the index
// is empty. A populated index is left untouched.
func (e *Engine) PullIfMissing(ctx context.Context) error {
	if e.index.Len() > 0 {
		return nil
	}
	ids, err := e.listAll(ctx)
	if err != nil {
		return err
	}
	return e.index.Add(ids...)
}

// QueuePost delivers a single id, falling back to the durable queue when
// delivery fails. The id is never lost.
func (e *Engine) QueuePost(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil
	}
	if _, err := e.Post(ctx, []string{id}); err != nil {
		return e.queue.Enqueue(id)
	}
	return nil
}

// MarkDownloaded records an id in the local index and reports it to the
// server, queueing on failure.
func (e *Engine) MarkDownloaded(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil
	}
	if err := e.index.Add(id); err != nil {
		return err
	}
	return e.QueuePost(ctx, id)
}

// FlushQueue delivers queued ids in batches, stopping at the first
// failure. Undelivered ids stay queued in order.
func (e *Engine) FlushQueue(ctx context.Context) error {
	pending := e.queue.Pending()
	if len(pending) == 0 {
		return nil
	}

	for len(pending) > 0 {
		batch := pending
		if len(batch) > MaxPage {
			batch = batch[:MaxPage]
		}
		if _, err := e.Post(ctx, batch); err != nil {
			break
		}
		pending = pending[len(batch):]
	}
	return e.queue.Replace(pending)
}

// Reconcile converges the local and server sets bidirectionally: local-only
// ids are pushed (queued if the push fails) and server-only ids are pulled
// into the index.
func (e *Engine) Reconcile(ctx context.Context) error {
	local := e.index.Snapshot()

	remoteIDs, err := e.listAll(ctx)
	if err != nil {
		return err
	}
	remote := make(map[string]bool, len(remoteIDs))
	for _, id := range remoteIDs {
		remote[id] = true
	}

	var toPush []string
	for id := range local {
		if !remote[id] {
			toPush = append(toPush, id)
		}
	}
	var toPull []string
	for _, id := range remoteIDs {
		if !local[id] {
			toPull = append(toPull, id)
		}
	}

	for i := 0; i < len(toPush); i += MaxPage {
		end := i + MaxPage
		if end > len(toPush) {
			end = len(toPush)
		}
		if _, err := e.Post(ctx, toPush[i:end]); err != nil {
			// Undelivered ids survive in the queue for a later flush.
			if qerr := e.queue.Enqueue(toPush[i:]...); qerr != nil {
				return qerr
			}
			break
		}
	}

	return e.index.Add(toPull...)
}

// post runs one authorized JSON call with the shared retry policy: one
// token refresh on an authorization failure, exponential backoff with
// jitter on transient failures, no retry on other client errors.
func (e *Engine) post(ctx context.Context, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	refreshed := false
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		tok, err := e.tokens.Token()
		if err != nil {
			if rerr := e.tokens.Refresh(ctx); rerr != nil {
				return rerr
			}
			if tok, err = e.tokens.Token(); err != nil {
				return err
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+path, bytes.NewReader(body))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+tok)

		resp, err := e.http.Do(req)
		if err != nil {
			e.backoff(attempt)
			continue
		}

		switch {
		case resp.StatusCode == http.StatusOK:
			err := json.NewDecoder(resp.Body).Decode(out)
			resp.Body.Close()
			return err

		case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
			resp.Body.Close()
			if refreshed {
				return errs.ErrUnauthorized
			}
			if err := e.tokens.Refresh(ctx); err != nil {
				return errs.ErrUnauthorized
			}
			refreshed = true

		case resp.StatusCode >= 500:
			resp.Body.Close()
			e.backoff(attempt)

		default:
			detail := responseDetail(resp)
			resp.Body.Close()
			if detail == "" {
				detail = fmt.Sprintf("HTTP %d", resp.StatusCode)
			}
			return fmt.Errorf("%s", detail)
		}
	}
	return errs.ErrRetryExhausted
}

func (e *Engine) backoff(attempt int) {
	base := backoffBase << attempt
	if base > backoffCap {
		base = backoffCap
	}
	e.sleep(time.Duration(float64(base) * (0.5 + e.rand())))
}

func responseDetail(resp *http.Response) string {
	var body struct {
		Detail string `json:"detail"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return ""
	}
	return body.Detail
}
