// Package upstream requests bearer tokens from the third-party telco
// OAuth endpoint on a tenant's behalf.
package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/telany/faxrelay/internal/errs"
	"github.com/telany/faxrelay/internal/model"
)

// DefaultExpiresIn applies when the token response carries no usable
// expires_in field.
const DefaultExpiresIn = 6 * time.Hour

// TokenClient exchanges reseller credentials for an upstream bearer token.
type TokenClient struct {
	tokenURL  string
	grantType string
	http      *http.Client
	now       func() time.Time
}

// Option configures the TokenClient.
type Option func(*TokenClient)

// WithHTTPClient sets a custom HTTP client for token requests.
func WithHTTPClient(c *http.Client) Option {
	return func(tc *TokenClient) { tc.http = c }
}

// WithClock overrides the time source. Intended for tests.
func WithClock(now func() time.Time) Option {
	return func(tc *TokenClient) { tc.now = now }
}

// New constructs a TokenClient for the given token endpoint.
func New(tokenURL, grantType string, opts ...Option) *TokenClient {
	tc := &TokenClient{
		tokenURL:  tokenURL,
		grantType: grantType,
		http:      &http.Client{Timeout: 10 * time.Second},
		now:       time.Now,
	}
	for _, o := range opts {
		o(tc)
	}
	return tc
}

// Fetch performs the password grant. Both credential pairs collapse into
// a single grant: the message pair identifies the client, the voice pair
// the resource owner. The upstream endpoint expects exactly this shape.
func (tc *TokenClient) Fetch(ctx context.Context, creds model.ResellerCredentials) (model.UpstreamToken, error) {
	form := url.Values{
		"grant_type":    {tc.grantType},
		"client_id":     {creds.MsgAPIUser},
		"client_secret": {creds.MsgAPIPassword},
		"username":      {creds.VoiceAPIUser},
		"password":      {creds.VoiceAPIPassword},
		"scope":         {"*"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tc.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return model.UpstreamToken{}, fmt.Errorf("upstream: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := tc.http.Do(req)
	if err != nil {
		return model.UpstreamToken{}, fmt.Errorf("%w: token request: %v", errs.ErrUpstream, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return model.UpstreamToken{}, fmt.Errorf("%w: read response: %v", errs.ErrUpstream, err)
	}
	if resp.StatusCode != http.StatusOK {
		return model.UpstreamToken{}, fmt.Errorf("%w: status %d", errs.ErrUpstream, resp.StatusCode)
	}

	var parsed struct {
		AccessToken string          `json:"access_token"`
		ExpiresIn   json.RawMessage `json:"expires_in"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return model.UpstreamToken{}, fmt.Errorf("%w: decode response: %v", errs.ErrUpstream, err)
	}
	if parsed.AccessToken == "" {
		return model.UpstreamToken{}, fmt.Errorf("%w: missing access_token in response", errs.ErrUpstream)
	}

	return model.UpstreamToken{
		AccessToken: parsed.AccessToken,
		ExpiresAt:   tc.now().UTC().Add(expiresIn(parsed.ExpiresIn)),
	}, nil
}

// expiresIn tolerates numeric and string expires_in values and falls back
// to the default horizon when absent or unparsable.
func expiresIn(raw json.RawMessage) time.Duration {
	if len(raw) == 0 {
		return DefaultExpiresIn
	}
	s := strings.Trim(string(raw), `"`)
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return DefaultExpiresIn
	}
	return time.Duration(n) * time.Second
}
