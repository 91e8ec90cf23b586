// Package session manages the client's server session: initialization,
// local token upkeep and upstream bearer retrieval.
package session

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/telany/faxrelay/internal/client/state"
	"github.com/telany/faxrelay/internal/errs"
)

const requestTimeout = 10 * time.Second

// Session talks to the relay server on behalf of one installation.
type Session struct {
	baseURL  string
	store    *state.Store
	http     *http.Client
	deviceID string
	now      func() time.Time
}

// Option customizes a Session.
type Option func(*Session)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(s *Session) { s.http = c }
}

// WithDeviceID overrides the device identifier sent on initialization.
func WithDeviceID(id string) Option {
	return func(s *Session) { s.deviceID = id }
}

// WithClock overrides the time source. Intended for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

// New constructs a Session. The device id defaults to the hostname.
func New(baseURL string, store *state.Store, opts ...Option) *Session {
	s := &Session{
		baseURL:  baseURL,
		store:    store,
		http:     &http.Client{Timeout: requestTimeout},
		deviceID: hostname(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func hostname() string {
	if h, err := os.Hostname(); err == nil && h != "" {
		return h
	}
	return "UNKNOWN-DEVICE"
}

type initResponse struct {
	JWTToken      string   `json:"jwt_token"`
	DomainUUID    string   `json:"domain_uuid"`
	AllFaxNumbers []string `json:"all_fax_numbers"`
	ExpiresIn     int      `json:"expires_in"`
}

// Initialize authenticates against the server and persists the session.
// The full fax user (extension included) is stored and sent; the server
// strips the extension itself.
func (s *Session) Initialize(ctx context.Context, faxUser, authToken string) error {
	body, err := json.Marshal(map[string]string{
		"fax_user":             faxUser,
		"authentication_token": authToken,
		"device_id":            s.deviceID,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/init", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s", serverDetail(resp, "init_failed"))
	}

	var out initResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return err
	}
	if out.JWTToken == "" {
		return fmt.Errorf("token_missing")
	}

	return s.store.Update(func(st *state.State) {
		st.Account.FaxUser = faxUser
		st.Account.AuthenticationToken = authToken
		st.Account.DomainUUID = out.DomainUUID
		st.Account.AllFaxNumbers = out.AllFaxNumbers
		st.Account.ValidationStatus = true
		st.Token.JWTToken = out.JWTToken
	})
}

// Token returns the stored access token, refusing when none exists.
func (s *Session) Token() (string, error) {
	tok := s.store.Get().Token.JWTToken
	if tok == "" {
		return "", errs.ErrAccessTokenMissing
	}
	return tok, nil
}

// Refresh re-initializes the session using the stored account credentials.
func (s *Session) Refresh(ctx context.Context) error {
	acct := s.store.Get().Account
	if acct.FaxUser == "" || acct.AuthenticationToken == "" {
		return errs.ErrAccessTokenMissing
	}
	return s.Initialize(ctx, acct.FaxUser, acct.AuthenticationToken)
}

type bearerResponse struct {
	BearerToken string `json:"bearer_token"`
	ExpiresAt   string `json:"expires_at"`
}

// UpstreamToken returns a bearer token for the upstream telco API,
// re-initializing first when the local access token has expired.
func (s *Session) UpstreamToken(ctx context.Context) (string, error) {
	tok, err := s.Token()
	if err != nil {
		return "", err
	}

	if s.expired(tok) {
		if err := s.Refresh(ctx); err != nil {
			return "", err
		}
		if tok, err = s.Token(); err != nil {
			return "", err
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/bearer", nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+tok)

	resp, err := s.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("bearer_failed")
	}

	var out bearerResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	if out.BearerToken == "" {
		return "", fmt.Errorf("bearer_missing")
	}

	err = s.store.Update(func(st *state.State) {
		st.Token.BearerToken = out.BearerToken
		st.Token.BearerTokenExpiresAt = out.ExpiresAt
		st.Token.BearerTokenRetrieved = s.now().UTC().Format(time.RFC3339)
	})
	if err != nil {
		return "", err
	}
	return out.BearerToken, nil
}

// expired peeks at the token's exp claim without verifying the signature.
// Verification is the server's job; the client only decides whether a
// re-init is worth attempting.
func (s *Session) expired(tok string) bool {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tok, claims); err != nil {
		return true
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return true
	}
	return s.now().After(exp.Time)
}

// serverDetail extracts the server's error detail, falling back to a
// generic message.
func serverDetail(resp *http.Response, fallback string) string {
	var body struct {
		Detail string `json:"detail"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err == nil && body.Detail != "" {
		return body.Detail
	}
	return fallback
}
