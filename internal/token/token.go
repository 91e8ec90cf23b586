// Package token mints and verifies short-lived, scoped, tenant- and
// device-bound access tokens with key rotation.
//
// Exactly one key id signs at a time; every key present in the public map
// still verifies, so tokens signed moments before a rotation remain valid
// through their natural TTL.
package token

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/telany/faxrelay/internal/audit"
	"github.com/telany/faxrelay/internal/errs"
	"github.com/telany/faxrelay/internal/model"
)

// KeySet holds the rotation state: signing keys by kid, verification keys
// by kid, and the single kid currently designated for signing.
type KeySet struct {
	ActiveKID string
	Private   map[string]*rsa.PrivateKey
	Public    map[string]*rsa.PublicKey
}

// Config carries the time and identity parameters of the issuer.
type Config struct {
	Issuer        string
	Audience      string
	TTL           time.Duration // default expiry horizon for issued tokens
	NotBeforeSkew time.Duration // nbf lag to tolerate issuer/verifier clock drift
	Leeway        time.Duration // verification leeway
}

// Issuer creates and verifies access tokens.
type Issuer struct {
	keys KeySet
	cfg  Config
	rec  *audit.Recorder
	now  func() time.Time
}

type accessClaims struct {
	DeviceID string   `json:"device_id"`
	Scope    []string `json:"scope"`
	jwt.RegisteredClaims
}

// New constructs an Issuer. The key set must contain a private key for
// the active kid.
func New(keys KeySet, cfg Config, rec *audit.Recorder) (*Issuer, error) {
	if keys.Private[keys.ActiveKID] == nil {
		return nil, fmt.Errorf("token: no private key for active kid %q", keys.ActiveKID)
	}
	if rec == nil {
		rec = audit.NewRecorder(nil)
	}
	return &Issuer{keys: keys, cfg: cfg, rec: rec, now: time.Now}, nil
}

// WithClock overrides the issuer's time source. Intended for tests.
func (i *Issuer) WithClock(now func() time.Time) *Issuer {
	i.now = now
	return i
}

// Issue signs a token for subject bound to deviceID with the given scopes.
// A non-positive ttl falls back to the configured default, so that
// expires_at - issued_at always equals the effective TTL.
func (i *Issuer) Issue(subject uuid.UUID, deviceID string, scopes []string, ttl time.Duration) (string, time.Time, error) {
	if subject == uuid.Nil {
		return "", time.Time{}, fmt.Errorf("token: empty subject")
	}
	if strings.TrimSpace(deviceID) == "" {
		return "", time.Time{}, fmt.Errorf("token: empty device id")
	}
	if len(scopes) == 0 {
		return "", time.Time{}, fmt.Errorf("token: empty scope list")
	}
	if ttl <= 0 {
		ttl = i.cfg.TTL
	}

	jti, err := uuid.NewV4()
	if err != nil {
		return "", time.Time{}, err
	}

	now := i.now().UTC()
	exp := now.Add(ttl)
	claims := accessClaims{
		DeviceID: deviceID,
		Scope:    scopes,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    i.cfg.Issuer,
			Audience:  jwt.ClaimStrings{i.cfg.Audience},
			Subject:   subject.String(),
			ID:        jti.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now.Add(i.cfg.NotBeforeSkew)),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}

	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	tok.Header["kid"] = i.keys.ActiveKID

	signed, err := tok.SignedString(i.keys.Private[i.keys.ActiveKID])
	if err != nil {
		return "", time.Time{}, fmt.Errorf("token: sign: %w", err)
	}

	i.rec.Event(audit.JWTIssued,
		audit.Tenant(subject),
		audit.Device(deviceID),
		zap.String("kid", i.keys.ActiveKID),
		zap.Strings("scope", scopes),
		zap.Time("expires_at", exp),
	)
	return signed, exp, nil
}

// Verify checks signature, issuer, audience and time window, then
// type-checks the mandatory claims. The kid is read from the unverified
// header and trusted only for key lookup.
func (i *Issuer) Verify(tokenString string) (*model.Claims, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{"RS256"}),
		jwt.WithIssuer(i.cfg.Issuer),
		jwt.WithAudience(i.cfg.Audience),
		jwt.WithLeeway(i.cfg.Leeway),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)

	var parsed accessClaims
	_, err := parser.ParseWithClaims(tokenString, &parsed, func(t *jwt.Token) (any, error) {
		kid, _ := t.Header["kid"].(string)
		pub := i.keys.Public[kid]
		if pub == nil {
			return nil, errs.ErrUnknownKey
		}
		return pub, nil
	})
	if err != nil {
		return nil, i.verifyFailed(classify(err), err)
	}

	claims, err := toModel(&parsed)
	if err != nil {
		return nil, i.verifyFailed(errs.ErrMalformedClaims, err)
	}

	i.rec.Event(audit.JWTValidated,
		audit.Tenant(claims.Subject),
		audit.Device(claims.DeviceID),
		zap.Strings("scope", claims.Scope),
	)
	return claims, nil
}

// RequireScopes reports whether claims carry every needed scope. The
// returned error names the missing scopes; the caller is responsible for
// rejecting the request.
func RequireScopes(claims *model.Claims, needed ...string) error {
	have := make(map[string]bool, len(claims.Scope))
	for _, s := range claims.Scope {
		have[s] = true
	}
	var missing []string
	for _, s := range needed {
		if !have[s] {
			missing = append(missing, s)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", errs.ErrInsufficientScope, strings.Join(missing, ", "))
	}
	return nil
}

// classify maps jwt parse failures onto the core error taxonomy.
func classify(err error) error {
	switch {
	case errors.Is(err, errs.ErrUnknownKey):
		return errs.ErrUnknownKey
	case errors.Is(err, jwt.ErrTokenExpired), errors.Is(err, jwt.ErrTokenNotValidYet):
		return errs.ErrTokenExpired
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return errs.ErrInvalidSignature
	default:
		return errs.ErrInvalidClaims
	}
}

// toModel validates claim shapes: UUID subject, non-empty device id and
// jti, non-empty scope list of non-empty strings, all timestamps present.
func toModel(c *accessClaims) (*model.Claims, error) {
	sub, err := uuid.FromString(c.Subject)
	if err != nil {
		return nil, fmt.Errorf("subject is not a UUID")
	}
	if strings.TrimSpace(c.DeviceID) == "" {
		return nil, fmt.Errorf("empty device_id")
	}
	if len(c.Scope) == 0 {
		return nil, fmt.Errorf("empty scope")
	}
	for _, s := range c.Scope {
		if s == "" {
			return nil, fmt.Errorf("empty scope entry")
		}
	}
	if c.ID == "" {
		return nil, fmt.Errorf("empty jti")
	}
	if c.IssuedAt == nil || c.NotBefore == nil || c.ExpiresAt == nil {
		return nil, fmt.Errorf("missing timestamp claim")
	}

	aud := ""
	if len(c.Audience) > 0 {
		aud = c.Audience[0]
	}
	return &model.Claims{
		Issuer:    c.Issuer,
		Audience:  aud,
		Subject:   sub,
		DeviceID:  c.DeviceID,
		Scope:     c.Scope,
		JTI:       c.ID,
		IssuedAt:  c.IssuedAt.Time,
		NotBefore: c.NotBefore.Time,
		ExpiresAt: c.ExpiresAt.Time,
	}, nil
}

// verifyFailed records the failure category without the raw token.
func (i *Issuer) verifyFailed(kind, cause error) error {
	eventType := audit.JWTInvalid
	if errors.Is(kind, errs.ErrTokenExpired) {
		eventType = audit.JWTExpired
	}
	i.rec.Event(eventType,
		audit.Op("jwt", "verify"),
		zap.String("reason", cause.Error()),
	)
	return kind
}
