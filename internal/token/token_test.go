package token

import (
	"crypto/rand"
	"crypto/rsa"
	"strings"
	"testing"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/golang-jwt/jwt/v5"

	"github.com/telany/faxrelay/internal/errs"
	"github.com/telany/faxrelay/internal/model"
)

var (
	keyA = mustKey()
	keyB = mustKey()
)

func mustKey() *rsa.PrivateKey {
	k, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		panic(err)
	}
	return k
}

func testKeys(active string) KeySet {
	return KeySet{
		ActiveKID: active,
		Private:   map[string]*rsa.PrivateKey{"a": keyA, "b": keyB},
		Public:    map[string]*rsa.PublicKey{"a": &keyA.PublicKey, "b": &keyB.PublicKey},
	}
}

func testConfig() Config {
	return Config{
		Issuer:   "https://relay.example.test",
		Audience: "relay.api",
		TTL:      time.Hour,
		Leeway:   30 * time.Second,
	}
}

func newTestIssuer(t *testing.T, active string, now time.Time) *Issuer {
	t.Helper()
	iss, err := New(testKeys(active), testConfig(), nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return iss.WithClock(func() time.Time { return now })
}

func TestIssue_Validation(t *testing.T) {
	t.Parallel()
	iss := newTestIssuer(t, "a", time.Now())
	sub := uuid.Must(uuid.NewV4())

	if _, _, err := iss.Issue(uuid.Nil, "dev-1", []string{"x"}, 0); err == nil {
		t.Fatal("want error on nil subject")
	}
	if _, _, err := iss.Issue(sub, "  ", []string{"x"}, 0); err == nil {
		t.Fatal("want error on blank device id")
	}
	if _, _, err := iss.Issue(sub, "dev-1", nil, 0); err == nil {
		t.Fatal("want error on empty scopes")
	}
}

func TestVerify_ValidityWindow(t *testing.T) {
	t.Parallel()
	issued := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	iss := newTestIssuer(t, "a", issued)
	sub := uuid.Must(uuid.NewV4())

	tok, exp, err := iss.Issue(sub, "dev-1", []string{"bearer.request"}, 3600*time.Second)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if got := exp.Sub(issued); got != 3600*time.Second {
		t.Fatalf("expires_at - issued_at = %v, want 1h", got)
	}

	// Valid one second after issuance.
	claims, err := iss.WithClock(func() time.Time { return issued.Add(time.Second) }).Verify(tok)
	if err != nil {
		t.Fatalf("Verify at iat+1s: %v", err)
	}
	if claims.Subject != sub || claims.DeviceID != "dev-1" {
		t.Fatalf("claims mismatch: %+v", claims)
	}

	// Expired past ttl + leeway.
	after := issued.Add(3601*time.Second + testConfig().Leeway)
	if _, err := iss.WithClock(func() time.Time { return after }).Verify(tok); err != errs.ErrTokenExpired {
		t.Fatalf("Verify after expiry: got %v, want ErrTokenExpired", err)
	}
}

func TestVerify_KeyRotation(t *testing.T) {
	t.Parallel()
	now := time.Now()
	sub := uuid.Must(uuid.NewV4())

	tok, _, err := newTestIssuer(t, "a", now).Issue(sub, "dev-1", []string{"history.sync"}, 0)
	if err != nil {
		t.Fatalf("Issue under kid a: %v", err)
	}

	// Active signing key switched to b; a's public key stays registered.
	rotated := newTestIssuer(t, "b", now)
	if _, err := rotated.Verify(tok); err != nil {
		t.Fatalf("token signed under a must verify after rotation: %v", err)
	}

	// Retiring a's public key invalidates the old token.
	retired := KeySet{
		ActiveKID: "b",
		Private:   map[string]*rsa.PrivateKey{"b": keyB},
		Public:    map[string]*rsa.PublicKey{"b": &keyB.PublicKey},
	}
	iss, err := New(retired, testConfig(), nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := iss.WithClock(func() time.Time { return now }).Verify(tok); err != errs.ErrUnknownKey {
		t.Fatalf("got %v, want ErrUnknownKey", err)
	}
}

func TestVerify_InvalidSignature(t *testing.T) {
	t.Parallel()
	now := time.Now()
	iss := newTestIssuer(t, "a", now)
	sub := uuid.Must(uuid.NewV4())

	tok, _, err := iss.Issue(sub, "dev-1", []string{"x"}, 0)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	parts := strings.Split(tok, ".")
	forged := parts[0] + "." + parts[1] + "." + strings.Repeat("A", len(parts[2]))
	if _, err := iss.Verify(forged); err != errs.ErrInvalidSignature {
		t.Fatalf("got %v, want ErrInvalidSignature", err)
	}
}

func TestVerify_WrongAudience(t *testing.T) {
	t.Parallel()
	now := time.Now()
	sub := uuid.Must(uuid.NewV4())

	other, err := New(testKeys("a"), Config{
		Issuer:   "https://relay.example.test",
		Audience: "someone.else",
		TTL:      time.Hour,
	}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	tok, _, err := other.WithClock(func() time.Time { return now }).Issue(sub, "dev-1", []string{"x"}, 0)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	if _, err := newTestIssuer(t, "a", now).Verify(tok); err != errs.ErrInvalidClaims {
		t.Fatalf("got %v, want ErrInvalidClaims", err)
	}
}

// signRaw builds a token outside the issuer so malformed claim shapes can
// be exercised.
func signRaw(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	now := time.Now()
	base := jwt.MapClaims{
		"iss":       testConfig().Issuer,
		"aud":       testConfig().Audience,
		"sub":       uuid.Must(uuid.NewV4()).String(),
		"device_id": "dev-1",
		"scope":     []string{"x"},
		"jti":       uuid.Must(uuid.NewV4()).String(),
		"iat":       now.Unix(),
		"nbf":       now.Unix(),
		"exp":       now.Add(time.Hour).Unix(),
	}
	for k, v := range claims {
		base[k] = v
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, base)
	tok.Header["kid"] = "a"
	signed, err := tok.SignedString(keyA)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return signed
}

func TestVerify_MalformedClaims(t *testing.T) {
	t.Parallel()
	iss := newTestIssuer(t, "a", time.Now())

	cases := map[string]jwt.MapClaims{
		"non-uuid subject": {"sub": "not-a-uuid"},
		"empty device":     {"device_id": ""},
		"empty scope list": {"scope": []string{}},
		"empty scope item": {"scope": []string{"ok", ""}},
		"missing jti":      {"jti": ""},
	}
	for name, override := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := iss.Verify(signRaw(t, override)); err != errs.ErrMalformedClaims {
				t.Fatalf("got %v, want ErrMalformedClaims", err)
			}
		})
	}
}

func TestRequireScopes(t *testing.T) {
	t.Parallel()
	claims := &model.Claims{Scope: []string{"bearer.request", "history.sync"}}

	if err := RequireScopes(claims, "bearer.request"); err != nil {
		t.Fatalf("present scope rejected: %v", err)
	}
	err := RequireScopes(claims, "history.sync", "admin.write", "other.scope")
	if err == nil {
		t.Fatal("want missing-scope error")
	}
	if !strings.Contains(err.Error(), "admin.write") || !strings.Contains(err.Error(), "other.scope") {
		t.Fatalf("error must name missing scopes, got %q", err.Error())
	}
}
