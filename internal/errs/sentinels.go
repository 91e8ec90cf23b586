// Package errs contains sentinel errors used across layers for stable error mapping.
package errs

import "errors"

// Crypto failures. Tamper, wrong passphrase and malformed envelopes all
// collapse to ErrCrypto so callers cannot be used as a decryption oracle.
var ErrCrypto = errors.New("crypto failure")

// Token failures.
var (
	// ErrTokenExpired indicates the token is outside its validity window.
	ErrTokenExpired = errors.New("token expired")

	// ErrUnknownKey indicates the token header names a kid with no registered public key.
	ErrUnknownKey = errors.New("unknown signing key")

	// ErrInvalidSignature indicates the signature does not verify under the named key.
	ErrInvalidSignature = errors.New("invalid token signature")

	// ErrInvalidClaims indicates issuer/audience or other registered claims failed validation.
	ErrInvalidClaims = errors.New("invalid token claims")

	// ErrMalformedClaims indicates a claim is present but of the wrong shape
	// (non-UUID subject, empty device id, empty scope list).
	ErrMalformedClaims = errors.New("malformed token claims")

	// ErrInsufficientScope indicates the token lacks a required scope.
	ErrInsufficientScope = errors.New("insufficient scope")
)

// Service-level failures.
var (
	// ErrNotFound indicates the requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrUnauthorized indicates failed authentication/authorization.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrRateLimited indicates temporary init lock due to rate limiting.
	ErrRateLimited = errors.New("rate limited")

	// ErrUpstream indicates a non-200 response or missing field from the upstream API.
	ErrUpstream = errors.New("upstream failure")

	// ErrParse indicates an unresolvable reseller identifier.
	ErrParse = errors.New("unresolvable reseller identifier")
)

// Client-side failures.
var (
	// ErrAccessTokenMissing indicates no local access token has been stored yet.
	ErrAccessTokenMissing = errors.New("access token missing")

	// ErrRetryExhausted indicates the retry budget was spent without success.
	ErrRetryExhausted = errors.New("retry exhausted")
)
