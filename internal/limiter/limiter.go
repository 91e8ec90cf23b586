// Package limiter defines interfaces and implementations for init-endpoint
// rate limiting, protecting tenant shared secrets from brute force.
package limiter

import (
	"context"
	"time"
)

// Limiter controls init attempts and temporary lockouts per (fax_user, ip).
type Limiter interface {
	// Allow reports whether init is currently allowed and optional retry-after.
	Allow(ctx context.Context, faxUser string, ipHash []byte) (bool, time.Duration, error)
	// Success resets counters after a successful init.
	Success(ctx context.Context, faxUser string, ipHash []byte) error
	// Failure records a failed attempt; may place a temporary block.
	Failure(ctx context.Context, faxUser string, ipHash []byte) (bool, time.Duration, error)
}
