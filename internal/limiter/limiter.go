// Package limiter defines interfaces and implementations for request
// admission control.
//
// Implementations in this package hold no cross-process state: counters
// live in the process that served the request. Under horizontal scaling
// the effective limit multiplies by instance count. The limiter is an
// admission-control approximation, not a source of truth.
package limiter

import "context"

// Limiter gates requests per token before expensive work is done.
type Limiter interface {
	// Check records one request for token and reports whether it is
	// admitted under limit. Returns errs.ErrRateLimited on rejection.
	Check(ctx context.Context, token string, limit int) error
}
