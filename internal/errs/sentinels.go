// Package errs contains sentinel errors used across layers for stable error mapping.
package errs

import "errors"

// Common sentinels across repo/service layers.
var (
	// ErrNotFound indicates the requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrUnauthorized indicates a missing or unresolvable caller identity.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrRateLimited indicates the request was rejected by admission control.
	ErrRateLimited = errors.New("rate limited")

	// ErrAlreadyExists indicates a unique constraint violation (e.g., username taken).
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidGrid indicates a structurally invalid submission grid.
	ErrInvalidGrid = errors.New("invalid solution format")

	// ErrDuplicateSubmission indicates a completion already recorded for (user, puzzle).
	ErrDuplicateSubmission = errors.New("duplicate submission")

	// ErrTimerNotStarted indicates completion was submitted without a started timer.
	ErrTimerNotStarted = errors.New("timer not started")

	// ErrSchemaInvalid indicates a malformed guest-cache payload.
	ErrSchemaInvalid = errors.New("schema invalid")
)
