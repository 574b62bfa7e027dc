// Package model defines domain entities used by services and repositories.
package model

import (
	"time"

	"github.com/gofrs/uuid/v5"
)

// Grid is a sudoku grid in row-major order. 0 marks a blank cell. Shape
// is not enforced by the type: client-supplied grids are validated
// structurally before use (see the grid package).
type Grid [][]int

// Difficulty labels a daily puzzle.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// Puzzle is the immutable daily record. Solution is never serialized to callers.
type Puzzle struct {
	ID         uuid.UUID
	PuzzleDate time.Time // UTC calendar day
	Clues      Grid      // givens, 0 = blank
	Solution   Grid      // full 1-9 grid, server-side only
	Difficulty Difficulty
	CreatedAt  time.Time
}

// Tokens collects issued access tokens.
type Tokens struct {
	AccessToken string
	ExpiresAt   time.Time // access token expiry (for diagnostics)
}

// PuzzleSummary is the caller-facing view of a puzzle. It never
// carries the solution grid.
type PuzzleSummary struct {
	ID         uuid.UUID
	PuzzleDate time.Time
	Clues      Grid
	Difficulty Difficulty
}

// TimerEventType enumerates entries of the session event log.
type TimerEventType string

const (
	EventStart    TimerEventType = "start"
	EventPause    TimerEventType = "pause"
	EventResume   TimerEventType = "resume"
	EventComplete TimerEventType = "complete"
)

// TimerEvent is one entry of the append-only session event log.
// The log is diagnostic/replay data; CompletionSeconds is the
// authoritative value for ranking.
type TimerEvent struct {
	Type      TimerEventType `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
}

// Session tracks timing and completion state for one (user, puzzle) pair.
type Session struct {
	ID                uuid.UUID
	UserID            uuid.UUID
	PuzzleID          uuid.UUID
	StartedAt         time.Time // server clock, set exactly once
	TimerEvents       []TimerEvent
	IsComplete        bool
	CompletionSeconds *int64 // nil until completed
	FlaggedForReview  bool   // implausibly fast completion
	CompletionData    []byte // opaque blob: entries, pencil marks, solve path
	IsGuest           bool   // provenance: created by guest migration
}

// LeaderboardEntry is one ranked completion. Rank is fixed at insertion
// time and never renumbered when later, faster completions arrive.
type LeaderboardEntry struct {
	ID                uuid.UUID
	PuzzleID          uuid.UUID
	UserID            uuid.UUID
	Rank              int
	CompletionSeconds int64
	CreatedAt         time.Time
}

// User represents an account. Passwords are stored as Argon2id hashes only.
type User struct {
	ID        uuid.UUID
	Username  string // unique
	PwdHash   []byte // Argon2id(password, SaltAuth)
	SaltAuth  []byte // per-user auth salt
	CreatedAt time.Time
}

// CompletionResult summarizes a finalized submission.
type CompletionResult struct {
	CompletionSeconds int64
	Rank              int
	FlaggedForReview  bool
}

// MigrationResult summarizes one guest-state reconciliation run. It is
// always produced, even when individual branches fail.
type MigrationResult struct {
	CompletedCount  int
	InProgressCount int
	HighestRank     int // 0 when no leaderboard entry was created
}
