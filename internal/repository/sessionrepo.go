package repository

import (
	"context"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/kmatveev/daily-sudoku/internal/model"
)

// SessionRepository stores per-(user, puzzle) timing and completion
// state. Rows are unique on that pair and never hard-deleted here.
type SessionRepository interface {
	// Get loads the session for (user, puzzle); errs.ErrNotFound when absent.
	Get(ctx context.Context, userID, puzzleID uuid.UUID) (*model.Session, error)
	// Create inserts a session. A concurrent duplicate insert on
	// (user, puzzle) is absorbed, not surfaced: the first row wins.
	Create(ctx context.Context, s *model.Session) error
	// AppendEvent atomically appends one entry to the event log.
	AppendEvent(ctx context.Context, userID, puzzleID uuid.UUID, ev model.TimerEvent) error
	// Complete finalizes the session: sets the authoritative scalar,
	// the review flag and completion data, and appends the complete event.
	Complete(ctx context.Context, userID, puzzleID uuid.UUID, seconds int64, flagged bool, data []byte, at time.Time) error
}
