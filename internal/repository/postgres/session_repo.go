package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"

	"github.com/kmatveev/daily-sudoku/internal/errs"
	"github.com/kmatveev/daily-sudoku/internal/model"
)

// SessionRepo implements SessionRepository using PostgreSQL.
//
// Concurrency notes: callers do read-then-write idempotency checks
// without locks. The unique (user_id, puzzle_id) constraint plus the
// ON CONFLICT DO NOTHING insert bound a concurrent double-start to one
// row; the is_complete=false guard on Complete bounds a concurrent
// double-submit to one finalization. The remaining race windows are
// accepted (a rare duplicate log event is a display anomaly).
type SessionRepo struct{ db *DB }

// NewSessionRepo constructs a session repository.
func NewSessionRepo(db *DB) *SessionRepo { return &SessionRepo{db: db} }

// Get loads the session for (user, puzzle).
func (r *SessionRepo) Get(ctx context.Context, userID, puzzleID uuid.UUID) (*model.Session, error) {
	const q = `
SELECT id, user_id, puzzle_id, started_at, timer_events, is_complete,
       completion_seconds, flagged_for_review, completion_data, is_guest
FROM sessions WHERE user_id=$1 AND puzzle_id=$2`
	row := r.db.Pool.QueryRow(ctx, q, userID, puzzleID)

	var (
		s      model.Session
		rawEvs []byte
	)
	err := row.Scan(&s.ID, &s.UserID, &s.PuzzleID, &s.StartedAt, &rawEvs, &s.IsComplete,
		&s.CompletionSeconds, &s.FlaggedForReview, &s.CompletionData, &s.IsGuest)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	if err := json.Unmarshal(rawEvs, &s.TimerEvents); err != nil {
		return nil, fmt.Errorf("decode timer events: %w", err)
	}
	return &s, nil
}

// Create inserts a session row. A concurrent duplicate on
// (user, puzzle) is absorbed by ON CONFLICT DO NOTHING: the first
// writer's started_at survives.
func (r *SessionRepo) Create(ctx context.Context, s *model.Session) error {
	evs, err := json.Marshal(s.TimerEvents)
	if err != nil {
		return fmt.Errorf("encode timer events: %w", err)
	}
	const q = `
INSERT INTO sessions
  (id, user_id, puzzle_id, started_at, timer_events, is_complete,
   completion_seconds, flagged_for_review, completion_data, is_guest)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
ON CONFLICT (user_id, puzzle_id) DO NOTHING`
	_, err = r.db.Pool.Exec(ctx, q,
		s.ID, s.UserID, s.PuzzleID, s.StartedAt, evs, s.IsComplete,
		s.CompletionSeconds, s.FlaggedForReview, s.CompletionData, s.IsGuest)
	return err
}

// AppendEvent atomically appends one entry to the jsonb event log.
func (r *SessionRepo) AppendEvent(ctx context.Context, userID, puzzleID uuid.UUID, ev model.TimerEvent) error {
	raw, err := json.Marshal([]model.TimerEvent{ev})
	if err != nil {
		return fmt.Errorf("encode timer event: %w", err)
	}
	const q = `
UPDATE sessions SET timer_events = timer_events || $3::jsonb
WHERE user_id=$1 AND puzzle_id=$2`
	tag, err := r.db.Pool.Exec(ctx, q, userID, puzzleID, raw)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

// Complete finalizes the session in a single statement. The
// is_complete=false guard makes a second finalization a no-op at the
// datastore level.
func (r *SessionRepo) Complete(ctx context.Context, userID, puzzleID uuid.UUID, seconds int64, flagged bool, data []byte, at time.Time) error {
	raw, err := json.Marshal([]model.TimerEvent{{Type: model.EventComplete, Timestamp: at}})
	if err != nil {
		return fmt.Errorf("encode timer event: %w", err)
	}
	const q = `
UPDATE sessions
SET is_complete=true, completion_seconds=$3, flagged_for_review=$4,
    completion_data=$5, timer_events = timer_events || $6::jsonb
WHERE user_id=$1 AND puzzle_id=$2 AND is_complete=false`
	tag, err := r.db.Pool.Exec(ctx, q, userID, puzzleID, seconds, flagged, data, raw)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrDuplicateSubmission
	}
	return nil
}
