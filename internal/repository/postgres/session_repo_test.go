package postgres

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/kmatveev/daily-sudoku/internal/errs"
	"github.com/kmatveev/daily-sudoku/internal/model"
)

func newDB(t *testing.T) (*DB, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	return &DB{Pool: mock}, mock
}

func TestSessionRepo_Get_OK(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewSessionRepo(db)

	ctx := context.Background()
	userID := uuid.Must(uuid.NewV4())
	puzzleID := uuid.Must(uuid.NewV4())
	sessionID := uuid.Must(uuid.NewV4())
	started := time.Date(2026, 8, 30, 9, 0, 0, 0, time.UTC)

	evs, err := json.Marshal([]model.TimerEvent{{Type: model.EventStart, Timestamp: started}})
	require.NoError(t, err)

	mock.ExpectQuery(`SELECT id, user_id, puzzle_id, started_at, timer_events, is_complete`).
		WithArgs(userID, puzzleID).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "user_id", "puzzle_id", "started_at", "timer_events", "is_complete",
			"completion_seconds", "flagged_for_review", "completion_data", "is_guest",
		}).AddRow(sessionID, userID, puzzleID, started, evs, false, (*int64)(nil), false, []byte(nil), false))

	s, err := r.Get(ctx, userID, puzzleID)
	require.NoError(t, err)
	require.Equal(t, started, s.StartedAt)
	require.Len(t, s.TimerEvents, 1)
	require.Equal(t, model.EventStart, s.TimerEvents[0].Type)
	require.False(t, s.IsComplete)
	require.Nil(t, s.CompletionSeconds)
}

func TestSessionRepo_Get_NotFound(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewSessionRepo(db)

	userID := uuid.Must(uuid.NewV4())
	puzzleID := uuid.Must(uuid.NewV4())

	mock.ExpectQuery(`SELECT id, user_id, puzzle_id, started_at, timer_events, is_complete`).
		WithArgs(userID, puzzleID).
		WillReturnError(pgx.ErrNoRows)

	_, err := r.Get(context.Background(), userID, puzzleID)
	require.ErrorIs(t, err, errs.ErrNotFound)
}

func TestSessionRepo_Create_OK(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewSessionRepo(db)

	started := time.Date(2026, 8, 30, 9, 0, 0, 0, time.UTC)
	s := &model.Session{
		ID:          uuid.Must(uuid.NewV4()),
		UserID:      uuid.Must(uuid.NewV4()),
		PuzzleID:    uuid.Must(uuid.NewV4()),
		StartedAt:   started,
		TimerEvents: []model.TimerEvent{{Type: model.EventStart, Timestamp: started}},
	}
	evs, err := json.Marshal(s.TimerEvents)
	require.NoError(t, err)

	mock.ExpectExec(`INSERT INTO sessions`).
		WithArgs(s.ID, s.UserID, s.PuzzleID, s.StartedAt, evs, false,
			(*int64)(nil), false, []byte(nil), false).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, r.Create(context.Background(), s))
}

func TestSessionRepo_AppendEvent(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewSessionRepo(db)

	userID := uuid.Must(uuid.NewV4())
	puzzleID := uuid.Must(uuid.NewV4())
	at := time.Date(2026, 8, 30, 9, 5, 0, 0, time.UTC)
	ev := model.TimerEvent{Type: model.EventPause, Timestamp: at}
	raw, err := json.Marshal([]model.TimerEvent{ev})
	require.NoError(t, err)

	mock.ExpectExec(`UPDATE sessions SET timer_events = timer_events \|\| \$3::jsonb`).
		WithArgs(userID, puzzleID, raw).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, r.AppendEvent(context.Background(), userID, puzzleID, ev))
}

func TestSessionRepo_AppendEvent_NoSession(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewSessionRepo(db)

	userID := uuid.Must(uuid.NewV4())
	puzzleID := uuid.Must(uuid.NewV4())
	at := time.Date(2026, 8, 30, 9, 5, 0, 0, time.UTC)
	ev := model.TimerEvent{Type: model.EventPause, Timestamp: at}
	raw, err := json.Marshal([]model.TimerEvent{ev})
	require.NoError(t, err)

	mock.ExpectExec(`UPDATE sessions SET timer_events = timer_events \|\| \$3::jsonb`).
		WithArgs(userID, puzzleID, raw).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err = r.AppendEvent(context.Background(), userID, puzzleID, ev)
	require.ErrorIs(t, err, errs.ErrNotFound)
}

func TestSessionRepo_Complete_GuardsSecondFinalization(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewSessionRepo(db)

	userID := uuid.Must(uuid.NewV4())
	puzzleID := uuid.Must(uuid.NewV4())
	at := time.Date(2026, 8, 30, 9, 10, 0, 0, time.UTC)
	raw, err := json.Marshal([]model.TimerEvent{{Type: model.EventComplete, Timestamp: at}})
	require.NoError(t, err)

	mock.ExpectExec(`UPDATE sessions`).
		WithArgs(userID, puzzleID, int64(600), false, []byte(`{}`), raw).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(`UPDATE sessions`).
		WithArgs(userID, puzzleID, int64(600), false, []byte(`{}`), raw).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	require.NoError(t, r.Complete(context.Background(), userID, puzzleID, 600, false, []byte(`{}`), at))
	err = r.Complete(context.Background(), userID, puzzleID, 600, false, []byte(`{}`), at)
	require.ErrorIs(t, err, errs.ErrDuplicateSubmission)
}
