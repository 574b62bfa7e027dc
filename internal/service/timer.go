package service

import (
	"context"
	"errors"

	"github.com/gofrs/uuid/v5"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/kmatveev/daily-sudoku/internal/errs"
	"github.com/kmatveev/daily-sudoku/internal/model"
	"github.com/kmatveev/daily-sudoku/internal/repository"
)

// DefaultReviewThresholdSeconds marks completion times below it for
// review. Flagged sessions are recorded, not rejected.
const DefaultReviewThresholdSeconds int64 = 120

// TimerService owns the server-authoritative solve timer, keyed by
// (user, puzzle). All timestamps come from the injected clock; nothing
// client-reported enters the timing arithmetic.
//
// State machine: NOT_STARTED -> ACTIVE -> {PAUSED <-> ACTIVE} -> COMPLETE.
// COMPLETE is terminal.
type TimerService interface {
	// Start creates the session on first call and returns the existing
	// one unchanged on repeats, so a page refresh never resets the clock.
	Start(ctx context.Context, userID, puzzleID uuid.UUID) (*model.Session, error)
	// Pause appends a pause event; errs.ErrNotFound without a session.
	Pause(ctx context.Context, userID, puzzleID uuid.UUID) (*model.Session, error)
	// Resume appends a resume event, creating the session first when the
	// client lost its state (recorded as start followed by resume).
	Resume(ctx context.Context, userID, puzzleID uuid.UUID) (*model.Session, error)
	// Elapsed returns the running wall time in seconds, or nil when
	// there is no session or it is already complete.
	Elapsed(ctx context.Context, userID, puzzleID uuid.UUID) (*int64, error)
	// Submit finalizes the session: computes the authoritative
	// completion time, applies the review flag and stores the opaque
	// completion data. No grid correctness check happens here.
	Submit(ctx context.Context, userID, puzzleID uuid.UUID, data []byte) (*model.Session, error)
}

type TimerServiceImpl struct {
	sessions        repository.SessionRepository
	clock           clockwork.Clock
	log             *zap.Logger
	reviewThreshold int64 // seconds
}

// NewTimerService constructs TimerService. A reviewThreshold <= 0
// selects the default.
func NewTimerService(sessions repository.SessionRepository, clock clockwork.Clock, log *zap.Logger, reviewThreshold int64) *TimerServiceImpl {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if log == nil {
		log = zap.NewNop()
	}
	if reviewThreshold <= 0 {
		reviewThreshold = DefaultReviewThresholdSeconds
	}
	return &TimerServiceImpl{sessions: sessions, clock: clock, log: log, reviewThreshold: reviewThreshold}
}

// Start is idempotent: an existing started session is returned as-is
// with no event appended.
func (s *TimerServiceImpl) Start(ctx context.Context, userID, puzzleID uuid.UUID) (*model.Session, error) {
	if userID == uuid.Nil {
		return nil, errs.ErrUnauthorized
	}
	existing, err := s.sessions.Get(ctx, userID, puzzleID)
	switch {
	case err == nil:
		s.log.Info("timer already started",
			zap.String("user_id", userID.String()),
			zap.String("puzzle_id", puzzleID.String()))
		return existing, nil
	case errors.Is(err, errs.ErrNotFound):
		return s.create(ctx, userID, puzzleID, model.EventStart)
	default:
		return nil, err
	}
}

// Pause records a pause event. Pausing does not subtract time from the
// final completion time: the scalar computed at submit is wall time
// since start, and the event log stays diagnostic only.
func (s *TimerServiceImpl) Pause(ctx context.Context, userID, puzzleID uuid.UUID) (*model.Session, error) {
	if userID == uuid.Nil {
		return nil, errs.ErrUnauthorized
	}
	sess, err := s.sessions.Get(ctx, userID, puzzleID)
	if err != nil {
		return nil, err
	}
	if sess.IsComplete {
		// terminal state, nothing to pause
		return sess, nil
	}
	return s.append(ctx, sess, model.EventPause)
}

// Resume records a resume event. A missing session is created first:
// resume-without-start is deliberate leniency for client state loss.
func (s *TimerServiceImpl) Resume(ctx context.Context, userID, puzzleID uuid.UUID) (*model.Session, error) {
	if userID == uuid.Nil {
		return nil, errs.ErrUnauthorized
	}
	sess, err := s.sessions.Get(ctx, userID, puzzleID)
	switch {
	case errors.Is(err, errs.ErrNotFound):
		return s.create(ctx, userID, puzzleID, model.EventStart, model.EventResume)
	case err != nil:
		return nil, err
	}
	if sess.IsComplete {
		return sess, nil
	}
	return s.append(ctx, sess, model.EventResume)
}

// Elapsed reports seconds since start. Post-completion it returns nil:
// callers must read CompletionSeconds instead.
func (s *TimerServiceImpl) Elapsed(ctx context.Context, userID, puzzleID uuid.UUID) (*int64, error) {
	if userID == uuid.Nil {
		return nil, nil
	}
	sess, err := s.sessions.Get(ctx, userID, puzzleID)
	if errors.Is(err, errs.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if sess.IsComplete {
		return nil, nil
	}
	secs := int64(s.clock.Now().Sub(sess.StartedAt).Seconds())
	return &secs, nil
}

// Submit finalizes the session.
func (s *TimerServiceImpl) Submit(ctx context.Context, userID, puzzleID uuid.UUID, data []byte) (*model.Session, error) {
	if userID == uuid.Nil {
		return nil, errs.ErrUnauthorized
	}
	sess, err := s.sessions.Get(ctx, userID, puzzleID)
	if errors.Is(err, errs.ErrNotFound) {
		return nil, errs.ErrTimerNotStarted
	}
	if err != nil {
		return nil, err
	}
	if sess.IsComplete {
		return nil, errs.ErrDuplicateSubmission
	}

	now := s.clock.Now().UTC()
	seconds := int64(now.Sub(sess.StartedAt).Seconds())
	flagged := seconds < s.reviewThreshold
	if err := s.sessions.Complete(ctx, userID, puzzleID, seconds, flagged, data, now); err != nil {
		return nil, err
	}

	sess.IsComplete = true
	sess.CompletionSeconds = &seconds
	sess.FlaggedForReview = flagged
	sess.CompletionData = data
	sess.TimerEvents = append(sess.TimerEvents, model.TimerEvent{Type: model.EventComplete, Timestamp: now})

	s.log.Info("session completed",
		zap.String("user_id", userID.String()),
		zap.String("puzzle_id", puzzleID.String()),
		zap.Int64("completion_seconds", seconds),
		zap.Bool("flagged_for_review", flagged))
	return sess, nil
}

func (s *TimerServiceImpl) create(ctx context.Context, userID, puzzleID uuid.UUID, types ...model.TimerEventType) (*model.Session, error) {
	id, err := uuid.NewV4()
	if err != nil {
		return nil, err
	}
	now := s.clock.Now().UTC()
	evs := make([]model.TimerEvent, 0, len(types))
	for _, t := range types {
		evs = append(evs, model.TimerEvent{Type: t, Timestamp: now})
	}
	sess := &model.Session{
		ID:          id,
		UserID:      userID,
		PuzzleID:    puzzleID,
		StartedAt:   now,
		TimerEvents: evs,
	}
	// A concurrent create for the same pair is absorbed by the store's
	// conflict clause; the first writer's started_at wins.
	if err := s.sessions.Create(ctx, sess); err != nil {
		return nil, err
	}
	s.log.Info("timer started",
		zap.String("user_id", userID.String()),
		zap.String("puzzle_id", puzzleID.String()))
	return sess, nil
}

func (s *TimerServiceImpl) append(ctx context.Context, sess *model.Session, t model.TimerEventType) (*model.Session, error) {
	ev := model.TimerEvent{Type: t, Timestamp: s.clock.Now().UTC()}
	if err := s.sessions.AppendEvent(ctx, sess.UserID, sess.PuzzleID, ev); err != nil {
		return nil, err
	}
	sess.TimerEvents = append(sess.TimerEvents, ev)
	return sess, nil
}
