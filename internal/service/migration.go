package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/kmatveev/daily-sudoku/internal/errs"
	"github.com/kmatveev/daily-sudoku/internal/guestcache"
	"github.com/kmatveev/daily-sudoku/internal/model"
	"github.com/kmatveev/daily-sudoku/internal/repository"
	"github.com/kmatveev/daily-sudoku/internal/retry"
)

// MigrationService reconciles guest-cached progress into server records
// once per sign-in. Losing guest state must never block sign-in, so
// Migrate always produces a summary: a failed branch degrades its count
// to zero instead of raising.
type MigrationService interface {
	Migrate(ctx context.Context, userID uuid.UUID, rawCache []byte) *model.MigrationResult
}

type MigrationServiceImpl struct {
	puzzles  repository.PuzzleRepository
	sessions repository.SessionRepository
	board    repository.LeaderboardRepository
	clock    clockwork.Clock
	log      *zap.Logger

	reviewThreshold int64
	retryAttempts   int
	retryBase       time.Duration
}

// NewMigrationService constructs MigrationService.
func NewMigrationService(
	puzzles repository.PuzzleRepository,
	sessions repository.SessionRepository,
	board repository.LeaderboardRepository,
	clock clockwork.Clock,
	log *zap.Logger,
) *MigrationServiceImpl {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &MigrationServiceImpl{
		puzzles:         puzzles,
		sessions:        sessions,
		board:           board,
		clock:           clock,
		log:             log,
		reviewThreshold: DefaultReviewThresholdSeconds,
		retryAttempts:   3,
		retryBase:       100 * time.Millisecond,
	}
}

// Migrate validates the cached blob and runs both branches
// independently. A schema violation is treated as no data. Duplicate
// invocations are made harmless by the existing-record checks, not by
// any lock.
func (s *MigrationServiceImpl) Migrate(ctx context.Context, userID uuid.UUID, rawCache []byte) *model.MigrationResult {
	res := &model.MigrationResult{}
	if userID == uuid.Nil {
		return res
	}

	st, err := guestcache.Parse(rawCache)
	if err != nil {
		s.log.Warn("guest cache rejected",
			zap.String("user_id", userID.String()),
			zap.Error(err))
		return res
	}

	if st.Completed != nil {
		count, rank := s.migrateCompleted(ctx, userID, st.Completed)
		res.CompletedCount = count
		res.HighestRank = rank
	}
	if st.InProgress != nil {
		res.InProgressCount = s.migrateInProgress(ctx, userID, st.InProgress)
	}

	s.log.Info("guest migration finished",
		zap.String("user_id", userID.String()),
		zap.Int("completed", res.CompletedCount),
		zap.Int("in_progress", res.InProgressCount),
		zap.Int("highest_rank", res.HighestRank))
	return res
}

// migrateCompleted inserts a synthetic completed session and its
// leaderboard entry. Returns (0, 0) on skip or failure.
func (s *MigrationServiceImpl) migrateCompleted(ctx context.Context, userID uuid.UUID, c *guestcache.Completed) (int, int) {
	if done, err := s.hasServerRecord(ctx, userID, c.PuzzleID); err != nil || done {
		if err != nil {
			s.log.Warn("completed migration lookup failed", zap.Error(err))
		}
		return 0, 0
	}
	exists, err := s.puzzles.Exists(ctx, c.PuzzleID)
	if err != nil || !exists {
		// a cached reference to a vanished puzzle is silently dropped
		return 0, 0
	}

	id, err := uuid.NewV4()
	if err != nil {
		return 0, 0
	}
	completedAt := c.CompletedAt.UTC()
	startedAt := completedAt.Add(-time.Duration(c.CompletionSeconds) * time.Second)
	seconds := c.CompletionSeconds

	var data []byte
	if c.Entries != nil {
		data, _ = json.Marshal(map[string]any{"entries": c.Entries})
	}

	// Migrated times originate from the client cache, the one path where
	// client-reported timing enters the system; the review flag applies
	// to them the same way it applies to live submissions.
	sess := &model.Session{
		ID:       id,
		UserID:   userID,
		PuzzleID: c.PuzzleID,
		// synthetic event log reconstructed from the cached scalar
		StartedAt: startedAt,
		TimerEvents: []model.TimerEvent{
			{Type: model.EventStart, Timestamp: startedAt},
			{Type: model.EventComplete, Timestamp: completedAt},
		},
		IsComplete:        true,
		CompletionSeconds: &seconds,
		FlaggedForReview:  seconds < s.reviewThreshold,
		CompletionData:    data,
		IsGuest:           true,
	}
	err = retry.Do(ctx, s.retryAttempts, s.retryBase, func(ctx context.Context) error {
		return s.sessions.Create(ctx, sess)
	})
	if err != nil {
		s.log.Error("completed migration failed",
			zap.String("user_id", userID.String()),
			zap.String("puzzle_id", c.PuzzleID.String()),
			zap.Error(err))
		return 0, 0
	}

	rank := s.insertMigratedRank(ctx, userID, c.PuzzleID, seconds)
	return 1, rank
}

// insertMigratedRank computes and stores the leaderboard position for a
// migrated completion. Returns 0 when no entry was created.
func (s *MigrationServiceImpl) insertMigratedRank(ctx context.Context, userID, puzzleID uuid.UUID, seconds int64) int {
	if taken, err := s.board.Exists(ctx, puzzleID, userID); err != nil || taken {
		return 0
	}
	faster, err := s.board.CountFaster(ctx, puzzleID, seconds)
	if err != nil {
		return 0
	}
	id, err := uuid.NewV4()
	if err != nil {
		return 0
	}
	entry := &model.LeaderboardEntry{
		ID:                id,
		PuzzleID:          puzzleID,
		UserID:            userID,
		Rank:              faster + 1,
		CompletionSeconds: seconds,
	}
	err = retry.Do(ctx, s.retryAttempts, s.retryBase, func(ctx context.Context) error {
		insErr := s.board.Insert(ctx, entry)
		if errors.Is(insErr, errs.ErrAlreadyExists) {
			return nil
		}
		return insErr
	})
	if err != nil {
		s.log.Error("migrated leaderboard insert failed",
			zap.String("puzzle_id", puzzleID.String()),
			zap.Error(err))
		return 0
	}
	return entry.Rank
}

// migrateInProgress inserts an incomplete session from cached state.
func (s *MigrationServiceImpl) migrateInProgress(ctx context.Context, userID uuid.UUID, p *guestcache.InProgress) int {
	if _, err := s.sessions.Get(ctx, userID, p.PuzzleID); err == nil {
		// the server already tracks this puzzle for the user
		return 0
	} else if !errors.Is(err, errs.ErrNotFound) {
		s.log.Warn("in-progress migration lookup failed", zap.Error(err))
		return 0
	}
	if exists, err := s.puzzles.Exists(ctx, p.PuzzleID); err != nil || !exists {
		return 0
	}

	id, err := uuid.NewV4()
	if err != nil {
		return 0
	}
	startedAt := p.StartedAt.UTC()
	evs := []model.TimerEvent{{Type: model.EventStart, Timestamp: startedAt}}
	if p.Paused {
		evs = append(evs, model.TimerEvent{Type: model.EventPause, Timestamp: s.clock.Now().UTC()})
	}

	var data []byte
	if p.Entries != nil {
		data, _ = json.Marshal(map[string]any{"entries": p.Entries})
	}

	sess := &model.Session{
		ID:             id,
		UserID:         userID,
		PuzzleID:       p.PuzzleID,
		StartedAt:      startedAt,
		TimerEvents:    evs,
		CompletionData: data,
		IsGuest:        true,
	}
	err = retry.Do(ctx, s.retryAttempts, s.retryBase, func(ctx context.Context) error {
		return s.sessions.Create(ctx, sess)
	})
	if err != nil {
		s.log.Error("in-progress migration failed",
			zap.String("user_id", userID.String()),
			zap.String("puzzle_id", p.PuzzleID.String()),
			zap.Error(err))
		return 0
	}
	return 1
}

// hasServerRecord reports whether a completed session already exists.
func (s *MigrationServiceImpl) hasServerRecord(ctx context.Context, userID, puzzleID uuid.UUID) (bool, error) {
	sess, err := s.sessions.Get(ctx, userID, puzzleID)
	if errors.Is(err, errs.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	// any existing row blocks the migration insert; a finished one is
	// the idempotency case, an unfinished one means live play wins
	return sess != nil, nil
}
