package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/kmatveev/daily-sudoku/internal/errs"
	"github.com/kmatveev/daily-sudoku/internal/grid"
	"github.com/kmatveev/daily-sudoku/internal/limiter"
	"github.com/kmatveev/daily-sudoku/internal/model"
	"github.com/kmatveev/daily-sudoku/internal/repository"
	"github.com/kmatveev/daily-sudoku/internal/retry"
)

// Admission limits: solution checks are liberal, submissions strict.
const (
	validateAttemptLimit = 30
	completeAttemptLimit = 5
)

// CompletionService validates submissions and finalizes completions.
// It never returns any field derived from the stored solution grid.
type CompletionService interface {
	// ValidateSolution compares a submitted grid against the stored
	// solution. token is the caller's user id, or client ip for guests.
	ValidateSolution(ctx context.Context, token string, puzzleID uuid.UUID, g model.Grid) (bool, error)
	// CompletePuzzle finalizes a completion and assigns a leaderboard
	// position. One completed record per (user, puzzle).
	CompletePuzzle(ctx context.Context, userID, puzzleID uuid.UUID, entries model.Grid, data []byte) (*model.CompletionResult, error)
	// TodayPuzzle serves the current day's puzzle without its solution.
	TodayPuzzle(ctx context.Context) (*model.PuzzleSummary, error)
	// Leaderboard returns the best entries for a puzzle ordered by rank.
	Leaderboard(ctx context.Context, puzzleID uuid.UUID, limit int) ([]model.LeaderboardEntry, error)
}

type CompletionServiceImpl struct {
	puzzles repository.PuzzleRepository
	board   repository.LeaderboardRepository
	timer   TimerService
	lim     limiter.Limiter
	clock   clockwork.Clock
	log     *zap.Logger

	retryAttempts int
	retryBase     time.Duration
}

// NewCompletionService constructs CompletionService.
func NewCompletionService(
	puzzles repository.PuzzleRepository,
	board repository.LeaderboardRepository,
	timer TimerService,
	lim limiter.Limiter,
	clock clockwork.Clock,
	log *zap.Logger,
) *CompletionServiceImpl {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &CompletionServiceImpl{
		puzzles:       puzzles,
		board:         board,
		timer:         timer,
		lim:           lim,
		clock:         clock,
		log:           log,
		retryAttempts: 3,
		retryBase:     100 * time.Millisecond,
	}
}

// ValidateSolution checks a full grid against the stored solution.
// Structural failures reject before any datastore access; the response
// carries only the boolean outcome, never the solution.
func (s *CompletionServiceImpl) ValidateSolution(ctx context.Context, token string, puzzleID uuid.UUID, g model.Grid) (bool, error) {
	if !grid.IsValidGrid(g) {
		return false, errs.ErrInvalidGrid
	}
	if err := s.lim.Check(ctx, "validate:"+token, validateAttemptLimit); err != nil {
		return false, err
	}
	sol, err := s.puzzles.GetSolution(ctx, puzzleID)
	if err != nil {
		return false, err
	}
	correct := grid.Equal(g, sol)
	s.log.Info("solution validated",
		zap.String("puzzle_id", puzzleID.String()),
		zap.Bool("correct", correct))
	return correct, nil
}

// CompletePuzzle runs the finalization pipeline: strict admission,
// structural check, timer submit (duplicate-guarded), rank insertion.
func (s *CompletionServiceImpl) CompletePuzzle(ctx context.Context, userID, puzzleID uuid.UUID, entries model.Grid, data []byte) (*model.CompletionResult, error) {
	if userID == uuid.Nil {
		return nil, errs.ErrUnauthorized
	}
	if err := s.lim.Check(ctx, "complete:"+userID.String(), completeAttemptLimit); err != nil {
		return nil, err
	}
	if !grid.IsValidGrid(entries) {
		return nil, errs.ErrInvalidGrid
	}

	sess, err := s.timer.Submit(ctx, userID, puzzleID, data)
	if err != nil {
		return nil, err
	}
	seconds := *sess.CompletionSeconds

	rank, err := s.insertRanked(ctx, userID, puzzleID, seconds)
	if err != nil {
		// the completion itself is recorded; surface the failed rank write
		return nil, fmt.Errorf("leaderboard insert: %w", err)
	}

	return &model.CompletionResult{
		CompletionSeconds: seconds,
		Rank:              rank,
		FlaggedForReview:  sess.FlaggedForReview,
	}, nil
}

// insertRanked assigns a rank at insertion time: the count of strictly
// faster entries, plus one. Ranks are never renumbered when later,
// faster completions arrive.
func (s *CompletionServiceImpl) insertRanked(ctx context.Context, userID, puzzleID uuid.UUID, seconds int64) (int, error) {
	faster, err := s.board.CountFaster(ctx, puzzleID, seconds)
	if err != nil {
		return 0, err
	}
	id, err := uuid.NewV4()
	if err != nil {
		return 0, err
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
			// lost a race with a concurrent insert for the same pair
			return nil
		}
		return insErr
	})
	if err != nil {
		return 0, err
	}
	return entry.Rank, nil
}

// TodayPuzzle serves the minimum column set for the current UTC day.
func (s *CompletionServiceImpl) TodayPuzzle(ctx context.Context) (*model.PuzzleSummary, error) {
	day := s.clock.Now().UTC().Truncate(24 * time.Hour)
	return s.puzzles.GetByDate(ctx, day)
}

// Leaderboard returns the top entries for a puzzle.
func (s *CompletionServiceImpl) Leaderboard(ctx context.Context, puzzleID uuid.UUID, limit int) ([]model.LeaderboardEntry, error) {
	if limit <= 0 || limit > 100 {
		limit = 100
	}
	return s.board.Top(ctx, puzzleID, limit)
}
