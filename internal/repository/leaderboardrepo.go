package repository

import (
	"context"

	"github.com/gofrs/uuid/v5"

	"github.com/kmatveev/daily-sudoku/internal/model"
)

// LeaderboardRepository stores ranked completions, at most one per
// (puzzle, user). Ranks are fixed at insertion time.
type LeaderboardRepository interface {
	// Insert adds an entry; errs.ErrAlreadyExists on a (puzzle, user) duplicate.
	Insert(ctx context.Context, e *model.LeaderboardEntry) error
	// CountFaster returns the number of entries strictly faster than seconds.
	CountFaster(ctx context.Context, puzzleID uuid.UUID, seconds int64) (int, error)
	// Exists reports whether the user already holds an entry for the puzzle.
	Exists(ctx context.Context, puzzleID, userID uuid.UUID) (bool, error)
	// Top returns the best entries for a puzzle ordered by rank.
	Top(ctx context.Context, puzzleID uuid.UUID, limit int) ([]model.LeaderboardEntry, error)
}
