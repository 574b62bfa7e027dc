package repository

import (
	"context"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/kmatveev/daily-sudoku/internal/model"
)

// PuzzleRepository reads the daily puzzle table. Puzzles are created by
// an external generation process; this subsystem never writes them.
// Every method fetches only the columns its caller needs.
type PuzzleRepository interface {
	// GetSolution returns only the solution grid for a puzzle.
	GetSolution(ctx context.Context, id uuid.UUID) (model.Grid, error)
	// GetByDate returns the caller-facing view for a UTC calendar day.
	GetByDate(ctx context.Context, day time.Time) (*model.PuzzleSummary, error)
	// Exists reports whether a puzzle row is present.
	Exists(ctx context.Context, id uuid.UUID) (bool, error)
}
