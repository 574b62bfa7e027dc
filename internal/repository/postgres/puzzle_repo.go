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

// PuzzleRepo implements PuzzleRepository using PostgreSQL. Reads request
// only the columns the caller needs; in particular the solution column
// is fetched by GetSolution alone.
type PuzzleRepo struct{ db *DB }

// NewPuzzleRepo constructs a puzzle repository.
func NewPuzzleRepo(db *DB) *PuzzleRepo { return &PuzzleRepo{db: db} }

// GetSolution returns only the stored solution grid.
func (r *PuzzleRepo) GetSolution(ctx context.Context, id uuid.UUID) (model.Grid, error) {
	const q = `SELECT solution_grid FROM puzzles WHERE id=$1`
	var raw []byte
	if err := r.db.Pool.QueryRow(ctx, q, id).Scan(&raw); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	var g model.Grid
	if err := json.Unmarshal(raw, &g); err != nil {
		return nil, fmt.Errorf("decode solution grid: %w", err)
	}
	return g, nil
}

// GetByDate returns the caller-facing view for a UTC calendar day.
func (r *PuzzleRepo) GetByDate(ctx context.Context, day time.Time) (*model.PuzzleSummary, error) {
	const q = `
SELECT id, puzzle_date, clue_grid, difficulty
FROM puzzles WHERE puzzle_date=$1`
	var (
		s   model.PuzzleSummary
		raw []byte
	)
	row := r.db.Pool.QueryRow(ctx, q, day.UTC().Truncate(24*time.Hour))
	if err := row.Scan(&s.ID, &s.PuzzleDate, &raw, &s.Difficulty); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	if err := json.Unmarshal(raw, &s.Clues); err != nil {
		return nil, fmt.Errorf("decode clue grid: %w", err)
	}
	return &s, nil
}

// Exists reports whether a puzzle row is present.
func (r *PuzzleRepo) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	const q = `SELECT EXISTS(SELECT 1 FROM puzzles WHERE id=$1)`
	var ok bool
	if err := r.db.Pool.QueryRow(ctx, q, id).Scan(&ok); err != nil {
		return false, err
	}
	return ok, nil
}
