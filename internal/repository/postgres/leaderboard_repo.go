package postgres

import (
	"context"

	"github.com/gofrs/uuid/v5"

	"github.com/kmatveev/daily-sudoku/internal/errs"
	"github.com/kmatveev/daily-sudoku/internal/model"
)

// LeaderboardRepo implements LeaderboardRepository using PostgreSQL.
type LeaderboardRepo struct{ db *DB }

// NewLeaderboardRepo constructs a leaderboard repository.
func NewLeaderboardRepo(db *DB) *LeaderboardRepo { return &LeaderboardRepo{db: db} }

// Insert adds a ranked entry. The unique (puzzle_id, user_id) index
// rejects a second entry for the same user.
func (r *LeaderboardRepo) Insert(ctx context.Context, e *model.LeaderboardEntry) error {
	const q = `
INSERT INTO leaderboard_entries (id, puzzle_id, user_id, rank, completion_seconds)
VALUES ($1,$2,$3,$4,$5)`
	_, err := r.db.Pool.Exec(ctx, q, e.ID, e.PuzzleID, e.UserID, e.Rank, e.CompletionSeconds)
	if isUniqueViolation(err) {
		return errs.ErrAlreadyExists
	}
	return err
}

// CountFaster returns how many entries beat the given time strictly.
func (r *LeaderboardRepo) CountFaster(ctx context.Context, puzzleID uuid.UUID, seconds int64) (int, error) {
	const q = `
SELECT COUNT(*) FROM leaderboard_entries
WHERE puzzle_id=$1 AND completion_seconds<$2`
	var n int
	if err := r.db.Pool.QueryRow(ctx, q, puzzleID, seconds).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// Exists reports whether the user already holds an entry for the puzzle.
func (r *LeaderboardRepo) Exists(ctx context.Context, puzzleID, userID uuid.UUID) (bool, error) {
	const q = `SELECT EXISTS(SELECT 1 FROM leaderboard_entries WHERE puzzle_id=$1 AND user_id=$2)`
	var ok bool
	if err := r.db.Pool.QueryRow(ctx, q, puzzleID, userID).Scan(&ok); err != nil {
		return false, err
	}
	return ok, nil
}

// Top returns the best entries for a puzzle ordered by rank.
func (r *LeaderboardRepo) Top(ctx context.Context, puzzleID uuid.UUID, limit int) ([]model.LeaderboardEntry, error) {
	const q = `
SELECT id, puzzle_id, user_id, rank, completion_seconds, created_at
FROM leaderboard_entries
WHERE puzzle_id=$1
ORDER BY rank ASC
LIMIT $2`
	rows, err := r.db.Pool.Query(ctx, q, puzzleID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.LeaderboardEntry
	for rows.Next() {
		var e model.LeaderboardEntry
		if err := rows.Scan(&e.ID, &e.PuzzleID, &e.UserID, &e.Rank, &e.CompletionSeconds, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
