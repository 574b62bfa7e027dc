// Package guestcache parses and validates the client-side cached state
// blob handed over at sign-in. The blob is untrusted input: every field
// is checked against the schema below before any of it is consumed, and
// a violation rejects the whole payload, never a part of it.
package guestcache

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/kmatveev/daily-sudoku/internal/errs"
	"github.com/kmatveev/daily-sudoku/internal/grid"
	"github.com/kmatveev/daily-sudoku/internal/model"
)

// Completed describes a puzzle the guest finished before signing in.
type Completed struct {
	PuzzleID          uuid.UUID
	CompletedAt       time.Time
	CompletionSeconds int64
	Entries           model.Grid // optional; full grid when present
}

// InProgress describes a puzzle the guest had underway.
type InProgress struct {
	PuzzleID  uuid.UUID
	StartedAt time.Time
	Paused    bool
	Entries   model.Grid // optional; partial grid when present
}

// State is the validated guest cache. Either branch may be nil.
type State struct {
	Completed  *Completed
	InProgress *InProgress
}

type rawCompleted struct {
	PuzzleID          string    `json:"puzzleId"`
	CompletedAt       time.Time `json:"completedAt"`
	CompletionSeconds int64     `json:"completionTimeSeconds"`
	Entries           [][]int   `json:"entries,omitempty"`
}

type rawInProgress struct {
	PuzzleID  string    `json:"puzzleId"`
	StartedAt time.Time `json:"startedAt"`
	Paused    bool      `json:"paused,omitempty"`
	Entries   [][]int   `json:"entries,omitempty"`
}

type rawState struct {
	Completed  *rawCompleted  `json:"completed,omitempty"`
	InProgress *rawInProgress `json:"inProgress,omitempty"`
}

// Parse validates raw against the guest-cache schema. Any violation
// returns errs.ErrSchemaInvalid; callers treat that as "no data".
func Parse(raw []byte) (*State, error) {
	if len(raw) == 0 {
		return &State{}, nil
	}
	var rs rawState
	if err := json.Unmarshal(raw, &rs); err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrSchemaInvalid, err)
	}

	st := &State{}
	if rs.Completed != nil {
		c, err := rs.Completed.validate()
		if err != nil {
			return nil, err
		}
		st.Completed = c
	}
	if rs.InProgress != nil {
		p, err := rs.InProgress.validate()
		if err != nil {
			return nil, err
		}
		st.InProgress = p
	}
	return st, nil
}

func (rc *rawCompleted) validate() (*Completed, error) {
	id, err := uuid.FromString(rc.PuzzleID)
	if err != nil || id == uuid.Nil {
		return nil, fmt.Errorf("%w: completed.puzzleId", errs.ErrSchemaInvalid)
	}
	if rc.CompletedAt.IsZero() {
		return nil, fmt.Errorf("%w: completed.completedAt", errs.ErrSchemaInvalid)
	}
	if rc.CompletionSeconds <= 0 {
		return nil, fmt.Errorf("%w: completed.completionTimeSeconds", errs.ErrSchemaInvalid)
	}
	if rc.Entries != nil && !grid.IsValidGrid(model.Grid(rc.Entries)) {
		return nil, fmt.Errorf("%w: completed.entries", errs.ErrSchemaInvalid)
	}
	return &Completed{
		PuzzleID:          id,
		CompletedAt:       rc.CompletedAt,
		CompletionSeconds: rc.CompletionSeconds,
		Entries:           model.Grid(rc.Entries),
	}, nil
}

func (rp *rawInProgress) validate() (*InProgress, error) {
	id, err := uuid.FromString(rp.PuzzleID)
	if err != nil || id == uuid.Nil {
		return nil, fmt.Errorf("%w: inProgress.puzzleId", errs.ErrSchemaInvalid)
	}
	if rp.StartedAt.IsZero() {
		return nil, fmt.Errorf("%w: inProgress.startedAt", errs.ErrSchemaInvalid)
	}
	if rp.Entries != nil && !grid.IsValidPartialGrid(model.Grid(rp.Entries)) {
		return nil, fmt.Errorf("%w: inProgress.entries", errs.ErrSchemaInvalid)
	}
	return &InProgress{
		PuzzleID:  id,
		StartedAt: rp.StartedAt,
		Paused:    rp.Paused,
		Entries:   model.Grid(rp.Entries),
	}, nil
}
