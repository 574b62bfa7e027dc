// Package grid holds the structural and rule contracts for 9x9 sudoku
// grids. Rule checks are independent of any stored solution so a client
// can self-check candidates without the server revealing the answer.
package grid

import "github.com/kmatveev/daily-sudoku/internal/model"

// Size is the board edge length.
const Size = 9

// IsValidGrid reports whether g is exactly 9x9 with every cell in [1,9].
// Blanks are not permitted: this is the contract for a submitted solution.
func IsValidGrid(g model.Grid) bool {
	return validShape(g, 1)
}

// IsValidPartialGrid reports whether g is exactly 9x9 with every cell in
// [0,9], 0 meaning blank. Used for clue grids and in-progress state.
func IsValidPartialGrid(g model.Grid) bool {
	return validShape(g, 0)
}

func validShape(g model.Grid, min int) bool {
	if len(g) != Size {
		return false
	}
	for _, row := range g {
		if len(row) != Size {
			return false
		}
		for _, v := range row {
			if v < min || v > 9 {
				return false
			}
		}
	}
	return true
}

// IsValidSudoku reports whether g violates no sudoku rule: no value
// repeats within a row, column, or 3x3 box. Blanks (0) are ignored, so
// the check applies to partial grids as well. Structural validity is a
// precondition.
func IsValidSudoku(g model.Grid) bool {
	// rows
	for r := 0; r < Size; r++ {
		m := 0
		for c := 0; c < Size; c++ {
			v := g[r][c]
			if v == 0 {
				continue
			}
			bit := 1 << v
			if m&bit != 0 {
				return false
			}
			m |= bit
		}
	}
	// cols
	for c := 0; c < Size; c++ {
		m := 0
		for r := 0; r < Size; r++ {
			v := g[r][c]
			if v == 0 {
				continue
			}
			bit := 1 << v
			if m&bit != 0 {
				return false
			}
			m |= bit
		}
	}
	// boxes
	for br := 0; br < 3; br++ {
		for bc := 0; bc < 3; bc++ {
			m := 0
			for dr := 0; dr < 3; dr++ {
				for dc := 0; dc < 3; dc++ {
					v := g[br*3+dr][bc*3+dc]
					if v == 0 {
						continue
					}
					bit := 1 << v
					if m&bit != 0 {
						return false
					}
					m |= bit
				}
			}
		}
	}
	return true
}

// Equal reports cell-by-cell equality of two grids. Comparison is by
// value only; two distinct instances with identical cells are equal.
func Equal(a, b model.Grid) bool {
	if len(a) != len(b) {
		return false
	}
	for r := range a {
		if len(a[r]) != len(b[r]) {
			return false
		}
		for c := range a[r] {
			if a[r][c] != b[r][c] {
				return false
			}
		}
	}
	return true
}
