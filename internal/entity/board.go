package entity

import (
	"fmt"

	"github.com/rocketscienceinc/gomoku-backend/internal/apperror"
)

const (
	BoardSize  = 15
	TotalCells = BoardSize * BoardSize
	WinLength  = 5
)

type Color string

const (
	ColorNone  Color = ""
	ColorBlack Color = "black"
	ColorWhite Color = "white"
)

// Opponent returns the other stone colour.
func (that Color) Opponent() Color {
	switch that {
	case ColorBlack:
		return ColorWhite
	case ColorWhite:
		return ColorBlack
	default:
		return ColorNone
	}
}

func (that Color) IsValid() bool {
	return that == ColorBlack || that == ColorWhite
}

type Outcome int

const (
	OutcomeContinue Outcome = iota
	OutcomeWin
	OutcomeDraw
)

// directions are the four line axes through a stone: horizontal, vertical, diagonal ↘ and diagonal ↗.
var directions = [4][2]int{
	{0, 1},
	{1, 0},
	{1, 1},
	{-1, 1},
}

// Board is the 15x15 grid. It knows nothing about turns or time.
type Board struct {
	cells     [BoardSize][BoardSize]Color
	moveCount int
}

func NewBoard() *Board {
	return &Board{}
}

// Place puts a stone of the given colour at (row, col) and reports what the move did to the game.
func (that *Board) Place(row, col int, color Color) (Outcome, error) {
	if !color.IsValid() {
		return OutcomeContinue, fmt.Errorf("%w: unknown color %q", apperror.ErrInvalidMove, color)
	}

	if !InBounds(row, col) {
		return OutcomeContinue, fmt.Errorf("%w: coordinates (%d, %d) out of bounds", apperror.ErrInvalidMove, row, col)
	}

	if that.cells[row][col] != ColorNone {
		return OutcomeContinue, fmt.Errorf("%w: cell (%d, %d) is already occupied", apperror.ErrInvalidMove, row, col)
	}

	that.cells[row][col] = color
	that.moveCount++

	if that.isWinningMove(row, col, color) {
		return OutcomeWin, nil
	}

	if that.moveCount == TotalCells {
		return OutcomeDraw, nil
	}

	return OutcomeContinue, nil
}

func (that *Board) isWinningMove(row, col int, color Color) bool {
	for _, dir := range directions {
		count := 1 + that.countFrom(row, col, dir[0], dir[1], color) + that.countFrom(row, col, -dir[0], -dir[1], color)
		if count >= WinLength {
			return true
		}
	}

	return false
}

// countFrom counts contiguous stones of color starting next to (row, col) in direction (dr, dc).
func (that *Board) countFrom(row, col, dr, dc int, color Color) int {
	count := 0
	for r, c := row+dr, col+dc; InBounds(r, c) && that.cells[r][c] == color; r, c = r+dr, c+dc {
		count++
	}

	return count
}

func (that *Board) Cell(row, col int) Color {
	if !InBounds(row, col) {
		return ColorNone
	}

	return that.cells[row][col]
}

func (that *Board) MoveCount() int {
	return that.moveCount
}

// Snapshot returns a copy of the grid, row-major.
func (that *Board) Snapshot() [BoardSize][BoardSize]Color {
	return that.cells
}

func InBounds(row, col int) bool {
	return row >= 0 && row < BoardSize && col >= 0 && col < BoardSize
}
