package domain

import "errors"

// Cell represents a board cell state.
type Cell uint8

const (
    Empty Cell = iota
    X
    O
)

func (c Cell) String() string {
    switch c {
    case X:
        return "X"
    case O:
        return "O"
    default:
        return ""
    }
}

const (
    // Size is the edge length of the cube.
    Size = 3
    // PlaneCells is the number of cells in one plane.
    PlaneCells = Size * Size
    // Cells is the number of cells on the whole board.
    Cells = Size * PlaneCells
)

// Board is the flat 3x3x3 board, plane-major then row-major.
type Board [Cells]Cell

// Move addresses one cell by plane (0 top .. 2 bottom), row and column.
type Move struct {
    Plane int
    Row   int
    Col   int
}

// Errors returned by domain operations.
var (
    ErrOutOfBounds = errors.New("out of bounds")
    ErrOccupied    = errors.New("cell occupied")
    ErrGameOver    = errors.New("game over")
)

// IsRejected reports whether err is a routine move rejection rather than a failure.
func IsRejected(err error) bool {
    return errors.Is(err, ErrOccupied) || errors.Is(err, ErrGameOver) || errors.Is(err, ErrOutOfBounds)
}

// Valid reports whether every coordinate is within 0..2.
func (m Move) Valid() bool {
    return inRange(m.Plane) && inRange(m.Row) && inRange(m.Col)
}

// Index maps the move to its global board index.
func (m Move) Index() int {
    return m.Plane*PlaneCells + m.Row*Size + m.Col
}

// MoveAt is the inverse of Move.Index.
func MoveAt(idx int) Move {
    return Move{Plane: idx / PlaneCells, Row: idx % PlaneCells / Size, Col: idx % Size}
}

func inRange(v int) bool { return v >= 0 && v < Size }

// Plane returns the nine cells of plane p.
func (b Board) Plane(p int) [PlaneCells]Cell {
    var out [PlaneCells]Cell
    copy(out[:], b[p*PlaneCells:(p+1)*PlaneCells])
    return out
}

// Apply places mover's mark at m and returns the resulting board.
// The input board is left untouched; a finished game or an occupied cell rejects the move.
func Apply(b Board, m Move, mover Cell) (Board, error) {
    if !m.Valid() {
        return b, ErrOutOfBounds
    }
    if Winner(b) != Empty {
        return b, ErrGameOver
    }
    idx := m.Index()
    if b[idx] != Empty {
        return b, ErrOccupied
    }
    b[idx] = mover
    return b, nil
}
