package domain

import "errors"

// ErrPlyOutOfRange is returned when jumping to a ply that does not exist.
var ErrPlyOutOfRange = errors.New("ply out of range")

// History is the sequence of boards of a game, one per ply, plus the pointer
// to the position currently shown and played from.
//
// History values are immutable: Play and JumpTo return new values and never
// write into storage reachable from the receiver.
type History struct {
    boards []Board
    ply    int
}

// Status summarizes the position at the pointer.
type Status struct {
    Winner Cell
    Next   Cell
    Line   Line
    Over   bool
}

// NewHistory returns a history holding only the empty board.
func NewHistory() History {
    return History{boards: []Board{{}}}
}

// Ply returns the pointer.
func (h History) Ply() int { return h.ply }

// Len returns the number of recorded plies including the empty board.
func (h History) Len() int {
    if len(h.boards) == 0 {
        return 1
    }
    return len(h.boards)
}

// At returns the board after ply moves.
func (h History) At(ply int) (Board, bool) {
    if ply < 0 || ply >= len(h.boards) {
        return Board{}, false
    }
    return h.boards[ply], true
}

// Current returns the board at the pointer.
func (h History) Current() Board {
    b, _ := h.At(h.ply)
    return b
}

// Turn returns the mark to move at the pointer: X on even plies, O on odd.
func (h History) Turn() Cell {
    if h.ply%2 == 0 {
        return X
    }
    return O
}

// Winner returns the winner of the board at the pointer.
func (h History) Winner() Cell { return Winner(h.Current()) }

// Status summarizes the position at the pointer.
func (h History) Status() Status {
    b := h.Current()
    if ln, ok := WinningLine(b); ok {
        return Status{Winner: b[ln[0]], Line: ln, Over: true}
    }
    return Status{Next: h.Turn()}
}

// Play applies m for the mover at the pointer. Any plies after the pointer are
// discarded before the new board is appended. On rejection h is returned as is.
func (h History) Play(m Move) (History, error) {
    if len(h.boards) == 0 {
        h = NewHistory()
    }
    next, err := Apply(h.Current(), m, h.Turn())
    if err != nil {
        return h, err
    }
    // cap the prefix so append always copies into fresh storage
    boards := append(h.boards[:h.ply+1:h.ply+1], next)
    return History{boards: boards, ply: len(boards) - 1}, nil
}

// JumpTo moves the pointer to an existing ply. Out of range plies are a caller
// error and leave h unchanged.
func (h History) JumpTo(ply int) (History, error) {
    if ply < 0 || ply >= h.Len() {
        return h, ErrPlyOutOfRange
    }
    h.ply = ply
    return h, nil
}
