package domain

// Line is a set of three board indices that wins when owned by one mark.
type Line [3]int

// Lines lists every winning line in scan order:
// per-plane rows, columns and diagonals, then pillars, then the four space diagonals.
var Lines = buildLines()

func buildLines() []Line {
    flat := [8]Line{
        // rows
        {0, 1, 2}, {3, 4, 5}, {6, 7, 8},
        // cols
        {0, 3, 6}, {1, 4, 7}, {2, 5, 8},
        // diags
        {0, 4, 8}, {2, 4, 6},
    }
    lines := make([]Line, 0, 37)
    for p := 0; p < Size; p++ {
        off := p * PlaneCells
        for _, ln := range flat {
            lines = append(lines, Line{ln[0] + off, ln[1] + off, ln[2] + off})
        }
    }
    for i := 0; i < PlaneCells; i++ {
        lines = append(lines, Line{i, i + PlaneCells, i + 2*PlaneCells})
    }
    // corner to opposite corner through the center cell (13)
    lines = append(lines,
        Line{0, 13, 26},
        Line{2, 13, 24},
        Line{6, 13, 20},
        Line{8, 13, 18},
    )
    return lines
}

// WinningLine returns the first line fully owned by a single mark.
func WinningLine(b Board) (Line, bool) {
    for _, ln := range Lines {
        a := b[ln[0]]
        if a != Empty && a == b[ln[1]] && a == b[ln[2]] {
            return ln, true
        }
    }
    return Line{}, false
}

// Winner returns the mark owning a winning line, or Empty.
func Winner(b Board) Cell {
    ln, ok := WinningLine(b)
    if !ok {
        return Empty
    }
    return b[ln[0]]
}
