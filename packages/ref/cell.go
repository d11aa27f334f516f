package ref

type Cell struct {
	Grid   string
	Row    int
	Col    int
	AbsRow bool
	AbsCol bool
}

// NewCell returns a reference to the zero-based row and col of grid.
func NewCell(grid string, row, col int) Cell {
	return Cell{Grid: grid, Row: row, Col: col}
}

func (c Cell) reference()       {}
func (c Cell) Kind() Kind       { return KindCell }
func (c Cell) GridName() string { return c.Grid }

func (c Cell) WithGrid(grid string) Reference {
	c.Grid = grid
	return c
}

// Equal ignores the absolute markers.
func (c Cell) Equal(o Cell) bool {
	return c.Grid == o.Grid && c.Row == o.Row && c.Col == o.Col
}

func (c Cell) local() string {
	return dollar(c.AbsCol) + ColumnName(c.Col) + dollar(c.AbsRow) + RowName(c.Row)
}

func (c Cell) Format(relativeTo string) string {
	return gridPrefix(c.Grid, relativeTo) + c.local()
}

func (c Cell) String() string { return c.Format("") }

func (c Cell) Bounds() Range {
	return Range{Grid: c.Grid, Start: c, End: c}
}

func (c Cell) Clamp(bound Range) Reference { return c.clamp(bound) }

func (c Cell) clamp(bound Range) Cell {
	c.Row = clampInt(c.Row, bound.Start.Row, bound.End.Row)
	c.Col = clampInt(c.Col, bound.Start.Col, bound.End.Col)
	return c
}

func (c Cell) Move(dRow, dCol int, toGrid string) (Reference, error) {
	return c.MoveCell(dRow, dCol, toGrid)
}

func (c Cell) MoveCell(dRow, dCol int, toGrid string) (Cell, error) {
	m := c
	if !m.AbsRow {
		m.Row += dRow
	}
	if !m.AbsCol {
		m.Col += dCol
	}
	if toGrid != "" {
		m.Grid = toGrid
	}
	if m.Row < 0 || m.Row >= MaxRows || m.Col < 0 || m.Col >= MaxCols {
		return c, &OutOfRangeError{Ref: c.String(), Row: m.Row, Col: m.Col}
	}
	return m, nil
}

// Offset shifts the cell ignoring absolute markers, as used when addressing
// elements of a spilled array relative to its anchor.
func (c Cell) Offset(dRow, dCol int) Cell {
	c.Row += dRow
	c.Col += dCol
	return c
}

func (c Cell) In(bound Range) bool {
	return c.Row >= bound.Start.Row && c.Row <= bound.End.Row &&
		c.Col >= bound.Start.Col && c.Col <= bound.End.Col
}

func (c Cell) Up(bound Range, wrap bool) Cell {
	c = c.clamp(bound)
	if c.Row > bound.Start.Row {
		c.Row--
		return c
	}
	if !wrap {
		return c
	}
	c.Row = bound.End.Row
	if c.Col > bound.Start.Col {
		c.Col--
	} else {
		c.Col = bound.End.Col
	}
	return c
}

func (c Cell) Down(bound Range, wrap bool) Cell {
	c = c.clamp(bound)
	if c.Row < bound.End.Row {
		c.Row++
		return c
	}
	if !wrap {
		return c
	}
	c.Row = bound.Start.Row
	if c.Col < bound.End.Col {
		c.Col++
	} else {
		c.Col = bound.Start.Col
	}
	return c
}

func (c Cell) Left(bound Range, wrap bool) Cell {
	c = c.clamp(bound)
	if c.Col > bound.Start.Col {
		c.Col--
		return c
	}
	if !wrap {
		return c
	}
	c.Col = bound.End.Col
	if c.Row > bound.Start.Row {
		c.Row--
	} else {
		c.Row = bound.End.Row
	}
	return c
}

func (c Cell) Right(bound Range, wrap bool) Cell {
	c = c.clamp(bound)
	if c.Col < bound.End.Col {
		c.Col++
		return c
	}
	if !wrap {
		return c
	}
	c.Col = bound.Start.Col
	if c.Row < bound.End.Row {
		c.Row++
	} else {
		c.Row = bound.Start.Row
	}
	return c
}

func (c Cell) Top(bound Range) Cell {
	c = c.clamp(bound)
	c.Row = bound.Start.Row
	return c
}

func (c Cell) Bottom(bound Range) Cell {
	c = c.clamp(bound)
	c.Row = bound.End.Row
	return c
}

func (c Cell) Leftmost(bound Range) Cell {
	c = c.clamp(bound)
	c.Col = bound.Start.Col
	return c
}

func (c Cell) Rightmost(bound Range) Cell {
	c = c.clamp(bound)
	c.Col = bound.End.Col
	return c
}

func (c Cell) PageUp(bound Range, page int, isEmpty func(Cell) bool) Cell {
	return c.jump(bound, -1, 0, page, isEmpty)
}

func (c Cell) PageDown(bound Range, page int, isEmpty func(Cell) bool) Cell {
	return c.jump(bound, 1, 0, page, isEmpty)
}

func (c Cell) PageLeft(bound Range, page int, isEmpty func(Cell) bool) Cell {
	return c.jump(bound, 0, -1, page, isEmpty)
}

func (c Cell) PageRight(bound Range, page int, isEmpty func(Cell) bool) Cell {
	return c.jump(bound, 0, 1, page, isEmpty)
}

// jump walks at most limit steps (unbounded when limit <= 0) and stops early
// at a content boundary: the last filled cell of a run, or the first filled
// cell after a gap. Leaving a run from its last cell crosses the gap.
func (c Cell) jump(bound Range, dRow, dCol, limit int, isEmpty func(Cell) bool) Cell {
	cur := c.clamp(bound)
	for i := 0; limit <= 0 || i < limit; i++ {
		next := cur.Offset(dRow, dCol)
		if !next.In(bound) {
			return cur
		}
		curEmpty, nextEmpty := isEmpty(cur), isEmpty(next)
		if !curEmpty && nextEmpty && i > 0 {
			return cur
		}
		if curEmpty && !nextEmpty {
			return next
		}
		cur = next
	}
	return cur
}
