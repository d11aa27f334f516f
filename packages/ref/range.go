package ref

import "iter"

// Open marks range endpoints that were written as a bare row or column token.
// An open axis spans the full extent of that axis and never shifts.
type Open uint8

const (
	OpenStartRow Open = 1 << iota // start written as a bare column
	OpenEndRow                    // end written as a bare column
	OpenStartCol                  // start written as a bare row
	OpenEndCol                    // end written as a bare row
)

// Range is a rectangle of cells. It is always normalized so that Start is the
// top-left and End the bottom-right corner.
type Range struct {
	Grid  string
	Start Cell
	End   Cell
	Open  Open
}

func NewRange(a, b Cell) Range {
	return Range{Grid: a.Grid, Start: a, End: b}.normalize()
}

func (r Range) normalize() Range {
	if r.Start.Row > r.End.Row {
		r.Start.Row, r.End.Row = r.End.Row, r.Start.Row
		r.Start.AbsRow, r.End.AbsRow = r.End.AbsRow, r.Start.AbsRow
		r.Open = swapBits(r.Open, OpenStartRow, OpenEndRow)
	}
	if r.Start.Col > r.End.Col {
		r.Start.Col, r.End.Col = r.End.Col, r.Start.Col
		r.Start.AbsCol, r.End.AbsCol = r.End.AbsCol, r.Start.AbsCol
		r.Open = swapBits(r.Open, OpenStartCol, OpenEndCol)
	}
	r.Start.Grid, r.End.Grid = r.Grid, r.Grid
	return r
}

func swapBits(o, a, b Open) Open {
	hasA, hasB := o&a != 0, o&b != 0
	o &^= a | b
	if hasA {
		o |= b
	}
	if hasB {
		o |= a
	}
	return o
}

func (r Range) reference()       {}
func (r Range) Kind() Kind       { return KindRange }
func (r Range) GridName() string { return r.Grid }

func (r Range) WithGrid(grid string) Reference {
	r.Grid = grid
	r.Start.Grid, r.End.Grid = grid, grid
	return r
}

func (r Range) Equal(o Range) bool {
	return r.Grid == o.Grid && r.Open == o.Open &&
		r.Start.Row == o.Start.Row && r.Start.Col == o.Start.Col &&
		r.End.Row == o.End.Row && r.End.Col == o.End.Col
}

func (r Range) endpoint(c Cell, rowOpen, colOpen bool) string {
	switch {
	case rowOpen:
		return dollar(c.AbsCol) + ColumnName(c.Col)
	case colOpen:
		return dollar(c.AbsRow) + RowName(c.Row)
	}
	return c.local()
}

func (r Range) Format(relativeTo string) string {
	return gridPrefix(r.Grid, relativeTo) +
		r.endpoint(r.Start, r.Open&OpenStartRow != 0, r.Open&OpenStartCol != 0) + ":" +
		r.endpoint(r.End, r.Open&OpenEndRow != 0, r.Open&OpenEndCol != 0)
}

func (r Range) String() string { return r.Format("") }

func (r Range) Bounds() Range { return r }

func (r Range) Rows() int { return r.End.Row - r.Start.Row + 1 }
func (r Range) Cols() int { return r.End.Col - r.Start.Col + 1 }
func (r Range) Size() int { return r.Rows() * r.Cols() }

// Contains reports whether the cell lies inside the rectangle. Grids are not
// compared.
func (r Range) Contains(c Cell) bool { return c.In(r) }

func (r Range) ContainsRange(o Range) bool {
	return o.Start.In(r) && o.End.In(r)
}

func (r Range) Intersects(o Range) bool {
	return r.Start.Row <= o.End.Row && o.Start.Row <= r.End.Row &&
		r.Start.Col <= o.End.Col && o.Start.Col <= r.End.Col
}

func (r Range) Clamp(bound Range) Reference { return r.ClampRange(bound) }

// ClampRange projects both corners into bound. The result has no open
// endpoints.
func (r Range) ClampRange(bound Range) Range {
	r.Start = r.Start.clamp(bound)
	r.End = r.End.clamp(bound)
	r.Open = 0
	return r
}

func (r Range) Move(dRow, dCol int, toGrid string) (Reference, error) {
	return r.MoveRange(dRow, dCol, toGrid)
}

func (r Range) MoveRange(dRow, dCol int, toGrid string) (Range, error) {
	m := r
	sr, sc, er, ec := dRow, dCol, dRow, dCol
	if r.Open&OpenStartRow != 0 {
		sr = 0
	}
	if r.Open&OpenEndRow != 0 {
		er = 0
	}
	if r.Open&OpenStartCol != 0 {
		sc = 0
	}
	if r.Open&OpenEndCol != 0 {
		ec = 0
	}
	var err error
	if m.Start, err = r.Start.MoveCell(sr, sc, toGrid); err != nil {
		return r, &OutOfRangeError{Ref: r.String(), Row: r.Start.Row + sr, Col: r.Start.Col + sc}
	}
	if m.End, err = r.End.MoveCell(er, ec, toGrid); err != nil {
		return r, &OutOfRangeError{Ref: r.String(), Row: r.End.Row + er, Col: r.End.Col + ec}
	}
	if toGrid != "" {
		m.Grid = toGrid
	}
	return m.normalize(), nil
}

// Cells yields every cell row by row.
func (r Range) Cells() iter.Seq[Cell] {
	return func(yield func(Cell) bool) {
		for row := r.Start.Row; row <= r.End.Row; row++ {
			for col := r.Start.Col; col <= r.End.Col; col++ {
				if !yield(Cell{Grid: r.Grid, Row: row, Col: col}) {
					return
				}
			}
		}
	}
}

// Row is a whole row.
type Row struct {
	Grid  string
	Index int
	Abs   bool
}

func (r Row) reference()       {}
func (r Row) Kind() Kind       { return KindRow }
func (r Row) GridName() string { return r.Grid }

func (r Row) WithGrid(grid string) Reference {
	r.Grid = grid
	return r
}

func (r Row) Format(relativeTo string) string {
	return gridPrefix(r.Grid, relativeTo) + dollar(r.Abs) + RowName(r.Index)
}

func (r Row) String() string { return r.Format("") }

func (r Row) Bounds() Range {
	return Range{
		Grid:  r.Grid,
		Start: Cell{Grid: r.Grid, Row: r.Index, Col: 0},
		End:   Cell{Grid: r.Grid, Row: r.Index, Col: MaxCols - 1},
		Open:  OpenStartCol | OpenEndCol,
	}
}

func (r Row) Clamp(bound Range) Reference {
	r.Index = clampInt(r.Index, bound.Start.Row, bound.End.Row)
	return r
}

func (r Row) Move(dRow, _ int, toGrid string) (Reference, error) {
	m := r
	if !m.Abs {
		m.Index += dRow
	}
	if toGrid != "" {
		m.Grid = toGrid
	}
	if m.Index < 0 || m.Index >= MaxRows {
		return r, &OutOfRangeError{Ref: r.String(), Row: m.Index}
	}
	return m, nil
}

// Col is a whole column.
type Col struct {
	Grid  string
	Index int
	Abs   bool
}

func (c Col) reference()       {}
func (c Col) Kind() Kind       { return KindCol }
func (c Col) GridName() string { return c.Grid }

func (c Col) WithGrid(grid string) Reference {
	c.Grid = grid
	return c
}

func (c Col) Format(relativeTo string) string {
	return gridPrefix(c.Grid, relativeTo) + dollar(c.Abs) + ColumnName(c.Index)
}

func (c Col) String() string { return c.Format("") }

func (c Col) Bounds() Range {
	return Range{
		Grid:  c.Grid,
		Start: Cell{Grid: c.Grid, Row: 0, Col: c.Index},
		End:   Cell{Grid: c.Grid, Row: MaxRows - 1, Col: c.Index},
		Open:  OpenStartRow | OpenEndRow,
	}
}

func (c Col) Clamp(bound Range) Reference {
	c.Index = clampInt(c.Index, bound.Start.Col, bound.End.Col)
	return c
}

func (c Col) Move(_, dCol int, toGrid string) (Reference, error) {
	m := c
	if !m.Abs {
		m.Index += dCol
	}
	if toGrid != "" {
		m.Grid = toGrid
	}
	if m.Index < 0 || m.Index >= MaxCols {
		return c, &OutOfRangeError{Ref: c.String(), Col: m.Index}
	}
	return m, nil
}

// RowRange is a band of whole rows, written 1:3.
type RowRange struct {
	Grid  string
	Start Row
	End   Row
}

func NewRowRange(a, b Row) RowRange {
	return RowRange{Grid: a.Grid, Start: a, End: b}.normalize()
}

func (r RowRange) normalize() RowRange {
	if r.Start.Index > r.End.Index {
		r.Start, r.End = r.End, r.Start
	}
	r.Start.Grid, r.End.Grid = r.Grid, r.Grid
	return r
}

func (r RowRange) reference()       {}
func (r RowRange) Kind() Kind       { return KindRowRange }
func (r RowRange) GridName() string { return r.Grid }

func (r RowRange) WithGrid(grid string) Reference {
	r.Grid = grid
	r.Start.Grid, r.End.Grid = grid, grid
	return r
}

func (r RowRange) Format(relativeTo string) string {
	return gridPrefix(r.Grid, relativeTo) +
		dollar(r.Start.Abs) + RowName(r.Start.Index) + ":" +
		dollar(r.End.Abs) + RowName(r.End.Index)
}

func (r RowRange) String() string { return r.Format("") }

func (r RowRange) Bounds() Range {
	return Range{
		Grid:  r.Grid,
		Start: Cell{Grid: r.Grid, Row: r.Start.Index, Col: 0},
		End:   Cell{Grid: r.Grid, Row: r.End.Index, Col: MaxCols - 1},
		Open:  OpenStartCol | OpenEndCol,
	}
}

func (r RowRange) Clamp(bound Range) Reference {
	r.Start = r.Start.Clamp(bound).(Row)
	r.End = r.End.Clamp(bound).(Row)
	return r
}

func (r RowRange) Move(dRow, _ int, toGrid string) (Reference, error) {
	start, err := r.Start.Move(dRow, 0, toGrid)
	if err != nil {
		return r, err
	}
	end, err := r.End.Move(dRow, 0, toGrid)
	if err != nil {
		return r, err
	}
	m := RowRange{Grid: r.Grid, Start: start.(Row), End: end.(Row)}
	if toGrid != "" {
		m.Grid = toGrid
	}
	return m.normalize(), nil
}

// ColRange is a band of whole columns, written A:C.
type ColRange struct {
	Grid  string
	Start Col
	End   Col
}

func NewColRange(a, b Col) ColRange {
	return ColRange{Grid: a.Grid, Start: a, End: b}.normalize()
}

func (r ColRange) normalize() ColRange {
	if r.Start.Index > r.End.Index {
		r.Start, r.End = r.End, r.Start
	}
	r.Start.Grid, r.End.Grid = r.Grid, r.Grid
	return r
}

func (r ColRange) reference()       {}
func (r ColRange) Kind() Kind       { return KindColRange }
func (r ColRange) GridName() string { return r.Grid }

func (r ColRange) WithGrid(grid string) Reference {
	r.Grid = grid
	r.Start.Grid, r.End.Grid = grid, grid
	return r
}

func (r ColRange) Format(relativeTo string) string {
	return gridPrefix(r.Grid, relativeTo) +
		dollar(r.Start.Abs) + ColumnName(r.Start.Index) + ":" +
		dollar(r.End.Abs) + ColumnName(r.End.Index)
}

func (r ColRange) String() string { return r.Format("") }

func (r ColRange) Bounds() Range {
	return Range{
		Grid:  r.Grid,
		Start: Cell{Grid: r.Grid, Row: 0, Col: r.Start.Index},
		End:   Cell{Grid: r.Grid, Row: MaxRows - 1, Col: r.End.Index},
		Open:  OpenStartRow | OpenEndRow,
	}
}

func (r ColRange) Clamp(bound Range) Reference {
	r.Start = r.Start.Clamp(bound).(Col)
	r.End = r.End.Clamp(bound).(Col)
	return r
}

func (r ColRange) Move(_, dCol int, toGrid string) (Reference, error) {
	start, err := r.Start.Move(0, dCol, toGrid)
	if err != nil {
		return r, err
	}
	end, err := r.End.Move(0, dCol, toGrid)
	if err != nil {
		return r, err
	}
	m := ColRange{Grid: r.Grid, Start: start.(Col), End: end.(Col)}
	if toGrid != "" {
		m.Grid = toGrid
	}
	return m.normalize(), nil
}
