package ref

// span is a reference's extent along one axis.
type span struct {
	lo, hi         int
	loOpen, hiOpen bool
}

func insertSpan(s span, at, count, limit int) (span, bool) {
	if !s.loOpen && s.lo >= at {
		s.lo += count
	}
	if !s.hiOpen && s.hi >= at {
		s.hi += count
	}
	return s, s.hi < limit && s.lo < limit
}

// deleteSpan removes [at, at+count). Endpoints inside the band collapse onto
// its edge; the span is gone when nothing outside the band remains.
func deleteSpan(s span, at, count int) (span, bool) {
	end := at + count - 1
	if !s.loOpen {
		switch {
		case s.lo > end:
			s.lo -= count
		case s.lo >= at:
			s.lo = at
		}
	}
	if !s.hiOpen {
		switch {
		case s.hi > end:
			s.hi -= count
		case s.hi >= at:
			s.hi = at - 1
		}
	}
	return s, s.lo <= s.hi
}

type axis int

const (
	rowAxis axis = iota
	colAxis
)

func getSpan(r Reference, ax axis) (span, bool) {
	switch x := r.(type) {
	case Cell:
		if ax == rowAxis {
			return span{lo: x.Row, hi: x.Row}, true
		}
		return span{lo: x.Col, hi: x.Col}, true
	case Range:
		if ax == rowAxis {
			return span{x.Start.Row, x.End.Row, x.Open&OpenStartRow != 0, x.Open&OpenEndRow != 0}, true
		}
		return span{x.Start.Col, x.End.Col, x.Open&OpenStartCol != 0, x.Open&OpenEndCol != 0}, true
	case Row:
		return span{lo: x.Index, hi: x.Index}, ax == rowAxis
	case RowRange:
		return span{lo: x.Start.Index, hi: x.End.Index}, ax == rowAxis
	case Col:
		return span{lo: x.Index, hi: x.Index}, ax == colAxis
	case ColRange:
		return span{lo: x.Start.Index, hi: x.End.Index}, ax == colAxis
	}
	return span{}, false
}

func setSpan(r Reference, ax axis, s span) Reference {
	switch x := r.(type) {
	case Cell:
		if ax == rowAxis {
			x.Row = s.lo
		} else {
			x.Col = s.lo
		}
		return x
	case Range:
		if ax == rowAxis {
			x.Start.Row, x.End.Row = s.lo, s.hi
		} else {
			x.Start.Col, x.End.Col = s.lo, s.hi
		}
		return x
	case Row:
		x.Index = s.lo
		return x
	case RowRange:
		x.Start.Index, x.End.Index = s.lo, s.hi
		return x
	case Col:
		x.Index = s.lo
		return x
	case ColRange:
		x.Start.Index, x.End.Index = s.lo, s.hi
		return x
	}
	return r
}

func insertAlong(r Reference, ax axis, at, count, limit int) (Reference, error) {
	s, ok := getSpan(r, ax)
	if !ok || count <= 0 {
		return r, nil
	}
	moved, ok := insertSpan(s, at, count, limit)
	if !ok {
		e := &OutOfRangeError{Ref: r.String()}
		if ax == rowAxis {
			e.Row = moved.hi
		} else {
			e.Col = moved.hi
		}
		return r, e
	}
	return setSpan(r, ax, moved), nil
}

func deleteAlong(r Reference, ax axis, at, count int) (Reference, bool) {
	s, ok := getSpan(r, ax)
	if !ok || count <= 0 {
		return r, false
	}
	left, ok := deleteSpan(s, at, count)
	if !ok {
		return r, true
	}
	return setSpan(r, ax, left), false
}

// InsertRows shifts the reference for count rows inserted before row at. The
// caller decides whether the reference lives on the affected grid.
func InsertRows(r Reference, at, count int) (Reference, error) {
	return insertAlong(r, rowAxis, at, count, MaxRows)
}

func InsertCols(r Reference, at, count int) (Reference, error) {
	return insertAlong(r, colAxis, at, count, MaxCols)
}

// DeleteRows narrows or shifts the reference for the removal of rows
// [at, at+count). deleted is true when the reference lay entirely inside the
// removed band.
func DeleteRows(r Reference, at, count int) (out Reference, deleted bool) {
	return deleteAlong(r, rowAxis, at, count)
}

func DeleteCols(r Reference, at, count int) (out Reference, deleted bool) {
	return deleteAlong(r, colAxis, at, count)
}
