package ref

import (
	"strings"
)

type endpoint struct {
	kind   Kind // KindCell, KindRow or KindCol
	row    int
	col    int
	absRow bool
	absCol bool
}

// Parse reads any reference shape:
//
//	A1  $A$1  Grid!B2  'My Grid'!B2  A1:C3  B2:D  A:C  1:3  A  5
func Parse(s string) (Reference, error) {
	grid, body, err := splitGrid(s)
	if err != nil {
		return nil, err
	}
	parts := strings.Split(body, ":")
	switch len(parts) {
	case 1:
		ep, err := parseEndpoint(s, parts[0])
		if err != nil {
			return nil, err
		}
		switch ep.kind {
		case KindRow:
			return Row{Grid: grid, Index: ep.row, Abs: ep.absRow}, nil
		case KindCol:
			return Col{Grid: grid, Index: ep.col, Abs: ep.absCol}, nil
		}
		return Cell{Grid: grid, Row: ep.row, Col: ep.col, AbsRow: ep.absRow, AbsCol: ep.absCol}, nil
	case 2:
		a, err := parseEndpoint(s, parts[0])
		if err != nil {
			return nil, err
		}
		b, err := parseEndpoint(s, parts[1])
		if err != nil {
			return nil, err
		}
		return combine(grid, a, b), nil
	}
	return nil, &ParseError{Input: s, Reason: "too many ':' separators"}
}

func combine(grid string, a, b endpoint) Reference {
	if a.kind == KindCol && b.kind == KindCol {
		return NewColRange(
			Col{Grid: grid, Index: a.col, Abs: a.absCol},
			Col{Grid: grid, Index: b.col, Abs: b.absCol},
		)
	}
	if a.kind == KindRow && b.kind == KindRow {
		return NewRowRange(
			Row{Grid: grid, Index: a.row, Abs: a.absRow},
			Row{Grid: grid, Index: b.row, Abs: b.absRow},
		)
	}
	r := Range{Grid: grid}
	r.Start, r.Open = a.cell(grid, true, r.Open)
	r.End, r.Open = b.cell(grid, false, r.Open)
	return r.normalize()
}

// cell widens a bare row or column endpoint to the edge of the missing axis.
func (e endpoint) cell(grid string, start bool, open Open) (Cell, Open) {
	c := Cell{Grid: grid, Row: e.row, Col: e.col, AbsRow: e.absRow, AbsCol: e.absCol}
	switch e.kind {
	case KindCol:
		if start {
			c.Row = 0
			open |= OpenStartRow
		} else {
			c.Row = MaxRows - 1
			open |= OpenEndRow
		}
	case KindRow:
		if start {
			c.Col = 0
			open |= OpenStartCol
		} else {
			c.Col = MaxCols - 1
			open |= OpenEndCol
		}
	}
	return c, open
}

// ParseCell parses s and fails unless it names a single cell.
func ParseCell(s string) (Cell, error) {
	r, err := Parse(s)
	if err != nil {
		return Cell{}, err
	}
	c, ok := r.(Cell)
	if !ok {
		return Cell{}, &ParseError{Input: s, Reason: "not a cell reference"}
	}
	return c, nil
}

// ParseRange accepts a cell or any rectangular shape and returns its bounds.
func ParseRange(s string) (Range, error) {
	r, err := Parse(s)
	if err != nil {
		return Range{}, err
	}
	return r.Bounds(), nil
}

func splitGrid(s string) (grid, body string, err error) {
	if s == "" {
		return "", "", &ParseError{Input: s, Reason: "empty"}
	}
	if s[0] == '\'' {
		var b strings.Builder
		for i := 1; i < len(s); i++ {
			if s[i] != '\'' {
				b.WriteByte(s[i])
				continue
			}
			if i+1 < len(s) && s[i+1] == '\'' {
				b.WriteByte('\'')
				i++
				continue
			}
			if i+1 >= len(s) || s[i+1] != '!' || b.Len() == 0 {
				return "", "", &ParseError{Input: s, Reason: "malformed quoted grid name"}
			}
			return b.String(), s[i+2:], nil
		}
		return "", "", &ParseError{Input: s, Reason: "unterminated grid name"}
	}
	idx := strings.IndexByte(s, '!')
	if idx < 0 {
		return "", s, nil
	}
	grid = s[:idx]
	if !IsPlainGridName(grid) {
		return "", "", &ParseError{Input: s, Reason: "grid name must be quoted"}
	}
	return grid, s[idx+1:], nil
}

func parseEndpoint(input, s string) (endpoint, error) {
	var e endpoint
	i := 0
	leading := false
	if i < len(s) && s[i] == '$' {
		leading = true
		i++
	}
	letters := i
	for i < len(s) && s[i] >= 'A' && s[i] <= 'Z' {
		i++
	}
	colText := s[letters:i]
	middle := false
	if i < len(s) && s[i] == '$' {
		middle = true
		i++
	}
	digits := i
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	rowText := s[digits:i]
	if i != len(s) {
		return e, &ParseError{Input: input, Reason: "unexpected character in " + quote(s)}
	}
	if colText == "" && rowText == "" {
		return e, &ParseError{Input: input, Reason: "missing row or column"}
	}
	if colText != "" {
		col, ok := ColumnIndex(colText)
		if !ok {
			return e, &ParseError{Input: input, Reason: "column out of range"}
		}
		e.col = col
	}
	if rowText != "" {
		if rowText[0] == '0' {
			return e, &ParseError{Input: input, Reason: "rows are numbered from 1"}
		}
		row := 0
		for j := 0; j < len(rowText); j++ {
			row = row*10 + int(rowText[j]-'0')
			if row > MaxRows {
				return e, &ParseError{Input: input, Reason: "row out of range"}
			}
		}
		e.row = row - 1
	}
	switch {
	case colText != "" && rowText != "":
		e.kind = KindCell
		e.absCol, e.absRow = leading, middle
	case colText != "":
		if middle {
			return e, &ParseError{Input: input, Reason: "dangling '$'"}
		}
		e.kind = KindCol
		e.absCol = leading
	default:
		if middle && leading {
			return e, &ParseError{Input: input, Reason: "dangling '$'"}
		}
		e.kind = KindRow
		e.absRow = leading || middle
	}
	return e, nil
}

func quote(s string) string { return "\"" + s + "\"" }
