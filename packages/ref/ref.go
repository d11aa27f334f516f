// Package ref implements grid addressing: cell, range, row and column
// references, their textual grammar, clamping, moving, directional stepping
// and the axis algebra used when rows or columns are inserted or deleted.
package ref

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

const (
	MaxRows = 1048576
	MaxCols = 16384
)

type Kind int

const (
	KindCell Kind = iota
	KindRange
	KindRow
	KindCol
	KindRowRange
	KindColRange
)

func (k Kind) String() string {
	switch k {
	case KindCell:
		return "cell"
	case KindRange:
		return "range"
	case KindRow:
		return "row"
	case KindCol:
		return "col"
	case KindRowRange:
		return "row-range"
	case KindColRange:
		return "col-range"
	}
	return "unknown"
}

// Reference is the closed set of reference shapes: Cell, Range, Row, Col,
// RowRange and ColRange. Callers switch on the concrete type.
type Reference interface {
	Kind() Kind
	// GridName is the grid qualifier, empty when the reference is relative to
	// whatever grid hosts it.
	GridName() string
	WithGrid(grid string) Reference
	// Format renders the reference, omitting the grid prefix when it equals
	// relativeTo.
	Format(relativeTo string) string
	String() string
	// Bounds is the rectangle the reference covers. Row and column shapes span
	// the full extent of the other axis.
	Bounds() Range
	Clamp(bound Range) Reference
	// Move shifts relative axes by the delta and optionally re-homes the
	// reference on toGrid. An empty toGrid keeps the current qualifier.
	Move(dRow, dCol int, toGrid string) (Reference, error)
	reference()
}

var (
	ErrParse      = errors.New("invalid reference")
	ErrOutOfRange = errors.New("reference out of range")
)

type ParseError struct {
	Input  string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid reference %q: %s", e.Input, e.Reason)
}

func (e *ParseError) Unwrap() error { return ErrParse }

type OutOfRangeError struct {
	Ref string
	Row int
	Col int
}

func (e *OutOfRangeError) Error() string {
	return fmt.Sprintf("reference %s moved out of range (row %d, col %d)", e.Ref, e.Row, e.Col)
}

func (e *OutOfRangeError) Unwrap() error { return ErrOutOfRange }

// ColumnName converts a zero-based column index into bijective base-26
// letters: 0 is A, 25 is Z, 26 is AA.
func ColumnName(col int) string {
	if col < 0 {
		return ""
	}
	var buf [8]byte
	i := len(buf)
	for n := col + 1; n > 0; n = (n - 1) / 26 {
		i--
		buf[i] = byte('A' + (n-1)%26)
	}
	return string(buf[i:])
}

// ColumnIndex is the inverse of ColumnName. Only upper-case letters are
// accepted.
func ColumnIndex(name string) (int, bool) {
	if name == "" {
		return 0, false
	}
	n := 0
	for i := 0; i < len(name); i++ {
		c := name[i]
		if c < 'A' || c > 'Z' {
			return 0, false
		}
		n = n*26 + int(c-'A'+1)
		if n > MaxCols {
			return 0, false
		}
	}
	return n - 1, true
}

// RowName returns the one-based label of a zero-based row.
func RowName(row int) string {
	return strconv.Itoa(row + 1)
}

// IsPlainGridName reports whether a grid name can be written without quotes.
func IsPlainGridName(name string) bool {
	if name == "" {
		return false
	}
	for i := 0; i < len(name); i++ {
		c := name[i]
		switch {
		case c == '_', c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z':
		case i > 0 && (c == '.' || c >= '0' && c <= '9'):
		default:
			return false
		}
	}
	return true
}

func gridPrefix(grid, relativeTo string) string {
	if grid == "" || grid == relativeTo {
		return ""
	}
	if IsPlainGridName(grid) {
		return grid + "!"
	}
	return "'" + strings.ReplaceAll(grid, "'", "''") + "'!"
}

func dollar(abs bool) string {
	if abs {
		return "$"
	}
	return ""
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Equal compares two references by shape, grid and coordinates. Absolute
// markers do not participate.
func Equal(a, b Reference) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.Kind() != b.Kind() || a.GridName() != b.GridName() {
		return false
	}
	switch x := a.(type) {
	case Cell:
		return x.Equal(b.(Cell))
	case Range:
		return x.Equal(b.(Range))
	case Row:
		return x.Index == b.(Row).Index
	case Col:
		return x.Index == b.(Col).Index
	case RowRange:
		y := b.(RowRange)
		return x.Start.Index == y.Start.Index && x.End.Index == y.End.Index
	case ColRange:
		y := b.(ColRange)
		return x.Start.Index == y.Start.Index && x.End.Index == y.End.Index
	}
	return false
}
