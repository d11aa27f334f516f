package spreadsheet

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/vogtb/go-spreadsheet/packages/formula"
)

// CellType is the type a cell declares. Auto accepts whatever its input
// produces; the others reject mismatching values with #VALUE!.
type CellType uint8

const (
	CellTypeAuto CellType = iota
	CellTypeNumber
	CellTypeDate
	CellTypeString
)

func (t CellType) String() string {
	switch t {
	case CellTypeNumber:
		return "number"
	case CellTypeDate:
		return "date"
	case CellTypeString:
		return "string"
	}
	return "auto"
}

func ParseCellType(s string) (CellType, error) {
	switch s {
	case "", "auto":
		return CellTypeAuto, nil
	case "number":
		return CellTypeNumber, nil
	case "date":
		return CellTypeDate, nil
	case "string":
		return CellTypeString, nil
	}
	return CellTypeAuto, fmt.Errorf("unknown cell type %q", s)
}

// ValueType is the type derived from a cell's current output.
type ValueType uint8

const (
	ValueTypeEmpty ValueType = iota
	ValueTypeNumber
	ValueTypeString
	ValueTypeDate
	ValueTypeBoolean
	ValueTypeError
	ValueTypeArray
	ValueTypeFunction
)

func (t ValueType) String() string {
	return [...]string{"empty", "number", "string", "date", "boolean", "error", "array", "function"}[t]
}

// CellAddress locates a cell by grid identity rather than name, so it stays
// valid across renames.
type CellAddress struct {
	Grid uuid.UUID
	Row  int
	Col  int
}

// Style holds the presentation attributes of a cell. The zero value is the
// default style.
type Style struct {
	FontSize        float64
	FontFamily      string
	Bold            bool
	Italic          bool
	TextDecoration  string
	Justify         string
	Align           string
	BackgroundColor string
	TextColor       string
}

type inputKind uint8

const (
	inputEmpty inputKind = iota
	inputLiteral
	inputFormula
)

// Cell is one grid slot. Cells are created eagerly for every slot and only
// destroyed with their row, column or grid.
type Cell struct {
	input           string
	cellType        CellType
	numberFormatter string
	dateFormatter   string
	style           Style

	kind    inputKind
	literal formula.Primitive
	date    bool // literal was parsed from a date
	program string
	noSpill bool

	output    formula.Primitive
	display   string
	valueType ValueType

	// set while the cell is covered by another cell's spill
	spillSource *spillSource
	spillValue  formula.Primitive
}

type spillSource struct {
	row, col int
}

func newCell() *Cell {
	return &Cell{output: 0.0}
}

func (c *Cell) Input() string           { return c.input }
func (c *Cell) Type() CellType          { return c.cellType }
func (c *Cell) NumberFormatter() string { return c.numberFormatter }
func (c *Cell) DateFormatter() string   { return c.dateFormatter }
func (c *Cell) Style() Style            { return c.style }
func (c *Cell) IsFormula() bool         { return c.kind == inputFormula }
func (c *Cell) ReadOnly() bool          { return c.spillSource != nil }
func (c *Cell) ValueType() ValueType    { return c.valueType }

// IsEmpty reports whether the cell has neither input nor a spilled value.
func (c *Cell) IsEmpty() bool {
	return c.kind == inputEmpty && c.spillSource == nil
}

// isDefault reports whether every attribute still has its default value.
func (c *Cell) isDefault() bool {
	return c.input == "" && c.cellType == CellTypeAuto && c.numberFormatter == "" &&
		c.dateFormatter == "" && c.style == Style{}
}

var dateLayouts = []string{"2006-01-02", "2006-01-02T15:04:05"}

// classify derives the literal or program from the raw input. Order:
// empty, quote-escaped string, formula, number, date, string. A string cell
// takes any non-formula input verbatim.
func (c *Cell) classify() {
	c.literal, c.program, c.noSpill, c.date = nil, "", false, false
	in := c.input
	switch {
	case in == "":
		c.kind = inputEmpty
		return
	case strings.HasPrefix(in, "'"):
		c.kind = inputLiteral
		c.literal = in[1:]
		return
	case strings.HasPrefix(in, ":="):
		c.kind = inputFormula
		c.program = in[2:]
		c.noSpill = true
		return
	case strings.HasPrefix(in, "="):
		c.kind = inputFormula
		c.program = in[1:]
		return
	}
	c.kind = inputLiteral
	if c.cellType == CellTypeString {
		c.literal = in
		return
	}
	if n, ok := parseNumber(in); ok {
		c.literal = n
		return
	}
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, strings.TrimSpace(in), time.UTC); err == nil {
			c.literal = formula.SerialFromTime(t)
			c.date = true
			return
		}
	}
	c.literal = in
}

// parseNumber accepts plain decimal notation only: no hex, no inf or nan.
func parseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" || strings.ContainsAny(s, "xXpPnN_iI") {
		return 0, false
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsInf(n, 0) {
		return 0, false
	}
	return n, true
}

func valueTypeOf(v formula.Primitive) ValueType {
	switch v.(type) {
	case nil:
		return ValueTypeEmpty
	case float64:
		return ValueTypeNumber
	case string:
		return ValueTypeString
	case bool:
		return ValueTypeBoolean
	case *formula.Error:
		return ValueTypeError
	case formula.Array:
		return ValueTypeArray
	case *formula.Lambda:
		return ValueTypeFunction
	}
	return ValueTypeString
}

// checkDeclaredType reconciles a value with the declared cell type. Dates
// are serial numbers, so number and date accept each other.
func checkDeclaredType(declared CellType, vt ValueType) (ValueType, *formula.Error) {
	if vt == ValueTypeEmpty || vt == ValueTypeError {
		return vt, nil
	}
	switch declared {
	case CellTypeNumber:
		if vt == ValueTypeNumber || vt == ValueTypeDate {
			return ValueTypeNumber, nil
		}
	case CellTypeDate:
		if vt == ValueTypeNumber || vt == ValueTypeDate {
			return ValueTypeDate, nil
		}
	case CellTypeString:
		if vt == ValueTypeString {
			return vt, nil
		}
	default:
		return vt, nil
	}
	return ValueTypeError, formula.NewError(formula.ErrorCodeValue,
		fmt.Sprintf("%s value in %s cell", vt, declared))
}

// defaultDateDisplay renders a serial without a formatter: the date alone,
// or date and time when there is a fractional part.
func defaultDateDisplay(serial float64) string {
	t := formula.TimeFromSerial(serial)
	if serial == math.Trunc(serial) {
		return t.Format("2006-01-02")
	}
	return t.Format("2006-01-02T15:04:05")
}
