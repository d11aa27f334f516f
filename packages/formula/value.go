// Package formula is the expression language evaluated inside cells: an
// Excel-style lexer and parser, a tree-walking evaluator and the builtin
// function library. It knows nothing about grids; callers hand it an
// environment that maps every free identifier to a concrete value.
package formula

import (
	"fmt"
	"iter"
	"math"
	"strconv"
	"strings"
)

// Primitive is any value a program can produce or consume.
// types:
//   - float64: numbers (integers are converted to float64)
//   - string: text
//   - bool: TRUE/FALSE
//   - nil: blank
//   - *Error: error values (#DIV/0!, #REF!, ...)
//   - Array: rectangular collections
//   - *Lambda: function values
type Primitive any

// Env maps identifiers to values.
type Env map[string]Primitive

// ErrorCode follows the Excel error conventions, extended with the circular
// and spill markers the grid engine produces.
type ErrorCode uint8

const (
	ErrorCodeNull  ErrorCode = 1  // #NULL! - no cells in common between ranges
	ErrorCodeDiv0  ErrorCode = 2  // #DIV/0! - division by zero
	ErrorCodeValue ErrorCode = 3  // #VALUE! - wrong type of argument or operand
	ErrorCodeRef   ErrorCode = 4  // #REF! - invalid or deleted reference
	ErrorCodeName  ErrorCode = 5  // #NAME? - unrecognized name
	ErrorCodeNum   ErrorCode = 6  // #NUM! - number out of range
	ErrorCodeNA    ErrorCode = 7  // #N/A - wrong argument count
	ErrorCodeOther ErrorCode = 8  // #ERROR! - syntax errors and everything else
	ErrorCodeCirc  ErrorCode = 9  // #CIRC! - circular reference
	ErrorCodeSpill ErrorCode = 10 // #SPILL! - spill area blocked
)

var ErrorMapper = map[ErrorCode]string{
	ErrorCodeNull:  "#NULL!",
	ErrorCodeDiv0:  "#DIV/0!",
	ErrorCodeValue: "#VALUE!",
	ErrorCodeRef:   "#REF!",
	ErrorCodeName:  "#NAME?",
	ErrorCodeNum:   "#NUM!",
	ErrorCodeNA:    "#N/A",
	ErrorCodeOther: "#ERROR!",
	ErrorCodeCirc:  "#CIRC!",
	ErrorCodeSpill: "#SPILL!",
}

// Error is an error value. It travels through evaluation as an ordinary
// Primitive and is captured as a cell's output.
type Error struct {
	Code    ErrorCode
	Message string
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return ErrorMapper[e.Code]
}

// Marker is the short display form, e.g. #REF!.
func (e *Error) Marker() string { return ErrorMapper[e.Code] }

func NewError(code ErrorCode, message string) *Error {
	if message == "" {
		message = ErrorMapper[code]
	}
	return &Error{Code: code, Message: message}
}

// IsError reports whether the value is an error value with the given code.
func IsError(v Primitive, code ErrorCode) bool {
	e, ok := v.(*Error)
	return ok && e.Code == code
}

// Array is a rectangular collection stored row-major. A 1-D list is a single
// column.
type Array [][]Primitive

func (a Array) Rows() int { return len(a) }

func (a Array) Cols() int {
	if len(a) == 0 {
		return 0
	}
	return len(a[0])
}

func (a Array) At(row, col int) Primitive {
	if row < 0 || row >= len(a) || col < 0 || col >= len(a[row]) {
		return nil
	}
	return a[row][col]
}

// Values yields every element row by row.
func (a Array) Values() iter.Seq[Primitive] {
	return func(yield func(Primitive) bool) {
		for _, row := range a {
			for _, v := range row {
				if !yield(v) {
					return
				}
			}
		}
	}
}

func NewArray(rows, cols int) Array {
	a := make(Array, rows)
	for i := range a {
		a[i] = make([]Primitive, cols)
	}
	return a
}

// Column builds an n x 1 array.
func Column(values ...Primitive) Array {
	a := NewArray(len(values), 1)
	for i, v := range values {
		a[i][0] = v
	}
	return a
}

// Lambda is a function value created by LAMBDA(params..., body).
type Lambda struct {
	Params  []string
	Body    Node
	closure map[string]Primitive
}

func (l *Lambda) String() string {
	return "LAMBDA(" + strings.Join(append(append([]string{}, l.Params...), l.Body.String()), ", ") + ")"
}

// toNumber converts value to number, returning ok=false if conversion fails
func toNumber(value Primitive) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case bool:
		if v {
			return 1, true
		}
		return 0, true
	case string:
		num, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, false
		}
		return num, true
	case nil:
		return 0, true
	}
	return 0, false
}

// ToNumber is the exported form of the numeric coercion used by operators.
func ToNumber(value Primitive) (float64, bool) { return toNumber(value) }

func formatNumber(v float64) string {
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return ErrorMapper[ErrorCodeNum]
	}
	if v == math.Trunc(v) && math.Abs(v) < 1e15 {
		return strconv.FormatInt(int64(v), 10)
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// ToString renders a value the way a cell displays it by default.
func ToString(value Primitive) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return formatNumber(v)
	case bool:
		if v {
			return "TRUE"
		}
		return "FALSE"
	case *Error:
		return v.Marker()
	case Array:
		rows := make([]string, len(v))
		for i, row := range v {
			items := make([]string, len(row))
			for j, item := range row {
				if s, ok := item.(string); ok {
					items[j] = strconv.Quote(s)
				} else {
					items[j] = ToString(item)
				}
			}
			if len(row) == 1 && v.Cols() == 1 {
				rows[i] = items[0]
			} else {
				rows[i] = "[" + strings.Join(items, ", ") + "]"
			}
		}
		return "[" + strings.Join(rows, ", ") + "]"
	case *Lambda:
		return v.String()
	}
	return fmt.Sprint(value)
}

func toString(value Primitive) string { return ToString(value) }

// isTruthy checks if value is truthy
func isTruthy(value Primitive) bool {
	switch v := value.(type) {
	case bool:
		return v
	case float64:
		return v != 0
	case string:
		return v != ""
	case nil:
		return false
	}
	return true
}

// comparePrimitives compares two primitive values. returns -1 if left < right,
// 0 if equal, 1 if left > right
func comparePrimitives(left, right Primitive) int {
	if left == nil && right == nil {
		return 0
	}
	if left == nil {
		left = blankAs(right)
	}
	if right == nil {
		right = blankAs(left)
	}

	leftNum, leftIsNum := left.(float64)
	rightNum, rightIsNum := right.(float64)
	if leftIsNum && rightIsNum {
		switch {
		case leftNum < rightNum:
			return -1
		case leftNum > rightNum:
			return 1
		}
		return 0
	}

	leftBool, leftIsBool := left.(bool)
	rightBool, rightIsBool := right.(bool)
	if leftIsBool && rightIsBool {
		switch {
		case leftBool == rightBool:
			return 0
		case !leftBool:
			return -1
		}
		return 1
	}

	// numbers sort before text, text before booleans
	rank := func(v Primitive) int {
		switch v.(type) {
		case float64:
			return 0
		case string:
			return 1
		case bool:
			return 2
		}
		return 3
	}
	if rl, rr := rank(left), rank(right); rl != rr {
		if rl < rr {
			return -1
		}
		return 1
	}
	return strings.Compare(strings.ToLower(toString(left)), strings.ToLower(toString(right)))
}

// blankAs is the value a blank takes when compared against other.
func blankAs(other Primitive) Primitive {
	switch other.(type) {
	case string:
		return ""
	case bool:
		return false
	}
	return 0.0
}

// firstError returns the first error value among args, looking inside arrays.
func firstError(args ...Primitive) *Error {
	for _, arg := range args {
		switch v := arg.(type) {
		case *Error:
			return v
		case Array:
			for item := range v.Values() {
				if e, ok := item.(*Error); ok {
					return e
				}
			}
		}
	}
	return nil
}
