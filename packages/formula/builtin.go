package formula

import (
	"fmt"
	"math"
	"math/rand/v2"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Clock interface provides time functionality for testing
type Clock interface {
	Now() time.Time
}

// WallClock is the default implementation using system time
type WallClock struct{}

func (w *WallClock) Now() time.Time {
	return time.Now()
}

// RandomGenerator interface provides random number generation for testing
type RandomGenerator interface {
	Float64() float64
}

// DefaultRandomGenerator uses the standard library's rand package
type DefaultRandomGenerator struct{}

func (d *DefaultRandomGenerator) Float64() float64 {
	return rand.Float64()
}

// Builtins holds the state builtin functions depend on.
type Builtins struct {
	clock     Clock
	rng       RandomGenerator
	locale    language.Tag
	printer   *message.Printer
	constants Env
}

func NewBuiltins(clock Clock, rng RandomGenerator, locale language.Tag, constants Env) *Builtins {
	return &Builtins{
		clock:     clock,
		rng:       rng,
		locale:    locale,
		printer:   message.NewPrinter(locale),
		constants: constants,
	}
}

type builtinFunc func(b *Builtins, args ...Primitive) (Primitive, error)

var builtinFunctions = map[string]builtinFunc{
	"SUM":         (*Builtins).SUM,
	"AVERAGE":     (*Builtins).AVERAGE,
	"AVERAGEA":    (*Builtins).AVERAGEA,
	"COUNT":       (*Builtins).COUNT,
	"COUNTA":      (*Builtins).COUNTA,
	"MAX":         (*Builtins).MAX,
	"MIN":         (*Builtins).MIN,
	"MEDIAN":      (*Builtins).MEDIAN,
	"MODE":        (*Builtins).MODE,
	"IF":          (*Builtins).IF,
	"AND":         (*Builtins).AND,
	"OR":          (*Builtins).OR,
	"NOT":         (*Builtins).NOT,
	"CONCATENATE": (*Builtins).CONCATENATE,
	"LEN":         (*Builtins).LEN,
	"UPPER":       (*Builtins).UPPER,
	"LOWER":       (*Builtins).LOWER,
	"TRIM":        (*Builtins).TRIM,
	"ABS":         (*Builtins).ABS,
	"ROUND":       (*Builtins).ROUND,
	"FLOOR":       (*Builtins).FLOOR,
	"CEILING":     (*Builtins).CEILING,
	"SQRT":        (*Builtins).SQRT,
	"POWER":       (*Builtins).POWER,
	"MOD":         (*Builtins).MOD,
	"PI":          (*Builtins).PI,
	"NOW":         (*Builtins).NOW,
	"TODAY":       (*Builtins).TODAY,
	"RAND":        (*Builtins).RAND,
	"DATE":        (*Builtins).DATE,
	"SEQUENCE":    (*Builtins).SEQUENCE,
	"TRANSPOSE":   (*Builtins).TRANSPOSE,
	"ROWS":        (*Builtins).ROWS,
	"COLUMNS":     (*Builtins).COLUMNS,
	"INDEX":       (*Builtins).INDEX,
	"FIXED":       (*Builtins).FIXED,
	"TEXT":        (*Builtins).TEXT,
	"DELETED":     (*Builtins).DELETED,
}

// IsBuiltin reports whether name (any case) is a builtin function.
func IsBuiltin(name string) bool {
	_, ok := builtinFunctions[strings.ToUpper(name)]
	return ok
}

// Call invokes a built-in function by name with the given arguments
func (b *Builtins) Call(name string, args ...Primitive) (Primitive, error) {
	fn, ok := builtinFunctions[strings.ToUpper(name)]
	if !ok {
		return nil, NewError(ErrorCodeName, fmt.Sprintf("Unknown function: %s", name))
	}
	return fn(b, args...)
}

// checkForError returns the error if value is an error value, nil otherwise
func checkForError(value Primitive) *Error {
	if err, ok := value.(*Error); ok {
		return err
	}
	return nil
}

func arity(name string, args []Primitive, lo, hi int) error {
	if len(args) < lo || len(args) > hi {
		if lo == hi {
			return NewError(ErrorCodeNA, fmt.Sprintf("%s requires exactly %d argument(s)", name, lo))
		}
		return NewError(ErrorCodeNA, fmt.Sprintf("%s requires %d to %d arguments", name, lo, hi))
	}
	return firstErrorOrNil(args...)
}

func firstErrorOrNil(args ...Primitive) error {
	for _, arg := range args {
		if err := checkForError(arg); err != nil {
			return err
		}
	}
	return nil
}

// numbers collects the numeric values of args. Arrays contribute their
// non-blank elements; errors anywhere propagate.
func numbers(args []Primitive) ([]float64, error) {
	var values []float64
	for _, arg := range args {
		if err := checkForError(arg); err != nil {
			return nil, err
		}
		if arr, ok := arg.(Array); ok {
			for value := range arr.Values() {
				if err := checkForError(value); err != nil {
					return nil, err
				}
				if value == nil {
					continue
				}
				if num, ok := toNumber(value); ok && !math.IsNaN(num) {
					values = append(values, num)
				}
			}
			continue
		}
		if num, ok := toNumber(arg); ok && !math.IsNaN(num) {
			values = append(values, num)
		}
	}
	return values, nil
}

// mapNumber applies f to a single numeric argument, element-wise over arrays.
func mapNumber(name string, args []Primitive, f func(float64) Primitive) (Primitive, error) {
	if err := arity(name, args, 1, 1); err != nil {
		return nil, err
	}
	apply := func(v Primitive) Primitive {
		if err := checkForError(v); err != nil {
			return err
		}
		num, ok := toNumber(v)
		if !ok {
			return NewError(ErrorCodeValue, fmt.Sprintf("%s requires a numeric argument", name))
		}
		return f(num)
	}
	if arr, ok := args[0].(Array); ok {
		return broadcast(arr, nil, func(a, _ Primitive) Primitive { return apply(a) }), nil
	}
	result := apply(args[0])
	if err := checkForError(result); err != nil {
		return nil, err
	}
	return result, nil
}

func numberArg(name string, v Primitive) (float64, error) {
	num, ok := toNumber(v)
	if !ok {
		return 0, NewError(ErrorCodeValue, fmt.Sprintf("%s requires numeric arguments", name))
	}
	return num, nil
}

func (b *Builtins) SUM(args ...Primitive) (Primitive, error) {
	values, err := numbers(args)
	if err != nil {
		return nil, err
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum, nil
}

func (b *Builtins) AVERAGE(args ...Primitive) (Primitive, error) {
	values, err := numbers(args)
	if err != nil {
		return nil, err
	}
	if len(values) == 0 {
		return nil, NewError(ErrorCodeDiv0, "Division by zero")
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values)), nil
}

func (b *Builtins) AVERAGEA(args ...Primitive) (Primitive, error) {
	sum := 0.0
	count := 0

	// blanks are skipped; text counts as zero
	processValue := func(value Primitive) error {
		if value == nil {
			return nil
		}
		if err := checkForError(value); err != nil {
			return err
		}
		switch v := value.(type) {
		case float64:
			sum += v
			count++
		case bool:
			if v {
				sum += 1
			}
			count++
		case string:
			count++
		}
		return nil
	}
	for _, arg := range args {
		if arr, ok := arg.(Array); ok {
			for value := range arr.Values() {
				if err := processValue(value); err != nil {
					return nil, err
				}
			}
		} else if err := processValue(arg); err != nil {
			return nil, err
		}
	}

	if count == 0 {
		return nil, NewError(ErrorCodeDiv0, "AVERAGEA has no values")
	}
	return sum / float64(count), nil
}

// COUNT counts numbers only. Errors inside arrays are skipped, not
// propagated.
func (b *Builtins) COUNT(args ...Primitive) (Primitive, error) {
	count := 0
	for _, arg := range args {
		if err := checkForError(arg); err != nil {
			return nil, err
		}
		if arr, ok := arg.(Array); ok {
			for value := range arr.Values() {
				if _, isNum := value.(float64); isNum {
					count++
				}
			}
		} else if _, isNum := arg.(float64); isNum {
			count++
		}
	}
	return float64(count), nil
}

// COUNTA counts every non-blank value, errors inside arrays included.
func (b *Builtins) COUNTA(args ...Primitive) (Primitive, error) {
	count := 0
	for _, arg := range args {
		if err := checkForError(arg); err != nil {
			return nil, err
		}
		if arr, ok := arg.(Array); ok {
			for value := range arr.Values() {
				if value != nil {
					count++
				}
			}
		} else if arg != nil {
			count++
		}
	}
	return float64(count), nil
}

func (b *Builtins) MAX(args ...Primitive) (Primitive, error) {
	values, err := numbers(args)
	if err != nil || len(values) == 0 {
		return 0.0, err
	}
	return slices.Max(values), nil
}

func (b *Builtins) MIN(args ...Primitive) (Primitive, error) {
	values, err := numbers(args)
	if err != nil || len(values) == 0 {
		return 0.0, err
	}
	return slices.Min(values), nil
}

func (b *Builtins) MEDIAN(args ...Primitive) (Primitive, error) {
	values, err := numbers(args)
	if err != nil {
		return nil, err
	}
	if len(values) == 0 {
		return nil, NewError(ErrorCodeNum, "MEDIAN has no numeric values")
	}
	slices.Sort(values)
	mid := len(values) / 2
	if len(values)%2 == 0 {
		return (values[mid-1] + values[mid]) / 2, nil
	}
	return values[mid], nil
}

func (b *Builtins) MODE(args ...Primitive) (Primitive, error) {
	values, err := numbers(args)
	if err != nil {
		return nil, err
	}
	if len(values) == 0 {
		return nil, NewError(ErrorCodeNum, "MODE has no numeric values")
	}
	frequency := make(map[float64]int)
	maxFreq := 0
	for _, v := range values {
		frequency[v]++
		maxFreq = max(maxFreq, frequency[v])
	}
	if maxFreq == 1 {
		return nil, NewError(ErrorCodeNA, "MODE: no value appears more than once")
	}
	// smallest of the most frequent values, like Excel does for ties
	best := math.Inf(1)
	for v, freq := range frequency {
		if freq == maxFreq && v < best {
			best = v
		}
	}
	return best, nil
}

func (b *Builtins) IF(args ...Primitive) (Primitive, error) {
	if len(args) < 2 || len(args) > 3 {
		return nil, NewError(ErrorCodeNA, "IF requires 2 or 3 arguments")
	}
	if err := checkForError(args[0]); err != nil {
		return nil, err
	}
	if isTruthy(args[0]) {
		return args[1], nil
	}
	if len(args) == 3 {
		return args[2], nil
	}
	return false, nil
}

func (b *Builtins) AND(args ...Primitive) (Primitive, error) {
	for _, arg := range args {
		if err := checkForError(arg); err != nil {
			return nil, err
		}
		if !isTruthy(arg) {
			return false, nil
		}
	}
	return true, nil
}

func (b *Builtins) OR(args ...Primitive) (Primitive, error) {
	for _, arg := range args {
		if err := checkForError(arg); err != nil {
			return nil, err
		}
		if isTruthy(arg) {
			return true, nil
		}
	}
	return false, nil
}

func (b *Builtins) NOT(args ...Primitive) (Primitive, error) {
	if err := arity("NOT", args, 1, 1); err != nil {
		return nil, err
	}
	return !isTruthy(args[0]), nil
}

func (b *Builtins) CONCATENATE(args ...Primitive) (Primitive, error) {
	var result strings.Builder
	for _, arg := range args {
		if err := checkForError(arg); err != nil {
			return nil, err
		}
		result.WriteString(toString(arg))
	}
	return result.String(), nil
}

func (b *Builtins) LEN(args ...Primitive) (Primitive, error) {
	if err := arity("LEN", args, 1, 1); err != nil {
		return nil, err
	}
	return float64(utf8.RuneCountInString(toString(args[0]))), nil
}

func (b *Builtins) UPPER(args ...Primitive) (Primitive, error) {
	if err := arity("UPPER", args, 1, 1); err != nil {
		return nil, err
	}
	return strings.ToUpper(toString(args[0])), nil
}

func (b *Builtins) LOWER(args ...Primitive) (Primitive, error) {
	if err := arity("LOWER", args, 1, 1); err != nil {
		return nil, err
	}
	return strings.ToLower(toString(args[0])), nil
}

func (b *Builtins) TRIM(args ...Primitive) (Primitive, error) {
	if err := arity("TRIM", args, 1, 1); err != nil {
		return nil, err
	}
	return strings.Join(strings.Fields(toString(args[0])), " "), nil
}

func (b *Builtins) ABS(args ...Primitive) (Primitive, error) {
	return mapNumber("ABS", args, func(n float64) Primitive { return math.Abs(n) })
}

func (b *Builtins) ROUND(args ...Primitive) (Primitive, error) {
	if err := arity("ROUND", args, 1, 2); err != nil {
		return nil, err
	}
	num, err := numberArg("ROUND", args[0])
	if err != nil {
		return nil, err
	}
	places := 0.0
	if len(args) == 2 {
		if places, err = numberArg("ROUND", args[1]); err != nil {
			return nil, err
		}
	}
	return roundTo(num, int(places)), nil
}

func roundTo(num float64, places int) float64 {
	multiplier := math.Pow(10, float64(places))
	return math.Round(num*multiplier) / multiplier
}

func (b *Builtins) FLOOR(args ...Primitive) (Primitive, error) {
	return mapNumber("FLOOR", args, func(n float64) Primitive { return math.Floor(n) })
}

func (b *Builtins) CEILING(args ...Primitive) (Primitive, error) {
	return mapNumber("CEILING", args, func(n float64) Primitive { return math.Ceil(n) })
}

func (b *Builtins) SQRT(args ...Primitive) (Primitive, error) {
	return mapNumber("SQRT", args, func(n float64) Primitive {
		if n < 0 {
			return NewError(ErrorCodeNum, "SQRT requires a non-negative argument")
		}
		return math.Sqrt(n)
	})
}

func (b *Builtins) POWER(args ...Primitive) (Primitive, error) {
	if err := arity("POWER", args, 2, 2); err != nil {
		return nil, err
	}
	return binaryScalar(BinOpPower, args[0], args[1]), nil
}

func (b *Builtins) MOD(args ...Primitive) (Primitive, error) {
	if err := arity("MOD", args, 2, 2); err != nil {
		return nil, err
	}
	dividend, err := numberArg("MOD", args[0])
	if err != nil {
		return nil, err
	}
	divisor, err := numberArg("MOD", args[1])
	if err != nil {
		return nil, err
	}
	if divisor == 0 {
		return nil, NewError(ErrorCodeDiv0, "Division by zero")
	}
	// result takes the sign of the divisor
	return dividend - divisor*math.Floor(dividend/divisor), nil
}

func (b *Builtins) PI(args ...Primitive) (Primitive, error) {
	if err := arity("PI", args, 0, 0); err != nil {
		return nil, err
	}
	return math.Pi, nil
}

// Dates are Excel serial numbers: days since December 30, 1899 with the
// time of day as the fraction.
var excelEpoch = time.Date(1899, time.December, 30, 0, 0, 0, 0, time.UTC)

const millisPerDay = 24 * 60 * 60 * 1000

// SerialFromTime converts a wall-clock time to a serial number, ignoring
// its zone.
func SerialFromTime(t time.Time) float64 {
	wall := time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)
	return float64(wall.UnixMilli()-excelEpoch.UnixMilli()) / millisPerDay
}

// TimeFromSerial is the inverse of SerialFromTime, rounded to the
// millisecond.
func TimeFromSerial(serial float64) time.Time {
	return time.UnixMilli(excelEpoch.UnixMilli() + int64(math.Round(serial*millisPerDay))).UTC()
}

func (b *Builtins) NOW(args ...Primitive) (Primitive, error) {
	if err := arity("NOW", args, 0, 0); err != nil {
		return nil, err
	}
	return SerialFromTime(b.clock.Now()), nil
}

func (b *Builtins) TODAY(args ...Primitive) (Primitive, error) {
	if err := arity("TODAY", args, 0, 0); err != nil {
		return nil, err
	}
	return math.Floor(SerialFromTime(b.clock.Now())), nil
}

func (b *Builtins) RAND(args ...Primitive) (Primitive, error) {
	if err := arity("RAND", args, 0, 0); err != nil {
		return nil, err
	}
	return b.rng.Float64(), nil
}

// DATE(year, month, day). Months and days out of range roll over.
func (b *Builtins) DATE(args ...Primitive) (Primitive, error) {
	if err := arity("DATE", args, 3, 3); err != nil {
		return nil, err
	}
	parts := make([]int, 3)
	for i, arg := range args {
		num, err := numberArg("DATE", arg)
		if err != nil {
			return nil, err
		}
		parts[i] = int(math.Trunc(num))
	}
	t := time.Date(parts[0], time.Month(parts[1]), parts[2], 0, 0, 0, 0, time.UTC)
	serial := SerialFromTime(t)
	if serial < 0 {
		return nil, NewError(ErrorCodeNum, "DATE before 1899-12-30")
	}
	return serial, nil
}

const maxSequenceSize = 1 << 20

// SEQUENCE(rows, [cols], [start], [step])
func (b *Builtins) SEQUENCE(args ...Primitive) (Primitive, error) {
	if err := arity("SEQUENCE", args, 1, 4); err != nil {
		return nil, err
	}
	params := []float64{1, 1, 1, 1}
	for i, arg := range args {
		num, err := numberArg("SEQUENCE", arg)
		if err != nil {
			return nil, err
		}
		params[i] = num
	}
	rows, cols := int(params[0]), int(params[1])
	if rows < 1 || cols < 1 {
		return nil, NewError(ErrorCodeValue, "SEQUENCE dimensions must be positive")
	}
	if rows*cols > maxSequenceSize {
		return nil, NewError(ErrorCodeNum, "SEQUENCE is too large")
	}
	out := NewArray(rows, cols)
	next := params[2]
	for i := range out {
		for j := range out[i] {
			out[i][j] = next
			next += params[3]
		}
	}
	return out, nil
}

func (b *Builtins) TRANSPOSE(args ...Primitive) (Primitive, error) {
	if err := arity("TRANSPOSE", args, 1, 1); err != nil {
		return nil, err
	}
	arr, ok := args[0].(Array)
	if !ok {
		return args[0], nil
	}
	out := NewArray(arr.Cols(), arr.Rows())
	for i, row := range arr {
		for j, v := range row {
			out[j][i] = v
		}
	}
	return out, nil
}

func (b *Builtins) ROWS(args ...Primitive) (Primitive, error) {
	if err := arity("ROWS", args, 1, 1); err != nil {
		return nil, err
	}
	if arr, ok := args[0].(Array); ok {
		return float64(arr.Rows()), nil
	}
	return 1.0, nil
}

func (b *Builtins) COLUMNS(args ...Primitive) (Primitive, error) {
	if err := arity("COLUMNS", args, 1, 1); err != nil {
		return nil, err
	}
	if arr, ok := args[0].(Array); ok {
		return float64(arr.Cols()), nil
	}
	return 1.0, nil
}

// INDEX(array, row, [col]) with 1-based positions.
func (b *Builtins) INDEX(args ...Primitive) (Primitive, error) {
	if len(args) < 2 || len(args) > 3 {
		return nil, NewError(ErrorCodeNA, "INDEX requires 2 or 3 arguments")
	}
	if err := firstErrorOrNil(args[1:]...); err != nil {
		return nil, err
	}
	arr, ok := args[0].(Array)
	if !ok {
		arr = Array{{args[0]}}
	}
	row, err := numberArg("INDEX", args[1])
	if err != nil {
		return nil, err
	}
	col := 1.0
	if len(args) == 3 {
		if col, err = numberArg("INDEX", args[2]); err != nil {
			return nil, err
		}
	} else if arr.Rows() == 1 {
		// a single row is indexed along its columns
		row, col = 1, row
	}
	r, c := int(row)-1, int(col)-1
	if r < 0 || r >= arr.Rows() || c < 0 || c >= arr.Cols() {
		return nil, NewError(ErrorCodeRef, "INDEX out of range")
	}
	return arr[r][c], nil
}

// DELETED marks a use of an alias that no longer exists.
func (b *Builtins) DELETED(args ...Primitive) (Primitive, error) {
	name := ""
	if len(args) > 0 {
		name = toString(args[0])
	}
	return nil, NewError(ErrorCodeRef, fmt.Sprintf("reference to deleted alias %s", name))
}
