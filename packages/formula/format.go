package formula

import (
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/number"
)

// FIXED(number, [decimals], [no_commas]) formats with the interpreter's
// locale, grouping thousands unless no_commas is TRUE.
func (b *Builtins) FIXED(args ...Primitive) (Primitive, error) {
	if err := arity("FIXED", args, 1, 3); err != nil {
		return nil, err
	}
	num, err := numberArg("FIXED", args[0])
	if err != nil {
		return nil, err
	}
	decimals := 2.0
	if len(args) >= 2 {
		if decimals, err = numberArg("FIXED", args[1]); err != nil {
			return nil, err
		}
	}
	grouping := len(args) < 3 || !isTruthy(args[2])
	return b.formatFixed(num, int(decimals), grouping), nil
}

func (b *Builtins) formatFixed(num float64, decimals int, grouping bool) string {
	num = roundTo(num, decimals)
	if decimals < 0 {
		decimals = 0
	}
	if num == 0 {
		num = 0 // drop the sign of negative zero
	}
	if !grouping {
		return strconv.FormatFloat(num, 'f', decimals, 64)
	}
	return b.printer.Sprint(number.Decimal(num, number.Scale(decimals)))
}

// TEXT(value, pattern) supports the common Excel number patterns
// ("0.00", "#,##0", "0%", "$#,##0.00") and date patterns ("yyyy-mm-dd",
// "d mmm yyyy", "hh:mm:ss"). Non-numeric values pass through unchanged.
func (b *Builtins) TEXT(args ...Primitive) (Primitive, error) {
	if err := arity("TEXT", args, 2, 2); err != nil {
		return nil, err
	}
	pattern := toString(args[1])
	if _, isText := args[0].(string); isText {
		if _, ok := toNumber(args[0]); !ok {
			return args[0], nil
		}
	}
	num, ok := toNumber(args[0])
	if !ok {
		return nil, NewError(ErrorCodeValue, "TEXT requires a number or text")
	}
	if isDatePattern(pattern) {
		return TimeFromSerial(num).Format(dateLayout(pattern)), nil
	}
	return b.formatNumberPattern(num, pattern), nil
}

func (b *Builtins) formatNumberPattern(num float64, pattern string) string {
	first := strings.IndexAny(pattern, "0#")
	if first < 0 {
		return pattern
	}
	last := strings.LastIndexAny(pattern, "0#")
	prefix, core, suffix := pattern[:first], pattern[first:last+1], pattern[last+1:]
	if strings.Contains(prefix, "%") || strings.Contains(suffix, "%") {
		num *= 100
	}
	decimals := 0
	if dot := strings.IndexByte(core, '.'); dot >= 0 {
		decimals = strings.Count(core[dot:], "0") + strings.Count(core[dot:], "#")
	}
	sign := ""
	if roundTo(num, decimals) < 0 {
		sign = "-"
		num = -num
	}
	return sign + prefix + b.formatFixed(num, decimals, strings.Contains(core, ",")) + suffix
}

func isDatePattern(pattern string) bool {
	lower := strings.ToLower(pattern)
	if strings.ContainsAny(lower, "ydhs") {
		return true
	}
	return strings.Contains(lower, "m") && !strings.ContainsAny(lower, "0#")
}

type patternRun struct {
	ch   rune // lower-cased
	text string
}

// dateLayout translates an Excel date pattern into a Go time layout. An m
// run means minutes when it follows an hour or precedes seconds.
func dateLayout(pattern string) string {
	var runs []patternRun
	runes := []rune(pattern)
	for i := 0; i < len(runes); {
		ch := unicode.ToLower(runes[i])
		j := i
		for j < len(runes) && unicode.ToLower(runes[j]) == ch {
			j++
		}
		runs = append(runs, patternRun{ch: ch, text: string(runes[i:j])})
		i = j
	}

	var sb strings.Builder
	prevLetter := rune(0)
	for k, r := range runs {
		n := len([]rune(r.text))
		switch r.ch {
		case 'y':
			sb.WriteString(pick(n <= 2, "06", "2006"))
		case 'm':
			if prevLetter == 'h' || nextLetter(runs, k) == 's' {
				sb.WriteString(pick(n == 1, "4", "04"))
				break
			}
			switch {
			case n == 1:
				sb.WriteString("1")
			case n == 2:
				sb.WriteString("01")
			case n == 3:
				sb.WriteString("Jan")
			default:
				sb.WriteString("January")
			}
		case 'd':
			switch {
			case n == 1:
				sb.WriteString("2")
			case n == 2:
				sb.WriteString("02")
			case n == 3:
				sb.WriteString("Mon")
			default:
				sb.WriteString("Monday")
			}
		case 'h':
			sb.WriteString("15")
		case 's':
			sb.WriteString(pick(n == 1, "5", "05"))
		default:
			sb.WriteString(r.text)
		}
		if unicode.IsLetter(r.ch) {
			prevLetter = r.ch
		}
	}
	return sb.String()
}

func nextLetter(runs []patternRun, k int) rune {
	for _, r := range runs[k+1:] {
		if unicode.IsLetter(r.ch) {
			return r.ch
		}
	}
	return 0
}

func pick(cond bool, a, b string) string {
	if cond {
		return a
	}
	return b
}
