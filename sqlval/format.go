package sqlval

import (
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"
)

// isoMillis is ISO-8601 extended format in UTC with millisecond precision.
const isoMillis = "2006-01-02T15:04:05.000Z"

// formatTime renders years outside 0000-9999 in the expanded form, a sign
// and six digits: +010000-01-01T00:00:00.000Z, -000001-01-01T00:00:00.000Z.
func formatTime(t time.Time) string {
	t = t.UTC()
	year := t.Year()
	if year >= 0 && year <= 9999 {
		return t.Format(isoMillis)
	}
	sign := "+"
	if year < 0 {
		sign, year = "-", -year
	}
	return fmt.Sprintf("%s%06d", sign, year) + t.Format(isoMillis[4:])
}

func formatNumber(rv reflect.Value) string {
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(rv.Int(), 10)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return strconv.FormatUint(rv.Uint(), 10)
	case reflect.Float32:
		return formatFloat(rv.Float(), 32)
	default:
		return formatFloat(rv.Float(), 64)
	}
}

// formatFloat produces the shortest round-trip decimal form, switching to
// exponent notation outside [1e-6, 1e21) with an unpadded exponent
// (1e+21, 1e-7). Non-finite values render as NaN, Infinity and -Infinity.
func formatFloat(f float64, bitSize int) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	case f == 0:
		// Covers negative zero.
		return "0"
	}

	abs := math.Abs(f)
	if abs >= 1e-6 && abs < 1e21 {
		return strconv.FormatFloat(f, 'f', -1, bitSize)
	}

	s := strconv.FormatFloat(f, 'e', -1, bitSize)
	mantissa, exp, _ := strings.Cut(s, "e")
	sign, digits := exp[:1], strings.TrimLeft(exp[1:], "0")
	return mantissa + "e" + sign + digits
}
