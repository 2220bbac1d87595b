package query

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"sync"

	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Casers are stateful and must not be shared between goroutines.
var lowerCaserPool = sync.Pool{
	New: func() interface{} {
		c := cases.Lower(language.Und)
		return &c
	},
}

// toLower lower-cases s with full Unicode mappings.
func toLower(s string) string {
	if isASCIILower(s) {
		return s
	}
	//nolint:errcheck // Type assertion is guaranteed by pool's New function
	c := lowerCaserPool.Get().(*cases.Caser)
	defer lowerCaserPool.Put(c)
	return c.String(s)
}

func isASCIILower(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= 0x80 || (c >= 'A' && c <= 'Z') {
			return false
		}
	}
	return true
}

// normalize dereferences pointers and interfaces; a nil result means missing.
func normalize(v any) any {
	if v == nil {
		return nil
	}
	switch v.(type) {
	case string, bool, int, int64, float64, []any, map[string]any:
		return v
	}
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return nil
		}
		rv = rv.Elem()
	}
	return rv.Interface()
}

// asNumber reports v as a float64 when it is a numeric Go value.
func asNumber(v any) (float64, bool) {
	switch x := v.(type) {
	case int:
		return float64(x), true
	case int8:
		return float64(x), true
	case int16:
		return float64(x), true
	case int32:
		return float64(x), true
	case int64:
		return float64(x), true
	case uint:
		return float64(x), true
	case uint8:
		return float64(x), true
	case uint16:
		return float64(x), true
	case uint32:
		return float64(x), true
	case uint64:
		return float64(x), true
	case float32:
		return float64(x), true
	case float64:
		return x, true
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return math.NaN(), true
		}
		return f, true
	case decimal.Decimal:
		return x.InexactFloat64(), true
	}
	return 0, false
}

// asSlice reports v as a list of elements when it is a Go slice or array.
func asSlice(v any) ([]any, bool) {
	if s, ok := v.([]any); ok {
		return s, true
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}

// equals implements EQ: strings case-insensitively, numbers and booleans by
// value, arrays element-wise. Values of different types are never equal.
func equals(left, right any) bool {
	left, right = normalize(left), normalize(right)
	if left == nil || right == nil {
		return false
	}

	switch l := left.(type) {
	case string:
		r, ok := right.(string)
		return ok && (l == r || toLower(l) == toLower(r))
	case bool:
		r, ok := right.(bool)
		return ok && l == r
	}

	if l, ok := asNumber(left); ok {
		r, ok := asNumber(right)
		return ok && l == r
	}

	if l, ok := asSlice(left); ok {
		r, ok := asSlice(right)
		if !ok || len(l) != len(r) {
			return false
		}
		for i := range l {
			if !equals(l[i], r[i]) {
				return false
			}
		}
		return true
	}

	return false
}

// toNumber coerces v for ordering comparisons. Values without a numeric
// reading yield NaN.
func toNumber(v any) float64 {
	v = normalize(v)
	if f, ok := asNumber(v); ok {
		return f
	}
	if v == nil {
		return math.NaN()
	}
	return parseLeadingFloat(toString(v))
}

// compareNumbers returns -1, 0 or 1. A NaN on either side compares as equal.
func compareNumbers(left, right float64) int {
	switch {
	case math.IsNaN(left) || math.IsNaN(right):
		return 0
	case left < right:
		return -1
	case left > right:
		return 1
	default:
		return 0
	}
}

// parseLeadingFloat parses the longest numeric prefix of s after leading
// whitespace, returning NaN when there is none.
func parseLeadingFloat(s string) float64 {
	s = strings.TrimLeft(s, " \t\n\r\f\v")
	i := 0
	if i < len(s) && (s[i] == '+' || s[i] == '-') {
		i++
	}
	if strings.HasPrefix(s[i:], "Infinity") {
		if s[0] == '-' {
			return math.Inf(-1)
		}
		return math.Inf(1)
	}

	digits := 0
	for i < len(s) && isDigit(s[i]) {
		i++
		digits++
	}
	if i < len(s) && s[i] == '.' {
		j := i + 1
		for j < len(s) && isDigit(s[j]) {
			j++
			digits++
		}
		if digits > 0 {
			i = j
		}
	}
	if digits == 0 {
		return math.NaN()
	}
	if i < len(s) && (s[i] == 'e' || s[i] == 'E') {
		j := i + 1
		if j < len(s) && (s[j] == '+' || s[j] == '-') {
			j++
		}
		k := j
		for k < len(s) && isDigit(s[k]) {
			k++
		}
		if k > j {
			i = k
		}
	}

	// ParseFloat returns ±Inf alongside a range error, which is the wanted value.
	f, _ := strconv.ParseFloat(s[:i], 64) //nolint:errcheck
	return f
}

// toString renders v the way CONTAINS sees it.
func toString(v any) string {
	v = normalize(v)
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	case decimal.Decimal:
		return x.String()
	case json.Number:
		return x.String()
	}
	if f, ok := asNumber(v); ok {
		return formatNumber(f)
	}
	if items, ok := asSlice(v); ok {
		parts := make([]string, len(items))
		for i, item := range items {
			parts[i] = toString(item)
		}
		return strings.Join(parts, ",")
	}
	return fmt.Sprint(v)
}

func formatNumber(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	}
	abs := math.Abs(f)
	if abs >= 1e21 || (abs != 0 && abs < 1e-6) {
		return strconv.FormatFloat(f, 'g', -1, 64)
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}
