package query

import (
	"math"
	"reflect"
	"strconv"
	"strings"
)

// Record is a single item being filtered, keyed by field name.
type Record = map[string]any

// Predicate reports whether a record matches a compiled expression.
// Predicates hold no mutable state and are safe for concurrent use.
type Predicate func(Record) bool

func matchAll(Record) bool { return true }

// Compile turns an expression into a predicate. A nil expression matches
// every record.
func Compile(expr Expression) (Predicate, error) {
	if expr == nil {
		return matchAll, nil
	}
	return compileNode(expr)
}

func compileNode(expr Expression) (Predicate, error) {
	switch e := expr.(type) {
	case *ConditionExpr:
		return compileCondition(e), nil
	case *ArrayConditionExpr:
		return compileArrayCondition(e), nil
	case *BinaryExpr:
		return compileBinary(e)
	case *NotExpr:
		inner, err := compileChild(e.Expr)
		if err != nil {
			return nil, err
		}
		return func(r Record) bool { return !inner(r) }, nil
	case *GroupExpr:
		return compileChild(e.Expr)
	case *BooleanExpr:
		value := e.Value
		return func(Record) bool { return value }, nil
	default:
		return nil, unknownNode(expr)
	}
}

func compileChild(expr Expression) (Predicate, error) {
	if expr == nil {
		return nil, unknownNode(expr)
	}
	return compileNode(expr)
}

func compileBinary(e *BinaryExpr) (Predicate, error) {
	left, err := compileChild(e.Left)
	if err != nil {
		return nil, err
	}
	right, err := compileChild(e.Right)
	if err != nil {
		return nil, err
	}

	switch e.Operator {
	case LogicalAnd:
		return func(r Record) bool { return left(r) && right(r) }, nil
	case LogicalOr:
		return func(r Record) bool { return left(r) || right(r) }, nil
	default:
		return nil, unknownNode(e)
	}
}

func compileCondition(e *ConditionExpr) Predicate {
	get := compileAccessor(e.Left)
	right := materialize(e.Right)

	if right == nil {
		switch e.Operation {
		case OpEqual:
			return func(r Record) bool { return get(r) == nil }
		case OpNotEqual:
			return func(r Record) bool { return get(r) != nil }
		default:
			return func(Record) bool { return false }
		}
	}

	switch e.Operation {
	case OpEqual:
		return func(r Record) bool {
			left := get(r)
			return left != nil && equals(left, right)
		}
	case OpNotEqual:
		return func(r Record) bool {
			left := get(r)
			return left != nil && !equals(left, right)
		}
	case OpGreaterThan, OpGreaterThanOrEqual, OpLessThan, OpLessThanOrEqual:
		return compileOrdering(get, e.Operation, toNumber(right))
	case OpContains:
		needle := toLower(toString(right))
		return func(r Record) bool {
			left := get(r)
			return left != nil && strings.Contains(toLower(toString(left)), needle)
		}
	default:
		return func(Record) bool { return false }
	}
}

func compileOrdering(get func(Record) any, op Operation, right float64) Predicate {
	var accept func(int) bool
	switch op {
	case OpGreaterThan:
		accept = func(c int) bool { return c > 0 }
	case OpGreaterThanOrEqual:
		accept = func(c int) bool { return c >= 0 }
	case OpLessThan:
		accept = func(c int) bool { return c < 0 }
	default:
		accept = func(c int) bool { return c <= 0 }
	}
	return func(r Record) bool {
		left := get(r)
		return left != nil && accept(compareNumbers(toNumber(left), right))
	}
}

func compileArrayCondition(e *ArrayConditionExpr) Predicate {
	get := compileAccessor(e.Left)
	values := make([]any, 0, len(e.Right))
	for _, v := range e.Right {
		if m := materialize(v); m != nil {
			values = append(values, m)
		}
	}

	return func(r Record) bool {
		left := get(r)
		if left == nil {
			return false
		}
		for _, v := range values {
			if equals(left, v) {
				return true
			}
		}
		return false
	}
}

// materialize converts a literal into the Go value the comparisons use.
// NULL and unresolved FUNCTION values are missing (nil).
func materialize(v Value) any {
	switch v.Kind {
	case ValueBoolean:
		return strings.EqualFold(v.Raw, "true")
	case ValueNumber:
		if !strings.Contains(v.Raw, ".") {
			if n, err := strconv.ParseInt(v.Raw, 10, 64); err == nil {
				return n
			}
		}
		f, err := strconv.ParseFloat(v.Raw, 64)
		if err != nil && !math.IsInf(f, 0) {
			return int64(0)
		}
		return f
	case ValueString:
		return v.Raw
	default:
		return nil
	}
}

// compileAccessor returns a function reading the accessor's value from a
// record; nil means missing.
func compileAccessor(a Accessor) func(Record) any {
	name := a.Identifier
	if a.Param == nil {
		return func(r Record) any { return normalize(r[name]) }
	}

	param := *a.Param
	return func(r Record) any {
		base := normalize(r[name])
		if base == nil {
			return nil
		}
		return index(base, param)
	}
}

// index reads base[param]. Anything other than an in-range integer index
// on a list or a key on a string-keyed map is missing.
func index(base any, param AccessorParam) any {
	switch b := base.(type) {
	case map[string]any:
		return normalize(b[param.Value])
	case []any:
		if i, ok := arrayIndex(param, len(b)); ok {
			return normalize(b[i])
		}
		return nil
	}

	rv := reflect.ValueOf(base)
	switch rv.Kind() {
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return nil
		}
		v := rv.MapIndex(reflect.ValueOf(param.Value).Convert(rv.Type().Key()))
		if !v.IsValid() {
			return nil
		}
		return normalize(v.Interface())
	case reflect.Slice, reflect.Array:
		if i, ok := arrayIndex(param, rv.Len()); ok {
			return normalize(rv.Index(i).Interface())
		}
	}
	return nil
}

func arrayIndex(param AccessorParam, length int) (int, bool) {
	if param.Kind != ParamNumber {
		return 0, false
	}
	i, err := strconv.Atoi(param.Value)
	if err != nil || i < 0 || i >= length {
		return 0, false
	}
	return i, true
}

// FilterRecords returns the records matching expr in their original order.
// A nil expression returns items unchanged.
func FilterRecords(items []Record, expr Expression) ([]Record, error) {
	if expr == nil {
		return items, nil
	}
	pred, err := Compile(expr)
	if err != nil {
		return nil, err
	}
	return FilterWith(items, func(r Record) Record { return r }, pred), nil
}

// FilterWith returns the items whose record form matches pred, preserving order.
func FilterWith[T any](items []T, record func(T) Record, pred Predicate) []T {
	out := make([]T, 0, len(items))
	for _, item := range items {
		if pred(record(item)) {
			out = append(out, item)
		}
	}
	return out
}
