// Package aql implements AQL, a small query language for filtering
// collections of records with expressions such as
//
//	status = "passed" AND duration > 1000
//
// Text is tokenized and parsed into an immutable expression tree, which can
// be compiled into a predicate, applied to records in memory, pushed down to
// a SQL database through GORM, or rendered back to canonical text.
//
// Every error returned by this package is an *AqlError carrying one of a
// closed set of codes.
package aql

import (
	"fmt"

	"github.com/nlstn/go-aql/internal/aqlerrors"
	"github.com/nlstn/go-aql/internal/query"
)

// ParseOption configures a single parse call.
type ParseOption func(*parseOptions)

type parseOptions struct {
	values map[string]any
	config *ParserConfig
}

// WithContextValues supplies the values FUNCTION literals resolve against.
// A literal name() is looked up under the key "name()".
func WithContextValues(values map[string]any) ParseOption {
	return func(o *parseOptions) {
		o.values = values
	}
}

// WithConfig restricts the grammar accepted by the parse call.
// A nil config accepts the full language.
func WithConfig(cfg *ParserConfig) ParseOption {
	return func(o *parseOptions) {
		o.config = cfg
	}
}

func collectParseOptions(opts []ParseOption) parseOptions {
	var o parseOptions
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return o
}

// recoverError turns a panic escaping the engine into a CodeUnknown error.
func recoverError(err *error) {
	if r := recover(); r != nil {
		*err = aqlerrors.FromPanic(r)
	}
}

// Parse parses text into an expression tree. Blank input yields a result
// with a nil Expression, which matches every record.
func Parse(text string, opts ...ParseOption) (result *ParseResult, err error) {
	defer recoverError(&err)

	o := collectParseOptions(opts)
	result, err = query.ParseString(text, o.config, o.values)
	if err != nil {
		return nil, aqlerrors.Wrap(err)
	}
	return result, nil
}

// ParseValue parses an untyped query, as received from JSON or another
// dynamic source. Strings, byte slices and fmt.Stringer values are accepted;
// anything else fails with CodeInvalidInput.
func ParseValue(input any, opts ...ParseOption) (*ParseResult, error) {
	switch v := input.(type) {
	case string:
		return Parse(v, opts...)
	case []byte:
		return Parse(string(v), opts...)
	case fmt.Stringer:
		return Parse(v.String(), opts...)
	}
	return nil, aqlerrors.New(aqlerrors.CodeInvalidInput,
		fmt.Sprintf("query must be a string, got %T", input),
		map[string]any{"type": fmt.Sprintf("%T", input)})
}

// Filter parses query and returns the matching items in their original order.
// A blank query returns items unchanged.
func Filter(items []Record, text string, opts ...ParseOption) ([]Record, error) {
	result, err := Parse(text, opts...)
	if err != nil {
		return nil, err
	}
	return FilterExpression(items, result.Expression)
}

// FilterExpression returns the items matching a previously parsed expression.
// A nil expression returns items unchanged.
func FilterExpression(items []Record, expr Expression) (out []Record, err error) {
	defer recoverError(&err)

	out, err = query.FilterRecords(items, expr)
	if err != nil {
		return nil, aqlerrors.Wrap(err)
	}
	return out, nil
}

// FilterFunc filters arbitrary items through their record form.
// A nil expression returns items unchanged.
func FilterFunc[T any](items []T, expr Expression, record func(T) Record) (out []T, err error) {
	if expr == nil {
		return items, nil
	}
	defer recoverError(&err)

	pred, err := Compile(expr)
	if err != nil {
		return nil, err
	}
	return query.FilterWith(items, record, pred), nil
}

// Compile turns an expression into a reusable predicate. A nil expression
// matches every record. Predicates are safe for concurrent use.
func Compile(expr Expression) (pred Predicate, err error) {
	defer recoverError(&err)

	pred, err = query.Compile(expr)
	if err != nil {
		return nil, aqlerrors.Wrap(err)
	}
	return pred, nil
}

// String renders expr as canonical AQL text. Parsing the output yields a
// structurally equal expression. A nil expression renders as "".
func String(expr Expression) (s string, err error) {
	defer recoverError(&err)

	s, err = query.String(expr)
	if err != nil {
		return "", aqlerrors.Wrap(err)
	}
	return s, nil
}

// Equal reports whether two expressions are structurally identical.
func Equal(a, b Expression) bool {
	return query.Equal(a, b)
}
