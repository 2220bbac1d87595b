package query

import (
	"fmt"

	"github.com/nlstn/go-aql/internal/aqlerrors"
)

// ParserConfig restricts the grammar a single parse call accepts.
// Every field is optional: a nil slice or nil pointer leaves that feature
// unrestricted, so a nil *ParserConfig and &ParserConfig{} both accept the
// full language. A non-nil empty slice allows nothing.
type ParserConfig struct {
	// LogicalOperators lists the allowed logical operators (AND, OR, NOT).
	LogicalOperators []LogicalOperator

	// Operations lists the allowed comparison operations, including IN.
	// The IS keyword is checked as EQ.
	Operations []Operation

	// Identifiers lists the allowed field names.
	Identifiers []string

	// IdentifierFunc decides per field name whether it is allowed.
	// It takes precedence over Identifiers.
	IdentifierFunc func(identifier string) bool

	// ValueTypes lists the allowed value kinds. FUNCTION values are checked
	// before they are resolved against the context.
	ValueTypes []ValueKind

	// AllowParentheses controls grouping with ( ).
	AllowParentheses *bool

	// AllowBracketAccess controls field[index] accessors.
	AllowBracketAccess *bool
}

func (c *ParserConfig) checkLogicalOperator(op LogicalOperator, pos int) error {
	if c == nil || c.LogicalOperators == nil || containsValue(c.LogicalOperators, op) {
		return nil
	}
	return aqlerrors.New(aqlerrors.CodeForbiddenLogicalOperator,
		formatPos(fmt.Sprintf("logical operator %s is not allowed", op), pos),
		map[string]any{"operator": string(op), "position": pos})
}

func (c *ParserConfig) checkOperation(op Operation, pos int) error {
	if c == nil || c.Operations == nil || containsValue(c.Operations, op) {
		return nil
	}
	return aqlerrors.New(aqlerrors.CodeForbiddenOperation,
		formatPos(fmt.Sprintf("operation %s (%s) is not allowed", op, op.Symbol()), pos),
		map[string]any{"operation": string(op), "position": pos})
}

func (c *ParserConfig) checkIdentifier(identifier string, pos int) error {
	if c == nil {
		return nil
	}
	allowed := true
	switch {
	case c.IdentifierFunc != nil:
		allowed = c.IdentifierFunc(identifier)
	case c.Identifiers != nil:
		allowed = containsValue(c.Identifiers, identifier)
	}
	if allowed {
		return nil
	}
	return aqlerrors.New(aqlerrors.CodeForbiddenIdentifier,
		formatPos(fmt.Sprintf("identifier %q is not allowed", identifier), pos),
		map[string]any{"identifier": identifier, "position": pos})
}

func (c *ParserConfig) checkValueType(kind ValueKind, pos int) error {
	if c == nil || c.ValueTypes == nil || containsValue(c.ValueTypes, kind) {
		return nil
	}
	return aqlerrors.New(aqlerrors.CodeForbiddenValueType,
		formatPos(fmt.Sprintf("value type %s is not allowed", kind), pos),
		map[string]any{"valueType": string(kind), "position": pos})
}

func (c *ParserConfig) checkParentheses(pos int) error {
	if c == nil || c.AllowParentheses == nil || *c.AllowParentheses {
		return nil
	}
	return aqlerrors.New(aqlerrors.CodeForbiddenParentheses,
		formatPos("parentheses are not allowed", pos),
		map[string]any{"token": "(", "position": pos})
}

func (c *ParserConfig) checkBracketAccess(identifier string, pos int) error {
	if c == nil || c.AllowBracketAccess == nil || *c.AllowBracketAccess {
		return nil
	}
	return aqlerrors.New(aqlerrors.CodeForbiddenBracketAccess,
		formatPos(fmt.Sprintf("bracket access on %q is not allowed", identifier), pos),
		map[string]any{"identifier": identifier, "token": "[", "position": pos})
}

func containsValue[T comparable](values []T, v T) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}
