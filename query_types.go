package aql

import "github.com/nlstn/go-aql/internal/query"

// Expression is a node of a parsed AQL expression tree. The concrete node
// types are *ConditionExpr, *ArrayConditionExpr, *BinaryExpr, *NotExpr,
// *GroupExpr and *BooleanExpr. Trees returned by Parse are immutable and may
// be shared between goroutines.
type Expression = query.Expression

// ConditionExpr compares an accessor with a single value, e.g. status = "passed".
type ConditionExpr = query.ConditionExpr

// ArrayConditionExpr tests membership, e.g. status IN ["failed", "broken"].
type ArrayConditionExpr = query.ArrayConditionExpr

// BinaryExpr joins two expressions with AND or OR.
type BinaryExpr = query.BinaryExpr

// NotExpr negates an expression.
type NotExpr = query.NotExpr

// GroupExpr is a parenthesised expression.
type GroupExpr = query.GroupExpr

// BooleanExpr is a standalone true or false.
type BooleanExpr = query.BooleanExpr

// Accessor references a record field, optionally indexed, e.g. labels["owner"].
type Accessor = query.Accessor

// AccessorParam is the key or index inside accessor brackets.
type AccessorParam = query.AccessorParam

// ParamKind is the type of an accessor parameter.
type ParamKind = query.ParamKind

// Value is a literal as written in the query.
type Value = query.Value

// ValueKind is the type of a literal.
type ValueKind = query.ValueKind

// Operation is a comparison operation.
type Operation = query.Operation

// LogicalOperator is AND, OR or NOT.
type LogicalOperator = query.LogicalOperator

// ParseResult holds a parsed expression. A nil Expression means blank input.
type ParseResult = query.ParseResult

// ParserConfig restricts the grammar a parse call accepts. A nil slice or
// pointer field leaves that feature unrestricted; a non-nil empty slice
// allows nothing.
//
// Example allowing only equality on two fields:
//
//	cfg := &aql.ParserConfig{
//	    Operations:       []aql.Operation{aql.OpEqual},
//	    Identifiers:      []string{"status", "flaky"},
//	    AllowParentheses: aql.Bool(false),
//	}
type ParserConfig = query.ParserConfig

// Record is a single item being filtered, keyed by field name.
type Record = query.Record

// Predicate reports whether a record matches a compiled expression.
type Predicate = query.Predicate

// Accessor parameter kinds.
const (
	ParamNumber = query.ParamNumber
	ParamString = query.ParamString
)

// Value kinds.
const (
	ValueNull     = query.ValueNull
	ValueBoolean  = query.ValueBoolean
	ValueNumber   = query.ValueNumber
	ValueString   = query.ValueString
	ValueFunction = query.ValueFunction
)

// Comparison operations.
const (
	OpEqual              = query.OpEqual
	OpNotEqual           = query.OpNotEqual
	OpGreaterThan        = query.OpGreaterThan
	OpGreaterThanOrEqual = query.OpGreaterThanOrEqual
	OpLessThan           = query.OpLessThan
	OpLessThanOrEqual    = query.OpLessThanOrEqual
	OpContains           = query.OpContains
	OpIn                 = query.OpIn
)

// Logical operators.
const (
	LogicalAnd = query.LogicalAnd
	LogicalOr  = query.LogicalOr
	LogicalNot = query.LogicalNot
)

// Bool returns a pointer to b, for the optional fields of ParserConfig.
func Bool(b bool) *bool {
	return &b
}
