package query

// Expression is a node of a parsed AQL query. The set of implementations is
// closed: ConditionExpr, ArrayConditionExpr, BinaryExpr, NotExpr, GroupExpr
// and BooleanExpr. Trees are immutable once returned by the parser and may be
// shared between goroutines.
type Expression interface {
	astNode()
}

// ConditionExpr compares a record field with a single value (e.g. age > 25).
type ConditionExpr struct {
	Left      Accessor
	Operation Operation
	Right     Value
}

func (e *ConditionExpr) astNode() {}

// ArrayConditionExpr tests membership of a record field in a value list
// (e.g. status IN ["passed", "broken"]).
type ArrayConditionExpr struct {
	Left  Accessor
	Right []Value
}

func (e *ArrayConditionExpr) astNode() {}

// BinaryExpr combines two expressions with AND or OR.
type BinaryExpr struct {
	Operator LogicalOperator
	Left     Expression
	Right    Expression
}

func (e *BinaryExpr) astNode() {}

// NotExpr negates an expression.
type NotExpr struct {
	Expr Expression
}

func (e *NotExpr) astNode() {}

// GroupExpr represents a grouped expression (parentheses)
type GroupExpr struct {
	Expr Expression
}

func (e *GroupExpr) astNode() {}

// BooleanExpr is a standalone true or false.
type BooleanExpr struct {
	Value bool
}

func (e *BooleanExpr) astNode() {}

// ParamKind is the type of a bracket accessor parameter.
type ParamKind string

const (
	ParamNumber ParamKind = "number"
	ParamString ParamKind = "string"
)

// AccessorParam is the key or index inside accessor brackets. Value holds the
// unescaped string or the number's source text.
type AccessorParam struct {
	Kind  ParamKind
	Value string
}

// Accessor references a record field, optionally indexed by a single key.
type Accessor struct {
	Identifier string
	Param      *AccessorParam
}

// ValueKind is the type of a literal value.
type ValueKind string

const (
	ValueNull     ValueKind = "NULL"
	ValueBoolean  ValueKind = "BOOLEAN"
	ValueNumber   ValueKind = "NUMBER"
	ValueString   ValueKind = "STRING"
	ValueFunction ValueKind = "FUNCTION"
)

// Value is a literal as written in the query. Interpretation of Raw is
// deferred to the interpreter.
type Value struct {
	Kind ValueKind
	Raw  string
}

// Operation is a comparison operation.
type Operation string

const (
	OpEqual              Operation = "EQ"
	OpNotEqual           Operation = "NEQ"
	OpGreaterThan        Operation = "GT"
	OpGreaterThanOrEqual Operation = "GE"
	OpLessThan           Operation = "LT"
	OpLessThanOrEqual    Operation = "LE"
	OpContains           Operation = "CONTAINS"
	OpIn                 Operation = "IN"
)

// Symbol returns the textual operator for op.
func (op Operation) Symbol() string {
	switch op {
	case OpEqual:
		return "="
	case OpNotEqual:
		return "!="
	case OpGreaterThan:
		return ">"
	case OpGreaterThanOrEqual:
		return ">="
	case OpLessThan:
		return "<"
	case OpLessThanOrEqual:
		return "<="
	case OpContains:
		return "~="
	case OpIn:
		return KeywordIn
	}
	return string(op)
}

// operationFromSymbol maps operator tokens (and the IS alias) to operations.
func operationFromSymbol(symbol string) (Operation, bool) {
	switch symbol {
	case "=", KeywordIs:
		return OpEqual, true
	case "!=":
		return OpNotEqual, true
	case ">":
		return OpGreaterThan, true
	case ">=":
		return OpGreaterThanOrEqual, true
	case "<":
		return OpLessThan, true
	case "<=":
		return OpLessThanOrEqual, true
	case "~=":
		return OpContains, true
	}
	return "", false
}

// LogicalOperator is AND, OR or NOT.
type LogicalOperator string

const (
	LogicalAnd LogicalOperator = "AND"
	LogicalOr  LogicalOperator = "OR"
	LogicalNot LogicalOperator = "NOT"
)

// ParseResult is the outcome of a successful parse. A nil Expression means the
// input was blank and every record matches.
type ParseResult struct {
	Expression Expression
}

// Equal reports whether two expressions are structurally identical.
func Equal(a, b Expression) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	switch x := a.(type) {
	case *ConditionExpr:
		y, ok := b.(*ConditionExpr)
		return ok && accessorsEqual(x.Left, y.Left) && x.Operation == y.Operation && x.Right == y.Right
	case *ArrayConditionExpr:
		y, ok := b.(*ArrayConditionExpr)
		if !ok || !accessorsEqual(x.Left, y.Left) || len(x.Right) != len(y.Right) {
			return false
		}
		for i := range x.Right {
			if x.Right[i] != y.Right[i] {
				return false
			}
		}
		return true
	case *BinaryExpr:
		y, ok := b.(*BinaryExpr)
		return ok && x.Operator == y.Operator && Equal(x.Left, y.Left) && Equal(x.Right, y.Right)
	case *NotExpr:
		y, ok := b.(*NotExpr)
		return ok && Equal(x.Expr, y.Expr)
	case *GroupExpr:
		y, ok := b.(*GroupExpr)
		return ok && Equal(x.Expr, y.Expr)
	case *BooleanExpr:
		y, ok := b.(*BooleanExpr)
		return ok && x.Value == y.Value
	}
	return false
}

func accessorsEqual(a, b Accessor) bool {
	if a.Identifier != b.Identifier {
		return false
	}
	if a.Param == nil || b.Param == nil {
		return a.Param == nil && b.Param == nil
	}
	return *a.Param == *b.Param
}
