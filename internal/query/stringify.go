package query

import (
	"strings"
)

// String renders expr in canonical AQL. A nil expression renders as "".
// Parsing the result yields a structurally equal tree.
func String(expr Expression) (string, error) {
	if expr == nil {
		return "", nil
	}
	var b strings.Builder
	if err := writeExpression(&b, expr); err != nil {
		return "", err
	}
	return b.String(), nil
}

func writeExpression(b *strings.Builder, expr Expression) error {
	switch e := expr.(type) {
	case *ConditionExpr:
		writeAccessor(b, e.Left)
		b.WriteByte(' ')
		b.WriteString(e.Operation.Symbol())
		b.WriteByte(' ')
		writeValue(b, e.Right)
		return nil
	case *ArrayConditionExpr:
		writeAccessor(b, e.Left)
		b.WriteString(" IN [")
		for i, v := range e.Right {
			if i > 0 {
				b.WriteString(", ")
			}
			writeValue(b, v)
		}
		b.WriteByte(']')
		return nil
	case *BinaryExpr:
		if err := writeOperand(b, e.Left, bindingPower(e)); err != nil {
			return err
		}
		b.WriteByte(' ')
		b.WriteString(string(e.Operator))
		b.WriteByte(' ')
		return writeOperand(b, e.Right, bindingPower(e))
	case *NotExpr:
		b.WriteString("NOT ")
		return writeOperand(b, e.Expr, bindingPowerNot)
	case *GroupExpr:
		b.WriteByte('(')
		if err := writeChild(b, e.Expr); err != nil {
			return err
		}
		b.WriteByte(')')
		return nil
	case *BooleanExpr:
		if e.Value {
			b.WriteString("true")
		} else {
			b.WriteString("false")
		}
		return nil
	default:
		return unknownNode(expr)
	}
}

const (
	bindingPowerOr = iota + 1
	bindingPowerAnd
	bindingPowerNot
	bindingPowerPrimary
)

func bindingPower(expr Expression) int {
	switch e := expr.(type) {
	case *BinaryExpr:
		if e.Operator == LogicalOr {
			return bindingPowerOr
		}
		return bindingPowerAnd
	case *NotExpr:
		return bindingPowerNot
	default:
		return bindingPowerPrimary
	}
}

// writeOperand parenthesises operands that bind looser than their parent.
// Trees produced by the parser already carry GroupExpr nodes where needed.
func writeOperand(b *strings.Builder, expr Expression, parent int) error {
	if expr != nil && bindingPower(expr) < parent {
		b.WriteByte('(')
		if err := writeExpression(b, expr); err != nil {
			return err
		}
		b.WriteByte(')')
		return nil
	}
	return writeChild(b, expr)
}

func writeChild(b *strings.Builder, expr Expression) error {
	if expr == nil {
		return unknownNode(expr)
	}
	return writeExpression(b, expr)
}

func writeAccessor(b *strings.Builder, a Accessor) {
	b.WriteString(a.Identifier)
	if a.Param == nil {
		return
	}
	b.WriteByte('[')
	if a.Param.Kind == ParamString {
		b.WriteString(quoteString(a.Param.Value))
	} else {
		b.WriteString(a.Param.Value)
	}
	b.WriteByte(']')
}

func writeValue(b *strings.Builder, v Value) {
	switch v.Kind {
	case ValueString:
		b.WriteString(quoteString(v.Raw))
	case ValueNumber:
		b.WriteString(v.Raw)
	case ValueBoolean:
		if strings.EqualFold(v.Raw, "true") {
			b.WriteString("true")
		} else {
			b.WriteString("false")
		}
	default:
		// FUNCTION values are resolved while parsing; an unresolved one is NULL.
		b.WriteString("null")
	}
}
