package query

import (
	"fmt"

	"github.com/nlstn/go-aql/internal/aqlerrors"
)

// parseOr handles OR expressions (lowest precedence)
func (p *ASTParser) parseOr() (Expression, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}

	for p.currentToken().Is(KeywordOr) {
		op := p.currentToken()
		if err := p.config.checkLogicalOperator(LogicalOr, op.Pos); err != nil {
			return nil, err
		}
		p.advance()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &BinaryExpr{
			Operator: LogicalOr,
			Left:     left,
			Right:    right,
		}
	}

	return left, nil
}

// parseAnd handles AND expressions
func (p *ASTParser) parseAnd() (Expression, error) {
	left, err := p.parseNot()
	if err != nil {
		return nil, err
	}

	for p.currentToken().Is(KeywordAnd) {
		op := p.currentToken()
		if err := p.config.checkLogicalOperator(LogicalAnd, op.Pos); err != nil {
			return nil, err
		}
		p.advance()
		right, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		left = &BinaryExpr{
			Operator: LogicalAnd,
			Left:     left,
			Right:    right,
		}
	}

	return left, nil
}

// parseNot handles NOT expressions. NOT is right-associative, so NOT NOT x
// nests two NotExpr nodes.
func (p *ASTParser) parseNot() (Expression, error) {
	if !p.currentToken().Is(KeywordNot) {
		return p.parsePrimary()
	}

	op := p.currentToken()
	if err := p.config.checkLogicalOperator(LogicalNot, op.Pos); err != nil {
		return nil, err
	}
	p.advance()
	operand, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	return &NotExpr{Expr: operand}, nil
}

// parsePrimary handles groups, boolean leaves and conditions
func (p *ASTParser) parsePrimary() (Expression, error) {
	token := p.currentToken()

	switch {
	case token.Type == TokenLParen:
		return p.parseGroup()
	case token.Is(KeywordTrue), token.Is(KeywordFalse):
		p.advance()
		return &BooleanExpr{Value: token.Value == KeywordTrue}, nil
	case token.Type == TokenIdentifier:
		return p.parseCondition()
	case token.Type == TokenEOF:
		return nil, p.errorAt(aqlerrors.CodeExpectedExpression, token, "expected expression but reached end of input")
	case token.Type == TokenRParen:
		return nil, p.errorAt(aqlerrors.CodeExpectedExpression, token, "expected expression before ')'")
	default:
		return nil, p.errorAt(aqlerrors.CodeInvalidIdentifier, token,
			fmt.Sprintf("expected identifier but found %s", token.describe()))
	}
}

func (p *ASTParser) parseGroup() (Expression, error) {
	open := p.currentToken()
	if err := p.config.checkParentheses(open.Pos); err != nil {
		return nil, err
	}
	p.advance()

	inner, err := p.parseOr()
	if err != nil {
		return nil, err
	}

	if p.currentToken().Type != TokenRParen {
		return nil, aqlerrors.New(aqlerrors.CodeUnbalancedParenthesis,
			formatPos("missing closing parenthesis for '('", open.Pos),
			map[string]any{"token": "(", "position": open.Pos})
	}
	p.advance()
	return &GroupExpr{Expr: inner}, nil
}

// parseCondition handles Accessor Operator Value and Accessor IN [ ... ]
func (p *ASTParser) parseCondition() (Expression, error) {
	accessor, err := p.parseAccessor()
	if err != nil {
		return nil, err
	}

	token := p.currentToken()
	if token.Is(KeywordIn) {
		if err := p.config.checkOperation(OpIn, token.Pos); err != nil {
			return nil, err
		}
		p.advance()
		values, err := p.parseArray(token)
		if err != nil {
			return nil, err
		}
		return &ArrayConditionExpr{Left: accessor, Right: values}, nil
	}

	var op Operation
	ok := false
	if token.Type == TokenOperator || token.Is(KeywordIs) {
		op, ok = operationFromSymbol(token.Value)
	}
	if !ok {
		return nil, p.errorAt(aqlerrors.CodeExpectedOperation, token,
			fmt.Sprintf("expected operator after %q but found %s", accessor.Identifier, token.describe()))
	}
	if err := p.config.checkOperation(op, token.Pos); err != nil {
		return nil, err
	}
	p.advance()

	value, err := p.parseValue()
	if err != nil {
		return nil, err
	}
	return &ConditionExpr{Left: accessor, Operation: op, Right: value}, nil
}

// parseAccessor handles Identifier ( '[' (Number|String) ']' )?
func (p *ASTParser) parseAccessor() (Accessor, error) {
	ident := p.advance()
	if err := p.config.checkIdentifier(ident.Value, ident.Pos); err != nil {
		return Accessor{}, err
	}
	accessor := Accessor{Identifier: ident.Value}

	open := p.currentToken()
	if open.Type != TokenLBracket {
		return accessor, nil
	}
	if err := p.config.checkBracketAccess(ident.Value, open.Pos); err != nil {
		return Accessor{}, err
	}
	p.advance()

	param := p.currentToken()
	switch param.Type {
	case TokenNumber:
		accessor.Param = &AccessorParam{Kind: ParamNumber, Value: param.Value}
	case TokenString:
		accessor.Param = &AccessorParam{Kind: ParamString, Value: param.Value}
	case TokenRBracket:
		return Accessor{}, p.errorAt(aqlerrors.CodeInvalidAccessor, param,
			fmt.Sprintf("empty brackets after %q", ident.Value))
	case TokenEOF:
		return Accessor{}, p.errorAt(aqlerrors.CodeUnbalancedBracket, param,
			fmt.Sprintf("missing closing bracket after %q", ident.Value))
	default:
		return Accessor{}, p.errorAt(aqlerrors.CodeInvalidAccessor, param,
			fmt.Sprintf("accessor key must be a number or string but found %s", param.describe()))
	}
	p.advance()

	if p.currentToken().Type != TokenRBracket {
		return Accessor{}, p.errorAt(aqlerrors.CodeUnbalancedBracket, p.currentToken(),
			fmt.Sprintf("missing closing bracket after %q", ident.Value))
	}
	p.advance()
	return accessor, nil
}

// parseArray handles '[' (Value (',' Value)*)? ']' after IN
func (p *ASTParser) parseArray(in *Token) ([]Value, error) {
	open := p.currentToken()
	if open.Type != TokenLBracket {
		return nil, p.errorAt(aqlerrors.CodeExpectedValue, open,
			fmt.Sprintf("expected '[' after IN but found %s", open.describe()))
	}
	p.advance()

	values := []Value{}
	if p.currentToken().Type == TokenRBracket {
		p.advance()
		return values, nil
	}

	for {
		value, err := p.parseValue()
		if err != nil {
			return nil, err
		}
		values = append(values, value)

		token := p.currentToken()
		switch token.Type {
		case TokenComma:
			p.advance()
		case TokenRBracket:
			p.advance()
			return values, nil
		case TokenEOF:
			return nil, aqlerrors.New(aqlerrors.CodeUnbalancedBracket,
				formatPos("missing closing bracket for IN list", open.Pos),
				map[string]any{"token": "[", "position": open.Pos, "operator": in.Value})
		default:
			return nil, p.errorAt(aqlerrors.CodeExpectedValue, token,
				fmt.Sprintf("expected ',' or ']' in IN list but found %s", token.describe()))
		}
	}
}
