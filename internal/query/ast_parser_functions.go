package query

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/nlstn/go-aql/internal/aqlerrors"
	"github.com/shopspring/decimal"
)

var nullValue = Value{Kind: ValueNull, Raw: "null"}

// parseValue handles the right-hand side of a condition or an IN element.
func (p *ASTParser) parseValue() (Value, error) {
	token := p.currentToken()

	var value Value
	switch {
	case token.Type == TokenString:
		value = Value{Kind: ValueString, Raw: token.Value}
	case token.Type == TokenNumber:
		value = Value{Kind: ValueNumber, Raw: token.Value}
	case token.Is(KeywordTrue):
		value = Value{Kind: ValueBoolean, Raw: "true"}
	case token.Is(KeywordFalse):
		value = Value{Kind: ValueBoolean, Raw: "false"}
	case token.Is(KeywordNull), token.Is(KeywordEmpty):
		value = nullValue
	case token.Type == TokenIdentifier && p.peekToken().Type == TokenLParen:
		return p.parseFunctionValue()
	case token.Type == TokenEOF:
		return Value{}, p.errorAt(aqlerrors.CodeExpectedValue, token, "expected value but reached end of input")
	default:
		return Value{}, p.errorAt(aqlerrors.CodeExpectedValue, token,
			fmt.Sprintf("expected value but found %s", token.describe()))
	}

	if err := p.config.checkValueType(value.Kind, token.Pos); err != nil {
		return Value{}, err
	}
	p.advance()
	return value, nil
}

// parseFunctionValue handles name() and resolves it against the context values.
func (p *ASTParser) parseFunctionValue() (Value, error) {
	name := p.currentToken()
	if err := p.config.checkValueType(ValueFunction, name.Pos); err != nil {
		return Value{}, err
	}
	p.advance() // name
	p.advance() // (

	if closing := p.currentToken(); closing.Type != TokenRParen {
		return Value{}, p.errorAt(aqlerrors.CodeUnbalancedParenthesis, closing,
			fmt.Sprintf("expected ')' after %s(", name.Value))
	}
	p.advance()

	return resolveFunctionValue(p.values, name.Value), nil
}

// resolveFunctionValue looks up "<name>()" in values and re-encodes the
// result by its dynamic type. Unknown functions resolve to NULL.
func resolveFunctionValue(values map[string]any, name string) Value {
	v, ok := values[name+"()"]
	if !ok {
		return nullValue
	}
	return encodeValue(v)
}

func encodeValue(v any) Value {
	switch x := v.(type) {
	case nil:
		return nullValue
	case string:
		return Value{Kind: ValueString, Raw: x}
	case bool:
		return Value{Kind: ValueBoolean, Raw: strconv.FormatBool(x)}
	case int:
		return numberValue(strconv.FormatInt(int64(x), 10))
	case int8:
		return numberValue(strconv.FormatInt(int64(x), 10))
	case int16:
		return numberValue(strconv.FormatInt(int64(x), 10))
	case int32:
		return numberValue(strconv.FormatInt(int64(x), 10))
	case int64:
		return numberValue(strconv.FormatInt(x, 10))
	case uint:
		return numberValue(strconv.FormatUint(uint64(x), 10))
	case uint8:
		return numberValue(strconv.FormatUint(uint64(x), 10))
	case uint16:
		return numberValue(strconv.FormatUint(uint64(x), 10))
	case uint32:
		return numberValue(strconv.FormatUint(uint64(x), 10))
	case uint64:
		return numberValue(strconv.FormatUint(x, 10))
	case float32:
		return floatValue(float64(x))
	case float64:
		return floatValue(x)
	case json.Number:
		if f, err := x.Float64(); err == nil {
			return floatValue(f)
		}
		return nullValue
	case decimal.Decimal:
		return numberValue(x.String())
	case time.Time:
		return numberValue(strconv.FormatInt(x.UnixMilli(), 10))
	default:
		return Value{Kind: ValueString, Raw: fmt.Sprint(v)}
	}
}

func numberValue(raw string) Value {
	return Value{Kind: ValueNumber, Raw: raw}
}

// floatValue encodes f so that the serialized form re-tokenizes as a number.
// NaN and infinities have no literal form and degrade to NULL.
func floatValue(f float64) Value {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nullValue
	}
	return numberValue(strconv.FormatFloat(f, 'f', -1, 64))
}
