package query

import (
	"fmt"

	"github.com/nlstn/go-aql/internal/aqlerrors"
)

// ASTParser parses AQL tokens into an expression tree
type ASTParser struct {
	tokens  []*Token
	current int
	config  *ParserConfig
	values  map[string]any
}

// NewASTParser creates a new AST parser. config may be nil for the
// unrestricted language; values resolves function values such as "now()".
func NewASTParser(tokens []*Token, config *ParserConfig, values map[string]any) *ASTParser {
	return &ASTParser{
		tokens:  tokens,
		current: 0,
		config:  config,
		values:  values,
	}
}

// ParseString tokenizes and parses text in one step. Blank text yields a
// result with a nil Expression.
func ParseString(text string, config *ParserConfig, values map[string]any) (*ParseResult, error) {
	tokens, err := Tokenize(text)
	if err != nil {
		return nil, err
	}
	expr, err := NewASTParser(tokens, config, values).Parse()
	if err != nil {
		return nil, err
	}
	return &ParseResult{Expression: expr}, nil
}

// currentToken returns the current token
func (p *ASTParser) currentToken() *Token {
	if p.current >= len(p.tokens) {
		end := 0
		if n := len(p.tokens); n > 0 {
			end = p.tokens[n-1].Pos
		}
		return &Token{Type: TokenEOF, Pos: end}
	}
	return p.tokens[p.current]
}

// peekToken returns the token after the current one
func (p *ASTParser) peekToken() *Token {
	if p.current+1 >= len(p.tokens) {
		return &Token{Type: TokenEOF, Pos: p.currentToken().Pos}
	}
	return p.tokens[p.current+1]
}

// advance moves to the next token
func (p *ASTParser) advance() *Token {
	token := p.currentToken()
	if p.current < len(p.tokens) {
		p.current++
	}
	return token
}

// Parse parses the tokens into an AST. It returns nil for an empty token
// stream and never returns a partial tree alongside an error.
func (p *ASTParser) Parse() (Expression, error) {
	if p.currentToken().Type == TokenEOF {
		return nil, nil
	}

	node, err := p.parseOr()
	if err != nil {
		return nil, err
	}

	// Verify all tokens were consumed (except EOF)
	switch token := p.currentToken(); token.Type {
	case TokenEOF:
		return node, nil
	case TokenRParen:
		return nil, p.errorAt(aqlerrors.CodeUnbalancedParenthesis, token, "unexpected closing parenthesis")
	default:
		return nil, p.errorAt(aqlerrors.CodeUnexpectedToken, token,
			fmt.Sprintf("unexpected %s after expression", token.describe()))
	}
}

// errorAt builds an AqlError naming the offending token.
func (p *ASTParser) errorAt(code aqlerrors.ErrorCode, token *Token, msg string) error {
	details := map[string]any{"position": token.Pos}
	if token.Type != TokenEOF {
		details["token"] = token.Value
	}
	return aqlerrors.New(code, formatPos(msg, token.Pos), details)
}
