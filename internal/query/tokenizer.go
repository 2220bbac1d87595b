package query

import (
	"strings"
	"unicode/utf8"

	"github.com/nlstn/go-aql/internal/aqlerrors"
)

// TokenType represents the type of a token
type TokenType int

const (
	TokenEOF TokenType = iota
	TokenIdentifier
	TokenString
	TokenNumber
	TokenKeyword
	TokenOperator
	TokenLParen
	TokenRParen
	TokenLBracket
	TokenRBracket
	TokenComma
)

var tokenTypeNames = [...]string{
	TokenEOF:        "end of input",
	TokenIdentifier: "identifier",
	TokenString:     "string",
	TokenNumber:     "number",
	TokenKeyword:    "keyword",
	TokenOperator:   "operator",
	TokenLParen:     "'('",
	TokenRParen:     "')'",
	TokenLBracket:   "'['",
	TokenRBracket:   "']'",
	TokenComma:      "','",
}

func (t TokenType) String() string {
	if int(t) >= 0 && int(t) < len(tokenTypeNames) {
		return tokenTypeNames[t]
	}
	return "unknown"
}

// Keywords recognised by the tokenizer. Matching is case-insensitive and the
// token value is always the upper-case form.
const (
	KeywordAnd   = "AND"
	KeywordOr    = "OR"
	KeywordNot   = "NOT"
	KeywordIn    = "IN"
	KeywordIs    = "IS"
	KeywordTrue  = "TRUE"
	KeywordFalse = "FALSE"
	KeywordNull  = "NULL"
	KeywordEmpty = "EMPTY"
)

// Token represents a single token in an AQL expression.
// For strings Value holds the unescaped content; Pos is the byte offset of
// the token's first character.
type Token struct {
	Type  TokenType
	Value string
	Pos   int
}

// Is reports whether the token is the given keyword.
func (t *Token) Is(keyword string) bool {
	return t.Type == TokenKeyword && t.Value == keyword
}

// describe renders the token for error messages.
func (t *Token) describe() string {
	switch t.Type {
	case TokenEOF:
		return "end of input"
	case TokenString:
		return "string " + quoteString(t.Value)
	default:
		return "'" + t.Value + "'"
	}
}

// Tokenizer tokenizes AQL expressions
type Tokenizer struct {
	input string
	pos   int
	ch    byte
}

// NewTokenizer creates a new tokenizer
func NewTokenizer(input string) *Tokenizer {
	t := &Tokenizer{
		input: input,
		pos:   0,
	}
	if len(input) > 0 {
		t.ch = input[0]
	}
	return t
}

// Tokenize converts text into tokens terminated by a TokenEOF token.
func Tokenize(text string) ([]*Token, error) {
	return NewTokenizer(text).TokenizeAll()
}

func (t *Tokenizer) atEnd() bool {
	return t.pos >= len(t.input)
}

// advance moves to the next character
func (t *Tokenizer) advance() {
	t.pos++
	if t.pos >= len(t.input) {
		t.ch = 0
	} else {
		t.ch = t.input[t.pos]
	}
}

// peek looks ahead without advancing
func (t *Tokenizer) peek() byte {
	if t.pos+1 >= len(t.input) {
		return 0
	}
	return t.input[t.pos+1]
}

func isWhitespace(ch byte) bool {
	return ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r' || ch == '\f' || ch == '\v'
}

func isDigit(ch byte) bool {
	return ch >= '0' && ch <= '9'
}

func isIdentifierChar(ch byte) bool {
	return (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') || ch == '_'
}

// skipWhitespace skips whitespace characters
func (t *Tokenizer) skipWhitespace() {
	for !t.atEnd() && isWhitespace(t.ch) {
		t.advance()
	}
}

// readString reads a double-quoted string, resolving escape sequences.
func (t *Tokenizer) readString() (string, error) {
	start := t.pos
	t.advance() // opening quote

	var result strings.Builder
	for {
		if t.atEnd() || t.ch == '\n' {
			return "", aqlerrors.New(aqlerrors.CodeUnterminatedString,
				formatPos("unterminated string literal starting", start),
				map[string]any{"position": start})
		}
		switch t.ch {
		case '"':
			t.advance()
			return result.String(), nil
		case '\\':
			t.advance()
			if t.atEnd() || t.ch == '\n' {
				continue
			}
			switch t.ch {
			case 'n':
				result.WriteByte('\n')
			case 't':
				result.WriteByte('\t')
			case 'r':
				result.WriteByte('\r')
			default:
				// \" and \\ land here too
				result.WriteByte(t.ch)
			}
			t.advance()
		default:
			result.WriteByte(t.ch)
			t.advance()
		}
	}
}

// readNumber reads an optionally negative number with at most one fractional part.
func (t *Tokenizer) readNumber() string {
	start := t.pos
	if t.ch == '-' {
		t.advance()
	}
	for !t.atEnd() && isDigit(t.ch) {
		t.advance()
	}
	if t.ch == '.' && isDigit(t.peek()) {
		t.advance()
		for !t.atEnd() && isDigit(t.ch) {
			t.advance()
		}
	}
	return t.input[start:t.pos]
}

// readIdentifier reads an identifier or keyword
func (t *Tokenizer) readIdentifier() string {
	start := t.pos
	for !t.atEnd() && isIdentifierChar(t.ch) {
		t.advance()
	}
	return t.input[start:t.pos]
}

// NextToken returns the next token
func (t *Tokenizer) NextToken() (*Token, error) {
	t.skipWhitespace()

	if t.atEnd() {
		return &Token{Type: TokenEOF, Pos: t.pos}, nil
	}

	pos := t.pos

	if t.ch == '"' {
		value, err := t.readString()
		if err != nil {
			return nil, err
		}
		return &Token{Type: TokenString, Value: value, Pos: pos}, nil
	}

	if token := t.tokenizeNumber(pos); token != nil {
		return token, nil
	}

	if token := t.tokenizeSpecialChar(pos); token != nil {
		return token, nil
	}

	if token := t.tokenizeIdentifierOrKeyword(pos); token != nil {
		return token, nil
	}

	return nil, t.unexpectedCharacter()
}

func (t *Tokenizer) unexpectedCharacter() error {
	r, size := utf8.DecodeRuneInString(t.input[t.pos:])
	char := string(r)
	if r == utf8.RuneError && size <= 1 {
		char = string(t.input[t.pos : t.pos+1])
	}
	return aqlerrors.New(aqlerrors.CodeUnexpectedCharacter,
		formatPos("unexpected character "+quoteChar(char), t.pos),
		map[string]any{"character": char, "position": t.pos})
}

// tokenizeNumber tokenizes numeric literals
func (t *Tokenizer) tokenizeNumber(pos int) *Token {
	if isDigit(t.ch) || (t.ch == '-' && isDigit(t.peek())) {
		value := t.readNumber()
		return &Token{Type: TokenNumber, Value: value, Pos: pos}
	}
	return nil
}

// tokenizeSpecialChar tokenizes punctuation and comparison operators
func (t *Tokenizer) tokenizeSpecialChar(pos int) *Token {
	single := func(tt TokenType) *Token {
		v := string(t.ch)
		t.advance()
		return &Token{Type: tt, Value: v, Pos: pos}
	}
	pair := func(op string) *Token {
		t.advance()
		t.advance()
		return &Token{Type: TokenOperator, Value: op, Pos: pos}
	}

	switch t.ch {
	case '(':
		return single(TokenLParen)
	case ')':
		return single(TokenRParen)
	case '[':
		return single(TokenLBracket)
	case ']':
		return single(TokenRBracket)
	case ',':
		return single(TokenComma)
	case '=':
		return single(TokenOperator)
	case '>':
		if t.peek() == '=' {
			return pair(">=")
		}
		return single(TokenOperator)
	case '<':
		if t.peek() == '=' {
			return pair("<=")
		}
		return single(TokenOperator)
	case '!':
		if t.peek() == '=' {
			return pair("!=")
		}
	case '~':
		if t.peek() == '=' {
			return pair("~=")
		}
	}
	return nil
}

// tokenizeIdentifierOrKeyword tokenizes identifiers and keywords
func (t *Tokenizer) tokenizeIdentifierOrKeyword(pos int) *Token {
	if !isIdentifierChar(t.ch) {
		return nil
	}

	value := t.readIdentifier()
	if keyword, ok := classifyKeyword(value); ok {
		return &Token{Type: TokenKeyword, Value: keyword, Pos: pos}
	}
	return &Token{Type: TokenIdentifier, Value: value, Pos: pos}
}

// classifyKeyword returns the canonical keyword for value, if it is one.
func classifyKeyword(value string) (string, bool) {
	if len(value) > 5 {
		return "", false
	}
	upper := strings.ToUpper(value)
	switch upper {
	case KeywordAnd, KeywordOr, KeywordNot, KeywordIn, KeywordIs,
		KeywordTrue, KeywordFalse, KeywordNull, KeywordEmpty:
		return upper, true
	}
	return "", false
}

// TokenizeAll returns all tokens from the input
func (t *Tokenizer) TokenizeAll() ([]*Token, error) {
	var tokens []*Token

	for {
		token, err := t.NextToken()
		if err != nil {
			return nil, err
		}

		tokens = append(tokens, token)

		if token.Type == TokenEOF {
			break
		}
	}

	return tokens, nil
}
