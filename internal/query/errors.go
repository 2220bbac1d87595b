package query

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/nlstn/go-aql/internal/aqlerrors"
)

// Pre-defined errors for conditions that are not tied to a token position.
var (
	errUnsupportedASTNodeType = errors.New("unsupported AST node type")
	errNilExpression          = errors.New("expression is nil")

	// SQL translation errors
	errBracketAccessInSQL  = errors.New("bracket access cannot be translated to SQL")
	errStringOrderingInSQL = errors.New("ordering comparison on a string column cannot be translated to SQL")
	errContainsOnNonString = errors.New("~= on a non-string column cannot be translated to SQL")
	errCaseFoldInSQL       = errors.New("case-insensitive comparison needs an ASCII-only column")
	errEmptyColumnName     = errors.New("column name is required")
)

// ErrUnsupportedSQL is wrapped by every error BuildSQL returns for
// expressions that have no exact SQL equivalent. Callers fall back to
// in-memory filtering when errors.Is(err, ErrUnsupportedSQL).
var ErrUnsupportedSQL = errors.New("expression cannot be translated to SQL")

func unsupportedSQL(err error) error {
	return fmt.Errorf("%w: %w", ErrUnsupportedSQL, err)
}

// unknownNode reports an Expression implementation outside the closed set.
func unknownNode(expr Expression) error {
	return aqlerrors.New(aqlerrors.CodeUnknown,
		fmt.Sprintf("%v: %T", errUnsupportedASTNodeType, expr),
		map[string]any{"node": fmt.Sprintf("%T", expr)})
}

func formatPos(msg string, pos int) string {
	return msg + " at position " + strconv.Itoa(pos)
}

func quoteChar(char string) string {
	return "'" + char + "'"
}

// quoteString renders s as an AQL string literal.
func quoteString(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 2)
	b.WriteByte('"')
	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\t':
			b.WriteString(`\t`)
		case '\r':
			b.WriteString(`\r`)
		default:
			b.WriteByte(c)
		}
	}
	b.WriteByte('"')
	return b.String()
}
