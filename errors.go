package aql

import (
	"github.com/nlstn/go-aql/internal/aqlerrors"
	"github.com/nlstn/go-aql/internal/query"
)

// AqlError is the structured error returned by every function in this package.
//
// Example handling a rejected query:
//
//	result, err := aql.Parse(input, aql.WithConfig(cfg))
//	var aqlErr *aql.AqlError
//	if errors.As(err, &aqlErr) && aqlErr.Code == aql.CodeForbiddenIdentifier {
//	    field, _ := aqlErr.Detail("identifier")
//	    log.Printf("field %v may not be filtered on", field)
//	}
type AqlError = aqlerrors.AqlError

// ErrorCode identifies the kind of failure.
type ErrorCode = aqlerrors.ErrorCode

// Error codes.
const (
	CodeInvalidInput          = aqlerrors.CodeInvalidInput
	CodeUnexpectedCharacter   = aqlerrors.CodeUnexpectedCharacter
	CodeUnterminatedString    = aqlerrors.CodeUnterminatedString
	CodeUnexpectedToken       = aqlerrors.CodeUnexpectedToken
	CodeExpectedExpression    = aqlerrors.CodeExpectedExpression
	CodeExpectedOperation     = aqlerrors.CodeExpectedOperation
	CodeExpectedValue         = aqlerrors.CodeExpectedValue
	CodeUnbalancedParenthesis = aqlerrors.CodeUnbalancedParenthesis
	CodeUnbalancedBracket     = aqlerrors.CodeUnbalancedBracket
	CodeInvalidIdentifier     = aqlerrors.CodeInvalidIdentifier
	CodeInvalidAccessor       = aqlerrors.CodeInvalidAccessor

	CodeForbiddenLogicalOperator = aqlerrors.CodeForbiddenLogicalOperator
	CodeForbiddenOperation       = aqlerrors.CodeForbiddenOperation
	CodeForbiddenIdentifier      = aqlerrors.CodeForbiddenIdentifier
	CodeForbiddenValueType       = aqlerrors.CodeForbiddenValueType
	CodeForbiddenParentheses     = aqlerrors.CodeForbiddenParentheses
	CodeForbiddenBracketAccess   = aqlerrors.CodeForbiddenBracketAccess

	CodeUnknown = aqlerrors.CodeUnknown
)

// ErrUnsupportedSQL is wrapped by errors from BuildSQL and ApplyFilter when an
// expression has no exact SQL equivalent. Callers should filter in memory instead.
var ErrUnsupportedSQL = query.ErrUnsupportedSQL

// CodeOf returns the code of the AqlError in err's chain, or "" if there is none.
func CodeOf(err error) ErrorCode {
	return aqlerrors.CodeOf(err)
}

// HasCode reports whether err carries the given code.
func HasCode(err error, code ErrorCode) bool {
	return aqlerrors.HasCode(err, code)
}
