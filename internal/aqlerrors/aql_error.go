package aqlerrors

import (
	"errors"
	"fmt"
)

// ErrorCode identifies the kind of failure reported by the AQL engine.
// The set of codes is closed; callers can switch over it exhaustively.
type ErrorCode string

const (
	// CodeInvalidInput is returned when the query is not a string-like value.
	CodeInvalidInput ErrorCode = "InvalidInput"
	// CodeUnexpectedCharacter is returned when a character starts no token.
	CodeUnexpectedCharacter ErrorCode = "UnexpectedCharacter"
	// CodeUnterminatedString is returned when a string literal has no closing quote.
	CodeUnterminatedString ErrorCode = "UnterminatedString"
	// CodeUnexpectedToken is returned when tokens remain after a complete expression.
	CodeUnexpectedToken ErrorCode = "UnexpectedToken"
	// CodeExpectedExpression is returned when the input ends where an operand is required.
	CodeExpectedExpression ErrorCode = "ExpectedExpression"
	// CodeExpectedOperation is returned when an accessor is not followed by an operator.
	CodeExpectedOperation ErrorCode = "ExpectedOperation"
	// CodeExpectedValue is returned when an operator is not followed by a value.
	CodeExpectedValue ErrorCode = "ExpectedValue"
	// CodeUnbalancedParenthesis is returned for a missing or stray parenthesis.
	CodeUnbalancedParenthesis ErrorCode = "UnbalancedParenthesis"
	// CodeUnbalancedBracket is returned for a missing closing bracket.
	CodeUnbalancedBracket ErrorCode = "UnbalancedBracket"
	// CodeInvalidIdentifier is returned when a condition does not start with an identifier.
	CodeInvalidIdentifier ErrorCode = "InvalidIdentifier"
	// CodeInvalidAccessor is returned for a malformed bracket parameter.
	CodeInvalidAccessor ErrorCode = "InvalidAccessor"

	// CodeForbiddenLogicalOperator is returned when AND, OR or NOT is not allowed.
	CodeForbiddenLogicalOperator ErrorCode = "ForbiddenLogicalOperator"
	// CodeForbiddenOperation is returned when a comparison operation is not allowed.
	CodeForbiddenOperation ErrorCode = "ForbiddenOperation"
	// CodeForbiddenIdentifier is returned when a field name is not allowed.
	CodeForbiddenIdentifier ErrorCode = "ForbiddenIdentifier"
	// CodeForbiddenValueType is returned when a value kind is not allowed.
	CodeForbiddenValueType ErrorCode = "ForbiddenValueType"
	// CodeForbiddenParentheses is returned when grouping is not allowed.
	CodeForbiddenParentheses ErrorCode = "ForbiddenParentheses"
	// CodeForbiddenBracketAccess is returned when indexed access is not allowed.
	CodeForbiddenBracketAccess ErrorCode = "ForbiddenBracketAccess"

	// CodeUnknown is the catch-all for failures that have no dedicated code.
	CodeUnknown ErrorCode = "Unknown"
)

// AqlError is the only error type returned by the public AQL functions.
type AqlError struct {
	// Code classifies the failure.
	Code ErrorCode

	// Message is a human-readable description suitable for end users.
	Message string

	// Details names the offending token or feature, e.g. {"operator": "OR"}.
	Details map[string]any

	// Err is an optional wrapped error.
	Err error
}

// New creates an AqlError with the given code, message and details.
func New(code ErrorCode, message string, details map[string]any) *AqlError {
	return &AqlError{Code: code, Message: message, Details: details}
}

// Newf creates an AqlError without details using a format string.
func Newf(code ErrorCode, format string, args ...any) *AqlError {
	return &AqlError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Error implements the error interface.
func (e *AqlError) Error() string {
	msg := e.Message
	if msg == "" {
		if e.Err != nil {
			msg = e.Err.Error()
		} else {
			msg = "aql error"
		}
	}
	if e.Code == "" {
		return msg
	}
	return fmt.Sprintf("%s: %s", e.Code, msg)
}

// Unwrap returns the wrapped error, if any.
func (e *AqlError) Unwrap() error {
	return e.Err
}

// Is reports whether target is an AqlError with the same code.
// A target without a code matches any AqlError.
func (e *AqlError) Is(target error) bool {
	t, ok := target.(*AqlError)
	if !ok {
		return false
	}
	return t.Code == "" || t.Code == e.Code
}

// Detail returns a single detail value.
func (e *AqlError) Detail(key string) (any, bool) {
	if e == nil || e.Details == nil {
		return nil, false
	}
	v, ok := e.Details[key]
	return v, ok
}

// Wrap converts err into an AqlError. Errors that already are (or wrap) an
// AqlError are returned as that AqlError; anything else becomes CodeUnknown.
func Wrap(err error) *AqlError {
	if err == nil {
		return nil
	}
	var aqlErr *AqlError
	if errors.As(err, &aqlErr) {
		return aqlErr
	}
	return &AqlError{Code: CodeUnknown, Message: err.Error(), Err: err}
}

// FromPanic converts a recovered panic value into a CodeUnknown error.
func FromPanic(r any) *AqlError {
	if err, ok := r.(error); ok {
		return &AqlError{Code: CodeUnknown, Message: fmt.Sprintf("internal error: %v", err), Err: err}
	}
	return &AqlError{Code: CodeUnknown, Message: fmt.Sprintf("internal error: %v", r)}
}

// CodeOf returns the code of the AqlError in err's chain, or "" if there is none.
func CodeOf(err error) ErrorCode {
	var aqlErr *AqlError
	if errors.As(err, &aqlErr) {
		return aqlErr.Code
	}
	return ""
}

// HasCode reports whether err carries the given code.
func HasCode(err error, code ErrorCode) bool {
	return err != nil && CodeOf(err) == code
}
