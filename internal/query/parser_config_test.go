package query

import (
	"strings"
	"testing"

	"github.com/nlstn/go-aql/internal/aqlerrors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func boolPtr(b bool) *bool { return &b }

func TestParserConfig_Restrictions(t *testing.T) {
	tests := []struct {
		name    string
		config  *ParserConfig
		input   string
		code    aqlerrors.ErrorCode
		details map[string]any
	}{
		{
			name:    "OR not allowed",
			config:  &ParserConfig{LogicalOperators: []LogicalOperator{LogicalAnd}},
			input:   "a = 1 OR b = 2",
			code:    aqlerrors.CodeForbiddenLogicalOperator,
			details: map[string]any{"operator": "OR", "position": 6},
		},
		{
			name:    "NOT not allowed",
			config:  &ParserConfig{LogicalOperators: []LogicalOperator{LogicalAnd, LogicalOr}},
			input:   "NOT a = 1",
			code:    aqlerrors.CodeForbiddenLogicalOperator,
			details: map[string]any{"operator": "NOT"},
		},
		{
			name:    "No logical operators at all",
			config:  &ParserConfig{LogicalOperators: []LogicalOperator{}},
			input:   "a = 1 AND b = 2",
			code:    aqlerrors.CodeForbiddenLogicalOperator,
			details: map[string]any{"operator": "AND"},
		},
		{
			name:    "Contains not allowed",
			config:  &ParserConfig{Operations: []Operation{OpEqual}},
			input:   `name ~= "x"`,
			code:    aqlerrors.CodeForbiddenOperation,
			details: map[string]any{"operation": "CONTAINS"},
		},
		{
			name:    "IN not allowed",
			config:  &ParserConfig{Operations: []Operation{OpEqual}},
			input:   "a IN [1]",
			code:    aqlerrors.CodeForbiddenOperation,
			details: map[string]any{"operation": "IN"},
		},
		{
			name:    "IS is checked as equality",
			config:  &ParserConfig{Operations: []Operation{OpNotEqual}},
			input:   "a IS null",
			code:    aqlerrors.CodeForbiddenOperation,
			details: map[string]any{"operation": "EQ"},
		},
		{
			name:    "Identifier not in allow-list",
			config:  &ParserConfig{Identifiers: []string{"status"}},
			input:   `status = "a" AND secret = "b"`,
			code:    aqlerrors.CodeForbiddenIdentifier,
			details: map[string]any{"identifier": "secret", "position": 17},
		},
		{
			name: "Identifier rejected by predicate",
			config: &ParserConfig{IdentifierFunc: func(id string) bool {
				return !strings.HasPrefix(id, "internal")
			}},
			input:   "internalId = 1",
			code:    aqlerrors.CodeForbiddenIdentifier,
			details: map[string]any{"identifier": "internalId"},
		},
		{
			name: "Predicate takes precedence over allow-list",
			config: &ParserConfig{
				Identifiers:    []string{"status"},
				IdentifierFunc: func(id string) bool { return id == "name" },
			},
			input:   `status = "x"`,
			code:    aqlerrors.CodeForbiddenIdentifier,
			details: map[string]any{"identifier": "status"},
		},
		{
			name:    "String values not allowed",
			config:  &ParserConfig{ValueTypes: []ValueKind{ValueNumber}},
			input:   `a = "x"`,
			code:    aqlerrors.CodeForbiddenValueType,
			details: map[string]any{"valueType": "STRING"},
		},
		{
			name:    "Null inside IN not allowed",
			config:  &ParserConfig{ValueTypes: []ValueKind{ValueNumber}},
			input:   "a IN [1, null]",
			code:    aqlerrors.CodeForbiddenValueType,
			details: map[string]any{"valueType": "NULL"},
		},
		{
			name:    "Function checked before resolution",
			config:  &ParserConfig{ValueTypes: []ValueKind{ValueNumber}},
			input:   "a > now()",
			code:    aqlerrors.CodeForbiddenValueType,
			details: map[string]any{"valueType": "FUNCTION"},
		},
		{
			name:    "Parentheses not allowed",
			config:  &ParserConfig{AllowParentheses: boolPtr(false)},
			input:   "a = 1 AND (b = 2)",
			code:    aqlerrors.CodeForbiddenParentheses,
			details: map[string]any{"token": "(", "position": 10},
		},
		{
			name:    "Bracket access not allowed",
			config:  &ParserConfig{AllowBracketAccess: boolPtr(false)},
			input:   `labels["x"] = 1`,
			code:    aqlerrors.CodeForbiddenBracketAccess,
			details: map[string]any{"identifier": "labels", "token": "["},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := ParseString(tt.input, tt.config, map[string]any{"now()": 1})
			require.Error(t, err)
			assert.Nil(t, result)

			var aqlErr *aqlerrors.AqlError
			require.ErrorAs(t, err, &aqlErr)
			assert.Equal(t, tt.code, aqlErr.Code)
			for key, want := range tt.details {
				got, ok := aqlErr.Detail(key)
				require.True(t, ok, "missing detail %q", key)
				assert.Equal(t, want, got, "detail %q", key)
			}
		})
	}
}

func TestParserConfig_Allows(t *testing.T) {
	full := []string{
		`status = "passed" AND (flaky = true OR NOT retries > 1)`,
		`labels["owner"] IN ["qa", null]`,
		"a ~= \"x\" OR b <= 2.5",
		"when < now()",
	}

	configs := map[string]*ParserConfig{
		"nil config":   nil,
		"empty config": {},
		"explicit permissive config": {
			LogicalOperators:   []LogicalOperator{LogicalAnd, LogicalOr, LogicalNot},
			Operations:         []Operation{OpEqual, OpNotEqual, OpGreaterThan, OpGreaterThanOrEqual, OpLessThan, OpLessThanOrEqual, OpContains, OpIn},
			IdentifierFunc:     func(string) bool { return true },
			ValueTypes:         []ValueKind{ValueNull, ValueBoolean, ValueNumber, ValueString, ValueFunction},
			AllowParentheses:   boolPtr(true),
			AllowBracketAccess: boolPtr(true),
		},
	}

	for name, cfg := range configs {
		t.Run(name, func(t *testing.T) {
			for _, input := range full {
				_, err := ParseString(input, cfg, nil)
				assert.NoError(t, err, "input %q", input)
			}
		})
	}
}

func TestParserConfig_SyntaxErrorsBeforeLaterRestrictions(t *testing.T) {
	cfg := &ParserConfig{Identifiers: []string{"a"}}

	// The first problem in reading order wins.
	_, err := ParseString("a = ", cfg, nil)
	assert.Equal(t, aqlerrors.CodeExpectedValue, aqlerrors.CodeOf(err))

	_, err = ParseString("b = ", cfg, nil)
	assert.Equal(t, aqlerrors.CodeForbiddenIdentifier, aqlerrors.CodeOf(err))
}
