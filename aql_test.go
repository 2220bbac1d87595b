package aql

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testResult struct {
	Name     string
	Status   string
	Duration int64
	Flaky    bool
	Tags     []string
	Labels   map[string]string
}

func (r testResult) record() Record {
	rec := Record{
		"name":     r.Name,
		"status":   r.Status,
		"duration": r.Duration,
		"flaky":    r.Flaky,
		"tags":     r.Tags,
	}
	if r.Labels != nil {
		rec["labels"] = r.Labels
	}
	return rec
}

var sampleResults = []testResult{
	{Name: "login", Status: "passed", Duration: 120, Tags: []string{"smoke", "auth"}, Labels: map[string]string{"owner": "alice"}},
	{Name: "logout", Status: "failed", Duration: 3400, Flaky: true, Tags: []string{"auth"}},
	{Name: "search", Status: "broken", Duration: 800, Labels: map[string]string{"owner": "bob"}},
	{Name: "checkout", Status: "passed", Duration: 15000},
}

func sampleRecords() []Record {
	out := make([]Record, len(sampleResults))
	for i, r := range sampleResults {
		out[i] = r.record()
	}
	return out
}

func names(records []Record) []string {
	out := make([]string, 0, len(records))
	for _, r := range records {
		out = append(out, r["name"].(string))
	}
	return out
}

type stringer string

func (s stringer) String() string { return string(s) }

func TestParse(t *testing.T) {
	result, err := Parse(`status = "passed" AND duration > 100`)
	require.NoError(t, err)

	bin, ok := result.Expression.(*BinaryExpr)
	require.True(t, ok)
	assert.Equal(t, LogicalAnd, bin.Operator)

	left, ok := bin.Left.(*ConditionExpr)
	require.True(t, ok)
	assert.Equal(t, "status", left.Left.Identifier)
	assert.Equal(t, OpEqual, left.Operation)
	assert.Equal(t, Value{Kind: ValueString, Raw: "passed"}, left.Right)
}

func TestParse_Blank(t *testing.T) {
	result, err := Parse("   ")
	require.NoError(t, err)
	assert.Nil(t, result.Expression)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		input string
		code  ErrorCode
	}{
		{"a = ", CodeExpectedValue},
		{"a = 1 @", CodeUnexpectedCharacter},
		{`a = "open`, CodeUnterminatedString},
		{"(a = 1", CodeUnbalancedParenthesis},
		{"a[0 = 1", CodeUnbalancedBracket},
		{"1 = a", CodeInvalidIdentifier},
		{"a[x] = 1", CodeInvalidAccessor},
		{"a = 1 a", CodeUnexpectedToken},
		{"a", CodeExpectedOperation},
		{"NOT", CodeExpectedExpression},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result, err := Parse(tt.input)
			require.Error(t, err)
			assert.Nil(t, result)

			var aqlErr *AqlError
			require.ErrorAs(t, err, &aqlErr)
			assert.Equal(t, tt.code, aqlErr.Code)
			assert.True(t, HasCode(err, tt.code))
			assert.True(t, errors.Is(err, &AqlError{Code: tt.code}))
			assert.NotEmpty(t, aqlErr.Message)
		})
	}
}

func TestParse_WithConfig(t *testing.T) {
	cfg := &ParserConfig{
		Operations:       []Operation{OpEqual},
		Identifiers:      []string{"status", "flaky"},
		AllowParentheses: Bool(false),
	}

	_, err := Parse(`status = "passed" AND flaky = true`, WithConfig(cfg))
	require.NoError(t, err)

	_, err = Parse(`duration = 1`, WithConfig(cfg))
	assert.Equal(t, CodeForbiddenIdentifier, CodeOf(err))

	var aqlErr *AqlError
	require.ErrorAs(t, err, &aqlErr)
	field, ok := aqlErr.Detail("identifier")
	require.True(t, ok)
	assert.Equal(t, "duration", field)

	_, err = Parse(`status ~= "pass"`, WithConfig(cfg))
	assert.Equal(t, CodeForbiddenOperation, CodeOf(err))

	_, err = Parse(`(status = "passed")`, WithConfig(cfg))
	assert.Equal(t, CodeForbiddenParentheses, CodeOf(err))

	_, err = Parse(`(status = "passed")`, WithConfig(nil))
	assert.NoError(t, err)
}

func TestParse_WithContextValues(t *testing.T) {
	result, err := Parse("owner = me()", WithContextValues(map[string]any{"me()": "alice"}))
	require.NoError(t, err)

	s, err := String(result.Expression)
	require.NoError(t, err)
	assert.Equal(t, `owner = "alice"`, s)
}

func TestParseValue(t *testing.T) {
	for _, input := range []any{`a = 1`, []byte(`a = 1`), stringer(`a = 1`)} {
		result, err := ParseValue(input)
		require.NoError(t, err, "input %T", input)
		assert.NotNil(t, result.Expression)
	}

	for _, input := range []any{nil, 42, true, map[string]any{"q": "a = 1"}, []string{"a = 1"}} {
		result, err := ParseValue(input)
		require.Error(t, err, "input %T", input)
		assert.Nil(t, result)
		assert.Equal(t, CodeInvalidInput, CodeOf(err))
	}

	_, err := ParseValue(42)
	var aqlErr *AqlError
	require.ErrorAs(t, err, &aqlErr)
	assert.Equal(t, "int", aqlErr.Details["type"])
}

func TestFilter(t *testing.T) {
	tests := []struct {
		query string
		want  []string
	}{
		{`status = "PASSED"`, []string{"login", "checkout"}},
		{`duration >= 800 AND NOT flaky = true`, []string{"search", "checkout"}},
		{`tags ~= "smoke"`, []string{"login"}},
		{`labels["owner"] = "bob"`, []string{"search"}},
		{`tags[0] = "auth"`, []string{"logout"}},
		{`labels = null`, []string{"logout", "checkout"}},
		{`status IN ["failed", "broken", null]`, []string{"logout", "search"}},
		{`false`, []string{}},
		{``, []string{"login", "logout", "search", "checkout"}},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			got, err := Filter(sampleRecords(), tt.query)
			require.NoError(t, err)
			assert.Equal(t, tt.want, names(got))
		})
	}
}

func TestFilter_ParseError(t *testing.T) {
	got, err := Filter(sampleRecords(), `status =`)
	require.Error(t, err)
	assert.Nil(t, got)
	assert.Equal(t, CodeExpectedValue, CodeOf(err))
}

func TestFilterFunc(t *testing.T) {
	result, err := Parse(`flaky = false AND duration < 1000`)
	require.NoError(t, err)

	got, err := FilterFunc(sampleResults, result.Expression, testResult.record)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "login", got[0].Name)
	assert.Equal(t, "search", got[1].Name)

	all, err := FilterFunc(sampleResults, nil, testResult.record)
	require.NoError(t, err)
	assert.Len(t, all, len(sampleResults))
}

func TestCompile(t *testing.T) {
	result, err := Parse(`duration > 1000`)
	require.NoError(t, err)

	pred, err := Compile(result.Expression)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.True(t, pred(Record{"duration": 1500}))
			assert.False(t, pred(Record{"duration": "12"}))
			assert.False(t, pred(Record{}))
		}()
	}
	wg.Wait()

	all, err := Compile(nil)
	require.NoError(t, err)
	assert.True(t, all(Record{}))
}

func TestString(t *testing.T) {
	result, err := Parse(`not (a=1 or B is "x")   and c in [1,2]`)
	require.NoError(t, err)

	s, err := String(result.Expression)
	require.NoError(t, err)
	assert.Equal(t, `NOT (a = 1 OR B = "x") AND c IN [1, 2]`, s)

	again, err := Parse(s)
	require.NoError(t, err)
	assert.True(t, Equal(result.Expression, again.Expression))

	empty, err := String(nil)
	require.NoError(t, err)
	assert.Equal(t, "", empty)
}

func TestEqual(t *testing.T) {
	a, err := Parse(`a = 1 AND b = "x"`)
	require.NoError(t, err)
	b, err := Parse(`a   =  1 and b IS "x"`)
	require.NoError(t, err)
	c, err := Parse(`a = 1 AND b = "y"`)
	require.NoError(t, err)

	assert.True(t, Equal(a.Expression, b.Expression))
	assert.False(t, Equal(a.Expression, c.Expression))
	assert.True(t, Equal(nil, nil))
}

type foreignExpr struct{ *ConditionExpr }

func TestUnknownNodeTypes(t *testing.T) {
	var expr Expression = foreignExpr{}
	_, err := Compile(expr)
	require.Error(t, err)
	assert.Equal(t, CodeUnknown, CodeOf(err))

	_, err = String(expr)
	require.Error(t, err)
	assert.Equal(t, CodeUnknown, CodeOf(err))

	_, err = FilterExpression(sampleRecords(), expr)
	assert.Equal(t, CodeUnknown, CodeOf(err))
}

func TestRecoverError(t *testing.T) {
	run := func() (err error) {
		defer recoverError(&err)
		panic("boom")
	}

	err := run()
	require.Error(t, err)
	assert.Equal(t, CodeUnknown, CodeOf(err))
	assert.Contains(t, err.Error(), "boom")
}
