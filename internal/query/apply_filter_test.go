package query

import (
	"errors"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type sqlResult struct {
	ID       uint `gorm:"primarykey"`
	Name     *string
	Status   *string
	Duration *float64
	Flaky    *bool
}

func (r sqlResult) record() Record {
	return Record{
		"id":       r.ID,
		"name":     r.Name,
		"status":   r.Status,
		"duration": r.Duration,
		"flaky":    r.Flaky,
	}
}

var sqlColumns = ColumnMap{
	"name":     {Name: "name", Type: ColumnString, ASCIIOnly: true},
	"status":   {Name: "status", Type: ColumnString, ASCIIOnly: true},
	"duration": {Name: "duration", Type: ColumnNumber},
	"flaky":    {Name: "flaky", Type: ColumnBool},
}

func ptr[T any](v T) *T { return &v }

func setupSQLResults(t *testing.T) (*gorm.DB, []sqlResult) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&sqlResult{}))

	rows := []sqlResult{
		{ID: 1, Name: ptr("Login works"), Status: ptr("passed"), Duration: ptr(100.0), Flaky: ptr(false)},
		{ID: 2, Name: ptr("Logout works"), Status: ptr("Failed"), Duration: ptr(250.0), Flaky: ptr(true)},
		{ID: 3, Name: ptr("100% coverage_check"), Status: ptr("BROKEN"), Duration: ptr(0.0), Flaky: ptr(false)},
		{ID: 4, Name: nil, Status: nil, Duration: nil, Flaky: nil},
		{ID: 5, Name: ptr("Search"), Status: ptr("skipped"), Duration: ptr(100.5), Flaky: nil},
		{ID: 6, Name: ptr(""), Status: ptr("passed"), Duration: ptr(-3.0), Flaky: ptr(true)},
	}
	require.NoError(t, db.Create(&rows).Error)
	return db, rows
}

func ids(rows []sqlResult) []uint {
	out := make([]uint, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.ID)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func TestApplyFilter_MatchesInMemory(t *testing.T) {
	db, rows := setupSQLResults(t)

	queries := []string{
		`status = "passed"`,
		`status = "PASSED"`,
		`status IS "failed"`,
		`status != "passed"`,
		`status = null`,
		`status != null`,
		`status = 1`,
		`NOT status = "passed"`,
		`duration > 100`,
		`duration >= 100`,
		`duration < 100.5`,
		`duration <= 0`,
		`duration = 100`,
		`duration = "100"`,
		`duration = true`,
		`duration > "abc"`,
		`duration >= "abc"`,
		`duration > "50"`,
		`flaky = true`,
		`flaky != true`,
		`NOT flaky = true`,
		`flaky > 0`,
		`flaky >= 0`,
		`flaky = "true"`,
		`name ~= "login"`,
		`name ~= "WORKS"`,
		`name ~= "%"`,
		`name ~= "_"`,
		`name ~= ""`,
		`status IN ["passed", "failed", null]`,
		`status IN []`,
		`status IN [null]`,
		`duration IN [100, 250, "x"]`,
		`NOT status IN ["passed"]`,
		`NOT (status = "passed" OR duration > 200)`,
		`(status = "passed" AND flaky = false) OR duration < 0`,
		`missing = null`,
		`missing != null`,
		`missing = 1`,
		`missing IN [1]`,
		`NOT missing = 1`,
		`true`,
		`false`,
		`NOT false AND status ~= "e"`,
	}

	for _, q := range queries {
		t.Run(q, func(t *testing.T) {
			expr := mustParse(t, q)

			tx, err := ApplyFilter(db.Model(&sqlResult{}), expr, sqlColumns.Resolve)
			require.NoError(t, err)
			var fromSQL []sqlResult
			require.NoError(t, tx.Find(&fromSQL).Error)

			pred, err := Compile(expr)
			require.NoError(t, err)
			inMemory := FilterWith(rows, sqlResult.record, pred)

			assert.Equal(t, ids(inMemory), ids(fromSQL))
		})
	}
}

func TestApplyFilter_UnicodeValues(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&sqlResult{}))

	rows := []sqlResult{
		{ID: 1, Name: ptr("\u212Aelvin"), Status: ptr("İstanbul"), Duration: ptr(1.0)},
		{ID: 2, Name: ptr("kelvin"), Status: ptr("passed"), Duration: ptr(2.0)},
		{ID: 3, Name: nil, Status: ptr("ÄRGER"), Duration: ptr(3.0)},
	}
	require.NoError(t, db.Create(&rows).Error)

	// Without ASCIIOnly the stored text may fold differently in SQL.
	columns := ColumnMap{
		"name":     {Name: "name", Type: ColumnString},
		"status":   {Name: "status", Type: ColumnString},
		"duration": {Name: "duration", Type: ColumnNumber},
	}

	unsupported := []string{
		`name = "kelvin"`,
		`name != "other"`,
		`name ~= "kel"`,
		`status ~= "i"`,
		`status IN ["istanbul", "passed"]`,
		`NOT status = "ärger"`,
	}
	for _, q := range unsupported {
		t.Run(q, func(t *testing.T) {
			_, err := ApplyFilter(db.Model(&sqlResult{}), mustParse(t, q), columns.Resolve)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrUnsupportedSQL), "error: %v", err)

			pred, err := Compile(mustParse(t, q))
			require.NoError(t, err)
			assert.NotEmpty(t, FilterWith(rows, sqlResult.record, pred))
		})
	}

	pushed := []string{
		`name = null`,
		`name != null`,
		`status = 1`,
		`status IN [1, null]`,
		`duration > 1 AND name != null`,
	}
	for _, q := range pushed {
		t.Run(q, func(t *testing.T) {
			expr := mustParse(t, q)
			tx, err := ApplyFilter(db.Model(&sqlResult{}), expr, columns.Resolve)
			require.NoError(t, err)
			var fromSQL []sqlResult
			require.NoError(t, tx.Find(&fromSQL).Error)

			pred, err := Compile(expr)
			require.NoError(t, err)
			assert.Equal(t, ids(FilterWith(rows, sqlResult.record, pred)), ids(fromSQL))
		})
	}
}

func TestBuildSQL_Unsupported(t *testing.T) {
	queries := []string{
		`status > 1`,
		`labels["owner"] = "qa"`,
		`status = "Ärger"`,
		`name ~= "ü"`,
		`duration ~= "1"`,
		`flaky ~= "t"`,
		`status = "a" AND duration > 1 OR tags[0] = 1`,
	}

	for _, q := range queries {
		t.Run(q, func(t *testing.T) {
			_, _, err := BuildSQL(mustParse(t, q), sqlColumns.Resolve)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrUnsupportedSQL), "error: %v", err)
		})
	}
}

func TestBuildSQL_Clauses(t *testing.T) {
	tests := []struct {
		query string
		sql   string
		args  []interface{}
	}{
		{`status = "Passed"`, `("status" IS NOT NULL AND LOWER("status") = ?)`, []interface{}{"passed"}},
		{`status != null`, `"status" IS NOT NULL`, nil},
		{`status = null`, `"status" IS NULL`, nil},
		{`duration > 1`, `("duration" IS NOT NULL AND "duration" > ?)`, []interface{}{float64(1)}},
		{`a = 1 AND duration <= 2`, `(1 = 0) AND (("duration" IS NOT NULL AND "duration" <= ?))`, []interface{}{float64(2)}},
		{`NOT flaky = true`, `NOT (("flaky" IS NOT NULL AND "flaky" = ?))`, []interface{}{true}},
		{`(true)`, `(1 = 1)`, nil},
		{`status IN ["a", 1, null]`, `("status" IS NOT NULL AND (LOWER("status") = ?))`, []interface{}{"a"}},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			sql, args, err := BuildSQL(mustParse(t, tt.query), sqlColumns.Resolve)
			require.NoError(t, err)
			assert.Equal(t, tt.sql, sql)
			assert.Equal(t, tt.args, args)
		})
	}
}

func TestBuildSQL_QuotesColumnNames(t *testing.T) {
	columns := ColumnMap{"name": {Name: `we"ird; DROP TABLE x`, Type: ColumnString}}
	sql, _, err := BuildSQL(mustParse(t, "name != null"), columns.Resolve)
	require.NoError(t, err)
	assert.Equal(t, `"we""ird; DROP TABLE x" IS NOT NULL`, sql)
}

func TestBuildSQL_ValuesAreParameters(t *testing.T) {
	payload := `'; DROP TABLE sql_results; --`
	sql, args, err := BuildSQL(mustParse(t, `status = "`+payload+`"`), sqlColumns.Resolve)
	require.NoError(t, err)
	assert.NotContains(t, sql, "DROP")
	assert.Equal(t, []interface{}{payload}, args)
}

func TestBuildSQL_EdgeCases(t *testing.T) {
	sql, args, err := BuildSQL(nil, sqlColumns.Resolve)
	require.NoError(t, err)
	assert.Equal(t, sqlTrue, sql)
	assert.Nil(t, args)

	sql, _, err = BuildSQL(mustParse(t, "anything = null"), nil)
	require.NoError(t, err)
	assert.Equal(t, sqlTrue, sql)

	_, _, err = BuildSQL(mustParse(t, "x = 1"), ColumnMap{"x": {}}.Resolve)
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrUnsupportedSQL))

	_, _, err = BuildSQL(bogusExpr{}, nil)
	require.Error(t, err)
}

func TestApplyFilter_NilExpression(t *testing.T) {
	db, rows := setupSQLResults(t)
	tx, err := ApplyFilter(db.Model(&sqlResult{}), nil, sqlColumns.Resolve)
	require.NoError(t, err)

	var got []sqlResult
	require.NoError(t, tx.Find(&got).Error)
	assert.Len(t, got, len(rows))
}
