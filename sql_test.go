package aql

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildSQL(t *testing.T) {
	columns := ColumnMap{"status": {Name: "status", Type: ColumnString, ASCIIOnly: true}}

	result, err := Parse(`status IN ["Passed", "broken"]`)
	require.NoError(t, err)
	clause, args, err := BuildSQL(result.Expression, columns.Resolve)
	require.NoError(t, err)
	assert.Equal(t, `("status" IS NOT NULL AND (LOWER("status") = ? OR LOWER("status") = ?))`, clause)
	assert.Equal(t, []any{"passed", "broken"}, args)
}

func TestBuildSQL_UnsupportedIsAqlError(t *testing.T) {
	columns := ColumnMap{"labels": {Name: "labels", Type: ColumnString}}

	result, err := Parse(`labels["owner"] = "alice"`)
	require.NoError(t, err)
	_, _, err = BuildSQL(result.Expression, columns.Resolve)
	require.Error(t, err)

	var aqlErr *AqlError
	require.ErrorAs(t, err, &aqlErr)
	assert.Equal(t, CodeUnknown, aqlErr.Code)
	assert.True(t, errors.Is(err, ErrUnsupportedSQL))
}

func TestApplyFilter_NilExpression(t *testing.T) {
	tx, err := ApplyFilter(nil, nil, nil)
	require.NoError(t, err)
	assert.Nil(t, tx)
}
