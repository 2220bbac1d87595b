package aql

import (
	"github.com/nlstn/go-aql/internal/aqlerrors"
	"github.com/nlstn/go-aql/internal/query"
	"gorm.io/gorm"
)

// Column describes the database column behind an AQL identifier.
type Column = query.Column

// ColumnType is the storage type of a column.
type ColumnType = query.ColumnType

// ColumnResolver maps an identifier to its column. Identifiers it does not
// know are treated as fields missing from every row.
type ColumnResolver = query.ColumnResolver

// ColumnMap is a ColumnResolver backed by a fixed map.
type ColumnMap = query.ColumnMap

// Column types.
const (
	ColumnString = query.ColumnString
	ColumnNumber = query.ColumnNumber
	ColumnBool   = query.ColumnBool
)

// BuildSQL translates expr into a parameterised WHERE condition selecting
// exactly the rows the in-memory predicate accepts. Expressions without an
// exact SQL equivalent fail with an error wrapping ErrUnsupportedSQL.
func BuildSQL(expr Expression, columns ColumnResolver) (clause string, args []any, err error) {
	defer recoverError(&err)

	clause, args, err = query.BuildSQL(expr, columns)
	if err != nil {
		return "", nil, aqlerrors.Wrap(err)
	}
	return clause, args, nil
}

// ApplyFilter adds expr as a WHERE clause to db. A nil expression returns db
// unchanged.
//
// Example falling back to in-memory filtering:
//
//	tx, err := aql.ApplyFilter(db.Model(&Result{}), expr, columns)
//	if errors.Is(err, aql.ErrUnsupportedSQL) {
//	    // load rows and use aql.FilterFunc instead
//	}
func ApplyFilter(db *gorm.DB, expr Expression, columns ColumnResolver) (tx *gorm.DB, err error) {
	defer recoverError(&err)

	tx, err = query.ApplyFilter(db, expr, columns)
	if err != nil {
		return nil, aqlerrors.Wrap(err)
	}
	return tx, nil
}
