package query

import (
	"fmt"
	"math"
	"strings"

	"gorm.io/gorm"
)

// ColumnType is the storage type of a column an identifier maps to.
type ColumnType int

const (
	ColumnString ColumnType = iota
	ColumnNumber
	ColumnBool
)

// Column describes the database column behind an AQL identifier.
type Column struct {
	Name string
	Type ColumnType

	// ASCIIOnly declares that every stored value of a string column is
	// ASCII. SQL LOWER() only folds ASCII letters on some databases, so
	// case-insensitive comparisons are only pushed down for such columns.
	ASCIIOnly bool
}

// ColumnResolver maps an AQL identifier to its column. Identifiers it does not
// know are treated as fields that are missing from every record.
type ColumnResolver func(identifier string) (Column, bool)

// ColumnMap is a ColumnResolver backed by a fixed map.
type ColumnMap map[string]Column

// Resolve implements ColumnResolver.
func (m ColumnMap) Resolve(identifier string) (Column, bool) {
	c, ok := m[identifier]
	return c, ok
}

const (
	sqlTrue  = "1 = 1"
	sqlFalse = "1 = 0"
)

// getDatabaseDialect returns the active database dialect name (e.g. "sqlite", "postgres").
func getDatabaseDialect(db *gorm.DB) string {
	if db == nil || db.Dialector == nil {
		return "sqlite"
	}
	return db.Dialector.Name()
}

// quoteIdent safely quotes identifiers in a portable way (double quotes work for sqlite and postgres).
// Embedded double quotes are escaped by doubling them per SQL standard.
func quoteIdent(ident string) string {
	escaped := strings.ReplaceAll(ident, "\"", "\"\"")
	return fmt.Sprintf("\"%s\"", escaped)
}

// ApplyFilter adds expr as a WHERE clause to db. A nil expression leaves db
// untouched. Errors wrapping ErrUnsupportedSQL mean the caller has to filter
// in memory instead.
func ApplyFilter(db *gorm.DB, expr Expression, columns ColumnResolver) (*gorm.DB, error) {
	if expr == nil {
		return db, nil
	}
	query, args, err := BuildSQL(expr, columns)
	if err != nil {
		return nil, fmt.Errorf("aql filter for %s: %w", getDatabaseDialect(db), err)
	}
	return db.Where(query, args...), nil
}

// BuildSQL translates expr into a parameterised condition that selects exactly
// the rows the in-memory predicate would accept. Every comparison is guarded
// with IS NOT NULL so the condition never evaluates to SQL NULL, which keeps
// NOT faithful to the two-valued in-memory logic.
func BuildSQL(expr Expression, columns ColumnResolver) (string, []interface{}, error) {
	if expr == nil {
		return sqlTrue, nil, nil
	}
	if columns == nil {
		columns = func(string) (Column, bool) { return Column{}, false }
	}
	return buildFilterCondition(expr, columns)
}

// buildFilterCondition builds a WHERE condition string and arguments for an expression
func buildFilterCondition(expr Expression, columns ColumnResolver) (string, []interface{}, error) {
	switch e := expr.(type) {
	case *ConditionExpr:
		return buildComparisonCondition(e, columns)
	case *ArrayConditionExpr:
		return buildInCondition(e, columns)
	case *BinaryExpr:
		return buildLogicalCondition(e, columns)
	case *NotExpr:
		if e.Expr == nil {
			return "", nil, errNilExpression
		}
		query, args, err := buildFilterCondition(e.Expr, columns)
		if err != nil {
			return "", nil, err
		}
		return fmt.Sprintf("NOT (%s)", query), args, nil
	case *GroupExpr:
		if e.Expr == nil {
			return "", nil, errNilExpression
		}
		query, args, err := buildFilterCondition(e.Expr, columns)
		if err != nil {
			return "", nil, err
		}
		return fmt.Sprintf("(%s)", query), args, nil
	case *BooleanExpr:
		if e.Value {
			return sqlTrue, nil, nil
		}
		return sqlFalse, nil, nil
	case nil:
		return "", nil, errNilExpression
	default:
		return "", nil, unknownNode(expr)
	}
}

// buildLogicalCondition builds a logical condition (AND/OR)
func buildLogicalCondition(e *BinaryExpr, columns ColumnResolver) (string, []interface{}, error) {
	if e.Left == nil || e.Right == nil {
		return "", nil, errNilExpression
	}
	leftQuery, leftArgs, err := buildFilterCondition(e.Left, columns)
	if err != nil {
		return "", nil, err
	}
	rightQuery, rightArgs, err := buildFilterCondition(e.Right, columns)
	if err != nil {
		return "", nil, err
	}

	var query string
	switch e.Operator {
	case LogicalAnd:
		query = fmt.Sprintf("(%s) AND (%s)", leftQuery, rightQuery)
	case LogicalOr:
		query = fmt.Sprintf("(%s) OR (%s)", leftQuery, rightQuery)
	default:
		return "", nil, unknownNode(e)
	}

	return query, append(leftArgs, rightArgs...), nil
}

func resolveColumn(a Accessor, columns ColumnResolver) (Column, bool, error) {
	if a.Param != nil {
		return Column{}, false, unsupportedSQL(fmt.Errorf("%w: %s", errBracketAccessInSQL, a.Identifier))
	}
	col, ok := columns(a.Identifier)
	if !ok {
		return Column{}, false, nil
	}
	if col.Name == "" {
		return Column{}, false, fmt.Errorf("%w: %s", errEmptyColumnName, a.Identifier)
	}
	return col, true, nil
}

// buildComparisonCondition builds a comparison condition
func buildComparisonCondition(e *ConditionExpr, columns ColumnResolver) (string, []interface{}, error) {
	col, known, err := resolveColumn(e.Left, columns)
	if err != nil {
		return "", nil, err
	}
	right := materialize(e.Right)

	if !known {
		// The field is missing from every row.
		if right == nil && e.Operation == OpEqual {
			return sqlTrue, nil, nil
		}
		return sqlFalse, nil, nil
	}

	columnName := quoteIdent(col.Name)
	notNull := columnName + " IS NOT NULL"

	if right == nil {
		switch e.Operation {
		case OpEqual:
			return columnName + " IS NULL", nil, nil
		case OpNotEqual:
			return notNull, nil, nil
		default:
			return sqlFalse, nil, nil
		}
	}

	switch e.Operation {
	case OpEqual, OpNotEqual:
		cond, args, err := buildEqualitySQL(col, columnName, right)
		if err != nil {
			return "", nil, err
		}
		if e.Operation == OpEqual {
			return fmt.Sprintf("(%s AND %s)", notNull, cond), args, nil
		}
		return fmt.Sprintf("(%s AND NOT (%s))", notNull, cond), args, nil
	case OpGreaterThan, OpGreaterThanOrEqual, OpLessThan, OpLessThanOrEqual:
		return buildOrderingSQL(col, columnName, e.Operation, toNumber(right))
	case OpContains:
		return buildContainsSQL(col, columnName, right)
	default:
		return sqlFalse, nil, nil
	}
}

// buildEqualitySQL renders the EQ rule for a non-null column value. Type
// mismatches never compare equal.
func buildEqualitySQL(col Column, columnName string, right interface{}) (string, []interface{}, error) {
	switch col.Type {
	case ColumnString:
		s, ok := right.(string)
		if !ok {
			return sqlFalse, nil, nil
		}
		if err := checkCaseFold(col, s); err != nil {
			return "", nil, err
		}
		return fmt.Sprintf("LOWER(%s) = ?", columnName), []interface{}{strings.ToLower(s)}, nil
	case ColumnNumber:
		if _, ok := asNumber(right); !ok {
			return sqlFalse, nil, nil
		}
		return fmt.Sprintf("%s = ?", columnName), []interface{}{right}, nil
	case ColumnBool:
		b, ok := right.(bool)
		if !ok {
			return sqlFalse, nil, nil
		}
		return fmt.Sprintf("%s = ?", columnName), []interface{}{b}, nil
	}
	return sqlFalse, nil, nil
}

// buildOrderingSQL mirrors compareNumbers, including NaN comparing as equal.
func buildOrderingSQL(col Column, columnName string, op Operation, right float64) (string, []interface{}, error) {
	if col.Type == ColumnString {
		return "", nil, unsupportedSQL(fmt.Errorf("%w: %s", errStringOrderingInSQL, col.Name))
	}

	notNull := columnName + " IS NOT NULL"
	// Booleans have no numeric reading, so they behave like NaN.
	if col.Type == ColumnBool || math.IsNaN(right) {
		if op == OpGreaterThanOrEqual || op == OpLessThanOrEqual {
			return notNull, nil, nil
		}
		return sqlFalse, nil, nil
	}
	if math.IsInf(right, 0) {
		return "", nil, unsupportedSQL(fmt.Errorf("infinite bound on %s", col.Name))
	}

	return fmt.Sprintf("(%s AND %s)", notNull, buildComparisonSQL(op, columnName)), []interface{}{right}, nil
}

// buildComparisonSQL builds the comparison SQL fragment for an ordering operation.
func buildComparisonSQL(op Operation, leftSQL string) string {
	switch op {
	case OpGreaterThan:
		return fmt.Sprintf("%s > ?", leftSQL)
	case OpGreaterThanOrEqual:
		return fmt.Sprintf("%s >= ?", leftSQL)
	case OpLessThan:
		return fmt.Sprintf("%s < ?", leftSQL)
	default:
		return fmt.Sprintf("%s <= ?", leftSQL)
	}
}

func buildContainsSQL(col Column, columnName string, right interface{}) (string, []interface{}, error) {
	if col.Type != ColumnString {
		return "", nil, unsupportedSQL(fmt.Errorf("%w: %s", errContainsOnNonString, col.Name))
	}
	needle := toString(right)
	if err := checkCaseFold(col, needle); err != nil {
		return "", nil, err
	}
	like, args := buildLikeComparison(fmt.Sprintf("LOWER(%s)", columnName), strings.ToLower(needle), true, true)
	return fmt.Sprintf("(%s IS NOT NULL AND %s)", columnName, like), args, nil
}

// buildInCondition renders IN as a disjunction of EQ rules; null elements never match.
func buildInCondition(e *ArrayConditionExpr, columns ColumnResolver) (string, []interface{}, error) {
	col, known, err := resolveColumn(e.Left, columns)
	if err != nil {
		return "", nil, err
	}
	if !known {
		return sqlFalse, nil, nil
	}

	columnName := quoteIdent(col.Name)
	var (
		parts []string
		args  []interface{}
	)
	for _, v := range e.Right {
		right := materialize(v)
		if right == nil {
			continue
		}
		cond, condArgs, err := buildEqualitySQL(col, columnName, right)
		if err != nil {
			return "", nil, err
		}
		if cond == sqlFalse {
			continue
		}
		parts = append(parts, cond)
		args = append(args, condArgs...)
	}
	if len(parts) == 0 {
		return sqlFalse, nil, nil
	}
	return fmt.Sprintf("(%s IS NOT NULL AND (%s))", columnName, strings.Join(parts, " OR ")), args, nil
}

// checkCaseFold reports whether LOWER() on col agrees with Unicode
// lower-casing for the given operand.
func checkCaseFold(col Column, operand string) error {
	if !col.ASCIIOnly {
		return unsupportedSQL(fmt.Errorf("%w: %s", errCaseFoldInSQL, col.Name))
	}
	if !isASCII(operand) {
		return unsupportedSQL(fmt.Errorf("case-insensitive comparison of non-ASCII text on %s", col.Name))
	}
	return nil
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= 0x80 {
			return false
		}
	}
	return true
}
