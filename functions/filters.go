package functions

import (
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/MultiX0/dbgate/constants"
	"github.com/MultiX0/dbgate/db"
	"github.com/MultiX0/dbgate/errs"
	"github.com/MultiX0/dbgate/models"
)

// ColumnResolver turns a filter's column reference into a SQL field reference
// and the type its values coerce to.
type ColumnResolver func(column string) (ref string, typ constants.SQLType, err error)

// BuildPredicate combines a filter list into one condition tree. Filters fold
// left-associatively; each filter's logicalOperator joins it with the NEXT
// one, so the last filter's operator is ignored. An empty list yields nil.
func BuildPredicate(filters []models.Search, resolve ColumnResolver, dialect db.Dialect) (sq.Sqlizer, error) {
	if len(filters) == 0 {
		return nil, nil
	}

	combined, err := buildSingleCondition(filters[0], resolve, dialect)
	if err != nil {
		return nil, err
	}

	for i := 1; i < len(filters); i++ {
		next, err := buildSingleCondition(filters[i], resolve, dialect)
		if err != nil {
			return nil, err
		}
		switch strings.ToUpper(filters[i-1].LogicalOperator) {
		case constants.LogicalOr:
			combined = sq.Or{combined, next}
		case constants.LogicalAnd, "":
			combined = sq.And{combined, next}
		default:
			return nil, errs.InvalidArgf("unsupported logical operator: %s", filters[i-1].LogicalOperator)
		}
	}

	return combined, nil
}

func buildSingleCondition(search models.Search, resolve ColumnResolver, dialect db.Dialect) (sq.Sqlizer, error) {
	op := strings.ToUpper(strings.TrimSpace(search.FilterOperator))
	if op == "" {
		op = constants.OpEquals
	}
	if !constants.FilterOperators[op] {
		return nil, errs.InvalidArgf("unsupported operator: %s", search.FilterOperator)
	}

	ref, typ, err := resolve(search.Column)
	if err != nil {
		return nil, err
	}

	// An explicit cast wraps the field and fixes the value's target type.
	if search.CastType != "" {
		canonical, ok := constants.CastTypes[strings.ToUpper(search.CastType)]
		if !ok {
			return nil, errs.InvalidArgf("unsupported cast type: %s", search.CastType)
		}
		castName, err := dialect.CastTypeName(canonical)
		if err != nil {
			return nil, err
		}
		ref = "CAST(" + ref + " AS " + castName + ")"
		typ = canonical
	}

	// Columns whose declared type maps to no canonical type (OTHER) inherit
	// the type guessed from the value, so the datetime comparison policy
	// still applies to them.
	if typ == constants.TypeOther {
		if _, guessed := GuessValue(search.Value); guessed == constants.TypeDatetime {
			typ = constants.TypeDatetime
		}
	}

	switch op {
	case constants.OpEquals:
		if search.Value == nil {
			return sq.Expr(ref + " IS NULL"), nil
		}
		typed, err := Coerce(search.Value, typ, search.CastFormat)
		if err != nil {
			return nil, err
		}
		if t, ok := datetimeValue(typed, typ); ok {
			lo := t.Truncate(time.Second)
			return sq.Expr(ref+" BETWEEN ? AND ?", lo, lo.Add(time.Second)), nil
		}
		return sq.Expr(ref+" = ?", typed), nil

	case constants.OpNotEquals:
		if search.Value == nil {
			return sq.Expr(ref + " IS NOT NULL"), nil
		}
		typed, err := Coerce(search.Value, typ, search.CastFormat)
		if err != nil {
			return nil, err
		}
		if t, ok := datetimeValue(typed, typ); ok {
			lo := t.Truncate(time.Second)
			return sq.Expr(ref+" NOT BETWEEN ? AND ?", lo, lo.Add(time.Second)), nil
		}
		return sq.Expr(ref+" <> ?", typed), nil

	case constants.OpGreaterThan, constants.OpGreaterThanEqual, constants.OpLessThan, constants.OpLessThanEqual:
		typed, err := Coerce(search.Value, typ, search.CastFormat)
		if err != nil {
			return nil, err
		}
		if t, ok := datetimeValue(typed, typ); ok {
			typed = t.Truncate(time.Second)
		}
		return sq.Expr(ref+" "+comparisonSymbol(op)+" ?", typed), nil

	case constants.OpLike:
		s, ok := search.Value.(string)
		if !ok {
			return nil, errs.InvalidArgf("LIKE requires a string value, got '%v'", search.Value)
		}
		return sq.Expr(ref+" LIKE ?", "%"+s+"%"), nil

	case constants.OpIn, constants.OpNotIn:
		values, err := CoerceList(search.Value, typ, search.CastFormat)
		if err != nil {
			return nil, err
		}
		if len(values) == 0 {
			return nil, errs.InvalidArgf("%s requires at least one value", op)
		}
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(values)), ",")
		keyword := " IN ("
		if op == constants.OpNotIn {
			keyword = " NOT IN ("
		}
		return sq.Expr(ref+keyword+placeholders+")", values...), nil

	case constants.OpBetween:
		values, err := CoerceList(search.Value, typ, search.CastFormat)
		if err != nil {
			return nil, err
		}
		if len(values) != 2 {
			return nil, errs.InvalidArgf("BETWEEN needs exactly 2 values")
		}
		return sq.Expr(ref+" BETWEEN ? AND ?", values[0], values[1]), nil
	}

	return nil, errs.InvalidArgf("unsupported operator: %s", op)
}

// datetimeValue reports whether the typed value participates in the
// second-window datetime comparison policy.
func datetimeValue(typed any, typ constants.SQLType) (time.Time, bool) {
	t, ok := typed.(time.Time)
	if !ok || typ != constants.TypeDatetime {
		return time.Time{}, false
	}
	return t, true
}

func comparisonSymbol(op string) string {
	switch op {
	case constants.OpGreaterThan:
		return ">"
	case constants.OpGreaterThanEqual:
		return ">="
	case constants.OpLessThan:
		return "<"
	default:
		return "<="
	}
}
