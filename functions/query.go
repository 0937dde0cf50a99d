package functions

import (
	"context"
	"strings"

	sq "github.com/Masterminds/squirrel"

	"github.com/MultiX0/dbgate/constants"
	"github.com/MultiX0/dbgate/db"
	"github.com/MultiX0/dbgate/errs"
	"github.com/MultiX0/dbgate/models"
	"github.com/MultiX0/dbgate/utils"
)

// Engine orchestrates the request pipeline: resolve context, resolve schema,
// build predicate, assemble statement, execute, shape rows.
type Engine struct {
	Contexts *db.Registry
	Schemas  *SchemaCache
}

func NewEngine(store *db.ConfigStore) *Engine {
	return &Engine{
		Contexts: db.NewRegistry(store),
		Schemas:  NewSchemaCache(),
	}
}

// Preload installs execution contexts for all stored descriptors.
func (e *Engine) Preload(ctx context.Context) {
	e.Contexts.Preload(ctx)
}

func (e *Engine) Stop() {
	e.Contexts.Stop()
	e.Schemas.Stop()
}

type joinPlan struct {
	joinType string
	clause   string // "<table> [AS <alias>] ON <cond>"
}

type queryPlan struct {
	dbctx    *db.Context
	key      string
	schema   *models.TableSchema
	alias    string
	baseExpr string
	joins    []joinPlan
	pred     sq.Sqlizer
	resolve  ColumnResolver
}

func (p *queryPlan) builder() sq.StatementBuilderType {
	return sq.StatementBuilder.PlaceholderFormat(p.dbctx.Dialect.Placeholder())
}

// prepare runs the shared front half of every operation. When allowJoins is
// false (delete), joins in the request are ignored and filters may only
// reference the base table.
func (e *Engine) prepare(ctx context.Context, req models.QueryRequest, allowJoins bool) (*queryPlan, error) {
	if err := utils.ValidateIdentifier(req.Table); err != nil {
		return nil, err
	}
	if req.Alias != "" {
		if err := utils.ValidateIdentifier(req.Alias); err != nil {
			return nil, err
		}
	}
	if req.Limit < 0 || req.Offset < 0 {
		return nil, errs.InvalidArgf("limit and offset must be non-negative")
	}

	dbctx, key, err := e.Contexts.Resolve(ctx, req)
	if err != nil {
		return nil, err
	}

	schema, err := e.Schemas.Lookup(ctx, dbctx, key, req.Table)
	if err != nil {
		return nil, err
	}

	alias := req.EffectiveAlias()
	plan := &queryPlan{
		dbctx:  dbctx,
		key:    key,
		schema: schema,
		alias:  alias,
	}
	if req.Alias != "" {
		plan.baseExpr = schema.Table + " AS " + req.Alias
	} else {
		plan.baseExpr = schema.Table
	}

	// qualifier -> physical table, for resolving dotted references
	qualifiers := map[string]string{alias: schema.Table}
	if allowJoins {
		for _, join := range req.Joins {
			if err := utils.ValidateIdentifier(join.Table); err != nil {
				return nil, err
			}
			if join.Alias != "" {
				if err := utils.ValidateIdentifier(join.Alias); err != nil {
					return nil, err
				}
			}
			qualifiers[join.EffectiveAlias()] = join.Table
		}
		if err := e.planJoins(req, qualifiers, plan); err != nil {
			return nil, err
		}
	}

	plan.resolve = func(column string) (string, constants.SQLType, error) {
		return e.resolveColumn(ctx, plan, qualifiers, req.Table, column)
	}

	pred, err := BuildPredicate(req.Filters, plan.resolve, dbctx.Dialect)
	if err != nil {
		return nil, err
	}
	plan.pred = pred

	return plan, nil
}

func (e *Engine) planJoins(req models.QueryRequest, qualifiers map[string]string, plan *queryPlan) error {
	for _, join := range req.Joins {
		joinType := strings.ToUpper(strings.TrimSpace(join.JoinType))
		switch joinType {
		case constants.JoinInner, constants.JoinLeft:
		case constants.JoinRight:
			if len(req.Joins) > 1 {
				return errs.InvalidArgf("RIGHT join is only supported as the sole join")
			}
		default:
			return errs.InvalidArgf("unsupported join type: %s", join.JoinType)
		}

		if len(join.OnLeft) == 0 || len(join.OnLeft) != len(join.OnRight) {
			return errs.InvalidArgf("mismatched join fields in join for table: %s", join.Table)
		}

		conds := make([]string, 0, len(join.OnLeft))
		for i := range join.OnLeft {
			left, err := joinPathRef(join.OnLeft[i], qualifiers)
			if err != nil {
				return err
			}
			right, err := joinPathRef(join.OnRight[i], qualifiers)
			if err != nil {
				return err
			}
			conds = append(conds, left+" = "+right)
		}

		expr := join.Table
		if join.Alias != "" {
			expr += " AS " + join.Alias
		}
		plan.joins = append(plan.joins, joinPlan{
			joinType: joinType,
			clause:   expr + " ON " + strings.Join(conds, " AND "),
		})
	}
	return nil
}

// joinPathRef validates a "qualifier.column" join path against the known
// qualifiers and returns it as a SQL reference.
func joinPathRef(path string, qualifiers map[string]string) (string, error) {
	parts := strings.Split(path, ".")
	if len(parts) != 2 {
		return "", errs.InvalidArgf("invalid field path: %s (expected format: alias.column)", path)
	}
	if err := utils.ValidateIdentifier(parts[0]); err != nil {
		return "", err
	}
	if err := utils.ValidateIdentifier(parts[1]); err != nil {
		return "", err
	}
	if _, ok := qualifiers[parts[0]]; !ok {
		return "", errs.InvalidArgf("unknown qualifier in field path: %s", path)
	}
	return parts[0] + "." + parts[1], nil
}

// resolveColumn maps a filter/order/select reference to a qualified SQL field
// and its coercion type. Unqualified names must exist in the base schema;
// qualified names resolve against the schema of the qualifier's table.
func (e *Engine) resolveColumn(ctx context.Context, plan *queryPlan, qualifiers map[string]string, baseTable, column string) (string, constants.SQLType, error) {
	parts := strings.Split(column, ".")
	switch len(parts) {
	case 1:
		if err := utils.ValidateIdentifier(column); err != nil {
			return "", "", err
		}
		col, ok := plan.schema.Lookup(column)
		if !ok {
			return "", "", errs.InvalidArgf("unknown column: %s", column)
		}
		return plan.alias + "." + col.Name, col.SQLType, nil

	case 2:
		qualifier, name := parts[0], parts[1]
		if err := utils.ValidateIdentifier(qualifier); err != nil {
			return "", "", err
		}
		if err := utils.ValidateIdentifier(name); err != nil {
			return "", "", err
		}
		table, ok := qualifiers[qualifier]
		if !ok {
			return "", "", errs.InvalidArgf("unknown qualifier in column reference: %s", column)
		}

		schema := plan.schema
		if !strings.EqualFold(table, baseTable) {
			joined, err := e.Schemas.Lookup(ctx, plan.dbctx, plan.key, table)
			if err != nil {
				return "", "", err
			}
			schema = joined
		}
		col, ok := schema.Lookup(name)
		if !ok {
			return "", "", errs.InvalidArgf("unknown column: %s", column)
		}
		return qualifier + "." + col.Name, col.SQLType, nil

	default:
		return "", "", errs.InvalidArgf("invalid field path: %s (expected format: alias.column)", column)
	}
}

// projection expands the request's select list into SQL references plus the
// shape used for row-key disambiguation. An empty list selects every column
// of the base table in physical order.
func (e *Engine) projection(plan *queryPlan, req models.QueryRequest) ([]string, []SelectedField, error) {
	if len(req.SelectFields) == 0 {
		sel := make([]string, 0, len(plan.schema.Columns))
		shape := make([]SelectedField, 0, len(plan.schema.Columns))
		for _, col := range plan.schema.Columns {
			sel = append(sel, plan.alias+"."+col.Name)
			shape = append(shape, SelectedField{Qualifier: plan.alias, Name: col.Name})
		}
		return sel, shape, nil
	}

	sel := make([]string, 0, len(req.SelectFields))
	shape := make([]SelectedField, 0, len(req.SelectFields))
	for _, field := range req.SelectFields {
		ref, _, err := plan.resolve(field)
		if err != nil {
			return nil, nil, err
		}
		sel = append(sel, ref)
		qualifier, name, _ := strings.Cut(ref, ".")
		shape = append(shape, SelectedField{Qualifier: qualifier, Name: name})
	}
	return sel, shape, nil
}

func (p *queryPlan) applyJoins(q sq.SelectBuilder) sq.SelectBuilder {
	for _, j := range p.joins {
		switch j.joinType {
		case constants.JoinLeft:
			q = q.LeftJoin(j.clause)
		case constants.JoinRight:
			q = q.RightJoin(j.clause)
		default:
			q = q.Join(j.clause)
		}
	}
	return q
}

func orderClause(plan *queryPlan, req models.QueryRequest) (string, error) {
	ref, _, err := plan.resolve(req.OrderBy)
	if err != nil {
		return "", err
	}
	switch strings.ToUpper(req.OrderDirection) {
	case constants.OrderDesc:
		return ref + " DESC", nil
	case constants.OrderAsc, "":
		return ref + " ASC", nil
	default:
		return "", errs.InvalidArgf("unsupported order direction: %s", req.OrderDirection)
	}
}

// FetchData executes the SELECT for a request and hands each shaped row to
// emit. An emit error aborts the stream; rows already emitted stay delivered.
func (e *Engine) FetchData(ctx context.Context, req models.QueryRequest, emit func(Row) error) error {
	plan, err := e.prepare(ctx, req, true)
	if err != nil {
		return err
	}

	sel, shape, err := e.projection(plan, req)
	if err != nil {
		return err
	}

	q := plan.builder().Select(sel...).From(plan.baseExpr)
	if req.Distinct {
		q = q.Distinct()
	}
	q = plan.applyJoins(q)
	if plan.pred != nil {
		q = q.Where(plan.pred)
	}
	if req.OrderBy != "" {
		order, err := orderClause(plan, req)
		if err != nil {
			return err
		}
		q = q.OrderBy(order)
	}
	if req.Limit > 0 {
		q = q.Limit(uint64(req.Limit))
		if req.Offset > 0 {
			q = q.Offset(uint64(req.Offset))
		}
	}

	sqlStmt, args, err := q.ToSql()
	if err != nil {
		return errs.Wrap(errs.KindInternal, err, "failed to assemble query")
	}

	rows, err := plan.dbctx.DB.QueryContext(ctx, sqlStmt, args...)
	if err != nil {
		if ctx.Err() != nil {
			return errs.Wrap(errs.KindCancelled, ctx.Err(), "query cancelled")
		}
		return errs.Backendf(err, "failed to execute query")
	}
	defer rows.Close()

	return streamRows(ctx, rows, shape, emit)
}

// FetchCount executes the COUNT(*) variant: same base, joins and predicate,
// no ordering or pagination.
func (e *Engine) FetchCount(ctx context.Context, req models.QueryRequest) (int64, error) {
	plan, err := e.prepare(ctx, req, true)
	if err != nil {
		return 0, err
	}

	q := plan.builder().Select("COUNT(*)").From(plan.baseExpr)
	q = plan.applyJoins(q)
	if plan.pred != nil {
		q = q.Where(plan.pred)
	}

	sqlStmt, args, err := q.ToSql()
	if err != nil {
		return 0, errs.Wrap(errs.KindInternal, err, "failed to assemble query")
	}

	var count int64
	if err := plan.dbctx.DB.QueryRowContext(ctx, sqlStmt, args...).Scan(&count); err != nil {
		if ctx.Err() != nil {
			return 0, errs.Wrap(errs.KindCancelled, ctx.Err(), "query cancelled")
		}
		return 0, errs.Backendf(err, "failed to execute count")
	}
	return count, nil
}

// DeleteData executes the DELETE variant. A request without an effective
// predicate is rejected before any SQL is issued; joins, ordering and
// pagination are ignored even when present.
func (e *Engine) DeleteData(ctx context.Context, req models.QueryRequest) (int64, error) {
	if len(req.Filters) == 0 {
		return 0, errs.InvalidArgf("deletion without filter is not allowed")
	}
	plan, err := e.prepare(ctx, req, false)
	if err != nil {
		return 0, err
	}
	if plan.pred == nil {
		return 0, errs.InvalidArgf("deletion without filter is not allowed")
	}

	q := plan.builder().Delete(plan.baseExpr).Where(plan.pred)
	sqlStmt, args, err := q.ToSql()
	if err != nil {
		return 0, errs.Wrap(errs.KindInternal, err, "failed to assemble delete")
	}

	res, err := plan.dbctx.DB.ExecContext(ctx, sqlStmt, args...)
	if err != nil {
		if ctx.Err() != nil {
			return 0, errs.Wrap(errs.KindCancelled, ctx.Err(), "delete cancelled")
		}
		return 0, errs.Backendf(err, "failed to execute delete")
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, errs.Backendf(err, "failed to read affected rows")
	}
	return affected, nil
}

// TableSchema returns the resolved table's column -> declared type map.
func (e *Engine) TableSchema(ctx context.Context, req models.QueryRequest) (map[string]string, error) {
	if err := utils.ValidateIdentifier(req.Table); err != nil {
		return nil, err
	}

	dbctx, key, err := e.Contexts.Resolve(ctx, req)
	if err != nil {
		return nil, err
	}
	schema, err := e.Schemas.Lookup(ctx, dbctx, key, req.Table)
	if err != nil {
		return nil, err
	}

	out := make(map[string]string, len(schema.Columns))
	for _, col := range schema.Columns {
		out[col.Name] = col.DataType
	}
	return out, nil
}
