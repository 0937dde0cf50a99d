package functions

import (
	"context"
	"strings"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"golang.org/x/sync/singleflight"

	"github.com/MultiX0/dbgate/constants"
	"github.com/MultiX0/dbgate/db"
	"github.com/MultiX0/dbgate/errs"
	"github.com/MultiX0/dbgate/models"
)

const (
	schemaCacheCapacity = 1000
	schemaCacheTTL      = 10 * time.Minute
)

// SchemaCache holds the (descriptor, table) -> column map entries. Entries
// expire 10 minutes after they were written, regardless of reads.
type SchemaCache struct {
	cache *ttlcache.Cache[string, *models.TableSchema]
	group singleflight.Group
}

func NewSchemaCache() *SchemaCache {
	cache := ttlcache.New[string, *models.TableSchema](
		ttlcache.WithTTL[string, *models.TableSchema](schemaCacheTTL),
		ttlcache.WithCapacity[string, *models.TableSchema](schemaCacheCapacity),
		ttlcache.WithDisableTouchOnHit[string, *models.TableSchema](),
	)
	go cache.Start()
	return &SchemaCache{cache: cache}
}

// Lookup returns the schema for a table on the given backend, introspecting
// at most once per key under concurrent first touches.
func (s *SchemaCache) Lookup(ctx context.Context, dbctx *db.Context, descriptorKey, table string) (*models.TableSchema, error) {
	key := descriptorKey + ":" + strings.ToLower(table)
	if item := s.cache.Get(key); item != nil {
		return item.Value(), nil
	}

	v, err, _ := s.group.Do(key, func() (any, error) {
		if item := s.cache.Get(key); item != nil {
			return item.Value(), nil
		}
		schema, err := Introspect(ctx, dbctx, table)
		if err != nil {
			return nil, err
		}
		s.cache.Set(key, schema, ttlcache.DefaultTTL)
		return schema, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*models.TableSchema), nil
}

func (s *SchemaCache) Stop() {
	s.cache.Stop()
	s.cache.DeleteAll()
}

// Introspect locates the table case-insensitively and materializes its
// ordered column list with SQL types.
func Introspect(ctx context.Context, dbctx *db.Context, table string) (*models.TableSchema, error) {
	switch dbctx.Dialect {
	case db.DialectPostgres:
		schema := dbctx.Config.Schema
		if schema == "" {
			schema = "public"
		}
		return introspectInformationSchema(ctx, dbctx, table,
			"SELECT table_name FROM information_schema.tables WHERE lower(table_name) = lower($1) AND table_schema = $2",
			[]any{table, schema},
			"SELECT column_name, data_type FROM information_schema.columns WHERE table_name = $1 AND table_schema = $2 ORDER BY ordinal_position",
			func(resolved string) []any { return []any{resolved, schema} })
	case db.DialectMySQL:
		return introspectInformationSchema(ctx, dbctx, table,
			"SELECT table_name FROM information_schema.tables WHERE lower(table_name) = lower(?) AND table_schema = DATABASE()",
			[]any{table},
			"SELECT column_name, data_type FROM information_schema.columns WHERE table_name = ? AND table_schema = DATABASE() ORDER BY ordinal_position",
			func(resolved string) []any { return []any{resolved} })
	default:
		return introspectSQLite(ctx, dbctx, table)
	}
}

func introspectInformationSchema(ctx context.Context, dbctx *db.Context, table, tableQuery string, tableArgs []any, columnsQuery string, columnArgs func(string) []any) (*models.TableSchema, error) {
	var resolved string
	err := dbctx.DB.QueryRowContext(ctx, tableQuery, tableArgs...).Scan(&resolved)
	if err != nil {
		if strings.Contains(err.Error(), "no rows in result set") {
			return nil, errs.NotFoundf("table not found: %s", table)
		}
		return nil, errs.Backendf(err, "failed to resolve table %s", table)
	}

	rows, err := dbctx.DB.QueryContext(ctx, columnsQuery, columnArgs(resolved)...)
	if err != nil {
		return nil, errs.Backendf(err, "failed to introspect table %s", resolved)
	}
	defer rows.Close()

	var columns []models.ColumnModel
	for rows.Next() {
		var name, declared string
		if err := rows.Scan(&name, &declared); err != nil {
			return nil, errs.Backendf(err, "failed to scan column of %s", resolved)
		}
		columns = append(columns, models.ColumnModel{
			Name:     name,
			DataType: declared,
			SQLType:  GuessSQLType(declared),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, errs.Backendf(err, "failed to introspect table %s", resolved)
	}
	if len(columns) == 0 {
		return nil, errs.NotFoundf("table not found: %s", table)
	}
	return models.NewTableSchema(resolved, columns), nil
}

func introspectSQLite(ctx context.Context, dbctx *db.Context, table string) (*models.TableSchema, error) {
	var resolved string
	err := dbctx.DB.QueryRowContext(ctx,
		"SELECT name FROM sqlite_schema WHERE type='table' AND lower(name) = lower(?) AND name NOT LIKE 'sqlite_%'",
		table).Scan(&resolved)
	if err != nil {
		if strings.Contains(err.Error(), "no rows in result set") {
			return nil, errs.NotFoundf("table not found: %s", table)
		}
		return nil, errs.Backendf(err, "failed to resolve table %s", table)
	}

	rows, err := dbctx.DB.QueryContext(ctx, "SELECT name, type FROM pragma_table_info(?)", resolved)
	if err != nil {
		return nil, errs.Backendf(err, "failed to introspect table %s", resolved)
	}
	defer rows.Close()

	var columns []models.ColumnModel
	for rows.Next() {
		var name, declared string
		if err := rows.Scan(&name, &declared); err != nil {
			return nil, errs.Backendf(err, "failed to scan column of %s", resolved)
		}
		columns = append(columns, models.ColumnModel{
			Name:     name,
			DataType: declared,
			SQLType:  GuessSQLType(declared),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, errs.Backendf(err, "failed to introspect table %s", resolved)
	}
	if len(columns) == 0 {
		return nil, errs.NotFoundf("table not found: %s", table)
	}
	return models.NewTableSchema(resolved, columns), nil
}

// GuessSQLType maps a declared backend type name to the canonical SQL type
// used by coercion.
func GuessSQLType(declared string) constants.SQLType {
	t := strings.ToLower(strings.TrimSpace(declared))
	if i := strings.IndexByte(t, '('); i > 0 {
		t = strings.TrimSpace(t[:i])
	}

	switch {
	case t == "jsonb":
		return constants.TypeJSONB
	case strings.Contains(t, "json"):
		return constants.TypeJSON
	case t == "uuid":
		return constants.TypeUUID
	case strings.Contains(t, "timestamp"), strings.Contains(t, "datetime"):
		return constants.TypeDatetime
	case t == "date":
		return constants.TypeDate
	case strings.HasPrefix(t, "time"):
		return constants.TypeTime
	case strings.Contains(t, "bool"):
		return constants.TypeBoolean
	case t == "bigint", t == "int8", t == "bigserial":
		return constants.TypeBigint
	case strings.Contains(t, "int"), t == "serial", t == "smallserial":
		return constants.TypeInteger
	case strings.Contains(t, "numeric"), strings.Contains(t, "decimal"),
		strings.Contains(t, "double"), strings.Contains(t, "real"),
		strings.Contains(t, "float"), t == "money":
		return constants.TypeDecimal
	case t == "char", t == "character", t == "bpchar":
		return constants.TypeChar
	case strings.Contains(t, "char"), strings.Contains(t, "text"), strings.Contains(t, "clob"):
		return constants.TypeVarchar
	default:
		return constants.TypeOther
	}
}
