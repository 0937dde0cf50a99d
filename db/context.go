package db

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/MultiX0/dbgate/constants"
	"github.com/MultiX0/dbgate/errs"
	"github.com/MultiX0/dbgate/models"
)

// Dialect selects driver, placeholder style, cast spelling and introspection
// strategy for a backend.
type Dialect string

const (
	DialectPostgres Dialect = "POSTGRES"
	DialectMySQL    Dialect = "MYSQL"
	DialectSQLite   Dialect = "SQLITE"
)

func ParseDialect(dbType string) (Dialect, error) {
	switch strings.ToUpper(strings.TrimSpace(dbType)) {
	case "POSTGRES":
		return DialectPostgres, nil
	case "MYSQL":
		return DialectMySQL, nil
	case "SQLITE":
		return DialectSQLite, nil
	default:
		return "", errs.InvalidArgf("unsupported DB type: %s", dbType)
	}
}

// Placeholder is the bind-parameter style the backend expects.
func (d Dialect) Placeholder() sq.PlaceholderFormat {
	if d == DialectPostgres {
		return sq.Dollar
	}
	return sq.Question
}

// CastTypeName spells a canonical SQL type as a CAST target for the backend.
func (d Dialect) CastTypeName(t constants.SQLType) (string, error) {
	switch d {
	case DialectPostgres:
		switch t {
		case constants.TypeVarchar:
			return "VARCHAR", nil
		case constants.TypeChar:
			return "CHAR", nil
		case constants.TypeInteger:
			return "INTEGER", nil
		case constants.TypeBigint:
			return "BIGINT", nil
		case constants.TypeDecimal:
			return "DECIMAL", nil
		case constants.TypeBoolean:
			return "BOOLEAN", nil
		case constants.TypeDate:
			return "DATE", nil
		case constants.TypeTime:
			return "TIME", nil
		case constants.TypeDatetime:
			return "TIMESTAMP", nil
		case constants.TypeUUID:
			return "UUID", nil
		case constants.TypeJSON:
			return "JSON", nil
		case constants.TypeJSONB:
			return "JSONB", nil
		}
	case DialectMySQL:
		switch t {
		case constants.TypeVarchar, constants.TypeChar, constants.TypeUUID:
			return "CHAR", nil
		case constants.TypeInteger, constants.TypeBigint:
			return "SIGNED", nil
		case constants.TypeDecimal:
			return "DECIMAL(65,10)", nil
		case constants.TypeBoolean:
			return "UNSIGNED", nil
		case constants.TypeDate:
			return "DATE", nil
		case constants.TypeTime:
			return "TIME", nil
		case constants.TypeDatetime:
			return "DATETIME", nil
		case constants.TypeJSON, constants.TypeJSONB:
			return "JSON", nil
		}
	case DialectSQLite:
		switch t {
		case constants.TypeVarchar, constants.TypeChar, constants.TypeUUID,
			constants.TypeDate, constants.TypeTime, constants.TypeDatetime,
			constants.TypeJSON, constants.TypeJSONB:
			return "TEXT", nil
		case constants.TypeInteger, constants.TypeBigint:
			return "INTEGER", nil
		case constants.TypeDecimal:
			return "NUMERIC", nil
		case constants.TypeBoolean:
			return "NUMERIC", nil
		}
	}
	return "", errs.InvalidArgf("cannot cast to %s on %s", t, d)
}

// Context is a live execution handle for one descriptor: a small connection
// pool plus the dialect it speaks.
type Context struct {
	Config  models.DatabaseConfig
	DB      *sql.DB
	Dialect Dialect
}

// NewContext wraps an already-open pool. Used by Open.
func NewContext(cfg models.DatabaseConfig, pool *sql.DB, dialect Dialect) *Context {
	return &Context{Config: cfg, DB: pool, Dialect: dialect}
}

func (c *Context) Close() error {
	if c.DB != nil {
		return c.DB.Close()
	}
	return nil
}

// DSN synthesizes the driver name and connection string for a descriptor.
func DSN(cfg models.DatabaseConfig) (driver string, dsn string, err error) {
	dialect, err := ParseDialect(cfg.DbType)
	if err != nil {
		return "", "", err
	}

	switch dialect {
	case DialectPostgres:
		u := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
			url.QueryEscape(cfg.Username), url.QueryEscape(cfg.Password),
			cfg.Host, cfg.Port, cfg.Database)
		if cfg.Schema != "" {
			u += "&search_path=" + url.QueryEscape(cfg.Schema)
		}
		return "postgres", u, nil
	case DialectMySQL:
		return "mysql", fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true",
			cfg.Username, cfg.Password, cfg.Host, cfg.Port, cfg.Database), nil
	default:
		// database holds the file path, host/port are unused
		return "sqlite3", cfg.Database, nil
	}
}

// Open creates the execution context for a descriptor and checks the
// connection once.
func Open(ctx context.Context, cfg models.DatabaseConfig) (*Context, error) {
	driver, dsn, err := DSN(cfg)
	if err != nil {
		return nil, err
	}
	dialect, _ := ParseDialect(cfg.DbType)

	pool, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, errs.Backendf(err, "failed to open connection for %s", cfg.Name)
	}
	pool.SetMaxOpenConns(8)
	pool.SetMaxIdleConns(4)
	pool.SetConnMaxIdleTime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := pool.PingContext(pingCtx); err != nil {
		pool.Close()
		return nil, errs.Backendf(err, "database connection failed for %s", cfg.Name)
	}

	return NewContext(cfg, pool, dialect), nil
}

// Verify opens a disposable connection to prove the descriptor works, then
// closes it.
func Verify(ctx context.Context, cfg models.DatabaseConfig) error {
	c, err := Open(ctx, cfg)
	if err != nil {
		return err
	}
	return c.Close()
}
