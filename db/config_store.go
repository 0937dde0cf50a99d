package db

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/MultiX0/dbgate/errs"
	"github.com/MultiX0/dbgate/models"
)

// ConfigStore persists backend descriptors.
type ConfigStore struct {
	db *sql.DB
}

func (s *ConfigStore) setupSchema() error {
	sqlStmt := `CREATE TABLE IF NOT EXISTS database_configs (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL UNIQUE,
		db_type TEXT NOT NULL,
		host TEXT NOT NULL,
		port INTEGER NOT NULL,
		database_name TEXT NOT NULL,
		username TEXT NOT NULL,
		password TEXT NOT NULL,
		schema_name TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);`
	_, err := s.db.Exec(sqlStmt)
	return err
}

func (s *ConfigStore) Close() error { return s.db.Close() }

func (s *ConfigStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return errs.Backendf(err, "config store unreachable")
	}
	return nil
}

const configColumns = "id, name, db_type, host, port, database_name, username, password, schema_name"

func scanConfig(row interface{ Scan(...any) error }) (models.DatabaseConfig, error) {
	var cfg models.DatabaseConfig
	var schema sql.NullString
	err := row.Scan(&cfg.ID, &cfg.Name, &cfg.DbType, &cfg.Host, &cfg.Port,
		&cfg.Database, &cfg.Username, &cfg.Password, &schema)
	if schema.Valid {
		cfg.Schema = schema.String
	}
	return cfg, err
}

func (s *ConfigStore) List(ctx context.Context) ([]models.DatabaseConfig, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+configColumns+" FROM database_configs ORDER BY created_at")
	if err != nil {
		return nil, errs.Backendf(err, "failed to list configs")
	}
	defer rows.Close()

	var configs []models.DatabaseConfig
	for rows.Next() {
		cfg, err := scanConfig(rows)
		if err != nil {
			return nil, errs.Backendf(err, "failed to scan config")
		}
		configs = append(configs, cfg)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.Backendf(err, "failed to list configs")
	}
	return configs, nil
}

func (s *ConfigStore) GetByID(ctx context.Context, id string) (models.DatabaseConfig, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+configColumns+" FROM database_configs WHERE id = ?", id)
	cfg, err := scanConfig(row)
	if errors.Is(err, sql.ErrNoRows) {
		return cfg, errs.NotFoundf("config not found: %s", id)
	}
	if err != nil {
		return cfg, errs.Backendf(err, "failed to load config %s", id)
	}
	return cfg, nil
}

// GetByName returns the descriptor with that name, or found=false.
func (s *ConfigStore) GetByName(ctx context.Context, name string) (models.DatabaseConfig, bool, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+configColumns+" FROM database_configs WHERE name = ?", name)
	cfg, err := scanConfig(row)
	if errors.Is(err, sql.ErrNoRows) {
		return cfg, false, nil
	}
	if err != nil {
		return cfg, false, errs.Backendf(err, "failed to load config %s", name)
	}
	return cfg, true, nil
}

// Insert persists a new descriptor, assigning a fresh id.
func (s *ConfigStore) Insert(ctx context.Context, cfg models.DatabaseConfig) (models.DatabaseConfig, error) {
	cfg.ID = uuid.New().String()
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO database_configs (id, name, db_type, host, port, database_name, username, password, schema_name) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)",
		cfg.ID, cfg.Name, cfg.DbType, cfg.Host, cfg.Port, cfg.Database, cfg.Username, cfg.Password, nullable(cfg.Schema))
	if err != nil {
		return cfg, errs.Backendf(err, "failed to insert config %s", cfg.Name)
	}
	return cfg, nil
}

// Update overwrites the descriptor with that id.
func (s *ConfigStore) Update(ctx context.Context, id string, cfg models.DatabaseConfig) (models.DatabaseConfig, error) {
	cfg.ID = id
	res, err := s.db.ExecContext(ctx,
		"UPDATE database_configs SET name = ?, db_type = ?, host = ?, port = ?, database_name = ?, username = ?, password = ?, schema_name = ? WHERE id = ?",
		cfg.Name, cfg.DbType, cfg.Host, cfg.Port, cfg.Database, cfg.Username, cfg.Password, nullable(cfg.Schema), id)
	if err != nil {
		return cfg, errs.Backendf(err, "failed to update config %s", id)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return cfg, errs.NotFoundf("config not found: %s", id)
	}
	return cfg, nil
}

func (s *ConfigStore) Delete(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM database_configs WHERE id = ?", id)
	if err != nil {
		return errs.Backendf(err, "failed to delete config %s", id)
	}
	return nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// ValidateConfig checks required descriptor fields.
func ValidateConfig(cfg models.DatabaseConfig) error {
	if isBlank(cfg.Name) || isBlank(cfg.DbType) || isBlank(cfg.Database) {
		return errs.InvalidArgf("missing required database configuration fields")
	}
	dialect, err := ParseDialect(cfg.DbType)
	if err != nil {
		return err
	}
	if dialect != DialectSQLite {
		if isBlank(cfg.Host) || cfg.Port <= 0 || isBlank(cfg.Username) || isBlank(cfg.Password) {
			return errs.InvalidArgf("missing required database configuration fields")
		}
	}
	return nil
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}
