package functions

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3"

	"github.com/MultiX0/dbgate/db"
	"github.com/MultiX0/dbgate/errs"
	"github.com/MultiX0/dbgate/models"
)

// --- Test Setup ---

type testEnv struct {
	engine   *Engine
	configID string
	dataPath string
}

func setupEnv(t *testing.T) *testEnv {
	t.Helper()

	dir := t.TempDir()
	dataPath := filepath.Join(dir, "data.db")

	seed, err := sql.Open("sqlite3", dataPath)
	if err != nil {
		t.Fatalf("failed to open data db: %v", err)
	}
	defer seed.Close()

	schemaSQL := `
	CREATE TABLE test_data_all_types (
		id INTEGER PRIMARY KEY,
		int_col INTEGER,
		decimal_col DECIMAL(10,2),
		bool_col BOOLEAN,
		timestamp_col TIMESTAMP,
		varchar_col VARCHAR(255),
		json_col JSON,
		string_int TEXT
	);
	CREATE TABLE user_table (
		id INTEGER PRIMARY KEY,
		name TEXT,
		email TEXT
	);
	CREATE TABLE order_table (
		id INTEGER PRIMARY KEY,
		user_id INTEGER,
		product TEXT,
		price DECIMAL(10,2)
	);
	CREATE TABLE payment_table (
		id INTEGER PRIMARY KEY,
		order_id INTEGER,
		amount DECIMAL(10,2),
		payment_method TEXT
	);
	CREATE TABLE delete_me (
		id INTEGER PRIMARY KEY,
		label TEXT
	);
	`
	if _, err := seed.Exec(schemaSQL); err != nil {
		t.Fatalf("failed to create tables: %v", err)
	}

	seedSQL := `
	INSERT INTO test_data_all_types (id, int_col, decimal_col, bool_col, timestamp_col, varchar_col, json_col, string_int) VALUES
	(1, 10, 123.45, 1, '2024-05-01 10:30:00', 'sample text', '{"a":1}', '50'),
	(2, 20, 0.00, 0, '2024-05-02 11:00:00', 'other text', NULL, '60'),
	(3, 30, -123.45, 1, NULL, 'third', NULL, NULL),
	(4, 40, 9999.99, 0, NULL, 'fourth', NULL, NULL),
	(5, 50, NULL, NULL, NULL, 'fifth', NULL, NULL);

	INSERT INTO user_table (id, name, email) VALUES
	(1, 'Alice', 'alice@example.com'),
	(2, 'Bob', 'bob@example.com');

	INSERT INTO order_table (id, user_id, product, price) VALUES
	(1, 1, 'Laptop', 999.99),
	(2, 1, 'Mouse', 25.50),
	(3, 2, 'Keyboard', 75.00);

	INSERT INTO payment_table (id, order_id, amount, payment_method) VALUES
	(1, 2, 25.50, 'UPI'),
	(2, 1, 999.99, 'CARD');

	INSERT INTO delete_me (id, label) VALUES (1, 'keep'), (2, 'drop'), (3, 'drop');
	`
	if _, err := seed.Exec(seedSQL); err != nil {
		t.Fatalf("failed to seed data: %v", err)
	}

	store, err := db.OpenStore(filepath.Join(dir, "configs.db"))
	if err != nil {
		t.Fatalf("failed to open config store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	cfg, err := store.Insert(context.Background(), models.DatabaseConfig{
		Name:     "test-sqlite",
		DbType:   "SQLITE",
		Database: dataPath,
	})
	if err != nil {
		t.Fatalf("failed to insert config: %v", err)
	}

	engine := NewEngine(store)
	t.Cleanup(engine.Stop)

	return &testEnv{engine: engine, configID: cfg.ID, dataPath: dataPath}
}

func (env *testEnv) collect(t *testing.T, req models.QueryRequest) []Row {
	t.Helper()
	req.ConfigID = env.configID
	var rows []Row
	err := env.engine.FetchData(context.Background(), req, func(r Row) error {
		rows = append(rows, r)
		return nil
	})
	if err != nil {
		t.Fatalf("FetchData: %v", err)
	}
	return rows
}

func (env *testEnv) count(t *testing.T, req models.QueryRequest) int64 {
	t.Helper()
	req.ConfigID = env.configID
	n, err := env.engine.FetchCount(context.Background(), req)
	if err != nil {
		t.Fatalf("FetchCount: %v", err)
	}
	return n
}

// --- Scenarios ---

func TestProjectionDefaultsToAllBaseColumns(t *testing.T) {
	env := setupEnv(t)

	rows := env.collect(t, models.QueryRequest{Table: "test_data_all_types", OrderBy: "id"})
	if len(rows) != 5 {
		t.Fatalf("expected 5 rows, got %d", len(rows))
	}

	// keys keep the physical column order
	line, err := json.Marshal(rows[0])
	if err != nil {
		t.Fatal(err)
	}
	dec := json.NewDecoder(bytes.NewReader(line))
	dec.Token() // {
	tok, _ := dec.Token()
	if firstKey, _ := tok.(string); firstKey != "id" {
		t.Fatalf("first key = %q, want id", firstKey)
	}

	if v, _ := rows[0].Get("varchar_col"); v != "sample text" {
		t.Fatalf("varchar_col = %v", v)
	}
	// timestamp shaped as ISO string
	if v, _ := rows[0].Get("timestamp_col"); v != "2024-05-01T10:30:00" {
		t.Fatalf("timestamp_col = %v", v)
	}
	// JSON column becomes nested JSON
	v, _ := rows[0].Get("json_col")
	obj, ok := v.(map[string]any)
	if !ok || obj["a"] != float64(1) {
		t.Fatalf("json_col = %#v", v)
	}
}

func TestLikeFilter(t *testing.T) {
	env := setupEnv(t)

	rows := env.collect(t, models.QueryRequest{
		Table: "test_data_all_types",
		Filters: []models.Search{
			{Column: "varchar_col", Value: "sam", FilterOperator: "LIKE"},
		},
	})
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	if v, _ := rows[0].Get("varchar_col"); v != "sample text" {
		t.Fatalf("varchar_col = %v", v)
	}
}

func TestBetweenOnDecimal(t *testing.T) {
	env := setupEnv(t)

	rows := env.collect(t, models.QueryRequest{
		Table:   "test_data_all_types",
		OrderBy: "decimal_col",
		Filters: []models.Search{
			{Column: "decimal_col", Value: []any{json.Number("0.0"), json.Number("500.0")}, FilterOperator: "BETWEEN"},
		},
	})
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	// sqlite's numeric affinity stores 0.00 as the integer 0
	v0, _ := rows[0].Get("decimal_col")
	v1, _ := rows[1].Get("decimal_col")
	if v0 != int64(0) || v1 != 123.45 {
		t.Fatalf("got %v, %v", v0, v1)
	}
}

func TestCastOnTextColumn(t *testing.T) {
	env := setupEnv(t)

	rows := env.collect(t, models.QueryRequest{
		Table: "test_data_all_types",
		Filters: []models.Search{
			{Column: "string_int", Value: json.Number("50"), CastType: "INTEGER", FilterOperator: "EQUALS"},
		},
	})
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	if v, _ := rows[0].Get("id"); v != int64(1) {
		t.Fatalf("id = %v", v)
	}
}

func TestInnerJoinWithFilterOnJoined(t *testing.T) {
	env := setupEnv(t)

	rows := env.collect(t, models.QueryRequest{
		Table: "user_table",
		Alias: "u",
		SelectFields: []string{"u.name", "o.product", "o.price"},
		Joins: []models.JoinRequest{
			{JoinType: "INNER", Table: "order_table", Alias: "o", OnLeft: []string{"u.id"}, OnRight: []string{"o.user_id"}},
		},
		Filters: []models.Search{
			{Column: "o.price", Value: json.Number("500"), FilterOperator: "GREATER_THAN"},
		},
	})
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	if v, _ := rows[0].Get("name"); v != "Alice" {
		t.Fatalf("name = %v", v)
	}
	if v, _ := rows[0].Get("product"); v != "Laptop" {
		t.Fatalf("product = %v", v)
	}
}

func TestMultipleJoinsCombinedAnd(t *testing.T) {
	env := setupEnv(t)

	rows := env.collect(t, models.QueryRequest{
		Table: "user_table",
		Alias: "u",
		SelectFields: []string{"u.name", "o.product", "p.payment_method"},
		Joins: []models.JoinRequest{
			{JoinType: "INNER", Table: "order_table", Alias: "o", OnLeft: []string{"u.id"}, OnRight: []string{"o.user_id"}},
			{JoinType: "LEFT", Table: "payment_table", Alias: "p", OnLeft: []string{"p.order_id"}, OnRight: []string{"o.id"}},
		},
		Filters: []models.Search{
			{Column: "u.name", Value: "Alice", LogicalOperator: "AND"},
			{Column: "p.payment_method", Value: "UPI"},
		},
	})
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	if v, _ := rows[0].Get("product"); v != "Mouse" {
		t.Fatalf("product = %v", v)
	}
	if v, _ := rows[0].Get("payment_method"); v != "UPI" {
		t.Fatalf("payment_method = %v", v)
	}
}

func TestDeleteRequiresPredicate(t *testing.T) {
	env := setupEnv(t)

	_, err := env.engine.DeleteData(context.Background(), models.QueryRequest{
		ConfigID: env.configID,
		Table:    "delete_me",
	})
	if errs.KindOf(err) != errs.KindInvalidArgument {
		t.Fatalf("expected InvalidArgument, got %v", err)
	}

	// nothing was deleted
	if n := env.count(t, models.QueryRequest{Table: "delete_me"}); n != 3 {
		t.Fatalf("count = %d, want 3", n)
	}

	deleted, err := env.engine.DeleteData(context.Background(), models.QueryRequest{
		ConfigID: env.configID,
		Table:    "delete_me",
		Filters:  []models.Search{{Column: "label", Value: "drop"}},
	})
	if err != nil {
		t.Fatalf("DeleteData: %v", err)
	}
	if deleted != 2 {
		t.Fatalf("deleted = %d, want 2", deleted)
	}
	if n := env.count(t, models.QueryRequest{Table: "delete_me"}); n != 1 {
		t.Fatalf("count after delete = %d, want 1", n)
	}
}

func TestJoinKeyDisambiguation(t *testing.T) {
	env := setupEnv(t)

	rows := env.collect(t, models.QueryRequest{
		Table: "user_table",
		Alias: "u",
		SelectFields: []string{"u.id", "o.id"},
		Joins: []models.JoinRequest{
			{JoinType: "INNER", Table: "order_table", Alias: "o", OnLeft: []string{"u.id"}, OnRight: []string{"o.user_id"}},
		},
		Filters: []models.Search{
			{Column: "o.product", Value: "Laptop"},
		},
	})
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	if v, ok := rows[0].Get("id"); !ok || v != int64(1) {
		t.Fatalf("id = %v", v)
	}
	if v, ok := rows[0].Get("o_id"); !ok || v != int64(1) {
		t.Fatalf("o_id = %v", v)
	}
}

func TestInSingletonEqualsEquals(t *testing.T) {
	env := setupEnv(t)

	inRows := env.collect(t, models.QueryRequest{
		Table: "test_data_all_types",
		Filters: []models.Search{
			{Column: "varchar_col", Value: []any{"sample text"}, FilterOperator: "IN"},
		},
	})
	eqRows := env.collect(t, models.QueryRequest{
		Table: "test_data_all_types",
		Filters: []models.Search{
			{Column: "varchar_col", Value: "sample text", FilterOperator: "EQUALS"},
		},
	})
	if len(inRows) != 1 || len(eqRows) != 1 {
		t.Fatalf("IN rows = %d, EQUALS rows = %d", len(inRows), len(eqRows))
	}
	inID, _ := inRows[0].Get("id")
	eqID, _ := eqRows[0].Get("id")
	if inID != eqID {
		t.Fatalf("IN row %v != EQUALS row %v", inID, eqID)
	}
}

func TestCountIsMonotonic(t *testing.T) {
	env := setupEnv(t)

	all := env.count(t, models.QueryRequest{Table: "test_data_all_types"})
	if all != 5 {
		t.Fatalf("count(empty) = %d, want 5", all)
	}

	filtered := env.count(t, models.QueryRequest{
		Table: "test_data_all_types",
		Filters: []models.Search{
			{Column: "int_col", Value: json.Number("20"), FilterOperator: "GREATER_THAN"},
		},
	})
	if filtered > all {
		t.Fatalf("count with filter %d > count without %d", filtered, all)
	}
	if filtered != 3 {
		t.Fatalf("filtered count = %d, want 3", filtered)
	}
}

func TestEqualsNullRewritesToIsNull(t *testing.T) {
	env := setupEnv(t)

	rows := env.collect(t, models.QueryRequest{
		Table: "test_data_all_types",
		Filters: []models.Search{
			{Column: "decimal_col", Value: nil, FilterOperator: "EQUALS"},
		},
	})
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	if v, _ := rows[0].Get("id"); v != int64(5) {
		t.Fatalf("id = %v", v)
	}
}

func TestOrderLimitOffset(t *testing.T) {
	env := setupEnv(t)

	rows := env.collect(t, models.QueryRequest{
		Table:          "test_data_all_types",
		OrderBy:        "id",
		OrderDirection: "DESC",
		Limit:          2,
		Offset:         1,
	})
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	id0, _ := rows[0].Get("id")
	id1, _ := rows[1].Get("id")
	if id0 != int64(4) || id1 != int64(3) {
		t.Fatalf("ids = %v, %v", id0, id1)
	}
}

func TestSchemaOperation(t *testing.T) {
	env := setupEnv(t)

	schema, err := env.engine.TableSchema(context.Background(), models.QueryRequest{
		ConfigID: env.configID,
		Table:    "TEST_DATA_ALL_TYPES", // resolved case-insensitively
	})
	if err != nil {
		t.Fatalf("TableSchema: %v", err)
	}
	if schema["varchar_col"] != "VARCHAR(255)" {
		t.Fatalf("varchar_col type = %q", schema["varchar_col"])
	}
	if schema["decimal_col"] != "DECIMAL(10,2)" {
		t.Fatalf("decimal_col type = %q", schema["decimal_col"])
	}

	_, err = env.engine.TableSchema(context.Background(), models.QueryRequest{
		ConfigID: env.configID,
		Table:    "no_such_table",
	})
	if errs.KindOf(err) != errs.KindNotFound {
		t.Fatalf("expected NotFound, got %v", err)
	}
}

func TestUnknownColumnRejected(t *testing.T) {
	env := setupEnv(t)

	req := models.QueryRequest{
		ConfigID: env.configID,
		Table:    "test_data_all_types",
		Filters:  []models.Search{{Column: "nope", Value: "x"}},
	}
	err := env.engine.FetchData(context.Background(), req, func(Row) error { return nil })
	if errs.KindOf(err) != errs.KindInvalidArgument {
		t.Fatalf("expected InvalidArgument, got %v", err)
	}

	req.Filters = nil
	req.SelectFields = []string{"nope"}
	err = env.engine.FetchData(context.Background(), req, func(Row) error { return nil })
	if errs.KindOf(err) != errs.KindInvalidArgument {
		t.Fatalf("expected InvalidArgument for select field, got %v", err)
	}
}

func TestDirectConfigResolution(t *testing.T) {
	env := setupEnv(t)

	rows := []Row{}
	err := env.engine.FetchData(context.Background(), models.QueryRequest{
		DirectConfig: &models.DirectDatabaseConfig{DbType: "SQLITE", Database: env.dataPath},
		Table:        "user_table",
	}, func(r Row) error {
		rows = append(rows, r)
		return nil
	})
	if err != nil {
		t.Fatalf("FetchData with directConfig: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}

	// neither configId nor directConfig is invalid
	err = env.engine.FetchData(context.Background(), models.QueryRequest{Table: "user_table"}, func(Row) error { return nil })
	if errs.KindOf(err) != errs.KindInvalidArgument {
		t.Fatalf("expected InvalidArgument, got %v", err)
	}
}

func TestRightJoinOnlyAsSoleJoin(t *testing.T) {
	env := setupEnv(t)

	req := models.QueryRequest{
		ConfigID: env.configID,
		Table:    "user_table",
		Alias:    "u",
		Joins: []models.JoinRequest{
			{JoinType: "RIGHT", Table: "order_table", Alias: "o", OnLeft: []string{"u.id"}, OnRight: []string{"o.user_id"}},
			{JoinType: "INNER", Table: "payment_table", Alias: "p", OnLeft: []string{"p.order_id"}, OnRight: []string{"o.id"}},
		},
	}
	err := env.engine.FetchData(context.Background(), req, func(Row) error { return nil })
	if errs.KindOf(err) != errs.KindInvalidArgument {
		t.Fatalf("expected InvalidArgument, got %v", err)
	}
}

func TestMismatchedJoinFields(t *testing.T) {
	env := setupEnv(t)

	req := models.QueryRequest{
		ConfigID: env.configID,
		Table:    "user_table",
		Alias:    "u",
		Joins: []models.JoinRequest{
			{JoinType: "INNER", Table: "order_table", Alias: "o", OnLeft: []string{"u.id", "u.name"}, OnRight: []string{"o.user_id"}},
		},
	}
	err := env.engine.FetchData(context.Background(), req, func(Row) error { return nil })
	if errs.KindOf(err) != errs.KindInvalidArgument {
		t.Fatalf("expected InvalidArgument, got %v", err)
	}
}

func TestRepeatedRequestIsDeterministic(t *testing.T) {
	env := setupEnv(t)

	req := models.QueryRequest{Table: "test_data_all_types", OrderBy: "id"}
	first := env.collect(t, req)
	second := env.collect(t, req)
	if len(first) != len(second) {
		t.Fatalf("row counts differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		a, _ := json.Marshal(first[i])
		b, _ := json.Marshal(second[i])
		if string(a) != string(b) {
			t.Fatalf("row %d differs:\n%s\n%s", i, a, b)
		}
	}
}
