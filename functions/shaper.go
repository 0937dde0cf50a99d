package functions

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/MultiX0/dbgate/errs"
)

// SelectedField records which qualifier a result column was selected under,
// for key disambiguation when two tables share a column name.
type SelectedField struct {
	Qualifier string
	Name      string
}

// Row is one shaped result row. It serializes as a JSON object whose keys
// keep the result column order.
type Row struct {
	keys   []string
	values []any
}

func (r Row) Len() int { return len(r.keys) }

// Get returns the value under a JSON key.
func (r Row) Get(key string) (any, bool) {
	for i, k := range r.keys {
		if k == key {
			return r.values[i], true
		}
	}
	return nil, false
}

func (r Row) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, key := range r.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(key)
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		vb, err := json.Marshal(r.values[i])
		if err != nil {
			return nil, err
		}
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// streamRows scans each result row, shapes it and hands it to emit, honoring
// cancellation between rows.
func streamRows(ctx context.Context, rows *sql.Rows, shape []SelectedField, emit func(Row) error) error {
	columns, err := rows.Columns()
	if err != nil {
		return errs.Backendf(err, "failed to get columns")
	}
	columnTypes, err := rows.ColumnTypes()
	if err != nil {
		return errs.Backendf(err, "failed to get column types")
	}

	keys := RowKeys(columns, shape)

	for rows.Next() {
		if err := ctx.Err(); err != nil {
			return errs.Wrap(errs.KindCancelled, err, "stream cancelled")
		}

		values := make([]any, len(columns))
		scanArgs := make([]any, len(columns))
		for i := range values {
			scanArgs[i] = &values[i]
		}
		if err := rows.Scan(scanArgs...); err != nil {
			return errs.Backendf(err, "failed to scan row")
		}

		shaped := make([]any, len(columns))
		for i := range columns {
			shaped[i] = ShapeValue(values[i], columnTypes[i].DatabaseTypeName())
		}

		if err := emit(Row{keys: keys, values: shaped}); err != nil {
			return errs.Wrap(errs.KindCancelled, err, "client aborted stream")
		}
	}
	if err := rows.Err(); err != nil {
		return errs.Backendf(err, "row iteration error")
	}
	return nil
}

// RowKeys assigns the JSON key for each result column: the bare column name
// on first occurrence, "<qualifier>_<name>" on repeats.
func RowKeys(columns []string, shape []SelectedField) []string {
	keys := make([]string, len(columns))
	used := make(map[string]bool, len(columns))

	for i, col := range columns {
		key := col
		if used[col] {
			if i < len(shape) && shape[i].Qualifier != "" {
				key = shape[i].Qualifier + "_" + col
			} else {
				key = fmt.Sprintf("%s_%d", col, i)
			}
		} else {
			used[col] = true
		}
		keys[i] = key
	}
	return keys
}

// ShapeValue converts a scanned driver value into its JSON representation:
// temporals become ISO strings, JSON/JSONB columns become nested JSON, byte
// slices become strings.
func ShapeValue(value any, dbTypeName string) any {
	if value == nil {
		return nil
	}

	typeName := strings.ToUpper(dbTypeName)

	if strings.Contains(typeName, "JSON") {
		var raw string
		switch v := value.(type) {
		case []byte:
			raw = string(v)
		case string:
			raw = v
		default:
			return value
		}
		var parsed any
		if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
			return raw
		}
		return parsed
	}

	switch v := value.(type) {
	case time.Time:
		switch typeName {
		case "DATE":
			return v.Format("2006-01-02")
		case "TIME", "TIMETZ":
			return v.Format("15:04:05")
		default:
			return v.Format("2006-01-02T15:04:05")
		}
	case []byte:
		return string(v)
	default:
		return value
	}
}
