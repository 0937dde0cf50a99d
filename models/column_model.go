package models

import (
	"strings"

	"github.com/MultiX0/dbgate/constants"
)

// ColumnModel is one typed column handle from a backend table.
type ColumnModel struct {
	Name     string            `json:"name"`
	DataType string            `json:"data_type"` // declared type as reported by the backend
	SQLType  constants.SQLType `json:"-"`
}

// TableSchema is the ordered, case-insensitive column map cached per
// (descriptor, table) pair.
type TableSchema struct {
	Table   string
	Columns []ColumnModel

	byLower map[string]int
}

func NewTableSchema(table string, columns []ColumnModel) *TableSchema {
	s := &TableSchema{
		Table:   table,
		Columns: columns,
		byLower: make(map[string]int, len(columns)),
	}
	for i, c := range columns {
		s.byLower[strings.ToLower(c.Name)] = i
	}
	return s
}

// Lookup finds a column case-insensitively.
func (s *TableSchema) Lookup(name string) (ColumnModel, bool) {
	i, ok := s.byLower[strings.ToLower(name)]
	if !ok {
		return ColumnModel{}, false
	}
	return s.Columns[i], true
}
