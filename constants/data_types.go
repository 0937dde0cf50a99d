package constants

// SQLType is the canonical target type shared by the cast table, the value
// coercion logic and the schema cache.
type SQLType string

const (
	TypeVarchar  SQLType = "VARCHAR"
	TypeChar     SQLType = "CHAR"
	TypeInteger  SQLType = "INTEGER"
	TypeBigint   SQLType = "BIGINT"
	TypeDecimal  SQLType = "DECIMAL"
	TypeBoolean  SQLType = "BOOLEAN"
	TypeDate     SQLType = "LOCALDATE"
	TypeTime     SQLType = "LOCALTIME"
	TypeDatetime SQLType = "LOCALDATETIME"
	TypeUUID     SQLType = "UUID"
	TypeJSON     SQLType = "JSON"
	TypeJSONB    SQLType = "JSONB"
	TypeOther    SQLType = "OTHER"
)

// CastTypes maps the castType accepted on a filter to its canonical SQL type.
var CastTypes = map[string]SQLType{
	"STRING":    TypeVarchar,
	"VARCHAR":   TypeVarchar,
	"TEXT":      TypeVarchar,
	"CHAR":      TypeChar,
	"INTEGER":   TypeInteger,
	"INT":       TypeInteger,
	"BIGINT":    TypeBigint,
	"LONG":      TypeBigint,
	"DECIMAL":   TypeDecimal,
	"NUMERIC":   TypeDecimal,
	"DOUBLE":    TypeDecimal,
	"BOOLEAN":   TypeBoolean,
	"DATE":      TypeDate,
	"TIME":      TypeTime,
	"DATETIME":  TypeDatetime,
	"TIMESTAMP": TypeDatetime,
	"UUID":      TypeUUID,
	"JSON":      TypeJSON,
	"JSONB":     TypeJSONB,
}
