package models

// QueryRequest is the single request shape shared by the data, count, delete
// and schema operations.
type QueryRequest struct {
	ConfigID     string                `json:"configId,omitempty"`
	DirectConfig *DirectDatabaseConfig `json:"directConfig,omitempty"`

	Table        string        `json:"table"`
	Alias        string        `json:"alias,omitempty"`
	SelectFields []string      `json:"selectFields,omitempty"`
	Filters      []Search      `json:"filters,omitempty"`
	Joins        []JoinRequest `json:"joins,omitempty"`

	Limit  int `json:"limit,omitempty"`
	Offset int `json:"offset,omitempty"`

	OrderBy        string `json:"orderBy,omitempty"`
	OrderDirection string `json:"orderDirection,omitempty"` // ASC (default) or DESC

	Distinct bool `json:"distinct,omitempty"`
	Pretty   bool `json:"pretty,omitempty"`
}

// EffectiveAlias is the alias the base table is referenced by in SQL: the
// requested alias when present, otherwise the table name itself.
func (r QueryRequest) EffectiveAlias() string {
	if r.Alias != "" {
		return r.Alias
	}
	return r.Table
}

// Search is one filter predicate.
type Search struct {
	Column          string `json:"column"`
	Value           any    `json:"value"`
	FilterOperator  string `json:"filterOperator,omitempty"`  // default EQUALS
	LogicalOperator string `json:"logicalOperator,omitempty"` // combines with the NEXT filter, default AND
	CastType        string `json:"castType,omitempty"`
	CastFormat      string `json:"castFormat,omitempty"`
}

// JoinRequest describes one join folded onto the base table.
type JoinRequest struct {
	JoinType string   `json:"joinType"` // INNER, LEFT, RIGHT
	Table    string   `json:"table"`
	Alias    string   `json:"alias,omitempty"`
	OnLeft   []string `json:"onLeft"`  // e.g. ["u.id", "u.tenant_id"]
	OnRight  []string `json:"onRight"` // e.g. ["o.user_id", "o.tenant_id"]
}

// EffectiveAlias is the alias the joined table is referenced by.
func (j JoinRequest) EffectiveAlias() string {
	if j.Alias != "" {
		return j.Alias
	}
	return j.Table
}
