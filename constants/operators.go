package constants

// Filter operators accepted on a Search.
const (
	OpEquals           = "EQUALS"
	OpNotEquals        = "NOT_EQUALS"
	OpGreaterThan      = "GREATER_THAN"
	OpGreaterThanEqual = "GREATER_THAN_EQUAL"
	OpLessThan         = "LESS_THAN"
	OpLessThanEqual    = "LESS_THAN_EQUAL"
	OpLike             = "LIKE"
	OpIn               = "IN"
	OpNotIn            = "NOT_IN"
	OpBetween          = "BETWEEN"
)

// Logical operators combining a filter with the next one in the list.
const (
	LogicalAnd = "AND"
	LogicalOr  = "OR"
)

// Join types accepted on a JoinRequest.
const (
	JoinInner = "INNER"
	JoinLeft  = "LEFT"
	JoinRight = "RIGHT"
)

// Order directions.
const (
	OrderAsc  = "ASC"
	OrderDesc = "DESC"
)

var FilterOperators = map[string]bool{
	OpEquals:           true,
	OpNotEquals:        true,
	OpGreaterThan:      true,
	OpGreaterThanEqual: true,
	OpLessThan:         true,
	OpLessThanEqual:    true,
	OpLike:             true,
	OpIn:               true,
	OpNotIn:            true,
	OpBetween:          true,
}
