package domain

// FilterOperator is the closed set of comparisons accepted on variable and
// structural filters.
type FilterOperator string

const (
	FilterOperatorEquals             FilterOperator = "eq"
	FilterOperatorLike               FilterOperator = "like"
	FilterOperatorGreaterThan        FilterOperator = "gt"
	FilterOperatorGreaterThanOrEqual FilterOperator = "gte"
	FilterOperatorLessThan           FilterOperator = "lt"
	FilterOperatorLessThanOrEqual    FilterOperator = "lte"
)

// Valid reports whether op is one of the supported filter operators.
func (op FilterOperator) Valid() bool {
	switch op {
	case FilterOperatorEquals, FilterOperatorLike,
		FilterOperatorGreaterThan, FilterOperatorGreaterThanOrEqual,
		FilterOperatorLessThan, FilterOperatorLessThanOrEqual:
		return true
	}
	return false
}

// operatorLegality lists, per variable type, the operators a filter may use.
// LIKE is string-only; ordering needs a totally ordered type; EQUALS is
// universal.
var operatorLegality = map[VariableType]map[FilterOperator]struct{}{
	VariableTypeString: {
		FilterOperatorEquals: {},
		FilterOperatorLike:   {},
	},
	VariableTypeInteger:    orderedOperators(),
	VariableTypeBigDecimal: orderedOperators(),
	VariableTypeDate:       orderedOperators(),
	VariableTypeDateTime:   orderedOperators(),
	VariableTypeBoolean: {
		FilterOperatorEquals: {},
	},
}

func orderedOperators() map[FilterOperator]struct{} {
	return map[FilterOperator]struct{}{
		FilterOperatorEquals:             {},
		FilterOperatorGreaterThan:        {},
		FilterOperatorGreaterThanOrEqual: {},
		FilterOperatorLessThan:           {},
		FilterOperatorLessThanOrEqual:    {},
	}
}

// OperatorLegalFor reports whether op may be applied to values of type t.
func OperatorLegalFor(t VariableType, op FilterOperator) bool {
	ops, ok := operatorLegality[t]
	if !ok {
		return false
	}
	_, ok = ops[op]
	return ok
}

// VariableFilter is one client-supplied condition on a stored variable. A nil
// DefinitionKey means the filter targets task-scoped variables; otherwise it
// targets process variables under that definition key.
type VariableFilter struct {
	DefinitionKey *string
	Name          string
	Type          VariableType
	Value         string
	Operator      FilterOperator
}

// TaskScoped reports whether the filter targets task-owned variables.
func (f VariableFilter) TaskScoped() bool {
	return f.DefinitionKey == nil
}

// ProcessVariableKey selects one variable slot across every process instance
// sharing a definition key. Used for result projection.
type ProcessVariableKey struct {
	DefinitionKey string
	Name          string
}
