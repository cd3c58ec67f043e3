package query

import (
	"sort"

	"github.com/procflow/procql/internal/domain"
)

// CompileVariableFilters turns client variable filters into the conjunction of
// one existence predicate per variable slot. Filters are grouped by
// (scope, definitionKey, name): conditions within a slot are ANDed against a
// single row, while distinct slots each require their own matching row.
// Callers must validate filters first; coercion failures here are returned as
// validation errors all the same.
func CompileVariableFilters(filters []domain.VariableFilter) (domain.Predicate, error) {
	if len(filters) == 0 {
		return domain.True, nil
	}

	type slotKey struct {
		scope         domain.VariableScope
		definitionKey string
		name          string
	}
	slots := make(map[slotKey][]domain.VariableCondition)
	for _, f := range filters {
		value, err := domain.Coerce(f.Value, f.Type)
		if err != nil {
			return nil, &domain.ValidationError{Filter: f.Name, Reason: err.Error()}
		}
		key := slotKey{scope: domain.VariableScopeTask, name: f.Name}
		if !f.TaskScoped() {
			key.scope = domain.VariableScopeProcess
			key.definitionKey = *f.DefinitionKey
		}
		slots[key] = append(slots[key], domain.VariableCondition{
			Operator: f.Operator,
			Type:     f.Type,
			Value:    value,
		})
	}

	// Deterministic slot order keeps generated SQL stable across calls.
	keys := make([]slotKey, 0, len(slots))
	for key := range slots {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, b := keys[i], keys[j]
		if a.scope != b.scope {
			return a.scope < b.scope
		}
		if a.definitionKey != b.definitionKey {
			return a.definitionKey < b.definitionKey
		}
		return a.name < b.name
	})

	operands := make([]domain.Predicate, 0, len(keys))
	for _, key := range keys {
		operands = append(operands, domain.VariablePredicate{
			Scope:         key.scope,
			DefinitionKey: key.definitionKey,
			Name:          key.name,
			Conditions:    slots[key],
		})
	}
	return domain.And(operands...), nil
}

// CompileTaskSearch builds the full caller predicate for a task search:
// structural filters conjoined with the compiled variable filters.
func CompileTaskSearch(c domain.TaskSearchCriteria) (domain.Predicate, error) {
	variables, err := CompileVariableFilters(c.VariableFilters)
	if err != nil {
		return nil, err
	}

	operands := []domain.Predicate{variables}
	if c.NameLike != "" {
		operands = append(operands, domain.FieldPredicate{Field: "name", Op: domain.CompareOpContains, Value: c.NameLike})
	}
	if c.DescriptionLike != "" {
		operands = append(operands, domain.FieldPredicate{Field: "description", Op: domain.CompareOpContains, Value: c.DescriptionLike})
	}
	if c.Status != nil {
		operands = append(operands, domain.FieldPredicate{Field: "status", Op: domain.CompareOpEquals, Value: string(*c.Status)})
	}
	if c.Assignee != "" {
		operands = append(operands, domain.FieldPredicate{Field: "assignee", Op: domain.CompareOpEquals, Value: c.Assignee})
	}
	if c.DefinitionKey != "" {
		operands = append(operands, domain.FieldPredicate{Field: "definitionKey", Op: domain.CompareOpEquals, Value: c.DefinitionKey})
	}
	if c.ProcessInstanceID != nil {
		operands = append(operands, domain.FieldPredicate{Field: "processInstanceId", Op: domain.CompareOpEquals, Value: *c.ProcessInstanceID})
	}
	if c.StandaloneOnly {
		operands = append(operands, domain.FieldPredicate{Field: "processInstanceId", Op: domain.CompareOpIsNull})
	}
	if c.CreatedFrom != nil {
		operands = append(operands, domain.FieldPredicate{Field: "createdAt", Op: domain.CompareOpGreaterThanOrEqual, Value: *c.CreatedFrom})
	}
	if c.CreatedTo != nil {
		operands = append(operands, domain.FieldPredicate{Field: "createdAt", Op: domain.CompareOpLessThanOrEqual, Value: *c.CreatedTo})
	}
	return domain.And(operands...), nil
}

// CompileProcessInstanceSearch builds the full caller predicate for a process
// instance search.
func CompileProcessInstanceSearch(c domain.ProcessInstanceSearchCriteria) (domain.Predicate, error) {
	variables, err := CompileVariableFilters(c.VariableFilters)
	if err != nil {
		return nil, err
	}

	operands := []domain.Predicate{variables}
	if c.NameLike != "" {
		operands = append(operands, domain.FieldPredicate{Field: "name", Op: domain.CompareOpContains, Value: c.NameLike})
	}
	if c.Status != nil {
		operands = append(operands, domain.FieldPredicate{Field: "status", Op: domain.CompareOpEquals, Value: string(*c.Status)})
	}
	if c.DefinitionKey != "" {
		operands = append(operands, domain.FieldPredicate{Field: "definitionKey", Op: domain.CompareOpEquals, Value: c.DefinitionKey})
	}
	if c.Initiator != "" {
		operands = append(operands, domain.FieldPredicate{Field: "initiator", Op: domain.CompareOpEquals, Value: c.Initiator})
	}
	if c.StartedFrom != nil {
		operands = append(operands, domain.FieldPredicate{Field: "startedAt", Op: domain.CompareOpGreaterThanOrEqual, Value: *c.StartedFrom})
	}
	if c.StartedTo != nil {
		operands = append(operands, domain.FieldPredicate{Field: "startedAt", Op: domain.CompareOpLessThanOrEqual, Value: *c.StartedTo})
	}
	return domain.And(operands...), nil
}
