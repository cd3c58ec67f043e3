// Package query compiles validated search requests into predicate trees and
// lowers those trees to SQL for the Postgres store.
package query

import (
	"fmt"

	"github.com/procflow/procql/internal/domain"
)

// MaxPageSize bounds a single result page.
const MaxPageSize = 1000

// ValidateTaskSearch checks every variable filter of a task search for
// operator/type legality and value coercibility. The first failure aborts the
// whole request; filters are never partially applied.
func ValidateTaskSearch(c domain.TaskSearchCriteria) error {
	if c.Status != nil && !c.Status.Valid() {
		return &domain.ValidationError{Reason: fmt.Sprintf("unknown task status %q", *c.Status)}
	}
	return validateVariableFilters(c.VariableFilters, true)
}

// ValidateProcessInstanceSearch checks a process instance search. Task-scoped
// variable filters make no sense here and are rejected.
func ValidateProcessInstanceSearch(c domain.ProcessInstanceSearchCriteria) error {
	if c.Status != nil && !c.Status.Valid() {
		return &domain.ValidationError{Reason: fmt.Sprintf("unknown process instance status %q", *c.Status)}
	}
	return validateVariableFilters(c.VariableFilters, false)
}

func validateVariableFilters(filters []domain.VariableFilter, allowTaskScope bool) error {
	for _, f := range filters {
		if f.Name == "" {
			return &domain.ValidationError{Reason: "variable filter is missing a name"}
		}
		if !f.Type.Valid() {
			return &domain.ValidationError{Filter: f.Name, Reason: fmt.Sprintf("unknown variable type %q", f.Type)}
		}
		if !f.Operator.Valid() {
			return &domain.ValidationError{Filter: f.Name, Reason: fmt.Sprintf("unknown operator %q", f.Operator)}
		}
		if !domain.OperatorLegalFor(f.Type, f.Operator) {
			return &domain.ValidationError{
				Filter: f.Name,
				Reason: fmt.Sprintf("operator %q is not legal for type %s", f.Operator, f.Type),
			}
		}
		if !allowTaskScope && f.TaskScoped() {
			return &domain.ValidationError{
				Filter: f.Name,
				Reason: "task-scoped variable filters are not valid for process instance searches",
			}
		}
		if _, err := domain.Coerce(f.Value, f.Type); err != nil {
			return &domain.ValidationError{Filter: f.Name, Reason: err.Error()}
		}
	}
	return nil
}

// ValidatePage rejects nonsensical page requests before query construction.
func ValidatePage(p domain.PageRequest) error {
	if p.Number < 0 {
		return &domain.ValidationError{Reason: "page number must not be negative"}
	}
	if p.Size <= 0 || p.Size > MaxPageSize {
		return &domain.ValidationError{Reason: fmt.Sprintf("page size must be between 1 and %d", MaxPageSize)}
	}
	return nil
}

// ValidateSort checks the sort field against the sortable fields of the
// target entity. An empty field means the default ordering.
func ValidateSort(s domain.Sort, sortable map[string]string) error {
	if s.Field == "" {
		return nil
	}
	if _, ok := sortable[s.Field]; !ok {
		return &domain.ValidationError{Reason: fmt.Sprintf("field %q is not sortable", s.Field)}
	}
	if s.Direction != "" && s.Direction != domain.SortDirectionAsc && s.Direction != domain.SortDirectionDesc {
		return &domain.ValidationError{Reason: fmt.Sprintf("unknown sort direction %q", s.Direction)}
	}
	return nil
}
