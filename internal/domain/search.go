package domain

import (
	"time"

	"github.com/google/uuid"
)

// SortDirection represents ordering direction for sortable fields.
type SortDirection string

const (
	SortDirectionAsc  SortDirection = "asc"
	SortDirectionDesc SortDirection = "desc"
)

// Sort captures an ordering preference. Field names are logical; the store
// adapter maps them to columns and always appends the primary key as a
// tiebreaker so paging stays deterministic.
type Sort struct {
	Field     string
	Direction SortDirection
}

// Sortable fields for task and process instance listings.
const (
	SortFieldCreatedAt = "createdAt"
	SortFieldName      = "name"
	SortFieldStatus    = "status"
	SortFieldPriority  = "priority"
	SortFieldStartedAt = "startedAt"
)

// PageRequest selects rows [Number*Size, (Number+1)*Size) of the ordered,
// filtered result set.
type PageRequest struct {
	Number int
	Size   int
}

// Offset returns the row offset for the page.
func (p PageRequest) Offset() int {
	return p.Number * p.Size
}

// TaskPage is one page of task results with the total computed against the
// same predicate as the rows.
type TaskPage struct {
	Items        []Task
	TotalItems   int
	HasMoreItems bool
	Number       int
	Size         int
}

// ProcessInstancePage is one page of process instance results.
type ProcessInstancePage struct {
	Items        []ProcessInstance
	TotalItems   int
	HasMoreItems bool
	Number       int
	Size         int
}

// TaskSearchCriteria combines structural task filters with typed variable
// filters and the projection keys controlling which process variables are
// attached to each result.
type TaskSearchCriteria struct {
	NameLike          string
	DescriptionLike   string
	Status            *TaskStatus
	Assignee          string
	DefinitionKey     string
	ProcessInstanceID *uuid.UUID
	StandaloneOnly    bool
	CreatedFrom       *time.Time
	CreatedTo         *time.Time

	VariableFilters []VariableFilter
	VariableKeys    []ProcessVariableKey
}

// ProcessInstanceSearchCriteria combines structural instance filters with
// process-scoped variable filters and projection keys.
type ProcessInstanceSearchCriteria struct {
	NameLike      string
	Status        *ProcessInstanceStatus
	DefinitionKey string
	Initiator     string
	StartedFrom   *time.Time
	StartedTo     *time.Time

	VariableFilters []VariableFilter
	VariableKeys    []ProcessVariableKey
}
