// Package search exposes the query entry points: restricted searches that
// carry the caller's visibility fragment on every statement, and admin
// searches that skip only that fragment.
package search

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/procflow/procql/internal/domain"
	"github.com/procflow/procql/internal/query"
	"github.com/procflow/procql/internal/repository"
	"github.com/procflow/procql/internal/variableloader"
)

// Service composes validation, filter compilation, security restriction and
// paginated execution. It holds no per-request state; every search is computed
// from the criteria and security context passed in.
type Service struct {
	tasks     repository.TaskRepository
	instances repository.ProcessInstanceRepository
	variables repository.VariableRepository
	policies  repository.AccessPolicyRepository
}

// NewService creates a new search service.
func NewService(
	tasks repository.TaskRepository,
	instances repository.ProcessInstanceRepository,
	variables repository.VariableRepository,
	policies repository.AccessPolicyRepository,
) *Service {
	return &Service{
		tasks:     tasks,
		instances: instances,
		variables: variables,
		policies:  policies,
	}
}

// SearchTasks runs a restricted task search. An unresolved identity yields an
// empty page, never unrestricted access.
func (s *Service) SearchTasks(ctx context.Context, sc domain.SecurityContext, c domain.TaskSearchCriteria, sort domain.Sort, page domain.PageRequest) (domain.TaskPage, error) {
	if err := validateTaskRequest(c, sort, page); err != nil {
		return domain.TaskPage{}, err
	}
	if sc.Anonymous() {
		return emptyTaskPage(page), nil
	}

	pred, err := query.CompileTaskSearch(c)
	if err != nil {
		return domain.TaskPage{}, err
	}
	pred = domain.And(pred, query.TaskVisibility(sc))

	return s.executeTaskSearch(ctx, pred, sort, page, c.VariableKeys)
}

// SearchTasksAdmin runs a task search without the visibility fragment. Filter
// compilation and projection still apply.
func (s *Service) SearchTasksAdmin(ctx context.Context, c domain.TaskSearchCriteria, sort domain.Sort, page domain.PageRequest) (domain.TaskPage, error) {
	if err := validateTaskRequest(c, sort, page); err != nil {
		return domain.TaskPage{}, err
	}
	pred, err := query.CompileTaskSearch(c)
	if err != nil {
		return domain.TaskPage{}, err
	}
	return s.executeTaskSearch(ctx, pred, sort, page, c.VariableKeys)
}

// GetTask loads one task under the caller's visibility restriction, so even
// direct lookups cannot leak restricted rows.
func (s *Service) GetTask(ctx context.Context, sc domain.SecurityContext, id uuid.UUID) (domain.Task, error) {
	if sc.Anonymous() {
		return domain.Task{}, fmt.Errorf("task %s: %w", id, repository.ErrNotFound)
	}
	return s.tasks.GetByID(ctx, id, query.TaskVisibility(sc))
}

// SearchProcessInstances runs a restricted process instance search.
func (s *Service) SearchProcessInstances(ctx context.Context, sc domain.SecurityContext, c domain.ProcessInstanceSearchCriteria, sort domain.Sort, page domain.PageRequest) (domain.ProcessInstancePage, error) {
	if err := validateInstanceRequest(c, sort, page); err != nil {
		return domain.ProcessInstancePage{}, err
	}
	if sc.Anonymous() {
		return emptyInstancePage(page), nil
	}

	pred, err := query.CompileProcessInstanceSearch(c)
	if err != nil {
		return domain.ProcessInstancePage{}, err
	}
	policies, err := s.policies.List(ctx)
	if err != nil {
		return domain.ProcessInstancePage{}, err
	}
	pred = domain.And(pred, query.ProcessInstanceVisibility(sc, policies))

	return s.executeInstanceSearch(ctx, pred, sort, page, c.VariableKeys)
}

// SearchProcessInstancesAdmin runs an instance search without the visibility
// fragment.
func (s *Service) SearchProcessInstancesAdmin(ctx context.Context, c domain.ProcessInstanceSearchCriteria, sort domain.Sort, page domain.PageRequest) (domain.ProcessInstancePage, error) {
	if err := validateInstanceRequest(c, sort, page); err != nil {
		return domain.ProcessInstancePage{}, err
	}
	pred, err := query.CompileProcessInstanceSearch(c)
	if err != nil {
		return domain.ProcessInstancePage{}, err
	}
	return s.executeInstanceSearch(ctx, pred, sort, page, c.VariableKeys)
}

// GetProcessInstance loads one instance under the caller's restriction.
func (s *Service) GetProcessInstance(ctx context.Context, sc domain.SecurityContext, id uuid.UUID) (domain.ProcessInstance, error) {
	if sc.Anonymous() {
		return domain.ProcessInstance{}, fmt.Errorf("process instance %s: %w", id, repository.ErrNotFound)
	}
	policies, err := s.policies.List(ctx)
	if err != nil {
		return domain.ProcessInstance{}, err
	}
	return s.instances.GetByID(ctx, id, query.ProcessInstanceVisibility(sc, policies))
}

func (s *Service) executeTaskSearch(ctx context.Context, pred domain.Predicate, sort domain.Sort, page domain.PageRequest, keys []domain.ProcessVariableKey) (domain.TaskPage, error) {
	result, err := s.tasks.Search(ctx, pred, sort, page)
	if err != nil {
		return domain.TaskPage{}, err
	}
	if len(keys) == 0 || len(result.Items) == 0 {
		return result, nil
	}

	ids := make([]uuid.UUID, len(result.Items))
	for i, task := range result.Items {
		ids[i] = task.ID
	}
	loader := variableloader.NewTaskVariableLoader(s.variables, keys)
	byOwner, err := loader.LoadMany(ctx, ids)
	if err != nil {
		return domain.TaskPage{}, fmt.Errorf("failed to attach task variables: %w", err)
	}
	for i := range result.Items {
		result.Items[i].Variables = byOwner[result.Items[i].ID]
	}
	return result, nil
}

func (s *Service) executeInstanceSearch(ctx context.Context, pred domain.Predicate, sort domain.Sort, page domain.PageRequest, keys []domain.ProcessVariableKey) (domain.ProcessInstancePage, error) {
	result, err := s.instances.Search(ctx, pred, sort, page)
	if err != nil {
		return domain.ProcessInstancePage{}, err
	}
	if len(keys) == 0 || len(result.Items) == 0 {
		return result, nil
	}

	ids := make([]uuid.UUID, len(result.Items))
	for i, instance := range result.Items {
		ids[i] = instance.ID
	}
	loader := variableloader.NewProcessInstanceVariableLoader(s.variables, keys)
	byOwner, err := loader.LoadMany(ctx, ids)
	if err != nil {
		return domain.ProcessInstancePage{}, fmt.Errorf("failed to attach process instance variables: %w", err)
	}
	for i := range result.Items {
		result.Items[i].Variables = byOwner[result.Items[i].ID]
	}
	return result, nil
}

func validateTaskRequest(c domain.TaskSearchCriteria, sort domain.Sort, page domain.PageRequest) error {
	if err := query.ValidateTaskSearch(c); err != nil {
		return err
	}
	if err := query.ValidateSort(sort, query.TaskSortColumns); err != nil {
		return err
	}
	return query.ValidatePage(page)
}

func validateInstanceRequest(c domain.ProcessInstanceSearchCriteria, sort domain.Sort, page domain.PageRequest) error {
	if err := query.ValidateProcessInstanceSearch(c); err != nil {
		return err
	}
	if err := query.ValidateSort(sort, query.ProcessInstanceSortColumns); err != nil {
		return err
	}
	return query.ValidatePage(page)
}

func emptyTaskPage(page domain.PageRequest) domain.TaskPage {
	return domain.TaskPage{Items: []domain.Task{}, Number: page.Number, Size: page.Size}
}

func emptyInstancePage(page domain.PageRequest) domain.ProcessInstancePage {
	return domain.ProcessInstancePage{Items: []domain.ProcessInstance{}, Number: page.Number, Size: page.Size}
}
