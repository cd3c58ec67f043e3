package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/procflow/procql/internal/domain"
)

// ErrNotFound is returned when a lookup matches no row under the caller's
// restriction. Callers cannot distinguish "missing" from "not visible".
var ErrNotFound = errors.New("not found")

// TaskRepository executes compiled predicates against the task store.
type TaskRepository interface {
	Search(ctx context.Context, pred domain.Predicate, sort domain.Sort, page domain.PageRequest) (domain.TaskPage, error)
	GetByID(ctx context.Context, id uuid.UUID, restriction domain.Predicate) (domain.Task, error)
}

// ProcessInstanceRepository executes compiled predicates against the process
// instance store.
type ProcessInstanceRepository interface {
	Search(ctx context.Context, pred domain.Predicate, sort domain.Sort, page domain.PageRequest) (domain.ProcessInstancePage, error)
	GetByID(ctx context.Context, id uuid.UUID, restriction domain.Predicate) (domain.ProcessInstance, error)
}

// VariableRepository loads the projected variable subset for a page of
// owners. Selection happens inside the query so a large stored variable set
// never travels to the service layer.
type VariableRepository interface {
	ListForTasks(ctx context.Context, taskIDs []uuid.UUID, keys []domain.ProcessVariableKey) (map[uuid.UUID][]domain.Variable, error)
	ListForProcessInstances(ctx context.Context, instanceIDs []uuid.UUID, keys []domain.ProcessVariableKey) (map[uuid.UUID][]domain.Variable, error)
}

// AccessPolicyRepository reads the service access policy table.
type AccessPolicyRepository interface {
	List(ctx context.Context) ([]domain.AccessPolicy, error)
}
