// Package variableloader batches projected variable lookups for one request,
// so attaching variables to a page of results costs one store round trip per
// batch wave instead of one per entity.
package variableloader

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/graph-gophers/dataloader"

	"github.com/procflow/procql/internal/domain"
	"github.com/procflow/procql/internal/repository"
)

// VariableLoader batches variable fetches for one fixed projection key set.
// Loaders are request-scoped: the key set comes from the search request and
// never changes during the loader's life.
type VariableLoader struct {
	Loader *dataloader.Loader
}

type batchListFunc func(ctx context.Context, ownerIDs []uuid.UUID, keys []domain.ProcessVariableKey) (map[uuid.UUID][]domain.Variable, error)

// NewTaskVariableLoader builds a loader resolving task ids to the projected
// process variables of their owning instances.
func NewTaskVariableLoader(repo repository.VariableRepository, keys []domain.ProcessVariableKey) *VariableLoader {
	return newVariableLoader(repo.ListForTasks, keys)
}

// NewProcessInstanceVariableLoader builds a loader resolving instance ids to
// their projected variables.
func NewProcessInstanceVariableLoader(repo repository.VariableRepository, keys []domain.ProcessVariableKey) *VariableLoader {
	return newVariableLoader(repo.ListForProcessInstances, keys)
}

func newVariableLoader(list batchListFunc, keys []domain.ProcessVariableKey) *VariableLoader {
	batchFn := func(ctx context.Context, loaderKeys dataloader.Keys) []*dataloader.Result {
		ids := make([]uuid.UUID, len(loaderKeys))
		for i, k := range loaderKeys {
			id, err := uuid.Parse(k.String())
			if err != nil {
				// One result per key even on failure; the loader pairs
				// results with keys positionally.
				results := make([]*dataloader.Result, len(loaderKeys))
				for j := range results {
					results[j] = &dataloader.Result{Error: fmt.Errorf("invalid owner id %q: %w", k.String(), err)}
				}
				return results
			}
			ids[i] = id
		}

		byOwner, err := list(ctx, ids, keys)
		if err != nil {
			results := make([]*dataloader.Result, len(loaderKeys))
			for i := range results {
				results[i] = &dataloader.Result{Error: err}
			}
			return results
		}

		// Results must line up with the requested key order.
		results := make([]*dataloader.Result, len(loaderKeys))
		for i, id := range ids {
			results[i] = &dataloader.Result{Data: byOwner[id]}
		}
		return results
	}

	loader := dataloader.NewBatchedLoader(batchFn, dataloader.WithWait(5*time.Millisecond))

	return &VariableLoader{Loader: loader}
}

// LoadMany resolves the projected variables for a batch of owner ids.
func (l *VariableLoader) LoadMany(ctx context.Context, ownerIDs []uuid.UUID) (map[uuid.UUID][]domain.Variable, error) {
	if len(ownerIDs) == 0 {
		return map[uuid.UUID][]domain.Variable{}, nil
	}

	keys := make(dataloader.Keys, len(ownerIDs))
	for i, id := range ownerIDs {
		keys[i] = dataloader.StringKey(id.String())
	}

	thunk := l.Loader.LoadMany(ctx, keys)
	raw, errs := thunk()
	if len(errs) > 0 {
		return nil, errs[0]
	}

	result := make(map[uuid.UUID][]domain.Variable, len(ownerIDs))
	for i, id := range ownerIDs {
		if raw[i] == nil {
			continue
		}
		variables, ok := raw[i].([]domain.Variable)
		if !ok {
			return nil, fmt.Errorf("unexpected type for variables")
		}
		result[id] = variables
	}
	return result, nil
}
