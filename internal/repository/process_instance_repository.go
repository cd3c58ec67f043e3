package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/procflow/procql/internal/domain"
	"github.com/procflow/procql/internal/query"
)

// processInstanceRepository implements ProcessInstanceRepository over Postgres.
type processInstanceRepository struct {
	pool *pgxpool.Pool
}

// NewProcessInstanceRepository creates a new process instance repository.
func NewProcessInstanceRepository(pool *pgxpool.Pool) ProcessInstanceRepository {
	return &processInstanceRepository{pool: pool}
}

func (r *processInstanceRepository) Search(ctx context.Context, pred domain.Predicate, sort domain.Sort, page domain.PageRequest) (domain.ProcessInstancePage, error) {
	sql, args, err := query.BuildProcessInstanceSearchSQL(pred, sort, page)
	if err != nil {
		return domain.ProcessInstancePage{}, err
	}

	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return domain.ProcessInstancePage{}, fmt.Errorf("failed to search process instances: %w", err)
	}
	defer rows.Close()

	var items []domain.ProcessInstance
	total := 0
	for rows.Next() {
		var instance domain.ProcessInstance
		if err := rows.Scan(
			&instance.ID, &instance.DefinitionKey, &instance.ServiceName, &instance.ServiceFullName,
			&instance.Name, &instance.Initiator, &instance.Status, &instance.StartedAt, &total,
		); err != nil {
			return domain.ProcessInstancePage{}, fmt.Errorf("failed to scan process instance row: %w", err)
		}
		items = append(items, instance)
	}
	if err := rows.Err(); err != nil {
		return domain.ProcessInstancePage{}, fmt.Errorf("failed to read process instance rows: %w", err)
	}

	return domain.ProcessInstancePage{
		Items:        items,
		TotalItems:   total,
		HasMoreItems: page.Offset()+len(items) < total,
		Number:       page.Number,
		Size:         page.Size,
	}, nil
}

func (r *processInstanceRepository) GetByID(ctx context.Context, id uuid.UUID, restriction domain.Predicate) (domain.ProcessInstance, error) {
	pred := domain.And(
		domain.FieldPredicate{Field: "id", Op: domain.CompareOpEquals, Value: id},
		restriction,
	)
	sql, args, err := query.BuildProcessInstanceByIDSQL(pred)
	if err != nil {
		return domain.ProcessInstance{}, err
	}

	var instance domain.ProcessInstance
	err = r.pool.QueryRow(ctx, sql, args...).Scan(
		&instance.ID, &instance.DefinitionKey, &instance.ServiceName, &instance.ServiceFullName,
		&instance.Name, &instance.Initiator, &instance.Status, &instance.StartedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ProcessInstance{}, fmt.Errorf("process instance %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return domain.ProcessInstance{}, fmt.Errorf("failed to get process instance: %w", err)
	}
	return instance, nil
}
