package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/procflow/procql/internal/domain"
	"github.com/procflow/procql/internal/query"
)

// taskRepository implements TaskRepository over Postgres.
type taskRepository struct {
	pool *pgxpool.Pool
}

// NewTaskRepository creates a new task repository.
func NewTaskRepository(pool *pgxpool.Pool) TaskRepository {
	return &taskRepository{pool: pool}
}

func (r *taskRepository) Search(ctx context.Context, pred domain.Predicate, sort domain.Sort, page domain.PageRequest) (domain.TaskPage, error) {
	sql, args, err := query.BuildTaskSearchSQL(pred, sort, page)
	if err != nil {
		return domain.TaskPage{}, err
	}

	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return domain.TaskPage{}, fmt.Errorf("failed to search tasks: %w", err)
	}
	defer rows.Close()

	var items []domain.Task
	total := 0
	for rows.Next() {
		task, rowTotal, err := scanTaskRow(rows, true)
		if err != nil {
			return domain.TaskPage{}, err
		}
		items = append(items, task)
		total = rowTotal
	}
	if err := rows.Err(); err != nil {
		return domain.TaskPage{}, fmt.Errorf("failed to read task rows: %w", err)
	}

	return domain.TaskPage{
		Items:        items,
		TotalItems:   total,
		HasMoreItems: page.Offset()+len(items) < total,
		Number:       page.Number,
		Size:         page.Size,
	}, nil
}

func (r *taskRepository) GetByID(ctx context.Context, id uuid.UUID, restriction domain.Predicate) (domain.Task, error) {
	pred := domain.And(
		domain.FieldPredicate{Field: "id", Op: domain.CompareOpEquals, Value: id},
		restriction,
	)
	sql, args, err := query.BuildTaskByIDSQL(pred)
	if err != nil {
		return domain.Task{}, err
	}

	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return domain.Task{}, fmt.Errorf("failed to get task: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return domain.Task{}, fmt.Errorf("failed to get task: %w", err)
		}
		return domain.Task{}, fmt.Errorf("task %s: %w", id, ErrNotFound)
	}
	task, _, err := scanTaskRow(rows, false)
	if err != nil {
		return domain.Task{}, err
	}
	return task, nil
}

func scanTaskRow(rows pgx.Rows, withTotal bool) (domain.Task, int, error) {
	var (
		task              domain.Task
		processInstanceID *uuid.UUID
		parentTaskID      *uuid.UUID
		assignee          *string
		owner             *string
		dueDate           *time.Time
		total             int
	)

	dest := []any{
		&task.ID, &processInstanceID, &task.DefinitionKey, &task.Name, &task.Description,
		&task.Status, &assignee, &owner, &task.Priority, &parentTaskID, &task.CreatedAt, &dueDate,
	}
	if withTotal {
		dest = append(dest, &total)
	}
	if err := rows.Scan(dest...); err != nil {
		return domain.Task{}, 0, fmt.Errorf("failed to scan task row: %w", err)
	}

	task.ProcessInstanceID = processInstanceID
	task.ParentTaskID = parentTaskID
	task.DueDate = dueDate
	if assignee != nil {
		task.Assignee = *assignee
	}
	if owner != nil {
		task.Owner = *owner
	}
	return task, total, nil
}
