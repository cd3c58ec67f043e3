package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/procflow/procql/internal/domain"
)

// variableRepository implements VariableRepository over Postgres.
type variableRepository struct {
	pool *pgxpool.Pool
}

// NewVariableRepository creates a new variable repository.
func NewVariableRepository(pool *pgxpool.Pool) VariableRepository {
	return &variableRepository{pool: pool}
}

// ListForTasks loads the process variables projected onto a page of tasks.
// Tasks reach process variables through their owning instance, so the key
// match runs inside the join rather than over an eagerly loaded set.
func (r *variableRepository) ListForTasks(ctx context.Context, taskIDs []uuid.UUID, keys []domain.ProcessVariableKey) (map[uuid.UUID][]domain.Variable, error) {
	result := make(map[uuid.UUID][]domain.Variable, len(taskIDs))
	if len(taskIDs) == 0 || len(keys) == 0 {
		return result, nil
	}

	args := []any{taskIDs}
	pairs := keyPairsSQL(keys, &args)
	sql := fmt.Sprintf(
		"SELECT t.id, v.id, v.task_id, v.process_instance_id, v.definition_key, v.name, v.type, v.value "+
			"FROM tasks t JOIN variables v ON v.process_instance_id = t.process_instance_id "+
			"WHERE t.id = ANY($1) AND v.task_id IS NULL AND (%s)",
		pairs,
	)

	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to load task variables: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var taskID uuid.UUID
		variable, err := scanVariable(rows, &taskID)
		if err != nil {
			return nil, err
		}
		result[taskID] = append(result[taskID], variable)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read task variable rows: %w", err)
	}
	return result, nil
}

// ListForProcessInstances loads the projected variables for a page of
// process instances.
func (r *variableRepository) ListForProcessInstances(ctx context.Context, instanceIDs []uuid.UUID, keys []domain.ProcessVariableKey) (map[uuid.UUID][]domain.Variable, error) {
	result := make(map[uuid.UUID][]domain.Variable, len(instanceIDs))
	if len(instanceIDs) == 0 || len(keys) == 0 {
		return result, nil
	}

	args := []any{instanceIDs}
	pairs := keyPairsSQL(keys, &args)
	sql := fmt.Sprintf(
		"SELECT v.process_instance_id, v.id, v.task_id, v.process_instance_id, v.definition_key, v.name, v.type, v.value "+
			"FROM variables v "+
			"WHERE v.process_instance_id = ANY($1) AND v.task_id IS NULL AND (%s)",
		pairs,
	)

	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to load process instance variables: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var ownerID uuid.UUID
		variable, err := scanVariable(rows, &ownerID)
		if err != nil {
			return nil, err
		}
		result[ownerID] = append(result[ownerID], variable)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read process instance variable rows: %w", err)
	}
	return result, nil
}

// keyPairsSQL expands projection keys into an OR of (definition_key, name)
// matches with positional args appended to args.
func keyPairsSQL(keys []domain.ProcessVariableKey, args *[]any) string {
	clauses := make([]string, 0, len(keys))
	for _, key := range keys {
		*args = append(*args, key.DefinitionKey)
		defIdx := len(*args)
		*args = append(*args, key.Name)
		nameIdx := len(*args)
		clauses = append(clauses, fmt.Sprintf("(v.definition_key = $%d AND v.name = $%d)", defIdx, nameIdx))
	}
	return strings.Join(clauses, " OR ")
}

func scanVariable(rows pgx.Rows, ownerID *uuid.UUID) (domain.Variable, error) {
	var v domain.Variable
	if err := rows.Scan(
		ownerID, &v.ID, &v.TaskID, &v.ProcessInstanceID, &v.DefinitionKey, &v.Name, &v.Type, &v.Value,
	); err != nil {
		return domain.Variable{}, fmt.Errorf("failed to scan variable row: %w", err)
	}
	return v, nil
}
