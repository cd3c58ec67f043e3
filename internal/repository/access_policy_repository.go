package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/procflow/procql/internal/domain"
)

// accessPolicyRepository implements AccessPolicyRepository over Postgres.
type accessPolicyRepository struct {
	pool *pgxpool.Pool
}

// NewAccessPolicyRepository creates a new access policy repository.
func NewAccessPolicyRepository(pool *pgxpool.Pool) AccessPolicyRepository {
	return &accessPolicyRepository{pool: pool}
}

// List returns every configured policy. The table is small and read per
// request so the restriction builder always sees current grants.
func (r *accessPolicyRepository) List(ctx context.Context) ([]domain.AccessPolicy, error) {
	rows, err := r.pool.Query(ctx,
		"SELECT id, service_name, service_full_name, subject_type, subject, level FROM access_policies",
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list access policies: %w", err)
	}
	defer rows.Close()

	var policies []domain.AccessPolicy
	for rows.Next() {
		var p domain.AccessPolicy
		if err := rows.Scan(&p.ID, &p.ServiceName, &p.ServiceFullName, &p.SubjectType, &p.Subject, &p.Level); err != nil {
			return nil, fmt.Errorf("failed to scan access policy row: %w", err)
		}
		policies = append(policies, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read access policy rows: %w", err)
	}
	return policies, nil
}
