package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	domain "github.com/claimdesk/incident-api/internal/domain/companies"
)

type CompanyRepository struct {
	db *sql.DB
}

func NewCompanyRepository(db *sql.DB) *CompanyRepository {
	return &CompanyRepository{db: db}
}

func (r *CompanyRepository) Create(ctx context.Context, c *domain.Company) error {
	const q = `
INSERT INTO companies (id, name, active, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5);
`
	_, err := r.db.ExecContext(ctx, q, c.ID, c.Name, c.Active, c.CreatedAt, c.UpdatedAt)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: %s", domain.ErrAlreadyExists, c.Name)
	}
	return err
}

func (r *CompanyRepository) Get(ctx context.Context, id domain.CompanyID) (*domain.Company, error) {
	const q = `
SELECT id, name, active, created_at, updated_at
FROM companies
WHERE id=$1 LIMIT 1;
`
	row := r.db.QueryRowContext(ctx, q, id)
	var c domain.Company
	if err := row.Scan(&c.ID, &c.Name, &c.Active, &c.CreatedAt, &c.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", domain.ErrNotFound, id)
		}
		return nil, err
	}
	return &c, nil
}

func (r *CompanyRepository) List(ctx context.Context, limit int) ([]*domain.Company, error) {
	if limit <= 0 {
		limit = 50
	}
	const q = `
SELECT id, name, active, created_at, updated_at
FROM companies
ORDER BY created_at DESC LIMIT $1;
`
	rows, err := r.db.QueryContext(ctx, q, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Company
	for rows.Next() {
		var c domain.Company
		if err := rows.Scan(&c.ID, &c.Name, &c.Active, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, &c)
	}
	return out, rows.Err()
}

func (r *CompanyRepository) Update(ctx context.Context, c *domain.Company) error {
	const q = `
UPDATE companies
SET name = $1, active = $2, updated_at = $3
WHERE id = $4;
`
	res, err := r.db.ExecContext(ctx, q, c.Name, c.Active, c.UpdatedAt, c.ID)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: %s", domain.ErrAlreadyExists, c.Name)
	}
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", domain.ErrNotFound, c.ID)
	}
	return nil
}

// isUniqueViolation recognizes the postgres unique_violation error code
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
