package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	domain "github.com/claimdesk/incident-api/internal/domain/companies"
)

type CompanyRepository struct {
	db *sql.DB
}

func NewCompanyRepository(db *sql.DB) *CompanyRepository {
	return &CompanyRepository{db: db}
}

// Create inserts a Company record. Name collisions surface as
// domain.ErrAlreadyExists.
func (r *CompanyRepository) Create(ctx context.Context, c *domain.Company) error {
	const q = `
INSERT INTO companies (id, name, active, created_at, updated_at)
VALUES (?,?,?,?,?);
`
	_, err := r.db.ExecContext(ctx, q, c.ID, c.Name, c.Active, c.CreatedAt, c.UpdatedAt)
	if isDuplicateEntry(err) {
		return fmt.Errorf("%w: %s", domain.ErrAlreadyExists, c.Name)
	}
	return err
}

// Get by ID
func (r *CompanyRepository) Get(ctx context.Context, id domain.CompanyID) (*domain.Company, error) {
	const q = `
SELECT id, name, active, created_at, updated_at
FROM companies
WHERE id=? LIMIT 1;
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

// List companies, newest first
func (r *CompanyRepository) List(ctx context.Context, limit int) ([]*domain.Company, error) {
	if limit <= 0 {
		limit = 50
	}
	const q = `
SELECT id, name, active, created_at, updated_at
FROM companies
ORDER BY created_at DESC LIMIT ?;
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

// Update name/active flag
func (r *CompanyRepository) Update(ctx context.Context, c *domain.Company) error {
	const q = `
UPDATE companies
SET name = ?, active = ?, updated_at = ?
WHERE id = ?;
`
	res, err := r.db.ExecContext(ctx, q, c.Name, c.Active, c.UpdatedAt, c.ID)
	if isDuplicateEntry(err) {
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
