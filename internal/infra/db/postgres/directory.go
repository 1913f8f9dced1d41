package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"

	domain "github.com/claimdesk/incident-api/internal/domain/identity"
)

// DirectoryStore implements the identity Directory port on postgres,
// same base-row-plus-attributes layout as the mysql store.
type DirectoryStore struct {
	db *sql.DB
}

func NewDirectoryStore(db *sql.DB) *DirectoryStore {
	return &DirectoryStore{db: db}
}

func (s *DirectoryStore) ListUsers(ctx context.Context) ([]domain.DirectoryUser, error) {
	const q = `
SELECT username, enabled, verified, created_at
FROM directory_users;
`
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.DirectoryUser
	for rows.Next() {
		var u domain.DirectoryUser
		if err := rows.Scan(&u.Username, &u.Enabled, &u.Verified, &u.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range out {
		attrs, err := s.loadAttributes(ctx, out[i].Username)
		if err != nil {
			return nil, err
		}
		out[i].Attributes = attrs
	}
	return out, nil
}

func (s *DirectoryStore) GetUser(ctx context.Context, username string) (*domain.DirectoryUser, error) {
	const q = `
SELECT username, enabled, verified, created_at
FROM directory_users
WHERE username=$1 LIMIT 1;
`
	row := s.db.QueryRowContext(ctx, q, username)
	var u domain.DirectoryUser
	if err := row.Scan(&u.Username, &u.Enabled, &u.Verified, &u.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", domain.ErrNotFound, username)
		}
		return nil, err
	}
	attrs, err := s.loadAttributes(ctx, username)
	if err != nil {
		return nil, err
	}
	u.Attributes = attrs
	return &u, nil
}

func (s *DirectoryStore) CreateUser(ctx context.Context, nu domain.NewDirectoryUser) (*domain.DirectoryUser, error) {
	now := time.Now()
	const q = `
INSERT INTO directory_users (username, enabled, verified, created_at)
VALUES ($1,$2,$3,$4);
`
	_, err := s.db.ExecContext(ctx, q, nu.Username, true, false, now)
	if isUniqueViolation(err) {
		return nil, fmt.Errorf("%w: %s", domain.ErrExists, nu.Username)
	}
	if err != nil {
		return nil, err
	}

	const qa = `
INSERT INTO directory_user_attributes (username, attr_name, attr_value)
VALUES ($1,$2,$3)
ON CONFLICT (username, attr_name) DO UPDATE SET attr_value=EXCLUDED.attr_value;
`
	for name, value := range nu.Attributes {
		if _, err := s.db.ExecContext(ctx, qa, nu.Username, name, value); err != nil {
			return nil, err
		}
	}

	return &domain.DirectoryUser{
		Username:   nu.Username,
		Attributes: nu.Attributes,
		Enabled:    true,
		Verified:   false,
		CreatedAt:  now,
	}, nil
}

func (s *DirectoryStore) SetPassword(ctx context.Context, username, password string, permanent bool) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	const q = `
UPDATE directory_users
SET password_hash = $1, temporary_password = $2
WHERE username = $3;
`
	res, err := s.db.ExecContext(ctx, q, string(hash), !permanent, username)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", domain.ErrNotFound, username)
	}
	return nil
}

func (s *DirectoryStore) AddToGroup(ctx context.Context, username, group string) error {
	var exists bool
	if err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM directory_groups WHERE name=$1)`, group).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("group not found: %s", group)
	}
	const q = `
INSERT INTO directory_group_members (username, group_name)
VALUES ($1,$2)
ON CONFLICT (username, group_name) DO NOTHING;
`
	_, err := s.db.ExecContext(ctx, q, username, group)
	return err
}

func (s *DirectoryStore) DeleteUser(ctx context.Context, username string) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM directory_group_members WHERE username=$1`, username); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM directory_user_attributes WHERE username=$1`, username); err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM directory_users WHERE username=$1`, username)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", domain.ErrNotFound, username)
	}
	return nil
}

func (s *DirectoryStore) ListGroups(ctx context.Context, username string) ([]string, error) {
	const q = `
SELECT group_name
FROM directory_group_members
WHERE username=$1;
`
	rows, err := s.db.QueryContext(ctx, q, username)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var g string
		if err := rows.Scan(&g); err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

func (s *DirectoryStore) EnsureGroup(ctx context.Context, name string) error {
	const q = `
INSERT INTO directory_groups (name)
VALUES ($1)
ON CONFLICT (name) DO NOTHING;
`
	_, err := s.db.ExecContext(ctx, q, name)
	return err
}

func (s *DirectoryStore) loadAttributes(ctx context.Context, username string) (map[string]string, error) {
	const q = `
SELECT attr_name, attr_value
FROM directory_user_attributes
WHERE username=$1;
`
	rows, err := s.db.QueryContext(ctx, q, username)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	attrs := make(map[string]string)
	for rows.Next() {
		var name, value string
		if err := rows.Scan(&name, &value); err != nil {
			return nil, err
		}
		attrs[name] = value
	}
	return attrs, rows.Err()
}
