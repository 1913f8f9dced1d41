package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"

	domain "github.com/claimdesk/incident-api/internal/domain/identity"
)

// DirectoryStore implements the identity Directory port on MySQL. Users
// are stored as a base row plus a flat attribute table, mirroring the
// directory's native key/value attribute model.
type DirectoryStore struct {
	db *sql.DB
}

func NewDirectoryStore(db *sql.DB) *DirectoryStore {
	return &DirectoryStore{db: db}
}

// ListUsers returns every directory user with its attributes, in storage
// order. No stable ordering is guaranteed to callers.
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

// GetUser fetches one user by username
func (s *DirectoryStore) GetUser(ctx context.Context, username string) (*domain.DirectoryUser, error) {
	const q = `
SELECT username, enabled, verified, created_at
FROM directory_users
WHERE username=? LIMIT 1;
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

// CreateUser inserts the base row and its attributes
func (s *DirectoryStore) CreateUser(ctx context.Context, nu domain.NewDirectoryUser) (*domain.DirectoryUser, error) {
	now := time.Now()
	const q = `
INSERT INTO directory_users (username, enabled, verified, created_at)
VALUES (?,?,?,?);
`
	_, err := s.db.ExecContext(ctx, q, nu.Username, true, false, now)
	if isDuplicateEntry(err) {
		return nil, fmt.Errorf("%w: %s", domain.ErrExists, nu.Username)
	}
	if err != nil {
		return nil, err
	}

	const qa = `
INSERT INTO directory_user_attributes (username, attr_name, attr_value)
VALUES (?,?,?)
ON DUPLICATE KEY UPDATE attr_value=VALUES(attr_value);
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

// SetPassword stores a bcrypt hash; permanent=false flags the credential
// as one-time, forcing a change on first sign-in.
func (s *DirectoryStore) SetPassword(ctx context.Context, username, password string, permanent bool) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	const q = `
UPDATE directory_users
SET password_hash = ?, temporary_password = ?
WHERE username = ?;
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

// AddToGroup links a user to an existing group
func (s *DirectoryStore) AddToGroup(ctx context.Context, username, group string) error {
	var exists bool
	if err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM directory_groups WHERE name=?)`, group).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("group not found: %s", group)
	}
	const q = `
INSERT INTO directory_group_members (username, group_name)
VALUES (?,?)
ON DUPLICATE KEY UPDATE group_name=VALUES(group_name);
`
	_, err := s.db.ExecContext(ctx, q, username, group)
	return err
}

// DeleteUser removes the user, its attributes and group memberships. No
// cascading cleanup of the user's historical reports happens here.
func (s *DirectoryStore) DeleteUser(ctx context.Context, username string) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM directory_group_members WHERE username=?`, username); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM directory_user_attributes WHERE username=?`, username); err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM directory_users WHERE username=?`, username)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", domain.ErrNotFound, username)
	}
	return nil
}

// ListGroups returns the user's group names
func (s *DirectoryStore) ListGroups(ctx context.Context, username string) ([]string, error) {
	const q = `
SELECT group_name
FROM directory_group_members
WHERE username=?;
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

// EnsureGroup creates the group if missing; used by the bootstrap scripts
func (s *DirectoryStore) EnsureGroup(ctx context.Context, name string) error {
	const q = `
INSERT INTO directory_groups (name)
VALUES (?)
ON DUPLICATE KEY UPDATE name=VALUES(name);
`
	_, err := s.db.ExecContext(ctx, q, name)
	return err
}

func (s *DirectoryStore) loadAttributes(ctx context.Context, username string) (map[string]string, error) {
	const q = `
SELECT attr_name, attr_value
FROM directory_user_attributes
WHERE username=?;
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
