package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const userColumns = "id, name, role, permissions_json, client_id, project_ids_json, created_at"

func scanUser(scanner interface{ Scan(dest ...any) error }) (*User, error) {
	var (
		user        User
		permissions sql.NullString
		clientID    sql.NullInt64
		projectIDs  sql.NullString
		created     sql.NullString
	)
	if err := scanner.Scan(&user.ID, &user.Name, &user.Role, &permissions, &clientID, &projectIDs, &created); err != nil {
		return nil, err
	}
	user.Permissions = unmarshalStringList(permissions)
	user.ClientID = int64Ptr(clientID)
	user.ProjectIDs = unmarshalInt64List(projectIDs)
	user.CreatedAt = parseTime(created)
	return &user, nil
}

// CreateUser inserts a new user account.
func (s *Store) CreateUser(ctx context.Context, user *User) (*User, error) {
	if user == nil {
		return nil, errors.New("user is nil")
	}
	permissionsJSON, err := marshalJSON(orEmptyStrings(user.Permissions))
	if err != nil {
		return nil, err
	}
	projectIDsJSON, err := marshalJSON(orEmptyInt64s(user.ProjectIDs))
	if err != nil {
		return nil, err
	}
	res, err := s.execWithRetry(ctx,
		`INSERT INTO users (name, role, permissions_json, client_id, project_ids_json, created_at)
         VALUES (?, ?, ?, ?, ?, ?)`,
		user.Name, user.Role, permissionsJSON, nullableInt64(user.ClientID), projectIDsJSON, timestamp(time.Now()))
	if err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetUser(ctx, id)
}

// GetUser fetches a user by identifier. Returns nil when absent.
func (s *Store) GetUser(ctx context.Context, id int64) (*User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	user, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return user, nil
}

// GetUserByName fetches a user by account name. Returns nil when absent.
func (s *Store) GetUserByName(ctx context.Context, name string) (*User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE name = ?`, name)
	user, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user by name: %w", err)
	}
	return user, nil
}

func orEmptyStrings(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}

func orEmptyInt64s(values []int64) []int64 {
	if values == nil {
		return []int64{}
	}
	return values
}
