package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// CreateStorage inserts a storage location.
func (s *Store) CreateStorage(ctx context.Context, name, ip, path string) (*Storage, error) {
	res, err := s.execWithRetry(ctx,
		`INSERT INTO storages (name, ip, path) VALUES (?, ?, ?)`,
		name, ip, nullableString(path))
	if err != nil {
		return nil, fmt.Errorf("insert storage: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetStorage(ctx, id)
}

// GetStorage fetches a storage location by identifier. Returns nil when absent.
func (s *Store) GetStorage(ctx context.Context, id int64) (*Storage, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, name, ip, path FROM storages WHERE id = ?`, id)
	var (
		storage Storage
		path    sql.NullString
	)
	err := row.Scan(&storage.ID, &storage.Name, &storage.IP, &path)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get storage: %w", err)
	}
	storage.Path = path.String
	return &storage, nil
}

// ListStorages returns all storage locations ordered by identifier.
func (s *Store) ListStorages(ctx context.Context) ([]*Storage, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, ip, path FROM storages ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list storages: %w", err)
	}
	defer rows.Close()

	var storages []*Storage
	for rows.Next() {
		var (
			storage Storage
			path    sql.NullString
		)
		if err := rows.Scan(&storage.ID, &storage.Name, &storage.IP, &path); err != nil {
			return nil, err
		}
		storage.Path = path.String
		storages = append(storages, &storage)
	}
	return storages, rows.Err()
}

// SetProjectStorage creates or replaces a project-storage association.
// Weight must be at least 1 and the percent daily minimum must fall in
// [0,100].
func (s *Store) SetProjectStorage(ctx context.Context, ps *ProjectStorage) error {
	if ps == nil {
		return errors.New("project storage is nil")
	}
	if ps.Weight < 1 {
		return fmt.Errorf("project storage weight must be at least 1, got %d", ps.Weight)
	}
	if ps.FixedDailyMin < 0 {
		return fmt.Errorf("project storage fixed daily minimum must not be negative, got %d", ps.FixedDailyMin)
	}
	if ps.PercentDailyMin < 0 || ps.PercentDailyMin > 100 {
		return fmt.Errorf("project storage percent daily minimum must be in [0,100], got %g", ps.PercentDailyMin)
	}
	if err := s.execWithoutResultRetry(ctx,
		`INSERT INTO project_storages (project_id, storage_id, weight, fixed_daily_min, percent_daily_min)
         VALUES (?, ?, ?, ?, ?)
         ON CONFLICT(project_id, storage_id) DO UPDATE SET
             weight = excluded.weight,
             fixed_daily_min = excluded.fixed_daily_min,
             percent_daily_min = excluded.percent_daily_min`,
		ps.ProjectID, ps.StorageID, ps.Weight, ps.FixedDailyMin, ps.PercentDailyMin); err != nil {
		return fmt.Errorf("set project storage: %w", err)
	}
	return nil
}

// ProjectStorages returns a project's storage associations.
func (s *Store) ProjectStorages(ctx context.Context, projectID int64) ([]*ProjectStorage, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, project_id, storage_id, weight, fixed_daily_min, percent_daily_min
         FROM project_storages WHERE project_id = ? ORDER BY id`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list project storages: %w", err)
	}
	defer rows.Close()

	var associations []*ProjectStorage
	for rows.Next() {
		var ps ProjectStorage
		if err := rows.Scan(&ps.ID, &ps.ProjectID, &ps.StorageID, &ps.Weight, &ps.FixedDailyMin, &ps.PercentDailyMin); err != nil {
			return nil, err
		}
		associations = append(associations, &ps)
	}
	return associations, rows.Err()
}
