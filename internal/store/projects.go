package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"bindery/internal/stagecfg"
)

// CreateClient inserts a new client.
func (s *Store) CreateClient(ctx context.Context, name, contact string) (*Client, error) {
	res, err := s.execWithRetry(ctx,
		`INSERT INTO clients (name, contact, created_at) VALUES (?, ?, ?)`,
		name, nullableString(contact), timestamp(time.Now()))
	if err != nil {
		return nil, fmt.Errorf("insert client: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetClient(ctx, id)
}

// GetClient fetches a client by identifier. Returns nil when absent.
func (s *Store) GetClient(ctx context.Context, id int64) (*Client, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, contact, created_at FROM clients WHERE id = ?`, id)
	var (
		client  Client
		contact sql.NullString
		created sql.NullString
	)
	err := row.Scan(&client.ID, &client.Name, &contact, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get client: %w", err)
	}
	client.Contact = contact.String
	client.CreatedAt = parseTime(created)
	return &client, nil
}

// CreateProject inserts a project after validating its workflow against
// the canonical stage sequence.
func (s *Store) CreateProject(ctx context.Context, name string, clientID int64, workflow []stagecfg.Key) (*Project, error) {
	if err := stagecfg.ValidateWorkflow(workflow); err != nil {
		return nil, err
	}
	workflowJSON, err := marshalJSON(workflow)
	if err != nil {
		return nil, err
	}
	res, err := s.execWithRetry(ctx,
		`INSERT INTO projects (name, client_id, workflow_json, created_at) VALUES (?, ?, ?, ?)`,
		name, clientID, workflowJSON, timestamp(time.Now()))
	if err != nil {
		return nil, fmt.Errorf("insert project: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetProject(ctx, id)
}

const projectColumns = "id, name, client_id, workflow_json, created_at"

func scanProject(scanner interface{ Scan(dest ...any) error }) (*Project, error) {
	var (
		project  Project
		workflow sql.NullString
		created  sql.NullString
	)
	if err := scanner.Scan(&project.ID, &project.Name, &project.ClientID, &workflow, &created); err != nil {
		return nil, err
	}
	for _, raw := range unmarshalStringList(workflow) {
		project.Workflow = append(project.Workflow, stagecfg.Key(raw))
	}
	project.CreatedAt = parseTime(created)
	return &project, nil
}

// GetProject fetches a project by identifier. Returns nil when absent.
func (s *Store) GetProject(ctx context.Context, id int64) (*Project, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+projectColumns+` FROM projects WHERE id = ?`, id)
	project, err := scanProject(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get project: %w", err)
	}
	return project, nil
}

// UpdateProjectWorkflow replaces a project's enabled-stage list.
func (s *Store) UpdateProjectWorkflow(ctx context.Context, id int64, workflow []stagecfg.Key) error {
	if err := stagecfg.ValidateWorkflow(workflow); err != nil {
		return err
	}
	workflowJSON, err := marshalJSON(workflow)
	if err != nil {
		return err
	}
	if err := s.execWithoutResultRetry(ctx,
		`UPDATE projects SET workflow_json = ? WHERE id = ?`, workflowJSON, id); err != nil {
		return fmt.Errorf("update project workflow: %w", err)
	}
	return nil
}

// ListProjects returns all projects ordered by identifier.
func (s *Store) ListProjects(ctx context.Context) ([]*Project, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+projectColumns+` FROM projects ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()
	return collectProjects(rows)
}

// AccessibleProjects returns the projects a user may work in: a client
// account sees its client's projects, an operator with explicit project
// IDs sees those in their configured order, and everyone else sees all
// projects. The returned order is the scan order for pull-next.
func (s *Store) AccessibleProjects(ctx context.Context, user *User) ([]*Project, error) {
	if user == nil {
		return s.ListProjects(ctx)
	}
	if user.ClientID != nil {
		rows, err := s.db.QueryContext(ctx,
			`SELECT `+projectColumns+` FROM projects WHERE client_id = ? ORDER BY id`, *user.ClientID)
		if err != nil {
			return nil, fmt.Errorf("client projects: %w", err)
		}
		defer rows.Close()
		return collectProjects(rows)
	}
	if len(user.ProjectIDs) > 0 {
		projects := make([]*Project, 0, len(user.ProjectIDs))
		for _, id := range user.ProjectIDs {
			project, err := s.GetProject(ctx, id)
			if err != nil {
				return nil, err
			}
			if project != nil {
				projects = append(projects, project)
			}
		}
		return projects, nil
	}
	return s.ListProjects(ctx)
}

func collectProjects(rows *sql.Rows) ([]*Project, error) {
	var projects []*Project
	for rows.Next() {
		project, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		projects = append(projects, project)
	}
	return projects, rows.Err()
}
