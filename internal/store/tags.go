package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// CreateRejectionTag adds a reusable rejection label to a client's
// vocabulary. Labels are unique per client.
func (s *Store) CreateRejectionTag(ctx context.Context, clientID int64, label, description string) (*RejectionTag, error) {
	label = strings.TrimSpace(label)
	if label == "" {
		return nil, errors.New("rejection tag label must not be blank")
	}
	res, err := s.execWithRetry(ctx,
		`INSERT INTO rejection_tags (client_id, label, description) VALUES (?, ?, ?)`,
		clientID, label, nullableString(description))
	if err != nil {
		return nil, fmt.Errorf("insert rejection tag: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetRejectionTag(ctx, id)
}

// GetRejectionTag fetches a tag by identifier. Returns nil when absent.
func (s *Store) GetRejectionTag(ctx context.Context, id int64) (*RejectionTag, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, client_id, label, description FROM rejection_tags WHERE id = ?`, id)
	var (
		tag         RejectionTag
		description sql.NullString
	)
	err := row.Scan(&tag.ID, &tag.ClientID, &tag.Label, &description)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get rejection tag: %w", err)
	}
	tag.Description = description.String
	return &tag, nil
}

// RejectionTagsForClient returns a client's rejection vocabulary ordered by
// label.
func (s *Store) RejectionTagsForClient(ctx context.Context, clientID int64) ([]*RejectionTag, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, client_id, label, description FROM rejection_tags WHERE client_id = ? ORDER BY label`,
		clientID)
	if err != nil {
		return nil, fmt.Errorf("list rejection tags: %w", err)
	}
	defer rows.Close()

	var tags []*RejectionTag
	for rows.Next() {
		var (
			tag         RejectionTag
			description sql.NullString
		)
		if err := rows.Scan(&tag.ID, &tag.ClientID, &tag.Label, &description); err != nil {
			return nil, err
		}
		tag.Description = description.String
		tags = append(tags, &tag)
	}
	return tags, rows.Err()
}

// RenameRejectionTag changes a tag's label. Documents already carrying the
// old label keep it, matching the label-by-value reference model.
func (s *Store) RenameRejectionTag(ctx context.Context, id int64, label string) error {
	label = strings.TrimSpace(label)
	if label == "" {
		return errors.New("rejection tag label must not be blank")
	}
	if err := s.execWithoutResultRetry(ctx,
		`UPDATE rejection_tags SET label = ? WHERE id = ?`, label, id); err != nil {
		return fmt.Errorf("rename rejection tag: %w", err)
	}
	return nil
}

// DeleteRejectionTag removes a tag from the vocabulary.
func (s *Store) DeleteRejectionTag(ctx context.Context, id int64) error {
	if err := s.execWithoutResultRetry(ctx,
		`DELETE FROM rejection_tags WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete rejection tag: %w", err)
	}
	return nil
}
