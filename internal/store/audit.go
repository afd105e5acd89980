package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// AppendAudit records one workflow event. Audit writes are best effort at
// call sites; the store itself reports failures normally.
func (s *Store) AppendAudit(ctx context.Context, entry *AuditEntry) error {
	if entry == nil {
		return fmt.Errorf("audit entry is nil")
	}
	if entry.Event == "" {
		return fmt.Errorf("audit event must not be blank")
	}
	if err := s.execWithoutResultRetry(ctx,
		`INSERT INTO audit_log (book_id, actor, event, detail, request_id, created_at)
         VALUES (?, ?, ?, ?, ?, ?)`,
		nullableInt64(entry.BookID),
		nullableString(entry.Actor),
		entry.Event,
		nullableString(entry.Detail),
		nullableString(entry.RequestID),
		timestamp(time.Now())); err != nil {
		return fmt.Errorf("append audit: %w", err)
	}
	return nil
}

// AuditForBook returns a book's audit trail oldest first.
func (s *Store) AuditForBook(ctx context.Context, bookID int64) ([]*AuditEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, book_id, actor, event, detail, request_id, created_at
         FROM audit_log WHERE book_id = ? ORDER BY id`, bookID)
	if err != nil {
		return nil, fmt.Errorf("audit for book: %w", err)
	}
	defer rows.Close()
	return collectAudit(rows)
}

// RecentAudit returns the latest audit entries across all books, newest
// first, capped at limit.
func (s *Store) RecentAudit(ctx context.Context, limit int) ([]*AuditEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, book_id, actor, event, detail, request_id, created_at
         FROM audit_log ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("recent audit: %w", err)
	}
	defer rows.Close()
	return collectAudit(rows)
}

func collectAudit(rows *sql.Rows) ([]*AuditEntry, error) {
	var entries []*AuditEntry
	for rows.Next() {
		var (
			entry     AuditEntry
			bookID    sql.NullInt64
			actor     sql.NullString
			detail    sql.NullString
			requestID sql.NullString
			created   sql.NullString
		)
		if err := rows.Scan(&entry.ID, &bookID, &actor, &entry.Event, &detail, &requestID, &created); err != nil {
			return nil, err
		}
		entry.BookID = int64Ptr(bookID)
		entry.Actor = actor.String
		entry.Detail = detail.String
		entry.RequestID = requestID.String
		entry.CreatedAt = parseTime(created)
		entries = append(entries, &entry)
	}
	return entries, rows.Err()
}
