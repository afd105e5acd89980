package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const documentColumns = "id, book_id, name, status, flag, comment, tags_json, image_path, created_at"

func scanDocument(scanner interface{ Scan(dest ...any) error }) (*Document, error) {
	var (
		doc       Document
		comment   sql.NullString
		tags      sql.NullString
		imagePath sql.NullString
		created   sql.NullString
	)
	if err := scanner.Scan(&doc.ID, &doc.BookID, &doc.Name, &doc.Status, &doc.Flag, &comment, &tags, &imagePath, &created); err != nil {
		return nil, err
	}
	doc.Comment = comment.String
	doc.Tags = unmarshalStringList(tags)
	doc.ImagePath = imagePath.String
	doc.CreatedAt = parseTime(created)
	return &doc, nil
}

// CreateDocuments bulk-inserts n page documents for a book, named by page
// ordinal and carrying the book's current status. Runs in one transaction
// so a partial page set never persists.
func (s *Store) CreateDocuments(ctx context.Context, book *Book, n int) error {
	if book == nil {
		return errors.New("book is nil")
	}
	if n <= 0 {
		return fmt.Errorf("page count must be positive, got %d", n)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin documents tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := timestamp(time.Now())
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO documents (book_id, name, status, flag, tags_json, created_at)
         VALUES (?, ?, ?, '', '[]', ?)`)
	if err != nil {
		return fmt.Errorf("prepare document insert: %w", err)
	}
	defer stmt.Close()

	for page := 1; page <= n; page++ {
		name := fmt.Sprintf("%s_page_%04d", book.Name, page)
		if _, err := stmt.ExecContext(ctx, book.ID, name, book.Status, now); err != nil {
			return fmt.Errorf("insert document %s: %w", name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit documents: %w", err)
	}
	return nil
}

// DocumentsForBook returns a book's pages ordered by name.
func (s *Store) DocumentsForBook(ctx context.Context, bookID int64) ([]*Document, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE book_id = ? ORDER BY name`, bookID)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	var docs []*Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

// DocumentCount returns the number of pages recorded for a book.
func (s *Store) DocumentCount(ctx context.Context, bookID int64) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM documents WHERE book_id = ?`, bookID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count documents: %w", err)
	}
	return count, nil
}

// FlaggedDocumentCount returns how many of a book's pages carry the given
// flag.
func (s *Store) FlaggedDocumentCount(ctx context.Context, bookID int64, flag string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM documents WHERE book_id = ? AND flag = ?`, bookID, flag).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count flagged documents: %w", err)
	}
	return count, nil
}

// SetDocumentFlag updates a page's flag and comment.
func (s *Store) SetDocumentFlag(ctx context.Context, documentID int64, flag, comment string) error {
	switch flag {
	case FlagNone, FlagError, FlagWarning, FlagInfo:
	default:
		return fmt.Errorf("unknown document flag %q", flag)
	}
	if err := s.execWithoutResultRetry(ctx,
		`UPDATE documents SET flag = ?, comment = ? WHERE id = ?`,
		flag, nullableString(comment), documentID); err != nil {
		return fmt.Errorf("set document flag: %w", err)
	}
	return nil
}

// SetDocumentTags replaces a page's rejection-tag labels.
func (s *Store) SetDocumentTags(ctx context.Context, documentID int64, tags []string) error {
	tagsJSON, err := marshalJSON(orEmptyStrings(tags))
	if err != nil {
		return err
	}
	if err := s.execWithoutResultRetry(ctx,
		`UPDATE documents SET tags_json = ? WHERE id = ?`, tagsJSON, documentID); err != nil {
		return fmt.Errorf("set document tags: %w", err)
	}
	return nil
}

// SyncDocumentStatuses denormalizes a book's status onto its pages.
func (s *Store) SyncDocumentStatuses(ctx context.Context, bookID int64, status string) error {
	if err := s.execWithoutResultRetry(ctx,
		`UPDATE documents SET status = ? WHERE book_id = ?`, status, bookID); err != nil {
		return fmt.Errorf("sync document statuses: %w", err)
	}
	return nil
}
