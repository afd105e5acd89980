package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"bindery/internal/stagecfg"
	"bindery/internal/textutil"
)

const bookColumns = "id, name, project_id, status, priority, expected_page_count, actual_page_count, storage_id, scanner_user_id, indexer_user_id, qc_user_id, scan_start_time, scan_end_time, index_start_time, index_end_time, qc_start_time, qc_end_time, shipped_at, received_at, rejection_reason, author, isbn, publication_year, notes, version, created_at, updated_at"

func scanBook(scanner interface{ Scan(dest ...any) error }) (*Book, error) {
	var (
		id              int64
		name            string
		projectID       int64
		status          string
		priority        int
		expectedPages   int
		actualPages     int
		storageID       sql.NullInt64
		scannerUserID   sql.NullInt64
		indexerUserID   sql.NullInt64
		qcUserID        sql.NullInt64
		scanStart       sql.NullString
		scanEnd         sql.NullString
		indexStart      sql.NullString
		indexEnd        sql.NullString
		qcStart         sql.NullString
		qcEnd           sql.NullString
		shippedAt       sql.NullString
		receivedAt      sql.NullString
		rejectionReason sql.NullString
		author          sql.NullString
		isbn            sql.NullString
		publicationYear int
		notes           sql.NullString
		version         int64
		createdRaw      sql.NullString
		updatedRaw      sql.NullString
	)

	if err := scanner.Scan(
		&id, &name, &projectID, &status, &priority,
		&expectedPages, &actualPages, &storageID,
		&scannerUserID, &indexerUserID, &qcUserID,
		&scanStart, &scanEnd, &indexStart, &indexEnd, &qcStart, &qcEnd,
		&shippedAt, &receivedAt, &rejectionReason,
		&author, &isbn, &publicationYear, &notes,
		&version, &createdRaw, &updatedRaw,
	); err != nil {
		return nil, err
	}

	return &Book{
		ID:                id,
		Name:              name,
		ProjectID:         projectID,
		Status:            status,
		Priority:          priority,
		ExpectedPageCount: expectedPages,
		ActualPageCount:   actualPages,
		StorageID:         int64Ptr(storageID),
		ScannerUserID:     int64Ptr(scannerUserID),
		IndexerUserID:     int64Ptr(indexerUserID),
		QCUserID:          int64Ptr(qcUserID),
		ScanStartTime:     parseTimePtr(scanStart),
		ScanEndTime:       parseTimePtr(scanEnd),
		IndexStartTime:    parseTimePtr(indexStart),
		IndexEndTime:      parseTimePtr(indexEnd),
		QCStartTime:       parseTimePtr(qcStart),
		QCEndTime:         parseTimePtr(qcEnd),
		ShippedAt:         parseTimePtr(shippedAt),
		ReceivedAt:        parseTimePtr(receivedAt),
		RejectionReason:   rejectionReason.String,
		Author:            author.String,
		ISBN:              isbn.String,
		PublicationYear:   publicationYear,
		Notes:             notes.String,
		Version:           version,
		CreatedAt:         parseTime(createdRaw),
		UpdatedAt:         parseTime(updatedRaw),
	}, nil
}

// CreateBook inserts a new book. The name is sanitized for use as a stage
// folder name, and a blank status defaults to the first canonical stage,
// Pending Shipment.
func (s *Store) CreateBook(ctx context.Context, book *Book) (*Book, error) {
	if book == nil {
		return nil, errors.New("book is nil")
	}
	book.Name = textutil.SanitizeFolderName(book.Name)
	if book.Name == "" {
		return nil, errors.New("book name is empty")
	}
	if book.Status == "" {
		book.Status = stagecfg.StatusFor(stagecfg.KeyPendingShipment)
	}
	now := timestamp(time.Now())

	res, err := s.execWithRetry(
		ctx,
		`INSERT INTO books (
            name, project_id, status, priority, expected_page_count,
            author, isbn, publication_year, notes, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		book.Name,
		book.ProjectID,
		book.Status,
		book.Priority,
		book.ExpectedPageCount,
		nullableString(book.Author),
		nullableString(book.ISBN),
		book.PublicationYear,
		nullableString(book.Notes),
		now,
		now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert book: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetBook(ctx, id)
}

// GetBook fetches a book by identifier. Returns nil when absent.
func (s *Store) GetBook(ctx context.Context, id int64) (*Book, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+bookColumns+` FROM books WHERE id = ?`, id)
	book, err := scanBook(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get book: %w", err)
	}
	return book, nil
}

// GetBookByName fetches a book by project and name.
func (s *Store) GetBookByName(ctx context.Context, projectID int64, name string) (*Book, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+bookColumns+` FROM books WHERE project_id = ? AND name = ?`, projectID, name)
	book, err := scanBook(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get book by name: %w", err)
	}
	return book, nil
}

// UpdateBook persists changes to a book with a compare-and-swap on the
// version column. On success the in-memory version is advanced; when the
// row moved underneath the caller, ErrStale is returned and nothing is
// written.
func (s *Store) UpdateBook(ctx context.Context, book *Book) error {
	if book == nil {
		return errors.New("book is nil")
	}
	book.UpdatedAt = time.Now().UTC()

	res, err := s.execWithRetry(
		ctx,
		`UPDATE books
         SET name = ?, status = ?, priority = ?, expected_page_count = ?,
             actual_page_count = ?, storage_id = ?,
             scanner_user_id = ?, indexer_user_id = ?, qc_user_id = ?,
             scan_start_time = ?, scan_end_time = ?,
             index_start_time = ?, index_end_time = ?,
             qc_start_time = ?, qc_end_time = ?,
             shipped_at = ?, received_at = ?, rejection_reason = ?,
             author = ?, isbn = ?, publication_year = ?, notes = ?,
             version = version + 1, updated_at = ?
         WHERE id = ? AND version = ?`,
		book.Name,
		book.Status,
		book.Priority,
		book.ExpectedPageCount,
		book.ActualPageCount,
		nullableInt64(book.StorageID),
		nullableInt64(book.ScannerUserID),
		nullableInt64(book.IndexerUserID),
		nullableInt64(book.QCUserID),
		nullableTime(book.ScanStartTime),
		nullableTime(book.ScanEndTime),
		nullableTime(book.IndexStartTime),
		nullableTime(book.IndexEndTime),
		nullableTime(book.QCStartTime),
		nullableTime(book.QCEndTime),
		nullableTime(book.ShippedAt),
		nullableTime(book.ReceivedAt),
		nullableString(book.RejectionReason),
		nullableString(book.Author),
		nullableString(book.ISBN),
		book.PublicationYear,
		nullableString(book.Notes),
		timestamp(book.UpdatedAt),
		book.ID,
		book.Version,
	)
	if err != nil {
		return fmt.Errorf("update book: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return ErrStale
	}
	book.Version++
	return nil
}

// BooksByProjectAndStatus returns a project's books in a given status,
// ordered by identifier. Pull-next relies on this ordering: first match
// wins.
func (s *Store) BooksByProjectAndStatus(ctx context.Context, projectID int64, status string) ([]*Book, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+bookColumns+` FROM books WHERE project_id = ? AND status = ? ORDER BY id`,
		projectID, status)
	if err != nil {
		return nil, fmt.Errorf("query books by status: %w", err)
	}
	defer rows.Close()
	return collectBooks(rows)
}

// BooksByProject returns every book in a project ordered by identifier.
func (s *Store) BooksByProject(ctx context.Context, projectID int64) ([]*Book, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+bookColumns+` FROM books WHERE project_id = ? ORDER BY id`, projectID)
	if err != nil {
		return nil, fmt.Errorf("query project books: %w", err)
	}
	defer rows.Close()
	return collectBooks(rows)
}

// ListBooks returns books filtered by status set (or all books when no
// status is provided), ordered by identifier.
func (s *Store) ListBooks(ctx context.Context, statuses ...string) ([]*Book, error) {
	baseQuery := `SELECT ` + bookColumns + ` FROM books`
	orderClause := ` ORDER BY id`

	var (
		rows *sql.Rows
		err  error
	)
	if len(statuses) == 0 {
		rows, err = s.db.QueryContext(ctx, baseQuery+orderClause)
	} else {
		placeholders := makePlaceholders(len(statuses))
		args := make([]any, len(statuses))
		for i, status := range statuses {
			args[i] = status
		}
		rows, err = s.db.QueryContext(ctx, baseQuery+` WHERE status IN (`+placeholders+`)`+orderClause, args...)
	}
	if err != nil {
		return nil, fmt.Errorf("list books: %w", err)
	}
	defer rows.Close()
	return collectBooks(rows)
}

// DeleteBook removes a book; its documents go with it via the foreign key
// cascade.
func (s *Store) DeleteBook(ctx context.Context, id int64) (bool, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM books WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete book: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

func collectBooks(rows *sql.Rows) ([]*Book, error) {
	var books []*Book
	for rows.Next() {
		book, err := scanBook(rows)
		if err != nil {
			return nil, err
		}
		books = append(books, book)
	}
	return books, rows.Err()
}
