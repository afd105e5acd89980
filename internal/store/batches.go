package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// CreateProcessingBatch inserts a batch in the In Progress status together
// with one item per book, all in a single transaction.
func (s *Store) CreateProcessingBatch(ctx context.Context, storageID int64, bookIDs []int64) (*ProcessingBatch, error) {
	if len(bookIDs) == 0 {
		return nil, errors.New("processing batch needs at least one book")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin batch tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO processing_batches (storage_id, status, progress, created_at) VALUES (?, ?, 0, ?)`,
		storageID, BatchInProgress, timestamp(time.Now()))
	if err != nil {
		return nil, fmt.Errorf("insert processing batch: %w", err)
	}
	batchID, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	for _, bookID := range bookIDs {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO processing_batch_items (batch_id, book_id, status) VALUES (?, ?, ?)`,
			batchID, bookID, ItemProcessing); err != nil {
			return nil, fmt.Errorf("insert batch item for book %d: %w", bookID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit processing batch: %w", err)
	}
	return s.GetProcessingBatch(ctx, batchID)
}

// GetProcessingBatch fetches a batch by identifier. Returns nil when absent.
func (s *Store) GetProcessingBatch(ctx context.Context, id int64) (*ProcessingBatch, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, storage_id, status, progress, created_at FROM processing_batches WHERE id = ?`, id)
	var (
		batch   ProcessingBatch
		created sql.NullString
	)
	err := row.Scan(&batch.ID, &batch.StorageID, &batch.Status, &batch.Progress, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get processing batch: %w", err)
	}
	batch.CreatedAt = parseTime(created)
	return &batch, nil
}

// ListProcessingBatches returns batches newest first, optionally filtered by
// status.
func (s *Store) ListProcessingBatches(ctx context.Context, statuses ...string) ([]*ProcessingBatch, error) {
	query := `SELECT id, storage_id, status, progress, created_at FROM processing_batches`
	var args []any
	if len(statuses) > 0 {
		query += ` WHERE status IN (` + makePlaceholders(len(statuses)) + `)`
		for _, status := range statuses {
			args = append(args, status)
		}
	}
	query += ` ORDER BY id DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list processing batches: %w", err)
	}
	defer rows.Close()

	var batches []*ProcessingBatch
	for rows.Next() {
		var (
			batch   ProcessingBatch
			created sql.NullString
		)
		if err := rows.Scan(&batch.ID, &batch.StorageID, &batch.Status, &batch.Progress, &created); err != nil {
			return nil, err
		}
		batch.CreatedAt = parseTime(created)
		batches = append(batches, &batch)
	}
	return batches, rows.Err()
}

// SetProcessingBatchStatus updates a batch's status.
func (s *Store) SetProcessingBatchStatus(ctx context.Context, id int64, status string) error {
	if err := s.execWithoutResultRetry(ctx,
		`UPDATE processing_batches SET status = ? WHERE id = ?`, status, id); err != nil {
		return fmt.Errorf("set batch status: %w", err)
	}
	return nil
}

// SetProcessingBatchProgress records a batch's completion fraction in
// [0,1].
func (s *Store) SetProcessingBatchProgress(ctx context.Context, id int64, progress float64) error {
	if progress < 0 || progress > 1 {
		return fmt.Errorf("batch progress must be in [0,1], got %g", progress)
	}
	if err := s.execWithoutResultRetry(ctx,
		`UPDATE processing_batches SET progress = ? WHERE id = ?`, progress, id); err != nil {
		return fmt.Errorf("set batch progress: %w", err)
	}
	return nil
}

// ProcessingBatchItems returns a batch's items ordered by identifier.
func (s *Store) ProcessingBatchItems(ctx context.Context, batchID int64) ([]*ProcessingBatchItem, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, batch_id, book_id, status FROM processing_batch_items WHERE batch_id = ? ORDER BY id`, batchID)
	if err != nil {
		return nil, fmt.Errorf("list batch items: %w", err)
	}
	defer rows.Close()

	var items []*ProcessingBatchItem
	for rows.Next() {
		var item ProcessingBatchItem
		if err := rows.Scan(&item.ID, &item.BatchID, &item.BookID, &item.Status); err != nil {
			return nil, err
		}
		items = append(items, &item)
	}
	return items, rows.Err()
}

// SetProcessingBatchItemStatus updates a single item's status.
func (s *Store) SetProcessingBatchItemStatus(ctx context.Context, itemID int64, status string) error {
	if err := s.execWithoutResultRetry(ctx,
		`UPDATE processing_batch_items SET status = ? WHERE id = ?`, status, itemID); err != nil {
		return fmt.Errorf("set batch item status: %w", err)
	}
	return nil
}
