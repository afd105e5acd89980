package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// CreateDeliveryBatch inserts a delivery batch with one item per book, each
// item starting in the pending decision. The public identifier is what the
// client sees; callers supply it so the format stays their concern.
func (s *Store) CreateDeliveryBatch(ctx context.Context, publicID, status string, bookIDs []int64) (*DeliveryBatch, error) {
	if len(bookIDs) == 0 {
		return nil, errors.New("delivery batch needs at least one book")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin delivery tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO delivery_batches (public_id, status, created_at) VALUES (?, ?, ?)`,
		publicID, status, timestamp(time.Now()))
	if err != nil {
		return nil, fmt.Errorf("insert delivery batch: %w", err)
	}
	batchID, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	for _, bookID := range bookIDs {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO delivery_batch_items (batch_id, book_id, decision) VALUES (?, ?, ?)`,
			batchID, bookID, DecisionPending); err != nil {
			return nil, fmt.Errorf("insert delivery item for book %d: %w", bookID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit delivery batch: %w", err)
	}
	return s.GetDeliveryBatch(ctx, batchID)
}

// GetDeliveryBatch fetches a batch by identifier. Returns nil when absent.
func (s *Store) GetDeliveryBatch(ctx context.Context, id int64) (*DeliveryBatch, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, public_id, status, created_at FROM delivery_batches WHERE id = ?`, id)
	return scanDeliveryBatch(row)
}

// GetDeliveryBatchByPublicID fetches a batch by its client-facing
// identifier. Returns nil when absent.
func (s *Store) GetDeliveryBatchByPublicID(ctx context.Context, publicID string) (*DeliveryBatch, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, public_id, status, created_at FROM delivery_batches WHERE public_id = ?`, publicID)
	return scanDeliveryBatch(row)
}

func scanDeliveryBatch(row *sql.Row) (*DeliveryBatch, error) {
	var (
		batch   DeliveryBatch
		created sql.NullString
	)
	err := row.Scan(&batch.ID, &batch.PublicID, &batch.Status, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get delivery batch: %w", err)
	}
	batch.CreatedAt = parseTime(created)
	return &batch, nil
}

// ListDeliveryBatches returns batches newest first.
func (s *Store) ListDeliveryBatches(ctx context.Context) ([]*DeliveryBatch, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, public_id, status, created_at FROM delivery_batches ORDER BY id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list delivery batches: %w", err)
	}
	defer rows.Close()

	var batches []*DeliveryBatch
	for rows.Next() {
		var (
			batch   DeliveryBatch
			created sql.NullString
		)
		if err := rows.Scan(&batch.ID, &batch.PublicID, &batch.Status, &created); err != nil {
			return nil, err
		}
		batch.CreatedAt = parseTime(created)
		batches = append(batches, &batch)
	}
	return batches, rows.Err()
}

// SetDeliveryBatchStatus updates a batch's status.
func (s *Store) SetDeliveryBatchStatus(ctx context.Context, id int64, status string) error {
	if err := s.execWithoutResultRetry(ctx,
		`UPDATE delivery_batches SET status = ? WHERE id = ?`, status, id); err != nil {
		return fmt.Errorf("set delivery batch status: %w", err)
	}
	return nil
}

// DeliveryBatchItems returns a batch's items ordered by identifier.
func (s *Store) DeliveryBatchItems(ctx context.Context, batchID int64) ([]*DeliveryBatchItem, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, batch_id, book_id, decision, reason FROM delivery_batch_items WHERE batch_id = ? ORDER BY id`,
		batchID)
	if err != nil {
		return nil, fmt.Errorf("list delivery items: %w", err)
	}
	defer rows.Close()

	var items []*DeliveryBatchItem
	for rows.Next() {
		var (
			item   DeliveryBatchItem
			reason sql.NullString
		)
		if err := rows.Scan(&item.ID, &item.BatchID, &item.BookID, &item.Decision, &reason); err != nil {
			return nil, err
		}
		item.Reason = reason.String
		items = append(items, &item)
	}
	return items, rows.Err()
}

// DeliveryBatchItemForBook fetches the item for one book inside a batch.
// Returns nil when the book is not part of the batch.
func (s *Store) DeliveryBatchItemForBook(ctx context.Context, batchID, bookID int64) (*DeliveryBatchItem, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, batch_id, book_id, decision, reason FROM delivery_batch_items WHERE batch_id = ? AND book_id = ?`,
		batchID, bookID)
	var (
		item   DeliveryBatchItem
		reason sql.NullString
	)
	err := row.Scan(&item.ID, &item.BatchID, &item.BookID, &item.Decision, &reason)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get delivery item: %w", err)
	}
	item.Reason = reason.String
	return &item, nil
}

// SetDeliveryDecision records a provisional decision for one item. A
// rejection carries its reason; approvals clear any earlier one.
func (s *Store) SetDeliveryDecision(ctx context.Context, itemID int64, decision, reason string) error {
	switch decision {
	case DecisionPending, DecisionApproved, DecisionRejected:
	default:
		return fmt.Errorf("unknown delivery decision %q", decision)
	}
	if err := s.execWithoutResultRetry(ctx,
		`UPDATE delivery_batch_items SET decision = ?, reason = ? WHERE id = ?`,
		decision, nullableString(reason), itemID); err != nil {
		return fmt.Errorf("set delivery decision: %w", err)
	}
	return nil
}
