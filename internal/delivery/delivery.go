package delivery

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"bindery/internal/logging"
	"bindery/internal/services"
	"bindery/internal/stagecfg"
	"bindery/internal/store"
	"bindery/internal/workflow"
)

// Finalization decisions.
const (
	DecisionApproveRemaining = "approve_remaining"
	DecisionRejectAll        = "reject_all"
)

// Engine runs delivery batches through their validation lifecycle.
type Engine struct {
	workflow *workflow.Engine
	store    *store.Store
	logger   *slog.Logger
}

// NewEngine wires a delivery engine on top of the transition engine.
func NewEngine(wf *workflow.Engine, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Engine{
		workflow: wf,
		store:    wf.Store(),
		logger:   logging.NewComponentLogger(logger, "delivery"),
	}
}

// CreateBatch moves each book from Processed to Delivery and records the
// batch. The first failed move aborts the whole creation: no batch row is
// written and earlier moves stand as plain stage transitions.
func (e *Engine) CreateBatch(ctx context.Context, bookIDs []int64) (*store.DeliveryBatch, error) {
	if len(bookIDs) == 0 {
		return nil, services.Wrap(services.ErrValidation, "delivery", "create batch",
			"at least one book is required", nil)
	}

	processed := stagecfg.StatusFor(stagecfg.KeyProcessed)
	target := stagecfg.StatusFor(stagecfg.KeyDelivery)
	for _, id := range bookIDs {
		book, err := e.loadBook(ctx, id)
		if err != nil {
			return nil, err
		}
		if book.Status != processed {
			return nil, services.Wrap(services.ErrConflict, "delivery", "create batch",
				fmt.Sprintf("book %q is %q, expected %q", book.Name, book.Status, processed), nil)
		}
		if err := e.workflow.Transition(ctx, book, processed, target, nil); err != nil {
			return nil, err
		}
	}

	batch, err := e.store.CreateDeliveryBatch(ctx, newPublicID(), store.BatchInProgress, bookIDs)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "delivery", "create batch", "persist batch", err)
	}
	e.logger.InfoContext(ctx, "delivery batch created",
		logging.Int64(logging.FieldBatchID, batch.ID),
		logging.Int("books", len(bookIDs)))
	return batch, nil
}

// SetProvisionalStatus records a client's pending decision on one book. A
// rejection requires a non-blank reason, which is stored on the book so it
// survives the batch.
func (e *Engine) SetProvisionalStatus(ctx context.Context, itemID int64, decision, reason string) error {
	reason = strings.TrimSpace(reason)
	switch decision {
	case store.DecisionApproved:
		reason = ""
	case store.DecisionRejected:
		if reason == "" {
			return services.Wrap(services.ErrValidation, "delivery", "provisional decision",
				"a rejection requires a reason", nil)
		}
	default:
		return services.Wrap(services.ErrValidation, "delivery", "provisional decision",
			fmt.Sprintf("unknown decision %q", decision), nil)
	}

	if err := e.store.SetDeliveryDecision(ctx, itemID, decision, reason); err != nil {
		return services.Wrap(services.ErrTransient, "delivery", "provisional decision", "persist decision", err)
	}
	return nil
}

// FinalizeBatch commits every item's decision. reject_all sends every book
// to Client Rejected; approve_remaining sends rejected items there and
// everything else to Finalized. Every item is attempted; the batch is only
// marked Finalized when all of them landed, otherwise one aggregate error
// names each failed book.
func (e *Engine) FinalizeBatch(ctx context.Context, batchID int64, decision string) error {
	if decision != DecisionApproveRemaining && decision != DecisionRejectAll {
		return services.Wrap(services.ErrValidation, "delivery", "finalize",
			fmt.Sprintf("unknown finalization decision %q", decision), nil)
	}
	batch, err := e.store.GetDeliveryBatch(ctx, batchID)
	if err != nil {
		return services.Wrap(services.ErrTransient, "delivery", "finalize", "load batch", err)
	}
	if batch == nil {
		return services.Wrap(services.ErrNotFound, "delivery", "finalize",
			fmt.Sprintf("delivery batch %d does not exist", batchID), nil)
	}
	items, err := e.store.DeliveryBatchItems(ctx, batchID)
	if err != nil {
		return services.Wrap(services.ErrTransient, "delivery", "finalize", "load items", err)
	}

	var failed []string
	for _, item := range items {
		if err := e.finalizeItem(ctx, item, decision); err != nil {
			book, lookupErr := e.store.GetBook(ctx, item.BookID)
			name := fmt.Sprintf("book %d", item.BookID)
			if lookupErr == nil && book != nil {
				name = book.Name
			}
			failed = append(failed, name)
			e.logger.WarnContext(ctx, "finalize item failed",
				logging.Int64(logging.FieldBookID, item.BookID), logging.Error(err))
		}
	}

	if len(failed) > 0 {
		return services.Wrap(services.ErrTransient, "delivery", "finalize",
			fmt.Sprintf("batch %s not finalized, failed books: %s",
				batch.PublicID, strings.Join(failed, ", ")), nil)
	}

	if err := e.store.SetDeliveryBatchStatus(ctx, batchID, store.BatchFinalized); err != nil {
		return services.Wrap(services.ErrTransient, "delivery", "finalize", "persist batch status", err)
	}
	return nil
}

// ApproveBatch marks every pending item approved and finalizes the batch.
func (e *Engine) ApproveBatch(ctx context.Context, batchID int64) error {
	items, err := e.store.DeliveryBatchItems(ctx, batchID)
	if err != nil {
		return services.Wrap(services.ErrTransient, "delivery", "approve batch", "load items", err)
	}
	for _, item := range items {
		if item.Decision != store.DecisionPending {
			continue
		}
		if err := e.store.SetDeliveryDecision(ctx, item.ID, store.DecisionApproved, ""); err != nil {
			return services.Wrap(services.ErrTransient, "delivery", "approve batch", "persist decision", err)
		}
	}
	return e.FinalizeBatch(ctx, batchID, DecisionApproveRemaining)
}

func (e *Engine) finalizeItem(ctx context.Context, item *store.DeliveryBatchItem, decision string) error {
	book, err := e.loadBook(ctx, item.BookID)
	if err != nil {
		return err
	}

	rejected := decision == DecisionRejectAll || item.Decision == store.DecisionRejected
	final := store.DecisionApproved
	target := stagecfg.StatusFinalized
	event := store.EventClientApproval
	if rejected {
		final = store.DecisionRejected
		target = stagecfg.StatusFor(stagecfg.KeyClientRejected)
		event = store.EventClientRejection
	}

	if book.Status != target {
		err = e.workflow.Transition(ctx, book, book.Status, target, func(b *store.Book) {
			if rejected && item.Reason != "" {
				b.RejectionReason = item.Reason
			}
		})
		if err != nil {
			return err
		}
		e.auditDecision(ctx, book, event, item.Reason)
	}

	// The forced decision lands on the item itself, so no finalized batch
	// carries a pending row.
	if item.Decision != final {
		if err := e.store.SetDeliveryDecision(ctx, item.ID, final, item.Reason); err != nil {
			return services.Wrap(services.ErrTransient, "delivery", "finalize", "persist item decision", err)
		}
	}
	return nil
}

func (e *Engine) loadBook(ctx context.Context, id int64) (*store.Book, error) {
	book, err := e.store.GetBook(ctx, id)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "delivery", "load book", "", err)
	}
	if book == nil {
		return nil, services.Wrap(services.ErrNotFound, "delivery", "load book",
			fmt.Sprintf("book %d does not exist", id), nil)
	}
	return book, nil
}

func (e *Engine) auditDecision(ctx context.Context, book *store.Book, event, reason string) {
	actor, _ := services.ActorFromContext(ctx)
	entry := &store.AuditEntry{
		BookID: &book.ID,
		Actor:  actor,
		Event:  event,
		Detail: reason,
	}
	if rid, ok := services.RequestIDFromContext(ctx); ok {
		entry.RequestID = rid
	}
	if err := e.store.AppendAudit(ctx, entry); err != nil {
		e.logger.WarnContext(ctx, "audit append failed", logging.Error(err))
	}
}

// newPublicID generates the identifier clients see on a batch.
func newPublicID() string {
	return "DLV-" + strings.ToUpper(uuid.NewString()[:8])
}
