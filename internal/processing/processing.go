package processing

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"bindery/internal/launcher"
	"bindery/internal/logging"
	"bindery/internal/services"
	"bindery/internal/stagecfg"
	"bindery/internal/store"
	"bindery/internal/workflow"
)

// Engine runs processing batches through their lifecycle.
type Engine struct {
	workflow *workflow.Engine
	store    *store.Store
	launcher launcher.Service
	logger   *slog.Logger
}

// NewEngine wires a processing engine on top of the transition engine.
func NewEngine(wf *workflow.Engine, launch launcher.Service, logger *slog.Logger) *Engine {
	if launch == nil {
		launch = launcher.NewNopService()
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Engine{
		workflow: wf,
		store:    wf.Store(),
		launcher: launch,
		logger:   logging.NewComponentLogger(logger, "processing"),
	}
}

// StartBatch moves each book from Ready for Processing to In Processing,
// then records the batch and hands it to the processing application. Any
// failed move aborts the start: no batch row is created.
func (e *Engine) StartBatch(ctx context.Context, bookIDs []int64, storageID int64) (*store.ProcessingBatch, error) {
	if len(bookIDs) == 0 {
		return nil, services.Wrap(services.ErrValidation, "processing", "start batch",
			"at least one book is required", nil)
	}
	storage, err := e.store.GetStorage(ctx, storageID)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "processing", "start batch", "load storage", err)
	}
	if storage == nil {
		return nil, services.Wrap(services.ErrNotFound, "processing", "start batch",
			fmt.Sprintf("storage %d does not exist", storageID), nil)
	}

	ready := stagecfg.StatusFor(stagecfg.KeyReadyForProcessing)
	working := stagecfg.StatusFor(stagecfg.KeyInProcessing)
	for _, id := range bookIDs {
		book, err := e.loadBook(ctx, id)
		if err != nil {
			return nil, err
		}
		if book.Status != ready {
			return nil, services.Wrap(services.ErrConflict, "processing", "start batch",
				fmt.Sprintf("book %q is %q, expected %q", book.Name, book.Status, ready), nil)
		}
		if err := e.workflow.Transition(ctx, book, ready, working, nil); err != nil {
			return nil, err
		}
	}

	batch, err := e.store.CreateProcessingBatch(ctx, storageID, bookIDs)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "processing", "start batch", "persist batch", err)
	}

	e.launcher.LaunchProcessing(ctx, launcher.ProcessingContext{
		BatchID:   batch.ID,
		StorageIP: storage.IP,
	})
	e.logger.InfoContext(ctx, "processing batch started",
		logging.Int64(logging.FieldBatchID, batch.ID),
		logging.Int("books", len(bookIDs)))
	return batch, nil
}

// CompleteBatch marks a run finished: full progress, Complete status, and
// each book advanced past In Processing to Processed. Per-book advance
// failures are collected; successes stand.
func (e *Engine) CompleteBatch(ctx context.Context, batchID int64) error {
	batch, items, err := e.loadBatch(ctx, batchID)
	if err != nil {
		return err
	}

	if err := e.store.SetProcessingBatchProgress(ctx, batch.ID, 1); err != nil {
		return services.Wrap(services.ErrTransient, "processing", "complete batch", "persist progress", err)
	}
	if err := e.store.SetProcessingBatchStatus(ctx, batch.ID, store.BatchComplete); err != nil {
		return services.Wrap(services.ErrTransient, "processing", "complete batch", "persist status", err)
	}

	working := stagecfg.StatusFor(stagecfg.KeyInProcessing)
	var failed []string
	for _, item := range items {
		book, err := e.loadBook(ctx, item.BookID)
		if err != nil {
			failed = append(failed, fmt.Sprintf("book %d", item.BookID))
			continue
		}
		if book.Status != working {
			continue
		}
		if err := e.workflow.MoveToNextStage(ctx, book); err != nil {
			failed = append(failed, book.Name)
			e.logger.WarnContext(ctx, "advance after processing failed",
				logging.Int64(logging.FieldBookID, book.ID), logging.Error(err))
		}
	}
	if len(failed) > 0 {
		return services.Wrap(services.ErrTransient, "processing", "complete batch",
			"failed books: "+strings.Join(failed, ", "), nil)
	}
	return nil
}

// FailBatch marks a run failed and every item CQ Failed. Books stay in In
// Processing for an operator to rewind.
func (e *Engine) FailBatch(ctx context.Context, batchID int64, reason string) error {
	batch, items, err := e.loadBatch(ctx, batchID)
	if err != nil {
		return err
	}
	if err := e.store.SetProcessingBatchStatus(ctx, batch.ID, store.BatchFailed); err != nil {
		return services.Wrap(services.ErrTransient, "processing", "fail batch", "persist status", err)
	}
	for _, item := range items {
		if err := e.store.SetProcessingBatchItemStatus(ctx, item.ID, store.ItemCQFailed); err != nil {
			return services.Wrap(services.ErrTransient, "processing", "fail batch", "persist item status", err)
		}
	}

	e.logger.WarnContext(ctx, "processing batch failed",
		logging.Int64(logging.FieldBatchID, batch.ID),
		logging.Alert(reason))
	return nil
}

// SendToNextStage fans completed batches back into the workflow: every
// item's book moves on from Processed, items flip to Finalized or CQ
// Failed per outcome, and a batch becomes Finalized only when all of its
// items succeeded. Every item of every batch is attempted before the
// aggregated error is returned.
func (e *Engine) SendToNextStage(ctx context.Context, batchIDs []int64) error {
	processed := stagecfg.StatusFor(stagecfg.KeyProcessed)
	var failed []string

	for _, batchID := range batchIDs {
		batch, items, err := e.loadBatch(ctx, batchID)
		if err != nil {
			failed = append(failed, fmt.Sprintf("batch %d", batchID))
			continue
		}

		allOK := true
		for _, item := range items {
			ok := e.sendItem(ctx, item, processed)
			if !ok {
				allOK = false
				failed = append(failed, fmt.Sprintf("batch %d book %d", batch.ID, item.BookID))
			}
		}
		if allOK {
			if err := e.store.SetProcessingBatchStatus(ctx, batch.ID, store.BatchFinalized); err != nil {
				failed = append(failed, fmt.Sprintf("batch %d", batch.ID))
			}
		}
	}

	if len(failed) > 0 {
		return services.Wrap(services.ErrTransient, "processing", "send to next stage",
			"failed: "+strings.Join(failed, ", "), nil)
	}
	return nil
}

func (e *Engine) sendItem(ctx context.Context, item *store.ProcessingBatchItem, processed string) bool {
	book, err := e.loadBook(ctx, item.BookID)
	if err != nil {
		return false
	}
	if book.Status == processed {
		if err := e.workflow.MoveToNextStage(ctx, book); err != nil {
			_ = e.store.SetProcessingBatchItemStatus(ctx, item.ID, store.ItemCQFailed)
			e.logger.WarnContext(ctx, "send to next stage failed",
				logging.Int64(logging.FieldBookID, book.ID), logging.Error(err))
			return false
		}
	}
	if err := e.store.SetProcessingBatchItemStatus(ctx, item.ID, store.ItemFinalized); err != nil {
		return false
	}
	return true
}

func (e *Engine) loadBatch(ctx context.Context, batchID int64) (*store.ProcessingBatch, []*store.ProcessingBatchItem, error) {
	batch, err := e.store.GetProcessingBatch(ctx, batchID)
	if err != nil {
		return nil, nil, services.Wrap(services.ErrTransient, "processing", "load batch", "", err)
	}
	if batch == nil {
		return nil, nil, services.Wrap(services.ErrNotFound, "processing", "load batch",
			fmt.Sprintf("processing batch %d does not exist", batchID), nil)
	}
	items, err := e.store.ProcessingBatchItems(ctx, batchID)
	if err != nil {
		return nil, nil, services.Wrap(services.ErrTransient, "processing", "load batch", "load items", err)
	}
	return batch, items, nil
}

func (e *Engine) loadBook(ctx context.Context, id int64) (*store.Book, error) {
	book, err := e.store.GetBook(ctx, id)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "processing", "load book", "", err)
	}
	if book == nil {
		return nil, services.Wrap(services.ErrNotFound, "processing", "load book",
			fmt.Sprintf("book %d does not exist", id), nil)
	}
	return book, nil
}
