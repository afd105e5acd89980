package processing_test

import (
	"context"
	"strings"
	"testing"

	"bindery/internal/filemover"
	"bindery/internal/processing"
	"bindery/internal/services"
	"bindery/internal/stagecfg"
	"bindery/internal/store"
	"bindery/internal/testsupport"
	"bindery/internal/workflow"
)

type selectiveMover struct {
	failFor map[string]bool
}

func (m *selectiveMover) Move(_ context.Context, bookName, _, _ string) error {
	if m.failFor[bookName] {
		return services.Wrap(services.ErrExternalService, "filemover", "move",
			"folder locked for "+bookName, nil)
	}
	return nil
}

func (m *selectiveMover) CopyPages(context.Context, string, string, string) error { return nil }

func (m *selectiveMover) CountPages(context.Context, string, string) (int, error) { return 0, nil }

func newEngine(t *testing.T, mover filemover.Service) (*processing.Engine, *store.Store) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	wf := workflow.NewEngine(st, mover, nil, nil)
	return processing.NewEngine(wf, nil, nil), st
}

func seedReadyBooks(t *testing.T, st *store.Store, names ...string) ([]int64, *store.Storage) {
	t.Helper()
	client := testsupport.SeedClient(t, st, "Client")
	project := testsupport.SeedProject(t, st, "proj", client.ID)
	storage := testsupport.SeedStorage(t, st, "vault-1", "10.0.0.5")
	ids := make([]int64, 0, len(names))
	for _, name := range names {
		book := testsupport.SeedBook(t, st, project.ID, name,
			stagecfg.StatusFor(stagecfg.KeyReadyForProcessing))
		ids = append(ids, book.ID)
	}
	return ids, storage
}

func TestStartBatchMovesBooksAndCreatesItems(t *testing.T) {
	eng, st := newEngine(t, nil)

	ctx := context.Background()
	ids, storage := seedReadyBooks(t, st, "ledger-001", "ledger-002")

	batch, err := eng.StartBatch(ctx, ids, storage.ID)
	if err != nil {
		t.Fatalf("StartBatch failed: %v", err)
	}
	if batch.Status != store.BatchInProgress {
		t.Fatalf("expected In Progress, got %q", batch.Status)
	}

	for _, id := range ids {
		book, err := st.GetBook(ctx, id)
		if err != nil {
			t.Fatalf("GetBook failed: %v", err)
		}
		if book.Status != stagecfg.StatusFor(stagecfg.KeyInProcessing) {
			t.Fatalf("book %d should be In Processing, got %q", id, book.Status)
		}
	}

	items, err := st.ProcessingBatchItems(ctx, batch.ID)
	if err != nil {
		t.Fatalf("ProcessingBatchItems failed: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
}

func TestStartBatchAbortsOnMoveFailure(t *testing.T) {
	mover := &selectiveMover{failFor: map[string]bool{"ledger-002": true}}
	eng, st := newEngine(t, mover)

	ctx := context.Background()
	ids, storage := seedReadyBooks(t, st, "ledger-001", "ledger-002")

	_, err := eng.StartBatch(ctx, ids, storage.ID)
	if err == nil {
		t.Fatal("expected StartBatch to fail")
	}

	batches, err := st.ListProcessingBatches(ctx)
	if err != nil {
		t.Fatalf("ListProcessingBatches failed: %v", err)
	}
	if len(batches) != 0 {
		t.Fatalf("no batch row should exist after abort, got %d", len(batches))
	}
}

func TestCompleteBatchAdvancesBooks(t *testing.T) {
	eng, st := newEngine(t, nil)

	ctx := context.Background()
	ids, storage := seedReadyBooks(t, st, "ledger-001", "ledger-002")
	batch, err := eng.StartBatch(ctx, ids, storage.ID)
	if err != nil {
		t.Fatalf("StartBatch failed: %v", err)
	}

	if err := eng.CompleteBatch(ctx, batch.ID); err != nil {
		t.Fatalf("CompleteBatch failed: %v", err)
	}

	fresh, err := st.GetProcessingBatch(ctx, batch.ID)
	if err != nil {
		t.Fatalf("GetProcessingBatch failed: %v", err)
	}
	if fresh.Status != store.BatchComplete || fresh.Progress != 1 {
		t.Fatalf("unexpected batch state: %#v", fresh)
	}
	for _, id := range ids {
		book, err := st.GetBook(ctx, id)
		if err != nil {
			t.Fatalf("GetBook failed: %v", err)
		}
		if book.Status != stagecfg.StatusFor(stagecfg.KeyProcessed) {
			t.Fatalf("book %d should be Processed, got %q", id, book.Status)
		}
	}
}

func TestFailBatchMarksItemsCQFailed(t *testing.T) {
	eng, st := newEngine(t, nil)

	ctx := context.Background()
	ids, storage := seedReadyBooks(t, st, "ledger-001")
	batch, err := eng.StartBatch(ctx, ids, storage.ID)
	if err != nil {
		t.Fatalf("StartBatch failed: %v", err)
	}

	if err := eng.FailBatch(ctx, batch.ID, "OCR engine crashed"); err != nil {
		t.Fatalf("FailBatch failed: %v", err)
	}

	fresh, err := st.GetProcessingBatch(ctx, batch.ID)
	if err != nil {
		t.Fatalf("GetProcessingBatch failed: %v", err)
	}
	if fresh.Status != store.BatchFailed {
		t.Fatalf("expected Failed batch, got %q", fresh.Status)
	}
	items, err := st.ProcessingBatchItems(ctx, batch.ID)
	if err != nil {
		t.Fatalf("ProcessingBatchItems failed: %v", err)
	}
	for _, item := range items {
		if item.Status != store.ItemCQFailed {
			t.Fatalf("expected CQ Failed item, got %q", item.Status)
		}
	}

	// Books stay put for an operator to rewind.
	book, err := st.GetBook(ctx, ids[0])
	if err != nil {
		t.Fatalf("GetBook failed: %v", err)
	}
	if book.Status != stagecfg.StatusFor(stagecfg.KeyInProcessing) {
		t.Fatalf("book should remain In Processing, got %q", book.Status)
	}
}

func TestSendToNextStageFinalizesCleanBatches(t *testing.T) {
	eng, st := newEngine(t, nil)

	ctx := context.Background()
	ids, storage := seedReadyBooks(t, st, "ledger-001", "ledger-002")
	batch, err := eng.StartBatch(ctx, ids, storage.ID)
	if err != nil {
		t.Fatalf("StartBatch failed: %v", err)
	}
	if err := eng.CompleteBatch(ctx, batch.ID); err != nil {
		t.Fatalf("CompleteBatch failed: %v", err)
	}

	if err := eng.SendToNextStage(ctx, []int64{batch.ID}); err != nil {
		t.Fatalf("SendToNextStage failed: %v", err)
	}

	fresh, err := st.GetProcessingBatch(ctx, batch.ID)
	if err != nil {
		t.Fatalf("GetProcessingBatch failed: %v", err)
	}
	if fresh.Status != store.BatchFinalized {
		t.Fatalf("expected Finalized batch, got %q", fresh.Status)
	}
	items, err := st.ProcessingBatchItems(ctx, batch.ID)
	if err != nil {
		t.Fatalf("ProcessingBatchItems failed: %v", err)
	}
	for _, item := range items {
		if item.Status != store.ItemFinalized {
			t.Fatalf("expected Finalized item, got %q", item.Status)
		}
	}
	for _, id := range ids {
		book, err := st.GetBook(ctx, id)
		if err != nil {
			t.Fatalf("GetBook failed: %v", err)
		}
		if book.Status != stagecfg.StatusFor(stagecfg.KeyDelivery) {
			t.Fatalf("book %d should advance to Delivery, got %q", id, book.Status)
		}
	}
}

func TestSendToNextStageAggregatesFailures(t *testing.T) {
	mover := &selectiveMover{failFor: map[string]bool{}}
	eng, st := newEngine(t, mover)

	ctx := context.Background()
	ids, storage := seedReadyBooks(t, st, "ledger-001", "ledger-002")
	batch, err := eng.StartBatch(ctx, ids, storage.ID)
	if err != nil {
		t.Fatalf("StartBatch failed: %v", err)
	}
	if err := eng.CompleteBatch(ctx, batch.ID); err != nil {
		t.Fatalf("CompleteBatch failed: %v", err)
	}
	mover.failFor["ledger-002"] = true

	err = eng.SendToNextStage(ctx, []int64{batch.ID})
	if err == nil {
		t.Fatal("expected aggregate failure")
	}
	if !strings.Contains(err.Error(), "book") {
		t.Fatalf("aggregate error should name failures, got %v", err)
	}

	fresh, err := st.GetProcessingBatch(ctx, batch.ID)
	if err != nil {
		t.Fatalf("GetProcessingBatch failed: %v", err)
	}
	if fresh.Status == store.BatchFinalized {
		t.Fatal("batch must not finalize while an item failed")
	}

	items, err := st.ProcessingBatchItems(ctx, batch.ID)
	if err != nil {
		t.Fatalf("ProcessingBatchItems failed: %v", err)
	}
	var finalized, cqFailed int
	for _, item := range items {
		switch item.Status {
		case store.ItemFinalized:
			finalized++
		case store.ItemCQFailed:
			cqFailed++
		}
	}
	if finalized != 1 || cqFailed != 1 {
		t.Fatalf("expected one Finalized and one CQ Failed item, got %d/%d", finalized, cqFailed)
	}
}
