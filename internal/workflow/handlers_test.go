package workflow_test

import (
	"context"
	"errors"
	"testing"

	"bindery/internal/services"
	"bindery/internal/stagecfg"
	"bindery/internal/store"
	"bindery/internal/testsupport"
)

func TestStartAndCancelTask(t *testing.T) {
	eng, st := newEngine(t, nil)

	ctx := context.Background()
	client := testsupport.SeedClient(t, st, "Client")
	project := testsupport.SeedProject(t, st, "proj", client.ID)
	user := testsupport.SeedUser(t, st, "scanner-1", "scan_books")
	book := testsupport.SeedBook(t, st, project.ID, "ledger-010", stagecfg.StatusFor(stagecfg.KeyToScan))

	if err := eng.StartTask(ctx, book, stagecfg.KeyToScan, user.ID); err != nil {
		t.Fatalf("StartTask failed: %v", err)
	}
	if book.Status != stagecfg.StatusFor(stagecfg.KeyScanningStarted) {
		t.Fatalf("unexpected status %q", book.Status)
	}
	if book.ScannerUserID == nil || *book.ScannerUserID != user.ID {
		t.Fatal("expected scanner assignee to be set")
	}
	if book.ScanStartTime == nil {
		t.Fatal("expected scan start timestamp")
	}

	if err := eng.CancelTask(ctx, book); err != nil {
		t.Fatalf("CancelTask failed: %v", err)
	}
	if book.Status != stagecfg.StatusFor(stagecfg.KeyToScan) {
		t.Fatalf("cancel should revert to queue status, got %q", book.Status)
	}
	if book.ScannerUserID != nil || book.ScanStartTime != nil {
		t.Fatal("cancel should clear assignee and start timestamp")
	}
}

func TestStartTaskRejectsNonQueueStage(t *testing.T) {
	eng, st := newEngine(t, nil)

	ctx := context.Background()
	client := testsupport.SeedClient(t, st, "Client")
	project := testsupport.SeedProject(t, st, "proj", client.ID)
	book := testsupport.SeedBook(t, st, project.ID, "ledger-011", stagecfg.StatusFor(stagecfg.KeyStorage))

	err := eng.StartTask(ctx, book, stagecfg.KeyStorage, 1)
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestSendToStorageCreatesPageDocuments(t *testing.T) {
	eng, st := newEngine(t, nil)

	ctx := context.Background()
	client := testsupport.SeedClient(t, st, "Client")
	project := testsupport.SeedProject(t, st, "proj", client.ID)
	book := testsupport.SeedBook(t, st, project.ID, "ledger-012", stagecfg.StatusFor(stagecfg.KeyScanningStarted))

	if err := eng.SendToStorage(ctx, book, 120, 0); err != nil {
		t.Fatalf("SendToStorage failed: %v", err)
	}
	if book.Status != stagecfg.StatusFor(stagecfg.KeyStorage) {
		t.Fatalf("unexpected status %q", book.Status)
	}
	if book.ActualPageCount != 120 {
		t.Fatalf("expected actual page count 120, got %d", book.ActualPageCount)
	}

	count, err := st.DocumentCount(ctx, book.ID)
	if err != nil {
		t.Fatalf("DocumentCount failed: %v", err)
	}
	if count != 120 {
		t.Fatalf("expected 120 documents, got %d", count)
	}
}

type countingMover struct {
	count int
}

func (m *countingMover) Move(context.Context, string, string, string) error { return nil }

func (m *countingMover) CopyPages(context.Context, string, string, string) error { return nil }

func (m *countingMover) CountPages(context.Context, string, string) (int, error) {
	return m.count, nil
}

func TestSendToStorageCountsPagesWhenUnspecified(t *testing.T) {
	eng, st := newEngine(t, &countingMover{count: 57})

	ctx := context.Background()
	client := testsupport.SeedClient(t, st, "Client")
	project := testsupport.SeedProject(t, st, "proj", client.ID)
	book := testsupport.SeedBook(t, st, project.ID, "ledger-023", stagecfg.StatusFor(stagecfg.KeyScanningStarted))

	if err := eng.SendToStorage(ctx, book, 0, 0); err != nil {
		t.Fatalf("SendToStorage failed: %v", err)
	}
	if book.ActualPageCount != 57 {
		t.Fatalf("expected counted page total 57, got %d", book.ActualPageCount)
	}
	count, err := st.DocumentCount(ctx, book.ID)
	if err != nil {
		t.Fatalf("DocumentCount failed: %v", err)
	}
	if count != 57 {
		t.Fatalf("expected 57 documents, got %d", count)
	}
}

func TestSendToStorageRejectsEmptyScan(t *testing.T) {
	eng, st := newEngine(t, nil)

	ctx := context.Background()
	client := testsupport.SeedClient(t, st, "Client")
	project := testsupport.SeedProject(t, st, "proj", client.ID)
	book := testsupport.SeedBook(t, st, project.ID, "ledger-024", stagecfg.StatusFor(stagecfg.KeyScanningStarted))

	// The nop mover counts zero pages, so an unspecified count is refused.
	if err := eng.SendToStorage(ctx, book, 0, 0); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error for empty scan, got %v", err)
	}
}

func TestSendToStorageRecordsStorageVolume(t *testing.T) {
	eng, st := newEngine(t, nil)

	ctx := context.Background()
	client := testsupport.SeedClient(t, st, "Client")
	project := testsupport.SeedProject(t, st, "proj", client.ID)
	vault := testsupport.SeedStorage(t, st, "vault-a", "10.0.0.5")
	book := testsupport.SeedBook(t, st, project.ID, "ledger-025", stagecfg.StatusFor(stagecfg.KeyScanningStarted))

	if err := eng.SendToStorage(ctx, book, 96, vault.ID); err != nil {
		t.Fatalf("SendToStorage failed: %v", err)
	}
	if book.StorageID == nil || *book.StorageID != vault.ID {
		t.Fatal("expected the storage volume on the book")
	}

	stored, err := st.GetBook(ctx, book.ID)
	if err != nil {
		t.Fatalf("GetBook failed: %v", err)
	}
	if stored.StorageID == nil || *stored.StorageID != vault.ID {
		t.Fatal("expected the storage volume to persist")
	}

	other := testsupport.SeedBook(t, st, project.ID, "ledger-026", stagecfg.StatusFor(stagecfg.KeyScanningStarted))
	if err := eng.SendToStorage(ctx, other, 12, 999); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not-found for unknown storage, got %v", err)
	}
	if other.Status != stagecfg.StatusFor(stagecfg.KeyScanningStarted) {
		t.Fatalf("refused send must not move the book, got %q", other.Status)
	}
}

func TestSendToStorageMoveFailureCreatesNothing(t *testing.T) {
	mover := &failingMover{err: services.Wrap(services.ErrExternalService, "filemover", "move", "network down", nil)}
	eng, st := newEngine(t, mover)

	ctx := context.Background()
	client := testsupport.SeedClient(t, st, "Client")
	project := testsupport.SeedProject(t, st, "proj", client.ID)
	book := testsupport.SeedBook(t, st, project.ID, "ledger-013", stagecfg.StatusFor(stagecfg.KeyScanningStarted))

	if err := eng.SendToStorage(ctx, book, 80, 0); err == nil {
		t.Fatal("expected move failure to propagate")
	}

	stored, err := st.GetBook(ctx, book.ID)
	if err != nil {
		t.Fatalf("GetBook failed: %v", err)
	}
	if stored.Status != stagecfg.StatusFor(stagecfg.KeyScanningStarted) {
		t.Fatalf("status must not change, got %q", stored.Status)
	}
	count, err := st.DocumentCount(ctx, book.ID)
	if err != nil {
		t.Fatalf("DocumentCount failed: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected zero documents after failed move, got %d", count)
	}
}

func TestCompleteTaskRefusesErrorFlaggedPages(t *testing.T) {
	eng, st := newEngine(t, nil)

	ctx := context.Background()
	client := testsupport.SeedClient(t, st, "Client")
	project := testsupport.SeedProject(t, st, "proj", client.ID)
	book := testsupport.SeedBook(t, st, project.ID, "ledger-014", stagecfg.StatusFor(stagecfg.KeyCheckingStarted))

	if err := st.CreateDocuments(ctx, book, 3); err != nil {
		t.Fatalf("CreateDocuments failed: %v", err)
	}
	docs, err := st.DocumentsForBook(ctx, book.ID)
	if err != nil {
		t.Fatalf("DocumentsForBook failed: %v", err)
	}
	if err := st.SetDocumentFlag(ctx, docs[1].ID, store.FlagError, "smudged"); err != nil {
		t.Fatalf("SetDocumentFlag failed: %v", err)
	}

	err = eng.CompleteTask(ctx, book)
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected refusal for flagged pages, got %v", err)
	}
	stored, err := st.GetBook(ctx, book.ID)
	if err != nil {
		t.Fatalf("GetBook failed: %v", err)
	}
	if stored.Status != stagecfg.StatusFor(stagecfg.KeyCheckingStarted) {
		t.Fatalf("status must not change, got %q", stored.Status)
	}
}

func TestCompleteTaskAdvancesAndStampsEndTime(t *testing.T) {
	eng, st := newEngine(t, nil)

	ctx := context.Background()
	client := testsupport.SeedClient(t, st, "Client")
	project := testsupport.SeedProject(t, st, "proj", client.ID)
	book := testsupport.SeedBook(t, st, project.ID, "ledger-015", stagecfg.StatusFor(stagecfg.KeyIndexingStarted))

	if err := eng.CompleteTask(ctx, book); err != nil {
		t.Fatalf("CompleteTask failed: %v", err)
	}
	if book.Status != stagecfg.StatusFor(stagecfg.KeyToChecking) {
		t.Fatalf("expected advance to checking queue, got %q", book.Status)
	}
	if book.IndexEndTime == nil {
		t.Fatal("expected index end timestamp")
	}
}

func TestScanningLifecycleEndToEnd(t *testing.T) {
	eng, st := newEngine(t, nil)

	ctx := context.Background()
	client := testsupport.SeedClient(t, st, "Client")
	project := testsupport.SeedProject(t, st, "proj", client.ID)
	user := testsupport.SeedUser(t, st, "scanner-2", "scan_books")
	book := testsupport.SeedBook(t, st, project.ID, "ledger-016", "")

	if err := eng.Ship(ctx, book); err != nil {
		t.Fatalf("Ship failed: %v", err)
	}
	if err := eng.ConfirmReception(ctx, book); err != nil {
		t.Fatalf("ConfirmReception failed: %v", err)
	}
	if book.ReceivedAt == nil {
		t.Fatal("expected received timestamp")
	}
	if err := eng.MoveToNextStage(ctx, book); err != nil {
		t.Fatalf("advance to scan queue failed: %v", err)
	}
	if err := eng.StartTask(ctx, book, stagecfg.KeyToScan, user.ID); err != nil {
		t.Fatalf("StartTask failed: %v", err)
	}
	if err := eng.SendToStorage(ctx, book, 120, 0); err != nil {
		t.Fatalf("SendToStorage failed: %v", err)
	}

	docs, err := st.DocumentsForBook(ctx, book.ID)
	if err != nil {
		t.Fatalf("DocumentsForBook failed: %v", err)
	}
	if len(docs) != 120 {
		t.Fatalf("expected 120 documents, got %d", len(docs))
	}
	if docs[0].Status != stagecfg.StatusFor(stagecfg.KeyStorage) {
		t.Fatalf("documents should carry the storage status, got %q", docs[0].Status)
	}
}

func TestAdminOverrideClearsRewoundRoles(t *testing.T) {
	eng, st := newEngine(t, nil)

	ctx := context.Background()
	client := testsupport.SeedClient(t, st, "Client")
	project := testsupport.SeedProject(t, st, "proj", client.ID)
	user := testsupport.SeedUser(t, st, "indexer-1", "index_books")
	book := testsupport.SeedBook(t, st, project.ID, "ledger-017", stagecfg.StatusFor(stagecfg.KeyToIndexing))

	if err := eng.StartTask(ctx, book, stagecfg.KeyToIndexing, user.ID); err != nil {
		t.Fatalf("StartTask failed: %v", err)
	}
	if err := eng.AdminOverride(ctx, book, stagecfg.StatusFor(stagecfg.KeyToScan)); err != nil {
		t.Fatalf("AdminOverride failed: %v", err)
	}
	if book.Status != stagecfg.StatusFor(stagecfg.KeyToScan) {
		t.Fatalf("unexpected status %q", book.Status)
	}
	if book.IndexerUserID != nil || book.IndexStartTime != nil {
		t.Fatal("override should clear indexer state rewound past")
	}

	trail, err := st.AuditForBook(ctx, book.ID)
	if err != nil {
		t.Fatalf("AuditForBook failed: %v", err)
	}
	last := trail[len(trail)-1]
	if last.Event != store.EventAdminOverride {
		t.Fatalf("expected Admin Override entry, got %q", last.Event)
	}
}

func TestAdminOverrideRejectsUnknownTarget(t *testing.T) {
	eng, st := newEngine(t, nil)

	ctx := context.Background()
	client := testsupport.SeedClient(t, st, "Client")
	project := testsupport.SeedProject(t, st, "proj", client.ID)
	book := testsupport.SeedBook(t, st, project.ID, "ledger-018", "")

	err := eng.AdminOverride(ctx, book, "Somewhere Else")
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestMarkCorrectedAndResubmit(t *testing.T) {
	eng, st := newEngine(t, nil)

	ctx := context.Background()
	client := testsupport.SeedClient(t, st, "Client")
	project := testsupport.SeedProject(t, st, "proj", client.ID)
	book := testsupport.SeedBook(t, st, project.ID, "ledger-019", stagecfg.StatusFor(stagecfg.KeyClientRejected))
	book.RejectionReason = "cropped margins"
	if err := st.UpdateBook(ctx, book); err != nil {
		t.Fatalf("UpdateBook failed: %v", err)
	}

	if err := eng.MarkCorrected(ctx, book); err != nil {
		t.Fatalf("MarkCorrected failed: %v", err)
	}
	if book.RejectionReason != "" {
		t.Fatal("expected rejection reason to clear")
	}

	if err := eng.Resubmit(ctx, book, stagecfg.KeyToChecking); err != nil {
		t.Fatalf("Resubmit failed: %v", err)
	}
	if book.Status != stagecfg.StatusFor(stagecfg.KeyToChecking) {
		t.Fatalf("unexpected status %q", book.Status)
	}
}

func TestResubmitRejectsDisabledStage(t *testing.T) {
	eng, st := newEngine(t, nil)

	ctx := context.Background()
	client := testsupport.SeedClient(t, st, "Client")
	project := testsupport.SeedProject(t, st, "proj", client.ID,
		stagecfg.KeyPendingShipment, stagecfg.KeyToScan, stagecfg.KeyScanningStarted,
		stagecfg.KeyStorage, stagecfg.KeyCorrected)
	book := testsupport.SeedBook(t, st, project.ID, "ledger-020", stagecfg.StatusFor(stagecfg.KeyCorrected))

	err := eng.Resubmit(ctx, book, stagecfg.KeyToIndexing)
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error for disabled stage, got %v", err)
	}
}

func TestArchiveRequiresFinalized(t *testing.T) {
	eng, st := newEngine(t, nil)

	ctx := context.Background()
	client := testsupport.SeedClient(t, st, "Client")
	project := testsupport.SeedProject(t, st, "proj", client.ID)
	book := testsupport.SeedBook(t, st, project.ID, "ledger-021", stagecfg.StatusFinalized)

	if err := eng.Archive(ctx, book); err != nil {
		t.Fatalf("Archive failed: %v", err)
	}
	if book.Status != stagecfg.StatusArchived {
		t.Fatalf("unexpected status %q", book.Status)
	}

	other := testsupport.SeedBook(t, st, project.ID, "ledger-022", stagecfg.StatusFor(stagecfg.KeyStorage))
	if err := eng.Archive(ctx, other); !errors.Is(err, services.ErrConflict) {
		t.Fatalf("expected conflict for non-finalized book, got %v", err)
	}
}
