package assignment_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"bindery/internal/assignment"
	"bindery/internal/localip"
	"bindery/internal/services"
	"bindery/internal/stagecfg"
	"bindery/internal/store"
	"bindery/internal/testsupport"
	"bindery/internal/workflow"
)

func newEngine(t *testing.T, ip string) (*assignment.Engine, *store.Store) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	wf := workflow.NewEngine(st, nil, nil, nil)
	return assignment.NewEngine(wf, localip.NewStaticResolver(ip), nil), st
}

func TestAssignUserChecksPermission(t *testing.T) {
	eng, st := newEngine(t, "")

	ctx := context.Background()
	client := testsupport.SeedClient(t, st, "Client")
	project := testsupport.SeedProject(t, st, "proj", client.ID)
	book := testsupport.SeedBook(t, st, project.ID, "ledger-001", stagecfg.StatusFor(stagecfg.KeyReceived))
	user := testsupport.SeedUser(t, st, "indexer-only", assignment.PermIndexBooks)

	err := eng.AssignUser(ctx, book, user, stagecfg.KeyToScan)
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected permission refusal, got %v", err)
	}

	stored, err := st.GetBook(ctx, book.ID)
	if err != nil {
		t.Fatalf("GetBook failed: %v", err)
	}
	if stored.Status != stagecfg.StatusFor(stagecfg.KeyReceived) || stored.ScannerUserID != nil {
		t.Fatal("refused assignment must not touch the book")
	}
}

func TestAssignUserQueuesBook(t *testing.T) {
	eng, st := newEngine(t, "")

	ctx := context.Background()
	client := testsupport.SeedClient(t, st, "Client")
	project := testsupport.SeedProject(t, st, "proj", client.ID)
	book := testsupport.SeedBook(t, st, project.ID, "ledger-002", stagecfg.StatusFor(stagecfg.KeyReceived))
	user := testsupport.SeedUser(t, st, "scanner-1", assignment.PermScanBooks)

	if err := eng.AssignUser(ctx, book, user, stagecfg.KeyToScan); err != nil {
		t.Fatalf("AssignUser failed: %v", err)
	}
	if book.Status != stagecfg.StatusFor(stagecfg.KeyToScan) {
		t.Fatalf("unexpected status %q", book.Status)
	}
	if book.ScannerUserID == nil || *book.ScannerUserID != user.ID {
		t.Fatal("expected scanner assignee")
	}

	trail, err := st.AuditForBook(ctx, book.ID)
	if err != nil {
		t.Fatalf("AuditForBook failed: %v", err)
	}
	var sawAssignment bool
	for _, entry := range trail {
		if entry.Event == store.EventTaskAssignment {
			sawAssignment = true
		}
	}
	if !sawAssignment {
		t.Fatal("expected a Task Assignment audit entry")
	}
}

func TestAssignUserRefusesBookNotFeedingQueue(t *testing.T) {
	eng, st := newEngine(t, "")

	ctx := context.Background()
	client := testsupport.SeedClient(t, st, "Client")
	project := testsupport.SeedProject(t, st, "proj", client.ID)
	book := testsupport.SeedBook(t, st, project.ID, "ledger-003", stagecfg.StatusFor(stagecfg.KeyToScan))
	user := testsupport.SeedUser(t, st, "scanner-9", assignment.PermScanBooks)

	// A book already in the queue does not feed it; assignment only draws
	// from the preceding enabled stage.
	err := eng.AssignUser(ctx, book, user, stagecfg.KeyToScan)
	if !errors.Is(err, services.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestStartTaskMovesQueuedBookToWork(t *testing.T) {
	eng, st := newEngine(t, "")

	ctx := context.Background()
	client := testsupport.SeedClient(t, st, "Client")
	project := testsupport.SeedProject(t, st, "proj", client.ID)
	book := testsupport.SeedBook(t, st, project.ID, "ledger-004", stagecfg.StatusFor(stagecfg.KeyToScan))
	user := testsupport.SeedUser(t, st, "scanner-4", assignment.PermScanBooks)

	if err := eng.StartTask(ctx, book, user, stagecfg.KeyToScan); err != nil {
		t.Fatalf("StartTask failed: %v", err)
	}
	if book.Status != stagecfg.StatusFor(stagecfg.KeyScanningStarted) {
		t.Fatalf("unexpected status %q", book.Status)
	}

	other := testsupport.SeedBook(t, st, project.ID, "ledger-005", stagecfg.StatusFor(stagecfg.KeyToScan))
	wrongRole := testsupport.SeedUser(t, st, "qc-only", assignment.PermQCBooks)
	if err := eng.StartTask(ctx, other, wrongRole, stagecfg.KeyToScan); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected permission refusal, got %v", err)
	}
}

func TestPullNextTaskDrawsFromFeedingStage(t *testing.T) {
	eng, st := newEngine(t, "10.0.0.9")

	ctx := context.Background()
	client := testsupport.SeedClient(t, st, "Client")
	project := testsupport.SeedProject(t, st, "proj", client.ID)
	user := testsupport.SeedUser(t, st, "indexer-5", assignment.PermIndexBooks)

	vault := testsupport.SeedStorage(t, st, "vault", "10.0.0.9")
	book := testsupport.SeedBook(t, st, project.ID, "ledger-006", stagecfg.StatusFor(stagecfg.KeyStorage))
	book.StorageID = &vault.ID
	if err := st.UpdateBook(ctx, book); err != nil {
		t.Fatalf("UpdateBook failed: %v", err)
	}

	pulled, err := eng.PullNextTask(ctx, stagecfg.KeyToIndexing, user)
	if err != nil {
		t.Fatalf("PullNextTask failed: %v", err)
	}
	if pulled.ID != book.ID {
		t.Fatalf("expected the Storage book, got %d", pulled.ID)
	}
	if pulled.Status != stagecfg.StatusFor(stagecfg.KeyToIndexing) {
		t.Fatalf("pulled book should enter the queue, got %q", pulled.Status)
	}
	if pulled.IndexerUserID == nil || *pulled.IndexerUserID != user.ID {
		t.Fatal("expected indexer assignee")
	}
}

func TestPullNextTaskFirstMatchWins(t *testing.T) {
	eng, st := newEngine(t, "")

	ctx := context.Background()
	client := testsupport.SeedClient(t, st, "Client")
	project := testsupport.SeedProject(t, st, "proj", client.ID)
	user := testsupport.SeedUser(t, st, "scanner-2", assignment.PermScanBooks)
	other := testsupport.SeedUser(t, st, "scanner-3", assignment.PermScanBooks)

	first := testsupport.SeedBook(t, st, project.ID, "ledger-010", stagecfg.StatusFor(stagecfg.KeyReceived))
	second := testsupport.SeedBook(t, st, project.ID, "ledger-011", stagecfg.StatusFor(stagecfg.KeyReceived))

	// First book already taken by someone else.
	first.SetAssignee(stagecfg.RoleScanner, &other.ID)
	if err := st.UpdateBook(ctx, first); err != nil {
		t.Fatalf("UpdateBook failed: %v", err)
	}

	pulled, err := eng.PullNextTask(ctx, stagecfg.KeyToScan, user)
	if err != nil {
		t.Fatalf("PullNextTask failed: %v", err)
	}
	if pulled.ID != second.ID {
		t.Fatalf("expected unassigned book %d, got %d", second.ID, pulled.ID)
	}
	if pulled.Status != stagecfg.StatusFor(stagecfg.KeyToScan) {
		t.Fatalf("pulled book should be queued, got %q", pulled.Status)
	}
	if pulled.ScannerUserID == nil || *pulled.ScannerUserID != user.ID {
		t.Fatal("expected scanner assignee")
	}
}

func TestPullNextTaskRespectsProjectOrder(t *testing.T) {
	eng, st := newEngine(t, "")

	ctx := context.Background()
	client := testsupport.SeedClient(t, st, "Client")
	projA := testsupport.SeedProject(t, st, "proj-a", client.ID)
	projB := testsupport.SeedProject(t, st, "proj-b", client.ID)
	bookA := testsupport.SeedBook(t, st, projA.ID, "a-1", stagecfg.StatusFor(stagecfg.KeyReceived))
	testsupport.SeedBook(t, st, projB.ID, "b-1", stagecfg.StatusFor(stagecfg.KeyReceived))

	user, err := st.CreateUser(ctx, &store.User{
		Name:        "scoped-scanner",
		Role:        "operator",
		Permissions: []string{assignment.PermScanBooks},
		ProjectIDs:  []int64{projB.ID, projA.ID},
	})
	if err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}

	pulled, err := eng.PullNextTask(ctx, stagecfg.KeyToScan, user)
	if err != nil {
		t.Fatalf("PullNextTask failed: %v", err)
	}
	if pulled.ProjectID != projB.ID {
		t.Fatalf("expected a project-B book first, got project %d", pulled.ProjectID)
	}
	_ = bookA
}

func TestPullNextTaskFollowsProjectWorkflow(t *testing.T) {
	eng, st := newEngine(t, "10.0.0.9")

	ctx := context.Background()
	client := testsupport.SeedClient(t, st, "Client")
	// Indexing disabled: checking draws straight from Storage.
	project := testsupport.SeedProject(t, st, "no-indexing", client.ID,
		stagecfg.KeyPendingShipment, stagecfg.KeyToScan, stagecfg.KeyScanningStarted,
		stagecfg.KeyStorage, stagecfg.KeyToChecking, stagecfg.KeyCheckingStarted,
		stagecfg.KeyReadyForProcessing)
	user := testsupport.SeedUser(t, st, "qc-1", assignment.PermQCBooks)

	vault := testsupport.SeedStorage(t, st, "vault", "10.0.0.9")
	book := testsupport.SeedBook(t, st, project.ID, "ledger-030", stagecfg.StatusFor(stagecfg.KeyStorage))
	book.StorageID = &vault.ID
	if err := st.UpdateBook(ctx, book); err != nil {
		t.Fatalf("UpdateBook failed: %v", err)
	}

	pulled, err := eng.PullNextTask(ctx, stagecfg.KeyToChecking, user)
	if err != nil {
		t.Fatalf("PullNextTask failed: %v", err)
	}
	if pulled.Status != stagecfg.StatusFor(stagecfg.KeyToChecking) {
		t.Fatalf("expected To Checking, got %q", pulled.Status)
	}
}

func TestPullNextTaskSkipsProjectsWithoutTheQueue(t *testing.T) {
	eng, st := newEngine(t, "10.0.0.9")

	ctx := context.Background()
	client := testsupport.SeedClient(t, st, "Client")
	project := testsupport.SeedProject(t, st, "scan-only", client.ID,
		stagecfg.KeyPendingShipment, stagecfg.KeyToScan, stagecfg.KeyScanningStarted,
		stagecfg.KeyStorage)
	user := testsupport.SeedUser(t, st, "indexer-6", assignment.PermIndexBooks)

	vault := testsupport.SeedStorage(t, st, "vault", "10.0.0.9")
	book := testsupport.SeedBook(t, st, project.ID, "ledger-031", stagecfg.StatusFor(stagecfg.KeyStorage))
	book.StorageID = &vault.ID
	if err := st.UpdateBook(ctx, book); err != nil {
		t.Fatalf("UpdateBook failed: %v", err)
	}

	_, err := eng.PullNextTask(ctx, stagecfg.KeyToIndexing, user)
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not-found for disabled queue, got %v", err)
	}
}

func TestPullNextTaskEnforcesLocality(t *testing.T) {
	eng, st := newEngine(t, "10.0.0.9")

	ctx := context.Background()
	client := testsupport.SeedClient(t, st, "Client")
	project := testsupport.SeedProject(t, st, "proj", client.ID)
	user := testsupport.SeedUser(t, st, "indexer-1", assignment.PermIndexBooks)

	near := testsupport.SeedStorage(t, st, "near", "10.0.0.9")
	far := testsupport.SeedStorage(t, st, "far", "10.0.0.77")

	remote := testsupport.SeedBook(t, st, project.ID, "remote", stagecfg.StatusFor(stagecfg.KeyStorage))
	remote.StorageID = &far.ID
	if err := st.UpdateBook(ctx, remote); err != nil {
		t.Fatalf("UpdateBook failed: %v", err)
	}
	local := testsupport.SeedBook(t, st, project.ID, "local", stagecfg.StatusFor(stagecfg.KeyStorage))
	local.StorageID = &near.ID
	if err := st.UpdateBook(ctx, local); err != nil {
		t.Fatalf("UpdateBook failed: %v", err)
	}

	pulled, err := eng.PullNextTask(ctx, stagecfg.KeyToIndexing, user)
	if err != nil {
		t.Fatalf("PullNextTask failed: %v", err)
	}
	if pulled.ID != local.ID {
		t.Fatalf("expected the locally stored book, got %d", pulled.ID)
	}
}

func TestPullNextTaskDistinguishesEmptyFromUnreachable(t *testing.T) {
	eng, st := newEngine(t, "10.0.0.9")

	ctx := context.Background()
	client := testsupport.SeedClient(t, st, "Client")
	project := testsupport.SeedProject(t, st, "proj", client.ID)
	user := testsupport.SeedUser(t, st, "indexer-2", assignment.PermIndexBooks)

	_, err := eng.PullNextTask(ctx, stagecfg.KeyToIndexing, user)
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not-found, got %v", err)
	}
	if !strings.Contains(err.Error(), "nothing to pull") {
		t.Fatalf("expected empty-queue wording, got %v", err)
	}

	far := testsupport.SeedStorage(t, st, "far", "10.0.0.77")
	book := testsupport.SeedBook(t, st, project.ID, "remote", stagecfg.StatusFor(stagecfg.KeyStorage))
	book.StorageID = &far.ID
	if err := st.UpdateBook(ctx, book); err != nil {
		t.Fatalf("UpdateBook failed: %v", err)
	}

	_, err = eng.PullNextTask(ctx, stagecfg.KeyToIndexing, user)
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not-found, got %v", err)
	}
	if !strings.Contains(err.Error(), "reachable") {
		t.Fatalf("expected locality wording, got %v", err)
	}
}
