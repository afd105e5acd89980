package filemover_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"bindery/internal/filemover"
	"bindery/internal/services"
	"bindery/internal/stagecfg"
)

func TestMovePostsFolderTransition(t *testing.T) {
	var gotPath string
	var gotBody map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	mover := filemover.NewHTTPService(server.URL, server.Client())
	err := mover.Move(context.Background(), "ledger-001",
		stagecfg.StatusFor(stagecfg.KeyToScan),
		stagecfg.StatusFor(stagecfg.KeyScanningStarted))
	if err != nil {
		t.Fatalf("Move failed: %v", err)
	}
	if gotPath != "/api/workflow/move" {
		t.Fatalf("unexpected path %q", gotPath)
	}
	if gotBody["bookName"] != "ledger-001" {
		t.Fatalf("unexpected body: %#v", gotBody)
	}
}

func TestMoveSkipsFolderlessStages(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected for folder-less transition")
	}))
	defer server.Close()

	mover := filemover.NewHTTPService(server.URL, server.Client())
	// Pending Shipment has no stage folder.
	err := mover.Move(context.Background(), "ledger-001",
		stagecfg.StatusFor(stagecfg.KeyPendingShipment),
		stagecfg.StatusFor(stagecfg.KeyInTransit))
	if err != nil {
		t.Fatalf("Move failed: %v", err)
	}
}

func TestMoveSurfacesServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"error":"destination folder already exists"}`))
	}))
	defer server.Close()

	mover := filemover.NewHTTPService(server.URL, server.Client())
	err := mover.Move(context.Background(), "ledger-001",
		stagecfg.StatusFor(stagecfg.KeyToScan),
		stagecfg.StatusFor(stagecfg.KeyScanningStarted))
	if err == nil {
		t.Fatal("expected error from non-2xx response")
	}
	if !errors.Is(err, services.ErrExternalService) {
		t.Fatalf("expected external service marker, got %v", err)
	}
	if !strings.Contains(err.Error(), "destination folder already exists") {
		t.Fatalf("error should carry server message, got %v", err)
	}
}

func TestCountPages(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/scan/count-tifs" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"count":120}`))
	}))
	defer server.Close()

	mover := filemover.NewHTTPService(server.URL, server.Client())
	count, err := mover.CountPages(context.Background(), "ledger-001",
		stagecfg.StatusFor(stagecfg.KeyScanningStarted))
	if err != nil {
		t.Fatalf("CountPages failed: %v", err)
	}
	if count != 120 {
		t.Fatalf("expected 120 pages, got %d", count)
	}
}

func TestNopServiceAlwaysSucceeds(t *testing.T) {
	mover := filemover.NewNopService()
	if err := mover.Move(context.Background(), "b", "x", "y"); err != nil {
		t.Fatalf("nop Move failed: %v", err)
	}
	if err := mover.CopyPages(context.Background(), "b", "x", "y"); err != nil {
		t.Fatalf("nop CopyPages failed: %v", err)
	}
	if _, err := mover.CountPages(context.Background(), "b", "x"); err != nil {
		t.Fatalf("nop CountPages failed: %v", err)
	}
}
