package launcher_test

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"bindery/internal/config"
	"bindery/internal/launcher"
)

func TestDisabledLauncherIsNop(t *testing.T) {
	cfg := config.Default()
	cfg.Launcher.Enabled = false

	svc := launcher.NewConfiguredService(&cfg, nil)
	// Must not panic or block.
	svc.LaunchScanCheck(context.Background(), launcher.ScanCheckContext{BookID: 1})
	svc.LaunchIndexing(context.Background(), launcher.IndexingContext{BookID: 1})
	svc.LaunchProcessing(context.Background(), launcher.ProcessingContext{BatchID: 1})
}

func TestLaunchLogsProtocolURL(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	cfg := config.Default()
	cfg.Launcher.Enabled = true
	cfg.Launcher.Command = ""

	svc := launcher.NewConfiguredService(&cfg, logger)
	svc.LaunchIndexing(context.Background(), launcher.IndexingContext{
		BookID:    7,
		BookName:  "ledger-007",
		UserID:    3,
		StorageIP: "10.0.0.5",
	})

	out := buf.String()
	if !strings.Contains(out, "rfs-indexing-app://") {
		t.Fatalf("expected protocol URL in log, got %q", out)
	}
	if !strings.Contains(out, "bookId=7") || !strings.Contains(out, "storageIp=10.0.0.5") {
		t.Fatalf("expected launch context in URL, got %q", out)
	}
}
