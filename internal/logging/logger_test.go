package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"bindery/internal/services"
)

func TestConsoleHandlerRendersComponentAndAttrs(t *testing.T) {
	var buf bytes.Buffer
	levelVar := new(slog.LevelVar)
	logger := slog.New(newConsoleHandler(&buf, levelVar))

	logger = NewComponentLogger(logger, "workflow")
	logger.Info("transition committed", String("book", "B-001"), Int64(FieldBookID, 7))

	line := buf.String()
	for _, fragment := range []string{"INFO", "workflow:", "transition committed", "book=B-001", "book_id=7"} {
		if !strings.Contains(line, fragment) {
			t.Fatalf("missing %q in output %q", fragment, line)
		}
	}
}

func TestConsoleHandlerQuotesValuesWithSpaces(t *testing.T) {
	var buf bytes.Buffer
	levelVar := new(slog.LevelVar)
	logger := slog.New(newConsoleHandler(&buf, levelVar))

	logger.Info("event", String("status", "Scanning Started"))
	if !strings.Contains(buf.String(), `status="Scanning Started"`) {
		t.Fatalf("expected quoted status, got %q", buf.String())
	}
}

func TestWithContextStampsFields(t *testing.T) {
	var buf bytes.Buffer
	levelVar := new(slog.LevelVar)
	logger := slog.New(newConsoleHandler(&buf, levelVar))

	ctx := services.WithBookID(context.Background(), 42)
	ctx = services.WithStage(ctx, "to-indexing")
	ctx = services.WithRequestID(ctx, "req-9")

	WithContext(ctx, logger).Info("pull attempted")

	line := buf.String()
	for _, fragment := range []string{"book_id=42", "stage=to-indexing", "correlation_id=req-9"} {
		if !strings.Contains(line, fragment) {
			t.Fatalf("missing %q in %q", fragment, line)
		}
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := New(Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unknown format")
	}
}

func TestNopLoggerDiscards(t *testing.T) {
	logger := NewNop()
	logger.Error("should not panic", Error(nil))
}
