package logging

import (
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewLoggerRejectsUnknownLevel(t *testing.T) {
	if _, err := NewLogger(Options{Level: "chatty"}); err == nil {
		t.Fatal("expected error for unknown level")
	}
}

func TestNewLoggerWithFileSink(t *testing.T) {
	logger, err := NewLogger(Options{Level: "debug", File: filepath.Join(t.TempDir(), "app.log")})
	if err != nil {
		t.Fatalf("expected logger, got error: %v", err)
	}
	logger.Debug("hello")
	_ = logger.Sync()
}

func TestWithOperationAddsFields(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	WithOperation(zap.New(core), "scoring.score_image", "req-1").Info("scored")

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["operation"] != "scoring.score_image" {
		t.Fatalf("unexpected operation field: %v", fields["operation"])
	}
	if fields["request_id"] != "req-1" {
		t.Fatalf("unexpected request id field: %v", fields["request_id"])
	}
}

func TestOperationErrorUnwraps(t *testing.T) {
	base := errors.New("boom")
	err := NewOperationError("compositor.make_card", "req-9", base)
	if !errors.Is(err, base) {
		t.Fatal("expected errors.Is to see wrapped error")
	}
	if got := err.Error(); got != "compositor.make_card (request_id=req-9): boom" {
		t.Fatalf("unexpected message: %s", got)
	}
	if NewOperationError("op", "", nil) != nil {
		t.Fatal("expected nil for nil error")
	}
	wrapped := fmt.Errorf("outer: %w", NewOperationError("op", "", base))
	var opErr *OperationError
	if !errors.As(wrapped, &opErr) || opErr.Operation != "op" {
		t.Fatalf("expected OperationError, got %v", wrapped)
	}
}

func TestOperationOf(t *testing.T) {
	err := fmt.Errorf("handler: %w", NewOperationError("usecase.make_card", "req", errors.New("x")))
	if got := OperationOf(err); got != "usecase.make_card" {
		t.Fatalf("unexpected operation: %q", got)
	}
	if got := OperationOf(errors.New("plain")); got != "" {
		t.Fatalf("expected empty operation, got %q", got)
	}
}
