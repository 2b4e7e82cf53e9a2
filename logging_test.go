package flowz

import (
	"errors"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestSetLogger(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	restore := SetLogger(zap.New(core).Sugar())
	defer restore()

	OnErrorDropped(errors.New("late failure"))

	entries := logs.FilterMessage("error dropped").All()
	if len(entries) != 1 {
		t.Fatalf("expected one log entry, got %d", len(entries))
	}
	if entries[0].Level != zapcore.WarnLevel {
		t.Errorf("expected warn level, got %v", entries[0].Level)
	}
	if got := entries[0].ContextMap()["error"]; got != "late failure" {
		t.Errorf("unexpected error field %v", got)
	}
}

func TestSetLoggerNil(t *testing.T) {
	restore := SetLogger(nil)
	defer restore()

	if Logger() == nil {
		t.Fatal("a nil logger should install a no-op logger")
	}
	Logger().Infow("discarded")
}

func TestNewLogger(t *testing.T) {
	t.Setenv("FLOWZ_DEBUG", "true")
	l := NewLogger()
	if !l.Desugar().Core().Enabled(zapcore.DebugLevel) {
		t.Error("debug mode should enable debug logging")
	}
}
