package logger

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewModes(t *testing.T) {
	for _, mode := range []string{"development", "prod", "production", ""} {
		l, err := New(mode)
		if err != nil {
			t.Fatalf("mode %q: %v", mode, err)
		}
		if l.SugaredLogger == nil {
			t.Fatalf("mode %q: expected sugared logger", mode)
		}
	}
}

func TestLoggerWritesKeyValues(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := NewWithZap(zap.New(core)).Named("autosave").With("store", "editor")

	l.Debug("scheduled", "wait_ms", 3000)
	l.Info("saved", "project", "p1")
	l.Warn("save failed", "error", "boom")
	l.Error("aliased block", "id", "b1")

	entries := logs.All()
	if len(entries) != 4 {
		t.Fatalf("expected 4 entries, got %d", len(entries))
	}
	if entries[0].LoggerName != "autosave" {
		t.Errorf("expected logger name autosave, got %q", entries[0].LoggerName)
	}
	if entries[2].Level != zapcore.WarnLevel {
		t.Errorf("expected warn level, got %s", entries[2].Level)
	}
	ctx := entries[1].ContextMap()
	if ctx["project"] != "p1" || ctx["store"] != "editor" {
		t.Errorf("unexpected context %v", ctx)
	}
}

func TestNop(t *testing.T) {
	l := Nop()
	l.Info("dropped")
	l.Sync()
}
