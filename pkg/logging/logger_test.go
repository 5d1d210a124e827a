package logging

import (
	"context"
	"log/slog"
	"testing"
)

func TestNewParsesLevels(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		level    string
		enabled  slog.Level
		disabled slog.Level
	}{
		{"debug", slog.LevelDebug, slog.LevelDebug - 4},
		{"warn", slog.LevelWarn, slog.LevelInfo},
		{"WARNING", slog.LevelWarn, slog.LevelInfo},
		{"error", slog.LevelError, slog.LevelWarn},
		{"", slog.LevelInfo, slog.LevelDebug},
		{"nonsense", slog.LevelInfo, slog.LevelDebug},
	}
	for _, tt := range tests {
		logger := New(tt.level)
		if !logger.Enabled(ctx, tt.enabled) {
			t.Errorf("level %q: expected %s enabled", tt.level, tt.enabled)
		}
		if logger.Enabled(ctx, tt.disabled) {
			t.Errorf("level %q: expected %s disabled", tt.level, tt.disabled)
		}
	}
}

func TestDefaultIsInfo(t *testing.T) {
	logger := Default()
	if logger.Logger == nil {
		t.Fatal("Default() returned a nil slog.Logger")
	}
	ctx := context.Background()
	if !logger.Enabled(ctx, slog.LevelInfo) || logger.Enabled(ctx, slog.LevelDebug) {
		t.Error("Default() should enable info and suppress debug")
	}
}

func TestWithReturnsWrappedLogger(t *testing.T) {
	logger := Default().With("component", "test")
	if logger == nil || logger.Logger == nil {
		t.Fatal("With() must return a usable *Logger")
	}
	logger.Info("still works")
}
