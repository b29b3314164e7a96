package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestNewLevels(t *testing.T) {
	tests := []struct {
		name   string
		level  string
		enable slog.Level
	}{
		{"debug level", "debug", slog.LevelDebug},
		{"warn level", "warn", slog.LevelWarn},
		{"warning alias", "WARNING", slog.LevelWarn},
		{"default info", "", slog.LevelInfo},
	}

	ctx := context.Background()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger := New(tt.level)
			if !logger.Enabled(ctx, tt.enable) {
				t.Fatalf("expected level %s to be enabled", tt.enable)
			}
		})
	}
}

func TestDefaultLogger(t *testing.T) {
	logger := Default()
	ctx := context.Background()
	if !logger.Enabled(ctx, slog.LevelInfo) {
		t.Error("Default() should enable info level")
	}
	if logger.Enabled(ctx, slog.LevelDebug) {
		t.Error("Default() should not enable debug level")
	}
	if logger == Default() {
		t.Error("Default() returned the same instance twice")
	}
}

func TestJSONOutputCarriesWithAttributes(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithOptions(Options{Level: "info", Output: &buf}).With("session_id", "s-1")
	logger.Info("slot fetched", "date", "2026-10-17")

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("decode log line: %v (%s)", err, buf.String())
	}
	if record["session_id"] != "s-1" {
		t.Fatalf("session_id = %v, want s-1", record["session_id"])
	}
	if record["msg"] != "slot fetched" {
		t.Fatalf("msg = %v", record["msg"])
	}
}

func TestTextFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithOptions(Options{Format: "text", Output: &buf})
	logger.Warn("coupon rejected", "code", "SAVE10")
	if !strings.Contains(buf.String(), "code=SAVE10") {
		t.Fatalf("expected text key=value output, got %q", buf.String())
	}
}

func TestDiscardDropsRecords(t *testing.T) {
	logger := Discard()
	if logger.Enabled(context.Background(), slog.LevelInfo) {
		t.Fatal("discard logger should not enable info")
	}
	logger.Error("ignored")
}
