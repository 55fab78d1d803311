package logging

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestSetupWithWriter(t *testing.T) {
	var buf bytes.Buffer
	SetupWithWriter(&buf, slog.LevelWarn)

	slog.Info("below threshold")
	slog.Warn("snapshot stale", "account", "acc-1")

	out := buf.String()
	if strings.Contains(out, "below threshold") {
		t.Errorf("info record passed a warn-level handler:\n%s", out)
	}
	if !strings.Contains(out, "snapshot stale") || !strings.Contains(out, "acc-1") {
		t.Errorf("warn record missing message or attrs:\n%s", out)
	}
}

func TestLevelFromEnv(t *testing.T) {
	tests := []struct {
		value string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"WARN", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"nonsense", slog.LevelInfo},
	}
	for _, tt := range tests {
		t.Setenv("LOG_LEVEL", tt.value)
		if got := levelFromEnv(); got != tt.want {
			t.Errorf("levelFromEnv() with %q = %v, want %v", tt.value, got, tt.want)
		}
	}
}
