package logging

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func newPair(level slog.Level) (*bytes.Buffer, *bytes.Buffer, *slog.Logger) {
	var console, file bytes.Buffer
	inner := slog.NewTextHandler(&console, &slog.HandlerOptions{Level: slog.LevelInfo})
	secondary := slog.NewTextHandler(&file, &slog.HandlerOptions{Level: slog.LevelDebug})
	return &console, &file, slog.New(NewTeeHandler(inner, secondary, level))
}

func TestTeeHandler_Threshold(t *testing.T) {
	tests := []struct {
		name        string
		log         func(*slog.Logger)
		wantConsole bool
		wantFile    bool
	}{
		{"error", func(l *slog.Logger) { l.Error("insert failed") }, true, true},
		{"warn", func(l *slog.Logger) { l.Warn("lookup timed out") }, true, true},
		{"info below threshold", func(l *slog.Logger) { l.Info("visit not tracked") }, true, false},
		{"debug only to nobody", func(l *slog.Logger) { l.Debug("visit tracked") }, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			console, file, logger := newPair(slog.LevelWarn)
			tt.log(logger)

			if got := console.Len() > 0; got != tt.wantConsole {
				t.Errorf("console written = %v, want %v", got, tt.wantConsole)
			}
			if got := file.Len() > 0; got != tt.wantFile {
				t.Errorf("file written = %v, want %v", got, tt.wantFile)
			}
		})
	}
}

func TestTeeHandler_SecondaryBelowConsoleLevel(t *testing.T) {
	console, file, logger := newPair(slog.LevelDebug)

	logger.Debug("visit tracked", "id", 7)

	if console.Len() != 0 {
		t.Errorf("console should not get debug records: %q", console.String())
	}
	if !strings.Contains(file.String(), "visit tracked") || !strings.Contains(file.String(), "id=7") {
		t.Errorf("file missing debug record: %q", file.String())
	}
}

func TestTeeHandler_WithAttrsAndGroup(t *testing.T) {
	console, file, logger := newPair(slog.LevelInfo)

	logger.With("component", "tracker").WithGroup("visit").Info("tracked", "path", "/")

	for name, buf := range map[string]*bytes.Buffer{"console": console, "file": file} {
		out := buf.String()
		if !strings.Contains(out, "component=tracker") {
			t.Errorf("%s missing attr: %q", name, out)
		}
		if !strings.Contains(out, "visit.path=/") {
			t.Errorf("%s missing grouped attr: %q", name, out)
		}
	}
}

func TestTeeHandler_NilSecondary(t *testing.T) {
	var console bytes.Buffer
	h := NewTeeHandler(slog.NewTextHandler(&console, nil), nil, slog.LevelWarn)
	logger := slog.New(h.WithAttrs([]slog.Attr{slog.String("a", "b")}).WithGroup("g"))

	logger.Error("boom")

	if !strings.Contains(console.String(), "boom") {
		t.Errorf("console missing record: %q", console.String())
	}
	if h.Enabled(context.Background(), slog.LevelDebug) {
		t.Error("debug should not be enabled")
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{" error ", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNew_WritesDiagnosticFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "qlyx_log.txt")
	var stdout bytes.Buffer

	logger, closer, err := New(Options{Level: "info", File: path, FileLevel: "debug", Stdout: &stdout})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	logger.Debug("diagnostic only")
	logger.Info("both")
	if err := closer.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading log: %v", err)
	}
	if !strings.Contains(string(data), "diagnostic only") || !strings.Contains(string(data), "both") {
		t.Errorf("unexpected file content: %q", data)
	}
	if strings.Contains(stdout.String(), "diagnostic only") {
		t.Errorf("stdout got debug record: %q", stdout.String())
	}
}

func TestNew_NoFile(t *testing.T) {
	var stdout bytes.Buffer
	logger, closer, err := New(Options{Level: "warn", Stdout: &stdout})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer func() { _ = closer.Close() }()

	logger.Info("hidden")
	logger.Warn("shown")

	if strings.Contains(stdout.String(), "hidden") || !strings.Contains(stdout.String(), "shown") {
		t.Errorf("unexpected output: %q", stdout.String())
	}
}
