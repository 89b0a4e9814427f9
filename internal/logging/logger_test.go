package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"repack/internal/services"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"info":    slog.LevelInfo,
		"WARN":    slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"unknown": slog.LevelInfo,
	}
	for input, want := range cases {
		if got := parseLevel(input); got != want {
			t.Errorf("parseLevel(%q) = %v, want %v", input, got, want)
		}
	}
}

func TestPrettyHandlerOutput(t *testing.T) {
	var buf bytes.Buffer
	levelVar := new(slog.LevelVar)
	levelVar.Set(slog.LevelInfo)

	logger := slog.New(newPrettyHandler(&buf, levelVar, false))
	logger = NewComponentLogger(logger, "worker")
	logger.Info("job finished", String("title", "sample set"), Int("files", 12))

	line := buf.String()
	if !strings.Contains(line, "INFO worker: job finished") {
		t.Fatalf("unexpected line: %q", line)
	}
	if !strings.Contains(line, `title="sample set"`) {
		t.Errorf("expected quoted title attr, got %q", line)
	}
	if !strings.Contains(line, "files=12") {
		t.Errorf("expected files attr, got %q", line)
	}
}

func TestPrettyHandlerFlattensGroups(t *testing.T) {
	var buf bytes.Buffer
	levelVar := new(slog.LevelVar)
	levelVar.Set(slog.LevelDebug)

	logger := slog.New(newPrettyHandler(&buf, levelVar, false))
	logger.Info("uploaded", Group("batch", Int("index", 2), Int("count", 40)))

	line := buf.String()
	if !strings.Contains(line, "batch.index=2") || !strings.Contains(line, "batch.count=40") {
		t.Fatalf("expected flattened group keys, got %q", line)
	}
}

func TestPrettyHandlerRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	levelVar := new(slog.LevelVar)
	levelVar.Set(slog.LevelWarn)

	logger := slog.New(newPrettyHandler(&buf, levelVar, false))
	logger.Info("hidden")
	logger.Warn("shown")

	line := buf.String()
	if strings.Contains(line, "hidden") {
		t.Errorf("info record should be suppressed, got %q", line)
	}
	if !strings.Contains(line, "shown") {
		t.Errorf("warn record missing, got %q", line)
	}
}

func TestJSONHandlerFieldNames(t *testing.T) {
	var buf bytes.Buffer
	levelVar := new(slog.LevelVar)
	levelVar.Set(slog.LevelInfo)

	logger := slog.New(newJSONHandler(&buf, levelVar, false))
	logger.Error("upload failed", String("stage", "upload"))

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("unmarshal record: %v", err)
	}
	if record["msg"] != "upload failed" {
		t.Errorf("msg = %v", record["msg"])
	}
	if record["level"] != "error" {
		t.Errorf("level = %v", record["level"])
	}
	if _, ok := record["ts"]; !ok {
		t.Errorf("missing ts field in %v", record)
	}
	if record["stage"] != "upload" {
		t.Errorf("stage = %v", record["stage"])
	}
}

func TestNewWritesToFile(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "nested", "repack.log")

	logger, err := New(Options{
		Level:            "info",
		Format:           "json",
		OutputPaths:      []string{logPath},
		ErrorOutputPaths: []string{logPath},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	logger.Info("boot")

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), "boot") {
		t.Fatalf("log file missing record: %q", string(data))
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := New(Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestWithContextAttachesJobMetadata(t *testing.T) {
	var buf bytes.Buffer
	levelVar := new(slog.LevelVar)
	levelVar.Set(slog.LevelInfo)

	ctx := services.WithJobID(context.Background(), 7)
	ctx = services.WithStage(ctx, "extract")
	ctx = services.WithRequestID(ctx, "abc-123")

	logger := slog.New(newPrettyHandler(&buf, levelVar, false))
	WithContext(ctx, logger).Info("working")

	line := buf.String()
	for _, want := range []string{"job_id=7", "stage=extract", "correlation_id=abc-123"} {
		if !strings.Contains(line, want) {
			t.Errorf("missing %q in %q", want, line)
		}
	}
}

func TestNewNopDiscards(t *testing.T) {
	logger := NewNop()
	logger.Error("ignored", Error(os.ErrClosed))
}

func TestNeedsQuotes(t *testing.T) {
	cases := map[string]bool{
		"plain":     false,
		"two words": true,
		"":          true,
		"a=b":       true,
		`say "hi"`:  true,
		"path/ok":   false,
	}
	for input, want := range cases {
		if got := needsQuotes(input); got != want {
			t.Errorf("needsQuotes(%q) = %v, want %v", input, got, want)
		}
	}
}
