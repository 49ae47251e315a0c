package config

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
)

func TestSetupLoggerWithWriters(t *testing.T) {
	var stderr, file bytes.Buffer
	logger := SetupLoggerWithWriters(&stderr, &file, slog.LevelInfo)

	logger.Info("hello", "key", "value")

	if !strings.Contains(stderr.String(), "hello") {
		t.Errorf("stderr output missing message: %q", stderr.String())
	}

	var entry map[string]any
	if err := json.Unmarshal(file.Bytes(), &entry); err != nil {
		t.Fatalf("file output is not JSON: %v", err)
	}
	if entry["msg"] != "hello" || entry["key"] != "value" {
		t.Errorf("file entry = %v", entry)
	}
}

func TestSetupLoggerWithWriters_LevelFilter(t *testing.T) {
	var stderr, file bytes.Buffer
	logger := SetupLoggerWithWriters(&stderr, &file, slog.LevelWarn)

	logger.Info("quiet")

	if stderr.Len() != 0 || file.Len() != 0 {
		t.Errorf("info logged below warn level: stderr=%q file=%q", stderr.String(), file.String())
	}
}

func TestSetupLogger_WritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "confab.log")

	logger, cleanup := SetupLogger(path, slog.LevelInfo)
	logger.Info("started")
	if err := cleanup(); err != nil {
		t.Fatalf("cleanup() error = %v", err)
	}
}

func TestSetupLogger_FallbackOnBadPath(t *testing.T) {
	logger, cleanup := SetupLogger(filepath.Join(t.TempDir(), "missing", "confab.log"), slog.LevelInfo)
	if logger == nil {
		t.Fatal("logger is nil")
	}
	if err := cleanup(); err != nil {
		t.Errorf("cleanup() error = %v", err)
	}
}
