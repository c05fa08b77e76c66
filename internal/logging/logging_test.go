package logging

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewWritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "manifold.log")

	logger, err := New(Config{Level: "debug", Format: "json", OutputPath: path})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	logger.Debug("hello", ID("100"))
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(data), `"id":"100"`) {
		t.Errorf("log output missing id field: %s", data)
	}
}

func TestNewUnknownLevelFallsBackToInfo(t *testing.T) {
	path := filepath.Join(t.TempDir(), "manifold.log")

	logger, err := New(Config{Level: "chatty", Format: "json", OutputPath: path})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	if logger.Core().Enabled(zapcore.DebugLevel) {
		t.Error("debug enabled for unknown level")
	}
	if !logger.Core().Enabled(zapcore.InfoLevel) {
		t.Error("info disabled for unknown level")
	}
}

func TestForOperation(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	base := zap.New(core)

	ForOperation(base, "install_base", "100").Info("done", Err(errors.New("boom")))
	ForOperation(base, "install_base", "100").Info("done")

	entries := logs.All()
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}

	first := entries[0].ContextMap()
	if first["op"] != "install_base" || first["id"] != "100" {
		t.Errorf("context = %v", first)
	}
	opID, _ := first["op_id"].(string)
	if opID == "" {
		t.Fatal("op_id missing")
	}
	if second := entries[1].ContextMap()["op_id"]; second == opID {
		t.Error("op_id reused across operations")
	}
}

func TestForOperationNilBase(t *testing.T) {
	ForOperation(nil, "list", "1").Info("discarded")
}
