package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]zapcore.Level{
		"":      zapcore.InfoLevel,
		"debug": zapcore.DebugLevel,
		"WARN":  zapcore.WarnLevel,
		"error": zapcore.ErrorLevel,
	}
	for input, expect := range cases {
		lvl, err := ParseLevel(input)
		if err != nil {
			t.Fatalf("expected level %q to parse: %v", input, err)
		}
		if lvl != expect {
			t.Fatalf("expected %s, got %s", expect, lvl)
		}
	}
	if _, err := ParseLevel("loud"); err == nil {
		t.Fatalf("expected invalid level to error")
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := New("info", "xml"); err == nil {
		t.Fatalf("expected unknown format to error")
	}
}

func TestNewFileWritesJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "feedtrack.log")
	logger, err := NewFile("info", path)
	if err != nil {
		t.Fatalf("logger error: %v", err)
	}
	logger.Info("session started")
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(data), `"msg":"session started"`) {
		t.Fatalf("expected json log line, got %s", data)
	}
}
