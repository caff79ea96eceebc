package logger

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewLogger_WritesLevelFiles(t *testing.T) {
	dir := t.TempDir()

	l, err := NewLogger(dir, false)
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}
	defer l.Close()

	l.Info("scanned %s", "4006381333931")
	l.Warning("queue full")
	l.Error("device lost: %v", os.ErrClosed)

	tests := []struct {
		file string
		want string
	}{
		{InfoFile, "scanned 4006381333931"},
		{WarningFile, "queue full"},
		{ErrorFile, "device lost"},
	}

	for _, tt := range tests {
		data, err := os.ReadFile(filepath.Join(dir, tt.file))
		if err != nil {
			t.Fatalf("read %s: %v", tt.file, err)
		}
		if !strings.Contains(string(data), tt.want) {
			t.Errorf("%s = %q, expected to contain %q", tt.file, data, tt.want)
		}
	}
}

func TestCleanLogs(t *testing.T) {
	dir := t.TempDir()

	l, err := NewLogger(dir, false)
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}
	defer l.Close()

	l.Info("before clean")
	if err := l.CleanLogs(InfoFile); err != nil {
		t.Fatalf("CleanLogs failed: %v", err)
	}
	l.Info("after clean")

	data, err := os.ReadFile(filepath.Join(dir, InfoFile))
	if err != nil {
		t.Fatalf("read info log: %v", err)
	}
	if strings.Contains(string(data), "before clean") {
		t.Errorf("expected truncated log, got %q", data)
	}
	if !strings.Contains(string(data), "after clean") {
		t.Errorf("expected new entries after truncation, got %q", data)
	}
}

func TestCleanLogs_RejectsUnknownFile(t *testing.T) {
	l, err := NewLogger(t.TempDir(), false)
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}
	defer l.Close()

	if err := l.CleanLogs("../../etc/passwd"); err == nil {
		t.Error("expected error for unknown log file")
	}
}

func TestNewWithWriter(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf)

	l.Debug("frame %d", 7)
	l.Info("hello")

	out := buf.String()
	if !strings.Contains(out, "frame 7") || !strings.Contains(out, "hello") {
		t.Errorf("unexpected output: %q", out)
	}
}
