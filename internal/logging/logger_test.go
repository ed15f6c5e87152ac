package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLevelString(t *testing.T) {
	tests := []struct {
		level    Level
		expected string
	}{
		{DEBUG, "DEBUG"},
		{INFO, "INFO"},
		{WARN, "WARN"},
		{ERROR, "ERROR"},
		{Level(999), "UNKNOWN"},
	}

	for _, tt := range tests {
		if got := tt.level.String(); got != tt.expected {
			t.Errorf("Level.String() = %v, want %v", got, tt.expected)
		}
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected Level
	}{
		{"debug", DEBUG},
		{"DEBUG", DEBUG},
		{"info", INFO},
		{"warn", WARN},
		{"error", ERROR},
		{"invalid", INFO},
		{"", INFO},
	}

	for _, tt := range tests {
		if got := ParseLevel(tt.input); got != tt.expected {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.expected)
		}
	}
}

func TestLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger("auth", WARN, &buf)

	logger.Debug("debug message")
	logger.Info("info message")
	logger.Warn("warn message")
	logger.Error("error message")

	output := buf.String()
	if strings.Contains(output, "debug message") || strings.Contains(output, "info message") {
		t.Errorf("Messages below WARN should be filtered, got: %s", output)
	}
	if !strings.Contains(output, "WARN [auth]") {
		t.Errorf("Expected WARN line for component auth, got: %s", output)
	}
	if !strings.Contains(output, "ERROR [auth]") {
		t.Errorf("Expected ERROR line for component auth, got: %s", output)
	}
}

func TestLogger_SourceLocation(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger("test", DEBUG, &buf)

	logger.Info("where am I")

	if !strings.Contains(buf.String(), "logger_test.go:") {
		t.Errorf("Expected caller file in output, got: %s", buf.String())
	}
}

func TestLogger_WithFieldsDoesNotMutateParent(t *testing.T) {
	var buf bytes.Buffer
	parent := NewLogger("api", DEBUG, &buf)
	child := parent.WithFields(map[string]interface{}{"request_id": "abc", "origin": "1.2.3.4"})

	child.Info("child")
	parent.Info("parent")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("Expected 2 lines, got %d", len(lines))
	}
	if !strings.HasSuffix(lines[0], "child origin=1.2.3.4 request_id=abc") {
		t.Errorf("Expected sorted context on child line, got: %s", lines[0])
	}
	if strings.Contains(lines[1], "request_id") {
		t.Errorf("Parent logger should not carry child context, got: %s", lines[1])
	}
}

func TestLogger_Named(t *testing.T) {
	var buf bytes.Buffer
	root := NewLogger("main", INFO, &buf).WithContext("origin", "10.0.0.1")
	named := root.Named("store")

	named.Info("opened")

	if !strings.Contains(buf.String(), "[store]") {
		t.Errorf("Expected component store, got: %s", buf.String())
	}
	if !strings.Contains(buf.String(), "origin=10.0.0.1") {
		t.Errorf("Expected inherited context, got: %s", buf.String())
	}
}

func TestNop(t *testing.T) {
	// Must not panic or write anywhere
	Nop().Error("nothing %d", 1)
}

func TestFormatter_RedactsSecrets(t *testing.T) {
	f := NewLogFormatter()
	out := f.Format(LogEntry{
		Timestamp: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
		Level:     INFO,
		Component: "auth",
		Source:    SourceLocation{File: "core.go", Line: 10, Function: "auth.Login"},
		Message:   "login",
		Context: map[string]interface{}{
			"password":      "hunter2",
			"session_token": "abc123",
			"new_hash":      "$2a$10$xyz",
			"origin":        "1.2.3.4",
		},
	})

	for _, secret := range []string{"hunter2", "abc123", "$2a$10$xyz"} {
		if strings.Contains(out, secret) {
			t.Errorf("Secret %q leaked into log line: %s", secret, out)
		}
	}
	if !strings.Contains(out, "origin=1.2.3.4") {
		t.Errorf("Expected non-sensitive field to be kept, got: %s", out)
	}
	if !strings.HasPrefix(out, "[2024-01-02 03:04:05] INFO [auth] core.go:10 auth.Login login") {
		t.Errorf("Unexpected line layout: %s", out)
	}
}

func TestFormatter_SanitizesControlCharacters(t *testing.T) {
	f := NewLogFormatter()
	out := f.Format(LogEntry{
		Timestamp: time.Now(),
		Level:     WARN,
		Component: "api",
		Message:   "user\nINFO forged line\r",
	})

	if strings.Count(out, "\n") != 1 {
		t.Errorf("Expected exactly one trailing newline, got: %q", out)
	}
}

func TestFileWriter_Rotation(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "panel.log")

	fw, err := NewFileWriter(path, 1, 2)
	if err != nil {
		t.Fatalf("NewFileWriter failed: %v", err)
	}
	defer fw.Close()

	chunk := bytes.Repeat([]byte("x"), 600*1024)
	for i := 0; i < 3; i++ {
		if _, err := fw.Write(chunk); err != nil {
			t.Fatalf("Write %d failed: %v", i, err)
		}
	}

	if _, err := os.Stat(path + ".1"); err != nil {
		t.Errorf("Expected first backup to exist: %v", err)
	}
	if _, err := os.Stat(path + ".2"); err != nil {
		t.Errorf("Expected second backup to exist: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat failed: %v", err)
	}
	if info.Size() != int64(len(chunk)) {
		t.Errorf("Expected current file to hold one chunk, got %d bytes", info.Size())
	}
}

func TestFileWriter_WriteAfterClose(t *testing.T) {
	fw, err := NewFileWriter(filepath.Join(t.TempDir(), "closed.log"), 1, 1)
	if err != nil {
		t.Fatalf("NewFileWriter failed: %v", err)
	}
	if err := fw.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if _, err := fw.Write([]byte("late")); err == nil {
		t.Error("Expected error writing to closed writer")
	}
	if err := fw.Close(); err != nil {
		t.Errorf("Second Close should be a no-op, got %v", err)
	}
}
