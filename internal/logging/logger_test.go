package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestNewLogger(t *testing.T) {
	t.Run("no file", func(t *testing.T) {
		l, err := NewLogger(LogLevelInfo, "")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		defer l.Close()
		if l.level != LogLevelInfo {
			t.Errorf("level = %d, want %d", l.level, LogLevelInfo)
		}
		if l.file != nil {
			t.Error("file should be nil when no path given")
		}
		if l.format != "text" {
			t.Errorf("format = %q, want text", l.format)
		}
	})

	t.Run("with file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "test.log")
		l, err := NewLogger(LogLevelDebug, path)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		defer l.Close()
		if l.file == nil {
			t.Error("file should not be nil")
		}
		if l.fileLog == nil {
			t.Error("fileLog should not be nil")
		}
	})

	t.Run("invalid path", func(t *testing.T) {
		_, err := NewLogger(LogLevelInfo, "/nonexistent/dir/test.log")
		if err == nil {
			t.Error("expected error for invalid path")
		}
	})

	t.Run("invalid format", func(t *testing.T) {
		_, err := NewLoggerWithOptions(LogLevelInfo, "", "xml")
		if err == nil {
			t.Error("expected error for unknown format")
		}
	})
}

func TestLoggerLevels(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.log")
	l, err := NewLogger(LogLevelInfo, path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	l.SetOutput(&bytes.Buffer{}, &bytes.Buffer{})

	l.Error("error msg")
	l.Info("info msg")
	l.Verbose("verbose msg")
	l.Debug("debug msg")

	l.Close()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	content := string(data)

	if !strings.Contains(content, "ERROR: error msg") {
		t.Error("log should contain error message")
	}
	if !strings.Contains(content, "INFO: info msg") {
		t.Error("log should contain info message")
	}
	if strings.Contains(content, "VERBOSE: verbose msg") {
		t.Error("log should NOT contain verbose message at Info level")
	}
	if strings.Contains(content, "DEBUG: debug msg") {
		t.Error("log should NOT contain debug message at Info level")
	}
}

func TestLoggerConsoleRouting(t *testing.T) {
	tests := []struct {
		name       string
		level      LogLevel
		wantStdout bool
	}{
		{"info keeps stdout quiet", LogLevelInfo, false},
		{"verbose prints info", LogLevelVerbose, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, _ := NewLogger(tt.level, "")
			var stdout, stderr bytes.Buffer
			l.SetOutput(&stdout, &stderr)

			l.Info("hello")
			l.Error("boom")

			if got := strings.Contains(stdout.String(), "INFO: hello"); got != tt.wantStdout {
				t.Errorf("stdout has info = %v, want %v (%q)", got, tt.wantStdout, stdout.String())
			}
			if !strings.Contains(stderr.String(), "ERROR: boom") {
				t.Errorf("stderr = %q, want error line", stderr.String())
			}
		})
	}
}

func TestLoggerSilentLevel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.log")
	l, err := NewLogger(LogLevelSilent, path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	l.Error("should not appear")
	l.Info("should not appear")
	l.Close()

	data, _ := os.ReadFile(path)
	if len(strings.TrimSpace(string(data))) > 0 {
		t.Error("silent logger should produce no output")
	}
}

func TestLoggerJSONFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.log")
	l, err := NewLoggerWithOptions(LogLevelInfo, path, "json")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	l.SetOutput(&bytes.Buffer{}, &bytes.Buffer{})
	l.now = func() time.Time { return time.Date(2024, 3, 1, 10, 38, 0, 0, time.UTC) }

	l.Info("frame %d", 7)
	l.Close()

	data, _ := os.ReadFile(path)
	var entry map[string]string
	if err := json.Unmarshal(bytes.TrimSpace(data), &entry); err != nil {
		t.Fatalf("unmarshal %q: %v", data, err)
	}
	if entry["level"] != "info" || entry["msg"] != "frame 7" {
		t.Errorf("entry = %v", entry)
	}
	if entry["time"] != "2024-03-01T10:38:00Z" {
		t.Errorf("time = %q", entry["time"])
	}
}

func TestLoggerJSONLinesAreSeparate(t *testing.T) {
	l, err := NewLoggerWithOptions(LogLevelVerbose, "", "json")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var stdout, stderr bytes.Buffer
	l.SetOutput(&stdout, &stderr)

	l.Info("first")
	l.Verbose("second")
	l.Error("port %s lost", "/dev/ttyUSB0")

	lines := strings.Split(strings.TrimSpace(stdout.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("stdout lines = %d, want 2:\n%s", len(lines), stdout.String())
	}
	for i, want := range []string{"first", "second"} {
		var entry map[string]string
		if err := json.Unmarshal([]byte(lines[i]), &entry); err != nil {
			t.Fatalf("line %d %q: %v", i, lines[i], err)
		}
		if entry["msg"] != want {
			t.Errorf("line %d msg = %q, want %q", i, entry["msg"], want)
		}
	}

	var entry map[string]string
	if err := json.Unmarshal(bytes.TrimSpace(stderr.Bytes()), &entry); err != nil {
		t.Fatalf("stderr %q: %v", stderr.String(), err)
	}
	if entry["level"] != "error" || entry["msg"] != "port /dev/ttyUSB0 lost" {
		t.Errorf("stderr entry = %v", entry)
	}
}

func TestNilLogger(t *testing.T) {
	var l *Logger
	l.Error("ignored")
	l.Info("ignored")
	l.LogHex("raw", []byte{0x01})
	l.SetLevel(LogLevelDebug)
	if l.GetLevel() != LogLevelSilent {
		t.Error("nil logger should report silent")
	}
	if err := l.Close(); err != nil {
		t.Errorf("Close() = %v", err)
	}
}

func TestLogHex(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.log")
	l, err := NewLogger(LogLevelDebug, path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	l.SetOutput(&bytes.Buffer{}, &bytes.Buffer{})
	l.LogHex("frame", []byte{0xB6, 0x6B, 0x0D})
	l.Close()

	data, _ := os.ReadFile(path)
	if !strings.Contains(string(data), "DEBUG: frame: B6 6B 0D") {
		t.Errorf("log = %q", data)
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    LogLevel
		wantErr bool
	}{
		{"", LogLevelInfo, false},
		{"silent", LogLevelSilent, false},
		{"ERROR", LogLevelError, false},
		{"verbose", LogLevelVerbose, false},
		{"trace", LogLevelDebug, false},
		{"loud", LogLevelInfo, true},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseLevel(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
