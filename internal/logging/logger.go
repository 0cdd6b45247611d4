package logging

// Levelled logging for rs485mon

import (
	"bytes"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// LogLevel represents the logging level
type LogLevel int

const (
	LogLevelSilent LogLevel = iota
	LogLevelError
	LogLevelInfo
	LogLevelVerbose
	LogLevelDebug
)

func (l LogLevel) String() string {
	switch l {
	case LogLevelSilent:
		return "silent"
	case LogLevelError:
		return "error"
	case LogLevelInfo:
		return "info"
	case LogLevelVerbose:
		return "verbose"
	case LogLevelDebug:
		return "debug"
	default:
		return fmt.Sprintf("level(%d)", int(l))
	}
}

// ParseLevel maps a configuration value to a LogLevel.
func ParseLevel(s string) (LogLevel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "silent", "off":
		return LogLevelSilent, nil
	case "error":
		return LogLevelError, nil
	case "", "info":
		return LogLevelInfo, nil
	case "verbose":
		return LogLevelVerbose, nil
	case "debug", "trace":
		return LogLevelDebug, nil
	default:
		return LogLevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}

// Logger writes levelled messages to the console and an optional file.
// A nil *Logger is valid and discards everything.
type Logger struct {
	mu      sync.Mutex
	level   LogLevel
	format  string
	file    *os.File
	fileLog *log.Logger
	stdout  *log.Logger
	stderr  *log.Logger
	now     func() time.Time

	// JSON lines are encoded into jbuf, guarded by mu.
	jbuf bytes.Buffer
	jlog zerolog.Logger
}

// NewLogger creates a new text logger
func NewLogger(level LogLevel, logFile string) (*Logger, error) {
	return NewLoggerWithOptions(level, logFile, "text")
}

// NewLoggerWithOptions creates a logger with an explicit line format
// ("text" or "json").
func NewLoggerWithOptions(level LogLevel, logFile, format string) (*Logger, error) {
	if format == "" {
		format = "text"
	}
	if format != "text" && format != "json" {
		return nil, fmt.Errorf("unsupported log format %q", format)
	}
	l := &Logger{
		level:  level,
		format: format,
		stdout: log.New(os.Stdout, "", 0),
		stderr: log.New(os.Stderr, "", 0),
		now:    time.Now,
	}
	if format == "json" {
		l.jlog = zerolog.New(&l.jbuf)
	}

	if logFile != "" {
		file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		flags := log.LstdFlags
		if format == "json" {
			flags = 0
		}
		l.file = file
		l.fileLog = log.New(file, "", flags)
	}

	return l, nil
}

// SetOutput redirects console output. Used by the grouped view, which owns
// the terminal, and by tests.
func (l *Logger) SetOutput(stdout, stderr io.Writer) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.stdout = log.New(stdout, "", 0)
	l.stderr = log.New(stderr, "", 0)
}

// Close closes the log file, if any
func (l *Logger) Close() error {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file != nil {
		err := l.file.Close()
		l.file = nil
		l.fileLog = nil
		return err
	}
	return nil
}

// Error logs an error message
func (l *Logger) Error(format string, v ...interface{}) {
	l.logf(LogLevelError, format, v...)
}

// Info logs an info message
func (l *Logger) Info(format string, v ...interface{}) {
	l.logf(LogLevelInfo, format, v...)
}

// Verbose logs a verbose message
func (l *Logger) Verbose(format string, v ...interface{}) {
	l.logf(LogLevelVerbose, format, v...)
}

// Debug logs a debug message
func (l *Logger) Debug(format string, v ...interface{}) {
	l.logf(LogLevelDebug, format, v...)
}

func (l *Logger) logf(level LogLevel, format string, v ...interface{}) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.level < level {
		return
	}
	l.write(level, fmt.Sprintf(format, v...))
}

// write sends one line to the file and the console. Errors go to stderr;
// other levels reach stdout only at verbose and above. Caller holds mu.
func (l *Logger) write(level LogLevel, msg string) {
	line := l.render(level, msg)

	if l.fileLog != nil {
		l.fileLog.Println(line)
	}

	if level == LogLevelError {
		l.stderr.Println(line)
	} else if l.level >= LogLevelVerbose {
		l.stdout.Println(line)
	}
}

func (l *Logger) render(level LogLevel, msg string) string {
	if l.format == "json" {
		l.jbuf.Reset()
		l.jlog.Log().
			Str("time", l.now().Format(time.RFC3339Nano)).
			Str("level", level.String()).
			Str("msg", msg).
			Send()
		return strings.TrimRight(l.jbuf.String(), "\n")
	}
	return strings.ToUpper(level.String()) + ": " + msg
}

// SetLevel sets the logging level
func (l *Logger) SetLevel(level LogLevel) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
}

// GetLevel returns the current logging level
func (l *Logger) GetLevel() LogLevel {
	if l == nil {
		return LogLevelSilent
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.level
}

// Enabled reports whether messages at level would be written.
func (l *Logger) Enabled(level LogLevel) bool {
	return l.GetLevel() >= level
}

// LogHex logs a raw frame at debug level as spaced upper case hex
func (l *Logger) LogHex(label string, data []byte) {
	if !l.Enabled(LogLevelDebug) {
		return
	}
	var sb strings.Builder
	for i, b := range data {
		if i > 0 {
			sb.WriteByte(' ')
		}
		fmt.Fprintf(&sb, "%02X", b)
	}
	l.Debug("%s: %s", label, sb.String())
}

// LogStartup logs the effective monitor settings
func (l *Logger) LogStartup(mode, source string, baud int, profile, configPath string) {
	l.Info("Starting rs485mon %s", mode)
	l.Verbose("  Source: %s", source)
	if baud > 0 {
		l.Verbose("  Baud rate: %d", baud)
	}
	l.Verbose("  Decoder profile: %s", profile)
	if configPath != "" {
		l.Verbose("  Config: %s", configPath)
	}
}
