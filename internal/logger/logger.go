// Package logger provides the leveled logger used across the Bhangra service.
package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"
)

// Level is a log severity.
type Level int

const (
	// DEBUG is for detailed diagnostics such as per-frame classification results.
	DEBUG Level = iota
	// INFO is for lifecycle events.
	INFO
	// WARN is for recoverable problems.
	WARN
	// ERROR is for failed operations.
	ERROR
)

var levelNames = map[Level]string{
	DEBUG: "DEBUG",
	INFO:  "INFO ",
	WARN:  "WARN ",
	ERROR: "ERROR",
}

// String returns the trimmed level name.
func (l Level) String() string {
	if name, ok := levelNames[l]; ok {
		return strings.TrimSpace(name)
	}
	return fmt.Sprintf("Level(%d)", int(l))
}

// ParseLevel converts a level name ("debug", "info", "warn", "error") to a Level.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return DEBUG, nil
	case "info", "":
		return INFO, nil
	case "warn", "warning":
		return WARN, nil
	case "error":
		return ERROR, nil
	}
	return INFO, fmt.Errorf("unknown log level %q", s)
}

var (
	mu         sync.Mutex
	minLevel   = INFO
	timeFormat = "2006-01-02 15:04:05.000"
	out        = log.New(os.Stdout, "", 0)
	errOut     = log.New(os.Stderr, "", 0)
	logFile    io.WriteCloser
)

// SetLevel sets the minimum level that is written.
func SetLevel(level Level) {
	mu.Lock()
	defer mu.Unlock()
	minLevel = level
}

// GetLevel returns the minimum level that is written.
func GetLevel() Level {
	mu.Lock()
	defer mu.Unlock()
	return minLevel
}

// SetOutput sends every level to w. Tests use it to capture output.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	out = log.New(w, "", 0)
	errOut = log.New(w, "", 0)
}

// EnableFileLogging mirrors output into a timestamped file under dir.
func EnableFileLogging(dir, prefix string) error {
	mu.Lock()
	defer mu.Unlock()

	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create log dir: %w", err)
	}

	if prefix != "" {
		prefix += "_"
	}
	path := filepath.Join(dir, fmt.Sprintf("%s%s.log", prefix, time.Now().Format("20060102_150405")))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}

	if logFile != nil {
		logFile.Close()
	}
	logFile = f

	out = log.New(io.MultiWriter(os.Stdout, f), "", 0)
	errOut = log.New(io.MultiWriter(os.Stderr, f), "", 0)
	return nil
}

// Close releases the log file, if any.
func Close() {
	mu.Lock()
	defer mu.Unlock()

	if logFile != nil {
		logFile.Close()
		logFile = nil
	}
	out = log.New(os.Stdout, "", 0)
	errOut = log.New(os.Stderr, "", 0)
}

func write(level Level, format string, args ...interface{}) {
	mu.Lock()
	defer mu.Unlock()

	if level < minLevel {
		return
	}

	var source string
	if _, file, line, ok := runtime.Caller(2); ok {
		source = fmt.Sprintf(" [%s:%d]", filepath.Base(file), line)
	}

	msg := format
	if len(args) > 0 {
		msg = fmt.Sprintf(format, args...)
	}

	target := out
	if level >= ERROR {
		target = errOut
	}
	target.Printf("[%s] %s%s: %s", time.Now().Format(timeFormat), levelNames[level], source, msg)
}

// Debugf logs at DEBUG.
func Debugf(format string, args ...interface{}) { write(DEBUG, format, args...) }

// Infof logs at INFO.
func Infof(format string, args ...interface{}) { write(INFO, format, args...) }

// Warnf logs at WARN.
func Warnf(format string, args ...interface{}) { write(WARN, format, args...) }

// Errorf logs at ERROR.
func Errorf(format string, args ...interface{}) { write(ERROR, format, args...) }

// Info logs msg at INFO.
func Info(msg string) { write(INFO, "%s", msg) }

// Error logs msg and err at ERROR.
func Error(msg string, err error) {
	if err != nil {
		write(ERROR, "%s: %v", msg, err)
		return
	}
	write(ERROR, "%s", msg)
}
