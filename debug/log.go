package debug

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/sirupsen/logrus"
)

var (
	logger  = newLogger()
	file    *os.File
	mu      sync.Mutex
	enabled bool
)

func newLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetLevel(logrus.WarnLevel)
	l.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "15:04:05.000",
	})
	return l
}

// Logger exposes the underlying logrus logger (hooks, tests).
func Logger() *logrus.Logger {
	return logger
}

// LogPath returns ~/.config/go-zctrl/debug.log
func LogPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "go-zctrl", "debug.log"), nil
}

// Enable starts debug logging to ~/.config/go-zctrl/debug.log
func Enable() error {
	path, err := LogPath()
	if err != nil {
		return err
	}
	return EnableFile(path)
}

// EnableFile starts debug-level logging to the given file, truncating it.
func EnableFile(path string) error {
	mu.Lock()
	defer mu.Unlock()

	if enabled {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}

	file = f
	enabled = true
	logger.SetOutput(f)
	logger.SetLevel(logrus.DebugLevel)
	logger.WithField("cat", "debug").Info("=== Debug logging started ===")

	return nil
}

// Disable stops debug logging and returns to warnings on stderr
func Disable() {
	mu.Lock()
	defer mu.Unlock()

	if file != nil {
		file.Close()
		file = nil
	}
	enabled = false
	logger.SetOutput(os.Stderr)
	logger.SetLevel(logrus.WarnLevel)
}

// SetOutput redirects log output without changing the level. The TUI uses
// this to keep warnings off the alt screen.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	logger.SetOutput(w)
}

// Log writes a debug message for a category
func Log(category, format string, args ...any) {
	logger.WithField("cat", category).Debugf(format, args...)
}

// Warn reports a recovered failure (delivery, bad label)
func Warn(category, format string, args ...any) {
	logger.WithField("cat", category).Warnf(format, args...)
}

// Error reports a failure that indicates bad configuration or a bug
func Error(category, format string, args ...any) {
	logger.WithField("cat", category).Errorf(format, args...)
}

// LogEvery logs only every N calls (use for high-frequency events)
var (
	counters   = make(map[string]int)
	countersMu sync.Mutex
)

func LogEvery(n int, category, format string, args ...any) {
	countersMu.Lock()
	key := category + format
	counters[key]++
	count := counters[key]
	countersMu.Unlock()

	if count%n == 0 {
		Log(category, fmt.Sprintf("%s (every %d, count=%d)", format, n, count), args...)
	}
}
