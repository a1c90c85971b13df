// Package debug is the category logger shared by every package. Output is
// discarded until Enable or SetOutput is called, so the terminal UI owns the
// screen by default.
package debug

import (
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/sirupsen/logrus"
)

var (
	mu      sync.Mutex
	file    *os.File
	enabled bool
	log     = newLogger()
)

func newLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	l.SetLevel(logrus.DebugLevel)
	l.SetFormatter(&logrus.TextFormatter{
		DisableColors:   true,
		FullTimestamp:   true,
		TimestampFormat: "15:04:05.000",
	})
	return l
}

// Path returns the debug log location, ~/.config/go-groove/debug.log.
func Path() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "go-groove", "debug.log"), nil
}

// Enable starts debug logging to the file at Path, truncating it.
func Enable() error {
	mu.Lock()
	defer mu.Unlock()

	if enabled {
		return nil
	}
	path, err := Path()
	if err != nil {
		return err
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
	log.SetOutput(f)
	log.SetLevel(logrus.DebugLevel)
	log.WithField("category", "debug").Info("debug logging started")
	return nil
}

// SetOutput sends log entries at or above level to w. It is used by the
// command-line tools, which have no screen to protect.
func SetOutput(w io.Writer, level logrus.Level) {
	mu.Lock()
	defer mu.Unlock()
	closeFile()
	log.SetOutput(w)
	log.SetLevel(level)
	enabled = w != io.Discard
}

// Disable stops debug logging.
func Disable() {
	mu.Lock()
	defer mu.Unlock()
	closeFile()
	log.SetOutput(io.Discard)
	enabled = false
}

func closeFile() {
	if file != nil {
		file.Close()
		file = nil
	}
}

// Enabled reports whether entries are written anywhere.
func Enabled() bool {
	mu.Lock()
	defer mu.Unlock()
	return enabled
}

// Log writes a debug entry tagged with category.
func Log(category, format string, args ...any) {
	log.WithField("category", category).Debugf(format, args...)
}

// Warn writes a warning entry tagged with category.
func Warn(category, format string, args ...any) {
	log.WithField("category", category).Warnf(format, args...)
}

var (
	countersMu sync.Mutex
	counters   = make(map[string]int)
)

// LogEvery logs only every n-th call with the same category and format.
func LogEvery(n int, category, format string, args ...any) {
	countersMu.Lock()
	key := category + format
	counters[key]++
	count := counters[key]
	countersMu.Unlock()

	if n <= 1 || count%n == 0 {
		Log(category, format+" (every %d, count=%d)", append(args, n, count)...)
	}
}
