package debug

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

var (
	mu      sync.Mutex
	file    *os.File
	enabled bool
	counts  = make(map[string]int)
)

// Enable starts debug logging to the given path, or to
// ~/.config/go-perform/debug.log when path is empty.
func Enable(path string) error {
	mu.Lock()
	defer mu.Unlock()

	if enabled {
		return nil
	}
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return err
		}
		dir := filepath.Join(home, ".config", "go-perform")
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
		path = filepath.Join(dir, "debug.log")
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	file = f
	enabled = true
	write("debug", "=== debug logging started ===")
	return nil
}

// Disable stops debug logging.
func Disable() {
	mu.Lock()
	defer mu.Unlock()
	if file != nil {
		file.Close()
		file = nil
	}
	enabled = false
}

// Enabled reports whether logging is active.
func Enabled() bool {
	mu.Lock()
	defer mu.Unlock()
	return enabled
}

// Log writes one category-tagged line to the debug log.
func Log(category, format string, args ...any) {
	mu.Lock()
	defer mu.Unlock()
	if !enabled || file == nil {
		return
	}
	write(category, fmt.Sprintf(format, args...))
}

// LogEvery logs only every n-th call per (category, format) pair. Use for
// per-iteration events in the output loop.
func LogEvery(n int, category, format string, args ...any) {
	mu.Lock()
	key := category + format
	counts[key]++
	count := counts[key]
	on := enabled && file != nil
	mu.Unlock()

	if on && count%n == 0 {
		Log(category, format+" (count=%d)", append(args, count)...)
	}
}

// write assumes mu is held.
func write(category, msg string) {
	ts := time.Now().Format("15:04:05.000")
	fmt.Fprintf(file, "[%s] %-10s %s\n", ts, category, msg)
	file.Sync() // flush immediately so logs survive a crash
}
