// Package debug is the process-wide debug logger. It is off by default
// and enabled with RDM_DEBUG=1 or the --debug flag; when enabled it
// writes timestamped lines to a rotating file under ~/.roadmap/logs and
// echoes them to stderr.
package debug

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	mu      sync.Mutex
	enabled bool
	out     io.Writer
)

func init() {
	v := os.Getenv("RDM_DEBUG")
	enabled = v != "" && v != "0"
}

// Enabled reports whether debug logging is on.
func Enabled() bool {
	mu.Lock()
	defer mu.Unlock()
	return enabled
}

// SetEnabled turns debug logging on or off at runtime (--debug flag).
func SetEnabled(v bool) {
	mu.Lock()
	defer mu.Unlock()
	enabled = v
}

// SetOutput redirects debug output, replacing the rotating file writer.
// Test hook.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	out = w
}

// Logf writes one formatted debug line when debug logging is enabled.
func Logf(format string, args ...any) {
	mu.Lock()
	defer mu.Unlock()
	if !enabled {
		return
	}
	if out == nil {
		out = defaultWriter()
	}
	fmt.Fprintf(out, "%s %s\n", time.Now().Format("2006-01-02 15:04:05.000"), fmt.Sprintf(format, args...))
}

// Printf is an alias for Logf.
func Printf(format string, args ...any) {
	Logf(format, args...)
}

func defaultWriter() io.Writer {
	home, err := os.UserHomeDir()
	if err != nil {
		return os.Stderr
	}
	rotating := &lumberjack.Logger{
		Filename:   filepath.Join(home, ".roadmap", "logs", "rdm-debug.log"),
		MaxSize:    10, // megabytes
		MaxBackups: 3,
		MaxAge:     28, // days
	}
	return io.MultiWriter(rotating, os.Stderr)
}
