// Package monitoring holds the diagnostic logging hooks shared by the
// daemon's packages.
package monitoring

import (
	"io"
	"log"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Logf is the package-level diagnostic logger. It defaults to log.Printf but may
// be replaced by SetLogger. Tests or production code can redirect or mute it.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces the package logger. Passing nil will set a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// RotationOptions bounds the size and age of rotated log files.
type RotationOptions struct {
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// DefaultRotationOptions keeps a week of logs in 10MB pieces.
func DefaultRotationOptions() RotationOptions {
	return RotationOptions{
		MaxSizeMB:  10,
		MaxBackups: 5,
		MaxAgeDays: 7,
		Compress:   true,
	}
}

// NewRotatingWriter returns a writer that appends to path and rotates it
// according to opts.
func NewRotatingWriter(path string, opts RotationOptions) io.WriteCloser {
	return &lumberjack.Logger{
		Filename:   path,
		MaxSize:    opts.MaxSizeMB,
		MaxBackups: opts.MaxBackups,
		MaxAge:     opts.MaxAgeDays,
		Compress:   opts.Compress,
	}
}

// SetupLogFile sends the standard logger to both stderr and a rotating file
// at path. An empty path leaves the standard logger alone. The returned
// closer restores stderr-only logging.
func SetupLogFile(path string, opts RotationOptions) io.Closer {
	if path == "" {
		return io.NopCloser(nil)
	}
	w := NewRotatingWriter(path, opts)
	log.SetOutput(io.MultiWriter(os.Stderr, w))
	return closerFunc(func() error {
		log.SetOutput(os.Stderr)
		return w.Close()
	})
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }
