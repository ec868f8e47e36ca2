package domain

import (
	"context"
	"time"
)

// ExecResult is the outcome of a synchronous child process.
type ExecResult struct {
	ExitCode int
	Output   string // captured stdout, truncated at the requested limit
}

// ProcessRunner spawns external executables.
// Implementation: os/exec with a centralized non-blocking reaper.
type ProcessRunner interface {
	// Run spawns exe with args and waits for it to exit. Up to maxOutput
	// bytes of stdout are captured; zero discards stdout entirely.
	Run(ctx context.Context, exe string, args []string, maxOutput int) (ExecResult, error)

	// Start spawns exe with args without waiting. The child is reclaimed
	// later by Reap.
	Start(exe string, args []string) error

	// Reap collects exited detached children without blocking.
	// Returns the number of children reclaimed.
	Reap() int

	// Pending returns the number of detached children not yet reaped.
	Pending() int
}

// Clock supplies monotonic timestamps for throttling and debouncing.
type Clock interface {
	Now() time.Time
}

// LineHandler consumes complete lines read from a monitored file.
type LineHandler interface {
	// HandleLine evaluates the line and returns the number of notifications it matched.
	HandleLine(ctx context.Context, file MonitoredFile, line string) int
}

// Dispatcher delivers a resolved alert to every target subject to debouncing.
type Dispatcher interface {
	// Dispatch returns the names of the targets the alert was sent to.
	Dispatch(alert Alert) []string
}

// FileSystemManager handles the filesystem reads the configuration loader needs.
type FileSystemManager interface {
	// IsExecutable reports whether the current user may execute path.
	IsExecutable(path string) bool

	// ReadValue reads a small text file and returns its first line.
	ReadValue(path string) (string, error)

	// ReadLines reads a small text file and returns its non-empty lines.
	ReadLines(path string) ([]string, error)

	// ListDirs returns the sorted names of subdirectories of dir.
	ListDirs(dir string) ([]string, error)

	// ListFiles returns the sorted names of regular files in dir.
	ListFiles(dir string) ([]string, error)
}

// Waker signals that a monitored file may have changed before the next tick.
type Waker interface {
	// C delivers at most one pending wake-up at a time.
	C() <-chan struct{}

	// Close releases the underlying watch resources.
	Close() error
}
