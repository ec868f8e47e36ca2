// Package domain contains core business entities and interfaces.
// This is the innermost layer in Clean Architecture - no external dependencies.
package domain

import (
	"fmt"
	"strings"
	"time"
)

// Load-time maxima. Configurations beyond these are rejected, never truncated.
const (
	MaxNotifications        = 16
	MaxTargets              = 16
	MaxFilesPerNotification = 4
)

// ExecErrorValue replaces a title, description or level whose
// resolution executable failed.
const ExecErrorValue = "EXECERROR"

// FileKind tells the tracker how to read a monitored file.
type FileKind string

const (
	// KindLog files are tailed: only bytes appended after open are read.
	KindLog FileKind = "log"
	// KindStatus files are re-read from the start whenever their metadata changes.
	KindStatus FileKind = "status"
)

// Level is the severity passed to send executables.
type Level string

const (
	LevelError   Level = "ERROR"
	LevelWarning Level = "WARNING"
	LevelInfo    Level = "INFO"
)

// ParseLevel validates s as one of ERROR, WARNING or INFO (case-sensitive).
func ParseLevel(s string) (Level, error) {
	switch Level(s) {
	case LevelError, LevelWarning, LevelInfo:
		return Level(s), nil
	}
	return "", fmt.Errorf("invalid level %q", s)
}

// MonitoredFile identifies one file the daemon watches.
type MonitoredFile struct {
	Path string
	Kind FileKind
}

// IsStatus reports whether the file is re-read in full on change.
func (f MonitoredFile) IsStatus() bool {
	return f.Kind == KindStatus
}

// Field is a notification attribute that is either a literal value
// or an executable invoked with the matched line.
type Field struct {
	Value      string // literal text, or executable path when Executable is set
	Executable bool
}

// FirstLine returns s up to, not including, the first '\n' or '\r'.
func FirstLine(s string) string {
	if i := strings.IndexAny(s, "\r\n"); i >= 0 {
		return s[:i]
	}
	return s
}

// Literal returns a literal field.
func Literal(v string) Field {
	return Field{Value: v}
}

// Exec returns an executable field.
func Exec(path string) Field {
	return Field{Value: path, Executable: true}
}

// Notification binds a filter to a set of monitored files.
type Notification struct {
	Name   string
	Filter string // path of the filter executable
	Title  Field
	Desc   Field
	Level  Field
	Files  []MonitoredFile
}

// Watches reports whether the notification is bound to path.
func (n Notification) Watches(path string) bool {
	for _, f := range n.Files {
		if f.Path == path {
			return true
		}
	}
	return false
}

// Target is a destination for matched notifications.
type Target struct {
	Name string
	Send string // path of the send executable

	// Debounce is the minimum interval between two sends of the same
	// notification. Zero means a notification is sent at most once.
	Debounce time.Duration
}

// Alert is a matched notification with its fields resolved.
type Alert struct {
	Notification string
	Title        string
	Desc         string
	Level        string
	Line         string
}

// Config is the validated result of loading a configuration directory.
type Config struct {
	Notifications []Notification
	Targets       []Target
	Files         []MonitoredFile // union of all notification bindings, first-seen order
}
