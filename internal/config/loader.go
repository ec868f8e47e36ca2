// Package config loads the notification and target definitions of a
// configuration directory into validated domain records.
//
// Layout:
//
//	<dir>/notifications.d/<name>/{filter,title,desc,level,source}
//	<dir>/targets.d/<name>/{send,debouncing}
//	<dir>/logmonitor.yaml (optional daemon settings)
package config

import (
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/eliteGoblin/focusd/logmonitor/internal/domain"
)

// DefaultDir is used when no configuration directory is given.
const DefaultDir = "/etc/logmonitor"

const (
	notificationsDir = "notifications.d"
	targetsDir       = "targets.d"
)

// Loader reads a configuration directory.
type Loader struct {
	fs domain.FileSystemManager
}

// NewLoader creates a loader backed by fs.
func NewLoader(fs domain.FileSystemManager) *Loader {
	return &Loader{fs: fs}
}

// Load reads, validates and cross-checks every notification and target under dir.
// Any error is a *domain.ConfigError.
func (l *Loader) Load(dir string) (*domain.Config, error) {
	notifs, err := l.loadNotifications(filepath.Join(dir, notificationsDir))
	if err != nil {
		return nil, err
	}
	targets, err := l.loadTargets(filepath.Join(dir, targetsDir))
	if err != nil {
		return nil, err
	}

	if len(notifs) == 0 {
		return nil, domain.NewConfigError(dir, "no notification configured")
	}
	if len(targets) == 0 {
		return nil, domain.NewConfigError(dir, "no target configured")
	}

	files, err := MonitoredFiles(notifs)
	if err != nil {
		return nil, err
	}

	return &domain.Config{
		Notifications: notifs,
		Targets:       targets,
		Files:         files,
	}, nil
}

// MonitoredFiles returns the union of all notification bindings in first-seen
// order. A path bound with two different kinds is an error.
func MonitoredFiles(notifs []domain.Notification) ([]domain.MonitoredFile, error) {
	var files []domain.MonitoredFile
	kinds := make(map[string]domain.FileKind)

	for _, n := range notifs {
		for _, f := range n.Files {
			kind, seen := kinds[f.Path]
			if !seen {
				kinds[f.Path] = f.Kind
				files = append(files, f)
				continue
			}
			if kind != f.Kind {
				return nil, domain.NewConfigError(f.Path, "monitored file defined multiple times with different types")
			}
		}
	}
	return files, nil
}

func (l *Loader) loadNotifications(dir string) ([]domain.Notification, error) {
	names, err := l.fs.ListDirs(dir)
	if err != nil {
		return nil, domain.NewConfigError(dir, "directory not found: %v", err)
	}
	if len(names) > domain.MaxNotifications {
		return nil, domain.NewConfigError(dir, "too many notifications defined (%d, max %d)", len(names), domain.MaxNotifications)
	}

	notifs := make([]domain.Notification, 0, len(names))
	for _, name := range names {
		n, err := l.loadNotification(filepath.Join(dir, name), name)
		if err != nil {
			return nil, err
		}
		notifs = append(notifs, *n)
	}
	return notifs, nil
}

func (l *Loader) loadNotification(dir, name string) (*domain.Notification, error) {
	files, err := l.fs.ListFiles(dir)
	if err != nil {
		return nil, domain.NewConfigError(dir, "notification directory not readable: %v", err)
	}

	n := &domain.Notification{Name: name}
	for _, file := range files {
		path := filepath.Join(dir, file)

		switch file {
		case "filter":
			if !l.fs.IsExecutable(path) {
				return nil, domain.NewConfigError(path, "notification filter not executable")
			}
			n.Filter = path
		case "title":
			if n.Title, err = l.loadField(path); err != nil {
				return nil, domain.NewConfigError(path, "failed to read notification title: %v", err)
			}
		case "desc":
			if n.Desc, err = l.loadField(path); err != nil {
				return nil, domain.NewConfigError(path, "failed to read notification description: %v", err)
			}
		case "level":
			if n.Level, err = l.loadField(path); err != nil {
				return nil, domain.NewConfigError(path, "failed to read notification level: %v", err)
			}
			if !n.Level.Executable {
				if _, err := domain.ParseLevel(n.Level.Value); err != nil {
					return nil, domain.NewConfigError(path, "%v", err)
				}
			}
		case "source":
			if n.Files, err = l.loadSources(path); err != nil {
				return nil, err
			}
		}
	}

	switch {
	case n.Filter == "":
		return nil, domain.NewConfigError(dir, "filter executable missing")
	case n.Title.Value == "":
		return nil, domain.NewConfigError(dir, "title missing")
	case n.Desc.Value == "":
		return nil, domain.NewConfigError(dir, "description missing")
	case n.Level.Value == "":
		return nil, domain.NewConfigError(dir, "level missing")
	case len(n.Files) == 0:
		return nil, domain.NewConfigError(dir, "at least one file to monitor must be specified")
	}
	return n, nil
}

// loadField returns an executable field when path is executable,
// otherwise the literal first line of the file.
func (l *Loader) loadField(path string) (domain.Field, error) {
	if l.fs.IsExecutable(path) {
		return domain.Exec(path), nil
	}
	v, err := l.fs.ReadValue(path)
	if err != nil {
		return domain.Field{}, err
	}
	return domain.Literal(v), nil
}

// loadSources parses one "log:/path", "status:/path" or "/path" entry per line.
func (l *Loader) loadSources(path string) ([]domain.MonitoredFile, error) {
	lines, err := l.fs.ReadLines(path)
	if err != nil {
		return nil, domain.NewConfigError(path, "failed to read notification monitored file path: %v", err)
	}

	var files []domain.MonitoredFile
	for _, line := range lines {
		f := domain.MonitoredFile{Kind: domain.KindLog}
		switch {
		case strings.HasPrefix(line, "log:"):
			line = strings.TrimPrefix(line, "log:")
		case strings.HasPrefix(line, "status:"):
			f.Kind = domain.KindStatus
			line = strings.TrimPrefix(line, "status:")
		}

		if line == "" {
			return nil, domain.NewConfigError(path, "source file path is empty")
		}
		if !filepath.IsAbs(line) {
			return nil, domain.NewConfigError(path, "source file path is not absolute: %s", line)
		}
		if len(files) == domain.MaxFilesPerNotification {
			return nil, domain.NewConfigError(path, "maximum number of monitored files reached (%d)", domain.MaxFilesPerNotification)
		}

		f.Path = filepath.Clean(line)
		files = append(files, f)
	}
	return files, nil
}

func (l *Loader) loadTargets(dir string) ([]domain.Target, error) {
	names, err := l.fs.ListDirs(dir)
	if err != nil {
		return nil, domain.NewConfigError(dir, "directory not found: %v", err)
	}
	if len(names) > domain.MaxTargets {
		return nil, domain.NewConfigError(dir, "too many targets defined (%d, max %d)", len(names), domain.MaxTargets)
	}

	targets := make([]domain.Target, 0, len(names))
	for _, name := range names {
		t, err := l.loadTarget(filepath.Join(dir, name), name)
		if err != nil {
			return nil, err
		}
		targets = append(targets, *t)
	}
	return targets, nil
}

func (l *Loader) loadTarget(dir, name string) (*domain.Target, error) {
	files, err := l.fs.ListFiles(dir)
	if err != nil {
		return nil, domain.NewConfigError(dir, "target directory not readable: %v", err)
	}

	t := &domain.Target{Name: name}
	for _, file := range files {
		path := filepath.Join(dir, file)

		switch file {
		case "send":
			if !l.fs.IsExecutable(path) {
				return nil, domain.NewConfigError(path, "target send not executable")
			}
			t.Send = path
		case "debouncing":
			v, err := l.fs.ReadValue(path)
			if err != nil {
				return nil, domain.NewConfigError(path, "failed to read target debouncing: %v", err)
			}
			secs, err := strconv.ParseInt(v, 10, 32)
			if err != nil || secs < 0 {
				return nil, domain.NewConfigError(path, "invalid debouncing value %q", v)
			}
			t.Debounce = time.Duration(secs) * time.Second
		}
	}

	if t.Send == "" {
		return nil, domain.NewConfigError(dir, "missing send executable")
	}
	return t, nil
}
