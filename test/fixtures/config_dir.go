// Package fixtures provides test helpers for building configuration directories.
package fixtures

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ConfigDir creates a logmonitor configuration directory layout.
type ConfigDir struct {
	Root string
}

// NewConfigDir creates notifications.d and targets.d under root.
func NewConfigDir(root string) (*ConfigDir, error) {
	for _, d := range []string{"notifications.d", "targets.d"} {
		if err := os.MkdirAll(filepath.Join(root, d), 0755); err != nil {
			return nil, err
		}
	}
	return &ConfigDir{Root: root}, nil
}

// NotificationSpec describes a notification directory. Fields holding a
// body starting with "#!" are written as executables, others as literals.
type NotificationSpec struct {
	Filter  string // script body after the shebang line
	Title   string
	Desc    string
	Level   string
	Sources []string
}

// AddNotification writes notifications.d/<name>.
func (c *ConfigDir) AddNotification(name string, def NotificationSpec) (string, error) {
	dir := filepath.Join(c.Root, "notifications.d", name)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}

	if def.Filter != "" {
		if err := WriteScript(filepath.Join(dir, "filter"), def.Filter); err != nil {
			return "", err
		}
	}
	for file, v := range map[string]string{"title": def.Title, "desc": def.Desc, "level": def.Level} {
		if v == "" {
			continue
		}
		if err := writeField(filepath.Join(dir, file), v); err != nil {
			return "", err
		}
	}
	if len(def.Sources) > 0 {
		content := strings.Join(def.Sources, "\n") + "\n"
		if err := os.WriteFile(filepath.Join(dir, "source"), []byte(content), 0644); err != nil {
			return "", err
		}
	}
	return dir, nil
}

// AddTarget writes targets.d/<name> with a send script body and a
// debouncing value in seconds. A negative debounce omits the file.
func (c *ConfigDir) AddTarget(name, send string, debounce int) (string, error) {
	dir := filepath.Join(c.Root, "targets.d", name)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	if send != "" {
		if err := WriteScript(filepath.Join(dir, "send"), send); err != nil {
			return "", err
		}
	}
	if debounce >= 0 {
		if err := os.WriteFile(filepath.Join(dir, "debouncing"), []byte(fmt.Sprintf("%d\n", debounce)), 0644); err != nil {
			return "", err
		}
	}
	return dir, nil
}

// WriteScript writes an executable /bin/sh script.
func WriteScript(path, body string) error {
	return os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0755)
}

func writeField(path, v string) error {
	if strings.HasPrefix(v, "#!") {
		return os.WriteFile(path, []byte(v+"\n"), 0755)
	}
	return os.WriteFile(path, []byte(v+"\n"), 0644)
}
