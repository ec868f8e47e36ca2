package domain

import (
	"errors"
	"fmt"
)

// Sentinels matched by ExecError.Is.
var (
	ErrSpawn = errors.New("spawn failed")
	ErrIO    = errors.New("output read failed")
	ErrWait  = errors.New("wait failed")
)

// ExecErrorKind classifies a subprocess failure.
type ExecErrorKind int

const (
	ExecSpawn ExecErrorKind = iota
	ExecIO
	ExecWait
)

func (k ExecErrorKind) String() string {
	switch k {
	case ExecSpawn:
		return "spawn"
	case ExecIO:
		return "io"
	case ExecWait:
		return "wait"
	}
	return "unknown"
}

// ExecError reports a failure to run an external executable.
// It is never fatal to the poll loop.
type ExecError struct {
	Kind ExecErrorKind
	Path string
	Err  error
}

func (e *ExecError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Kind, e.Path, e.Err)
}

func (e *ExecError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is match on the kind sentinels.
func (e *ExecError) Is(target error) bool {
	switch target {
	case ErrSpawn:
		return e.Kind == ExecSpawn
	case ErrIO:
		return e.Kind == ExecIO
	case ErrWait:
		return e.Kind == ExecWait
	}
	return false
}

// ConfigError is a fatal configuration problem detected at startup.
type ConfigError struct {
	Path string
	Msg  string
}

func (e *ConfigError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("config %s: %s", e.Path, e.Msg)
	}
	return "config: " + e.Msg
}

// NewConfigError builds a ConfigError with a formatted message.
func NewConfigError(path, format string, args ...any) error {
	return &ConfigError{Path: path, Msg: fmt.Sprintf(format, args...)}
}
