// Package infra implements infrastructure concerns (process, filesystem, logging).
package infra

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/process"
	"go.uber.org/zap"
	"golang.org/x/sys/unix"

	"github.com/eliteGoblin/focusd/logmonitor/internal/domain"
)

// waitDelay bounds how long Run waits for inherited stdout pipes to close
// after a timed-out child has been killed.
const waitDelay = time.Second

// ProcessRunnerImpl implements domain.ProcessRunner using os/exec.
// Detached children are tracked and reclaimed by Reap with wait4(WNOHANG).
type ProcessRunnerImpl struct {
	timeout time.Duration
	logger  *zap.Logger

	mu       sync.Mutex
	children []*os.Process
}

// NewProcessRunner creates a process runner. A zero timeout lets
// synchronous children run for as long as they like.
func NewProcessRunner(timeout time.Duration, logger *zap.Logger) domain.ProcessRunner {
	return &ProcessRunnerImpl{
		timeout: timeout,
		logger:  logger,
	}
}

// Run spawns exe and blocks until it exits, capturing up to maxOutput bytes
// of stdout. Output beyond the limit is drained and dropped.
func (r *ProcessRunnerImpl) Run(ctx context.Context, exe string, args []string, maxOutput int) (domain.ExecResult, error) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, exe, args...)
	cmd.Cancel = func() error {
		return killTree(cmd.Process.Pid)
	}
	cmd.WaitDelay = waitDelay
	cmd.Stderr = os.Stderr

	var out *cappedBuffer
	if maxOutput > 0 {
		out = &cappedBuffer{limit: maxOutput}
		cmd.Stdout = out
	} else {
		cmd.Stdout = os.Stdout
	}

	if err := cmd.Start(); err != nil {
		return domain.ExecResult{}, &domain.ExecError{Kind: domain.ExecSpawn, Path: exe, Err: err}
	}

	waitErr := cmd.Wait()

	var result domain.ExecResult
	if out != nil {
		result.Output = out.String()
	}

	state := cmd.ProcessState
	if state == nil || !state.Exited() {
		if waitErr == nil {
			waitErr = errors.New("child did not exit normally")
		}
		return result, &domain.ExecError{Kind: domain.ExecWait, Path: exe, Err: waitErr}
	}
	result.ExitCode = state.ExitCode()

	var exitErr *exec.ExitError
	if waitErr != nil && !errors.As(waitErr, &exitErr) && !errors.Is(waitErr, exec.ErrWaitDelay) {
		// Copying stdout failed. Partial output is still usable.
		if result.Output == "" {
			return result, &domain.ExecError{Kind: domain.ExecIO, Path: exe, Err: waitErr}
		}
		r.logger.Warn("child output truncated by read error",
			zap.String("exe", exe),
			zap.Error(waitErr))
	}

	return result, nil
}

// Start spawns exe without waiting for it. Its stdout and stderr are the
// daemon's own.
func (r *ProcessRunnerImpl) Start(exe string, args []string) error {
	cmd := exec.Command(exe, args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		return &domain.ExecError{Kind: domain.ExecSpawn, Path: exe, Err: err}
	}

	r.mu.Lock()
	r.children = append(r.children, cmd.Process)
	r.mu.Unlock()
	return nil
}

// Reap performs one non-blocking sweep over detached children.
func (r *ProcessRunnerImpl) Reap() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	reaped := 0
	alive := r.children[:0]
	for _, p := range r.children {
		var ws unix.WaitStatus
		pid, err := unix.Wait4(p.Pid, &ws, unix.WNOHANG, nil)
		switch {
		case err == unix.EINTR || (err == nil && pid == 0):
			alive = append(alive, p)
			continue
		case err != nil:
			// ECHILD: nothing left to collect for this pid.
			r.logger.Debug("child already collected", zap.Int("pid", p.Pid), zap.Error(err))
		default:
			r.logger.Debug("reaped child",
				zap.Int("pid", p.Pid),
				zap.Int("exit_code", ws.ExitStatus()),
				zap.Bool("signaled", ws.Signaled()))
		}
		_ = p.Release()
		reaped++
	}
	for i := len(alive); i < len(r.children); i++ {
		r.children[i] = nil
	}
	r.children = alive
	return reaped
}

// Pending returns the number of detached children not yet reaped.
func (r *ProcessRunnerImpl) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.children)
}

// killTree kills pid and all of its descendants. Children are listed before
// the parent dies, since they are reparented afterwards.
func killTree(pid int) error {
	p, err := process.NewProcess(int32(pid))
	if err != nil {
		return os.ErrProcessDone
	}

	children, _ := p.Children()
	killErr := p.Kill()
	for _, c := range children {
		_ = killTree(int(c.Pid))
	}
	return killErr
}

// cappedBuffer keeps the first limit bytes written and silently drops the rest,
// so a chatty child never blocks on a full pipe.
type cappedBuffer struct {
	buf   bytes.Buffer
	limit int
}

func (c *cappedBuffer) Write(p []byte) (int, error) {
	if room := c.limit - c.buf.Len(); room > 0 {
		if len(p) > room {
			c.buf.Write(p[:room])
		} else {
			c.buf.Write(p)
		}
	}
	return len(p), nil
}

func (c *cappedBuffer) String() string {
	return c.buf.String()
}

// Ensure ProcessRunnerImpl implements domain.ProcessRunner.
var _ domain.ProcessRunner = (*ProcessRunnerImpl)(nil)
