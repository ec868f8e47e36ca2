// Package daemon implements the poll loop that drives file tracking,
// matching and child reaping.
package daemon

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/logmonitor/internal/domain"
	"github.com/eliteGoblin/focusd/logmonitor/internal/tail"
)

// MonitorConfig holds poll loop configuration.
type MonitorConfig struct {
	PollInterval time.Duration // Pause between two ticks (default 1s)
	Tracker      tail.TrackerConfig
}

// DefaultMonitorConfig returns default poll loop configuration.
func DefaultMonitorConfig() MonitorConfig {
	return MonitorConfig{
		PollInterval: time.Second,
		Tracker:      tail.DefaultTrackerConfig(),
	}
}

// Monitor is the single-threaded poll loop. Every tick it polls each
// monitored file in order, hands complete lines to the matcher and reaps
// finished send processes.
type Monitor struct {
	config   MonitorConfig
	trackers []*tail.Tracker
	handler  domain.LineHandler
	runner   domain.ProcessRunner
	waker    domain.Waker
	logger   *zap.Logger
}

// NewMonitor creates a poll loop over files. waker may be nil.
func NewMonitor(
	config MonitorConfig,
	files []domain.MonitoredFile,
	handler domain.LineHandler,
	runner domain.ProcessRunner,
	clock domain.Clock,
	waker domain.Waker,
	logger *zap.Logger,
) *Monitor {
	trackers := make([]*tail.Tracker, 0, len(files))
	for _, f := range files {
		trackers = append(trackers, tail.NewTracker(f, config.Tracker, clock, logger))
	}
	return &Monitor{
		config:   config,
		trackers: trackers,
		handler:  handler,
		runner:   runner,
		waker:    waker,
		logger:   logger,
	}
}

// Open opens every monitored file. Log files start at their current end.
func (m *Monitor) Open() {
	for _, t := range m.trackers {
		f := t.File()
		m.logger.Info("monitoring "+string(f.Kind)+" file", zap.String("path", f.Path))
		t.Open()
	}
}

// Tick polls every file once and returns the number of lines handled.
func (m *Monitor) Tick(ctx context.Context) int {
	handled := 0
	for _, t := range m.trackers {
		f := t.File()
		t.Poll(func(line string) {
			handled++
			m.logger.Debug("line read", zap.String("file", f.Path), zap.String("line", line))
			m.handler.HandleLine(ctx, f, line)
		})
	}
	return handled
}

// Close releases every file handle and reaps remaining children.
func (m *Monitor) Close() {
	for _, t := range m.trackers {
		t.Close()
	}
	m.reap()

	if n := m.runner.Pending(); n > 0 {
		m.logger.Info("send processes still running at shutdown", zap.Int("pending", n))
	}
}

// Run opens the files and loops until ctx is canceled.
// SIGCHLD triggers an extra reap between ticks.
func (m *Monitor) Run(ctx context.Context) error {
	m.Open()
	defer m.Close()

	m.logger.Info("monitor started",
		zap.Int("files", len(m.trackers)),
		zap.Duration("poll_interval", m.config.PollInterval))

	sigchld := make(chan os.Signal, 1)
	signal.Notify(sigchld, syscall.SIGCHLD)
	defer signal.Stop(sigchld)

	var wake <-chan struct{}
	if m.waker != nil {
		wake = m.waker.C()
	}

	timer := time.NewTimer(m.config.PollInterval)
	defer timer.Stop()

	for {
		m.Tick(ctx)
		m.reap()

		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(m.config.PollInterval)

	wait:
		for {
			select {
			case <-ctx.Done():
				m.logger.Info("monitor stopping")
				return nil

			case <-timer.C:
				break wait

			case <-wake:
				m.logger.Debug("woken by file event")
				break wait

			case <-sigchld:
				m.reap()
			}
		}
	}
}

func (m *Monitor) reap() {
	if n := m.runner.Reap(); n > 0 {
		m.logger.Debug("reaped children", zap.Int("count", n))
	}
}
