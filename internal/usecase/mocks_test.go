package usecase

import (
	"context"
	"time"

	"github.com/eliteGoblin/focusd/logmonitor/internal/domain"
)

type runCall struct {
	exe       string
	args      []string
	maxOutput int
}

// mockProcessRunner implements domain.ProcessRunner for testing.
// Results are looked up by executable path.
type mockProcessRunner struct {
	results  map[string]domain.ExecResult
	runErrs  map[string]error
	startErr map[string]error

	runs   []runCall
	starts []runCall
}

func newMockRunner() *mockProcessRunner {
	return &mockProcessRunner{
		results:  make(map[string]domain.ExecResult),
		runErrs:  make(map[string]error),
		startErr: make(map[string]error),
	}
}

func (m *mockProcessRunner) Run(_ context.Context, exe string, args []string, maxOutput int) (domain.ExecResult, error) {
	m.runs = append(m.runs, runCall{exe: exe, args: args, maxOutput: maxOutput})
	if err := m.runErrs[exe]; err != nil {
		return domain.ExecResult{}, err
	}
	return m.results[exe], nil
}

func (m *mockProcessRunner) Start(exe string, args []string) error {
	m.starts = append(m.starts, runCall{exe: exe, args: args})
	return m.startErr[exe]
}

func (m *mockProcessRunner) Reap() int {
	return 0
}

func (m *mockProcessRunner) Pending() int {
	return 0
}

func (m *mockProcessRunner) runsOf(exe string) []runCall {
	var calls []runCall
	for _, c := range m.runs {
		if c.exe == exe {
			calls = append(calls, c)
		}
	}
	return calls
}

func (m *mockProcessRunner) startsOf(exe string) []runCall {
	var calls []runCall
	for _, c := range m.starts {
		if c.exe == exe {
			calls = append(calls, c)
		}
	}
	return calls
}

// mockClock implements domain.Clock for testing.
type mockClock struct {
	now time.Time
}

func newMockClock() *mockClock {
	return &mockClock{now: time.Unix(1700000000, 0)}
}

func (c *mockClock) Now() time.Time { return c.now }

func (c *mockClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

// mockDispatcher records dispatched alerts.
type mockDispatcher struct {
	alerts []domain.Alert
}

func (d *mockDispatcher) Dispatch(alert domain.Alert) []string {
	d.alerts = append(d.alerts, alert)
	return nil
}
