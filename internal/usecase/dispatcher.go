package usecase

import (
	"time"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/logmonitor/internal/domain"
)

// targetState is the debounce bookkeeping of one target.
type targetState struct {
	target   domain.Target
	lastSent map[string]time.Time // keyed by notification name
}

// DispatcherImpl implements domain.Dispatcher.
type DispatcherImpl struct {
	targets []*targetState
	runner  domain.ProcessRunner
	clock   domain.Clock
	logger  *zap.Logger
}

// NewDispatcher creates a dispatcher for targets. Debounce state lives for
// the lifetime of the dispatcher and is never persisted.
func NewDispatcher(
	targets []domain.Target,
	runner domain.ProcessRunner,
	clock domain.Clock,
	logger *zap.Logger,
) domain.Dispatcher {
	states := make([]*targetState, 0, len(targets))
	for _, t := range targets {
		states = append(states, &targetState{
			target:   t,
			lastSent: make(map[string]time.Time),
		})
	}
	return &DispatcherImpl{
		targets: states,
		runner:  runner,
		clock:   clock,
		logger:  logger,
	}
}

// Dispatch sends alert to every target whose debounce window allows it.
func (d *DispatcherImpl) Dispatch(alert domain.Alert) []string {
	var sent []string
	now := d.clock.Now()

	for _, ts := range d.targets {
		if !ts.due(alert.Notification, now) {
			d.logger.Debug("notification debounced",
				zap.String("target", ts.target.Name),
				zap.String("notification", alert.Notification))
			continue
		}

		// Recorded at invocation; the send outcome is never observed.
		ts.lastSent[alert.Notification] = now

		err := d.runner.Start(ts.target.Send, []string{alert.Title, alert.Desc, alert.Level})
		if err != nil {
			d.logger.Warn("send failed",
				zap.String("target", ts.target.Name),
				zap.String("notification", alert.Notification),
				zap.Error(err))
			continue
		}

		d.logger.Info("notification sent",
			zap.String("target", ts.target.Name),
			zap.String("notification", alert.Notification))
		sent = append(sent, ts.target.Name)
	}

	return sent
}

func (ts *targetState) due(notification string, now time.Time) bool {
	last, ok := ts.lastSent[notification]
	if !ok {
		return true
	}
	if ts.target.Debounce == 0 {
		return false
	}
	return now.Sub(last) >= ts.target.Debounce
}

// Ensure DispatcherImpl implements domain.Dispatcher.
var _ domain.Dispatcher = (*DispatcherImpl)(nil)
