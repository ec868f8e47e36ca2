// Package usecase contains application business logic.
package usecase

import (
	"context"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/logmonitor/internal/domain"
)

// DefaultOutputLimit caps captured stdout of field executables.
const DefaultOutputLimit = 512

// MatcherImpl implements domain.LineHandler.
type MatcherImpl struct {
	notifications []domain.Notification
	runner        domain.ProcessRunner
	dispatcher    domain.Dispatcher
	outputLimit   int
	logger        *zap.Logger
}

// NewMatcher creates a matcher evaluating notifications in load order.
func NewMatcher(
	notifications []domain.Notification,
	runner domain.ProcessRunner,
	dispatcher domain.Dispatcher,
	outputLimit int,
	logger *zap.Logger,
) domain.LineHandler {
	if outputLimit <= 0 {
		outputLimit = DefaultOutputLimit
	}
	return &MatcherImpl{
		notifications: notifications,
		runner:        runner,
		dispatcher:    dispatcher,
		outputLimit:   outputLimit,
		logger:        logger,
	}
}

// HandleLine runs the filter of every notification bound to file and
// dispatches each match.
func (m *MatcherImpl) HandleLine(ctx context.Context, file domain.MonitoredFile, line string) int {
	matched := 0

	for _, n := range m.notifications {
		if !n.Watches(file.Path) {
			continue
		}
		if !m.matches(ctx, n, line) {
			continue
		}
		matched++

		alert := m.resolve(ctx, n, line)
		m.logger.Info("notification matched",
			zap.String("notification", n.Name),
			zap.String("file", file.Path),
			zap.String("level", alert.Level),
			zap.String("title", alert.Title))

		sent := m.dispatcher.Dispatch(alert)
		m.logger.Debug("notification dispatched",
			zap.String("notification", n.Name),
			zap.Strings("targets", sent))
	}

	return matched
}

func (m *MatcherImpl) matches(ctx context.Context, n domain.Notification, line string) bool {
	res, err := m.runner.Run(ctx, n.Filter, []string{line}, 0)
	if err != nil {
		m.logger.Warn("filter failed",
			zap.String("notification", n.Name),
			zap.String("filter", n.Filter),
			zap.Error(err))
		return false
	}
	return res.ExitCode == 0
}

// resolve computes title, description and level for a matched line.
// A field whose executable fails resolves to domain.ExecErrorValue.
func (m *MatcherImpl) resolve(ctx context.Context, n domain.Notification, line string) domain.Alert {
	alert := domain.Alert{
		Notification: n.Name,
		Title:        m.resolveField(ctx, n, "title", n.Title, line),
		Desc:         m.resolveField(ctx, n, "desc", n.Desc, line),
		Level:        m.resolveField(ctx, n, "level", n.Level, line),
		Line:         line,
	}

	if alert.Level != domain.ExecErrorValue {
		if _, err := domain.ParseLevel(alert.Level); err != nil {
			m.logger.Warn("field resolution failed",
				zap.String("notification", n.Name),
				zap.String("field", "level"),
				zap.Error(err))
			alert.Level = domain.ExecErrorValue
		}
	}
	return alert
}

func (m *MatcherImpl) resolveField(ctx context.Context, n domain.Notification, name string, f domain.Field, line string) string {
	if !f.Executable {
		return f.Value
	}

	res, err := m.runner.Run(ctx, f.Value, []string{line}, m.outputLimit)
	if err != nil {
		m.logger.Warn("field resolution failed",
			zap.String("notification", n.Name),
			zap.String("field", name),
			zap.Error(err))
		return domain.ExecErrorValue
	}
	if res.ExitCode != 0 {
		m.logger.Warn("field resolution failed",
			zap.String("notification", n.Name),
			zap.String("field", name),
			zap.String("exe", f.Value),
			zap.Int("exit_code", res.ExitCode))
		return domain.ExecErrorValue
	}

	v := domain.FirstLine(res.Output)
	if v == "" {
		m.logger.Warn("field resolution failed",
			zap.String("notification", n.Name),
			zap.String("field", name),
			zap.String("exe", f.Value),
			zap.String("reason", "no output"))
		return domain.ExecErrorValue
	}
	return v
}

// Ensure MatcherImpl implements domain.LineHandler.
var _ domain.LineHandler = (*MatcherImpl)(nil)
