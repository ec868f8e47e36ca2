package infra

import (
	"time"

	"github.com/eliteGoblin/focusd/logmonitor/internal/domain"
)

// SystemClock implements domain.Clock. time.Now carries a monotonic
// reading, so intervals are immune to wall-clock steps.
type SystemClock struct{}

// NewSystemClock creates the production clock.
func NewSystemClock() domain.Clock {
	return SystemClock{}
}

func (SystemClock) Now() time.Time {
	return time.Now()
}
