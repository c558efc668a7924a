package wigle

import (
	"context"
	"time"
)

// TimerPauser sleeps on a timer and wakes early when the context ends.
type TimerPauser struct{}

// Pause blocks for delay. It returns the context error if ctx finished first.
func (TimerPauser) Pause(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
