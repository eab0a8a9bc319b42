package chat

import (
	"context"
	"time"
)

// Policy is a retry delay schedule. The zero value means a single attempt
// with no retries.
type Policy struct {
	Delays []time.Duration
}

// DefaultSendPolicy is the send schedule: one immediate attempt, then three
// retries after 1s, 2s and 4s.
func DefaultSendPolicy() Policy {
	return Policy{Delays: []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}}
}

// Attempts returns the total number of attempts the policy allows.
func (p Policy) Attempts() int {
	return len(p.Delays) + 1
}

// retry runs op once, then once more after each delay in the policy until op
// succeeds. It returns the last error when the schedule is exhausted, or the
// context error if the caller goes away mid-schedule.
func retry(ctx context.Context, p Policy, op func(context.Context) error) error {
	err := op(ctx)
	if err == nil {
		return nil
	}

	for _, delay := range p.Delays {
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		if err = op(ctx); err == nil {
			return nil
		}
	}
	return err
}
