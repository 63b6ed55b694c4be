// Package supervisor restarts a scan session after a confirmed
// navigation stall. A stall means the remote view stopped responding to
// advance commands; the recovery unit is a whole fresh session, not
// another in-process retry, so the supervisor tears the run down and
// builds a new one from scratch.
package supervisor

import (
	"context"
	"time"

	"phototriage/pkg/logger"
	"phototriage/pkg/retry"
	"phototriage/pkg/scan"
)

// RunFunc builds a fresh session and runs one scan over it. Each
// invocation must construct its own driver so no stale page state leaks
// between attempts.
type RunFunc func(ctx context.Context) error

// Supervisor bounds the number of stall-triggered session restarts
type Supervisor struct {
	run         RunFunc
	maxAttempts int
	backoff     retry.BackoffStrategy
	logger      logger.Logger
}

// New creates a supervisor over the given run function
func New(run RunFunc, maxAttempts int, log logger.Logger) *Supervisor {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	if log == nil {
		log = logger.GetLogger()
	}
	return &Supervisor{
		run:         run,
		maxAttempts: maxAttempts,
		backoff: &retry.ExponentialBackoff{
			BaseDelay:    5 * time.Second,
			MaxDelay:     2 * time.Minute,
			Multiplier:   2.0,
			JitterFactor: 0.1,
		},
		logger: log,
	}
}

// Run executes scan sessions until one ends without a stall or the
// restart budget is spent. Only stalls trigger a restart; every other
// error propagates immediately. When the budget runs out the last stall
// error is returned so the caller can exit with the stall status.
func (s *Supervisor) Run(ctx context.Context) error {
	var lastErr error

	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		if attempt > 1 {
			delay := s.backoff.NextDelay(attempt - 1)
			s.logger.InfoWithFields("Restarting scan session", map[string]interface{}{
				"attempt":      attempt,
				"max_attempts": s.maxAttempts,
				"wait":         delay.String(),
			})
			if err := retry.Wait(ctx, delay); err != nil {
				return err
			}
		}

		err := s.run(ctx)
		if err == nil {
			return nil
		}
		if !scan.IsStalled(err) {
			return err
		}

		lastErr = err
		s.logger.WithError(err).WithFields(map[string]interface{}{
			"attempt":      attempt,
			"max_attempts": s.maxAttempts,
		}).Warn("Scan session stalled")
	}

	s.logger.WithError(lastErr).Error("Restart budget exhausted, giving up")
	return lastErr
}
