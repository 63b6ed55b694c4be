package supervisor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errs "phototriage/pkg/errors"
	"phototriage/pkg/logger"
	"phototriage/pkg/retry"
	"phototriage/pkg/scan"
)

func newFastSupervisor(run RunFunc, maxAttempts int) *Supervisor {
	s := New(run, maxAttempts, logger.NewNopLogger())
	s.backoff = &retry.ConstantBackoff{Delay: 0}
	return s
}

func stallErr() error {
	return errs.New(errs.ErrorTypeStalled, "cursor did not move")
}

func TestRunReturnsNilOnSuccess(t *testing.T) {
	calls := 0
	s := newFastSupervisor(func(ctx context.Context) error {
		calls++
		return nil
	}, 3)

	require.NoError(t, s.Run(context.Background()))
	assert.Equal(t, 1, calls)
}

func TestRunRestartsOnStall(t *testing.T) {
	calls := 0
	s := newFastSupervisor(func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return stallErr()
		}
		return nil
	}, 5)

	require.NoError(t, s.Run(context.Background()))
	assert.Equal(t, 3, calls, "stalls restart until a clean run")
}

func TestRunPropagatesNonStallErrorsImmediately(t *testing.T) {
	calls := 0
	s := newFastSupervisor(func(ctx context.Context) error {
		calls++
		return errs.New(errs.ErrorTypeSession, "token rejected")
	}, 5)

	err := s.Run(context.Background())
	require.Error(t, err)
	assert.False(t, scan.IsStalled(err))
	assert.Equal(t, 1, calls, "only stalls earn a restart")
}

func TestRunExhaustsBudgetAndReturnsLastStall(t *testing.T) {
	calls := 0
	s := newFastSupervisor(func(ctx context.Context) error {
		calls++
		return stallErr()
	}, 3)

	err := s.Run(context.Background())
	require.Error(t, err)
	assert.True(t, scan.IsStalled(err), "the caller needs the stall status for its exit code")
	assert.Equal(t, 3, calls)
}

func TestRunHonorsContextDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	s := New(func(ctx context.Context) error {
		calls++
		cancel()
		return stallErr()
	}, 5, logger.NewNopLogger())

	err := s.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls, "cancellation interrupts the restart wait")
}

func TestNewClampsAttempts(t *testing.T) {
	calls := 0
	s := newFastSupervisor(func(ctx context.Context) error {
		calls++
		return stallErr()
	}, 0)

	require.Error(t, s.Run(context.Background()))
	assert.Equal(t, 1, calls, "a non-positive budget still runs once")
}
