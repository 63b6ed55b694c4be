package retry

import (
	"context"
	"testing"
	"time"

	errs "phototriage/pkg/errors"
	"phototriage/pkg/logger"
)

func fastConfig(maxAttempts int) *Config {
	return &Config{
		MaxAttempts: maxAttempts,
		Backoff:     &ConstantBackoff{Delay: 0},
		RetryIf:     DefaultRetryIf,
		Context:     context.Background(),
		Logger:      logger.NewNopLogger(),
	}
}

func TestDoSucceedsFirstAttempt(t *testing.T) {
	calls := 0
	err := Do(func() error {
		calls++
		return nil
	}, fastConfig(3))
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestDoRetriesUntilSuccess(t *testing.T) {
	calls := 0
	err := Do(func() error {
		calls++
		if calls < 3 {
			return errs.New(errs.ErrorTypeExtraction, "panel not rendered")
		}
		return nil
	}, fastConfig(5))
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestDoExhaustsAttempts(t *testing.T) {
	calls := 0
	err := Do(func() error {
		calls++
		return errs.New(errs.ErrorTypeExtraction, "panel not rendered")
	}, fastConfig(3))
	if err == nil {
		t.Fatal("expected error after exhausted attempts")
	}
	if calls != 3 {
		t.Errorf("calls = %d, want exactly 3", calls)
	}
}

func TestDoStopsOnNonRetryableError(t *testing.T) {
	calls := 0
	err := Do(func() error {
		calls++
		return errs.New(errs.ErrorTypeStalled, "cursor did not move")
	}, fastConfig(5))
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1 (stalls never retry here)", calls)
	}
}

func TestDoHonorsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cfg := fastConfig(5)
	cfg.Backoff = &ConstantBackoff{Delay: time.Minute}
	cfg.Context = ctx

	calls := 0
	err := Do(func() error {
		calls++
		return errs.New(errs.ErrorTypeExtraction, "panel not rendered")
	}, cfg)
	if err == nil {
		t.Fatal("expected cancellation error")
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1 (cancellation short-circuits the wait)", calls)
	}
}

func TestDoCallsOnRetry(t *testing.T) {
	var retries []int
	cfg := fastConfig(3)
	cfg.OnRetry = func(attempt int, err error, delay time.Duration) {
		retries = append(retries, attempt)
	}

	_ = Do(func() error {
		return errs.New(errs.ErrorTypeExtraction, "panel not rendered")
	}, cfg)

	if len(retries) != 3 {
		t.Errorf("OnRetry called %d times, want 3", len(retries))
	}
}

func TestDoWithResult(t *testing.T) {
	calls := 0
	got, err := DoWithResult(func() (string, error) {
		calls++
		if calls < 2 {
			return "", errs.New(errs.ErrorTypeDownload, "transfer did not complete")
		}
		return "ready", nil
	}, fastConfig(3))
	if err != nil {
		t.Fatalf("DoWithResult: %v", err)
	}
	if got != "ready" {
		t.Errorf("result = %q, want ready", got)
	}
}

func TestDefaultRetryIf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"extraction is retryable", errs.New(errs.ErrorTypeExtraction, "x"), true},
		{"download is retryable", errs.New(errs.ErrorTypeDownload, "x"), true},
		{"stalled is not retryable", errs.New(errs.ErrorTypeStalled, "x"), false},
		{"session is not retryable", errs.New(errs.ErrorTypeSession, "x"), false},
		{"context cancellation is not retryable", context.Canceled, false},
		{"deadline is not retryable", context.DeadlineExceeded, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DefaultRetryIf(tt.err); got != tt.want {
				t.Errorf("DefaultRetryIf = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestConstantBackoff(t *testing.T) {
	cb := &ConstantBackoff{Delay: 2 * time.Second}
	if cb.NextDelay(0) != 0 {
		t.Error("attempt 0 should have no delay")
	}
	for attempt := 1; attempt <= 3; attempt++ {
		if got := cb.NextDelay(attempt); got != 2*time.Second {
			t.Errorf("NextDelay(%d) = %v, want 2s", attempt, got)
		}
	}
}

func TestLinearBackoff(t *testing.T) {
	lb := &LinearBackoff{BaseDelay: time.Second, Increment: time.Second, MaxDelay: 3 * time.Second}

	want := []time.Duration{time.Second, 2 * time.Second, 3 * time.Second, 3 * time.Second}
	for i, expected := range want {
		if got := lb.NextDelay(i + 1); got != expected {
			t.Errorf("NextDelay(%d) = %v, want %v", i+1, got, expected)
		}
	}
}

func TestExponentialBackoff(t *testing.T) {
	eb := &ExponentialBackoff{BaseDelay: time.Second, MaxDelay: 10 * time.Second, Multiplier: 2.0}

	want := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second, 10 * time.Second}
	for i, expected := range want {
		if got := eb.NextDelay(i + 1); got != expected {
			t.Errorf("NextDelay(%d) = %v, want %v", i+1, got, expected)
		}
	}
}

func TestExponentialBackoffJitterStaysInBounds(t *testing.T) {
	eb := &ExponentialBackoff{BaseDelay: time.Second, MaxDelay: time.Minute, Multiplier: 2.0, JitterFactor: 0.5}

	for i := 0; i < 100; i++ {
		got := eb.NextDelay(2)
		if got < time.Second || got > 3*time.Second {
			t.Fatalf("NextDelay(2) = %v, want within [1s, 3s]", got)
		}
	}
}

func TestWait(t *testing.T) {
	if err := Wait(context.Background(), 0); err != nil {
		t.Errorf("Wait with zero delay: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := Wait(ctx, time.Minute); err == nil {
		t.Error("Wait on cancelled context should fail")
	}
}
