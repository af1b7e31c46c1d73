package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestNextDelay(t *testing.T) {
	p := Policy{MaxRetries: 3, BaseDelay: time.Second, MaxDelay: 30 * time.Second}

	tests := []struct {
		attempt  int
		expected time.Duration
		ok       bool
	}{
		{0, 4 * time.Second, true},
		{1, 8 * time.Second, true},
		{2, 16 * time.Second, true},
		{3, 0, false},
		{-1, 0, false},
	}

	for _, tt := range tests {
		delay, ok := p.NextDelay(tt.attempt)
		if delay != tt.expected || ok != tt.ok {
			t.Errorf("NextDelay(%d) = (%v, %v), want (%v, %v)",
				tt.attempt, delay, ok, tt.expected, tt.ok)
		}
	}
}

func TestNextDelayCap(t *testing.T) {
	p := Policy{MaxRetries: 5, BaseDelay: time.Second, MaxDelay: 10 * time.Second}

	delay, ok := p.NextDelay(3) // uncapped would be 32s
	if !ok {
		t.Fatal("expected retry to be allowed")
	}
	if delay != 10*time.Second {
		t.Errorf("delay = %v, want capped at 10s", delay)
	}
}

func TestNextDelayNoCap(t *testing.T) {
	p := Policy{MaxRetries: 5, BaseDelay: time.Second}

	delay, ok := p.NextDelay(4)
	if !ok || delay != 64*time.Second {
		t.Errorf("NextDelay(4) = (%v, %v), want (64s, true)", delay, ok)
	}
}

func TestDoRetriesUntilSuccess(t *testing.T) {
	p := Policy{MaxRetries: 3, BaseDelay: time.Microsecond}
	errTransient := errors.New("transient")

	calls := 0
	err := Do(context.Background(), p,
		func(err error) bool { return errors.Is(err, errTransient) },
		func(ctx context.Context, attempt int) error {
			calls++
			if calls < 3 {
				return errTransient
			}
			return nil
		})

	if err != nil {
		t.Errorf("Do returned %v, want nil", err)
	}
	if calls != 3 {
		t.Errorf("fn called %d times, want 3", calls)
	}
}

func TestDoExhaustsRetries(t *testing.T) {
	p := Policy{MaxRetries: 2, BaseDelay: time.Microsecond}
	errTransient := errors.New("transient")

	calls := 0
	err := Do(context.Background(), p,
		func(err error) bool { return true },
		func(ctx context.Context, attempt int) error {
			calls++
			return errTransient
		})

	if !errors.Is(err, errTransient) {
		t.Errorf("Do returned %v, want transient error", err)
	}
	// Initial attempt plus MaxRetries retries.
	if calls != 3 {
		t.Errorf("fn called %d times, want 3", calls)
	}
}

func TestDoStopsOnNonRetryable(t *testing.T) {
	p := Policy{MaxRetries: 3, BaseDelay: time.Microsecond}
	errFatal := errors.New("fatal")

	calls := 0
	err := Do(context.Background(), p,
		func(err error) bool { return false },
		func(ctx context.Context, attempt int) error {
			calls++
			return errFatal
		})

	if !errors.Is(err, errFatal) {
		t.Errorf("Do returned %v, want fatal error", err)
	}
	if calls != 1 {
		t.Errorf("fn called %d times, want 1", calls)
	}
}

func TestDoCanceledDuringBackoff(t *testing.T) {
	p := Policy{MaxRetries: 3, BaseDelay: time.Hour}

	ctx, cancel := context.WithCancel(context.Background())

	errTransient := errors.New("transient")
	done := make(chan error, 1)
	go func() {
		done <- Do(ctx, p,
			func(err error) bool { return true },
			func(ctx context.Context, attempt int) error { return errTransient })
	}()

	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Do returned %v, want context.Canceled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Do did not return after cancellation")
	}
}

func TestSleep(t *testing.T) {
	t.Run("zero delay returns immediately", func(t *testing.T) {
		if err := Sleep(context.Background(), 0); err != nil {
			t.Errorf("Sleep(0) = %v, want nil", err)
		}
	})

	t.Run("canceled context short-circuits", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		if err := Sleep(ctx, time.Hour); !errors.Is(err, context.Canceled) {
			t.Errorf("Sleep = %v, want context.Canceled", err)
		}
	})
}
