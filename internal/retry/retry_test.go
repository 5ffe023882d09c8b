package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestBackoff_Base2(t *testing.T) {
	p := Default()
	want := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}
	for i, w := range want {
		if got := p.Backoff(i); got != w {
			t.Fatalf("attempt %d: expected %v, got %v", i, w, got)
		}
	}
}

func TestDo_SucceedsAfterTransientFailures(t *testing.T) {
	var waits []time.Duration
	p := Policy{MaxAttempts: 3, Base: 2, Sleep: func(_ context.Context, d time.Duration) error {
		waits = append(waits, d)
		return nil
	}}
	calls := 0
	err := p.Do(context.Background(), "op", func(context.Context, int) error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
	if len(waits) != 2 || waits[0] != time.Second || waits[1] != 2*time.Second {
		t.Fatalf("unexpected waits: %v", waits)
	}
}

func TestDo_ExhaustedWrapsLastError(t *testing.T) {
	sentinel := errors.New("boom")
	p := Policy{MaxAttempts: 2, Sleep: NoSleep}
	err := p.Do(context.Background(), "synth", func(context.Context, int) error { return sentinel })
	var ex *ExhaustedError
	if !errors.As(err, &ex) {
		t.Fatalf("expected ExhaustedError, got %T", err)
	}
	if ex.Attempts != 2 || !errors.Is(err, sentinel) {
		t.Fatalf("unexpected exhausted error: %+v", ex)
	}
}

func TestDo_PermanentStopsImmediately(t *testing.T) {
	sentinel := errors.New("bad request")
	calls := 0
	p := Policy{MaxAttempts: 5, Sleep: NoSleep}
	err := p.Do(context.Background(), "op", func(context.Context, int) error {
		calls++
		return Permanent(sentinel)
	})
	if calls != 1 {
		t.Fatalf("expected a single call, got %d", calls)
	}
	if err != sentinel {
		t.Fatalf("expected the unwrapped permanent error, got %v", err)
	}
}

func TestDo_ContextCancelledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p := Policy{MaxAttempts: 3}
	err := p.Do(ctx, "op", func(context.Context, int) error { return errors.New("x") })
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestValue_ReturnsResult(t *testing.T) {
	p := Policy{MaxAttempts: 2, Sleep: NoSleep}
	n := 0
	v, err := Value(context.Background(), p, "op", func(context.Context, int) (string, error) {
		n++
		if n == 1 {
			return "", errors.New("first fails")
		}
		return "ok", nil
	})
	if err != nil || v != "ok" {
		t.Fatalf("expected ok, got %q, %v", v, err)
	}
}
