// Package retry applies a bounded exponential backoff policy to a call site.
// Every remote call that can fail transiently (page fetch, speech synthesis,
// upload) goes through a Policy so the retry semantics stay visible where the
// call is made.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	// DefaultAttempts is the total number of attempts including the first one.
	DefaultAttempts = 3
	// DefaultBase is the backoff base in seconds: base**attempt.
	DefaultBase = 2.0
)

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Policy describes how often and how patiently a call is retried.
type Policy struct {
	// MaxAttempts includes the initial attempt. Zero means DefaultAttempts.
	MaxAttempts int
	// Base is the exponential base in seconds. Zero means DefaultBase.
	Base float64
	// Sleep replaces the real timer; tests use it to avoid waiting.
	Sleep SleepFunc
}

// Default returns the 3-attempt, base-2 policy.
func Default() Policy {
	return Policy{MaxAttempts: DefaultAttempts, Base: DefaultBase}
}

// ExhaustedError is returned when every attempt failed.
type ExhaustedError struct {
	Name     string
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("%s: failed after %d attempts: %v", e.Name, e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error { return e.Err }

type permanentError struct{ err error }

func (p *permanentError) Error() string { return p.err.Error() }
func (p *permanentError) Unwrap() error { return p.err }

// Permanent marks err as not worth retrying. Do returns it unwrapped right away.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// Backoff returns the wait after the given 0-indexed failed attempt.
func (p Policy) Backoff(attempt int) time.Duration {
	base := p.Base
	if base <= 0 {
		base = DefaultBase
	}
	secs := math.Pow(base, float64(attempt))
	return time.Duration(secs * float64(time.Second))
}

func (p Policy) attempts() int {
	if p.MaxAttempts <= 0 {
		return DefaultAttempts
	}
	return p.MaxAttempts
}

// Do calls fn until it succeeds, returns a Permanent error, ctx ends, or the
// attempts run out. name only labels log lines and the exhausted error.
func (p Policy) Do(ctx context.Context, name string, fn func(ctx context.Context, attempt int) error) error {
	sleep := p.Sleep
	if sleep == nil {
		sleep = sleepCtx
	}
	n := p.attempts()
	var lastErr error
	for i := 0; i < n; i++ {
		err := fn(ctx, i)
		if err == nil {
			return nil
		}
		var perm *permanentError
		if errors.As(err, &perm) {
			return perm.err
		}
		lastErr = err
		if i == n-1 {
			break
		}
		wait := p.Backoff(i)
		log.Warn().Err(err).Str("op", name).Int("attempt", i+1).Int("max", n).Dur("backoff", wait).Msg("retrying")
		if serr := sleep(ctx, wait); serr != nil {
			return serr
		}
	}
	log.Error().Err(lastErr).Str("op", name).Int("attempts", n).Msg("giving up")
	return &ExhaustedError{Name: name, Attempts: n, Err: lastErr}
}

// Value is Do for calls that produce a result.
func Value[T any](ctx context.Context, p Policy, name string, fn func(ctx context.Context, attempt int) (T, error)) (T, error) {
	var out T
	err := p.Do(ctx, name, func(ctx context.Context, attempt int) error {
		v, err := fn(ctx, attempt)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// NoSleep is a SleepFunc that returns immediately, for tests.
func NoSleep(ctx context.Context, _ time.Duration) error { return ctx.Err() }
