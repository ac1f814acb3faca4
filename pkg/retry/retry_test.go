package retry

import (
	"errors"
	"testing"
	"time"
)

var errRetryable = errors.New("retryable")

func TestDoSucceedsFirstAttempt(t *testing.T) {
	calls := 0
	err := Do(3, time.Millisecond, func(error) bool { return true }, func() error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected 1 call, got %d", calls)
	}
}

func TestDoRetriesUntilSuccess(t *testing.T) {
	calls := 0
	err := Do(3, time.Millisecond, func(err error) bool { return errors.Is(err, errRetryable) }, func() error {
		calls++
		if calls < 3 {
			return errRetryable
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
}

func TestDoExhaustsAttempts(t *testing.T) {
	calls := 0
	err := Do(3, time.Millisecond, func(error) bool { return true }, func() error {
		calls++
		return errRetryable
	})
	if !errors.Is(err, errRetryable) {
		t.Fatalf("expected errRetryable, got %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
}

func TestDoStopsOnNonRetryable(t *testing.T) {
	permanent := errors.New("permanent")
	calls := 0
	err := Do(5, time.Millisecond, func(err error) bool { return errors.Is(err, errRetryable) }, func() error {
		calls++
		return permanent
	})
	if !errors.Is(err, permanent) {
		t.Fatalf("expected permanent error, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected 1 call, got %d", calls)
	}
}

func TestDoNormalizesAttempts(t *testing.T) {
	calls := 0
	_ = Do(0, 0, nil, func() error {
		calls++
		return errRetryable
	})
	if calls != 1 {
		t.Fatalf("expected 1 call, got %d", calls)
	}
}
