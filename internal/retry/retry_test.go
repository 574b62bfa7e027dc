package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestDo_SucceedsAfterTransientFailures(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	calls := 0
	err := Do(ctx, 3, time.Millisecond, func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("want success on 3rd attempt, got %v", err)
	}
	if calls != 3 {
		t.Fatalf("want 3 calls, got %d", calls)
	}
}

func TestDo_ExhaustsAndReturnsLastError(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	sentinel := errors.New("store down")
	calls := 0
	err := Do(ctx, 3, time.Millisecond, func(context.Context) error {
		calls++
		return sentinel
	})
	if !errors.Is(err, sentinel) {
		t.Fatalf("want last error surfaced, got %v", err)
	}
	if calls != 3 {
		t.Fatalf("want exactly 3 attempts, got %d", calls)
	}
}

func TestDo_NoRetryOnFirstSuccess(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	calls := 0
	if err := Do(ctx, 5, time.Millisecond, func(context.Context) error {
		calls++
		return nil
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 1 {
		t.Fatalf("want single call, got %d", calls)
	}
}
