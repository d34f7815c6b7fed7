package ratelimit

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestBucket_AllowsInitialBurst(t *testing.T) {
	b := NewBucket(5, 100)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if err := b.Acquire(ctx, 1, 0); err != nil {
			t.Fatalf("acquire %d: unexpected error %v", i, err)
		}
	}
}

func TestBucket_SecondWindowNeverOverspent(t *testing.T) {
	b := NewBucket(5, 100)
	ctx := context.Background()

	var granted int64
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := b.Acquire(ctx, 1, 0); err == nil {
				atomic.AddInt64(&granted, 1)
			}
		}()
	}
	wg.Wait()

	if granted > 5 {
		t.Errorf("granted %d acquisitions in one instant, budget is 5", granted)
	}
	if granted == 0 {
		t.Error("expected at least one grant from a full bucket")
	}
}

func TestBucket_MinuteWindowConstrains(t *testing.T) {
	b := NewBucket(100, 2)
	ctx := context.Background()

	if err := b.Acquire(ctx, 1, 0); err != nil {
		t.Fatalf("first acquire: %v", err)
	}
	if err := b.Acquire(ctx, 1, 0); err != nil {
		t.Fatalf("second acquire: %v", err)
	}
	if err := b.Acquire(ctx, 1, 0); !errors.Is(err, ErrWaitExceeded) {
		t.Errorf("third acquire: got %v, want ErrWaitExceeded", err)
	}
}

func TestBucket_WaitExceededConsumesNothing(t *testing.T) {
	b := NewBucket(1, 60)
	ctx := context.Background()

	if err := b.Acquire(ctx, 1, 0); err != nil {
		t.Fatalf("first acquire: %v", err)
	}
	if err := b.Acquire(ctx, 1, 0); !errors.Is(err, ErrWaitExceeded) {
		t.Fatalf("second acquire: got %v, want ErrWaitExceeded", err)
	}

	st := b.Status()
	if st.TokensPerSecondLeft >= 1 {
		t.Errorf("expected depleted second window, got %f tokens", st.TokensPerSecondLeft)
	}
	if st.TokensPerMinuteLeft < 58 || st.TokensPerMinuteLeft > 59.5 {
		t.Errorf("minute window should only reflect the single grant, got %f", st.TokensPerMinuteLeft)
	}
}

func TestBucket_WaitsForRefill(t *testing.T) {
	b := NewBucket(50, 3000)
	ctx := context.Background()

	// Drain the per-second window, then a bounded wait should succeed
	// once ~20ms of refill accumulates.
	for i := 0; i < 50; i++ {
		if err := b.Acquire(ctx, 1, 0); err != nil {
			t.Fatalf("drain %d: %v", i, err)
		}
	}

	start := time.Now()
	if err := b.Acquire(ctx, 1, time.Second); err != nil {
		t.Fatalf("acquire after drain: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Errorf("waited %v, expected roughly one token interval", elapsed)
	}
}

func TestBucket_ContextCancelStopsWait(t *testing.T) {
	b := NewBucket(1, 60)
	ctx, cancel := context.WithCancel(context.Background())

	if err := b.Acquire(ctx, 1, 0); err != nil {
		t.Fatalf("first acquire: %v", err)
	}

	done := make(chan error, 1)
	go func() {
		done <- b.Acquire(ctx, 1, 5*time.Second)
	}()
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("got %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("acquire did not return after cancellation")
	}
}

func TestBucket_DeadlineBeforeAvailability(t *testing.T) {
	b := NewBucket(1, 60)
	if err := b.Acquire(context.Background(), 1, 0); err != nil {
		t.Fatalf("first acquire: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err := b.Acquire(ctx, 1, 5*time.Second)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("got %v, want context.DeadlineExceeded", err)
	}
}

func TestBucket_StatusNextRefill(t *testing.T) {
	b := NewBucket(2, 120)
	st := b.Status()

	if st.TokensPerSecondLeft != 2 {
		t.Errorf("fresh bucket second window = %f, want 2", st.TokensPerSecondLeft)
	}
	if st.NextRefillAt.After(time.Now().Add(time.Millisecond)) {
		t.Error("full bucket should report an immediate next refill")
	}

	if err := b.Acquire(context.Background(), 2, 0); err != nil {
		t.Fatalf("acquire: %v", err)
	}
	st = b.Status()
	if !st.NextRefillAt.After(time.Now()) {
		t.Error("depleted bucket should report a future next refill")
	}
}
