package timeutil

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRealClock_Now(t *testing.T) {
	clock := RealClock{}
	before := time.Now()
	now := clock.Now()
	after := time.Now()

	if now.Before(before) || now.After(after) {
		t.Errorf("Now() = %v, expected between %v and %v", now, before, after)
	}
}

func TestRealClock_Sleep(t *testing.T) {
	clock := RealClock{}
	start := time.Now()
	if err := clock.Sleep(context.Background(), 10*time.Millisecond); err != nil {
		t.Fatalf("Sleep returned %v", err)
	}
	if elapsed := clock.Since(start); elapsed < 10*time.Millisecond {
		t.Errorf("Sleep(10ms) took only %v", elapsed)
	}
}

func TestRealClock_SleepCancelled(t *testing.T) {
	clock := RealClock{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	err := clock.Sleep(ctx, time.Hour)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if time.Since(start) > time.Second {
		t.Error("cancelled Sleep should return promptly")
	}
}

func TestMockClock_NowAndAdvance(t *testing.T) {
	start := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	clock := NewMockClock(start)

	if got := clock.Now(); !got.Equal(start) {
		t.Errorf("Now() = %v, want %v", got, start)
	}

	clock.Advance(time.Hour)
	if got := clock.Now(); !got.Equal(start.Add(time.Hour)) {
		t.Errorf("after Advance, Now() = %v", got)
	}

	clock.Set(start)
	if got := clock.Since(start); got != 0 {
		t.Errorf("Since() = %v, want 0", got)
	}
}

func TestMockClock_Step(t *testing.T) {
	start := time.Unix(1700000000, 0).UTC()
	clock := NewMockClock(start)
	clock.SetStep(time.Millisecond)

	first := clock.Now()
	second := clock.Now()
	if second.Sub(first) != time.Millisecond {
		t.Errorf("expected reads 1ms apart, got %v", second.Sub(first))
	}
}

func TestMockClock_Sleep(t *testing.T) {
	start := time.Unix(0, 0)
	clock := NewMockClock(start)

	if err := clock.Sleep(context.Background(), 200*time.Millisecond); err != nil {
		t.Fatalf("Sleep returned %v", err)
	}
	clock.Sleep(context.Background(), time.Second)

	sleeps := clock.Sleeps()
	if len(sleeps) != 2 || sleeps[0] != 200*time.Millisecond || sleeps[1] != time.Second {
		t.Errorf("Sleeps() = %v", sleeps)
	}
	if got := clock.Since(start); got != 1200*time.Millisecond {
		t.Errorf("clock should have advanced 1.2s, got %v", got)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := clock.Sleep(ctx, time.Second); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if len(clock.Sleeps()) != 2 {
		t.Error("cancelled Sleep should not be recorded")
	}
}

func TestClockInterface(t *testing.T) {
	var _ Clock = RealClock{}
	var _ Clock = NewMockClock(time.Now())
}
