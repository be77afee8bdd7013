package meeting

import (
	"sync"
	"testing"
	"time"
)

// fakeClock lets tests move time without sleeping.
type fakeClock struct {
	mu  sync.Mutex
	cur time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{cur: time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cur
}

func (c *fakeClock) advance(d time.Duration) {
	c.mu.Lock()
	c.cur = c.cur.Add(d)
	c.mu.Unlock()
}

func newTestTimer(duration time.Duration, clock *fakeClock) *Timer {
	t := NewTimer(duration, nil)
	t.now = clock.now
	return t
}

func TestTimer_ElapsedDerivedFromStartInstant(t *testing.T) {
	clock := newFakeClock()
	timer := newTestTimer(30*time.Minute, clock)

	timer.Start()
	clock.advance(65 * time.Second)

	snap := timer.Snapshot()
	if snap.Elapsed != 65*time.Second {
		t.Fatalf("elapsed = %v, want 65s", snap.Elapsed)
	}
	if snap.Remaining != 30*time.Minute-65*time.Second {
		t.Fatalf("remaining = %v", snap.Remaining)
	}
	if snap.Warning || snap.Overtime {
		t.Errorf("unexpected threshold flags: %+v", snap)
	}

	if got := timer.Stop(); got != 65*time.Second {
		t.Fatalf("Stop returned %v, want 65s", got)
	}
}

func TestTimer_WarningWithinFiveMinutes(t *testing.T) {
	clock := newFakeClock()
	timer := newTestTimer(30*time.Minute, clock)
	timer.Start()

	clock.advance(25*time.Minute + 1*time.Second) // remaining 4m59s
	snap := timer.Snapshot()
	if !snap.Warning {
		t.Errorf("expected warning at %v remaining", snap.Remaining)
	}
	if snap.Overtime {
		t.Error("must not be overtime while time remains")
	}

	// Exactly at the threshold counts as warning.
	clock2 := newFakeClock()
	timer2 := newTestTimer(30*time.Minute, clock2)
	timer2.Start()
	clock2.advance(25 * time.Minute) // remaining exactly 5m
	if snap := timer2.Snapshot(); !snap.Warning {
		t.Error("expected warning at exactly 5m remaining")
	}
}

func TestTimer_OvertimeAtAndPastZero(t *testing.T) {
	clock := newFakeClock()
	timer := newTestTimer(5*time.Minute, clock)
	timer.Start()

	clock.advance(5 * time.Minute)
	snap := timer.Snapshot()
	if !snap.Overtime {
		t.Error("expected overtime at exactly zero remaining")
	}
	if snap.Warning {
		t.Error("overtime and warning are mutually exclusive")
	}

	clock.advance(61 * time.Second) // simulated 301s past a 5 min box
	snap = timer.Snapshot()
	if !snap.Overtime {
		t.Error("expected overtime past zero")
	}
	if snap.Remaining >= 0 {
		t.Errorf("expected negative remaining, got %v", snap.Remaining)
	}
}

func TestTimer_SurvivesMissedTicks(t *testing.T) {
	// No tick callback at all: elapsed must still be exact because it is
	// derived from the start instant, not accumulated.
	clock := newFakeClock()
	timer := newTestTimer(30*time.Minute, clock)
	timer.Start()
	clock.advance(17 * time.Minute)

	if got := timer.Snapshot().Elapsed; got != 17*time.Minute {
		t.Fatalf("elapsed = %v, want 17m", got)
	}
}

func TestTimer_TickCallbackFires(t *testing.T) {
	ticks := make(chan Snapshot, 8)
	timer := NewTimer(30*time.Minute, func(s Snapshot) { ticks <- s })
	timer.tick = 5 * time.Millisecond

	timer.Start()
	defer timer.Stop()

	select {
	case <-ticks:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for tick callback")
	}
}

func TestTimer_StopIdempotent(t *testing.T) {
	clock := newFakeClock()
	timer := newTestTimer(30*time.Minute, clock)
	timer.Start()
	clock.advance(time.Minute)

	first := timer.Stop()
	clock.advance(time.Minute)
	second := timer.Stop()
	if first != time.Minute || second != time.Minute {
		t.Fatalf("Stop returned %v then %v, want 1m both times", first, second)
	}
}

func TestTimer_ElapsedFrozenAfterStop(t *testing.T) {
	clock := newFakeClock()
	timer := newTestTimer(30*time.Minute, clock)
	timer.Start()
	clock.advance(90 * time.Second)
	timer.Stop()

	// The wall clock keeps moving; the stopped timer must not.
	clock.advance(10 * time.Minute)

	snap := timer.Snapshot()
	if snap.Elapsed != 90*time.Second {
		t.Fatalf("elapsed after stop = %v, want frozen 90s", snap.Elapsed)
	}
	if got := timer.Clock(); got != "01:30 / 30:00" {
		t.Errorf("Clock after stop = %q, want %q", got, "01:30 / 30:00")
	}
}

func TestFormatClock(t *testing.T) {
	if got := FormatClock(65*time.Second, 30*time.Minute); got != "01:05 / 30:00" {
		t.Errorf("FormatClock = %q, want %q", got, "01:05 / 30:00")
	}
	if got := FormatClock(0, 5*time.Minute); got != "00:00 / 05:00" {
		t.Errorf("FormatClock = %q, want %q", got, "00:00 / 05:00")
	}
}

func TestFormatRemaining_OvertimeLeadingMinus(t *testing.T) {
	if got := FormatRemaining(90 * time.Second); got != "01:30" {
		t.Errorf("FormatRemaining = %q, want %q", got, "01:30")
	}
	if got := FormatRemaining(-75 * time.Second); got != "-01:15" {
		t.Errorf("FormatRemaining = %q, want %q", got, "-01:15")
	}
}
