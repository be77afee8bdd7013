// Package meeting tracks elapsed and remaining time for a time-boxed
// session and raises the warning/overtime threshold states.
package meeting

import (
	"fmt"
	"sync"
	"time"
)

// WarningThreshold is how much remaining time flips the timer into its
// warning state.
const WarningThreshold = 5 * time.Minute

// Snapshot is one observation of the timer, recomputed on every tick.
type Snapshot struct {
	Elapsed   time.Duration
	Remaining time.Duration
	Warning   bool
	Overtime  bool
}

// Timer derives elapsed time from a captured start instant rather than
// accumulating ticks, so it stays correct across missed or delayed updates.
type Timer struct {
	duration time.Duration
	onTick   func(Snapshot)
	now      func() time.Time
	tick     time.Duration

	mu      sync.Mutex
	start   time.Time
	frozen  time.Duration
	running bool
	stop    chan struct{}
}

// NewTimer builds a timer for a meeting of the given scheduled duration.
// onTick (optional) fires once per second while running.
func NewTimer(duration time.Duration, onTick func(Snapshot)) *Timer {
	return &Timer{
		duration: duration,
		onTick:   onTick,
		now:      time.Now,
		tick:     time.Second,
	}
}

// Start captures the reference start instant and begins periodic updates.
// Starting a running timer is a no-op.
func (t *Timer) Start() {
	t.mu.Lock()
	if t.running {
		t.mu.Unlock()
		return
	}
	t.start = t.now()
	t.frozen = 0
	t.running = true
	stop := make(chan struct{})
	t.stop = stop
	t.mu.Unlock()

	if t.onTick == nil {
		return
	}
	go func() {
		ticker := time.NewTicker(t.tick)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				t.onTick(t.Snapshot())
			}
		}
	}()
}

// Stop halts periodic updates, freezes the elapsed clock at the stop
// instant, and returns the total elapsed time. Safe to call when not
// running (returns the frozen value, zero if never started).
func (t *Timer) Stop() time.Duration {
	t.mu.Lock()
	if !t.running {
		frozen := t.frozen
		t.mu.Unlock()
		return frozen
	}
	t.running = false
	stop := t.stop
	t.stop = nil
	t.frozen = t.now().Sub(t.start)
	frozen := t.frozen
	t.mu.Unlock()

	close(stop)
	return frozen
}

// Snapshot computes the current elapsed/remaining state from the start
// instant. After Stop the elapsed clock stays frozen at the stop instant.
func (t *Timer) Snapshot() Snapshot {
	t.mu.Lock()
	start := t.start
	running := t.running
	frozen := t.frozen
	t.mu.Unlock()

	var elapsed time.Duration
	if running {
		elapsed = t.now().Sub(start)
	} else {
		elapsed = frozen
	}
	remaining := t.duration - elapsed
	return Snapshot{
		Elapsed:   elapsed,
		Remaining: remaining,
		Warning:   remaining > 0 && remaining <= WarningThreshold,
		Overtime:  remaining <= 0,
	}
}

// Clock renders the elapsed-over-total display, e.g. "01:05 / 30:00".
func (t *Timer) Clock() string {
	return FormatClock(t.Snapshot().Elapsed, t.duration)
}

// FormatClock renders "MM:SS / MM:SS" for an elapsed time against the
// scheduled total.
func FormatClock(elapsed, total time.Duration) string {
	return mmss(elapsed) + " / " + mmss(total)
}

// FormatRemaining renders remaining time as MM:SS, with a leading '-' once
// the meeting has gone overtime.
func FormatRemaining(remaining time.Duration) string {
	if remaining < 0 {
		return "-" + mmss(-remaining)
	}
	return mmss(remaining)
}

func mmss(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	totalSeconds := int(d.Seconds())
	return fmt.Sprintf("%02d:%02d", totalSeconds/60, totalSeconds%60)
}
