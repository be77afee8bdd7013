// Package nudge maintains the ephemeral set of visible coaching
// notifications. Nudges expire on a priority-keyed lifetime or on explicit
// dismissal; their visible lifetime is bounded and never extended.
package nudge

import (
	"sync"
	"time"

	"github.com/sjawhar/coachwire/internal/protocol"
)

const (
	// HighLifetime and NormalLifetime bound how long a nudge stays visible
	// absent manual dismissal.
	HighLifetime   = 15 * time.Second
	NormalLifetime = 8 * time.Second
)

// RemovalReason says why a nudge left the visible set.
type RemovalReason int

const (
	Expired RemovalReason = iota
	Dismissed
	Cleared
)

// Listener observes visible-set changes for the view layer.
type Listener interface {
	NudgeShown(n protocol.Nudge)
	NudgeRemoved(n protocol.Nudge, reason RemovalReason)
}

type entry struct {
	nudge protocol.Nudge
	timer *time.Timer
}

// Queue is the priority-ranked visible nudge set, most recent first.
type Queue struct {
	listener Listener

	highLifetime   time.Duration
	normalLifetime time.Duration

	mu      sync.Mutex
	entries []*entry
	shown   int
}

func NewQueue(listener Listener) *Queue {
	return &Queue{
		listener:       listener,
		highLifetime:   HighLifetime,
		normalLifetime: NormalLifetime,
	}
}

// Show inserts the nudge at the most-recent position and schedules its
// automatic removal after the priority-keyed lifetime.
func (q *Queue) Show(n protocol.Nudge) {
	lifetime := q.normalLifetime
	if n.IsHighPriority() {
		lifetime = q.highLifetime
	}

	e := &entry{nudge: n}
	q.mu.Lock()
	q.entries = append([]*entry{e}, q.entries...)
	q.shown++
	e.timer = time.AfterFunc(lifetime, func() {
		q.remove(e, Expired)
	})
	q.mu.Unlock()

	if q.listener != nil {
		q.listener.NudgeShown(n)
	}
}

// Dismiss removes a visible nudge immediately, canceling its pending expiry.
// Unknown nudges are ignored.
func (q *Queue) Dismiss(n protocol.Nudge) {
	q.mu.Lock()
	var target *entry
	for _, e := range q.entries {
		if e.nudge == n {
			target = e
			break
		}
	}
	q.mu.Unlock()

	if target != nil {
		q.remove(target, Dismissed)
	}
}

// Clear removes all nudges unconditionally; used on session reset. The
// cumulative shown count is preserved.
func (q *Queue) Clear() {
	q.mu.Lock()
	removed := q.entries
	q.entries = nil
	q.mu.Unlock()

	for _, e := range removed {
		e.timer.Stop()
		if q.listener != nil {
			q.listener.NudgeRemoved(e.nudge, Cleared)
		}
	}
}

// Visible returns the currently visible nudges, most recent first.
func (q *Queue) Visible() []protocol.Nudge {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]protocol.Nudge, len(q.entries))
	for i, e := range q.entries {
		out[i] = e.nudge
	}
	return out
}

// ShownCount is the cumulative number of nudges shown this session. It
// counts every Show and is never decremented by dismissal or expiry.
func (q *Queue) ShownCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.shown
}

func (q *Queue) remove(target *entry, reason RemovalReason) {
	q.mu.Lock()
	found := false
	for i, e := range q.entries {
		if e == target {
			q.entries = append(q.entries[:i], q.entries[i+1:]...)
			found = true
			break
		}
	}
	q.mu.Unlock()

	if !found {
		return
	}
	target.timer.Stop()
	if q.listener != nil {
		q.listener.NudgeRemoved(target.nudge, reason)
	}
}
