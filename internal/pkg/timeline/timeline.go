package timeline

import (
	"sort"
	"time"
)

// Event is an Action scheduled at a point on the level clock.
type Event struct {
	At      time.Duration
	Message string
	Action  Action
}

// Notifier is called once for every fired event, after it was applied.
type Notifier func(Event)

// Timeline fires scheduled events in order as the level clock advances. Each
// event fires exactly once.
type Timeline struct {
	targets  Targets
	notify   Notifier
	pending  []Event
	executed []Event
	clock    time.Duration
}

// New returns an empty Timeline that dispatches into targets.
func New(targets Targets) *Timeline {
	return &Timeline{targets: targets}
}

// OnFire registers the notifier. A nil notifier disables notification.
func (t *Timeline) OnFire(n Notifier) {
	t.notify = n
}

// Load replaces the schedule with a copy of events sorted by At. Events
// sharing an At keep their list order. The clock and executed log reset.
func (t *Timeline) Load(events []Event) {
	t.pending = make([]Event, len(events))
	copy(t.pending, events)
	sort.SliceStable(t.pending, func(i, j int) bool {
		return t.pending[i].At < t.pending[j].At
	})
	t.executed = nil
	t.clock = 0
}

// Update advances the clock and fires every pending event that is due. The
// fired events are returned in firing order.
func (t *Timeline) Update(elapsed time.Duration) []Event {
	t.clock += elapsed

	n := 0
	for n < len(t.pending) && t.pending[n].At <= t.clock {
		n++
	}
	if n == 0 {
		return nil
	}

	fired := t.pending[:n:n]
	t.pending = t.pending[n:]
	for _, e := range fired {
		if e.Action != nil {
			e.Action.apply(t.targets)
		}
		t.executed = append(t.executed, e)
		if t.notify != nil {
			t.notify(e)
		}
	}
	return fired
}

// Clock is the time since Load
func (t *Timeline) Clock() time.Duration {
	return t.clock
}

// HasPending reports whether any event has yet to fire.
func (t *Timeline) HasPending() bool {
	return len(t.pending) > 0
}

// Pending returns a copy of the events yet to fire.
func (t *Timeline) Pending() []Event {
	out := make([]Event, len(t.pending))
	copy(out, t.pending)
	return out
}

// Executed returns a copy of the fired events in firing order.
func (t *Timeline) Executed() []Event {
	out := make([]Event, len(t.executed))
	copy(out, t.executed)
	return out
}

// Upcoming returns the pending events due within window of the clock.
func (t *Timeline) Upcoming(window time.Duration) []Event {
	out := make([]Event, 0)
	for _, e := range t.pending {
		if e.At > t.clock+window {
			break
		}
		out = append(out, e)
	}
	return out
}
