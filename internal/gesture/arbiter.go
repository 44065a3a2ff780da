package gesture

import (
	"sync"
	"time"
)

// DefaultVoiceHold is how long a spoken command keeps precedence over vision.
const DefaultVoiceHold = 1500 * time.Millisecond

// Event is a gesture reported by one producer.
type Event struct {
	Source    Source
	Gesture   State
	Timestamp time.Time
}

// Decision is the arbitrated outcome of one event.
type Decision struct {
	State        State
	Source       Source
	Previous     State
	Notification *Notification
	// Suppressed is true when a vision event was recorded but did not
	// change the state because a voice hold was active.
	Suppressed bool
}

// Changed reports whether the arbitrated state changed.
func (d Decision) Changed() bool {
	return d.State != d.Previous
}

// Arbiter owns the gesture state written by the vision and voice producers.
//
// Policy:
//   - a voice event sets the state immediately and holds it for VoiceHold
//   - vision events during a hold are remembered but do not change the state
//   - when the hold expires the state falls back to the latest vision state
//   - outside a hold, vision events set the state
//   - a voice Neutral ends any hold at once
//
// Rising edges into Jumping or Crouching emit one notification tagged with
// the source that caused them. Arbiter is safe for concurrent use.
type Arbiter struct {
	mu        sync.Mutex
	hold      time.Duration
	state     State
	source    Source
	vision    State
	holdUntil time.Time
	holding   bool
}

// NewArbiter creates an Arbiter. A non-positive hold uses DefaultVoiceHold.
func NewArbiter(hold time.Duration) *Arbiter {
	if hold <= 0 {
		hold = DefaultVoiceHold
	}
	return &Arbiter{
		hold:   hold,
		state:  Neutral,
		source: SourceVision,
		vision: Neutral,
	}
}

// Offer applies one event and returns the arbitrated decision.
func (a *Arbiter) Offer(ev Event) Decision {
	a.mu.Lock()
	defer a.mu.Unlock()

	// A lapsed hold reverts to vision before the new event is applied, so
	// the edge below spans the revert as well.
	prev := a.state
	a.expire(ev.Timestamp)

	d := Decision{Previous: prev}

	switch ev.Source {
	case SourceVoice:
		if ev.Gesture == Neutral {
			a.holding = false
			a.set(a.vision, SourceVision)
		} else {
			a.holding = true
			a.holdUntil = ev.Timestamp.Add(a.hold)
			a.set(ev.Gesture, SourceVoice)
		}
	default:
		a.vision = ev.Gesture
		if a.holding {
			d.Suppressed = true
		} else {
			a.set(ev.Gesture, SourceVision)
		}
	}

	d.State = a.state
	d.Source = a.source
	d.Notification = edge(prev, a.state, a.source, ev.Timestamp)
	return d
}

// Current returns the arbitrated state as of now. A lapsed hold reads as
// the latest vision state; the stored state is only updated by Offer.
func (a *Arbiter) Current(now time.Time) (State, Source) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.holding && !now.Before(a.holdUntil) {
		return a.vision, SourceVision
	}
	return a.state, a.source
}

// ResetVision forgets the latest vision state. The video loop calls it on
// restart so a stale vision gesture cannot resurface after a voice hold.
func (a *Arbiter) ResetVision() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.vision = Neutral
	if !a.holding {
		a.set(Neutral, SourceVision)
	}
}

func (a *Arbiter) expire(now time.Time) {
	if a.holding && !now.Before(a.holdUntil) {
		a.holding = false
		a.set(a.vision, SourceVision)
	}
}

func (a *Arbiter) set(s State, src Source) {
	a.state = s
	a.source = src
}
