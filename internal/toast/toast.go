// Package toast keeps the transient acknowledgment shown to the user when a
// gesture is recognized.
package toast

import (
	"sync"
	"time"

	"github.com/ayusman/bhangra/internal/gesture"
)

// DefaultDuration is how long a toast stays visible.
const DefaultDuration = 3000 * time.Millisecond

// Kind categorizes a toast for styling.
type Kind string

const (
	KindJump   Kind = "jump"
	KindCrouch Kind = "crouch"
	KindInfo   Kind = "info"
)

// Toast is one visible message.
type Toast struct {
	Message   string    `json:"message"`
	Kind      Kind      `json:"type"`
	ShownAt   time.Time `json:"shown_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Board holds at most one toast. A new toast replaces the current one and
// restarts its timer. Board is safe for concurrent use.
type Board struct {
	mu       sync.RWMutex
	duration time.Duration
	current  Toast
	shown    bool
	now      func() time.Time
}

// NewBoard creates a Board. A non-positive duration uses DefaultDuration.
func NewBoard(duration time.Duration) *Board {
	if duration <= 0 {
		duration = DefaultDuration
	}
	return &Board{duration: duration, now: time.Now}
}

// Show displays message until the board's duration has elapsed from now.
func (b *Board) Show(message string, kind Kind, now time.Time) Toast {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.current = Toast{
		Message:   message,
		Kind:      kind,
		ShownAt:   now,
		ExpiresAt: now.Add(b.duration),
	}
	b.shown = true
	return b.current
}

// Current returns the visible toast at now, if any.
func (b *Board) Current(now time.Time) (Toast, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if !b.shown || !now.Before(b.current.ExpiresAt) {
		return Toast{}, false
	}
	return b.current, true
}

// Clear hides the current toast.
func (b *Board) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.shown = false
	b.current = Toast{}
}

// Notify shows the acknowledgment for a gesture notification.
func (b *Board) Notify(n gesture.Notification) {
	msg, kind, ok := Message(n.Gesture)
	if !ok {
		return
	}
	ts := n.Timestamp
	if ts.IsZero() {
		ts = b.now()
	}
	b.Show(msg, kind, ts)
}

// Message returns the toast text and kind for a gesture.
func Message(s gesture.State) (string, Kind, bool) {
	switch s {
	case gesture.Jumping:
		return "User has jumped!", KindJump, true
	case gesture.Crouching:
		return "User has crouched!", KindCrouch, true
	}
	return "", "", false
}
