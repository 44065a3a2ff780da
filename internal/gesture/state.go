// Package gesture classifies vertical head motion into jump and crouch gestures
// and arbitrates between the vision and voice producers of gesture state.
package gesture

import (
	"fmt"
	"time"
)

// State is the classified gesture. Exactly one value is active at a time.
type State int

const (
	// Neutral means no gesture is in progress.
	Neutral State = iota
	// Jumping means the head moved up past the shoulder baseline.
	Jumping
	// Crouching means the head moved down past the shoulder baseline.
	Crouching
)

var stateNames = map[State]string{
	Neutral:   "neutral",
	Jumping:   "jumping",
	Crouching: "crouching",
}

// String returns the lower-case state name.
func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// ParseState converts a state name to a State.
func ParseState(name string) (State, error) {
	for s, n := range stateNames {
		if n == name {
			return s, nil
		}
	}
	return Neutral, fmt.Errorf("unknown gesture state %q", name)
}

// MarshalText implements encoding.TextMarshaler.
func (s State) MarshalText() ([]byte, error) {
	name, ok := stateNames[s]
	if !ok {
		return nil, fmt.Errorf("invalid gesture state %d", int(s))
	}
	return []byte(name), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *State) UnmarshalText(text []byte) error {
	parsed, err := ParseState(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Active reports whether s is a gesture rather than Neutral.
func (s State) Active() bool {
	return s == Jumping || s == Crouching
}

// Source identifies the producer of a gesture.
type Source int

const (
	// SourceVision is the pose-based classifier.
	SourceVision Source = iota
	// SourceVoice is the spoken command channel.
	SourceVoice
)

// String returns the lower-case source name.
func (s Source) String() string {
	switch s {
	case SourceVision:
		return "vision"
	case SourceVoice:
		return "voice"
	}
	return fmt.Sprintf("Source(%d)", int(s))
}

// MarshalText implements encoding.TextMarshaler.
func (s Source) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Source) UnmarshalText(text []byte) error {
	switch string(text) {
	case "vision":
		*s = SourceVision
	case "voice":
		*s = SourceVoice
	default:
		return fmt.Errorf("unknown gesture source %q", text)
	}
	return nil
}

// Notification is emitted once on each transition into Jumping or Crouching.
type Notification struct {
	Gesture   State     `json:"gesture"`
	Source    Source    `json:"source"`
	Timestamp time.Time `json:"timestamp"`
}

// edge returns the notification for a transition from prev to next, or nil
// when the transition is not a rising edge into an active gesture.
func edge(prev, next State, src Source, ts time.Time) *Notification {
	if prev == next || !next.Active() {
		return nil
	}
	return &Notification{Gesture: next, Source: src, Timestamp: ts}
}
