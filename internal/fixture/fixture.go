// Package fixture holds recorded pose sessions for tests. Each session is
// a sequence of nose and shoulder heights with the gestures it should
// produce.
package fixture

import (
	"embed"
	"encoding/json"
	"fmt"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/ayusman/bhangra/internal/gesture"
	"github.com/ayusman/bhangra/internal/pose"
)

//go:embed testdata/*.json
var sessionsFS embed.FS

// SessionFrame is one recorded estimate. A nil Shoulders means the
// shoulders were not detected.
type SessionFrame struct {
	OffsetMS  int      `json:"offset_ms"`
	Nose      float64  `json:"nose"`
	Shoulders *float64 `json:"shoulders"`
}

// Expectation is a notification the session must produce.
type Expectation struct {
	Gesture  gesture.State `json:"gesture"`
	OffsetMS int           `json:"offset_ms"`
}

// Session is a recorded pose sequence.
type Session struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Frames      []SessionFrame `json:"frames"`
	Expect      []Expectation  `json:"expect"`
}

// LoadSession loads a session by name.
func LoadSession(name string) (*Session, error) {
	data, err := sessionsFS.ReadFile("testdata/" + name + ".json")
	if err != nil {
		return nil, fmt.Errorf("load session %s: %w", name, err)
	}

	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decode session %s: %w", name, err)
	}
	return &s, nil
}

// SessionNames lists the recorded sessions.
func SessionNames() ([]string, error) {
	entries, err := sessionsFS.ReadDir("testdata")
	if err != nil {
		return nil, err
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		names = append(names, strings.TrimSuffix(entry.Name(), path.Ext(entry.Name())))
	}
	sort.Strings(names)
	return names, nil
}

// Poses returns the session's estimates in order.
func (s *Session) Poses() []*pose.Pose {
	poses := make([]*pose.Pose, 0, len(s.Frames))
	for _, f := range s.Frames {
		if f.Shoulders == nil {
			poses = append(poses, pose.HeadOnlyPose(f.Nose))
			continue
		}
		poses = append(poses, pose.UprightPose(f.Nose, *f.Shoulders))
	}
	return poses
}

// PoseFrames stamps the estimates relative to start.
func (s *Session) PoseFrames(start time.Time) []pose.Frame {
	poses := s.Poses()
	frames := make([]pose.Frame, len(poses))
	for i, p := range poses {
		frames[i] = pose.Frame{
			Pose:      *p,
			Timestamp: start.Add(time.Duration(s.Frames[i].OffsetMS) * time.Millisecond),
		}
	}
	return frames
}

// Gestures returns the expected gestures in order.
func (s *Session) Gestures() []gesture.State {
	out := make([]gesture.State, len(s.Expect))
	for i, e := range s.Expect {
		out[i] = e.Gesture
	}
	return out
}
