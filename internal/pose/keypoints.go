// Package pose provides body keypoint types and pose estimator implementations.
package pose

import (
	"fmt"
	"time"
)

// Part identifies a body landmark following the PoseNet convention.
// See: https://github.com/tensorflow/tfjs-models/tree/master/posenet
type Part int

const (
	Nose Part = iota
	LeftEye
	RightEye
	LeftEar
	RightEar
	LeftShoulder
	RightShoulder
	LeftElbow
	RightElbow
	LeftWrist
	RightWrist
	LeftHip
	RightHip
	LeftKnee
	RightKnee
	LeftAnkle
	RightAnkle
	NumParts
)

var partNames = [NumParts]string{
	"nose", "leftEye", "rightEye", "leftEar", "rightEar",
	"leftShoulder", "rightShoulder", "leftElbow", "rightElbow",
	"leftWrist", "rightWrist", "leftHip", "rightHip",
	"leftKnee", "rightKnee", "leftAnkle", "rightAnkle",
}

// String returns the PoseNet part name.
func (p Part) String() string {
	if p < 0 || p >= NumParts {
		return fmt.Sprintf("Part(%d)", int(p))
	}
	return partNames[p]
}

// ParsePart converts a PoseNet part name to a Part.
func ParsePart(name string) (Part, error) {
	for i, n := range partNames {
		if n == name {
			return Part(i), nil
		}
	}
	return 0, fmt.Errorf("unknown part %q", name)
}

// MarshalText implements encoding.TextMarshaler.
func (p Part) MarshalText() ([]byte, error) {
	if p < 0 || p >= NumParts {
		return nil, fmt.Errorf("invalid part %d", int(p))
	}
	return []byte(partNames[p]), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Part) UnmarshalText(text []byte) error {
	parsed, err := ParsePart(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// Keypoint is a detected body landmark in image coordinates.
// Y grows downward.
type Keypoint struct {
	Part       Part    `json:"part"`
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Confidence float64 `json:"confidence"`
}

// Pose is the set of keypoints from one estimation cycle.
type Pose struct {
	Keypoints []Keypoint `json:"keypoints"`
	Score     float64    `json:"score"`
}

// Find returns the keypoint for part, if present.
func (p *Pose) Find(part Part) (Keypoint, bool) {
	if p == nil {
		return Keypoint{}, false
	}
	for _, kp := range p.Keypoints {
		if kp.Part == part {
			return kp, true
		}
	}
	return Keypoint{}, false
}

// Frame is a Pose stamped with the time its image was captured.
// Timestamps taken from time.Now carry a monotonic reading, so intervals
// between frames are immune to wall clock changes.
type Frame struct {
	Pose      Pose
	Timestamp time.Time
}

// Find returns the keypoint for part, if present.
func (f Frame) Find(part Part) (Keypoint, bool) {
	return f.Pose.Find(part)
}
