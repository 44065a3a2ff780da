package pose

import (
	"sync"

	"gocv.io/x/gocv"
)

// MockEstimator is a test implementation of the Estimator interface.
// It returns queued poses in order, then repeats the last one.
type MockEstimator struct {
	mu    sync.Mutex
	poses []*Pose
	next  int
	err   error
	calls int
}

// NewMockEstimator creates a new MockEstimator instance.
func NewMockEstimator() *MockEstimator {
	return &MockEstimator{}
}

// SetPoses replaces the queue of poses returned by Estimate.
func (m *MockEstimator) SetPoses(poses ...*Pose) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.poses = poses
	m.next = 0
}

// SetError sets the error that will be returned by Estimate.
func (m *MockEstimator) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Calls returns how many times Estimate was invoked.
func (m *MockEstimator) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Estimate returns the next queued pose or the configured error.
func (m *MockEstimator) Estimate(frame *gocv.Mat) (*Pose, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	if len(m.poses) == 0 {
		return &Pose{}, nil
	}

	p := m.poses[m.next]
	if m.next < len(m.poses)-1 {
		m.next++
	}
	return p, nil
}

// Close is a no-op for the mock estimator.
func (m *MockEstimator) Close() error {
	return nil
}

// UprightPose returns a preset pose of a person standing still, with the
// nose at noseY and both shoulders at shoulderY. Confidence is high for
// the head and shoulders.
func UprightPose(noseY, shoulderY float64) *Pose {
	return &Pose{
		Score: 0.92,
		Keypoints: []Keypoint{
			{Part: Nose, X: 320, Y: noseY, Confidence: 0.98},
			{Part: LeftEye, X: 335, Y: noseY - 12, Confidence: 0.95},
			{Part: RightEye, X: 305, Y: noseY - 12, Confidence: 0.95},
			{Part: LeftShoulder, X: 380, Y: shoulderY, Confidence: 0.9},
			{Part: RightShoulder, X: 260, Y: shoulderY, Confidence: 0.9},
			{Part: LeftHip, X: 360, Y: shoulderY + 160, Confidence: 0.7},
			{Part: RightHip, X: 280, Y: shoulderY + 160, Confidence: 0.7},
		},
	}
}

// HeadOnlyPose returns a pose where the shoulders were not detected.
func HeadOnlyPose(noseY float64) *Pose {
	return &Pose{
		Score: 0.4,
		Keypoints: []Keypoint{
			{Part: Nose, X: 320, Y: noseY, Confidence: 0.9},
		},
	}
}
