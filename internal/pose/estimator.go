package pose

import "gocv.io/x/gocv"

// Estimator defines the interface for single-person pose estimation.
type Estimator interface {
	// Estimate analyzes a video frame and returns the detected pose.
	// A pose with no keypoints means nobody was found.
	Estimate(frame *gocv.Mat) (*Pose, error)

	// Close releases any resources held by the estimator.
	Close() error
}

// Config holds configuration options for pose estimation.
type Config struct {
	// Script is the path of the estimation service script. When empty the
	// usual locations are searched.
	Script string

	// Python is the interpreter used to run Script. When empty a project
	// virtualenv is preferred, then python3.
	Python string

	// FlipHorizontal mirrors the input before estimation.
	FlipHorizontal bool

	// IdleTimeoutSec shuts the service down after this many seconds without
	// a request. Zero means 30.
	IdleTimeoutSec int
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() Config {
	return Config{
		FlipHorizontal: false,
		IdleTimeoutSec: 30,
	}
}
