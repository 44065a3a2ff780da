package gesture

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/ayusman/bhangra/internal/pose"
)

// Reasons a frame produced no classification. The previous state is held
// and no notification is emitted.
var (
	// ErrThrottled means the frame arrived within FrameInterval of the
	// last admitted frame and was dropped.
	ErrThrottled = errors.New("frame throttled")
	// ErrInsufficientKeypoints means nose or a shoulder was missing.
	ErrInsufficientKeypoints = errors.New("insufficient keypoints")
)

// Config holds the classifier parameters.
type Config struct {
	// FrameInterval is the minimum time between admitted frames.
	FrameInterval time.Duration
	// BaselineInterval is the minimum time between shoulder baseline samples.
	BaselineInterval time.Duration
	// NoseWindow is the number of recent nose Y values averaged.
	NoseWindow int
	// BaselineWindow is the number of shoulder baseline samples averaged.
	BaselineWindow int
	// VariationThreshold is how far the current nose Y must be from the
	// nose average before a gesture is considered, in pixels.
	VariationThreshold float64
	// BaselineMargin is how far past the baseline the nose must be, in pixels.
	BaselineMargin float64
	// MinConfidence treats keypoints scored below it as missing.
	// Zero disables gating.
	MinConfidence float64
}

// DefaultConfig returns the tuned defaults for 640x480 input.
func DefaultConfig() Config {
	return Config{
		FrameInterval:      200 * time.Millisecond,
		BaselineInterval:   2000 * time.Millisecond,
		NoseWindow:         5,
		BaselineWindow:     2,
		VariationThreshold: 300,
		BaselineMargin:     20,
		MinConfidence:      0,
	}
}

// Validate checks that the windows and intervals are usable.
func (c Config) Validate() error {
	if c.FrameInterval < 0 || c.BaselineInterval < 0 {
		return fmt.Errorf("intervals must not be negative")
	}
	if c.NoseWindow < 1 || c.BaselineWindow < 1 {
		return fmt.Errorf("windows must hold at least one sample")
	}
	if c.VariationThreshold < 0 || c.BaselineMargin < 0 {
		return fmt.Errorf("thresholds must not be negative")
	}
	if c.MinConfidence < 0 || c.MinConfidence > 1 {
		return fmt.Errorf("min confidence must be within [0, 1], got %f", c.MinConfidence)
	}
	return nil
}

// Result is the outcome of offering one frame to the classifier.
type Result struct {
	// State is the classifier state after the frame.
	State State
	// Previous is the state before the frame.
	Previous State
	// Notification is set on a transition into Jumping or Crouching.
	Notification *Notification
	// NoseY, AvgNoseY, Baseline and Variation are the inputs of the decision.
	NoseY     float64
	AvgNoseY  float64
	Baseline  float64
	Variation float64
	// Reason is non-nil when the frame was not classified.
	Reason error
}

// Classified reports whether the frame went through classification.
func (r Result) Classified() bool {
	return r.Reason == nil
}

// Changed reports whether the state differs from the previous one.
func (r Result) Changed() bool {
	return r.State != r.Previous
}

// Classifier turns a stream of pose frames into a gesture state.
// It owns its histories and timers; nothing is shared between instances.
// A Classifier is not safe for concurrent use.
type Classifier struct {
	config    Config
	nose      *Window
	baselines *Window
	frames    *Throttle
	capture   *Throttle
	state     State
}

// NewClassifier creates a Classifier. Invalid configs are rejected.
func NewClassifier(config Config) (*Classifier, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Classifier{
		config:    config,
		nose:      NewWindow(config.NoseWindow),
		baselines: NewWindow(config.BaselineWindow),
		frames:    NewThrottle(config.FrameInterval),
		capture:   NewThrottle(config.BaselineInterval),
		state:     Neutral,
	}, nil
}

// Due reports whether a frame stamped ts would be admitted.
func (c *Classifier) Due(ts time.Time) bool {
	return c.frames.Due(ts)
}

// Admit takes the throttle slot for ts, reporting false when the frame
// falls within FrameInterval of the last admitted one. Callers that run
// pose estimation admit first and then Evaluate, so a failed estimate
// still counts against the interval.
func (c *Classifier) Admit(ts time.Time) bool {
	return c.frames.Allow(ts)
}

// Classify admits and evaluates one frame. Frames arriving within
// FrameInterval of the last admitted frame are dropped without touching
// any state.
//
// For admitted frames:
//  1. the nose Y is pushed into the nose window
//  2. the mean shoulder Y is pushed into the baseline window when
//     BaselineInterval has elapsed since the last baseline sample
//  3. variation = |mean(nose window) - nose Y|
//  4. variation <= VariationThreshold is Neutral; otherwise a nose below
//     baseline+margin is Crouching, above baseline-margin is Jumping,
//     anything between is Neutral
func (c *Classifier) Classify(f pose.Frame) Result {
	if !c.Admit(f.Timestamp) {
		return Result{State: c.state, Previous: c.state, Reason: ErrThrottled}
	}
	return c.Evaluate(f)
}

// Evaluate classifies a frame whose slot was already taken with Admit.
func (c *Classifier) Evaluate(f pose.Frame) Result {
	res := Result{State: c.state, Previous: c.state}

	nose, okNose := c.keypoint(f, pose.Nose)
	left, okLeft := c.keypoint(f, pose.LeftShoulder)
	right, okRight := c.keypoint(f, pose.RightShoulder)
	if !okNose || !okLeft || !okRight {
		res.Reason = ErrInsufficientKeypoints
		return res
	}

	c.nose.Push(nose.Y)
	if c.capture.Allow(f.Timestamp) {
		c.baselines.Push((left.Y + right.Y) / 2)
	}

	avgNose, err := c.nose.Mean()
	if err != nil {
		res.Reason = err
		return res
	}
	baseline, err := c.baselines.Mean()
	if err != nil {
		res.Reason = err
		return res
	}

	res.NoseY = nose.Y
	res.AvgNoseY = avgNose
	res.Baseline = baseline
	res.Variation = math.Abs(avgNose - nose.Y)

	next := c.decide(nose.Y, baseline, res.Variation)
	res.Notification = edge(c.state, next, SourceVision, f.Timestamp)
	c.state = next
	res.State = next

	return res
}

func (c *Classifier) decide(noseY, baseline, variation float64) State {
	if variation <= c.config.VariationThreshold {
		return Neutral
	}
	switch {
	case noseY > baseline+c.config.BaselineMargin:
		return Crouching
	case noseY < baseline-c.config.BaselineMargin:
		return Jumping
	default:
		return Neutral
	}
}

func (c *Classifier) keypoint(f pose.Frame, part pose.Part) (pose.Keypoint, bool) {
	kp, ok := f.Find(part)
	if !ok {
		return kp, false
	}
	if c.config.MinConfidence > 0 && kp.Confidence < c.config.MinConfidence {
		return kp, false
	}
	return kp, true
}

// State returns the current state.
func (c *Classifier) State() State {
	return c.state
}

// NoseHistory returns a copy of the recent nose Y values, oldest first.
func (c *Classifier) NoseHistory() []float64 {
	return c.nose.Values()
}

// Baselines returns a copy of the shoulder baseline samples, oldest first.
func (c *Classifier) Baselines() []float64 {
	return c.baselines.Values()
}

// Config returns the classifier parameters.
func (c *Classifier) Config() Config {
	return c.config
}

// Reset clears the histories, both timers and the state. The enclosing
// loop calls it on every start so no stale samples survive a restart.
func (c *Classifier) Reset() {
	c.nose.Reset()
	c.baselines.Reset()
	c.frames.Reset()
	c.capture.Reset()
	c.state = Neutral
}
