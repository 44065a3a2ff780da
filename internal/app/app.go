// Package app wires the camera, pose estimator, gesture classifier and voice
// commands together and fans the arbitrated gestures out to sinks.
package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ayusman/bhangra/internal/capture"
	"github.com/ayusman/bhangra/internal/gesture"
	"github.com/ayusman/bhangra/internal/logger"
	"github.com/ayusman/bhangra/internal/pose"
	"github.com/ayusman/bhangra/internal/render"
	"github.com/ayusman/bhangra/internal/toast"
	"github.com/ayusman/bhangra/internal/voice"
)

// Defaults for Config fields left zero.
const (
	DefaultTickInterval = 33 * time.Millisecond
	DefaultJPEGQuality  = 80
)

// Settings keys for the persisted input toggles.
const (
	SettingVideoEnabled = "video_enabled"
	SettingVoiceEnabled = "voice_enabled"
)

// ErrVoiceDisabled is returned when a transcript arrives while voice input
// is turned off.
var ErrVoiceDisabled = errors.New("voice input is disabled")

// VoiceSource produces transcripts until its context is cancelled.
type VoiceSource interface {
	Run(ctx context.Context, fn func(voice.Transcript)) error
}

// Settings persists the input toggles.
type Settings interface {
	GetBool(key string, def bool) (bool, error)
	SetBool(key string, value bool) error
}

// Config holds the application's parameters and collaborators.
type Config struct {
	// Gesture holds the classifier parameters.
	Gesture gesture.Config
	// TickInterval is how often the video loop offers a frame.
	TickInterval time.Duration
	// VoiceHold is how long a spoken command overrides vision.
	VoiceHold time.Duration
	// OverlayMinConfidence is the confidence a keypoint needs to be drawn.
	OverlayMinConfidence float64
	// JPEGQuality is used for preview snapshots.
	JPEGQuality int

	Camera    capture.Camera
	Estimator pose.Estimator
	// Voice is optional; without it transcripts only arrive through
	// SubmitTranscript.
	Voice VoiceSource
	// Settings is optional; without it toggles are not persisted.
	Settings Settings
	// Toasts is optional; a board with the default duration is created.
	Toasts *toast.Board
	// Now is optional and defaults to time.Now.
	Now func() time.Time
}

// ClassifierStatus summarizes the most recent classified frame.
type ClassifierStatus struct {
	State     gesture.State `json:"state"`
	NoseY     float64       `json:"nose_y"`
	AvgNoseY  float64       `json:"avg_nose_y"`
	Baseline  float64       `json:"baseline"`
	Variation float64       `json:"variation"`
	At        time.Time     `json:"at"`
	Reason    string        `json:"reason,omitempty"`
}

// Status is a snapshot of the application state.
type Status struct {
	State         gesture.State     `json:"state"`
	Source        gesture.Source    `json:"source"`
	VideoEnabled  bool              `json:"video_enabled"`
	VoiceEnabled  bool              `json:"voice_enabled"`
	Toast         *toast.Toast      `json:"toast,omitempty"`
	Classifier    *ClassifierStatus `json:"classifier,omitempty"`
	Frames        int64             `json:"frames"`
	Estimates     int64             `json:"estimates"`
	Notifications int64             `json:"notifications"`
}

// App is the main application that orchestrates gesture detection.
type App struct {
	config     Config
	classifier *gesture.Classifier
	arbiter    *gesture.Arbiter
	toasts     *toast.Board
	style      render.Style
	now        func() time.Time

	// ctl serializes start and stop of the loops.
	ctl sync.Mutex

	mu           sync.RWMutex
	sinks        []Sink
	videoEnabled bool
	voiceEnabled bool
	videoStop    chan struct{}
	videoDone    chan struct{}
	voiceCancel  context.CancelFunc
	voiceDone    chan struct{}
	lastPose     *pose.Pose
	lastResult   *ClassifierStatus
	snapshot     []byte
	frames       int64
	estimates    int64
	notified     int64
	readFailures int
}

// New creates an App. The camera and estimator are required.
func New(config Config) (*App, error) {
	if config.Camera == nil || config.Estimator == nil {
		return nil, fmt.Errorf("camera and estimator are required")
	}
	if config.TickInterval <= 0 {
		config.TickInterval = DefaultTickInterval
	}
	if config.JPEGQuality <= 0 || config.JPEGQuality > 100 {
		config.JPEGQuality = DefaultJPEGQuality
	}
	if config.OverlayMinConfidence <= 0 {
		config.OverlayMinConfidence = render.DefaultMinConfidence
	}
	if config.Now == nil {
		config.Now = time.Now
	}

	classifier, err := gesture.NewClassifier(config.Gesture)
	if err != nil {
		return nil, fmt.Errorf("classifier: %w", err)
	}

	toasts := config.Toasts
	if toasts == nil {
		toasts = toast.NewBoard(toast.DefaultDuration)
	}

	style := render.DefaultStyle()
	style.MinConfidence = config.OverlayMinConfidence

	return &App{
		config:     config,
		classifier: classifier,
		arbiter:    gesture.NewArbiter(config.VoiceHold),
		toasts:     toasts,
		style:      style,
		now:        config.Now,
		sinks:      []Sink{toasts},
	}, nil
}

// AddSink registers a sink for gesture notifications.
func (a *App) AddSink(s Sink) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.sinks = append(a.sinks, s)
}

// Toasts returns the toast board.
func (a *App) Toasts() *toast.Board {
	return a.toasts
}

// Restore applies the persisted input toggles. Failing to start one input
// is logged and does not stop the other.
func (a *App) Restore() {
	if a.config.Settings == nil {
		return
	}

	if on, err := a.config.Settings.GetBool(SettingVideoEnabled, false); err != nil {
		logger.Warnf("read %s: %v", SettingVideoEnabled, err)
	} else if on {
		if err := a.StartVideo(); err != nil {
			logger.Errorf("restore video: %v", err)
		}
	}

	if on, err := a.config.Settings.GetBool(SettingVoiceEnabled, false); err != nil {
		logger.Warnf("read %s: %v", SettingVoiceEnabled, err)
	} else if on {
		if err := a.StartVoice(); err != nil {
			logger.Errorf("restore voice: %v", err)
		}
	}
}

// SetVideoEnabled starts or stops video detection.
func (a *App) SetVideoEnabled(enabled bool) error {
	if enabled {
		return a.StartVideo()
	}
	a.StopVideo()
	return nil
}

// SetVoiceEnabled starts or stops voice commands.
func (a *App) SetVoiceEnabled(enabled bool) error {
	if enabled {
		return a.StartVoice()
	}
	a.StopVoice()
	return nil
}

// Status returns the current state.
func (a *App) Status() Status {
	now := a.now()
	state, source := a.arbiter.Current(now)

	a.mu.RLock()
	s := Status{
		State:         state,
		Source:        source,
		VideoEnabled:  a.videoEnabled,
		VoiceEnabled:  a.voiceEnabled,
		Frames:        a.frames,
		Estimates:     a.estimates,
		Notifications: a.notified,
	}
	if a.lastResult != nil {
		r := *a.lastResult
		s.Classifier = &r
	}
	a.mu.RUnlock()

	if t, ok := a.toasts.Current(now); ok {
		s.Toast = &t
	}
	return s
}

// Snapshot returns the latest annotated JPEG frame.
func (a *App) Snapshot() ([]byte, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if len(a.snapshot) == 0 {
		return nil, false
	}
	return a.snapshot, true
}

// Close stops both inputs and releases the estimator.
func (a *App) Close() error {
	a.ctl.Lock()
	a.stopVideoLocked()
	a.stopVoiceLocked()
	a.ctl.Unlock()

	return a.config.Estimator.Close()
}

func (a *App) persist(key string, value bool) {
	if a.config.Settings == nil {
		return
	}
	if err := a.config.Settings.SetBool(key, value); err != nil {
		logger.Warnf("persist %s: %v", key, err)
	}
}

// apply dispatches the notification of an arbitrated decision and reports
// state changes to status listeners.
func (a *App) apply(d gesture.Decision) {
	if d.Notification != nil {
		a.mu.Lock()
		a.notified++
		a.mu.Unlock()
		logger.Infof("gesture %s (%s)", d.Notification.Gesture, d.Notification.Source)
		a.dispatch(*d.Notification)
	}
	if d.Changed() {
		a.statusChanged()
	}
}
