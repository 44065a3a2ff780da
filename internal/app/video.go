package app

import (
	"fmt"
	"time"

	"gocv.io/x/gocv"

	"github.com/ayusman/bhangra/internal/gesture"
	"github.com/ayusman/bhangra/internal/logger"
	"github.com/ayusman/bhangra/internal/pose"
	"github.com/ayusman/bhangra/internal/render"
)

// readFailureLogEvery limits how often a failing camera is logged.
const readFailureLogEvery = 100

// StartVideo opens the camera and starts the video loop. The classifier
// and the arbiter's vision state start fresh on every start. Calling it
// while the loop runs is a no-op.
func (a *App) StartVideo() error {
	a.ctl.Lock()
	defer a.ctl.Unlock()

	a.mu.RLock()
	running := a.videoStop != nil
	a.mu.RUnlock()
	if running {
		return nil
	}

	if err := a.config.Camera.Open(); err != nil {
		return fmt.Errorf("open camera: %w", err)
	}

	a.classifier.Reset()
	a.arbiter.ResetVision()

	stop := make(chan struct{})
	done := make(chan struct{})

	a.mu.Lock()
	a.videoStop = stop
	a.videoDone = done
	a.videoEnabled = true
	a.lastPose = nil
	a.lastResult = nil
	a.readFailures = 0
	a.mu.Unlock()

	go a.runVideo(stop, done)

	logger.Info("video detection started")
	a.persist(SettingVideoEnabled, true)
	a.statusChanged()
	return nil
}

// StopVideo stops the video loop and closes the camera.
func (a *App) StopVideo() {
	a.ctl.Lock()
	a.stopVideoLocked()
	a.persist(SettingVideoEnabled, false)
	a.ctl.Unlock()

	a.statusChanged()
}

// stopVideoLocked requires a.ctl.
func (a *App) stopVideoLocked() {
	a.mu.Lock()
	stop, done := a.videoStop, a.videoDone
	a.videoStop = nil
	a.videoDone = nil
	a.videoEnabled = false
	a.snapshot = nil
	a.mu.Unlock()

	if stop == nil {
		return
	}
	close(stop)
	<-done

	if err := a.config.Camera.Close(); err != nil {
		logger.Warnf("close camera: %v", err)
	}
	logger.Info("video detection stopped")
}

// runVideo offers one frame per tick until stop is closed.
func (a *App) runVideo(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(a.config.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			a.tick(a.now())
		}
	}
}

// tick reads one frame, estimates and classifies it when the classifier
// admits it, and refreshes the annotated preview.
func (a *App) tick(now time.Time) {
	frame, err := a.config.Camera.ReadFrame()
	if err != nil {
		a.mu.Lock()
		a.readFailures++
		n := a.readFailures
		a.mu.Unlock()
		if n%readFailureLogEvery == 1 {
			logger.Warnf("read frame (%d failures): %v", n, err)
		}
		return
	}
	defer frame.Close()

	a.mu.Lock()
	a.frames++
	a.readFailures = 0
	a.mu.Unlock()

	if a.classifier.Admit(now) {
		a.estimate(frame, now)
	}

	a.mu.RLock()
	last := a.lastPose
	a.mu.RUnlock()
	if last != nil {
		render.Keypoints(frame, last.Keypoints, a.style)
	}
	state, source := a.arbiter.Current(now)
	render.Label(frame, fmt.Sprintf("%s (%s)", state, source))

	a.encodeSnapshot(frame)
}

func (a *App) estimate(frame *gocv.Mat, now time.Time) {
	p, err := a.config.Estimator.Estimate(frame)
	if err != nil {
		logger.Warnf("estimate pose: %v", err)
		return
	}

	res := a.classifier.Evaluate(pose.Frame{Pose: *p, Timestamp: now})

	status := &ClassifierStatus{
		State:     res.State,
		NoseY:     res.NoseY,
		AvgNoseY:  res.AvgNoseY,
		Baseline:  res.Baseline,
		Variation: res.Variation,
		At:        now,
	}
	if res.Reason != nil {
		status.Reason = res.Reason.Error()
	}

	a.mu.Lock()
	a.estimates++
	a.lastPose = p
	a.lastResult = status
	a.mu.Unlock()

	if !res.Classified() {
		logger.Debugf("frame not classified: %v", res.Reason)
		return
	}

	a.apply(a.arbiter.Offer(gesture.Event{
		Source:    gesture.SourceVision,
		Gesture:   res.State,
		Timestamp: now,
	}))
}

func (a *App) encodeSnapshot(frame *gocv.Mat) {
	buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, *frame, []int{gocv.IMWriteJpegQuality, a.config.JPEGQuality})
	if err != nil {
		logger.Debugf("encode snapshot: %v", err)
		return
	}
	defer buf.Close()

	data := make([]byte, buf.Len())
	copy(data, buf.GetBytes())

	a.mu.Lock()
	if a.videoStop != nil {
		a.snapshot = data
	}
	a.mu.Unlock()
}
