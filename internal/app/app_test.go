package app

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ayusman/bhangra/internal/capture"
	"github.com/ayusman/bhangra/internal/gesture"
	"github.com/ayusman/bhangra/internal/pose"
	"github.com/ayusman/bhangra/internal/store"
	"github.com/ayusman/bhangra/internal/voice"
)

var base = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func at(ms int) time.Time {
	return base.Add(time.Duration(ms) * time.Millisecond)
}

type recordingSink struct {
	mu       sync.Mutex
	got      []gesture.Notification
	statuses []Status
}

func (s *recordingSink) Notify(n gesture.Notification) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.got = append(s.got, n)
}

func (s *recordingSink) StatusChanged(st Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statuses = append(s.statuses, st)
}

func (s *recordingSink) notifications() []gesture.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]gesture.Notification(nil), s.got...)
}

type memSettings struct {
	mu     sync.Mutex
	values map[string]bool
}

func newMemSettings() *memSettings {
	return &memSettings{values: map[string]bool{}}
}

func (m *memSettings) GetBool(key string, def bool) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[key]
	if !ok {
		return def, nil
	}
	return v, nil
}

func (m *memSettings) SetBool(key string, value bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

type fakeEvents struct {
	created []*store.Event
}

func (f *fakeEvents) Create(e *store.Event) error {
	f.created = append(f.created, e)
	return nil
}

// clock is a settable time source.
type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

type fixture struct {
	app       *App
	camera    *capture.MockCamera
	estimator *pose.MockEstimator
	sink      *recordingSink
	settings  *memSettings
	clock     *clock
}

func newFixture(t *testing.T, mutate func(*Config)) *fixture {
	t.Helper()

	f := &fixture{
		camera:    capture.NewMockCamera(capture.BlankFrames(2), true),
		estimator: pose.NewMockEstimator(),
		sink:      &recordingSink{},
		settings:  newMemSettings(),
		clock:     &clock{now: base},
	}

	cfg := Config{
		Gesture:      gesture.DefaultConfig(),
		TickInterval: time.Hour,
		Camera:       f.camera,
		Estimator:    f.estimator,
		Settings:     f.settings,
		Now:          f.clock.Now,
	}
	if mutate != nil {
		mutate(&cfg)
	}

	a, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	a.AddSink(f.sink)
	t.Cleanup(func() { a.Close() })

	f.app = a
	return f
}

// crouchPoses stands still four times, then drops the nose far below the
// shoulders: mean 220, variation 480, nose 700 > 250+20.
func crouchPoses() []*pose.Pose {
	return []*pose.Pose{
		pose.UprightPose(100, 250),
		pose.UprightPose(100, 250),
		pose.UprightPose(100, 250),
		pose.UprightPose(100, 250),
		pose.UprightPose(700, 250),
	}
}

// feed runs one tick per timestamp with the camera opened directly, so no
// background loop competes with the test.
func (f *fixture) feed(t *testing.T, times ...time.Time) {
	t.Helper()
	if !f.camera.IsOpen() {
		if err := f.camera.Open(); err != nil {
			t.Fatalf("Open() error = %v", err)
		}
	}
	for _, ts := range times {
		f.clock.Set(ts)
		f.app.tick(ts)
	}
}

func TestNew_RequiresCollaborators(t *testing.T) {
	if _, err := New(Config{Gesture: gesture.DefaultConfig()}); err == nil {
		t.Error("New() without camera and estimator should fail")
	}

	_, err := New(Config{
		Gesture:   gesture.Config{},
		Camera:    capture.NewMockCamera(nil, false),
		Estimator: pose.NewMockEstimator(),
	})
	if err == nil {
		t.Error("New() with an invalid classifier config should fail")
	}
}

func TestApp_VisionCrouch(t *testing.T) {
	f := newFixture(t, nil)
	f.estimator.SetPoses(crouchPoses()...)

	f.feed(t, at(0), at(200), at(400), at(600), at(800))

	got := f.sink.notifications()
	if len(got) != 1 {
		t.Fatalf("notifications = %v, want one", got)
	}
	want := gesture.Notification{Gesture: gesture.Crouching, Source: gesture.SourceVision, Timestamp: at(800)}
	if got[0] != want {
		t.Errorf("notification = %+v, want %+v", got[0], want)
	}

	st := f.app.Status()
	if st.State != gesture.Crouching || st.Source != gesture.SourceVision {
		t.Errorf("Status() = %s/%s, want crouching/vision", st.State, st.Source)
	}
	if st.Classifier == nil || st.Classifier.Variation != 480 {
		t.Errorf("Status().Classifier = %+v, want variation 480", st.Classifier)
	}
	if st.Toast == nil || st.Toast.Message != "User has crouched!" {
		t.Errorf("Status().Toast = %+v", st.Toast)
	}
	if st.Notifications != 1 || st.Estimates != 5 {
		t.Errorf("counters = %d notifications %d estimates", st.Notifications, st.Estimates)
	}

	// Staying crouched does not notify again.
	f.feed(t, at(1000), at(1200))
	if n := len(f.sink.notifications()); n != 1 {
		t.Errorf("notifications after holding = %d, want 1", n)
	}
}

func TestApp_TickThrottlesEstimation(t *testing.T) {
	f := newFixture(t, nil)
	f.estimator.SetPoses(pose.UprightPose(100, 250))

	f.feed(t, at(0), at(33), at(66), at(100), at(199), at(200))

	if calls := f.estimator.Calls(); calls != 2 {
		t.Errorf("Estimate() calls = %d, want 2", calls)
	}
	if reads := f.camera.Reads(); reads != 6 {
		t.Errorf("camera reads = %d, want 6", reads)
	}
	if _, ok := f.app.Snapshot(); ok {
		t.Error("Snapshot() should be empty while video is stopped")
	}
}

func TestApp_MissingKeypointsHoldState(t *testing.T) {
	f := newFixture(t, nil)
	poses := append(crouchPoses(), pose.HeadOnlyPose(100))
	f.estimator.SetPoses(poses...)

	f.feed(t, at(0), at(200), at(400), at(600), at(800), at(1000))

	st := f.app.Status()
	if st.State != gesture.Crouching {
		t.Errorf("State = %s, want crouching held", st.State)
	}
	if st.Classifier == nil || st.Classifier.Reason == "" {
		t.Errorf("Status().Classifier = %+v, want a reason", st.Classifier)
	}
}

func TestApp_EstimatorErrorSkipsFrame(t *testing.T) {
	f := newFixture(t, nil)
	f.estimator.SetError(errors.New("service down"))

	// One failed attempt per 200ms, not one per tick.
	f.feed(t, at(0), at(33), at(66), at(99), at(132), at(165), at(198))
	if got := f.estimator.Calls(); got != 1 {
		t.Errorf("estimator calls = %d within one interval, want 1", got)
	}

	f.feed(t, at(200))
	if got := f.estimator.Calls(); got != 2 {
		t.Errorf("estimator calls = %d after the interval, want 2", got)
	}

	st := f.app.Status()
	if st.Estimates != 0 || st.Frames != 8 {
		t.Errorf("Status() = %d estimates %d frames, want 0 and 8", st.Estimates, st.Frames)
	}
}

func TestApp_VoiceOverridesVision(t *testing.T) {
	f := newFixture(t, nil)
	if err := f.app.StartVoice(); err != nil {
		t.Fatalf("StartVoice() error = %v", err)
	}

	f.clock.Set(at(0))
	cmd, ok, err := f.app.SubmitTranscript("¡Salta!")
	if err != nil || !ok || cmd != voice.CommandJump {
		t.Fatalf("SubmitTranscript() = %q %v %v", cmd, ok, err)
	}

	// Vision crouches during the hold: recorded, not applied.
	f.estimator.SetPoses(crouchPoses()...)
	f.feed(t, at(100), at(300), at(500), at(700), at(900))

	st := f.app.Status()
	if st.State != gesture.Jumping || st.Source != gesture.SourceVoice {
		t.Errorf("during hold Status() = %s/%s, want jumping/voice", st.State, st.Source)
	}

	// After the hold the latest vision state shows through.
	f.clock.Set(at(1600))
	st = f.app.Status()
	if st.State != gesture.Crouching || st.Source != gesture.SourceVision {
		t.Errorf("after hold Status() = %s/%s, want crouching/vision", st.State, st.Source)
	}

	got := f.sink.notifications()
	if len(got) != 1 || got[0].Gesture != gesture.Jumping || got[0].Source != gesture.SourceVoice {
		t.Errorf("notifications = %+v, want one voice jump", got)
	}
}

func TestApp_SubmitTranscriptErrors(t *testing.T) {
	f := newFixture(t, nil)

	if _, ok, err := f.app.SubmitTranscript("jump"); !errors.Is(err, ErrVoiceDisabled) || ok {
		t.Errorf("SubmitTranscript() while disabled = %v %v, want ErrVoiceDisabled", ok, err)
	}

	f.app.StartVoice()
	if _, ok, err := f.app.SubmitTranscript("dance"); !errors.Is(err, voice.ErrUnknownCommand) || ok {
		t.Errorf("SubmitTranscript(dance) = %v %v, want ErrUnknownCommand", ok, err)
	}
	if n := len(f.sink.notifications()); n != 0 {
		t.Errorf("notifications = %d, want 0", n)
	}
}

func TestApp_StartVideoResetsHistories(t *testing.T) {
	f := newFixture(t, nil)
	f.estimator.SetPoses(crouchPoses()...)
	f.feed(t, at(0), at(200), at(400), at(600), at(800))
	f.camera.Close()

	if err := f.app.StartVideo(); err != nil {
		t.Fatalf("StartVideo() error = %v", err)
	}
	if n := len(f.app.classifier.NoseHistory()); n != 0 {
		t.Errorf("nose history after restart = %d samples, want 0", n)
	}
	if st := f.app.Status(); st.State != gesture.Neutral || !st.VideoEnabled {
		t.Errorf("Status() = %s video=%v, want neutral and enabled", st.State, st.VideoEnabled)
	}

	// Starting twice is a no-op.
	if err := f.app.StartVideo(); err != nil {
		t.Fatalf("second StartVideo() error = %v", err)
	}
	if opens := f.camera.Opens(); opens != 2 {
		t.Errorf("camera opens = %d, want 2", opens)
	}

	f.app.StopVideo()
	if f.camera.IsOpen() {
		t.Error("camera should be closed after StopVideo()")
	}
}

func TestApp_StartVideoCameraError(t *testing.T) {
	f := newFixture(t, nil)
	f.camera.SetOpenError(capture.ErrCameraNotOpen)

	if err := f.app.StartVideo(); !errors.Is(err, capture.ErrCameraNotOpen) {
		t.Fatalf("StartVideo() error = %v, want ErrCameraNotOpen", err)
	}
	if f.app.Status().VideoEnabled {
		t.Error("video should stay disabled")
	}
	if on, _ := f.settings.GetBool(SettingVideoEnabled, false); on {
		t.Error("a failed start must not be persisted")
	}
}

func TestApp_TogglesPersistAndRestore(t *testing.T) {
	f := newFixture(t, nil)

	if err := f.app.SetVideoEnabled(true); err != nil {
		t.Fatalf("SetVideoEnabled() error = %v", err)
	}
	if err := f.app.SetVoiceEnabled(true); err != nil {
		t.Fatalf("SetVoiceEnabled() error = %v", err)
	}
	if v, _ := f.settings.GetBool(SettingVideoEnabled, false); !v {
		t.Error("video toggle not persisted")
	}
	if v, _ := f.settings.GetBool(SettingVoiceEnabled, false); !v {
		t.Error("voice toggle not persisted")
	}

	restored := newFixture(t, func(c *Config) { c.Settings = f.settings })
	f.app.Close()
	restored.app.Restore()

	st := restored.app.Status()
	if !st.VideoEnabled || !st.VoiceEnabled {
		t.Errorf("restored Status() video=%v voice=%v, want both on", st.VideoEnabled, st.VoiceEnabled)
	}

	restored.app.SetVoiceEnabled(false)
	if v, _ := f.settings.GetBool(SettingVoiceEnabled, true); v {
		t.Error("disabling voice not persisted")
	}
}

func TestApp_StatusListeners(t *testing.T) {
	f := newFixture(t, nil)

	f.app.StartVoice()
	f.app.SubmitTranscript("crouch")

	f.sink.mu.Lock()
	statuses := append([]Status(nil), f.sink.statuses...)
	f.sink.mu.Unlock()

	if len(statuses) != 2 {
		t.Fatalf("status changes = %d, want 2", len(statuses))
	}
	if !statuses[0].VoiceEnabled {
		t.Error("first status should report voice enabled")
	}
	if statuses[1].State != gesture.Crouching {
		t.Errorf("second status state = %s, want crouching", statuses[1].State)
	}
}

// scriptedVoice replays transcripts, then returns err.
type scriptedVoice struct {
	lines []voice.Transcript
	err   error
}

func (s *scriptedVoice) Run(ctx context.Context, fn func(voice.Transcript)) error {
	for _, l := range s.lines {
		fn(l)
	}
	if s.err == nil {
		<-ctx.Done()
		return ctx.Err()
	}
	return s.err
}

func TestApp_VoiceSource(t *testing.T) {
	src := &scriptedVoice{
		lines: []voice.Transcript{
			{Text: "sal", Final: false},
			{Text: "Salta", Final: true},
		},
		err: voice.ErrDeactivated,
	}
	f := newFixture(t, func(c *Config) { c.Voice = src })

	if err := f.app.StartVoice(); err != nil {
		t.Fatalf("StartVoice() error = %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for f.app.Status().VoiceEnabled && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if f.app.Status().VoiceEnabled {
		t.Fatal("voice should turn off when the recognizer deactivates")
	}

	got := f.sink.notifications()
	if len(got) != 1 || got[0].Gesture != gesture.Jumping || got[0].Source != gesture.SourceVoice {
		t.Errorf("notifications = %+v, want one voice jump", got)
	}
	if v, _ := f.settings.GetBool(SettingVoiceEnabled, true); v {
		t.Error("deactivation should be persisted")
	}
}

// flakyVoice deactivates on its first run and listens until cancelled after.
type flakyVoice struct {
	mu   sync.Mutex
	runs int
}

func (v *flakyVoice) Run(ctx context.Context, fn func(voice.Transcript)) error {
	v.mu.Lock()
	v.runs++
	first := v.runs == 1
	v.mu.Unlock()

	if first {
		return voice.ErrDeactivated
	}
	<-ctx.Done()
	return ctx.Err()
}

// gatedSettings blocks the first write that turns voice off until release
// is closed.
type gatedSettings struct {
	*memSettings
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func (g *gatedSettings) SetBool(key string, value bool) error {
	if key == SettingVoiceEnabled && !value {
		g.once.Do(func() {
			close(g.entered)
			<-g.release
		})
	}
	return g.memSettings.SetBool(key, value)
}

func TestApp_VoiceRestartDuringDeactivation(t *testing.T) {
	settings := &gatedSettings{
		memSettings: newMemSettings(),
		entered:     make(chan struct{}),
		release:     make(chan struct{}),
	}
	f := newFixture(t, func(c *Config) {
		c.Voice = &flakyVoice{}
		c.Settings = settings
	})

	go f.app.StartVoice()

	select {
	case <-settings.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("recognizer deactivation was not persisted")
	}

	restarted := make(chan error, 1)
	go func() { restarted <- f.app.StartVoice() }()

	select {
	case err := <-restarted:
		t.Fatalf("StartVoice() = %v returned while the deactivation was being saved", err)
	case <-time.After(50 * time.Millisecond):
	}
	close(settings.release)

	select {
	case err := <-restarted:
		if err != nil {
			t.Fatalf("StartVoice() error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("StartVoice() did not return")
	}

	if !f.app.Status().VoiceEnabled {
		t.Error("voice should be on after the restart")
	}
	if v, _ := settings.GetBool(SettingVoiceEnabled, false); !v {
		t.Error("persisted voice toggle = false, want true")
	}
}

func TestApp_StopVoiceCancelsSource(t *testing.T) {
	f := newFixture(t, func(c *Config) { c.Voice = &scriptedVoice{} })

	f.app.StartVoice()
	done := make(chan struct{})
	go func() {
		f.app.StopVoice()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("StopVoice() did not return")
	}
	if f.app.Status().VoiceEnabled {
		t.Error("voice should be off")
	}
}

func TestEventLog(t *testing.T) {
	events := &fakeEvents{}
	log := NewEventLog(events)

	log.Notify(gesture.Notification{Gesture: gesture.Jumping, Source: gesture.SourceVoice, Timestamp: at(5)})

	if len(events.created) != 1 {
		t.Fatalf("created = %d, want 1", len(events.created))
	}
	e := events.created[0]
	if e.Gesture != "jumping" || e.Source != "voice" || !e.OccurredAt.Equal(at(5)) {
		t.Errorf("event = %+v", e)
	}
}
