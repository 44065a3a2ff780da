// Package tray provides the system tray menu: video and voice toggles and
// the last recognized gesture.
package tray

import (
	"sync"

	"github.com/getlantern/systray"

	"github.com/ayusman/bhangra/internal/gesture"
)

// Tray represents the system tray application.
type Tray struct {
	onVideo func(enabled bool)
	onVoice func(enabled bool)
	onOpen  func()
	onQuit  func()

	video bool
	voice bool
	last  string
	mu    sync.RWMutex

	// Menu items stored for later updates
	menuVideo       *systray.MenuItem
	menuVoice       *systray.MenuItem
	menuLastGesture *systray.MenuItem
}

// New creates a Tray with both inputs shown as disabled.
func New() *Tray {
	return &Tray{}
}

// OnVideoToggle sets the callback for the video menu item.
func (t *Tray) OnVideoToggle(fn func(enabled bool)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onVideo = fn
}

// OnVoiceToggle sets the callback for the voice menu item.
func (t *Tray) OnVoiceToggle(fn func(enabled bool)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onVoice = fn
}

// OnOpen sets the callback for the "Open in Browser" menu item.
func (t *Tray) OnOpen(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onOpen = fn
}

// OnQuit sets the callback for the quit menu item.
func (t *Tray) OnQuit(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onQuit = fn
}

// Run starts the system tray. It blocks until Quit is called and must run
// on the main goroutine.
func (t *Tray) Run() {
	systray.Run(t.onReady, func() {})
}

// Quit stops Run.
func (t *Tray) Quit() {
	systray.Quit()
}

func (t *Tray) onReady() {
	systray.SetTitle("Bhangra")
	systray.SetTooltip("Bhangra jump and crouch detection")

	t.mu.Lock()
	t.menuVideo = systray.AddMenuItem(toggleTitle("Video", t.video), "Toggle camera gesture detection")
	t.menuVoice = systray.AddMenuItem(toggleTitle("Voice", t.voice), "Toggle voice commands")
	systray.AddSeparator()
	t.menuLastGesture = systray.AddMenuItem(lastTitle(t.last), "Last recognized gesture")
	t.menuLastGesture.Disable()
	t.mu.Unlock()

	systray.AddSeparator()
	menuOpen := systray.AddMenuItem("Open in Browser...", "Open the control page")
	systray.AddSeparator()
	menuQuit := systray.AddMenuItem("Quit", "Quit Bhangra")

	go func() {
		for {
			select {
			case <-t.menuVideo.ClickedCh:
				t.toggleVideo()
			case <-t.menuVoice.ClickedCh:
				t.toggleVoice()
			case <-menuOpen.ClickedCh:
				t.call(t.onOpen)
			case <-menuQuit.ClickedCh:
				t.call(t.onQuit)
				systray.Quit()
				return
			}
		}
	}()
}

func (t *Tray) toggleVideo() {
	t.mu.Lock()
	t.video = !t.video
	enabled := t.video
	setTitle(t.menuVideo, toggleTitle("Video", enabled))
	callback := t.onVideo
	t.mu.Unlock()

	// Call the callback outside the lock to prevent deadlocks
	if callback != nil {
		callback(enabled)
	}
}

func (t *Tray) toggleVoice() {
	t.mu.Lock()
	t.voice = !t.voice
	enabled := t.voice
	setTitle(t.menuVoice, toggleTitle("Voice", enabled))
	callback := t.onVoice
	t.mu.Unlock()

	if callback != nil {
		callback(enabled)
	}
}

func (t *Tray) call(fn func()) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if fn != nil {
		go fn()
	}
}

// SetVideoEnabled syncs the video item with the application state.
func (t *Tray) SetVideoEnabled(enabled bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.video = enabled
	setTitle(t.menuVideo, toggleTitle("Video", enabled))
}

// SetVoiceEnabled syncs the voice item with the application state.
func (t *Tray) SetVoiceEnabled(enabled bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.voice = enabled
	setTitle(t.menuVoice, toggleTitle("Voice", enabled))
}

// Notify shows the gesture as the last one recognized.
func (t *Tray) Notify(n gesture.Notification) {
	t.SetLastGesture(n.Gesture.String() + " (" + n.Source.String() + ")")
}

// SetLastGesture updates the last gesture display in the menu.
func (t *Tray) SetLastGesture(name string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.last = name
	setTitle(t.menuLastGesture, lastTitle(name))
}

// State returns the toggles and last gesture as displayed.
func (t *Tray) State() (video, voice bool, last string) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.video, t.voice, t.last
}

func toggleTitle(name string, enabled bool) string {
	if enabled {
		return "● " + name + " on"
	}
	return "○ " + name + " off"
}

func lastTitle(name string) string {
	if name == "" {
		return "Last: none"
	}
	return "Last: " + name
}

func setTitle(item *systray.MenuItem, title string) {
	if item != nil {
		item.SetTitle(title)
	}
}
