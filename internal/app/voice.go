package app

import (
	"context"
	"errors"

	"github.com/ayusman/bhangra/internal/gesture"
	"github.com/ayusman/bhangra/internal/logger"
	"github.com/ayusman/bhangra/internal/voice"
)

// StartVoice enables voice commands and, when a recognizer is configured,
// starts listening. A recognizer that deactivates itself turns voice input
// off again.
func (a *App) StartVoice() error {
	a.ctl.Lock()
	defer a.ctl.Unlock()

	a.mu.RLock()
	enabled := a.voiceEnabled
	a.mu.RUnlock()
	if enabled {
		return nil
	}

	// Persisted first so a recognizer that fails at once can turn it off.
	a.persist(SettingVoiceEnabled, true)

	a.mu.Lock()
	a.voiceEnabled = true
	if a.config.Voice != nil {
		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan struct{})
		a.voiceCancel = cancel
		a.voiceDone = done
		go a.runVoice(ctx, done)
	}
	a.mu.Unlock()

	logger.Info("voice commands started")
	a.statusChanged()
	return nil
}

// StopVoice disables voice commands and stops the recognizer.
func (a *App) StopVoice() {
	a.ctl.Lock()
	a.stopVoiceLocked()
	a.persist(SettingVoiceEnabled, false)
	a.ctl.Unlock()

	a.statusChanged()
}

// stopVoiceLocked requires a.ctl.
func (a *App) stopVoiceLocked() {
	a.mu.Lock()
	wasEnabled := a.voiceEnabled
	cancel, done := a.voiceCancel, a.voiceDone
	a.voiceEnabled = false
	a.voiceCancel = nil
	a.voiceDone = nil
	a.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
	if wasEnabled {
		logger.Info("voice commands stopped")
	}
}

func (a *App) runVoice(ctx context.Context, done chan<- struct{}) {
	defer close(done)

	err := a.config.Voice.Run(ctx, func(t voice.Transcript) {
		if !t.Final {
			return
		}
		if _, _, err := a.SubmitTranscript(t.Text); err != nil {
			logger.Debugf("transcript %q: %v", t.Text, err)
		}
	})
	if ctx.Err() != nil {
		return
	}

	if errors.Is(err, voice.ErrDeactivated) {
		logger.Warnf("voice recognizer deactivated: %v", err)
	} else if err != nil {
		logger.Errorf("voice recognizer: %v", err)
	}

	// The recognizer ended on its own; reflect that in the toggle. The
	// setting is written under a.mu so StartVoice never sees the toggle off
	// before it is persisted off.
	a.mu.Lock()
	current := a.voiceDone == done
	if current {
		a.voiceEnabled = false
		a.voiceCancel = nil
		a.voiceDone = nil
		a.persist(SettingVoiceEnabled, false)
	}
	a.mu.Unlock()

	if current {
		a.statusChanged()
	}
}

// SubmitTranscript parses a spoken transcript and offers the command to the
// arbiter. accepted is false when voice input is off or nothing matched.
func (a *App) SubmitTranscript(text string) (cmd voice.Command, accepted bool, err error) {
	a.mu.RLock()
	enabled := a.voiceEnabled
	a.mu.RUnlock()
	if !enabled {
		return voice.CommandNone, false, ErrVoiceDisabled
	}

	cmd, err = voice.Parse(text)
	if err != nil {
		return voice.CommandNone, false, err
	}

	logger.Debugf("voice command %q from %q", cmd, text)
	a.apply(a.arbiter.Offer(gesture.Event{
		Source:    gesture.SourceVoice,
		Gesture:   cmd.Gesture(),
		Timestamp: a.now(),
	}))
	return cmd, true, nil
}
