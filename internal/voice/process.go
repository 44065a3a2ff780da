package voice

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/ayusman/bhangra/internal/logger"
)

// ErrDeactivated is returned by ProcessSource.Run when the recognizer
// reports that nobody is speaking or the session was aborted.
var ErrDeactivated = errors.New("voice input deactivated")

// ProcessSource runs an external speech recognizer that prints one
// transcript per line on stdout. The recognizer is restarted whenever it
// exits while the source is still running.
type ProcessSource struct {
	// Command is the recognizer executable.
	Command string
	// Args are passed to Command.
	Args []string
	// Language is exported to the recognizer as BHANGRA_VOICE_LANG.
	Language string
	// RestartDelay is the pause before restarting an exited recognizer.
	RestartDelay time.Duration
}

// NewProcessSource creates a ProcessSource for the given command line.
func NewProcessSource(command string, args []string, language string) *ProcessSource {
	return &ProcessSource{
		Command:      command,
		Args:         args,
		Language:     language,
		RestartDelay: 500 * time.Millisecond,
	}
}

// Run starts the recognizer and delivers final, error-free transcripts to
// fn until ctx is done. It returns nil on cancellation, ErrDeactivated on
// a no-speech or aborted result, and an error if the recognizer cannot be
// started.
func (p *ProcessSource) Run(ctx context.Context, fn func(Transcript)) error {
	if p.Command == "" {
		return fmt.Errorf("no recognizer command configured")
	}

	for {
		deactivated, err := p.runOnce(ctx, fn)
		if ctx.Err() != nil {
			return nil
		}
		if deactivated != "" {
			return fmt.Errorf("%w: %s", ErrDeactivated, deactivated)
		}
		if err != nil {
			var exitErr *exec.ExitError
			if !errors.As(err, &exitErr) {
				return err
			}
			logger.Warnf("speech recognizer exited: %v", err)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(p.RestartDelay):
		}
		logger.Debugf("restarting speech recognizer")
	}
}

// runOnce runs one recognizer session. It returns the fatal error code
// that ended the session, if any.
func (p *ProcessSource) runOnce(ctx context.Context, fn func(Transcript)) (string, error) {
	sessionCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	cmd := exec.CommandContext(sessionCtx, p.Command, p.Args...)
	cmd.Env = append(os.Environ(), "BHANGRA_VOICE_LANG="+p.Language)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return "", fmt.Errorf("create stdout pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return "", fmt.Errorf("start speech recognizer: %w", err)
	}

	var fatal string
	Listen(sessionCtx, stdout, func(t Transcript) {
		if fatal != "" {
			return
		}
		switch {
		case t.Fatal():
			fatal = t.Error
			cancel()
		case t.Error != "":
			logger.Warnf("speech recognition error: %s", t.Error)
		case t.Final && t.Text != "":
			fn(t)
		}
	})

	err = cmd.Wait()
	if fatal != "" {
		return fatal, nil
	}
	if err != nil && stderr.Len() > 0 {
		return "", fmt.Errorf("%w, stderr: %s", err, stderr.String())
	}
	return "", err
}
