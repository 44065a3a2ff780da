// Package voice turns speech recognizer output into gesture commands.
package voice

import (
	"errors"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/ayusman/bhangra/internal/gesture"
)

// ErrUnknownCommand is returned when a transcript matches no command.
var ErrUnknownCommand = errors.New("unknown command")

// Command is a spoken gesture command.
type Command string

const (
	// CommandNone is the zero Command.
	CommandNone Command = ""
	// CommandJump requests the Jumping state.
	CommandJump Command = "jump"
	// CommandCrouch requests the Crouching state.
	CommandCrouch Command = "crouch"
)

// Gesture returns the gesture state the command maps to.
func (c Command) Gesture() gesture.State {
	switch c {
	case CommandJump:
		return gesture.Jumping
	case CommandCrouch:
		return gesture.Crouching
	}
	return gesture.Neutral
}

// vocabulary maps normalized transcripts to commands. English and Spanish
// forms are both accepted since the recognizer runs in es-ES by default.
var vocabulary = map[string]Command{
	"jump":      CommandJump,
	"salta":     CommandJump,
	"saltar":    CommandJump,
	"salto":     CommandJump,
	"brinca":    CommandJump,
	"crouch":    CommandCrouch,
	"agachate":  CommandCrouch,
	"agacharse": CommandCrouch,
	"agachado":  CommandCrouch,
	"abajo":     CommandCrouch,
}

// Parse matches a whole transcript against the vocabulary. Matching
// ignores case, accents, surrounding punctuation and repeated spaces.
func Parse(transcript string) (Command, error) {
	if cmd, ok := vocabulary[Normalize(transcript)]; ok {
		return cmd, nil
	}
	return CommandNone, ErrUnknownCommand
}

// Normalize folds case, strips diacritics and trims punctuation so that
// "¡Agáchate!" and "agachate" compare equal.
func Normalize(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	stripped, _, err := transform.String(t, s)
	if err != nil {
		stripped = s
	}

	folded := cases.Fold().String(stripped)
	folded = strings.TrimFunc(folded, func(r rune) bool {
		return unicode.IsPunct(r) || unicode.IsSpace(r)
	})

	return strings.Join(strings.Fields(folded), " ")
}
