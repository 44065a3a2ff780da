package voice

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// Recognizer error codes that end a listening session.
const (
	ErrorNoSpeech = "no-speech"
	ErrorAborted  = "aborted"
)

// Transcript is one recognition result.
type Transcript struct {
	Text       string  `json:"transcript"`
	Final      bool    `json:"final"`
	Confidence float64 `json:"confidence,omitempty"`
	Error      string  `json:"error,omitempty"`
}

// Fatal reports whether the recognizer error should deactivate voice input.
func (t Transcript) Fatal() bool {
	return t.Error == ErrorNoSpeech || t.Error == ErrorAborted
}

// DecodeLine parses one recognizer output line. JSON objects carry
// transcript, final and error fields; any other line is a final plain-text
// transcript. A JSON line without "final" is treated as final. Blank lines
// return ok=false.
func DecodeLine(line string) (Transcript, bool, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return Transcript{}, false, nil
	}

	if !strings.HasPrefix(line, "{") {
		return Transcript{Text: line, Final: true}, true, nil
	}

	var raw struct {
		Transcript string  `json:"transcript"`
		Final      *bool   `json:"final"`
		Confidence float64 `json:"confidence"`
		Error      string  `json:"error"`
	}
	if err := json.Unmarshal([]byte(line), &raw); err != nil {
		return Transcript{}, false, fmt.Errorf("decode transcript: %w", err)
	}

	t := Transcript{
		Text:       raw.Transcript,
		Final:      true,
		Confidence: raw.Confidence,
		Error:      raw.Error,
	}
	if raw.Final != nil {
		t.Final = *raw.Final
	}
	return t, true, nil
}

// Listen reads recognizer lines from r and calls fn for each decoded
// transcript, including error results. Undecodable lines are skipped.
// It returns when r is exhausted or ctx is done.
func Listen(ctx context.Context, r io.Reader, fn func(Transcript)) error {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}

		t, ok, err := DecodeLine(scanner.Text())
		if err != nil || !ok {
			continue
		}
		fn(t)
	}
	return scanner.Err()
}
