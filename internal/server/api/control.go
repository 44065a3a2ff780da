package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/ayusman/bhangra/internal/app"
	"github.com/ayusman/bhangra/internal/logger"
	"github.com/ayusman/bhangra/internal/voice"
)

// Controller is the part of the application driven over HTTP.
type Controller interface {
	Status() app.Status
	SetVideoEnabled(enabled bool) error
	SetVoiceEnabled(enabled bool) error
	SubmitTranscript(text string) (voice.Command, bool, error)
}

// ControlHandler serves the live state, the input toggles and spoken
// commands.
type ControlHandler struct {
	app Controller
}

// NewControlHandler creates a ControlHandler.
func NewControlHandler(c Controller) *ControlHandler {
	return &ControlHandler{app: c}
}

// ServeHTTP routes /api/state, /api/control/{video,voice} and /api/commands.
func (h *ControlHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.URL.Path == "/api/state":
		if r.Method != http.MethodGet {
			methodNotAllowed(w)
			return
		}
		writeJSON(w, http.StatusOK, h.app.Status())

	case strings.HasPrefix(r.URL.Path, "/api/control/"):
		h.toggle(w, r, strings.TrimPrefix(r.URL.Path, "/api/control/"))

	case r.URL.Path == "/api/commands":
		if r.Method != http.MethodPost {
			methodNotAllowed(w)
			return
		}
		h.command(w, r)

	default:
		writeError(w, http.StatusNotFound, "Not found")
	}
}

type toggleRequest struct {
	Enabled *bool `json:"enabled"`
}

type commandRequest struct {
	Transcript string `json:"transcript"`
}

type commandResponse struct {
	Command  voice.Command `json:"command"`
	Accepted bool          `json:"accepted"`
	Reason   string        `json:"reason,omitempty"`
}

func (h *ControlHandler) toggle(w http.ResponseWriter, r *http.Request, input string) {
	if r.Method != http.MethodPut {
		methodNotAllowed(w)
		return
	}

	var set func(bool) error
	switch input {
	case "video":
		set = h.app.SetVideoEnabled
	case "voice":
		set = h.app.SetVoiceEnabled
	default:
		writeError(w, http.StatusNotFound, "Unknown input "+input)
		return
	}

	var req toggleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Enabled == nil {
		writeError(w, http.StatusBadRequest, "enabled is required")
		return
	}

	if err := set(*req.Enabled); err != nil {
		logger.Errorf("toggle %s: %v", input, err)
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, h.app.Status())
}

// command handles POST /api/commands. Unmatched transcripts and transcripts
// sent while voice is off are reported as not accepted rather than as
// errors, since browsers forward everything they hear.
func (h *ControlHandler) command(w http.ResponseWriter, r *http.Request) {
	var req commandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if strings.TrimSpace(req.Transcript) == "" {
		writeError(w, http.StatusBadRequest, "transcript is required")
		return
	}

	cmd, accepted, err := h.app.SubmitTranscript(req.Transcript)
	resp := commandResponse{Command: cmd, Accepted: accepted}
	switch {
	case err == nil:
	case errors.Is(err, app.ErrVoiceDisabled), errors.Is(err, voice.ErrUnknownCommand):
		resp.Reason = err.Error()
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, resp)
}
