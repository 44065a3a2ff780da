package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ayusman/bhangra/internal/store"
)

// maxEventLimit bounds the limit query parameter.
const maxEventLimit = 1000

// EventHandler serves the gesture event log.
type EventHandler struct {
	store *store.Store
	now   func() time.Time
}

// NewEventHandler creates an EventHandler.
func NewEventHandler(s *store.Store) *EventHandler {
	return &EventHandler{store: s, now: time.Now}
}

// ServeHTTP routes /api/events and /api/events/stats.
func (h *EventHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/events")
	path = strings.TrimPrefix(path, "/")

	switch path {
	case "":
		switch r.Method {
		case http.MethodGet:
			h.list(w, r)
		case http.MethodDelete:
			h.purge(w, r)
		default:
			methodNotAllowed(w)
		}
	case "stats":
		if r.Method != http.MethodGet {
			methodNotAllowed(w)
			return
		}
		h.stats(w, r)
	default:
		writeError(w, http.StatusNotFound, "Not found")
	}
}

type eventResponse struct {
	ID         string `json:"id"`
	Gesture    string `json:"gesture"`
	Source     string `json:"source"`
	OccurredAt string `json:"occurred_at"`
}

type listEventsResponse struct {
	Events []eventResponse `json:"events"`
}

type statsResponse struct {
	Counts map[string]int `json:"counts"`
	Total  int            `json:"total"`
}

type purgeResponse struct {
	Deleted int64 `json:"deleted"`
}

func toEventResponse(e *store.Event) eventResponse {
	return eventResponse{
		ID:         e.ID,
		Gesture:    e.Gesture,
		Source:     e.Source,
		OccurredAt: e.OccurredAt.Format(timeFormat),
	}
}

// list handles GET /api/events. With since it returns events after that
// time, oldest first; otherwise the newest limit events.
func (h *EventHandler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var (
		events []*store.Event
		err    error
	)
	if s := q.Get("since"); s != "" {
		since, perr := time.Parse(time.RFC3339Nano, s)
		if perr != nil {
			writeError(w, http.StatusBadRequest, "since must be an RFC 3339 time")
			return
		}
		events, err = h.store.Events().ListSince(since)
	} else {
		limit := store.DefaultEventLimit
		if l := q.Get("limit"); l != "" {
			n, perr := strconv.Atoi(l)
			if perr != nil || n <= 0 {
				writeError(w, http.StatusBadRequest, "limit must be a positive integer")
				return
			}
			limit = min(n, maxEventLimit)
		}
		events, err = h.store.Events().List(limit)
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list events")
		return
	}

	response := listEventsResponse{Events: make([]eventResponse, 0, len(events))}
	for _, e := range events {
		response.Events = append(response.Events, toEventResponse(e))
	}
	writeJSON(w, http.StatusOK, response)
}

func (h *EventHandler) stats(w http.ResponseWriter, r *http.Request) {
	counts, err := h.store.Events().CountByGesture()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to count events")
		return
	}

	total := 0
	for _, n := range counts {
		total += n
	}
	writeJSON(w, http.StatusOK, statsResponse{Counts: counts, Total: total})
}

// purge handles DELETE /api/events. Without before every event is removed.
func (h *EventHandler) purge(w http.ResponseWriter, r *http.Request) {
	before := h.now().Add(time.Nanosecond)
	if b := r.URL.Query().Get("before"); b != "" {
		t, err := time.Parse(time.RFC3339Nano, b)
		if err != nil {
			writeError(w, http.StatusBadRequest, "before must be an RFC 3339 time")
			return
		}
		before = t
	}

	n, err := h.store.Events().DeleteBefore(before)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to delete events")
		return
	}
	writeJSON(w, http.StatusOK, purgeResponse{Deleted: n})
}
