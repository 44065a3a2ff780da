package api

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/ayusman/bhangra/internal/store"
)

func seedEvents(t *testing.T, s *store.Store, base time.Time) {
	t.Helper()
	events := []struct {
		gesture string
		source  string
		offset  time.Duration
	}{
		{"jumping", "vision", 0},
		{"crouching", "vision", time.Second},
		{"jumping", "voice", 2 * time.Second},
	}
	for _, e := range events {
		err := s.Events().Create(&store.Event{Gesture: e.gesture, Source: e.source, OccurredAt: base.Add(e.offset)})
		if err != nil {
			t.Fatalf("failed to create event: %v", err)
		}
	}
}

func TestEventHandler_List(t *testing.T) {
	s := newTestStore(t)
	base := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)
	seedEvents(t, s, base)
	handler := NewEventHandler(s)

	rec := doJSON(t, handler, http.MethodGet, "/api/events?limit=2", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}
	var resp listEventsResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp.Events) != 2 {
		t.Fatalf("events = %d, want 2", len(resp.Events))
	}
	if resp.Events[0].Source != "voice" || resp.Events[1].Gesture != "crouching" {
		t.Errorf("events = %+v, want newest first", resp.Events)
	}

	since := base.Add(500 * time.Millisecond).Format(time.RFC3339Nano)
	rec = doJSON(t, handler, http.MethodGet, "/api/events?since="+since, nil)
	resp = listEventsResponse{}
	json.NewDecoder(rec.Body).Decode(&resp)
	if len(resp.Events) != 2 || resp.Events[0].Gesture != "crouching" {
		t.Errorf("since events = %+v, want two oldest first", resp.Events)
	}

	for _, q := range []string{"limit=0", "limit=abc", "since=yesterday"} {
		rec = doJSON(t, handler, http.MethodGet, "/api/events?"+q, nil)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: expected status %d, got %d", q, http.StatusBadRequest, rec.Code)
		}
	}
}

func TestEventHandler_Stats(t *testing.T) {
	s := newTestStore(t)
	seedEvents(t, s, time.Now().Add(-time.Minute))
	handler := NewEventHandler(s)

	rec := doJSON(t, handler, http.MethodGet, "/api/events/stats", nil)
	var resp statsResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Total != 3 || resp.Counts["jumping"] != 2 || resp.Counts["crouching"] != 1 {
		t.Errorf("stats = %+v", resp)
	}
}

func TestEventHandler_Purge(t *testing.T) {
	s := newTestStore(t)
	base := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)
	seedEvents(t, s, base)
	handler := NewEventHandler(s)

	before := base.Add(1500 * time.Millisecond).Format(time.RFC3339Nano)
	rec := doJSON(t, handler, http.MethodDelete, "/api/events?before="+before, nil)
	var resp purgeResponse
	json.NewDecoder(rec.Body).Decode(&resp)
	if resp.Deleted != 2 {
		t.Errorf("deleted = %d, want 2", resp.Deleted)
	}

	rec = doJSON(t, handler, http.MethodDelete, "/api/events", nil)
	resp = purgeResponse{}
	json.NewDecoder(rec.Body).Decode(&resp)
	if resp.Deleted != 1 {
		t.Errorf("deleted = %d, want 1", resp.Deleted)
	}

	rec = doJSON(t, handler, http.MethodPost, "/api/events", nil)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected status %d, got %d", http.StatusMethodNotAllowed, rec.Code)
	}
	rec = doJSON(t, handler, http.MethodGet, "/api/events/other", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected status %d, got %d", http.StatusNotFound, rec.Code)
	}
}
