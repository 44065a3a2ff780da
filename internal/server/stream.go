package server

import (
	"fmt"
	"net/http"
	"time"
)

// StreamInterval is the MJPEG frame period (~15 FPS).
const StreamInterval = 66 * time.Millisecond

// Snapshotter provides the latest annotated JPEG frame.
type Snapshotter interface {
	Snapshot() ([]byte, bool)
}

// StreamHandler serves the annotated preview as MJPEG.
type StreamHandler struct {
	source   Snapshotter
	interval time.Duration
}

// NewStreamHandler creates a new StreamHandler reading from source.
func NewStreamHandler(source Snapshotter) *StreamHandler {
	return &StreamHandler{source: source, interval: StreamInterval}
}

// ServeHTTP streams MJPEG frames until the client goes away. Frames are
// only written when the snapshot changed.
func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=frame")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	var last []byte
	for {
		if jpeg, ok := h.source.Snapshot(); ok && !sameFrame(jpeg, last) {
			if err := writePart(w, jpeg); err != nil {
				return
			}
			last = jpeg
		}

		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
		}
	}
}

func writePart(w http.ResponseWriter, jpeg []byte) error {
	if _, err := fmt.Fprintf(w, "--frame\r\nContent-Type: image/jpeg\r\nContent-Length: %d\r\n\r\n", len(jpeg)); err != nil {
		return err
	}
	if _, err := w.Write(jpeg); err != nil {
		return err
	}
	if _, err := fmt.Fprint(w, "\r\n"); err != nil {
		return err
	}
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
	return nil
}

// sameFrame reports whether a and b are the same snapshot buffer. The app
// allocates a new buffer per frame, so identity is enough.
func sameFrame(a, b []byte) bool {
	return len(a) > 0 && len(b) > 0 && &a[0] == &b[0]
}
