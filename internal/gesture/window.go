package gesture

import (
	"errors"
	"time"

	"gonum.org/v1/gonum/stat"
)

// ErrEmptyWindow is returned when averaging a window with no samples.
var ErrEmptyWindow = errors.New("empty window")

// Window is a bounded FIFO of samples. Once full, the oldest sample is
// dropped before a new one is appended, so Len never exceeds Cap.
type Window struct {
	values []float64
	size   int
}

// NewWindow creates a Window holding at most size samples.
// Sizes below 1 are treated as 1.
func NewWindow(size int) *Window {
	if size < 1 {
		size = 1
	}
	return &Window{
		values: make([]float64, 0, size),
		size:   size,
	}
}

// Push appends v, evicting the oldest sample when the window is full.
func (w *Window) Push(v float64) {
	if len(w.values) >= w.size {
		copy(w.values, w.values[1:])
		w.values = w.values[:w.size-1]
	}
	w.values = append(w.values, v)
}

// Mean returns the arithmetic mean of the samples.
func (w *Window) Mean() (float64, error) {
	if len(w.values) == 0 {
		return 0, ErrEmptyWindow
	}
	return stat.Mean(w.values, nil), nil
}

// Len returns the number of samples held.
func (w *Window) Len() int {
	return len(w.values)
}

// Cap returns the maximum number of samples held.
func (w *Window) Cap() int {
	return w.size
}

// Values returns a copy of the samples, oldest first.
func (w *Window) Values() []float64 {
	out := make([]float64, len(w.values))
	copy(out, w.values)
	return out
}

// Reset removes all samples.
func (w *Window) Reset() {
	w.values = w.values[:0]
}

// Throttle admits at most one timestamp per interval. The first timestamp
// offered is always admitted.
type Throttle struct {
	interval time.Duration
	last     time.Time
	admitted bool
}

// NewThrottle creates a Throttle with the given minimum interval.
func NewThrottle(interval time.Duration) *Throttle {
	return &Throttle{interval: interval}
}

// Due reports whether t would be admitted, without recording it.
func (t *Throttle) Due(ts time.Time) bool {
	return !t.admitted || ts.Sub(t.last) >= t.interval
}

// Allow records and admits ts if it is due.
func (t *Throttle) Allow(ts time.Time) bool {
	if !t.Due(ts) {
		return false
	}
	t.last = ts
	t.admitted = true
	return true
}

// Reset forgets the last admitted timestamp.
func (t *Throttle) Reset() {
	t.last = time.Time{}
	t.admitted = false
}
