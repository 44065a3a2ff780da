package app

import (
	"github.com/ayusman/bhangra/internal/gesture"
	"github.com/ayusman/bhangra/internal/logger"
	"github.com/ayusman/bhangra/internal/store"
)

// Sink receives arbitrated gesture notifications. Notify is called from the
// producing loop and must not block for long.
type Sink interface {
	Notify(n gesture.Notification)
}

// StatusListener is implemented by sinks that also want every state or
// toggle change.
type StatusListener interface {
	StatusChanged(s Status)
}

// SinkFunc adapts a function to a Sink.
type SinkFunc func(n gesture.Notification)

// Notify calls f(n).
func (f SinkFunc) Notify(n gesture.Notification) { f(n) }

func (a *App) currentSinks() []Sink {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return append([]Sink(nil), a.sinks...)
}

func (a *App) dispatch(n gesture.Notification) {
	for _, s := range a.currentSinks() {
		s.Notify(n)
	}
}

func (a *App) statusChanged() {
	var status *Status
	for _, s := range a.currentSinks() {
		l, ok := s.(StatusListener)
		if !ok {
			continue
		}
		if status == nil {
			st := a.Status()
			status = &st
		}
		l.StatusChanged(*status)
	}
}

// EventCreator appends to the gesture event log.
type EventCreator interface {
	Create(e *store.Event) error
}

// EventLog is a Sink that records every notification.
type EventLog struct {
	events EventCreator
}

// NewEventLog creates an EventLog sink.
func NewEventLog(events EventCreator) *EventLog {
	return &EventLog{events: events}
}

// Notify records n.
func (l *EventLog) Notify(n gesture.Notification) {
	err := l.events.Create(&store.Event{
		Gesture:    n.Gesture.String(),
		Source:     n.Source.String(),
		OccurredAt: n.Timestamp,
	})
	if err != nil {
		logger.Errorf("record %s event: %v", n.Gesture, err)
	}
}
