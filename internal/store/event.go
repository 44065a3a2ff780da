package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// DefaultEventLimit caps List when no limit is given.
const DefaultEventLimit = 100

// Event is one gesture notification in the log.
type Event struct {
	ID         string    `json:"id"`
	Gesture    string    `json:"gesture"`
	Source     string    `json:"source"`
	OccurredAt time.Time `json:"occurred_at"`
}

// EventRepository stores the gesture event log.
type EventRepository struct {
	db *sql.DB
}

// Events returns the event repository for this store.
func (s *Store) Events() *EventRepository {
	return &EventRepository{db: s.db}
}

// Create appends e to the log. An empty ID is filled with a new UUID and a
// zero OccurredAt with the current time.
func (r *EventRepository) Create(e *Event) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now()
	}

	_, err := r.db.Exec(
		`INSERT INTO events (id, gesture, source, occurred_at) VALUES (?, ?, ?, ?)`,
		e.ID, e.Gesture, e.Source, e.OccurredAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

// List returns up to limit events, newest first. A non-positive limit uses
// DefaultEventLimit.
func (r *EventRepository) List(limit int) ([]*Event, error) {
	if limit <= 0 {
		limit = DefaultEventLimit
	}
	return r.query(
		`SELECT id, gesture, source, occurred_at FROM events
		 ORDER BY occurred_at DESC LIMIT ?`,
		limit,
	)
}

// ListSince returns the events at or after t, oldest first.
func (r *EventRepository) ListSince(t time.Time) ([]*Event, error) {
	return r.query(
		`SELECT id, gesture, source, occurred_at FROM events
		 WHERE occurred_at >= ? ORDER BY occurred_at ASC`,
		t.UnixNano(),
	)
}

// CountByGesture returns the number of logged events per gesture.
func (r *EventRepository) CountByGesture() (map[string]int, error) {
	rows, err := r.db.Query(`SELECT gesture, COUNT(*) FROM events GROUP BY gesture`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var g string
		var n int
		if err := rows.Scan(&g, &n); err != nil {
			return nil, err
		}
		counts[g] = n
	}
	return counts, rows.Err()
}

// DeleteBefore removes events older than t and reports how many were removed.
func (r *EventRepository) DeleteBefore(t time.Time) (int64, error) {
	result, err := r.db.Exec(`DELETE FROM events WHERE occurred_at < ?`, t.UnixNano())
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (r *EventRepository) query(q string, args ...any) ([]*Event, error) {
	rows, err := r.db.Query(q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := []*Event{}
	for rows.Next() {
		e := &Event{}
		var ns int64
		if err := rows.Scan(&e.ID, &e.Gesture, &e.Source, &ns); err != nil {
			return nil, err
		}
		e.OccurredAt = time.Unix(0, ns)
		events = append(events, e)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return events, nil
}
