package domain

import "time"

// entity is embedded by every domain entity. It carries timestamps and the
// transient outbox of events recorded by mutations. Events are a side
// channel for pub/sub, not a source of truth; state is field-based.
type entity struct {
	CreatedAt time.Time
	UpdatedAt time.Time

	events []Event
}

func newEntity(now time.Time) entity {
	return entity{CreatedAt: now, UpdatedAt: now}
}

func (e *entity) record(ev Event) {
	e.events = append(e.events, ev)
}

func (e *entity) touch(now time.Time) {
	e.UpdatedAt = now
}

// drainEvents returns the recorded events and clears the list. A second
// call without intervening mutation returns nil.
func (e *entity) drainEvents() []Event {
	evs := e.events
	e.events = nil
	return evs
}

// PendingEvents exposes the not-yet-harvested events for inspection
// without draining them.
func (e *entity) PendingEvents() []Event {
	return e.events
}
