// Package sched implements the cycle-driven event scheduler described
// in spec.md §4.1. It is grounded on the original implementation's
// EventManager/Event pair (a handle-based API with Schedule/Cancel/
// UpdateEarly/GetRemainingCycles) rather than the teacher's
// channel-backed EventScheduler: the spec's invariants -- an inactive
// event accumulates no cycles, and the manager re-scans for the new
// soonest event after every dispatch -- need the mutable-handle model.
// The package keeps the teacher's texture: small structs, explicit
// cycle counters, slog debug logging on scheduling transitions.
package sched

import (
	"log/slog"
	"math"
)

// Cycle is a signed tick count at the CPU clock.
type Cycle int64

// InfiniteCycles is the sentinel deadline for an event that is
// currently inactive.
const InfiniteCycles Cycle = math.MaxInt64

// UpdateFunc is invoked when an event fires. It receives the number of
// cycles accumulated locally since the event's last dispatch.
type UpdateFunc func(cycles Cycle)

// Event is a named, deferrable action owned by the subsystem that
// created it. The Manager holds only a non-owning reference for
// scheduling.
type Event struct {
	name    string
	manager *Manager
	onUpdate UpdateFunc

	cyclesUntilEvent Cycle
	pendingCycles    Cycle
	active           bool
}

// Name returns the event's diagnostic name.
func (e *Event) Name() string { return e.name }

// IsActive reports whether the event currently accumulates cycles.
func (e *Event) IsActive() bool { return e.active }

// PendingCycles returns the cycles accumulated since the last
// dispatch.
func (e *Event) PendingCycles() Cycle { return e.pendingCycles }

// RemainingCycles returns the deadline minus accumulated cycles; may
// be negative when the event is overdue.
func (e *Event) RemainingCycles() Cycle {
	return e.cyclesUntilEvent - e.pendingCycles
}

// addPendingCycles accumulates cycles without invoking the callback.
// Only active events accumulate.
func (e *Event) addPendingCycles(cycles Cycle) {
	if e.active {
		e.pendingCycles += cycles
	}
}

// Schedule arms the event to fire cyclesFromNow cycles in the future,
// resetting its pending counter.
func (e *Event) Schedule(cyclesFromNow Cycle) {
	e.cyclesUntilEvent = cyclesFromNow
	e.pendingCycles = 0
	e.active = true
	e.manager.rescan()
}

// Cancel disarms the event and clears its pending cycles.
func (e *Event) Cancel() {
	e.active = false
	e.pendingCycles = 0
	e.manager.rescan()
}

// UpdateEarly forces immediate dispatch with the currently accumulated
// pending cycles, used when a register read/write would otherwise race
// the scheduled event.
func (e *Event) UpdateEarly() {
	pending := e.pendingCycles
	e.pendingCycles = 0
	if e.onUpdate != nil {
		e.onUpdate(pending)
	}
	e.manager.rescan()
}

// dispatch is invoked by the Manager when the event is the next due
// one; it clears its own pending counter before calling the callback,
// per spec.md: "the callback resets its own pending_cycles".
func (e *Event) dispatch() {
	pending := e.pendingCycles
	e.pendingCycles = 0
	if e.onUpdate != nil {
		e.onUpdate(pending)
	}
}

// Manager tracks pending cycles and the next scheduled event across
// all peripherals.
type Manager struct {
	events             []*Event
	nextEvent          *Event
	cyclesUntilNextEvent Cycle
	pendingCycles      Cycle
	log                *slog.Logger
}

// NewManager creates an empty event manager.
func NewManager() *Manager {
	return &Manager{
		cyclesUntilNextEvent: InfiniteCycles,
		log:                  slog.With("component", "sched"),
	}
}

// CreateEvent registers a new event with the manager and returns its
// handle. The event starts inactive.
func (m *Manager) CreateEvent(name string, onUpdate UpdateFunc) *Event {
	e := &Event{name: name, manager: m, onUpdate: onUpdate}
	m.events = append(m.events, e)
	m.log.Debug("event created", "name", name)
	return e
}

// AddCycles adds n (n > 0) to the accumulated pending counter. It does
// not itself dispatch; the caller must poll ReadyForNextEvent and call
// UpdateNextEvent.
func (m *Manager) AddCycles(n Cycle) {
	if n <= 0 {
		panic("sched: AddCycles requires n > 0")
	}
	m.pendingCycles += n
}

// ReadyForNextEvent reports whether the accumulated pending cycles
// have reached the cached deadline for the next due event.
func (m *Manager) ReadyForNextEvent() bool {
	return m.pendingCycles >= m.cyclesUntilNextEvent
}

// PendingCycles returns the manager-level accumulated cycle count not
// yet distributed to events.
func (m *Manager) PendingCycles() Cycle { return m.pendingCycles }

// UpdateNextEvent distributes the accumulated pending cycles to every
// active event, dispatches the next-due one, and re-scans for the new
// soonest deadline.
func (m *Manager) UpdateNextEvent() {
	cycles := m.pendingCycles
	m.pendingCycles = 0

	for _, e := range m.events {
		e.addPendingCycles(cycles)
	}

	if m.nextEvent != nil && m.nextEvent.active && m.nextEvent.RemainingCycles() <= 0 {
		m.nextEvent.dispatch()
	}

	m.rescan()
}

// rescan finds the soonest-due active event and caches its deadline.
func (m *Manager) rescan() {
	var soonest *Event
	best := InfiniteCycles
	for _, e := range m.events {
		if !e.active {
			continue
		}
		remaining := e.RemainingCycles()
		if soonest == nil || remaining < best {
			soonest = e
			best = remaining
		}
	}
	m.nextEvent = soonest
	if soonest == nil {
		m.cyclesUntilNextEvent = InfiniteCycles
	} else {
		m.cyclesUntilNextEvent = soonest.RemainingCycles()
	}
}

// Reset clears the accumulated cycle counters and deactivates every
// registered event, without forgetting the handles themselves --
// peripherals keep their *Event pointers across a reset and
// re-Schedule the ones they need during their own Reset(). Per
// spec.md §3 ownership notes, the EventManager must be reset before
// peripherals so newly-scheduled reset events land on a clean clock.
func (m *Manager) Reset() {
	for _, e := range m.events {
		e.active = false
		e.pendingCycles = 0
	}
	m.nextEvent = nil
	m.pendingCycles = 0
	m.cyclesUntilNextEvent = InfiniteCycles
}
