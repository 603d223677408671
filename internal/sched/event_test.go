package sched

import "testing"

func TestScheduleAndDispatch(t *testing.T) {
	m := NewManager()
	var fired Cycle = -1
	e := m.CreateEvent("test", func(c Cycle) { fired = c })
	e.Schedule(10)

	m.AddCycles(5)
	if m.ReadyForNextEvent() {
		t.Fatal("should not be ready yet")
	}

	m.AddCycles(5)
	if !m.ReadyForNextEvent() {
		t.Fatal("should be ready")
	}
	m.UpdateNextEvent()

	if fired != 10 {
		t.Fatalf("callback fired with %d pending cycles, want 10", fired)
	}
}

func TestInactiveEventAccumulatesNoCycles(t *testing.T) {
	m := NewManager()
	e := m.CreateEvent("inactive", func(Cycle) {})
	m.AddCycles(100)
	m.UpdateNextEvent()
	if e.PendingCycles() != 0 {
		t.Fatalf("inactive event accumulated %d cycles, want 0", e.PendingCycles())
	}
}

func TestCancel(t *testing.T) {
	m := NewManager()
	calls := 0
	e := m.CreateEvent("cancelled", func(Cycle) { calls++ })
	e.Schedule(10)
	e.Cancel()
	m.AddCycles(100)
	if m.ReadyForNextEvent() {
		t.Fatal("no active event, should never be ready")
	}
	if calls != 0 {
		t.Fatalf("cancelled event fired %d times", calls)
	}
}

func TestRescanPicksSoonest(t *testing.T) {
	m := NewManager()
	var order []string
	a := m.CreateEvent("a", func(Cycle) { order = append(order, "a") })
	b := m.CreateEvent("b", func(Cycle) { order = append(order, "b") })
	a.Schedule(20)
	b.Schedule(5)

	m.AddCycles(5)
	for m.ReadyForNextEvent() {
		m.UpdateNextEvent()
	}
	if len(order) != 1 || order[0] != "b" {
		t.Fatalf("expected b to fire first, got %v", order)
	}
}

func TestUpdateEarly(t *testing.T) {
	m := NewManager()
	var got Cycle
	e := m.CreateEvent("early", func(c Cycle) { got = c })
	e.Schedule(1000)
	m.AddCycles(3)
	// distribute cycles to events without dispatch, as UpdateNextEvent would
	m.UpdateNextEvent()
	if m.ReadyForNextEvent() {
		t.Fatal("not due yet")
	}
	e.UpdateEarly()
	if got != 3 {
		t.Fatalf("UpdateEarly saw %d pending cycles, want 3", got)
	}
}
