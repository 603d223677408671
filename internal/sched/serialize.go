package sched

import (
	"io"

	"github.com/retrocore/gopsx/internal/savestate"
)

const (
	saveTag      = "SCHED"
	saveVersion  = 1
	eventNameLen = 24
)

// SaveState writes the manager-level pending counter and every
// registered event's armed state, matched back up by name on load
// since peripherals create their events once at construction and keep
// the *Event handles across a load.
func (m *Manager) SaveState(sw *savestate.Writer) {
	sw.Section(saveTag, saveVersion, func(w io.Writer) error {
		body := savestate.NewWriter(w)
		body.Value(m.pendingCycles)
		body.Value(uint32(len(m.events)))
		for _, e := range m.events {
			var name [eventNameLen]byte
			copy(name[:], e.name)
			body.Value(&name)
			body.Value(e.active)
			body.Value(e.cyclesUntilEvent)
			body.Value(e.pendingCycles)
		}
		return body.Err()
	})
}

// LoadState restores state written by SaveState. Events are matched by
// name; an event present in the stream but no longer registered (or
// vice versa) is left untouched.
func (m *Manager) LoadState(sr *savestate.Reader) {
	sr.Section(saveTag, saveVersion, func(r io.Reader) error {
		body := savestate.NewReader(r)
		body.Value(&m.pendingCycles)
		var count uint32
		body.Value(&count)
		byName := make(map[string]*Event, len(m.events))
		for _, e := range m.events {
			byName[e.name] = e
		}
		for i := uint32(0); i < count; i++ {
			var name [eventNameLen]byte
			var active bool
			var cyclesUntilEvent, pendingCycles Cycle
			body.Value(&name)
			body.Value(&active)
			body.Value(&cyclesUntilEvent)
			body.Value(&pendingCycles)
			if e, ok := byName[trimEventName(name[:])]; ok {
				e.active = active
				e.cyclesUntilEvent = cyclesUntilEvent
				e.pendingCycles = pendingCycles
			}
		}
		m.rescan()
		return body.Err()
	})
}

func trimEventName(buf []byte) string {
	i := 0
	for i < len(buf) && buf[i] != 0 {
		i++
	}
	return string(buf[:i])
}
