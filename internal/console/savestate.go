package console

import (
	"io"

	"github.com/pkg/errors"

	"github.com/retrocore/gopsx/internal/savestate"
)

const (
	machineSaveTag     = "PSXCORE"
	machineSaveVersion = 1
)

// SaveState serializes the entire machine to stream, per spec.md §9's
// "every peripheral exposes serialize(stream)" rule: one outer tagged
// section wrapping one inner tagged section per participating
// component (CPU, COP0, GTE, DMA, GPU, CDROM, SPU, MDEC, Timers,
// ControllerPorts, InterruptControl, the memory banks, and the event
// manager). Memory cards are not included: they persist to their own
// files independently of a machine snapshot.
func (m *Machine) SaveState(stream SaveStateStream) error {
	outer := savestate.NewWriter(stream)
	outer.Section(machineSaveTag, machineSaveVersion, func(w io.Writer) error {
		inner := savestate.NewWriter(w)
		m.Bus.SaveState(inner)
		m.CPU.SaveState(inner)
		m.GTE.SaveState(inner)
		m.IRQ.SaveState(inner)
		m.Sched.SaveState(inner)
		m.DMA.SaveState(inner)
		m.GPU.SaveState(inner)
		m.CDROM.SaveState(inner)
		m.SPU.SaveState(inner)
		m.MDEC.SaveState(inner)
		m.Timers.SaveState(inner)
		m.Pad.SaveState(inner)
		return inner.Err()
	})
	if outer.Err() != nil {
		return errors.Wrap(outer.Err(), "console: writing save state")
	}
	return nil
}

// LoadState restores a snapshot written by SaveState. Per spec.md
// §9's user-visible behaviour note, a failed load resets the machine
// and leaves it paused rather than running with partially-restored
// state.
func (m *Machine) LoadState(stream SaveStateStream) error {
	outer := savestate.NewReader(stream)
	outer.Section(machineSaveTag, machineSaveVersion, func(r io.Reader) error {
		inner := savestate.NewReader(r)
		m.Bus.LoadState(inner)
		m.CPU.LoadState(inner)
		m.GTE.LoadState(inner)
		m.IRQ.LoadState(inner)
		m.Sched.LoadState(inner)
		m.DMA.LoadState(inner)
		m.GPU.LoadState(inner)
		m.CDROM.LoadState(inner)
		m.SPU.LoadState(inner)
		m.MDEC.LoadState(inner)
		m.Timers.LoadState(inner)
		m.Pad.LoadState(inner)
		return inner.Err()
	})
	if outer.Err() != nil {
		m.Reset()
		m.paused = true
		return errors.Wrap(outer.Err(), "console: reading save state")
	}
	return nil
}
