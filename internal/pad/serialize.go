package pad

import (
	"io"

	"github.com/retrocore/gopsx/internal/savestate"
)

const (
	saveTag     = "PAD"
	saveVersion = 1
)

// SaveState writes the bus-level protocol state (registers, FIFO
// bytes, handshake phase). In-flight transfer/ack timing lives on the
// shared scheduler and is captured by sched.Manager's own SaveState;
// attached Device handles are wired by the top-level Machine and are
// not part of the snapshot.
func (p *ControllerPorts) SaveState(sw *savestate.Writer) {
	sw.Section(saveTag, saveVersion, func(w io.Writer) error {
		body := savestate.NewWriter(w)
		body.Value(p.mode)
		body.Value(p.control)
		body.Value(p.baud)
		body.Value(int32(p.st))
		body.Value(p.txBuffer)
		body.Value(p.txFull)
		body.Value(p.rxBuffer)
		body.Value(p.rxFull)
		body.Value(p.ackAsserted)
		body.Value(p.interruptRequest)
		return body.Err()
	})
}

// LoadState restores state written by SaveState.
func (p *ControllerPorts) LoadState(sr *savestate.Reader) {
	sr.Section(saveTag, saveVersion, func(r io.Reader) error {
		body := savestate.NewReader(r)
		var st32 int32
		body.Value(&p.mode)
		body.Value(&p.control)
		body.Value(&p.baud)
		body.Value(&st32)
		body.Value(&p.txBuffer)
		body.Value(&p.txFull)
		body.Value(&p.rxBuffer)
		body.Value(&p.rxFull)
		body.Value(&p.ackAsserted)
		body.Value(&p.interruptRequest)
		p.st = state(st32)
		return body.Err()
	})
}
