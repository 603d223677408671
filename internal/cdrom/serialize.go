package cdrom

import (
	"io"

	"github.com/retrocore/gopsx/internal/savestate"
)

const (
	saveTag     = "CDROM"
	saveVersion = 1
)

func writeByteFIFO(body *savestate.Writer, snapshot []byte) {
	body.Value(uint32(len(snapshot)))
	if len(snapshot) > 0 {
		body.Value(snapshot)
	}
}

func readByteFIFO(body *savestate.Reader) []byte {
	var n uint32
	body.Value(&n)
	if n == 0 {
		return nil
	}
	buf := make([]byte, n)
	body.Value(buf)
	return buf
}

// SaveState writes the FIFOs, sector buffers, mode/status registers
// and disc-position state. A command or interrupt still queued to
// fire via commandEvt/secondEvt/driveEvt is not captured (its timing
// lives on the shared scheduler, which is snapshotted separately by
// sched.Manager, but the identity of *which* command is in flight is
// not); resuming mid-command after a load replays from the next host
// command instead, the same simplification GPU.SaveState documents
// for an in-flight multi-word primitive.
func (d *Drive) SaveState(sw *savestate.Writer) {
	sw.Section(saveTag, saveVersion, func(w io.Writer) error {
		body := savestate.NewWriter(w)
		body.Value(d.index)
		writeByteFIFO(body, d.paramFifo.Snapshot())
		writeByteFIFO(body, d.responseFifo.Snapshot())
		writeByteFIFO(body, d.dataFifo.Snapshot())
		body.Value(&d.sectorBuffers)
		body.Value(int32(d.activeSectorBuf))

		body.Value(d.interruptEnable)
		body.Value(d.interruptFlags)

		body.Value(int32(d.state))
		body.Value(d.statusMotorOn)
		body.Value(d.statusSeek)
		body.Value(d.statusRead)
		body.Value(d.statusPlay)
		body.Value(d.statusError)

		body.Value(d.mode)
		body.Value(d.seekSector)
		body.Value(d.filterFile)
		body.Value(d.filterChannel)
		return body.Err()
	})
}

// LoadState restores state written by SaveState.
func (d *Drive) LoadState(sr *savestate.Reader) {
	sr.Section(saveTag, saveVersion, func(r io.Reader) error {
		body := savestate.NewReader(r)
		body.Value(&d.index)
		d.paramFifo.Restore(readByteFIFO(body))
		d.responseFifo.Restore(readByteFIFO(body))
		d.dataFifo.Restore(readByteFIFO(body))
		body.Value(&d.sectorBuffers)
		var activeBuf int32
		body.Value(&activeBuf)
		d.activeSectorBuf = int(activeBuf)

		body.Value(&d.interruptEnable)
		body.Value(&d.interruptFlags)

		var state32 int32
		body.Value(&state32)
		d.state = DriveState(state32)
		body.Value(&d.statusMotorOn)
		body.Value(&d.statusSeek)
		body.Value(&d.statusRead)
		body.Value(&d.statusPlay)
		body.Value(&d.statusError)

		body.Value(&d.mode)
		body.Value(&d.seekSector)
		body.Value(&d.filterFile)
		body.Value(&d.filterChannel)

		d.pendingCommand = nil
		d.pendingCommandArgs = nil
		d.queuedInterrupt = nil
		return body.Err()
	})
}
