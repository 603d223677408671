package mdec

import (
	"io"

	"github.com/retrocore/gopsx/internal/savestate"
)

const (
	saveTag     = "MDEC"
	saveVersion = 1
)

func writeU16FIFO(body *savestate.Writer, snapshot []uint16) {
	body.Value(uint32(len(snapshot)))
	if len(snapshot) > 0 {
		body.Value(snapshot)
	}
}

func readU16FIFO(body *savestate.Reader) []uint16 {
	var n uint32
	body.Value(&n)
	if n == 0 {
		return nil
	}
	buf := make([]uint16, n)
	body.Value(buf)
	return buf
}

func writeU32FIFO(body *savestate.Writer, snapshot []uint32) {
	body.Value(uint32(len(snapshot)))
	if len(snapshot) > 0 {
		body.Value(snapshot)
	}
}

func readU32FIFO(body *savestate.Reader) []uint32 {
	var n uint32
	body.Value(&n)
	if n == 0 {
		return nil
	}
	buf := make([]uint32, n)
	body.Value(buf)
	return buf
}

// SaveState writes the command FIFOs, quantization/scale tables and
// in-progress block decode state.
func (d *Decoder) SaveState(sw *savestate.Writer) {
	sw.Section(saveTag, saveVersion, func(w io.Writer) error {
		body := savestate.NewWriter(w)
		body.Value(d.remainingHalfWords)
		body.Value(d.enableDataOut)
		body.Value(d.enableDataIn)
		body.Value(d.color)
		body.Value(d.dataOutputBit15)
		body.Value(d.dataOutputSigned)
		body.Value(uint32(d.dataOutputDepth))
		body.Value(int32(d.st))

		writeU16FIFO(body, d.dataIn.Snapshot())
		writeU32FIFO(body, d.dataOut.Snapshot())

		body.Value(&d.luminanceTable)
		body.Value(&d.colorTable)
		body.Value(&d.scaleTable)

		body.Value(int32(d.currentK))
		body.Value(d.currentQ)

		body.Value(&d.blocks)
		body.Value(int32(d.currentBlock))
		body.Value(&d.dest)
		return body.Err()
	})
}

// LoadState restores state written by SaveState.
func (d *Decoder) LoadState(sr *savestate.Reader) {
	sr.Section(saveTag, saveVersion, func(r io.Reader) error {
		body := savestate.NewReader(r)
		var outputDepth32 uint32
		var st32, currentK32, currentBlock32 int32
		body.Value(&d.remainingHalfWords)
		body.Value(&d.enableDataOut)
		body.Value(&d.enableDataIn)
		body.Value(&d.color)
		body.Value(&d.dataOutputBit15)
		body.Value(&d.dataOutputSigned)
		body.Value(&outputDepth32)
		body.Value(&st32)

		d.dataIn.Restore(readU16FIFO(body))
		d.dataOut.Restore(readU32FIFO(body))

		body.Value(&d.luminanceTable)
		body.Value(&d.colorTable)
		body.Value(&d.scaleTable)

		body.Value(&currentK32)
		body.Value(&d.currentQ)

		body.Value(&d.blocks)
		body.Value(&currentBlock32)
		body.Value(&d.dest)

		d.dataOutputDepth = DataOutputDepth(outputDepth32)
		d.st = state(st32)
		d.currentK = int(currentK32)
		d.currentBlock = BlockIndex(currentBlock32)
		return body.Err()
	})
}
