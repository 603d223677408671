package cpu

import (
	"io"

	"github.com/retrocore/gopsx/internal/bitfield"
	"github.com/retrocore/gopsx/internal/savestate"
)

const (
	saveTag     = "CPU"
	saveVersion = 1
)

// SaveState writes the interpreter's architectural state: general
// purpose registers, HI/LO, the load-delay pipeline, COP0, and the PC
// pipeline (currentPC/pc/nextPC plus the two branch-delay flags).
func (c *CPU) SaveState(sw *savestate.Writer) {
	sw.Section(saveTag, saveVersion, func(w io.Writer) error {
		body := savestate.NewWriter(w)
		body.Value(&c.Regs.gpr)
		body.Value(c.Regs.hi)
		body.Value(c.Regs.lo)
		body.Value(c.Regs.pending.index)
		body.Value(c.Regs.pending.value)
		body.Value(c.Regs.pending.valid)
		body.Value(c.Regs.applied.index)
		body.Value(c.Regs.applied.value)
		body.Value(c.Regs.applied.valid)

		body.Value(uint32(c.Cop0.sr))
		body.Value(uint32(c.Cop0.cause))
		body.Value(c.Cop0.epc)
		body.Value(c.Cop0.badVAddr)
		body.Value(c.Cop0.prid)

		body.Value(c.currentPC)
		body.Value(c.pc)
		body.Value(c.nextPC)
		body.Value(c.inBranchDelay)
		body.Value(c.inBranch)
		return body.Err()
	})
}

// LoadState restores state written by SaveState.
func (c *CPU) LoadState(sr *savestate.Reader) {
	sr.Section(saveTag, saveVersion, func(r io.Reader) error {
		body := savestate.NewReader(r)
		body.Value(&c.Regs.gpr)
		body.Value(&c.Regs.hi)
		body.Value(&c.Regs.lo)
		body.Value(&c.Regs.pending.index)
		body.Value(&c.Regs.pending.value)
		body.Value(&c.Regs.pending.valid)
		body.Value(&c.Regs.applied.index)
		body.Value(&c.Regs.applied.value)
		body.Value(&c.Regs.applied.valid)

		var sr32, cause32 uint32
		body.Value(&sr32)
		body.Value(&cause32)
		c.Cop0.sr = bitfield.Word32(sr32)
		c.Cop0.cause = bitfield.Word32(cause32)
		body.Value(&c.Cop0.epc)
		body.Value(&c.Cop0.badVAddr)
		body.Value(&c.Cop0.prid)

		body.Value(&c.currentPC)
		body.Value(&c.pc)
		body.Value(&c.nextPC)
		body.Value(&c.inBranchDelay)
		body.Value(&c.inBranch)
		return body.Err()
	})
}
