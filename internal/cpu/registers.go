package cpu

// Registers models the 32 general-purpose registers plus the HI/LO
// multiplier/divider accumulator and the load-delay pipeline
// described in spec.md §3. R0 is hardwired to zero.
//
// A load delay slot holds (index, value) pairs: the pending load is
// the one that completes after the *next* instruction executes, and
// the applied load is the one visible to the instruction currently
// executing. Writing the same register twice in successive cycles
// drops the first write, matching the teacher's Register16/Register8
// "typed wrapper with explicit accessors" idiom generalized to a
// pipeline instead of a single cell.
type Registers struct {
	gpr [32]uint32
	hi  uint32
	lo  uint32

	// pending is the load that will land after the instruction about
	// to execute completes; applied is the load landing this step.
	pending delayedLoad
	applied delayedLoad
}

type delayedLoad struct {
	index uint8
	value uint32
	valid bool
}

// Get reads a GPR; R0 always reads zero.
func (r *Registers) Get(index uint8) uint32 {
	if index == 0 {
		return 0
	}
	return r.gpr[index]
}

// Set writes a GPR immediately (not through the load-delay pipeline).
// Writes to R0 are discarded. An immediate Set to a register also
// cancels any in-flight load to the same register, matching real
// hardware: a same-cycle ALU write wins over a stale pending load.
func (r *Registers) Set(index uint8, value uint32) {
	if index == 0 {
		return
	}
	r.gpr[index] = value
	if r.pending.valid && r.pending.index == index {
		r.pending.valid = false
	}
	if r.applied.valid && r.applied.index == index {
		r.applied.valid = false
	}
}

// Load queues a memory-load result to land after the next instruction
// executes. If another Load to the same register is already pending,
// the older one is dropped in favor of the new one (spec.md §3: a
// second write to the same register drops the first).
func (r *Registers) Load(index uint8, value uint32) {
	r.pending = delayedLoad{index: index, value: value, valid: true}
}

// Advance moves the load-delay pipeline forward one stage: applies
// the previously-pending load (if its target wasn't since overwritten)
// and promotes the newly-queued load to pending-for-next-step.
func (r *Registers) Advance() {
	if r.applied.valid {
		if r.applied.index != 0 {
			r.gpr[r.applied.index] = r.applied.value
		}
	}
	r.applied = r.pending
	r.pending = delayedLoad{}
}

// HI/LO accessors for MULT/MULTU/DIV/DIVU and MFHI/MFLO/MTHI/MTLO.
func (r *Registers) HI() uint32         { return r.hi }
func (r *Registers) LO() uint32         { return r.lo }
func (r *Registers) SetHI(v uint32)     { r.hi = v }
func (r *Registers) SetLO(v uint32)     { r.lo = v }
func (r *Registers) SetHILO(hi, lo uint32) {
	r.hi = hi
	r.lo = lo
}

// InFlightValue returns the most recent not-yet-committed load value
// targeting index, if any -- used by LWL/LWR/SWL/SWR to merge bytes
// against a register that is itself mid-flight through the load-delay
// pipeline (spec.md §4.2).
func (r *Registers) InFlightValue(index uint8) (uint32, bool) {
	if r.pending.valid && r.pending.index == index {
		return r.pending.value, true
	}
	if r.applied.valid && r.applied.index == index {
		return r.applied.value, true
	}
	return 0, false
}

// Reset zeroes every register and clears the load-delay pipeline.
func (r *Registers) Reset() {
	*r = Registers{}
}
