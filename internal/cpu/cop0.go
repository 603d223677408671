package cpu

import "github.com/retrocore/gopsx/internal/bitfield"

// ExceptionCode enumerates the 5-bit COP0 CAUSE.ExcCode values this
// core raises. Grounded on original_source Cop0.h / the MIPS COP0
// reference file in the retrieval pack.
type ExceptionCode uint32

const (
	ExcInterrupt          ExceptionCode = 0
	ExcAddressErrorLoad   ExceptionCode = 4
	ExcAddressErrorStore  ExceptionCode = 5
	ExcBusErrorInstr      ExceptionCode = 6
	ExcBusErrorData       ExceptionCode = 7
	ExcSyscall            ExceptionCode = 8
	ExcBreakpoint         ExceptionCode = 9
	ExcReservedInstr      ExceptionCode = 10
	ExcCoprocessorUnusable ExceptionCode = 11
	ExcOverflow           ExceptionCode = 12
)

// Cop0 models the system-control coprocessor registers used by this
// spec: SR (status), CAUSE, EPC, BadVAddr, plus the breakpoint
// registers as inert storage (software never depends on their
// behavior for correctness here).
type Cop0 struct {
	sr       bitfield.Word32 // register 12
	cause    bitfield.Word32 // register 13
	epc      uint32          // register 14
	badVAddr uint32          // register 8

	bpc, bda, bdam, bpcm, bdcm uint32 // registers 3,5,9,11,7 (breakpoints)
	jumpDest                   uint32 // register 6 (JUMPDEST, read-only debug aid)
	prid                       uint32 // register 15
}

// NewCop0 constructs COP0 with PRId set to the R3000A's identifier.
func NewCop0() *Cop0 {
	return &Cop0{prid: 0x00000002}
}

// Reset re-initializes COP0 to its post-reset state: BEV set (boot
// exception vectors), interrupts and kernel/user stack disabled.
func (c *Cop0) Reset() {
	*c = Cop0{prid: 0x00000002}
	c.sr = c.sr.SetBit(22, true) // BEV
}

// Status bit layout (subset actually consumed by this spec).
const (
	srBitIEc       = 0 // current interrupt enable
	srBitKUc       = 1 // current kernel(0)/user(1) mode
	srShiftIEStack = 0 // 6-bit IEc/KUc/IEp/KUp/IEo/KUo push-down stack
	srStackWidth   = 6
	srShiftIM      = 8 // interrupt mask, 8 bits
	srBitIsC       = 16
	srBitBEV       = 22
)

// SR returns the raw status register.
func (c *Cop0) SR() uint32 { return uint32(c.sr) }

// SetSR writes the raw status register (MTC0 $12).
func (c *Cop0) SetSR(v uint32) { c.sr = bitfield.Word32(v) }

// InterruptsEnabled reports the current global interrupt-enable bit.
func (c *Cop0) InterruptsEnabled() bool { return c.sr.Bit(srBitIEc) }

// InterruptMask returns the 8-bit per-source software interrupt mask
// (SR bits 8-15), ANDed against CAUSE's IP pending bits by
// ShouldTriggerInterrupt to decide whether to take an interrupt.
func (c *Cop0) InterruptMask() uint32 { return c.sr.Field(srShiftIM, 8) }

// ShouldTriggerInterrupt reports whether the CPU should take an
// interrupt this step: IEc set and at least one CAUSE.IP bit has its
// matching SR.IM bit set. Grounded on original_source Cop0.h's
// ShouldTriggerInterrupt.
func (c *Cop0) ShouldTriggerInterrupt() bool {
	return c.InterruptsEnabled() && c.InterruptMask()&c.cause.Field(srShiftIM, 8) != 0
}

// IsolateCache reports SR.IsC: when set, stores target the
// instruction cache instead of memory (used by BIOS cache-init code).
func (c *Cop0) IsolateCache() bool { return c.sr.Bit(srBitIsC) }

// BEV reports the boot exception vector selector.
func (c *Cop0) BEV() bool { return c.sr.Bit(srBitBEV) }

// Cause returns the raw CAUSE register.
func (c *Cop0) Cause() uint32 { return uint32(c.cause) }

// SetCause allows the CPU to write the two software-interrupt-pending
// bits (the only writable CAUSE bits on real hardware).
func (c *Cop0) SetCause(v uint32) {
	c.cause = bitfield.Word32(v).Masked(c.cause, 0x300)
}

// EPC / BadVAddr accessors.
func (c *Cop0) EPC() uint32          { return c.epc }
func (c *Cop0) SetEPC(v uint32)      { c.epc = v }
func (c *Cop0) BadVAddr() uint32     { return c.badVAddr }
func (c *Cop0) SetBadVAddr(v uint32) { c.badVAddr = v }

// SetHardwareInterruptPending mirrors InterruptControl.Pending() into
// CAUSE.IP2 (bit 10), the single external interrupt line wired to the
// CPU (spec.md §4.2 step 1).
func (c *Cop0) SetHardwareInterruptPending(pending bool) {
	c.cause = c.cause.SetBit(10, pending)
}

// EnterException pushes the 3-entry (IEc,KUc)x3 mode stack, sets
// CAUSE.ExcCode/CopError, records EPC (current_pc-4 with the
// branch-delay bit set if inBranchDelay, else current_pc), and
// returns the exception vector to jump to.
func (c *Cop0) EnterException(code ExceptionCode, coproc uint32, currentPC uint32, inBranchDelay bool) uint32 {
	stack := c.sr.Field(srShiftIEStack, srStackWidth)
	stack = (stack << 2) & 0x3F
	c.sr = c.sr.WithField(srShiftIEStack, srStackWidth, stack)

	c.cause = c.cause.WithField(2, 5, uint32(code))
	c.cause = c.cause.WithField(28, 2, coproc)
	c.cause = c.cause.SetBit(31, inBranchDelay)

	if inBranchDelay {
		c.epc = currentPC - 4
	} else {
		c.epc = currentPC
	}

	if c.BEV() {
		return 0xBFC00180
	}
	return 0x80000080
}

// ExceptionReturn (RFE) pops the mode stack, restoring the previous
// interrupt-enable/kernel-mode pair.
func (c *Cop0) ExceptionReturn() {
	stack := c.sr.Field(srShiftIEStack, srStackWidth)
	stack = (stack & 0x30) | (stack >> 2)
	c.sr = c.sr.WithField(srShiftIEStack, srStackWidth, stack)
}

// ReadRegister / WriteRegister implement MFC0/MTC0 for the registers
// this spec models; unmodeled registers read as zero and ignore
// writes (breakpoint registers are inert storage).
func (c *Cop0) ReadRegister(n uint32) uint32 {
	switch n {
	case 3:
		return c.bpc
	case 5:
		return c.bda
	case 6:
		return c.jumpDest
	case 7:
		return c.bdcm
	case 8:
		return c.badVAddr
	case 9:
		return c.bdam
	case 11:
		return c.bpcm
	case 12:
		return uint32(c.sr)
	case 13:
		return uint32(c.cause)
	case 14:
		return c.epc
	case 15:
		return c.prid
	default:
		return 0
	}
}

func (c *Cop0) WriteRegister(n uint32, v uint32) {
	switch n {
	case 3:
		c.bpc = v
	case 5:
		c.bda = v
	case 7:
		c.bdcm = v
	case 9:
		c.bdam = v
	case 11:
		c.bpcm = v
	case 12:
		c.sr = bitfield.Word32(v)
	case 13:
		c.SetCause(v)
	case 14:
		c.epc = v
	}
}
