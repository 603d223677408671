// Package cpu implements the MIPS R3000A interpreter described in
// spec.md §4.2: delay-slot branches, load-delay register writes, COP0
// exceptions. It follows the teacher's cpu package shape (typed
// register wrappers, opcode-table dispatch, one function per opcode)
// generalized from the Z80 ISA to MIPS I.
package cpu

import (
	"fmt"
	"log/slog"

	"github.com/retrocore/gopsx/internal/irq"
	"github.com/retrocore/gopsx/internal/memmap"
	"github.com/retrocore/gopsx/internal/sched"
)

// Coprocessor2 is the narrow interface the CPU needs from the GTE to
// execute COP2 instructions and to apply the "stall on successive
// access until command completes" rule from spec.md §4.2.
type Coprocessor2 interface {
	Execute(command uint32)
	ReadData(reg uint32) uint32
	WriteData(reg uint32, value uint32)
	ReadControl(reg uint32) uint32
	WriteControl(reg uint32, value uint32)
	Busy() bool
}

// ConsolePrintf is invoked when the BIOS kernel's TTY character-output
// function is intercepted at the 0xA0/0xB0/0xC0 call vectors
// (spec.md §4.2 step 4). The host wires this to its log/console.
type ConsolePrintf func(ch byte)

const (
	vectorKernelA = 0xA0
	vectorKernelB = 0xB0
	vectorKernelC = 0xC0
)

// CPU is the sequential MIPS I interpreter.
type CPU struct {
	Regs *Registers
	Cop0 *Cop0
	GTE  Coprocessor2

	bus   *memmap.Bus
	irqc  *irq.Control
	sched *sched.Manager

	currentPC uint32
	pc        uint32
	nextPC    uint32

	inBranchDelay bool // true while executing the instruction after a taken branch/jump
	inBranch      bool // set by a branch/jump this step, becomes inBranchDelay next step

	onKernelCall ConsolePrintf

	log *slog.Logger
}

// New constructs a CPU wired to the given bus, interrupt controller
// and event manager. GTE may be set after construction via the GTE
// field once the coprocessor exists (they're constructed together by
// the top-level Machine).
func New(bus *memmap.Bus, irqc *irq.Control, scheduler *sched.Manager) *CPU {
	c := &CPU{
		Regs:  &Registers{},
		Cop0:  NewCop0(),
		bus:   bus,
		irqc:  irqc,
		sched: scheduler,
		log:   slog.With("component", "cpu"),
	}
	c.Reset()
	return c
}

// SetKernelCallHook installs the BIOS TTY-character intercept callback.
func (c *CPU) SetKernelCallHook(fn ConsolePrintf) { c.onKernelCall = fn }

// Reset re-initializes the CPU to the BIOS reset vector.
func (c *CPU) Reset() {
	c.Regs.Reset()
	c.Cop0.Reset()
	c.pc = 0xBFC00000
	c.nextPC = c.pc + 4
	c.currentPC = c.pc
	c.inBranch = false
	c.inBranchDelay = false
}

// PC returns the program counter of the instruction about to execute.
func (c *CPU) PC() uint32 { return c.pc }

// SetPC overrides the program counter (used by the PS-X EXE hook).
func (c *CPU) SetPC(v uint32) {
	c.pc = v
	c.nextPC = v + 4
}

// Step executes exactly one instruction, per the algorithm in
// spec.md §4.2.
func (c *CPU) Step() {
	// 1. Check for a pending interrupt, deferring only across a
	// pending GTE opcode (top 7 bits == 0b0100101, i.e. COP2 imm25
	// instructions), per spec.md.
	if c.irqc.Pending() {
		c.Cop0.SetHardwareInterruptPending(true)
		if c.Cop0.ShouldTriggerInterrupt() && !c.nextInstructionIsGTE() {
			c.raiseException(ExcInterrupt, 0)
			c.finishStep()
			return
		}
	} else {
		c.Cop0.SetHardwareInterruptPending(false)
	}

	// 2.
	c.currentPC = c.pc
	c.pc = c.nextPC
	c.nextPC += 4

	if c.currentPC%4 != 0 {
		c.Cop0.SetBadVAddr(c.currentPC)
		c.raiseException(ExcAddressErrorLoad, 0)
		c.finishStep()
		return
	}

	// 3.
	c.sched.AddCycles(1)

	// 4.
	if c.onKernelCall != nil {
		switch c.currentPC {
		case vectorKernelA, vectorKernelB, vectorKernelC:
			c.interceptKernelCall()
		}
	}

	// 5.
	word := c.bus.FetchInstruction(c.currentPC)

	// 6.
	c.inBranchDelay = c.inBranch
	c.inBranch = false
	c.execute(word)

	c.finishStep()
}

func (c *CPU) finishStep() {
	// 7. Advance the load-delay pipeline one stage.
	c.Regs.Advance()
}

// nextInstructionIsGTE peeks the word at pc (not currentPC) to decide
// whether an interrupt should be deferred per spec.md step 1.
func (c *CPU) nextInstructionIsGTE() bool {
	word := c.bus.FetchInstruction(c.pc)
	return word>>25 == 0b0100101
}

// interceptKernelCall emits a console character if the BIOS function
// being called is one of the TTY putchar functions: function number
// in $t1 (r9), character in $a0 (r4) for putchar-style calls.
func (c *CPU) interceptKernelCall() {
	fn := c.Regs.Get(9)
	isPutchar := (c.currentPC == vectorKernelA && (fn == 0x3C || fn == 0x3E)) ||
		(c.currentPC == vectorKernelB && fn == 0x3D) ||
		(c.currentPC == vectorKernelC && false)
	if isPutchar {
		c.onKernelCall(byte(c.Regs.Get(4)))
	}
}

// raiseException implements §4.2 "Exceptions": record cause, compute
// EPC from current_pc (with the delay-slot bit), flush the pipeline by
// jumping to the vector.
func (c *CPU) raiseException(code ExceptionCode, coproc uint32) {
	vector := c.Cop0.EnterException(code, coproc, c.currentPC, c.inBranchDelay)
	c.pc = vector
	c.nextPC = vector + 4
	c.inBranch = false
	c.inBranchDelay = false
}

// AddressErrorLoad / AddressErrorStore raise alignment faults; called
// by load/store instructions on misaligned accesses.
func (c *CPU) addressErrorLoad(addr uint32) {
	c.Cop0.SetBadVAddr(addr)
	c.raiseException(ExcAddressErrorLoad, 0)
}

func (c *CPU) addressErrorStore(addr uint32) {
	c.Cop0.SetBadVAddr(addr)
	c.raiseException(ExcAddressErrorStore, 0)
}

// coprocessorUnusable raises CoprocessorUnusable for coproc n.
func (c *CPU) coprocessorUnusable(n uint32) {
	c.raiseException(ExcCoprocessorUnusable, n)
}

// cop0Enabled reports whether COP0 may be accessed: always true in
// kernel mode, gated by SR.CU0 otherwise.
func (c *CPU) cop0Enabled() bool {
	sr := c.Cop0.SR()
	inUserMode := sr&0x2 != 0
	cu0 := sr&(1<<28) != 0
	return !inUserMode || cu0
}

func (c *CPU) cop2Enabled() bool {
	return c.Cop0.SR()&(1<<30) != 0
}

func (c *CPU) String() string {
	return fmt.Sprintf("CPU{pc=%#08x}", c.pc)
}
