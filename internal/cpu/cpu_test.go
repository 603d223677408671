package cpu

import (
	"testing"

	"github.com/retrocore/gopsx/internal/irq"
	"github.com/retrocore/gopsx/internal/memmap"
	"github.com/retrocore/gopsx/internal/sched"
)

func newTestCPU() *CPU {
	bus := memmap.NewBus()
	irqc := irq.New()
	m := sched.NewManager()
	return New(bus, irqc, m)
}

// assemble builds an R-type instruction word.
func rtype(opcode, rs, rt, rd, shamt, funct uint32) uint32 {
	return opcode<<26 | rs<<21 | rt<<16 | rd<<11 | shamt<<6 | funct
}

func itype(opcode, rs, rt uint32, imm16 uint16) uint32 {
	return opcode<<26 | rs<<21 | rt<<16 | uint32(imm16)
}

func TestR0AlwaysZero(t *testing.T) {
	c := newTestCPU()
	c.Regs.Set(0, 0xDEADBEEF)
	if c.Regs.Get(0) != 0 {
		t.Fatal("R0 must read zero regardless of writes")
	}
}

func TestLoadDelaySlot(t *testing.T) {
	c := newTestCPU()
	// seed memory at address 0x100 with a known word
	c.bus.WriteWord(0x100, 0x12345678)
	c.Regs.Set(1, 0x100) // base register for LW

	c.Regs.Load(2, 0x12345678)
	// Before Advance, the pending load must not be visible yet.
	if c.Regs.Get(2) != 0 {
		t.Fatalf("load should not be visible before Advance: got %#x", c.Regs.Get(2))
	}
	c.Regs.Advance() // promotes pending->applied, nothing committed yet
	if c.Regs.Get(2) != 0 {
		t.Fatalf("load should not be visible after first Advance (next-but-one): got %#x", c.Regs.Get(2))
	}
	c.Regs.Advance() // commits applied
	if c.Regs.Get(2) != 0x12345678 {
		t.Fatalf("load should be visible after second Advance: got %#x", c.Regs.Get(2))
	}
}

func TestLoadDelayDropsEarlierWriteToSameRegister(t *testing.T) {
	c := newTestCPU()
	c.Regs.Load(3, 0x1111)
	c.Regs.Load(3, 0x2222) // second load to the same register drops the first
	c.Regs.Advance()
	c.Regs.Advance()
	if c.Regs.Get(3) != 0x2222 {
		t.Fatalf("got %#x want 0x2222", c.Regs.Get(3))
	}
}

func TestADDIUSetsRegister(t *testing.T) {
	c := newTestCPU()
	c.Reset()
	c.SetPC(0x80000000)
	// ADDIU r1, r0, 5
	c.bus.WriteWord(0x80000000, itype(0x09, 0, 1, 5))
	// ADDIU r2, r0, 1 (next instruction, not reached by the single Step)
	c.bus.WriteWord(0x80000004, itype(0x09, 0, 2, 1))
	c.Step()
	if c.Regs.Get(1) != 5 {
		t.Fatalf("r1 = %d, want 5", c.Regs.Get(1))
	}
}

func TestDivByZeroSentinels(t *testing.T) {
	c := newTestCPU()
	c.Regs.Set(1, 5)
	c.Regs.Set(2, 0)
	c.execute(rtype(0, 1, 2, 0, 0, 0x1A)) // DIV r1, r2
	if c.Regs.LO() != 0xFFFFFFFF {
		t.Fatalf("LO = %#x, want 0xFFFFFFFF for positive dividend / 0", c.Regs.LO())
	}
	if c.Regs.HI() != 5 {
		t.Fatalf("HI = %d, want 5", c.Regs.HI())
	}
}

func TestDivIntMinByMinusOne(t *testing.T) {
	c := newTestCPU()
	c.Regs.Set(1, 0x80000000)
	c.Regs.Set(2, 0xFFFFFFFF) // -1
	c.execute(rtype(0, 1, 2, 0, 0, 0x1A))
	if c.Regs.LO() != 0x80000000 || c.Regs.HI() != 0 {
		t.Fatalf("got LO=%#x HI=%#x, want LO=0x80000000 HI=0", c.Regs.LO(), c.Regs.HI())
	}
}

func TestBranchDelaySlotAlwaysExecutes(t *testing.T) {
	c := newTestCPU()
	c.Reset()
	c.SetPC(0x80000000)
	// BEQ r0, r0, 2 (branch to currentPC+4+8)
	c.bus.WriteWord(0x80000000, itype(0x04, 0, 0, 2))
	// ADDIU r1, r0, 42 (delay slot, must execute)
	c.bus.WriteWord(0x80000004, itype(0x09, 0, 1, 42))
	c.Step() // executes BEQ, sets nextPC
	c.Step() // executes delay slot instruction
	if c.Regs.Get(1) != 42 {
		t.Fatalf("delay slot did not execute: r1=%d", c.Regs.Get(1))
	}
	if c.PC() != 0x80000000+4+8 {
		t.Fatalf("pc after branch = %#x, want %#x", c.PC(), 0x80000000+4+8)
	}
}

func TestMisalignedLoadRaisesAddressError(t *testing.T) {
	c := newTestCPU()
	c.Reset()
	c.SetPC(0x80000000)
	c.Regs.Set(1, 1) // misaligned base for LW
	c.bus.WriteWord(0x80000000, itype(0x23, 1, 2, 0))
	c.Step()
	if c.Cop0.Cause()>>2&0x1F != uint32(ExcAddressErrorLoad) {
		t.Fatalf("expected AddressErrorLoad, got cause=%#x", c.Cop0.Cause())
	}
}
