package cpu

// branch computes next_pc = current_pc + 4 + (offset << 2), per
// spec.md §4.2, and marks the delay slot.
func (c *CPU) branch(offset int32) {
	c.nextPC = c.currentPC + 4 + uint32(offset<<2)
	c.inBranch = true
}

func (c *CPU) opBEQ(i instr) {
	if c.Regs.Get(i.rs()) == c.Regs.Get(i.rt()) {
		c.branch(i.simm16())
	}
}

func (c *CPU) opBNE(i instr) {
	if c.Regs.Get(i.rs()) != c.Regs.Get(i.rt()) {
		c.branch(i.simm16())
	}
}

func (c *CPU) opBLEZ(i instr) {
	if int32(c.Regs.Get(i.rs())) <= 0 {
		c.branch(i.simm16())
	}
}

func (c *CPU) opBGTZ(i instr) {
	if int32(c.Regs.Get(i.rs())) > 0 {
		c.branch(i.simm16())
	}
}

func (c *CPU) opBLTZ(i instr) {
	if int32(c.Regs.Get(i.rs())) < 0 {
		c.branch(i.simm16())
	}
}

func (c *CPU) opBGEZ(i instr) {
	if int32(c.Regs.Get(i.rs())) >= 0 {
		c.branch(i.simm16())
	}
}

func (c *CPU) opBLTZAL(i instr) {
	c.Regs.Set(31, c.currentPC+8)
	if int32(c.Regs.Get(i.rs())) < 0 {
		c.branch(i.simm16())
	}
}

func (c *CPU) opBGEZAL(i instr) {
	c.Regs.Set(31, c.currentPC+8)
	if int32(c.Regs.Get(i.rs())) >= 0 {
		c.branch(i.simm16())
	}
}

// opJ/opJAL set next_pc from a 26-bit target combined with the upper
// 4 bits of current_pc+4, per spec.md §4.2.
func (c *CPU) opJ(i instr) {
	c.nextPC = (c.currentPC+4)&0xF0000000 | (i.target() << 2)
	c.inBranch = true
}

func (c *CPU) opJAL(i instr) {
	c.Regs.Set(31, c.currentPC+8)
	c.opJ(i)
}

func (c *CPU) opJR(i instr) {
	c.nextPC = c.Regs.Get(i.rs())
	c.inBranch = true
}

func (c *CPU) opJALR(i instr) {
	target := c.Regs.Get(i.rs())
	c.Regs.Set(i.rd(), c.currentPC+8)
	c.nextPC = target
	c.inBranch = true
}

func (c *CPU) opSYSCALL(i instr) {
	c.raiseException(ExcSyscall, 0)
}

func (c *CPU) opBREAK(i instr) {
	c.raiseException(ExcBreakpoint, 0)
}
