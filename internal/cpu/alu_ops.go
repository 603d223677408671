package cpu

// Arithmetic/logical register-register and register-immediate
// instructions. Overflow-trapping variants (ADD/ADDI/SUB) raise
// ExcOverflow on signed overflow; their U-suffixed siblings never trap.

func (c *CPU) opADD(i instr) {
	a := int32(c.Regs.Get(i.rs()))
	b := int32(c.Regs.Get(i.rt()))
	result := a + b
	if overflowsAdd(a, b, result) {
		c.raiseException(ExcOverflow, 0)
		return
	}
	c.Regs.Set(i.rd(), uint32(result))
}

func (c *CPU) opADDU(i instr) {
	c.Regs.Set(i.rd(), c.Regs.Get(i.rs())+c.Regs.Get(i.rt()))
}

func (c *CPU) opSUB(i instr) {
	a := int32(c.Regs.Get(i.rs()))
	b := int32(c.Regs.Get(i.rt()))
	result := a - b
	if overflowsSub(a, b, result) {
		c.raiseException(ExcOverflow, 0)
		return
	}
	c.Regs.Set(i.rd(), uint32(result))
}

func (c *CPU) opSUBU(i instr) {
	c.Regs.Set(i.rd(), c.Regs.Get(i.rs())-c.Regs.Get(i.rt()))
}

func (c *CPU) opAND(i instr) { c.Regs.Set(i.rd(), c.Regs.Get(i.rs())&c.Regs.Get(i.rt())) }
func (c *CPU) opOR(i instr)  { c.Regs.Set(i.rd(), c.Regs.Get(i.rs())|c.Regs.Get(i.rt())) }
func (c *CPU) opXOR(i instr) { c.Regs.Set(i.rd(), c.Regs.Get(i.rs())^c.Regs.Get(i.rt())) }
func (c *CPU) opNOR(i instr) { c.Regs.Set(i.rd(), ^(c.Regs.Get(i.rs()) | c.Regs.Get(i.rt()))) }

func (c *CPU) opSLT(i instr) {
	if int32(c.Regs.Get(i.rs())) < int32(c.Regs.Get(i.rt())) {
		c.Regs.Set(i.rd(), 1)
	} else {
		c.Regs.Set(i.rd(), 0)
	}
}

func (c *CPU) opSLTU(i instr) {
	if c.Regs.Get(i.rs()) < c.Regs.Get(i.rt()) {
		c.Regs.Set(i.rd(), 1)
	} else {
		c.Regs.Set(i.rd(), 0)
	}
}

func (c *CPU) opADDI(i instr) {
	a := int32(c.Regs.Get(i.rs()))
	b := i.simm16()
	result := a + b
	if overflowsAdd(a, b, result) {
		c.raiseException(ExcOverflow, 0)
		return
	}
	c.Regs.Set(i.rt(), uint32(result))
}

func (c *CPU) opADDIU(i instr) {
	c.Regs.Set(i.rt(), c.Regs.Get(i.rs())+uint32(i.simm16()))
}

func (c *CPU) opSLTI(i instr) {
	if int32(c.Regs.Get(i.rs())) < i.simm16() {
		c.Regs.Set(i.rt(), 1)
	} else {
		c.Regs.Set(i.rt(), 0)
	}
}

func (c *CPU) opSLTIU(i instr) {
	if c.Regs.Get(i.rs()) < uint32(i.simm16()) {
		c.Regs.Set(i.rt(), 1)
	} else {
		c.Regs.Set(i.rt(), 0)
	}
}

func (c *CPU) opANDI(i instr) { c.Regs.Set(i.rt(), c.Regs.Get(i.rs())&i.imm16()) }
func (c *CPU) opORI(i instr)  { c.Regs.Set(i.rt(), c.Regs.Get(i.rs())|i.imm16()) }
func (c *CPU) opXORI(i instr) { c.Regs.Set(i.rt(), c.Regs.Get(i.rs())^i.imm16()) }
func (c *CPU) opLUI(i instr)  { c.Regs.Set(i.rt(), i.imm16()<<16) }

func (c *CPU) opSLL(i instr) { c.Regs.Set(i.rd(), c.Regs.Get(i.rt())<<i.shamt()) }
func (c *CPU) opSRL(i instr) { c.Regs.Set(i.rd(), c.Regs.Get(i.rt())>>i.shamt()) }
func (c *CPU) opSRA(i instr) {
	c.Regs.Set(i.rd(), uint32(int32(c.Regs.Get(i.rt()))>>i.shamt()))
}
func (c *CPU) opSLLV(i instr) {
	c.Regs.Set(i.rd(), c.Regs.Get(i.rt())<<(c.Regs.Get(i.rs())&0x1F))
}
func (c *CPU) opSRLV(i instr) {
	c.Regs.Set(i.rd(), c.Regs.Get(i.rt())>>(c.Regs.Get(i.rs())&0x1F))
}
func (c *CPU) opSRAV(i instr) {
	c.Regs.Set(i.rd(), uint32(int32(c.Regs.Get(i.rt()))>>(c.Regs.Get(i.rs())&0x1F)))
}

// opMULT/opMULTU deposit a 64-bit product into HI:LO.
func (c *CPU) opMULT(i instr) {
	result := int64(int32(c.Regs.Get(i.rs()))) * int64(int32(c.Regs.Get(i.rt())))
	c.Regs.SetHILO(uint32(uint64(result)>>32), uint32(result))
}

func (c *CPU) opMULTU(i instr) {
	result := uint64(c.Regs.Get(i.rs())) * uint64(c.Regs.Get(i.rt()))
	c.Regs.SetHILO(uint32(result>>32), uint32(result))
}

// opDIV/opDIVU define the sentinel results on divide-by-zero and on
// INT_MIN / -1 described in spec.md §4.2.
func (c *CPU) opDIV(i instr) {
	n := int32(c.Regs.Get(i.rs()))
	d := int32(c.Regs.Get(i.rt()))

	switch {
	case d == 0:
		hi := uint32(n)
		var lo uint32
		if n >= 0 {
			lo = 0xFFFFFFFF
		} else {
			lo = 1
		}
		c.Regs.SetHILO(hi, lo)
	case n == -2147483648 && d == -1:
		c.Regs.SetHILO(0, 0x80000000)
	default:
		c.Regs.SetHILO(uint32(n%d), uint32(n/d))
	}
}

func (c *CPU) opDIVU(i instr) {
	n := c.Regs.Get(i.rs())
	d := c.Regs.Get(i.rt())
	if d == 0 {
		c.Regs.SetHILO(n, 0xFFFFFFFF)
		return
	}
	c.Regs.SetHILO(n%d, n/d)
}

func (c *CPU) opMFHI(i instr) { c.Regs.Set(i.rd(), c.Regs.HI()) }
func (c *CPU) opMTHI(i instr) { c.Regs.SetHI(c.Regs.Get(i.rs())) }
func (c *CPU) opMFLO(i instr) { c.Regs.Set(i.rd(), c.Regs.LO()) }
func (c *CPU) opMTLO(i instr) { c.Regs.SetLO(c.Regs.Get(i.rs())) }

func overflowsAdd(a, b, result int32) bool {
	return ((a ^ result) & (b ^ result)) < 0
}

func overflowsSub(a, b, result int32) bool {
	return ((a ^ b) & (a ^ result)) < 0
}
