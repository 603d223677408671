package cpu

// regValueForMerge returns the value LWL/LWR/SWL/SWR should merge
// against for register rt: its in-flight load-delay value if one is
// pending, else its committed value (spec.md §4.2).
func (c *CPU) regValueForMerge(rt uint8) uint32 {
	if v, ok := c.Regs.InFlightValue(rt); ok {
		return v
	}
	return c.Regs.Get(rt)
}

func (c *CPU) opLB(i instr) {
	addr := c.Regs.Get(i.rs()) + uint32(i.simm16())
	v := int8(c.bus.ReadByte(addr))
	c.Regs.Load(i.rt(), uint32(int32(v)))
}

func (c *CPU) opLBU(i instr) {
	addr := c.Regs.Get(i.rs()) + uint32(i.simm16())
	c.Regs.Load(i.rt(), uint32(c.bus.ReadByte(addr)))
}

func (c *CPU) opLH(i instr) {
	addr := c.Regs.Get(i.rs()) + uint32(i.simm16())
	if addr%2 != 0 {
		c.addressErrorLoad(addr)
		return
	}
	v := int16(c.bus.ReadHalf(addr))
	c.Regs.Load(i.rt(), uint32(int32(v)))
}

func (c *CPU) opLHU(i instr) {
	addr := c.Regs.Get(i.rs()) + uint32(i.simm16())
	if addr%2 != 0 {
		c.addressErrorLoad(addr)
		return
	}
	c.Regs.Load(i.rt(), uint32(c.bus.ReadHalf(addr)))
}

func (c *CPU) opLW(i instr) {
	addr := c.Regs.Get(i.rs()) + uint32(i.simm16())
	if addr%4 != 0 {
		c.addressErrorLoad(addr)
		return
	}
	c.Regs.Load(i.rt(), c.bus.ReadWord(addr))
}

func (c *CPU) opSB(i instr) {
	addr := c.Regs.Get(i.rs()) + uint32(i.simm16())
	c.bus.WriteByte(addr, byte(c.Regs.Get(i.rt())))
}

func (c *CPU) opSH(i instr) {
	addr := c.Regs.Get(i.rs()) + uint32(i.simm16())
	if addr%2 != 0 {
		c.addressErrorStore(addr)
		return
	}
	c.bus.WriteHalf(addr, uint16(c.Regs.Get(i.rt())))
}

func (c *CPU) opSW(i instr) {
	addr := c.Regs.Get(i.rs()) + uint32(i.simm16())
	if addr%4 != 0 {
		c.addressErrorStore(addr)
		return
	}
	c.bus.WriteWord(addr, c.Regs.Get(i.rt()))
}

// opLWL/opLWR merge bytes from an unaligned word access with the
// register's current (possibly in-flight) value, per spec.md §4.2.
func (c *CPU) opLWL(i instr) {
	addr := c.Regs.Get(i.rs()) + uint32(i.simm16())
	aligned := addr &^ 3
	word := c.bus.ReadWord(aligned)
	cur := c.regValueForMerge(i.rt())

	var result uint32
	switch addr & 3 {
	case 0:
		result = (cur & 0x00FFFFFF) | (word << 24)
	case 1:
		result = (cur & 0x0000FFFF) | (word << 16)
	case 2:
		result = (cur & 0x000000FF) | (word << 8)
	default:
		result = word
	}
	c.Regs.Load(i.rt(), result)
}

func (c *CPU) opLWR(i instr) {
	addr := c.Regs.Get(i.rs()) + uint32(i.simm16())
	aligned := addr &^ 3
	word := c.bus.ReadWord(aligned)
	cur := c.regValueForMerge(i.rt())

	var result uint32
	switch addr & 3 {
	case 0:
		result = word
	case 1:
		result = (cur & 0xFF000000) | (word >> 8)
	case 2:
		result = (cur & 0xFFFF0000) | (word >> 16)
	default:
		result = (cur & 0xFFFFFF00) | (word >> 24)
	}
	c.Regs.Load(i.rt(), result)
}

func (c *CPU) opSWL(i instr) {
	addr := c.Regs.Get(i.rs()) + uint32(i.simm16())
	aligned := addr &^ 3
	word := c.bus.ReadWord(aligned)
	rt := c.Regs.Get(i.rt())

	var result uint32
	switch addr & 3 {
	case 0:
		result = (word & 0xFFFFFF00) | (rt >> 24)
	case 1:
		result = (word & 0xFFFF0000) | (rt >> 16)
	case 2:
		result = (word & 0xFF000000) | (rt >> 8)
	default:
		result = rt
	}
	c.bus.WriteWord(aligned, result)
}

func (c *CPU) opSWR(i instr) {
	addr := c.Regs.Get(i.rs()) + uint32(i.simm16())
	aligned := addr &^ 3
	word := c.bus.ReadWord(aligned)
	rt := c.Regs.Get(i.rt())

	var result uint32
	switch addr & 3 {
	case 0:
		result = rt
	case 1:
		result = (word & 0x000000FF) | (rt << 8)
	case 2:
		result = (word & 0x0000FFFF) | (rt << 16)
	default:
		result = (word & 0x00FFFFFF) | (rt << 24)
	}
	c.bus.WriteWord(aligned, result)
}
