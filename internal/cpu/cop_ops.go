package cpu

// executeCop dispatches COPn instructions (MFCn/MTCn/CFCn/CTCn/BCnF/
// BCnT and the coprocessor's own command opcodes). Accessing a
// disabled coprocessor raises CoprocessorUnusable, per spec.md §4.2.
func (c *CPU) executeCop(n uint32, i instr) {
	switch n {
	case 0:
		if !c.cop0Enabled() {
			c.coprocessorUnusable(0)
			return
		}
		c.executeCop0(i)
	case 2:
		if !c.cop2Enabled() {
			c.coprocessorUnusable(2)
			return
		}
		c.executeCop2(i)
	}
}

func (c *CPU) executeCop0(i instr) {
	switch i.rs() {
	case 0x00: // MFC0
		c.Regs.Load(i.rt(), c.Cop0.ReadRegister(uint32(i.rd())))
	case 0x04: // MTC0
		c.Cop0.WriteRegister(uint32(i.rd()), c.Regs.Get(i.rt()))
	default:
		if i.funct() == 0x10 { // RFE
			c.Cop0.ExceptionReturn()
		} else {
			c.raiseException(ExcReservedInstr, 0)
		}
	}
}

// executeCop2 dispatches to the GTE. A nil GTE (unit tests that don't
// wire one) turns COP2 instructions into no-ops rather than panicking.
func (c *CPU) executeCop2(i instr) {
	if c.GTE == nil {
		return
	}

	switch i.rs() {
	case 0x00: // MFC2
		c.Regs.Load(i.rt(), c.GTE.ReadData(uint32(i.rd())))
	case 0x02: // CFC2
		c.Regs.Load(i.rt(), c.GTE.ReadControl(uint32(i.rd())))
	case 0x04: // MTC2
		c.GTE.WriteData(uint32(i.rd()), c.Regs.Get(i.rt()))
	case 0x06: // CTC2
		c.GTE.WriteControl(uint32(i.rd()), c.Regs.Get(i.rt()))
	default:
		// Top bit set (rs bit 4, i.e. rs>=0x10): a GTE command word.
		if uint32(i)>>25 == 0b0100101 {
			c.GTE.Execute(uint32(i) & 0x01FFFFFF)
		}
	}
}

func (c *CPU) opLWC(n uint32, i instr) {
	if n == 2 {
		if !c.cop2Enabled() {
			c.coprocessorUnusable(2)
			return
		}
		addr := c.Regs.Get(i.rs()) + uint32(i.simm16())
		if addr%4 != 0 {
			c.addressErrorLoad(addr)
			return
		}
		c.GTE.WriteData(uint32(i.rt()), c.bus.ReadWord(addr))
	}
}

func (c *CPU) opSWC(n uint32, i instr) {
	if n == 2 {
		if !c.cop2Enabled() {
			c.coprocessorUnusable(2)
			return
		}
		addr := c.Regs.Get(i.rs()) + uint32(i.simm16())
		if addr%4 != 0 {
			c.addressErrorStore(addr)
			return
		}
		c.bus.WriteWord(addr, c.GTE.ReadData(uint32(i.rt())))
	}
}
