package cpu

// Instruction field extraction, MIPS I encodings.
type instr uint32

func (i instr) opcode() uint32 { return uint32(i) >> 26 }
func (i instr) rs() uint8      { return uint8((i >> 21) & 0x1F) }
func (i instr) rt() uint8      { return uint8((i >> 16) & 0x1F) }
func (i instr) rd() uint8      { return uint8((i >> 11) & 0x1F) }
func (i instr) shamt() uint32  { return (uint32(i) >> 6) & 0x1F }
func (i instr) funct() uint32  { return uint32(i) & 0x3F }
func (i instr) imm16() uint32  { return uint32(i) & 0xFFFF }
func (i instr) simm16() int32  { return int32(int16(uint16(i))) }
func (i instr) imm25() uint32  { return uint32(i) & 0x01FFFFFF }
func (i instr) target() uint32 { return uint32(i) & 0x03FFFFFF }

// execute decodes and dispatches a single instruction word.
func (c *CPU) execute(word uint32) {
	i := instr(word)

	switch i.opcode() {
	case 0x00:
		c.executeSpecial(i)
	case 0x01:
		c.executeRegimm(i)
	case 0x02:
		c.opJ(i)
	case 0x03:
		c.opJAL(i)
	case 0x04:
		c.opBEQ(i)
	case 0x05:
		c.opBNE(i)
	case 0x06:
		c.opBLEZ(i)
	case 0x07:
		c.opBGTZ(i)
	case 0x08:
		c.opADDI(i)
	case 0x09:
		c.opADDIU(i)
	case 0x0A:
		c.opSLTI(i)
	case 0x0B:
		c.opSLTIU(i)
	case 0x0C:
		c.opANDI(i)
	case 0x0D:
		c.opORI(i)
	case 0x0E:
		c.opXORI(i)
	case 0x0F:
		c.opLUI(i)
	case 0x10:
		c.executeCop(0, i)
	case 0x12:
		c.executeCop(2, i)
	case 0x20:
		c.opLB(i)
	case 0x21:
		c.opLH(i)
	case 0x22:
		c.opLWL(i)
	case 0x23:
		c.opLW(i)
	case 0x24:
		c.opLBU(i)
	case 0x25:
		c.opLHU(i)
	case 0x26:
		c.opLWR(i)
	case 0x28:
		c.opSB(i)
	case 0x29:
		c.opSH(i)
	case 0x2A:
		c.opSWL(i)
	case 0x2B:
		c.opSW(i)
	case 0x2E:
		c.opSWR(i)
	case 0x32:
		c.opLWC(2, i)
	case 0x3A:
		c.opSWC(2, i)
	default:
		c.raiseException(ExcReservedInstr, 0)
	}
}

func (c *CPU) executeSpecial(i instr) {
	switch i.funct() {
	case 0x00:
		c.opSLL(i)
	case 0x02:
		c.opSRL(i)
	case 0x03:
		c.opSRA(i)
	case 0x04:
		c.opSLLV(i)
	case 0x06:
		c.opSRLV(i)
	case 0x07:
		c.opSRAV(i)
	case 0x08:
		c.opJR(i)
	case 0x09:
		c.opJALR(i)
	case 0x0C:
		c.opSYSCALL(i)
	case 0x0D:
		c.opBREAK(i)
	case 0x10:
		c.opMFHI(i)
	case 0x11:
		c.opMTHI(i)
	case 0x12:
		c.opMFLO(i)
	case 0x13:
		c.opMTLO(i)
	case 0x18:
		c.opMULT(i)
	case 0x19:
		c.opMULTU(i)
	case 0x1A:
		c.opDIV(i)
	case 0x1B:
		c.opDIVU(i)
	case 0x20:
		c.opADD(i)
	case 0x21:
		c.opADDU(i)
	case 0x22:
		c.opSUB(i)
	case 0x23:
		c.opSUBU(i)
	case 0x24:
		c.opAND(i)
	case 0x25:
		c.opOR(i)
	case 0x26:
		c.opXOR(i)
	case 0x27:
		c.opNOR(i)
	case 0x2A:
		c.opSLT(i)
	case 0x2B:
		c.opSLTU(i)
	default:
		c.raiseException(ExcReservedInstr, 0)
	}
}

func (c *CPU) executeRegimm(i instr) {
	rt := i.rt()
	switch {
	case rt == 0x00:
		c.opBLTZ(i)
	case rt == 0x01:
		c.opBGEZ(i)
	case rt == 0x10:
		c.opBLTZAL(i)
	case rt == 0x11:
		c.opBGEZAL(i)
	default:
		c.raiseException(ExcReservedInstr, 0)
	}
}
