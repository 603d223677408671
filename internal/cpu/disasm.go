package cpu

import "fmt"

// regNames are the conventional MIPS o32 register names, used only by
// Disassemble's text output.
var regNames = [32]string{
	"zero", "at", "v0", "v1", "a0", "a1", "a2", "a3",
	"t0", "t1", "t2", "t3", "t4", "t5", "t6", "t7",
	"s0", "s1", "s2", "s3", "s4", "s5", "s6", "s7",
	"t8", "t9", "k0", "k1", "gp", "sp", "fp", "ra",
}

func reg(n uint8) string { return "$" + regNames[n&0x1F] }

// Disassemble renders a single instruction word as MIPS I assembly
// text, for the debug CLI's disassembly view. It mirrors decode.go's
// opcode/funct dispatch table exactly (same field extraction, same
// case values) but produces a string instead of executing the
// instruction, so the two can never silently drift on which opcodes
// exist without also drifting on what they execute.
func Disassemble(word uint32, pc uint32) string {
	i := instr(word)
	op := i.opcode()

	switch op {
	case 0x00:
		return disasmSpecial(i)
	case 0x01:
		return disasmRegimm(i)
	case 0x02:
		return fmt.Sprintf("j       0x%08x", jumpTarget(i, pc))
	case 0x03:
		return fmt.Sprintf("jal     0x%08x", jumpTarget(i, pc))
	case 0x04:
		return branch("beq", i, pc)
	case 0x05:
		return branch("bne", i, pc)
	case 0x06:
		return branch1("blez", i, pc)
	case 0x07:
		return branch1("bgtz", i, pc)
	case 0x08:
		return immOp("addi", i)
	case 0x09:
		return immOp("addiu", i)
	case 0x0A:
		return immOp("slti", i)
	case 0x0B:
		return immOp("sltiu", i)
	case 0x0C:
		return fmt.Sprintf("andi    %s, %s, 0x%04x", reg(i.rt()), reg(i.rs()), i.imm16())
	case 0x0D:
		return fmt.Sprintf("ori     %s, %s, 0x%04x", reg(i.rt()), reg(i.rs()), i.imm16())
	case 0x0E:
		return fmt.Sprintf("xori    %s, %s, 0x%04x", reg(i.rt()), reg(i.rs()), i.imm16())
	case 0x0F:
		return fmt.Sprintf("lui     %s, 0x%04x", reg(i.rt()), i.imm16())
	case 0x10:
		return cop("cop0", i)
	case 0x12:
		return cop("cop2", i)
	case 0x20:
		return loadStore("lb", i)
	case 0x21:
		return loadStore("lh", i)
	case 0x22:
		return loadStore("lwl", i)
	case 0x23:
		return loadStore("lw", i)
	case 0x24:
		return loadStore("lbu", i)
	case 0x25:
		return loadStore("lhu", i)
	case 0x26:
		return loadStore("lwr", i)
	case 0x28:
		return loadStore("sb", i)
	case 0x29:
		return loadStore("sh", i)
	case 0x2A:
		return loadStore("swl", i)
	case 0x2B:
		return loadStore("sw", i)
	case 0x2E:
		return loadStore("swr", i)
	case 0x32:
		return loadStore("lwc2", i)
	case 0x3A:
		return loadStore("swc2", i)
	default:
		return fmt.Sprintf(".word   0x%08x", word)
	}
}

func jumpTarget(i instr, pc uint32) uint32 {
	return (pc & 0xF0000000) | (i.target() << 2)
}

func branch(mnemonic string, i instr, pc uint32) string {
	target := pc + 4 + uint32(i.simm16()<<2)
	return fmt.Sprintf("%-7s %s, %s, 0x%08x", mnemonic, reg(i.rs()), reg(i.rt()), target)
}

func branch1(mnemonic string, i instr, pc uint32) string {
	target := pc + 4 + uint32(i.simm16()<<2)
	return fmt.Sprintf("%-7s %s, 0x%08x", mnemonic, reg(i.rs()), target)
}

func immOp(mnemonic string, i instr) string {
	return fmt.Sprintf("%-7s %s, %s, %d", mnemonic, reg(i.rt()), reg(i.rs()), i.simm16())
}

func loadStore(mnemonic string, i instr) string {
	return fmt.Sprintf("%-7s %s, %d(%s)", mnemonic, reg(i.rt()), i.simm16(), reg(i.rs()))
}

func cop(name string, i instr) string {
	return fmt.Sprintf("%-7s 0x%07x", name, i.imm25())
}

func disasmSpecial(i instr) string {
	switch i.funct() {
	case 0x00:
		if word := uint32(i); word == 0 {
			return "nop"
		}
		return fmt.Sprintf("sll     %s, %s, %d", reg(i.rd()), reg(i.rt()), i.shamt())
	case 0x02:
		return fmt.Sprintf("srl     %s, %s, %d", reg(i.rd()), reg(i.rt()), i.shamt())
	case 0x03:
		return fmt.Sprintf("sra     %s, %s, %d", reg(i.rd()), reg(i.rt()), i.shamt())
	case 0x04:
		return rtype("sllv", i)
	case 0x06:
		return rtype("srlv", i)
	case 0x07:
		return rtype("srav", i)
	case 0x08:
		return fmt.Sprintf("jr      %s", reg(i.rs()))
	case 0x09:
		return fmt.Sprintf("jalr    %s, %s", reg(i.rd()), reg(i.rs()))
	case 0x0C:
		return "syscall"
	case 0x0D:
		return "break"
	case 0x10:
		return fmt.Sprintf("mfhi    %s", reg(i.rd()))
	case 0x11:
		return fmt.Sprintf("mthi    %s", reg(i.rs()))
	case 0x12:
		return fmt.Sprintf("mflo    %s", reg(i.rd()))
	case 0x13:
		return fmt.Sprintf("mtlo    %s", reg(i.rs()))
	case 0x18:
		return fmt.Sprintf("mult    %s, %s", reg(i.rs()), reg(i.rt()))
	case 0x19:
		return fmt.Sprintf("multu   %s, %s", reg(i.rs()), reg(i.rt()))
	case 0x1A:
		return fmt.Sprintf("div     %s, %s", reg(i.rs()), reg(i.rt()))
	case 0x1B:
		return fmt.Sprintf("divu    %s, %s", reg(i.rs()), reg(i.rt()))
	case 0x20:
		return rtype("add", i)
	case 0x21:
		return rtype("addu", i)
	case 0x22:
		return rtype("sub", i)
	case 0x23:
		return rtype("subu", i)
	case 0x24:
		return rtype("and", i)
	case 0x25:
		return rtype("or", i)
	case 0x26:
		return rtype("xor", i)
	case 0x27:
		return rtype("nor", i)
	case 0x2A:
		return rtype("slt", i)
	case 0x2B:
		return rtype("sltu", i)
	default:
		return fmt.Sprintf(".word   0x%08x", uint32(i))
	}
}

func rtype(mnemonic string, i instr) string {
	return fmt.Sprintf("%-7s %s, %s, %s", mnemonic, reg(i.rd()), reg(i.rs()), reg(i.rt()))
}

func disasmRegimm(i instr) string {
	switch i.rt() {
	case 0x00:
		return fmt.Sprintf("bltz    %s, ...", reg(i.rs()))
	case 0x01:
		return fmt.Sprintf("bgez    %s, ...", reg(i.rs()))
	case 0x10:
		return fmt.Sprintf("bltzal  %s, ...", reg(i.rs()))
	case 0x11:
		return fmt.Sprintf("bgezal  %s, ...", reg(i.rs()))
	default:
		return fmt.Sprintf(".word   0x%08x", uint32(i))
	}
}
