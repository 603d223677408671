package console

import (
	"github.com/retrocore/gopsx/internal/irq"
	"github.com/retrocore/gopsx/internal/spu"
	"github.com/retrocore/gopsx/internal/timers"
)

// irqPeripheral adapts irq.Control's ReadStatus/ReadMask/WriteMask/
// Acknowledge surface onto memmap.Peripheral's two-register (I_STAT,
// I_MASK) window at I/O offset 0x070, matching the teacher's habit of
// keeping bus-facing register decode out of the domain type itself
// (irq.Control is tested standalone, without any bus dependency).
type irqPeripheral struct {
	ctl *irq.Control
}

func (p irqPeripheral) ReadRegister(offset uint32, width int) uint32 {
	switch offset {
	case 0x00:
		return uint32(p.ctl.ReadStatus())
	case 0x04:
		return uint32(p.ctl.ReadMask())
	default:
		return 0
	}
}

func (p irqPeripheral) WriteRegister(offset uint32, width int, value uint32) {
	switch offset {
	case 0x00:
		p.ctl.Acknowledge(uint16(value))
	case 0x04:
		p.ctl.WriteMask(uint16(value))
	}
}

// spuPeripheral adapts spu.SPU's halfword-granular Read/Write onto
// memmap.Peripheral, since every SPU register is 16 bits wide
// regardless of the bus access width a guest instruction used.
type spuPeripheral struct {
	s *spu.SPU
}

func (p spuPeripheral) ReadRegister(offset uint32, width int) uint32 {
	return uint32(p.s.Read(offset))
}

func (p spuPeripheral) WriteRegister(offset uint32, width int, value uint32) {
	p.s.Write(offset, uint16(value))
}

// timersPeripheral adapts timers.Timers' Read/Write onto
// memmap.Peripheral.
type timersPeripheral struct {
	t *timers.Timers
}

func (p timersPeripheral) ReadRegister(offset uint32, width int) uint32 {
	return p.t.Read(offset, width)
}

func (p timersPeripheral) WriteRegister(offset uint32, width int, value uint32) {
	p.t.Write(offset, width, value)
}
