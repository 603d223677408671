package memmap

// MemoryControl models the 0x1F801000-range bus-timing registers and
// the KSEG2 cache-control register. The BIOS shell pokes these during
// boot (spec.md §8 scenario 1); software correctness never depends on
// their values, so they are a plain read/write-back register bank --
// grounded on original_source MemoryControl.h, which documents them as
// "expansion region timings, not used for emulation logic".
type MemoryControl struct {
	regs [9]uint32 // EXP1_BASE..SPU_DELAY, COM_DELAY
	ramSize uint32
}

const memoryControlBase = 0x000 // offset from IOBase: 0x1F801000
const memoryControlSize = 0x24

func NewMemoryControl() *MemoryControl {
	return &MemoryControl{}
}

func (m *MemoryControl) ReadRegister(offset uint32, width int) uint32 {
	if offset == 0x20 { // RAM_SIZE at 0x1F801060
		return m.ramSize
	}
	idx := offset / 4
	if int(idx) < len(m.regs) {
		return m.regs[idx]
	}
	return 0
}

func (m *MemoryControl) WriteRegister(offset uint32, width int, value uint32) {
	if offset == 0x20 {
		m.ramSize = value
		return
	}
	idx := offset / 4
	if int(idx) < len(m.regs) {
		m.regs[idx] = value
	}
}
