package memmap

import (
	"fmt"
	"log/slog"
)

// Peripheral is the minimal register-mapped device surface the bus
// dispatches word/halfword/byte I/O port accesses to. Every
// peripheral (GPU, DMA, CDROM, SPU, Timers, ControllerPorts,
// InterruptControl) implements it over its own register file.
type Peripheral interface {
	ReadRegister(offset uint32, width int) uint32
	WriteRegister(offset uint32, width int, value uint32)
}

// ioRange associates a peripheral with the [base, base+size) window
// of the 0x1F801000 I/O page it owns.
type ioRange struct {
	base uint32
	size uint32
	dev  Peripheral
	name string
}

// Bus is the top-level MemoryMap: it owns RAM/Scratchpad/BIOS banks
// and dispatches I/O-page accesses to registered peripherals by
// address range, mirroring the teacher's MMU region-table dispatch.
type Bus struct {
	RAM        *Bank
	Scratchpad *Bank
	BIOS       *Bank

	ioRanges []ioRange

	cacheControl uint32
	icache       *ICache

	log *slog.Logger
}

// NewBus constructs a Bus with freshly allocated RAM/Scratchpad/BIOS
// banks and an empty instruction cache.
func NewBus() *Bus {
	return &Bus{
		RAM:        NewBank(RAMSize, true),
		Scratchpad: NewBank(ScratchpadSize, false),
		BIOS:       NewBank(BIOSSize, false),
		icache:     NewICache(),
		log:        slog.With("component", "memmap"),
	}
}

// Register adds a peripheral's I/O window to the dispatch table. base
// is a physical offset from IOBase (e.g. 0x810 for GPU).
func (b *Bus) Register(name string, base, size uint32, dev Peripheral) {
	b.ioRanges = append(b.ioRanges, ioRange{base: base, size: size, dev: dev, name: name})
}

func (b *Bus) findIO(offset uint32) *ioRange {
	for i := range b.ioRanges {
		r := &b.ioRanges[i]
		if offset >= r.base && offset < r.base+r.size {
			return r
		}
	}
	return nil
}

// LoadBIOS copies a BIOS image (must be exactly BIOSSize bytes) into
// the BIOS bank.
func (b *Bus) LoadBIOS(data []byte) error {
	if len(data) != BIOSSize {
		return fmt.Errorf("memmap: BIOS image size %d, want %d", len(data), BIOSSize)
	}
	b.BIOS.LoadAt(0, data)
	return nil
}

// ReadWord reads a 32-bit word at a virtual address.
func (b *Bus) ReadWord(vaddr uint32) uint32 { return b.access(vaddr, 4, 0, false) }

// ReadHalf reads a 16-bit halfword at a virtual address.
func (b *Bus) ReadHalf(vaddr uint32) uint16 { return uint16(b.access(vaddr, 2, 0, false)) }

// ReadByte reads an 8-bit byte at a virtual address.
func (b *Bus) ReadByte(vaddr uint32) byte { return byte(b.access(vaddr, 1, 0, false)) }

// WriteWord writes a 32-bit word at a virtual address.
func (b *Bus) WriteWord(vaddr uint32, v uint32) { b.access(vaddr, 4, v, true) }

// WriteHalf writes a 16-bit halfword at a virtual address.
func (b *Bus) WriteHalf(vaddr uint32, v uint16) { b.access(vaddr, 2, uint32(v), true) }

// WriteByte writes an 8-bit byte at a virtual address.
func (b *Bus) WriteByte(vaddr uint32, v byte) { b.access(vaddr, 1, uint32(v), true) }

// access is the single decode-and-dispatch path for all widths.
func (b *Bus) access(vaddr uint32, width int, value uint32, write bool) uint32 {
	paddr := ToPhysical(vaddr)

	switch {
	case paddr < 0x00800000: // RAM, mirrored 4x across its 8MiB window
		return b.accessBank(b.RAM, paddr, width, value, write)

	case paddr >= ScratchpadBase && paddr < ScratchpadBase+ScratchpadSize:
		return b.accessBank(b.Scratchpad, paddr-ScratchpadBase, width, value, write)

	case paddr >= BIOSBase && paddr < BIOSBase+BIOSSize:
		return b.accessBank(b.BIOS, paddr-BIOSBase, width, value, write)

	case paddr >= IOBase && paddr < IOBase+IOSize:
		offset := paddr - IOBase
		if r := b.findIO(offset); r != nil {
			if write {
				r.dev.WriteRegister(offset-r.base, width, value)
				return 0
			}
			return r.dev.ReadRegister(offset-r.base, width)
		}
		b.log.Debug("unmapped I/O access", "offset", fmt.Sprintf("0x%04X", offset), "write", write)
		return sentinel(width)

	case vaddr == CacheControlAddr:
		if write {
			b.cacheControl = value
			return 0
		}
		return b.cacheControl

	default:
		b.log.Debug("unmapped memory access", "vaddr", fmt.Sprintf("0x%08X", vaddr), "write", write)
		return sentinel(width)
	}
}

func (b *Bus) accessBank(bank *Bank, addr uint32, width int, value uint32, write bool) uint32 {
	switch width {
	case 1:
		if write {
			bank.WriteByte(addr, byte(value))
			return 0
		}
		return uint32(bank.ReadByte(addr))
	case 2:
		if write {
			bank.WriteHalf(addr, uint16(value))
			return 0
		}
		return uint32(bank.ReadHalf(addr))
	default:
		if write {
			bank.WriteWord(addr, value)
			return 0
		}
		return bank.ReadWord(addr)
	}
}

// sentinel returns the underflow value a bounded register/FIFO read
// returns per spec.md §3: 0xFF for a byte, 0xFFFF... otherwise.
func sentinel(width int) uint32 {
	switch width {
	case 1:
		return 0xFF
	case 2:
		return 0xFFFF
	default:
		return 0xFFFFFFFF
	}
}

// FetchInstruction fetches a 32-bit instruction word at vaddr,
// consulting the instruction cache first. A miss populates the cache
// line and falls through to a normal memory read; per spec.md §4.2,
// hit/miss does not affect timing in this spec.
func (b *Bus) FetchInstruction(vaddr uint32) uint32 {
	if v, ok := b.icache.Lookup(vaddr); ok {
		return v
	}
	v := b.ReadWord(vaddr)
	b.icache.Fill(vaddr, v)
	return v
}

// InvalidateICache drops all cached instruction lines (cache-isolate
// writes, BIOS exe side-loading).
func (b *Bus) InvalidateICache() { b.icache.Reset() }
