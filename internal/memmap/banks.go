package memmap

import "encoding/binary"

// Bank is a flat byte-addressable memory region with little-endian
// word/halfword accessors, the PSX CPU being a little-endian MIPS.
type Bank struct {
	data []byte
	mask uint32 // address mask applied before indexing, for mirrored banks
}

// NewBank allocates a bank of the given size. If mirror is true, reads
// and writes wrap modulo size (used for the 2MiB RAM mirrored across
// an 8MiB window).
func NewBank(size int, mirror bool) *Bank {
	b := &Bank{data: make([]byte, size)}
	if mirror {
		b.mask = uint32(size) - 1
	} else {
		b.mask = ^uint32(0)
	}
	return b
}

func (b *Bank) index(addr uint32) uint32 {
	if b.mask != ^uint32(0) {
		return addr & b.mask
	}
	return addr % uint32(len(b.data))
}

func (b *Bank) ReadByte(addr uint32) byte {
	return b.data[b.index(addr)]
}

func (b *Bank) WriteByte(addr uint32, v byte) {
	b.data[b.index(addr)] = v
}

func (b *Bank) ReadHalf(addr uint32) uint16 {
	i := b.index(addr)
	return binary.LittleEndian.Uint16(b.data[i : i+2])
}

func (b *Bank) WriteHalf(addr uint32, v uint16) {
	i := b.index(addr)
	binary.LittleEndian.PutUint16(b.data[i:i+2], v)
}

func (b *Bank) ReadWord(addr uint32) uint32 {
	i := b.index(addr)
	return binary.LittleEndian.Uint32(b.data[i : i+4])
}

func (b *Bank) WriteWord(addr uint32, v uint32) {
	i := b.index(addr)
	binary.LittleEndian.PutUint32(b.data[i:i+4], v)
}

// Raw exposes the backing slice, e.g. for DMA bulk transfers and
// save-state serialization.
func (b *Bank) Raw() []byte { return b.data }

// LoadAt copies data into the bank starting at addr (used for BIOS
// image loading and PS-X EXE side-loading).
func (b *Bank) LoadAt(addr uint32, data []byte) {
	copy(b.data[b.index(addr):], data)
}
