package console

import (
	"encoding/binary"

	"github.com/pkg/errors"

	"github.com/retrocore/gopsx/internal/memmap"
)

// PS-X EXE layout constants, per original_source File.h's ExeHeader.
const (
	exeHeaderSize = 0x800
	exeID         = "PS-X EXE"
)

// HookEXE side-loads a PS-X EXE's header fields and code/data image,
// writing it directly into RAM and overriding the CPU's program
// counter, global pointer and stack pointer, per spec.md §6 and
// original_source File.cpp's LoadExecutable. It is normally invoked
// after the BIOS shell has finished its boot sequence (the host
// decides when, mirroring the real BIOS "exe side-load" hotkey).
func (m *Machine) HookEXE(data []byte) error {
	if len(data) < exeHeaderSize*2 || len(data)%exeHeaderSize != 0 {
		return errors.Errorf("console: exe size must be a multiple of 0x800 and at least two sectors, got %d", len(data))
	}
	if string(data[0:8]) != exeID {
		return errors.Errorf("console: invalid exe header id %q", data[0:8])
	}

	programCounter := binary.LittleEndian.Uint32(data[0x10:])
	globalPointer := binary.LittleEndian.Uint32(data[0x14:])
	ramDestination := binary.LittleEndian.Uint32(data[0x18:])
	fileSize := binary.LittleEndian.Uint32(data[0x1C:])
	memfillStart := binary.LittleEndian.Uint32(data[0x28:])
	memfillSize := binary.LittleEndian.Uint32(data[0x2C:])
	stackPointerBase := binary.LittleEndian.Uint32(data[0x30:])
	stackPointerOffset := binary.LittleEndian.Uint32(data[0x34:])

	body := data[exeHeaderSize:]
	if uint32(len(body)) < fileSize {
		return errors.Errorf("console: exe header file size %#x exceeds body length %#x", fileSize, len(body))
	}

	physicalDest := ramDestination & 0x7FFFFFFF
	if physicalDest+fileSize > memmap.RAMSize {
		return errors.Errorf("console: exe destination %#x + size %#x exceeds RAM", ramDestination, fileSize)
	}

	for i := uint32(0); i < fileSize; i += 4 {
		m.Bus.WriteWord(physicalDest+i, binary.LittleEndian.Uint32(body[i:]))
	}

	if memfillSize != 0 {
		fillDest := memfillStart & 0x7FFFFFFF
		if fillDest+memfillSize > memmap.RAMSize {
			return errors.Errorf("console: exe memfill %#x + size %#x exceeds RAM", memfillStart, memfillSize)
		}
		for i := uint32(0); i < memfillSize; i += 4 {
			m.Bus.WriteWord(fillDest+i, 0)
		}
	}

	m.CPU.SetPC(programCounter)
	m.CPU.Regs.Set(28, globalPointer)
	if stackPointerBase != 0 {
		m.CPU.Regs.Set(29, stackPointerBase+stackPointerOffset)
		m.CPU.Regs.Set(30, stackPointerBase)
	}

	m.Bus.InvalidateICache()
	return nil
}
