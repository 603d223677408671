package gte

import "github.com/retrocore/gopsx/internal/bitfield"

// ReadData implements cpu.Coprocessor2: reads one of the 32 COP2 data
// registers (GTE.h's data register file: V0-2, RGBC, OTZ, IR0-3, SXY0-3,
// SZ0-3, RGB0-2, RES1, MAC0-3, IRGB/ORGB, LZCS/LZCR).
func (g *GTE) ReadData(reg uint32) uint32 {
	switch reg {
	case 0:
		return pack16(uint16(g.v[0][0]), uint16(g.v[0][1]))
	case 1:
		return uint32(int32(g.v[0][2]))
	case 2:
		return pack16(uint16(g.v[1][0]), uint16(g.v[1][1]))
	case 3:
		return uint32(int32(g.v[1][2]))
	case 4:
		return pack16(uint16(g.v[2][0]), uint16(g.v[2][1]))
	case 5:
		return uint32(int32(g.v[2][2]))
	case 6:
		return g.rgbc
	case 7:
		return uint32(g.otz)
	case 8:
		return uint32(int32(g.ir0))
	case 9:
		return uint32(int32(g.ir[0]))
	case 10:
		return uint32(int32(g.ir[1]))
	case 11:
		return uint32(int32(g.ir[2]))
	case 12:
		return pack16(uint16(g.sxyFifo[0][0]), uint16(g.sxyFifo[0][1]))
	case 13:
		return pack16(uint16(g.sxyFifo[1][0]), uint16(g.sxyFifo[1][1]))
	case 14, 15:
		return pack16(uint16(g.sxyFifo[2][0]), uint16(g.sxyFifo[2][1]))
	case 16:
		return uint32(g.szFifo[0])
	case 17:
		return uint32(g.szFifo[1])
	case 18:
		return uint32(g.szFifo[2])
	case 19:
		return uint32(g.szFifo[3])
	case 20:
		return g.colorFifo[0]
	case 21:
		return g.colorFifo[1]
	case 22:
		return g.colorFifo[2]
	case 24:
		return uint32(g.mac0)
	case 25:
		return uint32(g.mac[0])
	case 26:
		return uint32(g.mac[1])
	case 27:
		return uint32(g.mac[2])
	case 28, 29:
		return g.readIRGB()
	default:
		return 0
	}
}

// WriteData implements cpu.Coprocessor2.
func (g *GTE) WriteData(reg uint32, value uint32) {
	switch reg {
	case 0:
		g.v[0][0], g.v[0][1] = int16(value), int16(value>>16)
	case 1:
		g.v[0][2] = int16(value)
	case 2:
		g.v[1][0], g.v[1][1] = int16(value), int16(value>>16)
	case 3:
		g.v[1][2] = int16(value)
	case 4:
		g.v[2][0], g.v[2][1] = int16(value), int16(value>>16)
	case 5:
		g.v[2][2] = int16(value)
	case 6:
		g.rgbc = value
	case 7:
		g.otz = uint16(value)
	case 8:
		g.ir0 = int16(value)
	case 9:
		g.ir[0] = int16(value)
	case 10:
		g.ir[1] = int16(value)
	case 11:
		g.ir[2] = int16(value)
	case 12:
		g.sxyFifo[0] = [2]int16{int16(value), int16(value >> 16)}
	case 13:
		g.sxyFifo[1] = [2]int16{int16(value), int16(value >> 16)}
	case 14:
		g.sxyFifo[2] = [2]int16{int16(value), int16(value >> 16)}
	case 15:
		// writing SXYP pushes a new entry, shifting the FIFO.
		g.pushScreenXY(int32(int16(value)), int32(int16(value>>16)))
	case 16:
		g.szFifo[0] = uint16(value)
	case 17:
		g.szFifo[1] = uint16(value)
	case 18:
		g.szFifo[2] = uint16(value)
	case 19:
		g.szFifo[3] = uint16(value)
	case 20:
		g.colorFifo[0] = value
	case 21:
		g.colorFifo[1] = value
	case 22:
		g.colorFifo[2] = value
	case 24:
		g.mac0 = int32(value)
	case 25:
		g.mac[0] = int32(value)
	case 26:
		g.mac[1] = int32(value)
	case 27:
		g.mac[2] = int32(value)
	case 28:
		g.writeIRGB(value)
	}
}

// readIRGB reconstructs the packed IRGB value (5 bits per channel)
// from IR1-3, per GTE.h's ORGB/IRGB register.
func (g *GTE) readIRGB() uint32 {
	r := clampTo5(g.ir[0])
	gg := clampTo5(g.ir[1])
	b := clampTo5(g.ir[2])
	return uint32(r) | uint32(gg)<<5 | uint32(b)<<10
}

func clampTo5(v int16) uint32 {
	c, _ := bitfield.Clamp(int64(v)>>7, 0, 0x1F)
	return uint32(c)
}

// writeIRGB expands a packed 5-5-5 value into IR1-3 (each channel *0x80).
func (g *GTE) writeIRGB(value uint32) {
	g.ir[0] = int16((value & 0x1F) * 0x80)
	g.ir[1] = int16(((value >> 5) & 0x1F) * 0x80)
	g.ir[2] = int16(((value >> 10) & 0x1F) * 0x80)
}

func pack16(lo, hi uint16) uint32 { return uint32(lo) | uint32(hi)<<16 }

// ReadControl implements cpu.Coprocessor2: reads one of the 32 COP2
// control registers (rotation/light/color matrices, translation,
// background/far-color vectors, screen offset, projection plane
// distance, depth queue params, z-scale factors, FLAG).
func (g *GTE) ReadControl(reg uint32) uint32 {
	switch reg {
	case 0:
		return pack16(uint16(g.rotation[0][0]), uint16(g.rotation[0][1]))
	case 1:
		return pack16(uint16(g.rotation[0][2]), uint16(g.rotation[1][0]))
	case 2:
		return pack16(uint16(g.rotation[1][1]), uint16(g.rotation[1][2]))
	case 3:
		return pack16(uint16(g.rotation[2][0]), uint16(g.rotation[2][1]))
	case 4:
		return uint32(int32(g.rotation[2][2]))
	case 5:
		return uint32(g.translation[0])
	case 6:
		return uint32(g.translation[1])
	case 7:
		return uint32(g.translation[2])
	case 8:
		return pack16(uint16(g.lightMatrix[0][0]), uint16(g.lightMatrix[0][1]))
	case 9:
		return pack16(uint16(g.lightMatrix[0][2]), uint16(g.lightMatrix[1][0]))
	case 10:
		return pack16(uint16(g.lightMatrix[1][1]), uint16(g.lightMatrix[1][2]))
	case 11:
		return pack16(uint16(g.lightMatrix[2][0]), uint16(g.lightMatrix[2][1]))
	case 12:
		return uint32(int32(g.lightMatrix[2][2]))
	case 13:
		return uint32(g.backgroundColor[0])
	case 14:
		return uint32(g.backgroundColor[1])
	case 15:
		return uint32(g.backgroundColor[2])
	case 16:
		return pack16(uint16(g.colorMatrix[0][0]), uint16(g.colorMatrix[0][1]))
	case 17:
		return pack16(uint16(g.colorMatrix[0][2]), uint16(g.colorMatrix[1][0]))
	case 18:
		return pack16(uint16(g.colorMatrix[1][1]), uint16(g.colorMatrix[1][2]))
	case 19:
		return pack16(uint16(g.colorMatrix[2][0]), uint16(g.colorMatrix[2][1]))
	case 20:
		return uint32(int32(g.colorMatrix[2][2]))
	case 21:
		return uint32(g.farColor[0])
	case 22:
		return uint32(g.farColor[1])
	case 23:
		return uint32(g.farColor[2])
	case 24:
		return uint32(g.screenOffsetX)
	case 25:
		return uint32(g.screenOffsetY)
	case 26:
		return uint32(int32(g.projectionPlaneDistance))
	case 27:
		return uint32(int32(g.depthQueueB))
	case 28:
		return uint32(g.depthQueueA)
	case 29:
		return uint32(int32(g.zScaleFactor3))
	case 30:
		return uint32(int32(g.zScaleFactor4))
	case 31:
		return g.flags
	default:
		return 0
	}
}

// WriteControl implements cpu.Coprocessor2.
func (g *GTE) WriteControl(reg uint32, value uint32) {
	switch reg {
	case 0:
		g.rotation[0][0], g.rotation[0][1] = int16(value), int16(value>>16)
	case 1:
		g.rotation[0][2], g.rotation[1][0] = int16(value), int16(value>>16)
	case 2:
		g.rotation[1][1], g.rotation[1][2] = int16(value), int16(value>>16)
	case 3:
		g.rotation[2][0], g.rotation[2][1] = int16(value), int16(value>>16)
	case 4:
		g.rotation[2][2] = int16(value)
	case 5:
		g.translation[0] = int32(value)
	case 6:
		g.translation[1] = int32(value)
	case 7:
		g.translation[2] = int32(value)
	case 8:
		g.lightMatrix[0][0], g.lightMatrix[0][1] = int16(value), int16(value>>16)
	case 9:
		g.lightMatrix[0][2], g.lightMatrix[1][0] = int16(value), int16(value>>16)
	case 10:
		g.lightMatrix[1][1], g.lightMatrix[1][2] = int16(value), int16(value>>16)
	case 11:
		g.lightMatrix[2][0], g.lightMatrix[2][1] = int16(value), int16(value>>16)
	case 12:
		g.lightMatrix[2][2] = int16(value)
	case 13:
		g.backgroundColor[0] = int32(value)
	case 14:
		g.backgroundColor[1] = int32(value)
	case 15:
		g.backgroundColor[2] = int32(value)
	case 16:
		g.colorMatrix[0][0], g.colorMatrix[0][1] = int16(value), int16(value>>16)
	case 17:
		g.colorMatrix[0][2], g.colorMatrix[1][0] = int16(value), int16(value>>16)
	case 18:
		g.colorMatrix[1][1], g.colorMatrix[1][2] = int16(value), int16(value>>16)
	case 19:
		g.colorMatrix[2][0], g.colorMatrix[2][1] = int16(value), int16(value>>16)
	case 20:
		g.colorMatrix[2][2] = int16(value)
	case 21:
		g.farColor[0] = int32(value)
	case 22:
		g.farColor[1] = int32(value)
	case 23:
		g.farColor[2] = int32(value)
	case 24:
		g.screenOffsetX = int32(value)
	case 25:
		g.screenOffsetY = int32(value)
	case 26:
		g.projectionPlaneDistance = int16(value)
	case 27:
		g.depthQueueB = int16(value)
	case 28:
		g.depthQueueA = int32(value)
	case 29:
		g.zScaleFactor3 = int16(value)
	case 30:
		g.zScaleFactor4 = int16(value)
	case 31:
		g.flags = value & 0x7FFFF000
		if g.flags&errorCheckedMask != 0 {
			g.flags |= FlagError
		}
	}
}
