// Package gpu implements the GP0/GP1 command processor described in
// spec.md §4.5: a 16-word command FIFO driven as a small state
// machine, a 1024x512x16bpp VRAM, and CRT timing that derives VBlank/
// hblank/Timer ticks from the GPU's own clock domain. It is grounded
// on the teacher's PPU package for the state-machine shape (an Idle/
// accumulate/execute FIFO loop driving a pixel buffer) and on
// original_source GPU.h/GpuDefs.h for the PSX-specific command
// layout, generalized from 8x8 tile fetches to arbitrary polygon/line/
// rectangle primitives.
package gpu

import (
	"log/slog"

	"github.com/retrocore/gopsx/internal/bitfield"
	"github.com/retrocore/gopsx/internal/sched"
)

const (
	VRAMWidth  = 1024
	VRAMHeight = 512
)

// state is the GP0 command FIFO's small state machine.
type state int

const (
	stateIdle state = iota
	stateParameters
	stateWritingVRAM
	stateReadingVRAM
	statePolyLine
)

// Renderer is the host-facing sink for completed primitives and VRAM
// mutations (spec.md §6 EXTERNAL INTERFACES). The core never draws
// directly to a window; it calls back into whatever the host wired.
type Renderer interface {
	DrawPixel(x, y int, color uint16)
	PresentFrame()
}

type rect struct {
	x, y, w, h int
}

// GPU is the drawing/display-control command processor.
type GPU struct {
	vram [VRAMHeight][VRAMWidth]uint16

	st      state
	pending []uint32
	expect  int
	cmdFn   func(params []uint32)

	vramRect   rect
	vramCursor int

	status bitfield.Word32
	// GP0(E1h) draw mode bits, mirrored into status.
	texPageX, texPageY   uint32
	semiTransparency     uint32
	texPageColors        uint32
	ditherEnabled        bool
	drawToDisplayEnabled bool
	textureDisabled      bool
	texturedRectFlipX    bool
	texturedRectFlipY    bool

	drawAreaLeft, drawAreaTop, drawAreaRight, drawAreaBottom int
	drawOffsetX, drawOffsetY                                 int
	texWindowMaskX, texWindowMaskY, texWindowOffsetX, texWindowOffsetY uint32

	forceMaskBit  bool
	checkMaskBit  bool

	displayEnabled  bool
	displayAreaX    int
	displayAreaY    int
	hRangeStart     int
	hRangeEnd       int
	vRangeStart     int
	vRangeEnd       int
	videoMode       bool // false=NTSC, true=PAL
	colorDepth24    bool
	interlaced      bool
	reverseFlag     bool
	horizontalRes   uint32
	verticalRes     uint32

	scanline    int
	dotFraction int
	gpuClock    int64 // accumulated GPU clock ticks this scanline
	oddFrame    bool
	inVBlank    bool

	renderer Renderer
	sched    *sched.Manager
	clockEvt *sched.Event

	onVBlank   func()
	onHBlank   func(ticks int64)

	log *slog.Logger
}

// CRT timing constants, per spec.md §4.5.
const (
	ntscLines       = 263
	ntscClocksPerLn = 3413
	palLines        = 314
	palClocksPerLn  = 3406

	// GPU clock runs at 11/7 of the CPU clock.
	gpuClockNumerator   = 11
	gpuClockDenominator = 7
)

// New constructs a reset GPU wired to the given renderer and
// scheduler.
func New(scheduler *sched.Manager, renderer Renderer) *GPU {
	g := &GPU{
		renderer: renderer,
		sched:    scheduler,
		log:      slog.With("component", "gpu"),
	}
	g.clockEvt = scheduler.CreateEvent("gpu-crt", g.onClockEvent)
	g.Reset()
	return g
}

// SetVBlankHook / SetHBlankHook wire the top-level Machine's
// cross-peripheral callbacks (InterruptControl.Raise(VBlank), Timers
// dot-clock/hblank ticks) without the GPU importing those packages
// directly, per spec.md §5's non-owning back-reference policy.
func (g *GPU) SetVBlankHook(fn func())            { g.onVBlank = fn }
func (g *GPU) SetHBlankHook(fn func(ticks int64)) { g.onHBlank = fn }

// Reset restores power-on GPU state and reschedules the CRT clock.
func (g *GPU) Reset() {
	g.st = stateIdle
	g.pending = g.pending[:0]
	g.status = 0x14802000
	g.scanline = 0
	g.gpuClock = 0
	g.clockEvt.Schedule(sched.Cycle(clocksPerLine(g.videoMode)))
}

func clocksPerLine(pal bool) int {
	if pal {
		return palClocksPerLn
	}
	return ntscClocksPerLn
}

func totalLines(pal bool) int {
	if pal {
		return palLines
	}
	return ntscLines
}

// ReadStatus returns GPUSTAT (0x1F801814).
func (g *GPU) ReadStatus() uint32 {
	s := g.status
	s = s.SetBit(19, g.colorDepth24)
	s = s.SetBit(20, g.interlaced)
	s = s.SetBit(22, g.textureDisabled)
	s = s.SetBit(23, g.horizontalRes == 0) // horizontal resolution 368 flag, simplified
	s = s.SetBit(25, g.readyToReceiveCmd())
	s = s.SetBit(26, g.readyToSendVRAM())
	s = s.SetBit(27, g.readyToReceiveDMABlock())
	s = s.SetBit(28, g.dmaDirection() != 0)
	s = s.SetBit(31, g.oddFrame && g.interlaced)
	return uint32(s)
}

func (g *GPU) readyToReceiveCmd() bool    { return g.st == stateIdle }
func (g *GPU) readyToSendVRAM() bool      { return g.st == stateReadingVRAM }
func (g *GPU) readyToReceiveDMABlock() bool {
	return g.st == stateIdle || g.st == stateParameters || g.st == stateWritingVRAM
}
func (g *GPU) dmaDirection() uint32 { return g.status.Field(29, 2) }

// DotDivider returns the GPU-clock-to-dot-clock ratio for the current
// horizontal resolution, per spec.md §4.5/§4.8: the 2-bit resolution
// field selects among the 256/320/512/640-wide dot dividers.
func (g *GPU) DotDivider() int {
	switch g.horizontalRes & 0x3 {
	case 1:
		return 8
	case 2:
		return 5
	case 3:
		return 4
	default:
		return 10
	}
}

// GPUREAD reads the data port: the next VRAM word during ReadingVRam,
// or 0 otherwise (no GPUREAD value is latched).
func (g *GPU) GPUREAD() uint32 {
	if g.st != stateReadingVRAM {
		return 0
	}
	lo := g.vramWordAt(g.vramCursor)
	g.vramCursor++
	var hi uint32
	if g.vramCursor < g.vramRect.w*g.vramRect.h {
		hi = uint32(g.vramWordAt(g.vramCursor))
		g.vramCursor++
	}
	if g.vramCursor >= g.vramRect.w*g.vramRect.h {
		g.st = stateIdle
	}
	return uint32(lo) | hi<<16
}

func (g *GPU) vramWordAt(index int) uint16 {
	x := (g.vramRect.x + index%g.vramRect.w) % VRAMWidth
	y := (g.vramRect.y + index/g.vramRect.w) % VRAMHeight
	return g.vram[y][x]
}

// DMAReadWord implements dma.Port for GPU-to-RAM transfers.
func (g *GPU) DMAReadWord() uint32 { return g.GPUREAD() }

// DMAWriteWord implements dma.Port for RAM-to-GPU command-list DMA.
func (g *GPU) DMAWriteWord(v uint32) { g.WriteGP0(v) }

// DMARequest implements dma.Port.
func (g *GPU) DMARequest() bool {
	if g.dmaDirection() == 2 {
		return g.readyToReceiveDMABlock()
	}
	return g.readyToSendVRAM()
}

// WriteGP0 pushes one 32-bit GP0 word through the command state
// machine, per spec.md §4.5.
func (g *GPU) WriteGP0(word uint32) {
	switch g.st {
	case stateIdle:
		g.beginCommand(word)
	case stateParameters:
		g.pending = append(g.pending, word)
		if len(g.pending) >= g.expect {
			fn := g.cmdFn
			params := g.pending
			g.st = stateIdle
			g.pending = nil
			if fn != nil {
				fn(params)
			}
		}
	case stateWritingVRAM:
		g.writeVRAMWord(word)
	case statePolyLine:
		g.pending = append(g.pending, word)
		if word&0xF000F000 == 0x50005000 {
			fn := g.cmdFn
			params := g.pending
			g.st = stateIdle
			g.pending = nil
			if fn != nil {
				fn(params)
			}
		}
	case stateReadingVRAM:
		// GP0 writes are ignored while draining VRAM to the host.
	}
}

func (g *GPU) writeVRAMWord(word uint32) {
	g.vramCursor += g.writeVRAMPixel(g.vramCursor, uint16(word))
	if g.vramCursor < g.vramRect.w*g.vramRect.h {
		g.vramCursor += g.writeVRAMPixel(g.vramCursor, uint16(word>>16))
	}
	if g.vramCursor >= g.vramRect.w*g.vramRect.h {
		g.st = stateIdle
	}
}

// writeVRAMPixel writes one pixel respecting the mask bits, returning
// 1 (always advances the cursor regardless of whether the write was
// masked out).
func (g *GPU) writeVRAMPixel(index int, pixel uint16) int {
	x := (g.vramRect.x + index%g.vramRect.w) % VRAMWidth
	y := (g.vramRect.y + index/g.vramRect.w) % VRAMHeight
	if g.checkMaskBit && g.vram[y][x]&0x8000 != 0 {
		return 1
	}
	if g.forceMaskBit {
		pixel |= 0x8000
	}
	g.vram[y][x] = pixel
	return 1
}

// beginCommand decodes a fresh command word in the Idle state.
func (g *GPU) beginCommand(word uint32) {
	opcode := word >> 24
	switch {
	case opcode == 0x00: // NOP
	case opcode == 0x01: // clear cache, no-op for this core
	case opcode == 0x02:
		g.pending = []uint32{word}
		g.expect = 3
		g.st = stateParameters
		g.cmdFn = g.execFillRectangle
	case opcode >= 0x20 && opcode <= 0x3F:
		g.beginPolygon(word)
	case opcode >= 0x40 && opcode <= 0x5F:
		g.beginLine(word)
	case opcode >= 0x60 && opcode <= 0x7F:
		g.beginRectangle(word)
	case opcode == 0x80:
		g.pending = []uint32{word}
		g.expect = 4
		g.st = stateParameters
		g.cmdFn = g.execVRAMToVRAM
	case opcode == 0xA0:
		g.pending = []uint32{word}
		g.expect = 3
		g.st = stateParameters
		g.cmdFn = g.beginCPUToVRAM
	case opcode == 0xC0:
		g.pending = []uint32{word}
		g.expect = 3
		g.st = stateParameters
		g.cmdFn = g.beginVRAMToCPU
	case opcode == 0xE1:
		g.execDrawMode(word)
	case opcode == 0xE2:
		g.execTexWindow(word)
	case opcode == 0xE3:
		g.execDrawAreaTopLeft(word)
	case opcode == 0xE4:
		g.execDrawAreaBottomRight(word)
	case opcode == 0xE5:
		g.execDrawOffset(word)
	case opcode == 0xE6:
		g.execMaskBit(word)
	default:
		g.log.Debug("unhandled GP0 opcode", "opcode", opcode)
	}
}

func (g *GPU) execDrawMode(word uint32) {
	w := bitfield.Word32(word)
	g.texPageX = w.Field(0, 4)
	g.texPageY = w.Field(4, 1)
	g.semiTransparency = w.Field(5, 2)
	g.texPageColors = w.Field(7, 2)
	g.ditherEnabled = w.Bit(9)
	g.drawToDisplayEnabled = w.Bit(10)
	g.textureDisabled = w.Bit(11)
	g.texturedRectFlipX = w.Bit(12)
	g.texturedRectFlipY = w.Bit(13)
}

func (g *GPU) execTexWindow(word uint32) {
	w := bitfield.Word32(word)
	g.texWindowMaskX = w.Field(0, 5)
	g.texWindowMaskY = w.Field(5, 5)
	g.texWindowOffsetX = w.Field(10, 5)
	g.texWindowOffsetY = w.Field(15, 5)
}

func (g *GPU) execDrawAreaTopLeft(word uint32) {
	g.drawAreaLeft = int(word & 0x3FF)
	g.drawAreaTop = int((word >> 10) & 0x3FF)
}

func (g *GPU) execDrawAreaBottomRight(word uint32) {
	g.drawAreaRight = int(word & 0x3FF)
	g.drawAreaBottom = int((word >> 10) & 0x3FF)
}

func (g *GPU) execDrawOffset(word uint32) {
	g.drawOffsetX = signExtend11(word & 0x7FF)
	g.drawOffsetY = signExtend11((word >> 11) & 0x7FF)
}

func signExtend11(v uint32) int {
	if v&0x400 != 0 {
		return int(v) - 0x800
	}
	return int(v)
}

func (g *GPU) execMaskBit(word uint32) {
	g.forceMaskBit = word&1 != 0
	g.checkMaskBit = word&2 != 0
}

// execFillRectangle implements the VRAM fill command (opcode 0x02),
// decoding position/size per spec.md §4.5's fill rule.
func (g *GPU) execFillRectangle(params []uint32) {
	color := params[0] & 0xFFFFFF
	x := int(params[1] & 0x3F0)
	y := int(params[1]>>16) & 0x1FF
	w := roundUp16(int(params[2] & 0x3FF))
	h := int(params[2]>>16) & 0x1FF
	pixel := rgb888To555(color)
	for dy := 0; dy < h; dy++ {
		for dx := 0; dx < w; dx++ {
			g.vram[(y+dy)%VRAMHeight][(x+dx)%VRAMWidth] = pixel
		}
	}
}

func roundUp16(w int) int { return (w + 0xF) &^ 0xF }

func rgb888To555(c uint32) uint16 {
	r := uint16(c&0xFF) >> 3
	gg := uint16((c>>8)&0xFF) >> 3
	b := uint16((c>>16)&0xFF) >> 3
	return r | gg<<5 | b<<10
}

// beginCPUToVRAM handles GP0(A0h): set up the WritingVRam destination
// rectangle from its two parameter words.
func (g *GPU) beginCPUToVRAM(params []uint32) {
	x := int(params[1] & 0x3FF)
	y := int((params[1] >> 16) & 0x1FF)
	w := int(((params[2]&0x3FF)-1)&0x3FF) + 1
	h := int(((params[2]>>16)&0x1FF-1)&0x1FF) + 1
	g.vramRect = rect{x: x, y: y, w: w, h: h}
	g.vramCursor = 0
	g.st = stateWritingVRAM
}

// beginVRAMToCPU handles GP0(C0h): the mirror image of A0h, draining
// through GPUREAD instead of GP0.
func (g *GPU) beginVRAMToCPU(params []uint32) {
	x := int(params[1] & 0x3FF)
	y := int((params[1] >> 16) & 0x1FF)
	w := int(((params[2]&0x3FF)-1)&0x3FF) + 1
	h := int(((params[2]>>16)&0x1FF-1)&0x1FF) + 1
	g.vramRect = rect{x: x, y: y, w: w, h: h}
	g.vramCursor = 0
	g.st = stateReadingVRAM
}

// execVRAMToVRAM handles GP0(80h): a direct VRAM copy.
func (g *GPU) execVRAMToVRAM(params []uint32) {
	srcX := int(params[1] & 0x3FF)
	srcY := int((params[1] >> 16) & 0x1FF)
	dstX := int(params[2] & 0x3FF)
	dstY := int((params[2] >> 16) & 0x1FF)
	w := int(((params[3]&0x3FF)-1)&0x3FF) + 1
	h := int(((params[3]>>16)&0x1FF-1)&0x1FF) + 1
	for dy := 0; dy < h; dy++ {
		for dx := 0; dx < w; dx++ {
			sx, sy := (srcX+dx)%VRAMWidth, (srcY+dy)%VRAMHeight
			tx, ty := (dstX+dx)%VRAMWidth, (dstY+dy)%VRAMHeight
			if g.checkMaskBit && g.vram[ty][tx]&0x8000 != 0 {
				continue
			}
			px := g.vram[sy][sx]
			if g.forceMaskBit {
				px |= 0x8000
			}
			g.vram[ty][tx] = px
		}
	}
}

// WriteGP1 executes a display-control command immediately (GP1 has no
// FIFO/parameter accumulation in hardware).
func (g *GPU) WriteGP1(word uint32) {
	opcode := word >> 24
	switch opcode {
	case 0x00:
		g.Reset()
	case 0x01:
		g.pending = nil
		g.st = stateIdle
	case 0x02:
		// acknowledge GPU interrupt: no-op, IRQ line owned by irq.Control
	case 0x03:
		g.displayEnabled = word&1 == 0
	case 0x04:
		g.status = g.status.WithField(29, 2, word&3)
	case 0x05:
		g.displayAreaX = int(word & 0x3FF)
		g.displayAreaY = int((word >> 10) & 0x1FF)
	case 0x06:
		g.hRangeStart = int(word & 0xFFF)
		g.hRangeEnd = int((word >> 12) & 0xFFF)
	case 0x07:
		g.vRangeStart = int(word & 0x3FF)
		g.vRangeEnd = int((word >> 10) & 0x3FF)
	case 0x08:
		g.horizontalRes = word & 0x3
		g.verticalRes = (word >> 2) & 1
		g.videoMode = word&(1<<3) != 0
		g.colorDepth24 = word&(1<<4) != 0
		g.interlaced = word&(1<<5) != 0
	}
}

// ReadRegister/WriteRegister implement memmap.Peripheral over the
// GP0 (0x1F801810)/GP1 (0x1F801814) and GPUREAD/GPUSTAT pair.
func (g *GPU) ReadRegister(offset uint32, width int) uint32 {
	switch offset {
	case 0:
		return g.GPUREAD()
	case 4:
		return g.ReadStatus()
	default:
		return 0
	}
}

func (g *GPU) WriteRegister(offset uint32, width int, value uint32) {
	switch offset {
	case 0:
		g.WriteGP0(value)
	case 4:
		g.WriteGP1(value)
	}
}

// onClockEvent is the CRT timing tick: advances the scanline counter,
// raising VBlank/hblank hooks at the boundaries described in
// spec.md §4.5.
func (g *GPU) onClockEvent(cycles sched.Cycle) {
	g.gpuClock += int64(cycles) * gpuClockNumerator / gpuClockDenominator

	linesThisFrame := totalLines(g.videoMode)
	clocksPerLn := clocksPerLine(g.videoMode)

	for g.gpuClock >= int64(clocksPerLn) {
		g.gpuClock -= int64(clocksPerLn)
		g.scanline++
		if g.onHBlank != nil {
			g.onHBlank(int64(clocksPerLn))
		}
		if g.scanline >= linesThisFrame {
			g.scanline = 0
			g.oddFrame = !g.oddFrame
			if g.onVBlank != nil {
				g.onVBlank()
			}
			g.renderer.PresentFrame()
		}
	}
	g.clockEvt.Schedule(sched.Cycle(clocksPerLn))
}
