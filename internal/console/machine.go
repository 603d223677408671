package console

import (
	"github.com/pkg/errors"

	"github.com/retrocore/gopsx/internal/cdrom"
	"github.com/retrocore/gopsx/internal/cpu"
	"github.com/retrocore/gopsx/internal/dma"
	"github.com/retrocore/gopsx/internal/gpu"
	"github.com/retrocore/gopsx/internal/gte"
	"github.com/retrocore/gopsx/internal/irq"
	"github.com/retrocore/gopsx/internal/mdec"
	"github.com/retrocore/gopsx/internal/memcard"
	"github.com/retrocore/gopsx/internal/memmap"
	"github.com/retrocore/gopsx/internal/pad"
	"github.com/retrocore/gopsx/internal/sched"
	"github.com/retrocore/gopsx/internal/spu"
	"github.com/retrocore/gopsx/internal/timers"
)

// I/O-page offsets (from memmap.IOBase), per spec.md §4's MemoryMap.
const (
	offMemoryControl = 0x000
	offPad           = 0x040
	offIRQ           = 0x070
	offDMA           = 0x080
	offTimers        = 0x100
	offCDROM         = 0x800
	offGPU           = 0x810
	offMDEC          = 0x820
	offSPU           = 0xC00

	sizeMemoryControl = 0x24
	sizePad           = 0x10
	sizeIRQ           = 0x08
	sizeDMA           = 0x80
	sizeTimers        = 0x30
	sizeCDROM         = 0x04
	sizeGPU           = 0x08
	sizeMDEC          = 0x08
	sizeSPU           = 0x200
)

// Machine is the root struct owning every peripheral and driving the
// CPU interpreter loop, mirroring the teacher's jeebie.Emulator/DMG:
// one struct wiring a CPU, a video unit and a memory bus, exposing
// RunUntilFrame and the debugger-control methods the host binary
// drives.
type Machine struct {
	Bus   *memmap.Bus
	CPU   *cpu.CPU
	GTE   *gte.GTE
	IRQ   *irq.Control
	Sched *sched.Manager
	DMA   *dma.Controller
	GPU   *gpu.GPU
	CDROM *cdrom.Drive
	SPU   *spu.SPU
	MDEC  *mdec.Decoder
	Timers *timers.Timers
	Pad   *pad.ControllerPorts
	MemCtl *memmap.MemoryControl

	memCards [2]*memcard.Card

	renderer Renderer
	audio    AudioQueue

	paused         bool
	muted          bool
	fullscreen     bool
	resolutionScale int

	frameCount       uint64
	instructionCount uint64
}

// New constructs a fully wired, reset Machine. renderer/audio may be
// nil, in which case NullRenderer/NullAudioQueue are used (matching
// the teacher's headless backend default).
func New(renderer Renderer, audio AudioQueue) *Machine {
	if renderer == nil {
		renderer = &NullRenderer{}
	}
	if audio == nil {
		audio = &NullAudioQueue{}
	}

	m := &Machine{
		Bus:    memmap.NewBus(),
		IRQ:    irq.New(),
		Sched:  sched.NewManager(),
		GTE:    gte.New(),
		MemCtl: memmap.NewMemoryControl(),

		renderer:        renderer,
		audio:           audio,
		resolutionScale: 1,
	}

	m.CPU = cpu.New(m.Bus, m.IRQ, m.Sched)
	m.CPU.GTE = m.GTE

	m.DMA = dma.New(m.Bus.RAM, m.IRQ, m.Sched)
	m.GPU = gpu.New(m.Sched, renderer)
	m.CDROM = cdrom.New(m.IRQ, m.Sched)
	m.SPU = spu.New(m.IRQ, m.Sched)
	m.SPU.SetAudioSink(audio)
	m.MDEC = mdec.New(m.Sched, m.DMA)
	m.Timers = timers.New(m.IRQ)
	m.Timers.SetDotDividerFunc(m.GPU.DotDivider)
	m.Pad = pad.New(m.IRQ, m.Sched)

	m.DMA.AttachPort(dma.MDecIn, m.MDEC)
	m.DMA.AttachPort(dma.MDecOut, m.MDEC)
	m.DMA.AttachPort(dma.GPU, m.GPU)
	m.DMA.AttachPort(dma.CDROM, m.CDROM)
	m.DMA.AttachPort(dma.SPU, m.SPU)

	m.GPU.SetVBlankHook(func() {
		m.IRQ.Raise(irq.VBlank)
		m.Timers.NotifyVBlank()
		m.frameCount++
	})
	m.GPU.SetHBlankHook(func(ticks int64) {
		m.Timers.NotifyHBlank()
	})

	m.Bus.Register("memctl", offMemoryControl, sizeMemoryControl, m.MemCtl)
	m.Bus.Register("pad", offPad, sizePad, m.Pad)
	m.Bus.Register("irq", offIRQ, sizeIRQ, irqPeripheral{m.IRQ})
	m.Bus.Register("dma", offDMA, sizeDMA, m.DMA)
	m.Bus.Register("timers", offTimers, sizeTimers, timersPeripheral{m.Timers})
	m.Bus.Register("cdrom", offCDROM, sizeCDROM, m.CDROM)
	m.Bus.Register("gpu", offGPU, sizeGPU, m.GPU)
	m.Bus.Register("mdec", offMDEC, sizeMDEC, m.MDEC)
	m.Bus.Register("spu", offSPU, sizeSPU, spuPeripheral{m.SPU})

	m.Reset()
	return m
}

// Reset restores every peripheral to its power-on state, in the order
// spec.md §3's ownership notes require: the event manager first, so
// peripherals re-scheduling events during their own Reset land on a
// clean clock.
func (m *Machine) Reset() {
	m.Sched.Reset()
	m.CPU.Reset()
	m.GTE.Reset()
	m.DMA.Reset()
	m.GPU.Reset()
	m.CDROM.Reset()
	m.SPU.Reset()
	m.MDEC.Reset()
	m.Pad.Reset()
	m.Timers.Reset()
	m.IRQ.Reset()
}

// LoadBIOS installs a 512KiB BIOS image and resets the CPU so it
// starts executing the BIOS shell's boot vector.
func (m *Machine) LoadBIOS(data []byte) error {
	if err := m.Bus.LoadBIOS(data); err != nil {
		return errors.Wrap(err, "console: loading BIOS")
	}
	m.Reset()
	return nil
}

// SetCDImage attaches a disc image to the CD-ROM drive.
func (m *Machine) SetCDImage(img CDImage) { m.CDROM.SetImage(img) }

// SetController attaches a gamepad device to a controller port slot.
func (m *Machine) SetController(slot int, c *pad.Controller) { m.Pad.SetController(slot, c) }

// SetMemoryCard formats (if new) and attaches a memory card to a port
// slot.
func (m *Machine) SetMemoryCard(slot int, card *memcard.Card) {
	m.memCards[slot] = card
	m.Pad.SetMemoryCard(slot, pad.NewMemoryCard(card))
}

// Step executes exactly one CPU instruction and advances every
// cycle-driven peripheral by the same amount, draining any scheduler
// events that came due.
func (m *Machine) Step() {
	m.CPU.Step()
	m.Timers.AddCycles(1)
	for m.Sched.ReadyForNextEvent() {
		m.Sched.UpdateNextEvent()
	}
	m.instructionCount++
}

// RunUntilFrame executes instructions until a VBlank has presented a
// frame (or the Machine is paused), mirroring the teacher's
// DMG.RunUntilFrame loop shape.
func (m *Machine) RunUntilFrame() {
	if m.paused {
		return
	}
	startFrame := m.frameCount
	for m.frameCount == startFrame {
		m.Step()
	}
}

// SetPaused toggles whether RunUntilFrame executes any instructions.
func (m *Machine) SetPaused(paused bool) { m.paused = paused }

// Paused reports the current pause state.
func (m *Machine) Paused() bool { return m.paused }

// SetMuted silences (without disconnecting) the audio queue by
// swapping in a NullAudioQueue; restoring unmutes.
func (m *Machine) SetMuted(muted bool) {
	m.muted = muted
	if muted {
		m.SPU.SetAudioSink(&NullAudioQueue{})
	} else {
		m.SPU.SetAudioSink(m.audio)
	}
}

// Muted reports the current mute state.
func (m *Machine) Muted() bool { return m.muted }

// FrameCount returns the number of VBlank-presented frames so far.
func (m *Machine) FrameCount() uint64 { return m.frameCount }

// InstructionCount returns the number of CPU instructions executed so
// far.
func (m *Machine) InstructionCount() uint64 { return m.instructionCount }

// SetFullscreen records the host window's fullscreen toggle. The core
// does no windowing itself (spec.md §6 treats window creation as an
// external collaborator); this is state the host reads back when it
// next builds its window.
func (m *Machine) SetFullscreen(fullscreen bool) { m.fullscreen = fullscreen }

// Fullscreen reports the current fullscreen flag.
func (m *Machine) Fullscreen() bool { return m.fullscreen }

// SetResolutionScale records the host's integer upscale factor for
// the presented frame (the +/− host hotkeys from spec.md §6). n
// is clamped to at least 1.
func (m *Machine) SetResolutionScale(n int) {
	if n < 1 {
		n = 1
	}
	m.resolutionScale = n
}

// ResolutionScale returns the current upscale factor.
func (m *Machine) ResolutionScale() int { return m.resolutionScale }
