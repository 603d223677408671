// Package timers implements the three 16-bit counters described in
// spec.md §4.8, generalizing the teacher's single DIV+TIMA pair
// (jeebie/memory.Timer) into three independently clocked counters with
// PSX-specific blank synchronization instead of falling-edge
// system-counter-bit detection.
package timers

import (
	"log/slog"

	"github.com/retrocore/gopsx/internal/irq"
)

// clockSource selects what increments a counter, per spec.md §4.8.
type clockSource uint32

// syncMode is the 2-bit gating mode, meaning differs per timer index.
type syncMode uint32

// index identifies one of the three counters and its fixed per-index
// clock source table.
type index int

const (
	Timer0 index = iota
	Timer1
	Timer2
	timerCount
)

// gpuClockNumerator/Denominator mirrors the GPU's own CPU-to-GPU clock
// ratio (internal/gpu), since Timer0's dot clock and Timer1's hblank
// clock run off the GPU clock domain rather than the CPU's.
const (
	gpuClockNumerator   = 11
	gpuClockDenominator = 7
)

// Mode bit layout, per original_source Timers.h's CounterMode union.
const (
	bitSyncEnable   = 0
	bitSyncMode     = 1 // 2 bits
	bitResetMode    = 3
	bitIRQOnTarget  = 4
	bitIRQOnMax     = 5
	bitIRQRepeat    = 6
	bitIRQToggle    = 7
	bitClockSource  = 8 // 2 bits
	bitNoIRQ        = 10
	bitReachedTgt   = 11
	bitReachedMax   = 12
)

// timer is one 16-bit counter plus its mode/target registers.
type timer struct {
	idx index

	counter uint32
	target  uint32

	syncEnable  bool
	syncMode    syncMode
	resetAtTgt  bool
	irqOnTarget bool
	irqOnMax    bool
	irqRepeat   bool
	irqToggle   bool
	clockSrc    clockSource

	noIRQ         bool
	reachedTarget bool
	reachedMax    bool

	irqLine    bool // current level of the pulsed/toggled irq output
	firedOnce  bool // one-shot latch: true once an irq has fired and irqRepeat==false
	paused     bool
	inBlank    bool
	dotFrac    int // Timer0 only: GPU clocks accumulated short of the next whole dot
}

func newTimer(idx index) *timer {
	t := &timer{idx: idx}
	t.reset()
	return t
}

func (t *timer) reset() {
	t.counter = 0
	t.target = 0
	t.syncEnable = false
	t.syncMode = 0
	t.resetAtTgt = false
	t.irqOnTarget = false
	t.irqOnMax = false
	t.irqRepeat = false
	t.irqToggle = false
	t.clockSrc = 0
	t.noIRQ = true
	t.reachedTarget = false
	t.reachedMax = false
	t.irqLine = false
	t.firedOnce = false
	t.paused = false
	t.inBlank = false
	t.dotFrac = 0
	t.updatePaused()
}

func (t *timer) readMode() uint32 {
	var v uint32
	if t.syncEnable {
		v |= 1 << bitSyncEnable
	}
	v |= uint32(t.syncMode) << bitSyncMode
	if t.resetAtTgt {
		v |= 1 << bitResetMode
	}
	if t.irqOnTarget {
		v |= 1 << bitIRQOnTarget
	}
	if t.irqOnMax {
		v |= 1 << bitIRQOnMax
	}
	if t.irqRepeat {
		v |= 1 << bitIRQRepeat
	}
	if t.irqToggle {
		v |= 1 << bitIRQToggle
	}
	v |= uint32(t.clockSrc) << bitClockSource
	if t.noIRQ {
		v |= 1 << bitNoIRQ
	}
	if t.reachedTarget {
		v |= 1 << bitReachedTgt
	}
	if t.reachedMax {
		v |= 1 << bitReachedMax
	}
	// reading clears the reached flags, per original_source.
	t.reachedTarget = false
	t.reachedMax = false
	return v
}

func (t *timer) writeMode(value uint32) {
	t.syncEnable = value&(1<<bitSyncEnable) != 0
	t.syncMode = syncMode((value >> bitSyncMode) & 0x3)
	t.resetAtTgt = value&(1<<bitResetMode) != 0
	t.irqOnTarget = value&(1<<bitIRQOnTarget) != 0
	t.irqOnMax = value&(1<<bitIRQOnMax) != 0
	t.irqRepeat = value&(1<<bitIRQRepeat) != 0
	t.irqToggle = value&(1<<bitIRQToggle) != 0
	t.clockSrc = clockSource((value >> bitClockSource) & 0x3)

	t.counter = 0
	t.noIRQ = true
	t.firedOnce = false
	t.irqLine = false
	t.updatePaused()
}

// usingSystemClock reports whether the currently selected clock
// source for this timer is the CPU system clock rather than an
// alternate (dot/hblank/system-div-8) source.
func (t *timer) usingSystemClock() bool {
	switch t.idx {
	case Timer0, Timer1:
		return t.clockSrc&0x1 == 0
	default: // Timer2
		return t.clockSrc&0x2 == 0
	}
}

// updatePaused applies Timer2's stop-sync-modes; Timer0/1 pausing is
// driven by blank-state transitions instead (see updateBlank).
func (t *timer) updatePaused() {
	if t.idx != Timer2 {
		return
	}
	if !t.syncEnable {
		t.paused = false
		return
	}
	// 0 or 3 = stop counter forever; 1 or 2 = free run.
	t.paused = t.syncMode == 0 || t.syncMode == 3
}

// updateBlank applies Timer0/1's hblank/vblank-gated sync modes on a
// blank-state edge (entering or leaving the relevant blank period).
func (t *timer) updateBlank(blanked bool) {
	if t.idx == Timer2 || !t.syncEnable {
		t.inBlank = blanked
		return
	}
	switch t.syncMode {
	case 0: // pause during blank
		t.paused = blanked
	case 1: // reset to 0 at blank edge (entering blank)
		if blanked && !t.inBlank {
			t.counter = 0
		}
	case 2: // reset at blank edge, pause outside blank
		if blanked && !t.inBlank {
			t.counter = 0
		}
		t.paused = !blanked
	case 3: // pause until one blank has occurred, then free run
		if blanked && !t.inBlank {
			t.syncEnable = false
			t.paused = false
		} else if !t.paused && !t.inBlank {
			t.paused = true
		}
	}
	t.inBlank = blanked
}

// tick advances the counter by n ticks of its active clock, signalling
// an irq line transition (pulse-low-one-cycle or toggle) the moment
// target or 0xFFFF is reached, per spec.md §4.8.
func (t *timer) tick(n uint32) (irqEdge bool) {
	if t.paused || n == 0 {
		return false
	}
	for i := uint32(0); i < n; i++ {
		t.counter++

		hitTarget := t.counter == t.target
		hitMax := t.counter == 0xFFFF

		if hitTarget {
			t.reachedTarget = true
		}
		if hitMax {
			t.reachedMax = true
		}

		if (hitTarget && t.resetAtTgt) || hitMax {
			t.counter = 0
		}

		shouldIRQ := (hitTarget && t.irqOnTarget) || (hitMax && t.irqOnMax)
		if shouldIRQ {
			if t.irqRepeat || !t.firedOnce {
				if t.fireIRQ() {
					irqEdge = true
				}
			}
			t.firedOnce = true
		}
	}
	return irqEdge
}

// fireIRQ applies the pulse/toggle irq output semantics and reports
// whether the transition newly asserts the irq line (pulse: always;
// toggle: only on the low-to-high edge).
func (t *timer) fireIRQ() bool {
	t.noIRQ = false
	if t.irqToggle {
		t.irqLine = !t.irqLine
		return t.irqLine
	}
	// pulse: briefly asserted, the caller raises the interrupt
	// once and the line is considered immediately released.
	t.irqLine = false
	return true
}

// Timers is the top-level ControllerPorts-adjacent peripheral driving
// all three counters from CPU cycles (system clock), GPU dot-clock
// ticks (Timer0), and GPU hblank/vblank edges (Timer1 clock source and
// Timer0/1 sync gating).
type Timers struct {
	t [timerCount]*timer

	irqCtl *irq.Control

	dotDivider func() int
	gpuDotFrac int64
	sysDiv8Rem uint32

	log *slog.Logger
}

// New constructs a reset Timers peripheral.
func New(irqCtl *irq.Control) *Timers {
	t := &Timers{
		irqCtl: irqCtl,
		log:    slog.With("component", "timers"),
	}
	for i := range t.t {
		t.t[i] = newTimer(index(i))
	}
	return t
}

// SetDotDividerFunc wires the GPU's current horizontal-resolution dot
// divider, a non-owning forward reference per spec.md §5 (GPU →
// Timers).
func (t *Timers) SetDotDividerFunc(fn func() int) { t.dotDivider = fn }

// Reset clears all three counters to power-on state.
func (t *Timers) Reset() {
	for _, tm := range t.t {
		tm.reset()
	}
	t.gpuDotFrac = 0
	t.sysDiv8Rem = 0
}

// Read/Write serve the 0x1F801100-sized timer register block: three
// 16-byte-spaced groups of Counter/Mode/Target. console's
// timersPeripheral adapts them to memmap.Peripheral.
func (t *Timers) Read(offset uint32, width int) uint32 {
	idx := index(offset / 0x10)
	if idx >= timerCount {
		return 0
	}
	switch (offset / 4) % 4 {
	case 0:
		return t.t[idx].counter
	case 1:
		return t.t[idx].readMode()
	case 2:
		return t.t[idx].target
	default:
		return 0
	}
}

func (t *Timers) Write(offset uint32, width int, value uint32) {
	idx := index(offset / 0x10)
	if idx >= timerCount {
		return
	}
	switch (offset / 4) % 4 {
	case 0:
		t.t[idx].counter = value & 0xFFFF
	case 1:
		t.t[idx].writeMode(value)
	case 2:
		t.t[idx].target = value & 0xFFFF
	}
}

// AddCycles charges CPU cycles to every timer using the system clock
// (directly or as Timer2's /8 divider), and separately accumulates the
// GPU-clock-domain dot clock for Timer0 when it is so configured,
// mirroring the teacher's memory.Timer.Tick(cycles) per-step idiom.
func (t *Timers) AddCycles(cpuCycles uint32) {
	t.tickTimer(Timer0, cpuCycles)
	t.tickTimer(Timer1, cpuCycles)
	t.tickTimer(Timer2, cpuCycles)

	if !t.t[Timer0].usingSystemClock() {
		t.tickDotClock(cpuCycles)
	}
}

func (t *Timers) tickTimer(i index, cpuCycles uint32) {
	tm := t.t[i]
	switch i {
	case Timer0, Timer1:
		if !tm.usingSystemClock() {
			return
		}
		t.raiseIfEdge(tm, tm.tick(cpuCycles))
	case Timer2:
		if tm.usingSystemClock() {
			t.raiseIfEdge(tm, tm.tick(cpuCycles))
			return
		}
		t.sysDiv8Rem += cpuCycles
		n := t.sysDiv8Rem / 8
		t.sysDiv8Rem %= 8
		if n > 0 {
			t.raiseIfEdge(tm, tm.tick(n))
		}
	}
}

// tickDotClock converts CPU cycles into GPU clocks (the same 11/7
// ratio the GPU itself uses) then into dots via the GPU's current
// resolution-dependent divider, advancing Timer0 continuously rather
// than only at hblank boundaries.
func (t *Timers) tickDotClock(cpuCycles uint32) {
	if t.dotDivider == nil {
		return
	}
	divider := t.dotDivider()
	if divider <= 0 {
		return
	}
	t.gpuDotFrac += int64(cpuCycles) * gpuClockNumerator
	gpuClocks := t.gpuDotFrac / gpuClockDenominator
	t.gpuDotFrac %= gpuClockDenominator

	t.t[Timer0].dotFrac += int(gpuClocks)
	dots := uint32(t.t[Timer0].dotFrac / divider)
	t.t[Timer0].dotFrac %= divider
	if dots > 0 {
		t.raiseIfEdge(t.t[Timer0], t.t[Timer0].tick(dots))
	}
}

// NotifyHBlank is called once per GPU scanline (GPU's onHBlank hook).
// Per original_source Timers.h, Counter 0's sync modes gate on hblank
// edges while Counter 1's hblank role is purely a clock source (it
// syncs on vblank instead, see NotifyVBlank). The GPU only signals one
// edge per scanline rather than separate hblank-enter/hblank-leave
// events, so the enter+leave pair is collapsed into back-to-back calls
// here -- a coarser approximation than true mid-line hblank timing but
// sufficient to drive Timer0's pause/reset sync modes correctly at
// scanline granularity.
func (t *Timers) NotifyHBlank() {
	if !t.t[Timer1].usingSystemClock() {
		t.raiseIfEdge(t.t[Timer1], t.t[Timer1].tick(1))
	}

	t.t[Timer0].updateBlank(true)
	t.t[Timer0].updateBlank(false)
}

// NotifyVBlank is called once per frame (GPU's onVBlank hook): it
// applies Timer1's vblank-gated sync modes.
func (t *Timers) NotifyVBlank() {
	t.t[Timer1].updateBlank(true)
	t.t[Timer1].updateBlank(false)
}

func (t *Timers) raiseIfEdge(tm *timer, edge bool) {
	if !edge || t.irqCtl == nil {
		return
	}
	t.log.Debug("timer irq", "index", tm.idx, "counter", tm.counter, "target", tm.target)
	switch tm.idx {
	case Timer0:
		t.irqCtl.Raise(irq.Timer0)
	case Timer1:
		t.irqCtl.Raise(irq.Timer1)
	case Timer2:
		t.irqCtl.Raise(irq.Timer2)
	}
}
