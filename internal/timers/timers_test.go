package timers

import (
	"testing"

	"github.com/retrocore/gopsx/internal/irq"
	"github.com/stretchr/testify/require"
)

func newTestTimers() (*Timers, *irq.Control) {
	ic := irq.New()
	return New(ic), ic
}

func TestCounterTargetModeRoundTrip(t *testing.T) {
	tm, _ := newTestTimers()
	tm.Write(0x08, 4, 0x1234) // Timer0 target
	require.Equal(t, uint32(0x1234), tm.Read(0x08, 4))

	tm.Write(0x04, 4, 1<<bitIRQOnTarget|1<<bitIRQRepeat)
	mode := tm.Read(0x04, 4)
	require.NotZero(t, mode&(1<<bitIRQOnTarget))
	require.NotZero(t, mode&(1<<bitNoIRQ), "noIRQ starts set until an irq fires")
}

func TestSystemClockCountsOnAddCycles(t *testing.T) {
	tm, _ := newTestTimers()
	tm.AddCycles(5)
	require.Equal(t, uint32(5), tm.Read(0x00, 4))
}

func TestTimer2Divide8ClockSource(t *testing.T) {
	tm, _ := newTestTimers()
	tm.Write(0x24, 4, uint32(2)<<bitClockSource) // Timer2 mode, clockSource=2 (system/8)
	tm.AddCycles(24)
	require.Equal(t, uint32(3), tm.Read(0x20, 4))
}

func TestIRQOnTargetResetsAtTargetWhenResetModeSet(t *testing.T) {
	tm, ic := newTestTimers()
	tm.Write(0x08, 4, 10) // target
	tm.Write(0x04, 4, 1<<bitResetMode|1<<bitIRQOnTarget|1<<bitIRQRepeat)
	tm.AddCycles(10)
	require.Equal(t, uint32(0), tm.Read(0x00, 4))
	require.True(t, ic.ReadStatus()&(1<<irq.Timer0) != 0)
}

func TestIRQOneShotDisablesFurtherIRQsUntilModeRewritten(t *testing.T) {
	tm, ic := newTestTimers()
	tm.Write(0x08, 4, 5)
	tm.Write(0x04, 4, 1<<bitIRQOnTarget) // irqRepeat=0: one-shot
	tm.AddCycles(5)
	require.True(t, ic.ReadStatus()&(1<<irq.Timer0) != 0)

	ic.Acknowledge(0) // clear pending
	tm.AddCycles(0xFFFF)
	require.False(t, ic.ReadStatus()&(1<<irq.Timer0) != 0, "one-shot must not refire without a mode rewrite")

	tm.Write(0x04, 4, 1<<bitIRQOnTarget) // rewriting mode clears the one-shot latch
	tm.Write(0x08, 4, 3)
	tm.AddCycles(3)
	require.True(t, ic.ReadStatus()&(1<<irq.Timer0) != 0)
}

func TestIRQToggleModeAlternatesOutputLevel(t *testing.T) {
	tm, _ := newTestTimers()
	tm.Write(0x08, 4, 4)
	tm.Write(0x04, 4, 1<<bitResetMode|1<<bitIRQOnTarget|1<<bitIRQRepeat|1<<bitIRQToggle)
	tm.AddCycles(4)
	require.True(t, tm.t[Timer0].irqLine)
	tm.AddCycles(4)
	require.False(t, tm.t[Timer0].irqLine)
}

func TestDotClockReachesTargetAfterEightHundredGpuCycles(t *testing.T) {
	tm, ic := newTestTimers()
	tm.SetDotDividerFunc(func() int { return 8 }) // 320-wide mode
	tm.Write(0x08, 4, 100)                        // target
	tm.Write(0x04, 4, 1<<bitIRQOnTarget|1<<bitClockSource) // clockSource bit0=1: dot clock

	// 800 GPU clocks == ceil(800*7/11) CPU cycles through the 11/7
	// ratio; round up so at least 800 GPU clocks have elapsed.
	cpuCycles := (uint32(800)*gpuClockDenominator + gpuClockNumerator - 1) / gpuClockNumerator
	tm.AddCycles(cpuCycles)

	require.Equal(t, uint32(100), tm.Read(0x00, 4))
	require.True(t, ic.ReadStatus()&(1<<irq.Timer0) != 0)
}

func TestSyncMode1ResetsCounterOnEachHblank(t *testing.T) {
	tm, _ := newTestTimers()
	tm.Write(0x04, 4, 1<<bitSyncEnable|1<<bitSyncMode) // Timer0 syncMode=1
	tm.AddCycles(50)
	require.NotZero(t, tm.Read(0x00, 4))
	tm.NotifyHBlank()
	require.Equal(t, uint32(0), tm.Read(0x00, 4))
}

func TestTimer2StopSyncModeNeverAdvances(t *testing.T) {
	tm, _ := newTestTimers()
	tm.Write(0x24, 4, 1<<bitSyncEnable) // syncMode=0: stop forever
	tm.AddCycles(1000)
	require.Equal(t, uint32(0), tm.Read(0x20, 4))
}

func TestWriteModeResetsCounter(t *testing.T) {
	tm, _ := newTestTimers()
	tm.AddCycles(42)
	require.NotZero(t, tm.Read(0x00, 4))
	tm.Write(0x04, 4, 0)
	require.Equal(t, uint32(0), tm.Read(0x00, 4))
}
