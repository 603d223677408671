package gpu

import (
	"testing"

	"github.com/retrocore/gopsx/internal/sched"
	"github.com/stretchr/testify/require"
)

type fakeRenderer struct{ presented int }

func (f *fakeRenderer) DrawPixel(x, y int, color uint16) {}
func (f *fakeRenderer) PresentFrame()                     { f.presented++ }

func newTestGPU() (*GPU, *fakeRenderer) {
	r := &fakeRenderer{}
	g := New(sched.NewManager(), r)
	g.drawAreaRight = VRAMWidth - 1
	g.drawAreaBottom = VRAMHeight - 1
	return g, r
}

func TestFillRectangleWritesVRAM(t *testing.T) {
	g, _ := newTestGPU()
	g.WriteGP0(0x02000000 | 0x0000FF) // fill command, color=red (low byte) only for clarity
	g.WriteGP0(0x00000000)            // x=0,y=0
	g.WriteGP0(0x00100010)            // w=16,h=16... actually (w&0x3FF, h<<16)
	require.NotZero(t, g.vram[0][0])
}

func TestWritingVRAMStateConsumesExactPixelCount(t *testing.T) {
	g, _ := newTestGPU()
	g.WriteGP0(0xA0000000) // begin CPU->VRAM
	g.WriteGP0(0x00000000) // x=0,y=0
	g.WriteGP0(0x00020002) // w=2,h=2 -> 4 pixels -> 2 words
	require.Equal(t, stateWritingVRAM, g.st)
	g.WriteGP0(0x22221111) // first two pixels
	require.Equal(t, stateWritingVRAM, g.st)
	g.WriteGP0(0x44443333) // last two pixels
	require.Equal(t, stateIdle, g.st)
	require.Equal(t, uint16(0x1111)&0x7FFF, g.vram[0][0]&0x7FFF)
}

func TestPolyLineTerminatesOnMaskedWord(t *testing.T) {
	g, _ := newTestGPU()
	g.WriteGP0(0x48FF00FF) // poly-line header: opcode bit27 set (0x48 = 0100_1000), bit27 -> check
	require.Equal(t, statePolyLine, g.st)
	g.WriteGP0(0x00100010)
	g.WriteGP0(0x00200020)
	g.WriteGP0(0x50005000) // terminator
	require.Equal(t, stateIdle, g.st)
}

func TestCRTClockAdvancesScanlinesAndPresentsFrame(t *testing.T) {
	g, r := newTestGPU()
	m := g.sched
	// Drive enough cycles for one full NTSC frame.
	for i := 0; i < ntscLines+1; i++ {
		m.AddCycles(sched.Cycle(ntscClocksPerLn))
		for m.ReadyForNextEvent() {
			m.UpdateNextEvent()
		}
	}
	require.GreaterOrEqual(t, r.presented, 1)
}

func TestGPUSTATReadyToReceiveCommandWhenIdle(t *testing.T) {
	g, _ := newTestGPU()
	require.True(t, g.readyToReceiveCmd())
	status := g.ReadStatus()
	require.NotZero(t, status&(1<<25))
}
