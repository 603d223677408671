package cdrom

import (
	"testing"

	"github.com/retrocore/gopsx/internal/irq"
	"github.com/retrocore/gopsx/internal/sched"
	"github.com/stretchr/testify/require"
)

type fakeImage struct{}

func (fakeImage) ReadSector(lba uint32) [2352]byte {
	var s [2352]byte
	s[16] = byte(lba) // mark the data region with the sector index for assertions
	return s
}
func (fakeImage) TrackCount() int              { return 1 }
func (fakeImage) TrackStartLBA(track int) uint32 { return 0 }

func newTestDrive() (*Drive, *irq.Control, *sched.Manager) {
	ic := irq.New()
	ic.WriteMask(1 << irq.CDROM)
	m := sched.NewManager()
	d := New(ic, m)
	return d, ic, m
}

func pump(m *sched.Manager, cycles sched.Cycle) {
	m.AddCycles(cycles)
	for m.ReadyForNextEvent() {
		m.UpdateNextEvent()
	}
}

func TestGetStatReturnsFirstResponse(t *testing.T) {
	d, ic, m := newTestDrive()
	d.WriteRegister(0, 1, 0) // select index 0
	d.WriteRegister(1, 1, uint32(CmdGetStat))
	pump(m, 30000)
	require.True(t, ic.Pending())
	v, ok := d.responseFifo.Pop()
	require.True(t, ok)
	require.Equal(t, d.driveStatusByte(), v)
}

func TestWrongParamCountOnSetLocReturnsError(t *testing.T) {
	d, _, m := newTestDrive()
	d.WriteRegister(1, 1, uint32(CmdSetLoc)) // no parameters pushed
	pump(m, 30000)
	v, _ := d.responseFifo.Pop()
	require.NotZero(t, v&errWrongParamCount)
}

func TestAcknowledgeInterruptClearsFlags(t *testing.T) {
	d, _, m := newTestDrive()
	d.WriteRegister(1, 1, uint32(CmdGetStat))
	pump(m, 30000)
	require.NotZero(t, d.interruptFlags)
	d.WriteRegister(0, 1, 1) // select index 1 for the ack port
	d.WriteRegister(3, 1, 0x1F)
	require.Zero(t, d.interruptFlags)
}

func TestReadNSchedulesDriveEventAndDeliversSector(t *testing.T) {
	d, _, m := newTestDrive()
	d.SetImage(fakeImage{})
	d.WriteRegister(1, 1, uint32(CmdReadN))
	pump(m, 30000)      // fires the first-response command event, arms the drive event
	pump(m, 500000)     // advances past one sector period
	require.Greater(t, d.dataFifo.Size(), 0)
}

func TestXADecodeBlockClampsToInt16Range(t *testing.T) {
	chunk := make([]byte, 128)
	chunk[0] = 0x00 // shift=0, filter=0
	for i := range chunk[4:] {
		chunk[4+i] = 0x7F
	}
	var history [2]int32
	samples := decodeXAChunk(chunk, 4, &history)
	require.NotEmpty(t, samples)
	for _, s := range samples {
		require.GreaterOrEqual(t, int32(s), int32(-0x8000))
		require.LessOrEqual(t, int32(s), int32(0x7FFF))
	}
}

func TestResamplerProducesOutputPerPush(t *testing.T) {
	var r Resampler
	out := r.Push(1000)
	require.NotEmpty(t, out)
}

// TestGetIDNoDiscScenario4 asserts spec.md §8 scenario 4 literally: with
// no disc attached, CmdGetID's first response is INT3 carrying only the
// status byte, and the delayed second response is INT5 carrying the
// no-disk marker.
func TestGetIDNoDiscScenario4(t *testing.T) {
	d, ic, m := newTestDrive()
	d.WriteRegister(0, 1, 0) // select index 0
	d.WriteRegister(1, 1, uint32(CmdGetID))
	pump(m, 30000)

	require.True(t, ic.Pending())
	require.Equal(t, byte(intFirst), d.interruptFlags)
	v, ok := d.responseFifo.Pop()
	require.True(t, ok)
	require.Equal(t, d.driveStatusByte(), v)
	_, ok = d.responseFifo.Pop()
	require.False(t, ok, "first response must carry only the status byte")

	d.WriteRegister(0, 1, 1) // select index 1 for the ack port
	d.WriteRegister(3, 1, 0x1F)
	require.Zero(t, d.interruptFlags)

	pump(m, 0x4A00)
	require.True(t, ic.Pending())
	require.Equal(t, byte(intError), d.interruptFlags)
	require.Equal(t, []byte{0x08, 0x40, 0, 0, 0, 0, 0, 0}, drainResponse(d))
}

// TestGetIDWithDiscScenario4 covers the licensed-disc variant of the same
// sequence: the delayed second response is INT2 carrying the SCEA
// license bytes instead of the no-disk marker.
func TestGetIDWithDiscScenario4(t *testing.T) {
	d, ic, m := newTestDrive()
	d.SetImage(fakeImage{})
	d.WriteRegister(1, 1, uint32(CmdGetID))
	pump(m, 30000)

	d.WriteRegister(0, 1, 1)
	d.WriteRegister(3, 1, 0x1F)
	require.Zero(t, d.interruptFlags)

	pump(m, 0x4A00)
	require.True(t, ic.Pending())
	require.Equal(t, byte(intSecond), d.interruptFlags)
	require.Equal(t, []byte{0x02, 0x00, 0x20, 0x00, 'S', 'C', 'E', 'A'}, drainResponse(d))
}

func drainResponse(d *Drive) []byte {
	var out []byte
	for {
		v, ok := d.responseFifo.Pop()
		if !ok {
			break
		}
		out = append(out, v)
	}
	return out
}
