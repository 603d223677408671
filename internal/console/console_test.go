package console

import (
	"encoding/binary"
	"testing"

	"github.com/retrocore/gopsx/internal/memmap"
	"github.com/retrocore/gopsx/internal/pad"
	"github.com/stretchr/testify/require"
)

func TestNewMachineResetsWithoutPanicking(t *testing.T) {
	m := New(nil, nil)
	require.Zero(t, m.FrameCount())
	require.NotPanics(t, func() { m.Reset() })
}

func runSchedCycles(m *Machine, n int) {
	for i := 0; i < n; i++ {
		m.Sched.AddCycles(1)
		for m.Sched.ReadyForNextEvent() {
			m.Sched.UpdateNextEvent()
		}
	}
}

func TestVBlankRaisesIRQAndAdvancesFrameCount(t *testing.T) {
	m := New(nil, nil)
	// One NTSC frame is 263 scanlines of 3413 GPU clocks each, and a GPU
	// clock is shorter than a CPU cycle, so 264*3413 scheduler (CPU)
	// cycles is past the first vblank edge.
	runSchedCycles(m, 264*3413+1)

	require.GreaterOrEqual(t, m.FrameCount(), uint64(1))
	status := m.IRQ.ReadStatus()
	require.NotZero(t, status&(1<<0), "VBlank is interrupt source 0")
}

func buildTestEXE(body []byte, pc, gp, spBase, spOffset uint32) []byte {
	for len(body)%exeHeaderSize != 0 {
		body = append(body, 0)
	}
	data := make([]byte, exeHeaderSize+len(body))
	copy(data[0:8], exeID)
	binary.LittleEndian.PutUint32(data[0x10:], pc)
	binary.LittleEndian.PutUint32(data[0x14:], gp)
	binary.LittleEndian.PutUint32(data[0x18:], 0x80010000) // ramDestination
	binary.LittleEndian.PutUint32(data[0x1C:], uint32(len(body)))
	binary.LittleEndian.PutUint32(data[0x30:], spBase)
	binary.LittleEndian.PutUint32(data[0x34:], spOffset)
	copy(data[exeHeaderSize:], body)
	return data
}

func TestHookEXELoadsCodeAndSetsRegisters(t *testing.T) {
	m := New(nil, nil)
	body := []byte{0xAA, 0xBB, 0xCC, 0xDD, 0x11, 0x22, 0x33, 0x44}
	data := buildTestEXE(body, 0x80010000, 0xDEADBEEF, 0x801FFF00, 0x10)

	require.NoError(t, m.HookEXE(data))
	require.Equal(t, uint32(0x80010000), m.CPU.PC())
	require.Equal(t, uint32(0xDEADBEEF), m.CPU.Regs.Get(28))
	require.Equal(t, uint32(0x801FFF10), m.CPU.Regs.Get(29))
	require.Equal(t, uint32(0x801FFF00), m.CPU.Regs.Get(30))

	require.Equal(t, binary.LittleEndian.Uint32(body[0:4]), m.Bus.ReadWord(0x80010000))
	require.Equal(t, binary.LittleEndian.Uint32(body[4:8]), m.Bus.ReadWord(0x80010004))
}

func TestHookEXERejectsBadHeader(t *testing.T) {
	m := New(nil, nil)
	data := make([]byte, exeHeaderSize*2)
	copy(data[0:8], "NOT-AN-EXE")
	require.Error(t, m.HookEXE(data))
}

func TestControllerPortBusRoundTrip(t *testing.T) {
	m := New(nil, nil)
	c := pad.NewController()
	m.SetController(0, c)

	const (
		joyData = memmap.IOBase + 0x40
		joyCtrl = memmap.IOBase + 0x4A
		joyBaud = memmap.IOBase + 0x4E
	)

	m.Bus.WriteHalf(joyBaud, 1)
	m.Bus.WriteHalf(joyCtrl, 1<<0) // TX enable

	m.Bus.WriteByte(joyData, 0x01) // select controller
	runSchedCycles(m, 64)
	require.Equal(t, byte(0xFF), m.Bus.ReadByte(joyData))

	m.Bus.WriteByte(joyData, 0x42) // read-buttons command
	runSchedCycles(m, 64)
	require.Equal(t, byte(0x41), m.Bus.ReadByte(joyData), "digital pad ID low byte")
}
