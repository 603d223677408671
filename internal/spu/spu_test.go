package spu

import (
	"testing"

	"github.com/retrocore/gopsx/internal/irq"
	"github.com/retrocore/gopsx/internal/sched"
	"github.com/stretchr/testify/require"
)

type capturingSink struct {
	frames [][2]int16
}

func (c *capturingSink) PushFrame(l, r int16) {
	c.frames = append(c.frames, [2]int16{l, r})
}

func newTestSPU() (*SPU, *sched.Manager, *capturingSink) {
	m := sched.NewManager()
	s := New(irq.New(), m)
	sink := &capturingSink{}
	s.SetAudioSink(sink)
	return s, m, sink
}

func pump(m *sched.Manager, cycles sched.Cycle) {
	m.AddCycles(cycles)
	for m.ReadyForNextEvent() {
		m.UpdateNextEvent()
	}
}

func TestVoiceRegisterRoundTrips(t *testing.T) {
	s, _, _ := newTestSPU()
	s.Write(0x00, 0x1234) // voice 0 volume left
	require.Equal(t, uint16(0x1234), s.Read(0x00))
	s.Write(0x0E, 0x5678) // voice 0 repeat address
	require.Equal(t, uint16(0x5678), s.Read(0x0E))
}

func TestMainVolumeRoundTrips(t *testing.T) {
	s, _, _ := newTestSPU()
	s.Write(0x180, 0x3FFF)
	require.Equal(t, uint16(0x3FFF), s.Read(0x180))
}

func TestKeyOnStartsVoiceInAttackPhase(t *testing.T) {
	s, _, _ := newTestSPU()
	s.Write(0x00, 0x3FFF) // voice 0 volume left
	s.Write(0x02, 0x3FFF) // voice 0 volume right
	s.Write(0x04, 0x1000) // voice 0 pitch, normal rate
	s.Write(0x188, 0x1)   // key on voice 0
	require.Equal(t, phaseAttack, s.voices[0].phase)
}

func TestSampleEventProducesFrames(t *testing.T) {
	s, m, sink := newTestSPU()
	s.Write(0x188, 0x1) // key on voice 0 (silent, but exercises the mixer path)
	pump(m, cyclesPerSample*4)
	require.NotEmpty(t, sink.frames)
}

func TestManualWriteFifoWritesRAMAtCursor(t *testing.T) {
	s, _, _ := newTestSPU()
	s.Write(0x1AA, 1<<4) // SPUCNT transfer mode = ManualWrite
	s.Write(0x1A6, 0)    // transfer address = 0 (x8 units)
	s.Write(0x1A8, 0xBEEF)
	require.Equal(t, uint16(0xBEEF), s.readRAMHalfword(0))
}

func TestDecodeNibbleAppliesFilterAndClamps(t *testing.T) {
	var history [2]int32
	v := decodeNibble(0x7, 0, adpcmFilterTable[0][0], adpcmFilterTable[0][1], &history)
	require.Equal(t, int16(0x7000), v)
}

func TestADPCMLoopEndWithoutRepeatStopsVoice(t *testing.T) {
	s, _, _ := newTestSPU()
	s.ram[0] = 0x00 // shift=0, filter=0
	s.ram[1] = 0x01 // loopEnd, no repeat
	s.Write(0x06, 0) // voice 0 start address = 0
	s.Write(0x188, 0x1)
	for i := 0; i < 28; i++ {
		s.voices[0].advanceSample(s)
	}
	require.Equal(t, phaseOff, s.voices[0].phase)
}
