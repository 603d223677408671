package mdec

import (
	"testing"

	"github.com/retrocore/gopsx/internal/sched"
	"github.com/stretchr/testify/require"
)

func newTestDecoder() (*Decoder, *sched.Manager) {
	m := sched.NewManager()
	return New(m, nil), m
}

func pump(m *sched.Manager, cycles sched.Cycle) {
	m.AddCycles(cycles)
	for m.ReadyForNextEvent() {
		m.UpdateNextEvent()
	}
}

func TestResetClearsState(t *testing.T) {
	d, _ := newTestDecoder()
	require.Equal(t, stateIdle, d.st)
	require.Equal(t, 64, d.currentK)
	require.Equal(t, BlockCr, d.currentBlock)
}

func TestSetQuantTableLoadsLuminanceTable(t *testing.T) {
	d, _ := newTestDecoder()
	d.WriteRegister(0, 4, uint32(cmdSetQuantTable)<<29) // SetQuantTable command, color=0
	for i := 0; i < 16; i++ {
		b := uint32(i * 4)
		d.WriteRegister(0, 4, b|(b+1)<<8|(b+2)<<16|(b+3)<<24)
	}
	require.Equal(t, stateIdle, d.st)
	require.Equal(t, uint8(0), d.luminanceTable[0])
	require.Equal(t, uint8(63), d.luminanceTable[63])
}

func TestSetScaleTableLoadsAllSixtyFourEntries(t *testing.T) {
	d, _ := newTestDecoder()
	d.WriteRegister(0, 4, uint32(cmdSetScaleTable)<<29)
	for i := 0; i < 32; i++ {
		lo := uint16(i*2) | 0 // arbitrary distinguishable values
		hi := uint16(i*2 + 1)
		d.WriteRegister(0, 4, uint32(lo)|uint32(hi)<<16)
	}
	require.Equal(t, stateIdle, d.st)
	require.Equal(t, int16(0), d.scaleTable[0])
	require.Equal(t, int16(63), d.scaleTable[63])
}

func TestRLDecodeBlockSkipsLeadingPadding(t *testing.T) {
	d, _ := newTestDecoder()
	d.remainingHalfWords = 3
	d.dataIn.Push(endOfBlock)
	d.dataIn.Push(0x405) // Q=1, amplitude=5
	d.dataIn.Push(endOfBlock)

	table := [64]uint8{}
	table[0] = 2

	var blk block
	done := d.rlDecodeBlock(&blk, table[:])
	require.True(t, done)
	require.Equal(t, int16(10), blk[zagZig[0]])
}

func TestRLDecodeBlockZeroQuantStoresRawOrder(t *testing.T) {
	d, _ := newTestDecoder()
	d.remainingHalfWords = 2
	d.dataIn.Push(0x007) // Q=0, amplitude=7
	d.dataIn.Push(endOfBlock)

	var blk block
	done := d.rlDecodeBlock(&blk, [64]uint8{}[:])
	require.True(t, done)
	require.Equal(t, int16(14), blk[0]) // Q==0 path: amplitude*2, raw index
}

func TestRLDecodeBlockUnderrunReturnsFalseAndResumes(t *testing.T) {
	d, _ := newTestDecoder()
	d.remainingHalfWords = 2
	d.dataIn.Push(0x405)

	table := [64]uint8{}
	table[0] = 2
	var blk block
	require.False(t, d.rlDecodeBlock(&blk, table[:]))
	require.Equal(t, 0, d.currentK)

	d.dataIn.Push(endOfBlock)
	require.True(t, d.rlDecodeBlock(&blk, table[:]))
}

func TestIDCTPassIsLinearInInput(t *testing.T) {
	var scale block
	for i := range scale {
		scale[i] = 0x2000 // 8.0 in the 14-bit fixed point scale, /8 => 1.0
	}
	var src block
	src[0] = 100
	realIDCTCore(&src, &scale)
	for _, v := range src {
		require.NotEqual(t, int16(0), v, "a uniform scale table should redistribute the DC term across all outputs")
	}
}

func TestPack8PacksFourBytesPerWord(t *testing.T) {
	d, _ := newTestDecoder()
	for i := 0; i < 64; i++ {
		d.dest[i] = uint32(i)
	}
	d.pack8()
	require.Equal(t, 16, d.dataOut.Size())
	v, _ := d.dataOut.Pop()
	require.Equal(t, uint32(0)|1<<8|2<<16|3<<24, v)
}

func TestPack4PacksEightNibblesPerWord(t *testing.T) {
	d, _ := newTestDecoder()
	for i := 0; i < 64; i++ {
		d.dest[i] = uint32(i << 4) // so to4bit (>>4) recovers i
	}
	d.pack4()
	require.Equal(t, 8, d.dataOut.Size())
	v, _ := d.dataOut.Pop()
	require.Equal(t, uint32(0|1<<4|2<<8|3<<12|4<<16|5<<20|6<<24|7<<28), v)
}

func TestPack24StraddlesPixelBoundaries(t *testing.T) {
	d, _ := newTestDecoder()
	d.dest[0] = 0x010203 // R=0x03 G=0x02 B=0x01
	d.dest[1] = 0x040506
	d.dest[2] = 0x070809
	d.dest[3] = 0x0A0B0C
	for i := 4; i < 256; i++ {
		d.dest[i] = 0
	}
	d.pack24()
	require.Equal(t, 3*64, d.dataOut.Size())
	w0, _ := d.dataOut.Pop()
	require.Equal(t, uint32(0x0601_0203), w0)
}

func TestPack15SetsStpBit(t *testing.T) {
	d, _ := newTestDecoder()
	d.dataOutputBit15 = true
	d.dest[0] = 0xF8 | 0xF8<<8 | 0xF8<<16 // near-white, top 5 bits of each channel set
	for i := 1; i < 256; i++ {
		d.dest[i] = 0
	}
	d.pack15()
	v, _ := d.dataOut.Pop()
	require.NotZero(t, v&0x8000)
}

func TestDecodeMacroblockEventSchedulesAndProducesOutput(t *testing.T) {
	d, m := newTestDecoder()

	d.WriteRegister(0, 4, uint32(cmdSetQuantTable)<<29) // SetQuantTable, mono
	for i := 0; i < 32; i++ {
		d.WriteRegister(0, 4, 1|1<<8)
	}
	for i := range d.scaleTable {
		d.scaleTable[i] = 0x2000
	}

	command := uint32(1)<<29 | uint32(1)<<27 | uint32(1) // DecodeMacroblock, depth=Eight, parameterWords=1
	d.WriteRegister(0, 4, command)
	d.WriteRegister(0, 4, uint32(0x405)|uint32(endOfBlock)<<16)

	require.Equal(t, stateWritingMacroblock, d.st)
	require.True(t, d.outputBlockEvt.IsActive())

	pump(m, cyclesPerBlock[DepthEight]+1)

	require.Equal(t, stateIdle, d.st)
	require.False(t, d.dataOut.Empty())
}

func TestReadDataStallsOutputEventToCompletion(t *testing.T) {
	d, _ := newTestDecoder()
	d.WriteRegister(0, 4, uint32(cmdSetQuantTable)<<29)
	for i := 0; i < 32; i++ {
		d.WriteRegister(0, 4, 1|1<<8)
	}
	for i := range d.scaleTable {
		d.scaleTable[i] = 0x2000
	}
	command := uint32(1)<<29 | uint32(1)<<27 | uint32(1)
	d.WriteRegister(0, 4, command)
	d.WriteRegister(0, 4, uint32(0x405)|uint32(endOfBlock)<<16)

	require.True(t, d.dataOut.Empty())
	v := d.ReadData()
	require.NotEqual(t, uint32(0xFFFFFFFF), v)
}

func TestReadDataWithNoPendingBlockReturnsSentinel(t *testing.T) {
	d, _ := newTestDecoder()
	require.Equal(t, uint32(0xFFFFFFFF), d.ReadData())
}

func TestResetBitAbortsInFlightCommand(t *testing.T) {
	d, _ := newTestDecoder()
	d.WriteRegister(0, 4, uint32(cmdSetQuantTable)<<29)
	d.WriteRegister(4, 4, 1<<31)
	require.Equal(t, stateIdle, d.st)
	require.True(t, d.dataIn.Empty())
}
