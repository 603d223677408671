package memcard

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFormatWritesHeaderFrame(t *testing.T) {
	c := New()
	var hdr [SectorSize]byte
	require.NoError(t, c.ReadSector(0, &hdr))
	require.Equal(t, byte('M'), hdr[0])
	require.Equal(t, byte('C'), hdr[1])
	require.Equal(t, frameChecksum(hdr[:SectorSize-1]), hdr[SectorSize-1])
}

func TestFormatMarksAllBlocksFree(t *testing.T) {
	c := New()
	for i := 0; i < BlockCount; i++ {
		state, next := c.DirectoryEntry(i)
		require.Equal(t, BlockFreeFresh, state)
		require.Equal(t, uint16(0xFFFF), next)
	}
}

func TestReadWriteSectorRoundTrips(t *testing.T) {
	c := New()
	var data [SectorSize]byte
	for i := range data {
		data[i] = byte(i)
	}
	require.NoError(t, c.WriteSector(5, &data))

	var got [SectorSize]byte
	require.NoError(t, c.ReadSector(5, &got))
	require.Equal(t, data, got)
}

func TestOutOfRangeSectorErrors(t *testing.T) {
	c := New()
	var buf [SectorSize]byte
	require.Error(t, c.ReadSector(SectorCount, &buf))
	require.Error(t, c.WriteSector(SectorCount, &buf))
}
