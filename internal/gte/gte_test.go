package gte

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func identityRotation(g *GTE) {
	g.rotation[0][0] = 0x1000
	g.rotation[1][1] = 0x1000
	g.rotation[2][2] = 0x1000
}

func TestNCLIPSignOfCrossProduct(t *testing.T) {
	g := New()
	// Counter-clockwise triangle: positive cross product.
	g.sxyFifo[0] = [2]int16{0, 0}
	g.sxyFifo[1] = [2]int16{10, 0}
	g.sxyFifo[2] = [2]int16{10, 10}
	g.Execute(0x06)
	require.Greater(t, g.mac0, int32(0))
}

func TestAVSZ3AppliesZScaleFactor(t *testing.T) {
	g := New()
	g.zScaleFactor3 = 0x1000 // identity scale (4096 = 1.0 in 12-bit fixed point)
	g.szFifo = [4]uint16{0, 100, 200, 300}
	g.Execute(0x2D)
	// sum(100,200,300) * 4096 >> 12 == 600; any averaging lives in ZSF3
	require.Equal(t, uint16(600), g.otz)
}

func TestFastDivideOverflowFlag(t *testing.T) {
	g := New()
	q := g.fastDivide(0xFFFF, 1) // rhs*2 <= lhs triggers overflow
	require.Equal(t, uint32(0x1FFFF), q)
	require.NotZero(t, g.flags&FlagDivideOverflow)
}

func TestFastDivideOrdinaryCase(t *testing.T) {
	g := New()
	q := g.fastDivide(0x10000, 0x10000)
	require.Zero(t, g.flags&FlagDivideOverflow)
	require.InDelta(t, 0x10000, int(q), 2)
}

func TestIRSaturationSetsFlagAndClampsLM0(t *testing.T) {
	g := New()
	g.lm = false
	v := g.setIR(0, -0x9000)
	require.Equal(t, int16(-0x8000), v)
	require.NotZero(t, g.flags&FlagIR1Saturated)
}

func TestIRSaturationLMForcesNonNegative(t *testing.T) {
	g := New()
	g.lm = true
	v := g.setIR(1, -5)
	require.Equal(t, int16(0), v)
	require.NotZero(t, g.flags&FlagIR2Saturated)
}

func TestRTPSIdentityProjection(t *testing.T) {
	g := New()
	identityRotation(g)
	g.projectionPlaneDistance = 0x400 // h
	g.v[0] = vec3i16{0, 0, 0x400}     // straight ahead at the projection plane
	g.Execute(0x01)
	// sz should equal the input Z component scaled into the SZ3 fifo slot.
	require.Equal(t, uint16(0x400), g.szFifo[3])
}

func TestReadWriteVector0RoundTrips(t *testing.T) {
	g := New()
	g.WriteData(0, pack16(100, 200))
	require.Equal(t, int16(100), g.v[0][0])
	require.Equal(t, int16(200), g.v[0][1])
	require.Equal(t, pack16(100, 200), g.ReadData(0))
}

func TestWriteControlRotationMatrixRow0(t *testing.T) {
	g := New()
	g.WriteControl(0, pack16(0x1000, 0x0200))
	require.Equal(t, int16(0x1000), g.rotation[0][0])
	require.Equal(t, int16(0x0200), g.rotation[0][1])
}

func TestFlagRegisterErrorBitSetWhenCheckedBitsSet(t *testing.T) {
	g := New()
	g.WriteControl(31, FlagIR1Saturated)
	require.NotZero(t, g.flags&FlagError)
}

func TestSQRSquaresIRRegisters(t *testing.T) {
	g := New()
	g.ir[0], g.ir[1], g.ir[2] = 10, 20, 30
	g.Execute(0x28) // SF=0
	require.Equal(t, int32(100), g.mac[0])
	require.Equal(t, int32(400), g.mac[1])
	require.Equal(t, int32(900), g.mac[2])
}

func TestBusyIsAlwaysFalseForThisNonPipelinedCore(t *testing.T) {
	g := New()
	g.Execute(0x28)
	require.False(t, g.Busy())
}
