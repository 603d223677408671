// Package gte implements the COP2 geometry transformation engine
// described in spec.md §4.3: fixed-point 3D transform/lighting/color
// pipeline with explicit saturation and overflow/underflow flags. It
// has no teacher analogue (the Game Boy has no 3D coprocessor); it is
// grounded directly on original_source GTE.cpp/GeometryTransformationEngine.cpp
// for exact saturation and divide semantics, expressed in the
// teacher's register-wrapper-plus-explicit-flags idiom.
package gte

import (
	"log/slog"

	"github.com/retrocore/gopsx/internal/bitfield"
)

// ErrorFlag bits, packed into the FLAG control register (31).
const (
	FlagIR0Saturated     = 1 << 12
	FlagSY2Saturated     = 1 << 13
	FlagSX2Saturated     = 1 << 14
	FlagMAC0Underflow    = 1 << 15
	FlagMAC0Overflow     = 1 << 16
	FlagDivideOverflow   = 1 << 17
	FlagSZ3OTZSaturated  = 1 << 18
	FlagColorBSaturated  = 1 << 19
	FlagColorGSaturated  = 1 << 20
	FlagColorRSaturated  = 1 << 21
	FlagIR3Saturated     = 1 << 22
	FlagIR2Saturated     = 1 << 23
	FlagIR1Saturated     = 1 << 24
	FlagMAC3Underflow    = 1 << 25
	FlagMAC2Underflow    = 1 << 26
	FlagMAC1Underflow    = 1 << 27
	FlagMAC3Overflow     = 1 << 28
	FlagMAC2Overflow     = 1 << 29
	FlagMAC1Overflow     = 1 << 30
	FlagError            = 1 << 31 // OR of the bits marked "checked" by hardware
	errorCheckedMask     = 0x7F87E000
)

type vec3i16 [3]int16
type vec3i32 [3]int32
type matrix3 [3][3]int16

// GTE holds the 32 data + 32 control registers.
type GTE struct {
	v      [3]vec3i16 // V0,V1,V2
	rgbc   uint32     // packed color+code
	otz    uint16
	ir0    int16
	ir     [3]int16 // IR1-3
	sxyFifo [3][2]int16
	szFifo  [4]uint16
	colorFifo [3]uint32
	mac0    int32
	mac     [3]int32

	rotation    matrix3
	lightMatrix matrix3
	colorMatrix matrix3

	translation   vec3i32
	backgroundColor vec3i32
	farColor        vec3i32
	screenOffsetX, screenOffsetY int32
	projectionPlaneDistance int16
	depthQueueA int32
	depthQueueB int16
	zScaleFactor3, zScaleFactor4 int16

	flags uint32
	lm    bool

	busy bool

	log *slog.Logger
}

// New constructs a reset GTE.
func New() *GTE {
	return &GTE{log: slog.With("component", "gte")}
}

// Reset clears all registers.
func (g *GTE) Reset() { *g = GTE{log: g.log} }

// Busy reports whether the CPU must stall on a successive COP2
// access (spec.md §4.2: "stalls the CPU on successive accesses until
// its command completes"). This core treats every command as
// completing within the same Execute call, so Busy is always false;
// the flag exists for forward compatibility with a pipelined model.
func (g *GTE) Busy() bool { return g.busy }

// command fields.
type command struct {
	raw         uint32
	opcode      uint32
	lm          bool
	sf          bool
	matrixSel   uint32
	vectorSel   uint32
	translation uint32
}

func decodeCommand(raw uint32) command {
	return command{
		raw:         raw,
		opcode:      raw & 0x3F,
		lm:          raw&(1<<10) != 0,
		sf:          raw&(1<<19) != 0,
		matrixSel:   (raw >> 17) & 0x3,
		vectorSel:   (raw >> 15) & 0x3,
		translation: (raw >> 13) & 0x3,
	}
}

// Execute decodes and runs a 32-bit GTE command word.
func (g *GTE) Execute(raw uint32) {
	g.flags = 0
	cmd := decodeCommand(raw)

	switch cmd.opcode {
	case 0x01:
		g.rtps(0, cmd.sf)
		g.finishRTP()
	case 0x30:
		g.rtpt(cmd.sf)
	case 0x06:
		g.nclip()
	case 0x2D:
		g.avsz(3)
	case 0x2E:
		g.avsz(4)
	case 0x10:
		g.depthCueSingle(cmd)
	case 0x11:
		g.intpl(cmd)
	case 0x12:
		g.mvmva(cmd)
	case 0x13:
		g.ncds(cmd)
	case 0x14:
		g.cdp(cmd)
	case 0x16:
		g.ncdt(cmd)
	case 0x1B:
		g.nccs(cmd)
	case 0x1C:
		g.cc(cmd)
	case 0x1E:
		g.ncs(cmd)
	case 0x20:
		g.nct(cmd)
	case 0x28:
		g.sqr(cmd)
	case 0x29:
		g.dcpl(cmd)
	case 0x2A:
		g.dpct(cmd)
	case 0x3D:
		g.gpf(cmd)
	case 0x3E:
		g.gpl(cmd)
	case 0x0C:
		g.op(cmd)
	case 0x3F:
		g.ncct(cmd)
	default:
		g.log.Debug("unimplemented GTE command", "opcode", cmd.opcode)
	}
	if g.flags&errorCheckedMask != 0 {
		g.flags |= FlagError
	}
}

// --- saturation helpers -------------------------------------------------

func (g *GTE) setIR0(v int64) int16 {
	clamped, sat := bitfield.Clamp(v, 0, 0x1000)
	if sat {
		g.flags |= FlagIR0Saturated
	}
	g.ir0 = int16(clamped)
	return g.ir0
}

func (g *GTE) setIR(n int, v int64) int16 {
	lo := int64(-0x8000)
	if g.lm {
		lo = 0
	}
	clamped, sat := bitfield.Clamp(v, lo, 0x7FFF)
	if sat {
		g.flags |= []uint32{FlagIR1Saturated, FlagIR2Saturated, FlagIR3Saturated}[n]
	}
	g.ir[n] = int16(clamped)
	return g.ir[n]
}

func (g *GTE) setMAC0(v int64) int32 {
	if v > 0x7FFFFFFF {
		g.flags |= FlagMAC0Overflow
	} else if v < -0x80000000 {
		g.flags |= FlagMAC0Underflow
	}
	g.mac0 = int32(v)
	return g.mac0
}

func (g *GTE) setMAC(n int, v int64, shift uint) int32 {
	const macBits = 44
	max := int64(1)<<(macBits-1) - 1
	min := -(int64(1) << (macBits - 1))
	if v > max {
		g.flags |= []uint32{FlagMAC1Overflow, FlagMAC2Overflow, FlagMAC3Overflow}[n]
	} else if v < min {
		g.flags |= []uint32{FlagMAC1Underflow, FlagMAC2Underflow, FlagMAC3Underflow}[n]
	}
	result := (v << (64 - macBits)) >> (64 - macBits) // sign-extend from 44 bits
	result >>= shift
	g.mac[n] = int32(result)
	return g.mac[n]
}

func clampByte(v int32) (byte, bool) {
	c, sat := bitfield.Clamp(int64(v), 0, 0xFF)
	return byte(c), sat
}

func (g *GTE) pushColorFromMAC() {
	r, satR := clampByte(g.mac[0] >> 4)
	gg, satG := clampByte(g.mac[1] >> 4)
	b, satB := clampByte(g.mac[2] >> 4)
	if satR {
		g.flags |= FlagColorRSaturated
	}
	if satG {
		g.flags |= FlagColorGSaturated
	}
	if satB {
		g.flags |= FlagColorBSaturated
	}
	code := byte(g.rgbc >> 24)
	packed := uint32(code)<<24 | uint32(b)<<16 | uint32(gg)<<8 | uint32(r)
	g.colorFifo[0], g.colorFifo[1], g.colorFifo[2] = g.colorFifo[1], g.colorFifo[2], packed
	g.setIR(0, int64(r)<<4)
	g.setIR(1, int64(gg)<<4)
	g.setIR(2, int64(b)<<4)
}

func (g *GTE) pushScreenXY(x, y int32) {
	cx, satX := bitfield.Clamp(int64(x), -0x400, 0x3FF)
	cy, satY := bitfield.Clamp(int64(y), -0x400, 0x3FF)
	if satX {
		g.flags |= FlagSX2Saturated
	}
	if satY {
		g.flags |= FlagSY2Saturated
	}
	g.sxyFifo[0] = g.sxyFifo[1]
	g.sxyFifo[1] = g.sxyFifo[2]
	g.sxyFifo[2] = [2]int16{int16(cx), int16(cy)}
}

func (g *GTE) pushScreenZ(z int64) {
	cz, sat := bitfield.Clamp(z, 0, 0xFFFF)
	if sat {
		g.flags |= FlagSZ3OTZSaturated
	}
	g.szFifo[0], g.szFifo[1], g.szFifo[2] = g.szFifo[1], g.szFifo[2], g.szFifo[3]
	g.szFifo[3] = uint16(cz)
}

// --- divide --------------------------------------------------------------

// fastDivide implements spec.md §4.3: valid when 2*rhs > lhs, else
// sets DivideOverflow and clamps to 0x1FFFF. Grounded on
// original_source GTE.cpp FastDivide, which the spec explicitly
// permits in place of the hardware UNR table approximation.
func (g *GTE) fastDivide(lhs, rhs uint32) uint32 {
	if uint64(rhs)*2 <= uint64(lhs) {
		g.flags |= FlagDivideOverflow
		return 0x1FFFF
	}
	result := ((uint64(lhs)*0x20000)/uint64(rhs) + 1) / 2
	if result > 0x1FFFF {
		result = 0x1FFFF
	}
	return uint32(result)
}

// --- transform core --------------------------------------------------------

// transform multiplies matrix * vector, adds translation (if any),
// right-shifts by shift, and deposits into MAC1-3/IR1-3.
func (g *GTE) transform(m *matrix3, v vec3i32, t *vec3i32, shift uint, lm bool) {
	g.lm = lm
	for row := 0; row < 3; row++ {
		sum := int64(0)
		if t != nil {
			sum = int64(t[row]) << 12
		}
		for col := 0; col < 3; col++ {
			sum += int64(m[row][col]) * int64(v[col])
		}
		g.setMAC(row, sum, shift*12)
	}
	for row := 0; row < 3; row++ {
		g.setIR(row, int64(g.mac[row]))
	}
}

func vecFromI16(v vec3i16) vec3i32 {
	return vec3i32{int32(v[0]), int32(v[1]), int32(v[2])}
}

func shiftAmount(sf bool) uint {
	if sf {
		return 1
	}
	return 0
}

// rtps performs the rotate+translate+perspective transform for vector
// index n (0,1,2) without yet computing the divide/projection (shared
// by RTPS and RTPT).
func (g *GTE) rtps(n int, sf bool) {
	v := vecFromI16(g.v[n])
	g.transform(&g.rotation, v, &g.translation, shiftAmount(sf), false)
	shift := uint(0)
	if sf {
		shift = 12
	}
	g.pushScreenZ(int64(g.mac[2]) >> (12 - shift))
}

// finishRTP performs the divide + screen projection shared tail of
// RTPS/RTPT, operating on the most recent SZ FIFO entry.
func (g *GTE) finishRTP() {
	h := uint32(g.projectionPlaneDistance)
	sz3 := uint32(g.szFifo[3])
	var quotient uint32
	if sz3 == 0 {
		quotient = 0x1FFFF
		g.flags |= FlagDivideOverflow
	} else {
		quotient = g.fastDivide(h, sz3)
	}

	sx := (int64(quotient)*int64(g.ir[0]) + int64(g.screenOffsetX)) >> 16
	sy := (int64(quotient)*int64(g.ir[1]) + int64(g.screenOffsetY)) >> 16
	g.pushScreenXY(int32(sx), int32(sy))

	mac0 := int64(quotient)*int64(g.depthQueueA) + int64(g.depthQueueB)
	g.setMAC0(mac0)
	g.setIR0(int64(g.mac0) >> 12)
}

func (g *GTE) rtpt(sf bool) {
	for n := 0; n < 3; n++ {
		g.rtps(n, sf)
		g.finishRTP()
	}
}

// nclip computes the 2D cross product of the three most recent SXY
// entries into MAC0.
func (g *GTE) nclip() {
	x0, y0 := int64(g.sxyFifo[0][0]), int64(g.sxyFifo[0][1])
	x1, y1 := int64(g.sxyFifo[1][0]), int64(g.sxyFifo[1][1])
	x2, y2 := int64(g.sxyFifo[2][0]), int64(g.sxyFifo[2][1])
	cross := x0*y1 + x1*y2 + x2*y0 - x0*y2 - x1*y0 - x2*y1
	g.setMAC0(cross)
}

// avsz averages the last n SZ FIFO entries, scaled by the matching
// z-scale factor, into OTZ.
func (g *GTE) avsz(n int) {
	var sum int64
	var scale int16
	if n == 3 {
		sum = int64(g.szFifo[1]) + int64(g.szFifo[2]) + int64(g.szFifo[3])
		scale = g.zScaleFactor3
	} else {
		sum = int64(g.szFifo[0]) + int64(g.szFifo[1]) + int64(g.szFifo[2]) + int64(g.szFifo[3])
		scale = g.zScaleFactor4
	}
	mac0 := g.setMAC0(int64(scale) * sum)
	clamped, sat := bitfield.Clamp(int64(mac0)>>12, 0, 0xFFFF)
	if sat {
		g.flags |= FlagSZ3OTZSaturated
	}
	g.otz = uint16(clamped)
}

func (g *GTE) sqr(cmd command) {
	shift := shiftAmount(cmd.sf) * 12
	g.lm = cmd.lm
	for i := 0; i < 3; i++ {
		g.setMAC(i, int64(g.ir[i])*int64(g.ir[i]), shift)
	}
	for i := 0; i < 3; i++ {
		g.setIR(i, int64(g.mac[i]))
	}
}

func (g *GTE) op(cmd command) {
	shift := shiftAmount(cmd.sf) * 12
	g.lm = cmd.lm
	rt := &g.rotation
	d1, d2, d3 := int64(rt[0][0]), int64(rt[1][1]), int64(rt[2][2])
	ir := [3]int64{int64(g.ir[0]), int64(g.ir[1]), int64(g.ir[2])}
	g.setMAC(0, ir[2]*d2-ir[1]*d3, shift)
	g.setMAC(1, ir[0]*d3-ir[2]*d1, shift)
	g.setMAC(2, ir[1]*d1-ir[0]*d2, shift)
	for i := 0; i < 3; i++ {
		g.setIR(i, int64(g.mac[i]))
	}
}

// mvmva implements the selectable matrix/vector/translation multiply
// described in spec.md §4.3.
func (g *GTE) mvmva(cmd command) {
	var m *matrix3
	switch cmd.matrixSel {
	case 0:
		m = &g.rotation
	case 1:
		m = &g.lightMatrix
	case 2:
		m = &g.colorMatrix
	default:
		m = &matrix3{} // reserved: zero matrix
	}

	var v vec3i32
	switch cmd.vectorSel {
	case 0, 1, 2:
		v = vecFromI16(g.v[cmd.vectorSel])
	default:
		v = vec3i32{int32(g.ir[0]), int32(g.ir[1]), int32(g.ir[2])}
	}

	var t *vec3i32
	switch cmd.translation {
	case 0:
		t = &g.translation
	case 1:
		t = &g.backgroundColor
	case 2:
		t = &g.farColor
	default:
		t = nil
	}

	g.transform(m, v, t, shiftAmount(cmd.sf), cmd.lm)
}

// --- color pipeline (NCS/NCT/NCDS/NCDT/NCCS/NCCT/DPCS/DPCT/DCPL/CDP/INTPL/GPF/GPL) ---

func (g *GTE) multiplyColorWithIR() {
	r := int32(byte(g.rgbc)) << 4
	gg := int32(byte(g.rgbc>>8)) << 4
	b := int32(byte(g.rgbc>>16)) << 4
	g.mac[0] = (r * int32(g.ir[0])) >> 8
	g.mac[1] = (gg * int32(g.ir[1])) >> 8
	g.mac[2] = (b * int32(g.ir[2])) >> 8
}

func (g *GTE) ncs(cmd command) {
	g.lm = cmd.lm
	g.transform(&g.lightMatrix, vecFromI16(g.v[0]), nil, 0, cmd.lm)
	g.transform(&g.colorMatrix, vec3i32{int32(g.ir[0]), int32(g.ir[1]), int32(g.ir[2])}, &g.backgroundColor, 0, cmd.lm)
	g.pushColorFromMAC()
}

func (g *GTE) nct(cmd command) {
	for i := 0; i < 3; i++ {
		g.transform(&g.lightMatrix, vecFromI16(g.v[i]), nil, 0, cmd.lm)
		g.transform(&g.colorMatrix, vec3i32{int32(g.ir[0]), int32(g.ir[1]), int32(g.ir[2])}, &g.backgroundColor, 0, cmd.lm)
		g.pushColorFromMAC()
	}
}

func (g *GTE) ncds(cmd command) {
	g.lm = cmd.lm
	g.transform(&g.lightMatrix, vecFromI16(g.v[0]), nil, 0, cmd.lm)
	g.transform(&g.colorMatrix, vec3i32{int32(g.ir[0]), int32(g.ir[1]), int32(g.ir[2])}, &g.backgroundColor, 0, cmd.lm)
	g.depthCueFromMAC(cmd)
}

func (g *GTE) ncdt(cmd command) {
	for i := 0; i < 3; i++ {
		g.transform(&g.lightMatrix, vecFromI16(g.v[i]), nil, 0, cmd.lm)
		g.transform(&g.colorMatrix, vec3i32{int32(g.ir[0]), int32(g.ir[1]), int32(g.ir[2])}, &g.backgroundColor, 0, cmd.lm)
		g.depthCueFromMAC(cmd)
	}
}

func (g *GTE) nccs(cmd command) {
	g.lm = cmd.lm
	g.transform(&g.lightMatrix, vecFromI16(g.v[0]), nil, 0, cmd.lm)
	g.transform(&g.colorMatrix, vec3i32{int32(g.ir[0]), int32(g.ir[1]), int32(g.ir[2])}, &g.backgroundColor, 0, cmd.lm)
	g.multiplyColorWithIR()
	g.pushColorFromMAC()
}

func (g *GTE) ncct(cmd command) {
	for i := 0; i < 3; i++ {
		g.transform(&g.lightMatrix, vecFromI16(g.v[i]), nil, 0, cmd.lm)
		g.transform(&g.colorMatrix, vec3i32{int32(g.ir[0]), int32(g.ir[1]), int32(g.ir[2])}, &g.backgroundColor, 0, cmd.lm)
		g.multiplyColorWithIR()
		g.pushColorFromMAC()
	}
}

func (g *GTE) cc(cmd command) {
	g.lm = cmd.lm
	g.multiplyColorWithIR()
	g.pushColorFromMAC()
}

func (g *GTE) cdp(cmd command) {
	g.lm = cmd.lm
	g.multiplyColorWithIR()
	g.depthCueFromMAC(cmd)
}

// depthCueFromMAC interpolates the current MAC color towards the far
// color using IR0, per the DPCS/NCDS family.
func (g *GTE) depthCueFromMAC(cmd command) {
	shift := shiftAmount(cmd.sf) * 12
	for i := 0; i < 3; i++ {
		delta := (int64(g.farColor[i])<<12 - int64(g.mac[i])) >> 12
		g.setIR(i, delta)
	}
	for i := 0; i < 3; i++ {
		v := int64(g.ir[i])*int64(g.ir0) + int64(g.mac[i])
		g.setMAC(i, v, shift)
	}
	g.pushColorFromMAC()
}

func (g *GTE) dpct(cmd command) {
	for i := 0; i < 3; i++ {
		g.depthCueSingle(cmd)
	}
}

func (g *GTE) dcpl(cmd command) {
	g.multiplyColorWithIR()
	g.depthCueFromMAC(cmd)
}

func (g *GTE) depthCueSingle(cmd command) {
	r := int32(byte(g.rgbc)) << 16
	gg := int32(byte(g.rgbc>>8)) << 16
	b := int32(byte(g.rgbc>>16)) << 16
	shift := shiftAmount(cmd.sf) * 12
	g.setMAC(0, int64(r), shift)
	g.setMAC(1, int64(gg), shift)
	g.setMAC(2, int64(b), shift)
	g.depthCueFromMAC(cmd)
}

// intpl interpolates MAC by IR0 directly (no matrix step).
func (g *GTE) intpl(cmd command) {
	shift := shiftAmount(cmd.sf) * 12
	for i := 0; i < 3; i++ {
		delta := (int64(g.farColor[i])<<12 - int64(g.ir[i])<<12) >> 12
		g.setIR(i, delta)
	}
	for i := 0; i < 3; i++ {
		v := int64(g.ir[i])*int64(g.ir0) + int64(g.ir[i])<<12
		g.setMAC(i, v, shift)
	}
	g.pushColorFromMAC()
}

func (g *GTE) gpf(cmd command) {
	shift := shiftAmount(cmd.sf) * 12
	for i := 0; i < 3; i++ {
		g.setMAC(i, int64(g.ir[i])*int64(g.ir0), shift)
	}
	for i := 0; i < 3; i++ {
		g.setIR(i, int64(g.mac[i]))
	}
	g.pushColorFromMAC()
}

func (g *GTE) gpl(cmd command) {
	shift := shiftAmount(cmd.sf) * 12
	for i := 0; i < 3; i++ {
		v := int64(g.ir[i])*int64(g.ir0) + int64(g.mac[i])<<shift
		g.setMAC(i, v, shift)
	}
	for i := 0; i < 3; i++ {
		g.setIR(i, int64(g.mac[i]))
	}
	g.pushColorFromMAC()
}
