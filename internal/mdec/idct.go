package mdec

// rlDecodeBlock consumes run-length/amplitude pairs from the input
// FIFO into dst, starting from a DC coefficient on a fresh block
// (currentK == 64) or continuing a block interrupted by input
// underrun. It scatters each coefficient through the inverse zigzag
// table and applies the per-block quantization scale Q, captured once
// from the DC word and reused for every AC coefficient that follows,
// per the original decoder's rl_decode_block. Padding words (the
// end-of-block marker) preceding the DC word are skipped; once inside
// the AC run the marker is just an ordinary run/amplitude pair whose
// run length happens to overflow past coefficient 63.
func (d *Decoder) rlDecodeBlock(dst *block, table []uint8) bool {
	if d.currentK == 64 {
		*dst = block{}

		var word uint16
		for {
			if d.dataIn.Empty() || d.remainingHalfWords == 0 {
				return false
			}
			word, _ = d.dataIn.Pop()
			d.remainingHalfWords--
			if word != endOfBlock {
				break
			}
		}

		d.currentK = 0
		d.currentQ = int16(word>>10) & 0x3F
		amplitude := signExtend10(word)
		val := amplitude * int32(table[0])
		if d.currentQ == 0 {
			val = amplitude * 2
		}
		val = clampCoefficient(val)
		if d.currentQ > 0 {
			dst[zagZig[0]] = int16(val)
		} else {
			dst[0] = int16(val)
		}
	}

	for !d.dataIn.Empty() && d.remainingHalfWords > 0 && d.currentK < 63 {
		word, _ := d.dataIn.Pop()
		d.remainingHalfWords--

		run := int((word >> 10) & 0x3F)
		d.currentK += run + 1
		if d.currentK >= 64 {
			d.currentK = 64
			return true
		}

		amplitude := signExtend10(word)
		val := (amplitude*int32(table[d.currentK])*int32(d.currentQ) + 4) / 8
		if d.currentQ == 0 {
			val = amplitude * 2
		}
		val = clampCoefficient(val)
		if d.currentQ > 0 {
			dst[zagZig[d.currentK]] = int16(val)
		} else {
			dst[d.currentK] = int16(val)
		}
	}

	if d.currentK == 63 {
		d.currentK = 64
		return true
	}
	return false
}

// signExtend10 sign-extends the low 10 bits of a run/amplitude word.
func signExtend10(word uint16) int32 {
	return int32(int16(word<<6)) >> 6
}

func clampCoefficient(v int32) int32 {
	if v > 0x3FF {
		return 0x3FF
	}
	if v < -0x400 {
		return -0x400
	}
	return v
}

// realIDCTCore applies the separable two-pass IDCT using the 8x8
// scale table as a transform matrix, matching the original decoder's
// real_idct_core: each pass contracts over z against a column of the
// scale table (pre-divided by 8) and the result of the first pass
// feeds the second unchanged, yielding a 2D transform from the 1D
// matrix multiply applied twice.
func realIDCTCore(b *block, scale *block) {
	pass1 := idctPass(b, scale)
	pass2 := idctPass(&pass1, scale)
	*b = pass2
}

func idctPass(src *block, scale *block) block {
	var dst block
	for x := 0; x < 8; x++ {
		for y := 0; y < 8; y++ {
			var sum int64
			for z := 0; z < 8; z++ {
				sum += int64(src[z*8+y]) * (int64(scale[z*8+x]) / 8)
			}
			dst[x+y*8] = int16((sum + 0xFFF) / 0x2000)
		}
	}
	return dst
}

func clampSigned8(v int32) int16 {
	if v > 127 {
		return 127
	}
	if v < -128 {
		return -128
	}
	return int16(v)
}

// biasByte converts a clamped signed 8-bit sample to the output
// encoding: unbiased two's complement when the command asked for
// signed output, or biased to 0..255 otherwise.
func (d *Decoder) biasByte(v int16) uint8 {
	if !d.dataOutputSigned {
		v += 128
	}
	return uint8(v)
}

// yuvToRGB converts one 8x8 luminance block plus its (half-resolution)
// chrominance pair into 8x8 RGB samples placed at (xx,yy) within the
// 16x16 macroblock, nearest-neighbor upsampling the chroma and scaling
// Cr/Cb only after computing the green cross-term, as the original
// decoder's yuv_to_rgb does.
func (d *Decoder) yuvToRGB(xx, yy int, cr, cb, y block) {
	for y2 := 0; y2 < 8; y2++ {
		for x2 := 0; x2 < 8; x2++ {
			chromaIdx := (xx+x2)/2 + (yy+y2)/2*8

			red := int32(cr[chromaIdx])
			blue := int32(cb[chromaIdx])
			green := int32(-0.3437*float64(blue) - 0.7143*float64(red))
			red = int32(1.402 * float64(red))
			blue = int32(1.772 * float64(blue))

			yVal := int32(y[x2+y2*8])

			r := clampSigned8(yVal + red)
			g := clampSigned8(yVal + green)
			b := clampSigned8(yVal + blue)

			d.putPixel(xx+x2, yy+y2, d.biasByte(r), d.biasByte(g), d.biasByte(b))
		}
	}
}

// yToMono converts a single luminance block to signed 8-bit greyscale
// samples (mono mode never packs chrominance), per y_to_mono: the raw
// coefficient is sign-extended from 9 bits before saturating to the
// signed 8-bit range. Mono macroblocks are a flat 8x8 grid, not the
// 16x16 layout color blocks use, so samples are written contiguously
// rather than through the 16-wide putPixel stride.
func (d *Decoder) yToMono(y block) {
	for i := 0; i < 64; i++ {
		v := int32(int16(y[i]<<7)) >> 7
		clamped := clampSigned8(v)
		d.dest[i] = uint32(d.biasByte(clamped))
	}
}

func (d *Decoder) putPixel(x, yy int, r, g, b uint8) {
	idx := yy*16 + x
	if idx < 0 || idx >= len(d.dest) {
		return
	}
	d.dest[idx] = uint32(b)<<16 | uint32(g)<<8 | uint32(r)
}

// outputBlock packs the completed 16x16 macroblock into the output
// FIFO at the configured depth, per ScheduleOutput/OutputBlock. It is
// invoked exactly once per macroblock, after the Cancel()-before-pack
// pattern is applied by the caller.
func (d *Decoder) outputBlock() {
	switch d.dataOutputDepth {
	case DepthTwentyFour:
		d.pack24()
	case DepthFifteen:
		d.pack15()
	case DepthEight:
		d.pack8()
	default:
		d.pack4()
	}
	d.st = stateIdle
	d.processInput()
	d.updateStatus()
}

// pack24 runs a byte-stream packer over the full 256-sample dest
// buffer regardless of color/mono mode, matching the original
// decoder's running 4-byte accumulator: each 32-bit output word holds
// 4 consecutive R,G,B bytes straddling pixel boundaries.
func (d *Decoder) pack24() {
	var value uint32
	curSize := 0
	for i := 0; i < len(d.dest); i++ {
		bgr := d.dest[i]
		switch curSize {
		case 0:
			value = bgr
			curSize = 3
		case 3:
			value |= bgr << 24
			d.dataOut.Push(value)
			value = bgr >> 8
			curSize = 2
		case 2:
			value |= bgr << 16
			d.dataOut.Push(value)
			value = bgr >> 16
			curSize = 1
		case 1:
			value |= bgr << 8
			d.dataOut.Push(value)
			curSize = 0
		}
	}
}

func (d *Decoder) pack15() {
	for i := 0; i < len(d.dest); i += 2 {
		lo := to15(d.dest[i], d.dataOutputBit15)
		hi := to15(d.dest[i+1], d.dataOutputBit15)
		d.dataOut.Push(uint32(lo) | uint32(hi)<<16)
	}
}

func to15(rgb uint32, stp bool) uint16 {
	r := uint16(rgb&0xFF) >> 3
	g := uint16((rgb>>8)&0xFF) >> 3
	b := uint16((rgb>>16)&0xFF) >> 3
	v := r | g<<5 | b<<10
	if stp {
		v |= 1 << 15
	}
	return v
}

// pack8/pack4 only ever cover the first 64 dest samples -- the single
// luminance block of a mono macroblock -- matching the original
// decoder's fixed 64-sample loop for these two depths.
func (d *Decoder) pack8() {
	for i := 0; i < 64; i += 4 {
		v := d.dest[i] | d.dest[i+1]<<8 | d.dest[i+2]<<16 | d.dest[i+3]<<24
		d.dataOut.Push(v)
	}
}

func (d *Decoder) pack4() {
	to4bit := func(luminance uint32) uint32 { return luminance >> 4 }
	for i := 0; i < 64; i += 8 {
		v := to4bit(d.dest[i])
		v |= to4bit(d.dest[i+1]) << 4
		v |= to4bit(d.dest[i+2]) << 8
		v |= to4bit(d.dest[i+3]) << 12
		v |= to4bit(d.dest[i+4]) << 16
		v |= to4bit(d.dest[i+5]) << 20
		v |= to4bit(d.dest[i+6]) << 24
		v |= to4bit(d.dest[i+7]) << 28
		d.dataOut.Push(v)
	}
}
