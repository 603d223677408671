package spu

import "github.com/retrocore/gopsx/internal/bitfield"

// adpcmFilterTable is the 5-entry SPU ADPCM predictor set (the same
// family of coefficients as the CD-ROM's XA filter, extended with a
// fifth pair), used to decode the 4-bit samples in each 16-byte SPU
// ADPCM block.
var adpcmFilterTable = [5][2]int32{
	{0, 0},
	{60, 0},
	{115, -52},
	{98, -55},
	{122, -60},
}

type adsrPhase int

const (
	phaseOff adsrPhase = iota
	phaseAttack
	phaseDecay
	phaseSustain
	phaseRelease
)

// voice is one of the SPU's 24 ADPCM synthesis channels.
type voice struct {
	volumeLeft, volumeRight bitfield.Word16
	currentVolumeLeft, currentVolumeRight int16
	sampleRate      uint16 // 4.12 fixed-point pitch
	startAddress    uint16 // x8
	repeatAddress   uint16 // x8
	adsr            bitfield.Word32
	currentADSRVolume int16

	pitchModEnable bool
	noiseEnable    bool
	reverbEnable   bool

	phase adsrPhase

	currentAddress uint32 // byte address within SPU RAM
	repeatCaptured uint32
	history        [2]int32
	block          [28]int16
	blockIndex     int
	pitchCounter   uint32

	looped bool
}

// keyOn restarts sample playback from startAddress and enters the
// attack phase, per spec.md's VoiceFlags.keyOn bitmask write.
func (v *voice) keyOn() {
	v.currentAddress = uint32(v.startAddress) * 8
	v.repeatCaptured = v.currentAddress
	v.history = [2]int32{}
	v.blockIndex = 28 // force an immediate block decode
	v.pitchCounter = 0
	v.currentADSRVolume = 0
	v.phase = phaseAttack
	v.looped = false
}

// keyOff transitions directly into the release phase regardless of
// the current phase.
func (v *voice) keyOff() {
	if v.phase != phaseOff {
		v.phase = phaseRelease
	}
}

func (v *voice) adsrField(shift, width uint) uint32 { return v.adsr.Field(shift, width) }

// step advances the voice by one 44100 Hz sample tick: resamples the
// ADPCM stream per the pitch counter, steps the ADSR envelope, and
// returns the voice's left/right contribution after volume scaling.
func (v *voice) step(s *SPU) (int16, int16) {
	if v.phase == phaseOff {
		return 0, 0
	}

	v.pitchCounter += uint32(v.sampleRate)
	for v.pitchCounter >= 0x1000 {
		v.pitchCounter -= 0x1000
		v.advanceSample(s)
	}

	raw := int32(v.currentSample())
	envelope := int32(v.currentADSRVolume)
	sample := (raw * envelope) >> 15

	v.stepEnvelope()

	left := applyVoiceVolume(sample, v.volumeLeft)
	right := applyVoiceVolume(sample, v.volumeRight)
	v.currentVolumeLeft, v.currentVolumeRight = left, right
	return left, right
}

func (v *voice) currentSample() int16 {
	if v.blockIndex >= 28 {
		return 0
	}
	return v.block[v.blockIndex]
}

// advanceSample moves to the next decoded ADPCM sample, decoding a
// fresh 16-byte block from SPU RAM when the current one is exhausted.
func (v *voice) advanceSample(s *SPU) {
	v.blockIndex++
	if v.blockIndex < 28 {
		return
	}
	v.decodeBlock(s)
	v.blockIndex = 0
}

func (v *voice) decodeBlock(s *SPU) {
	header := s.ram[v.currentAddress&ramAddressMask]
	flags := s.ram[(v.currentAddress+1)&ramAddressMask]

	shift := uint(header & 0xF)
	filter := int(header>>4) & 0x7
	if filter >= len(adpcmFilterTable) {
		filter = 0
	}
	pos, neg := adpcmFilterTable[filter][0], adpcmFilterTable[filter][1]

	loopStart := flags&0x4 != 0
	loopRepeat := flags&0x2 != 0
	loopEnd := flags&0x1 != 0

	if loopStart {
		v.repeatCaptured = v.currentAddress
	}

	for i := 0; i < 14; i++ {
		b := s.ram[(v.currentAddress+2+uint32(i))&ramAddressMask]
		lo := decodeNibble(b&0xF, shift, pos, neg, &v.history)
		hi := decodeNibble(b>>4, shift, pos, neg, &v.history)
		v.block[i*2] = lo
		v.block[i*2+1] = hi
	}

	v.currentAddress = (v.currentAddress + 16) & ramAddressMask

	if loopEnd {
		if loopRepeat {
			v.currentAddress = v.repeatCaptured
		} else {
			v.phase = phaseOff
			v.looped = true
		}
	}
}

func decodeNibble(nibble byte, shift uint, pos, neg int32, history *[2]int32) int16 {
	raw := int32(int8(nibble<<4)) >> 4
	shifted := raw << (12 - shift)
	predicted := (history[0]*pos + history[1]*neg) >> 6
	val := shifted + predicted
	if val > 0x7FFF {
		val = 0x7FFF
	} else if val < -0x8000 {
		val = -0x8000
	}
	history[1] = history[0]
	history[0] = val
	return int16(val)
}

// stepEnvelope advances the ADSR state machine one tick. The exact
// per-rate timing tables are not in any teacher or pack source; this
// follows the field layout in spec.md/original_source SPU.h (shift,
// step, mode, direction) with the well-documented PSX ADSR shape
// (exponential decay/release, switchable linear/exponential attack
// and sustain) rather than a cycle-exact rate table.
func (v *voice) stepEnvelope() {
	switch v.phase {
	case phaseAttack:
		shift := v.adsrField(10, 5)
		step := int32(7 - v.adsrField(8, 2))
		exponential := v.adsrField(15, 1) == 1
		delta := envelopeDelta(shift, step, exponential && v.currentADSRVolume >= 0x6000)
		v.currentADSRVolume = clampEnvelope(int32(v.currentADSRVolume) + delta)
		if v.currentADSRVolume >= 0x7FFF {
			v.currentADSRVolume = 0x7FFF
			v.phase = phaseDecay
		}
	case phaseDecay:
		shift := v.adsrField(4, 4)
		delta := envelopeDelta(shift, -8, true)
		v.currentADSRVolume = clampEnvelope(int32(v.currentADSRVolume) + delta)
		sustainLevel := int32((v.adsrField(0, 4) + 1) * 0x800)
		if int32(v.currentADSRVolume) <= sustainLevel {
			v.phase = phaseSustain
		}
	case phaseSustain:
		shift := v.adsrField(24, 5)
		step := int32(7 - v.adsrField(22, 2))
		decreasing := v.adsrField(29, 1) == 1
		exponential := v.adsrField(30, 1) == 1
		if decreasing {
			step = -step - 1
		}
		delta := envelopeDelta(shift, step, exponential && decreasing)
		v.currentADSRVolume = clampEnvelope(int32(v.currentADSRVolume) + delta)
	case phaseRelease:
		shift := v.adsrField(16, 5)
		exponential := v.adsrField(21, 1) == 1
		delta := envelopeDelta(shift, -8, exponential)
		v.currentADSRVolume = clampEnvelope(int32(v.currentADSRVolume) + delta)
		if v.currentADSRVolume <= 0 {
			v.currentADSRVolume = 0
			v.phase = phaseOff
		}
	}
}

// envelopeDelta computes one ADSR tick's delta given a rate shift,
// base step, and whether the exponential falloff applies (its step
// is progressively halved as the shift grows, per the documented PSX
// "pseudo-exponential" envelope shape).
func envelopeDelta(shift uint32, step int32, exponential bool) int32 {
	cycles := int32(1) << shift
	if cycles < 1 {
		cycles = 1
	}
	if exponential {
		step = step / 4
		if step == 0 {
			if step >= 0 {
				step = 1
			} else {
				step = -1
			}
		}
	}
	return step * 0x8000 / (cycles * 0x20)
}

func clampEnvelope(v int32) int16 {
	if v > 0x7FFF {
		return 0x7FFF
	}
	if v < 0 {
		return 0
	}
	return int16(v)
}

func applyVoiceVolume(sample int32, vol bitfield.Word16) int16 {
	fixed := int32(int16(vol << 1)) >> 1
	scaled := (sample * fixed) >> 15
	return clampInt16(scaled)
}
