// Package spu implements the 24-voice ADPCM synthesiser described in
// spec.md's component table (ADPCM synthesis and CD-audio mix). The
// reverb registers and per-voice reverb enables are stored and read
// back, but no reverb is applied to the mix.
// It has no teacher analogue; it is grounded on original_source
// SPU.h's VoiceRegisters/Control/Status/ReverbRegisters bitfield
// layout, expressed with this module's bitfield.Word32/Word16
// wrappers and sched.Event scheduling in place of the teacher's Game
// Boy APU channel mixer (the closest teacher analogue for a
// multi-voice sample-rate-converting mixer).
package spu

import (
	"log/slog"

	"github.com/retrocore/gopsx/internal/bitfield"
	"github.com/retrocore/gopsx/internal/irq"
	"github.com/retrocore/gopsx/internal/sched"
)

const (
	VoiceCount    = 24
	RAMSize       = 0x80000
	ramAddressMask = RAMSize - 1
	fifoSize      = 32

	cyclesPerSample = 768 // 33868800 Hz / 44100 Hz
)

// TransferMode selects how SPUDATA/DMA traffic reaches SPU RAM.
type TransferMode uint16

const (
	TransferStop TransferMode = iota
	TransferManualWrite
	TransferDMAWrite
	TransferDMARead
)

// AudioSink receives finished stereo frames at the guest's 44100 Hz
// rate, per spec.md §6's AudioQueue collaborator.
type AudioSink interface {
	PushFrame(left, right int16)
}

type nullSink struct{}

func (nullSink) PushFrame(int16, int16) {}

// SPU is the sound processing unit.
type SPU struct {
	ram  [RAMSize]byte
	sink AudioSink

	voices [VoiceCount]voice

	mainVolumeLeft, mainVolumeRight   bitfield.Word16
	reverbOutLeft, reverbOutRight     int16
	cdAudioInputLeft, cdAudioInputRight int16
	extAudioInputLeft, extAudioInputRight int16

	control     bitfield.Word16
	transferCtl bitfield.Word16
	status      bitfield.Word16

	reverbWorkStart uint16
	irqAddress      uint16
	transferAddr    uint16 // SPUADDR register value, in 8-byte units
	dmaCursor       uint32 // byte cursor used by DMA/FIFO transfers, derived from transferAddr

	fifo       []uint16
	reverbRegs [32]uint16

	keyOn, keyOff uint32

	irqc      *irq.Control
	sched     *sched.Manager
	sampleEvt *sched.Event

	log *slog.Logger
}

// New constructs a reset SPU.
func New(irqc *irq.Control, scheduler *sched.Manager) *SPU {
	s := &SPU{
		irqc:  irqc,
		sched: scheduler,
		sink:  nullSink{},
		log:   slog.With("component", "spu"),
	}
	s.sampleEvt = scheduler.CreateEvent("spu-sample", s.onSampleEvent)
	s.Reset()
	return s
}

// SetAudioSink attaches the host's stereo output queue.
func (s *SPU) SetAudioSink(sink AudioSink) {
	if sink == nil {
		sink = nullSink{}
	}
	s.sink = sink
}

// Reset restores power-on SPU state.
func (s *SPU) Reset() {
	for i := range s.voices {
		s.voices[i] = voice{}
	}
	s.control = 0
	s.status = 0
	s.keyOn, s.keyOff = 0, 0
	s.fifo = s.fifo[:0]
	s.sampleEvt.Schedule(cyclesPerSample)
}

func (s *SPU) controlTransferMode() TransferMode {
	return TransferMode(s.control.Field(4, 2))
}

func (s *SPU) irqEnabled() bool { return s.control.Bit(6) }

func (s *SPU) checkIRQAddress(addr uint32) {
	if !s.irqEnabled() || s.status.Bit(6) {
		return
	}
	if addr == uint32(s.irqAddress)*8 {
		s.status = s.status.SetBit(6, true)
		s.irqc.Raise(irq.SPU)
	}
}

// voiceRegisterWord reads one of a voice's 8 16-bit registers.
func (s *SPU) voiceRegisterWord(voiceIdx int, reg int) uint16 {
	v := &s.voices[voiceIdx]
	switch reg {
	case 0:
		return uint16(v.volumeLeft)
	case 1:
		return uint16(v.volumeRight)
	case 2:
		return v.sampleRate
	case 3:
		return v.startAddress
	case 4:
		return uint16(v.adsr)
	case 5:
		return uint16(v.adsr >> 16)
	case 6:
		return uint16(v.currentADSRVolume)
	case 7:
		return v.repeatAddress
	}
	return 0
}

func (s *SPU) writeVoiceRegisterWord(voiceIdx int, reg int, value uint16) {
	v := &s.voices[voiceIdx]
	switch reg {
	case 0:
		v.volumeLeft = bitfield.Word16(value)
	case 1:
		v.volumeRight = bitfield.Word16(value)
	case 2:
		v.sampleRate = value
	case 3:
		v.startAddress = value
	case 4:
		v.adsr = bitfield.Word32(uint32(v.adsr)&0xFFFF0000 | uint32(value))
	case 5:
		v.adsr = bitfield.Word32(uint32(v.adsr)&0xFFFF | uint32(value)<<16)
	case 6:
		v.currentADSRVolume = int16(value)
	case 7:
		v.repeatAddress = value
	}
}

// Read implements the 16-bit register surface at offsets 0x1F801C00
// relative addressing (voice registers, main control, reverb).
func (s *SPU) Read(offset uint32) uint16 {
	switch {
	case offset < 0x180: // 24 voices x 16 bytes
		voiceIdx := int(offset / 16)
		reg := int((offset % 16) / 2)
		return s.voiceRegisterWord(voiceIdx, reg)
	case offset == 0x180:
		return uint16(s.mainVolumeLeft)
	case offset == 0x182:
		return uint16(s.mainVolumeRight)
	case offset == 0x184:
		return uint16(s.reverbOutLeft)
	case offset == 0x186:
		return uint16(s.reverbOutRight)
	case offset == 0x188:
		return uint16(s.keyOn)
	case offset == 0x18A:
		return uint16(s.keyOn >> 16)
	case offset == 0x18C:
		return uint16(s.keyOff)
	case offset == 0x18E:
		return uint16(s.keyOff >> 16)
	case offset == 0x190:
		return uint16(s.pitchModEnableWord())
	case offset == 0x192:
		return uint16(s.pitchModEnableWord() >> 16)
	case offset == 0x194:
		return uint16(s.noiseModeWord())
	case offset == 0x196:
		return uint16(s.noiseModeWord() >> 16)
	case offset == 0x198:
		return uint16(s.reverbEnableWord())
	case offset == 0x19A:
		return uint16(s.reverbEnableWord() >> 16)
	case offset == 0x19C:
		return uint16(s.voiceStatusWord())
	case offset == 0x19E:
		return uint16(s.voiceStatusWord() >> 16)
	case offset == 0x1A2:
		return uint16(s.reverbWorkStart)
	case offset == 0x1A4:
		return uint16(s.irqAddress)
	case offset == 0x1A6:
		return uint16(s.transferAddr)
	case offset == 0x1A8:
		return 0 // SPUDATA write-only
	case offset == 0x1AA:
		return uint16(s.control)
	case offset == 0x1AC:
		return uint16(s.transferCtl)
	case offset == 0x1AE:
		return uint16(s.status)
	case offset == 0x1B0:
		return uint16(s.cdAudioInputLeft)
	case offset == 0x1B2:
		return uint16(s.cdAudioInputRight)
	case offset == 0x1B4:
		return uint16(s.extAudioInputLeft)
	case offset == 0x1B6:
		return uint16(s.extAudioInputRight)
	case offset >= 0x1C0 && offset < 0x200:
		return s.reverbRegs[(offset-0x1C0)/2]
	case offset >= 0x200 && offset < 0x260:
		pair := (offset - 0x200) / 2
		voiceIdx := int(pair / 2)
		if voiceIdx >= VoiceCount {
			return 0
		}
		if pair%2 == 0 {
			return uint16(s.voices[voiceIdx].currentVolumeLeft)
		}
		return uint16(s.voices[voiceIdx].currentVolumeRight)
	}
	return 0xFFFF
}

// Write implements the 16-bit register surface.
func (s *SPU) Write(offset uint32, value uint16) {
	switch {
	case offset < 0x180:
		voiceIdx := int(offset / 16)
		reg := int((offset % 16) / 2)
		s.writeVoiceRegisterWord(voiceIdx, reg, value)
	case offset == 0x180:
		s.mainVolumeLeft = bitfield.Word16(value)
	case offset == 0x182:
		s.mainVolumeRight = bitfield.Word16(value)
	case offset == 0x184:
		s.reverbOutLeft = int16(value)
	case offset == 0x186:
		s.reverbOutRight = int16(value)
	case offset == 0x188:
		s.keyOn = s.keyOn&0xFFFF0000 | uint32(value)
		s.applyKeyOnLow(value)
	case offset == 0x18A:
		s.keyOn = s.keyOn&0xFFFF | uint32(value)<<16
		s.applyKeyOnHigh(value)
	case offset == 0x18C:
		s.keyOff = s.keyOff&0xFFFF0000 | uint32(value)
		s.applyKeyOffLow(value)
	case offset == 0x18E:
		s.keyOff = s.keyOff&0xFFFF | uint32(value)<<16
		s.applyKeyOffHigh(value)
	case offset == 0x190, offset == 0x192:
		s.writePitchModEnableHalf(offset, value)
	case offset == 0x194, offset == 0x196:
		s.writeNoiseModeHalf(offset, value)
	case offset == 0x198, offset == 0x19A:
		s.writeReverbEnableHalf(offset, value)
	case offset == 0x1A2:
		s.reverbWorkStart = value
	case offset == 0x1A4:
		s.irqAddress = value
	case offset == 0x1A6:
		s.transferAddr = value
		s.dmaCursor = uint32(value) * 8
	case offset == 0x1A8:
		s.writeTransferFIFO(value)
	case offset == 0x1AA:
		s.setControl(value)
	case offset == 0x1AC:
		s.transferCtl = bitfield.Word16(value)
	case offset == 0x1AE:
		// status is read-only except for bits the guest can't reach here
	case offset == 0x1B0:
		s.cdAudioInputLeft = int16(value)
	case offset == 0x1B2:
		s.cdAudioInputRight = int16(value)
	case offset == 0x1B4:
		s.extAudioInputLeft = int16(value)
	case offset == 0x1B6:
		s.extAudioInputRight = int16(value)
	case offset >= 0x1C0 && offset < 0x200:
		s.reverbRegs[(offset-0x1C0)/2] = value
	}
}

func (s *SPU) setControl(value uint16) {
	s.control = bitfield.Word16(value)
	if !s.control.Bit(15) { // SPU enable bit (bit15 = "enable")
		return
	}
}

func (s *SPU) applyKeyOnLow(value uint16) {
	for i := 0; i < 16; i++ {
		if value&(1<<i) != 0 {
			s.voices[i].keyOn()
		}
	}
}
func (s *SPU) applyKeyOnHigh(value uint16) {
	for i := 0; i < 8; i++ {
		if value&(1<<i) != 0 {
			s.voices[16+i].keyOn()
		}
	}
}
func (s *SPU) applyKeyOffLow(value uint16) {
	for i := 0; i < 16; i++ {
		if value&(1<<i) != 0 {
			s.voices[i].keyOff()
		}
	}
}
func (s *SPU) applyKeyOffHigh(value uint16) {
	for i := 0; i < 8; i++ {
		if value&(1<<i) != 0 {
			s.voices[16+i].keyOff()
		}
	}
}

func (s *SPU) pitchModEnableWord() uint32 {
	var w uint32
	for i, v := range s.voices {
		if v.pitchModEnable {
			w |= 1 << i
		}
	}
	return w
}
func (s *SPU) writePitchModEnableHalf(offset uint32, value uint16) {
	base := 0
	if offset == 0x192 {
		base = 16
	}
	n := 16
	if base == 16 {
		n = 8
	}
	for i := 0; i < n; i++ {
		s.voices[base+i].pitchModEnable = value&(1<<i) != 0
	}
}

func (s *SPU) noiseModeWord() uint32 {
	var w uint32
	for i, v := range s.voices {
		if v.noiseEnable {
			w |= 1 << i
		}
	}
	return w
}
func (s *SPU) writeNoiseModeHalf(offset uint32, value uint16) {
	base := 0
	if offset == 0x196 {
		base = 16
	}
	n := 16
	if base == 16 {
		n = 8
	}
	for i := 0; i < n; i++ {
		s.voices[base+i].noiseEnable = value&(1<<i) != 0
	}
}

func (s *SPU) reverbEnableWord() uint32 {
	var w uint32
	for i, v := range s.voices {
		if v.reverbEnable {
			w |= 1 << i
		}
	}
	return w
}
func (s *SPU) writeReverbEnableHalf(offset uint32, value uint16) {
	base := 0
	if offset == 0x19A {
		base = 16
	}
	n := 16
	if base == 16 {
		n = 8
	}
	for i := 0; i < n; i++ {
		s.voices[base+i].reverbEnable = value&(1<<i) != 0
	}
}

func (s *SPU) voiceStatusWord() uint32 {
	var w uint32
	for i, v := range s.voices {
		if v.phase != phaseOff {
			w |= 1 << i
		}
	}
	return w
}

// writeTransferFIFO accepts one halfword of manual-write transfer
// data, per spec.md's DataTransferControl Fill/Normal/RepN modes
// (only Normal is modeled: one input halfword writes one SPU RAM
// halfword at the transfer cursor).
func (s *SPU) writeTransferFIFO(value uint16) {
	if len(s.fifo) >= fifoSize {
		s.log.Warn("spu transfer fifo overflow")
		return
	}
	s.fifo = append(s.fifo, value)
	if s.controlTransferMode() == TransferManualWrite {
		s.drainFIFO()
	}
}

func (s *SPU) drainFIFO() {
	for _, v := range s.fifo {
		s.writeRAMHalfword(s.dmaCursor, v)
		s.dmaCursor = (s.dmaCursor + 2) & ramAddressMask
	}
	s.fifo = s.fifo[:0]
}

func (s *SPU) writeRAMHalfword(addr uint32, value uint16) {
	addr &= ramAddressMask
	s.ram[addr] = byte(value)
	s.ram[(addr+1)&ramAddressMask] = byte(value >> 8)
	s.checkIRQAddress(addr)
}

func (s *SPU) readRAMHalfword(addr uint32) uint16 {
	addr &= ramAddressMask
	lo := s.ram[addr]
	hi := s.ram[(addr+1)&ramAddressMask]
	s.checkIRQAddress(addr)
	return uint16(lo) | uint16(hi)<<8
}

// DMAWriteWord implements dma.Port for RAM-to-SPU transfers.
func (s *SPU) DMAWriteWord(value uint32) {
	s.writeRAMHalfword(s.dmaCursor, uint16(value))
	s.dmaCursor = (s.dmaCursor + 2) & ramAddressMask
	s.writeRAMHalfword(s.dmaCursor, uint16(value>>16))
	s.dmaCursor = (s.dmaCursor + 2) & ramAddressMask
}

// DMAReadWord implements dma.Port for SPU-to-RAM transfers.
func (s *SPU) DMAReadWord() uint32 {
	lo := s.readRAMHalfword(s.dmaCursor)
	s.dmaCursor = (s.dmaCursor + 2) & ramAddressMask
	hi := s.readRAMHalfword(s.dmaCursor)
	s.dmaCursor = (s.dmaCursor + 2) & ramAddressMask
	return uint32(lo) | uint32(hi)<<16
}

// DMARequest implements dma.Port: SPU DMA is always ready to
// service once a transfer mode is active (no backpressure modeled).
func (s *SPU) DMARequest() bool {
	mode := s.controlTransferMode()
	return mode == TransferDMAWrite || mode == TransferDMARead
}

// onSampleEvent generates one 44100 Hz stereo frame by mixing every
// active voice plus the CD-audio input, per spec.md's "CD-audio mix".
func (s *SPU) onSampleEvent(cycles sched.Cycle) {
	s.sampleEvt.Cancel()

	var mixLeft, mixRight int32
	for i := range s.voices {
		l, r := s.voices[i].step(s)
		mixLeft += int32(l)
		mixRight += int32(r)
	}

	mixLeft += int32(s.cdAudioInputLeft)
	mixRight += int32(s.cdAudioInputRight)

	left := applyVolume(mixLeft, s.mainVolumeLeft)
	right := applyVolume(mixRight, s.mainVolumeRight)
	s.sink.PushFrame(left, right)

	s.sampleEvt.Schedule(cyclesPerSample)
}

func applyVolume(sample int32, vol bitfield.Word16) int16 {
	fixed := int32(int16(vol << 1)) >> 1 // sign-extend the 15-bit fixedVolume field
	scaled := (sample * int32(fixed)) >> 14
	return clampInt16(scaled)
}

func clampInt16(v int32) int16 {
	if v > 0x7FFF {
		return 0x7FFF
	}
	if v < -0x8000 {
		return -0x8000
	}
	return int16(v)
}
