package spu

import (
	"io"

	"github.com/retrocore/gopsx/internal/bitfield"
	"github.com/retrocore/gopsx/internal/savestate"
)

const (
	saveTag     = "SPU"
	saveVersion = 1
)

func (v *voice) writeState(body *savestate.Writer) {
	body.Value(uint16(v.volumeLeft))
	body.Value(uint16(v.volumeRight))
	body.Value(v.currentVolumeLeft)
	body.Value(v.currentVolumeRight)
	body.Value(v.sampleRate)
	body.Value(v.startAddress)
	body.Value(v.repeatAddress)
	body.Value(uint32(v.adsr))
	body.Value(v.currentADSRVolume)
	body.Value(v.pitchModEnable)
	body.Value(v.noiseEnable)
	body.Value(v.reverbEnable)
	body.Value(int32(v.phase))
	body.Value(v.currentAddress)
	body.Value(v.repeatCaptured)
	body.Value(&v.history)
	body.Value(&v.block)
	body.Value(int32(v.blockIndex))
	body.Value(v.pitchCounter)
	body.Value(v.looped)
}

func (v *voice) readState(body *savestate.Reader) {
	var volL, volR uint16
	var adsr32 uint32
	var phase32, blockIndex32 int32
	body.Value(&volL)
	body.Value(&volR)
	body.Value(&v.currentVolumeLeft)
	body.Value(&v.currentVolumeRight)
	body.Value(&v.sampleRate)
	body.Value(&v.startAddress)
	body.Value(&v.repeatAddress)
	body.Value(&adsr32)
	body.Value(&v.currentADSRVolume)
	body.Value(&v.pitchModEnable)
	body.Value(&v.noiseEnable)
	body.Value(&v.reverbEnable)
	body.Value(&phase32)
	body.Value(&v.currentAddress)
	body.Value(&v.repeatCaptured)
	body.Value(&v.history)
	body.Value(&v.block)
	body.Value(&blockIndex32)
	body.Value(&v.pitchCounter)
	body.Value(&v.looped)

	v.volumeLeft = bitfield.Word16(volL)
	v.volumeRight = bitfield.Word16(volR)
	v.adsr = bitfield.Word32(adsr32)
	v.phase = adsrPhase(phase32)
	v.blockIndex = int(blockIndex32)
}

// SaveState writes SPU RAM, every voice, the mix/reverb registers and
// the transfer cursor.
func (s *SPU) SaveState(sw *savestate.Writer) {
	sw.Section(saveTag, saveVersion, func(w io.Writer) error {
		body := savestate.NewWriter(w)
		body.Value(&s.ram)
		for i := range s.voices {
			s.voices[i].writeState(body)
		}
		body.Value(uint16(s.mainVolumeLeft))
		body.Value(uint16(s.mainVolumeRight))
		body.Value(s.reverbOutLeft)
		body.Value(s.reverbOutRight)
		body.Value(s.cdAudioInputLeft)
		body.Value(s.cdAudioInputRight)
		body.Value(s.extAudioInputLeft)
		body.Value(s.extAudioInputRight)
		body.Value(uint16(s.control))
		body.Value(uint16(s.transferCtl))
		body.Value(uint16(s.status))
		body.Value(s.reverbWorkStart)
		body.Value(s.irqAddress)
		body.Value(s.transferAddr)
		body.Value(s.dmaCursor)
		body.Value(uint32(len(s.fifo)))
		if len(s.fifo) > 0 {
			body.Value(s.fifo)
		}
		body.Value(&s.reverbRegs)
		body.Value(s.keyOn)
		body.Value(s.keyOff)
		return body.Err()
	})
}

// LoadState restores state written by SaveState.
func (s *SPU) LoadState(sr *savestate.Reader) {
	sr.Section(saveTag, saveVersion, func(r io.Reader) error {
		body := savestate.NewReader(r)
		body.Value(&s.ram)
		for i := range s.voices {
			s.voices[i].readState(body)
		}
		var mainL, mainR, ctl, xferCtl, status uint16
		body.Value(&mainL)
		body.Value(&mainR)
		body.Value(&s.reverbOutLeft)
		body.Value(&s.reverbOutRight)
		body.Value(&s.cdAudioInputLeft)
		body.Value(&s.cdAudioInputRight)
		body.Value(&s.extAudioInputLeft)
		body.Value(&s.extAudioInputRight)
		body.Value(&ctl)
		body.Value(&xferCtl)
		body.Value(&status)
		body.Value(&s.reverbWorkStart)
		body.Value(&s.irqAddress)
		body.Value(&s.transferAddr)
		body.Value(&s.dmaCursor)
		var fifoLen uint32
		body.Value(&fifoLen)
		s.fifo = make([]uint16, fifoLen)
		if fifoLen > 0 {
			body.Value(s.fifo)
		}
		body.Value(&s.reverbRegs)
		body.Value(&s.keyOn)
		body.Value(&s.keyOff)

		s.mainVolumeLeft = bitfield.Word16(mainL)
		s.mainVolumeRight = bitfield.Word16(mainR)
		s.control = bitfield.Word16(ctl)
		s.transferCtl = bitfield.Word16(xferCtl)
		s.status = bitfield.Word16(status)
		return body.Err()
	})
}
