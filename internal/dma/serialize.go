package dma

import (
	"io"

	"github.com/retrocore/gopsx/internal/bitfield"
	"github.com/retrocore/gopsx/internal/savestate"
)

const (
	saveTag     = "DMA"
	saveVersion = 1
)

// SaveState writes every channel's registers plus the shared
// priority/IRQ registers. Attached ports are wired by the top-level
// Machine at construction time and are not part of the snapshot.
func (c *Controller) SaveState(sw *savestate.Writer) {
	sw.Section(saveTag, saveVersion, func(w io.Writer) error {
		body := savestate.NewWriter(w)
		for i := range c.channels {
			ch := &c.channels[i]
			body.Value(ch.baseAddress)
			body.Value(ch.wordCount)
			body.Value(ch.blockCount)
			body.Value(uint32(ch.control))
			body.Value(ch.request)
		}
		body.Value(uint32(c.control))
		body.Value(c.irqForceMaster)
		body.Value(c.irqEnables)
		body.Value(c.irqMasterEnable)
		body.Value(c.irqFlags)
		return body.Err()
	})
}

// LoadState restores state written by SaveState.
func (c *Controller) LoadState(sr *savestate.Reader) {
	sr.Section(saveTag, saveVersion, func(r io.Reader) error {
		body := savestate.NewReader(r)
		for i := range c.channels {
			ch := &c.channels[i]
			var control32 uint32
			body.Value(&ch.baseAddress)
			body.Value(&ch.wordCount)
			body.Value(&ch.blockCount)
			body.Value(&control32)
			body.Value(&ch.request)
			ch.control = bitfield.Word32(control32)
		}
		var control32 uint32
		body.Value(&control32)
		c.control = bitfield.Word32(control32)
		body.Value(&c.irqForceMaster)
		body.Value(&c.irqEnables)
		body.Value(&c.irqMasterEnable)
		body.Value(&c.irqFlags)
		return body.Err()
	})
}
