package irq

import (
	"io"

	"github.com/retrocore/gopsx/internal/savestate"
)

const (
	saveTag     = "IRQC"
	saveVersion = 1
)

// SaveState writes the pending/mask register pair.
func (c *Control) SaveState(sw *savestate.Writer) {
	sw.Section(saveTag, saveVersion, func(w io.Writer) error {
		body := savestate.NewWriter(w)
		body.Value(c.status)
		body.Value(c.mask)
		return body.Err()
	})
}

// LoadState restores state written by SaveState.
func (c *Control) LoadState(sr *savestate.Reader) {
	sr.Section(saveTag, saveVersion, func(r io.Reader) error {
		body := savestate.NewReader(r)
		body.Value(&c.status)
		body.Value(&c.mask)
		return body.Err()
	})
}
