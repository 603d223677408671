package memmap

import (
	"io"

	"github.com/retrocore/gopsx/internal/savestate"
)

const (
	saveTag     = "MEM"
	saveVersion = 1
)

// SaveState writes RAM, Scratchpad and the cache-control register.
// BIOS is not captured: it is a read-only image the host reloads from
// disk (spec.md §6 lists BIOS loading as an external collaborator
// concern), and the instruction cache is a pure performance structure
// that InvalidateICache() already clears on every load, so a cold
// cache after restore is correct, just momentarily slower.
func (b *Bus) SaveState(sw *savestate.Writer) {
	sw.Section(saveTag, saveVersion, func(w io.Writer) error {
		body := savestate.NewWriter(w)
		body.Value(b.RAM.data)
		body.Value(b.Scratchpad.data)
		body.Value(b.cacheControl)
		return body.Err()
	})
}

// LoadState restores state written by SaveState.
func (b *Bus) LoadState(sr *savestate.Reader) {
	sr.Section(saveTag, saveVersion, func(r io.Reader) error {
		body := savestate.NewReader(r)
		body.Value(b.RAM.data)
		body.Value(b.Scratchpad.data)
		body.Value(&b.cacheControl)
		b.InvalidateICache()
		return body.Err()
	})
}
