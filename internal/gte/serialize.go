package gte

import (
	"io"

	"github.com/retrocore/gopsx/internal/savestate"
)

const (
	saveTag     = "GTE"
	saveVersion = 1
)

// SaveState writes every data/control register. The GTE has no
// internal clock or pending-event state to capture beyond Busy, which
// is always false between instructions and so is not persisted.
func (g *GTE) SaveState(sw *savestate.Writer) {
	sw.Section(saveTag, saveVersion, func(w io.Writer) error {
		body := savestate.NewWriter(w)
		body.Value(&g.v)
		body.Value(g.rgbc)
		body.Value(g.otz)
		body.Value(g.ir0)
		body.Value(&g.ir)
		body.Value(&g.sxyFifo)
		body.Value(&g.szFifo)
		body.Value(&g.colorFifo)
		body.Value(g.mac0)
		body.Value(&g.mac)
		body.Value(&g.rotation)
		body.Value(&g.lightMatrix)
		body.Value(&g.colorMatrix)
		body.Value(&g.translation)
		body.Value(&g.backgroundColor)
		body.Value(&g.farColor)
		body.Value(g.screenOffsetX)
		body.Value(g.screenOffsetY)
		body.Value(g.projectionPlaneDistance)
		body.Value(g.depthQueueA)
		body.Value(g.depthQueueB)
		body.Value(g.zScaleFactor3)
		body.Value(g.zScaleFactor4)
		body.Value(g.flags)
		body.Value(g.lm)
		return body.Err()
	})
}

// LoadState restores state written by SaveState.
func (g *GTE) LoadState(sr *savestate.Reader) {
	sr.Section(saveTag, saveVersion, func(r io.Reader) error {
		body := savestate.NewReader(r)
		body.Value(&g.v)
		body.Value(&g.rgbc)
		body.Value(&g.otz)
		body.Value(&g.ir0)
		body.Value(&g.ir)
		body.Value(&g.sxyFifo)
		body.Value(&g.szFifo)
		body.Value(&g.colorFifo)
		body.Value(&g.mac0)
		body.Value(&g.mac)
		body.Value(&g.rotation)
		body.Value(&g.lightMatrix)
		body.Value(&g.colorMatrix)
		body.Value(&g.translation)
		body.Value(&g.backgroundColor)
		body.Value(&g.farColor)
		body.Value(&g.screenOffsetX)
		body.Value(&g.screenOffsetY)
		body.Value(&g.projectionPlaneDistance)
		body.Value(&g.depthQueueA)
		body.Value(&g.depthQueueB)
		body.Value(&g.zScaleFactor3)
		body.Value(&g.zScaleFactor4)
		body.Value(&g.flags)
		body.Value(&g.lm)
		return body.Err()
	})
}
