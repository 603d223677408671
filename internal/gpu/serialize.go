package gpu

import (
	"io"

	"github.com/retrocore/gopsx/internal/bitfield"
	"github.com/retrocore/gopsx/internal/savestate"
)

const (
	saveTag     = "GPU"
	saveVersion = 1
)

// SaveState writes VRAM and every draw-mode/display register plus the
// CRT scan position. A GP0 command still accumulating parameters
// (mid multi-word polygon/polyline) is not captured: the partial
// command is dropped on load, matching the cost other emulators pay
// for snapshotting between instructions rather than mid-primitive.
func (g *GPU) SaveState(sw *savestate.Writer) {
	sw.Section(saveTag, saveVersion, func(w io.Writer) error {
		body := savestate.NewWriter(w)
		body.Value(&g.vram)

		body.Value(uint32(g.status))
		body.Value(g.texPageX)
		body.Value(g.texPageY)
		body.Value(g.semiTransparency)
		body.Value(g.texPageColors)
		body.Value(g.ditherEnabled)
		body.Value(g.drawToDisplayEnabled)
		body.Value(g.textureDisabled)
		body.Value(g.texturedRectFlipX)
		body.Value(g.texturedRectFlipY)

		body.Value(int32(g.drawAreaLeft))
		body.Value(int32(g.drawAreaTop))
		body.Value(int32(g.drawAreaRight))
		body.Value(int32(g.drawAreaBottom))
		body.Value(int32(g.drawOffsetX))
		body.Value(int32(g.drawOffsetY))
		body.Value(g.texWindowMaskX)
		body.Value(g.texWindowMaskY)
		body.Value(g.texWindowOffsetX)
		body.Value(g.texWindowOffsetY)

		body.Value(g.forceMaskBit)
		body.Value(g.checkMaskBit)

		body.Value(g.displayEnabled)
		body.Value(int32(g.displayAreaX))
		body.Value(int32(g.displayAreaY))
		body.Value(int32(g.hRangeStart))
		body.Value(int32(g.hRangeEnd))
		body.Value(int32(g.vRangeStart))
		body.Value(int32(g.vRangeEnd))
		body.Value(g.videoMode)
		body.Value(g.colorDepth24)
		body.Value(g.interlaced)
		body.Value(g.reverseFlag)
		body.Value(g.horizontalRes)
		body.Value(g.verticalRes)

		body.Value(int32(g.scanline))
		body.Value(int32(g.dotFraction))
		body.Value(g.gpuClock)
		body.Value(g.oddFrame)
		body.Value(g.inVBlank)
		return body.Err()
	})
}

// LoadState restores state written by SaveState.
func (g *GPU) LoadState(sr *savestate.Reader) {
	sr.Section(saveTag, saveVersion, func(r io.Reader) error {
		body := savestate.NewReader(r)
		body.Value(&g.vram)

		var status32 uint32
		body.Value(&status32)
		g.status = bitfield.Word32(status32)
		body.Value(&g.texPageX)
		body.Value(&g.texPageY)
		body.Value(&g.semiTransparency)
		body.Value(&g.texPageColors)
		body.Value(&g.ditherEnabled)
		body.Value(&g.drawToDisplayEnabled)
		body.Value(&g.textureDisabled)
		body.Value(&g.texturedRectFlipX)
		body.Value(&g.texturedRectFlipY)

		var left, top, right, bottom, offX, offY int32
		body.Value(&left)
		body.Value(&top)
		body.Value(&right)
		body.Value(&bottom)
		body.Value(&offX)
		body.Value(&offY)
		g.drawAreaLeft, g.drawAreaTop, g.drawAreaRight, g.drawAreaBottom = int(left), int(top), int(right), int(bottom)
		g.drawOffsetX, g.drawOffsetY = int(offX), int(offY)
		body.Value(&g.texWindowMaskX)
		body.Value(&g.texWindowMaskY)
		body.Value(&g.texWindowOffsetX)
		body.Value(&g.texWindowOffsetY)

		body.Value(&g.forceMaskBit)
		body.Value(&g.checkMaskBit)

		var dispX, dispY, hStart, hEnd, vStart, vEnd int32
		body.Value(&g.displayEnabled)
		body.Value(&dispX)
		body.Value(&dispY)
		body.Value(&hStart)
		body.Value(&hEnd)
		body.Value(&vStart)
		body.Value(&vEnd)
		g.displayAreaX, g.displayAreaY = int(dispX), int(dispY)
		g.hRangeStart, g.hRangeEnd = int(hStart), int(hEnd)
		g.vRangeStart, g.vRangeEnd = int(vStart), int(vEnd)
		body.Value(&g.videoMode)
		body.Value(&g.colorDepth24)
		body.Value(&g.interlaced)
		body.Value(&g.reverseFlag)
		body.Value(&g.horizontalRes)
		body.Value(&g.verticalRes)

		var scanline, dotFraction int32
		body.Value(&scanline)
		body.Value(&dotFraction)
		g.scanline, g.dotFraction = int(scanline), int(dotFraction)
		body.Value(&g.gpuClock)
		body.Value(&g.oddFrame)
		body.Value(&g.inVBlank)
		g.st = stateIdle
		g.pending = nil
		return body.Err()
	})
}
