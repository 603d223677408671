package hostterm

import (
	"image"
	"image/color"

	"github.com/lucasb-eyer/go-colorful"

	"github.com/retrocore/gopsx/internal/gpu"
)

// vramRegion adapts a rectangular slice of the GPU's VRAM into an
// image.Image so it can be fed through golang.org/x/image/draw's
// scalers, per SPEC_FULL.md's host-debug-view wiring for that
// dependency. Colors are decoded with colordebug.go's helpers so the
// F7 real-color toggle and mask-bit overlay apply identically whether
// the view is showing the live display area or the full VRAM peek.
type vramRegion struct {
	gpu       *gpu.GPU
	x0, y0    int
	w, h      int
	maskBit   bool // overlay mask-bit pixels, per spec.md §6's F-key debug hotkeys
	realColor bool // F7: DebugColor's interpolated channels vs BlockyColor's naive ones
}

func (v *vramRegion) ColorModel() color.Model { return color.RGBA64Model }

func (v *vramRegion) Bounds() image.Rectangle { return image.Rect(0, 0, v.w, v.h) }

func (v *vramRegion) At(x, y int) color.Color {
	pixel := v.gpu.VRAMPixel(v.x0+x, v.y0+y)
	var c colorful.Color
	switch {
	case v.maskBit:
		c = gpu.MaskBitColor(pixel)
	case v.realColor:
		c = gpu.DebugColor(pixel)
	default:
		c = gpu.BlockyColor(pixel)
	}
	r, g, b := c.Clamped().RGB255()
	return color.RGBA{R: r, G: g, B: b, A: 0xFF}
}
