package gpu

import "github.com/lucasb-eyer/go-colorful"

// VRAMPixel returns the raw 15-bit BGR555 value stored at (x, y), for
// the host's VRAM-peek debug view (spec.md §6's F6 hotkey).
func (g *GPU) VRAMPixel(x, y int) uint16 {
	x %= VRAMWidth
	y %= VRAMHeight
	return g.vram[y][x]
}

// DebugColor decodes a 15-bit BGR555 VRAM pixel into a colorful.Color
// by normalizing each 5-bit channel across its full range, the "on"
// state of spec.md §6's F7 "real-color toggle" hotkey. BlockyColor is
// the toggle's "off" state.
func DebugColor(pixel uint16) colorful.Color {
	r := float64(pixel&0x1F) / 31
	g := float64((pixel>>5)&0x1F) / 31
	b := float64((pixel>>10)&0x1F) / 31
	return colorful.Color{R: r, G: g, B: b}
}

// BlockyColor decodes the same 15-bit BGR555 pixel as DebugColor but
// without the /31 interpolation: each 5-bit channel is left-shifted
// into the top of its byte, matching the blocky, slightly-dark output
// a naive bit-replication-free conversion gives. This is the F7
// hotkey's "off" state; DebugColor is the "on" (real-color) state.
func BlockyColor(pixel uint16) colorful.Color {
	r := float64((pixel&0x1F)<<3) / 255
	g := float64(((pixel>>5)&0x1F)<<3) / 255
	b := float64(((pixel>>10)&0x1F)<<3) / 255
	return colorful.Color{R: r, G: g, B: b}
}

// MaskBitColor returns a color swatch distinguishing whether the mask
// bit (bit 15) is set at the given VRAM pixel, letting the host
// overlay which pixels a masked CPU-to-VRAM write would have skipped.
func MaskBitColor(pixel uint16) colorful.Color {
	base := DebugColor(pixel)
	if pixel&0x8000 == 0 {
		return base
	}
	// Blend toward magenta so masked pixels stand out in the overlay.
	return base.BlendLab(colorful.Color{R: 1, G: 0, B: 1}, 0.4)
}
