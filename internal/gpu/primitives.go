package gpu

// vertex is a screen-space point with color and (if textured) UV.
type vertex struct {
	x, y    int
	r, g, b byte
	u, v    byte
}

// polyCommandShape decodes the fixed bits of a polygon command word
// (opcode 0x20-0x3F), per original_source GpuDefs.h's RenderCommand
// layout: bit24=raw-texture, bit25=semi-transparent, bit26=textured,
// bit27=quad(1)/triangle(0), bit28=shaded.
type polyCommandShape struct {
	textured     bool
	transparent  bool
	rawTexture   bool
	quad         bool
	shaded       bool
}

func decodePolyShape(word uint32) polyCommandShape {
	return polyCommandShape{
		textured:    word&(1<<26) != 0,
		transparent: word&(1<<25) != 0,
		rawTexture:  word&(1<<24) != 0,
		quad:        word&(1<<27) != 0,
		shaded:      word&(1<<28) != 0,
	}
}

func (s polyCommandShape) vertexCount() int {
	if s.quad {
		return 4
	}
	return 3
}

// beginPolygon sets up Parameters-state accumulation for a polygon
// render command; the first color/flag word is already consumed by
// the caller (it is word itself).
func (g *GPU) beginPolygon(word uint32) {
	shape := decodePolyShape(word)
	wordsPerVertex := 1
	if shape.textured {
		wordsPerVertex++
	}
	total := shape.vertexCount() * wordsPerVertex
	if shape.shaded {
		total += shape.vertexCount() - 1 // one color word per extra vertex
	}
	g.pending = []uint32{word}
	g.expect = total + 1 // +1 to also count the already-stored command word
	g.st = stateParameters
	g.cmdFn = func(params []uint32) { g.execPolygon(shape, params) }
}

func (g *GPU) execPolygon(shape polyCommandShape, params []uint32) {
	verts := make([]vertex, 0, shape.vertexCount())
	idx := 0
	baseColor := params[idx]
	idx++
	r, gg, b := byte(baseColor), byte(baseColor>>8), byte(baseColor>>16)
	for i := 0; i < shape.vertexCount(); i++ {
		if shape.shaded && i > 0 {
			c := params[idx]
			idx++
			r, gg, b = byte(c), byte(c>>8), byte(c>>16)
		}
		xy := params[idx]
		idx++
		x := signExtend11(xy&0x7FF) + g.drawOffsetX
		y := signExtend11((xy>>11)&0x7FF) + g.drawOffsetY
		vtx := vertex{x: x, y: y, r: r, g: gg, b: b}
		if shape.textured {
			idx++ // texcoord/clut word: texture sampling not modeled, skip
		}
		verts = append(verts, vtx)
	}
	g.fillPolygon(verts)
}

// fillPolygon rasterizes a convex triangle/quad with flat or
// per-vertex-interpolated shading, clipped to the draw area.
func (g *GPU) fillPolygon(verts []vertex) {
	if len(verts) == 3 {
		g.fillTriangle(verts[0], verts[1], verts[2])
	} else if len(verts) == 4 {
		g.fillTriangle(verts[0], verts[1], verts[2])
		g.fillTriangle(verts[1], verts[2], verts[3])
	}
}

func edge(a, b vertex, x, y int) int {
	return (b.x-a.x)*(y-a.y) - (b.y-a.y)*(x-a.x)
}

func (g *GPU) fillTriangle(a, b, c vertex) {
	minX, maxX := minInt3(a.x, b.x, c.x), maxInt3(a.x, b.x, c.x)
	minY, maxY := minInt3(a.y, b.y, c.y), maxInt3(a.y, b.y, c.y)
	minX = maxInt(minX, g.drawAreaLeft)
	minY = maxInt(minY, g.drawAreaTop)
	maxX = minInt(maxX, g.drawAreaRight)
	maxY = minInt(maxY, g.drawAreaBottom)

	area := edge(a, b, c.x, c.y)
	if area == 0 {
		return
	}
	for y := minY; y <= maxY; y++ {
		for x := minX; x <= maxX; x++ {
			w0 := edge(b, c, x, y)
			w1 := edge(c, a, x, y)
			w2 := edge(a, b, x, y)
			if (w0 >= 0 && w1 >= 0 && w2 >= 0) || (w0 <= 0 && w1 <= 0 && w2 <= 0) {
				g.putShadedPixel(x, y, a, b, c, w0, w1, w2, area)
			}
		}
	}
}

func (g *GPU) putShadedPixel(x, y int, a, b, c vertex, w0, w1, w2, area int) {
	r := interpolate(a.r, b.r, c.r, w0, w1, w2, area)
	gg := interpolate(a.g, b.g, c.g, w0, w1, w2, area)
	bb := interpolate(a.b, b.b, c.b, w0, w1, w2, area)
	px := rgb888To555(uint32(r) | uint32(gg)<<8 | uint32(bb)<<16)
	g.setVRAMPixelClamped(x, y, px)
}

func interpolate(va, vb, vc byte, w0, w1, w2, area int) byte {
	sum := int(va)*w0 + int(vb)*w1 + int(vc)*w2
	return byte(sum / area)
}

func (g *GPU) setVRAMPixelClamped(x, y int, px uint16) {
	if x < 0 || y < 0 || x >= VRAMWidth || y >= VRAMHeight {
		return
	}
	if g.checkMaskBit && g.vram[y][x]&0x8000 != 0 {
		return
	}
	if g.forceMaskBit {
		px |= 0x8000
	}
	g.vram[y][x] = px
}

// beginLine sets up accumulation for single or poly-line commands
// (opcode 0x40-0x5F): bit27 selects poly-line (terminated by the
// 0x50005000-masked word), bit28 selects shaded (per-vertex color).
func (g *GPU) beginLine(word uint32) {
	shaded := word&(1<<28) != 0
	polyLine := word&(1<<27) != 0

	if polyLine {
		g.pending = []uint32{word}
		g.st = statePolyLine
		g.cmdFn = func(params []uint32) { g.execPolyLine(shaded, params) }
		return
	}

	total := 3 // command + 2 vertices
	if shaded {
		total = 4 // command (vertex 0 color) + vertex 0 + vertex 1 color + vertex 1
	}
	g.pending = []uint32{word}
	g.expect = total
	g.st = stateParameters
	g.cmdFn = func(params []uint32) { g.execLine(shaded, params) }
}

// execLine handles the 2-point line command: the header word always
// supplies vertex 0's color; a shaded line carries one extra color
// word for vertex 1 only.
func (g *GPU) execLine(shaded bool, params []uint32) {
	baseColor := params[0]
	r0, g0, b0 := byte(baseColor), byte(baseColor>>8), byte(baseColor>>16)
	idx := 1
	xy0 := params[idx]
	idx++
	p0 := vertex{
		x: signExtend11(xy0&0x7FF) + g.drawOffsetX,
		y: signExtend11((xy0>>11)&0x7FF) + g.drawOffsetY,
		r: r0, g: g0, b: b0,
	}

	r1, g1, b1 := r0, g0, b0
	if shaded {
		c := params[idx]
		idx++
		r1, g1, b1 = byte(c), byte(c>>8), byte(c>>16)
	}
	xy1 := params[idx]
	p1 := vertex{
		x: signExtend11(xy1&0x7FF) + g.drawOffsetX,
		y: signExtend11((xy1>>11)&0x7FF) + g.drawOffsetY,
		r: r1, g: g1, b: b1,
	}
	g.drawLine(p0, p1)
}

// execPolyLine decodes a poly-line command: the header supplies the
// first vertex's color (and no separate color word); every following
// vertex carries its own color word first when shaded.
func (g *GPU) execPolyLine(shaded bool, raw []uint32) {
	baseColor := raw[0]
	r, gg, b := byte(baseColor), byte(baseColor>>8), byte(baseColor>>16)
	var verts []vertex
	i := 1
	for i < len(raw) {
		if raw[i]&0xF000F000 == 0x50005000 {
			break
		}
		if shaded && len(verts) > 0 {
			c := raw[i]
			i++
			if i >= len(raw) {
				break
			}
			r, gg, b = byte(c), byte(c>>8), byte(c>>16)
		}
		xy := raw[i]
		i++
		x := signExtend11(xy&0x7FF) + g.drawOffsetX
		y := signExtend11((xy>>11)&0x7FF) + g.drawOffsetY
		verts = append(verts, vertex{x: x, y: y, r: r, g: gg, b: b})
	}
	for i := 0; i+1 < len(verts); i++ {
		g.drawLine(verts[i], verts[i+1])
	}
}

// drawLine uses Bresenham's algorithm with linear color interpolation.
func (g *GPU) drawLine(p0, p1 vertex) {
	dx := absInt(p1.x - p0.x)
	dy := -absInt(p1.y - p0.y)
	sx, sy := 1, 1
	if p0.x >= p1.x {
		sx = -1
	}
	if p0.y >= p1.y {
		sy = -1
	}
	err := dx + dy
	x, y := p0.x, p0.y
	steps := maxInt(dx, -dy)
	if steps == 0 {
		steps = 1
	}
	for i := 0; ; i++ {
		t := i
		if t > steps {
			t = steps
		}
		r := lerp(p0.r, p1.r, t, steps)
		gg := lerp(p0.g, p1.g, t, steps)
		b := lerp(p0.b, p1.b, t, steps)
		g.setVRAMPixelClamped(x, y, rgb888To555(uint32(r)|uint32(gg)<<8|uint32(b)<<16))
		if x == p1.x && y == p1.y {
			break
		}
		e2 := 2 * err
		if e2 >= dy {
			err += dy
			x += sx
		}
		if e2 <= dx {
			err += dx
			y += sy
		}
	}
}

func lerp(a, b byte, t, steps int) byte {
	if steps == 0 {
		return a
	}
	return byte((int(a)*(steps-t) + int(b)*t) / steps)
}

// beginRectangle sets up accumulation for a rectangle command
// (opcode 0x60-0x7F): bit27-28 select fixed size (0=variable,
// 1=1x1, 2=8x8, 3=16x16), bit26 selects textured, bit25 transparent.
func (g *GPU) beginRectangle(word uint32) {
	textured := word&(1<<26) != 0
	size := (word >> 27) & 0x3

	total := 2 // command + vertex
	if textured {
		total++
	}
	if size == 0 {
		total++ // explicit width/height word
	}
	g.pending = []uint32{word}
	g.expect = total
	g.st = stateParameters
	g.cmdFn = func(params []uint32) { g.execRectangle(textured, size, params) }
}

func (g *GPU) execRectangle(textured bool, size uint32, params []uint32) {
	color := params[0] & 0xFFFFFF
	idx := 1
	xy := params[idx]
	idx++
	x := signExtend11(xy&0x7FF) + g.drawOffsetX
	y := signExtend11((xy>>11)&0x7FF) + g.drawOffsetY
	if textured {
		idx++ // texcoord/clut: sampling not modeled
	}
	var w, h int
	switch size {
	case 1:
		w, h = 1, 1
	case 2:
		w, h = 8, 8
	case 3:
		w, h = 16, 16
	default:
		wh := params[idx]
		w = int(wh & 0x3FF)
		h = int((wh >> 16) & 0x1FF)
	}
	px := rgb888To555(color)
	for dy := 0; dy < h; dy++ {
		for dx := 0; dx < w; dx++ {
			g.setVRAMPixelClamped(x+dx, y+dy, px)
		}
	}
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
func minInt3(a, b, c int) int { return minInt(a, minInt(b, c)) }
func maxInt3(a, b, c int) int { return maxInt(a, maxInt(b, c)) }
func absInt(a int) int {
	if a < 0 {
		return -a
	}
	return a
}
