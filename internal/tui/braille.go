package tui

// brailleBits maps a micro-pixel (column 0..1, row 0..3) to its dot bit.
var brailleBits = [2][4]uint8{
	{0x01, 0x02, 0x04, 0x40},
	{0x08, 0x10, 0x20, 0x80},
}

// brailleBuf is a 2x4 micro-pixel grid per terminal cell.
type brailleBuf struct {
	w, h int       // in cells
	m    [][]uint8 // per-cell 8-bit mask
}

func newBrailleBuf(w, h int) *brailleBuf {
	m := make([][]uint8, h)
	for i := range m {
		m[i] = make([]uint8, w)
	}
	return &brailleBuf{w: w, h: h, m: m}
}

// setPixel sets a micro-pixel and reports whether it was inside the buffer.
func (b *brailleBuf) setPixel(mx, my int) bool {
	if mx < 0 || my < 0 {
		return false
	}
	cx, cy := mx/2, my/4
	if cy >= b.h || cx >= b.w {
		return false
	}
	b.m[cy][cx] |= brailleBits[mx%2][my%4]
	return true
}

// fillSpan sets micro-pixels x0..x1 of row my.
func (b *brailleBuf) fillSpan(x0, x1, my int) {
	if my < 0 || my >= b.h*4 {
		return
	}
	x0 = max(x0, 0)
	x1 = min(x1, b.w*2-1)
	for x := x0; x <= x1; x++ {
		b.setPixel(x, my)
	}
}

// drawLineMicro draws a line on the microgrid using Bresenham.
func (b *brailleBuf) drawLineMicro(x0, y0, x1, y1 int) {
	dx := abs(x1 - x0)
	sx := -1
	if x0 < x1 {
		sx = 1
	}
	dy := -abs(y1 - y0)
	sy := -1
	if y0 < y1 {
		sy = 1
	}
	err := dx + dy
	for {
		b.setPixel(x0, y0)
		if x0 == x1 && y0 == y1 {
			break
		}
		e2 := 2 * err
		if e2 >= dy {
			err += dy
			x0 += sx
		}
		if e2 <= dx {
			err += dx
			y0 += sy
		}
	}
}

func (b *brailleBuf) at(cx, cy int) rune {
	mask := b.m[cy][cx]
	if mask == 0 {
		return ' '
	}
	return rune(0x2800 + int(mask))
}
