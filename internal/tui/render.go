package tui

import (
	"math"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"chronomap/internal/geom"
	"chronomap/internal/mapstate"
)

// worldMicro is the width of the whole world in micro-pixels at zoom 0.
const worldMicro = 128.0

// projection maps lon/lat to micro-pixels of a cols x rows braille map
// centered on the viewport.
type projection struct {
	lon, lat float64
	zoom     float64
	ppd      float64 // micro-pixels per degree
	w, h     int     // micro-pixels
}

func newProjection(v mapstate.Viewport, cols, rows int) projection {
	return projection{
		lon:  v.Longitude,
		lat:  v.Latitude,
		zoom: v.Zoom,
		ppd:  worldMicro * math.Pow(2, v.Zoom) / 360,
		w:    cols * 2,
		h:    rows * 4,
	}
}

func (p projection) micro(lon, lat float64) (float64, float64) {
	return float64(p.w)/2 + (lon-p.lon)*p.ppd, float64(p.h)/2 - (lat-p.lat)*p.ppd
}

func (p projection) lonLat(mx, my float64) (float64, float64) {
	return p.lon + (mx-float64(p.w)/2)/p.ppd, p.lat - (my-float64(p.h)/2)/p.ppd
}

// cellLonLat returns the geographic center of terminal cell (cx, cy).
func (p projection) cellLonLat(cx, cy int) (float64, float64) {
	return p.lonLat(float64(cx*2)+1, float64(cy*4)+2)
}

func (p projection) cell(lon, lat float64) (int, int) {
	mx, my := p.micro(lon, lat)
	return int(math.Floor(mx / 2)), int(math.Floor(my / 4))
}

// bounds is the visible area in degrees.
func (p projection) bounds() geom.BBox {
	x0, y0 := p.lonLat(0, 0)
	x1, y1 := p.lonLat(float64(p.w), float64(p.h))
	return geom.BBox{MinX: x0, MinY: y1, MaxX: x1, MaxY: y0}
}

// degPerCell is the horizontal extent of one terminal cell.
func (p projection) degPerCell() float64 { return 2 / p.ppd }

type overlayKind uint8

const (
	overlayNone overlayKind = iota
	overlayLabel
	overlayMarker
	overlayCursor
)

// canvas composes the choropleth fill, the outline strokes and the
// text overlays of one frame.
type canvas struct {
	w, h    int
	proj    projection
	fill    *brailleBuf
	line    *brailleBuf
	color   [][]string // fill color per cell
	text    [][]rune
	kind    [][]overlayKind
	textFg  [][]string
	styleOf map[cellStyle]lipgloss.Style
}

type cellStyle struct {
	fg, bg string
	bold   bool
}

func newCanvas(proj projection, w, h int) *canvas {
	c := &canvas{
		w:       w,
		h:       h,
		proj:    proj,
		fill:    newBrailleBuf(w, h),
		line:    newBrailleBuf(w, h),
		styleOf: map[cellStyle]lipgloss.Style{},
	}
	c.color = make([][]string, h)
	c.text = make([][]rune, h)
	c.kind = make([][]overlayKind, h)
	c.textFg = make([][]string, h)
	for y := 0; y < h; y++ {
		c.color[y] = make([]string, w)
		c.text[y] = make([]rune, w)
		c.kind[y] = make([]overlayKind, w)
		c.textFg[y] = make([]string, w)
	}
	return c
}

// fillPolygon scanline-fills a polygon with holes (even-odd) on the microgrid.
func (c *canvas) fillPolygon(poly geom.Polygon, color string) {
	type edge struct{ x0, y0, x1, y1 float64 }
	var edges []edge
	minY, maxY := math.Inf(1), math.Inf(-1)
	for _, ring := range poly {
		for i := 0; i+1 < len(ring); i++ {
			x0, y0 := c.proj.micro(ring[i][0], ring[i][1])
			x1, y1 := c.proj.micro(ring[i+1][0], ring[i+1][1])
			if y0 == y1 {
				continue
			}
			edges = append(edges, edge{x0, y0, x1, y1})
			minY = math.Min(minY, math.Min(y0, y1))
			maxY = math.Max(maxY, math.Max(y0, y1))
		}
	}
	if len(edges) == 0 {
		return
	}
	yStart := max(0, int(math.Floor(minY)))
	yEnd := min(c.h*4-1, int(math.Ceil(maxY)))
	xs := make([]float64, 0, 16)
	for my := yStart; my <= yEnd; my++ {
		yc := float64(my) + 0.5
		xs = xs[:0]
		for _, e := range edges {
			if (e.y0 <= yc && yc < e.y1) || (e.y1 <= yc && yc < e.y0) {
				xs = append(xs, e.x0+(yc-e.y0)*(e.x1-e.x0)/(e.y1-e.y0))
			}
		}
		sort.Float64s(xs)
		for i := 0; i+1 < len(xs); i += 2 {
			x0 := int(math.Ceil(xs[i] - 0.5))
			x1 := int(math.Floor(xs[i+1] - 0.5))
			if x1 < 0 || x0 >= c.w*2 || x1 < x0 {
				continue
			}
			c.fill.fillSpan(x0, x1, my)
			for cx := max(x0, 0) / 2; cx <= min(x1, c.w*2-1)/2; cx++ {
				c.color[my/4][cx] = color
			}
		}
	}
}

// strokeRings draws every ring of mp onto the line layer.
func (c *canvas) strokeRings(mp geom.MultiPolygon) {
	for _, poly := range mp {
		for _, ring := range poly {
			for i := 0; i+1 < len(ring); i++ {
				x0, y0 := c.proj.micro(ring[i][0], ring[i][1])
				x1, y1 := c.proj.micro(ring[i+1][0], ring[i+1][1])
				x0, y0, x1, y1, ok := clipSegment(x0, y0, x1, y1, float64(c.w*2-1), float64(c.h*4-1))
				if !ok {
					continue
				}
				c.line.drawLineMicro(int(math.Round(x0)), int(math.Round(y0)),
					int(math.Round(x1)), int(math.Round(y1)))
			}
		}
	}
}

// clipSegment clips a segment to [0,maxX]x[0,maxY] (Liang-Barsky).
func clipSegment(x0, y0, x1, y1, maxX, maxY float64) (float64, float64, float64, float64, bool) {
	dx, dy := x1-x0, y1-y0
	t0, t1 := 0.0, 1.0
	for _, pq := range [4][2]float64{{-dx, x0}, {dx, maxX - x0}, {-dy, y0}, {dy, maxY - y0}} {
		p, q := pq[0], pq[1]
		if p == 0 {
			if q < 0 {
				return 0, 0, 0, 0, false
			}
			continue
		}
		r := q / p
		if p < 0 {
			if r > t1 {
				return 0, 0, 0, 0, false
			}
			t0 = math.Max(t0, r)
		} else {
			if r < t0 {
				return 0, 0, 0, 0, false
			}
			t1 = math.Min(t1, r)
		}
	}
	return x0 + t0*dx, y0 + t0*dy, x0 + t1*dx, y0 + t1*dy, true
}

// putText writes s starting at (or centered on) cell (cx, cy). It refuses
// to overwrite other overlays and reports whether anything was placed.
func (c *canvas) putText(cx, cy int, s string, kind overlayKind, fg string, centered bool) bool {
	r := []rune(s)
	if len(r) == 0 || cy < 0 || cy >= c.h {
		return false
	}
	start := cx
	if centered {
		start = cx - len(r)/2
	}
	if start < 0 || start+len(r) > c.w {
		return false
	}
	for i := range r {
		if c.kind[cy][start+i] != overlayNone {
			return false
		}
	}
	for i, ch := range r {
		c.text[cy][start+i] = ch
		c.kind[cy][start+i] = kind
		c.textFg[cy][start+i] = fg
	}
	return true
}

func (c *canvas) style(k cellStyle) lipgloss.Style {
	if s, ok := c.styleOf[k]; ok {
		return s
	}
	s := lipgloss.NewStyle().Bold(k.bold)
	if k.fg != "" {
		s = s.Foreground(lipgloss.Color(k.fg))
	}
	if k.bg != "" {
		s = s.Background(lipgloss.Color(k.bg))
	}
	c.styleOf[k] = s
	return s
}

// lines renders the canvas, grouping runs of equally styled cells.
func (c *canvas) lines() []string {
	out := make([]string, c.h)
	var run strings.Builder
	for y := 0; y < c.h; y++ {
		var row strings.Builder
		var cur cellStyle
		flush := func() {
			if run.Len() > 0 {
				row.WriteString(c.style(cur).Render(run.String()))
				run.Reset()
			}
		}
		for x := 0; x < c.w; x++ {
			ch, st := c.cellAt(x, y)
			if st != cur {
				flush()
				cur = st
			}
			run.WriteRune(ch)
		}
		flush()
		out[y] = row.String()
	}
	return out
}

func (c *canvas) cellAt(x, y int) (rune, cellStyle) {
	switch c.kind[y][x] {
	case overlayLabel, overlayMarker, overlayCursor:
		return c.text[y][x], cellStyle{fg: c.textFg[y][x], bg: c.color[y][x], bold: c.kind[y][x] != overlayMarker}
	}
	if c.line.m[y][x] != 0 {
		return c.line.at(x, y), cellStyle{fg: string(outlineFg), bg: c.color[y][x], bold: true}
	}
	if c.fill.m[y][x] != 0 {
		return c.fill.at(x, y), cellStyle{fg: c.color[y][x]}
	}
	return ' ', cellStyle{}
}

// frame is what renderMap needs besides the store snapshot.
type frame struct {
	showLabels  bool
	showMarkers bool
	cursor      bool
	cursorX     int
	cursorY     int
}

// territoryColor picks the fill of a province for the active dimension.
func territoryColor(s *mapstate.Store, p mapstate.Province, d mapstate.Dimension) (string, bool) {
	if p.Props == nil {
		return "", false
	}
	if d == mapstate.Population {
		return populationColor(p.Props.Population), true
	}
	v := p.Props.Value(d)
	if v == "" {
		return "", false
	}
	return hexColor(s.GetEntityColor(v, d)), true
}

// renderMap draws the state of s into a w x h block of terminal cells.
func renderMap(s *mapstate.Store, st mapstate.State, f frame, w, h int) []string {
	if w <= 0 || h <= 0 {
		return nil
	}
	proj := newProjection(st.Viewport, w, h)
	view := proj.bounds()
	c := newCanvas(proj, w, h)

	for _, p := range st.Provinces {
		if !intersects(p.BBox, view) {
			continue
		}
		col, ok := territoryColor(s, p, st.ActiveColor)
		if !ok {
			continue
		}
		for _, poly := range p.Geometry {
			c.fillPolygon(poly, col)
		}
	}
	if st.Outline != nil {
		c.strokeRings(st.Outline.Geometry)
	}

	if f.cursor {
		c.putText(f.cursorX, f.cursorY, "+", overlayCursor, string(cursorFg), false)
	}
	if f.showMarkers {
		for _, m := range st.Markers {
			cx, cy := proj.cell(m.Coordinates[0], m.Coordinates[1])
			c.putText(cx, cy, markerGlyph(m.Type), overlayMarker, markerColor(m.Type), false)
		}
	}
	if f.showLabels {
		// labels come sorted by size; the biggest claim their cells first
		for _, l := range st.Labels {
			if l.Name == "" || !labelFits(l, proj) {
				continue
			}
			cx, cy := proj.cell(l.Position[0], l.Position[1])
			c.putText(cx, cy, l.Name, overlayLabel, string(baseFg), true)
		}
	}
	return c.lines()
}

func intersects(a, b geom.BBox) bool {
	return a.MinX <= b.MaxX && b.MinX <= a.MaxX && a.MinY <= b.MaxY && b.MinY <= a.MaxY
}

// labelFits hides the smaller labels at low zoom.
func labelFits(l mapstate.Label, p projection) bool {
	return l.FontSize+6*p.zoom >= 28
}

func markerGlyph(t string) string {
	g, _ := mapstate.LegacyGroup(t)
	switch g {
	case "conflict":
		return "x"
	case "settlement":
		return "#"
	case "people":
		return "o"
	}
	return "*"
}

func markerColor(t string) string {
	g, _ := mapstate.LegacyGroup(t)
	switch g {
	case "conflict":
		return "#F87171"
	case "settlement":
		return "#FDE68A"
	case "people":
		return "#93C5FD"
	}
	return "#D1D5DB"
}
