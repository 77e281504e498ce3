package geom

import (
	"fmt"
	"math"
	"sort"
)

const intersectEps = 1e-12

// Repair decomposes every polygon of mp into simple, non-self-intersecting
// polygons. Shell rings are split at their crossing points; hole pieces are
// attached to the shell piece that contains them, or dropped.
func Repair(mp MultiPolygon) (out []Polygon, err error) {
	defer func() {
		if r := recover(); r != nil {
			out, err = nil, fmt.Errorf("%w: repair: %v", ErrGeometry, r)
		}
	}()
	for _, poly := range mp {
		if len(poly) == 0 {
			continue
		}
		shells := unkinkRing(poly[0])
		pieces := make([]Polygon, len(shells))
		for i, s := range shells {
			pieces[i] = Polygon{orient(s, true)}
		}
		for _, hole := range poly[1:] {
			for _, h := range unkinkRing(hole) {
				for i, s := range shells {
					if pointInRing(h[0], s) {
						pieces[i] = append(pieces[i], orient(h, false))
						break
					}
				}
			}
		}
		out = append(out, pieces...)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: repair produced no polygons", ErrGeometry)
	}
	return out, nil
}

type cut struct {
	t  float64
	pt [2]float64
}

// unkinkRing inserts every proper crossing between non-adjacent edges as a
// vertex and then peels off a loop each time the walk revisits a vertex.
func unkinkRing(ring Ring) []Ring {
	c := closeRing(ring)
	if c == nil {
		return nil
	}
	pts := c[:len(c)-1]
	n := len(pts)
	cuts := make([][]cut, n)
	for i := 0; i < n; i++ {
		a1, a2 := pts[i], pts[(i+1)%n]
		for j := i + 2; j < n; j++ {
			if i == 0 && j == n-1 {
				continue
			}
			b1, b2 := pts[j], pts[(j+1)%n]
			if !boxesOverlap(a1, a2, b1, b2) {
				continue
			}
			pt, ta, tb, ok := segmentIntersection(a1, a2, b1, b2)
			if !ok {
				continue
			}
			cuts[i] = append(cuts[i], cut{t: ta, pt: pt})
			cuts[j] = append(cuts[j], cut{t: tb, pt: pt})
		}
	}
	seq := make([][2]float64, 0, n)
	for i := 0; i < n; i++ {
		seq = append(seq, pts[i])
		sort.Slice(cuts[i], func(a, b int) bool { return cuts[i][a].t < cuts[i][b].t })
		for _, ct := range cuts[i] {
			if ct.pt != seq[len(seq)-1] {
				seq = append(seq, ct.pt)
			}
		}
	}

	var out []Ring
	emit := func(loop Ring) {
		if r := closeRing(loop); r != nil && signedArea(r) != 0 {
			out = append(out, r)
		}
	}
	stack := make(Ring, 0, len(seq))
	pos := make(map[[2]float64]int, len(seq))
	for _, p := range seq {
		if k, ok := pos[p]; ok {
			loop := append(Ring{}, stack[k:]...)
			for _, q := range stack[k+1:] {
				delete(pos, q)
			}
			stack = stack[:k+1]
			emit(loop)
			continue
		}
		pos[p] = len(stack)
		stack = append(stack, p)
	}
	emit(stack)
	return out
}

func boxesOverlap(a1, a2, b1, b2 [2]float64) bool {
	return math.Max(a1[0], a2[0]) >= math.Min(b1[0], b2[0]) &&
		math.Max(b1[0], b2[0]) >= math.Min(a1[0], a2[0]) &&
		math.Max(a1[1], a2[1]) >= math.Min(b1[1], b2[1]) &&
		math.Max(b1[1], b2[1]) >= math.Min(a1[1], a2[1])
}

// segmentIntersection returns the crossing point of segments p1p2 and p3p4
// and its parameter along each. Touching at endpoints and collinear overlap
// do not count.
func segmentIntersection(p1, p2, p3, p4 [2]float64) ([2]float64, float64, float64, bool) {
	d1x, d1y := p2[0]-p1[0], p2[1]-p1[1]
	d2x, d2y := p4[0]-p3[0], p4[1]-p3[1]
	den := d1x*d2y - d1y*d2x
	if math.Abs(den) < intersectEps {
		return [2]float64{}, 0, 0, false
	}
	ex, ey := p3[0]-p1[0], p3[1]-p1[1]
	ta := (ex*d2y - ey*d2x) / den
	tb := (ex*d1y - ey*d1x) / den
	if ta <= intersectEps || ta >= 1-intersectEps || tb <= intersectEps || tb >= 1-intersectEps {
		return [2]float64{}, 0, 0, false
	}
	return [2]float64{p1[0] + ta*d1x, p1[1] + ta*d1y}, ta, tb, true
}
