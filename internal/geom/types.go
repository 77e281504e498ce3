package geom

import "math"

type BBox struct {
	MinX float64
	MinY float64
	MaxX float64
	MaxY float64
}

// Center returns the midpoint of the box as lon/lat.
func (b BBox) Center() [2]float64 {
	return [2]float64{(b.MinX + b.MaxX) / 2, (b.MinY + b.MaxY) / 2}
}

func (b BBox) Width() float64  { return b.MaxX - b.MinX }
func (b BBox) Height() float64 { return b.MaxY - b.MinY }

// Contains reports whether pt lies inside or on the box.
func (b BBox) Contains(pt [2]float64) bool {
	return pt[0] >= b.MinX && pt[0] <= b.MaxX && pt[1] >= b.MinY && pt[1] <= b.MaxY
}

// Ring is a closed sequence of lon/lat vertices; the last vertex repeats the first.
type Ring [][2]float64

// Polygon holds rings, first outer, following holes.
type Polygon []Ring

// MultiPolygon is the geometry of one territory or one merged outline.
type MultiPolygon []Polygon

// IsEmpty reports whether mp has no ring with at least three vertices.
func (mp MultiPolygon) IsEmpty() bool {
	for _, poly := range mp {
		if len(poly) > 0 && len(poly[0]) >= 3 {
			return false
		}
	}
	return true
}

// BBox returns the bounding box over all vertices; ok is false for empty geometry.
func (mp MultiPolygon) BBox() (bbox BBox, ok bool) {
	n := 0
	for _, poly := range mp {
		for _, ring := range poly {
			for _, pt := range ring {
				if n == 0 {
					bbox = BBox{MinX: pt[0], MinY: pt[1], MaxX: pt[0], MaxY: pt[1]}
				} else {
					if pt[0] < bbox.MinX {
						bbox.MinX = pt[0]
					}
					if pt[1] < bbox.MinY {
						bbox.MinY = pt[1]
					}
					if pt[0] > bbox.MaxX {
						bbox.MaxX = pt[0]
					}
					if pt[1] > bbox.MaxY {
						bbox.MaxY = pt[1]
					}
				}
				n++
			}
		}
	}
	return bbox, n > 0
}

// Normalize closes every ring, drops rings with fewer than three distinct
// vertices and drops non-finite coordinates.
func Normalize(mp MultiPolygon) MultiPolygon {
	out := make(MultiPolygon, 0, len(mp))
	for _, poly := range mp {
		var np Polygon
		for i, ring := range poly {
			r := closeRing(ring)
			if r == nil {
				if i == 0 {
					// no shell, holes are meaningless
					break
				}
				continue
			}
			np = append(np, r)
		}
		if len(np) > 0 {
			out = append(out, np)
		}
	}
	return out
}

func closeRing(ring Ring) Ring {
	r := make(Ring, 0, len(ring)+1)
	for _, pt := range ring {
		if math.IsNaN(pt[0]) || math.IsNaN(pt[1]) || math.IsInf(pt[0], 0) || math.IsInf(pt[1], 0) {
			continue
		}
		if len(r) > 0 && r[len(r)-1] == pt {
			continue
		}
		r = append(r, pt)
	}
	if len(r) > 1 && r[0] == r[len(r)-1] {
		r = r[:len(r)-1]
	}
	if len(r) < 3 {
		return nil
	}
	return append(r, r[0])
}

// signedArea is the planar shoelace area of a ring, positive when counterclockwise.
func signedArea(ring Ring) float64 {
	n := len(ring)
	if n < 3 {
		return 0
	}
	a := 0.0
	for i := 0; i < n; i++ {
		j := (i + 1) % n
		a += ring[i][0]*ring[j][1] - ring[j][0]*ring[i][1]
	}
	return a / 2
}

func reverseRing(ring Ring) Ring {
	out := make(Ring, len(ring))
	for i, pt := range ring {
		out[len(ring)-1-i] = pt
	}
	return out
}

// orient returns ring with counterclockwise winding when ccw is set, clockwise otherwise.
func orient(ring Ring, ccw bool) Ring {
	if (signedArea(ring) > 0) != ccw {
		return reverseRing(ring)
	}
	return ring
}
