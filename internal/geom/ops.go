package geom

import (
	"errors"
	"fmt"
	"math"

	cgeom "github.com/ctessum/geom"
)

// ErrGeometry wraps failures of the polygon primitives.
var ErrGeometry = errors.New("geometry operation failed")

// Ops is the default set of geometry primitives, backed by ctessum/geom
// for clipping and centroids.
type Ops struct{}

func (Ops) Union(a, b MultiPolygon) (MultiPolygon, error) { return Union(a, b) }
func (Ops) Repair(mp MultiPolygon) ([]Polygon, error)      { return Repair(mp) }

// Union returns the combined area of a and b. The clipper panics on some
// degenerate inputs; those panics come back as ErrGeometry.
func Union(a, b MultiPolygon) (out MultiPolygon, err error) {
	defer func() {
		if r := recover(); r != nil {
			out, err = nil, fmt.Errorf("%w: union: %v", ErrGeometry, r)
		}
	}()
	pa, pb := toPaths(a), toPaths(b)
	switch {
	case len(pa) == 0 && len(pb) == 0:
		return nil, fmt.Errorf("%w: union of empty geometries", ErrGeometry)
	case len(pa) == 0:
		return Normalize(b), nil
	case len(pb) == 0:
		return Normalize(a), nil
	}
	res := pa.Union(pb)
	if res == nil {
		return nil, fmt.Errorf("%w: union produced no geometry", ErrGeometry)
	}
	var rings []Ring
	for _, poly := range res.Polygons() {
		for _, path := range poly {
			rings = append(rings, fromPath(path))
		}
	}
	out = Assemble(rings)
	if out.IsEmpty() {
		return nil, fmt.Errorf("%w: union produced no geometry", ErrGeometry)
	}
	return out, nil
}

// Centroid returns the area centroid of mp. Degenerate geometry falls back
// to the bounding box center; ok is false only for empty input.
func Centroid(mp MultiPolygon) (c [2]float64, ok bool) {
	bbox, ok := mp.BBox()
	if !ok {
		return c, false
	}
	defer func() {
		if r := recover(); r != nil {
			c = bbox.Center()
		}
	}()
	p := toPaths(mp)
	if len(p) == 0 {
		return bbox.Center(), true
	}
	pt := p.Centroid()
	if math.IsNaN(pt.X) || math.IsNaN(pt.Y) || math.IsInf(pt.X, 0) || math.IsInf(pt.Y, 0) {
		return bbox.Center(), true
	}
	return [2]float64{pt.X, pt.Y}, true
}

// toPaths flattens mp into a single clipper polygon; nesting is resolved by
// the even-odd rule, which matches shells and holes of non-overlapping parts.
func toPaths(mp MultiPolygon) cgeom.Polygon {
	var p cgeom.Polygon
	for _, poly := range mp {
		for _, ring := range poly {
			n := len(ring)
			if n > 1 && ring[0] == ring[n-1] {
				n--
			}
			if n < 3 {
				continue
			}
			path := make(cgeom.Path, 0, n)
			for _, pt := range ring[:n] {
				path = append(path, cgeom.Point{X: pt[0], Y: pt[1]})
			}
			p = append(p, path)
		}
	}
	return p
}

func fromPath(path cgeom.Path) Ring {
	r := make(Ring, 0, len(path)+1)
	for _, pt := range path {
		r = append(r, [2]float64{pt.X, pt.Y})
	}
	return r
}
