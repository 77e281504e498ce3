package geom

import "math"

// Contains reports whether pt lies inside poly using the even-odd rule:
// inside the shell and outside every hole.
func Contains(poly Polygon, pt [2]float64) bool {
	if len(poly) == 0 || !pointInRing(pt, poly[0]) {
		return false
	}
	for _, hole := range poly[1:] {
		if pointInRing(pt, hole) {
			return false
		}
	}
	return true
}

// ContainsPoint reports whether any polygon of mp contains pt.
func ContainsPoint(mp MultiPolygon, pt [2]float64) bool {
	for _, poly := range mp {
		if Contains(poly, pt) {
			return true
		}
	}
	return false
}

// pointInRing casts a ray towards +X and counts edge crossings.
func pointInRing(pt [2]float64, ring Ring) bool {
	n := len(ring)
	if n < 3 {
		return false
	}
	inside := false
	x, y := pt[0], pt[1]
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		xi, yi := ring[i][0], ring[i][1]
		xj, yj := ring[j][0], ring[j][1]
		if (yi > y) != (yj > y) && x < (xj-xi)*(y-yi)/(yj-yi)+xi {
			inside = !inside
		}
	}
	return inside
}

// Assemble groups loose rings into polygons. A ring nested inside an even
// number of rings is a shell, one nested inside an odd number is a hole of
// the smallest shell around it. Shells come out counterclockwise, holes
// clockwise, every ring closed.
func Assemble(rings []Ring) MultiPolygon {
	type node struct {
		ring  Ring
		area  float64
		depth int
	}
	nodes := make([]node, 0, len(rings))
	for _, r := range rings {
		c := closeRing(r)
		if c == nil {
			continue
		}
		a := math.Abs(signedArea(c))
		if a == 0 {
			continue
		}
		nodes = append(nodes, node{ring: c, area: a})
	}
	for i := range nodes {
		probe := nodes[i].ring[0]
		for j := range nodes {
			if i == j || nodes[j].area <= nodes[i].area {
				continue
			}
			if pointInRing(probe, nodes[j].ring) {
				nodes[i].depth++
			}
		}
	}
	var out MultiPolygon
	shellIdx := make(map[int]int)
	for i, n := range nodes {
		if n.depth%2 == 0 {
			shellIdx[i] = len(out)
			out = append(out, Polygon{orient(n.ring, true)})
		}
	}
	for i, n := range nodes {
		if n.depth%2 == 0 {
			continue
		}
		best, bestArea := -1, math.Inf(1)
		for j, s := range nodes {
			if s.depth != n.depth-1 || s.area <= n.area {
				continue
			}
			if s.area < bestArea && pointInRing(n.ring[0], s.ring) {
				best, bestArea = j, s.area
			}
		}
		if best < 0 {
			continue
		}
		k := shellIdx[best]
		out[k] = append(out[k], orient(nodes[i].ring, false))
	}
	return out
}
