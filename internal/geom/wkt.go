package geom

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ParseWKT parses a POLYGON or MULTIPOLYGON in WKT.
func ParseWKT(wkt string) (MultiPolygon, error) {
	s := strings.TrimSpace(wkt)
	if s == "" {
		return nil, errors.New("empty wkt")
	}
	up := strings.ToUpper(s)
	i := strings.Index(s, "(")
	if i < 0 {
		return nil, fmt.Errorf("wkt: no coordinates in %q", truncate(s, 32))
	}
	kind := strings.TrimSpace(up[:i])
	var mp MultiPolygon
	switch kind {
	case "POLYGON":
		groups, err := splitGroups(s[i:])
		if err != nil || len(groups) != 1 {
			return nil, errors.New("wkt polygon: invalid")
		}
		poly, err := parseWKTPolygon(groups[0])
		if err != nil {
			return nil, err
		}
		mp = MultiPolygon{poly}
	case "MULTIPOLYGON":
		outer, err := splitGroups(s[i:])
		if err != nil || len(outer) != 1 {
			return nil, errors.New("wkt multipolygon: invalid")
		}
		polys, err := splitGroups(outer[0])
		if err != nil {
			return nil, errors.New("wkt multipolygon: invalid")
		}
		for _, p := range polys {
			poly, err := parseWKTPolygon(p)
			if err != nil {
				return nil, err
			}
			mp = append(mp, poly)
		}
	default:
		return nil, fmt.Errorf("unsupported wkt type %q", kind)
	}
	mp = Normalize(mp)
	if mp.IsEmpty() {
		return nil, errors.New("wkt: no usable rings")
	}
	return mp, nil
}

// parseWKTPolygon parses "(x y, ...), (x y, ...)" into a shell and holes.
func parseWKTPolygon(body string) (Polygon, error) {
	rings, err := splitGroups(body)
	if err != nil || len(rings) == 0 {
		return nil, errors.New("wkt polygon: invalid rings")
	}
	poly := make(Polygon, 0, len(rings))
	for _, r := range rings {
		poly = append(poly, parseTuples(r))
	}
	return poly, nil
}

// splitGroups returns the contents of each top-level parenthesized group of s.
func splitGroups(s string) ([]string, error) {
	var out []string
	depth, start := 0, 0
	for i, r := range s {
		switch r {
		case '(':
			if depth == 0 {
				start = i + 1
			}
			depth++
		case ')':
			depth--
			if depth < 0 {
				return nil, errors.New("wkt: unbalanced parentheses")
			}
			if depth == 0 {
				out = append(out, s[start:i])
			}
		}
	}
	if depth != 0 {
		return nil, errors.New("wkt: unbalanced parentheses")
	}
	return out, nil
}

// parseTuples reads "x y, x y, ..."; malformed tuples are skipped.
func parseTuples(block string) Ring {
	var out Ring
	for _, tup := range strings.Split(block, ",") {
		parts := strings.Fields(strings.TrimSpace(tup))
		if len(parts) < 2 {
			continue
		}
		x, e1 := strconv.ParseFloat(parts[0], 64)
		y, e2 := strconv.ParseFloat(parts[1], 64)
		if e1 != nil || e2 != nil {
			continue
		}
		out = append(out, [2]float64{x, y})
	}
	return out
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
