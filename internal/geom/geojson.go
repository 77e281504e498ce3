package geom

import (
	"errors"
	"fmt"
	"strconv"

	geojson "github.com/paulmach/go.geojson"
)

// Feature is one polygonal feature of a territory collection.
type Feature struct {
	ID         string
	Geometry   MultiPolygon
	Properties map[string]any
}

// DecodeFeatureCollection parses a GeoJSON FeatureCollection and keeps only
// Polygon and MultiPolygon features. Features without a usable identifier
// (feature id, or an "id"/"name" property) are skipped.
func DecodeFeatureCollection(data []byte) ([]Feature, error) {
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("decode feature collection: %w", err)
	}
	out := make([]Feature, 0, len(fc.Features))
	for _, f := range fc.Features {
		if f == nil || f.Geometry == nil {
			continue
		}
		id := featureID(f)
		if id == "" {
			continue
		}
		var mp MultiPolygon
		switch {
		case f.Geometry.IsPolygon():
			mp = MultiPolygon{parsePolygon(f.Geometry.Polygon)}
		case f.Geometry.IsMultiPolygon():
			for _, poly := range f.Geometry.MultiPolygon {
				mp = append(mp, parsePolygon(poly))
			}
		default:
			continue
		}
		mp = Normalize(mp)
		if mp.IsEmpty() {
			continue
		}
		out = append(out, Feature{ID: id, Geometry: mp, Properties: f.Properties})
	}
	if len(fc.Features) > 0 && len(out) == 0 {
		return nil, errors.New("no polygon features found")
	}
	return out, nil
}

func featureID(f *geojson.Feature) string {
	if id := idString(f.ID); id != "" {
		return id
	}
	for _, k := range []string{"id", "name"} {
		if id := idString(f.Properties[k]); id != "" {
			return id
		}
	}
	return ""
}

func idString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	}
	return ""
}

func parsePolygon(rings [][][]float64) Polygon {
	poly := make(Polygon, 0, len(rings))
	for _, ring := range rings {
		r := make(Ring, 0, len(ring))
		for _, pt := range ring {
			if len(pt) < 2 {
				continue
			}
			r = append(r, [2]float64{pt[0], pt[1]})
		}
		poly = append(poly, r)
	}
	return poly
}

// ToGeoJSON converts mp into a GeoJSON geometry, a Polygon when mp holds a
// single polygon and a MultiPolygon otherwise.
func ToGeoJSON(mp MultiPolygon) *geojson.Geometry {
	conv := func(poly Polygon) [][][]float64 {
		rings := make([][][]float64, 0, len(poly))
		for _, ring := range poly {
			r := make([][]float64, 0, len(ring))
			for _, pt := range ring {
				r = append(r, []float64{pt[0], pt[1]})
			}
			rings = append(rings, r)
		}
		return rings
	}
	if len(mp) == 1 {
		return geojson.NewPolygonGeometry(conv(mp[0]))
	}
	polys := make([][][][]float64, 0, len(mp))
	for _, poly := range mp {
		polys = append(polys, conv(poly))
	}
	return geojson.NewMultiPolygonGeometry(polys...)
}

// EncodeFeature renders mp as a GeoJSON Feature with the given properties.
func EncodeFeature(mp MultiPolygon, props map[string]any) ([]byte, error) {
	f := geojson.NewFeature(ToGeoJSON(mp))
	for k, v := range props {
		f.SetProperty(k, v)
	}
	return f.MarshalJSON()
}
