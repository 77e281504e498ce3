package geom

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

type kmlRing struct {
	Coordinates string `xml:"LinearRing>coordinates"`
}

type kmlPolygon struct {
	Outer kmlRing   `xml:"outerBoundaryIs"`
	Inner []kmlRing `xml:"innerBoundaryIs"`
}

type kmlPlacemark struct {
	ID       string       `xml:"id,attr"`
	Name     string       `xml:"name"`
	Polygon  *kmlPolygon  `xml:"Polygon"`
	Polygons []kmlPolygon `xml:"MultiGeometry>Polygon"`
}

// ReadKML reads Placemark polygons at any depth of a KML document. The
// placemark id attribute, else its name, identifies the territory.
func ReadKML(r io.Reader) ([]Feature, error) {
	dec := xml.NewDecoder(r)
	var out []Feature
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("kml: %w", err)
		}
		se, ok := tok.(xml.StartElement)
		if !ok || se.Name.Local != "Placemark" {
			continue
		}
		var pm kmlPlacemark
		if err := dec.DecodeElement(&pm, &se); err != nil {
			return nil, fmt.Errorf("kml placemark: %w", err)
		}
		id := strings.TrimSpace(pm.ID)
		if id == "" {
			id = strings.TrimSpace(pm.Name)
		}
		polys := pm.Polygons
		if pm.Polygon != nil {
			polys = append([]kmlPolygon{*pm.Polygon}, polys...)
		}
		if id == "" || len(polys) == 0 {
			continue
		}
		var mp MultiPolygon
		for _, p := range polys {
			poly := Polygon{kmlCoords(p.Outer.Coordinates)}
			for _, h := range p.Inner {
				poly = append(poly, kmlCoords(h.Coordinates))
			}
			mp = append(mp, poly)
		}
		mp = Normalize(mp)
		if mp.IsEmpty() {
			continue
		}
		out = append(out, Feature{ID: id, Geometry: mp, Properties: map[string]any{"name": pm.Name}})
	}
	if len(out) == 0 {
		return nil, errors.New("kml: no polygons found")
	}
	return out, nil
}

// kmlCoords parses whitespace separated "lon,lat[,alt]" tuples; altitude is ignored.
func kmlCoords(s string) Ring {
	var ring Ring
	for _, tuple := range strings.Fields(s) {
		vals := strings.Split(tuple, ",")
		if len(vals) < 2 {
			continue
		}
		lon, err1 := strconv.ParseFloat(strings.TrimSpace(vals[0]), 64)
		lat, err2 := strconv.ParseFloat(strings.TrimSpace(vals[1]), 64)
		if err1 != nil || err2 != nil {
			continue
		}
		ring = append(ring, [2]float64{lon, lat})
	}
	return ring
}
