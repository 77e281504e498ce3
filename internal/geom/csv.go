package geom

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ReadCSV reads territories from a CSV with an id column (id|province|name)
// and a WKT geometry column (wkt|geometry|geom). Rows whose geometry does
// not parse are skipped.
func ReadCSV(r io.Reader) ([]Feature, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1
	recs, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("csv: %w", err)
	}
	if len(recs) == 0 {
		return nil, errors.New("empty csv")
	}
	idxID, idxGeom := -1, -1
	for i, h := range recs[0] {
		switch strings.ToLower(strings.TrimSpace(h)) {
		case "id", "province", "name":
			if idxID == -1 {
				idxID = i
			}
		case "wkt", "geometry", "geom":
			if idxGeom == -1 {
				idxGeom = i
			}
		}
	}
	if idxID == -1 || idxGeom == -1 {
		return nil, errors.New("csv: id/wkt columns not found")
	}
	var out []Feature
	for _, row := range recs[1:] {
		if idxID >= len(row) || idxGeom >= len(row) {
			continue
		}
		id := strings.TrimSpace(row[idxID])
		if id == "" {
			continue
		}
		mp, err := ParseWKT(row[idxGeom])
		if err != nil {
			continue
		}
		props := make(map[string]any, len(row))
		for i, v := range row {
			if i != idxGeom && i < len(recs[0]) {
				props[recs[0][i]] = v
			}
		}
		out = append(out, Feature{ID: id, Geometry: mp, Properties: props})
	}
	if len(out) == 0 {
		return nil, errors.New("csv: no valid territories parsed")
	}
	return out, nil
}
