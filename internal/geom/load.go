package geom

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// LoadFeatures reads a territory file, picking the format from the
// extension: .geojson/.json, .kml, .csv (id + WKT column) or .wkt (one
// "id<TAB>WKT" per line).
func LoadFeatures(path string) ([]Feature, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var features []Feature
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".geojson", ".json":
		features, err = DecodeFeatureCollection(data)
	case ".kml":
		features, err = ReadKML(strings.NewReader(string(data)))
	case ".csv":
		features, err = ReadCSV(strings.NewReader(string(data)))
	case ".wkt":
		features, err = readWKTLines(string(data))
	default:
		return nil, fmt.Errorf("unsupported territory file %q", ext)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return features, nil
}

func readWKTLines(data string) ([]Feature, error) {
	var out []Feature
	for n, line := range strings.Split(data, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		id, wkt, ok := strings.Cut(line, "\t")
		if !ok {
			return nil, fmt.Errorf("line %d: want id<TAB>wkt", n+1)
		}
		mp, err := ParseWKT(wkt)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", n+1, err)
		}
		out = append(out, Feature{ID: strings.TrimSpace(id), Geometry: mp})
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no territories")
	}
	return out, nil
}
