package tui

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"chronomap/internal/geom"
	"chronomap/internal/mapstate"
)

const flyFrame = 50 * time.Millisecond

type metadataMsg struct{ err error }

type areaMsg struct {
	year int
	err  error
}

type markersMsg struct {
	year int
	n    int
	err  error
}

type provincesMsg struct {
	path string
	n    int
	err  error
}

type exportMsg struct {
	path string
	err  error
}

type flyTickMsg time.Time

func loadMetadataCmd(ctx context.Context, s *mapstate.Store) tea.Cmd {
	return func() tea.Msg {
		_, err := s.LoadMetadata(ctx)
		return metadataMsg{err: err}
	}
}

// loadYearCmd fetches the area snapshot and the markers of year. The area
// load re-derives the selected outline once the new snapshot is current.
func loadYearCmd(ctx context.Context, s *mapstate.Store, year int) tea.Cmd {
	return tea.Batch(
		func() tea.Msg {
			_, err := s.LoadAreaData(ctx, year)
			if err == nil {
				s.RefreshSelection()
			}
			return areaMsg{year: year, err: err}
		},
		func() tea.Msg {
			ms, err := s.LoadMarkers(ctx, year)
			return markersMsg{year: year, n: len(ms), err: err}
		},
	)
}

func loadProvincesCmd(s *mapstate.Store, path string) tea.Cmd {
	return func() tea.Msg {
		features, err := geom.LoadFeatures(path)
		if err != nil {
			return provincesMsg{path: path, err: err}
		}
		return provincesMsg{path: path, n: s.SetProvinces(features)}
	}
}

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9_-]+`)

// exportOutlineCmd writes the current outline as a GeoJSON Feature.
func exportOutlineCmd(s *mapstate.Store, dir string, year int) tea.Cmd {
	o := s.Outline()
	if o == nil {
		return func() tea.Msg { return exportMsg{err: mapstate.ErrNoOutline} }
	}
	name := s.EntityName(o.Value, o.Dimension)
	return func() tea.Msg {
		data, err := geom.EncodeFeature(o.Geometry, map[string]any{
			"id":        o.Value,
			"name":      name,
			"dimension": string(o.Dimension),
			"color":     o.Color,
			"year":      year,
		})
		if err != nil {
			return exportMsg{err: err}
		}
		file := fmt.Sprintf("%s-%s-%d.geojson", o.Dimension, unsafeName.ReplaceAllString(o.Value, "_"), year)
		path := filepath.Join(dir, file)
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return exportMsg{err: err}
		}
		return exportMsg{path: path}
	}
}

func flyTickCmd() tea.Cmd {
	return tea.Tick(flyFrame, func(t time.Time) tea.Msg { return flyTickMsg(t) })
}

func pendingFlyCmd(s *mapstate.Store) tea.Cmd {
	if _, ok := s.PendingFlyTo(); ok {
		return flyTickCmd()
	}
	return nil
}
