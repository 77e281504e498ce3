package mapstate

import (
	"context"
	"fmt"
	"maps"
	"time"

	"chronomap/internal/metrics"
	"chronomap/internal/transport"
)

// DefaultMarkerLimit bounds a marker fetch unless configured otherwise.
const DefaultMarkerLimit = 2000

// Marker is a point feature such as a battle, a city or a person.
type Marker struct {
	ID           string         `json:"_id"`
	Name         string         `json:"name"`
	Type         string         `json:"type"`
	Year         int            `json:"year"`
	Coordinates  [2]float64     `json:"coo"`
	Coordinates2 *[2]float64    `json:"coo2,omitempty"`
	EndYear      *int           `json:"end,omitempty"`
	Wiki         string         `json:"wiki,omitempty"`
	Data         map[string]any `json:"data,omitempty"`
}

// legacyGroups maps marker types onto the grouped toggles older filters used.
var legacyGroups = map[string]string{
	"battle":     "conflict",
	"siege":      "conflict",
	"city":       "settlement",
	"castle":     "settlement",
	"person":     "people",
	"artist":     "people",
	"scholar":    "people",
	"explorer":   "people",
	"politician": "people",
	"military":   "people",
	"artifact":   "culture",
	"event":      "culture",
}

// LegacyGroup returns the grouped toggle a marker type falls back to.
func LegacyGroup(markerType string) (string, bool) {
	g, ok := legacyGroups[markerType]
	return g, ok
}

// SetMarkerLimit sets the fetch bound; 0 disables marker fetching.
func (s *Store) SetMarkerLimit(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.markerLimit = max(n, 0)
}

func (s *Store) MarkerLimit() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.markerLimit
}

// LoadMarkers replaces the marker set with the markers of year. Only the
// last loaded year is kept. With a limit of 0 nothing is fetched.
func (s *Store) LoadMarkers(ctx context.Context, year int) ([]Marker, error) {
	s.mu.Lock()
	if s.markerLimit == 0 {
		cancelTaskLocked(&s.markerTask)
		s.markers = []Marker{}
		s.markersLoading = false
		s.mu.Unlock()
		return []Marker{}, nil
	}
	limit := s.markerLimit
	t := startTaskLocked(&s.markerTask, ctx, "markers")
	s.markersLoading = true
	s.mu.Unlock()

	t0 := time.Now()
	var markers []Marker
	err := s.get.Get(t.ctx, fmt.Sprintf("/markers?year=%d&limit=%d", year, limit), &markers)
	metrics.FetchDurationMs.WithLabelValues("markers").Observe(float64(time.Since(t0).Milliseconds()))

	s.mu.Lock()
	defer s.mu.Unlock()
	owned, live := t.finishLocked(&s.markerTask)
	if !live || transport.IsCanceled(err) {
		if owned {
			s.markersLoading = false
		}
		metrics.FetchTotal.WithLabelValues("markers", "canceled").Inc()
		s.log.Debug("markers_fetch_canceled", "year", year, "task", t.id)
		return nil, fmt.Errorf("load markers %d: %w", year, transport.ErrCanceled)
	}
	s.markersLoading = false
	if err != nil {
		s.err = fmt.Errorf("load markers %d: %w", year, err)
		metrics.FetchTotal.WithLabelValues("markers", "error").Inc()
		s.log.Error("markers_fetch_failed", "year", year, "err", err)
		return nil, s.err
	}
	if markers == nil {
		markers = []Marker{}
	}
	s.markers = markers
	metrics.FetchTotal.WithLabelValues("markers", "ok").Inc()
	s.log.Info("markers_loaded", "year", year, "count", len(markers), "limit", limit)
	return markers, nil
}

// Markers returns the unfiltered marker set.
func (s *Store) Markers() []Marker {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.markers
}

// SetMarkerFilter shows or hides a marker type or a legacy group.
func (s *Store) SetMarkerFilter(markerType string, enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := maps.Clone(s.markerFilter)
	next[markerType] = enabled
	s.markerFilter = next
}

// MarkerFilter returns a copy of the explicit toggles.
func (s *Store) MarkerFilter() map[string]bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return maps.Clone(s.markerFilter)
}

// MarkerVisible reports whether markers of the given type pass the filter.
func (s *Store) MarkerVisible(markerType string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.markerVisibleLocked(markerType)
}

// markerVisibleLocked checks the type's own toggle, then its legacy group.
// Types with neither are visible.
func (s *Store) markerVisibleLocked(markerType string) bool {
	if on, ok := s.markerFilter[markerType]; ok {
		return on
	}
	if g, ok := legacyGroups[markerType]; ok {
		if on, ok := s.markerFilter[g]; ok {
			return on
		}
	}
	return true
}

// FilteredMarkers returns the markers whose type passes the filter.
func (s *Store) FilteredMarkers() []Marker {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.filteredMarkersLocked()
}

func (s *Store) filteredMarkersLocked() []Marker {
	out := make([]Marker, 0, len(s.markers))
	for _, m := range s.markers {
		if s.markerVisibleLocked(m.Type) {
			out = append(out, m)
		}
	}
	return out
}
