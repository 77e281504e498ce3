package mapstate

import (
	"cmp"
	"math"
	"slices"

	"gonum.org/v1/gonum/floats"

	"chronomap/internal/metrics"
)

const (
	minLabelArea = 1e9
	maxLabelArea = 1e12
	minFontSize  = 10.0
	maxFontSize  = 28.0
)

// Label is the placement of one entity name.
type Label struct {
	Position  [2]float64 // lon, lat
	Name      string
	FontSize  float64
	EntityID  string
	Dimension Dimension
}

// Labels returns the labels of the active dimension.
func (s *Store) Labels() []Label {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.labels
}

// CalculateLabels recomputes one label per entity on dimension d and
// stores them. Positions are the area-weighted mean of territory centroids,
// an approximation of the merged polygon's centroid that avoids a union per
// entity.
func (s *Store) CalculateLabels(d Dimension) []Label {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calculateLabelsLocked(d)
}

type labelGroup struct {
	xs, ys, ws []float64
}

func (s *Store) calculateLabelsLocked(d Dimension) []Label {
	s.labels = nil
	if !d.Valid() {
		s.log.Warn("labels_invalid_dimension", "dimension", d)
		return nil
	}
	if d == Population || len(s.provinces) == 0 || s.current == nil || s.metadata == nil {
		return nil
	}
	metrics.LabelRecomputeTotal.WithLabelValues(string(d)).Inc()

	groups := map[string]*labelGroup{}
	for _, p := range s.provinces {
		a, ok := s.current[p.ID]
		if !ok {
			continue
		}
		v := s.valueLocked(a, d)
		if v == "" {
			continue
		}
		g := groups[v]
		if g == nil {
			g = &labelGroup{}
			groups[v] = g
		}
		g.xs = append(g.xs, p.Center[0])
		g.ys = append(g.ys, p.Center[1])
		g.ws = append(g.ws, p.AreaM2)
	}

	labels := make([]Label, 0, len(groups))
	for id, g := range groups {
		total := floats.Sum(g.ws)
		if !(total > 0) {
			continue
		}
		labels = append(labels, Label{
			Position:  [2]float64{floats.Dot(g.xs, g.ws) / total, floats.Dot(g.ys, g.ws) / total},
			Name:      s.entityNameLocked(id, d),
			FontSize:  fontSize(total),
			EntityID:  id,
			Dimension: d,
		})
	}
	slices.SortFunc(labels, func(a, b Label) int {
		if c := cmp.Compare(b.FontSize, a.FontSize); c != 0 {
			return c
		}
		return cmp.Compare(a.EntityID, b.EntityID)
	})
	s.labels = labels
	s.log.Debug("labels_computed", "dimension", d, "labels", len(labels))
	return labels
}

// fontSize maps log10 of an area in m² from [1e9, 1e12] onto [10, 28] px.
func fontSize(area float64) float64 {
	a := clamp(area, minLabelArea, maxLabelArea)
	t := (math.Log10(a) - math.Log10(minLabelArea)) / (math.Log10(maxLabelArea) - math.Log10(minLabelArea))
	return minFontSize + t*(maxFontSize-minFontSize)
}
