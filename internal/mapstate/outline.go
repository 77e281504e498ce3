package mapstate

import (
	"fmt"
	"math"
	"time"

	"chronomap/internal/geom"
	"chronomap/internal/metrics"
)

const (
	// DefaultFitPadding is the padding FitToEntityOutline uses when given a non-positive one.
	DefaultFitPadding = 50.0
	// MinEntityZoom is the lowest zoom a fitted entity view may use.
	MinEntityZoom = 4.5

	fitDuration = 1500 * time.Millisecond
)

// EntityOutline is the merged boundary of all territories sharing one value.
type EntityOutline struct {
	Value     string
	Dimension Dimension
	Geometry  geom.MultiPolygon
	Color     string
}

// Selection is the entity the user highlighted.
type Selection struct {
	Value     string
	Dimension Dimension
}

// Outline returns the current entity outline, or nil.
func (s *Store) Outline() *EntityOutline {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.outline == nil {
		return nil
	}
	o := *s.outline
	return &o
}

// ClearEntityOutline drops the outline unconditionally.
func (s *Store) ClearEntityOutline() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clearOutlineLocked()
}

// clearOutlineLocked also invalidates any outline computation in progress.
func (s *Store) clearOutlineLocked() {
	s.outline = nil
	s.outlineGen++
}

// CalculateEntityOutline merges the geometry of every territory whose
// attribute on d equals value and stores it as the outline. For
// religionGeneral the attribute compared is the religion id. Returns nil,
// with the outline cleared, when nothing matches or the input is rejected.
// Geometry failures are logged and never returned.
func (s *Store) CalculateEntityOutline(value string, d Dimension) *EntityOutline {
	s.mu.Lock()
	if value == "" || !d.Valid() || d == Population {
		s.clearOutlineLocked()
		s.mu.Unlock()
		metrics.OutlineTotal.WithLabelValues("rejected").Inc()
		s.log.Warn("outline_rejected", "value", value, "dimension", d)
		return nil
	}
	if len(s.provinces) == 0 || s.current == nil {
		s.clearOutlineLocked()
		s.mu.Unlock()
		metrics.OutlineTotal.WithLabelValues("rejected").Inc()
		s.log.Warn("outline_missing_data", "value", value, "dimension", d,
			"provinces", len(s.provinces), "has_area", s.current != nil)
		return nil
	}
	idx := d.index()
	var parts []geom.MultiPolygon
	for _, p := range s.provinces {
		if a, ok := s.current[p.ID]; ok && a.at(idx) == value {
			parts = append(parts, p.Geometry)
		}
	}
	if len(parts) == 0 {
		s.clearOutlineLocked()
		s.mu.Unlock()
		metrics.OutlineTotal.WithLabelValues("empty").Inc()
		s.log.Debug("outline_no_match", "value", value, "dimension", d)
		return nil
	}
	s.outlineGen++
	gen := s.outlineGen
	ops := s.ops
	s.mu.Unlock()

	t0 := time.Now()
	merged, err := s.mergeOutline(ops, parts)

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.outlineGen {
		// a newer computation or a clear won
		return nil
	}
	if err != nil {
		s.outline = nil
		metrics.OutlineTotal.WithLabelValues("failed").Inc()
		s.log.Error("outline_failed", "value", value, "dimension", d, "parts", len(parts), "err", err)
		return nil
	}
	s.outline = &EntityOutline{
		Value:     value,
		Dimension: d,
		Geometry:  merged,
		Color:     s.entityColorLocked(value, d),
	}
	metrics.OutlineTotal.WithLabelValues("ok").Inc()
	s.log.Debug("outline_computed", "value", value, "dimension", d, "parts", len(parts),
		"polygons", len(merged), "duration_ms", time.Since(t0).Milliseconds())
	o := *s.outline
	return &o
}

// mergeOutline unions parts pairwise, then splits self-intersections and
// re-unions the pieces. A failed repair keeps the unrepaired merge.
func (s *Store) mergeOutline(ops GeometryOps, parts []geom.MultiPolygon) (out geom.MultiPolygon, err error) {
	defer func() {
		if r := recover(); r != nil {
			out, err = nil, fmt.Errorf("%w: %v", geom.ErrGeometry, r)
		}
	}()
	acc := parts[0]
	for _, p := range parts[1:] {
		acc, err = ops.Union(acc, p)
		if err != nil {
			return nil, fmt.Errorf("union: %w", err)
		}
	}

	pieces, err := ops.Repair(acc)
	switch {
	case err != nil:
		s.log.Warn("outline_repair_failed", "err", err)
	case len(pieces) == 1:
		acc = geom.MultiPolygon{pieces[0]}
	case len(pieces) > 1:
		acc = geom.MultiPolygon{pieces[0]}
		for _, piece := range pieces[1:] {
			acc, err = ops.Union(acc, geom.MultiPolygon{piece})
			if err != nil {
				return nil, fmt.Errorf("re-union repaired pieces: %w", err)
			}
		}
	}

	acc = geom.Normalize(acc)
	if acc.IsEmpty() {
		return nil, fmt.Errorf("%w: empty outline", geom.ErrGeometry)
	}
	return acc, nil
}

// FitToEntityOutline requests a flyTo framing the outline, padded by padding
// pixels. Reports false when there is no outline.
func (s *Store) FitToEntityOutline(padding float64) bool {
	if !finite(padding) || padding <= 0 {
		padding = DefaultFitPadding
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.outline == nil {
		s.log.Warn("fit_without_outline")
		return false
	}
	bb, ok := s.outline.Geometry.BBox()
	if !ok {
		s.log.Warn("fit_empty_outline")
		return false
	}
	c := bb.Center()
	z := fitZoom(bb, padding, s.viewport.Zoom)
	return s.flyToLocked(FlyToOptions{
		Latitude:  c[1],
		Longitude: c[0],
		Zoom:      &z,
		Duration:  fitDuration,
	})
}

// fitZoom estimates the zoom showing bb and keeps it within
// [MinEntityZoom, max(MinEntityZoom, current-1)].
func fitZoom(bb geom.BBox, padding, current float64) float64 {
	hi := MinEntityZoom
	if finite(current) {
		hi = math.Max(MinEntityZoom, current-1)
	}
	span := math.Max(bb.Width(), bb.Height())
	if !finite(span) || span <= 0 {
		return hi
	}
	z := (math.Log2(360/span) - 1) * (1 - padding/500)
	if !finite(z) {
		return hi
	}
	return clamp(z, MinEntityZoom, hi)
}

// SelectEntity highlights value on d and computes its outline.
func (s *Store) SelectEntity(value string, d Dimension) *EntityOutline {
	s.mu.Lock()
	s.selection = nil
	if value != "" && d.Valid() && d != Population {
		s.selection = &Selection{Value: value, Dimension: d}
	}
	s.mu.Unlock()
	return s.CalculateEntityOutline(value, d)
}

// ClearSelection drops the selection and its outline.
func (s *Store) ClearSelection() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selection = nil
	s.clearOutlineLocked()
}

// RefreshSelection recomputes the selected entity's outline against the
// current area snapshot, e.g. after a year change.
func (s *Store) RefreshSelection() *EntityOutline {
	s.mu.Lock()
	sel := s.selection
	s.mu.Unlock()
	if sel == nil {
		return nil
	}
	return s.CalculateEntityOutline(sel.Value, sel.Dimension)
}
