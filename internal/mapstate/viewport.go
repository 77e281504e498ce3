package mapstate

import (
	"math"
	"time"
)

const (
	MaxZoom  = 22.0
	MaxPitch = 85.0

	// DefaultFlyDuration is used when FlyToOptions.Duration is zero.
	DefaultFlyDuration = 2 * time.Second
)

// Viewport is the camera state. Every Viewport held by a Store satisfies
// the ranges enforced by normalizeViewport.
type Viewport struct {
	Latitude  float64
	Longitude float64
	Zoom      float64
	MinZoom   float64
	Bearing   float64
	Pitch     float64
	Width     float64
	Height    float64
}

func DefaultViewport() Viewport {
	return Viewport{Latitude: 37, Longitude: 37, Zoom: 2.5, MinZoom: 2}
}

// ViewportPatch carries the fields to change; nil fields are kept.
type ViewportPatch struct {
	Latitude  *float64
	Longitude *float64
	Zoom      *float64
	MinZoom   *float64
	Bearing   *float64
	Pitch     *float64
	Width     *float64
	Height    *float64
}

// Float returns a pointer to v for building patches.
func Float(v float64) *float64 { return &v }

func (p ViewportPatch) apply(v Viewport) Viewport {
	set := func(dst *float64, src *float64) {
		if src != nil {
			*dst = *src
		}
	}
	set(&v.Latitude, p.Latitude)
	set(&v.Longitude, p.Longitude)
	set(&v.Zoom, p.Zoom)
	set(&v.MinZoom, p.MinZoom)
	set(&v.Bearing, p.Bearing)
	set(&v.Pitch, p.Pitch)
	set(&v.Width, p.Width)
	set(&v.Height, p.Height)
	return v
}

func finite(f float64) bool { return !math.IsNaN(f) && !math.IsInf(f, 0) }

func clamp(v, lo, hi float64) float64 { return math.Max(lo, math.Min(v, hi)) }

// wrap maps v into [lo, lo+span).
func wrap(v, lo, span float64) float64 {
	r := math.Mod(v-lo, span)
	if r < 0 {
		r += span
	}
	if r >= span {
		r = 0
	}
	return r + lo
}

func normalizeViewport(v Viewport) Viewport {
	def := DefaultViewport()

	if !finite(v.MinZoom) {
		v.MinZoom = def.MinZoom
	}
	v.MinZoom = clamp(v.MinZoom, 0, MaxZoom)

	if !finite(v.Latitude) {
		v.Latitude = def.Latitude
	}
	v.Latitude = clamp(v.Latitude, -90, 90)

	if !finite(v.Longitude) {
		v.Longitude = def.Longitude
	}
	if v.Longitude < -180 || v.Longitude > 180 {
		v.Longitude = wrap(v.Longitude, -180, 360)
	}

	if !finite(v.Zoom) {
		v.Zoom = def.Zoom
	}
	v.Zoom = clamp(v.Zoom, v.MinZoom, MaxZoom)

	if !finite(v.Bearing) {
		v.Bearing = 0
	}
	v.Bearing = wrap(v.Bearing, 0, 360)

	if !finite(v.Pitch) {
		v.Pitch = 0
	}
	v.Pitch = clamp(v.Pitch, 0, MaxPitch)

	if !finite(v.Width) || v.Width < 0 {
		v.Width = 0
	}
	if !finite(v.Height) || v.Height < 0 {
		v.Height = 0
	}
	return v
}

// Viewport returns the current camera state.
func (s *Store) Viewport() Viewport {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewport
}

// SetViewport merges p into the viewport and normalizes the result.
func (s *Store) SetViewport(p ViewportPatch) Viewport {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.viewport = normalizeViewport(p.apply(s.viewport))
	return s.viewport
}

// FlyToOptions describes a requested camera transition. Latitude and
// Longitude are required; nil fields keep the current value.
type FlyToOptions struct {
	Latitude  float64
	Longitude float64
	Zoom      *float64
	Bearing   *float64
	Pitch     *float64
	Duration  time.Duration
}

// FlyTarget is a pending transition for the renderer to animate.
type FlyTarget struct {
	Target   Viewport
	Duration time.Duration
}

// FlyTo records a transition request. It does not move the viewport; the
// renderer animates towards the target and calls ClearFlyTo when done.
func (s *Store) FlyTo(opts FlyToOptions) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flyToLocked(opts)
}

func (s *Store) flyToLocked(opts FlyToOptions) bool {
	if !finite(opts.Latitude) || !finite(opts.Longitude) {
		s.log.Warn("fly_to_invalid_target", "lat", opts.Latitude, "lng", opts.Longitude)
		return false
	}
	target := ViewportPatch{
		Latitude:  &opts.Latitude,
		Longitude: &opts.Longitude,
		Zoom:      opts.Zoom,
		Bearing:   opts.Bearing,
		Pitch:     opts.Pitch,
	}.apply(s.viewport)
	d := opts.Duration
	if d <= 0 {
		d = DefaultFlyDuration
	}
	s.flyTo = &FlyTarget{Target: normalizeViewport(target), Duration: d}
	s.log.Debug("fly_to", "lat", s.flyTo.Target.Latitude, "lng", s.flyTo.Target.Longitude,
		"zoom", s.flyTo.Target.Zoom, "duration_ms", d.Milliseconds())
	return true
}

// PendingFlyTo returns the transition in progress, if any.
func (s *Store) PendingFlyTo() (FlyTarget, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.flyTo == nil {
		return FlyTarget{}, false
	}
	return *s.flyTo, true
}

// ClearFlyTo ends the transition in progress.
func (s *Store) ClearFlyTo() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flyTo = nil
}
