// Package mapstate holds the state of one map session: the viewport, the
// per-year area cache, entity metadata, territory geometry, entity outlines,
// label placement and markers.
//
// A Store is safe for concurrent use. Its mutex is held only for synchronous
// reads and writes, never across a fetch, so a slow request cannot block the
// renderer from reading State.
package mapstate

import (
	"context"
	"errors"
	"log/slog"
	"maps"
	"sync"

	"chronomap/internal/geom"
	"chronomap/internal/logger"
)

var (
	ErrInvalidYear      = errors.New("invalid year")
	ErrInvalidDimension = errors.New("invalid dimension")
	ErrNoOutline        = errors.New("no entity outline")
)

// FallbackColor is returned for entities without metadata.
const FallbackColor = "#808080"

// Getter fetches path and decodes its JSON body into out. Cancellation must
// surface as an error for which transport.IsCanceled reports true.
type Getter interface {
	Get(ctx context.Context, path string, out any) error
}

// GeometryOps are the polygon primitives the outline engine composes.
type GeometryOps interface {
	Union(a, b geom.MultiPolygon) (geom.MultiPolygon, error)
	Repair(mp geom.MultiPolygon) ([]geom.Polygon, error)
}

// Archive persists area snapshots between sessions.
type Archive interface {
	SaveArea(ctx context.Context, year int, snap AreaSnapshot) error
	LoadAreas(ctx context.Context) (map[int]AreaSnapshot, error)
}

type Option func(*Store)

func WithLogger(l *slog.Logger) Option { return func(s *Store) { s.log = l } }

// WithArchive writes successful area fetches through to a and enables PreloadArchive.
func WithArchive(a Archive) Option { return func(s *Store) { s.archive = a } }

func WithGeometryOps(ops GeometryOps) Option { return func(s *Store) { s.ops = ops } }

func WithMarkerLimit(n int) Option { return func(s *Store) { s.markerLimit = max(n, 0) } }

// WithActiveColor sets the initial coloring dimension; invalid values keep ruler.
func WithActiveColor(d Dimension) Option {
	return func(s *Store) {
		if d.Valid() {
			s.activeColor = d
		}
	}
}

func WithViewport(v Viewport) Option {
	return func(s *Store) { s.viewport = normalizeViewport(v) }
}

// Store is the per-session map state. Construct one with New and share it
// between the renderer and whatever drives year changes.
type Store struct {
	mu      sync.Mutex
	get     Getter
	log     *slog.Logger
	ops     GeometryOps
	archive Archive

	viewport Viewport
	flyTo    *FlyTarget

	year        int
	areaCache   map[int]AreaSnapshot
	current     AreaSnapshot
	areaLoading bool
	areaTask    *task

	metadata     *Metadata
	metaLoading  bool
	provinces    []Province
	provinceByID map[string]int

	activeColor   Dimension
	previousColor Dimension
	layers        map[Dimension]bool
	labels        []Label

	outline    *EntityOutline
	outlineGen uint64
	selection  *Selection

	markers        []Marker
	markerLimit    int
	markerFilter   map[string]bool
	markersLoading bool
	markerTask     *task

	err error
}

// New returns a Store that fetches through get.
func New(get Getter, opts ...Option) *Store {
	s := &Store{
		get:          get,
		log:          logger.L(),
		ops:          geom.Ops{},
		viewport:     DefaultViewport(),
		areaCache:    map[int]AreaSnapshot{},
		activeColor:  Ruler,
		markerLimit:  DefaultMarkerLimit,
		markerFilter: map[string]bool{},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.layers = layersFor(s.activeColor)
	return s
}

// State is an immutable view of the store for rendering. Slices and maps
// are shared with the store but never mutated after being handed out.
type State struct {
	Viewport Viewport
	FlyTo    *FlyTarget

	Year    int
	HasArea bool

	Provinces []Province
	Outline   *EntityOutline
	Selection *Selection
	Labels    []Label
	Markers   []Marker

	ActiveColor         Dimension
	PreviousActiveColor Dimension
	Layers              map[Dimension]bool

	AreaLoading     bool
	MetadataLoading bool
	MarkersLoading  bool
	HasMetadata     bool
	Err             error
}

func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := State{
		Viewport:            s.viewport,
		Year:                s.year,
		HasArea:             s.current != nil,
		Provinces:           s.provinces,
		Labels:              s.labels,
		Markers:             s.filteredMarkersLocked(),
		ActiveColor:         s.activeColor,
		PreviousActiveColor: s.previousColor,
		Layers:              maps.Clone(s.layers),
		AreaLoading:         s.areaLoading,
		MetadataLoading:     s.metaLoading,
		MarkersLoading:      s.markersLoading,
		HasMetadata:         s.metadata != nil,
		Err:                 s.err,
	}
	if s.flyTo != nil {
		ft := *s.flyTo
		st.FlyTo = &ft
	}
	if s.outline != nil {
		o := *s.outline
		st.Outline = &o
	}
	if s.selection != nil {
		sel := *s.selection
		st.Selection = &sel
	}
	return st
}

// Err returns the last recorded load failure, if any.
func (s *Store) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// ActiveColor returns the dimension territories are currently colored by.
func (s *Store) ActiveColor() Dimension {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeColor
}

// SetActiveColor switches the coloring dimension. Exactly one layer stays
// visible, labels are recomputed and switching to population drops the outline.
func (s *Store) SetActiveColor(d Dimension) error {
	if !d.Valid() {
		s.log.Warn("set_active_color_invalid", "dimension", d)
		return ErrInvalidDimension
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if d != s.activeColor {
		s.previousColor = s.activeColor
		s.activeColor = d
	}
	s.layers = layersFor(d)
	if d == Population {
		s.clearOutlineLocked()
		s.selection = nil
	}
	s.calculateLabelsLocked(d)
	return nil
}

// Layers reports which dimension layer is visible.
func (s *Store) Layers() map[Dimension]bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return maps.Clone(s.layers)
}

func layersFor(active Dimension) map[Dimension]bool {
	m := make(map[Dimension]bool, len(Dimensions))
	for _, d := range Dimensions {
		m[d] = d == active
	}
	return m
}
