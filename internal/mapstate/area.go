package mapstate

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"time"

	"chronomap/internal/geom"
	"chronomap/internal/metrics"
	"chronomap/internal/transport"
)

// Province is a territory geometry record. Geometry and the derived
// BBox/Center/AreaM2 never change; Props is replaced on every area update.
type Province struct {
	ID       string
	Geometry geom.MultiPolygon
	BBox     geom.BBox
	Center   [2]float64
	AreaM2   float64
	Props    *ProvinceProps
}

// ProvinceProps are the attributes last applied from an area snapshot.
type ProvinceProps struct {
	Ruler           string
	Culture         string
	Religion        string
	ReligionGeneral string
	Capital         string
	Population      float64
}

// Value returns the property shown for dimension d.
func (p ProvinceProps) Value(d Dimension) string {
	switch d {
	case Ruler:
		return p.Ruler
	case Culture:
		return p.Culture
	case Religion:
		return p.Religion
	case ReligionGeneral:
		return p.ReligionGeneral
	}
	return ""
}

func newProvince(f geom.Feature) (Province, bool) {
	bb, ok := f.Geometry.BBox()
	if !ok {
		return Province{}, false
	}
	c, ok := geom.Centroid(f.Geometry)
	if !ok {
		c = bb.Center()
	}
	return Province{
		ID:       f.ID,
		Geometry: f.Geometry,
		BBox:     bb,
		Center:   c,
		AreaM2:   geom.Area(f.Geometry),
	}, true
}

// SetProvinces replaces the territory geometry snapshot. Records are
// annotated with the current area snapshot and labels are recomputed.
func (s *Store) SetProvinces(features []geom.Feature) int {
	provinces := make([]Province, 0, len(features))
	byID := make(map[string]int, len(features))
	for _, f := range features {
		p, ok := newProvince(f)
		if !ok {
			continue
		}
		if _, dup := byID[p.ID]; dup {
			s.log.Warn("province_duplicate_id", "id", p.ID)
			continue
		}
		byID[p.ID] = len(provinces)
		provinces = append(provinces, p)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.provinces = provinces
	s.provinceByID = byID
	if s.current != nil {
		s.updateProvincePropertiesLocked(s.current)
	}
	s.calculateLabelsLocked(s.activeColor)
	s.log.Info("provinces_set", "count", len(provinces))
	return len(provinces)
}

// Province returns the territory record with the given id.
func (s *Store) Province(id string) (Province, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.provinceByID[id]
	if !ok {
		return Province{}, false
	}
	return s.provinces[i], true
}

// ProvinceAt returns the territory containing the point (lon, lat).
func (s *Store) ProvinceAt(lon, lat float64) (Province, bool) {
	s.mu.Lock()
	provinces := s.provinces
	s.mu.Unlock()
	pt := [2]float64{lon, lat}
	for _, p := range provinces {
		if !p.BBox.Contains(pt) {
			continue
		}
		if geom.ContainsPoint(p.Geometry, pt) {
			return p, true
		}
	}
	return Province{}, false
}

// LoadAreaData makes the snapshot of year current, fetching it unless it is
// cached. Any area fetch still in flight is canceled first. A fetch that is
// canceled returns an error matching transport.ErrCanceled and leaves the
// store untouched; other failures are also recorded in Err.
func (s *Store) LoadAreaData(ctx context.Context, year int) (AreaSnapshot, error) {
	s.mu.Lock()
	cancelTaskLocked(&s.areaTask)
	if snap, ok := s.areaCache[year]; ok {
		metrics.AreaCacheHits.Inc()
		s.areaLoading = false
		s.setCurrentLocked(year, snap)
		s.mu.Unlock()
		s.log.Debug("area_cache_hit", "year", year)
		return snap, nil
	}
	metrics.AreaCacheMisses.Inc()
	t := startTaskLocked(&s.areaTask, ctx, "area")
	s.areaLoading = true
	s.mu.Unlock()

	s.log.Debug("area_fetch_start", "year", year, "task", t.id)
	t0 := time.Now()
	var snap AreaSnapshot
	err := s.get.Get(t.ctx, fmt.Sprintf("/areas/%d", year), &snap)
	metrics.FetchDurationMs.WithLabelValues("area").Observe(float64(time.Since(t0).Milliseconds()))

	s.mu.Lock()
	owned, live := t.finishLocked(&s.areaTask)
	if !live || transport.IsCanceled(err) {
		if owned {
			s.areaLoading = false
		}
		s.mu.Unlock()
		metrics.FetchTotal.WithLabelValues("area", "canceled").Inc()
		s.log.Debug("area_fetch_canceled", "year", year, "task", t.id)
		return nil, fmt.Errorf("load area %d: %w", year, transport.ErrCanceled)
	}
	s.areaLoading = false
	if err != nil {
		s.err = fmt.Errorf("load area %d: %w", year, err)
		err = s.err
		s.mu.Unlock()
		metrics.FetchTotal.WithLabelValues("area", "error").Inc()
		s.log.Error("area_fetch_failed", "year", year, "err", err)
		return nil, err
	}
	if snap == nil {
		snap = AreaSnapshot{}
	}
	s.putAreaLocked(year, snap)
	s.setCurrentLocked(year, snap)
	s.err = nil
	archive := s.archive
	s.mu.Unlock()

	metrics.FetchTotal.WithLabelValues("area", "ok").Inc()
	s.log.Info("area_loaded", "year", year, "territories", len(snap), "duration_ms", time.Since(t0).Milliseconds())
	if archive != nil {
		if err := archive.SaveArea(ctx, year, snap); err != nil {
			s.log.Warn("archive_save_failed", "year", year, "err", err)
		}
	}
	return snap, nil
}

// putAreaLocked stores snap under year by replacing the cache map.
func (s *Store) putAreaLocked(year int, snap AreaSnapshot) {
	next := make(map[int]AreaSnapshot, len(s.areaCache)+1)
	maps.Copy(next, s.areaCache)
	next[year] = snap
	s.areaCache = next
}

func (s *Store) setCurrentLocked(year int, snap AreaSnapshot) {
	s.year = year
	s.current = snap
	s.updateProvincePropertiesLocked(snap)
	s.calculateLabelsLocked(s.activeColor)
}

// SetAreaData caches data for year without changing the current year.
func (s *Store) SetAreaData(year int, data AreaSnapshot) {
	if data == nil {
		data = AreaSnapshot{}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.putAreaLocked(year, data)
}

// ClearAreaDataCache empties the year cache. The current snapshot stays in use.
func (s *Store) ClearAreaDataCache() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.areaCache = map[int]AreaSnapshot{}
}

// AreaData returns the current year and its snapshot; the snapshot is nil
// before the first successful load.
func (s *Store) AreaData() (int, AreaSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.year, s.current
}

// CachedYears lists the years held in the cache in ascending order.
func (s *Store) CachedYears() []int {
	s.mu.Lock()
	cache := s.areaCache
	s.mu.Unlock()
	return slices.Sorted(maps.Keys(cache))
}

// UpdateProvinceProperties annotates every territory present in snap with
// its attributes. religionGeneral comes from the religion's parent, or the
// religion id itself when there is none. Territories missing from snap lose
// their annotation but stay in the geometry snapshot.
func (s *Store) UpdateProvinceProperties(snap AreaSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updateProvincePropertiesLocked(snap)
}

func (s *Store) updateProvincePropertiesLocked(snap AreaSnapshot) {
	if len(s.provinces) == 0 {
		return
	}
	next := make([]Province, len(s.provinces))
	annotated := 0
	for i, p := range s.provinces {
		p.Props = nil
		if a, ok := snap[p.ID]; ok {
			p.Props = &ProvinceProps{
				Ruler:           a.Ruler,
				Culture:         a.Culture,
				Religion:        a.Religion,
				ReligionGeneral: s.religionGeneralLocked(a.Religion),
				Capital:         a.Capital,
				Population:      a.Population,
			}
			annotated++
		}
		next[i] = p
	}
	s.provinces = next
	s.log.Debug("province_properties_updated", "annotated", annotated, "total", len(next))
}

// PreloadArchive seeds the year cache from the archive and returns the
// number of snapshots loaded.
func (s *Store) PreloadArchive(ctx context.Context) (int, error) {
	s.mu.Lock()
	archive := s.archive
	s.mu.Unlock()
	if archive == nil {
		return 0, nil
	}
	snaps, err := archive.LoadAreas(ctx)
	if err != nil {
		return 0, fmt.Errorf("preload archive: %w", err)
	}
	for year, snap := range snaps {
		s.SetAreaData(year, snap)
	}
	s.log.Info("archive_preloaded", "years", len(snaps))
	return len(snaps), nil
}
