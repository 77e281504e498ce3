package mapstate

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"chronomap/internal/geom"
	"chronomap/internal/metrics"
	"chronomap/internal/transport"
)

// MetadataEntry is the display metadata of one entity.
type MetadataEntry struct {
	Name  string
	Color string
	Wiki  string
	// Parent links a religion to its religionGeneral entry.
	Parent string
}

// Metadata holds one entry table per aggregable dimension.
type Metadata struct {
	Ruler           map[string]MetadataEntry
	Culture         map[string]MetadataEntry
	Religion        map[string]MetadataEntry
	ReligionGeneral map[string]MetadataEntry
}

func (m *Metadata) table(d Dimension) map[string]MetadataEntry {
	if m == nil {
		return nil
	}
	switch d {
	case Ruler:
		return m.Ruler
	case Culture:
		return m.Culture
	case Religion:
		return m.Religion
	case ReligionGeneral:
		return m.ReligionGeneral
	}
	return nil
}

// metadataResponse is the combined metadata payload. Entries are tuples
// [name, color, wiki?, _, parent?].
type metadataResponse struct {
	Provinces       json.RawMessage              `json:"provinces"`
	Ruler           map[string][]json.RawMessage `json:"ruler"`
	Culture         map[string][]json.RawMessage `json:"culture"`
	Religion        map[string][]json.RawMessage `json:"religion"`
	ReligionGeneral map[string][]json.RawMessage `json:"religionGeneral"`
}

func normalizeEntries(raw map[string][]json.RawMessage, withParent bool) map[string]MetadataEntry {
	out := make(map[string]MetadataEntry, len(raw))
	for id, tuple := range raw {
		at := func(i int) string {
			if i < len(tuple) {
				return rawID(tuple[i])
			}
			return ""
		}
		e := MetadataEntry{Name: at(0), Color: at(1), Wiki: at(2)}
		if withParent {
			e.Parent = at(4)
		}
		out[id] = e
	}
	return out
}

func (r metadataResponse) metadata() *Metadata {
	return &Metadata{
		Ruler:           normalizeEntries(r.Ruler, false),
		Culture:         normalizeEntries(r.Culture, false),
		Religion:        normalizeEntries(r.Religion, true),
		ReligionGeneral: normalizeEntries(r.ReligionGeneral, false),
	}
}

// LoadMetadata fetches entity metadata and, when the response bundles it,
// the territory geometry collection.
func (s *Store) LoadMetadata(ctx context.Context) (*Metadata, error) {
	s.mu.Lock()
	s.metaLoading = true
	s.mu.Unlock()

	t0 := time.Now()
	var resp metadataResponse
	err := s.get.Get(ctx, "/metadata", &resp)
	metrics.FetchDurationMs.WithLabelValues("metadata").Observe(float64(time.Since(t0).Milliseconds()))
	if transport.IsCanceled(err) || (err == nil && ctx.Err() != nil) {
		s.mu.Lock()
		s.metaLoading = false
		s.mu.Unlock()
		metrics.FetchTotal.WithLabelValues("metadata", "canceled").Inc()
		s.log.Debug("metadata_fetch_canceled")
		return nil, fmt.Errorf("load metadata: %w", transport.ErrCanceled)
	}
	if err != nil {
		s.mu.Lock()
		s.metaLoading = false
		s.err = fmt.Errorf("load metadata: %w", err)
		err = s.err
		s.mu.Unlock()
		metrics.FetchTotal.WithLabelValues("metadata", "error").Inc()
		s.log.Error("metadata_fetch_failed", "err", err)
		return nil, err
	}
	metrics.FetchTotal.WithLabelValues("metadata", "ok").Inc()

	md := resp.metadata()
	s.SetMetadata(md)
	s.mu.Lock()
	s.err = nil
	s.mu.Unlock()
	s.log.Info("metadata_loaded", "rulers", len(md.Ruler), "cultures", len(md.Culture),
		"religions", len(md.Religion), "religion_generals", len(md.ReligionGeneral))

	if len(resp.Provinces) > 0 && string(resp.Provinces) != "null" {
		features, err := geom.DecodeFeatureCollection(resp.Provinces)
		if err != nil {
			s.mu.Lock()
			s.err = fmt.Errorf("load metadata: provinces: %w", err)
			err = s.err
			s.mu.Unlock()
			s.log.Error("provinces_decode_failed", "err", err)
			return md, err
		}
		s.SetProvinces(features)
	}
	return md, nil
}

// SetMetadata installs md, re-derives province religionGeneral values and
// recomputes labels.
func (s *Store) SetMetadata(md *Metadata) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.metadata = md
	s.metaLoading = false
	if s.current != nil {
		s.updateProvincePropertiesLocked(s.current)
	}
	s.calculateLabelsLocked(s.activeColor)
}

// Metadata returns the loaded metadata, or nil.
func (s *Store) Metadata() *Metadata {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.metadata
}

// GetEntityColor returns the display color of value on dimension d. For
// religionGeneral, value is a religionGeneral id.
func (s *Store) GetEntityColor(value string, d Dimension) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.entityColorLocked(value, d)
}

func (s *Store) entityColorLocked(value string, d Dimension) string {
	if value == "" {
		return FallbackColor
	}
	e, ok := s.metadata.table(d)[value]
	if !ok || e.Color == "" {
		return FallbackColor
	}
	return e.Color
}

// GetEntityWiki returns the wiki reference of value on dimension d. For
// religionGeneral, value is a religion id whose parent is looked up first.
func (s *Store) GetEntityWiki(value string, d Dimension) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if value == "" || s.metadata == nil {
		return "", false
	}
	if d == ReligionGeneral {
		rel, ok := s.metadata.Religion[value]
		if !ok || rel.Parent == "" {
			return "", false
		}
		value = rel.Parent
	}
	e, ok := s.metadata.table(d)[value]
	if !ok || e.Wiki == "" {
		return "", false
	}
	return e.Wiki, true
}

// EntityName returns the display name of value on d, or value itself.
func (s *Store) EntityName(value string, d Dimension) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.entityNameLocked(value, d)
}

func (s *Store) entityNameLocked(value string, d Dimension) string {
	if e, ok := s.metadata.table(d)[value]; ok && e.Name != "" {
		return e.Name
	}
	return value
}

// GetReligionGeneral returns the religionGeneral id of a religion. Unknown
// ids are returned unchanged.
func (s *Store) GetReligionGeneral(religionID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.religionGeneralLocked(religionID)
}

func (s *Store) religionGeneralLocked(id string) string {
	if s.metadata == nil {
		return id
	}
	if rel, ok := s.metadata.Religion[id]; ok && rel.Parent != "" {
		return rel.Parent
	}
	return id
}
