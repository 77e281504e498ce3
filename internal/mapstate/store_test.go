package mapstate

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chronomap/internal/geom"
	"chronomap/internal/transport"
)

// fakeGetter serves canned JSON bodies by path. A gated path blocks until
// its gate is closed or the request context is canceled.
type fakeGetter struct {
	mu     sync.Mutex
	bodies map[string]string
	errs   map[string]error
	gates  map[string]chan struct{}
	calls  []string
}

func newFakeGetter() *fakeGetter {
	return &fakeGetter{
		bodies: map[string]string{},
		errs:   map[string]error{},
		gates:  map[string]chan struct{}{},
	}
}

func (f *fakeGetter) serve(path, body string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bodies[path] = body
}

func (f *fakeGetter) fail(path string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs[path] = err
}

func (f *fakeGetter) gate(path string) chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch := make(chan struct{})
	f.gates[path] = ch
	return ch
}

func (f *fakeGetter) count(path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == path {
			n++
		}
	}
	return n
}

func (f *fakeGetter) total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeGetter) Get(ctx context.Context, path string, out any) error {
	f.mu.Lock()
	f.calls = append(f.calls, path)
	gate := f.gates[path]
	body, ok := f.bodies[path]
	err := f.errs[path]
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return transport.ErrCanceled
		}
	}
	if ctx.Err() != nil {
		return transport.ErrCanceled
	}
	if err != nil {
		return err
	}
	if !ok {
		return &transport.HTTPError{Path: path, StatusCode: http.StatusNotFound}
	}
	return json.Unmarshal([]byte(body), out)
}

type memArchive struct {
	mu    sync.Mutex
	snaps map[int]AreaSnapshot
}

func (a *memArchive) SaveArea(ctx context.Context, year int, snap AreaSnapshot) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.snaps[year] = snap
	return nil
}

func (a *memArchive) LoadAreas(ctx context.Context) (map[int]AreaSnapshot, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make(map[int]AreaSnapshot, len(a.snaps))
	for y, s := range a.snaps {
		out[y] = s
	}
	return out, nil
}

func quietLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func newTestStore(t *testing.T, get Getter, opts ...Option) *Store {
	t.Helper()
	return New(get, append([]Option{WithLogger(quietLogger())}, opts...)...)
}

func square(x0, y0, x1, y1 float64) geom.MultiPolygon {
	return geom.MultiPolygon{{geom.Ring{{x0, y0}, {x1, y0}, {x1, y1}, {x0, y1}, {x0, y0}}}}
}

// testProvinces are four 1x1 degree squares: p1 p2 side by side, p3 above p1, p4 far away.
func testProvinces() []geom.Feature {
	return []geom.Feature{
		{ID: "p1", Geometry: square(0, 0, 1, 1)},
		{ID: "p2", Geometry: square(1, 0, 2, 1)},
		{ID: "p3", Geometry: square(0, 1, 1, 2)},
		{ID: "p4", Geometry: square(10, 10, 11, 11)},
	}
}

func testMetadata() *Metadata {
	return &Metadata{
		Ruler: map[string]MetadataEntry{
			"r1": {Name: "Kingdom of France", Color: "#f00", Wiki: "Kingdom_of_France"},
			"r2": {Name: "Holy Roman Empire", Color: "#0f0"},
		},
		Culture: map[string]MetadataEntry{"c1": {Name: "French", Color: "#00f"}},
		Religion: map[string]MetadataEntry{
			"catholicism": {Name: "Catholic", Color: "#ff0", Parent: "christianity"},
			"sunni":       {Name: "Sunni", Color: "#0ff"},
		},
		ReligionGeneral: map[string]MetadataEntry{
			"christianity": {Name: "Christianity", Color: "#fff", Wiki: "Christianity"},
		},
	}
}

const year1000 = `{
	"p1": ["r1", "c1", "catholicism", "cap1", 1000],
	"p2": ["r1", "c1", "catholicism", null, 500],
	"p3": ["r2", "c1", "sunni", null, 200],
	"p4": ["r2", "c2", "catholicism", null, 50]
}`

// seededStore has provinces, metadata and year 1000 current.
func seededStore(t *testing.T, opts ...Option) (*Store, *fakeGetter) {
	t.Helper()
	get := newFakeGetter()
	get.serve("/areas/1000", year1000)
	s := newTestStore(t, get, opts...)
	s.SetMetadata(testMetadata())
	s.SetProvinces(testProvinces())
	_, err := s.LoadAreaData(context.Background(), 1000)
	require.NoError(t, err)
	return s, get
}

func TestAttributesJSON(t *testing.T) {
	t.Parallel()
	var snap AreaSnapshot
	require.NoError(t, json.Unmarshal([]byte(`{"p1":["r1","c1","e1",null,1000],"p2":["r2",7,"e2","cap",null],"p3":["r3"]}`), &snap))
	want := AreaSnapshot{
		"p1": {Ruler: "r1", Culture: "c1", Religion: "e1", Population: 1000},
		"p2": {Ruler: "r2", Culture: "7", Religion: "e2", Capital: "cap"},
		"p3": {Ruler: "r3"},
	}
	if diff := cmp.Diff(want, snap); diff != "" {
		t.Fatalf("snapshot mismatch (-want +got):\n%s", diff)
	}

	b, err := json.Marshal(snap["p1"])
	require.NoError(t, err)
	assert.JSONEq(t, `["r1","c1","e1",null,1000]`, string(b))

	var bad Attributes
	assert.Error(t, json.Unmarshal([]byte(`{"ruler":"r1"}`), &bad))
}

func TestDimensionIndex(t *testing.T) {
	t.Parallel()
	assert.Equal(t, 0, Ruler.index())
	assert.Equal(t, 1, Culture.index())
	assert.Equal(t, 2, Religion.index())
	assert.Equal(t, 2, ReligionGeneral.index())
	assert.Equal(t, 4, Population.index())

	d, ok := ParseDimension("religionGeneral")
	assert.True(t, ok)
	assert.Equal(t, ReligionGeneral, d)
	_, ok = ParseDimension("climate")
	assert.False(t, ok)
}

func TestLoadAreaData(t *testing.T) {
	t.Parallel()

	t.Run("second load is a cache hit", func(t *testing.T) {
		t.Parallel()
		s, get := seededStore(t)
		first, _ := s.AreaData()
		assert.Equal(t, 1000, first)

		snap, err := s.LoadAreaData(context.Background(), 1000)
		require.NoError(t, err)
		again, err := s.LoadAreaData(context.Background(), 1000)
		require.NoError(t, err)
		assert.Equal(t, snap, again)
		assert.Equal(t, 1, get.count("/areas/1000"))
		assert.False(t, s.State().AreaLoading)
	})

	t.Run("cached years are independent", func(t *testing.T) {
		t.Parallel()
		s := newTestStore(t, newFakeGetter())
		a := AreaSnapshot{"p1": {Ruler: "r1"}}
		b := AreaSnapshot{"p1": {Ruler: "r2"}}
		s.SetAreaData(1000, a)
		s.SetAreaData(1100, b)
		s.SetAreaData(1000, AreaSnapshot{"p1": {Ruler: "r9"}})

		got, err := s.LoadAreaData(context.Background(), 1100)
		require.NoError(t, err)
		assert.Equal(t, "r2", got["p1"].Ruler)
		got, err = s.LoadAreaData(context.Background(), 1000)
		require.NoError(t, err)
		assert.Equal(t, "r9", got["p1"].Ruler)
		assert.Equal(t, []int{1000, 1100}, s.CachedYears())
	})

	t.Run("set and clear leave the current snapshot alone", func(t *testing.T) {
		t.Parallel()
		s, _ := seededStore(t)
		s.SetAreaData(1000, AreaSnapshot{})
		_, cur := s.AreaData()
		assert.Len(t, cur, 4)
		s.ClearAreaDataCache()
		assert.Empty(t, s.CachedYears())
		_, cur = s.AreaData()
		assert.Len(t, cur, 4)
	})

	t.Run("network failure is recorded", func(t *testing.T) {
		t.Parallel()
		get := newFakeGetter()
		get.fail("/areas/1200", transport.ErrNetwork)
		s := newTestStore(t, get)
		snap, err := s.LoadAreaData(context.Background(), 1200)
		assert.Nil(t, snap)
		assert.ErrorIs(t, err, transport.ErrNetwork)
		assert.ErrorIs(t, s.Err(), transport.ErrNetwork)
		assert.False(t, s.State().AreaLoading)
		assert.Empty(t, s.CachedYears())

		get.serve("/areas/1300", `{}`)
		_, err = s.LoadAreaData(context.Background(), 1300)
		require.NoError(t, err)
		assert.NoError(t, s.Err(), "a successful load clears the error")
	})

	t.Run("superseded fetch does not touch state", func(t *testing.T) {
		t.Parallel()
		get := newFakeGetter()
		gate := get.gate("/areas/1000")
		defer close(gate)
		get.serve("/areas/1000", `{"p1":["stale","c","e",null,1]}`)
		get.serve("/areas/1001", `{"p1":["fresh","c","e",null,1]}`)
		s := newTestStore(t, get)

		type result struct {
			snap AreaSnapshot
			err  error
		}
		done := make(chan result, 1)
		go func() {
			snap, err := s.LoadAreaData(context.Background(), 1000)
			done <- result{snap, err}
		}()
		require.Eventually(t, func() bool { return get.count("/areas/1000") == 1 }, time.Second, time.Millisecond)
		assert.True(t, s.State().AreaLoading)

		snap, err := s.LoadAreaData(context.Background(), 1001)
		require.NoError(t, err)
		assert.Equal(t, "fresh", snap["p1"].Ruler)

		old := <-done
		assert.Nil(t, old.snap)
		assert.True(t, transport.IsCanceled(old.err))

		year, cur := s.AreaData()
		assert.Equal(t, 1001, year)
		assert.Equal(t, "fresh", cur["p1"].Ruler)
		assert.NoError(t, s.Err())
		assert.Equal(t, []int{1001}, s.CachedYears())
		assert.False(t, s.State().AreaLoading)
	})

	t.Run("caller cancellation records nothing", func(t *testing.T) {
		t.Parallel()
		get := newFakeGetter()
		get.gate("/areas/1000")
		s := newTestStore(t, get)
		ctx, cancel := context.WithCancel(context.Background())
		go func() {
			for get.count("/areas/1000") == 0 {
				time.Sleep(time.Millisecond)
			}
			cancel()
		}()
		snap, err := s.LoadAreaData(ctx, 1000)
		assert.Nil(t, snap)
		assert.ErrorIs(t, err, transport.ErrCanceled)
		assert.NoError(t, s.Err())
		assert.False(t, s.State().AreaLoading)
		assert.Empty(t, s.CachedYears())
	})

	t.Run("archive write-through and preload", func(t *testing.T) {
		t.Parallel()
		arc := &memArchive{snaps: map[int]AreaSnapshot{}}
		s, _ := seededStore(t, WithArchive(arc))
		require.Contains(t, arc.snaps, 1000)

		fresh := newTestStore(t, newFakeGetter(), WithArchive(arc))
		n, err := fresh.PreloadArchive(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 1, n)
		snap, err := fresh.LoadAreaData(context.Background(), 1000)
		require.NoError(t, err)
		_, want := s.AreaData()
		assert.Equal(t, want, snap)
	})
}

func TestUpdateProvinceProperties(t *testing.T) {
	t.Parallel()
	s, _ := seededStore(t)

	p1, ok := s.Province("p1")
	require.True(t, ok)
	require.NotNil(t, p1.Props)
	assert.Equal(t, ProvinceProps{
		Ruler: "r1", Culture: "c1", Religion: "catholicism",
		ReligionGeneral: "christianity", Capital: "cap1", Population: 1000,
	}, *p1.Props)

	p3, _ := s.Province("p3")
	assert.Equal(t, "sunni", p3.Props.ReligionGeneral, "no parent falls back to the religion id")

	s.UpdateProvinceProperties(AreaSnapshot{"p1": {Ruler: "r2"}})
	p2, ok := s.Province("p2")
	require.True(t, ok, "absent territories stay in the geometry snapshot")
	assert.Nil(t, p2.Props)
	p1, _ = s.Province("p1")
	assert.Equal(t, "r2", p1.Props.Ruler)
}

func TestProvinceAt(t *testing.T) {
	t.Parallel()
	s, _ := seededStore(t)
	p, ok := s.ProvinceAt(1.5, 0.5)
	require.True(t, ok)
	assert.Equal(t, "p2", p.ID)
	_, ok = s.ProvinceAt(5, 5)
	assert.False(t, ok)
}

func TestMetadata(t *testing.T) {
	t.Parallel()

	t.Run("load normalizes tuples and provinces", func(t *testing.T) {
		t.Parallel()
		get := newFakeGetter()
		get.serve("/metadata", `{
			"provinces": {"type": "FeatureCollection", "features": [
				{"type": "Feature", "id": "p1", "properties": {},
				 "geometry": {"type": "Polygon", "coordinates": [[[0,0],[1,0],[1,1],[0,1],[0,0]]]}}
			]},
			"ruler": {"r1": ["France", "#f00", "Kingdom_of_France"]},
			"culture": {"c1": ["French", "#00f"]},
			"religion": {"catholicism": ["Catholic", "#ff0", "Catholic_Church", 3, "christianity"]},
			"religionGeneral": {"christianity": ["Christianity", "#fff", "Christianity"]}
		}`)
		s := newTestStore(t, get)
		md, err := s.LoadMetadata(context.Background())
		require.NoError(t, err)
		assert.Equal(t, MetadataEntry{Name: "France", Color: "#f00", Wiki: "Kingdom_of_France"}, md.Ruler["r1"])
		assert.Equal(t, "christianity", md.Religion["catholicism"].Parent)
		assert.Empty(t, md.Ruler["r1"].Parent)
		_, ok := s.Province("p1")
		assert.True(t, ok)
		assert.False(t, s.State().MetadataLoading)
	})

	t.Run("failure is recorded", func(t *testing.T) {
		t.Parallel()
		get := newFakeGetter()
		get.fail("/metadata", &transport.HTTPError{Path: "/metadata", StatusCode: 500})
		s := newTestStore(t, get)
		_, err := s.LoadMetadata(context.Background())
		var herr *transport.HTTPError
		require.ErrorAs(t, err, &herr)
		assert.ErrorAs(t, s.Err(), &herr)
		assert.Nil(t, s.Metadata())
	})

	t.Run("lookups", func(t *testing.T) {
		t.Parallel()
		s := newTestStore(t, newFakeGetter())
		assert.Equal(t, FallbackColor, s.GetEntityColor("r1", Ruler), "no metadata yet")
		assert.Equal(t, "catholicism", s.GetReligionGeneral("catholicism"))

		s.SetMetadata(testMetadata())
		assert.Equal(t, "#f00", s.GetEntityColor("r1", Ruler))
		assert.Equal(t, FallbackColor, s.GetEntityColor("", Ruler))
		assert.Equal(t, FallbackColor, s.GetEntityColor("nobody", Ruler))
		assert.Equal(t, "#fff", s.GetEntityColor("christianity", ReligionGeneral))

		wiki, ok := s.GetEntityWiki("catholicism", ReligionGeneral)
		assert.True(t, ok)
		assert.Equal(t, "Christianity", wiki)
		_, ok = s.GetEntityWiki("sunni", ReligionGeneral)
		assert.False(t, ok, "religion without parent")
		_, ok = s.GetEntityWiki("christianity", ReligionGeneral)
		assert.False(t, ok, "religionGeneral wiki takes a religion id")
		wiki, ok = s.GetEntityWiki("r1", Ruler)
		assert.True(t, ok)
		assert.Equal(t, "Kingdom_of_France", wiki)

		assert.Equal(t, "christianity", s.GetReligionGeneral("catholicism"))
		assert.Equal(t, "christianity", s.GetReligionGeneral("christianity"))
		assert.Equal(t, "animism", s.GetReligionGeneral("animism"))
	})
}

func TestSetActiveColor(t *testing.T) {
	t.Parallel()
	s, _ := seededStore(t)

	require.NoError(t, s.SetActiveColor(Culture))
	require.NoError(t, s.SetActiveColor(Religion))
	st := s.State()
	assert.Equal(t, Religion, st.ActiveColor)
	assert.Equal(t, Culture, st.PreviousActiveColor)
	visible := 0
	for d, on := range st.Layers {
		if on {
			visible++
			assert.Equal(t, Religion, d)
		}
	}
	assert.Equal(t, 1, visible)

	assert.ErrorIs(t, s.SetActiveColor("climate"), ErrInvalidDimension)
	assert.Equal(t, Religion, s.ActiveColor())

	require.NotNil(t, s.SelectEntity("r1", Ruler))
	require.NoError(t, s.SetActiveColor(Population))
	st = s.State()
	assert.Nil(t, st.Outline)
	assert.Nil(t, st.Selection)
	assert.Empty(t, st.Labels)
}

func TestMarkers(t *testing.T) {
	t.Parallel()

	t.Run("limit zero skips the network", func(t *testing.T) {
		t.Parallel()
		get := newFakeGetter()
		s := newTestStore(t, get)
		s.SetMarkerLimit(0)
		markers, err := s.LoadMarkers(context.Background(), 1000)
		require.NoError(t, err)
		assert.Equal(t, []Marker{}, markers)
		assert.Zero(t, get.total())
	})

	t.Run("negative limit clamps to zero", func(t *testing.T) {
		t.Parallel()
		s := newTestStore(t, newFakeGetter())
		s.SetMarkerLimit(-5)
		assert.Zero(t, s.MarkerLimit())
	})

	t.Run("load and filter", func(t *testing.T) {
		t.Parallel()
		get := newFakeGetter()
		get.serve("/markers?year=1000&limit=3", `[
			{"_id": "Hastings", "name": "Battle of Hastings", "type": "battle", "year": 1066, "coo": [0.48, 50.91]},
			{"_id": "Paris", "name": "Paris", "type": "city", "year": 1000, "coo": [2.35, 48.85]},
			{"_id": "Polo", "name": "Marco Polo", "type": "explorer", "year": 1254, "coo": [12.3, 45.4], "coo2": [116.4, 39.9], "end": 1324}
		]`)
		s := newTestStore(t, get, WithMarkerLimit(3))
		markers, err := s.LoadMarkers(context.Background(), 1000)
		require.NoError(t, err)
		require.Len(t, markers, 3)
		require.NotNil(t, markers[2].EndYear)
		assert.Equal(t, 1324, *markers[2].EndYear)
		assert.Equal(t, [2]float64{116.4, 39.9}, *markers[2].Coordinates2)

		s.SetMarkerFilter("conflict", false)
		names := func() []string {
			var out []string
			for _, m := range s.FilteredMarkers() {
				out = append(out, m.Name)
			}
			return out
		}
		assert.Equal(t, []string{"Paris", "Marco Polo"}, names())

		s.SetMarkerFilter("battle", true)
		assert.Len(t, s.FilteredMarkers(), 3, "specific type wins over its group")

		s.SetMarkerFilter("explorer", false)
		assert.Equal(t, []string{"Battle of Hastings", "Paris"}, names())
		assert.True(t, s.MarkerVisible("unknown-type"))
	})

	t.Run("failure clears loading and is recorded", func(t *testing.T) {
		t.Parallel()
		get := newFakeGetter()
		get.fail("/markers?year=1&limit=2000", transport.ErrNetwork)
		s := newTestStore(t, get)
		_, err := s.LoadMarkers(context.Background(), 1)
		assert.ErrorIs(t, err, transport.ErrNetwork)
		assert.ErrorIs(t, s.Err(), transport.ErrNetwork)
		assert.False(t, s.State().MarkersLoading)
	})

	t.Run("newer load cancels the older one", func(t *testing.T) {
		t.Parallel()
		get := newFakeGetter()
		gate := get.gate("/markers?year=1&limit=2000")
		defer close(gate)
		get.serve("/markers?year=2&limit=2000", `[{"_id":"a","name":"A","type":"city","year":2,"coo":[0,0]}]`)
		s := newTestStore(t, get)

		errc := make(chan error, 1)
		go func() {
			_, err := s.LoadMarkers(context.Background(), 1)
			errc <- err
		}()
		require.Eventually(t, func() bool { return get.count("/markers?year=1&limit=2000") == 1 }, time.Second, time.Millisecond)
		_, err := s.LoadMarkers(context.Background(), 2)
		require.NoError(t, err)
		assert.True(t, transport.IsCanceled(<-errc))
		require.Len(t, s.Markers(), 1)
		assert.Equal(t, "A", s.Markers()[0].Name)
	})
}
