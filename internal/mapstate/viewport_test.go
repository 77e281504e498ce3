package mapstate

import (
	"math"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func assertViewportValid(t *testing.T, v Viewport) {
	t.Helper()
	for _, f := range []float64{v.Latitude, v.Longitude, v.Zoom, v.MinZoom, v.Bearing, v.Pitch, v.Width, v.Height} {
		require.True(t, finite(f), "non-finite field in %+v", v)
	}
	assert.GreaterOrEqual(t, v.Latitude, -90.0)
	assert.LessOrEqual(t, v.Latitude, 90.0)
	assert.GreaterOrEqual(t, v.Longitude, -180.0)
	assert.LessOrEqual(t, v.Longitude, 180.0)
	assert.GreaterOrEqual(t, v.Zoom, v.MinZoom)
	assert.LessOrEqual(t, v.Zoom, MaxZoom)
	assert.GreaterOrEqual(t, v.Bearing, 0.0)
	assert.Less(t, v.Bearing, 360.0)
	assert.GreaterOrEqual(t, v.Pitch, 0.0)
	assert.LessOrEqual(t, v.Pitch, MaxPitch)
	assert.GreaterOrEqual(t, v.Width, 0.0)
	assert.GreaterOrEqual(t, v.Height, 0.0)
}

func TestSetViewport(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		patch ViewportPatch
		check func(t *testing.T, v Viewport)
	}{
		{"latitude clamps", ViewportPatch{Latitude: Float(123)}, func(t *testing.T, v Viewport) {
			assert.Equal(t, 90.0, v.Latitude)
		}},
		{"NaN latitude falls back to default", ViewportPatch{Latitude: Float(math.NaN())}, func(t *testing.T, v Viewport) {
			assert.Equal(t, DefaultViewport().Latitude, v.Latitude)
		}},
		{"longitude wraps", ViewportPatch{Longitude: Float(190)}, func(t *testing.T, v Viewport) {
			assert.InDelta(t, -170.0, v.Longitude, 1e-9)
		}},
		{"negative longitude wraps", ViewportPatch{Longitude: Float(-540)}, func(t *testing.T, v Viewport) {
			assert.InDelta(t, -180.0, v.Longitude, 1e-9)
		}},
		{"zoom clamps to max", ViewportPatch{Zoom: Float(40)}, func(t *testing.T, v Viewport) {
			assert.Equal(t, MaxZoom, v.Zoom)
		}},
		{"infinite zoom falls back to default", ViewportPatch{Zoom: Float(math.Inf(1))}, func(t *testing.T, v Viewport) {
			assert.Equal(t, DefaultViewport().Zoom, v.Zoom)
		}},
		{"raising minZoom lifts zoom", ViewportPatch{MinZoom: Float(5)}, func(t *testing.T, v Viewport) {
			assert.Equal(t, 5.0, v.MinZoom)
			assert.Equal(t, 5.0, v.Zoom)
		}},
		{"bearing wraps", ViewportPatch{Bearing: Float(-90)}, func(t *testing.T, v Viewport) {
			assert.Equal(t, 270.0, v.Bearing)
		}},
		{"bearing 360 is 0", ViewportPatch{Bearing: Float(360)}, func(t *testing.T, v Viewport) {
			assert.Equal(t, 0.0, v.Bearing)
		}},
		{"pitch clamps", ViewportPatch{Pitch: Float(90)}, func(t *testing.T, v Viewport) {
			assert.Equal(t, MaxPitch, v.Pitch)
		}},
		{"negative size clamps", ViewportPatch{Width: Float(-1), Height: Float(math.NaN())}, func(t *testing.T, v Viewport) {
			assert.Zero(t, v.Width)
			assert.Zero(t, v.Height)
		}},
		{"partial patch keeps other fields", ViewportPatch{Width: Float(800)}, func(t *testing.T, v Viewport) {
			assert.Equal(t, 800.0, v.Width)
			assert.Equal(t, DefaultViewport().Latitude, v.Latitude)
			assert.Equal(t, DefaultViewport().Zoom, v.Zoom)
		}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			s := newTestStore(t, newFakeGetter())
			v := s.SetViewport(tc.patch)
			assertViewportValid(t, v)
			tc.check(t, v)
			assert.Equal(t, v, s.Viewport())
		})
	}
}

func TestViewportInvariantsHoldForArbitraryInput(t *testing.T) {
	t.Parallel()
	rng := rand.New(rand.NewPCG(1, 2))
	specials := []float64{math.NaN(), math.Inf(1), math.Inf(-1), 0, -0.0, 1e308, -1e308, 360, -360, 180, -180}
	pick := func() *float64 {
		switch rng.IntN(4) {
		case 0:
			return nil
		case 1:
			return Float(specials[rng.IntN(len(specials))])
		default:
			return Float((rng.Float64() - 0.5) * 2000)
		}
	}
	s := newTestStore(t, newFakeGetter())
	for i := 0; i < 2000; i++ {
		v := s.SetViewport(ViewportPatch{
			Latitude: pick(), Longitude: pick(), Zoom: pick(), MinZoom: pick(),
			Bearing: pick(), Pitch: pick(), Width: pick(), Height: pick(),
		})
		assertViewportValid(t, v)
		if t.Failed() {
			t.Fatalf("iteration %d produced %+v", i, v)
		}
	}
}

func TestFlyTo(t *testing.T) {
	t.Parallel()
	s := newTestStore(t, newFakeGetter())

	assert.False(t, s.FlyTo(FlyToOptions{Latitude: math.NaN(), Longitude: 10}))
	_, pending := s.PendingFlyTo()
	assert.False(t, pending)

	require.True(t, s.FlyTo(FlyToOptions{Latitude: 120, Longitude: 200, Zoom: Float(30)}))
	ft, pending := s.PendingFlyTo()
	require.True(t, pending)
	assert.Equal(t, DefaultFlyDuration, ft.Duration)
	assert.Equal(t, 90.0, ft.Target.Latitude)
	assert.InDelta(t, -160.0, ft.Target.Longitude, 1e-9)
	assert.Equal(t, MaxZoom, ft.Target.Zoom)
	assertViewportValid(t, ft.Target)
	assert.Equal(t, DefaultViewport(), s.Viewport(), "flyTo records intent only")

	s.ClearFlyTo()
	assert.Nil(t, s.State().FlyTo)

	require.True(t, s.FlyTo(FlyToOptions{Latitude: 1, Longitude: 2, Duration: 300 * time.Millisecond}))
	ft, _ = s.PendingFlyTo()
	assert.Equal(t, 300*time.Millisecond, ft.Duration)
	assert.Equal(t, DefaultViewport().Zoom, ft.Target.Zoom)
}
