package viewport

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vovakirdan/canvaschat/internal/core"
)

const tolerance = 1e-9

var (
	plane5k = Size{Width: 5000, Height: 5000}
	screen  = Size{Width: 800, Height: 600}
)

func TestNewEngineCentersPlane(t *testing.T) {
	e := NewEngine(plane5k, screen)

	assert.Equal(t, core.Viewport{X: -2100, Y: -2200, Scale: 1}, e.Viewport())

	cx, cy := e.ScreenToCanvas(400, 300)
	assert.InDelta(t, 2500, cx, tolerance)
	assert.InDelta(t, 2500, cy, tolerance)
}

func TestPanIsClampedToPlane(t *testing.T) {
	e := NewEngine(plane5k, screen)

	e.Pan(1e6, 1e6)
	v := e.Viewport()
	assert.Equal(t, 0.0, v.X)
	assert.Equal(t, 0.0, v.Y)

	e.Pan(-1e6, -1e6)
	v = e.Viewport()
	assert.Equal(t, -4200.0, v.X)
	assert.Equal(t, -4400.0, v.Y)
}

func TestPanIsRelativeToDragOrigin(t *testing.T) {
	e := NewEngine(plane5k, screen)

	e.BeginDrag()
	e.Pan(10, 10)
	e.Pan(30, -20)
	e.EndDrag()

	v := e.Viewport()
	assert.Equal(t, -2070.0, v.X)
	assert.Equal(t, -2220.0, v.Y)
}

func TestSmallPlaneIsCentered(t *testing.T) {
	e := NewEngine(Size{Width: 400, Height: 300}, screen)

	e.Pan(-500, 500)
	v := e.Viewport()
	assert.Equal(t, 200.0, v.X)
	assert.Equal(t, 150.0, v.Y)

	minX, maxX, minY, maxY := e.Bounds()
	assert.Equal(t, minX, maxX)
	assert.Equal(t, minY, maxY)

	// At 3x the plane is wider than the screen, so x becomes pannable.
	e.Zoom(400, 300, 3)
	minX, maxX, _, _ = e.Bounds()
	assert.Equal(t, -400.0, minX)
	assert.Equal(t, 0.0, maxX)
}

func TestZoomClampsScale(t *testing.T) {
	e := NewEngine(plane5k, screen)

	e.Zoom(400, 300, 10)
	assert.Equal(t, core.MaxScale, e.Viewport().Scale)

	e.Zoom(400, 300, 0.01)
	assert.Equal(t, core.MinScale, e.Viewport().Scale)
}

func TestZoomKeepsOriginFixed(t *testing.T) {
	cases := []struct {
		name             string
		originX, originY float64
		scale            float64
	}{
		{"center in", 400, 300, 1.5},
		{"center out", 400, 300, 0.5},
		{"corner in", 100, 100, 2},
		{"max", 250, 450, 3},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e := NewEngine(plane5k, screen)
			bx, by := e.ScreenToCanvas(tc.originX, tc.originY)

			e.Zoom(tc.originX, tc.originY, tc.scale)

			ax, ay := e.ScreenToCanvas(tc.originX, tc.originY)
			assert.InDelta(t, bx, ax, 1e-6)
			assert.InDelta(t, by, ay, 1e-6)
			assert.Equal(t, tc.scale, e.Viewport().Scale)
		})
	}
}

func TestZoomByWheel(t *testing.T) {
	e := NewEngine(plane5k, screen)

	e.ZoomBy(400, 300, -500)
	assert.InDelta(t, 1.5, e.Viewport().Scale, tolerance)

	e.ZoomBy(400, 300, 100000)
	assert.Equal(t, core.MinScale, e.Viewport().Scale)
}

func TestRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	e := NewEngine(plane5k, screen)

	for _i := 0; _i < 200; _i++ {
		e.SetViewport(core.Viewport{
			X:     -rng.Float64() * 4000,
			Y:     -rng.Float64() * 4000,
			Scale: 0.5 + rng.Float64()*2.5,
		})
		px, py := rng.Float64()*5000, rng.Float64()*5000

		sx, sy := e.CanvasToScreen(px, py)
		cx, cy := e.ScreenToCanvas(sx, sy)
		require.InDelta(t, px, cx, 1e-6)
		require.InDelta(t, py, cy, 1e-6)
	}
}

func TestVisibleWindowNeverLeavesPlane(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	e := NewEngine(plane5k, screen)

	for _i := 0; _i < 500; _i++ {
		switch rng.Intn(3) {
		case 0:
			e.Pan(rng.Float64()*10000-5000, rng.Float64()*10000-5000)
		case 1:
			e.Zoom(rng.Float64()*800, rng.Float64()*600, rng.Float64()*4)
		case 2:
			e.Jump(rng.Float64()*6000-500, rng.Float64()*6000-500)
		}
		assertInsidePlane(t, e)
	}
}

func assertInsidePlane(t *testing.T, e *Engine) {
	t.Helper()

	v := e.Viewport()
	check := func(pan, visible, plane float64) {
		scaled := plane * v.Scale
		if scaled >= visible {
			require.LessOrEqual(t, pan, tolerance)
			require.GreaterOrEqual(t, pan+scaled, visible-tolerance)
		} else {
			require.InDelta(t, (visible-scaled)/2, pan, tolerance)
		}
	}
	check(v.X, e.Visible().Width, e.Plane().Width)
	check(v.Y, e.Visible().Height, e.Plane().Height)
}

func TestJumpCentersPoint(t *testing.T) {
	e := NewEngine(plane5k, screen)

	e.Jump(1000, 1200)
	cx, cy := e.ScreenToCanvas(400, 300)
	assert.InDelta(t, 1000, cx, tolerance)
	assert.InDelta(t, 1200, cy, tolerance)

	// Jumping to a corner clamps instead of exposing off-plane space.
	e.Jump(0, 0)
	assert.Equal(t, core.Viewport{X: 0, Y: 0, Scale: 1}, e.Viewport())
}

func TestRecenterResetsScale(t *testing.T) {
	e := NewEngine(plane5k, screen)
	e.Zoom(100, 100, 2.5)

	e.Recenter()
	assert.Equal(t, core.Viewport{X: -2100, Y: -2200, Scale: 1}, e.Viewport())
}

func TestPlacement(t *testing.T) {
	e := NewEngine(plane5k, screen)

	x, y, ok := e.Placement(10, 20)
	require.True(t, ok)
	assert.InDelta(t, 2110, x, tolerance)
	assert.InDelta(t, 2220, y, tolerance)

	small := NewEngine(Size{Width: 400, Height: 300}, screen)
	_, _, ok = small.Placement(100, 100)
	assert.False(t, ok, "click left of a centered small plane is outside")

	_, _, ok = small.Placement(200, 150)
	assert.True(t, ok, "plane origin is inside")

	_, _, ok = small.Placement(601, 300)
	assert.False(t, ok)

	for _, p := range [][2]float64{
		{math.NaN(), 10},
		{10, math.NaN()},
		{math.Inf(1), 10},
		{10, math.Inf(-1)},
	} {
		_, _, ok = e.Placement(p[0], p[1])
		assert.False(t, ok, "non-finite point %v is outside", p)
		assert.False(t, e.Contains(p[0], p[1]))
	}
	assert.True(t, e.Contains(0, 5000), "plane edges are inside")
}

func TestNonFiniteInputKeepsViewport(t *testing.T) {
	nan, inf := math.NaN(), math.Inf(1)

	e := NewEngine(plane5k, screen)
	e.Zoom(400, 300, 2)
	e.Jump(2000, 2000)
	before := e.Viewport()

	e.Jump(nan, nan)
	e.Jump(inf, 10)
	e.Pan(nan, 10)
	e.Pan(10, inf)
	e.Zoom(nan, 300, 1.5)
	e.Zoom(400, 300, nan)
	e.ZoomBy(400, 300, nan)
	e.ZoomBy(400, 300, inf)
	assert.Equal(t, before, e.Viewport())

	e.SetViewport(core.Viewport{X: nan, Y: nan, Scale: nan})
	v := e.Viewport()
	assert.False(t, math.IsNaN(v.X) || math.IsNaN(v.Y) || math.IsNaN(v.Scale))
	assert.Equal(t, 2.0, v.Scale)
	minX, maxX, minY, maxY := e.Bounds()
	assert.True(t, v.X >= minX && v.X <= maxX)
	assert.True(t, v.Y >= minY && v.Y <= maxY)

	e.Pan(10, 10)
	x, y := e.ScreenToCanvas(400, 300)
	assert.False(t, math.IsNaN(x) || math.IsNaN(y))
}

func TestResizeReclamps(t *testing.T) {
	e := NewEngine(plane5k, screen)
	e.Pan(-1e6, -1e6)

	e.Resize(Size{Width: 1600, Height: 1200})
	v := e.Viewport()
	assert.Equal(t, -3400.0, v.X)
	assert.Equal(t, -3800.0, v.Y)
}

func TestObserverReceivesChanges(t *testing.T) {
	var seen []core.Viewport
	e := NewEngine(plane5k, screen, WithObserver(func(v core.Viewport) {
		seen = append(seen, v)
	}))

	require.NotEmpty(t, seen, "centering at construction is reported")
	e.Zoom(400, 300, 2)
	assert.Equal(t, e.Viewport(), seen[len(seen)-1])
}
