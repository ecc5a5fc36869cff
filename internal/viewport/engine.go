// Package viewport maps between screen space and the shared canvas plane.
//
// The transform is screen = canvas*scale + pan. Pan is kept inside bounds
// so the visible area never shows space outside the plane; when the scaled
// plane is smaller than the visible area on an axis, that axis is centered.
package viewport

import (
	"math"

	"github.com/vovakirdan/canvaschat/internal/core"
)

// WheelZoomFactor converts wheel delta units into a scale change.
const WheelZoomFactor = 0.001

// Size is a width/height pair in pixels (visible area) or canvas units (plane).
type Size struct {
	Width  float64
	Height float64
}

// Engine holds the pan/zoom state for one visible area over one plane.
// It is not safe for concurrent use; drive it from the input goroutine.
type Engine struct {
	plane   Size
	visible Size

	x, y  float64
	scale float64

	dragging    bool
	dragOriginX float64
	dragOriginY float64
	onChange    func(core.Viewport)
}

// Option configures an Engine.
type Option func(*Engine)

// WithObserver registers fn to receive the viewport after every change.
func WithObserver(fn func(core.Viewport)) Option {
	return func(e *Engine) { e.onChange = fn }
}

// NewEngine builds an engine and centers the plane at scale 1.
func NewEngine(plane, visible Size, opts ...Option) *Engine {
	e := &Engine{plane: plane, visible: visible, scale: 1}
	for _, opt := range opts {
		opt(e)
	}
	e.Recenter()
	return e
}

// Viewport returns the current transform.
func (e *Engine) Viewport() core.Viewport {
	return core.Viewport{X: e.x, Y: e.y, Scale: e.scale}
}

// SetViewport adopts an externally supplied transform, clamped.
func (e *Engine) SetViewport(v core.Viewport) {
	e.scale = clampScale(v.Scale, e.scale)
	if finite(v.X, v.Y) {
		e.x, e.y = v.X, v.Y
	}
	e.commit()
}

// Plane returns the plane size.
func (e *Engine) Plane() Size { return e.plane }

// Visible returns the visible area size.
func (e *Engine) Visible() Size { return e.visible }

// Resize changes the visible area and re-applies bounds.
func (e *Engine) Resize(visible Size) {
	e.visible = visible
	e.commit()
}

// Recenter resets scale to 1 and centers the whole plane.
func (e *Engine) Recenter() {
	e.scale = 1
	e.x = (e.visible.Width - e.plane.Width) / 2
	e.y = (e.visible.Height - e.plane.Height) / 2
	e.commit()
}

// BeginDrag records the pan offset a drag starts from.
func (e *Engine) BeginDrag() {
	e.dragging = true
	e.dragOriginX, e.dragOriginY = e.x, e.y
}

// EndDrag forgets the drag origin.
func (e *Engine) EndDrag() {
	e.dragging = false
}

// Pan sets the offset to the drag origin plus the cumulative displacement
// (dx, dy) of the current drag. Without an active drag the current offset
// is the origin. Non-finite displacements are ignored.
func (e *Engine) Pan(dx, dy float64) {
	if !finite(dx, dy) {
		return
	}
	if !e.dragging {
		e.BeginDrag()
		defer e.EndDrag()
	}
	e.x = e.dragOriginX + dx
	e.y = e.dragOriginY + dy
	e.commit()
}

// Zoom changes the scale while keeping the canvas point under
// (originX, originY) fixed on screen, then applies bounds.
func (e *Engine) Zoom(originX, originY, newScale float64) {
	if !finite(originX, originY, newScale) {
		return
	}
	newScale = clampScale(newScale, e.scale)
	cx, cy := e.ScreenToCanvas(originX, originY)
	e.x = originX - cx*newScale
	e.y = originY - cy*newScale
	e.scale = newScale
	e.commit()
}

// ZoomBy applies a wheel delta around the cursor position.
func (e *Engine) ZoomBy(originX, originY, wheelDeltaY float64) {
	e.Zoom(originX, originY, e.scale-wheelDeltaY*WheelZoomFactor)
}

// Jump centers the given canvas point at the current scale.
func (e *Engine) Jump(canvasX, canvasY float64) {
	if !finite(canvasX, canvasY) {
		return
	}
	e.x = e.visible.Width/2 - canvasX*e.scale
	e.y = e.visible.Height/2 - canvasY*e.scale
	e.commit()
}

// ScreenToCanvas converts a point relative to the visible area into canvas units.
func (e *Engine) ScreenToCanvas(screenX, screenY float64) (float64, float64) {
	return (screenX - e.x) / e.scale, (screenY - e.y) / e.scale
}

// CanvasToScreen is the inverse of ScreenToCanvas.
func (e *Engine) CanvasToScreen(canvasX, canvasY float64) (float64, float64) {
	return canvasX*e.scale + e.x, canvasY*e.scale + e.y
}

// Placement translates a click into canvas coordinates. ok is false when
// the point falls outside the plane.
func (e *Engine) Placement(screenX, screenY float64) (x, y float64, ok bool) {
	x, y = e.ScreenToCanvas(screenX, screenY)
	if !e.Contains(x, y) {
		return 0, 0, false
	}
	return x, y, true
}

// Contains reports whether a canvas point lies in [0,width]x[0,height].
// NaN and infinite coordinates are never inside.
func (e *Engine) Contains(x, y float64) bool {
	return x >= 0 && x <= e.plane.Width && y >= 0 && y <= e.plane.Height
}

// Bounds returns the allowed pan range on each axis. min equals max on an
// axis where the scaled plane fits inside the visible area.
func (e *Engine) Bounds() (minX, maxX, minY, maxY float64) {
	minX, maxX = axisBounds(e.visible.Width, e.plane.Width*e.scale)
	minY, maxY = axisBounds(e.visible.Height, e.plane.Height*e.scale)
	return minX, maxX, minY, maxY
}

func (e *Engine) commit() {
	minX, maxX, minY, maxY := e.Bounds()
	if math.IsNaN(e.x) {
		e.x = (minX + maxX) / 2
	}
	if math.IsNaN(e.y) {
		e.y = (minY + maxY) / 2
	}
	e.x = math.Max(minX, math.Min(maxX, e.x))
	e.y = math.Max(minY, math.Min(maxY, e.y))
	if e.onChange != nil {
		e.onChange(e.Viewport())
	}
}

func axisBounds(visible, scaledPlane float64) (float64, float64) {
	if scaledPlane <= visible {
		center := (visible - scaledPlane) / 2
		return center, center
	}
	return visible - scaledPlane, 0
}

// clampScale bounds s to the allowed range; a non-finite s keeps current.
func clampScale(s, current float64) float64 {
	if !finite(s) {
		return current
	}
	return math.Max(core.MinScale, math.Min(core.MaxScale, s))
}

func finite(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
