package viewport

import (
	"math"
	"time"
)

const (
	// ClickSlop is the largest pointer movement, per axis, that still counts as a click.
	ClickSlop = 3.0
	// DragCooldown suppresses trailing clicks right after a drag ends.
	DragCooldown = 100 * time.Millisecond
)

// Gesture tells clicks apart from drags for one pointer.
type Gesture struct {
	down           bool
	startX, startY float64
	maxDX, maxDY   float64
	dragging       bool
	suppressUntil  time.Time
}

// PointerDown starts tracking a gesture at (x, y).
func (g *Gesture) PointerDown(x, y float64) {
	g.down = true
	g.startX, g.startY = x, y
	g.maxDX, g.maxDY = 0, 0
	g.dragging = false
}

// PointerMove records movement and returns the displacement from the
// gesture start, plus whether the gesture has become a drag.
func (g *Gesture) PointerMove(x, y float64) (dx, dy float64, dragging bool) {
	if !g.down {
		return 0, 0, false
	}
	g.track(x, y)
	return x - g.startX, y - g.startY, g.dragging
}

// PointerUp ends the gesture and reports whether it was a click.
func (g *Gesture) PointerUp(x, y float64, now time.Time) bool {
	if !g.down {
		return false
	}
	g.down = false
	g.track(x, y)

	if g.dragging {
		g.dragging = false
		g.suppressUntil = now.Add(DragCooldown)
		return false
	}
	if now.Before(g.suppressUntil) {
		return false
	}
	return g.maxDX <= ClickSlop && g.maxDY <= ClickSlop
}

// Dragging reports whether the current gesture has moved past the click slop.
func (g *Gesture) Dragging() bool {
	return g.dragging
}

func (g *Gesture) track(x, y float64) {
	g.maxDX = math.Max(g.maxDX, math.Abs(x-g.startX))
	g.maxDY = math.Max(g.maxDY, math.Abs(y-g.startY))
	if g.maxDX > ClickSlop || g.maxDY > ClickSlop {
		g.dragging = true
	}
}
