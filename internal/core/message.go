package core

// Message is an ephemeral text dropped on the canvas.
// X, Y and Color are fixed at creation; Content changes in place.
type Message struct {
	ID       string
	AuthorID string
	Content  string
	X        float64
	Y        float64
	Color    string
	FadeOut  bool
}

// User is a participant as seen by this client.
type User struct {
	ID       string
	Username string
	Color    string
}

// Viewport is the pan offset and zoom factor applied to the plane.
type Viewport struct {
	X     float64
	Y     float64
	Scale float64
}

// Scale bounds shared by the state and the coordinate engine.
const (
	MinScale = 0.5
	MaxScale = 3.0
)
