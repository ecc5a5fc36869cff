package cli

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vovakirdan/canvaschat/internal/app"
	"github.com/vovakirdan/canvaschat/internal/config"
	"github.com/vovakirdan/canvaschat/internal/store/sqlite"
)

func newTestRepl(t *testing.T) (*repl, *bytes.Buffer) {
	t.Helper()

	profile, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = profile.Close() })

	cfg := config.Default()
	cfg.ServerURL = "ws://127.0.0.1:1/api/chat"
	cfg.ViewWidth, cfg.ViewHeight = 800, 600
	cfg.DialTimeout = time.Second

	s, err := app.NewSession(context.Background(), cfg, profile, nil)
	require.NoError(t, err)
	t.Cleanup(s.Close)

	var out bytes.Buffer
	return &repl{session: s, out: &out}, &out
}

func TestReplPlacement(t *testing.T) {
	r, out := newTestRepl(t)
	ctx := context.Background()

	_, err := r.exec(ctx, "say hi")
	require.NoError(t, err)
	_, err = r.exec(ctx, "click 0 0 corner")
	require.NoError(t, err)
	assert.Contains(t, out.String(), "at (2100, 2200)")

	msgs := r.session.State().Messages()
	require.Len(t, msgs, 2)

	var centered bool
	for _, m := range msgs {
		if m.Content == "hi" {
			centered = m.X == 2500 && m.Y == 2500
		}
	}
	assert.True(t, centered, "say places at the view center")

	_, err = r.exec(ctx, "put 1 2")
	assert.ErrorIs(t, err, errUsage)
	_, err = r.exec(ctx, "put x 2 text")
	assert.ErrorIs(t, err, errUsage)
	_, err = r.exec(ctx, "put -5 2 text")
	assert.ErrorIs(t, err, app.ErrOutOfBounds)
	_, err = r.exec(ctx, "put NaN 5 text")
	assert.ErrorIs(t, err, app.ErrOutOfBounds)
	assert.Len(t, r.session.State().Messages(), 2)
}

func TestReplEdit(t *testing.T) {
	r, out := newTestRepl(t)
	ctx := context.Background()

	_, err := r.exec(ctx, "put 100 100 draft")
	require.NoError(t, err)
	id := r.session.State().Messages()[0].ID
	assert.Contains(t, out.String(), id)

	_, err = r.exec(ctx, "edit "+id+" final text")
	require.NoError(t, err)
	m, ok := r.session.State().Message(id)
	require.True(t, ok)
	assert.Equal(t, "final text", m.Content)

	_, err = r.exec(ctx, "edit nope x")
	assert.ErrorIs(t, err, app.ErrUnknownMessage)
}

func TestReplNavigation(t *testing.T) {
	r, _ := newTestRepl(t)
	ctx := context.Background()
	state := r.session.State()

	_, err := r.exec(ctx, "drag 100 100 160 140")
	require.NoError(t, err)
	assert.Equal(t, -2040.0, state.Viewport().X)
	assert.Equal(t, -2160.0, state.Viewport().Y)

	_, err = r.exec(ctx, "zoom 2")
	require.NoError(t, err)
	assert.Equal(t, 2.0, state.Viewport().Scale)

	_, err = r.exec(ctx, "zoom 10")
	require.NoError(t, err)
	assert.Equal(t, 3.0, state.Viewport().Scale)

	_, err = r.exec(ctx, "jump 2500 2500")
	require.NoError(t, err)
	v := state.Viewport()
	assert.Equal(t, 400-2500*3.0, v.X)
	assert.Equal(t, 300-2500*3.0, v.Y)

	before := state.Viewport()
	_, err = r.exec(ctx, "jump NaN NaN")
	require.NoError(t, err)
	assert.Equal(t, before, state.Viewport())

	_, err = r.exec(ctx, "center")
	require.NoError(t, err)
	assert.Equal(t, 1.0, state.Viewport().Scale)
	assert.Equal(t, -2100.0, state.Viewport().X)

	_, err = r.exec(ctx, "wheel 400 300 500")
	require.NoError(t, err)
	assert.InDelta(t, 0.5, state.Viewport().Scale, 1e-9)
}

func TestReplIdentity(t *testing.T) {
	r, _ := newTestRepl(t)
	ctx := context.Background()

	_, err := r.exec(ctx, "name Bob")
	require.NoError(t, err)
	assert.Equal(t, "Bob", r.session.Identity().Username)

	_, err = r.exec(ctx, "color red")
	assert.ErrorIs(t, err, app.ErrInvalidColor)
	_, err = r.exec(ctx, "color #ec4899")
	require.NoError(t, err)

	u, ok := r.session.State().User(r.session.Identity().UserID)
	require.True(t, ok)
	assert.Equal(t, "#ec4899", u.Color)
}

func TestReplQuit(t *testing.T) {
	r, out := newTestRepl(t)

	quit, err := r.exec(context.Background(), "help")
	require.NoError(t, err)
	assert.False(t, quit)
	assert.Contains(t, out.String(), "commands:")

	quit, err = r.exec(context.Background(), "quit")
	require.NoError(t, err)
	assert.True(t, quit)
}

func TestParseArgs(t *testing.T) {
	nums, rest, err := parseArgs("1.5  -2 hello  world", 2)
	require.NoError(t, err)
	assert.Equal(t, []float64{1.5, -2}, nums)
	assert.Equal(t, "hello  world", rest)

	_, _, err = parseArgs("1", 2)
	assert.Error(t, err)
}
