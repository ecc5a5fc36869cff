package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/canvaschat/internal/auth"
	"github.com/vovakirdan/canvaschat/internal/config"
	"github.com/vovakirdan/canvaschat/internal/core"
	"github.com/vovakirdan/canvaschat/internal/identity"
	"github.com/vovakirdan/canvaschat/internal/proto"
	"github.com/vovakirdan/canvaschat/internal/store"
	"github.com/vovakirdan/canvaschat/internal/transport/ws"
	"github.com/vovakirdan/canvaschat/internal/utils"
	"github.com/vovakirdan/canvaschat/internal/viewport"
)

var (
	// ErrInvalidColor is returned when a color is not one of the palette entries.
	ErrInvalidColor = errors.New("color is not in the palette")
	// ErrUnknownMessage is returned when editing a message the state does not hold.
	ErrUnknownMessage = errors.New("unknown message")
	// ErrOutOfBounds is returned for a placement outside the plane, including
	// NaN or infinite coordinates.
	ErrOutOfBounds = errors.New("point is outside the plane")
)

// Identity is who this session speaks as.
type Identity struct {
	UserID   string
	Username string
	Color    string
}

// Session wires the collaborative state, the coordinate engine and the room
// channel for one participant in one room.
type Session struct {
	cfg      config.Config
	log      *zerolog.Logger
	profile  store.Store
	provider auth.Provider
	clock    clock.Clock

	state   *core.State
	engine  *viewport.Engine
	gesture viewport.Gesture

	mu       sync.Mutex
	identity Identity
	token    string
	adapter  *ws.Adapter
	restart  chan struct{}
}

// Option configures a Session.
type Option func(*Session)

// WithProvider sets the credential provider. Without one the session is anonymous.
func WithProvider(p auth.Provider) Option {
	return func(s *Session) { s.provider = p }
}

// WithClock replaces the clock used for TTL timers and frame timestamps.
func WithClock(c clock.Clock) Option {
	return func(s *Session) { s.clock = c }
}

// NewSession loads the local profile and prepares state for cfg.Room.
// It does not connect; call Run for that.
func NewSession(ctx context.Context, cfg config.Config, profile store.Store, logger *zerolog.Logger, opts ...Option) (*Session, error) {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	s := &Session{
		cfg:     cfg,
		log:     logger,
		profile: profile,
		clock:   clock.New(),
		restart: make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := s.loadIdentity(ctx); err != nil {
		return nil, err
	}

	s.state = core.NewState(
		core.WithClock(s.clock),
		core.WithTTL(cfg.MessageTTL),
		core.WithFadeGrace(cfg.FadeGrace),
		core.WithLogger(logger),
	)
	s.state.AddUser(s.identity.UserID, s.identity.Username, s.identity.Color)

	s.engine = viewport.NewEngine(
		viewport.Size{Width: cfg.PlaneWidth, Height: cfg.PlaneHeight},
		viewport.Size{Width: cfg.ViewWidth, Height: cfg.ViewHeight},
		viewport.WithObserver(s.state.SetViewport),
	)

	if err := profile.AddRoom(ctx, cfg.Room); err != nil {
		s.log.Warn().Err(err).Str("room", cfg.Room).Msg("failed to record room")
	}

	return s, nil
}

// State returns the session's collaborative state.
func (s *Session) State() *core.State { return s.state }

// Engine returns the session's coordinate engine.
func (s *Session) Engine() *viewport.Engine { return s.engine }

// Identity returns the current identity.
func (s *Session) Identity() Identity {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.identity
}

// Connected reports whether the room channel is open.
func (s *Session) Connected() bool {
	s.mu.Lock()
	a := s.adapter
	s.mu.Unlock()
	return a != nil && a.IsOpen()
}

// Stats returns the counters of the current connection.
func (s *Session) Stats() ws.Stats {
	s.mu.Lock()
	a := s.adapter
	s.mu.Unlock()
	if a == nil {
		return ws.Stats{}
	}
	return a.Stats()
}

// Run keeps one connection for the current identity open until ctx is
// cancelled or the connection ends. Identity or credential changes replace
// the connection. Reconnecting after a failure is left to the caller.
func (s *Session) Run(ctx context.Context) error {
	for {
		a := s.connect()

		runCtx, cancel := context.WithCancel(ctx)
		errCh := make(chan error, 1)
		go func() { errCh <- a.Run(runCtx) }()
		go s.watch(a)

		select {
		case <-ctx.Done():
			cancel()
			<-errCh
			return nil
		case <-s.restart:
			cancel()
			<-errCh
			s.log.Info().Str("room", s.cfg.Room).Msg("re-establishing connection")
		case err := <-errCh:
			cancel()
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
	}
}

// Close stops every pending message timer.
func (s *Session) Close() {
	s.state.Close()
}

// PointerDown starts a pan-or-click gesture at a screen point.
func (s *Session) PointerDown(x, y float64) {
	s.gesture.PointerDown(x, y)
	s.engine.BeginDrag()
}

// PointerMove pans once the gesture has turned into a drag.
func (s *Session) PointerMove(x, y float64) {
	dx, dy, dragging := s.gesture.PointerMove(x, y)
	if dragging {
		s.engine.Pan(dx, dy)
	}
}

// PointerUp ends the gesture. For a click inside the plane it returns the
// canvas point where a message may be placed.
func (s *Session) PointerUp(x, y float64) (canvasX, canvasY float64, ok bool) {
	defer s.engine.EndDrag()

	if !s.gesture.PointerUp(x, y, s.clock.Now()) {
		return 0, 0, false
	}
	return s.engine.Placement(x, y)
}

// PlaceAtScreen places a new message at a screen point.
func (s *Session) PlaceAtScreen(ctx context.Context, screenX, screenY float64, text string) (string, error) {
	x, y, ok := s.engine.Placement(screenX, screenY)
	if !ok {
		return "", ErrOutOfBounds
	}
	return s.PlaceMessage(ctx, x, y, text)
}

// PlaceMessage creates a local message at canvas coordinates and publishes it.
func (s *Session) PlaceMessage(ctx context.Context, x, y float64, text string) (string, error) {
	if !s.engine.Contains(x, y) {
		return "", ErrOutOfBounds
	}

	id := utils.NewID()
	userID := s.Identity().UserID
	s.state.AddMessage(id, userID, text, x, y)
	s.send(func(a *ws.Adapter) error { return a.SendContentUpdate(ctx, id, text, x, y) })
	return id, nil
}

// EditMessage replaces the content of a message and publishes the change.
func (s *Session) EditMessage(ctx context.Context, id, text string) error {
	msg, ok := s.state.Message(id)
	if !ok {
		return ErrUnknownMessage
	}
	s.state.UpdateMessage(id, text)
	s.send(func(a *ws.Adapter) error { return a.SendContentUpdate(ctx, id, text, msg.X, msg.Y) })
	return nil
}

// SetUsername stores a new display name and announces it to the room.
func (s *Session) SetUsername(ctx context.Context, name string) error {
	name = strings.TrimSpace(name)
	if err := s.profile.SetDisplayName(ctx, name); err != nil {
		return fmt.Errorf("store display name: %w", err)
	}

	s.mu.Lock()
	s.identity.Username = name
	userID := s.identity.UserID
	s.mu.Unlock()

	s.state.UpdateUserUsername(userID, name)
	s.send(func(a *ws.Adapter) error { return a.SendIdentityFieldChanged(ctx, proto.FieldUsername, name) })
	return nil
}

// SetColor stores a palette color and announces it to the room.
func (s *Session) SetColor(ctx context.Context, color string) error {
	stored, err := s.profile.SetColor(ctx, color)
	if err != nil {
		return fmt.Errorf("store color: %w", err)
	}
	if !stored {
		return ErrInvalidColor
	}

	s.mu.Lock()
	s.identity.Color = color
	userID := s.identity.UserID
	s.mu.Unlock()

	s.state.UpdateUserColor(userID, color)
	s.send(func(a *ws.Adapter) error { return a.SendIdentityFieldChanged(ctx, proto.FieldColor, color) })
	return nil
}

// Reauthenticate fetches a fresh credential and replaces the connection.
func (s *Session) Reauthenticate(ctx context.Context) error {
	if err := s.refreshCredential(ctx); err != nil {
		return err
	}
	s.requestRestart()
	return nil
}

// ResetIdentity forgets the stored identity, creates a new one and
// replaces the connection.
func (s *Session) ResetIdentity(ctx context.Context) error {
	old := s.Identity().UserID
	if err := s.profile.Clear(ctx); err != nil {
		return fmt.Errorf("clear profile: %w", err)
	}
	if err := s.loadIdentity(ctx); err != nil {
		return err
	}

	id := s.Identity()
	s.state.RemoveUser(old)
	s.state.AddUser(id.UserID, id.Username, id.Color)
	s.requestRestart()
	return nil
}

func (s *Session) loadIdentity(ctx context.Context) error {
	userID, err := s.profile.EnsureUserID(ctx)
	if err != nil {
		return fmt.Errorf("load identity: %w", err)
	}
	p, err := s.profile.Profile(ctx)
	if err != nil {
		return fmt.Errorf("load profile: %w", err)
	}

	s.mu.Lock()
	s.identity = Identity{UserID: userID, Username: p.DisplayName, Color: p.Color}
	s.token = ""
	s.mu.Unlock()

	return s.refreshCredential(ctx)
}

// refreshCredential asks the provider for a token. Failures degrade to an
// anonymous connection instead of failing the session.
func (s *Session) refreshCredential(ctx context.Context) error {
	if s.provider == nil {
		return nil
	}

	s.mu.Lock()
	id := s.identity
	s.mu.Unlock()

	cred, err := s.provider.Credential(ctx, id.UserID, id.Username)
	if err != nil {
		s.log.Warn().Err(err).Str("user_id", id.UserID).Msg("credential unavailable, continuing anonymously")
		s.mu.Lock()
		s.token = ""
		s.mu.Unlock()
		return nil
	}

	s.mu.Lock()
	s.token = cred.Token
	s.identity.Username = identity.DisplayName(cred.Username, s.identity.Username)
	s.mu.Unlock()
	return nil
}

func (s *Session) connect() *ws.Adapter {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.adapter = ws.NewAdapter(ws.ConnParams{
		URL:      s.cfg.ServerURL,
		UserID:   s.identity.UserID,
		Username: s.identity.Username,
		Color:    s.identity.Color,
		Token:    s.token,
		RoomID:   s.cfg.Room,
	}, s.state,
		ws.WithLogger(s.log),
		ws.WithClock(s.clock),
		ws.WithDialTimeout(s.cfg.DialTimeout),
	)
	return s.adapter
}

func (s *Session) watch(a *ws.Adapter) {
	for ev := range a.Events() {
		switch ev.Kind {
		case ws.EventOpen:
			s.log.Debug().Str("room", s.cfg.Room).Msg("channel open")
		case ws.EventError:
			s.log.Debug().Err(ev.Err).Str("room", s.cfg.Room).Msg("channel error")
		case ws.EventClosed:
			s.log.Debug().Str("room", s.cfg.Room).Msg("channel closed")
			return
		}
	}
}

func (s *Session) send(fn func(*ws.Adapter) error) {
	s.mu.Lock()
	a := s.adapter
	s.mu.Unlock()

	if a == nil {
		s.log.Warn().Msg("not connected, dropping update")
		return
	}
	if err := fn(a); err != nil {
		s.log.Warn().Err(err).Msg("send update")
	}
}

func (s *Session) requestRestart() {
	select {
	case s.restart <- struct{}{}:
	default:
	}
}
