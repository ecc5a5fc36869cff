// Package ws connects a session to its room over a websocket: inbound
// frames become state calls, local actions become outbound frames.
package ws

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/canvaschat/internal/identity"
	"github.com/vovakirdan/canvaschat/internal/proto"
)

const (
	defaultDialTimeout = 10 * time.Second
	eventBuffer        = 16
	readLimit          = 1 << 20
)

// Sink receives decoded inbound changes. *core.State satisfies it.
type Sink interface {
	AddMessage(id, authorID, content string, x, y float64)
	AddUser(id, username, color string)
	RemoveUser(id string)
	UpdateUserUsername(id, name string)
	UpdateUserColor(id, color string)
}

// ConnParams is the connection-time metadata for one (identity, room) pair.
type ConnParams struct {
	URL      string
	UserID   string
	Username string
	Color    string
	Token    string
	RoomID   string
}

// Adapter owns one live connection. Build a new Adapter for a new identity,
// credential or room; it is never re-pointed.
type Adapter struct {
	params      ConnParams
	sink        Sink
	log         *zerolog.Logger
	clock       clock.Clock
	dialTimeout time.Duration
	httpClient  *http.Client

	events chan Event

	mu   sync.RWMutex
	conn *websocket.Conn

	received  atomic.Int64
	unknown   atomic.Int64
	malformed atomic.Int64
	dropped   atomic.Int64
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithLogger attaches a logger.
func WithLogger(l *zerolog.Logger) Option {
	return func(a *Adapter) {
		if l != nil {
			a.log = l
		}
	}
}

// WithClock sets the clock used for frame timestamps.
func WithClock(c clock.Clock) Option {
	return func(a *Adapter) { a.clock = c }
}

// WithDialTimeout bounds the connection handshake.
func WithDialTimeout(d time.Duration) Option {
	return func(a *Adapter) {
		if d > 0 {
			a.dialTimeout = d
		}
	}
}

// WithHTTPClient overrides the client used for the handshake.
func WithHTTPClient(c *http.Client) Option {
	return func(a *Adapter) { a.httpClient = c }
}

// NewAdapter builds an adapter. The event channel is created here, once;
// subscribers read it for the adapter's whole life.
func NewAdapter(params ConnParams, sink Sink, opts ...Option) *Adapter {
	nop := zerolog.Nop()
	a := &Adapter{
		params:      params,
		sink:        sink,
		log:         &nop,
		clock:       clock.New(),
		dialTimeout: defaultDialTimeout,
		events:      make(chan Event, eventBuffer),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Events returns the adapter's notification channel.
func (a *Adapter) Events() <-chan Event {
	return a.events
}

// Params returns the connection metadata the adapter was built with.
func (a *Adapter) Params() ConnParams {
	return a.params
}

// IsOpen reports whether frames can currently be sent.
func (a *Adapter) IsOpen() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.conn != nil
}

// Stats returns a snapshot of the absorbed-fault counters.
func (a *Adapter) Stats() Stats {
	return Stats{
		Received:        a.received.Load(),
		UnknownFrames:   a.unknown.Load(),
		MalformedFrames: a.malformed.Load(),
		DroppedSends:    a.dropped.Load(),
	}
}

// Run connects and dispatches inbound frames until ctx is cancelled or the
// connection ends. Cancelling ctx closes the channel with a normal closure.
// Run does not reconnect.
func (a *Adapter) Run(ctx context.Context) error {
	target, err := a.dialURL()
	if err != nil {
		a.publish(Event{Kind: EventError, Err: err})
		a.publish(Event{Kind: EventClosed})
		return err
	}

	dialCtx, cancel := context.WithTimeout(ctx, a.dialTimeout)
	conn, _, err := websocket.Dial(dialCtx, target, &websocket.DialOptions{
		HTTPClient: a.httpClient,
		HTTPHeader: a.header(),
	})
	cancel()
	if err != nil {
		a.log.Warn().Err(err).Str("room", a.params.RoomID).Msg("ws dial failed")
		a.publish(Event{Kind: EventError, Err: err})
		a.publish(Event{Kind: EventClosed})
		return fmt.Errorf("dial: %w", err)
	}
	conn.SetReadLimit(readLimit)

	a.setConn(conn)
	a.log.Info().Str("room", a.params.RoomID).Str("user_id", a.params.UserID).Msg("ws connected")
	a.publish(Event{Kind: EventOpen})

	readCtx, stopRead := context.WithCancel(context.Background())
	defer stopRead()

	go func() {
		select {
		case <-ctx.Done():
			a.setConn(nil)
			_ = conn.Close(websocket.StatusNormalClosure, "client unmounting")
			stopRead()
		case <-readCtx.Done():
		}
	}()

	err = a.readLoop(readCtx, conn)
	a.setConn(nil)

	if ctx.Err() != nil {
		a.log.Info().Str("room", a.params.RoomID).Msg("ws closed by client")
		a.publish(Event{Kind: EventClosed})
		return nil
	}

	switch websocket.CloseStatus(err) {
	case websocket.StatusNormalClosure, websocket.StatusGoingAway:
		a.log.Info().Str("room", a.params.RoomID).Msg("ws closed by server")
		a.publish(Event{Kind: EventClosed})
		return nil
	}

	a.log.Warn().Err(err).Str("room", a.params.RoomID).Msg("ws connection lost")
	_ = conn.CloseNow()
	a.publish(Event{Kind: EventError, Err: err})
	a.publish(Event{Kind: EventClosed})
	return fmt.Errorf("read: %w", err)
}

// SendContentUpdate publishes the current content and position of a message.
// When the channel is not open the update is dropped.
func (a *Adapter) SendContentUpdate(ctx context.Context, messageID, content string, x, y float64) error {
	frame := proto.NewChat(a.params.UserID, a.params.RoomID, messageID, content, x, y, a.clock.Now())
	return a.send(ctx, frame)
}

// SendIdentityFieldChanged announces a new username or color.
// When the channel is not open the change is dropped.
func (a *Adapter) SendIdentityFieldChanged(ctx context.Context, field, value string) error {
	frame, err := proto.NewFieldChanged(field, a.params.UserID, a.params.RoomID, value, a.clock.Now())
	if err != nil {
		return err
	}
	return a.send(ctx, frame)
}

func (a *Adapter) send(ctx context.Context, frame proto.Frame) error {
	a.mu.RLock()
	conn := a.conn
	a.mu.RUnlock()

	if conn == nil {
		a.dropped.Add(1)
		a.log.Warn().Str("type", frame.Type).Str("room", a.params.RoomID).Msg("ws not connected, dropping frame")
		return nil
	}

	if err := wsjson.Write(ctx, conn, frame); err != nil {
		a.dropped.Add(1)
		a.log.Warn().Err(err).Str("type", frame.Type).Msg("write ws frame")
		return nil
	}
	return nil
}

func (a *Adapter) readLoop(ctx context.Context, conn *websocket.Conn) error {
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return err
		}
		a.received.Add(1)

		frame, err := proto.Decode(data)
		if err != nil {
			a.malformed.Add(1)
			a.log.Warn().Err(err).Int("bytes", len(data)).Msg("dropping malformed frame")
			continue
		}
		a.dispatch(frame)
	}
}

func (a *Adapter) dispatch(f proto.Frame) {
	switch f.Type {
	case proto.TypeUserSync:
		for _, u := range f.Users {
			if u.UserID == "" {
				a.malformed.Add(1)
				a.log.Warn().Msg("user_sync entry without user_id")
				continue
			}
			a.sink.AddUser(u.UserID, proto.Str(u.Username), proto.Str(u.Color))
		}
		a.log.Debug().Int("users", len(f.Users)).Msg("user sync")
	case proto.TypeUserJoined:
		if !a.requireUser(f) {
			return
		}
		a.sink.AddUser(f.UserID, proto.Str(f.Username), proto.Str(f.Color))
	case proto.TypeUserLeft:
		if !a.requireUser(f) {
			return
		}
		a.sink.RemoveUser(f.UserID)
	case proto.TypeUsernameChanged:
		if !a.requireUser(f) || f.Username == nil {
			return
		}
		a.sink.UpdateUserUsername(f.UserID, *f.Username)
	case proto.TypeColorChanged:
		if !a.requireUser(f) || f.Color == nil {
			return
		}
		a.sink.UpdateUserColor(f.UserID, *f.Color)
	case proto.TypeChat:
		if f.MessageID == "" || proto.Str(f.Payload) == "" || f.Position == nil || f.UserID == "" {
			a.malformed.Add(1)
			a.log.Warn().Str("message_id", f.MessageID).Msg("incomplete chat frame")
			return
		}
		a.sink.AddMessage(f.MessageID, f.UserID, *f.Payload, f.Position.X, f.Position.Y)
	default:
		a.unknown.Add(1)
		a.log.Warn().Str("type", f.Type).Msg("ignoring unknown frame type")
	}
}

func (a *Adapter) requireUser(f proto.Frame) bool {
	if f.UserID != "" {
		return true
	}
	a.malformed.Add(1)
	a.log.Warn().Str("type", f.Type).Msg("frame without user_id")
	return false
}

func (a *Adapter) dialURL() (string, error) {
	u, err := url.Parse(a.params.URL)
	if err != nil {
		return "", fmt.Errorf("parse server url: %w", err)
	}
	if a.params.UserID == "" {
		return "", errors.New("user id is required")
	}

	q := u.Query()
	q.Set("uid", a.params.UserID)
	if a.params.RoomID != "" {
		q.Set("channel", a.params.RoomID)
	}
	if a.params.Username != "" {
		q.Set("username", a.params.Username)
	}
	if a.params.Color != "" {
		if identity.IsPaletteColor(a.params.Color) {
			q.Set("color", a.params.Color)
		} else {
			a.log.Debug().Str("color", a.params.Color).Msg("ignoring off-palette connection color")
		}
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (a *Adapter) header() http.Header {
	h := http.Header{}
	if a.params.Token != "" {
		h.Set("Authorization", "Bearer "+a.params.Token)
	}
	return h
}

func (a *Adapter) setConn(c *websocket.Conn) {
	a.mu.Lock()
	a.conn = c
	a.mu.Unlock()
}

// publish never blocks; a subscriber that falls behind loses events.
func (a *Adapter) publish(ev Event) {
	select {
	case a.events <- ev:
	default:
	}
}
