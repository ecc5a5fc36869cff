package core

import (
	"sort"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"github.com/vovakirdan/canvaschat/internal/identity"
)

const (
	// DefaultTTL is how long a message stays untouched before it starts fading.
	DefaultTTL = 5000 * time.Millisecond
	// DefaultFadeGrace is how long a fading message stays before removal.
	DefaultFadeGrace = 500 * time.Millisecond
)

// ttlTimer is the cancellation token for one message. seq identifies the
// generation so that a callback which lost the race with Stop can tell it
// is stale.
type ttlTimer struct {
	timer *clock.Timer
	seq   uint64
}

// State is the canonical in-memory collection of messages, users and the
// viewport for one session. It is the only writer of that data and owns the
// per-message TTL timers. All methods are safe for concurrent use; mutations
// are applied in arrival order.
type State struct {
	mu       sync.Mutex
	messages map[string]*Message
	users    map[string]*User
	viewport Viewport
	timers   map[string]*ttlTimer
	seq      uint64
	closed   bool

	clock     clock.Clock
	ttl       time.Duration
	fadeGrace time.Duration
	log       *zerolog.Logger
	changes   chan struct{}
}

// Option configures a State.
type Option func(*State)

// WithClock replaces the wall clock, mainly for tests.
func WithClock(c clock.Clock) Option {
	return func(s *State) { s.clock = c }
}

// WithTTL sets the inactivity timeout after which a message starts fading.
func WithTTL(d time.Duration) Option {
	return func(s *State) {
		if d > 0 {
			s.ttl = d
		}
	}
}

// WithFadeGrace sets the delay between fade and removal.
func WithFadeGrace(d time.Duration) Option {
	return func(s *State) {
		if d > 0 {
			s.fadeGrace = d
		}
	}
}

// WithLogger attaches a logger.
func WithLogger(l *zerolog.Logger) Option {
	return func(s *State) {
		if l != nil {
			s.log = l
		}
	}
}

// NewState constructs an empty state with a unit viewport.
func NewState(opts ...Option) *State {
	nop := zerolog.Nop()
	s := &State{
		messages:  make(map[string]*Message),
		users:     make(map[string]*User),
		viewport:  Viewport{Scale: 1},
		timers:    make(map[string]*ttlTimer),
		clock:     clock.New(),
		ttl:       DefaultTTL,
		fadeGrace: DefaultFadeGrace,
		log:       &nop,
		changes:   make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Changes delivers a coalesced signal after every effective mutation.
// A renderer drains it and re-reads whatever it needs.
func (s *State) Changes() <-chan struct{} {
	return s.changes
}

// AddMessage inserts or overwrites a message and restarts its TTL.
// An unknown author is created with a derived color.
func (s *State) AddMessage(id, authorID, content string, x, y float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}

	author := s.addUserLocked(authorID, "", "")

	s.cancelTimerLocked(id)
	s.messages[id] = &Message{
		ID:       id,
		AuthorID: authorID,
		Content:  content,
		X:        x,
		Y:        y,
		Color:    author.Color,
	}
	s.scheduleLocked(id, s.ttl, s.fadeOutLocked)
	s.notify()
}

// UpdateMessage replaces the content of a known message and restarts its TTL.
func (s *State) UpdateMessage(id, content string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	msg, ok := s.messages[id]
	if !ok || s.closed {
		return
	}

	s.cancelTimerLocked(id)
	msg.Content = content
	s.scheduleLocked(id, s.ttl, s.fadeOutLocked)
	s.notify()
}

// FadeOutMessage marks a message as fading and schedules its removal.
// Calling it again before removal reschedules the single pending removal.
func (s *State) FadeOutMessage(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.fadeOutLocked(id)
}

// RemoveMessage deletes a message and cancels its timer.
func (s *State) RemoveMessage(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.removeLocked(id)
}

// AddUser creates a user unless one with the same id exists. An empty or
// off-palette color is replaced with the color derived from the id.
func (s *State) AddUser(id, username, color string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.users[id]; exists {
		return
	}
	s.addUserLocked(id, username, color)
	s.notify()
}

// UpdateUserUsername changes the display name of a known user.
func (s *State) UpdateUserUsername(id, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return
	}
	u.Username = name
	s.notify()
}

// UpdateUserColor changes the color of a known user. Off-palette colors are ignored.
func (s *State) UpdateUserColor(id, color string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return
	}
	if !identity.IsPaletteColor(color) {
		s.log.Debug().Str("user_id", id).Str("color", color).Msg("ignoring off-palette color")
		return
	}
	u.Color = color
	s.notify()
}

// RemoveUser deletes a user. Their messages live out their TTL.
func (s *State) RemoveUser(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[id]; !ok {
		return
	}
	delete(s.users, id)
	s.notify()
}

// SetViewport replaces the viewport.
func (s *State) SetViewport(v Viewport) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.viewport = v
	s.notify()
}

// Message returns a copy of the message with the given id.
func (s *State) Message(id string) (Message, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	msg, ok := s.messages[id]
	if !ok {
		return Message{}, false
	}
	return *msg, true
}

// Messages returns copies of all messages ordered by id.
func (s *State) Messages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := lo.MapToSlice(s.messages, func(_ string, m *Message) Message { return *m })
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// User returns a copy of the user with the given id.
func (s *State) User(id string) (User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return User{}, false
	}
	return *u, true
}

// Users returns copies of all users ordered by id.
func (s *State) Users() []User {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := lo.MapToSlice(s.users, func(_ string, u *User) User { return *u })
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Viewport returns the current viewport.
func (s *State) Viewport() Viewport {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.viewport
}

// PendingTimers reports how many TTL or removal timers are outstanding.
func (s *State) PendingTimers() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.timers)
}

// Close cancels every outstanding timer. Later message writes are ignored.
func (s *State) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id := range s.timers {
		s.cancelTimerLocked(id)
	}
	s.closed = true
}

func (s *State) addUserLocked(id, username, color string) *User {
	if u, ok := s.users[id]; ok {
		return u
	}
	u := &User{
		ID:       id,
		Username: username,
		Color:    identity.ResolveColor(id, color),
	}
	s.users[id] = u
	return u
}

func (s *State) fadeOutLocked(id string) {
	msg, ok := s.messages[id]
	if !ok || s.closed {
		return
	}

	s.cancelTimerLocked(id)
	msg.FadeOut = true
	s.scheduleLocked(id, s.fadeGrace, s.removeLocked)
	s.notify()
}

func (s *State) removeLocked(id string) {
	s.cancelTimerLocked(id)
	if _, ok := s.messages[id]; !ok {
		return
	}
	delete(s.messages, id)
	s.notify()
}

// scheduleLocked arms fn(id) after d. The callback re-acquires the lock and
// only runs if its token is still the current one for id.
func (s *State) scheduleLocked(id string, d time.Duration, fn func(string)) {
	s.seq++
	token := &ttlTimer{seq: s.seq}
	token.timer = s.clock.AfterFunc(d, func() {
		s.mu.Lock()
		defer s.mu.Unlock()

		current, ok := s.timers[id]
		if !ok || current.seq != token.seq {
			return
		}
		delete(s.timers, id)
		fn(id)
	})
	s.timers[id] = token
}

func (s *State) cancelTimerLocked(id string) {
	t, ok := s.timers[id]
	if !ok {
		return
	}
	t.timer.Stop()
	delete(s.timers, id)
}

func (s *State) notify() {
	select {
	case s.changes <- struct{}{}:
	default:
	}
}
