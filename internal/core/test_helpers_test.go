package core

import (
	"testing"
	"time"

	"github.com/benbjohnson/clock"
)

func newTestState(t *testing.T) (*State, *clock.Mock) {
	t.Helper()

	mock := clock.NewMock()
	s := NewState(WithClock(mock))
	t.Cleanup(s.Close)
	return s, mock
}

// waitFor polls cond until it holds. Mock timer callbacks run on their own
// goroutine, so effects of clock.Add are observed asynchronously.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met: %s", what)
}

// settle gives stray timer callbacks a chance to run before asserting that
// nothing happened.
func settle() {
	time.Sleep(30 * time.Millisecond)
}

func faded(s *State, id string) func() bool {
	return func() bool {
		m, ok := s.Message(id)
		return ok && m.FadeOut
	}
}

func gone(s *State, id string) func() bool {
	return func() bool {
		_, ok := s.Message(id)
		return !ok
	}
}
