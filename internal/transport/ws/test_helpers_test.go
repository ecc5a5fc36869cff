package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/vovakirdan/canvaschat/internal/proto"
)

// peer is the server side of one accepted connection. Frames sent by the
// client arrive on frames; the server keeps reading so close handshakes
// complete.
type peer struct {
	conn   *websocket.Conn
	req    *http.Request
	frames chan []byte
}

type testServer struct {
	*httptest.Server
	accepted chan *peer
	done     chan struct{}
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	s := &testServer{
		accepted: make(chan *peer, 4),
		done:     make(chan struct{}),
	}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		p := &peer{conn: conn, req: r.Clone(context.Background()), frames: make(chan []byte, 16)}
		s.accepted <- p

		go func() {
			<-s.done
			conn.CloseNow()
		}()

		defer close(p.frames)
		for {
			_, data, err := conn.Read(context.Background())
			if err != nil {
				return
			}
			p.frames <- data
		}
	}))
	t.Cleanup(s.Close)
	t.Cleanup(func() { close(s.done) })
	return s
}

func (s *testServer) wsURL() string {
	return strings.Replace(s.URL, "http", "ws", 1) + "/api/chat"
}

func (s *testServer) mustAccept(t *testing.T) *peer {
	t.Helper()

	select {
	case p := <-s.accepted:
		return p
	case <-time.After(2 * time.Second):
		t.Fatal("server did not accept a connection")
		return nil
	}
}

func (p *peer) mustFrame(t *testing.T) proto.Frame {
	t.Helper()

	select {
	case data, ok := <-p.frames:
		if !ok {
			t.Fatal("connection closed before a frame arrived")
		}
		var f proto.Frame
		if err := json.Unmarshal(data, &f); err != nil {
			t.Fatalf("decode client frame: %v", err)
		}
		return f
	case <-time.After(2 * time.Second):
		t.Fatal("no frame from client")
		return proto.Frame{}
	}
}

func mustEvent(t *testing.T, ch <-chan Event, kind EventKind) Event {
	t.Helper()

	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev := <-ch:
			if ev.Kind == kind {
				return ev
			}
		case <-deadline:
			t.Fatalf("expected event %v not received", kind)
			return Event{}
		}
	}
}

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
