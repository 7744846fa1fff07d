package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/praxislabs/praxis/pkg/types"
)

// fakeGateway is a scripted server side of the session protocol. The script
// function receives each accepted socket in order.
type fakeGateway struct {
	ts     *httptest.Server
	script func(conn *websocket.Conn, accepted int)

	mu       sync.Mutex
	accepted int
}

func newFakeGateway(t *testing.T, script func(conn *websocket.Conn, accepted int)) *fakeGateway {
	t.Helper()
	g := &fakeGateway{script: script}
	g.ts = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		g.mu.Lock()
		g.accepted++
		n := g.accepted
		g.mu.Unlock()
		g.script(conn, n)
	}))
	t.Cleanup(g.ts.Close)
	return g
}

func (g *fakeGateway) url() string {
	return "ws" + strings.TrimPrefix(g.ts.URL, "http")
}

func readClientFrame(t *testing.T, conn *websocket.Conn) clientFrame {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("server read: %v", err)
	}
	var frame clientFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		t.Fatalf("server unmarshal %q: %v", data, err)
	}
	return frame
}

func writeServerFrame(t *testing.T, conn *websocket.Conn, frame serverFrame) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	data, err := json.Marshal(frame)
	if err != nil {
		t.Fatalf("server marshal: %v", err)
	}
	if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
		t.Fatalf("server write: %v", err)
	}
}

// answerOnce is a script step: handshake then answer every user_text by
// echoing the request id.
func answerOnce(t *testing.T, conn *websocket.Conn) {
	t.Helper()
	start := readClientFrame(t, conn)
	if start.Type != msgStart {
		t.Errorf("first frame type = %q, want start", start.Type)
	}
	writeServerFrame(t, conn, serverFrame{Type: msgReady, SessionID: "sess-1"})

	for {
		frame, err := func() (clientFrame, error) {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_, data, err := conn.Read(ctx)
			if err != nil {
				return clientFrame{}, err
			}
			var f clientFrame
			return f, json.Unmarshal(data, &f)
		}()
		if err != nil {
			return
		}
		if frame.Type == msgUserText {
			writeServerFrame(t, conn, serverFrame{
				Type:      msgAssistantText,
				Text:      "answer to: " + frame.Text,
				RequestID: frame.RequestID,
			})
		}
	}
}

func TestAskDeliversReply(t *testing.T) {
	gw := newFakeGateway(t, func(conn *websocket.Conn, _ int) {
		answerOnce(t, conn)
	})

	replies := make(chan Reply, 1)
	c := New(Config{
		URL:          gw.url(),
		StudentEmail: "kim@example.com",
		OnReply:      func(r Reply) { replies <- r },
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.Connect(ctx); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer c.Close()

	requestID, err := c.Ask(ctx, "what is scrum?")
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}

	select {
	case r := <-replies:
		if r.RequestID != requestID {
			t.Errorf("RequestID = %q, want %q", r.RequestID, requestID)
		}
		if r.Text != "answer to: what is scrum?" {
			t.Errorf("Text = %q", r.Text)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("no reply delivered")
	}

	transcript := c.Transcript()
	if len(transcript) != 2 {
		t.Fatalf("transcript = %+v, want user + assistant", transcript)
	}
	if transcript[0].Role != types.RoleUser || transcript[1].Role != types.RoleAssistant {
		t.Errorf("transcript roles = %+v", transcript)
	}
}

func TestStaleReplyIsDiscarded(t *testing.T) {
	gw := newFakeGateway(t, func(conn *websocket.Conn, _ int) {
		start := readClientFrame(t, conn)
		if start.Type != msgStart {
			t.Errorf("first frame type = %q", start.Type)
		}
		writeServerFrame(t, conn, serverFrame{Type: msgReady})

		frame := readClientFrame(t, conn)
		// A reply for an old question lands first, then the real one.
		writeServerFrame(t, conn, serverFrame{
			Type:      msgAssistantText,
			Text:      "stale answer",
			RequestID: "some-older-request",
		})
		writeServerFrame(t, conn, serverFrame{
			Type:      msgAssistantText,
			Text:      "fresh answer",
			RequestID: frame.RequestID,
		})
	})

	replies := make(chan Reply, 2)
	c := New(Config{
		URL:          gw.url(),
		StudentEmail: "kim@example.com",
		OnReply:      func(r Reply) { replies <- r },
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.Connect(ctx); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer c.Close()

	if _, err := c.Ask(ctx, "current question"); err != nil {
		t.Fatalf("Ask() error = %v", err)
	}

	select {
	case r := <-replies:
		if r.Text != "fresh answer" {
			t.Fatalf("delivered %q, want fresh answer only", r.Text)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("no reply delivered")
	}

	// The stale reply must not have touched the transcript.
	for _, turn := range c.Transcript() {
		if turn.Text == "stale answer" {
			t.Errorf("stale reply reached the transcript: %+v", c.Transcript())
		}
	}
}

func TestReconnectBackoffDelays(t *testing.T) {
	gw := newFakeGateway(t, func(conn *websocket.Conn, _ int) {
		readClientFrame(t, conn)
		writeServerFrame(t, conn, serverFrame{Type: msgReady})
		// Drop the connection to trigger the reconnect path.
		_ = conn.Close(websocket.StatusInternalError, "simulated drop")
	})

	c := New(Config{URL: gw.url(), StudentEmail: "kim@example.com"})

	var mu sync.Mutex
	var delays []time.Duration
	done := make(chan struct{})
	c.sleep = func(_ context.Context, d time.Duration) error {
		mu.Lock()
		delays = append(delays, d)
		n := len(delays)
		mu.Unlock()
		if n == defaultMaxRetries {
			defer close(done)
		}
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := c.Connect(ctx); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	// Every reconnect dial also gets dropped, so all attempts burn out.
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatalf("reconnect attempts never exhausted")
	}

	// Give the final attempt time to fail and mark the client inactive.
	deadline := time.Now().Add(2 * time.Second)
	for {
		c.mu.Lock()
		active := c.active
		c.mu.Unlock()
		if !active {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("client still active after exhausting retries")
		}
		time.Sleep(10 * time.Millisecond)
	}

	mu.Lock()
	defer mu.Unlock()
	want := []time.Duration{
		1 * time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second, 16 * time.Second,
	}
	if len(delays) < len(want) {
		t.Fatalf("delays = %v, want at least %v", delays, want)
	}
	for i, d := range want {
		if delays[i] != d {
			t.Errorf("delay[%d] = %v, want %v", i, delays[i], d)
		}
	}

	if _, err := c.Ask(ctx, "anyone there?"); err == nil {
		t.Errorf("Ask() after giving up should fail")
	}
}

func TestReconnectReseedsHistory(t *testing.T) {
	histories := make(chan []types.Turn, 2)
	gw := newFakeGateway(t, func(conn *websocket.Conn, accepted int) {
		start := readClientFrame(t, conn)
		histories <- start.History
		writeServerFrame(t, conn, serverFrame{Type: msgReady})

		if accepted == 1 {
			frame := readClientFrame(t, conn)
			writeServerFrame(t, conn, serverFrame{
				Type:      msgAssistantText,
				Text:      "Scrum is a framework.",
				RequestID: frame.RequestID,
			})
			_ = conn.Close(websocket.StatusInternalError, "simulated drop")
			return
		}
		answerOnce(t, conn)
	})

	replies := make(chan Reply, 2)
	c := New(Config{
		URL:          gw.url(),
		StudentEmail: "kim@example.com",
		OnReply:      func(r Reply) { replies <- r },
	})
	c.sleep = func(context.Context, time.Duration) error { return nil }

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := c.Connect(ctx); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer c.Close()

	if first := <-histories; len(first) != 0 {
		t.Errorf("fresh start carried history: %+v", first)
	}

	if _, err := c.Ask(ctx, "what is scrum?"); err != nil {
		t.Fatalf("Ask() error = %v", err)
	}
	select {
	case <-replies:
	case <-time.After(5 * time.Second):
		t.Fatalf("first reply never arrived")
	}

	// The server drops the socket after the first answer; the reconnect
	// start must replay the transcript.
	select {
	case reseeded := <-histories:
		if len(reseeded) != 2 {
			t.Fatalf("reseeded history = %+v, want 2 turns", reseeded)
		}
		if reseeded[0].Text != "what is scrum?" || reseeded[1].Text != "Scrum is a framework." {
			t.Errorf("reseeded history = %+v", reseeded)
		}
	case <-time.After(10 * time.Second):
		t.Fatalf("no reconnect observed")
	}
}

func TestNoReconnectAfterClose(t *testing.T) {
	gw := newFakeGateway(t, func(conn *websocket.Conn, _ int) {
		readClientFrame(t, conn)
		writeServerFrame(t, conn, serverFrame{Type: msgReady})
		// Hold the socket open until the client closes it.
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_, _, _ = conn.Read(ctx)
	})

	c := New(Config{URL: gw.url(), StudentEmail: "kim@example.com"})

	var mu sync.Mutex
	sleeps := 0
	c.sleep = func(context.Context, time.Duration) error {
		mu.Lock()
		sleeps++
		mu.Unlock()
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.Connect(ctx); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	time.Sleep(100 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	if sleeps != 0 {
		t.Errorf("reconnection attempted after manual close")
	}

	if _, err := c.Ask(ctx, "hello?"); err == nil {
		t.Errorf("Ask() after Close should fail")
	}
}
