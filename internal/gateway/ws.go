package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/praxislabs/praxis/internal/chat"
	"github.com/praxislabs/praxis/internal/observe"
	"github.com/praxislabs/praxis/internal/scope"
	"github.com/praxislabs/praxis/internal/session"
)

// startTimeout bounds how long a fresh socket may sit idle before sending
// its start frame.
const startTimeout = 15 * time.Second

// WSConfig holds the dependencies of a [WSHandler].
type WSConfig struct {
	// Scopes resolves enrollment scope on session start. Required.
	Scopes *scope.Resolver

	// Chat answers user_text turns. Required.
	Chat *chat.Service

	// Sessions is the server-owned session registry. Required.
	Sessions *session.Registry

	// Prefs restores the student's last topic across sessions. Nil disables
	// cross-session carryover.
	Prefs session.PrefStore

	// LMSKey is the shared secret clients must present on start. Empty
	// disables the check.
	LMSKey string

	// HistoryLimit bounds per-session conversation history. Zero uses
	// [session.DefaultHistoryLimit].
	HistoryLimit int

	// Metrics records session and scope instrumentation. Nil uses
	// [observe.DefaultMetrics].
	Metrics *observe.Metrics
}

// WSHandler upgrades GET /ws requests and runs the session protocol: one
// start handshake, then a loop of user_text / ping / stop frames until the
// socket closes. Each accepted socket owns exactly one session, removed from
// the registry when the handler returns.
type WSHandler struct {
	cfg     WSConfig
	metrics *observe.Metrics
}

// NewWSHandler creates a WebSocket session handler.
func NewWSHandler(cfg WSConfig) *WSHandler {
	m := cfg.Metrics
	if m == nil {
		m = observe.DefaultMetrics()
	}
	return &WSHandler{cfg: cfg, metrics: m}
}

// ServeHTTP implements http.Handler for the WebSocket upgrade.
func (h *WSHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Error("websocket accept failed", "err", err, "remote", r.RemoteAddr)
		return
	}

	ctx := r.Context()
	wc := &wsConn{conn: conn}

	sess, ok := h.handshake(ctx, wc)
	if !ok {
		return
	}

	h.cfg.Sessions.Add(sess)
	h.metrics.ActiveSessions.Add(ctx, 1)
	defer func() {
		h.cfg.Sessions.Remove(sess.ID)
		h.metrics.ActiveSessions.Add(context.Background(), -1)
		slog.Info("session closed", "session_id", sess.ID, "student", sess.StudentEmail)
	}()

	if err := wc.send(ctx, ServerMessage{Type: MsgReady, SessionID: sess.ID}); err != nil {
		slog.Debug("ready frame write failed", "err", err, "session_id", sess.ID)
		return
	}
	slog.Info("session started",
		"session_id", sess.ID,
		"student", sess.StudentEmail,
		"courses", len(sess.Scope.Courses),
	)

	h.readLoop(ctx, wc, sess)
}

// handshake reads and validates the start frame, resolves scope, and builds
// the session. On failure it sends an error frame, closes the socket, and
// returns ok=false.
func (h *WSHandler) handshake(ctx context.Context, wc *wsConn) (*session.Session, bool) {
	startCtx, cancel := context.WithTimeout(ctx, startTimeout)
	defer cancel()

	var msg ClientMessage
	if err := wc.read(startCtx, &msg); err != nil {
		slog.Debug("start frame read failed", "err", err)
		wc.close(websocket.StatusProtocolError, "expected start")
		return nil, false
	}

	switch {
	case msg.Type != MsgStart:
		wc.fail(ctx, websocket.StatusProtocolError, "first message must be start")
		return nil, false
	case msg.StudentEmail == "":
		wc.fail(ctx, websocket.StatusProtocolError, "start requires student_email")
		return nil, false
	case h.cfg.LMSKey != "" && msg.LMSKey != h.cfg.LMSKey:
		slog.Warn("session rejected: bad lms key", "student", msg.StudentEmail)
		wc.fail(ctx, websocket.StatusPolicyViolation, "authentication failed")
		return nil, false
	}

	begin := time.Now()
	sc, err := h.cfg.Scopes.Resolve(ctx, msg.StudentEmail)
	h.metrics.ScopeResolveDuration.Record(ctx, time.Since(begin).Seconds())
	if err != nil {
		slog.Warn("scope resolution failed", "student", msg.StudentEmail, "err", err)
		if errors.Is(err, scope.ErrNotEnrolled) {
			wc.fail(ctx, websocket.StatusNormalClosure, "no active enrollment for this account")
		} else {
			wc.fail(ctx, websocket.StatusInternalError, "enrollment lookup failed, try again later")
		}
		return nil, false
	}

	var opts []session.Option
	if h.cfg.HistoryLimit > 0 {
		opts = append(opts, session.WithHistoryLimit(h.cfg.HistoryLimit))
	}
	sess := session.New(msg.StudentEmail, sc, opts...)

	// A reconnecting client replays its transcript so context survives the
	// drop. The session window still applies.
	if len(msg.History) > 0 {
		sess.SeedHistory(msg.History)
	}

	if h.cfg.Prefs != nil {
		prefs, err := h.cfg.Prefs.Get(ctx, msg.StudentEmail)
		switch {
		case err == nil && prefs.LastTopic != "":
			sess.SetLastTopic(prefs.LastTopic)
		case err != nil && !errors.Is(err, session.ErrNoPreferences):
			slog.Warn("preference load failed", "student", msg.StudentEmail, "err", err)
		}
	}

	return sess, true
}

// readLoop processes frames until stop, a read error, or context cancel.
func (h *WSHandler) readLoop(ctx context.Context, wc *wsConn, sess *session.Session) {
	for {
		var msg ClientMessage
		if err := wc.read(ctx, &msg); err != nil {
			if errors.Is(err, errMalformed) || errors.Is(err, errNotText) {
				// Malformed frames are dropped; the session stays open.
				slog.Warn("dropping malformed client frame", "session_id", sess.ID, "err", err)
				continue
			}
			status := websocket.CloseStatus(err)
			if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
				return
			}
			slog.Debug("socket read ended", "session_id", sess.ID, "err", err)
			return
		}

		switch msg.Type {
		case MsgUserText:
			h.handleUserText(ctx, wc, sess, msg)
		case MsgPing:
			if err := wc.send(ctx, ServerMessage{Type: MsgPong}); err != nil {
				return
			}
		case MsgStop:
			wc.close(websocket.StatusNormalClosure, "session stopped")
			return
		case MsgStart:
			// Session is already established on this socket.
			_ = wc.send(ctx, errorMessage("session already started"))
		default:
			slog.Warn("dropping unknown client frame", "session_id", sess.ID, "type", msg.Type)
		}
	}
}

// handleUserText answers one utterance. The LLM call runs in its own
// goroutine so keepalives keep flowing while the model thinks; the busy flag
// guarantees at most one call is in flight per session.
func (h *WSHandler) handleUserText(ctx context.Context, wc *wsConn, sess *session.Session, msg ClientMessage) {
	if msg.Text == "" {
		_ = wc.send(ctx, errorMessage("user_text requires text"))
		return
	}
	if sess.Busy() {
		h.metrics.BusyRejections.Add(ctx, 1)
		_ = wc.send(ctx, ServerMessage{
			Type:      MsgError,
			RequestID: msg.RequestID,
			Error:     "still responding to the previous question",
		})
		return
	}
	sess.TrackRequest(msg.RequestID)

	go func() {
		reply, err := h.cfg.Chat.Respond(ctx, chat.Request{
			Session:   sess,
			Text:      msg.Text,
			WantAudio: msg.WantAudio,
		})
		if err != nil {
			if errors.Is(err, session.ErrBusy) {
				h.metrics.BusyRejections.Add(ctx, 1)
				_ = wc.send(ctx, ServerMessage{
					Type:      MsgError,
					RequestID: msg.RequestID,
					Error:     "still responding to the previous question",
				})
				return
			}
			slog.Error("turn failed", "session_id", sess.ID, "request_id", msg.RequestID, "err", err)
			_ = wc.send(ctx, ServerMessage{
				Type:      MsgError,
				RequestID: msg.RequestID,
				Error:     "I couldn't answer that just now, please try again",
			})
			return
		}
		if !sess.IsCurrentRequest(msg.RequestID) {
			slog.Debug("discarding superseded reply", "session_id", sess.ID, "request_id", msg.RequestID)
			return
		}
		if err := wc.send(ctx, assistantMessage(msg.RequestID, reply.Text, reply.Audio)); err != nil {
			slog.Debug("assistant frame write failed", "session_id", sess.ID, "err", err)
		}
	}()
}

// errNotText marks a non-text frame on a text-only protocol.
var errNotText = errors.New("gateway: expected text frame")

// errMalformed marks a text frame that did not decode as a client message.
var errMalformed = errors.New("gateway: malformed frame")

// wsConn wraps a websocket connection with JSON framing and a write mutex.
// The answer goroutine and the read loop both write; the mutex keeps frames
// whole.
type wsConn struct {
	conn *websocket.Conn

	mu sync.Mutex
}

func (w *wsConn) read(ctx context.Context, v any) error {
	typ, data, err := w.conn.Read(ctx)
	if err != nil {
		return err
	}
	if typ != websocket.MessageText {
		return errNotText
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %v", errMalformed, err)
	}
	return nil
}

func (w *wsConn) send(ctx context.Context, msg ServerMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.conn.Write(ctx, websocket.MessageText, data)
}

// fail sends an error frame and closes the socket with the given status.
func (w *wsConn) fail(ctx context.Context, status websocket.StatusCode, reason string) {
	_ = w.send(ctx, errorMessage(reason))
	w.close(status, reason)
}

func (w *wsConn) close(status websocket.StatusCode, reason string) {
	if err := w.conn.Close(status, reason); err != nil {
		slog.Debug("socket close", "err", err)
	}
}
