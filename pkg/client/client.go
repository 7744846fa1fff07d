// Package client is the Go client for the Praxis tutoring gateway. It speaks
// the WebSocket session protocol, survives transient drops through
// reconnect-with-backoff, suppresses stale replies, and optionally plays
// synthesized speech through a playback gate.
package client

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"github.com/praxislabs/praxis/pkg/types"
)

// Default reconnection parameters. Delays double from Backoff each attempt:
// 1s, 2s, 4s, 8s, 16s with the defaults.
const (
	defaultMaxRetries = 5
	defaultBackoff    = 1 * time.Second
)

// ErrClosed is returned by Ask after Close or after reconnection gave up.
var ErrClosed = errors.New("client: session closed")

// Reply is one assistant answer delivered to the OnReply callback.
type Reply struct {
	// Text is the assistant's answer.
	Text string

	// RequestID echoes the id of the question being answered.
	RequestID string

	// Audio is the decoded speech payload, nil when the server sent none.
	Audio *types.Audio
}

// Config configures a [Client].
type Config struct {
	// URL is the WebSocket endpoint (e.g., "wss://praxis.example.com/ws").
	URL string

	// StudentEmail identifies the student on start.
	StudentEmail string

	// LMSKey is the shared secret presented on start. May be empty when the
	// server runs without one.
	LMSKey string

	// WantAudio asks the server to synthesize speech for every reply.
	WantAudio bool

	// OnReply receives every accepted assistant answer. May be nil.
	OnReply func(Reply)

	// OnServerError receives server-sent error messages (busy rejections,
	// per-turn vendor failures). May be nil.
	OnServerError func(message string)

	// Player plays reply audio. Nil disables playback.
	Player *PlaybackGate

	// MaxRetries caps reconnection attempts per drop. Defaults to 5.
	MaxRetries int

	// Backoff is the first reconnection delay, doubling each attempt.
	// Defaults to 1s.
	Backoff time.Duration
}

// Client is a connected tutoring session. All methods are safe for
// concurrent use.
type Client struct {
	cfg        Config
	maxRetries int
	backoff    time.Duration

	// sleep is replaced in tests to observe backoff delays.
	sleep func(ctx context.Context, d time.Duration) error

	mu            sync.Mutex
	conn          *websocket.Conn
	transcript    []types.Turn
	lastRequestID string
	active        bool
	closed        bool
}

// New creates a client. Call [Client.Connect] to open the session.
func New(cfg Config) *Client {
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}
	backoff := cfg.Backoff
	if backoff <= 0 {
		backoff = defaultBackoff
	}
	return &Client{
		cfg:        cfg,
		maxRetries: maxRetries,
		backoff:    backoff,
		sleep: func(ctx context.Context, d time.Duration) error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(d):
				return nil
			}
		},
	}
}

// Connect dials the gateway, performs the start handshake, and begins the
// read loop. The supplied context governs the whole session: cancelling it
// stops reconnection and the read loop.
func (c *Client) Connect(ctx context.Context) error {
	conn, err := c.dial(ctx)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.conn = conn
	c.active = true
	c.mu.Unlock()

	go c.readLoop(ctx, conn)
	return nil
}

// dial opens a socket and completes the start handshake, replaying the
// current transcript so a reconnect keeps its context.
func (c *Client) dial(ctx context.Context) (*websocket.Conn, error) {
	conn, _, err := websocket.Dial(ctx, c.cfg.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("client: dial %s: %w", c.cfg.URL, err)
	}

	c.mu.Lock()
	history := append([]types.Turn(nil), c.transcript...)
	c.mu.Unlock()

	start := clientFrame{
		Type:         msgStart,
		StudentEmail: c.cfg.StudentEmail,
		LMSKey:       c.cfg.LMSKey,
		History:      history,
		WantAudio:    c.cfg.WantAudio,
	}
	if err := writeFrame(ctx, conn, start); err != nil {
		_ = conn.Close(websocket.StatusInternalError, "handshake write failed")
		return nil, fmt.Errorf("client: send start: %w", err)
	}

	reply, err := readServerFrame(ctx, conn)
	if err != nil {
		_ = conn.Close(websocket.StatusInternalError, "handshake read failed")
		return nil, fmt.Errorf("client: await ready: %w", err)
	}
	if reply.Type != msgReady {
		_ = conn.Close(websocket.StatusNormalClosure, "rejected")
		return nil, fmt.Errorf("client: session rejected: %s", reply.Error)
	}
	return conn, nil
}

// Ask submits one question and returns the request id the eventual answer
// will carry. The answer arrives asynchronously via OnReply.
func (c *Client) Ask(ctx context.Context, text string) (string, error) {
	requestID := uuid.NewString()

	c.mu.Lock()
	if c.closed || !c.active || c.conn == nil {
		c.mu.Unlock()
		return "", ErrClosed
	}
	conn := c.conn
	c.lastRequestID = requestID
	c.transcript = append(c.transcript, types.Turn{Role: types.RoleUser, Text: text})
	c.mu.Unlock()

	frame := clientFrame{
		Type:      msgUserText,
		Text:      text,
		RequestID: requestID,
		WantAudio: c.cfg.WantAudio,
	}
	if err := writeFrame(ctx, conn, frame); err != nil {
		return "", fmt.Errorf("client: send user_text: %w", err)
	}
	return requestID, nil
}

// Transcript returns a copy of the conversation so far.
func (c *Client) Transcript() []types.Turn {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]types.Turn(nil), c.transcript...)
}

// Close ends the session. No reconnection is attempted afterwards.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.active = false
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()

	if c.cfg.Player != nil {
		c.cfg.Player.Stop()
	}
	if conn == nil {
		return nil
	}
	stopCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_ = writeFrame(stopCtx, conn, clientFrame{Type: msgStop})
	return conn.Close(websocket.StatusNormalClosure, "client closed")
}

// readLoop consumes server frames until the socket drops, then hands off to
// the reconnect path.
func (c *Client) readLoop(ctx context.Context, conn *websocket.Conn) {
	for {
		frame, err := readServerFrame(ctx, conn)
		if err != nil {
			c.handleDrop(ctx, err)
			return
		}
		c.handleFrame(frame)
	}
}

func (c *Client) handleFrame(frame serverFrame) {
	switch frame.Type {
	case msgAssistantText:
		c.handleAssistantText(frame)
	case msgError:
		slog.Warn("server error", "message", frame.Error)
		if c.cfg.OnServerError != nil {
			c.cfg.OnServerError(frame.Error)
		}
	case msgPong:
		// Keepalive, nothing to do.
	default:
		slog.Debug("ignoring unexpected server frame", "type", frame.Type)
	}
}

func (c *Client) handleAssistantText(frame serverFrame) {
	c.mu.Lock()
	if frame.RequestID != c.lastRequestID {
		c.mu.Unlock()
		slog.Debug("discarding stale reply", "request_id", frame.RequestID)
		return
	}
	c.transcript = append(c.transcript, types.Turn{Role: types.RoleAssistant, Text: frame.Text})
	c.mu.Unlock()

	reply := Reply{Text: frame.Text, RequestID: frame.RequestID}
	if frame.Audio != "" {
		data, err := base64.StdEncoding.DecodeString(frame.Audio)
		if err != nil {
			slog.Warn("reply audio did not decode", "err", err)
		} else {
			reply.Audio = &types.Audio{Data: data, MimeType: frame.AudioMime}
		}
	}

	if reply.Audio != nil && c.cfg.Player != nil {
		if err := c.cfg.Player.Play(reply.Audio); err != nil {
			slog.Warn("playback failed", "err", err)
		}
	}
	if c.cfg.OnReply != nil {
		c.cfg.OnReply(reply)
	}
}

// handleDrop decides whether the drop warrants reconnection and, if so, runs
// the backoff loop. Manual close and context cancellation end the session
// quietly.
func (c *Client) handleDrop(ctx context.Context, cause error) {
	c.mu.Lock()
	shouldReconnect := c.active && !c.closed && ctx.Err() == nil
	c.mu.Unlock()

	if !shouldReconnect {
		return
	}
	slog.Warn("connection lost, reconnecting", "err", cause)

	delay := c.backoff
	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		if err := c.sleep(ctx, delay); err != nil {
			return
		}
		delay *= 2

		c.mu.Lock()
		stillWanted := c.active && !c.closed
		c.mu.Unlock()
		if !stillWanted {
			return
		}

		conn, err := c.dial(ctx)
		if err != nil {
			slog.Warn("reconnection attempt failed",
				"attempt", attempt,
				"max_retries", c.maxRetries,
				"err", err,
			)
			continue
		}

		c.mu.Lock()
		c.conn = conn
		c.mu.Unlock()
		slog.Info("reconnected", "attempt", attempt)
		go c.readLoop(ctx, conn)
		return
	}

	slog.Error("reconnection failed, giving up", "max_retries", c.maxRetries)
	c.mu.Lock()
	c.active = false
	c.mu.Unlock()
}

func writeFrame(ctx context.Context, conn *websocket.Conn, frame clientFrame) error {
	data, err := json.Marshal(frame)
	if err != nil {
		return err
	}
	return conn.Write(ctx, websocket.MessageText, data)
}

func readServerFrame(ctx context.Context, conn *websocket.Conn) (serverFrame, error) {
	var frame serverFrame
	_, data, err := conn.Read(ctx)
	if err != nil {
		return frame, err
	}
	if err := json.Unmarshal(data, &frame); err != nil {
		return frame, fmt.Errorf("client: decode server frame: %w", err)
	}
	return frame, nil
}
