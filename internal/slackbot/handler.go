// Package slackbot is the Slack Events API surface of Praxis. It verifies
// request signatures, deduplicates redelivered events, and answers direct
// messages through the same chat pipeline the WebSocket gateway uses.
package slackbot

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/praxislabs/praxis/internal/chat"
	"github.com/praxislabs/praxis/internal/scope"
	"github.com/praxislabs/praxis/internal/session"
)

// maxEventBody caps the request body read from Slack.
const maxEventBody = 1 << 20

// answerTimeout bounds the asynchronous turn behind a single Slack event.
const answerTimeout = 60 * time.Second

// eventEnvelope is the outer Events API payload.
type eventEnvelope struct {
	Type      string `json:"type"`
	Challenge string `json:"challenge"`
	EventID   string `json:"event_id"`
	Event     event  `json:"event"`
}

// event is the inner message event. BotID and Subtype mark frames the bot
// must ignore to avoid answering itself.
type event struct {
	Type    string `json:"type"`
	Subtype string `json:"subtype"`
	User    string `json:"user"`
	BotID   string `json:"bot_id"`
	Text    string `json:"text"`
	Channel string `json:"channel"`
}

// SlackAPI is the subset of the Web API the handler calls. *Client satisfies
// it; tests substitute doubles.
type SlackAPI interface {
	PostMessage(ctx context.Context, channel, text string) error
	UserEmail(ctx context.Context, userID string) (string, error)
}

// Config holds the dependencies of a [Handler].
type Config struct {
	// SigningSecret verifies incoming request signatures. Required.
	SigningSecret string

	// API posts replies and resolves user emails. Required.
	API SlackAPI

	// Scopes resolves enrollment scope for the asking student. Required.
	Scopes *scope.Resolver

	// Chat answers the question. Required.
	Chat *chat.Service

	// Locker deduplicates redelivered events. Required.
	Locker Locker

	// DedupTTL is how long an event id stays claimed. Zero uses
	// [DefaultDedupTTL].
	DedupTTL time.Duration

	// HistoryLimit bounds the ephemeral per-event session. Zero uses the
	// default.
	HistoryLimit int
}

// Handler serves POST /slack/events.
type Handler struct {
	cfg Config
	ttl time.Duration

	// now is swapped in tests to pin the replay window.
	now func() time.Time
}

// NewHandler creates the Slack events handler.
func NewHandler(cfg Config) *Handler {
	ttl := cfg.DedupTTL
	if ttl <= 0 {
		ttl = DefaultDedupTTL
	}
	return &Handler{cfg: cfg, ttl: ttl, now: time.Now}
}

// ServeHTTP implements http.Handler. Slack expects an acknowledgement within
// three seconds, so the actual turn runs in a goroutine after the 200.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxEventBody))
	if err != nil {
		http.Error(w, "read failed", http.StatusBadRequest)
		return
	}

	err = verifySignature(
		h.cfg.SigningSecret,
		r.Header.Get("X-Slack-Request-Timestamp"),
		r.Header.Get("X-Slack-Signature"),
		body,
		h.now(),
	)
	if err != nil {
		slog.Warn("slack request rejected", "err", err, "remote", r.RemoteAddr)
		http.Error(w, "invalid signature", http.StatusUnauthorized)
		return
	}

	var envelope eventEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		slog.Warn("dropping malformed slack payload", "err", err)
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}

	switch envelope.Type {
	case "url_verification":
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"challenge": envelope.Challenge})

	case "event_callback":
		h.handleEvent(r.Context(), envelope)
		w.WriteHeader(http.StatusOK)

	default:
		// Unknown envelope types are acknowledged and ignored.
		w.WriteHeader(http.StatusOK)
	}
}

func (h *Handler) handleEvent(ctx context.Context, envelope eventEnvelope) {
	ev := envelope.Event
	if ev.Type != "message" || ev.BotID != "" || ev.Subtype != "" || ev.Text == "" {
		return
	}

	won, err := h.cfg.Locker.Acquire(ctx, "slack:event:"+envelope.EventID, h.ttl)
	if err != nil {
		slog.Error("event lock failed", "event_id", envelope.EventID, "err", err)
		return
	}
	if !won {
		slog.Debug("duplicate event delivery skipped", "event_id", envelope.EventID)
		return
	}

	go h.answer(ev)
}

// answer runs one tutoring turn for a Slack message and posts the reply to
// the originating channel.
func (h *Handler) answer(ev event) {
	ctx, cancel := context.WithTimeout(context.Background(), answerTimeout)
	defer cancel()

	email, err := h.cfg.API.UserEmail(ctx, ev.User)
	if err != nil {
		slog.Warn("slack user lookup failed", "user", ev.User, "err", err)
		return
	}

	sc, err := h.cfg.Scopes.Resolve(ctx, email)
	if err != nil {
		slog.Warn("scope resolution failed for slack user", "student", email, "err", err)
		if errors.Is(err, scope.ErrNotEnrolled) {
			h.post(ctx, ev.Channel, "I couldn't find an active enrollment for your account.")
		}
		return
	}

	var opts []session.Option
	if h.cfg.HistoryLimit > 0 {
		opts = append(opts, session.WithHistoryLimit(h.cfg.HistoryLimit))
	}
	sess := session.New(email, sc, opts...)

	reply, err := h.cfg.Chat.Respond(ctx, chat.Request{Session: sess, Text: ev.Text})
	if err != nil {
		slog.Error("slack turn failed", "student", email, "err", err)
		h.post(ctx, ev.Channel, "I couldn't answer that just now, please try again.")
		return
	}
	h.post(ctx, ev.Channel, reply.Text)
}

func (h *Handler) post(ctx context.Context, channel, text string) {
	if err := h.cfg.API.PostMessage(ctx, channel, text); err != nil {
		slog.Error("slack post failed", "channel", channel, "err", err)
	}
}

// Sign computes the request signature for a body and timestamp. Exported for
// tests that drive the handler over httptest.
func Sign(secret string, timestamp time.Time, body []byte) (tsHeader, sigHeader string) {
	ts := strconv.FormatInt(timestamp.Unix(), 10)
	return ts, sign(secret, ts, body)
}
