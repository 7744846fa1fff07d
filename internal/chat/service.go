// Package chat implements the tutoring turn pipeline: resolve the topic of a
// student question, build the scoped prompt, obtain a completion, and
// optionally synthesize speech for the reply.
package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/praxislabs/praxis/internal/observe"
	"github.com/praxislabs/praxis/internal/sanitize"
	"github.com/praxislabs/praxis/internal/scope"
	"github.com/praxislabs/praxis/internal/session"
	"github.com/praxislabs/praxis/pkg/provider/llm"
	"github.com/praxislabs/praxis/pkg/provider/tts"
	"github.com/praxislabs/praxis/pkg/types"
)

// Request is one student question to answer within an existing session.
type Request struct {
	// Session is the student's live session. Must not be nil.
	Session *session.Session

	// Text is the student's question.
	Text string

	// WantAudio asks for a spoken rendition of the reply. Ignored when the
	// service has no TTS provider.
	WantAudio bool
}

// Reply is the assistant's answer to one question.
type Reply struct {
	// Text is the answer, as returned by the model.
	Text string

	// Audio is the spoken rendition, or nil when not requested, not
	// configured, or synthesis failed (the text still stands on its own).
	Audio *types.Audio

	// Topic is the resolved topic the answer addresses, "" when none.
	Topic string

	// Method is the stage of the topic matcher that produced Topic.
	Method scope.Method
}

// Config holds the assembly-time dependencies of a [Service].
type Config struct {
	// LLM answers questions. Required.
	LLM llm.Provider

	// TTS speaks answers. Nil disables audio replies.
	TTS tts.Provider

	// Voice is the voice profile used for all synthesis.
	Voice tts.Voice

	// Topics resolves per-turn topics. Required.
	Topics *scope.TopicResolver

	// Prefs persists per-student preferences. Nil disables persistence.
	Prefs session.PrefStore

	// Metrics records pipeline telemetry. Nil falls back to
	// [observe.DefaultMetrics].
	Metrics *observe.Metrics
}

// Service runs the turn pipeline. Safe for concurrent use across sessions;
// within one session the busy flag serializes turns.
type Service struct {
	llm     llm.Provider
	tts     tts.Provider
	voice   tts.Voice
	topics  *scope.TopicResolver
	prefs   session.PrefStore
	metrics *observe.Metrics
}

// NewService creates a Service from cfg.
func NewService(cfg Config) *Service {
	m := cfg.Metrics
	if m == nil {
		m = observe.DefaultMetrics()
	}
	return &Service{
		llm:     cfg.LLM,
		tts:     cfg.TTS,
		voice:   cfg.Voice,
		topics:  cfg.Topics,
		prefs:   cfg.Prefs,
		metrics: m,
	}
}

// formatInstruction maps a detected reply-format wish to the instruction
// appended to the system prompt.
func formatInstruction(f sanitize.Format) string {
	switch f {
	case sanitize.FormatBullets:
		return "Answer as a concise bulleted list."
	case sanitize.FormatShort:
		return "Answer in at most two sentences."
	case sanitize.FormatDetailed:
		return "Answer step by step, with enough detail to follow along."
	default:
		return ""
	}
}

// Respond answers one question. It returns [session.ErrBusy] when the
// session is already answering; the caller relays that to the student
// instead of queueing.
//
// The turn is recorded in the session history only after the model answers,
// so a failed turn can be retried verbatim.
func (s *Service) Respond(ctx context.Context, req Request) (*Reply, error) {
	sess := req.Session

	if err := sess.TryAcquire(); err != nil {
		s.metrics.BusyRejections.Add(ctx, 1)
		return nil, err
	}
	defer sess.Release()

	format := s.resolveFormat(ctx, sess.StudentEmail, req.Text)

	res := s.topics.Resolve(ctx, req.Text, sess.Scope, sess.LastTopic())
	slog.Debug("topic resolved",
		"session_id", sess.ID,
		"topic", res.Topic,
		"method", string(res.Method),
	)

	system := scope.PromptHeader(sess.Scope, res.Topic)
	if instr := formatInstruction(format); instr != "" {
		system += "\n" + instr
	}

	history := append(sess.History(), types.Turn{Role: types.RoleUser, Text: req.Text})

	start := time.Now()
	resp, err := s.llm.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: system,
		History:      history,
	})
	s.metrics.LLMDuration.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		s.metrics.RecordProviderError(ctx, s.llm.ModelID(), "llm")
		return nil, fmt.Errorf("chat: complete: %w", err)
	}
	s.metrics.RecordProviderRequest(ctx, s.llm.ModelID(), "llm", "ok")

	sess.AppendTurn(types.Turn{Role: types.RoleUser, Text: req.Text})
	sess.AppendTurn(types.Turn{Role: types.RoleAssistant, Text: resp.Content})
	if res.Topic != "" {
		sess.SetLastTopic(res.Topic)
	}
	s.persistPrefs(ctx, sess.StudentEmail, res.Topic, format)
	s.metrics.RecordTurn(ctx, string(res.Method))

	reply := &Reply{
		Text:   resp.Content,
		Topic:  res.Topic,
		Method: res.Method,
	}

	if req.WantAudio && s.tts != nil {
		reply.Audio = s.synthesize(ctx, resp.Content)
	}
	return reply, nil
}

// resolveFormat returns the format for this turn: an explicit wish in the
// message wins and is persisted; otherwise the stored preference applies.
func (s *Service) resolveFormat(ctx context.Context, email, text string) sanitize.Format {
	if f := sanitize.DetectFormat(text); f != sanitize.FormatNone {
		return f
	}
	if s.prefs == nil {
		return sanitize.FormatNone
	}
	prefs, err := s.prefs.Get(ctx, email)
	if err != nil {
		if !errors.Is(err, session.ErrNoPreferences) {
			slog.Warn("preference lookup failed", "email", email, "error", err)
		}
		return sanitize.FormatNone
	}
	return prefs.Format
}

// persistPrefs stores the turn's outcome for the student's next visit.
// Failures are logged; losing a preference never fails the turn.
func (s *Service) persistPrefs(ctx context.Context, email, topic string, format sanitize.Format) {
	if s.prefs == nil {
		return
	}
	prefs, err := s.prefs.Get(ctx, email)
	if err != nil && !errors.Is(err, session.ErrNoPreferences) {
		slog.Warn("preference lookup failed", "email", email, "error", err)
		return
	}
	if topic != "" {
		prefs.LastTopic = topic
	}
	if format != sanitize.FormatNone {
		prefs.Format = format
	}
	if err := s.prefs.Put(ctx, email, prefs); err != nil {
		slog.Warn("preference write failed", "email", email, "error", err)
	}
}

// synthesize renders answer text as speech. Markdown and URLs are stripped
// first; nobody wants to hear asterisks read aloud. A synthesis failure
// downgrades the reply to text only.
func (s *Service) synthesize(ctx context.Context, text string) *types.Audio {
	start := time.Now()
	audio, err := s.tts.Synthesize(ctx, sanitize.ForSpeech(text), s.voice)
	s.metrics.TTSDuration.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		s.metrics.RecordProviderError(ctx, "tts", "tts")
		slog.Warn("speech synthesis failed, replying with text only", "error", err)
		return nil
	}
	s.metrics.RecordProviderRequest(ctx, "tts", "tts", "ok")
	return audio
}
