package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// Silence timeout bounds. Values outside this band feel either jumpy or
// sluggish to speakers, so the constructor clamps into it.
const (
	defaultSilenceTimeout = 2 * time.Second
	minSilenceTimeout     = 1500 * time.Millisecond
	maxSilenceTimeout     = 2500 * time.Millisecond
)

// ErrNoSpeech is reported by recognizers when the microphone heard nothing.
// Before any speech has accumulated the listener restarts silently; after
// speech it is treated as end of utterance.
var ErrNoSpeech = errors.New("client: no speech detected")

// PTTState is the push-to-talk listening state.
type PTTState int

const (
	// StateIdle means the microphone is off.
	StateIdle PTTState = iota

	// StateListening means the recognizer is running but nothing has been
	// heard yet.
	StateListening

	// StateAccumulating means speech fragments are being collected.
	StateAccumulating

	// StateFinalizing means the silence timeout fired and the utterance is
	// being flushed.
	StateFinalizing
)

// String returns the state name for logs.
func (s PTTState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateListening:
		return "listening"
	case StateAccumulating:
		return "accumulating"
	case StateFinalizing:
		return "finalizing"
	default:
		return fmt.Sprintf("PTTState(%d)", int(s))
	}
}

// Recognizer converts microphone input to text. Start begins a listening
// session and invokes emit for every recognized fragment or error until Stop
// is called. Implementations wrap the platform speech API.
type Recognizer interface {
	Start(ctx context.Context, emit func(text string, err error)) error
	Stop() error
}

// PushToTalk drives one microphone button: press starts listening, speech
// fragments accumulate, and a stretch of silence finalizes the utterance and
// hands it to the configured callback.
type PushToTalk struct {
	rec         Recognizer
	silence     time.Duration
	onUtterance func(text string)

	mu    sync.Mutex
	state PTTState
	parts []string
	timer *time.Timer
	ctx   context.Context
}

// PTTOption is a functional option for [NewPushToTalk].
type PTTOption func(*PushToTalk)

// WithSilenceTimeout overrides how long a pause ends the utterance. Clamped
// to [1.5s, 2.5s].
func WithSilenceTimeout(d time.Duration) PTTOption {
	return func(p *PushToTalk) {
		if d < minSilenceTimeout {
			d = minSilenceTimeout
		}
		if d > maxSilenceTimeout {
			d = maxSilenceTimeout
		}
		p.silence = d
	}
}

// NewPushToTalk creates the listener. onUtterance receives each finalized
// utterance; it is called outside the internal lock.
func NewPushToTalk(rec Recognizer, onUtterance func(string), opts ...PTTOption) *PushToTalk {
	p := &PushToTalk{
		rec:         rec,
		silence:     defaultSilenceTimeout,
		onUtterance: onUtterance,
		state:       StateIdle,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// State returns the current listening state.
func (p *PushToTalk) State() PTTState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Press starts a listening session. Pressing while already listening is a
// no-op.
func (p *PushToTalk) Press(ctx context.Context) error {
	p.mu.Lock()
	if p.state != StateIdle {
		p.mu.Unlock()
		return nil
	}
	p.state = StateListening
	p.parts = nil
	p.ctx = ctx
	p.mu.Unlock()

	if err := p.rec.Start(ctx, p.handleResult); err != nil {
		p.mu.Lock()
		p.state = StateIdle
		p.mu.Unlock()
		return fmt.Errorf("client: start recognizer: %w", err)
	}
	return nil
}

// Release cancels the session without emitting anything.
func (p *PushToTalk) Release() {
	p.mu.Lock()
	if p.state == StateIdle {
		p.mu.Unlock()
		return
	}
	p.stopTimerLocked()
	p.state = StateIdle
	p.parts = nil
	p.mu.Unlock()

	if err := p.rec.Stop(); err != nil {
		slog.Debug("recognizer stop failed", "err", err)
	}
}

// handleResult is the recognizer callback.
func (p *PushToTalk) handleResult(text string, err error) {
	if err != nil {
		p.handleError(err)
		return
	}
	if strings.TrimSpace(text) == "" {
		return
	}

	p.mu.Lock()
	if p.state != StateListening && p.state != StateAccumulating {
		p.mu.Unlock()
		return
	}
	p.state = StateAccumulating
	p.parts = append(p.parts, strings.TrimSpace(text))
	p.resetTimerLocked()
	p.mu.Unlock()
}

func (p *PushToTalk) handleError(err error) {
	p.mu.Lock()
	state := p.state
	heardSpeech := len(p.parts) > 0
	p.mu.Unlock()

	if state == StateIdle || state == StateFinalizing {
		return
	}

	if errors.Is(err, ErrNoSpeech) && !heardSpeech {
		// Nothing heard yet: restart quietly so a slow starter is not
		// punished with an error message.
		slog.Debug("no speech yet, restarting recognizer")
		if stopErr := p.rec.Stop(); stopErr != nil {
			slog.Debug("recognizer stop failed", "err", stopErr)
		}
		p.mu.Lock()
		ctx := p.ctx
		p.mu.Unlock()
		if startErr := p.rec.Start(ctx, p.handleResult); startErr != nil {
			slog.Warn("recognizer restart failed", "err", startErr)
			p.abort()
		}
		return
	}

	if errors.Is(err, ErrNoSpeech) {
		// Silence after speech: the recognizer beat our timer to it.
		p.finalize()
		return
	}

	slog.Warn("recognition error, ending listening session", "err", err)
	p.abort()
}

// abort drops the session without emitting.
func (p *PushToTalk) abort() {
	p.mu.Lock()
	p.stopTimerLocked()
	p.state = StateIdle
	p.parts = nil
	p.mu.Unlock()

	if err := p.rec.Stop(); err != nil {
		slog.Debug("recognizer stop failed", "err", err)
	}
}

// finalize flushes the accumulated utterance and returns to idle.
func (p *PushToTalk) finalize() {
	p.mu.Lock()
	if p.state != StateAccumulating {
		p.mu.Unlock()
		return
	}
	p.state = StateFinalizing
	p.stopTimerLocked()
	utterance := strings.Join(p.parts, " ")
	p.parts = nil
	p.mu.Unlock()

	if err := p.rec.Stop(); err != nil {
		slog.Debug("recognizer stop failed", "err", err)
	}

	p.mu.Lock()
	p.state = StateIdle
	p.mu.Unlock()

	if utterance != "" && p.onUtterance != nil {
		p.onUtterance(utterance)
	}
}

// resetTimerLocked restarts the silence countdown. Caller holds p.mu.
func (p *PushToTalk) resetTimerLocked() {
	if p.timer != nil {
		p.timer.Stop()
	}
	p.timer = time.AfterFunc(p.silence, p.finalize)
}

// stopTimerLocked stops the countdown. Caller holds p.mu.
func (p *PushToTalk) stopTimerLocked() {
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
}
