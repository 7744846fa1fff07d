// Package session holds the per-connection conversational state of the
// tutoring assistant: the bounded turn history, the busy flag that serializes
// model calls, request staleness tracking, and the registry of live sessions.
package session

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/praxislabs/praxis/pkg/types"
)

// ErrBusy is returned when a new question arrives while the assistant is
// still answering the previous one. The caller surfaces it to the student
// rather than queueing the question.
var ErrBusy = errors.New("session: still responding to the previous question")

// DefaultHistoryLimit bounds how many turns a session keeps. Older turns are
// dropped from the front; the scope header carries the durable context, so
// deep history adds token cost without adding much signal.
const DefaultHistoryLimit = 12

// Session is the state of one connected student. All methods are safe for
// concurrent use; the websocket read loop and the answering goroutine touch
// the same session.
type Session struct {
	// ID uniquely identifies this connection. A student who reconnects gets a
	// fresh Session with a fresh ID.
	ID string

	// StudentEmail is the LMS identity the session was started with.
	StudentEmail string

	// Scope is the student's resolved enrollment scope, fixed at handshake.
	Scope types.Scope

	// StartedAt is when the handshake completed.
	StartedAt time.Time

	mu            sync.Mutex
	busy          bool
	history       []types.Turn
	historyLimit  int
	lastRequestID string
	lastTopic     string
}

// Option customizes a Session at construction.
type Option func(*Session)

// WithHistoryLimit overrides [DefaultHistoryLimit]. Values < 1 are ignored.
func WithHistoryLimit(n int) Option {
	return func(s *Session) {
		if n >= 1 {
			s.historyLimit = n
		}
	}
}

// New creates a Session for the given student with a generated ID.
func New(email string, scope types.Scope, opts ...Option) *Session {
	s := &Session{
		ID:           uuid.NewString(),
		StudentEmail: email,
		Scope:        scope,
		StartedAt:    time.Now().UTC(),
		historyLimit: DefaultHistoryLimit,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// TryAcquire marks the session busy. It returns ErrBusy when an answer is
// already in flight; otherwise the caller owns the busy flag and must call
// [Session.Release] when the answer (or its failure) has been delivered.
func (s *Session) TryAcquire() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.busy {
		return ErrBusy
	}
	s.busy = true
	return nil
}

// Release clears the busy flag.
func (s *Session) Release() {
	s.mu.Lock()
	s.busy = false
	s.mu.Unlock()
}

// Busy reports whether an answer is currently in flight.
func (s *Session) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.busy
}

// AppendTurn adds a turn to the history, dropping the oldest turns beyond the
// history limit.
func (s *Session) AppendTurn(turn types.Turn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, turn)
	if excess := len(s.history) - s.historyLimit; excess > 0 {
		s.history = append(s.history[:0:0], s.history[excess:]...)
	}
}

// SeedHistory replaces the history wholesale, applying the same limit. Used
// when a reconnecting client replays its transcript into a fresh session.
func (s *Session) SeedHistory(turns []types.Turn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if excess := len(turns) - s.historyLimit; excess > 0 {
		turns = turns[excess:]
	}
	s.history = append([]types.Turn(nil), turns...)
}

// History returns a copy of the current turn history, oldest first.
func (s *Session) History() []types.Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]types.Turn(nil), s.history...)
}

// TrackRequest records id as the most recent request from this client.
func (s *Session) TrackRequest(id string) {
	s.mu.Lock()
	s.lastRequestID = id
	s.mu.Unlock()
}

// IsCurrentRequest reports whether id is still the most recent request.
// Answers for superseded requests are discarded instead of delivered.
func (s *Session) IsCurrentRequest(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return id == s.lastRequestID
}

// SetLastTopic records the most recently resolved topic for carryover.
func (s *Session) SetLastTopic(topic string) {
	s.mu.Lock()
	s.lastTopic = topic
	s.mu.Unlock()
}

// LastTopic returns the most recently resolved topic, or "".
func (s *Session) LastTopic() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastTopic
}
