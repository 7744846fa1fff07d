package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/praxislabs/praxis/internal/sanitize"
)

// ErrNoPreferences is returned by [PrefStore.Get] when a student has no
// stored preferences yet.
var ErrNoPreferences = errors.New("session: no stored preferences")

// Preferences are the durable per-student settings that survive reconnects:
// the last topic (so a returning student can pick up where they left off) and
// the reply format they last asked for.
type Preferences struct {
	LastTopic string
	Format    sanitize.Format
	UpdatedAt time.Time
}

// PrefStore persists Preferences keyed by student email.
type PrefStore interface {
	// Get returns the stored preferences for email, or ErrNoPreferences.
	Get(ctx context.Context, email string) (Preferences, error)

	// Put stores prefs for email, replacing any previous value.
	Put(ctx context.Context, email string, prefs Preferences) error
}

// MemoryPrefStore is an in-process PrefStore for tests and single-node
// deployments without a database. Safe for concurrent use.
type MemoryPrefStore struct {
	mu    sync.RWMutex
	prefs map[string]Preferences
}

// Compile-time interface check.
var _ PrefStore = (*MemoryPrefStore)(nil)

// NewMemoryPrefStore creates an empty MemoryPrefStore.
func NewMemoryPrefStore() *MemoryPrefStore {
	return &MemoryPrefStore{prefs: make(map[string]Preferences)}
}

// Get implements [PrefStore].
func (m *MemoryPrefStore) Get(_ context.Context, email string) (Preferences, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.prefs[email]
	if !ok {
		return Preferences{}, ErrNoPreferences
	}
	return p, nil
}

// Put implements [PrefStore].
func (m *MemoryPrefStore) Put(_ context.Context, email string, prefs Preferences) error {
	if prefs.UpdatedAt.IsZero() {
		prefs.UpdatedAt = time.Now().UTC()
	}
	m.mu.Lock()
	m.prefs[email] = prefs
	m.mu.Unlock()
	return nil
}
