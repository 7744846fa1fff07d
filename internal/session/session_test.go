package session

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/praxislabs/praxis/internal/sanitize"
	"github.com/praxislabs/praxis/pkg/types"
)

func TestBusyFlag(t *testing.T) {
	s := New("kim@example.com", types.Scope{})

	if err := s.TryAcquire(); err != nil {
		t.Fatalf("first TryAcquire() error = %v", err)
	}
	if err := s.TryAcquire(); !errors.Is(err, ErrBusy) {
		t.Fatalf("second TryAcquire() error = %v, want ErrBusy", err)
	}
	if !s.Busy() {
		t.Error("Busy() = false while acquired")
	}

	s.Release()
	if err := s.TryAcquire(); err != nil {
		t.Errorf("TryAcquire() after Release error = %v", err)
	}
}

func TestHistoryWindow(t *testing.T) {
	s := New("kim@example.com", types.Scope{}, WithHistoryLimit(4))

	for i := 0; i < 10; i++ {
		s.AppendTurn(types.Turn{Role: types.RoleUser, Text: fmt.Sprintf("q%d", i)})
	}

	got := s.History()
	if len(got) != 4 {
		t.Fatalf("len(History()) = %d, want 4", len(got))
	}
	if got[0].Text != "q6" || got[3].Text != "q9" {
		t.Errorf("History() = %v, want q6..q9", got)
	}
}

func TestSeedHistoryAppliesLimit(t *testing.T) {
	s := New("kim@example.com", types.Scope{}, WithHistoryLimit(2))

	turns := []types.Turn{
		{Role: types.RoleUser, Text: "a"},
		{Role: types.RoleAssistant, Text: "b"},
		{Role: types.RoleUser, Text: "c"},
	}
	s.SeedHistory(turns)

	got := s.History()
	if len(got) != 2 || got[0].Text != "b" || got[1].Text != "c" {
		t.Errorf("History() after seed = %v, want [b c]", got)
	}

	// The session must not alias the caller's slice.
	turns[1].Text = "mutated"
	if s.History()[0].Text != "b" {
		t.Error("SeedHistory aliased the caller's slice")
	}
}

func TestHistoryReturnsCopy(t *testing.T) {
	s := New("kim@example.com", types.Scope{})
	s.AppendTurn(types.Turn{Role: types.RoleUser, Text: "original"})

	s.History()[0].Text = "mutated"
	if s.History()[0].Text != "original" {
		t.Error("History() exposed internal state")
	}
}

func TestRequestStaleness(t *testing.T) {
	s := New("kim@example.com", types.Scope{})

	s.TrackRequest("req-1")
	s.TrackRequest("req-2")

	if s.IsCurrentRequest("req-1") {
		t.Error("req-1 should be stale after req-2 arrived")
	}
	if !s.IsCurrentRequest("req-2") {
		t.Error("req-2 should be current")
	}
}

func TestRegistryExplicitRemoval(t *testing.T) {
	r := NewRegistry()
	a := New("a@example.com", types.Scope{})
	b := New("b@example.com", types.Scope{})

	r.Add(a)
	r.Add(b)
	if r.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", r.Len())
	}

	got, ok := r.Get(a.ID)
	if !ok || got != a {
		t.Fatalf("Get(%s) = %v, %v", a.ID, got, ok)
	}

	r.Remove(a.ID)
	if _, ok := r.Get(a.ID); ok {
		t.Error("session still present after Remove")
	}
	if r.Len() != 1 {
		t.Errorf("Len() = %d after removal, want 1", r.Len())
	}

	// Removing twice is a no-op.
	r.Remove(a.ID)
	if r.Len() != 1 {
		t.Errorf("Len() = %d after double removal, want 1", r.Len())
	}
}

func TestMemoryPrefStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryPrefStore()

	if _, err := store.Get(ctx, "kim@example.com"); !errors.Is(err, ErrNoPreferences) {
		t.Fatalf("Get() on empty store error = %v, want ErrNoPreferences", err)
	}

	prefs := Preferences{LastTopic: "kanban", Format: sanitize.FormatShort}
	if err := store.Put(ctx, "kim@example.com", prefs); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	got, err := store.Get(ctx, "kim@example.com")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.LastTopic != "kanban" || got.Format != sanitize.FormatShort {
		t.Errorf("Get() = %+v", got)
	}
	if got.UpdatedAt.IsZero() {
		t.Error("Put() should stamp UpdatedAt")
	}
}
