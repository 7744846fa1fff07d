package client

import (
	"errors"
	"sync"
	"testing"

	"github.com/praxislabs/praxis/pkg/types"
)

// fakePlayer records play/stop calls.
type fakePlayer struct {
	mu      sync.Mutex
	playErr error
	plays   []string
	stops   int
}

func (p *fakePlayer) Play(audio *types.Audio) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.playErr != nil {
		return p.playErr
	}
	p.plays = append(p.plays, string(audio.Data))
	return nil
}

func (p *fakePlayer) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stops++
}

func TestPlaybackGateBargesIn(t *testing.T) {
	player := &fakePlayer{}
	gate := NewPlaybackGate(player)

	if err := gate.Play(&types.Audio{Data: []byte("first")}); err != nil {
		t.Fatalf("Play() error = %v", err)
	}
	if player.stops != 0 {
		t.Errorf("stops = %d after first play, want 0", player.stops)
	}

	// A second payload while the first is playing stops it first.
	if err := gate.Play(&types.Audio{Data: []byte("second")}); err != nil {
		t.Fatalf("Play() error = %v", err)
	}
	if player.stops != 1 {
		t.Errorf("stops = %d, want 1", player.stops)
	}
	if len(player.plays) != 2 || player.plays[1] != "second" {
		t.Errorf("plays = %v", player.plays)
	}
}

func TestPlaybackGateDoneClearsActiveSource(t *testing.T) {
	player := &fakePlayer{}
	gate := NewPlaybackGate(player)

	if err := gate.Play(&types.Audio{Data: []byte("first")}); err != nil {
		t.Fatalf("Play() error = %v", err)
	}
	gate.Done()

	// The first payload finished; no barge-in needed for the next.
	if err := gate.Play(&types.Audio{Data: []byte("second")}); err != nil {
		t.Fatalf("Play() error = %v", err)
	}
	if player.stops != 0 {
		t.Errorf("stops = %d, want 0", player.stops)
	}
}

func TestPlaybackGateStopIsIdempotent(t *testing.T) {
	player := &fakePlayer{}
	gate := NewPlaybackGate(player)

	gate.Stop()
	if player.stops != 0 {
		t.Errorf("Stop() on idle gate reached the player")
	}

	if err := gate.Play(&types.Audio{Data: []byte("first")}); err != nil {
		t.Fatalf("Play() error = %v", err)
	}
	gate.Stop()
	gate.Stop()
	if player.stops != 1 {
		t.Errorf("stops = %d, want 1", player.stops)
	}
}

func TestPlaybackGatePlayErrorLeavesGateClear(t *testing.T) {
	player := &fakePlayer{playErr: errors.New("device busy")}
	gate := NewPlaybackGate(player)

	if err := gate.Play(&types.Audio{Data: []byte("first")}); err == nil {
		t.Fatalf("Play() should surface the player error")
	}

	player.playErr = nil
	if err := gate.Play(&types.Audio{Data: []byte("second")}); err != nil {
		t.Fatalf("Play() error = %v", err)
	}
	if player.stops != 0 {
		t.Errorf("failed play counted as an active source")
	}
}
