package client

import (
	"sync"

	"github.com/praxislabs/praxis/pkg/types"
)

// Player starts and stops audio output. Implementations wrap whatever audio
// backend the host application uses.
type Player interface {
	// Play begins playing the payload and returns without waiting for it to
	// finish.
	Play(audio *types.Audio) error

	// Stop halts the current playback, if any.
	Stop()
}

// PlaybackGate enforces a single active audio source: starting a new payload
// stops whatever is currently playing, so a fresh answer barges in over an
// old one instead of overlapping it.
type PlaybackGate struct {
	player Player

	mu      sync.Mutex
	playing bool
}

// NewPlaybackGate wraps a player with the single-source rule.
func NewPlaybackGate(p Player) *PlaybackGate {
	return &PlaybackGate{player: p}
}

// Play stops any active playback and starts the new payload.
func (g *PlaybackGate) Play(audio *types.Audio) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.playing {
		g.player.Stop()
	}
	if err := g.player.Play(audio); err != nil {
		g.playing = false
		return err
	}
	g.playing = true
	return nil
}

// Stop halts the active playback, if any.
func (g *PlaybackGate) Stop() {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.playing {
		g.player.Stop()
		g.playing = false
	}
}

// Done tells the gate the current payload finished on its own. Players call
// this from their completion callback.
func (g *PlaybackGate) Done() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.playing = false
}
