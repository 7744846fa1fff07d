// Package mock provides a test double for the tts.Provider interface.
package mock

import (
	"context"
	"sync"

	"github.com/praxislabs/praxis/pkg/provider/tts"
	"github.com/praxislabs/praxis/pkg/types"
)

// SynthesizeCall records a single invocation of Synthesize.
type SynthesizeCall struct {
	Text  string
	Voice tts.Voice
}

// Provider is a mock implementation of tts.Provider. Zero values cause
// Synthesize to return a small fixed payload; set Err to inject failures.
type Provider struct {
	mu sync.Mutex

	// Audio is returned by Synthesize. When nil, a placeholder payload with
	// MIME type "audio/mpeg" is returned.
	Audio *types.Audio

	// Err, if non-nil, is returned as the error from Synthesize.
	Err error

	// SynthesizeCalls records every invocation in order.
	SynthesizeCalls []SynthesizeCall
}

// Compile-time assertion.
var _ tts.Provider = (*Provider)(nil)

// Synthesize implements tts.Provider.
func (p *Provider) Synthesize(_ context.Context, text string, voice tts.Voice) (*types.Audio, error) {
	p.mu.Lock()
	p.SynthesizeCalls = append(p.SynthesizeCalls, SynthesizeCall{Text: text, Voice: voice})
	audio, err := p.Audio, p.Err
	p.mu.Unlock()

	if err != nil {
		return nil, err
	}
	if audio == nil {
		audio = &types.Audio{Data: []byte("mock-audio"), MimeType: "audio/mpeg"}
	}
	return audio, nil
}

// Calls returns a snapshot of recorded invocations.
func (p *Provider) Calls() []SynthesizeCall {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]SynthesizeCall, len(p.SynthesizeCalls))
	copy(out, p.SynthesizeCalls)
	return out
}
