package resilience

import (
	"context"

	"github.com/praxislabs/praxis/pkg/provider/tts"
	"github.com/praxislabs/praxis/pkg/types"
)

// TTSFallback implements [tts.Provider] with automatic failover across
// multiple synthesis backends. Each backend has its own circuit breaker.
type TTSFallback struct {
	group *FallbackGroup[tts.Provider]
}

// Compile-time interface assertion.
var _ tts.Provider = (*TTSFallback)(nil)

// NewTTSFallback creates a [TTSFallback] with primary as the preferred
// backend.
func NewTTSFallback(primary tts.Provider, primaryName string, cfg FallbackConfig) *TTSFallback {
	return &TTSFallback{
		group: NewFallbackGroup(primary, primaryName, cfg),
	}
}

// AddFallback registers an additional TTS provider as a fallback.
func (f *TTSFallback) AddFallback(name string, provider tts.Provider) {
	f.group.AddFallback(name, provider)
}

// Synthesize renders text with the first healthy provider. A fallback
// provider may produce audio in a different encoding than the primary; the
// returned MIME type reflects whichever provider answered.
func (f *TTSFallback) Synthesize(ctx context.Context, text string, voice tts.Voice) (*types.Audio, error) {
	return ExecuteWithResult(f.group, func(p tts.Provider) (*types.Audio, error) {
		return p.Synthesize(ctx, text, voice)
	})
}
