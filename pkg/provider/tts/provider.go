// Package tts defines the Provider interface for Text-to-Speech backends.
//
// A TTS provider wraps a speech synthesis service (e.g., Google Cloud TTS or
// the OpenAI speech endpoint) and presents a uniform batch interface: one
// utterance in, one encoded audio payload out. Praxis synthesizes a reply only
// after the full LLM response has been sanitized for speech, so a streaming
// interface would buy nothing here.
//
// Implementations must be safe for concurrent use; multiple sessions may
// synthesize in parallel.
package tts

import (
	"context"

	"github.com/praxislabs/praxis/pkg/types"
)

// Voice describes the requested synthesis voice.
type Voice struct {
	// ID is the provider-specific voice identifier (e.g., "en-US-Neural2-C"
	// for Google, "alloy" for OpenAI). Empty selects the provider default.
	ID string

	// LanguageCode is a BCP-47 language tag (e.g., "en-US"). Providers that
	// derive language from the voice ID may ignore it.
	LanguageCode string

	// SpeakingRate adjusts speaking speed (0.25–4.0, 0 = provider default).
	SpeakingRate float64
}

// Provider is the abstraction over any TTS backend.
type Provider interface {
	// Synthesize converts text into encoded audio using the given voice.
	// The text is expected to be already sanitized for speech (no markdown,
	// no URLs). Returns an error if the vendor call fails or ctx is cancelled.
	Synthesize(ctx context.Context, text string, voice Voice) (*types.Audio, error)
}
