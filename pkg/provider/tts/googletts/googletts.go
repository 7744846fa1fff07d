// Package googletts provides a Google Cloud Text-to-Speech backed TTS provider
// using the REST text:synthesize endpoint. It implements the tts.Provider
// interface.
//
// The synthesize endpoint operates in batch mode: one HTTP call per utterance,
// returning the full encoded audio as a base64 string in the JSON response.
package googletts

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/praxislabs/praxis/pkg/provider/tts"
	"github.com/praxislabs/praxis/pkg/types"
)

// Compile-time interface assertion.
var _ tts.Provider = (*Provider)(nil)

const (
	defaultBaseURL  = "https://texttospeech.googleapis.com"
	defaultVoice    = "en-US-Neural2-C"
	defaultLanguage = "en-US"
	defaultEncoding = "MP3"
	defaultTimeout  = 10 * time.Second

	synthesizeEndpoint = "/v1/text:synthesize"
)

// mimeByEncoding maps Cloud TTS audio encodings to MIME types.
var mimeByEncoding = map[string]string{
	"MP3":      "audio/mpeg",
	"OGG_OPUS": "audio/ogg",
	"LINEAR16": "audio/L16",
}

// Option is a functional option for configuring the Provider.
type Option func(*Provider)

// WithBaseURL overrides the API base URL. Primarily used in tests to point at
// a local mock server.
func WithBaseURL(url string) Option {
	return func(p *Provider) { p.baseURL = url }
}

// WithAudioEncoding sets the output encoding ("MP3", "OGG_OPUS", "LINEAR16").
func WithAudioEncoding(encoding string) Option {
	return func(p *Provider) { p.encoding = encoding }
}

// WithTimeout sets the per-request HTTP timeout. Default: 10s.
func WithTimeout(d time.Duration) Option {
	return func(p *Provider) { p.httpClient.Timeout = d }
}

// Provider implements tts.Provider backed by the Google Cloud TTS REST API.
type Provider struct {
	apiKey     string
	baseURL    string
	encoding   string
	httpClient *http.Client
}

// New creates a new Google Cloud TTS Provider. apiKey must be non-empty.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("googletts: apiKey must not be empty")
	}
	p := &Provider{
		apiKey:     apiKey,
		baseURL:    defaultBaseURL,
		encoding:   defaultEncoding,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// ---- request/response types ----

type synthesizeRequest struct {
	Input       synthesisInput  `json:"input"`
	Voice       voiceSelection  `json:"voice"`
	AudioConfig audioConfig     `json:"audioConfig"`
}

type synthesisInput struct {
	Text string `json:"text"`
}

type voiceSelection struct {
	LanguageCode string `json:"languageCode"`
	Name         string `json:"name,omitempty"`
}

type audioConfig struct {
	AudioEncoding string  `json:"audioEncoding"`
	SpeakingRate  float64 `json:"speakingRate,omitempty"`
}

type synthesizeResponse struct {
	AudioContent string `json:"audioContent"`
}

type errorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Synthesize implements tts.Provider.
func (p *Provider) Synthesize(ctx context.Context, text string, voice tts.Voice) (*types.Audio, error) {
	if text == "" {
		return nil, errors.New("googletts: text must not be empty")
	}

	name := voice.ID
	if name == "" {
		name = defaultVoice
	}
	lang := voice.LanguageCode
	if lang == "" {
		lang = defaultLanguage
	}

	reqBody := synthesizeRequest{
		Input: synthesisInput{Text: text},
		Voice: voiceSelection{LanguageCode: lang, Name: name},
		AudioConfig: audioConfig{
			AudioEncoding: p.encoding,
			SpeakingRate:  voice.SpeakingRate,
		},
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("googletts: marshal request: %w", err)
	}

	url := p.baseURL + synthesizeEndpoint + "?key=" + p.apiKey
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("googletts: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("googletts: synthesize request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("googletts: read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr errorResponse
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error.Message != "" {
			return nil, fmt.Errorf("googletts: synthesize failed (%d): %s", resp.StatusCode, apiErr.Error.Message)
		}
		return nil, fmt.Errorf("googletts: synthesize failed with status %d", resp.StatusCode)
	}

	var out synthesizeResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("googletts: decode response: %w", err)
	}
	if out.AudioContent == "" {
		return nil, errors.New("googletts: response contained no audio content")
	}

	data, err := base64.StdEncoding.DecodeString(out.AudioContent)
	if err != nil {
		return nil, fmt.Errorf("googletts: decode audio content: %w", err)
	}

	mime := mimeByEncoding[p.encoding]
	if mime == "" {
		mime = "application/octet-stream"
	}
	return &types.Audio{Data: data, MimeType: mime}, nil
}
