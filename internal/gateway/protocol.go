// Package gateway is the HTTP and WebSocket surface of Praxis. It owns the
// chi router, the WebSocket session protocol, the one-shot chat endpoint,
// the calendar admin endpoints, and the Slack events mount.
package gateway

import (
	"encoding/base64"

	"github.com/praxislabs/praxis/pkg/types"
)

// Client→server message types.
const (
	// MsgStart opens and authenticates a session. First message on a socket.
	MsgStart = "start"

	// MsgUserText submits one recognized utterance.
	MsgUserText = "user_text"

	// MsgStop ends the session; the server closes the socket.
	MsgStop = "stop"

	// MsgPing is a keepalive probe.
	MsgPing = "ping"
)

// Server→client message types.
const (
	// MsgReady acknowledges a successful start.
	MsgReady = "ready"

	// MsgAssistantText carries a model reply, optionally with speech audio.
	MsgAssistantText = "assistant_text"

	// MsgError carries a recoverable or fatal failure description.
	MsgError = "error"

	// MsgPong answers a ping.
	MsgPong = "pong"
)

// ClientMessage is the envelope for every client→server frame. Type selects
// which of the remaining fields are meaningful.
type ClientMessage struct {
	Type string `json:"type"`

	// start fields.
	StudentEmail string       `json:"student_email,omitempty"`
	LMSKey       string       `json:"lmsKey,omitempty"`
	History      []types.Turn `json:"history,omitempty"`

	// user_text fields.
	Text      string `json:"text,omitempty"`
	RequestID string `json:"requestId,omitempty"`

	// WantAudio asks for synthesized speech on replies. Defaults to false
	// so text-only clients never pay for TTS.
	WantAudio bool `json:"wantAudio,omitempty"`
}

// ServerMessage is the envelope for every server→client frame.
type ServerMessage struct {
	Type string `json:"type"`

	// ready fields.
	SessionID string `json:"sessionId,omitempty"`

	// assistant_text fields. Audio is base64 of the raw encoded bytes.
	Text      string `json:"text,omitempty"`
	RequestID string `json:"requestId,omitempty"`
	Audio     string `json:"audio,omitempty"`
	AudioMime string `json:"audioMime,omitempty"`

	// error fields.
	Error string `json:"error,omitempty"`
}

// assistantMessage builds an assistant_text frame, base64-encoding the audio
// payload when present.
func assistantMessage(requestID, text string, audio *types.Audio) ServerMessage {
	msg := ServerMessage{
		Type:      MsgAssistantText,
		Text:      text,
		RequestID: requestID,
	}
	if audio != nil {
		msg.Audio = base64.StdEncoding.EncodeToString(audio.Data)
		msg.AudioMime = audio.MimeType
	}
	return msg
}

// errorMessage builds an error frame.
func errorMessage(text string) ServerMessage {
	return ServerMessage{Type: MsgError, Error: text}
}
