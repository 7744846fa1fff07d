package client

import "github.com/praxislabs/praxis/pkg/types"

// Frame type names of the session protocol.
const (
	msgStart         = "start"
	msgUserText      = "user_text"
	msgStop          = "stop"
	msgPing          = "ping"
	msgReady         = "ready"
	msgAssistantText = "assistant_text"
	msgError         = "error"
	msgPong          = "pong"
)

// clientFrame is a client→server message.
type clientFrame struct {
	Type         string       `json:"type"`
	StudentEmail string       `json:"student_email,omitempty"`
	LMSKey       string       `json:"lmsKey,omitempty"`
	History      []types.Turn `json:"history,omitempty"`
	Text         string       `json:"text,omitempty"`
	RequestID    string       `json:"requestId,omitempty"`
	WantAudio    bool         `json:"wantAudio,omitempty"`
}

// serverFrame is a server→client message.
type serverFrame struct {
	Type      string `json:"type"`
	SessionID string `json:"sessionId,omitempty"`
	Text      string `json:"text,omitempty"`
	RequestID string `json:"requestId,omitempty"`
	Audio     string `json:"audio,omitempty"`
	AudioMime string `json:"audioMime,omitempty"`
	Error     string `json:"error,omitempty"`
}
