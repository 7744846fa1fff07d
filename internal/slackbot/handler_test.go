package slackbot

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/praxislabs/praxis/internal/chat"
	"github.com/praxislabs/praxis/internal/observe"
	"github.com/praxislabs/praxis/internal/scope"
	enrollmock "github.com/praxislabs/praxis/pkg/provider/enrollment/mock"
	"github.com/praxislabs/praxis/pkg/provider/llm"
	llmmock "github.com/praxislabs/praxis/pkg/provider/llm/mock"
)

const testSecret = "test-signing-secret"

type postCall struct {
	Channel string
	Text    string
}

// fakeAPI is a SlackAPI double recording posts.
type fakeAPI struct {
	mu       sync.Mutex
	email    string
	emailErr error
	posts    []postCall
}

func (f *fakeAPI) PostMessage(_ context.Context, channel, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.posts = append(f.posts, postCall{Channel: channel, Text: text})
	return nil
}

func (f *fakeAPI) UserEmail(_ context.Context, _ string) (string, error) {
	return f.email, f.emailErr
}

func (f *fakeAPI) postCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.posts)
}

func (f *fakeAPI) lastPost(t *testing.T) postCall {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.posts) == 0 {
		t.Fatalf("no messages posted")
	}
	return f.posts[len(f.posts)-1]
}

func newTestHandler(t *testing.T) (*Handler, *fakeAPI) {
	t.Helper()

	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(sdkmetric.NewManualReader()))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	m, err := observe.NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}

	enroll := &enrollmock.Client{Payload: json.RawMessage(`{
		"enrolledCourses": [{"courseName": "Agile Fundamentals", "topics": ["scrum"]}]
	}`)}
	svc := chat.NewService(chat.Config{
		LLM:     &llmmock.Provider{CompleteResponse: &llm.CompletionResponse{Content: "Scrum is a framework."}},
		Topics:  scope.NewTopicResolver(scope.TopicConfig{}, nil),
		Metrics: m,
	})

	api := &fakeAPI{email: "kim@example.com"}
	h := NewHandler(Config{
		SigningSecret: testSecret,
		API:           api,
		Scopes:        scope.NewResolver(enroll),
		Chat:          svc,
		Locker:        NewMemoryLocker(),
	})
	return h, api
}

// signedRequest builds a POST /slack/events request with valid headers.
func signedRequest(t *testing.T, payload any) *http.Request {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	ts, sig := Sign(testSecret, time.Now(), body)

	req := httptest.NewRequest(http.MethodPost, "/slack/events", bytes.NewReader(body))
	req.Header.Set("X-Slack-Request-Timestamp", ts)
	req.Header.Set("X-Slack-Signature", sig)
	return req
}

func messageEvent(eventID, text string) eventEnvelope {
	return eventEnvelope{
		Type:    "event_callback",
		EventID: eventID,
		Event: event{
			Type:    "message",
			User:    "U123",
			Text:    text,
			Channel: "D456",
		},
	}
}

func awaitPosts(t *testing.T, api *fakeAPI, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for api.postCount() < want {
		if time.Now().After(deadline) {
			t.Fatalf("posted %d messages, want %d", api.postCount(), want)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestURLVerificationEchoesChallenge(t *testing.T) {
	h, _ := newTestHandler(t)

	req := signedRequest(t, map[string]string{
		"type":      "url_verification",
		"challenge": "3eZbrw1aBm2rZgRNFdxV2595E9CY3gmdALWMmHkvFXO7tYXAYM8P",
	})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body["challenge"] != "3eZbrw1aBm2rZgRNFdxV2595E9CY3gmdALWMmHkvFXO7tYXAYM8P" {
		t.Errorf("challenge = %q", body["challenge"])
	}
}

func TestRejectsInvalidSignature(t *testing.T) {
	h, api := newTestHandler(t)

	body, _ := json.Marshal(messageEvent("Ev1", "what is scrum?"))
	req := httptest.NewRequest(http.MethodPost, "/slack/events", bytes.NewReader(body))
	req.Header.Set("X-Slack-Request-Timestamp", "1756500000")
	req.Header.Set("X-Slack-Signature", "v0=deadbeef")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	if api.postCount() != 0 {
		t.Errorf("message posted despite bad signature")
	}
}

func TestMessageEventIsAnswered(t *testing.T) {
	h, api := newTestHandler(t)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, signedRequest(t, messageEvent("Ev1", "what is scrum?")))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	awaitPosts(t, api, 1)
	post := api.lastPost(t)
	if post.Channel != "D456" {
		t.Errorf("Channel = %q, want D456", post.Channel)
	}
	if post.Text != "Scrum is a framework." {
		t.Errorf("Text = %q", post.Text)
	}
}

func TestDuplicateDeliveryIsSkipped(t *testing.T) {
	h, api := newTestHandler(t)

	for range 2 {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, signedRequest(t, messageEvent("Ev1", "what is scrum?")))
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", rec.Code)
		}
	}

	awaitPosts(t, api, 1)
	time.Sleep(100 * time.Millisecond)
	if api.postCount() != 1 {
		t.Errorf("posted %d messages for one event id, want 1", api.postCount())
	}
}

func TestBotMessagesAreIgnored(t *testing.T) {
	h, api := newTestHandler(t)

	envelope := messageEvent("Ev1", "I am the bot echoing")
	envelope.Event.BotID = "B999"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, signedRequest(t, envelope))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	time.Sleep(50 * time.Millisecond)
	if api.postCount() != 0 {
		t.Errorf("bot message was answered")
	}
}

func TestUnenrolledUserGetsExplanation(t *testing.T) {
	h, api := newTestHandler(t)
	api.email = "stranger@example.com"

	// Swap the enrollment payload for an empty course list.
	h.cfg.Scopes = scope.NewResolver(&enrollmock.Client{Payload: json.RawMessage(`{"enrolledCourses": []}`)})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, signedRequest(t, messageEvent("Ev1", "what is scrum?")))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	awaitPosts(t, api, 1)
	if post := api.lastPost(t); post.Text != "I couldn't find an active enrollment for your account." {
		t.Errorf("Text = %q", post.Text)
	}
}
