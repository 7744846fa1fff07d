// Package calendar provides the client for the calendar vendor API used by
// the tutoring platform to schedule live sessions.
//
// The gateway exposes thin CRUD endpoints over this client; scheduling
// business rules live with the vendor, not here.
package calendar

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// ErrEventNotFound is returned when the vendor has no event with the given id.
var ErrEventNotFound = errors.New("calendar: event not found")

const defaultTimeout = 8 * time.Second

// Event is a calendar event as reported by the vendor.
type Event struct {
	// ID is the vendor-assigned event identifier.
	ID string `json:"id"`

	// Summary is the event title.
	Summary string `json:"summary"`

	// Start and End are RFC 3339 timestamps.
	Start string `json:"start"`
	End   string `json:"end"`

	// Attendees are the email addresses of invited participants.
	Attendees []string `json:"attendees,omitempty"`

	// MeetLink is the video-conference URL if one is attached.
	MeetLink string `json:"meetLink,omitempty"`
}

// Client is the abstraction over the calendar vendor.
//
// Implementations must be safe for concurrent use.
type Client interface {
	// ListEvents returns upcoming events within the vendor's default window.
	ListEvents(ctx context.Context) ([]Event, error)

	// AddAttendees invites the given student emails to an existing event.
	AddAttendees(ctx context.Context, eventID string, emails []string) error

	// DeleteEvent removes an event. Returns ErrEventNotFound when the id is
	// unknown to the vendor.
	DeleteEvent(ctx context.Context, eventID string) error
}

// Option is a functional option for configuring the HTTP client.
type Option func(*HTTPClient)

// WithTimeout sets the per-request timeout. Default: 8s.
func WithTimeout(d time.Duration) Option {
	return func(c *HTTPClient) { c.httpClient.Timeout = d }
}

// HTTPClient implements Client against the calendar vendor's REST API.
type HTTPClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// Compile-time assertion.
var _ Client = (*HTTPClient)(nil)

// NewHTTPClient creates a Client for the vendor API at baseURL. apiKey is sent
// as a Bearer token on every request.
func NewHTTPClient(baseURL, apiKey string, opts ...Option) (*HTTPClient, error) {
	if baseURL == "" {
		return nil, errors.New("calendar: baseURL must not be empty")
	}
	c := &HTTPClient{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// ListEvents implements Client.
func (c *HTTPClient) ListEvents(ctx context.Context) ([]Event, error) {
	body, err := c.do(ctx, http.MethodGet, "/events", nil)
	if err != nil {
		return nil, err
	}

	var out struct {
		Events []Event `json:"events"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("calendar: decode events: %w", err)
	}
	return out.Events, nil
}

// AddAttendees implements Client.
func (c *HTTPClient) AddAttendees(ctx context.Context, eventID string, emails []string) error {
	if eventID == "" {
		return errors.New("calendar: eventID must not be empty")
	}
	if len(emails) == 0 {
		return errors.New("calendar: emails must not be empty")
	}

	payload, err := json.Marshal(map[string][]string{"attendees": emails})
	if err != nil {
		return fmt.Errorf("calendar: marshal attendees: %w", err)
	}
	_, err = c.do(ctx, http.MethodPost, "/events/"+url.PathEscape(eventID)+"/attendees", payload)
	return err
}

// DeleteEvent implements Client.
func (c *HTTPClient) DeleteEvent(ctx context.Context, eventID string) error {
	if eventID == "" {
		return errors.New("calendar: eventID must not be empty")
	}
	_, err := c.do(ctx, http.MethodDelete, "/events/"+url.PathEscape(eventID), nil)
	return err
}

// do performs one vendor request and returns the response body on 2xx.
func (c *HTTPClient) do(ctx context.Context, method, path string, payload []byte) ([]byte, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("calendar: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calendar: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrEventNotFound
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, fmt.Errorf("calendar: vendor returned status %d for %s %s", resp.StatusCode, method, path)
	}

	out, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("calendar: read response: %w", err)
	}
	return out, nil
}
