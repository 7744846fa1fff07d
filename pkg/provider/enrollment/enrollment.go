// Package enrollment provides the client for the LMS enrollment vendor API.
//
// The vendor returns an arbitrarily-shaped JSON document describing a
// student's enrolled courses and curriculum topics. The client deliberately
// does not model that shape — it hands the raw payload to the scope resolver,
// which harvests phrases with a key-allowlist tree walk.
package enrollment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// ErrStudentNotFound is returned when the vendor has no record of the student.
var ErrStudentNotFound = errors.New("enrollment: student not found")

const defaultTimeout = 8 * time.Second

// Client fetches a student's enrollment document.
//
// Implementations must be safe for concurrent use.
type Client interface {
	// Enrollments returns the raw enrollment JSON for the given student email.
	// Returns ErrStudentNotFound when the vendor reports no such student.
	Enrollments(ctx context.Context, email string) (json.RawMessage, error)
}

// Option is a functional option for configuring the HTTP client.
type Option func(*HTTPClient)

// WithTimeout sets the per-request timeout. Default: 8s.
func WithTimeout(d time.Duration) Option {
	return func(c *HTTPClient) { c.httpClient.Timeout = d }
}

// WithHTTPClient replaces the underlying http.Client entirely.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *HTTPClient) { c.httpClient = hc }
}

// HTTPClient implements Client against the enrollment vendor's REST API.
type HTTPClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// Compile-time assertion.
var _ Client = (*HTTPClient)(nil)

// NewHTTPClient creates a Client for the vendor API at baseURL. The apiKey is
// sent as an X-API-Key header on every request; it may be empty for vendors
// that authenticate by network boundary.
func NewHTTPClient(baseURL, apiKey string, opts ...Option) (*HTTPClient, error) {
	if baseURL == "" {
		return nil, errors.New("enrollment: baseURL must not be empty")
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

// Enrollments implements Client.
func (c *HTTPClient) Enrollments(ctx context.Context, email string) (json.RawMessage, error) {
	if email == "" {
		return nil, errors.New("enrollment: email must not be empty")
	}

	endpoint := fmt.Sprintf("%s/students/%s/enrollments", c.baseURL, url.PathEscape(email))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("enrollment: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("enrollment: fetch %q: %w", email, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", ErrStudentNotFound, email)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("enrollment: vendor returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("enrollment: read response: %w", err)
	}
	if !json.Valid(body) {
		return nil, errors.New("enrollment: vendor returned invalid JSON")
	}
	return json.RawMessage(body), nil
}
