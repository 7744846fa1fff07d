// Package mock provides a test double for the enrollment.Client interface.
package mock

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/praxislabs/praxis/pkg/provider/enrollment"
)

// Client is a mock implementation of enrollment.Client.
type Client struct {
	mu sync.Mutex

	// Payload is returned by Enrollments. May be nil.
	Payload json.RawMessage

	// Err, if non-nil, is returned as the error from Enrollments.
	Err error

	// Emails records the email argument of every call in order.
	Emails []string
}

// Compile-time assertion.
var _ enrollment.Client = (*Client)(nil)

// Enrollments implements enrollment.Client.
func (c *Client) Enrollments(_ context.Context, email string) (json.RawMessage, error) {
	c.mu.Lock()
	c.Emails = append(c.Emails, email)
	payload, err := c.Payload, c.Err
	c.mu.Unlock()

	if err != nil {
		return nil, err
	}
	return payload, nil
}
