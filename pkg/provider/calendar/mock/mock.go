// Package mock provides a test double for the calendar.Client interface.
package mock

import (
	"context"
	"sync"

	"github.com/praxislabs/praxis/pkg/provider/calendar"
)

// AddAttendeesCall records a single invocation of AddAttendees.
type AddAttendeesCall struct {
	EventID string
	Emails  []string
}

// Client is a mock implementation of calendar.Client.
type Client struct {
	mu sync.Mutex

	// Events is returned by ListEvents.
	Events []calendar.Event

	// ListErr, AddErr, DeleteErr inject errors into the respective methods.
	ListErr   error
	AddErr    error
	DeleteErr error

	// AddCalls and DeleteCalls record invocations in order.
	AddCalls    []AddAttendeesCall
	DeleteCalls []string
}

// Compile-time assertion.
var _ calendar.Client = (*Client)(nil)

// ListEvents implements calendar.Client.
func (c *Client) ListEvents(_ context.Context) ([]calendar.Event, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ListErr != nil {
		return nil, c.ListErr
	}
	out := make([]calendar.Event, len(c.Events))
	copy(out, c.Events)
	return out, nil
}

// AddAttendees implements calendar.Client.
func (c *Client) AddAttendees(_ context.Context, eventID string, emails []string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.AddCalls = append(c.AddCalls, AddAttendeesCall{EventID: eventID, Emails: emails})
	return c.AddErr
}

// DeleteEvent implements calendar.Client.
func (c *Client) DeleteEvent(_ context.Context, eventID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.DeleteCalls = append(c.DeleteCalls, eventID)
	return c.DeleteErr
}
