package slackbot

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultAPIBase = "https://slack.com/api"

// Client is a minimal Slack Web API client covering the two calls the bot
// needs: posting a reply and looking up a user's email.
type Client struct {
	baseURL string
	token   string
	httpc   *http.Client
}

// ClientOption is a functional option for [NewClient].
type ClientOption func(*Client)

// WithBaseURL overrides the Slack API root. Used in tests.
func WithBaseURL(u string) ClientOption {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.httpc = hc }
}

// NewClient creates a Web API client authenticated with the given bot token.
func NewClient(botToken string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: defaultAPIBase,
		token:   botToken,
		httpc:   &http.Client{Timeout: 10 * time.Second},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// apiResponse is the envelope every Web API method shares.
type apiResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`

	User struct {
		Profile struct {
			Email string `json:"email"`
		} `json:"profile"`
	} `json:"user"`
}

// PostMessage sends text to a channel via chat.postMessage.
func (c *Client) PostMessage(ctx context.Context, channel, text string) error {
	payload, err := json.Marshal(map[string]string{
		"channel": channel,
		"text":    text,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/chat.postMessage", strings.NewReader(string(payload)))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	req.Header.Set("Authorization", "Bearer "+c.token)

	if _, err := c.do(req); err != nil {
		return fmt.Errorf("slack: post message: %w", err)
	}
	return nil
}

// UserEmail resolves a Slack user id to the email on their profile via
// users.info.
func (c *Client) UserEmail(ctx context.Context, userID string) (string, error) {
	endpoint := c.baseURL + "/users.info?" + url.Values{"user": {userID}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.do(req)
	if err != nil {
		return "", fmt.Errorf("slack: user info %s: %w", userID, err)
	}
	if resp.User.Profile.Email == "" {
		return "", fmt.Errorf("slack: user %s has no profile email", userID)
	}
	return resp.User.Profile.Email, nil
}

func (c *Client) do(req *http.Request) (*apiResponse, error) {
	httpResp, err := c.httpc.Do(req)
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(httpResp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	if httpResp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", httpResp.StatusCode)
	}

	var resp apiResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if !resp.OK {
		return nil, fmt.Errorf("api error: %s", resp.Error)
	}
	return &resp, nil
}
