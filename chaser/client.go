package chaser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

const (
	defaultTimeout   = 10 * time.Second
	maxResponseBytes = 4 << 20 // 4 MB
)

// listCommand is the sesinetd command that lists the server's licenses.
const listCommand = "cmd_ls"

// Client talks to a license server's HTTP API.
type Client struct {
	serverURL  string
	httpClient *http.Client
	timeout    time.Duration // applied after all options
	userAgent  string

	formOnce sync.Once
	form     string
	formErr  error
}

// NewClient creates a client for the license server at serverURL.
// serverURL is the full endpoint the command is posted to.
func NewClient(serverURL string, opts ...ClientOption) *Client {
	c := &Client{
		serverURL: strings.TrimSpace(serverURL),
		timeout:   defaultTimeout,
		userAgent: "license-chaser/1.0",
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{}
	}
	c.httpClient.Timeout = c.timeout
	return c
}

// ServerURL returns the endpoint the client posts to.
func (c *Client) ServerURL() string {
	return c.serverURL
}

// ListLicenses issues one cmd_ls request and decodes the response.
// Network failures and non-2xx statuses are returned as *TransportError,
// undecodable bodies as *ResponseParseError.
func (c *Client) ListLicenses(ctx context.Context) (*ResponseEnvelope, error) {
	form, err := c.formBody()
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.serverURL, strings.NewReader(form))
	if err != nil {
		return nil, &TransportError{Op: "create request", Err: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &TransportError{Op: "http request", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes+1))
	if err != nil {
		return nil, &TransportError{Op: "read response", StatusCode: resp.StatusCode, Err: err}
	}
	if len(body) > maxResponseBytes {
		return nil, &TransportError{Op: "read response", StatusCode: resp.StatusCode, Err: ErrResponseTooLarge}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &TransportError{
			Op:         "http request",
			StatusCode: resp.StatusCode,
			Err:        errors.New(statusMessage(resp.Status, body)),
		}
	}

	return ParseResponse(body)
}

// formBody returns the url-encoded request body. The command never changes,
// so it is built once per client.
func (c *Client) formBody() (string, error) {
	c.formOnce.Do(func() {
		payload, err := json.Marshal([]any{
			listCommand,
			[]any{},
			map[string]bool{"show_licenses": true},
		})
		if err != nil {
			c.formErr = err
			return
		}
		c.form = url.Values{"json": {string(payload)}}.Encode()
	})
	return c.form, c.formErr
}

func statusMessage(status string, body []byte) string {
	msg := strings.TrimSpace(string(body))
	if len(msg) > 200 {
		msg = msg[:200]
	}
	if msg == "" {
		return status
	}
	return status + ": " + msg
}
