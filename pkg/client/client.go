// Package client talks to a chat server: it streams a turn and assembles it,
// or asks the synchronous endpoint for the final answer.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/papercomputeco/ssechat/pkg/pipeline"
	"github.com/papercomputeco/ssechat/pkg/session"
	"github.com/papercomputeco/ssechat/pkg/turn"
	"github.com/papercomputeco/ssechat/proxy/header"
)

// SyncSuffix is appended to the streaming endpoint to reach the synchronous
// one.
const SyncSuffix = "-sync"

// Source labels turns sent by this client when they pass the relay proxy.
const Source = "chat"

// ErrEmptyPrompt is returned before any request is made for a blank prompt.
var ErrEmptyPrompt = errors.New("prompt must not be empty")

// Request is the body both chat endpoints accept.
type Request struct {
	Prompt   string `json:"prompt"`
	Thinking bool   `json:"thinking"`
}

// SyncResponse is the body of the synchronous endpoint.
type SyncResponse struct {
	Success bool   `json:"success"`
	Result  any    `json:"result,omitempty"`
	Error   string `json:"error,omitempty"`
}

// StatusError is returned when the server rejects a request.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("chat server returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("chat server returned status %d: %s", e.StatusCode, e.Message)
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithLogger sets the client's logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

// WithSessionOptions sets how strictly streamed turns are validated.
func WithSessionOptions(opts session.Options) Option {
	return func(c *Client) {
		c.sessionOpts = opts
	}
}

// Client sends prompts to one chat endpoint.
type Client struct {
	target      string
	httpClient  *http.Client
	logger      *zap.Logger
	sessionOpts session.Options
}

// New returns a Client for the streaming endpoint at target, for example
// "http://localhost:5000/chat/endpoint".
func New(target string, opts ...Option) (*Client, error) {
	target = strings.TrimSpace(target)
	if target == "" {
		return nil, errors.New("chat target is required")
	}

	c := &Client{
		target: target,
		httpClient: &http.Client{
			// Turns with long reasoning phases can take minutes.
			Timeout: 5 * time.Minute,
		},
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Stream posts req to the streaming endpoint and assembles the turn from the
// response. Every accepted event is passed to the observers as it arrives.
// Errors follow pipeline.Session.Run: on a protocol error the partial turn is
// returned with it.
func (c *Client) Stream(ctx context.Context, req Request, observers ...pipeline.Observer) (*turn.Result, error) {
	resp, err := c.post(ctx, c.target, req, "text/event-stream")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, statusError(resp)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/event-stream") {
		return nil, fmt.Errorf("expected an event stream, got %q", ct)
	}

	opts := []pipeline.Option{
		pipeline.WithLogger(c.logger),
		pipeline.WithSessionOptions(c.sessionOpts),
	}
	for _, o := range observers {
		opts = append(opts, pipeline.WithObserver(o))
	}

	return pipeline.New(opts...).Run(ctx, resp.Body)
}

// Sync posts req to the synchronous endpoint and returns its payload.
// A payload with success false is returned together with a StatusError.
func (c *Client) Sync(ctx context.Context, req Request) (*SyncResponse, error) {
	resp, err := c.post(ctx, c.target+SyncSuffix, req, "application/json")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	var out SyncResponse
	if err := json.Unmarshal(body, &out); err != nil {
		if resp.StatusCode != http.StatusOK {
			return nil, &StatusError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(body))}
		}
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	if resp.StatusCode != http.StatusOK || !out.Success {
		return &out, &StatusError{StatusCode: resp.StatusCode, Message: out.Error}
	}
	return &out, nil
}

func (c *Client) post(ctx context.Context, url string, req Request, accept string) (*http.Response, error) {
	req.Prompt = strings.TrimSpace(req.Prompt)
	if req.Prompt == "" {
		return nil, ErrEmptyPrompt
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", accept)
	httpReq.Header.Set(header.SourceHeader, Source)

	c.logger.Debug("sending chat request",
		zap.String("target", url),
		zap.Bool("thinking", req.Thinking),
	)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("sending request: %w", err)
	}
	return resp, nil
}

// statusError reads the server's {"error": ...} body when there is one.
func statusError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))

	var payload struct {
		Error string `json:"error"`
	}
	msg := strings.TrimSpace(string(body))
	if json.Unmarshal(body, &payload) == nil && payload.Error != "" {
		msg = payload.Error
	}
	return &StatusError{StatusCode: resp.StatusCode, Message: msg}
}
