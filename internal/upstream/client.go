package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"
)

const (
	completeTimeout = 30 * time.Second
	// Streaming calls have no total deadline; only the initial handshake is
	// bounded. A slow upstream may take the full headerTimeout to start.
	headerTimeout = 60 * time.Second
)

// Settings are the upstream call parameters. They are read through a func so
// config hot reloads take effect without rebuilding the client.
type Settings struct {
	BaseURL      string
	APIKey       string
	Model        string
	SystemPrompt string
	MaxTokens    int
	Temperature  float64
}

// errSuspended is returned without dialing while the breaker is open.
var errSuspended = errors.New("upstream suspended after repeated failures")

// Client issues chat-completion calls in buffered and streaming modes.
type Client struct {
	settings func() Settings
	http     *http.Client
	stream   *http.Client
	breaker  *breaker
}

func NewClient(settings func() Settings) *Client {
	return &Client{
		settings: settings,
		breaker:  newBreaker(),
		http:     &http.Client{Timeout: completeTimeout},
		stream: &http.Client{
			Transport: &http.Transport{
				Proxy:                 http.ProxyFromEnvironment,
				ResponseHeaderTimeout: headerTimeout,
			},
		},
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature,omitempty"`
	Stream      bool          `json:"stream,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

func (c *Client) newRequest(ctx context.Context, prompt string, stream bool) (*http.Request, error) {
	s := c.settings()
	body := chatRequest{
		Model: s.Model,
		Messages: []chatMessage{
			{Role: "system", Content: s.SystemPrompt},
			{Role: "user", Content: prompt},
		},
		MaxTokens:   s.MaxTokens,
		Temperature: s.Temperature,
		Stream:      stream,
	}

	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal chat request: %w", err)
	}

	url := strings.TrimRight(s.BaseURL, "/") + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("create http request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.APIKey)
	return req, nil
}

// Complete issues a single buffered completion and returns the first choice's
// message content.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	if !c.breaker.allow() {
		return "", newError(KindNetwork, errSuspended)
	}
	req, err := c.newRequest(ctx, prompt, false)
	if err != nil {
		return "", newError(KindMalformed, err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		cerr := classifyTransport(err)
		c.breaker.observe(cerr)
		return "", cerr
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		cerr := classifyStatus(resp)
		c.breaker.observe(cerr)
		return "", cerr
	}
	c.breaker.success()

	var decoded chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", newError(KindMalformed, fmt.Errorf("decode chat response: %w", err))
	}
	if len(decoded.Choices) == 0 {
		return "", newError(KindMalformed, errors.New("response has no choices"))
	}
	return decoded.Choices[0].Message.Content, nil
}

// Stream opens a streaming completion and returns the raw line sequence. The
// sequence is finite and single-pass; retrying requires a fresh call. The
// caller owns the stream and must Close it on every exit path.
func (c *Client) Stream(ctx context.Context, prompt string) (*LineStream, error) {
	if !c.breaker.allow() {
		return nil, newError(KindNetwork, errSuspended)
	}
	req, err := c.newRequest(ctx, prompt, true)
	if err != nil {
		return nil, newError(KindMalformed, err)
	}

	resp, err := c.stream.Do(req)
	if err != nil {
		cerr := classifyTransport(err)
		c.breaker.observe(cerr)
		return nil, cerr
	}

	if resp.StatusCode != http.StatusOK {
		cerr := classifyStatus(resp)
		resp.Body.Close()
		c.breaker.observe(cerr)
		return nil, cerr
	}
	c.breaker.success()

	return newLineStream(resp.Body), nil
}

func classifyTransport(err error) *Error {
	if errors.Is(err, context.DeadlineExceeded) {
		return newError(KindTimeout, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return newError(KindTimeout, err)
	}
	return newError(KindNetwork, err)
}

func classifyStatus(resp *http.Response) *Error {
	// Bodies on error statuses are read for logs only; the small cap keeps a
	// hostile upstream from ballooning memory.
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4*1024))
	err := fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))

	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return newError(KindAuth, err)
	case http.StatusTooManyRequests:
		return newError(KindRateLimited, err)
	default:
		return newError(KindNetwork, err)
	}
}
