// Package openai implements the driver against OpenAI-compatible chat
// completion APIs. Both upstream providers (the multimodal endpoint and
// the reasoning endpoint) speak this protocol at distinct base URLs.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Xiaobuyudesu/assistor/internal/chatlink/driver"
)

// Client speaks the OpenAI-compatible chat completion protocol via direct
// HTTP. Clients are stateless and safe to reconstruct per request.
type Client struct {
	Provider     string
	BaseURL      string
	APIKey       string
	HTTPClient   *http.Client
	Timeout      time.Duration
	capabilities driver.Capabilities
}

// NewClient returns a client with defaults applied.
func NewClient(provider, baseURL, apiKey string, caps driver.Capabilities) *Client {
	return &Client{
		Provider:     provider,
		BaseURL:      strings.TrimSpace(baseURL),
		APIKey:       strings.TrimSpace(apiKey),
		capabilities: caps,
	}
}

// Name returns the driver identifier.
func (c *Client) Name() string {
	return c.Provider
}

// Capabilities describes supported features.
func (c *Client) Capabilities() driver.Capabilities {
	return c.capabilities
}

// Complete sends a non-streaming chat completion request.
func (c *Client) Complete(ctx context.Context, req *driver.Request) (*driver.Response, error) {
	resp, err := c.do(ctx, req, false)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close() // nolint:errcheck // best-effort cleanup

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var parsed chatCompletionResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	return toDriverResponse(&parsed)
}

// Stream opens a streaming chat completion. The returned stream yields
// delta chunks in provider arrival order and must be closed by the caller.
func (c *Client) Stream(ctx context.Context, req *driver.Request) (driver.Stream, error) {
	resp, err := c.do(ctx, req, true)
	if err != nil {
		return nil, err
	}
	return newChunkStream(resp.Body), nil
}

// do issues the HTTP request and validates the response status. The body
// is returned open; callers own closing it.
func (c *Client) do(ctx context.Context, req *driver.Request, stream bool) (*http.Response, error) {
	if c == nil {
		return nil, fmt.Errorf("client not configured")
	}
	if c.APIKey == "" {
		return nil, fmt.Errorf("api key is required")
	}

	payload, err := buildChatRequest(req, stream)
	if err != nil {
		return nil, err
	}

	ctx, cancel := withTimeout(ctx, c.Timeout)
	body, err := json.Marshal(payload)
	if err != nil {
		if cancel != nil {
			cancel()
		}
		return nil, fmt.Errorf("encode request: %w", err)
	}

	url := strings.TrimRight(c.BaseURL, "/") + "/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		if cancel != nil {
			cancel()
		}
		return nil, fmt.Errorf("build request: %w", err)
	}

	httpReq.Header.Set("Authorization", "Bearer "+c.APIKey)
	httpReq.Header.Set("Content-Type", "application/json")
	if stream {
		httpReq.Header.Set("Accept", "text/event-stream")
	}

	client := c.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}

	start := time.Now()
	resp, err := client.Do(httpReq)
	if err != nil {
		if cancel != nil {
			cancel()
		}
		c.trace(req, url, stream, 0, time.Since(start), err)
		return nil, fmt.Errorf("request failed: %w", err)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		respBody, _ := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if cancel != nil {
			cancel()
		}
		perr := &driver.ProviderError{
			Provider:    c.Provider,
			StatusCode:  resp.StatusCode,
			Message:     strings.TrimSpace(string(respBody)),
			RawResponse: respBody,
		}
		c.trace(req, url, stream, resp.StatusCode, time.Since(start), perr)
		return nil, perr
	}
	c.trace(req, url, stream, resp.StatusCode, time.Since(start), nil)

	if cancel != nil {
		resp.Body = &cancelOnClose{ReadCloser: resp.Body, cancel: cancel}
	}
	return resp, nil
}

// trace records the provider call when NDJSON tracing is enabled.
func (c *Client) trace(req *driver.Request, url string, stream bool, status int, elapsed time.Duration, err error) {
	if !driver.IsTracingEnabled() {
		return
	}
	entry := driver.TraceEntry{
		Provider:   c.Provider,
		Endpoint:   url,
		Stream:     stream,
		StatusCode: status,
		DurationMs: elapsed.Milliseconds(),
	}
	if req != nil {
		entry.Model = req.Model
	}
	if err != nil {
		entry.Error = err.Error()
	}
	driver.Trace(entry)
}

// cancelOnClose releases the request timeout when the body is closed, so
// streaming reads keep the deadline alive for exactly the body's lifetime.
type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelOnClose) Close() error {
	err := c.ReadCloser.Close()
	c.cancel()
	return err
}

func withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return ctx, nil
	}
	return context.WithTimeout(ctx, timeout)
}
