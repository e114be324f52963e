package rewrite

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/dshills/texmirror/internal/logging"
)

// ServerClient serves rewrite requests through the study-sheet
// server's chat endpoint.
type ServerClient struct {
	url string
	hc  *http.Client
	log *logging.Logger
}

// ServerOption configures a ServerClient.
type ServerOption func(*ServerClient)

// WithHTTPClient sets the underlying HTTP client.
func WithHTTPClient(hc *http.Client) ServerOption {
	return func(c *ServerClient) { c.hc = hc }
}

// WithTimeout sets the request timeout.
func WithTimeout(d time.Duration) ServerOption {
	return func(c *ServerClient) { c.hc.Timeout = d }
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) ServerOption {
	return func(c *ServerClient) { c.log = l }
}

// NewServerClient creates a client for the given chat endpoint.
func NewServerClient(url string, opts ...ServerOption) *ServerClient {
	c := &ServerClient{
		url: url,
		hc:  &http.Client{Timeout: 60 * time.Second},
		log: logging.Null,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Rewrite sends the request and parses the response. Multi-line
// context takes precedence: when Lines is populated, Line is not sent.
func (c *ServerClient) Rewrite(ctx context.Context, req Request) (*Response, error) {
	body, err := encodeRequest(req)
	if err != nil {
		return nil, fmt.Errorf("encode rewrite request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("rewrite request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Request-ID", uuid.NewString())

	resp, err := c.hc.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("rewrite request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("rewrite response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("rewrite failed (%d): %s",
			resp.StatusCode, serviceError(respBody))
	}

	var out Response
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, fmt.Errorf("rewrite response: %w", err)
	}

	c.log.Debug("rewrite ok: %d reply bytes, replacement=%v",
		len(out.Reply), out.LaTeX != nil)
	return &out, nil
}

// encodeRequest builds the request JSON. sjson keeps unsent context
// fields truly absent rather than null.
func encodeRequest(req Request) ([]byte, error) {
	body := `{}`
	body, err := sjson.Set(body, "prompt", req.Prompt)
	if err != nil {
		return nil, err
	}

	switch {
	case len(req.Lines) > 0:
		body, err = sjson.Set(body, "selected_lines", req.Lines)
	case req.Line != nil:
		body, err = sjson.Set(body, "selected_line", *req.Line)
	}
	if err != nil {
		return nil, err
	}

	return []byte(body), nil
}

// serviceError extracts a message from an error body that may be a
// bare string or JSON-shaped.
func serviceError(body []byte) string {
	if gjson.ValidBytes(body) {
		if msg := gjson.GetBytes(body, "error"); msg.Exists() {
			return msg.String()
		}
	}
	return strings.TrimSpace(string(body))
}
