// Package compile talks to the markup-to-page compile service: the
// full source goes out, a rendered document plus region map comes
// back.
package compile

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/dshills/texmirror/internal/logging"
	"github.com/dshills/texmirror/internal/sync/regionmap"
)

// ErrEmptySource indicates a compile was attempted with no text.
var ErrEmptySource = errors.New("empty source")

// TransportError is a compile request that failed at the network or
// service level. It is distinct from a region-map decode failure:
// a corrupt payload on a successful response is ErrMalformedPayload.
type TransportError struct {
	Status  int    // HTTP status, 0 for network-level failures
	Message string // Service error message or transport description
	Details string // Optional compiler output
}

func (e *TransportError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("compile failed (%d): %s", e.Status, e.Message)
	}
	return fmt.Sprintf("compile failed: %s", e.Message)
}

// Result is one successfully compiled artifact, produced atomically by
// a single compile request.
type Result struct {
	// Snapshot is the source text as the compiler saw it. Sync status
	// must be evaluated against this, not the request payload — the
	// service may normalize what it was sent.
	Snapshot string
	// PDF is the rendered document.
	PDF []byte
	// Map is the parsed region map.
	Map *regionmap.Map
}

// Client issues compile requests over HTTP.
type Client struct {
	url string
	hc  *http.Client
	log *logging.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.hc = hc }
}

// WithTimeout sets the request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.hc.Timeout = d }
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(c *Client) { c.log = l }
}

// NewClient creates a compile client for the given endpoint.
func NewClient(url string, opts ...Option) *Client {
	c := &Client{
		url: url,
		hc:  &http.Client{Timeout: 60 * time.Second},
		log: logging.Null,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// responseBody is the success shape of the compile service. The region
// map arrives either as a compressed payload ("synctex") or inline
// ("mappings"); the compressed form wins when both are present.
type responseBody struct {
	Source   string          `json:"source"`
	PDF      string          `json:"pdf"`
	Synctex  string          `json:"synctex"`
	Mappings json.RawMessage `json:"mappings"`
}

// Compile sends the source and returns the compiled artifact.
//
// Error classes: ErrEmptySource for blank input, *TransportError for
// network and service failures, and regionmap.ErrMalformedPayload
// (wrapped) when the response arrived but its region map cannot be
// decoded — callers keep the prior artifact in that case.
func (c *Client) Compile(ctx context.Context, source string) (*Result, error) {
	if strings.TrimSpace(source) == "" {
		return nil, ErrEmptySource
	}

	reqBody, err := json.Marshal(map[string]string{"source": source})
	if err != nil {
		return nil, fmt.Errorf("encode compile request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(reqBody))
	if err != nil {
		return nil, &TransportError{Message: err.Error()}
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, &TransportError{Message: err.Error()}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Status: resp.StatusCode, Message: err.Error()}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, errorFromBody(resp.StatusCode, body)
	}

	var rb responseBody
	if err := json.Unmarshal(body, &rb); err != nil {
		return nil, &TransportError{Status: resp.StatusCode, Message: "unparseable compile response"}
	}

	pdf, err := base64.StdEncoding.DecodeString(rb.PDF)
	if err != nil {
		return nil, &TransportError{Status: resp.StatusCode, Message: "undecodable rendered bytes"}
	}

	m, err := parseRegionMap(rb)
	if err != nil {
		return nil, err
	}

	c.log.Debug("compile ok: %d bytes pdf, %d mappings, %s",
		len(pdf), len(m.Mappings), time.Since(start).Round(time.Millisecond))

	return &Result{Snapshot: rb.Source, PDF: pdf, Map: m}, nil
}

// parseRegionMap extracts the region map from whichever form the
// response used.
func parseRegionMap(rb responseBody) (*regionmap.Map, error) {
	if rb.Synctex != "" {
		return regionmap.Decode(rb.Synctex)
	}
	if len(rb.Mappings) > 0 {
		return regionmap.Parse(rb.Mappings)
	}
	return nil, fmt.Errorf("%w: response carries no region map", regionmap.ErrMalformedPayload)
}

// errorFromBody builds a TransportError from a non-success body, which
// may be a bare string or a JSON object with "error" and optional
// "details" fields.
func errorFromBody(status int, body []byte) *TransportError {
	text := strings.TrimSpace(string(body))

	if gjson.ValidBytes(body) {
		if msg := gjson.GetBytes(body, "error"); msg.Exists() {
			return &TransportError{
				Status:  status,
				Message: msg.String(),
				Details: gjson.GetBytes(body, "details").String(),
			}
		}
	}

	if text == "" {
		text = http.StatusText(status)
	}
	return &TransportError{Status: status, Message: text}
}
