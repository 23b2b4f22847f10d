// Package backend provides the HTTP contract used to reach the career
// platform API: send a request, get back a status and a JSON body.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const (
	// DefaultTimeout bounds a single HTTP exchange when the caller's
	// context carries no earlier deadline.
	DefaultTimeout = 30 * time.Second

	// MaxResponseSize is the maximum response body read (10MB)
	MaxResponseSize = 10 * 1024 * 1024

	// UserAgent is the user agent string for backend requests
	UserAgent = "careerlink/1.0"
)

// Request describes one backend call.
type Request struct {
	Method     string
	Endpoint   string
	Body       any
	Credential string
}

// Response is the status and decoded body of a backend call.
type Response struct {
	Status int
	// JSON is the decoded object body. It is empty, never nil, when the
	// body is missing or is not a JSON object.
	JSON map[string]any
	Body []byte
}

// OK reports whether the status is 2xx.
func (r *Response) OK() bool {
	return r != nil && r.Status >= 200 && r.Status < 300
}

// Decode unmarshals the raw body into v.
func (r *Response) Decode(v any) error {
	if r == nil || len(r.Body) == 0 {
		return fmt.Errorf("empty response body")
	}
	return json.Unmarshal(r.Body, v)
}

// Client is the generic backend contract. HTTP error statuses are returned
// in the Response; only transport failures produce an error.
type Client interface {
	Send(ctx context.Context, req Request) (*Response, error)
}

// HTTPClient is the net/http implementation of Client.
type HTTPClient struct {
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

// NewHTTPClient creates a client rooted at baseURL. If timeout is 0,
// DefaultTimeout is used.
func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		logger:  slog.Default(),
	}
}

// WithLogger sets a custom logger for the client
func (c *HTTPClient) WithLogger(logger *slog.Logger) *HTTPClient {
	c.logger = logger
	return c
}

// Send performs the request. Cancelling ctx aborts the exchange, which is
// how callers enforce per-attempt timeouts.
func (c *HTTPClient) Send(ctx context.Context, req Request) (*Response, error) {
	url := c.url(req.Endpoint)
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	var body io.Reader
	if req.Body != nil {
		payload, err := json.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("User-Agent", UserAgent)
	httpReq.Header.Set("Accept", "application/json")
	if req.Body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if req.Credential != "" {
		httpReq.Header.Set("Authorization", "Bearer "+req.Credential)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, &NetworkError{URL: url, Err: err}
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize+1))
	if err != nil {
		return nil, &NetworkError{URL: url, Status: resp.StatusCode, Err: fmt.Errorf("read body: %w", err)}
	}
	if int64(len(raw)) > MaxResponseSize {
		return nil, &NetworkError{URL: url, Status: resp.StatusCode, Err: fmt.Errorf("response exceeds %d bytes", MaxResponseSize)}
	}

	c.logger.DebugContext(ctx, "backend request completed",
		"method", method,
		"endpoint", req.Endpoint,
		"status", resp.StatusCode,
	)

	return &Response{
		Status: resp.StatusCode,
		JSON:   decodeObject(raw),
		Body:   raw,
	}, nil
}

func (c *HTTPClient) url(endpoint string) string {
	if strings.HasPrefix(endpoint, "http://") || strings.HasPrefix(endpoint, "https://") {
		return endpoint
	}
	if !strings.HasPrefix(endpoint, "/") {
		endpoint = "/" + endpoint
	}
	return c.baseURL + endpoint
}

// decodeObject parses a JSON object body. Parse failures degrade to an
// empty map.
func decodeObject(raw []byte) map[string]any {
	out := map[string]any{}
	if len(bytes.TrimSpace(raw)) == 0 {
		return out
	}
	if err := json.Unmarshal(raw, &out); err != nil || out == nil {
		return map[string]any{}
	}
	return out
}
