// Package client provides a typed Go SDK for the metadata catalog REST API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/persistorai/catalogsync/internal/metrics"
)

// DefaultAPIVersion is the catalog API version used unless overridden.
const DefaultAPIVersion = 9

// Client is the top-level catalog API client. It is safe for concurrent use.
type Client struct {
	baseURL    string
	apiKey     string
	apiVersion int
	httpClient *http.Client
	log        *logrus.Logger

	Sources   *SourceService
	Entities  *EntityService
	Relations *RelationService
	Metadata  *MetadataService
}

// Option configures a Client.
type Option func(*Client)

// WithAPIKey sets the API key for authentication.
func WithAPIKey(key string) Option {
	return func(c *Client) { c.apiKey = key }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

// WithAPIVersion selects the versioned API prefix, /api/v{n}.
func WithAPIVersion(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.apiVersion = n
		}
	}
}

// WithLogger sets the logger used for request tracing.
func WithLogger(log *logrus.Logger) Option {
	return func(c *Client) {
		if log != nil {
			c.log = log
		}
	}
}

// New creates a catalog client for the given base URL (e.g. "http://localhost:7187").
func New(baseURL string, opts ...Option) *Client {
	log := logrus.New()
	log.SetOutput(io.Discard)
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiVersion: DefaultAPIVersion,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		log:        log,
	}
	for _, o := range opts {
		o(c)
	}
	c.Sources = &SourceService{c: c}
	c.Entities = &EntityService{c: c}
	c.Relations = &RelationService{c: c}
	c.Metadata = &MetadataService{c: c}
	return c
}

// path prefixes p with the versioned API root.
func (c *Client) path(p string) string {
	return "/api/v" + strconv.Itoa(c.apiVersion) + p
}

// do executes an HTTP request and decodes the JSON response.
func (c *Client) do(ctx context.Context, method, path string, hdr http.Header, body any, result any) error {
	u := c.baseURL + path

	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, bodyReader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	for k, vs := range hdr {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	requestID := uuid.NewString()
	req.Header.Set("X-Request-ID", requestID)

	endpoint := endpointLabel(path)
	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.observe(endpoint, "error", start)
		metrics.ErrorsTotal.WithLabelValues("transport").Inc()
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	c.observe(endpoint, strconv.Itoa(resp.StatusCode), start)

	c.log.WithFields(logrus.Fields{
		"method":     method,
		"endpoint":   endpoint,
		"status":     resp.StatusCode,
		"request_id": requestID,
		"latency":    time.Since(start),
	}).Debug("catalog request")

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		metrics.ErrorsTotal.WithLabelValues("api").Inc()
		apiErr := parseAPIError(resp.StatusCode, respBody)
		if apiErr.RequestID == "" {
			apiErr.RequestID = requestID
		}
		return apiErr
	}

	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

func (c *Client) observe(endpoint, status string, start time.Time) {
	metrics.FetchesTotal.WithLabelValues(endpoint, status).Inc()
	metrics.FetchDuration.WithLabelValues(endpoint, status).Observe(time.Since(start).Seconds())
}

// endpointLabel strips the version prefix and query string so metric labels
// stay bounded.
func endpointLabel(path string) string {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	if rest, ok := strings.CutPrefix(path, "/api/"); ok {
		if i := strings.IndexByte(rest, '/'); i >= 0 {
			path = rest[i:]
		}
	}
	if strings.HasPrefix(path, "/sources/") {
		return "/sources/:id"
	}
	return path
}

// get is a convenience wrapper for GET requests with query parameters.
func (c *Client) get(ctx context.Context, path string, params url.Values, result any) error {
	if len(params) > 0 {
		path += "?" + params.Encode()
	}
	return c.do(ctx, http.MethodGet, path, nil, nil, result)
}

// post is a convenience wrapper for POST requests.
func (c *Client) post(ctx context.Context, path string, hdr http.Header, body any, result any) error {
	return c.do(ctx, http.MethodPost, path, hdr, body, result)
}
