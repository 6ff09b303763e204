package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// DefaultBaseURL is the platform API endpoint.
const DefaultBaseURL = "https://backend.leadconnectorhq.com"

// Config holds client connection settings.
type Config struct {
	BaseURL string
	Token   string
	Version string
	Timeout time.Duration
}

// ApplyDefaults fills in zero-valued settings.
func (c *Config) ApplyDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.Version == "" {
		c.Version = "2021-07-28"
	}
	if c.Timeout == 0 {
		c.Timeout = 30 * time.Second
	}
}

// Client talks to the platform's REST API. Responses are decoded into
// loosely-typed Records; callers extract fields through Record helpers.
type Client struct {
	cfg    Config
	hc     *http.Client
	logger *slog.Logger
	page   PageOptions
}

// NewClient creates a client with the given configuration.
func NewClient(cfg Config, page PageOptions, logger *slog.Logger) *Client {
	cfg.ApplyDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		cfg:    cfg,
		hc:     &http.Client{Timeout: cfg.Timeout},
		logger: logger,
		page:   page,
	}
}

// StatusError is a non-2xx API response.
type StatusError struct {
	Status int
	Path   string
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("remote api %s: status %d: %s", e.Path, e.Status, e.Body)
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body any) (Record, error) {
	u := c.cfg.BaseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var rdr io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
		rdr = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, rdr)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Version", c.cfg.Version)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("remote api %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return nil, fmt.Errorf("remote api %s: failed to read response: %w", path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := string(data)
		if len(msg) > 256 {
			msg = msg[:256]
		}
		return nil, &StatusError{Status: resp.StatusCode, Path: path, Body: msg}
	}

	if len(data) == 0 {
		return Record{}, nil
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("remote api %s: failed to decode response: %w", path, err)
	}
	return rec, nil
}

func (c *Client) get(ctx context.Context, path string, query url.Values) (Record, error) {
	return c.do(ctx, http.MethodGet, path, query, nil)
}

func (c *Client) post(ctx context.Context, path string, body any) (Record, error) {
	return c.do(ctx, http.MethodPost, path, nil, body)
}

func (c *Client) put(ctx context.Context, path string, body any) (Record, error) {
	return c.do(ctx, http.MethodPut, path, nil, body)
}

func tenantQuery(tenantID string) url.Values {
	q := url.Values{}
	q.Set("locationId", tenantID)
	return q
}

func limitOffsetQuery(tenantID string, limit, offset int) url.Values {
	q := tenantQuery(tenantID)
	q.Set("limit", strconv.Itoa(limit))
	q.Set("offset", strconv.Itoa(offset))
	return q
}
