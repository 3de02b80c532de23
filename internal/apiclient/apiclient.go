// Package apiclient talks to the usage and incentive backend over its REST API.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tallyhq/tally/internal/contract"
	"github.com/tallyhq/tally/internal/logger"
	"golang.org/x/time/rate"
)

// CacheVersion is stored with every cached response. Bump it when the
// response shapes change so stale entries are refetched.
const CacheVersion = 1

// Config configures a Client.
type Config struct {
	BaseURL           string
	APIKey            string
	Timeout           time.Duration
	RequestsPerSecond float64
	Burst             int
	MaxRetries        int
	RetryBackoff      time.Duration
}

// Client is a rate-limited backend client. Responses covering completed
// periods are cached when a cache store is set.
type Client struct {
	log        *logger.Logger
	cfg        Config
	httpClient *http.Client
	limiter    *rate.Limiter
	cache      contract.CacheStore
	now        func() time.Time
}

var _ contract.BackendClient = &Client{} // Compile-time check

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Code      int
	Status    string
	RequestID string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%d %s", e.Code, e.Status)
}

// IsNotFound reports whether err is a 404 from the backend.
func IsNotFound(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code == http.StatusNotFound
}

// New returns a Client. cache may be nil.
func New(log *logger.Logger, cfg Config, cache contract.CacheStore) (*Client, error) {
	if log == nil {
		return nil, errors.New("logger required")
	}
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if cfg.BaseURL == "" {
		return nil, errors.New("backend base URL required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = contract.DefaultTimeout
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = contract.DefaultRequestsPerSecond
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = 500 * time.Millisecond
	}
	return &Client{
		log:        log.With("client", "BackendClient"),
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		limiter:    rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
		cache:      cache,
		now:        time.Now,
	}, nil
}

// request sends one call and decodes the JSON response into out.
// A 204 response leaves out untouched.
func (c *Client) request(ctx context.Context, method, path string, query url.Values, body, out any) error {
	raw, err := c.send(ctx, method, path, query, body)
	if err != nil {
		return err
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

// send performs the call with retries and returns the raw body.
func (c *Client) send(ctx context.Context, method, path string, query url.Values, body any) ([]byte, error) {
	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return nil, fmt.Errorf("encode %s %s: %w", method, path, err)
		}
	}

	target := c.cfg.BaseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	for attempt := 0; ; attempt++ {
		raw, err := c.sendOnce(ctx, method, target, payload)
		if err == nil || attempt >= c.cfg.MaxRetries || method != http.MethodGet || !retryable(ctx, err) {
			return raw, err
		}
		c.log.Warn("retrying backend request", "path", path, "attempt", attempt+1, "error", err)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Duration(attempt+1) * c.cfg.RetryBackoff):
		}
	}
}

func (c *Client) sendOnce(ctx context.Context, method, target string, payload []byte) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, err
	}
	requestID := uuid.NewString()
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestID)
	if c.cfg.APIKey != "" {
		req.Header.Set("x-api-key", c.cfg.APIKey)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, req.URL.Path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	c.log.Debug("backend request",
		"method", method,
		"path", req.URL.Path,
		"status", resp.StatusCode,
		"request_id", requestID,
		"duration", time.Since(start),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, &StatusError{Code: resp.StatusCode, Status: statusText(resp), RequestID: requestID}
	}
	if resp.StatusCode == http.StatusNoContent {
		return nil, nil
	}
	return io.ReadAll(resp.Body)
}

// statusText returns the reason phrase of a response, e.g. "Not Found".
func statusText(resp *http.Response) string {
	if _, text, ok := strings.Cut(resp.Status, " "); ok && text != "" {
		return text
	}
	return http.StatusText(resp.StatusCode)
}

// retryable reports whether a failed GET may be sent again: 429, any 5xx,
// or a transport failure. Cancellation of ctx is never retried.
func retryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code == http.StatusTooManyRequests || se.Code >= http.StatusInternalServerError
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne)
}

// getCached is a GET whose body is served from the cache when immutable is
// true. Mutable responses always go to the backend.
func (c *Client) getCached(ctx context.Context, path string, query url.Values, immutable bool, out any) error {
	if !immutable || c.cache == nil {
		return c.request(ctx, http.MethodGet, path, query, nil, out)
	}

	key := cacheKey(path, query)
	if data, version, _, err := c.cache.Get(key); err == nil && version == CacheVersion {
		if err := json.Unmarshal(data, out); err == nil {
			c.log.Debug("cache hit", "key", key)
			return nil
		}
	}

	raw, err := c.send(ctx, http.MethodGet, path, query, nil)
	if err != nil {
		return err
	}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("decode GET %s: %w", path, err)
		}
	}
	if err := c.cache.Set(key, raw, CacheVersion, c.now().Unix()); err != nil {
		c.log.Warn("cache write failed", "key", key, "error", err)
	}
	return nil
}

func cacheKey(path string, query url.Values) string {
	if len(query) == 0 {
		return "GET " + path
	}
	return "GET " + path + "?" + query.Encode()
}
