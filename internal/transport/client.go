// Package transport fetches JSON resources from the map API. Cancellation and
// network/HTTP failures are reported as distinguishable errors.
package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"chronomap/internal/logger"
	"chronomap/internal/metrics"
)

var (
	// ErrCanceled is returned when the request context was canceled before
	// the response was fully read.
	ErrCanceled = errors.New("transport: request canceled")
	// ErrNetwork wraps connection and read failures.
	ErrNetwork = errors.New("transport: network error")
)

// HTTPError reports a non-2xx response.
type HTTPError struct {
	Path       string
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("transport: GET %s: status %d", e.Path, e.StatusCode)
}

// IsCanceled reports whether err stems from a canceled request.
func IsCanceled(err error) bool {
	return errors.Is(err, ErrCanceled) || errors.Is(err, context.Canceled)
}

// Doer is the part of *http.Client the fetcher needs.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Fetcher returns the raw body for an API path such as "/areas/1000".
type Fetcher interface {
	Fetch(ctx context.Context, path string) ([]byte, error)
}

// HTTPFetcher fetches paths relative to a base URL.
type HTTPFetcher struct {
	baseURL string
	client  Doer
	log     *slog.Logger
}

// NewHTTPFetcher returns a fetcher for baseURL. A nil client means a plain
// *http.Client with a 10s timeout.
func NewHTTPFetcher(baseURL string, client Doer) *HTTPFetcher {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &HTTPFetcher{baseURL: strings.TrimRight(baseURL, "/"), client: client, log: logger.L()}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, path string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrCanceled, path)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("build request %s: %w", path, err)
	}
	req.Header.Set("Accept", "application/json")
	t0 := time.Now()
	f.log.Debug("http_req", "path", path)
	resp, err := f.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %s", ErrCanceled, path)
		}
		metrics.HTTPRequestsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("%w: GET %s: %v", ErrNetwork, path, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %s", ErrCanceled, path)
		}
		metrics.HTTPRequestsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("%w: read %s: %v", ErrNetwork, path, err)
	}
	metrics.HTTPRequestsTotal.WithLabelValues(strconv.Itoa(resp.StatusCode/100) + "xx").Inc()
	f.log.Debug("http_resp", "path", path, "status", resp.StatusCode, "bytes", len(body), "duration_ms", time.Since(t0).Milliseconds())
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if len(body) > 512 {
			body = body[:512]
		}
		return nil, &HTTPError{Path: path, StatusCode: resp.StatusCode, Body: string(body)}
	}
	return body, nil
}

// Client decodes fetched bodies as JSON.
type Client struct {
	fetcher Fetcher
}

func NewClient(f Fetcher) *Client { return &Client{fetcher: f} }

// Get fetches path and decodes the JSON body into out.
func (c *Client) Get(ctx context.Context, path string, out any) error {
	body, err := c.fetcher.Fetch(ctx, path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}
