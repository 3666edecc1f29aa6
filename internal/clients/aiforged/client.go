// Package aiforged is a small REST client for the AIForged document-processing API.
// It covers exactly the calls the poller needs: identity, document listing,
// field results (flat and hierarchical) and document update.
package aiforged

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

const (
	maxErrorBody     = 500
	headerAPIKey     = "X-Api-Key"
	headerClientName = "X-Client-Name"
)

// Config holds what the client needs to reach and authenticate against the API.
// APIKey takes precedence; otherwise Username/Password obtain an OAuth2 session.
type Config struct {
	Endpoint          string
	APIKey            string
	Username          string
	Password          string
	TokenPath         string
	ClientID          string
	AppName           string
	Timeout           time.Duration
	RequestsPerSecond float64 // 0 disables pacing
}

// Client is the AIForged API client.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	log        zerolog.Logger
}

// NewClient creates a new AIForged client
func NewClient(cfg Config, log zerolog.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	baseURL := strings.TrimRight(cfg.Endpoint, "/")

	l := log.With().Str("client", "aiforged").Logger()

	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}

	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: newAuthTransport(cfg, baseURL, timeout, l),
		},
		limiter: limiter,
		log:     l,
	}
}

// do sends one request and decodes a 2xx body into out (when out is non-nil
// and the body is not empty). Non-2xx replies become *APIError.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body interface{}, out func([]byte) error) (int, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return 0, fmt.Errorf("rate limiter: %w", err)
		}
	}

	requestURL := c.baseURL + path
	if len(query) > 0 {
		requestURL += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		var payload []byte
		switch b := body.(type) {
		case []byte:
			payload = b
		default:
			var err error
			payload, err = json.Marshal(body)
			if err != nil {
				return 0, fmt.Errorf("failed to marshal request: %w", err)
			}
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, requestURL, reader)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, fmt.Errorf("failed to read response: %w", err)
	}

	c.log.Debug().
		Str("method", method).
		Str("path", path).
		Int("status_code", resp.StatusCode).
		Dur("duration", time.Since(start)).
		Msg("AIForged request")

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		bodyStr := string(data)
		if len(bodyStr) > maxErrorBody {
			bodyStr = bodyStr[:maxErrorBody] + "..."
		}
		return resp.StatusCode, &APIError{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Method:     method,
			Path:       path,
			Body:       bodyStr,
		}
	}

	if out != nil && len(bytes.TrimSpace(data)) > 0 {
		if err := out(data); err != nil {
			return resp.StatusCode, err
		}
	}

	return resp.StatusCode, nil
}

// decodeInto returns a decoder for do that unmarshals into v.
func decodeInto(v interface{}) func([]byte) error {
	return func(data []byte) error {
		if err := json.Unmarshal(data, v); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
		return nil
	}
}
