package plaid

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

	"github.com/Benrishty/finsync/internal/core/domain"
)

// Environment base URLs.
const (
	EnvSandbox    = "https://sandbox.plaid.com"
	EnvProduction = "https://production.plaid.com"
)

// Config holds the credentials and transport settings for the API client.
type Config struct {
	// ClientID is the API client identifier
	ClientID string

	// Secret is the API secret for the chosen environment
	Secret string

	// BaseURL selects the environment (EnvSandbox, EnvProduction, or a
	// test server URL)
	BaseURL string

	// Timeout bounds each HTTP request
	Timeout time.Duration

	// MaxRetries bounds retries on server errors and rate limiting
	MaxRetries int

	// Logger receives warnings about malformed records. Defaults to
	// slog.Default()
	Logger *slog.Logger
}

// DefaultConfig returns a Config with sensible defaults for the sandbox.
func DefaultConfig() Config {
	return Config{
		BaseURL:    EnvSandbox,
		Timeout:    30 * time.Second,
		MaxRetries: 3,
	}
}

// Client talks to the aggregator's JSON API. Every endpoint is a POST
// with credentials carried in headers.
type Client struct {
	clientID   string
	secret     string
	baseURL    string
	httpClient *http.Client
	maxRetries int
	logger     *slog.Logger
}

// NewClient creates a new API client.
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = EnvSandbox
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Client{
		clientID:   cfg.ClientID,
		secret:     cfg.Secret,
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		httpClient: &http.Client{Timeout: cfg.Timeout},
		maxRetries: cfg.MaxRetries,
		logger:     cfg.Logger,
	}
}

// apiError is the error envelope returned by the API on 4xx/5xx.
type apiError struct {
	ErrorType      string `json:"error_type"`
	ErrorCode      string `json:"error_code"`
	ErrorMessage   string `json:"error_message"`
	DisplayMessage string `json:"display_message"`
	RequestID      string `json:"request_id"`
}

// post performs an authenticated POST with retry on server errors and
// decodes the response into out. API errors are returned as
// *domain.ItemError so callers can classify them with errors.As.
func (c *Client) post(ctx context.Context, path string, reqBody any, out any) error {
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	var resp *http.Response
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}

		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("PLAID-CLIENT-ID", c.clientID)
		req.Header.Set("PLAID-SECRET", c.secret)

		resp, err = c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("do request: %w", err)
		}

		// Success or non-retryable error
		if resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			break
		}

		// Server error or rate limit - retry with exponential backoff
		resp.Body.Close()
		if attempt == c.maxRetries {
			return fmt.Errorf("%s: status %d after %d attempts", path, resp.StatusCode, attempt+1)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt+1) * time.Second):
		}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var apiErr apiError
		if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.ErrorCode != "" {
			return &domain.ItemError{
				ErrorType:    apiErr.ErrorType,
				ErrorCode:    apiErr.ErrorCode,
				ErrorMessage: apiErr.ErrorMessage,
			}
		}
		return fmt.Errorf("%s: status %d: %s", path, resp.StatusCode, string(body))
	}

	if out != nil {
		if err := json.Unmarshal(body, out); err != nil {
			return fmt.Errorf("decode %s response: %w", path, err)
		}
	}
	return nil
}
