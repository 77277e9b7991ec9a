package services

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ralverson/vela/internal/lib"
	"github.com/ralverson/vela/internal/models"
)

// HTTPClient wraps the standard http.Client with retry logic and optional
// basic authentication per request
type HTTPClient struct {
	client      *http.Client
	retryConfig lib.RetryConfig
	logger      *lib.Logger
}

// NewHTTPClient creates an HTTP client with timeout and retry configuration.
// A zero timeout means no client-side timeout; archive extraction jobs and
// large cube downloads can legitimately run for a long time.
func NewHTTPClient(timeout time.Duration, retryConfig models.RetryConfig, logger *lib.Logger) *HTTPClient {
	return &HTTPClient{
		client: &http.Client{
			Timeout: timeout,
		},
		retryConfig: lib.NewRetryConfigFromModel(retryConfig),
		logger:      logger,
	}
}

// DefaultHTTPClient creates an HTTP client with sensible defaults
func DefaultHTTPClient() *HTTPClient {
	return NewHTTPClient(
		0,
		models.RetryConfig{
			MaxAttempts:      5,
			InitialBackoffMs: 1000,
			MaxBackoffMs:     30000,
		},
		lib.DefaultLogger,
	)
}

// Get performs an HTTP GET request with retry logic. Credentials may be nil
// for anonymous requests.
func (c *HTTPClient) Get(url string, creds *models.Credentials) (*http.Response, error) {
	req, err := http.NewRequest("GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	applyAuth(req, creds)

	return c.Do(req)
}

// PostForm performs an HTTP POST with form-encoded fields. Repeated values
// under one key become repeated form fields, as the UWS protocol requires
// for ID and filter parameters.
func (c *HTTPClient) PostForm(url string, form url.Values, creds *models.Credentials) (*http.Response, error) {
	req, err := http.NewRequest("POST", url, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	applyAuth(req, creds)

	return c.Do(req)
}

func applyAuth(req *http.Request, creds *models.Credentials) {
	if creds != nil {
		req.SetBasicAuth(creds.Username, creds.Password)
	}
}

// Do executes an HTTP request with retry logic for transient errors
func (c *HTTPClient) Do(req *http.Request) (*http.Response, error) {
	var resp *http.Response
	var lastErr error

	// Retry logic
	for attempt := 0; attempt < c.retryConfig.MaxAttempts; attempt++ {
		// Clone request body if needed (body can only be read once)
		var bodyBytes []byte
		if req.Body != nil {
			bodyBytes, _ = io.ReadAll(req.Body)
			req.Body = io.NopCloser(bytes.NewReader(bodyBytes))
		}

		// Execute request
		startTime := time.Now()
		resp, lastErr = c.client.Do(req)
		duration := time.Since(startTime)

		// Log the request
		lib.LogServiceCall(c.logger, req.URL.Host, req.URL.Path, req.Method)

		// Success
		if lastErr == nil {
			// Log response
			lib.LogServiceResponse(c.logger, req.URL.Host, resp.StatusCode, duration)

			// Check if HTTP status indicates error
			if resp.StatusCode >= 400 {
				// Classify error type
				errorType := lib.ClassifyHTTPError(resp.StatusCode)

				// Create error for HTTP status
				statusErr := fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status)

				// For non-transient errors, return immediately
				if errorType == models.ErrorTypeNonTransient {
					return resp, nil // Return response so caller can read error details
				}

				// For transient errors, retry
				if lib.ShouldRetry(errorType, attempt, c.retryConfig.MaxAttempts) {
					lib.LogRetry(c.logger, req.URL.String(), attempt, c.retryConfig.MaxAttempts, statusErr)

					// Store the error in case this is the last attempt
					lastErr = statusErr

					// Close response body before retry
					_ = resp.Body.Close()

					// Wait before retry
					if attempt < c.retryConfig.MaxAttempts-1 {
						backoff := lib.CalculateBackoff(attempt, c.retryConfig.InitialBackoffMs, c.retryConfig.MaxBackoffMs)
						time.Sleep(backoff)
					}

					// Reset request body for retry
					if bodyBytes != nil {
						req.Body = io.NopCloser(bytes.NewReader(bodyBytes))
					}

					continue
				}
			}

			return resp, nil
		}

		// Network error occurred
		// Check if it's a retryable network error
		if lib.IsNetworkError(lastErr) {
			errorType := models.ErrorTypeTransient
			if lib.ShouldRetry(errorType, attempt, c.retryConfig.MaxAttempts) {
				lib.LogRetry(c.logger, req.URL.String(), attempt, c.retryConfig.MaxAttempts, lastErr)

				// Wait before retry
				if attempt < c.retryConfig.MaxAttempts-1 {
					backoff := lib.CalculateBackoff(attempt, c.retryConfig.InitialBackoffMs, c.retryConfig.MaxBackoffMs)
					time.Sleep(backoff)
				}

				// Reset request body for retry
				if bodyBytes != nil {
					req.Body = io.NopCloser(bytes.NewReader(bodyBytes))
				}

				continue
			}
		}

		// Non-retryable error
		return nil, lastErr
	}

	return nil, fmt.Errorf("request failed after %d attempts: %w", c.retryConfig.MaxAttempts, lastErr)
}

// ReadBody drains and returns a response body, always closing it.
func ReadBody(resp *http.Response) []byte {
	defer func() { _ = resp.Body.Close() }()
	body, _ := io.ReadAll(resp.Body)
	return body
}
