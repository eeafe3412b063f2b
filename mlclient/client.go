// Package mlclient is the HTTP client for the external ML prediction
// service. The service is a black box: this package only knows the
// request contract and hands raw response bytes back to the caller for
// normalization.
package mlclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// ErrUnavailable wraps transport failures, timeouts, and non-200
// statuses. There are no automatic retries; a request that misses its
// timeout is a failure, not hung state.
type ErrUnavailable struct {
	Err error
}

func (e *ErrUnavailable) Error() string {
	return fmt.Sprintf("prediction service unavailable: %v", e.Err)
}

func (e *ErrUnavailable) Unwrap() error { return e.Err }

// PredictionRequest is the wire contract of the prediction endpoint.
type PredictionRequest struct {
	Country     string  `json:"country"`
	PolicyType  string  `json:"policy_type"`
	CarbonPrice float64 `json:"carbon_price"`
	Duration    int     `json:"duration"`
	Year        int     `json:"year"`
}

// Client calls the prediction service with a hard per-request timeout
// and client-side rate limiting.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *slog.Logger
}

// Options configures a Client.
type Options struct {
	BaseURL        string
	Timeout        time.Duration // defaults to 30s
	RequestsPerSec int           // defaults to 5
	Logger         *slog.Logger
}

// New creates a prediction-service client.
func New(opts Options) *Client {
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.RequestsPerSec == 0 {
		opts.RequestsPerSec = 5
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Client{
		baseURL: opts.BaseURL,
		httpClient: &http.Client{
			Timeout: opts.Timeout,
		},
		limiter: rate.NewLimiter(rate.Limit(opts.RequestsPerSec), opts.RequestsPerSec),
		logger:  opts.Logger.With("component", "mlclient"),
	}
}

// Predict posts one prediction request and returns the raw response
// body. Any transport error, timeout, or non-200 status is returned as
// *ErrUnavailable; the caller decides whether to surface it or fall
// back to mock data.
func (c *Client) Predict(ctx context.Context, preq PredictionRequest) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, &ErrUnavailable{Err: fmt.Errorf("rate limiter: %w", err)}
	}

	body, err := json.Marshal(preq)
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}

	url := c.baseURL + "/predict/all"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	c.logger.Debug("calling prediction service", "url", url, "country", preq.Country)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &ErrUnavailable{Err: err}
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &ErrUnavailable{Err: fmt.Errorf("reading response: %w", err)}
	}

	if resp.StatusCode != http.StatusOK {
		c.logger.Warn("prediction service returned error status",
			"status", resp.StatusCode, "body", truncate(payload, 512))
		return nil, &ErrUnavailable{Err: fmt.Errorf("status %d", resp.StatusCode)}
	}

	c.logger.Debug("prediction received", "bytes", len(payload))
	return payload, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
