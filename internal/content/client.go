package content

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// ClientConfig configures the HTTP backend client.
type ClientConfig struct {
	// BaseURL is the backend root, e.g. "https://api.example.com/".
	BaseURL string

	// Token is sent as a bearer token when non-empty.
	Token string

	// Timeout bounds a single request. Default: 15s.
	Timeout time.Duration

	// RatePerSecond and Burst throttle outgoing requests. The pool
	// expansion fan-out can issue nine list calls at once.
	RatePerSecond float64
	Burst         int
}

// DefaultClientConfig returns a ClientConfig with sensible defaults.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		Timeout:       15 * time.Second,
		RatePerSecond: 10,
		Burst:         10,
	}
}

// Client talks to the practice backend over HTTP.
type Client struct {
	base    *url.URL
	token   string
	http    *http.Client
	limiter *rate.Limiter
	logger  *zap.Logger

	// OnUnauthorized is called on any 401 so the caller can drop its
	// stored credentials.
	OnUnauthorized func()
}

var _ Service = (*Client)(nil)

// NewClient creates a Client. BaseURL is required.
func NewClient(cfg ClientConfig, logger *zap.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, &APIError{Message: "backend base URL is not configured"}
	}
	raw := cfg.BaseURL
	if !strings.HasSuffix(raw, "/") {
		raw += "/"
	}
	base, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse base URL: %w", err)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultClientConfig().Timeout
	}
	limit := rate.Inf
	if cfg.RatePerSecond > 0 {
		limit = rate.Limit(cfg.RatePerSecond)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		base:    base,
		token:   cfg.Token,
		http:    &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(limit, burst),
		logger:  logger,
	}, nil
}

// ListActivities returns every activity.
func (c *Client) ListActivities(ctx context.Context) ([]Activity, error) {
	var out []Activity
	if err := c.do(ctx, http.MethodGet, "activities", nil, nil, &out, activityListSchema); err != nil {
		return nil, err
	}
	return out, nil
}

// ListQuestions returns the questions of one activity.
func (c *Client) ListQuestions(ctx context.Context, activityID int64) ([]Question, error) {
	var out []Question
	path := fmt.Sprintf("activities/%d/questions", activityID)
	if err := c.do(ctx, http.MethodGet, path, nil, nil, &out, questionListSchema); err != nil {
		return nil, err
	}
	return out, nil
}

// StartAttempt opens a new attempt for an activity.
func (c *Client) StartAttempt(ctx context.Context, activityID int64) (int64, error) {
	var out struct {
		AttemptID  int64 `json:"attempt_id"`
		ActivityID int64 `json:"activity_id"`
	}
	body := map[string]int64{"activity_id": activityID}
	if err := c.do(ctx, http.MethodPost, "attempts/start", nil, body, &out, nil); err != nil {
		return 0, err
	}
	return out.AttemptID, nil
}

// SubmitAnswer grades one answer against an attempt.
func (c *Client) SubmitAnswer(ctx context.Context, req SubmitRequest) (*Feedback, error) {
	var out Feedback
	if err := c.do(ctx, http.MethodPost, "attempts/submit", nil, req, &out, nil); err != nil {
		return nil, err
	}
	return &out, nil
}

// Me returns the authenticated user.
func (c *Client) Me(ctx context.Context) (*User, error) {
	var out User
	if err := c.do(ctx, http.MethodGet, "me", nil, nil, &out, nil); err != nil {
		return nil, err
	}
	return &out, nil
}

// UserStats returns the backend's per-user statistics.
func (c *Client) UserStats(ctx context.Context, userID int64) (UserStats, error) {
	out := UserStats{}
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("users/%d/stats", userID), nil, nil, &out, nil); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any, schema *payloadSchema) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	u := c.base.ResolveReference(&url.URL{Path: path})
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request body: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return &APIError{Message: "request failed", Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return &APIError{Status: resp.StatusCode, Message: "read response body", Err: err}
	}

	c.logger.Debug("backend request",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("latency", time.Since(start)),
	)

	if resp.StatusCode == http.StatusUnauthorized && c.OnUnauthorized != nil {
		c.OnUnauthorized()
	}

	isJSON := strings.Contains(resp.Header.Get("Content-Type"), "application/json")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return errorFromResponse(resp, raw, isJSON)
	}

	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}

	if schema != nil {
		if err := schema.validate(raw); err != nil {
			return &APIError{Status: resp.StatusCode, Message: "unexpected payload shape", Err: err}
		}
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return &APIError{Status: resp.StatusCode, Message: "decode response", Err: err}
	}
	return nil
}

// errorFromResponse extracts FastAPI-style "detail" or "message" fields,
// falling back to the raw body and then the status text.
func errorFromResponse(resp *http.Response, raw []byte, isJSON bool) error {
	apiErr := &APIError{Status: resp.StatusCode}

	if isJSON {
		var payload any
		if err := json.Unmarshal(raw, &payload); err == nil {
			apiErr.Details = payload
			if obj, ok := payload.(map[string]any); ok {
				for _, key := range []string{"detail", "message"} {
					if v, ok := obj[key]; ok && v != nil {
						apiErr.Message = fmt.Sprint(v)
						break
					}
				}
			}
		}
	} else if text := strings.TrimSpace(string(raw)); text != "" {
		apiErr.Message = text
		apiErr.Details = text
	}

	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(resp.StatusCode)
	}
	if apiErr.Message == "" {
		apiErr.Message = "request failed"
	}
	return apiErr
}

// IsTransport reports whether err is a transport failure rather than a
// backend response.
func IsTransport(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == 0
}
