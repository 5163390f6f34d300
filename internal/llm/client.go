package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/dotcommander/storyteller/internal/core"
)

// Client is what agents call to reach a model.
type Client interface {
	Generate(ctx context.Context, req *Request) (*Response, error)
}

// Provider is a single backend API. Providers do not retry; RetryClient
// handles rate limiting and retries for all of them.
type Provider interface {
	Name() string
	Generate(ctx context.Context, req *Request) (*Response, error)
}

// RetryClient wraps a Provider with a token-bucket limiter and linear
// backoff on retryable errors.
type RetryClient struct {
	provider   Provider
	maxRetries int
	timeout    time.Duration
	backoff    time.Duration
	limiter    *rate.Limiter
	logger     *slog.Logger
}

type Option func(*RetryClient)

func WithRetry(maxRetries int) Option {
	return func(c *RetryClient) {
		c.maxRetries = maxRetries
	}
}

// WithTimeout bounds each attempt, not the whole call.
func WithTimeout(timeout time.Duration) Option {
	return func(c *RetryClient) {
		c.timeout = timeout
	}
}

// WithBackoff sets the base delay; attempt n waits n times this long unless
// the server asked for a specific wait.
func WithBackoff(base time.Duration) Option {
	return func(c *RetryClient) {
		c.backoff = base
	}
}

func WithRateLimit(requestsPerMinute int, burst int) Option {
	return func(c *RetryClient) {
		if requestsPerMinute <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, 0)
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(float64(requestsPerMinute)/60.0), burst)
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *RetryClient) {
		c.logger = logger
	}
}

func NewClient(provider Provider, opts ...Option) *RetryClient {
	c := &RetryClient{
		provider:   provider,
		maxRetries: 3,
		backoff:    time.Second,
		limiter:    rate.NewLimiter(rate.Limit(1), 1), // 60 req/min
		logger:     slog.Default().With("component", "llm_client"),
	}

	for _, opt := range opts {
		opt(c)
	}

	c.logger.Debug("llm client initialized",
		"provider", provider.Name(),
		"max_retries", c.maxRetries,
		"rate_limit", fmt.Sprintf("%v req/s", c.limiter.Limit()))

	return c
}

func (c *RetryClient) Generate(ctx context.Context, req *Request) (*Response, error) {
	requestID := uuid.NewString()[:8]
	startTime := time.Now()

	if err := c.limiter.Wait(ctx); err != nil {
		c.logger.Error("rate limit wait failed",
			"request_id", requestID,
			"error", err)
		return nil, fmt.Errorf("rate limit wait failed: %w", err)
	}

	c.logger.Debug("rate limit passed",
		"request_id", requestID,
		"wait_duration_ms", time.Since(startTime).Milliseconds())

	var lastErr error
	var serverWait time.Duration

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(attempt) * c.backoff
			if serverWait > 0 {
				backoff = serverWait
			}
			c.logger.Debug("retry backoff",
				"request_id", requestID,
				"attempt", attempt,
				"backoff_seconds", backoff.Seconds())

			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				c.logger.Warn("request cancelled during backoff",
					"request_id", requestID,
					"attempt", attempt)
				return nil, ctx.Err()
			}
		}

		attemptStart := time.Now()
		c.logger.Debug("sending model request",
			"request_id", requestID,
			"attempt", attempt,
			"provider", c.provider.Name(),
			"model", req.Model,
			"messages", len(req.Messages),
			"tools", len(req.Tools))

		resp, err := c.attempt(ctx, req)
		attemptDuration := time.Since(attemptStart)

		if err == nil {
			c.logger.Info("model request successful",
				"request_id", requestID,
				"attempt", attempt,
				"duration_ms", attemptDuration.Milliseconds(),
				"response_length", len(resp.Content),
				"tool_calls", len(resp.ToolCalls),
				"total_duration_ms", time.Since(startTime).Milliseconds())
			return resp, nil
		}

		lastErr = err

		serverWait = 0
		var retryable *core.RetryableError
		if errors.As(err, &retryable) {
			retryable.MaxRetries = c.maxRetries
			retryable.Attempts = attempt
			serverWait = retryable.RetryAfter
		}

		if !core.IsRetryable(err) {
			c.logger.Error("model request failed with non-retryable error",
				"request_id", requestID,
				"attempt", attempt,
				"duration_ms", attemptDuration.Milliseconds(),
				"error", err)
			return nil, err
		}

		c.logger.Warn("model request failed, will retry",
			"request_id", requestID,
			"attempt", attempt,
			"duration_ms", attemptDuration.Milliseconds(),
			"error", err)
	}

	c.logger.Error("model request failed after max retries",
		"request_id", requestID,
		"max_retries", c.maxRetries,
		"total_duration_ms", time.Since(startTime).Milliseconds(),
		"last_error", lastErr)

	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}

func (c *RetryClient) attempt(ctx context.Context, req *Request) (*Response, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	resp, err := c.provider.Generate(ctx, req)
	if err != nil {
		return nil, err
	}
	if resp == nil || (resp.Content == "" && len(resp.ToolCalls) == 0) {
		return nil, fmt.Errorf("%s: %w", c.provider.Name(), core.ErrEmptyResponse)
	}
	return resp, nil
}
