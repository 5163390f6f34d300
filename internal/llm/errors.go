package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/openai/openai-go"

	"github.com/dotcommander/storyteller/internal/core"
)

// classify maps SDK and transport failures onto the core sentinels so the
// retry loop can tell transient errors from terminal ones.
func classify(provider string, err error) error {
	if err == nil {
		return nil
	}

	var sentinel error
	var status int
	var resp *http.Response

	var oaiErr *openai.Error
	var antErr *anthropic.Error
	var netErr net.Error

	switch {
	case errors.As(err, &oaiErr):
		status, resp = oaiErr.StatusCode, oaiErr.Response
	case errors.As(err, &antErr):
		status, resp = antErr.StatusCode, antErr.Response
	}

	// the server said when to come back; the client fills in the budget
	if status == http.StatusTooManyRequests {
		if wait, ok := retryAfter(resp, time.Now()); ok {
			return fmt.Errorf("%s: %w", provider,
				core.NewRetryableError(fmt.Errorf("%w: %w", core.ErrRateLimited, err), wait, 1, 0))
		}
	}

	switch {
	case status >= 400:
		sentinel = statusSentinel(status)
	case errors.Is(err, context.DeadlineExceeded):
		sentinel = core.ErrTimeout
	case errors.Is(err, context.Canceled):
		return fmt.Errorf("%s: %w", provider, err)
	case errors.As(err, &netErr):
		sentinel = core.ErrNetworkError
	default:
		return fmt.Errorf("%s: %w", provider, err)
	}

	return fmt.Errorf("%s: %w: %w", provider, sentinel, err)
}

// StatusError builds an error equivalent to what a provider returns for an
// HTTP status, for tests and fakes.
func StatusError(provider string, status int) error {
	return fmt.Errorf("%s: status %d: %w", provider, status, statusSentinel(status))
}

func statusSentinel(status int) error {
	switch {
	case status == http.StatusTooManyRequests:
		return core.ErrRateLimited
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return core.ErrNoAPIKey
	case status == http.StatusRequestTimeout:
		return core.ErrTimeout
	case status >= 500:
		return core.ErrServerError
	default:
		return core.ErrInvalidInput
	}
}

// retryAfter reads the Retry-After header, in seconds or as an HTTP date.
func retryAfter(resp *http.Response, now time.Time) (time.Duration, bool) {
	if resp == nil {
		return 0, false
	}
	v := resp.Header.Get("Retry-After")
	if v == "" {
		return 0, false
	}
	if secs, err := strconv.Atoi(v); err == nil {
		if secs < 0 {
			return 0, false
		}
		return time.Duration(secs) * time.Second, true
	}
	if at, err := http.ParseTime(v); err == nil {
		return max(at.Sub(now), 0), true
	}
	return 0, false
}
