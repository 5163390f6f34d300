package llm

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/openai/openai-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dotcommander/storyteller/internal/config"
	"github.com/dotcommander/storyteller/internal/core"
)

type fakeProvider struct {
	calls   atomic.Int32
	results []error
	reply   *Response
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) Generate(ctx context.Context, req *Request) (*Response, error) {
	n := int(f.calls.Add(1)) - 1
	if n < len(f.results) && f.results[n] != nil {
		return nil, f.results[n]
	}
	return f.reply, nil
}

func newTestClient(p Provider, retries int) *RetryClient {
	return NewClient(p,
		WithRetry(retries),
		WithBackoff(time.Millisecond),
		WithRateLimit(0, 0))
}

func TestRetryClient(t *testing.T) {
	ok := &Response{Content: "hola"}

	tests := []struct {
		name      string
		results   []error
		retries   int
		wantCalls int32
		wantFail  bool
		wantErr   error
	}{
		{
			name:      "succeeds first time",
			retries:   3,
			wantCalls: 1,
		},
		{
			name:      "retries rate limits",
			results:   []error{StatusError("fake", http.StatusTooManyRequests), StatusError("fake", http.StatusBadGateway)},
			retries:   3,
			wantCalls: 3,
		},
		{
			name:      "stops on terminal error",
			results:   []error{StatusError("fake", http.StatusUnauthorized)},
			retries:   3,
			wantCalls: 1,
			wantFail:  true,
			wantErr:   core.ErrNoAPIKey,
		},
		{
			name:      "stops on unclassified error",
			results:   []error{errors.New("boom")},
			retries:   3,
			wantCalls: 1,
			wantFail:  true,
		},
		{
			name: "gives up after max retries",
			results: []error{
				StatusError("fake", http.StatusServiceUnavailable),
				StatusError("fake", http.StatusServiceUnavailable),
				StatusError("fake", http.StatusServiceUnavailable),
			},
			retries:   2,
			wantCalls: 3,
			wantFail:  true,
			wantErr:   core.ErrServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &fakeProvider{results: tt.results, reply: ok}
			c := newTestClient(p, tt.retries)

			resp, err := c.Generate(context.Background(), &Request{Messages: []Message{User("hola")}})
			assert.Equal(t, tt.wantCalls, p.calls.Load())

			if !tt.wantFail {
				require.NoError(t, err)
				assert.Equal(t, "hola", resp.Content)
				return
			}
			require.Error(t, err)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestRetryClientEmptyResponse(t *testing.T) {
	p := &fakeProvider{reply: &Response{}}
	c := newTestClient(p, 1)

	_, err := c.Generate(context.Background(), &Request{})
	assert.ErrorIs(t, err, core.ErrEmptyResponse)
	assert.Equal(t, int32(2), p.calls.Load())
}

func TestRetryClientCancelledDuringBackoff(t *testing.T) {
	p := &fakeProvider{results: []error{StatusError("fake", http.StatusTooManyRequests)}}
	c := NewClient(p, WithRetry(3), WithBackoff(time.Hour), WithRateLimit(0, 0))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := c.Generate(ctx, &Request{})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, int32(1), p.calls.Load())
}

func TestClassify(t *testing.T) {
	assert.NoError(t, classify("x", nil))
	assert.ErrorIs(t, classify("x", context.DeadlineExceeded), core.ErrTimeout)
	assert.True(t, core.IsRetryable(classify("x", context.DeadlineExceeded)))
	assert.False(t, core.IsRetryable(classify("x", context.Canceled)))

	assert.ErrorIs(t, StatusError("x", http.StatusBadRequest), core.ErrInvalidInput)
	assert.ErrorIs(t, StatusError("x", http.StatusRequestTimeout), core.ErrTimeout)
}

func TestClassifyRetryAfter(t *testing.T) {
	req, err := http.NewRequest(http.MethodPost, "http://localhost:11434/v1/chat/completions", nil)
	require.NoError(t, err)

	limited := func(header string) error {
		resp := &http.Response{StatusCode: http.StatusTooManyRequests, Header: http.Header{}}
		if header != "" {
			resp.Header.Set("Retry-After", header)
		}
		return &openai.Error{StatusCode: http.StatusTooManyRequests, Request: req, Response: resp}
	}

	err = classify("ollama", limited("2"))
	var retryable *core.RetryableError
	require.ErrorAs(t, err, &retryable)
	assert.Equal(t, 2*time.Second, retryable.RetryAfter)
	assert.ErrorIs(t, err, core.ErrRateLimited)
	assert.True(t, core.IsRetryable(err))

	// without the header the plain sentinel is enough
	err = classify("ollama", limited(""))
	assert.False(t, errors.As(err, &retryable))
	assert.ErrorIs(t, err, core.ErrRateLimited)
}

func TestRetryAfterHeader(t *testing.T) {
	now := time.Date(2025, 7, 16, 15, 30, 0, 0, time.UTC)

	tests := []struct {
		name   string
		header string
		want   time.Duration
		wantOK bool
	}{
		{name: "seconds", header: "3", want: 3 * time.Second, wantOK: true},
		{name: "http date", header: now.Add(5 * time.Second).Format(http.TimeFormat), want: 5 * time.Second, wantOK: true},
		{name: "date in the past", header: now.Add(-time.Minute).Format(http.TimeFormat), want: 0, wantOK: true},
		{name: "negative", header: "-1"},
		{name: "garbage", header: "soon"},
		{name: "missing"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := &http.Response{Header: http.Header{}}
			if tt.header != "" {
				resp.Header.Set("Retry-After", tt.header)
			}
			got, ok := retryAfter(resp, now)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}

	_, ok := retryAfter(nil, now)
	assert.False(t, ok)
}

func TestRetryClientWaitsForServer(t *testing.T) {
	wait := core.NewRetryableError(core.ErrRateLimited, 5*time.Millisecond, 1, 0)
	p := &fakeProvider{results: []error{wait}, reply: &Response{Content: "hola"}}
	// the linear backoff would outlive the test
	c := NewClient(p, WithRetry(3), WithBackoff(time.Hour), WithRateLimit(0, 0))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	resp, err := c.Generate(ctx, &Request{})
	require.NoError(t, err)
	assert.Equal(t, "hola", resp.Content)
	assert.Equal(t, int32(2), p.calls.Load())
}

func TestRetryClientBoundsServerRetries(t *testing.T) {
	limited := func() error { return core.NewRetryableError(core.ErrRateLimited, time.Millisecond, 1, 0) }
	p := &fakeProvider{results: []error{limited(), limited(), limited(), limited()}}
	c := newTestClient(p, 2)

	_, err := c.Generate(context.Background(), &Request{})
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrRateLimited)
	assert.Equal(t, int32(3), p.calls.Load())

	var retryable *core.RetryableError
	require.ErrorAs(t, err, &retryable)
	assert.False(t, retryable.CanRetry())
}

func TestNewProvider(t *testing.T) {
	tests := []struct {
		name     string
		model    config.ModelConfig
		wantName string
		wantErr  bool
	}{
		{"ollama without key", config.DefaultModel(), "ollama", false},
		{"openai needs key", config.ModelConfig{Provider: "openai", Model: "gpt-4o-mini"}, "", true},
		{"openai", config.ModelConfig{Provider: "openai", Model: "gpt-4o-mini", APIKey: "sk"}, "openai", false},
		{"inferencer needs base url", config.ModelConfig{Provider: "inferencer", Model: "m", APIKey: "sk"}, "", true},
		{"inferencer", config.ModelConfig{Provider: "inferencer", Model: "m", APIKey: "sk", BaseURL: "https://inference.example.com/v1"}, "inferencer", false},
		{"anthropic needs key", config.ModelConfig{Provider: "anthropic", Model: "claude"}, "", true},
		{"anthropic", config.ModelConfig{Provider: "anthropic", Model: "claude", APIKey: "sk"}, "anthropic", false},
		{"unknown", config.ModelConfig{Provider: "bedrock", Model: "m"}, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewProvider(tt.model)
			if tt.wantErr {
				assert.ErrorIs(t, err, core.ErrConfiguration)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantName, p.Name())
		})
	}
}

func TestFactorySharesClients(t *testing.T) {
	f := NewFactory(config.DefaultLimits(), nil)

	a, err := f.Client(config.DefaultModel())
	require.NoError(t, err)
	b, err := f.Client(config.DefaultModel().WithTemperature(0.3))
	require.NoError(t, err)
	assert.Same(t, a, b)

	other := config.DefaultModel()
	other.BaseURL = "http://gpu-box:11434/v1"
	c, err := f.Client(other)
	require.NoError(t, err)
	assert.NotSame(t, a, c)
}
