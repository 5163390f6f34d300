package llm

import (
	"log/slog"
	"sync"

	"github.com/dotcommander/storyteller/internal/config"
	"github.com/dotcommander/storyteller/internal/core"
)

// NewProvider builds the backend for one agent's model settings.
func NewProvider(m config.ModelConfig) (Provider, error) {
	switch m.Provider {
	case "ollama":
		key := m.APIKey
		if key == "" {
			// ollama ignores the key but the client requires one
			key = "ollama"
		}
		return NewOpenAIProvider(OpenAIConfig{
			Name:      "ollama",
			APIKey:    key,
			BaseURL:   m.BaseURL,
			Model:     m.Model,
			MaxTokens: m.MaxTokens,
		}), nil

	case "openai", "inferencer":
		if m.APIKey == "" {
			return nil, core.NewConfigError("api_key", "%s provider: %v", m.Provider, core.ErrNoAPIKey)
		}
		if m.Provider == "inferencer" && m.BaseURL == "" {
			return nil, core.NewConfigError("base_url", "inferencer provider requires a base_url")
		}
		return NewOpenAIProvider(OpenAIConfig{
			Name:      m.Provider,
			APIKey:    m.APIKey,
			BaseURL:   m.BaseURL,
			Model:     m.Model,
			MaxTokens: m.MaxTokens,
		}), nil

	case "anthropic":
		if m.APIKey == "" {
			return nil, core.NewConfigError("api_key", "anthropic provider: %v", core.ErrNoAPIKey)
		}
		return NewAnthropicProvider(AnthropicConfig{
			APIKey:    m.APIKey,
			BaseURL:   m.BaseURL,
			Model:     m.Model,
			MaxTokens: m.MaxTokens,
		}), nil
	}

	return nil, core.NewConfigError("provider", "unknown provider %q", m.Provider)
}

// Factory hands out one rate-limited client per distinct model setting.
// Agents sharing a backend share its limiter.
type Factory struct {
	mu      sync.Mutex
	limits  config.Limits
	logger  *slog.Logger
	clients map[clientKey]Client
}

type clientKey struct {
	provider string
	baseURL  string
	apiKey   string
}

func NewFactory(limits config.Limits, logger *slog.Logger) *Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &Factory{
		limits:  limits,
		logger:  logger,
		clients: make(map[clientKey]Client),
	}
}

// Client returns the client for m.
func (f *Factory) Client(m config.ModelConfig) (Client, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	key := clientKey{provider: m.Provider, baseURL: m.BaseURL, apiKey: m.APIKey}
	if c, ok := f.clients[key]; ok {
		return c, nil
	}

	provider, err := NewProvider(m)
	if err != nil {
		return nil, err
	}

	c := NewClient(provider,
		WithRetry(f.limits.MaxRetries),
		WithTimeout(f.limits.RequestTimeout),
		WithRateLimit(f.limits.RateLimit.RequestsPerMinute, f.limits.RateLimit.BurstSize),
		WithLogger(f.logger.With("component", "llm_client", "provider", provider.Name())),
	)
	f.clients[key] = c
	return c, nil
}

// Source resolves model settings to a client. Factory is the production
// source; MockClient serves every setting with itself.
type Source interface {
	Client(m config.ModelConfig) (Client, error)
}

var _ Source = (*Factory)(nil)
