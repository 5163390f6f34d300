package config

import "time"

type Limits struct {
	MaxConcurrency int             `yaml:"max_concurrency" validate:"required,min=1,max=64"`
	MaxRetries     int             `yaml:"max_retries" validate:"min=0,max=10"`
	RequestTimeout time.Duration   `yaml:"request_timeout" validate:"required,min=1s,max=1h"`
	TotalTimeout   time.Duration   `yaml:"total_timeout" validate:"required,min=1m,max=24h"`
	MaxSteps       int             `yaml:"max_steps" validate:"required,min=1,max=1000"`
	MaxToolRounds  int             `yaml:"max_tool_rounds" validate:"required,min=1,max=50"`
	RateLimit      RateLimitConfig `yaml:"rate_limit" validate:"required"`
}

type RateLimitConfig struct {
	RequestsPerMinute int `yaml:"requests_per_minute" validate:"required,min=1,max=1000"`
	BurstSize         int `yaml:"burst_size" validate:"required,min=1,max=100"`
}

func DefaultLimits() Limits {
	return Limits{
		MaxConcurrency: 4,
		MaxRetries:     3,
		RequestTimeout: 10 * time.Minute, // local models on CPU are slow
		TotalTimeout:   2 * time.Hour,
		MaxSteps:       25,
		MaxToolRounds:  8,
		RateLimit: RateLimitConfig{
			RequestsPerMinute: 120,
			BurstSize:         8,
		},
	}
}
