package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/dotcommander/storyteller/internal/core"
)

const appName = "storyteller"

type Config struct {
	Organizations Organizations `yaml:"organizations" validate:"required"`
	Prompts       PromptsConfig `yaml:"prompts"`
	Limits        Limits        `yaml:"limits" validate:"required"`
	Journal       JournalConfig `yaml:"journal"`
}

type Organizations struct {
	Personalization PersonalizationConfig `yaml:"personalization" validate:"required"`
	Questions       QuestionsConfig       `yaml:"questions" validate:"required"`
}

// ModelConfig selects the model backing one agent.
type ModelConfig struct {
	Provider    string   `yaml:"provider" validate:"provider"`
	Model       string   `yaml:"model" validate:"required"`
	BaseURL     string   `yaml:"base_url" validate:"omitempty,url"`
	Temperature *float64 `yaml:"temperature" validate:"omitempty,min=0,max=2"`
	Reasoning   bool     `yaml:"reasoning"`
	APIKey      string   `yaml:"api_key"`
	MaxTokens   int      `yaml:"max_tokens" validate:"min=0,max=200000"`
}

// Temp returns the configured temperature, or 1 when unset.
func (m ModelConfig) Temp() float64 {
	if m.Temperature == nil {
		return 1
	}
	return *m.Temperature
}

// WithTemperature returns a copy of m using t.
func (m ModelConfig) WithTemperature(t float64) ModelConfig {
	m.Temperature = &t
	return m
}

type PersonalizationConfig struct {
	Agents           map[string]ModelConfig `yaml:"agents" validate:"dive"`
	NumGenerations   int                    `yaml:"num_generations" validate:"min=1,max=16"`
	EvaluationMode   string                 `yaml:"evaluation_mode" validate:"evalmode"`
	NumEvaluations   int                    `yaml:"num_evaluations" validate:"min=0,max=256"`
	Temperatures     []float64              `yaml:"temperatures" validate:"temprange"`
	Critic           string                 `yaml:"critic" validate:"oneof=edition triage"`
	MaxEditionRounds int                    `yaml:"max_edition_rounds" validate:"min=1,max=5"`
}

// Model returns the settings for the named agent, filled with defaults.
func (p PersonalizationConfig) Model(name string) ModelConfig {
	return withDefaults(p.Agents[name])
}

type QuestionsConfig struct {
	Agents      map[string]ModelConfig `yaml:"agents" validate:"dive"`
	Questioners []string               `yaml:"questioners" validate:"min=1,dive,oneof=completion recall open_ended wh distancing"`
	Supervised  bool                   `yaml:"supervised"`
}

func (q QuestionsConfig) Model(name string) ModelConfig {
	return withDefaults(q.Agents[name])
}

type PromptsConfig struct {
	// Dir overrides embedded prompts file by file. Empty uses only the
	// embedded set.
	Dir       string `yaml:"dir"`
	CacheSize int    `yaml:"cache_size" validate:"min=0,max=4096"`
}

type JournalConfig struct {
	Path string `yaml:"path"`
}

func DefaultModel() ModelConfig {
	return ModelConfig{
		Provider: "ollama",
		Model:    "gemma3:4b",
		BaseURL:  "http://localhost:11434/v1",
	}
}

func DefaultConfig() *Config {
	return &Config{
		Organizations: Organizations{
			Personalization: PersonalizationConfig{
				Agents:           map[string]ModelConfig{},
				NumGenerations:   3,
				EvaluationMode:   "combination",
				Temperatures:     []float64{0.5, 1.5},
				Critic:           "edition",
				MaxEditionRounds: 1,
			},
			Questions: QuestionsConfig{
				Agents:      map[string]ModelConfig{},
				Questioners: []string{"completion", "recall", "open_ended", "wh", "distancing"},
			},
		},
		Limits: DefaultLimits(),
	}
}

// Load reads the configuration from path, or from the default location
// when path is empty. A missing default file yields DefaultConfig.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	explicit := path != ""
	if !explicit {
		path = getConfigPath()
	}

	cfg := DefaultConfig()

	data, err := os.ReadFile(expandTilde(path))
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	case errors.Is(err, fs.ErrNotExist) && !explicit:
		// built-in defaults
	default:
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func getConfigPath() string {
	if path := os.Getenv("STORYTELLER_CONFIG"); path != "" {
		return path
	}

	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, appName, "config.yaml")
	}

	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", appName, "config.yaml")
}

// expandTilde expands a tilde (~) at the beginning of a path to the user's home directory
func expandTilde(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}

// Validate fills zero values with defaults, resolves API keys from the
// environment and checks every field.
func (c *Config) Validate() error {
	def := DefaultConfig()

	p := &c.Organizations.Personalization
	if p.EvaluationMode == "" {
		p.EvaluationMode = def.Organizations.Personalization.EvaluationMode
	}
	if p.NumGenerations == 0 {
		p.NumGenerations = def.Organizations.Personalization.NumGenerations
	}
	if len(p.Temperatures) == 0 {
		p.Temperatures = def.Organizations.Personalization.Temperatures
	}
	if p.Critic == "" {
		p.Critic = def.Organizations.Personalization.Critic
	}
	if p.MaxEditionRounds == 0 {
		p.MaxEditionRounds = def.Organizations.Personalization.MaxEditionRounds
	}

	q := &c.Organizations.Questions
	if len(q.Questioners) == 0 {
		q.Questioners = def.Organizations.Questions.Questioners
	}

	if c.Limits.MaxConcurrency == 0 {
		c.Limits = DefaultLimits()
	}

	c.Prompts.Dir = expandTilde(c.Prompts.Dir)
	c.Journal.Path = expandTilde(c.Journal.Path)

	resolveKeys(p.Agents)
	resolveKeys(q.Agents)

	for name, m := range p.Agents {
		p.Agents[name] = withDefaults(m)
	}
	for name, m := range q.Agents {
		q.Agents[name] = withDefaults(m)
	}

	if err := newValidator().Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return core.NewConfigError(verrs[0].Namespace(), "failed %q validation (value %v)", verrs[0].Tag(), verrs[0].Value())
		}
		return core.NewConfigError("", "%v", err)
	}

	if evaluationMode(p.EvaluationMode) == "random" {
		if limit := p.NumGenerations * (p.NumGenerations - 1); p.NumEvaluations > limit {
			return core.NewConfigError("organizations.personalization.num_evaluations",
				"random mode can draw at most %d distinct pairs from %d generations, got %d",
				limit, p.NumGenerations, p.NumEvaluations)
		}
	}

	return nil
}

func newValidator() *validator.Validate {
	validate := validator.New()

	validate.RegisterValidation("evalmode", func(fl validator.FieldLevel) bool {
		return IsEvaluationMode(fl.Field().String())
	})

	validate.RegisterValidation("provider", func(fl validator.FieldLevel) bool {
		switch fl.Field().String() {
		case "ollama", "inferencer", "openai", "anthropic":
			return true
		}
		return false
	})

	validate.RegisterValidation("temprange", func(fl validator.FieldLevel) bool {
		temps, ok := fl.Field().Interface().([]float64)
		if !ok || len(temps) != 2 {
			return false
		}
		return temps[0] >= 0 && temps[1] <= 2 && temps[0] <= temps[1]
	})

	return validate
}

// IsEvaluationMode reports whether mode names a pair selection strategy.
// Plural spellings and any letter case are accepted.
func IsEvaluationMode(mode string) bool {
	switch evaluationMode(mode) {
	case "product", "permutation", "combination", "random":
		return true
	}
	return false
}

func evaluationMode(mode string) string {
	return strings.TrimSuffix(strings.ToLower(strings.TrimSpace(mode)), "s")
}

func withDefaults(m ModelConfig) ModelConfig {
	def := DefaultModel()
	if m.Provider == "" {
		m.Provider = def.Provider
	}
	if m.Model == "" {
		m.Model = def.Model
	}
	if m.BaseURL == "" && m.Provider == "ollama" {
		m.BaseURL = def.BaseURL
	}
	return m
}

func resolveKeys(agents map[string]ModelConfig) {
	for name, m := range agents {
		if m.APIKey != "" && !strings.HasPrefix(m.APIKey, "${") {
			continue
		}
		if strings.HasPrefix(m.APIKey, "${") && strings.HasSuffix(m.APIKey, "}") {
			m.APIKey = os.Getenv(strings.TrimSuffix(strings.TrimPrefix(m.APIKey, "${"), "}"))
		}
		if m.APIKey == "" {
			switch m.Provider {
			case "anthropic":
				m.APIKey = os.Getenv("ANTHROPIC_API_KEY")
			case "openai", "inferencer":
				m.APIKey = os.Getenv("OPENAI_API_KEY")
			}
		}
		agents[name] = m
	}
}
