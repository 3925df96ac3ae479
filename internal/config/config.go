package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/gatekeeper-bot/gatekeeper/internal/llm"
	"github.com/gatekeeper-bot/gatekeeper/internal/messages"
)

// Backend names accepted for the top-level "backend" key.
const (
	BackendOpenAI = "openai"
	BackendOllama = "ollama"
	BackendGemini = "gemini"
)

// Config holds service configuration, loaded from a YAML file and/or
// GATEKEEPER_-prefixed environment variables.
type Config struct {
	Telegram Telegram `mapstructure:"telegram"`

	Backend string   `mapstructure:"backend"`
	OpenAI  Provider `mapstructure:"openai"`
	Ollama  Provider `mapstructure:"ollama"`
	Gemini  Provider `mapstructure:"gemini"`

	// AnswerTimeout and RetryTimeout are in seconds.
	AnswerTimeout int    `mapstructure:"answer_timeout"`
	RetryTimeout  int    `mapstructure:"retry_timeout"`
	DefaultTopic  string `mapstructure:"default_topic"`

	// DatabaseURL is optional; without it group config and verification
	// history live in memory only.
	DatabaseURL string `mapstructure:"database_url"`

	Ops    Ops    `mapstructure:"ops"`
	Events Events `mapstructure:"events"`
	Log    Log    `mapstructure:"log"`

	Messages messages.Catalog `mapstructure:"messages"`
	Prompts  llm.Prompts      `mapstructure:"prompts"`
}

// Telegram configures the Bot API connection.
type Telegram struct {
	BotToken string `mapstructure:"bot_token"`
	BaseURL  string `mapstructure:"base_url"`
	// PollTimeout is the long-poll window in seconds.
	PollTimeout int `mapstructure:"poll_timeout"`
}

// Provider configures one LLM backend.
type Provider struct {
	APIKey  string                 `mapstructure:"api_key"`
	Model   string                 `mapstructure:"model"`
	BaseURL string                 `mapstructure:"base_url"`
	Options map[string]interface{} `mapstructure:"options"`
}

// Ops configures the management HTTP server.
type Ops struct {
	Addr      string `mapstructure:"addr"`
	AuthToken string `mapstructure:"auth_token"`
	// AuthTokenBcrypt is a bcrypt hash checked when AuthToken is unset.
	AuthTokenBcrypt string `mapstructure:"auth_token_bcrypt"`
}

// Events configures the AMQP decision feed. An empty AMQPURL disables it.
type Events struct {
	AMQPURL  string `mapstructure:"amqp_url"`
	Exchange string `mapstructure:"exchange"`
}

// Log configures zerolog output.
type Log struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

// Load unmarshals and validates configuration from v. Defaults are
// registered on v first so env-only keys survive Unmarshal.
func Load(v *viper.Viper) (*Config, error) {
	setDefaults(v)

	cfg := &Config{
		Messages: messages.Default(),
		Prompts:  llm.DefaultPrompts(),
	}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// setDefaults registers every scalar key. Viper only exposes
// AutomaticEnv values for keys it already knows about.
func setDefaults(v *viper.Viper) {
	v.SetDefault("telegram.bot_token", "")
	v.SetDefault("telegram.base_url", "https://api.telegram.org")
	v.SetDefault("telegram.poll_timeout", 30)

	v.SetDefault("backend", "")
	for _, p := range []string{BackendOpenAI, BackendOllama, BackendGemini} {
		v.SetDefault(p+".api_key", "")
		v.SetDefault(p+".model", "")
		v.SetDefault(p+".base_url", "")
	}

	v.SetDefault("answer_timeout", 60)
	v.SetDefault("retry_timeout", 300)
	v.SetDefault("default_topic", "general knowledge")

	v.SetDefault("database_url", "")

	v.SetDefault("ops.addr", ":8080")
	v.SetDefault("ops.auth_token", "")
	v.SetDefault("ops.auth_token_bcrypt", "")

	v.SetDefault("events.amqp_url", "")
	v.SetDefault("events.exchange", "gatekeeper.events")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)
}

func (c *Config) validate() error {
	if strings.TrimSpace(c.Telegram.BotToken) == "" {
		return fmt.Errorf("config: telegram.bot_token is required")
	}
	switch c.Backend {
	case BackendOpenAI:
		if strings.TrimSpace(c.OpenAI.APIKey) == "" {
			return fmt.Errorf("config: openai.api_key is required when backend is %q", BackendOpenAI)
		}
	case BackendOllama:
		// Runs against a local daemon, no credentials to check.
	case BackendGemini:
		if strings.TrimSpace(c.Gemini.APIKey) == "" {
			return fmt.Errorf("config: gemini.api_key is required when backend is %q", BackendGemini)
		}
	case "":
		return fmt.Errorf("config: backend is required (openai, ollama or gemini)")
	default:
		return fmt.Errorf("config: unknown backend %q (want openai, ollama or gemini)", c.Backend)
	}
	if c.AnswerTimeout <= 0 {
		return fmt.Errorf("config: answer_timeout must be positive, got %d", c.AnswerTimeout)
	}
	if c.RetryTimeout <= 0 {
		return fmt.Errorf("config: retry_timeout must be positive, got %d", c.RetryTimeout)
	}
	if c.Telegram.PollTimeout <= 0 {
		return fmt.Errorf("config: telegram.poll_timeout must be positive, got %d", c.Telegram.PollTimeout)
	}
	return nil
}

// AnswerWindow returns the answer timeout as a duration.
func (c *Config) AnswerWindow() time.Duration {
	return time.Duration(c.AnswerTimeout) * time.Second
}

// RetryWindow returns the retry cooldown as a duration.
func (c *Config) RetryWindow() time.Duration {
	return time.Duration(c.RetryTimeout) * time.Second
}

// PollWindow returns the long-poll timeout as a duration.
func (t Telegram) PollWindow() time.Duration {
	return time.Duration(t.PollTimeout) * time.Second
}
