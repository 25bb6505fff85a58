package config

import "time"

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server  ServerConfig  `mapstructure:"server" validate:"required"`
	LLM     LLMConfig     `mapstructure:"llm" validate:"required"`
	Content ContentConfig `mapstructure:"content" validate:"required"`
	Session SessionConfig `mapstructure:"session" validate:"required"`
	Auth    AuthConfig    `mapstructure:"auth" validate:"required"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port            int           `mapstructure:"port" validate:"required,gt=0,lt=65536"`
	LogLevel        string        `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"gt=0"`
}

// LLMConfig contains all LLM integration related settings.
type LLMConfig struct {
	// Provider selects the adapter: gemini, or openai for any
	// OpenAI-compatible endpoint (cerebras is an alias).
	Provider string `mapstructure:"provider" validate:"required,oneof=gemini openai cerebras"`

	// APIKey may be empty at load time; generation then fails with an
	// authentication error before any network call.
	APIKey string `mapstructure:"api_key"`

	// ModelName overrides the provider's default model.
	ModelName string `mapstructure:"model"`

	// BaseURL overrides the provider endpoint.
	BaseURL string `mapstructure:"base_url" validate:"omitempty,url"`

	// PromptTemplatePath points at a prompt catalog replacing the embedded one.
	PromptTemplatePath string `mapstructure:"prompt_template_path" validate:"omitempty,file"`

	// MaxInputChars overrides the provider's input truncation bound. Zero
	// keeps the provider default.
	MaxInputChars int `mapstructure:"max_input_chars" validate:"gte=0"`

	Temperature float32 `mapstructure:"temperature" validate:"gte=0,lte=2"`

	// StructuredOutput enables JSON-schema response formats on
	// OpenAI-compatible endpoints that support them.
	StructuredOutput bool `mapstructure:"structured_output"`

	Timeout       time.Duration `mapstructure:"timeout" validate:"gt=0"`
	MaxConcurrent int64         `mapstructure:"max_concurrent" validate:"gte=1"`
}

// ContentConfig controls input normalization and the sufficiency gate.
type ContentConfig struct {
	MinAlphanumeric int   `mapstructure:"min_alphanumeric" validate:"gte=1"`
	MaxFileBytes    int64 `mapstructure:"max_file_bytes" validate:"gt=0"`
}

// SessionConfig controls session defaults and expiry.
type SessionConfig struct {
	IdleTimeout  time.Duration `mapstructure:"idle_timeout" validate:"gt=0"`
	DefaultCount int           `mapstructure:"default_count" validate:"gte=1,lte=100"`
	DefaultMode  string        `mapstructure:"default_mode" validate:"oneof=FLASHCARDS QUIZ flashcards quiz"`
}

// AuthConfig contains session token settings. The secret is only required
// by the HTTP server.
type AuthConfig struct {
	SessionSecret        string `mapstructure:"session_secret" validate:"omitempty,min=32"`
	TokenLifetimeMinutes int    `mapstructure:"token_lifetime_minutes" validate:"gt=0"`
}
