// Package config loads runtime settings from the environment (and an optional
// .env file) for both the Lambda and the local server entrypoints.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"

	OpenAIKeyEnv = "OPENAI_API_KEY"
	GeminiKeyEnv = "GEMINI_API_KEY"

	// SSM parameter names under PARAM_PREFIX.
	OpenAITokenParameter = "open-ai-token"
	GeminiTokenParameter = "gemini-token"
)

type Config struct {
	PrimaryModelID  string
	FallbackModelID string
	DefaultProvider string

	OpenAIAPIKey  string
	GeminiAPIKey  string
	ParamPrefix   string
	OpenAIBaseURL string
	GeminiBaseURL string

	PrimaryTimeout time.Duration
	HTTPTimeout    time.Duration

	PromptStyle        string
	PromptTemplateFile string

	EventsTable string

	LogLevel  string
	LogFormat string

	HTTPAddr           string
	CORSAllowedOrigins []string
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("DEFAULT_PROVIDER", ProviderGemini)
	v.SetDefault("PRIMARY_TIMEOUT", "0s")
	v.SetDefault("HTTP_TIMEOUT", "60s")
	v.SetDefault("PROMPT_STYLE", "chat")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("CORS_ALLOWED_ORIGINS", "*")
}

// Load reads the given .env files (missing files are ignored; existing
// environment variables win) and then the process environment.
func Load(envFiles ...string) (Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("config: load %s: %w", f, err)
		}
	}

	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)

	primaryTimeout, err := duration(v, "PRIMARY_TIMEOUT")
	if err != nil {
		return Config{}, err
	}
	httpTimeout, err := duration(v, "HTTP_TIMEOUT")
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		PrimaryModelID:     strings.TrimSpace(v.GetString("PRIMARY_MODEL_ID")),
		FallbackModelID:    strings.TrimSpace(v.GetString("FALLBACK_MODEL_ID")),
		DefaultProvider:    strings.ToLower(strings.TrimSpace(v.GetString("DEFAULT_PROVIDER"))),
		OpenAIAPIKey:       strings.TrimSpace(v.GetString(OpenAIKeyEnv)),
		GeminiAPIKey:       strings.TrimSpace(v.GetString(GeminiKeyEnv)),
		ParamPrefix:        strings.TrimSpace(v.GetString("PARAM_PREFIX")),
		OpenAIBaseURL:      strings.TrimSpace(v.GetString("OPENAI_BASE_URL")),
		GeminiBaseURL:      strings.TrimSpace(v.GetString("GEMINI_BASE_URL")),
		PrimaryTimeout:     primaryTimeout,
		HTTPTimeout:        httpTimeout,
		PromptStyle:        strings.ToLower(strings.TrimSpace(v.GetString("PROMPT_STYLE"))),
		PromptTemplateFile: strings.TrimSpace(v.GetString("PROMPT_TEMPLATE_FILE")),
		EventsTable:        strings.TrimSpace(v.GetString("EVENTS_TABLE")),
		LogLevel:           strings.ToLower(strings.TrimSpace(v.GetString("LOG_LEVEL"))),
		LogFormat:          strings.ToLower(strings.TrimSpace(v.GetString("LOG_FORMAT"))),
		HTTPAddr:           strings.TrimSpace(v.GetString("HTTP_ADDR")),
		CORSAllowedOrigins: splitList(v.GetString("CORS_ALLOWED_ORIGINS")),
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func duration(v *viper.Viper, key string) (time.Duration, error) {
	raw := strings.TrimSpace(v.GetString(key))
	if raw == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return d, nil
}

func splitList(raw string) []string {
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func (c Config) Validate() error {
	if c.PrimaryModelID == "" {
		return errors.New("config: PRIMARY_MODEL_ID is required")
	}
	if c.FallbackModelID == "" {
		return errors.New("config: FALLBACK_MODEL_ID is required")
	}
	switch c.DefaultProvider {
	case ProviderOpenAI, ProviderGemini:
	default:
		return fmt.Errorf("config: DEFAULT_PROVIDER %q is not supported", c.DefaultProvider)
	}
	switch c.PromptStyle {
	case "chat", "single":
	default:
		return fmt.Errorf("config: PROMPT_STYLE %q is not supported", c.PromptStyle)
	}
	if c.PrimaryTimeout < 0 {
		return errors.New("config: PRIMARY_TIMEOUT must not be negative")
	}
	if c.HTTPTimeout <= 0 {
		return errors.New("config: HTTP_TIMEOUT must be positive")
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		return err
	}
	switch c.LogFormat {
	case "json", "text":
	default:
		return fmt.Errorf("config: LOG_FORMAT %q is not supported", c.LogFormat)
	}
	return nil
}

// UsesParamStore reports whether provider keys are read from SSM.
func (c Config) UsesParamStore() bool {
	return c.ParamPrefix != ""
}
