package config

import (
	"context"
	"fmt"
	"strings"
)

// StaticSecrets serves API keys already present in memory, keyed by name.
type StaticSecrets map[string]string

func (s StaticSecrets) GetSecret(_ context.Context, name string) (string, error) {
	v := strings.TrimSpace(s[name])
	if v == "" {
		return "", fmt.Errorf("config: secret %s is not set", name)
	}
	return v, nil
}

// EnvSecrets exposes the API keys read from the environment.
func (c Config) EnvSecrets() StaticSecrets {
	return StaticSecrets{
		OpenAIKeyEnv: c.OpenAIAPIKey,
		GeminiKeyEnv: c.GeminiAPIKey,
	}
}
