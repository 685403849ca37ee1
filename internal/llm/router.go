// Package llm routes "provider:model" identifiers to provider clients.
package llm

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"fallback-chat/internal/domain"
)

// Provider generates raw model output for a prompt. The model argument is the
// bare model name with the provider prefix already stripped.
type Provider interface {
	Generate(ctx context.Context, model string, prompt domain.Prompt) (string, error)
}

// ParseModelID splits "provider:model". An id without a provider prefix is
// attributed to defaultProvider.
func ParseModelID(id, defaultProvider string) (string, string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", "", errors.New("llm: model id is empty")
	}
	provider, model, found := strings.Cut(id, ":")
	if !found {
		provider, model = defaultProvider, id
	}
	provider = strings.ToLower(strings.TrimSpace(provider))
	model = strings.TrimSpace(model)
	if provider == "" || model == "" {
		return "", "", fmt.Errorf("llm: invalid model id %q (expected provider:model, e.g. openai:gpt-4o-mini)", id)
	}
	return provider, model, nil
}

// FormatModelID is the inverse of ParseModelID.
func FormatModelID(provider, model string) string {
	return fmt.Sprintf("%s:%s", provider, model)
}

type Router struct {
	defaultProvider string
	providers       map[string]Provider
}

func NewRouter(defaultProvider string, providers map[string]Provider) (*Router, error) {
	if len(providers) == 0 {
		return nil, errors.New("llm: at least one provider is required")
	}
	r := &Router{
		defaultProvider: strings.ToLower(strings.TrimSpace(defaultProvider)),
		providers:       make(map[string]Provider, len(providers)),
	}
	for name, p := range providers {
		if p == nil {
			return nil, fmt.Errorf("llm: provider %q is nil", name)
		}
		r.providers[strings.ToLower(strings.TrimSpace(name))] = p
	}
	return r, nil
}

// Resolve returns the provider registered for id and the bare model name.
func (r *Router) Resolve(id string) (Provider, string, error) {
	provider, model, err := ParseModelID(id, r.defaultProvider)
	if err != nil {
		return nil, "", err
	}
	p, ok := r.providers[provider]
	if !ok {
		return nil, "", fmt.Errorf("llm: unknown provider %q (registered: %s)", provider, strings.Join(r.Providers(), ", "))
	}
	return p, model, nil
}

// Generate satisfies usecase.ModelClient.
func (r *Router) Generate(ctx context.Context, id string, prompt domain.Prompt) (string, error) {
	p, model, err := r.Resolve(id)
	if err != nil {
		return "", err
	}
	return p.Generate(ctx, model, prompt)
}

func (r *Router) Providers() []string {
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
