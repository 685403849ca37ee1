// Package app assembles the generation service from configuration. Both the
// Lambda entrypoint and the local CLI build through here.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"

	"fallback-chat/internal/config"
	"fallback-chat/internal/domain"
	"fallback-chat/internal/integrations/gemini"
	"fallback-chat/internal/integrations/openai"
	"fallback-chat/internal/integrations/paramstore"
	"fallback-chat/internal/llm"
	"fallback-chat/internal/repository"
	"fallback-chat/internal/usecase"
)

type App struct {
	Service *usecase.GenerateService
	// Events is nil unless EVENTS_TABLE is configured.
	Events repository.EventReader
	Logger *slog.Logger
}

// Build wires the model clients, router, prompt template and observers.
func Build(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var awsCfg *aws.Config
	awsConfig := func() (aws.Config, error) {
		if awsCfg != nil {
			return *awsCfg, nil
		}
		c, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return aws.Config{}, fmt.Errorf("app: load AWS config: %w", err)
		}
		awsCfg = &c
		return c, nil
	}

	openaiSecrets, geminiSecrets, openaiKey, geminiKey, err := secretSources(cfg, awsConfig)
	if err != nil {
		return nil, err
	}

	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}
	openaiOpts := []openai.Option{openai.WithHTTPClient(httpClient)}
	if cfg.OpenAIBaseURL != "" {
		openaiOpts = append(openaiOpts, openai.WithBaseURL(cfg.OpenAIBaseURL))
	}
	openaiClient, err := openai.NewClient(openaiSecrets, openaiKey, openaiOpts...)
	if err != nil {
		return nil, fmt.Errorf("app: create OpenAI client: %w", err)
	}

	geminiOpts := []gemini.Option{gemini.WithHTTPClient(httpClient)}
	if cfg.GeminiBaseURL != "" {
		geminiOpts = append(geminiOpts, gemini.WithBaseURL(cfg.GeminiBaseURL))
	}
	geminiClient, err := gemini.NewClient(geminiSecrets, geminiKey, geminiOpts...)
	if err != nil {
		return nil, fmt.Errorf("app: create Gemini client: %w", err)
	}

	router, err := llm.NewRouter(cfg.DefaultProvider, map[string]llm.Provider{
		config.ProviderOpenAI: openaiClient,
		config.ProviderGemini: geminiClient,
	})
	if err != nil {
		return nil, fmt.Errorf("app: create model router: %w", err)
	}
	for _, id := range []string{cfg.PrimaryModelID, cfg.FallbackModelID} {
		if _, _, err := router.Resolve(id); err != nil {
			return nil, fmt.Errorf("app: %w", err)
		}
	}

	tmpl := usecase.DefaultTemplate()
	if cfg.PromptTemplateFile != "" {
		tmpl, err = usecase.LoadTemplate(cfg.PromptTemplateFile)
		if err != nil {
			return nil, fmt.Errorf("app: %w", err)
		}
	}

	a := &App{Logger: logger}
	var observers []usecase.Observer
	if cfg.EventsTable != "" {
		c, err := awsConfig()
		if err != nil {
			return nil, err
		}
		ledger, err := repository.New(awsdynamodb.NewFromConfig(c), cfg.EventsTable)
		if err != nil {
			return nil, fmt.Errorf("app: create event ledger: %w", err)
		}
		observers = append(observers, ledger)
		a.Events = ledger
	}

	a.Service, err = usecase.NewGenerateService(router, usecase.Options{
		PrimaryModel:   cfg.PrimaryModelID,
		FallbackModel:  cfg.FallbackModelID,
		PromptStyle:    domain.PromptStyle(cfg.PromptStyle),
		Template:       tmpl,
		AttemptTimeout: cfg.PrimaryTimeout,
		Logger:         logger,
		Observers:      observers,
	})
	if err != nil {
		return nil, fmt.Errorf("app: create generate service: %w", err)
	}
	return a, nil
}

// secretSources picks where each provider key comes from: SSM parameters under
// PARAM_PREFIX, or the environment.
func secretSources(cfg config.Config, awsConfig func() (aws.Config, error)) (openai.SecretGetter, gemini.SecretGetter, string, string, error) {
	if !cfg.UsesParamStore() {
		env := cfg.EnvSecrets()
		return env, env, config.OpenAIKeyEnv, config.GeminiKeyEnv, nil
	}
	c, err := awsConfig()
	if err != nil {
		return nil, nil, "", "", err
	}
	store, err := paramstore.New(awsssm.NewFromConfig(c))
	if err != nil {
		return nil, nil, "", "", fmt.Errorf("app: create SSM client: %w", err)
	}
	return store, store,
		paramstore.TokenParameter(cfg.ParamPrefix, config.OpenAITokenParameter),
		paramstore.TokenParameter(cfg.ParamPrefix, config.GeminiTokenParameter),
		nil
}
