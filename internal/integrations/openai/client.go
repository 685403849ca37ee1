package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	goopenai "github.com/sashabaranov/go-openai"

	"fallback-chat/internal/domain"
)

const defaultBaseURL = "https://api.openai.com/v1"

// SecretGetter resolves the API key. Both the SSM paramstore client and the
// static env-backed secrets satisfy it.
type SecretGetter interface {
	GetSecret(ctx context.Context, name string) (string, error)
}

// HTTPStatusError captures non-2xx upstream responses with status-aware context.
type HTTPStatusError struct {
	StatusCode int
	Message    string
	Err        error
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("openai: unexpected status %d: %s", e.StatusCode, e.Message)
}

func (e *HTTPStatusError) Unwrap() error {
	return e.Err
}

func (e *HTTPStatusError) HTTPStatusCode() int {
	return e.StatusCode
}

// Client generates chat completions against an OpenAI-compatible endpoint.
type Client struct {
	baseURL    string
	httpClient *http.Client
	secrets    SecretGetter
	keyName    string

	mu  sync.Mutex
	api *goopenai.Client
}

type Option func(*Client)

func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimSpace(baseURL)
	}
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// NewClient creates a Client whose API key is looked up under keyName on the
// first Generate call and reused for the lifetime of the process.
func NewClient(secrets SecretGetter, keyName string, opts ...Option) (*Client, error) {
	if secrets == nil {
		return nil, errors.New("openai: secret getter must not be nil")
	}
	keyName = strings.TrimSpace(keyName)
	if keyName == "" {
		return nil, errors.New("openai: key name must not be empty")
	}
	c := &Client{
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		secrets:    secrets,
		keyName:    keyName,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// resolveAPI builds the SDK client once the key is known. A failed lookup is
// retried on the next call.
func (c *Client) resolveAPI(ctx context.Context) (*goopenai.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.api != nil {
		return c.api, nil
	}

	key, err := c.secrets.GetSecret(ctx, c.keyName)
	if err != nil {
		return nil, fmt.Errorf("openai: resolve API key: %w", err)
	}
	if strings.TrimSpace(key) == "" {
		return nil, errors.New("openai: API token is empty")
	}

	cfg := goopenai.DefaultConfig(key)
	cfg.BaseURL = apiBaseURL(c.baseURL)
	cfg.HTTPClient = c.resolvedHTTPClient()
	c.api = goopenai.NewClientWithConfig(cfg)
	return c.api, nil
}

func (c *Client) resolvedHTTPClient() *http.Client {
	if c.httpClient != nil {
		return c.httpClient
	}
	return &http.Client{Timeout: 60 * time.Second}
}

func apiBaseURL(baseURL string) string {
	base := strings.TrimRight(baseURL, "/")
	if base == "" {
		return defaultBaseURL
	}
	if strings.HasSuffix(base, "/v1") {
		return base
	}
	return base + "/v1"
}

func (c *Client) Generate(ctx context.Context, model string, prompt domain.Prompt) (string, error) {
	if model == "" {
		return "", errors.New("openai: model must not be empty")
	}
	if len(prompt.Turns) == 0 {
		return "", errors.New("openai: prompt has no turns")
	}

	api, err := c.resolveAPI(ctx)
	if err != nil {
		return "", err
	}

	resp, err := api.CreateChatCompletion(ctx, goopenai.ChatCompletionRequest{
		Model:          model,
		Messages:       toChatMessages(prompt),
		ResponseFormat: structuredAnswerResponseFormat(),
	})
	if err != nil {
		return "", fmt.Errorf("openai: request failed: %w", statusError(err))
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("openai: no choices in response")
	}
	return resp.Choices[0].Message.Content, nil
}

func toChatMessages(prompt domain.Prompt) []goopenai.ChatCompletionMessage {
	messages := make([]goopenai.ChatCompletionMessage, 0, len(prompt.Turns)+1)
	if system := strings.TrimSpace(prompt.System); system != "" {
		messages = append(messages, goopenai.ChatCompletionMessage{
			Role:    goopenai.ChatMessageRoleSystem,
			Content: system,
		})
	}

	for _, t := range prompt.Turns {
		role := goopenai.ChatMessageRoleUser
		if t.Role == domain.RoleAssistant {
			role = goopenai.ChatMessageRoleAssistant
		}
		if t.ImageRef == "" || role != goopenai.ChatMessageRoleUser {
			messages = append(messages, goopenai.ChatCompletionMessage{Role: role, Content: t.Text})
			continue
		}

		var parts []goopenai.ChatMessagePart
		if t.Text != "" {
			parts = append(parts, goopenai.ChatMessagePart{
				Type: goopenai.ChatMessagePartTypeText,
				Text: t.Text,
			})
		}
		parts = append(parts, goopenai.ChatMessagePart{
			Type: goopenai.ChatMessagePartTypeImageURL,
			ImageURL: &goopenai.ChatMessageImageURL{
				URL:    t.ImageRef,
				Detail: goopenai.ImageURLDetailAuto,
			},
		})
		messages = append(messages, goopenai.ChatCompletionMessage{Role: role, MultiContent: parts})
	}
	return messages
}

func structuredAnswerResponseFormat() *goopenai.ChatCompletionResponseFormat {
	return &goopenai.ChatCompletionResponseFormat{
		Type: goopenai.ChatCompletionResponseFormatTypeJSONSchema,
		JSONSchema: &goopenai.ChatCompletionResponseFormatJSONSchema{
			Name:   "structured_answer",
			Strict: true,
			Schema: json.RawMessage(`{
				"type":"object",
				"additionalProperties":false,
				"properties":{
					"response":{"type":"string"},
					"needs_fallback":{"type":"boolean"}
				},
				"required":["response","needs_fallback"]
			}`),
		},
	}
}

// statusError maps SDK errors that carry an HTTP status onto HTTPStatusError.
func statusError(err error) error {
	var apiErr *goopenai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode != 0 {
		return &HTTPStatusError{StatusCode: apiErr.HTTPStatusCode, Message: apiErr.Message, Err: err}
	}
	var reqErr *goopenai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode != 0 {
		return &HTTPStatusError{StatusCode: reqErr.HTTPStatusCode, Message: reqErr.Error(), Err: err}
	}
	return err
}
