package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"google.golang.org/genai"

	"fallback-chat/internal/domain"
)

// SecretGetter resolves the API key.
type SecretGetter interface {
	GetSecret(ctx context.Context, name string) (string, error)
}

// HTTPStatusError carries the status code of a failed generateContent call.
type HTTPStatusError struct {
	StatusCode int
	Message    string
	Err        error
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("gemini: unexpected status %d: %s", e.StatusCode, e.Message)
}

func (e *HTTPStatusError) Unwrap() error {
	return e.Err
}

func (e *HTTPStatusError) HTTPStatusCode() int {
	return e.StatusCode
}

type Client struct {
	baseURL    string
	httpClient *http.Client
	secrets    SecretGetter
	keyName    string

	mu  sync.Mutex
	api *genai.Client
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

func NewClient(secrets SecretGetter, keyName string, opts ...Option) (*Client, error) {
	if secrets == nil {
		return nil, errors.New("gemini: secret getter must not be nil")
	}
	keyName = strings.TrimSpace(keyName)
	if keyName == "" {
		return nil, errors.New("gemini: key name must not be empty")
	}
	c := &Client{
		httpClient: &http.Client{Timeout: 60 * time.Second},
		secrets:    secrets,
		keyName:    keyName,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Client) resolveAPI(ctx context.Context) (*genai.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.api != nil {
		return c.api, nil
	}

	key, err := c.secrets.GetSecret(ctx, c.keyName)
	if err != nil {
		return nil, fmt.Errorf("gemini: resolve API key: %w", err)
	}
	if strings.TrimSpace(key) == "" {
		return nil, errors.New("gemini: API token is empty")
	}

	cfg := &genai.ClientConfig{
		APIKey:     key,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: c.httpClient,
	}
	if c.baseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: c.baseURL}
	}
	api, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}
	c.api = api
	return c.api, nil
}

func (c *Client) Generate(ctx context.Context, model string, prompt domain.Prompt) (string, error) {
	if model == "" {
		return "", errors.New("gemini: model must not be empty")
	}
	contents, err := toContents(prompt)
	if err != nil {
		return "", err
	}
	if len(contents) == 0 {
		return "", errors.New("gemini: prompt has no turns")
	}

	api, err := c.resolveAPI(ctx)
	if err != nil {
		return "", err
	}

	resp, err := api.Models.GenerateContent(ctx, model, contents, generateConfig(prompt.System))
	if err != nil {
		return "", fmt.Errorf("gemini: request failed: %w", statusError(err))
	}
	if resp == nil || len(resp.Candidates) == 0 {
		return "", errors.New("gemini: no candidates in response")
	}
	return resp.Text(), nil
}

func toContents(prompt domain.Prompt) ([]*genai.Content, error) {
	contents := make([]*genai.Content, 0, len(prompt.Turns))
	for i, t := range prompt.Turns {
		role := string(genai.RoleUser)
		if t.Role == domain.RoleAssistant {
			role = string(genai.RoleModel)
		}

		var parts []*genai.Part
		if t.Text != "" {
			parts = append(parts, &genai.Part{Text: t.Text})
		}
		if t.ImageRef != "" && t.Role != domain.RoleAssistant {
			part, err := imagePart(t.ImageRef)
			if err != nil {
				return nil, fmt.Errorf("gemini: turn %d: %w", i, err)
			}
			parts = append(parts, part)
		}
		if len(parts) == 0 {
			continue
		}
		contents = append(contents, &genai.Content{Role: role, Parts: parts})
	}
	return contents, nil
}

func generateConfig(system string) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"response":       {Type: genai.TypeString},
				"needs_fallback": {Type: genai.TypeBoolean},
			},
			Required: []string{"response", "needs_fallback"},
		},
	}
	if system = strings.TrimSpace(system); system != "" {
		cfg.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: system}}}
	}
	return cfg
}

func statusError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) && apiErr.Code != 0 {
		return &HTTPStatusError{StatusCode: apiErr.Code, Message: apiErr.Message, Err: err}
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr.Code != 0 {
		return &HTTPStatusError{StatusCode: apiErrPtr.Code, Message: apiErrPtr.Message, Err: err}
	}
	return err
}
