package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"fallback-chat/internal/domain"
)

type fakeSecrets struct {
	val   string
	err   error
	calls int
}

func (f *fakeSecrets) GetSecret(_ context.Context, _ string) (string, error) {
	f.calls++
	return f.val, f.err
}

func newTestClient(t *testing.T, srv *httptest.Server) *Client {
	t.Helper()
	c, err := NewClient(
		&fakeSecrets{val: "gm-test"},
		"GEMINI_API_KEY",
		WithBaseURL(srv.URL+"/"),
		WithHTTPClient(&http.Client{Timeout: 2 * time.Second}),
	)
	require.NoError(t, err)
	return c
}

func TestNewClient_Validation(t *testing.T) {
	_, err := NewClient(nil, "GEMINI_API_KEY")
	require.Error(t, err)

	_, err = NewClient(&fakeSecrets{}, "")
	require.Error(t, err)
}

func TestImagePart_DataURL(t *testing.T) {
	part, err := imagePart("data:image/jpeg;base64,aGVsbG8=")
	require.NoError(t, err)
	require.NotNil(t, part.InlineData)
	require.Equal(t, "image/jpeg", part.InlineData.MIMEType)
	require.Equal(t, []byte("hello"), part.InlineData.Data)
}

func TestImagePart_URI(t *testing.T) {
	part, err := imagePart("https://example.com/photos/cat.jpg")
	require.NoError(t, err)
	require.NotNil(t, part.FileData)
	require.Equal(t, "https://example.com/photos/cat.jpg", part.FileData.FileURI)
	require.Equal(t, "image/jpeg", part.FileData.MIMEType)

	part, err = imagePart("gs://bucket/object")
	require.NoError(t, err)
	require.Equal(t, fallbackMIMEType, part.FileData.MIMEType)
}

func TestImagePart_Errors(t *testing.T) {
	cases := map[string]string{
		"empty":         " ",
		"no comma":      "data:image/png;base64",
		"not base64":    "data:image/png,rawbytes",
		"bad payload":   "data:image/png;base64,!!!",
		"empty payload": "data:image/png;base64,",
	}
	for name, ref := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := imagePart(ref)
			require.Error(t, err)
		})
	}
}

func TestToContents(t *testing.T) {
	contents, err := toContents(domain.Prompt{Turns: []domain.PromptTurn{
		{Role: domain.RoleUser, Text: "hi"},
		{Role: domain.RoleAssistant, Text: "hello"},
		{Role: domain.RoleUser, Text: "look", ImageRef: "data:image/png;base64,aGVsbG8="},
		{Role: domain.RoleAssistant},
	}})
	require.NoError(t, err)
	require.Len(t, contents, 3)
	require.Equal(t, "user", contents[0].Role)
	require.Equal(t, "model", contents[1].Role)
	require.Len(t, contents[2].Parts, 2)
	require.Equal(t, "look", contents[2].Parts[0].Text)
	require.Equal(t, "image/png", contents[2].Parts[1].InlineData.MIMEType)

	_, err = toContents(domain.Prompt{Turns: []domain.PromptTurn{{Role: domain.RoleUser, ImageRef: "data:broken"}}})
	require.Error(t, err)
}

func TestGenerateConfig(t *testing.T) {
	cfg := generateConfig(" be brief ")
	require.Equal(t, "application/json", cfg.ResponseMIMEType)
	require.Equal(t, genai.TypeObject, cfg.ResponseSchema.Type)
	require.ElementsMatch(t, []string{"response", "needs_fallback"}, cfg.ResponseSchema.Required)
	require.Equal(t, "be brief", cfg.SystemInstruction.Parts[0].Text)

	require.Nil(t, generateConfig("").SystemInstruction)
}

func TestClient_Generate_HappyPath(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.True(t, strings.HasSuffix(r.URL.Path, "models/gemini-mock:generateContent"), r.URL.Path)
		raw, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		var body map[string]any
		require.NoError(t, json.Unmarshal(raw, &body))
		require.Len(t, body["contents"], 1)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"candidates": [{
				"content": {"role": "model", "parts": [{"text": "{\"response\":\"Hi\",\"needs_fallback\":false}"}]}
			}]
		}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	out, err := c.Generate(context.Background(), "gemini-mock", domain.Prompt{
		System: "sys",
		Turns:  []domain.PromptTurn{{Role: domain.RoleUser, Text: "hello"}},
	})
	require.NoError(t, err)
	require.Equal(t, `{"response":"Hi","needs_fallback":false}`, out)
}

func TestClient_Generate_StatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"code":429,"message":"quota exceeded","status":"RESOURCE_EXHAUSTED"}}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	_, err := c.Generate(context.Background(), "gemini-mock", domain.Prompt{
		Turns: []domain.PromptTurn{{Role: domain.RoleUser, Text: "hello"}},
	})
	require.Error(t, err)
	var statusErr *HTTPStatusError
	require.ErrorAs(t, err, &statusErr)
	require.Equal(t, http.StatusTooManyRequests, statusErr.HTTPStatusCode())
}

func TestClient_Generate_Validation(t *testing.T) {
	secrets := &fakeSecrets{val: "gm-test"}
	c, err := NewClient(secrets, "GEMINI_API_KEY")
	require.NoError(t, err)

	_, err = c.Generate(context.Background(), "", domain.Prompt{})
	require.Error(t, err)

	_, err = c.Generate(context.Background(), "gemini-mock", domain.Prompt{})
	require.Error(t, err)
	require.Contains(t, err.Error(), "no turns")
	require.Zero(t, secrets.calls, "invalid prompts must not resolve credentials")
}

func TestClient_ResolveAPI_Errors(t *testing.T) {
	c, err := NewClient(&fakeSecrets{err: errors.New("ssm down")}, "GEMINI_API_KEY")
	require.NoError(t, err)
	_, err = c.resolveAPI(context.Background())
	require.ErrorContains(t, err, "ssm down")

	c, err = NewClient(&fakeSecrets{val: ""}, "GEMINI_API_KEY")
	require.NoError(t, err)
	_, err = c.resolveAPI(context.Background())
	require.ErrorContains(t, err, "API token is empty")
}
