package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"fallback-chat/internal/domain"
)

type stubProvider struct {
	out    string
	err    error
	models []string
}

func (s *stubProvider) Generate(_ context.Context, model string, _ domain.Prompt) (string, error) {
	s.models = append(s.models, model)
	return s.out, s.err
}

func TestParseModelID(t *testing.T) {
	cases := []struct {
		name     string
		id       string
		provider string
		model    string
		wantErr  bool
	}{
		{name: "explicit", id: "openai:gpt-4o-mini", provider: "openai", model: "gpt-4o-mini"},
		{name: "default provider", id: "gemini-2.0-flash", provider: "gemini", model: "gemini-2.0-flash"},
		{name: "case and spaces", id: " OpenAI : gpt-4o ", provider: "openai", model: "gpt-4o"},
		{name: "model with colon", id: "openai:ft:gpt-4o:org", provider: "openai", model: "ft:gpt-4o:org"},
		{name: "empty", id: "  ", wantErr: true},
		{name: "missing model", id: "openai:", wantErr: true},
		{name: "missing provider", id: ":gpt-4o", wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			provider, model, err := ParseModelID(tc.id, "gemini")
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.provider, provider)
			require.Equal(t, tc.model, model)
		})
	}
}

func TestParseModelID_NoDefaultProvider(t *testing.T) {
	_, _, err := ParseModelID("gpt-4o", "")
	require.Error(t, err)
}

func TestFormatModelID(t *testing.T) {
	require.Equal(t, "openai:gpt-4o-mini", FormatModelID("openai", "gpt-4o-mini"))
}

func TestNewRouter_Validation(t *testing.T) {
	_, err := NewRouter("gemini", nil)
	require.Error(t, err)

	_, err = NewRouter("gemini", map[string]Provider{"openai": nil})
	require.Error(t, err)
}

func TestRouter_Dispatch(t *testing.T) {
	oa := &stubProvider{out: "from-openai"}
	gm := &stubProvider{out: "from-gemini"}
	r, err := NewRouter("gemini", map[string]Provider{"openai": oa, "Gemini": gm})
	require.NoError(t, err)
	require.Equal(t, []string{"gemini", "openai"}, r.Providers())

	out, err := r.Generate(context.Background(), "openai:gpt-4o-mini", domain.Prompt{})
	require.NoError(t, err)
	require.Equal(t, "from-openai", out)
	require.Equal(t, []string{"gpt-4o-mini"}, oa.models)

	out, err = r.Generate(context.Background(), "gemini-2.0-flash", domain.Prompt{})
	require.NoError(t, err)
	require.Equal(t, "from-gemini", out)
	require.Equal(t, []string{"gemini-2.0-flash"}, gm.models)
}

func TestRouter_UnknownProvider(t *testing.T) {
	r, err := NewRouter("gemini", map[string]Provider{"gemini": &stubProvider{}})
	require.NoError(t, err)

	_, err = r.Generate(context.Background(), "anthropic:claude", domain.Prompt{})
	require.Error(t, err)
	require.Contains(t, err.Error(), `unknown provider "anthropic"`)
}

func TestRouter_PropagatesProviderError(t *testing.T) {
	boom := errors.New("boom")
	r, err := NewRouter("openai", map[string]Provider{"openai": &stubProvider{err: boom}})
	require.NoError(t, err)

	_, err = r.Generate(context.Background(), "gpt-4o", domain.Prompt{})
	require.ErrorIs(t, err, boom)
}
