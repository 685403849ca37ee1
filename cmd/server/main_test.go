package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"fallback-chat/internal/domain"
)

type fakeEvents struct {
	summary    domain.RequestSummary
	hasSummary bool
	events     []domain.GenerationEvent
	err        error
}

func (f *fakeEvents) ListEvents(_ context.Context, _ string) ([]domain.GenerationEvent, error) {
	return f.events, f.err
}

func (f *fakeEvents) GetSummary(_ context.Context, _ string) (domain.RequestSummary, bool, error) {
	return f.summary, f.hasSummary, nil
}

func TestRootCmd_Subcommands(t *testing.T) {
	root := newRootCmd()
	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	require.ElementsMatch(t, []string{"serve", "ask", "events"}, names)
	require.NotNil(t, root.PersistentFlags().Lookup("env-file"))
}

func TestEventsCmd_RequiresRequestID(t *testing.T) {
	root := newRootCmd()
	root.SetArgs([]string{"events"})
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	require.Error(t, root.Execute())
}

func TestImageDataURL(t *testing.T) {
	dir := t.TempDir()
	png := filepath.Join(dir, "pic.png")
	require.NoError(t, os.WriteFile(png, []byte("hello"), 0o600))

	ref, err := imageDataURL(png)
	require.NoError(t, err)
	require.Equal(t, "data:image/png;base64,aGVsbG8=", ref)

	noExt := filepath.Join(dir, "blob")
	require.NoError(t, os.WriteFile(noExt, []byte("\x89PNG\r\n\x1a\n0000"), 0o600))
	ref, err = imageDataURL(noExt)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(ref, "data:image/png;base64,"), ref)

	empty := filepath.Join(dir, "empty.png")
	require.NoError(t, os.WriteFile(empty, nil, 0o600))
	_, err = imageDataURL(empty)
	require.Error(t, err)

	_, err = imageDataURL(filepath.Join(dir, "missing.png"))
	require.Error(t, err)
}

func TestReadHistory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"text":"hi","isFromUser":true},{"text":"hello","isFromUser":false}]`), 0o600))

	history, err := readHistory(path)
	require.NoError(t, err)
	require.Equal(t, domain.ConversationHistory{
		{Text: "hi", IsFromUser: true},
		{Text: "hello", IsFromUser: false},
	}, history)

	require.NoError(t, os.WriteFile(path, []byte(`{`), 0o600))
	_, err = readHistory(path)
	require.Error(t, err)
}

func TestPrintResult(t *testing.T) {
	res := domain.GenerationResult{ResponseText: "Hi there!", Source: domain.SourceFallback, Model: "openai:gpt-4o-mini", RequestID: "req-1"}

	var buf bytes.Buffer
	require.NoError(t, printResult(&buf, res, false))
	require.Contains(t, buf.String(), "Hi there!\n")
	require.Contains(t, buf.String(), "source=fallback model=openai:gpt-4o-mini request=req-1")

	buf.Reset()
	require.NoError(t, printResult(&buf, res, true))
	require.Contains(t, buf.String(), `"source": "fallback"`)
	require.Contains(t, buf.String(), `"failed": false`)
}

func TestPrintEvents(t *testing.T) {
	at := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	reader := &fakeEvents{
		hasSummary: true,
		summary:    domain.RequestSummary{RequestID: "req-1", Outcome: domain.EventFallbackSuccess, Model: "openai:gpt-4o-mini"},
		events: []domain.GenerationEvent{
			{RequestID: "req-1", Kind: domain.EventFallbackTriggered, Model: "gemini:gemini-2.0-flash", Reason: "model_error", StatusCode: 503, Latency: 120 * time.Millisecond, OccurredAt: at},
			{RequestID: "req-1", Kind: domain.EventFallbackSuccess, Model: "openai:gpt-4o-mini", Latency: 900 * time.Millisecond, OccurredAt: at.Add(time.Second)},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, printEvents(context.Background(), &buf, reader, "req-1"))
	out := buf.String()
	require.Contains(t, out, "request req-1: fallback_success (openai:gpt-4o-mini)")
	require.Contains(t, out, "fallback_triggered")
	require.Contains(t, out, "503")
	require.Contains(t, out, "120ms")
	require.Contains(t, out, "2026-03-14T09:00:01Z")
}

func TestPrintEvents_NoSummary(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printEvents(context.Background(), &buf, &fakeEvents{}, "req-2"))
	require.Equal(t, "request req-2: no outcome recorded\n", buf.String())

	err := printEvents(context.Background(), &buf, &fakeEvents{err: errors.New("boom")}, "req-2")
	require.ErrorContains(t, err, "boom")
}
