package usecase

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

type structuredAnswer struct {
	Response      string `json:"response"`
	NeedsFallback bool   `json:"needs_fallback"`
}

var (
	errEmptyOutput        = errors.New("usecase: model returned empty output")
	errFallbackRequested  = errors.New("usecase: model requested fallback")
	errMissingAnswerField = errors.New("usecase: structured answer missing response")
)

// parseStructuredAnswer validates the model output against the response schema.
// Any violation is a MalformedOutput failure.
func parseStructuredAnswer(raw string) (structuredAnswer, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return structuredAnswer{}, errEmptyOutput
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &fields); err != nil {
		return structuredAnswer{}, fmt.Errorf("usecase: decode structured answer: %w", err)
	}
	if _, ok := fields["response"]; !ok {
		return structuredAnswer{}, errMissingAnswerField
	}

	var out structuredAnswer
	dec := json.NewDecoder(bytes.NewBufferString(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&out); err != nil {
		return structuredAnswer{}, fmt.Errorf("usecase: decode structured answer: %w", err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err == nil {
			return structuredAnswer{}, errors.New("usecase: decode structured answer: multiple JSON values")
		}
		return structuredAnswer{}, fmt.Errorf("usecase: decode structured answer trailing data: %w", err)
	}
	if out.NeedsFallback {
		return structuredAnswer{}, errFallbackRequested
	}
	if strings.TrimSpace(out.Response) == "" {
		return structuredAnswer{}, errMissingAnswerField
	}
	return out, nil
}
