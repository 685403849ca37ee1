package usecase

import (
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
)

// Template holds the fixed wording the prompt builder wraps around a request.
type Template struct {
	System           string `toml:"system"`
	ImageInstruction string `toml:"image_instruction"`
	UserLabel        string `toml:"user_label"`
	AssistantLabel   string `toml:"assistant_label"`
	HistoryHeader    string `toml:"history_header"`
	CurrentHeader    string `toml:"current_header"`
}

func DefaultTemplate() Template {
	return Template{
		System:           "You are a helpful, friendly assistant in a chat application. Answer clearly and concisely.",
		ImageInstruction: "Describe the attached image in detail.",
		UserLabel:        "User",
		AssistantLabel:   "AI",
		HistoryHeader:    "Conversation so far:",
		CurrentHeader:    "Current message:",
	}
}

// LoadTemplate reads a TOML template file. Keys that are missing or blank keep
// their default wording.
func LoadTemplate(path string) (Template, error) {
	var file Template
	if _, err := toml.DecodeFile(path, &file); err != nil {
		return Template{}, fmt.Errorf("usecase: decode prompt template %q: %w", path, err)
	}
	return file.withDefaults(), nil
}

func (t Template) withDefaults() Template {
	def := DefaultTemplate()
	pick := func(v, fallback string) string {
		if strings.TrimSpace(v) == "" {
			return fallback
		}
		return strings.TrimSpace(v)
	}
	return Template{
		System:           pick(t.System, def.System),
		ImageInstruction: pick(t.ImageInstruction, def.ImageInstruction),
		UserLabel:        pick(t.UserLabel, def.UserLabel),
		AssistantLabel:   pick(t.AssistantLabel, def.AssistantLabel),
		HistoryHeader:    pick(t.HistoryHeader, def.HistoryHeader),
		CurrentHeader:    pick(t.CurrentHeader, def.CurrentHeader),
	}
}
