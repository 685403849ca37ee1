package usecase

import (
	"strings"

	"fallback-chat/internal/domain"
)

const imageMarker = "[image attached]"

// BuildPrompt serializes a request into the form the model clients expect.
// It is a pure function: equal inputs always produce equal prompts.
func BuildPrompt(req domain.GenerationRequest, style domain.PromptStyle, tmpl Template) domain.Prompt {
	tmpl = tmpl.withDefaults()
	prompt := domain.Prompt{
		Style:  style,
		System: tmpl.System + "\n\n" + outputContract(),
	}
	if style == domain.PromptStyleSingle {
		prompt.Turns = []domain.PromptTurn{{
			Role:     domain.RoleUser,
			Text:     flattenRequest(req, tmpl),
			ImageRef: strings.TrimSpace(req.Image),
		}}
		return prompt
	}

	prompt.Style = domain.PromptStyleChat
	for _, t := range req.History {
		if turn, ok := historyToPromptTurn(t); ok {
			prompt.Turns = append(prompt.Turns, turn)
		}
	}
	prompt.Turns = append(prompt.Turns, currentTurn(req, tmpl))
	return prompt
}

func historyToPromptTurn(t domain.ChatTurn) (domain.PromptTurn, bool) {
	text := strings.TrimSpace(t.Text)
	image := strings.TrimSpace(t.ImageRef)
	if text == "" && image == "" {
		return domain.PromptTurn{}, false
	}
	if !t.IsFromUser {
		// Providers only accept images on user turns.
		if text == "" {
			return domain.PromptTurn{}, false
		}
		return domain.PromptTurn{Role: domain.RoleAssistant, Text: text}, true
	}
	return domain.PromptTurn{Role: domain.RoleUser, Text: text, ImageRef: image}, true
}

func currentTurn(req domain.GenerationRequest, tmpl Template) domain.PromptTurn {
	text := strings.TrimSpace(req.Message)
	if text == "" {
		text = tmpl.ImageInstruction
	}
	return domain.PromptTurn{
		Role:     domain.RoleUser,
		Text:     text,
		ImageRef: strings.TrimSpace(req.Image),
	}
}

func flattenRequest(req domain.GenerationRequest, tmpl Template) string {
	var blocks []string

	var lines []string
	for _, t := range req.History {
		if line, ok := historyLine(t, tmpl); ok {
			lines = append(lines, line)
		}
	}
	if len(lines) > 0 {
		blocks = append(blocks, tmpl.HistoryHeader+"\n"+strings.Join(lines, "\n"))
	}

	if message := strings.TrimSpace(req.Message); message != "" {
		blocks = append(blocks, tmpl.CurrentHeader+"\n"+tmpl.UserLabel+": "+message)
	}
	if strings.TrimSpace(req.Image) != "" {
		blocks = append(blocks, tmpl.ImageInstruction)
	}
	return strings.Join(blocks, "\n\n")
}

func historyLine(t domain.ChatTurn, tmpl Template) (string, bool) {
	text := strings.TrimSpace(t.Text)
	hasImage := strings.TrimSpace(t.ImageRef) != ""
	if text == "" && !hasImage {
		return "", false
	}
	label := tmpl.AssistantLabel
	if t.IsFromUser {
		label = tmpl.UserLabel
	}
	switch {
	case text == "":
		return label + ": " + imageMarker, true
	case hasImage:
		return label + ": " + text + " " + imageMarker, true
	default:
		return label + ": " + text, true
	}
}

func outputContract() string {
	return "Return JSON only with keys response (string) and needs_fallback (boolean). " +
		"Put the complete user-facing answer in response and set needs_fallback=false. " +
		"Only if you cannot handle this request, return needs_fallback=true and response=\"\"."
}
