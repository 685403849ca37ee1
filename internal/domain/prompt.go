package domain

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type PromptStyle string

const (
	// PromptStyleChat sends history as separate structured turns.
	PromptStyleChat PromptStyle = "chat"
	// PromptStyleSingle flattens history and the current message into one user turn.
	PromptStyleSingle PromptStyle = "single"
)

// PromptTurn is the provider-agnostic message shape consumed by model clients.
type PromptTurn struct {
	Role     Role
	Text     string
	ImageRef string
}

// Prompt is the built form of a GenerationRequest. The same value is reused
// for the fallback attempt.
type Prompt struct {
	Style  PromptStyle
	System string
	Turns  []PromptTurn
}
