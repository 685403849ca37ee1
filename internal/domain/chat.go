package domain

// ChatTurn is one exchange unit in the browser conversation. Text may be empty
// when only an image was sent.
type ChatTurn struct {
	Text       string `json:"text"`
	IsFromUser bool   `json:"isFromUser"`
	ImageRef   string `json:"imageRef,omitempty"`
}

// ConversationHistory is ordered oldest first and owned by the caller.
type ConversationHistory []ChatTurn

// GenerationRequest is built per user action and never mutated afterwards.
type GenerationRequest struct {
	Message string
	History ConversationHistory
	Image   string
}

type Source string

const (
	SourcePrimary  Source = "primary"
	SourceFallback Source = "fallback"
	SourceNone     Source = "none"
)

// GenerationResult is always fully materialized before it is returned.
type GenerationResult struct {
	ResponseText string
	Source       Source
	Model        string
	RequestID    string
	Failed       bool
}
