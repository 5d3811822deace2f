package model

// Role constants
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ConversationTurn represents one turn of the design conversation.
// Turns are immutable once created; ID and Timestamp are assigned by the
// history store at insert time.
type ConversationTurn struct {
	ID               int64   `json:"id"`
	Timestamp        string  `json:"timestamp"`
	Role             string  `json:"role"`
	Text             string  `json:"text"`
	ImageURL         *string `json:"image_url,omitempty"`
	EngineeredPrompt *string `json:"engineered_prompt,omitempty"`
}

// NewUserTurn creates the turn recording the user's raw request.
// User turns never carry an image URL or an engineered prompt.
func NewUserTurn(text string) ConversationTurn {
	return ConversationTurn{
		Role: RoleUser,
		Text: text,
	}
}

// NewAssistantTurn creates a turn recording a generation outcome.
// imageURL is nil when generation failed for this turn.
func NewAssistantTurn(text string, imageURL *string, engineeredPrompt string) ConversationTurn {
	return ConversationTurn{
		Role:             RoleAssistant,
		Text:             text,
		ImageURL:         imageURL,
		EngineeredPrompt: &engineeredPrompt,
	}
}
