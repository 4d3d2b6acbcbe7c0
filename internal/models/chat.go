package models

// Roles accepted in conversationHistory.
const (
	RoleUser = "user"
	RoleAI   = "ai"
)

// DefaultCategory is used when the client does not label its question.
const DefaultCategory = "general"

// HistoryEntry represents a single prior turn sent by the site widget.
type HistoryEntry struct {
	Role    string `json:"role"` // "user" or "ai"
	Content string `json:"content"`
}

// ChatRequest is the payload sent to the chat endpoint.
type ChatRequest struct {
	Message             string         `json:"message"`
	Category            string         `json:"category,omitempty"`
	ConversationHistory []HistoryEntry `json:"conversationHistory,omitempty"`
}

// ChatResponse is the reply from the AI chat.
type ChatResponse struct {
	Response string `json:"response"`
	Model    string `json:"model"`
	Category string `json:"category"`
}
