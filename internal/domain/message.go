package domain

// Sender identifies who authored a chat message.
type Sender string

const (
	SenderUser  Sender = "user"
	SenderAgent Sender = "agent"
)

// ChatMessage is one entry of a concierge transcript. Text is mutable only
// while the message is open for streaming.
type ChatMessage struct {
	ID          int64  `json:"id"`
	Sender      Sender `json:"sender"`
	Text        string `json:"text"`
	Image       string `json:"image,omitempty"`
	ImagePrompt string `json:"image_prompt,omitempty"`
	IsError     bool   `json:"is_error,omitempty"`
	RetryPrompt string `json:"retry_prompt,omitempty"`
}
