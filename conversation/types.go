package conversation

import "time"

// Conversation tracks the per-conversation state the chatbot keeps between
// messages. The only durable fact is the user's name; timestamps exist so
// idle conversations can be expired.
type Conversation struct {
	ID           string    `json:"id"`
	UserName     string    `json:"user_name"`
	CreatedAt    time.Time `json:"created_at"`
	LastActivity time.Time `json:"last_activity"`
}
