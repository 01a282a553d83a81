package conversation

import (
	"context"
	"time"
)

// Store defines the interface for conversation state storage.
type Store interface {
	// Touch returns the conversation with the given ID, creating it first
	// if it does not exist, and bumps its last-activity timestamp.
	Touch(ctx context.Context, id string) (*Conversation, error)

	// Get retrieves a conversation by ID.
	// Returns nil if the conversation is not found (not an error).
	Get(ctx context.Context, id string) (*Conversation, error)

	// SetUserName records the user's name on an existing conversation.
	// Returns ErrNotFound if the conversation does not exist.
	SetUserName(ctx context.Context, id, name string) error

	// Delete removes a conversation by ID.
	Delete(ctx context.Context, id string) error

	// Sweep removes conversations idle for longer than maxAge and reports
	// how many were removed. Drivers that expire entries on their own
	// return 0.
	Sweep(ctx context.Context, maxAge time.Duration) (int, error)

	// Close closes the store and releases any resources.
	Close() error
}
