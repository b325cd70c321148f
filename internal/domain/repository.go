package domain

import (
	"context"
	"time"
)

// ItemRepository exposes the listings collaborator surface the messaging
// core consumes. Create exists for seeding and tests only.
type ItemRepository interface {
	Create(ctx context.Context, it *Item) error
	GetByID(ctx context.Context, id int64) (*Item, error)
}

// ConversationRepository defines persistence operations for conversations.
type ConversationRepository interface {
	Create(ctx context.Context, c *Conversation) error
	GetByID(ctx context.Context, id int64) (*Conversation, error)
	// FindByTriple returns nil, nil when no conversation exists for the triple.
	FindByTriple(ctx context.Context, itemID, buyerID, sellerID int64) (*Conversation, error)
	ListForUser(ctx context.Context, userID int64) ([]*Conversation, error)
}

// MessageRepository defines persistence operations for messages. Append
// and MarkAllRead each run as a single atomic step so the unread
// counters never drift from the message rows, even when one conversation
// is read-marked and appended to concurrently.
type MessageRepository interface {
	// Append inserts the message and, in the same transaction, bumps the
	// conversation's last_message_at and the recipient's unread counter.
	// The stored CreatedAt is clamped to be non-decreasing within the
	// conversation and written back to m.
	Append(ctx context.Context, m *Message) error
	// ListForConversation returns up to limit messages oldest-first.
	// beforeID > 0 restricts the page to messages with a smaller id.
	ListForConversation(ctx context.Context, conversationID int64, beforeID int64, limit int) ([]*Message, error)
	// MarkAllRead flips every unread message not sent by userID and resets
	// that user's unread counter in one transaction. Returns the number of
	// messages flipped; zero on repeat calls.
	MarkAllRead(ctx context.Context, conversationID, userID int64, at time.Time) (int64, error)
	// CountUnread recomputes the unread count from the message rows.
	CountUnread(ctx context.Context, conversationID, userID int64) (int, error)
}
