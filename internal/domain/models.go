package domain

import "time"

// Item is the slice of the listings catalog the messaging core needs:
// enough to verify that a conversation targets a real, active listing
// owned by the claimed seller. Listing CRUD itself lives elsewhere.
type Item struct {
	ID        int64     `db:"id" json:"id"`
	SellerID  int64     `db:"seller_id" json:"seller_id"`
	Title     string    `db:"title" json:"title"`
	Status    string    `db:"status" json:"status"` // "active" or "deleted"
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

const (
	ItemStatusActive  = "active"
	ItemStatusDeleted = "deleted"
)

// Conversation is a persistent thread scoped to exactly one
// (item, buyer, seller) triple. Unread counters are denormalized and
// maintained in the same transaction as the message writes that affect
// them; MessageRepository.CountUnread is the ground truth.
type Conversation struct {
	ID            int64     `db:"id" json:"id"`
	ItemID        int64     `db:"item_id" json:"item_id"`
	BuyerID       int64     `db:"buyer_id" json:"buyer_id"`
	SellerID      int64     `db:"seller_id" json:"seller_id"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	LastMessageAt time.Time `db:"last_message_at" json:"last_message_at"`
	BuyerUnread   int       `db:"buyer_unread" json:"-"`
	SellerUnread  int       `db:"seller_unread" json:"-"`
}

// Participant reports whether userID is one of the two parties.
func (c *Conversation) Participant(userID int64) bool {
	return userID == c.BuyerID || userID == c.SellerID
}

// Peer returns the other party for a given participant.
func (c *Conversation) Peer(userID int64) int64 {
	if userID == c.BuyerID {
		return c.SellerID
	}
	return c.BuyerID
}

// UnreadFor returns the denormalized unread counter for the given party.
func (c *Conversation) UnreadFor(userID int64) int {
	if userID == c.BuyerID {
		return c.BuyerUnread
	}
	return c.SellerUnread
}

// Message is immutable after creation except for the read fields.
type Message struct {
	ID             int64      `db:"id" json:"id"`
	ConversationID int64      `db:"conversation_id" json:"conversation_id"`
	SenderID       int64      `db:"sender_id" json:"sender_id"`
	Content        string     `db:"content" json:"content"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	IsRead         bool       `db:"is_read" json:"is_read"`
	ReadAt         *time.Time `db:"read_at" json:"read_at,omitempty"`
}
