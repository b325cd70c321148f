// Package wire defines the envelope exchanged over live connections.
// It is shared by the server-side socket handler and the consumer
// client so both ends agree on one shape.
package wire

import "time"

// Envelope types. Client-to-server: send_message, typing, mark_read,
// ping. Server-to-client: new_message, message_sent, mark_read (peer
// notification), typing, error, pong.
const (
	TypeSendMessage = "send_message"
	TypeTyping      = "typing"
	TypeMarkRead    = "mark_read"
	TypeNewMessage  = "new_message"
	TypeMessageSent = "message_sent"
	TypeError       = "error"
	TypePing        = "ping"
	TypePong        = "pong"
)

// Envelope is a typed message unit exchanged over a live connection.
// Fields are populated depending on Type.
type Envelope struct {
	Type           string   `json:"type"`
	ConversationID int64    `json:"conversation_id,omitempty"`
	Content        string   `json:"content,omitempty"`
	Message        *Message `json:"message,omitempty"`
	RecipientID    int64    `json:"recipient_id,omitempty"`
	SenderID       int64    `json:"sender_id,omitempty"`
	IsTyping       bool     `json:"is_typing,omitempty"`
	Delivered      bool     `json:"delivered,omitempty"`
	Error          string   `json:"error,omitempty"`
}

// Message is the payload carried by new_message and message_sent
// envelopes. It mirrors the persisted message exactly.
type Message struct {
	ID             int64      `json:"id"`
	ConversationID int64      `json:"conversation_id"`
	SenderID       int64      `json:"sender_id"`
	Content        string     `json:"content"`
	CreatedAt      time.Time  `json:"created_at"`
	IsRead         bool       `json:"is_read"`
	ReadAt         *time.Time `json:"read_at,omitempty"`
}
