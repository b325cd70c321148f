package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"marketchat/internal/domain"
	"marketchat/internal/moderation"
	"marketchat/internal/wire"
)

// MaxContentLength bounds message content, in runes.
const MaxContentLength = 1000

const defaultPageSize = 50

// MessageService is the delivery pipeline: validate, moderate, persist,
// fan out, ack. The persisted store is the delivery backstop: a
// recipient with no live connections simply sees the message on the next
// history fetch.
type MessageService struct {
	convs    domain.ConversationRepository
	msgs     domain.MessageRepository
	checker  moderation.Checker
	registry Registry
	log      *slog.Logger

	PageSize int
}

func NewMessageService(
	convs domain.ConversationRepository,
	msgs domain.MessageRepository,
	checker moderation.Checker,
	registry Registry,
	log *slog.Logger,
) *MessageService {
	return &MessageService{
		convs:    convs,
		msgs:     msgs,
		checker:  checker,
		registry: registry,
		log:      log,
		PageSize: defaultPageSize,
	}
}

// Send runs one message through the pipeline and returns the persisted
// message plus the number of recipient connections it was pushed to.
// Zero pushes is a normal outcome, not an error: the store already holds
// the message. Push failures after persistence are never fatal.
func (s *MessageService) Send(ctx context.Context, senderID, conversationID int64, content string) (*domain.Message, int, error) {
	if strings.TrimSpace(content) == "" {
		return nil, 0, fmt.Errorf("%w: empty message content", domain.ErrInvalidInput)
	}
	if len([]rune(content)) > MaxContentLength {
		return nil, 0, fmt.Errorf("%w: message content exceeds %d characters", domain.ErrInvalidInput, MaxContentLength)
	}

	if term, ok := s.checker.Check(content); !ok {
		return nil, 0, &domain.ModerationError{Term: term}
	}

	conv, err := s.convs.GetByID(ctx, conversationID)
	if err != nil {
		return nil, 0, fmt.Errorf("get conversation: %w", err)
	}
	if conv == nil {
		return nil, 0, fmt.Errorf("%w: conversation %d", domain.ErrNotFound, conversationID)
	}
	if !conv.Participant(senderID) {
		return nil, 0, domain.ErrForbidden
	}

	msg := &domain.Message{
		ConversationID: conversationID,
		SenderID:       senderID,
		Content:        content,
	}
	if err := s.msgs.Append(ctx, msg); err != nil {
		return nil, 0, fmt.Errorf("append message: %w", err)
	}

	recipient := conv.Peer(senderID)
	delivered := s.registry.SendTo(recipient, wire.Envelope{
		Type:           wire.TypeNewMessage,
		ConversationID: conversationID,
		RecipientID:    recipient,
		SenderID:       senderID,
		Message:        ToWire(msg),
	})
	if delivered == 0 {
		s.log.Debug("recipient offline, message queued in store",
			"conversation_id", conversationID, "recipient_id", recipient)
	}
	return msg, delivered, nil
}

// MarkRead atomically flips every unread message addressed to userID in
// the conversation. Repeat calls are no-ops. The peer gets a best-effort
// mark_read notification when anything actually flipped.
func (s *MessageService) MarkRead(ctx context.Context, userID, conversationID int64) error {
	conv, err := s.convs.GetByID(ctx, conversationID)
	if err != nil {
		return fmt.Errorf("get conversation: %w", err)
	}
	if conv == nil {
		return fmt.Errorf("%w: conversation %d", domain.ErrNotFound, conversationID)
	}
	if !conv.Participant(userID) {
		return domain.ErrForbidden
	}

	flipped, err := s.msgs.MarkAllRead(ctx, conversationID, userID, time.Now())
	if err != nil {
		return fmt.Errorf("mark read: %w", err)
	}
	if flipped > 0 {
		s.registry.SendTo(conv.Peer(userID), wire.Envelope{
			Type:           wire.TypeMarkRead,
			ConversationID: conversationID,
			SenderID:       userID,
		})
	}
	return nil
}

// History returns a page of the conversation's messages, oldest first.
// beforeID > 0 pages backwards from that message id.
func (s *MessageService) History(ctx context.Context, userID, conversationID, beforeID int64, limit int) ([]*domain.Message, error) {
	conv, err := s.convs.GetByID(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("get conversation: %w", err)
	}
	if conv == nil {
		return nil, fmt.Errorf("%w: conversation %d", domain.ErrNotFound, conversationID)
	}
	if !conv.Participant(userID) {
		return nil, domain.ErrForbidden
	}

	if limit <= 0 || limit > s.PageSize {
		limit = s.PageSize
	}
	return s.msgs.ListForConversation(ctx, conversationID, beforeID, limit)
}

// ToWire converts a persisted message into its envelope payload. Content
// crosses the wire exactly as stored.
func ToWire(m *domain.Message) *wire.Message {
	return &wire.Message{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		SenderID:       m.SenderID,
		Content:        m.Content,
		CreatedAt:      m.CreatedAt,
		IsRead:         m.IsRead,
		ReadAt:         m.ReadAt,
	}
}
