package service

import (
	"context"
	"fmt"

	"marketchat/internal/domain"
	"marketchat/internal/wire"
)

// PresenceRelay forwards ephemeral typing signals between the two
// participants of a conversation. Signals are never persisted and never
// retried; an unreachable peer means the signal is dropped on the floor.
type PresenceRelay struct {
	convs    domain.ConversationRepository
	registry Registry
}

func NewPresenceRelay(convs domain.ConversationRepository, registry Registry) *PresenceRelay {
	return &PresenceRelay{convs: convs, registry: registry}
}

// Typing relays a typing indicator to the other participant, if
// currently reachable.
func (p *PresenceRelay) Typing(ctx context.Context, userID, conversationID int64, isTyping bool) error {
	conv, err := p.convs.GetByID(ctx, conversationID)
	if err != nil {
		return fmt.Errorf("get conversation: %w", err)
	}
	if conv == nil {
		return fmt.Errorf("%w: conversation %d", domain.ErrNotFound, conversationID)
	}
	if !conv.Participant(userID) {
		return domain.ErrForbidden
	}

	peer := conv.Peer(userID)
	if !p.registry.IsOnline(peer) {
		return nil
	}
	p.registry.SendTo(peer, wire.Envelope{
		Type:           wire.TypeTyping,
		ConversationID: conversationID,
		SenderID:       userID,
		IsTyping:       isTyping,
	})
	return nil
}
