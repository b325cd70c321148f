package service

import (
	"context"
	"fmt"

	"marketchat/internal/domain"
)

// ConversationService resolves and lists conversation threads. A thread
// is unique per (item, buyer, seller) triple; resolving an existing
// triple returns the same thread no matter how many times "contact
// seller" is clicked.
type ConversationService struct {
	items    domain.ItemRepository
	convs    domain.ConversationRepository
	registry Registry
}

func NewConversationService(
	items domain.ItemRepository,
	convs domain.ConversationRepository,
	registry Registry,
) *ConversationService {
	return &ConversationService{
		items:    items,
		convs:    convs,
		registry: registry,
	}
}

// CreateOrGet returns the conversation for the triple, creating it on
// first contact. The bool reports whether a new thread was created.
func (s *ConversationService) CreateOrGet(ctx context.Context, buyerID, itemID, sellerID int64) (*domain.Conversation, bool, error) {
	if buyerID == sellerID {
		return nil, false, fmt.Errorf("%w: buyer and seller must differ", domain.ErrInvalidInput)
	}
	if itemID <= 0 || sellerID <= 0 {
		return nil, false, fmt.Errorf("%w: item_id and seller_id are required", domain.ErrInvalidInput)
	}

	item, err := s.items.GetByID(ctx, itemID)
	if err != nil {
		return nil, false, fmt.Errorf("get item: %w", err)
	}
	if item == nil || item.Status == domain.ItemStatusDeleted {
		return nil, false, fmt.Errorf("%w: item %d", domain.ErrNotFound, itemID)
	}
	if item.SellerID != sellerID {
		return nil, false, domain.ErrSellerMismatch
	}

	existing, err := s.convs.FindByTriple(ctx, itemID, buyerID, sellerID)
	if err != nil {
		return nil, false, fmt.Errorf("find conversation: %w", err)
	}
	if existing != nil {
		return existing, false, nil
	}

	conv := &domain.Conversation{
		ItemID:   itemID,
		BuyerID:  buyerID,
		SellerID: sellerID,
	}
	if err := s.convs.Create(ctx, conv); err != nil {
		// Two first contacts can race; the unique triple index makes one
		// of them lose, in which case the winner's row is the answer.
		if again, ferr := s.convs.FindByTriple(ctx, itemID, buyerID, sellerID); ferr == nil && again != nil {
			return again, false, nil
		}
		return nil, false, fmt.Errorf("create conversation: %w", err)
	}
	return conv, true, nil
}

// Get returns the conversation if userID participates in it.
func (s *ConversationService) Get(ctx context.Context, conversationID, userID int64) (*domain.Conversation, error) {
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
	return conv, nil
}

// ConversationView is the listing shape returned to clients: the thread
// plus the caller's unread count and the peer's presence.
type ConversationView struct {
	*domain.Conversation
	PeerID     int64 `json:"peer_id"`
	Unread     int   `json:"unread"`
	PeerOnline bool  `json:"peer_online"`
}

// ListForUser returns the caller's conversations, most recent activity
// first.
func (s *ConversationService) ListForUser(ctx context.Context, userID int64) ([]*ConversationView, error) {
	convs, err := s.convs.ListForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}

	views := make([]*ConversationView, 0, len(convs))
	for _, c := range convs {
		peer := c.Peer(userID)
		views = append(views, &ConversationView{
			Conversation: c,
			PeerID:       peer,
			Unread:       c.UnreadFor(userID),
			PeerOnline:   s.registry.IsOnline(peer),
		})
	}
	return views, nil
}
