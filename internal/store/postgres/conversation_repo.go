package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"marketchat/internal/domain"
)

type ConversationRepo struct {
	db *sql.DB
}

func NewConversationRepo(db *sql.DB) *ConversationRepo {
	return &ConversationRepo{db: db}
}

var _ domain.ConversationRepository = (*ConversationRepo)(nil)

const conversationColumns = `id, item_id, buyer_id, seller_id, created_at, last_message_at, buyer_unread, seller_unread`

func scanConversation(row interface{ Scan(...any) error }) (*domain.Conversation, error) {
	c := &domain.Conversation{}
	err := row.Scan(
		&c.ID,
		&c.ItemID,
		&c.BuyerID,
		&c.SellerID,
		&c.CreatedAt,
		&c.LastMessageAt,
		&c.BuyerUnread,
		&c.SellerUnread,
	)
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (r *ConversationRepo) Create(ctx context.Context, c *domain.Conversation) error {
	return r.db.QueryRowContext(ctx, `
		INSERT INTO conversations (item_id, buyer_id, seller_id)
		VALUES ($1, $2, $3)
		RETURNING id, created_at, last_message_at
	`, c.ItemID, c.BuyerID, c.SellerID).Scan(&c.ID, &c.CreatedAt, &c.LastMessageAt)
}

func (r *ConversationRepo) GetByID(ctx context.Context, id int64) (*domain.Conversation, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+conversationColumns+`
		FROM conversations WHERE id = $1
	`, id)
	c, err := scanConversation(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get conversation: %w", err)
	}
	return c, nil
}

func (r *ConversationRepo) FindByTriple(ctx context.Context, itemID, buyerID, sellerID int64) (*domain.Conversation, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+conversationColumns+`
		FROM conversations
		WHERE item_id = $1 AND buyer_id = $2 AND seller_id = $3
	`, itemID, buyerID, sellerID)
	c, err := scanConversation(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find conversation by triple: %w", err)
	}
	return c, nil
}

func (r *ConversationRepo) ListForUser(ctx context.Context, userID int64) ([]*domain.Conversation, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+conversationColumns+`
		FROM conversations
		WHERE buyer_id = $1 OR seller_id = $1
		ORDER BY last_message_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	defer rows.Close()

	var res []*domain.Conversation
	for rows.Next() {
		c, err := scanConversation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan conversation: %w", err)
		}
		res = append(res, c)
	}
	return res, rows.Err()
}
