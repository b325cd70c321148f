package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

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
	now := time.Now().UTC()
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO conversations (item_id, buyer_id, seller_id, created_at, last_message_at, buyer_unread, seller_unread)
		VALUES (?, ?, ?, ?, ?, 0, 0)
	`, c.ItemID, c.BuyerID, c.SellerID, now, now)
	if err != nil {
		return fmt.Errorf("insert conversation: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}
	c.ID = id
	c.CreatedAt = now
	c.LastMessageAt = now
	c.BuyerUnread = 0
	c.SellerUnread = 0
	return nil
}

func (r *ConversationRepo) GetByID(ctx context.Context, id int64) (*domain.Conversation, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+conversationColumns+`
		FROM conversations
		WHERE id = ?
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
		WHERE item_id = ? AND buyer_id = ? AND seller_id = ?
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
		WHERE buyer_id = ? OR seller_id = ?
		ORDER BY last_message_at DESC
	`, userID, userID)
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
