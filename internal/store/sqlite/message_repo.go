package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"marketchat/internal/domain"
)

type MessageRepo struct {
	db *sql.DB
}

func NewMessageRepo(db *sql.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

var _ domain.MessageRepository = (*MessageRepo)(nil)

// Append inserts the message and updates the conversation row in one
// transaction. The message timestamp is clamped so created_at never goes
// backwards within a conversation, even when clocks wobble.
func (r *MessageRepo) Append(ctx context.Context, m *domain.Message) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var buyerID, sellerID int64
	var lastMessageAt time.Time
	err = tx.QueryRowContext(ctx, `
		SELECT buyer_id, seller_id, last_message_at
		FROM conversations
		WHERE id = ?
	`, m.ConversationID).Scan(&buyerID, &sellerID, &lastMessageAt)
	if err == sql.ErrNoRows {
		return domain.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("load conversation: %w", err)
	}

	createdAt := time.Now().UTC()
	if createdAt.Before(lastMessageAt) {
		createdAt = lastMessageAt
	}

	res, err := tx.ExecContext(ctx, `
		INSERT INTO messages (conversation_id, sender_id, content, created_at, is_read, read_at)
		VALUES (?, ?, ?, ?, 0, NULL)
	`, m.ConversationID, m.SenderID, m.Content, createdAt)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}

	unreadColumn := "buyer_unread"
	if m.SenderID == buyerID {
		unreadColumn = "seller_unread"
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE conversations
		SET last_message_at = ?, `+unreadColumn+` = `+unreadColumn+` + 1
		WHERE id = ?
	`, createdAt, m.ConversationID); err != nil {
		return fmt.Errorf("update conversation: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	m.ID = id
	m.CreatedAt = createdAt
	m.IsRead = false
	m.ReadAt = nil
	return nil
}

func (r *MessageRepo) ListForConversation(ctx context.Context, conversationID int64, beforeID int64, limit int) ([]*domain.Message, error) {
	query := `
		SELECT id, conversation_id, sender_id, content, created_at, is_read, read_at
		FROM messages
		WHERE conversation_id = ?
	`
	args := []any{conversationID}
	if beforeID > 0 {
		query += " AND id < ?"
		args = append(args, beforeID)
	}
	query += " ORDER BY id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var res []*domain.Message
	for rows.Next() {
		m := &domain.Message{}
		if err := rows.Scan(
			&m.ID,
			&m.ConversationID,
			&m.SenderID,
			&m.Content,
			&m.CreatedAt,
			&m.IsRead,
			&m.ReadAt,
		); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		res = append(res, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Reverse to chronological order (DB returns DESC for paging).
	for i, j := 0, len(res)-1; i < j; i, j = i+1, j-1 {
		res[i], res[j] = res[j], res[i]
	}
	return res, nil
}

// MarkAllRead flips unread messages addressed to userID and resets the
// matching unread counter in one transaction. Safe to call repeatedly.
func (r *MessageRepo) MarkAllRead(ctx context.Context, conversationID, userID int64, at time.Time) (int64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var buyerID int64
	err = tx.QueryRowContext(ctx, `
		SELECT buyer_id FROM conversations WHERE id = ?
	`, conversationID).Scan(&buyerID)
	if err == sql.ErrNoRows {
		return 0, domain.ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("load conversation: %w", err)
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE messages
		SET is_read = 1, read_at = ?
		WHERE conversation_id = ? AND sender_id <> ? AND is_read = 0
	`, at.UTC(), conversationID, userID)
	if err != nil {
		return 0, fmt.Errorf("mark read: %w", err)
	}
	flipped, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}

	unreadColumn := "seller_unread"
	if userID == buyerID {
		unreadColumn = "buyer_unread"
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE conversations SET `+unreadColumn+` = 0 WHERE id = ?
	`, conversationID); err != nil {
		return 0, fmt.Errorf("reset unread counter: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return flipped, nil
}

func (r *MessageRepo) CountUnread(ctx context.Context, conversationID, userID int64) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM messages
		WHERE conversation_id = ? AND sender_id <> ? AND is_read = 0
	`, conversationID, userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count unread: %w", err)
	}
	return count, nil
}
