package postgres

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
// transaction. The conversation row is locked for the duration so
// concurrent appends and read-marks on the same conversation serialize.
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
		WHERE id = $1
		FOR UPDATE
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

	err = tx.QueryRowContext(ctx, `
		INSERT INTO messages (conversation_id, sender_id, content, created_at, is_read)
		VALUES ($1, $2, $3, $4, FALSE)
		RETURNING id
	`, m.ConversationID, m.SenderID, m.Content, createdAt).Scan(&m.ID)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}

	unreadColumn := "buyer_unread"
	if m.SenderID == buyerID {
		unreadColumn = "seller_unread"
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE conversations
		SET last_message_at = $1, `+unreadColumn+` = `+unreadColumn+` + 1
		WHERE id = $2
	`, createdAt, m.ConversationID); err != nil {
		return fmt.Errorf("update conversation: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	m.CreatedAt = createdAt
	m.IsRead = false
	m.ReadAt = nil
	return nil
}

func (r *MessageRepo) ListForConversation(ctx context.Context, conversationID int64, beforeID int64, limit int) ([]*domain.Message, error) {
	query := `
		SELECT id, conversation_id, sender_id, content, created_at, is_read, read_at
		FROM messages
		WHERE conversation_id = $1
	`
	args := []any{conversationID}
	if beforeID > 0 {
		query += " AND id < $2 ORDER BY id DESC LIMIT $3"
		args = append(args, beforeID, limit)
	} else {
		query += " ORDER BY id DESC LIMIT $2"
		args = append(args, limit)
	}

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

	for i, j := 0, len(res)-1; i < j; i, j = i+1, j-1 {
		res[i], res[j] = res[j], res[i]
	}
	return res, nil
}

func (r *MessageRepo) MarkAllRead(ctx context.Context, conversationID, userID int64, at time.Time) (int64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var buyerID int64
	err = tx.QueryRowContext(ctx, `
		SELECT buyer_id FROM conversations WHERE id = $1 FOR UPDATE
	`, conversationID).Scan(&buyerID)
	if err == sql.ErrNoRows {
		return 0, domain.ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("load conversation: %w", err)
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE messages
		SET is_read = TRUE, read_at = $1
		WHERE conversation_id = $2 AND sender_id <> $3 AND is_read = FALSE
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
		UPDATE conversations SET `+unreadColumn+` = 0 WHERE id = $1
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
		WHERE conversation_id = $1 AND sender_id <> $2 AND is_read = FALSE
	`, conversationID, userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count unread: %w", err)
	}
	return count, nil
}
