package postgres

import (
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// Open opens a PostgreSQL database using the pgx stdlib driver.
func Open(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

// Migrate runs idempotent DDL migrations for the messaging schema on
// PostgreSQL.
func Migrate(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS items (
			id         BIGSERIAL    PRIMARY KEY,
			seller_id  BIGINT       NOT NULL,
			title      VARCHAR(200) NOT NULL,
			status     VARCHAR(16)  NOT NULL DEFAULT 'active',
			created_at TIMESTAMPTZ  NOT NULL DEFAULT NOW()
		)`,

		`CREATE TABLE IF NOT EXISTS conversations (
			id              BIGSERIAL   PRIMARY KEY,
			item_id         BIGINT      NOT NULL REFERENCES items(id),
			buyer_id        BIGINT      NOT NULL,
			seller_id       BIGINT      NOT NULL,
			created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			last_message_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			buyer_unread    INTEGER     NOT NULL DEFAULT 0,
			seller_unread   INTEGER     NOT NULL DEFAULT 0
		)`,

		`CREATE TABLE IF NOT EXISTS messages (
			id              BIGSERIAL   PRIMARY KEY,
			conversation_id BIGINT      NOT NULL REFERENCES conversations(id),
			sender_id       BIGINT      NOT NULL,
			content         TEXT        NOT NULL,
			created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			is_read         BOOLEAN     NOT NULL DEFAULT FALSE,
			read_at         TIMESTAMPTZ
		)`,

		`CREATE UNIQUE INDEX IF NOT EXISTS idx_conversations_triple
			ON conversations(item_id, buyer_id, seller_id)`,
		`CREATE INDEX IF NOT EXISTS idx_conversations_buyer ON conversations(buyer_id)`,
		`CREATE INDEX IF NOT EXISTS idx_conversations_seller ON conversations(seller_id)`,
		`CREATE INDEX IF NOT EXISTS idx_conversations_last_message ON conversations(last_message_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_conv_id ON messages(conversation_id, id)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_unread ON messages(conversation_id, is_read)`,
		`CREATE INDEX IF NOT EXISTS idx_items_seller ON items(seller_id)`,
	}

	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}

	return nil
}
