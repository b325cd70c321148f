package sqlite

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// Open opens a SQLite database with the given DSN.
func Open(dsn string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	if _, err := db.Exec(`PRAGMA foreign_keys = ON;`); err != nil {
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	// Serialize writers; SQLite holds a single write lock anyway and the
	// message append transaction relies on it.
	db.SetMaxOpenConns(1)
	return db, nil
}

// Migrate runs idempotent DDL migrations for the messaging schema.
func Migrate(db *sql.DB) error {
	stmts := []string{
		// Items: the slice of the listings catalog conversations hang off.
		`CREATE TABLE IF NOT EXISTS items (
			id INTEGER PRIMARY KEY,
			seller_id INTEGER NOT NULL,
			title VARCHAR(200) NOT NULL,
			status VARCHAR(16) NOT NULL DEFAULT 'active',
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);`,
		// Conversations: one per (item, buyer, seller) triple.
		`CREATE TABLE IF NOT EXISTS conversations (
			id INTEGER PRIMARY KEY,
			item_id INTEGER NOT NULL,
			buyer_id INTEGER NOT NULL,
			seller_id INTEGER NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			last_message_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			buyer_unread INTEGER NOT NULL DEFAULT 0,
			seller_unread INTEGER NOT NULL DEFAULT 0,
			FOREIGN KEY (item_id) REFERENCES items(id)
		);`,
		// Messages
		`CREATE TABLE IF NOT EXISTS messages (
			id INTEGER PRIMARY KEY,
			conversation_id INTEGER NOT NULL,
			sender_id INTEGER NOT NULL,
			content TEXT NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			is_read BOOLEAN NOT NULL DEFAULT 0,
			read_at DATETIME DEFAULT NULL,
			FOREIGN KEY (conversation_id) REFERENCES conversations(id)
		);`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_conversations_triple
			ON conversations(item_id, buyer_id, seller_id);`,
		`CREATE INDEX IF NOT EXISTS idx_conversations_buyer ON conversations(buyer_id);`,
		`CREATE INDEX IF NOT EXISTS idx_conversations_seller ON conversations(seller_id);`,
		`CREATE INDEX IF NOT EXISTS idx_conversations_last_message ON conversations(last_message_at DESC);`,
		`CREATE INDEX IF NOT EXISTS idx_messages_conv ON messages(conversation_id);`,
		`CREATE INDEX IF NOT EXISTS idx_messages_conv_id ON messages(conversation_id, id);`,
		`CREATE INDEX IF NOT EXISTS idx_messages_unread ON messages(conversation_id, is_read);`,
		`CREATE INDEX IF NOT EXISTS idx_items_seller ON items(seller_id);`,
	}

	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}

	return nil
}
