package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"marketchat/internal/domain"
)

type ItemRepo struct {
	db *sql.DB
}

func NewItemRepo(db *sql.DB) *ItemRepo {
	return &ItemRepo{db: db}
}

var _ domain.ItemRepository = (*ItemRepo)(nil)

func (r *ItemRepo) Create(ctx context.Context, it *domain.Item) error {
	if it.Status == "" {
		it.Status = domain.ItemStatusActive
	}
	return r.db.QueryRowContext(ctx, `
		INSERT INTO items (seller_id, title, status)
		VALUES ($1, $2, $3)
		RETURNING id, created_at
	`, it.SellerID, it.Title, it.Status).Scan(&it.ID, &it.CreatedAt)
}

func (r *ItemRepo) GetByID(ctx context.Context, id int64) (*domain.Item, error) {
	it := &domain.Item{}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, seller_id, title, status, created_at
		FROM items WHERE id = $1
	`, id).Scan(
		&it.ID,
		&it.SellerID,
		&it.Title,
		&it.Status,
		&it.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	return it, nil
}
