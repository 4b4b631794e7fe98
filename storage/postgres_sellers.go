package storage

import (
	"context"
	"database/sql"
	"errors"

	"github.com/cryarchy/fiverr-tools/apperrors"
	"github.com/cryarchy/fiverr-tools/models"
)

type pgSellers struct {
	db *sql.DB
}

func (r *pgSellers) GetIDByUsername(ctx context.Context, username string) (int64, bool, error) {
	var id int64
	err := r.db.QueryRowContext(ctx, `SELECT id FROM seller WHERE username = $1`, username).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, apperrors.Persistence("seller: get by username", err)
	}
	return id, true, nil
}

func (r *pgSellers) Create(ctx context.Context, s models.NewSeller) (int64, error) {
	return insertReturningID(ctx, r.db, "seller: create", `
		INSERT INTO seller (username, rating, level, reviews_count, description)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`, s.Username, s.Rating, s.Level, s.ReviewCount, s.Description)
}

type pgSellerStats struct {
	db *sql.DB
}

func (r *pgSellerStats) Create(ctx context.Context, sellerID int64, s models.SellerStat) (int64, error) {
	return insertReturningID(ctx, r.db, "seller_stat: create", `
		INSERT INTO seller_stat (seller_id, key, value) VALUES ($1, $2, $3) RETURNING id
	`, sellerID, s.Key, s.Value)
}
