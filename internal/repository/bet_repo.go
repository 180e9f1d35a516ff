package repository

import (
	"context"

	"casino/internal/model"

	"gorm.io/gorm"
)

type BetRepository struct {
	db *gorm.DB
}

func NewBetRepository(db *gorm.DB) *BetRepository {
	return &BetRepository{db: db}
}

func (r *BetRepository) Create(ctx context.Context, tx *gorm.DB, bet *model.BetRecord) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Create(bet).Error
}

func (r *BetRepository) ListByUserID(ctx context.Context, userID int64, limit int) ([]*model.BetRecord, error) {
	var bets []*model.BetRecord
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&bets).Error
	return bets, err
}
