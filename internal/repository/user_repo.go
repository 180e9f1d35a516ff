package repository

import (
	"context"
	"errors"
	"time"

	"casino/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrUserNotFound     = errors.New("用户不存在")
	ErrBalanceNotEnough = errors.New("余额不足")
)

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) GetByID(ctx context.Context, userID int64) (*model.User, error) {
	var user model.User
	err := r.db.WithContext(ctx).Where("id = ?", userID).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

// GetByIDForUpdate 加行锁读取用户
//
// 【关键点】所有要"先读余额再改余额"的地方必须走这里，
// SELECT ... FOR UPDATE 保证同一用户的并发扣款/入账串行执行，
// 不会两个事务都读到旧余额然后都成功
func (r *UserRepository) GetByIDForUpdate(ctx context.Context, tx *gorm.DB, userID int64) (*model.User, error) {
	var user model.User
	err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", userID).
		First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

// DeductGold 扣减余额（条件更新，余额不足时零行生效）
func (r *UserRepository) DeductGold(ctx context.Context, tx *gorm.DB, userID int64, amount int64) error {
	result := tx.WithContext(ctx).
		Model(&model.User{}).
		Where("id = ? AND gold >= ?", userID, amount).
		UpdateColumn("gold", gorm.Expr("gold - ?", amount))

	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		return ErrBalanceNotEnough
	}

	return nil
}

// IncreaseGold 增加余额
func (r *UserRepository) IncreaseGold(ctx context.Context, tx *gorm.DB, userID int64, amount int64) error {
	result := tx.WithContext(ctx).
		Model(&model.User{}).
		Where("id = ?", userID).
		UpdateColumn("gold", gorm.Expr("gold + ?", amount))

	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		return ErrUserNotFound
	}

	return nil
}

// UpdateGameStats 更新对局聚合统计
// games_played / games_won / total_wagered / total_profit / xp 一次更新完
func (r *UserRepository) UpdateGameStats(ctx context.Context, tx *gorm.DB, userID int64, won bool, bet, payout int64) error {
	wonDelta := 0
	if won {
		wonDelta = 1
	}
	return tx.WithContext(ctx).
		Model(&model.User{}).
		Where("id = ?", userID).
		UpdateColumns(map[string]interface{}{
			"games_played":  gorm.Expr("games_played + 1"),
			"games_won":     gorm.Expr("games_won + ?", wonDelta),
			"total_wagered": gorm.Expr("total_wagered + ?", bet),
			"total_profit":  gorm.Expr("total_profit + ?", payout-bet),
			"xp":            gorm.Expr("xp + 8"),
		}).Error
}

// TouchLastSeen 刷新最近活跃时间
func (r *UserRepository) TouchLastSeen(ctx context.Context, userID int64) error {
	return r.db.WithContext(ctx).
		Model(&model.User{}).
		Where("id = ?", userID).
		UpdateColumn("last_seen", time.Now()).Error
}

// GetOrCreate 获取用户，不存在则创建（初始余额用数据库默认值）
// 每次命中都刷新 last_seen，该方法在身份中间件里逐请求调用
func (r *UserRepository) GetOrCreate(ctx context.Context, userID int64, username, firstName string) (*model.User, error) {
	user, err := r.GetByID(ctx, userID)
	if err == nil {
		if err := r.TouchLastSeen(ctx, userID); err != nil {
			return nil, err
		}
		return user, nil
	}

	if !errors.Is(err, ErrUserNotFound) {
		return nil, err
	}

	newUser := &model.User{
		ID:        userID,
		Username:  username,
		FirstName: firstName,
		LastSeen:  time.Now(),
	}

	err = r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoNothing: true,
		}).
		Create(newUser).Error

	if err != nil {
		return nil, err
	}

	return r.GetByID(ctx, userID)
}
