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
	ErrSessionNotFound = errors.New("会话不存在")
)

type MinesRepository struct {
	db *gorm.DB
}

func NewMinesRepository(db *gorm.DB) *MinesRepository {
	return &MinesRepository{db: db}
}

func (r *MinesRepository) Create(ctx context.Context, tx *gorm.DB, session *model.MinesSession) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Create(session).Error
}

// GetByIDForUpdate 加行锁读取会话
//
// 【关键点】reveal / cashout 都先走这里拿行锁，
// 同一会话的并发操作被串行化，不可能双翻格或双入账
func (r *MinesRepository) GetByIDForUpdate(ctx context.Context, tx *gorm.DB, sessionID string) (*model.MinesSession, error) {
	var session model.MinesSession
	err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", sessionID).
		First(&session).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	return &session, nil
}

// CloseOpenByUserID 强制关闭用户所有未结束会话（零赔付）
// 开新会话前调用，保证"同一用户最多一个开放会话"的不变式
func (r *MinesRepository) CloseOpenByUserID(ctx context.Context, tx *gorm.DB, userID int64) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).
		Model(&model.MinesSession{}).
		Where("user_id = ? AND cashed_out = ?", userID, false).
		Update("cashed_out", true).Error
}

// UpdateRevealed 更新已翻开格子，endSession 为 true 时同时关闭会话
func (r *MinesRepository) UpdateRevealed(ctx context.Context, tx *gorm.DB, sessionID string, revealed string, endSession bool) error {
	updates := map[string]interface{}{
		"revealed": revealed,
	}
	if endSession {
		updates["cashed_out"] = true
	}
	return tx.WithContext(ctx).
		Model(&model.MinesSession{}).
		Where("id = ?", sessionID).
		Updates(updates).Error
}

// Close 关闭会话（cashout 用）
func (r *MinesRepository) Close(ctx context.Context, tx *gorm.DB, sessionID string) error {
	return tx.WithContext(ctx).
		Model(&model.MinesSession{}).
		Where("id = ?", sessionID).
		Update("cashed_out", true).Error
}

// CloseStaleByID 关闭指定的过期会话（清理任务用）
//
// 【关键点】带 created_at 守卫按会话ID关闭：查询过期会话和执行关闭之间
// 用户可能已经开了新会话（开新会话会强关旧会话并落新行），
// 此时旧行已关、新行不满足过期条件，零行生效，新会话安然无恙
func (r *MinesRepository) CloseStaleByID(ctx context.Context, sessionID string, before time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&model.MinesSession{}).
		Where("id = ? AND cashed_out = ? AND created_at < ?", sessionID, false, before).
		Update("cashed_out", true)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// GetStaleOpen 查询超过保留时间仍未结束的会话（清理任务用）
func (r *MinesRepository) GetStaleOpen(ctx context.Context, before time.Time, limit int) ([]*model.MinesSession, error) {
	var sessions []*model.MinesSession
	err := r.db.WithContext(ctx).
		Where("cashed_out = ? AND created_at < ?", false, before).
		Limit(limit).
		Find(&sessions).Error
	return sessions, err
}
