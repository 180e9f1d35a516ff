package model

import (
	"time"
)

// 棋盘常量：5x5 共 25 格
const (
	MinesBoardSize = 25
	MinesMinCount  = 1
	MinesMaxCount  = 24
)

// MinesSession 扫雷会话表
//
// 【不变式】同一用户同时最多只有一个未结束（cashed_out=false）的会话，
// 新开会话时旧会话会被强制关闭（零赔付）
//
// Board / Revealed 以 JSON 存储：
//   board:    长度 25 的数组，元素为 "safe" 或 "mine"，爆炸前绝不外泄
//   revealed: 已翻开格子下标的有序数组
type MinesSession struct {
	ID        string    `gorm:"type:varchar(64);primaryKey" json:"id"`
	UserID    int64     `gorm:"index;not null" json:"user_id"`
	Bet       int64     `gorm:"not null" json:"bet"`
	MineCount int       `gorm:"not null" json:"mine_count"`
	Board     string    `gorm:"type:text;not null" json:"-"`
	Revealed  string    `gorm:"type:text;not null" json:"revealed"`
	CashedOut bool      `gorm:"not null;default:false;index" json:"cashed_out"`
	CreatedAt time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}

func (MinesSession) TableName() string {
	return "mines_sessions"
}
