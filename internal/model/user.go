package model

import (
	"time"
)

// User 用户账户表
// Gold 余额是整个平台的核心数据，只允许通过钱包服务（Ledger）修改，
// 任何地方都不能绕过 FOR UPDATE 行锁直接改余额
type User struct {
	ID           int64     `gorm:"primaryKey" json:"id"` // 用户ID，由外部认证网关下发
	Username     string    `gorm:"type:varchar(64)" json:"username"`
	FirstName    string    `gorm:"type:varchar(64)" json:"first_name"`
	Gold         int64     `gorm:"not null;default:5000" json:"gold"` // 可用余额（金币数）
	XP           int64     `gorm:"not null;default:0" json:"xp"`
	GamesPlayed  int64     `gorm:"not null;default:0" json:"games_played"`
	GamesWon     int64     `gorm:"not null;default:0" json:"games_won"`
	TotalWagered int64     `gorm:"not null;default:0" json:"total_wagered"`
	TotalProfit  int64     `gorm:"not null;default:0" json:"total_profit"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
	LastSeen     time.Time `json:"last_seen"`
}

func (User) TableName() string {
	return "users"
}
