package model

import (
	"time"
)

// BetRecord 对局结算记录表
// 每完成一次游戏动作（即时游戏一局 / crash 一注 / mines 一个会话）追加一条，
// 与 Transaction 不同，这里记录的是游戏维度的结果：投注额、赔付额、倍率
type BetRecord struct {
	ID         int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID     int64     `gorm:"index;not null" json:"user_id"`
	Game       string    `gorm:"type:varchar(32);index;not null" json:"game"`
	BetAmount  int64     `gorm:"not null" json:"bet_amount"`
	Payout     int64     `gorm:"not null" json:"payout"`
	Multiplier float64   `gorm:"type:decimal(10,2);not null" json:"multiplier"`
	Meta       string    `gorm:"type:text" json:"meta"` // JSON 附加信息（骰子点数、回合ID等）
	CreatedAt  time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}

func (BetRecord) TableName() string {
	return "bets"
}
