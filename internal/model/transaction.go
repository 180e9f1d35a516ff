package model

import (
	"time"
)

// ============================================================================
// 交易类型常量
// ============================================================================

const (
	TransactionTypeBet      = "bet"      // 下注（扣款）
	TransactionTypeWin      = "win"      // 赢钱（入账）
	TransactionTypeWithdraw = "withdraw" // 提现（扣款）
)

// 游戏标识常量
const (
	GameCoin     = "coin"
	GameDice     = "dice"
	GameRoulette = "roulette"
	GameSlots    = "slots"
	GameCrash    = "crash"
	GameMines    = "mines"
)

// ============================================================================
// 账户流水实体
// ============================================================================

// Transaction 账户流水表
// 记录账户的每一笔金币变动，是对账的核心依据
//
// 【重要】流水表设计原则：
// 1. 只追加，不修改，不删除 —— 保证审计可追溯
// 2. 金额带符号：下注/提现为负，赢钱为正
// 3. 每笔流水记录游戏来源，便于按游戏对账
type Transaction struct {
	ID            int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	TransactionNo string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"transaction_no"` // 流水号（全局唯一）
	UserID        int64     `gorm:"index;not null" json:"user_id"`
	Type          string    `gorm:"type:varchar(32);not null" json:"type"`   // bet / win / withdraw
	Amount        int64     `gorm:"not null" json:"amount"`                  // 带符号金额
	Description   string    `gorm:"type:varchar(128)" json:"description"`    // 备注
	Game          string    `gorm:"type:varchar(32);index" json:"game"`      // 游戏来源
	CreatedAt     time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}

func (Transaction) TableName() string {
	return "transactions"
}
