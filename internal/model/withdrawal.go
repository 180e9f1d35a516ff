package model

import (
	"time"
)

const (
	WithdrawalStatusPending = "pending"
	WithdrawalStatusDone    = "done"
	WithdrawalStatusDenied  = "denied"
)

// Withdrawal 提现申请表
// 提现在本系统内只做余额扣减和记录，实际打款由外部系统消费
// withdraw_created 消息后完成
type Withdrawal struct {
	ID         int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	WithdrawNo string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"withdraw_no"`
	UserID     int64     `gorm:"index;not null" json:"user_id"`
	Amount     int64     `gorm:"not null" json:"amount"`     // 申请金额
	Fee        int64     `gorm:"not null" json:"fee"`        // 手续费
	NetAmount  int64     `gorm:"not null" json:"net_amount"` // 实际到账
	Nick       string    `gorm:"type:varchar(64)" json:"nick"`
	Status     string    `gorm:"type:varchar(16);index;not null;default:pending" json:"status"`
	CreatedAt  time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}

func (Withdrawal) TableName() string {
	return "withdrawals"
}
