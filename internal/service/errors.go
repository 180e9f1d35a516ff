package service

import "errors"

// 业务错误定义
// 校验类错误一律在任何余额变动之前返回，保证拒绝即无副作用
var (
	ErrBetTooLow         = errors.New("下注金额低于下限")
	ErrBetTooHigh        = errors.New("下注金额高于上限")
	ErrInsufficientFunds = errors.New("余额不足")
	ErrWrongPhase        = errors.New("当前阶段不允许该操作")
	ErrGameNotFound      = errors.New("未找到进行中的下注")
	ErrEngineBusy        = errors.New("引擎繁忙，请稍后重试")
	ErrInvalidMineCount  = errors.New("地雷数量不合法")
	ErrSessionNotFound   = errors.New("会话不存在")
	ErrForbidden         = errors.New("无权操作该会话")
	ErrSessionExpired    = errors.New("会话已结束")
	ErrAlreadyRevealed   = errors.New("该格子已翻开")
	ErrInvalidCell       = errors.New("格子下标不合法")
	ErrNoCellsRevealed   = errors.New("尚未翻开任何格子")
	ErrInvalidSide       = errors.New("硬币面不合法")
	ErrInvalidBetAmount  = errors.New("押注金额不合法")
	ErrInvalidChosen     = errors.New("点数选择不合法")
	ErrAmountTooLow      = errors.New("提现金额低于下限")
	ErrUserNotFound      = errors.New("用户不存在")
)
