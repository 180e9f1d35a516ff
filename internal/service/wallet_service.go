package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"casino/internal/config"
	"casino/internal/model"
	"casino/internal/repository"
	"casino/pkg/idgen"

	"gorm.io/gorm"
)

// ============================================================================
// 钱包服务（Ledger）
// ============================================================================
//
// 余额和资金审计记录的唯一入口。所有游戏都通过这里改钱：
//
//   Debit         下注扣款 + bet 流水
//   Credit        赢钱入账 + win 流水
//   RecordOutcome 对局记录 + 聚合统计 + 结算事件（outbox）
//   Settle        Debit -> Credit -> RecordOutcome 合成一个事务（即时游戏用）
//   Withdraw      提现扣款 + 提现单 + withdraw 流水
//
// 【并发契约】所有改同一用户余额的操作先拿 users 行的 FOR UPDATE 锁，
// 并发的下注和提现不可能都读到旧余额后都成功。
// 一次游戏动作的 扣款+入账+记录 必须在同一个数据库事务里，不允许半完成
// ============================================================================

type WalletService struct {
	db             *gorm.DB
	cfg            *config.Config
	userRepo       *repository.UserRepository
	transRepo      *repository.TransactionRepository
	betRepo        *repository.BetRepository
	withdrawalRepo *repository.WithdrawalRepository
	outboxRepo     *repository.OutboxRepository
}

func NewWalletService(db *gorm.DB, cfg *config.Config) *WalletService {
	return &WalletService{
		db:             db,
		cfg:            cfg,
		userRepo:       repository.NewUserRepository(db),
		transRepo:      repository.NewTransactionRepository(db),
		betRepo:        repository.NewBetRepository(db),
		withdrawalRepo: repository.NewWithdrawalRepository(db),
		outboxRepo:     repository.NewOutboxRepository(db),
	}
}

// inTx tx 为 nil 时自起事务，否则加入调用方的事务
func (s *WalletService) inTx(tx *gorm.DB, fn func(tx *gorm.DB) error) error {
	if tx != nil {
		return fn(tx)
	}
	return s.db.Transaction(fn)
}

// Debit 下注扣款
// 余额不足返回 ErrInsufficientFunds，不产生任何副作用
func (s *WalletService) Debit(ctx context.Context, tx *gorm.DB, userID, amount int64, game string) error {
	return s.inTx(tx, func(tx *gorm.DB) error {
		user, err := s.userRepo.GetByIDForUpdate(ctx, tx, userID)
		if err != nil {
			if errors.Is(err, repository.ErrUserNotFound) {
				return ErrUserNotFound
			}
			return err
		}
		if user.Gold < amount {
			return ErrInsufficientFunds
		}

		if err := s.userRepo.DeductGold(ctx, tx, userID, amount); err != nil {
			if errors.Is(err, repository.ErrBalanceNotEnough) {
				return ErrInsufficientFunds
			}
			return fmt.Errorf("扣款失败: %w", err)
		}

		trans := &model.Transaction{
			TransactionNo: idgen.GenerateTransactionNo(),
			UserID:        userID,
			Type:          model.TransactionTypeBet,
			Amount:        -amount,
			Description:   fmt.Sprintf("下注·%s", game),
			Game:          game,
		}
		if err := s.transRepo.Create(ctx, tx, trans); err != nil {
			return fmt.Errorf("记录流水失败: %w", err)
		}
		return nil
	})
}

// Credit 赢钱入账
// amount <= 0 时为空操作（输掉的局没有 win 流水）
func (s *WalletService) Credit(ctx context.Context, tx *gorm.DB, userID, amount int64, game, description string) error {
	if amount <= 0 {
		return nil
	}
	return s.inTx(tx, func(tx *gorm.DB) error {
		if _, err := s.userRepo.GetByIDForUpdate(ctx, tx, userID); err != nil {
			if errors.Is(err, repository.ErrUserNotFound) {
				return ErrUserNotFound
			}
			return err
		}
		if err := s.userRepo.IncreaseGold(ctx, tx, userID, amount); err != nil {
			return fmt.Errorf("入账失败: %w", err)
		}

		if description == "" {
			description = fmt.Sprintf("赢钱·%s", game)
		}
		trans := &model.Transaction{
			TransactionNo: idgen.GenerateTransactionNo(),
			UserID:        userID,
			Type:          model.TransactionTypeWin,
			Amount:        amount,
			Description:   description,
			Game:          game,
		}
		if err := s.transRepo.Create(ctx, tx, trans); err != nil {
			return fmt.Errorf("记录流水失败: %w", err)
		}
		return nil
	})
}

// RecordOutcome 记录对局结果并更新聚合统计
// 只记录历史和统计，绝不再动余额（兑现时已经入账过了）
func (s *WalletService) RecordOutcome(ctx context.Context, tx *gorm.DB, userID int64, game string, bet, payout int64, multiplier float64, meta map[string]interface{}) error {
	return s.inTx(tx, func(tx *gorm.DB) error {
		metaJSON := "{}"
		if meta != nil {
			b, err := json.Marshal(meta)
			if err != nil {
				return fmt.Errorf("序列化附加信息失败: %w", err)
			}
			metaJSON = string(b)
		}

		record := &model.BetRecord{
			UserID:     userID,
			Game:       game,
			BetAmount:  bet,
			Payout:     payout,
			Multiplier: multiplier,
			Meta:       metaJSON,
		}
		if err := s.betRepo.Create(ctx, tx, record); err != nil {
			return fmt.Errorf("记录对局失败: %w", err)
		}

		won := payout > 0
		if err := s.userRepo.UpdateGameStats(ctx, tx, userID, won, bet, payout); err != nil {
			return fmt.Errorf("更新统计失败: %w", err)
		}

		// 结算事件与结算本身同事务落库，由 OutboxSender 异步投递
		payload, _ := json.Marshal(map[string]interface{}{
			"user_id":    userID,
			"game":       game,
			"bet":        bet,
			"payout":     payout,
			"multiplier": multiplier,
			"settled_at": time.Now().Format(time.RFC3339),
		})
		outboxMsg := &model.OutboxMessage{
			MessageKey: fmt.Sprintf("%d:%s", userID, game),
			Topic:      s.cfg.Kafka.Topic.GameSettled,
			Payload:    string(payload),
			Status:     model.OutboxStatusPending,
		}
		if err := s.outboxRepo.Create(ctx, tx, outboxMsg); err != nil {
			return fmt.Errorf("写入消息失败: %w", err)
		}
		return nil
	})
}

// Settle 一次游戏动作的完整结算：扣注 -> 入账 -> 记录
// 全部在一个事务里，任意一步失败整体回滚，余额不变
func (s *WalletService) Settle(ctx context.Context, userID int64, game string, bet, payout int64, multiplier float64, meta map[string]interface{}) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.Debit(ctx, tx, userID, bet, game); err != nil {
			return err
		}
		if err := s.Credit(ctx, tx, userID, payout, game, ""); err != nil {
			return err
		}
		return s.RecordOutcome(ctx, tx, userID, game, bet, payout, multiplier, meta)
	})
}

// Withdraw 提现申请
// 扣减余额、落提现单（pending）、withdraw 流水、withdraw_created 事件，一个事务
func (s *WalletService) Withdraw(ctx context.Context, userID, amount int64, nick string) (*model.Withdrawal, error) {
	if amount < s.cfg.Game.WithdrawMin {
		return nil, ErrAmountTooLow
	}

	fee := int64(float64(amount) * s.cfg.Game.WithdrawFee)
	withdrawal := &model.Withdrawal{
		WithdrawNo: idgen.GenerateWithdrawNo(),
		UserID:     userID,
		Amount:     amount,
		Fee:        fee,
		NetAmount:  amount - fee,
		Nick:       nick,
		Status:     model.WithdrawalStatusPending,
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		// 独占读余额，防止并发下注+提现同时基于旧余额成功
		user, err := s.userRepo.GetByIDForUpdate(ctx, tx, userID)
		if err != nil {
			if errors.Is(err, repository.ErrUserNotFound) {
				return ErrUserNotFound
			}
			return err
		}
		if user.Gold < amount {
			return ErrInsufficientFunds
		}

		if err := s.userRepo.DeductGold(ctx, tx, userID, amount); err != nil {
			if errors.Is(err, repository.ErrBalanceNotEnough) {
				return ErrInsufficientFunds
			}
			return fmt.Errorf("扣款失败: %w", err)
		}

		if err := s.withdrawalRepo.Create(ctx, tx, withdrawal); err != nil {
			return fmt.Errorf("创建提现单失败: %w", err)
		}

		trans := &model.Transaction{
			TransactionNo: idgen.GenerateTransactionNo(),
			UserID:        userID,
			Type:          model.TransactionTypeWithdraw,
			Amount:        -amount,
			Description:   fmt.Sprintf("提现→%s", nick),
		}
		if err := s.transRepo.Create(ctx, tx, trans); err != nil {
			return fmt.Errorf("记录流水失败: %w", err)
		}

		payload, _ := json.Marshal(map[string]interface{}{
			"withdraw_no": withdrawal.WithdrawNo,
			"user_id":     userID,
			"amount":      amount,
			"fee":         fee,
			"net_amount":  amount - fee,
			"nick":        nick,
		})
		outboxMsg := &model.OutboxMessage{
			MessageKey: withdrawal.WithdrawNo,
			Topic:      s.cfg.Kafka.Topic.WithdrawCreated,
			Payload:    string(payload),
			Status:     model.OutboxStatusPending,
		}
		if err := s.outboxRepo.Create(ctx, tx, outboxMsg); err != nil {
			return fmt.Errorf("写入消息失败: %w", err)
		}
		return nil
	})

	if err != nil {
		return nil, err
	}
	return withdrawal, nil
}
