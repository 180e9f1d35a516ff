package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"casino/internal/config"
	"casino/internal/infrastructure/lock"
	"casino/internal/model"
	"casino/internal/repository"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// UserService 用户侧查询和提现入口
type UserService struct {
	db        *gorm.DB
	cfg       *config.Config
	redis     *redis.Client
	wallet    *WalletService
	userRepo  *repository.UserRepository
	transRepo *repository.TransactionRepository
}

func NewUserService(db *gorm.DB, cfg *config.Config, redisClient *redis.Client, wallet *WalletService) *UserService {
	return &UserService{
		db:        db,
		cfg:       cfg,
		redis:     redisClient,
		wallet:    wallet,
		userRepo:  repository.NewUserRepository(db),
		transRepo: repository.NewTransactionRepository(db),
	}
}

// ProfileView 用户档案
type ProfileView struct {
	Name   string `json:"name"`
	XP     int64  `json:"xp"`
	Level  int64  `json:"level"`
	Games  int64  `json:"games"`
	Wins   int64  `json:"wins"`
	Profit int64  `json:"profit"`
}

func (s *UserService) GetBalance(ctx context.Context, userID int64) (int64, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return 0, ErrUserNotFound
		}
		return 0, err
	}
	return user.Gold, nil
}

func (s *UserService) GetProfile(ctx context.Context, userID int64) (*ProfileView, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	level := user.XP / 100
	if level > 6 {
		level = 6
	}

	return &ProfileView{
		Name:   user.FirstName,
		XP:     user.XP,
		Level:  level,
		Games:  user.GamesPlayed,
		Wins:   user.GamesWon,
		Profit: user.TotalProfit,
	}, nil
}

func (s *UserService) ListTransactions(ctx context.Context, userID int64, limit int) ([]*model.Transaction, error) {
	if limit <= 0 {
		limit = 10
	}
	if limit > 50 {
		limit = 50
	}
	return s.transRepo.ListByUserID(ctx, userID, limit)
}

// Withdraw 提现：钱包锁内委托给 Ledger
func (s *UserService) Withdraw(ctx context.Context, userID, amount int64, nick string) (*model.Withdrawal, error) {
	walletLock := lock.NewWalletLock(s.redis, userID, uuid.NewString())
	if err := walletLock.Lock(ctx, 100*time.Millisecond, 30); err != nil {
		return nil, fmt.Errorf("系统繁忙，请稍后重试: %w", err)
	}
	defer walletLock.Unlock(ctx)

	return s.wallet.Withdraw(ctx, userID, amount, nick)
}
