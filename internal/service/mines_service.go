package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"casino/internal/config"
	"casino/internal/model"
	"casino/internal/repository"
	"casino/pkg/rng"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ============================================================================
// Mines 会话引擎
// ============================================================================
//
// 25 格棋盘埋 mineCount 颗雷，玩家逐格翻开，每翻一格赔率按超几何概率上涨，
// 随时可兑现；翻到雷则会话结束、下注全失。
//
// 【并发契约】reveal / cashout 都先对会话行拿 FOR UPDATE 锁，
// 同一会话的并发请求串行执行，输家看到的是 session_expired /
// already_revealed，不可能双翻格或双入账。
//
// 【不变式】同一用户最多一个开放会话：开新会话时旧会话被强制关闭（零赔付）
// ============================================================================

const (
	minesCellSafe = "safe"
	minesCellMine = "mine"
)

type MinesService struct {
	db        *gorm.DB
	cfg       *config.Config
	wallet    *WalletService
	minesRepo *repository.MinesRepository
	rng       *rng.Source
}

func NewMinesService(db *gorm.DB, cfg *config.Config, wallet *WalletService) *MinesService {
	return &MinesService{
		db:        db,
		cfg:       cfg,
		wallet:    wallet,
		minesRepo: repository.NewMinesRepository(db),
		rng:       rng.New(),
	}
}

// MinesRevealResult 翻格结果
type MinesRevealResult struct {
	Safe       bool     `json:"safe"`
	Multiplier float64  `json:"multiplier,omitempty"`
	GameOver   bool     `json:"game_over"`
	Board      []string `json:"board,omitempty"` // 仅会话结束时返回完整棋盘
}

// Start 开新会话
// 同一个事务里：强关旧会话 -> 扣注 -> 落新会话
func (s *MinesService) Start(ctx context.Context, userID, bet int64, mineCount int) (string, error) {
	if bet < s.cfg.Game.MinBet {
		return "", ErrBetTooLow
	}
	if bet > s.cfg.Game.MaxBet {
		return "", ErrBetTooHigh
	}
	if mineCount < model.MinesMinCount || mineCount > model.MinesMaxCount {
		return "", ErrInvalidMineCount
	}

	board, err := s.generateBoard(mineCount)
	if err != nil {
		return "", fmt.Errorf("生成棋盘失败: %w", err)
	}
	boardJSON, err := json.Marshal(board)
	if err != nil {
		return "", err
	}

	sessionID := uuid.NewString()
	session := &model.MinesSession{
		ID:        sessionID,
		UserID:    userID,
		Bet:       bet,
		MineCount: mineCount,
		Board:     string(boardJSON),
		Revealed:  "[]",
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.minesRepo.CloseOpenByUserID(ctx, tx, userID); err != nil {
			return fmt.Errorf("关闭旧会话失败: %w", err)
		}
		if err := s.wallet.Debit(ctx, tx, userID, bet, model.GameMines); err != nil {
			return err
		}
		return s.minesRepo.Create(ctx, tx, session)
	})
	if err != nil {
		return "", err
	}
	return sessionID, nil
}

// Reveal 翻开一格
func (s *MinesService) Reveal(ctx context.Context, userID int64, sessionID string, cell int) (*MinesRevealResult, error) {
	if cell < 0 || cell >= model.MinesBoardSize {
		return nil, ErrInvalidCell
	}

	result := &MinesRevealResult{}
	err := s.db.Transaction(func(tx *gorm.DB) error {
		session, board, revealed, err := s.lockSession(ctx, tx, userID, sessionID)
		if err != nil {
			return err
		}

		for _, c := range revealed {
			if c == cell {
				return ErrAlreadyRevealed
			}
		}
		revealed = append(revealed, cell)
		revealedJSON, _ := json.Marshal(revealed)

		if board[cell] == minesCellMine {
			// 踩雷：会话结束，零赔付落记录，返回完整棋盘
			if err := s.minesRepo.UpdateRevealed(ctx, tx, sessionID, string(revealedJSON), true); err != nil {
				return err
			}
			meta := map[string]interface{}{"mines": session.MineCount, "cells": len(revealed)}
			if err := s.wallet.RecordOutcome(ctx, tx, userID, model.GameMines, session.Bet, 0, 0, meta); err != nil {
				return err
			}
			result.Safe = false
			result.GameOver = true
			result.Board = board
			return nil
		}

		if err := s.minesRepo.UpdateRevealed(ctx, tx, sessionID, string(revealedJSON), false); err != nil {
			return err
		}
		result.Safe = true
		result.Multiplier = MinesMultiplier(session.MineCount, len(revealed), s.cfg.Game.HouseEdge)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Cashout 兑现
// 赔率公式已含抽水，赔付 = floor(bet * mult)，抽水不二次扣
func (s *MinesService) Cashout(ctx context.Context, userID int64, sessionID string) (int64, float64, []string, error) {
	var (
		payout int64
		mult   float64
		board  []string
	)
	err := s.db.Transaction(func(tx *gorm.DB) error {
		session, b, revealed, err := s.lockSession(ctx, tx, userID, sessionID)
		if err != nil {
			return err
		}
		if len(revealed) == 0 {
			return ErrNoCellsRevealed
		}

		board = b
		mult = MinesMultiplier(session.MineCount, len(revealed), s.cfg.Game.HouseEdge)
		payout = int64(math.Floor(float64(session.Bet) * mult))

		if err := s.minesRepo.Close(ctx, tx, sessionID); err != nil {
			return err
		}
		if err := s.wallet.Credit(ctx, tx, userID, payout, model.GameMines, ""); err != nil {
			return err
		}
		meta := map[string]interface{}{"mines": session.MineCount, "cells": len(revealed)}
		return s.wallet.RecordOutcome(ctx, tx, userID, model.GameMines, session.Bet, payout, mult, meta)
	})
	if err != nil {
		return 0, 0, nil, err
	}
	return payout, mult, board, nil
}

// lockSession 拿行锁读会话并做归属/状态校验，顺带反序列化棋盘
func (s *MinesService) lockSession(ctx context.Context, tx *gorm.DB, userID int64, sessionID string) (*model.MinesSession, []string, []int, error) {
	session, err := s.minesRepo.GetByIDForUpdate(ctx, tx, sessionID)
	if err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			return nil, nil, nil, ErrSessionNotFound
		}
		return nil, nil, nil, err
	}
	if session.UserID != userID {
		return nil, nil, nil, ErrForbidden
	}
	if session.CashedOut {
		return nil, nil, nil, ErrSessionExpired
	}

	var board []string
	if err := json.Unmarshal([]byte(session.Board), &board); err != nil {
		return nil, nil, nil, fmt.Errorf("棋盘数据损坏: %w", err)
	}
	var revealed []int
	if err := json.Unmarshal([]byte(session.Revealed), &revealed); err != nil {
		return nil, nil, nil, fmt.Errorf("翻格数据损坏: %w", err)
	}
	return session, board, revealed, nil
}

// generateBoard 生成棋盘：无放回均匀抽样埋雷，每格成雷概率相同
func (s *MinesService) generateBoard(mineCount int) ([]string, error) {
	board := make([]string, model.MinesBoardSize)
	for i := range board {
		board[i] = minesCellSafe
	}
	positions, err := s.rng.Sample(model.MinesBoardSize, mineCount)
	if err != nil {
		return nil, err
	}
	for _, pos := range positions {
		board[pos] = minesCellMine
	}
	return board, nil
}

// MinesMultiplier 超几何公平赔率
//
// totalSafe = 25 - mineCount，连续安全翻开 found 格的概率
//   P = Π_{i=0}^{found-1} (totalSafe - i) / (25 - i)
// 赔率 = round((1/P) * (1 - houseEdge), 2)。
// 只取决于 (mineCount, found)，与具体翻了哪些格无关
func MinesMultiplier(mineCount, found int, houseEdge float64) float64 {
	totalSafe := model.MinesBoardSize - mineCount
	prob := 1.0
	for i := 0; i < found; i++ {
		prob *= float64(totalSafe-i) / float64(model.MinesBoardSize-i)
	}
	return rng.Round2((1 / prob) * (1 - houseEdge))
}
