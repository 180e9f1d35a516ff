package handler

import (
	"errors"
	"strconv"

	"casino/internal/config"
	"casino/internal/service"
	"casino/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
)

// Handler 统一处理器，包含所有服务依赖
type Handler struct {
	userService    *service.UserService
	instantService *service.InstantService
	crashService   *service.CrashService
	minesService   *service.MinesService
}

// NewHandler 创建处理器实例
func NewHandler(db *gorm.DB, rdb *redis.Client, cfg *config.Config, crashService *service.CrashService) *Handler {
	wallet := service.NewWalletService(db, cfg)
	return &Handler{
		userService:    service.NewUserService(db, cfg, rdb, wallet),
		instantService: service.NewInstantService(cfg, wallet, rdb),
		crashService:   crashService,
		minesService:   service.NewMinesService(db, cfg, wallet),
	}
}

// writeGameError 业务错误统一映射到业务码
func writeGameError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrBetTooLow):
		response.BusinessError(c, response.CodeBetTooLow, err.Error())
	case errors.Is(err, service.ErrBetTooHigh):
		response.BusinessError(c, response.CodeBetTooHigh, err.Error())
	case errors.Is(err, service.ErrInsufficientFunds):
		response.BusinessError(c, response.CodeInsufficientFunds, err.Error())
	case errors.Is(err, service.ErrWrongPhase):
		response.BusinessError(c, response.CodeWrongPhase, err.Error())
	case errors.Is(err, service.ErrGameNotFound):
		response.BusinessError(c, response.CodeGameNotFound, err.Error())
	case errors.Is(err, service.ErrEngineBusy):
		response.BusinessError(c, response.CodeEngineBusy, err.Error())
	case errors.Is(err, service.ErrInvalidMineCount):
		response.BusinessError(c, response.CodeInvalidMineCount, err.Error())
	case errors.Is(err, service.ErrSessionNotFound):
		response.BusinessError(c, response.CodeNotFound, err.Error())
	case errors.Is(err, service.ErrForbidden):
		response.BusinessError(c, response.CodeForbidden, err.Error())
	case errors.Is(err, service.ErrSessionExpired):
		response.BusinessError(c, response.CodeSessionExpired, err.Error())
	case errors.Is(err, service.ErrAlreadyRevealed):
		response.BusinessError(c, response.CodeAlreadyRevealed, err.Error())
	case errors.Is(err, service.ErrInvalidCell):
		response.BusinessError(c, response.CodeInvalidCell, err.Error())
	case errors.Is(err, service.ErrNoCellsRevealed):
		response.BusinessError(c, response.CodeNoCellsRevealed, err.Error())
	case errors.Is(err, service.ErrAmountTooLow):
		response.BusinessError(c, response.CodeAmountTooLow, err.Error())
	case errors.Is(err, service.ErrInvalidSide), errors.Is(err, service.ErrInvalidChosen),
		errors.Is(err, service.ErrInvalidBetAmount):
		response.ParamError(c, err.Error())
	case errors.Is(err, service.ErrUserNotFound):
		response.BusinessError(c, response.CodeNotFound, err.Error())
	default:
		response.ServerError(c, err.Error())
	}
}

// ============================================================
// 用户相关接口
// ============================================================

// GetBalance 查询余额
// GET /api/v1/user/balance
func (h *Handler) GetBalance(c *gin.Context) {
	gold, err := h.userService.GetBalance(c.Request.Context(), currentUserID(c))
	if err != nil {
		writeGameError(c, err)
		return
	}
	response.Success(c, gin.H{"gold": gold})
}

// GetProfile 查询档案
// GET /api/v1/user/profile
func (h *Handler) GetProfile(c *gin.Context) {
	profile, err := h.userService.GetProfile(c.Request.Context(), currentUserID(c))
	if err != nil {
		writeGameError(c, err)
		return
	}
	response.Success(c, profile)
}

// ListTransactions 查询最近流水
// GET /api/v1/user/transactions?limit=10
func (h *Handler) ListTransactions(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))

	transactions, err := h.userService.ListTransactions(c.Request.Context(), currentUserID(c), limit)
	if err != nil {
		writeGameError(c, err)
		return
	}
	response.Success(c, gin.H{"transactions": transactions})
}

// WithdrawRequest 提现请求
type WithdrawRequest struct {
	Nick   string `json:"nick" binding:"required"`
	Amount int64  `json:"amount" binding:"required,gt=0"`
}

// Withdraw 提现
// POST /api/v1/user/withdraw
func (h *Handler) Withdraw(c *gin.Context) {
	var req WithdrawRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	withdrawal, err := h.userService.Withdraw(c.Request.Context(), currentUserID(c), req.Amount, req.Nick)
	if err != nil {
		writeGameError(c, err)
		return
	}
	response.Success(c, gin.H{
		"withdraw_no": withdrawal.WithdrawNo,
		"amount":      withdrawal.Amount,
		"fee":         withdrawal.Fee,
		"net_amount":  withdrawal.NetAmount,
		"status":      withdrawal.Status,
	})
}

// ============================================================
// 即时游戏接口
// ============================================================

// CoinRequest 硬币请求
type CoinRequest struct {
	Bet  int64  `json:"bet" binding:"required,gt=0"`
	Side string `json:"side" binding:"required"`
}

// PlayCoin 硬币
// POST /api/v1/games/coin/play
func (h *Handler) PlayCoin(c *gin.Context) {
	var req CoinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	outcome, err := h.instantService.PlayCoin(c.Request.Context(), currentUserID(c), req.Bet, req.Side)
	if err != nil {
		writeGameError(c, err)
		return
	}
	response.Success(c, instantResult(outcome))
}

// DiceRequest 骰子请求
type DiceRequest struct {
	Bet    int64 `json:"bet" binding:"required,gt=0"`
	Chosen int   `json:"chosen" binding:"required"`
}

// PlayDice 骰子
// POST /api/v1/games/dice/play
func (h *Handler) PlayDice(c *gin.Context) {
	var req DiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	outcome, err := h.instantService.PlayDice(c.Request.Context(), currentUserID(c), req.Bet, req.Chosen)
	if err != nil {
		writeGameError(c, err)
		return
	}
	response.Success(c, instantResult(outcome))
}

// RouletteRequest 轮盘请求
type RouletteRequest struct {
	Bets map[string]int64 `json:"bets" binding:"required"`
}

// PlayRoulette 轮盘
// POST /api/v1/games/roulette/play
func (h *Handler) PlayRoulette(c *gin.Context) {
	var req RouletteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	outcome, err := h.instantService.PlayRoulette(c.Request.Context(), currentUserID(c), req.Bets)
	if err != nil {
		writeGameError(c, err)
		return
	}
	response.Success(c, instantResult(outcome))
}

// SlotsRequest 老虎机请求
type SlotsRequest struct {
	Bet int64 `json:"bet" binding:"required,gt=0"`
}

// PlaySlots 老虎机
// POST /api/v1/games/slots/play
func (h *Handler) PlaySlots(c *gin.Context) {
	var req SlotsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	outcome, err := h.instantService.PlaySlots(c.Request.Context(), currentUserID(c), req.Bet)
	if err != nil {
		writeGameError(c, err)
		return
	}
	response.Success(c, instantResult(outcome))
}

// instantResult 即时游戏统一响应：won/payout + 各游戏展示字段
func instantResult(outcome *service.InstantOutcome) gin.H {
	result := gin.H{
		"won":    outcome.Won,
		"payout": outcome.Payout,
	}
	for k, v := range outcome.Detail {
		result[k] = v
	}
	return result
}

// ============================================================
// Crash 接口
// ============================================================

// GetCrashState 读取公开回合状态（不含爆点和他人身份）
// GET /api/v1/games/crash/state
func (h *Handler) GetCrashState(c *gin.Context) {
	state, err := h.crashService.ReadState(c.Request.Context())
	if err != nil {
		writeGameError(c, err)
		return
	}
	response.Success(c, state)
}

// CrashBetRequest crash 下注请求
type CrashBetRequest struct {
	Bet         int64   `json:"bet" binding:"required,gt=0"`
	AutoCashout float64 `json:"auto_cashout"`
}

// PlaceCrashBet 下注
// POST /api/v1/games/crash/bet
func (h *Handler) PlaceCrashBet(c *gin.Context) {
	var req CrashBetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}
	if req.AutoCashout != 0 && req.AutoCashout < 1.01 {
		response.ParamError(c, "自动兑现阈值必须大于 1.0")
		return
	}

	roundID, err := h.crashService.PlaceBet(c.Request.Context(), currentUserID(c), req.Bet, req.AutoCashout)
	if err != nil {
		writeGameError(c, err)
		return
	}
	response.Success(c, gin.H{"round_id": roundID})
}

// CrashCashout 手动兑现
// POST /api/v1/games/crash/cashout
func (h *Handler) CrashCashout(c *gin.Context) {
	payout, multiplier, err := h.crashService.Cashout(c.Request.Context(), currentUserID(c))
	if err != nil {
		writeGameError(c, err)
		return
	}
	response.Success(c, gin.H{"payout": payout, "multiplier": multiplier})
}

// ============================================================
// Mines 接口
// ============================================================

// MinesStartRequest 开局请求
type MinesStartRequest struct {
	Bet   int64 `json:"bet" binding:"required,gt=0"`
	Mines int   `json:"mines" binding:"required"`
}

// StartMines 开新会话
// POST /api/v1/games/mines/start
func (h *Handler) StartMines(c *gin.Context) {
	var req MinesStartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	sessionID, err := h.minesService.Start(c.Request.Context(), currentUserID(c), req.Bet, req.Mines)
	if err != nil {
		writeGameError(c, err)
		return
	}
	response.Success(c, gin.H{"game_id": sessionID})
}

// MinesRevealRequest 翻格请求
type MinesRevealRequest struct {
	GameID string `json:"game_id" binding:"required"`
	Cell   *int   `json:"cell" binding:"required"` // 指针区分 0 和缺省
}

// RevealMines 翻开一格
// POST /api/v1/games/mines/reveal
func (h *Handler) RevealMines(c *gin.Context) {
	var req MinesRevealRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	result, err := h.minesService.Reveal(c.Request.Context(), currentUserID(c), req.GameID, *req.Cell)
	if err != nil {
		writeGameError(c, err)
		return
	}
	response.Success(c, result)
}

// MinesCashoutRequest 兑现请求
type MinesCashoutRequest struct {
	GameID string `json:"game_id" binding:"required"`
}

// MinesCashout 兑现
// POST /api/v1/games/mines/cashout
func (h *Handler) MinesCashout(c *gin.Context) {
	var req MinesCashoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	payout, multiplier, board, err := h.minesService.Cashout(c.Request.Context(), currentUserID(c), req.GameID)
	if err != nil {
		writeGameError(c, err)
		return
	}
	response.Success(c, gin.H{
		"payout":     payout,
		"multiplier": multiplier,
		"board":      board,
	})
}
