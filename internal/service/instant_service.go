package service

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"casino/internal/config"
	"casino/internal/infrastructure/lock"
	"casino/internal/model"
	"casino/pkg/rng"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// ============================================================================
// 即时游戏服务（coin / dice / roulette / slots）
// ============================================================================
//
// 四个游戏共用同一条 {校验, 生成结果, 结算} 流水线，差异只在各自的
// 结果生成器（resolver）。结算统一走钱包的 Settle：
// 扣注 -> 入账 -> 落记录，一个事务，全有或全无。
//
// 同一用户的并发动作用 Redis 钱包锁串行化（多实例部署时数据库行锁
// 之外的第一道闸）
// ============================================================================

// 骰子：押两枚骰子点数和，赔率表
var diceMultipliers = map[int]float64{
	2: 36, 3: 18, 4: 12, 5: 9, 6: 7.2, 7: 6, 8: 7.2, 9: 9, 10: 12, 11: 18, 12: 36,
}

// 轮盘红色号码
var rouletteRedNums = map[int]bool{
	1: true, 3: true, 5: true, 7: true, 9: true, 12: true, 14: true, 16: true,
	18: true, 19: true, 21: true, 23: true, 25: true, 27: true, 30: true,
	32: true, 34: true, 36: true,
}

// 老虎机：固定顺序的符号表和权重，权重越小越稀有
var (
	slotSymbols  = []string{"🎯", "⭐", "💎", "🔫", "💣", "🪙", "🔪", "💀"}
	slotWeights  = []int{2, 4, 5, 8, 8, 12, 14, 15}
	slotPayouts5 = map[string]float64{"🎯": 500, "⭐": 200, "💎": 100, "🔫": 50, "💣": 25}
)

// InstantOutcome 一局即时游戏的结果
type InstantOutcome struct {
	Payout     int64
	Multiplier float64
	Won        bool
	Meta       map[string]interface{} // 落库附加信息
	Detail     map[string]interface{} // 返回给前端的展示字段
}

type instantResolver func(src *rng.Source) (*InstantOutcome, error)

type InstantService struct {
	cfg    *config.Config
	wallet *WalletService
	redis  *redis.Client
	rng    *rng.Source
}

func NewInstantService(cfg *config.Config, wallet *WalletService, redisClient *redis.Client) *InstantService {
	return &InstantService{
		cfg:    cfg,
		wallet: wallet,
		redis:  redisClient,
		rng:    rng.New(),
	}
}

// play 共用流水线：校验注额 -> 生成结果 -> 钱包锁内结算
func (s *InstantService) play(ctx context.Context, userID, bet int64, game string, resolve instantResolver) (*InstantOutcome, error) {
	if bet < s.cfg.Game.MinBet {
		return nil, ErrBetTooLow
	}
	if bet > s.cfg.Game.MaxBet {
		return nil, ErrBetTooHigh
	}

	outcome, err := resolve(s.rng)
	if err != nil {
		return nil, fmt.Errorf("生成游戏结果失败: %w", err)
	}

	walletLock := lock.NewWalletLock(s.redis, userID, uuid.NewString())
	if err := walletLock.Lock(ctx, 100*time.Millisecond, 30); err != nil {
		return nil, fmt.Errorf("系统繁忙，请稍后重试: %w", err)
	}
	defer walletLock.Unlock(ctx)

	if err := s.wallet.Settle(ctx, userID, game, bet, outcome.Payout, outcome.Multiplier, outcome.Meta); err != nil {
		return nil, err
	}
	return outcome, nil
}

// ============================================================
// coin 硬币
// ============================================================

func (s *InstantService) PlayCoin(ctx context.Context, userID, bet int64, side string) (*InstantOutcome, error) {
	if side != "heads" && side != "tails" {
		return nil, ErrInvalidSide
	}
	return s.play(ctx, userID, bet, model.GameCoin, func(src *rng.Source) (*InstantOutcome, error) {
		return ResolveCoin(src, bet, side, s.cfg.Game.HouseEdge)
	})
}

// ResolveCoin 硬币结果：猜中赔 2 倍（抽水后）
func ResolveCoin(src *rng.Source, bet int64, side string, houseEdge float64) (*InstantOutcome, error) {
	r, err := src.Intn(2)
	if err != nil {
		return nil, err
	}
	result := "heads"
	if r == 1 {
		result = "tails"
	}

	won := result == side
	outcome := &InstantOutcome{
		Meta:   map[string]interface{}{"side": side, "result": result},
		Detail: map[string]interface{}{"result": result},
	}
	if won {
		outcome.Won = true
		outcome.Multiplier = 2.0
		outcome.Payout = instantPayout(bet, 2.0, houseEdge)
	}
	return outcome, nil
}

// ============================================================
// dice 骰子
// ============================================================

func (s *InstantService) PlayDice(ctx context.Context, userID, bet int64, chosen int) (*InstantOutcome, error) {
	if _, ok := diceMultipliers[chosen]; !ok {
		return nil, ErrInvalidChosen
	}
	return s.play(ctx, userID, bet, model.GameDice, func(src *rng.Source) (*InstantOutcome, error) {
		return ResolveDice(src, bet, chosen, s.cfg.Game.HouseEdge)
	})
}

// ResolveDice 两枚骰子，猜中点数和按赔率表赔付
func ResolveDice(src *rng.Source, bet int64, chosen int, houseEdge float64) (*InstantOutcome, error) {
	die1, err := src.Intn(6)
	if err != nil {
		return nil, err
	}
	die2, err := src.Intn(6)
	if err != nil {
		return nil, err
	}
	die1, die2 = die1+1, die2+1
	total := die1 + die2

	outcome := &InstantOutcome{
		Meta:   map[string]interface{}{"die1": die1, "die2": die2},
		Detail: map[string]interface{}{"die1": die1, "die2": die2, "sum": total},
	}
	if total == chosen {
		mult := diceMultipliers[chosen]
		outcome.Won = true
		outcome.Multiplier = mult
		outcome.Payout = instantPayout(bet, mult, houseEdge)
	}
	return outcome, nil
}

// ============================================================
// roulette 轮盘
// ============================================================

// PlayRoulette 轮盘一局可以同时押多个位置，bets 的 key 格式：
// num_<0..36> / cat_red / cat_black / cat_green / cat_odd / cat_even /
// cat_half1 / cat_half2，value 为各位置注额；注额校验针对总注
func (s *InstantService) PlayRoulette(ctx context.Context, userID int64, bets map[string]int64) (*InstantOutcome, error) {
	var totalBet int64
	for _, amount := range bets {
		// 逐位置校验：负数位置会让总注通过区间检查、只扣差额却按全额赔付
		if amount <= 0 {
			return nil, ErrInvalidBetAmount
		}
		totalBet += amount
	}

	return s.play(ctx, userID, totalBet, model.GameRoulette, func(src *rng.Source) (*InstantOutcome, error) {
		return ResolveRoulette(src, bets, totalBet, s.cfg.Game.HouseEdge)
	})
}

// ResolveRoulette 开一个号码，逐位置计算赔付并汇总
func ResolveRoulette(src *rng.Source, bets map[string]int64, totalBet int64, houseEdge float64) (*InstantOutcome, error) {
	number, err := src.Intn(37)
	if err != nil {
		return nil, err
	}

	color := "black"
	switch {
	case number == 0:
		color = "green"
	case rouletteRedNums[number]:
		color = "red"
	}

	var totalPayout int64
	for key, amount := range bets {
		totalPayout += roulettePayoutFor(key, amount, number, color, houseEdge)
	}

	outcome := &InstantOutcome{
		Payout: totalPayout,
		Won:    totalPayout > 0,
		Meta:   map[string]interface{}{"number": number, "color": color},
		Detail: map[string]interface{}{"number": number, "color": color},
	}
	if outcome.Won && totalBet > 0 {
		outcome.Multiplier = rng.Round2(float64(totalPayout) / float64(totalBet))
	}
	return outcome, nil
}

// roulettePayoutFor 单个位置的赔付：直押35倍、红黑/单双/半区2倍、绿14倍
func roulettePayoutFor(key string, amount int64, number int, color string, houseEdge float64) int64 {
	switch {
	case strings.HasPrefix(key, "num_"):
		n, err := strconv.Atoi(strings.TrimPrefix(key, "num_"))
		if err == nil && n == number {
			return instantPayout(amount, 35, houseEdge)
		}
	case key == "cat_red" && color == "red":
		return instantPayout(amount, 2, houseEdge)
	case key == "cat_black" && color == "black":
		return instantPayout(amount, 2, houseEdge)
	case key == "cat_green" && color == "green":
		return instantPayout(amount, 14, houseEdge)
	case key == "cat_odd" && number%2 == 1:
		return instantPayout(amount, 2, houseEdge)
	case key == "cat_even" && number%2 == 0 && number != 0:
		return instantPayout(amount, 2, houseEdge)
	case key == "cat_half1" && number >= 1 && number <= 18:
		return instantPayout(amount, 2, houseEdge)
	case key == "cat_half2" && number >= 19 && number <= 36:
		return instantPayout(amount, 2, houseEdge)
	}
	return 0
}

// ============================================================
// slots 老虎机
// ============================================================

func (s *InstantService) PlaySlots(ctx context.Context, userID, bet int64) (*InstantOutcome, error) {
	return s.play(ctx, userID, bet, model.GameSlots, func(src *rng.Source) (*InstantOutcome, error) {
		return ResolveSlots(src, bet, s.cfg.Game.HouseEdge)
	})
}

// ResolveSlots 五个卷轴按权重独立抽符号
// 5连按符号专表，4连15倍，3连5倍
func ResolveSlots(src *rng.Source, bet int64, houseEdge float64) (*InstantOutcome, error) {
	reels := make([]string, 5)
	for i := range reels {
		idx, err := src.WeightedIndex(slotWeights)
		if err != nil {
			return nil, err
		}
		reels[i] = slotSymbols[idx]
	}

	// 找出现次数最多的符号，并列时取先出现的
	counts := make(map[string]int, len(reels))
	bestSym, maxMatch := "", 0
	for _, sym := range reels {
		counts[sym]++
		if counts[sym] > maxMatch {
			bestSym, maxMatch = sym, counts[sym]
		}
	}

	var mult float64
	combo := ""
	switch {
	case maxMatch == 5:
		if m, ok := slotPayouts5[bestSym]; ok {
			mult = m
			combo = "5x" + bestSym
		}
	case maxMatch == 4:
		mult = 15
		combo = "4x" + bestSym
	case maxMatch == 3:
		mult = 5
		combo = "3x" + bestSym
	}

	outcome := &InstantOutcome{
		Multiplier: mult,
		Meta:       map[string]interface{}{"reels": reels, "combo": combo},
		Detail:     map[string]interface{}{"reels": reels, "combo": combo},
	}
	if mult > 0 {
		outcome.Payout = instantPayout(bet, mult, houseEdge)
		outcome.Won = outcome.Payout > 0
	}
	return outcome, nil
}

// instantPayout 赔付 = floor(bet * mult * (1 - houseEdge))
func instantPayout(bet int64, mult, houseEdge float64) int64 {
	return int64(math.Floor(float64(bet) * mult * (1 - houseEdge)))
}
