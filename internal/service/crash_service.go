package service

import (
	"context"
	"fmt"
	"log"
	"math"
	"time"

	"casino/internal/config"
	"casino/internal/model"
	"casino/pkg/rng"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ============================================================================
// Crash 回合引擎
// ============================================================================
//
// 全进程只有一个回合在跑：waiting(5s) -> running(倍率攀升) -> crashed(结算,
// 停顿3s) -> 新回合，循环到进程退出。
//
// 【并发模型】回合状态只属于 Start 启动的那个 goroutine（actor 模式）。
// 下注 / 手动兑现 / 读状态都封装成命令发到 cmdCh，由引擎在两次 tick 之间
// 串行处理 —— 不存在多写者对同一份回合状态做读-改-写，自动兑现和手动兑现
// 抢同一个标记时天然只有一个赢家。
//
// 命令入队带超时，引擎卡住时调用方快速失败，不会无限阻塞。
//
// 【容错】回合体出错（如数据库不可用）：记日志，把未决注退款，
// 指数退避后开新回合；进程本身绝不因瞬时故障退出。
// 重启后从全新回合开始，不恢复旧回合
// ============================================================================

const (
	crashPhaseWaiting = "waiting"
	crashPhaseRunning = "running"
	crashPhaseCrashed = "crashed"
)

const (
	cmdEnqueueTimeout = 2 * time.Second  // 命令入队超时
	crashDBTimeout    = 2 * time.Second  // 引擎内数据库操作超时
	crashMaxBackoff   = 30 * time.Second // 故障退避上限
)

// crashWallet crash 引擎对钱包服务的依赖，测试时注入内存假实现
type crashWallet interface {
	Debit(ctx context.Context, tx *gorm.DB, userID, amount int64, game string) error
	Credit(ctx context.Context, tx *gorm.DB, userID, amount int64, game, description string) error
	RecordOutcome(ctx context.Context, tx *gorm.DB, userID int64, game string, bet, payout int64, multiplier float64, meta map[string]interface{}) error
}

// crashUserDirectory 取参与者展示名
type crashUserDirectory interface {
	GetByID(ctx context.Context, userID int64) (*model.User, error)
}

// crashParticipant 回合内一注，仅引擎 goroutine 访问
type crashParticipant struct {
	userID      int64
	name        string
	bet         int64
	cashout     float64 // 0 表示未兑现；兑现后锁定倍率
	autoCashout float64 // 0 表示未设置
	payout      int64   // 兑现时锁定的赔付，结算落库用
	refunded    bool
}

// crashRound 回合状态，仅引擎 goroutine 访问
type crashRound struct {
	id         string
	phase      string
	multiplier float64
	crashPoint float64 // crashed 之前绝不外泄
	countdown  float64
	startedAt  time.Time
	bets       []*crashParticipant
}

type crashCmdKind int

const (
	crashCmdPlaceBet crashCmdKind = iota
	crashCmdCashout
	crashCmdReadState
)

type crashCommand struct {
	kind        crashCmdKind
	userID      int64
	bet         int64
	autoCashout float64
	reply       chan crashReply
}

type crashReply struct {
	roundID    string
	payout     int64
	multiplier float64
	state      *CrashStateView
	err        error
}

// CrashStateView 对外公开的回合状态
// 不包含爆点、用户ID、自动兑现阈值
type CrashStateView struct {
	Phase      string         `json:"phase"`
	Multiplier float64        `json:"multiplier"`
	RoundID    string         `json:"round_id"`
	Countdown  *float64       `json:"countdown"`
	Bets       []CrashBetView `json:"bets"`
}

type CrashBetView struct {
	Name    string   `json:"name"`
	Bet     int64    `json:"bet"`
	Cashout *float64 `json:"cashout"`
}

type CrashService struct {
	cfg    *config.Config
	wallet crashWallet
	users  crashUserDirectory
	cmdCh  chan crashCommand

	// 爆点生成可注入，测试时固定
	crashPoint func() (float64, error)
}

func NewCrashService(cfg *config.Config, wallet crashWallet, users crashUserDirectory) *CrashService {
	source := rng.New()
	return &CrashService{
		cfg:    cfg,
		wallet: wallet,
		users:  users,
		cmdCh:  make(chan crashCommand),
		crashPoint: func() (float64, error) {
			return source.CrashPoint(cfg.Game.HouseEdge)
		},
	}
}

// ============================================================
// 对外接口（命令入队）
// ============================================================

// PlaceBet 下注，仅 waiting 阶段有效
func (s *CrashService) PlaceBet(ctx context.Context, userID, bet int64, autoCashout float64) (string, error) {
	if bet < s.cfg.Game.MinBet {
		return "", ErrBetTooLow
	}
	if bet > s.cfg.Game.MaxBet {
		return "", ErrBetTooHigh
	}

	reply, err := s.send(ctx, crashCommand{
		kind:        crashCmdPlaceBet,
		userID:      userID,
		bet:         bet,
		autoCashout: autoCashout,
	})
	if err != nil {
		return "", err
	}
	return reply.roundID, reply.err
}

// Cashout 手动兑现，仅 running 阶段、且该注尚未兑现时有效
func (s *CrashService) Cashout(ctx context.Context, userID int64) (int64, float64, error) {
	reply, err := s.send(ctx, crashCommand{
		kind:   crashCmdCashout,
		userID: userID,
	})
	if err != nil {
		return 0, 0, err
	}
	return reply.payout, reply.multiplier, reply.err
}

// ReadState 读取公开回合状态
func (s *CrashService) ReadState(ctx context.Context) (*CrashStateView, error) {
	reply, err := s.send(ctx, crashCommand{kind: crashCmdReadState})
	if err != nil {
		return nil, err
	}
	return reply.state, reply.err
}

// send 命令入队并等待回复，入队超时即失败，不会卡死调用方
func (s *CrashService) send(ctx context.Context, cmd crashCommand) (crashReply, error) {
	cmd.reply = make(chan crashReply, 1)

	enqueue := time.NewTimer(cmdEnqueueTimeout)
	defer enqueue.Stop()

	select {
	case s.cmdCh <- cmd:
	case <-ctx.Done():
		return crashReply{}, ctx.Err()
	case <-enqueue.C:
		return crashReply{}, ErrEngineBusy
	}

	select {
	case r := <-cmd.reply:
		return r, nil
	case <-ctx.Done():
		return crashReply{}, ctx.Err()
	}
}

// ============================================================
// 引擎主循环
// ============================================================

// Start 启动引擎，阻塞运行到 ctx 取消，应以 go crashService.Start(ctx) 调用
func (s *CrashService) Start(ctx context.Context) {
	log.Println("[CrashEngine] 回合引擎启动")

	backoff := 2 * time.Second
	for {
		if ctx.Err() != nil {
			log.Println("[CrashEngine] 收到停止信号，引擎退出")
			return
		}

		err := s.runRound(ctx)
		if ctx.Err() != nil {
			log.Println("[CrashEngine] 收到停止信号，引擎退出")
			return
		}
		if err == nil {
			backoff = 2 * time.Second
			continue
		}

		log.Printf("[CrashEngine] 回合异常终止: %v，%v 后开新回合", err, backoff)
		s.serveIdle(ctx, backoff)
		backoff *= 2
		if backoff > crashMaxBackoff {
			backoff = crashMaxBackoff
		}
	}
}

// runRound 跑完一个完整回合（含爆炸后的停顿），出错时未决注已退款
func (s *CrashService) runRound(ctx context.Context) error {
	crashAt, err := s.crashPoint()
	if err != nil {
		return err
	}

	round := &crashRound{
		id:         uuid.NewString(),
		phase:      crashPhaseWaiting,
		multiplier: 1.0,
		crashPoint: crashAt,
		countdown:  float64(s.cfg.Crash.WaitingSeconds),
	}

	tick := time.Duration(s.cfg.Crash.TickMs) * time.Millisecond
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	// ── waiting 阶段：接受下注，倒计时每 tick 刷新 ──────────────
	deadline := time.Now().Add(time.Duration(s.cfg.Crash.WaitingSeconds) * time.Second)
	for round.phase == crashPhaseWaiting {
		select {
		case <-ctx.Done():
			s.refundOpenBets(round)
			return ctx.Err()
		case cmd := <-s.cmdCh:
			s.handleCommand(ctx, round, cmd)
		case now := <-ticker.C:
			remaining := deadline.Sub(now)
			if remaining <= 0 {
				round.phase = crashPhaseRunning
				round.countdown = 0
				round.startedAt = now
			} else {
				round.countdown = math.Round(remaining.Seconds()*10) / 10
			}
		}
	}

	// ── running 阶段：倍率 exp(k*t)，每 tick 处理自动兑现和爆炸 ──
	for round.phase == crashPhaseRunning {
		select {
		case <-ctx.Done():
			s.refundOpenBets(round)
			return ctx.Err()
		case cmd := <-s.cmdCh:
			s.handleCommand(ctx, round, cmd)
		case <-ticker.C:
			elapsed := float64(time.Since(round.startedAt).Milliseconds())
			mult := rng.Round2(math.Exp(s.cfg.Crash.GrowthK * elapsed))

			// 展示倍率严格钳制在爆点，最终值恰好等于爆点，绝不超过
			crashing := mult >= round.crashPoint
			if crashing {
				mult = round.crashPoint
			}
			round.multiplier = mult

			if err := s.runAutoCashouts(ctx, round); err != nil {
				s.refundOpenBets(round)
				return err
			}

			if crashing {
				round.phase = crashPhaseCrashed
			}
		}
	}

	// ── 结算：每回合恰好一次，只记历史和统计，不再动余额 ─────────
	s.settleRound(ctx, round)

	// ── 爆炸后停顿：继续应答状态查询，拒绝下注/兑现 ──────────────
	s.servePause(ctx, round, time.Duration(s.cfg.Crash.PauseSeconds)*time.Second)
	return ctx.Err()
}

// handleCommand 在引擎 goroutine 内串行处理一条命令
func (s *CrashService) handleCommand(ctx context.Context, round *crashRound, cmd crashCommand) {
	switch cmd.kind {
	case crashCmdPlaceBet:
		cmd.reply <- s.applyPlaceBet(ctx, round, cmd)
	case crashCmdCashout:
		cmd.reply <- s.applyCashout(ctx, round, cmd)
	case crashCmdReadState:
		cmd.reply <- crashReply{state: publicView(round)}
	}
}

func (s *CrashService) applyPlaceBet(ctx context.Context, round *crashRound, cmd crashCommand) crashReply {
	if round.phase != crashPhaseWaiting {
		return crashReply{err: ErrWrongPhase}
	}

	dbCtx, cancel := context.WithTimeout(ctx, crashDBTimeout)
	defer cancel()

	// 扣款成功才登记参与者；扣款在回合 goroutine 内串行执行，
	// 阶段检查和登记之间不可能被其它写者插队
	if err := s.wallet.Debit(dbCtx, nil, cmd.userID, cmd.bet, model.GameCrash); err != nil {
		return crashReply{err: err}
	}

	name := "User"
	if user, err := s.users.GetByID(dbCtx, cmd.userID); err == nil && user.FirstName != "" {
		name = user.FirstName
	}

	round.bets = append(round.bets, &crashParticipant{
		userID:      cmd.userID,
		name:        name,
		bet:         cmd.bet,
		autoCashout: cmd.autoCashout,
	})
	return crashReply{roundID: round.id}
}

func (s *CrashService) applyCashout(ctx context.Context, round *crashRound, cmd crashCommand) crashReply {
	if round.phase != crashPhaseRunning {
		return crashReply{err: ErrWrongPhase}
	}

	var target *crashParticipant
	for _, b := range round.bets {
		if b.userID == cmd.userID && b.cashout == 0 {
			target = b
			break
		}
	}
	if target == nil {
		return crashReply{err: ErrGameNotFound}
	}

	mult := round.multiplier
	payout := crashPayout(target.bet, mult, s.cfg.Game.HouseEdge)

	dbCtx, cancel := context.WithTimeout(ctx, crashDBTimeout)
	defer cancel()

	// 先入账后置标记；入账失败则标记保持未兑现，调用方可重试
	if err := s.wallet.Credit(dbCtx, nil, cmd.userID, payout, model.GameCrash,
		creditDescription("Crash 兑现", mult)); err != nil {
		return crashReply{err: err}
	}

	target.cashout = mult
	target.payout = payout
	return crashReply{payout: payout, multiplier: mult}
}

// runAutoCashouts 每 tick 扫描自动兑现
// 锁定的是玩家设置的阈值，不是当前 tick 的倍率（tick 可能已冲过阈值）
func (s *CrashService) runAutoCashouts(ctx context.Context, round *crashRound) error {
	for _, b := range round.bets {
		if b.cashout != 0 || b.autoCashout == 0 || round.multiplier < b.autoCashout {
			continue
		}

		payout := crashPayout(b.bet, b.autoCashout, s.cfg.Game.HouseEdge)

		dbCtx, cancel := context.WithTimeout(ctx, crashDBTimeout)
		err := s.wallet.Credit(dbCtx, nil, b.userID, payout, model.GameCrash,
			creditDescription("Crash 自动兑现", b.autoCashout))
		cancel()
		if err != nil {
			return err
		}

		b.cashout = b.autoCashout
		b.payout = payout
	}
	return nil
}

// settleRound 爆炸结算：所有参与者都落一条对局记录并更新聚合统计，
// 已兑现的记锁定的赔付和倍率，未兑现的记 0。
// 单个参与者落库失败只记日志，不影响其他人
func (s *CrashService) settleRound(ctx context.Context, round *crashRound) {
	for _, b := range round.bets {
		meta := map[string]interface{}{"round": round.id}

		dbCtx, cancel := context.WithTimeout(ctx, crashDBTimeout)
		err := s.wallet.RecordOutcome(dbCtx, nil, b.userID, model.GameCrash,
			b.bet, b.payout, b.cashout, meta)
		cancel()
		if err != nil {
			log.Printf("[CrashEngine] 结算落库失败: round=%s, userID=%d, err=%v", round.id, b.userID, err)
		}
	}
	log.Printf("[CrashEngine] 回合结算完成: round=%s, crashPoint=%.2f, bets=%d", round.id, round.crashPoint, len(round.bets))
}

// refundOpenBets 回合异常终止时退还所有未决注
// （决策：被中断回合的在途注一律退款，不没收）
func (s *CrashService) refundOpenBets(round *crashRound) {
	for _, b := range round.bets {
		if b.cashout != 0 || b.refunded {
			continue
		}
		// 原 ctx 可能已取消，退款用独立的短超时上下文
		dbCtx, cancel := context.WithTimeout(context.Background(), crashDBTimeout)
		err := s.wallet.Credit(dbCtx, nil, b.userID, b.bet, model.GameCrash, "Crash 回合中断退款")
		cancel()
		if err != nil {
			log.Printf("[CrashEngine] 退款失败: round=%s, userID=%d, amount=%d, err=%v", round.id, b.userID, b.bet, err)
			continue
		}
		b.refunded = true
	}
}

// servePause 爆炸后的停顿窗口：只应答状态查询
func (s *CrashService) servePause(ctx context.Context, round *crashRound, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			return
		case cmd := <-s.cmdCh:
			if cmd.kind == crashCmdReadState {
				cmd.reply <- crashReply{state: publicView(round)}
			} else {
				cmd.reply <- crashReply{err: ErrWrongPhase}
			}
		}
	}
}

// serveIdle 故障退避窗口：应答空状态，其余命令快速失败
func (s *CrashService) serveIdle(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	idle := &crashRound{phase: crashPhaseWaiting, multiplier: 1.0, countdown: float64(s.cfg.Crash.WaitingSeconds)}
	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			return
		case cmd := <-s.cmdCh:
			if cmd.kind == crashCmdReadState {
				cmd.reply <- crashReply{state: publicView(idle)}
			} else {
				cmd.reply <- crashReply{err: ErrEngineBusy}
			}
		}
	}
}

// publicView 生成公开视图：剥掉爆点、用户ID、自动兑现阈值
func publicView(round *crashRound) *CrashStateView {
	view := &CrashStateView{
		Phase:      round.phase,
		Multiplier: round.multiplier,
		RoundID:    round.id,
		Bets:       make([]CrashBetView, 0, len(round.bets)),
	}
	if round.phase == crashPhaseWaiting {
		countdown := round.countdown
		view.Countdown = &countdown
	}
	for _, b := range round.bets {
		bv := CrashBetView{Name: b.name, Bet: b.bet}
		if b.cashout != 0 {
			cashout := b.cashout
			bv.Cashout = &cashout
		}
		view.Bets = append(view.Bets, bv)
	}
	return view
}

// crashPayout 赔付 = floor(bet * mult * (1 - houseEdge))
func crashPayout(bet int64, mult, houseEdge float64) int64 {
	return int64(math.Floor(float64(bet) * mult * (1 - houseEdge)))
}

func creditDescription(prefix string, mult float64) string {
	return fmt.Sprintf("%s x%.2f", prefix, mult)
}
