package job

import (
	"context"
	"log"
	"time"

	"casino/internal/config"
	"casino/internal/repository"

	"gorm.io/gorm"
)

// SessionCleanerJob 过期 mines 会话清理任务
// 玩家弃局（开着会话直接走人）的会话超过保留时间后强制关闭，
// 不退款不赔付 —— 和"开新会话强关旧会话"的语义一致
type SessionCleanerJob struct {
	db        *gorm.DB
	minesRepo *repository.MinesRepository
	cfg       *config.Config
	stopCh    chan struct{}
	interval  time.Duration
	batchSize int
}

func NewSessionCleanerJob(db *gorm.DB, cfg *config.Config) *SessionCleanerJob {
	return &SessionCleanerJob{
		db:        db,
		minesRepo: repository.NewMinesRepository(db),
		cfg:       cfg,
		stopCh:    make(chan struct{}),
		interval:  10 * time.Minute,
		batchSize: 100,
	}
}

func (j *SessionCleanerJob) Start(ctx context.Context) {
	log.Println("[SessionCleaner] 会话清理任务启动")

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("[SessionCleaner] 收到停止信号，任务退出")
			return
		case <-j.stopCh:
			log.Println("[SessionCleaner] 任务停止")
			return
		case <-ticker.C:
			j.closeStaleSessions(ctx)
		}
	}
}

func (j *SessionCleanerJob) Stop() {
	close(j.stopCh)
}

func (j *SessionCleanerJob) closeStaleSessions(ctx context.Context) {
	maxAge := time.Duration(j.cfg.Business.SessionMaxAgeHours) * time.Hour
	before := time.Now().Add(-maxAge)

	sessions, err := j.minesRepo.GetStaleOpen(ctx, before, j.batchSize)
	if err != nil {
		log.Printf("[SessionCleaner] 查询过期会话失败: %v", err)
		return
	}

	if len(sessions) == 0 {
		return
	}

	closedCount := 0
	for _, session := range sessions {
		// 必须按会话ID带过期守卫关闭，不能按 user_id 扫：
		// 查询之后该用户可能已开了新会话，按用户扫会连新会话一起关掉
		closed, err := j.minesRepo.CloseStaleByID(ctx, session.ID, before)
		if err != nil {
			log.Printf("[SessionCleaner] 关闭会话失败: id=%s, err=%v", session.ID, err)
			continue
		}
		if closed {
			closedCount++
		}
	}

	if closedCount > 0 {
		log.Printf("[SessionCleaner] 本次关闭 %d 个过期会话", closedCount)
	}
}
