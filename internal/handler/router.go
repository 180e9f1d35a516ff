package handler

import (
	"casino/internal/config"
	"casino/internal/repository"
	"casino/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
)

// SetupRouter 配置路由
func SetupRouter(db *gorm.DB, rdb *redis.Client, cfg *config.Config, crashService *service.CrashService) *gin.Engine {
	// 设置 gin 为发布模式（减少日志输出）
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	// 注册中间件
	r.Use(RecoveryMiddleware())
	r.Use(LoggerMiddleware())
	r.Use(CORSMiddleware())

	// 创建处理器
	h := NewHandler(db, rdb, cfg, crashService)

	// API 路由组：身份 + 限流
	api := r.Group("/api/v1")
	api.Use(AuthMiddleware(repository.NewUserRepository(db)))
	api.Use(RateLimitMiddleware(rdb, 30))
	{
		// 用户相关
		user := api.Group("/user")
		{
			user.GET("/balance", h.GetBalance)
			user.GET("/profile", h.GetProfile)
			user.GET("/transactions", h.ListTransactions)
			user.POST("/withdraw", h.Withdraw)
		}

		// 即时游戏
		games := api.Group("/games")
		{
			games.POST("/coin/play", h.PlayCoin)
			games.POST("/dice/play", h.PlayDice)
			games.POST("/roulette/play", h.PlayRoulette)
			games.POST("/slots/play", h.PlaySlots)

			// crash
			games.GET("/crash/state", h.GetCrashState)
			games.POST("/crash/bet", h.PlaceCrashBet)
			games.POST("/crash/cashout", h.CrashCashout)

			// mines
			games.POST("/mines/start", h.StartMines)
			games.POST("/mines/reveal", h.RevealMines)
			games.POST("/mines/cashout", h.MinesCashout)
		}
	}

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	return r
}
