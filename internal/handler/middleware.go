package handler

import (
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"casino/internal/repository"
	"casino/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
)

const ctxKeyUserID = "user_id"

// LoggerMiddleware 日志中间件
func LoggerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		// 处理请求
		c.Next()

		// 记录日志
		latency := time.Since(start)
		status := c.Writer.Status()

		if query != "" {
			path = path + "?" + query
		}

		log.Printf("[HTTP] %d | %13v | %15s | %-7s %s",
			status,
			latency,
			c.ClientIP(),
			c.Request.Method,
			path,
		)
	}
}

// RecoveryMiddleware 恢复中间件，防止 panic 导致服务崩溃
func RecoveryMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				log.Printf("[PANIC] %v", err)
				c.AbortWithStatusJSON(500, gin.H{
					"code":    500,
					"message": "服务器内部错误",
				})
			}
		}()
		c.Next()
	}
}

// CORSMiddleware 跨域中间件
func CORSMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Authorization, X-User-Id")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}

// AuthMiddleware 用户身份中间件
//
// 签名校验由上游网关完成，到这里 X-User-Id 已经是可信的数字用户ID，
// 核心逻辑不再二次校验身份。账户行不存在时按需创建
func AuthMiddleware(userRepo *repository.UserRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		userIDStr := c.GetHeader("X-User-Id")
		userID, err := strconv.ParseInt(userIDStr, 10, 64)
		if err != nil || userID <= 0 {
			response.Unauthorized(c, "缺少有效的用户身份")
			c.Abort()
			return
		}

		if _, err := userRepo.GetOrCreate(c.Request.Context(), userID, "", ""); err != nil {
			response.ServerError(c, "初始化账户失败")
			c.Abort()
			return
		}

		c.Set(ctxKeyUserID, userID)
		c.Next()
	}
}

// RateLimitMiddleware 简易限流：每用户每分钟最多 maxPerMinute 次请求
func RateLimitMiddleware(redisClient *redis.Client, maxPerMinute int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := currentUserID(c)
		if userID == 0 {
			c.Next()
			return
		}

		key := fmt.Sprintf("rl:%d", userID)
		count, err := redisClient.Incr(c.Request.Context(), key).Result()
		if err != nil {
			// 限流降级：Redis 故障时放行，不挡正常请求
			c.Next()
			return
		}
		if count == 1 {
			redisClient.Expire(c.Request.Context(), key, time.Minute)
		}
		if count > maxPerMinute {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"code":    http.StatusTooManyRequests,
				"message": "请求过于频繁",
			})
			return
		}
		c.Next()
	}
}

// currentUserID 取中间件注入的用户ID
func currentUserID(c *gin.Context) int64 {
	v, ok := c.Get(ctxKeyUserID)
	if !ok {
		return 0
	}
	userID, _ := v.(int64)
	return userID
}
