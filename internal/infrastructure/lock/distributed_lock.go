package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// ============================================================================
// 分布式锁实现
// ============================================================================
//
// 【为什么需要分布式锁？】
//
// 场景：同一用户同时发起一笔即时游戏下注和一笔提现（多实例部署时
// 两个请求可能落在不同进程上）
//
// 如果没有分布式锁：
//   实例1: 查询余额=100 -> 下注扣100 -> 余额=0   OK
//   实例2: 查询余额=100 -> 提现扣100 -> 余额=-100 超扣了！
//
// 加了分布式锁（配合数据库行锁作双保险）：
//   实例1: 获取锁 -> 扣款 -> 释放锁
//   实例2: 等锁 -> 获取锁 -> 余额不足，拒绝
//
// 【Redis 分布式锁原理】
//
// 加锁：SET key value NX EX timeout
//   - NX: 只有 key 不存在时才设置（保证互斥）
//   - EX: 设置过期时间（防止死锁）
//   - value: 锁持有者标识（释放时验证，防止误删别人的锁）
//
// 释放锁：使用 Lua 脚本保证"检查+删除"的原子性
//
// ============================================================================

var (
	ErrLockFailed = errors.New("获取分布式锁失败")
)

// DistributedLock 分布式锁
type DistributedLock struct {
	client     *redis.Client
	key        string        // 锁的 key
	value      string        // 锁的 value（用于验证锁的持有者）
	expiration time.Duration // 锁的过期时间
}

// NewDistributedLock 创建分布式锁
func NewDistributedLock(client *redis.Client, key, value string, expiration time.Duration) *DistributedLock {
	return &DistributedLock{
		client:     client,
		key:        key,
		value:      value,
		expiration: expiration,
	}
}

// TryLock 尝试获取锁（非阻塞）
func (l *DistributedLock) TryLock(ctx context.Context) (bool, error) {
	success, err := l.client.SetNX(ctx, l.key, l.value, l.expiration).Result()
	if err != nil {
		return false, err
	}
	return success, nil
}

// Lock 阻塞式获取锁（带重试，次数用尽即失败，不会无限等待）
func (l *DistributedLock) Lock(ctx context.Context, retryInterval time.Duration, maxRetries int) error {
	for i := 0; i < maxRetries; i++ {
		success, err := l.TryLock(ctx)
		if err != nil {
			return err
		}
		if success {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retryInterval):
			// 继续重试
		}
	}
	return ErrLockFailed
}

// Unlock 释放锁
//
// 【关键点】先检查 value 是否是自己的再删除，Lua 脚本保证原子性。
// 否则 A 的锁过期后 B 拿到锁，A 的 Unlock 会误删 B 的锁
func (l *DistributedLock) Unlock(ctx context.Context) error {
	script := `
		if redis.call("GET", KEYS[1]) == ARGV[1] then
			return redis.call("DEL", KEYS[1])
		else
			return 0
		end
	`
	_, err := l.client.Eval(ctx, script, []string{l.key}, l.value).Result()
	return err
}

// ============================================================================
// 便捷函数：按用户维度的钱包锁
// ============================================================================

// NewWalletLock 创建钱包锁（按用户维度）
//
// 即时游戏结算和提现用它串行化同一用户的并发动作；不同用户互不影响。
// crash / mines 内部各自有串行化手段（命令队列 / 行锁），
// 钱包锁只负责跨游戏、跨实例的同户并发
func NewWalletLock(client *redis.Client, userID int64, token string) *DistributedLock {
	key := fmt.Sprintf("wallet:lock:user:%d", userID)
	return NewDistributedLock(client, key, token, 30*time.Second)
}
