package rng

import (
	"crypto/rand"
	"encoding/binary"
	"errors"
	"io"
	"math"
)

// ============================================================================
// 安全随机源
// ============================================================================
//
// 【为什么必须用 crypto/rand？】
//
// 所有影响金币输赢的随机数（硬币正反、骰子点数、轮盘号码、老虎机卷轴、
// 地雷布局、crash 爆点）都直接决定资金流向。math/rand 的输出可以被预测，
// 攻击者推算出内部状态后就能稳赢 —— 这是直接的资金漏洞。
//
// 随机源通过 io.Reader 注入，生产环境固定为 crypto/rand.Reader，
// 测试里可以注入确定性字节流来验证映射逻辑。
// ============================================================================

var ErrInvalidArgument = errors.New("随机数参数不合法")

// Source 安全随机源
type Source struct {
	r io.Reader
}

// New 创建生产用随机源（crypto/rand）
func New() *Source {
	return &Source{r: rand.Reader}
}

// NewFromReader 创建指定字节流的随机源（仅测试使用）
func NewFromReader(r io.Reader) *Source {
	return &Source{r: r}
}

// Uint32 读取一个安全随机的 uint32
func (s *Source) Uint32() (uint32, error) {
	var buf [4]byte
	if _, err := io.ReadFull(s.r, buf[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(buf[:]), nil
}

// Intn 返回 [0, n) 内的均匀随机整数
//
// 【关键点】直接取模会引入偏差（modulo bias），这里用拒绝采样：
// 丢弃落在不能整除区间的draw，保证每个结果概率严格相等
func (s *Source) Intn(n int) (int, error) {
	if n <= 0 {
		return 0, ErrInvalidArgument
	}
	limit := math.MaxUint32 - math.MaxUint32%uint32(n)
	for {
		v, err := s.Uint32()
		if err != nil {
			return 0, err
		}
		if v < limit {
			return int(v % uint32(n)), nil
		}
	}
}

// Sample 从 [0, n) 中无放回地均匀抽取 k 个下标（地雷布局用）
// 每次从剩余池子里等概率取一个，保证每个格子成为地雷的概率相同
func (s *Source) Sample(n, k int) ([]int, error) {
	if k < 0 || k > n {
		return nil, ErrInvalidArgument
	}
	pool := make([]int, n)
	for i := range pool {
		pool[i] = i
	}
	result := make([]int, 0, k)
	for i := 0; i < k; i++ {
		idx, err := s.Intn(len(pool))
		if err != nil {
			return nil, err
		}
		result = append(result, pool[idx])
		pool[idx] = pool[len(pool)-1]
		pool = pool[:len(pool)-1]
	}
	return result, nil
}

// WeightedIndex 按权重选择一个下标（老虎机符号用）
// 在 [0, totalWeight) 内取均匀整数，按固定顺序的累计权重桶定位，
// 给定 draw 后映射是确定的
func (s *Source) WeightedIndex(weights []int) (int, error) {
	total := 0
	for _, w := range weights {
		if w <= 0 {
			return 0, ErrInvalidArgument
		}
		total += w
	}
	if total <= 0 {
		return 0, ErrInvalidArgument
	}
	r, err := s.Intn(total)
	if err != nil {
		return 0, err
	}
	acc := 0
	for i, w := range weights {
		acc += w
		if r < acc {
			return i, nil
		}
	}
	// total > 0 时不可达
	return len(weights) - 1, nil
}

// CrashPoint 生成一局 crash 的爆点倍率（>= 1.0）
//
// 把安全随机的 uint32 通过反比例映射转成倍率：
//   point = (2^32 / (v+1)) * (1 - houseEdge)
// 该分布下玩家期望回报率恰好等于 1 - houseEdge。
// 爆点在回合进入 crashed 阶段前绝不能被任何外部读取看到
func (s *Source) CrashPoint(houseEdge float64) (float64, error) {
	v, err := s.Uint32()
	if err != nil {
		return 0, err
	}
	point := Round2(float64(1<<32) / (float64(v) + 1) * (1 - houseEdge))
	if point < 1.0 {
		point = 1.0
	}
	return point, nil
}

// Round2 四舍五入保留两位小数
func Round2(x float64) float64 {
	return math.Round(x*100) / 100
}
