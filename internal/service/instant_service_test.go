package service

import (
	"bytes"
	"context"
	"encoding/binary"
	"testing"

	"casino/pkg/rng"

	"github.com/stretchr/testify/require"
)

// testRNG 构造按序吐出给定 uint32 的确定性随机源
func testRNG(values ...uint32) *rng.Source {
	buf := make([]byte, 0, len(values)*4)
	for _, v := range values {
		buf = binary.BigEndian.AppendUint32(buf, v)
	}
	return rng.NewFromReader(bytes.NewReader(buf))
}

func TestResolveCoin(t *testing.T) {
	t.Run("win", func(t *testing.T) {
		// draw 0 -> heads
		outcome, err := ResolveCoin(testRNG(0), 100, "heads", 0.05)
		require.NoError(t, err)
		require.True(t, outcome.Won)
		require.Equal(t, 2.0, outcome.Multiplier)
		// floor(100 * 2 * 0.95) = 190
		require.Equal(t, int64(190), outcome.Payout)
		require.Equal(t, "heads", outcome.Detail["result"])
	})

	t.Run("lose", func(t *testing.T) {
		// draw 1 -> tails
		outcome, err := ResolveCoin(testRNG(1), 100, "heads", 0.05)
		require.NoError(t, err)
		require.False(t, outcome.Won)
		require.Equal(t, int64(0), outcome.Payout)
		require.Equal(t, "tails", outcome.Detail["result"])
	})
}

func TestResolveDice(t *testing.T) {
	t.Run("hit", func(t *testing.T) {
		// draws 2,4 -> 骰子 3 和 5，点数和 8，赔率 7.2
		outcome, err := ResolveDice(testRNG(2, 4), 100, 8, 0.05)
		require.NoError(t, err)
		require.True(t, outcome.Won)
		require.Equal(t, 7.2, outcome.Multiplier)
		// floor(100 * 7.2 * 0.95) = 684
		require.Equal(t, int64(684), outcome.Payout)
		require.Equal(t, 8, outcome.Detail["sum"])
	})

	t.Run("miss", func(t *testing.T) {
		outcome, err := ResolveDice(testRNG(2, 4), 100, 7, 0.05)
		require.NoError(t, err)
		require.False(t, outcome.Won)
		require.Equal(t, int64(0), outcome.Payout)
	})
}

func TestResolveRoulette(t *testing.T) {
	t.Run("number hits multiple positions", func(t *testing.T) {
		// draw 7 -> 红色、奇数。直押命中赔 35，红色赔 2，黑色落空
		bets := map[string]int64{"num_7": 100, "cat_red": 100, "cat_black": 100}
		outcome, err := ResolveRoulette(testRNG(7), bets, 300, 0.05)
		require.NoError(t, err)
		require.True(t, outcome.Won)
		// floor(100*35*0.95) + floor(100*2*0.95) = 3325 + 190
		require.Equal(t, int64(3515), outcome.Payout)
		require.Equal(t, 7, outcome.Meta["number"])
		require.Equal(t, "red", outcome.Meta["color"])
		require.Equal(t, 11.72, outcome.Multiplier)
	})

	t.Run("zero is green and not even", func(t *testing.T) {
		bets := map[string]int64{"cat_green": 100, "cat_even": 100}
		outcome, err := ResolveRoulette(testRNG(0), bets, 200, 0.05)
		require.NoError(t, err)
		// 绿色赔 14：floor(100*14*0.95) = 1330；0 不算双数
		require.Equal(t, int64(1330), outcome.Payout)
		require.Equal(t, "green", outcome.Meta["color"])
	})

	t.Run("total miss", func(t *testing.T) {
		bets := map[string]int64{"num_36": 100}
		outcome, err := ResolveRoulette(testRNG(7), bets, 100, 0.05)
		require.NoError(t, err)
		require.False(t, outcome.Won)
		require.Equal(t, int64(0), outcome.Payout)
		require.Equal(t, 0.0, outcome.Multiplier)
	})
}

func TestPlayRouletteRejectsNonPositivePositions(t *testing.T) {
	s := &InstantService{cfg: walletTestConfig()}

	// 负数位置让总注过区间检查、实际只扣差额却按全额位置赔付，必须整单拒绝
	_, err := s.PlayRoulette(context.Background(), 1, map[string]int64{"num_5": 1000, "num_7": -900})
	require.ErrorIs(t, err, ErrInvalidBetAmount)

	_, err = s.PlayRoulette(context.Background(), 1, map[string]int64{"num_5": 0})
	require.ErrorIs(t, err, ErrInvalidBetAmount)
}

func TestResolveSlots(t *testing.T) {
	// 权重累计桶: 🎯2, ⭐6, 💎11, 🔫19, 💣27, 🪙39, 🔪53, 💀68
	t.Run("five of a kind", func(t *testing.T) {
		outcome, err := ResolveSlots(testRNG(0, 0, 0, 0, 0), 100, 0.05)
		require.NoError(t, err)
		require.Equal(t, 500.0, outcome.Multiplier)
		// floor(100 * 500 * 0.95) = 47500
		require.Equal(t, int64(47500), outcome.Payout)
		require.Equal(t, "5x🎯", outcome.Meta["combo"])
	})

	t.Run("four of a kind", func(t *testing.T) {
		outcome, err := ResolveSlots(testRNG(0, 0, 0, 0, 2), 100, 0.05)
		require.NoError(t, err)
		require.Equal(t, 15.0, outcome.Multiplier)
		require.Equal(t, int64(1425), outcome.Payout)
	})

	t.Run("three of a kind", func(t *testing.T) {
		outcome, err := ResolveSlots(testRNG(0, 0, 0, 2, 6), 100, 0.05)
		require.NoError(t, err)
		require.Equal(t, 5.0, outcome.Multiplier)
		require.Equal(t, int64(475), outcome.Payout)
	})

	t.Run("no combo", func(t *testing.T) {
		// 五个卷轴全不同
		outcome, err := ResolveSlots(testRNG(0, 2, 6, 11, 19), 100, 0.05)
		require.NoError(t, err)
		require.False(t, outcome.Won)
		require.Equal(t, int64(0), outcome.Payout)
	})

	t.Run("five skulls pay nothing", func(t *testing.T) {
		// 💀 不在 5 连赔率表里
		outcome, err := ResolveSlots(testRNG(53, 53, 53, 53, 53), 100, 0.05)
		require.NoError(t, err)
		require.False(t, outcome.Won)
		require.Equal(t, int64(0), outcome.Payout)
	})
}
