package rng_test

import (
	"bytes"
	"encoding/binary"
	"math"
	"testing"

	"casino/pkg/rng"

	"github.com/stretchr/testify/require"
)

// feed 构造一个按序吐出给定 uint32 的确定性随机源
func feed(values ...uint32) *rng.Source {
	buf := make([]byte, 0, len(values)*4)
	for _, v := range values {
		buf = binary.BigEndian.AppendUint32(buf, v)
	}
	return rng.NewFromReader(bytes.NewReader(buf))
}

func TestUint32(t *testing.T) {
	src := feed(0, 42, math.MaxUint32)

	for _, want := range []uint32{0, 42, math.MaxUint32} {
		got, err := src.Uint32()
		require.NoError(t, err)
		require.Equal(t, want, got)
	}

	// 字节流耗尽后必须报错，不能静默返回 0
	_, err := src.Uint32()
	require.Error(t, err)
}

func TestIntn(t *testing.T) {
	t.Run("deterministic mapping", func(t *testing.T) {
		src := feed(0, 7, 13)
		for _, want := range []int{0, 7, 3} {
			got, err := src.Intn(10)
			require.NoError(t, err)
			require.Equal(t, want, got)
		}
	})

	t.Run("rejects biased draws", func(t *testing.T) {
		// n=10 时 limit = MaxUint32 - MaxUint32%10 = 4294967290，
		// 落在 [limit, MaxUint32] 的 draw 必须被丢弃重抽
		limit := uint32(math.MaxUint32 - math.MaxUint32%10)
		src := feed(limit, math.MaxUint32, 7)
		got, err := src.Intn(10)
		require.NoError(t, err)
		require.Equal(t, 7, got)
	})

	t.Run("invalid n", func(t *testing.T) {
		src := feed(0)
		_, err := src.Intn(0)
		require.ErrorIs(t, err, rng.ErrInvalidArgument)
		_, err = src.Intn(-1)
		require.ErrorIs(t, err, rng.ErrInvalidArgument)
	})
}

func TestSample(t *testing.T) {
	t.Run("deterministic pool swap", func(t *testing.T) {
		// 每次都抽下标0：取走后末位补进来，结果是 [0,4,3,2,1]
		src := feed(0, 0, 0, 0, 0)
		got, err := src.Sample(5, 5)
		require.NoError(t, err)
		require.Equal(t, []int{0, 4, 3, 2, 1}, got)
	})

	t.Run("unique and in range", func(t *testing.T) {
		got, err := rng.New().Sample(25, 10)
		require.NoError(t, err)
		require.Len(t, got, 10)
		seen := make(map[int]bool)
		for _, v := range got {
			require.GreaterOrEqual(t, v, 0)
			require.Less(t, v, 25)
			require.False(t, seen[v], "重复下标 %d", v)
			seen[v] = true
		}
	})

	t.Run("invalid k", func(t *testing.T) {
		_, err := rng.New().Sample(5, 6)
		require.ErrorIs(t, err, rng.ErrInvalidArgument)
		_, err = rng.New().Sample(5, -1)
		require.ErrorIs(t, err, rng.ErrInvalidArgument)
	})
}

func TestWeightedIndex(t *testing.T) {
	weights := []int{2, 4, 5, 8, 8, 12, 14, 15} // 累计: 2,6,11,19,27,39,53,68

	tests := []struct {
		draw uint32
		want int
	}{
		{0, 0}, {1, 0},
		{2, 1}, {5, 1},
		{6, 2}, {10, 2},
		{11, 3},
		{19, 4},
		{27, 5},
		{39, 6},
		{53, 7}, {67, 7},
	}
	for _, tt := range tests {
		src := feed(tt.draw)
		got, err := src.WeightedIndex(weights)
		require.NoError(t, err)
		require.Equal(t, tt.want, got, "draw=%d", tt.draw)
	}

	_, err := feed(0).WeightedIndex([]int{1, 0, 2})
	require.ErrorIs(t, err, rng.ErrInvalidArgument)
}

func TestCrashPoint(t *testing.T) {
	// v = 2^31-1 时 2^32/(v+1) = 2，抽水后 1.9
	got, err := feed(1<<31 - 1).CrashPoint(0.05)
	require.NoError(t, err)
	require.Equal(t, 1.9, got)

	// 最大 draw 映射出的倍率低于 1.0，必须钳制到 1.0（立即爆炸）
	got, err = feed(math.MaxUint32).CrashPoint(0.05)
	require.NoError(t, err)
	require.Equal(t, 1.0, got)

	// 最小 draw 给出天文数字倍率，但仍然 >= 1
	got, err = feed(0).CrashPoint(0.05)
	require.NoError(t, err)
	require.GreaterOrEqual(t, got, 1.0)
}

func TestRound2(t *testing.T) {
	require.Equal(t, 1.92, rng.Round2(1.916666))
	require.Equal(t, 2.0, rng.Round2(1.996))
	require.Equal(t, 0.95, rng.Round2(0.95))
}
