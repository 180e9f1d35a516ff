package service

import (
	"context"
	"testing"

	"casino/internal/model"
	"casino/internal/repository"
	"casino/pkg/rng"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
)

func TestMinesMultiplier(t *testing.T) {
	tests := []struct {
		name      string
		mineCount int
		found     int
		want      float64
	}{
		// 5 雷翻 3 格：P = (20/25)(19/24)(18/23)，1/P*0.95 = 1.92
		{"5 mines 3 found", 5, 3, 1.92},
		{"3 mines 1 found", 3, 1, 1.08},
		{"24 mines 1 found", 24, 1, 23.75},
		// 1 雷翻完 24 格，概率同样是 1/25
		{"1 mine 24 found", 1, 24, 23.75},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MinesMultiplier(tt.mineCount, tt.found, 0.05)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestMinesMultiplierIncreasesWithFound(t *testing.T) {
	prev := 0.0
	for found := 1; found <= 19; found++ {
		mult := MinesMultiplier(5, found, 0.05)
		require.Greater(t, mult, prev, "found=%d", found)
		prev = mult
	}
}

func TestMinesStartClosesPreviousSessionInSameTransaction(t *testing.T) {
	db, mock := newMockDB(t)
	cfg := walletTestConfig()
	s := &MinesService{
		db:        db,
		cfg:       cfg,
		wallet:    NewWalletService(db, cfg),
		minesRepo: repository.NewMinesRepository(db),
		rng:       rng.New(),
	}

	// 开新会话的事务顺序：先强关该用户所有未结束会话（零赔付），
	// 再扣注、落新会话 —— 任一步失败整体回滚
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE `mines_sessions` SET `cashed_out`=.+ WHERE user_id = \\? AND cashed_out = \\?").
		WithArgs(true, int64(7), false).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT .* FROM `users` .*FOR UPDATE").
		WillReturnRows(userRows(500))
	mock.ExpectExec("UPDATE `users` SET `gold`=gold - ").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO `transactions`").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO `mines_sessions`").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	sessionID, err := s.Start(context.Background(), 7, 100, 5)
	require.NoError(t, err)
	require.NotEmpty(t, sessionID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGenerateBoard(t *testing.T) {
	s := &MinesService{rng: rng.New()}

	for _, mineCount := range []int{1, 5, 24} {
		board, err := s.generateBoard(mineCount)
		require.NoError(t, err)
		require.Len(t, board, model.MinesBoardSize)

		mines := 0
		for _, cell := range board {
			switch cell {
			case minesCellMine:
				mines++
			case minesCellSafe:
			default:
				t.Fatalf("未知格子类型: %s", cell)
			}
		}
		require.Equal(t, mineCount, mines)
	}
}

func TestGenerateBoardDeterministic(t *testing.T) {
	// 每次抽下标0：取走后末位补位，雷落在 0、24、23
	s := &MinesService{rng: testRNG(0, 0, 0)}
	board, err := s.generateBoard(3)
	require.NoError(t, err)
	for i, cell := range board {
		if i == 0 || i == 23 || i == 24 {
			require.Equal(t, minesCellMine, cell, "cell=%d", i)
		} else {
			require.Equal(t, minesCellSafe, cell, "cell=%d", i)
		}
	}
}
