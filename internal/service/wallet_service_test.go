package service

import (
	"context"
	"errors"
	"testing"

	"casino/internal/config"
	"casino/internal/model"
	"casino/pkg/idgen"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	idgen.Init(1)

	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	db, err := gorm.Open(mysql.New(mysql.Config{
		Conn:                      sqlDB,
		SkipInitializeWithVersion: true,
	}), &gorm.Config{})
	require.NoError(t, err)
	return db, mock
}

func walletTestConfig() *config.Config {
	return &config.Config{
		Game: config.GameConfig{
			HouseEdge:   0.05,
			MinBet:      10,
			MaxBet:      50000,
			WithdrawMin: 200,
			WithdrawFee: 0.05,
		},
		Kafka: config.KafkaConfig{
			Topic: config.KafkaTopicConfig{
				GameSettled:     "casino.game.settled",
				WithdrawCreated: "casino.withdraw.created",
			},
		},
	}
}

func userRows(gold int64) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "gold"}).AddRow(1, gold)
}

func TestWalletDebitInsufficientFunds(t *testing.T) {
	db, mock := newMockDB(t)
	wallet := NewWalletService(db, walletTestConfig())

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT .* FROM `users` .*FOR UPDATE").
		WillReturnRows(userRows(50))
	mock.ExpectRollback()

	err := wallet.Debit(context.Background(), nil, 1, 100, model.GameCoin)
	require.ErrorIs(t, err, ErrInsufficientFunds)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWalletDebitSuccess(t *testing.T) {
	db, mock := newMockDB(t)
	wallet := NewWalletService(db, walletTestConfig())

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT .* FROM `users` .*FOR UPDATE").
		WillReturnRows(userRows(500))
	// 条件更新：gold >= 注额才生效
	mock.ExpectExec("UPDATE `users` SET `gold`=gold - ").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO `transactions`").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	err := wallet.Debit(context.Background(), nil, 1, 100, model.GameCoin)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWalletDebitRaceLosesOnConditionalUpdate(t *testing.T) {
	db, mock := newMockDB(t)
	wallet := NewWalletService(db, walletTestConfig())

	// 读到的余额够，但条件更新零行生效（并发扣款抢先），同样按余额不足回滚
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT .* FROM `users` .*FOR UPDATE").
		WillReturnRows(userRows(500))
	mock.ExpectExec("UPDATE `users` SET `gold`=gold - ").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := wallet.Debit(context.Background(), nil, 1, 100, model.GameCoin)
	require.ErrorIs(t, err, ErrInsufficientFunds)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWalletSettleWritesOutboxInSameTransaction(t *testing.T) {
	db, mock := newMockDB(t)
	wallet := NewWalletService(db, walletTestConfig())

	mock.ExpectBegin()
	// Debit
	mock.ExpectQuery("SELECT .* FROM `users` .*FOR UPDATE").
		WillReturnRows(userRows(500))
	mock.ExpectExec("UPDATE `users` SET `gold`=gold - ").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO `transactions`").
		WillReturnResult(sqlmock.NewResult(1, 1))
	// Credit
	mock.ExpectQuery("SELECT .* FROM `users` .*FOR UPDATE").
		WillReturnRows(userRows(400))
	mock.ExpectExec("UPDATE `users` SET `gold`=gold \\+ ").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO `transactions`").
		WillReturnResult(sqlmock.NewResult(2, 1))
	// RecordOutcome：对局记录、聚合统计、结算事件都在提交之前
	mock.ExpectExec("INSERT INTO `bets`").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("UPDATE `users` SET .*games_played").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO `outbox_message`").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	err := wallet.Settle(context.Background(), 1, model.GameCoin, 100, 190, 2.0, map[string]interface{}{"side": "heads"})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWalletSettleRollsBackOnCreditFailure(t *testing.T) {
	db, mock := newMockDB(t)
	wallet := NewWalletService(db, walletTestConfig())

	// 扣款成功，入账失败：整个事务回滚，不允许只扣不赔
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT .* FROM `users` .*FOR UPDATE").
		WillReturnRows(userRows(500))
	mock.ExpectExec("UPDATE `users` SET `gold`=gold - ").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO `transactions`").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectQuery("SELECT .* FROM `users` .*FOR UPDATE").
		WillReturnRows(userRows(400))
	mock.ExpectExec("UPDATE `users` SET `gold`=gold \\+ ").
		WillReturnError(errors.New("connection lost"))
	mock.ExpectRollback()

	err := wallet.Settle(context.Background(), 1, model.GameCoin, 100, 190, 2.0, nil)
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWalletCreditZeroIsNoop(t *testing.T) {
	db, mock := newMockDB(t)
	wallet := NewWalletService(db, walletTestConfig())

	// 输掉的局没有 win 流水，也不开事务
	err := wallet.Credit(context.Background(), nil, 1, 0, model.GameCoin, "")
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWalletWithdrawBelowMinimum(t *testing.T) {
	db, _ := newMockDB(t)
	wallet := NewWalletService(db, walletTestConfig())

	_, err := wallet.Withdraw(context.Background(), 1, 100, "nick")
	require.ErrorIs(t, err, ErrAmountTooLow)
}

func TestWalletWithdrawSuccess(t *testing.T) {
	db, mock := newMockDB(t)
	wallet := NewWalletService(db, walletTestConfig())

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT .* FROM `users` .*FOR UPDATE").
		WillReturnRows(userRows(1000))
	mock.ExpectExec("UPDATE `users` SET `gold`=gold - ").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO `withdrawals`").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO `transactions`").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO `outbox_message`").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	w, err := wallet.Withdraw(context.Background(), 1, 1000, "nick")
	require.NoError(t, err)
	// 手续费 5%：fee=50，净到账 950
	require.Equal(t, int64(50), w.Fee)
	require.Equal(t, int64(950), w.NetAmount)
	require.Equal(t, model.WithdrawalStatusPending, w.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}
