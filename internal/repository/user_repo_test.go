package repository

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()

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

func TestGetOrCreateTouchesLastSeen(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewUserRepository(db)

	mock.ExpectQuery("SELECT .* FROM `users`").
		WillReturnRows(sqlmock.NewRows([]string{"id", "gold"}).AddRow(1, 5000))
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE `users` SET `last_seen`").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	user, err := repo.GetOrCreate(context.Background(), 1, "", "")
	require.NoError(t, err)
	require.Equal(t, int64(5000), user.Gold)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetOrCreateInsertsMissingUser(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewUserRepository(db)

	// 首查不存在 -> OnConflict 落新行（last_seen 随行写入）-> 回读
	mock.ExpectQuery("SELECT .* FROM `users`").
		WillReturnRows(sqlmock.NewRows([]string{"id", "gold"}))
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO `users`").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	mock.ExpectQuery("SELECT .* FROM `users`").
		WillReturnRows(sqlmock.NewRows([]string{"id", "gold"}).AddRow(1, 5000))

	user, err := repo.GetOrCreate(context.Background(), 1, "tester", "Tester")
	require.NoError(t, err)
	require.Equal(t, int64(5000), user.Gold)
	require.NoError(t, mock.ExpectationsWereMet())
}
