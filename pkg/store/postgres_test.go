package store

import (
	"context"
	"testing"
	"time"

	"library_catalog/pkg/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// setupMockPostgres returns a gorm handle speaking the postgres dialect to sqlmock.
func setupMockPostgres(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		SkipDefaultTransaction: true,
		TranslateError:         true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	return db, mock
}

func TestConditionalUpdateOnPostgres(t *testing.T) {
	db, mock := setupMockPostgres(t)
	reservations := NewReservations(db)

	mock.ExpectExec(`UPDATE "reservations" SET .* WHERE reservation_uid = \$\d+ AND status = \$\d+ AND version = \$\d+`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	n, err := reservations.UpdateWhere(context.Background(), "r-1",
		map[string]interface{}{"status": models.StatusReturned, "version": 4},
		Eq("status", models.StatusBorrowed), Eq("version", 3))
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSweepStatementOnPostgres(t *testing.T) {
	db, mock := setupMockPostgres(t)
	reservations := NewReservations(db)

	mock.ExpectExec(`UPDATE "reservations" SET .* WHERE status IN \(\$\d+,\$\d+\) AND due_date < \$\d+ AND return_date IS NULL`).
		WillReturnResult(sqlmock.NewResult(0, 4))

	n, err := reservations.UpdateAll(context.Background(),
		map[string]interface{}{"status": models.StatusOverdue, "version": gorm.Expr("version + 1")},
		In("status", []models.ReservationStatus{models.StatusReserved, models.StatusBorrowed}),
		Before("due_date", time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)),
		IsNull("return_date"))
	require.NoError(t, err)
	assert.EqualValues(t, 4, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUniqueViolationOnPostgres(t *testing.T) {
	db, mock := setupMockPostgres(t)
	books := NewBooks(db)

	mock.ExpectQuery(`INSERT INTO "books"`).
		WillReturnError(&pgconn.PgError{Code: "23505", Message: "duplicate key value violates unique constraint \"idx_books_isbn\""})

	_, err := books.Insert(context.Background(), &models.Book{Title: "Dune", Author: "Frank Herbert", ISBN: "9780441172719", Quantity: 1})
	assert.ErrorIs(t, err, ErrDuplicateKey)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGuardedDeleteOnPostgres(t *testing.T) {
	db, mock := setupMockPostgres(t)
	customers := NewCustomers(db)

	mock.ExpectExec(`DELETE FROM "customers" WHERE customer_uid = \$1 AND version = \$2`).
		WithArgs("c-1", 2).
		WillReturnResult(sqlmock.NewResult(0, 1))

	deleted, err := customers.Delete(context.Background(), "c-1", Eq("version", 2))
	require.NoError(t, err)
	assert.True(t, deleted)
	assert.NoError(t, mock.ExpectationsWereMet())
}
