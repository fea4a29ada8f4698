package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/carpool-reservation/internal/model"
)

var reservationCols = []string{"id", "passenger_id", "ride_id", "status", "created_at", "updated_at"}

func TestReservationCreateDuplicateLiveRow(t *testing.T) {
	db, mock := newMock(t)
	repo := NewReservationRepo(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO reservations")).
		WithArgs(uint64(5), uint64(9), "pending").
		WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry for key 'uq_reservations_active'"})

	err := repo.Create(context.Background(), &model.Reservation{PassengerID: 5, RideID: 9, Status: model.ReservationPending})
	assert.ErrorIs(t, err, ErrDuplicate)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReservationCreateReloadsRow(t *testing.T) {
	db, mock := newMock(t)
	repo := NewReservationRepo(db)
	now := time.Now().UTC().Truncate(time.Second)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO reservations")).
		WithArgs(uint64(5), uint64(9), "pending").
		WillReturnResult(sqlmock.NewResult(42, 1))
	mock.ExpectQuery(regexp.QuoteMeta("FROM reservations WHERE id = ?")).
		WithArgs(uint64(42)).
		WillReturnRows(sqlmock.NewRows(reservationCols).AddRow(42, 5, 9, "pending", now, now))

	res := &model.Reservation{PassengerID: 5, RideID: 9, Status: model.ReservationPending}
	require.NoError(t, repo.Create(context.Background(), res))
	assert.Equal(t, uint64(42), res.ID)
	assert.Equal(t, now, res.CreatedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLockActiveByRideSkipsCancelled(t *testing.T) {
	db, mock := newMock(t)
	repo := NewReservationRepo(db)
	now := time.Now().UTC()

	mock.ExpectQuery(regexp.QuoteMeta("WHERE ride_id = ? AND status <> 'cancelled' ORDER BY id FOR UPDATE")).
		WithArgs(uint64(9)).
		WillReturnRows(sqlmock.NewRows(reservationCols).
			AddRow(1, 5, 9, "pending", now, now).
			AddRow(2, 6, 9, "confirmed", now, now))

	list, err := repo.LockActiveByRide(context.Background(), 9)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, model.ReservationConfirmed, list[1].Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStoreTxSharesTransaction(t *testing.T) {
	db, mock := newMock(t)
	store := NewSQLStore(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE reservations SET status = ? WHERE id = ?")).
		WithArgs("cancelled", uint64(3)).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE rides SET seats_available = seats_available + 1")).
		WithArgs(uint64(9)).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	ctx := context.Background()
	tx, err := store.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.Reservations().UpdateStatus(ctx, 3, model.ReservationCancelled))
	ok, err := tx.Rides().IncrementSeat(ctx, 9)
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, tx.Commit())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentCreateSecondPaymentIsDuplicate(t *testing.T) {
	db, mock := newMock(t)
	repo := NewPaymentRepo(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO payments")).
		WithArgs(uint64(3), uint32(1500), model.PaymentCompleted, "ref").
		WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry for key 'uq_payments_reservation'"})

	err := repo.Create(context.Background(), &model.Payment{ReservationID: 3, AmountCents: 1500, Status: model.PaymentCompleted, Reference: "ref"})
	assert.ErrorIs(t, err, ErrDuplicate)
	require.NoError(t, mock.ExpectationsWereMet())
}
