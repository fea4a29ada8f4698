package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/iliyamo/carpool-reservation/internal/model"
)

// Querier is the subset of *sql.DB and *sql.Tx used by the repositories, so
// the same repository code runs inside and outside a transaction.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// RideRepository persists rides.  LockByID and the seat mutations are only
// meaningful inside a Tx.
type RideRepository interface {
	Create(ctx context.Context, r *model.Ride) error
	GetByID(ctx context.Context, id uint64) (*model.Ride, error)
	LockByID(ctx context.Context, id uint64) (*model.Ride, error)
	DecrementSeat(ctx context.Context, id uint64) (bool, error)
	IncrementSeat(ctx context.Context, id uint64) (bool, error)
	Resize(ctx context.Context, id uint64, capacity, seatsAvailable int) error
	UpdateDetails(ctx context.Context, r *model.Ride) error
	UpdateStatus(ctx context.Context, id uint64, status model.RideStatus) error
	Search(ctx context.Context, q RideSearchQuery) ([]model.Ride, int64, error)
	ListByDriver(ctx context.Context, driverID uint64) ([]model.Ride, error)
	ListDepartedActive(ctx context.Context, before time.Time, limit int) ([]uint64, error)
}

// ReservationRepository persists reservations.
type ReservationRepository interface {
	Create(ctx context.Context, r *model.Reservation) error
	GetByID(ctx context.Context, id uint64) (*model.Reservation, error)
	LockByID(ctx context.Context, id uint64) (*model.Reservation, error)
	FindActive(ctx context.Context, passengerID, rideID uint64) (*model.Reservation, error)
	LockActiveByRide(ctx context.Context, rideID uint64) ([]model.Reservation, error)
	CountActiveByRide(ctx context.Context, rideID uint64) (int, error)
	UpdateStatus(ctx context.Context, id uint64, status model.ReservationStatus) error
	ListByPassenger(ctx context.Context, passengerID uint64) ([]model.Reservation, error)
	ListByRide(ctx context.Context, rideID uint64) ([]model.Reservation, error)
}

// PaymentRepository persists the payment ledger.
type PaymentRepository interface {
	Create(ctx context.Context, p *model.Payment) error
	GetByReservation(ctx context.Context, reservationID uint64) (*model.Payment, error)
}

// RatingRepository persists ratings and the per-user running mean.
type RatingRepository interface {
	Create(ctx context.Context, r *model.Rating) error
	AddToUser(ctx context.Context, userID uint64, score int) error
	GetUserRating(ctx context.Context, userID uint64) (model.UserRating, error)
}

// Tx is an explicit unit of work.  Every repository it hands out runs on
// the same database transaction; nothing is visible to other requests
// until Commit.
type Tx interface {
	Rides() RideRepository
	Reservations() ReservationRepository
	Payments() PaymentRepository
	Ratings() RatingRepository
	Commit() error
	Rollback() error
}

// Store opens units of work and exposes non-transactional readers.
type Store interface {
	Begin(ctx context.Context) (Tx, error)
	Rides() RideRepository
	Reservations() ReservationRepository
	Payments() PaymentRepository
	Ratings() RatingRepository
}

// SQLStore is the MySQL-backed Store.
type SQLStore struct {
	db           *sql.DB
	rides        *RideRepo
	reservations *ReservationRepo
	payments     *PaymentRepo
	ratings      *RatingRepo
}

// NewSQLStore binds a Store to the given database handle.
func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{
		db:           db,
		rides:        NewRideRepo(db),
		reservations: NewReservationRepo(db),
		payments:     NewPaymentRepo(db),
		ratings:      NewRatingRepo(db),
	}
}

func (s *SQLStore) Rides() RideRepository               { return s.rides }
func (s *SQLStore) Reservations() ReservationRepository { return s.reservations }
func (s *SQLStore) Payments() PaymentRepository         { return s.payments }
func (s *SQLStore) Ratings() RatingRepository           { return s.ratings }

// Begin starts a transaction.  Isolation is READ COMMITTED (set on the
// session by database.Open); correctness comes from row locks and
// conditional updates, not from the isolation level.
func (s *SQLStore) Begin(ctx context.Context) (Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, classify(err)
	}
	return &sqlTx{
		tx:           tx,
		rides:        NewRideRepo(tx),
		reservations: NewReservationRepo(tx),
		payments:     NewPaymentRepo(tx),
		ratings:      NewRatingRepo(tx),
	}, nil
}

type sqlTx struct {
	tx           *sql.Tx
	rides        *RideRepo
	reservations *ReservationRepo
	payments     *PaymentRepo
	ratings      *RatingRepo
}

func (t *sqlTx) Rides() RideRepository               { return t.rides }
func (t *sqlTx) Reservations() ReservationRepository { return t.reservations }
func (t *sqlTx) Payments() PaymentRepository         { return t.payments }
func (t *sqlTx) Ratings() RatingRepository           { return t.ratings }
func (t *sqlTx) Commit() error                       { return classify(t.tx.Commit()) }
func (t *sqlTx) Rollback() error                     { return t.tx.Rollback() }
