package repository

import (
	"context"

	"github.com/iliyamo/carpool-reservation/internal/model"
)

// ReservationRepo provides persistence for reservations.  Rows are never
// deleted; cancelling a reservation only changes its status, which also
// clears the generated active_ride_id column backing the
// one-live-reservation-per-passenger-and-ride unique key.
type ReservationRepo struct {
	db Querier
}

// NewReservationRepo returns a new ReservationRepo bound to the given database or transaction.
func NewReservationRepo(db Querier) *ReservationRepo { return &ReservationRepo{db: db} }

const reservationColumns = `id, passenger_id, ride_id, status, created_at, updated_at`

func scanReservation(s rowScanner) (*model.Reservation, error) {
	var res model.Reservation
	var status string
	if err := s.Scan(&res.ID, &res.PassengerID, &res.RideID, &status, &res.CreatedAt, &res.UpdatedAt); err != nil {
		return nil, err
	}
	res.Status = model.ReservationStatus(status)
	return &res, nil
}

// Create inserts a reservation and populates its ID and timestamps.  A
// second live reservation for the same passenger and ride fails with
// ErrDuplicate.
func (r *ReservationRepo) Create(ctx context.Context, res *model.Reservation) error {
	const q = `INSERT INTO reservations (passenger_id, ride_id, status) VALUES (?, ?, ?)`
	result, err := r.db.ExecContext(ctx, q, res.PassengerID, res.RideID, string(res.Status))
	if err != nil {
		return classify(err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	fresh, err := r.GetByID(ctx, uint64(id))
	if err != nil {
		return err
	}
	*res = *fresh
	return nil
}

// GetByID loads a reservation without locking it.
func (r *ReservationRepo) GetByID(ctx context.Context, id uint64) (*model.Reservation, error) {
	res, err := scanReservation(r.db.QueryRowContext(ctx, `SELECT `+reservationColumns+` FROM reservations WHERE id = ?`, id))
	if err != nil {
		return nil, classify(err)
	}
	return res, nil
}

// LockByID loads a reservation with SELECT ... FOR UPDATE.
func (r *ReservationRepo) LockByID(ctx context.Context, id uint64) (*model.Reservation, error) {
	res, err := scanReservation(r.db.QueryRowContext(ctx, `SELECT `+reservationColumns+` FROM reservations WHERE id = ? FOR UPDATE`, id))
	if err != nil {
		return nil, classify(err)
	}
	return res, nil
}

// FindActive returns the live (pending or confirmed) reservation of a
// passenger on a ride, locking it.  ErrNotFound when there is none.
func (r *ReservationRepo) FindActive(ctx context.Context, passengerID, rideID uint64) (*model.Reservation, error) {
	const q = `SELECT ` + reservationColumns + ` FROM reservations
		WHERE passenger_id = ? AND ride_id = ? AND status <> 'cancelled'
		LIMIT 1 FOR UPDATE`
	res, err := scanReservation(r.db.QueryRowContext(ctx, q, passengerID, rideID))
	if err != nil {
		return nil, classify(err)
	}
	return res, nil
}

// LockActiveByRide locks and returns every live reservation on a ride.
func (r *ReservationRepo) LockActiveByRide(ctx context.Context, rideID uint64) ([]model.Reservation, error) {
	const q = `SELECT ` + reservationColumns + ` FROM reservations
		WHERE ride_id = ? AND status <> 'cancelled' ORDER BY id FOR UPDATE`
	return r.query(ctx, q, rideID)
}

// CountActiveByRide counts pending and confirmed reservations on a ride.
func (r *ReservationRepo) CountActiveByRide(ctx context.Context, rideID uint64) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM reservations WHERE ride_id = ? AND status <> 'cancelled'`, rideID).Scan(&n)
	return n, classify(err)
}

// UpdateStatus sets the status of a reservation.
func (r *ReservationRepo) UpdateStatus(ctx context.Context, id uint64, status model.ReservationStatus) error {
	_, err := r.db.ExecContext(ctx, `UPDATE reservations SET status = ? WHERE id = ?`, string(status), id)
	return classify(err)
}

// ListByPassenger returns all reservations made by a passenger, newest first.
func (r *ReservationRepo) ListByPassenger(ctx context.Context, passengerID uint64) ([]model.Reservation, error) {
	return r.query(ctx, `SELECT `+reservationColumns+` FROM reservations WHERE passenger_id = ? ORDER BY id DESC`, passengerID)
}

// ListByRide returns all reservations on a ride in booking order.
func (r *ReservationRepo) ListByRide(ctx context.Context, rideID uint64) ([]model.Reservation, error) {
	return r.query(ctx, `SELECT `+reservationColumns+` FROM reservations WHERE ride_id = ? ORDER BY id`, rideID)
}

func (r *ReservationRepo) query(ctx context.Context, q string, args ...any) ([]model.Reservation, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()
	out := []model.Reservation{}
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *res)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err)
	}
	return out, nil
}
