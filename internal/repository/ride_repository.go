package repository

import (
	"context"
	"strings"
	"time"

	"github.com/iliyamo/carpool-reservation/internal/model"
)

// RideRepo encapsulates database operations for rides.  The seat counter is
// only ever changed through DecrementSeat, IncrementSeat and Resize, which
// are conditional updates guarded by the table's CHECK constraint.
type RideRepo struct {
	db Querier
}

// NewRideRepo constructs a RideRepo on a *sql.DB or *sql.Tx.
func NewRideRepo(db Querier) *RideRepo { return &RideRepo{db: db} }

const rideColumns = `id, driver_id, origin, destination, departure_time, capacity,
	seats_available, price_per_seat_cents, status, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRide(s rowScanner) (*model.Ride, error) {
	var r model.Ride
	var status string
	if err := s.Scan(
		&r.ID, &r.DriverID, &r.Origin, &r.Destination, &r.DepartureTime, &r.Capacity,
		&r.SeatsAvailable, &r.PricePerSeatCents, &status, &r.CreatedAt, &r.UpdatedAt,
	); err != nil {
		return nil, err
	}
	r.Status = model.RideStatus(status)
	return &r, nil
}

// Create inserts a new ride and reloads it so defaults and timestamps are
// populated on r.
func (r *RideRepo) Create(ctx context.Context, ride *model.Ride) error {
	const q = `INSERT INTO rides (driver_id, origin, destination, departure_time, capacity,
		seats_available, price_per_seat_cents, status) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	res, err := r.db.ExecContext(ctx, q,
		ride.DriverID, ride.Origin, ride.Destination, ride.DepartureTime.UTC(), ride.Capacity,
		ride.SeatsAvailable, ride.PricePerSeatCents, string(ride.Status))
	if err != nil {
		return classify(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	fresh, err := r.GetByID(ctx, uint64(id))
	if err != nil {
		return err
	}
	*ride = *fresh
	return nil
}

// GetByID loads a ride without locking it.
func (r *RideRepo) GetByID(ctx context.Context, id uint64) (*model.Ride, error) {
	ride, err := scanRide(r.db.QueryRowContext(ctx, `SELECT `+rideColumns+` FROM rides WHERE id = ?`, id))
	if err != nil {
		return nil, classify(err)
	}
	return ride, nil
}

// LockByID loads a ride with SELECT ... FOR UPDATE.  The row stays locked
// until the surrounding transaction ends.
func (r *RideRepo) LockByID(ctx context.Context, id uint64) (*model.Ride, error) {
	ride, err := scanRide(r.db.QueryRowContext(ctx, `SELECT `+rideColumns+` FROM rides WHERE id = ? FOR UPDATE`, id))
	if err != nil {
		return nil, classify(err)
	}
	return ride, nil
}

// DecrementSeat takes one seat if the ride is active and has one left.  It
// reports false when the condition did not hold.
func (r *RideRepo) DecrementSeat(ctx context.Context, id uint64) (bool, error) {
	const q = `UPDATE rides SET seats_available = seats_available - 1
		WHERE id = ? AND status = 'active' AND seats_available > 0`
	return r.execAffected(ctx, q, id)
}

// IncrementSeat gives one seat back unless the ride is already at capacity.
func (r *RideRepo) IncrementSeat(ctx context.Context, id uint64) (bool, error) {
	const q = `UPDATE rides SET seats_available = seats_available + 1
		WHERE id = ? AND seats_available < capacity`
	return r.execAffected(ctx, q, id)
}

// Resize sets capacity and seats_available together.
func (r *RideRepo) Resize(ctx context.Context, id uint64, capacity, seatsAvailable int) error {
	const q = `UPDATE rides SET capacity = ?, seats_available = ? WHERE id = ?`
	_, err := r.db.ExecContext(ctx, q, capacity, seatsAvailable, id)
	return classify(err)
}

// UpdateDetails writes the descriptive fields of a ride.  Seat counters and
// status are not touched.
func (r *RideRepo) UpdateDetails(ctx context.Context, ride *model.Ride) error {
	const q = `UPDATE rides SET origin = ?, destination = ?, departure_time = ?, price_per_seat_cents = ?
		WHERE id = ?`
	_, err := r.db.ExecContext(ctx, q, ride.Origin, ride.Destination, ride.DepartureTime.UTC(), ride.PricePerSeatCents, ride.ID)
	return classify(err)
}

// UpdateStatus sets the ride status.
func (r *RideRepo) UpdateStatus(ctx context.Context, id uint64, status model.RideStatus) error {
	_, err := r.db.ExecContext(ctx, `UPDATE rides SET status = ? WHERE id = ?`, string(status), id)
	return classify(err)
}

func (r *RideRepo) execAffected(ctx context.Context, q string, args ...any) (bool, error) {
	res, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return false, classify(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// RideSearchQuery defines filters & pagination for searching active rides.
// Date, when set, matches departures on the same UTC calendar day.
type RideSearchQuery struct {
	Origin      string
	Destination string
	Date        *time.Time
	Page        int
	PageSize    int
}

// Search returns one page of active rides matching q and the total number
// of matches.  Origin and destination are case-insensitive substrings.
func (r *RideRepo) Search(ctx context.Context, q RideSearchQuery) ([]model.Ride, int64, error) {
	where := []string{"status = 'active'"}
	args := []any{}

	if q.Origin != "" {
		where = append(where, "LOWER(origin) LIKE ?")
		args = append(args, likePattern(q.Origin))
	}
	if q.Destination != "" {
		where = append(where, "LOWER(destination) LIKE ?")
		args = append(args, likePattern(q.Destination))
	}
	if q.Date != nil {
		day := time.Date(q.Date.Year(), q.Date.Month(), q.Date.Day(), 0, 0, 0, 0, time.UTC)
		where = append(where, "departure_time >= ? AND departure_time < ?")
		args = append(args, day, day.AddDate(0, 0, 1))
	}
	cond := strings.Join(where, " AND ")

	var total int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM rides WHERE `+cond, args...).Scan(&total); err != nil {
		return nil, 0, classify(err)
	}

	page, size := q.Page, q.PageSize
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = 20
	}
	dataSQL := `SELECT ` + rideColumns + ` FROM rides WHERE ` + cond + `
		ORDER BY departure_time ASC, id ASC
		LIMIT ? OFFSET ?`
	argsData := append(append([]any{}, args...), size, (page-1)*size)

	out, err := r.queryRides(ctx, dataSQL, argsData...)
	if err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// ListByDriver returns every ride proposed by the driver, newest departure first.
func (r *RideRepo) ListByDriver(ctx context.Context, driverID uint64) ([]model.Ride, error) {
	return r.queryRides(ctx, `SELECT `+rideColumns+` FROM rides WHERE driver_id = ? ORDER BY departure_time DESC, id DESC`, driverID)
}

// ListDepartedActive returns ids of active rides whose departure is before
// the given instant.
func (r *RideRepo) ListDepartedActive(ctx context.Context, before time.Time, limit int) ([]uint64, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id FROM rides WHERE status = 'active' AND departure_time < ? ORDER BY departure_time ASC LIMIT ?`,
		before.UTC(), limit)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()
	var ids []uint64
	for rows.Next() {
		var id uint64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *RideRepo) queryRides(ctx context.Context, q string, args ...any) ([]model.Ride, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()
	out := []model.Ride{}
	for rows.Next() {
		ride, err := scanRide(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *ride)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err)
	}
	return out, nil
}

// likePattern lower-cases s, escapes LIKE wildcards and wraps it in %...%.
func likePattern(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
	return "%" + s + "%"
}
