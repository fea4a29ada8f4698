package service

import (
    "context"
    "log"

    "github.com/iliyamo/carpool-reservation/internal/model"
    "github.com/iliyamo/carpool-reservation/internal/repository"
)

// SeatGuard is the only code that changes rides.seats_available.  Callers
// pass the ride as loaded under its row lock; the guard keeps that copy in
// step with the row it updates.  Each mutation is also a conditional update
// in SQL, so a missing lock can not push the counter out of [0, capacity].
type SeatGuard struct{}

// Reserve takes one seat from an active ride.
func (SeatGuard) Reserve(ctx context.Context, tx repository.Tx, ride *model.Ride) error {
    if !ride.IsActive() {
        return ErrRideNotActive
    }
    if ride.SeatsAvailable < 1 {
        return ErrNoSeatsAvailable
    }
    ok, err := tx.Rides().DecrementSeat(ctx, ride.ID)
    if err != nil {
        return err
    }
    if !ok {
        return ErrNoSeatsAvailable
    }
    ride.SeatsAvailable--
    return nil
}

// Release gives one seat back.  It fails rather than exceed capacity, which
// is what a duplicate release would do.
func (SeatGuard) Release(ctx context.Context, tx repository.Tx, ride *model.Ride) error {
    if ride.SeatsAvailable >= ride.Capacity {
        return ErrCapacityExceeded
    }
    ok, err := tx.Rides().IncrementSeat(ctx, ride.ID)
    if err != nil {
        return err
    }
    if !ok {
        return ErrCapacityExceeded
    }
    ride.SeatsAvailable++
    return nil
}

// Resize changes the capacity of a ride while keeping every seat held by a
// pending or confirmed reservation.
func (SeatGuard) Resize(ctx context.Context, tx repository.Tx, ride *model.Ride, capacity int) error {
    held, err := tx.Reservations().CountActiveByRide(ctx, ride.ID)
    if err != nil {
        return err
    }
    if held != ride.Outstanding() {
        log.Printf("seats: ride %d counter says %d held, reservations say %d; resetting from reservations",
            ride.ID, ride.Outstanding(), held)
    }
    if capacity < held {
        return ErrCapacityBelowReservations
    }
    if err := tx.Rides().Resize(ctx, ride.ID, capacity, capacity-held); err != nil {
        return err
    }
    ride.Capacity = capacity
    ride.SeatsAvailable = capacity - held
    return nil
}
