package model

import "time"

// ReservationStatus is the state of a passenger's claim on a seat.
// cancelled is terminal.
type ReservationStatus string

const (
    ReservationPending   ReservationStatus = "pending"
    ReservationConfirmed ReservationStatus = "confirmed"
    ReservationCancelled ReservationStatus = "cancelled"
)

// Reservation records a passenger's claim on exactly one seat of a ride.
// Reservations are never deleted; only their status changes.
//
// Fields:
//  ID          – primary key identifier.
//  PassengerID – user who booked the seat.
//  RideID      – ride being booked.
//  Status      – pending, confirmed or cancelled.
//  CreatedAt   – creation timestamp.
//  UpdatedAt   – last status change.
type Reservation struct {
    ID          uint64            `json:"id"`           // reservations.id
    PassengerID uint64            `json:"passenger_id"` // reservations.passenger_id
    RideID      uint64            `json:"ride_id"`      // reservations.ride_id
    Status      ReservationStatus `json:"status"`       // reservations.status
    CreatedAt   time.Time         `json:"created_at"`   // reservations.created_at
    UpdatedAt   time.Time         `json:"updated_at"`   // reservations.updated_at
}

// HoldsSeat reports whether the reservation currently consumes a seat.
func (r *Reservation) HoldsSeat() bool { return r.Status != ReservationCancelled }
