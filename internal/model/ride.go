package model

import "time"

// RideStatus is the lifecycle state of a ride.
type RideStatus string

const (
    RideActive    RideStatus = "active"
    RideCancelled RideStatus = "cancelled"
    RideCompleted RideStatus = "completed"
)

// Ride is a driver's offered trip with a finite number of seats.
//
// Fields:
//  ID                – primary key identifier.
//  DriverID          – user who proposed the ride.
//  Origin            – free text departure place.
//  Destination       – free text arrival place.
//  DepartureTime     – scheduled departure (UTC).
//  Capacity          – number of seats offered when the ride was proposed
//                      (or last resized by the driver).
//  SeatsAvailable    – seats not held by a pending or confirmed
//                      reservation; always 0 <= SeatsAvailable <= Capacity.
//  PricePerSeatCents – price charged per seat at confirmation time.
//  Status            – active, cancelled or completed.
//  CreatedAt         – creation timestamp.
//  UpdatedAt         – last update timestamp.
type Ride struct {
    ID                uint64     `json:"id"`                   // rides.id
    DriverID          uint64     `json:"driver_id"`            // rides.driver_id
    Origin            string     `json:"origin"`               // rides.origin
    Destination       string     `json:"destination"`          // rides.destination
    DepartureTime     time.Time  `json:"departure_time"`       // rides.departure_time
    Capacity          int        `json:"capacity"`             // rides.capacity
    SeatsAvailable    int        `json:"seats_available"`      // rides.seats_available
    PricePerSeatCents uint32     `json:"price_per_seat_cents"` // rides.price_per_seat_cents
    Status            RideStatus `json:"status"`               // rides.status
    CreatedAt         time.Time  `json:"created_at"`           // rides.created_at
    UpdatedAt         time.Time  `json:"updated_at"`           // rides.updated_at
}

// Outstanding returns the number of seats currently held by pending or
// confirmed reservations.
func (r *Ride) Outstanding() int { return r.Capacity - r.SeatsAvailable }

// IsActive reports whether the ride still accepts bookings.
func (r *Ride) IsActive() bool { return r.Status == RideActive }
