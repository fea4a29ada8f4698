// Package queue defines the notification events emitted after reservation
// and ride transitions commit, and moves them to the message broker.
package queue

import (
    "time"

    "github.com/google/uuid"
)

// EventType names a committed state transition.
type EventType string

const (
    ReservationBooked    EventType = "reservation.booked"
    ReservationConfirmed EventType = "reservation.confirmed"
    ReservationCancelled EventType = "reservation.cancelled"
    RideCancelled        EventType = "ride.cancelled"
    RideCompleted        EventType = "ride.completed"
)

// Reasons carried by reservation.cancelled.
const (
    ReasonPassenger     = "passenger"
    ReasonRideCancelled = "ride_cancelled"
)

// Event is the JSON payload published for every transition.  Fields that do
// not apply to a given type are omitted.
type Event struct {
    ID             string    `json:"id"`
    Type           EventType `json:"type"`
    RideID         uint64    `json:"ride_id"`
    DriverID       uint64    `json:"driver_id,omitempty"`
    ReservationID  uint64    `json:"reservation_id,omitempty"`
    PassengerID    uint64    `json:"passenger_id,omitempty"`
    AmountCents    uint32    `json:"amount_cents,omitempty"`
    SeatsAvailable int       `json:"seats_available"`
    Reason         string    `json:"reason,omitempty"`
    OccurredAt     time.Time `json:"occurred_at"`
}

// NewEvent stamps a fresh id and the current UTC time.
func NewEvent(t EventType) Event {
    return Event{ID: uuid.NewString(), Type: t, OccurredAt: time.Now().UTC()}
}
