// Package service holds the reservation and ride lifecycle engine.  Every
// mutating operation runs as one unit of work against repository.Store and
// reports failures as *Error values with a stable Kind and Code.
package service

import (
    "context"
    "errors"
    "fmt"

    "github.com/iliyamo/carpool-reservation/internal/repository"
)

// Kind groups errors by how a caller should react to them.
type Kind int

const (
    KindInternal Kind = iota
    KindValidation
    KindAuthorization
    KindNotFound
    KindConflict
    KindTransientStore
)

func (k Kind) String() string {
    switch k {
    case KindValidation:
        return "validation"
    case KindAuthorization:
        return "authorization"
    case KindNotFound:
        return "not_found"
    case KindConflict:
        return "conflict"
    case KindTransientStore:
        return "transient_store"
    }
    return "internal"
}

// Error is a classified failure of a core operation.  Two Errors match under
// errors.Is when their codes are equal.
type Error struct {
    Kind    Kind
    Code    string
    Message string
    Err     error
}

func (e *Error) Error() string {
    if e.Err != nil {
        return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
    }
    return e.Code + ": " + e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
    t, ok := target.(*Error)
    return ok && t.Code == e.Code
}

func newErr(kind Kind, code, msg string) *Error {
    return &Error{Kind: kind, Code: code, Message: msg}
}

var (
    ErrRideNotActive             = newErr(KindConflict, "ride_not_active", "ride is not active")
    ErrNoSeatsAvailable          = newErr(KindConflict, "no_seats_available", "no seats available on this ride")
    ErrCapacityExceeded          = newErr(KindConflict, "capacity_exceeded", "ride already has all seats available")
    ErrRideUnavailable           = newErr(KindConflict, "ride_unavailable", "ride is not open for booking")
    ErrAlreadyBooked             = newErr(KindConflict, "already_booked", "passenger already holds a reservation on this ride")
    ErrInvalidTransition         = newErr(KindConflict, "invalid_transition", "transition not allowed from current status")
    ErrAlreadyCancelled          = newErr(KindConflict, "already_cancelled", "reservation is already cancelled")
    ErrRideAlreadyCancelled      = newErr(KindConflict, "ride_already_cancelled", "ride is already cancelled")
    ErrCapacityBelowReservations = newErr(KindConflict, "capacity_below_reservations", "capacity is lower than the seats already reserved")
    ErrRideNotCompleted          = newErr(KindConflict, "ride_not_completed", "ratings open once the ride is completed")
    ErrAlreadyRated              = newErr(KindConflict, "already_rated", "this user was already rated for this ride")
    ErrNotAPassenger             = newErr(KindAuthorization, "not_a_passenger", "only passengers can book seats")
    ErrNotADriver                = newErr(KindAuthorization, "not_a_driver", "only drivers can do this")
    ErrUnauthorized              = newErr(KindAuthorization, "unauthorized", "not allowed to act on this resource")
    ErrNotFound                  = newErr(KindNotFound, "not_found", "resource not found")
)

// Validation reports malformed input.
func Validation(msg string) *Error {
    return newErr(KindValidation, "invalid_input", msg)
}

func notFound(what string) *Error {
    return newErr(KindNotFound, "not_found", what+" not found")
}

// KindOf returns the Kind of err, or KindInternal when err is not an *Error.
func KindOf(err error) Kind {
    var e *Error
    if errors.As(err, &e) {
        return e.Kind
    }
    return KindInternal
}

// storeError maps repository failures that escaped an operation onto the
// service taxonomy.  Already classified errors pass through.
func storeError(err error) error {
    var e *Error
    switch {
    case err == nil:
        return nil
    case errors.As(err, &e):
        return err
    case errors.Is(err, repository.ErrTransient),
        errors.Is(err, context.DeadlineExceeded):
        return &Error{Kind: KindTransientStore, Code: "store_busy", Message: "store is busy, retry the request", Err: err}
    case errors.Is(err, repository.ErrNotFound):
        return &Error{Kind: KindNotFound, Code: "not_found", Message: "resource not found", Err: err}
    }
    return err
}
