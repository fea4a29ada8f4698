package service

import (
    "context"
    "errors"
    "log"

    "github.com/google/uuid"

    "github.com/iliyamo/carpool-reservation/internal/model"
    "github.com/iliyamo/carpool-reservation/internal/queue"
    "github.com/iliyamo/carpool-reservation/internal/repository"
)

// Reservations is the reservation state machine:
//
//    pending   -> confirmed  (payment recorded, no seat change)
//    pending   -> cancelled  (one seat released)
//    confirmed -> cancelled  (one seat released)
//
// cancelled is terminal.  Every transition locks the ride row before the
// reservation row.
type Reservations struct {
    store  repository.Store
    guard  SeatGuard
    notify Notifier
    policy TxPolicy
    newRef func() string
}

// NewReservations wires the state machine.  notifier may be nil.
func NewReservations(store repository.Store, notifier Notifier, policy TxPolicy) *Reservations {
    if notifier == nil {
        notifier = nopNotifier{}
    }
    if policy == (TxPolicy{}) {
        policy = DefaultTxPolicy
    }
    return &Reservations{store: store, notify: notifier, policy: policy, newRef: uuid.NewString}
}

// Book creates a pending reservation for the actor and takes one seat.  The
// seat and the row are committed together or not at all.
func (s *Reservations) Book(ctx context.Context, actor model.Actor, rideID uint64) (*model.Reservation, error) {
    if !actor.IsPassenger() {
        return nil, ErrNotAPassenger
    }
    var (
        res  *model.Reservation
        ride *model.Ride
    )
    err := inTx(ctx, s.store, s.policy, "reservations", func(ctx context.Context, tx repository.Tx) error {
        var err error
        ride, err = tx.Rides().LockByID(ctx, rideID)
        if errors.Is(err, repository.ErrNotFound) {
            return notFound("ride")
        }
        if err != nil {
            return err
        }
        if !ride.IsActive() {
            return ErrRideUnavailable
        }
        if _, err := tx.Reservations().FindActive(ctx, actor.UserID, rideID); err == nil {
            return ErrAlreadyBooked
        } else if !errors.Is(err, repository.ErrNotFound) {
            return err
        }
        if err := s.guard.Reserve(ctx, tx, ride); err != nil {
            return err
        }
        res = &model.Reservation{PassengerID: actor.UserID, RideID: rideID, Status: model.ReservationPending}
        if err := tx.Reservations().Create(ctx, res); err != nil {
            if errors.Is(err, repository.ErrDuplicate) {
                return ErrAlreadyBooked
            }
            return err
        }
        return nil
    })
    if err != nil {
        return nil, err
    }
    log.Printf("reservations: booked id=%d ride=%d passenger=%d seats_available=%d",
        res.ID, ride.ID, actor.UserID, ride.SeatsAvailable)
    s.emit(queue.ReservationBooked, res, ride, 0, "")
    return res, nil
}

// Confirm moves a pending reservation to confirmed and records exactly one
// payment at the ride's price as of now.
func (s *Reservations) Confirm(ctx context.Context, actor model.Actor, id uint64) (*model.Reservation, *model.Payment, error) {
    var (
        res  *model.Reservation
        ride *model.Ride
        pay  *model.Payment
    )
    err := inTx(ctx, s.store, s.policy, "reservations", func(ctx context.Context, tx repository.Tx) error {
        var err error
        ride, res, err = s.lockOwned(ctx, tx, actor, id)
        if err != nil {
            return err
        }
        if res.Status != model.ReservationPending {
            return ErrInvalidTransition
        }
        if err := tx.Reservations().UpdateStatus(ctx, res.ID, model.ReservationConfirmed); err != nil {
            return err
        }
        res.Status = model.ReservationConfirmed
        pay = &model.Payment{
            ReservationID: res.ID,
            AmountCents:   ride.PricePerSeatCents,
            Status:        model.PaymentCompleted,
            Reference:     s.newRef(),
        }
        if err := tx.Payments().Create(ctx, pay); err != nil {
            if errors.Is(err, repository.ErrDuplicate) {
                return ErrInvalidTransition
            }
            return err
        }
        return nil
    })
    if err != nil {
        return nil, nil, err
    }
    log.Printf("reservations: confirmed id=%d ride=%d amount_cents=%d", res.ID, ride.ID, pay.AmountCents)
    s.emit(queue.ReservationConfirmed, res, ride, pay.AmountCents, "")
    return res, pay, nil
}

// Cancel moves a pending or confirmed reservation to cancelled and releases
// its seat.  A second cancel fails with ErrAlreadyCancelled and releases
// nothing.
func (s *Reservations) Cancel(ctx context.Context, actor model.Actor, id uint64) (*model.Reservation, error) {
    var (
        res  *model.Reservation
        ride *model.Ride
    )
    err := inTx(ctx, s.store, s.policy, "reservations", func(ctx context.Context, tx repository.Tx) error {
        var err error
        ride, res, err = s.lockOwned(ctx, tx, actor, id)
        if err != nil {
            return err
        }
        if !res.HoldsSeat() {
            return ErrAlreadyCancelled
        }
        if ride.Status == model.RideCompleted {
            return ErrRideNotActive
        }
        if err := tx.Reservations().UpdateStatus(ctx, res.ID, model.ReservationCancelled); err != nil {
            return err
        }
        res.Status = model.ReservationCancelled
        return s.guard.Release(ctx, tx, ride)
    })
    if err != nil {
        return nil, err
    }
    log.Printf("reservations: cancelled id=%d ride=%d seats_available=%d", res.ID, ride.ID, ride.SeatsAvailable)
    s.emit(queue.ReservationCancelled, res, ride, 0, queue.ReasonPassenger)
    return res, nil
}

// lockOwned loads the reservation to learn its ride, then locks the ride and
// the reservation in that order.  Only the reservation's passenger passes.
func (s *Reservations) lockOwned(ctx context.Context, tx repository.Tx, actor model.Actor, id uint64) (*model.Ride, *model.Reservation, error) {
    peek, err := tx.Reservations().GetByID(ctx, id)
    if errors.Is(err, repository.ErrNotFound) {
        return nil, nil, notFound("reservation")
    }
    if err != nil {
        return nil, nil, err
    }
    if peek.PassengerID != actor.UserID {
        return nil, nil, ErrUnauthorized
    }
    ride, err := tx.Rides().LockByID(ctx, peek.RideID)
    if err != nil {
        return nil, nil, err
    }
    res, err := tx.Reservations().LockByID(ctx, id)
    if err != nil {
        return nil, nil, err
    }
    return ride, res, nil
}

// Get returns a reservation visible to its passenger, the ride's driver or
// an admin.
func (s *Reservations) Get(ctx context.Context, actor model.Actor, id uint64) (*model.Reservation, error) {
    res, err := s.store.Reservations().GetByID(ctx, id)
    if errors.Is(err, repository.ErrNotFound) {
        return nil, notFound("reservation")
    }
    if err != nil {
        return nil, storeError(err)
    }
    if res.PassengerID == actor.UserID || actor.IsAdmin() {
        return res, nil
    }
    ride, err := s.store.Rides().GetByID(ctx, res.RideID)
    if err != nil {
        return nil, storeError(err)
    }
    if ride.DriverID != actor.UserID {
        return nil, ErrUnauthorized
    }
    return res, nil
}

// ListMine returns the actor's own reservations, newest first.
func (s *Reservations) ListMine(ctx context.Context, actor model.Actor) ([]model.Reservation, error) {
    if !actor.IsPassenger() {
        return nil, ErrNotAPassenger
    }
    list, err := s.store.Reservations().ListByPassenger(ctx, actor.UserID)
    return list, storeError(err)
}

// Payment returns the payment that settled a confirmed reservation.
func (s *Reservations) Payment(ctx context.Context, actor model.Actor, id uint64) (*model.Payment, error) {
    if _, err := s.Get(ctx, actor, id); err != nil {
        return nil, err
    }
    pay, err := s.store.Payments().GetByReservation(ctx, id)
    if errors.Is(err, repository.ErrNotFound) {
        return nil, notFound("payment")
    }
    return pay, storeError(err)
}

func (s *Reservations) emit(t queue.EventType, res *model.Reservation, ride *model.Ride, amount uint32, reason string) {
    ev := queue.NewEvent(t)
    ev.RideID = ride.ID
    ev.DriverID = ride.DriverID
    ev.ReservationID = res.ID
    ev.PassengerID = res.PassengerID
    ev.AmountCents = amount
    ev.SeatsAvailable = ride.SeatsAvailable
    ev.Reason = reason
    s.notify.Notify(ev)
}
