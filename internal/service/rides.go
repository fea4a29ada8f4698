package service

import (
    "context"
    "errors"
    "log"
    "math"
    "strings"
    "time"

    "github.com/iliyamo/carpool-reservation/internal/model"
    "github.com/iliyamo/carpool-reservation/internal/queue"
    "github.com/iliyamo/carpool-reservation/internal/repository"
)

// Rides manages the ride lifecycle: active -> cancelled (cascading to every
// live reservation) and active -> completed.
type Rides struct {
    store  repository.Store
    guard  SeatGuard
    notify Notifier
    policy TxPolicy
}

// NewRides wires the ride lifecycle manager.  notifier may be nil.
func NewRides(store repository.Store, notifier Notifier, policy TxPolicy) *Rides {
    if notifier == nil {
        notifier = nopNotifier{}
    }
    if policy == (TxPolicy{}) {
        policy = DefaultTxPolicy
    }
    return &Rides{store: store, notify: notifier, policy: policy}
}

// RideInput holds the details of a new ride.
type RideInput struct {
    Origin            string
    Destination       string
    DepartureTime     time.Time
    Capacity          int
    PricePerSeatCents int64
}

// RidePatch holds the fields a driver may change.  Nil fields are left as is.
type RidePatch struct {
    Origin            *string
    Destination       *string
    DepartureTime     *time.Time
    Capacity          *int
    PricePerSeatCents *int64
}

func validPrice(cents int64) bool { return cents >= 0 && cents <= math.MaxUint32 }

// validCapacity matches the INT UNSIGNED capacity column.
func validCapacity(n int) bool { return n > 0 && int64(n) <= math.MaxUint32 }

// Propose creates an active ride with every seat available.
func (s *Rides) Propose(ctx context.Context, actor model.Actor, in RideInput) (*model.Ride, error) {
    if !actor.IsDriver() {
        return nil, ErrNotADriver
    }
    in.Origin = strings.TrimSpace(in.Origin)
    in.Destination = strings.TrimSpace(in.Destination)
    switch {
    case in.Origin == "" || in.Destination == "":
        return nil, Validation("origin and destination are required")
    case in.DepartureTime.IsZero():
        return nil, Validation("departure_time is required")
    case !validCapacity(in.Capacity):
        return nil, Validation("capacity must be between 1 and 4294967295")
    case !validPrice(in.PricePerSeatCents):
        return nil, Validation("price_per_seat must be zero or more")
    }

    var ride *model.Ride
    err := inTx(ctx, s.store, s.policy, "rides", func(ctx context.Context, tx repository.Tx) error {
        ride = &model.Ride{
            DriverID:          actor.UserID,
            Origin:            in.Origin,
            Destination:       in.Destination,
            DepartureTime:     in.DepartureTime.UTC(),
            Capacity:          in.Capacity,
            SeatsAvailable:    in.Capacity,
            PricePerSeatCents: uint32(in.PricePerSeatCents),
            Status:            model.RideActive,
        }
        return tx.Rides().Create(ctx, ride)
    })
    if err != nil {
        return nil, err
    }
    log.Printf("rides: proposed id=%d driver=%d capacity=%d", ride.ID, ride.DriverID, ride.Capacity)
    return ride, nil
}

// Modify applies patch to an active ride owned by the actor.  Capacity can
// not drop below the seats already held; seats_available follows the new
// capacity.
func (s *Rides) Modify(ctx context.Context, actor model.Actor, id uint64, patch RidePatch) (*model.Ride, error) {
    if patch.Origin != nil && strings.TrimSpace(*patch.Origin) == "" {
        return nil, Validation("origin can not be empty")
    }
    if patch.Destination != nil && strings.TrimSpace(*patch.Destination) == "" {
        return nil, Validation("destination can not be empty")
    }
    if patch.DepartureTime != nil && patch.DepartureTime.IsZero() {
        return nil, Validation("departure_time can not be empty")
    }
    if patch.Capacity != nil && !validCapacity(*patch.Capacity) {
        return nil, Validation("capacity must be between 1 and 4294967295")
    }
    if patch.PricePerSeatCents != nil && !validPrice(*patch.PricePerSeatCents) {
        return nil, Validation("price_per_seat must be zero or more")
    }

    var ride *model.Ride
    err := inTx(ctx, s.store, s.policy, "rides", func(ctx context.Context, tx repository.Tx) error {
        var err error
        ride, err = s.lockOwned(ctx, tx, actor, id, false)
        if err != nil {
            return err
        }
        if !ride.IsActive() {
            return ErrRideNotActive
        }
        if patch.Capacity != nil && *patch.Capacity != ride.Capacity {
            if err := s.guard.Resize(ctx, tx, ride, *patch.Capacity); err != nil {
                return err
            }
        }
        if patch.Origin != nil {
            ride.Origin = strings.TrimSpace(*patch.Origin)
        }
        if patch.Destination != nil {
            ride.Destination = strings.TrimSpace(*patch.Destination)
        }
        if patch.DepartureTime != nil {
            ride.DepartureTime = patch.DepartureTime.UTC()
        }
        if patch.PricePerSeatCents != nil {
            ride.PricePerSeatCents = uint32(*patch.PricePerSeatCents)
        }
        return tx.Rides().UpdateDetails(ctx, ride)
    })
    if err != nil {
        return nil, err
    }
    log.Printf("rides: modified id=%d capacity=%d seats_available=%d", ride.ID, ride.Capacity, ride.SeatsAvailable)
    return ride, nil
}

// CancelRide cancels an active ride and every pending or confirmed
// reservation on it, releasing one seat per reservation.  The driver or an
// admin may cancel.  It returns the reservations it cancelled.
func (s *Rides) CancelRide(ctx context.Context, actor model.Actor, id uint64) (*model.Ride, []model.Reservation, error) {
    var (
        ride      *model.Ride
        cancelled []model.Reservation
    )
    err := inTx(ctx, s.store, s.policy, "rides", func(ctx context.Context, tx repository.Tx) error {
        var err error
        ride, err = s.lockOwned(ctx, tx, actor, id, true)
        if err != nil {
            return err
        }
        switch ride.Status {
        case model.RideCancelled:
            return ErrRideAlreadyCancelled
        case model.RideCompleted:
            return ErrInvalidTransition
        }
        cancelled, err = tx.Reservations().LockActiveByRide(ctx, ride.ID)
        if err != nil {
            return err
        }
        for i := range cancelled {
            if err := tx.Reservations().UpdateStatus(ctx, cancelled[i].ID, model.ReservationCancelled); err != nil {
                return err
            }
            cancelled[i].Status = model.ReservationCancelled
            if err := s.guard.Release(ctx, tx, ride); err != nil {
                return err
            }
        }
        if err := tx.Rides().UpdateStatus(ctx, ride.ID, model.RideCancelled); err != nil {
            return err
        }
        ride.Status = model.RideCancelled
        return nil
    })
    if err != nil {
        return nil, nil, err
    }
    log.Printf("rides: cancelled id=%d by=%d reservations_cancelled=%d", ride.ID, actor.UserID, len(cancelled))

    ev := s.rideEvent(queue.RideCancelled, ride)
    s.notify.Notify(ev)
    for _, r := range cancelled {
        ev := s.rideEvent(queue.ReservationCancelled, ride)
        ev.ReservationID = r.ID
        ev.PassengerID = r.PassengerID
        ev.Reason = queue.ReasonRideCancelled
        s.notify.Notify(ev)
    }
    return ride, cancelled, nil
}

// Complete marks an active ride as completed.  Reservations keep their
// status and seats are not released.
func (s *Rides) Complete(ctx context.Context, actor model.Actor, id uint64) (*model.Ride, error) {
    var ride *model.Ride
    err := inTx(ctx, s.store, s.policy, "rides", func(ctx context.Context, tx repository.Tx) error {
        var err error
        ride, err = s.lockOwned(ctx, tx, actor, id, true)
        if err != nil {
            return err
        }
        return s.complete(ctx, tx, ride)
    })
    if err != nil {
        return nil, err
    }
    log.Printf("rides: completed id=%d by=%d", ride.ID, actor.UserID)
    s.notify.Notify(s.rideEvent(queue.RideCompleted, ride))
    return ride, nil
}

func (s *Rides) complete(ctx context.Context, tx repository.Tx, ride *model.Ride) error {
    if !ride.IsActive() {
        return ErrInvalidTransition
    }
    if err := tx.Rides().UpdateStatus(ctx, ride.ID, model.RideCompleted); err != nil {
        return err
    }
    ride.Status = model.RideCompleted
    return nil
}

// sweepBatch caps how many departed rides one CompleteDeparted call handles.
const sweepBatch = 100

// CompleteDeparted completes active rides whose departure is before now and
// returns how many it completed.  Each ride is its own unit of work.
func (s *Rides) CompleteDeparted(ctx context.Context, now time.Time) (int, error) {
    ids, err := s.store.Rides().ListDepartedActive(ctx, now, sweepBatch)
    if err != nil {
        return 0, storeError(err)
    }
    done := 0
    for _, id := range ids {
        var ride *model.Ride
        err := inTx(ctx, s.store, s.policy, "sweeper", func(ctx context.Context, tx repository.Tx) error {
            var err error
            ride, err = tx.Rides().LockByID(ctx, id)
            if err != nil {
                return err
            }
            if !ride.IsActive() || !ride.DepartureTime.Before(now) {
                ride = nil
                return nil
            }
            return s.complete(ctx, tx, ride)
        })
        if err != nil {
            log.Printf("sweeper: complete ride %d: %v", id, err)
            continue
        }
        if ride != nil {
            done++
            s.notify.Notify(s.rideEvent(queue.RideCompleted, ride))
        }
    }
    return done, nil
}

// RunCompletionSweeper calls CompleteDeparted every interval until ctx ends.
func (s *Rides) RunCompletionSweeper(ctx context.Context, interval time.Duration) {
    t := time.NewTicker(interval)
    defer t.Stop()
    for {
        select {
        case <-ctx.Done():
            return
        case now := <-t.C:
            n, err := s.CompleteDeparted(ctx, now.UTC())
            if err != nil {
                log.Printf("sweeper: %v", err)
            } else if n > 0 {
                log.Printf("sweeper: completed %d departed rides", n)
            }
        }
    }
}

// Get returns a ride by id.
func (s *Rides) Get(ctx context.Context, id uint64) (*model.Ride, error) {
    ride, err := s.store.Rides().GetByID(ctx, id)
    if errors.Is(err, repository.ErrNotFound) {
        return nil, notFound("ride")
    }
    return ride, storeError(err)
}

// ListByDriver returns the rides the actor has proposed.
func (s *Rides) ListByDriver(ctx context.Context, actor model.Actor) ([]model.Ride, error) {
    if !actor.IsDriver() {
        return nil, ErrNotADriver
    }
    list, err := s.store.Rides().ListByDriver(ctx, actor.UserID)
    return list, storeError(err)
}

// ListReservations returns every reservation on a ride, for its driver or
// an admin.
func (s *Rides) ListReservations(ctx context.Context, actor model.Actor, id uint64) ([]model.Reservation, error) {
    ride, err := s.Get(ctx, id)
    if err != nil {
        return nil, err
    }
    if ride.DriverID != actor.UserID && !actor.IsAdmin() {
        return nil, ErrUnauthorized
    }
    list, err := s.store.Reservations().ListByRide(ctx, id)
    return list, storeError(err)
}

// lockOwned locks the ride and checks that the actor drives it, or is an
// admin when allowAdmin is set.
func (s *Rides) lockOwned(ctx context.Context, tx repository.Tx, actor model.Actor, id uint64, allowAdmin bool) (*model.Ride, error) {
    ride, err := tx.Rides().LockByID(ctx, id)
    if errors.Is(err, repository.ErrNotFound) {
        return nil, notFound("ride")
    }
    if err != nil {
        return nil, err
    }
    if ride.DriverID != actor.UserID && !(allowAdmin && actor.IsAdmin()) {
        return nil, ErrUnauthorized
    }
    return ride, nil
}

func (s *Rides) rideEvent(t queue.EventType, ride *model.Ride) queue.Event {
    ev := queue.NewEvent(t)
    ev.RideID = ride.ID
    ev.DriverID = ride.DriverID
    ev.SeatsAvailable = ride.SeatsAvailable
    return ev
}
