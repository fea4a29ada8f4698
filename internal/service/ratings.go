package service

import (
    "context"
    "errors"
    "log"

    "github.com/iliyamo/carpool-reservation/internal/model"
    "github.com/iliyamo/carpool-reservation/internal/repository"
)

// Score bounds.
const (
    MinScore = 1
    MaxScore = 5
)

// Ratings records post-ride scores between the driver and the passengers
// who rode, and keeps each user's running mean.
type Ratings struct {
    store  repository.Store
    policy TxPolicy
}

func NewRatings(store repository.Store, policy TxPolicy) *Ratings {
    if policy == (TxPolicy{}) {
        policy = DefaultTxPolicy
    }
    return &Ratings{store: store, policy: policy}
}

// Rate records score from actor for rateeID on a completed ride and returns
// the ratee's updated mean.  Passengers with a confirmed reservation rate
// the driver; the driver rates those passengers.  Each pair rates once per
// ride.
func (s *Ratings) Rate(ctx context.Context, actor model.Actor, rideID, rateeID uint64, score int) (*model.UserRating, error) {
    switch {
    case score < MinScore || score > MaxScore:
        return nil, Validation("score must be between 1 and 5")
    case rateeID == 0:
        return nil, Validation("ratee_id is required")
    case rateeID == actor.UserID:
        return nil, Validation("can not rate yourself")
    }

    var out model.UserRating
    err := inTx(ctx, s.store, s.policy, "ratings", func(ctx context.Context, tx repository.Tx) error {
        ride, err := tx.Rides().GetByID(ctx, rideID)
        if errors.Is(err, repository.ErrNotFound) {
            return notFound("ride")
        }
        if err != nil {
            return err
        }
        if ride.Status != model.RideCompleted {
            return ErrRideNotCompleted
        }
        list, err := tx.Reservations().ListByRide(ctx, rideID)
        if err != nil {
            return err
        }
        rode := map[uint64]bool{}
        for _, r := range list {
            if r.Status == model.ReservationConfirmed {
                rode[r.PassengerID] = true
            }
        }
        switch {
        case actor.UserID == ride.DriverID && rode[rateeID]:
        case rode[actor.UserID] && rateeID == ride.DriverID:
        case actor.UserID != ride.DriverID && !rode[actor.UserID]:
            return ErrUnauthorized
        default:
            return Validation("ratee did not share this ride with you")
        }

        rt := &model.Rating{RideID: rideID, RaterID: actor.UserID, RateeID: rateeID, Score: score}
        if err := tx.Ratings().Create(ctx, rt); err != nil {
            if errors.Is(err, repository.ErrDuplicate) {
                return ErrAlreadyRated
            }
            return err
        }
        if err := tx.Ratings().AddToUser(ctx, rateeID, score); err != nil {
            return err
        }
        out, err = tx.Ratings().GetUserRating(ctx, rateeID)
        return err
    })
    if err != nil {
        return nil, err
    }
    log.Printf("ratings: ride=%d rater=%d ratee=%d score=%d mean=%.2f count=%d",
        rideID, actor.UserID, rateeID, score, out.Rating, out.Count)
    return &out, nil
}

// Get returns the mean rating of a user.
func (s *Ratings) Get(ctx context.Context, userID uint64) (*model.UserRating, error) {
    ur, err := s.store.Ratings().GetUserRating(ctx, userID)
    if errors.Is(err, repository.ErrNotFound) {
        return nil, notFound("user")
    }
    if err != nil {
        return nil, storeError(err)
    }
    return &ur, nil
}
