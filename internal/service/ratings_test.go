package service

import (
    "context"
    "testing"

    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"

    "github.com/iliyamo/carpool-reservation/internal/model"
)

// completedRide proposes a ride, lets each passenger book and confirm, then
// completes it.
func (f *fixture) completedRide(t *testing.T, riders ...model.Actor) *model.Ride {
    t.Helper()
    ctx := context.Background()
    ride := f.propose(t, 3, 0)
    for _, p := range riders {
        res, err := f.reservations.Book(ctx, p, ride.ID)
        require.NoError(t, err)
        _, _, err = f.reservations.Confirm(ctx, p, res.ID)
        require.NoError(t, err)
    }
    _, err := f.rides.Complete(ctx, driver, ride.ID)
    require.NoError(t, err)
    return ride
}

func TestRatingsKeepRunningMean(t *testing.T) {
    f := newFixture()
    ctx := context.Background()
    ride := f.completedRide(t, passengerA, passengerB)

    got, err := f.ratings.Rate(ctx, passengerA, ride.ID, driver.UserID, 5)
    require.NoError(t, err)
    assert.Equal(t, 1, got.Count)
    assert.InDelta(t, 5.0, got.Rating, 1e-9)

    got, err = f.ratings.Rate(ctx, passengerB, ride.ID, driver.UserID, 2)
    require.NoError(t, err)
    assert.Equal(t, 2, got.Count)
    assert.InDelta(t, 3.5, got.Rating, 1e-9)

    _, err = f.ratings.Rate(ctx, driver, ride.ID, passengerA.UserID, 4)
    require.NoError(t, err)

    mean, err := f.ratings.Get(ctx, driver.UserID)
    require.NoError(t, err)
    assert.Equal(t, driver.UserID, mean.UserID)
    assert.InDelta(t, 3.5, mean.Rating, 1e-9)

    mean, err = f.ratings.Get(ctx, passengerA.UserID)
    require.NoError(t, err)
    assert.Equal(t, 1, mean.Count)
}

func TestRateTwiceIsAlreadyRated(t *testing.T) {
    f := newFixture()
    ctx := context.Background()
    ride := f.completedRide(t, passengerA)

    _, err := f.ratings.Rate(ctx, passengerA, ride.ID, driver.UserID, 4)
    require.NoError(t, err)
    _, err = f.ratings.Rate(ctx, passengerA, ride.ID, driver.UserID, 1)
    assert.ErrorIs(t, err, ErrAlreadyRated)

    mean, err := f.ratings.Get(ctx, driver.UserID)
    require.NoError(t, err)
    assert.Equal(t, 1, mean.Count)
    assert.InDelta(t, 4.0, mean.Rating, 1e-9)
}

func TestRateRejections(t *testing.T) {
    f := newFixture()
    ctx := context.Background()

    active := f.propose(t, 2, 0)
    res, err := f.reservations.Book(ctx, passengerA, active.ID)
    require.NoError(t, err)
    _, _, err = f.reservations.Confirm(ctx, passengerA, res.ID)
    require.NoError(t, err)
    _, err = f.ratings.Rate(ctx, passengerA, active.ID, driver.UserID, 5)
    assert.ErrorIs(t, err, ErrRideNotCompleted)

    done := f.completedRide(t, passengerA)

    _, err = f.ratings.Rate(ctx, passengerB, done.ID, driver.UserID, 5)
    assert.ErrorIs(t, err, ErrUnauthorized, "did not ride")
    _, err = f.ratings.Rate(ctx, driver, done.ID, passengerB.UserID, 5)
    assert.Equal(t, KindValidation, KindOf(err), "driver rating a stranger")
    _, err = f.ratings.Rate(ctx, passengerA, 999, driver.UserID, 5)
    assert.ErrorIs(t, err, ErrNotFound)

    bad := map[string]struct {
        actor model.Actor
        ratee uint64
        score int
    }{
        "score too low":  {passengerA, driver.UserID, 0},
        "score too high": {passengerA, driver.UserID, 6},
        "no ratee":       {passengerA, 0, 3},
        "self":           {driver, driver.UserID, 3},
    }
    for name, c := range bad {
        t.Run(name, func(t *testing.T) {
            _, err := f.ratings.Rate(ctx, c.actor, done.ID, c.ratee, c.score)
            assert.Equal(t, KindValidation, KindOf(err))
        })
    }

    _, err = f.ratings.Get(ctx, 4242)
    assert.ErrorIs(t, err, ErrNotFound)
}

func TestCancelledPassengerCannotRate(t *testing.T) {
    f := newFixture()
    ctx := context.Background()
    ride := f.propose(t, 2, 0)
    res, err := f.reservations.Book(ctx, passengerA, ride.ID)
    require.NoError(t, err)
    _, err = f.reservations.Cancel(ctx, passengerA, res.ID)
    require.NoError(t, err)
    _, err = f.rides.Complete(ctx, driver, ride.ID)
    require.NoError(t, err)

    _, err = f.ratings.Rate(ctx, passengerA, ride.ID, driver.UserID, 5)
    assert.ErrorIs(t, err, ErrUnauthorized)
    _, err = f.ratings.Rate(ctx, driver, ride.ID, passengerA.UserID, 1)
    assert.Equal(t, KindValidation, KindOf(err))
}
