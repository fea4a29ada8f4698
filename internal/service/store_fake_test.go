package service

import (
    "context"
    "sort"
    "strings"
    "sync"
    "testing"
    "time"

    "github.com/stretchr/testify/require"

    "github.com/iliyamo/carpool-reservation/internal/model"
    "github.com/iliyamo/carpool-reservation/internal/queue"
    "github.com/iliyamo/carpool-reservation/internal/repository"
)

// memStore is an in-memory repository.Store.  Transactions are fully
// serialised: Begin takes a store-wide lock and works on a copy of the data,
// Commit swaps the copy in and Rollback drops it.
type memStore struct {
    txMu   sync.Mutex
    dataMu sync.Mutex
    data   *memData

    // commitFailures makes the next N commits fail with ErrTransient.
    commitFailures int
    begins         int
}

type memData struct {
    nextID       uint64
    rides        map[uint64]model.Ride
    reservations map[uint64]model.Reservation
    payments     map[uint64]model.Payment // by reservation id
    ratings      map[[3]uint64]model.Rating // by ride, rater, ratee
    userRatings  map[uint64]model.UserRating
}

func newMemStore() *memStore {
    return &memStore{data: &memData{
        rides:        map[uint64]model.Ride{},
        reservations: map[uint64]model.Reservation{},
        payments:     map[uint64]model.Payment{},
        ratings:      map[[3]uint64]model.Rating{},
        userRatings:  map[uint64]model.UserRating{},
    }}
}

func (d *memData) clone() *memData {
    c := &memData{
        nextID:       d.nextID,
        rides:        make(map[uint64]model.Ride, len(d.rides)),
        reservations: make(map[uint64]model.Reservation, len(d.reservations)),
        payments:     make(map[uint64]model.Payment, len(d.payments)),
        ratings:      make(map[[3]uint64]model.Rating, len(d.ratings)),
        userRatings:  make(map[uint64]model.UserRating, len(d.userRatings)),
    }
    for k, v := range d.rides {
        c.rides[k] = v
    }
    for k, v := range d.reservations {
        c.reservations[k] = v
    }
    for k, v := range d.payments {
        c.payments[k] = v
    }
    for k, v := range d.ratings {
        c.ratings[k] = v
    }
    for k, v := range d.userRatings {
        c.userRatings[k] = v
    }
    return c
}

func (d *memData) id() uint64 { d.nextID++; return d.nextID }

type access func() (*memData, func())

func (s *memStore) shared() access {
    return func() (*memData, func()) {
        s.dataMu.Lock()
        return s.data, s.dataMu.Unlock
    }
}

func (s *memStore) Rides() repository.RideRepository { return memRides{s.shared()} }
func (s *memStore) Reservations() repository.ReservationRepository {
    return memReservations{s.shared()}
}
func (s *memStore) Payments() repository.PaymentRepository { return memPayments{s.shared()} }
func (s *memStore) Ratings() repository.RatingRepository   { return memRatings{s.shared()} }

func (s *memStore) Begin(ctx context.Context) (repository.Tx, error) {
    s.txMu.Lock()
    if err := ctx.Err(); err != nil {
        s.txMu.Unlock()
        return nil, err
    }
    s.dataMu.Lock()
    s.begins++
    snap := s.data.clone()
    s.dataMu.Unlock()
    return &memTx{store: s, data: snap}, nil
}

// snapshot returns a consistent copy of the committed data.
func (s *memStore) snapshot() *memData {
    s.dataMu.Lock()
    defer s.dataMu.Unlock()
    return s.data.clone()
}

// seed writes rows directly, bypassing every guard.
func (s *memStore) seedRide(r model.Ride) model.Ride {
    s.dataMu.Lock()
    defer s.dataMu.Unlock()
    r.ID = s.data.id()
    s.data.rides[r.ID] = r
    return r
}

type memTx struct {
    store *memStore
    data  *memData
    done  bool
}

func (t *memTx) local() access {
    return func() (*memData, func()) { return t.data, func() {} }
}

func (t *memTx) Rides() repository.RideRepository               { return memRides{t.local()} }
func (t *memTx) Reservations() repository.ReservationRepository { return memReservations{t.local()} }
func (t *memTx) Payments() repository.PaymentRepository         { return memPayments{t.local()} }
func (t *memTx) Ratings() repository.RatingRepository           { return memRatings{t.local()} }

func (t *memTx) Commit() error {
    if t.done {
        return nil
    }
    t.done = true
    defer t.store.txMu.Unlock()
    t.store.dataMu.Lock()
    defer t.store.dataMu.Unlock()
    if t.store.commitFailures > 0 {
        t.store.commitFailures--
        return repository.ErrTransient
    }
    t.store.data = t.data
    return nil
}

func (t *memTx) Rollback() error {
    if !t.done {
        t.done = true
        t.store.txMu.Unlock()
    }
    return nil
}

type memRides struct{ get access }

func (m memRides) Create(_ context.Context, r *model.Ride) error {
    d, done := m.get()
    defer done()
    r.ID = d.id()
    r.CreatedAt = time.Now().UTC()
    r.UpdatedAt = r.CreatedAt
    d.rides[r.ID] = *r
    return nil
}

func (m memRides) GetByID(_ context.Context, id uint64) (*model.Ride, error) {
    d, done := m.get()
    defer done()
    r, ok := d.rides[id]
    if !ok {
        return nil, repository.ErrNotFound
    }
    return &r, nil
}

func (m memRides) LockByID(ctx context.Context, id uint64) (*model.Ride, error) {
    return m.GetByID(ctx, id)
}

func (m memRides) DecrementSeat(_ context.Context, id uint64) (bool, error) {
    d, done := m.get()
    defer done()
    r, ok := d.rides[id]
    if !ok || r.Status != model.RideActive || r.SeatsAvailable < 1 {
        return false, nil
    }
    r.SeatsAvailable--
    d.rides[id] = r
    return true, nil
}

func (m memRides) IncrementSeat(_ context.Context, id uint64) (bool, error) {
    d, done := m.get()
    defer done()
    r, ok := d.rides[id]
    if !ok || r.SeatsAvailable >= r.Capacity {
        return false, nil
    }
    r.SeatsAvailable++
    d.rides[id] = r
    return true, nil
}

func (m memRides) Resize(_ context.Context, id uint64, capacity, seats int) error {
    d, done := m.get()
    defer done()
    r := d.rides[id]
    r.Capacity, r.SeatsAvailable = capacity, seats
    d.rides[id] = r
    return nil
}

func (m memRides) UpdateDetails(_ context.Context, ride *model.Ride) error {
    d, done := m.get()
    defer done()
    r := d.rides[ride.ID]
    r.Origin, r.Destination = ride.Origin, ride.Destination
    r.DepartureTime, r.PricePerSeatCents = ride.DepartureTime, ride.PricePerSeatCents
    d.rides[ride.ID] = r
    return nil
}

func (m memRides) UpdateStatus(_ context.Context, id uint64, status model.RideStatus) error {
    d, done := m.get()
    defer done()
    r := d.rides[id]
    r.Status = status
    d.rides[id] = r
    return nil
}

func (m memRides) Search(_ context.Context, q repository.RideSearchQuery) ([]model.Ride, int64, error) {
    d, done := m.get()
    defer done()
    var all []model.Ride
    for _, r := range d.rides {
        if r.Status != model.RideActive {
            continue
        }
        if q.Origin != "" && !strings.Contains(strings.ToLower(r.Origin), strings.ToLower(q.Origin)) {
            continue
        }
        if q.Destination != "" && !strings.Contains(strings.ToLower(r.Destination), strings.ToLower(q.Destination)) {
            continue
        }
        if q.Date != nil {
            y1, m1, d1 := q.Date.UTC().Date()
            y2, m2, d2 := r.DepartureTime.UTC().Date()
            if y1 != y2 || m1 != m2 || d1 != d2 {
                continue
            }
        }
        all = append(all, r)
    }
    sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
    start := (q.Page - 1) * q.PageSize
    if start > len(all) {
        start = len(all)
    }
    end := start + q.PageSize
    if end > len(all) {
        end = len(all)
    }
    return append([]model.Ride{}, all[start:end]...), int64(len(all)), nil
}

func (m memRides) ListByDriver(_ context.Context, driverID uint64) ([]model.Ride, error) {
    d, done := m.get()
    defer done()
    out := []model.Ride{}
    for _, r := range d.rides {
        if r.DriverID == driverID {
            out = append(out, r)
        }
    }
    return out, nil
}

func (m memRides) ListDepartedActive(_ context.Context, before time.Time, limit int) ([]uint64, error) {
    d, done := m.get()
    defer done()
    var ids []uint64
    for id, r := range d.rides {
        if r.Status == model.RideActive && r.DepartureTime.Before(before) && len(ids) < limit {
            ids = append(ids, id)
        }
    }
    sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
    return ids, nil
}

type memReservations struct{ get access }

func (m memReservations) Create(_ context.Context, res *model.Reservation) error {
    d, done := m.get()
    defer done()
    for _, r := range d.reservations {
        if r.PassengerID == res.PassengerID && r.RideID == res.RideID && r.HoldsSeat() {
            return repository.ErrDuplicate
        }
    }
    res.ID = d.id()
    res.CreatedAt = time.Now().UTC()
    res.UpdatedAt = res.CreatedAt
    d.reservations[res.ID] = *res
    return nil
}

func (m memReservations) GetByID(_ context.Context, id uint64) (*model.Reservation, error) {
    d, done := m.get()
    defer done()
    r, ok := d.reservations[id]
    if !ok {
        return nil, repository.ErrNotFound
    }
    return &r, nil
}

func (m memReservations) LockByID(ctx context.Context, id uint64) (*model.Reservation, error) {
    return m.GetByID(ctx, id)
}

func (m memReservations) FindActive(_ context.Context, passengerID, rideID uint64) (*model.Reservation, error) {
    d, done := m.get()
    defer done()
    for _, r := range d.reservations {
        if r.PassengerID == passengerID && r.RideID == rideID && r.HoldsSeat() {
            return &r, nil
        }
    }
    return nil, repository.ErrNotFound
}

func (m memReservations) filter(keep func(model.Reservation) bool) []model.Reservation {
    d, done := m.get()
    defer done()
    out := []model.Reservation{}
    for _, r := range d.reservations {
        if keep(r) {
            out = append(out, r)
        }
    }
    sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
    return out
}

func (m memReservations) LockActiveByRide(_ context.Context, rideID uint64) ([]model.Reservation, error) {
    return m.filter(func(r model.Reservation) bool { return r.RideID == rideID && r.HoldsSeat() }), nil
}

func (m memReservations) CountActiveByRide(ctx context.Context, rideID uint64) (int, error) {
    list, _ := m.LockActiveByRide(ctx, rideID)
    return len(list), nil
}

func (m memReservations) UpdateStatus(_ context.Context, id uint64, status model.ReservationStatus) error {
    d, done := m.get()
    defer done()
    r := d.reservations[id]
    r.Status = status
    d.reservations[id] = r
    return nil
}

func (m memReservations) ListByPassenger(_ context.Context, passengerID uint64) ([]model.Reservation, error) {
    return m.filter(func(r model.Reservation) bool { return r.PassengerID == passengerID }), nil
}

func (m memReservations) ListByRide(_ context.Context, rideID uint64) ([]model.Reservation, error) {
    return m.filter(func(r model.Reservation) bool { return r.RideID == rideID }), nil
}

type memPayments struct{ get access }

func (m memPayments) Create(_ context.Context, p *model.Payment) error {
    d, done := m.get()
    defer done()
    if _, dup := d.payments[p.ReservationID]; dup {
        return repository.ErrDuplicate
    }
    p.ID = d.id()
    p.PaidAt = time.Now().UTC()
    d.payments[p.ReservationID] = *p
    return nil
}

func (m memPayments) GetByReservation(_ context.Context, reservationID uint64) (*model.Payment, error) {
    d, done := m.get()
    defer done()
    p, ok := d.payments[reservationID]
    if !ok {
        return nil, repository.ErrNotFound
    }
    return &p, nil
}

type memRatings struct{ get access }

func (m memRatings) Create(_ context.Context, r *model.Rating) error {
    d, done := m.get()
    defer done()
    key := [3]uint64{r.RideID, r.RaterID, r.RateeID}
    if _, dup := d.ratings[key]; dup {
        return repository.ErrDuplicate
    }
    r.ID = d.id()
    r.CreatedAt = time.Now().UTC()
    d.ratings[key] = *r
    return nil
}

// AddToUser treats every user id as an existing user.
func (m memRatings) AddToUser(_ context.Context, userID uint64, score int) error {
    d, done := m.get()
    defer done()
    ur := d.userRatings[userID]
    ur.UserID = userID
    d.userRatings[userID] = ur.Add(score)
    return nil
}

func (m memRatings) GetUserRating(_ context.Context, userID uint64) (model.UserRating, error) {
    d, done := m.get()
    defer done()
    ur, ok := d.userRatings[userID]
    if !ok {
        return model.UserRating{}, repository.ErrNotFound
    }
    return ur, nil
}

// recorder is a Notifier that keeps every event.
type recorder struct {
    mu     sync.Mutex
    events []queue.Event
}

func (r *recorder) Notify(ev queue.Event) {
    r.mu.Lock()
    defer r.mu.Unlock()
    r.events = append(r.events, ev)
}

func (r *recorder) types() []queue.EventType {
    r.mu.Lock()
    defer r.mu.Unlock()
    out := make([]queue.EventType, len(r.events))
    for i, ev := range r.events {
        out[i] = ev.Type
    }
    return out
}

// requireConsistent checks the seat invariants over the committed data.
func requireConsistent(t *testing.T, s *memStore) {
    t.Helper()
    d := s.snapshot()
    held := map[uint64]int{}
    live := map[[2]uint64]int{}
    for _, r := range d.reservations {
        if r.HoldsSeat() {
            held[r.RideID]++
            live[[2]uint64{r.PassengerID, r.RideID}]++
        }
    }
    for id, r := range d.rides {
        require.GreaterOrEqual(t, r.SeatsAvailable, 0, "ride %d", id)
        require.LessOrEqual(t, r.SeatsAvailable, r.Capacity, "ride %d", id)
        require.Equal(t, r.Capacity-held[id], r.SeatsAvailable, "ride %d", id)
    }
    for pair, n := range live {
        require.Equal(t, 1, n, "passenger %d ride %d", pair[0], pair[1])
    }
}

var (
    driver     = model.Actor{UserID: 1, Role: model.RoleDriver}
    otherDrv   = model.Actor{UserID: 2, Role: model.RoleDriver}
    admin      = model.Actor{UserID: 3, Role: model.RoleAdmin}
    passengerA = model.Actor{UserID: 10, Role: model.RolePassenger}
    passengerB = model.Actor{UserID: 11, Role: model.RolePassenger}
)

type fixture struct {
    store        *memStore
    events       *recorder
    rides        *Rides
    reservations *Reservations
    ratings      *Ratings
}

func newFixture() *fixture {
    store := newMemStore()
    ev := &recorder{}
    policy := TxPolicy{MaxRetries: 2, Timeout: time.Second}
    return &fixture{
        store:        store,
        events:       ev,
        rides:        NewRides(store, ev, policy),
        reservations: NewReservations(store, ev, policy),
        ratings:      NewRatings(store, policy),
    }
}

func (f *fixture) propose(t *testing.T, capacity int, priceCents int64) *model.Ride {
    t.Helper()
    ride, err := f.rides.Propose(context.Background(), driver, RideInput{
        Origin:            "Lyon",
        Destination:       "Paris",
        DepartureTime:     time.Now().Add(24 * time.Hour),
        Capacity:          capacity,
        PricePerSeatCents: priceCents,
    })
    require.NoError(t, err)
    return ride
}

func (f *fixture) seats(t *testing.T, rideID uint64) int {
    t.Helper()
    r, err := f.store.Rides().GetByID(context.Background(), rideID)
    require.NoError(t, err)
    return r.SeatsAvailable
}
