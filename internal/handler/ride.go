package handler

import (
    "context"
    "net/http"
    "strconv"
    "strings"
    "time"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/carpool-reservation/internal/model"
    "github.com/iliyamo/carpool-reservation/internal/service"
)

// RideService is the ride lifecycle and search surface used by RideHandler.
type RideService interface {
    Propose(ctx context.Context, actor model.Actor, in service.RideInput) (*model.Ride, error)
    Modify(ctx context.Context, actor model.Actor, id uint64, patch service.RidePatch) (*model.Ride, error)
    CancelRide(ctx context.Context, actor model.Actor, id uint64) (*model.Ride, []model.Reservation, error)
    Complete(ctx context.Context, actor model.Actor, id uint64) (*model.Ride, error)
    Get(ctx context.Context, id uint64) (*model.Ride, error)
    ListByDriver(ctx context.Context, actor model.Actor) ([]model.Ride, error)
    ListReservations(ctx context.Context, actor model.Actor, id uint64) ([]model.Reservation, error)
    Search(ctx context.Context, q service.SearchQuery) (*service.SearchResult, error)
}

// RideHandler serves /v1/rides and /v1/my-rides.
type RideHandler struct {
    Rides RideService
}

func NewRideHandler(rides RideService) *RideHandler { return &RideHandler{Rides: rides} }

// rideView adds the decimal price next to the stored cents.
type rideView struct {
    model.Ride
    PricePerSeat float64 `json:"price_per_seat"`
}

func viewRide(r *model.Ride) rideView {
    return rideView{Ride: *r, PricePerSeat: amountFromCents(r.PricePerSeatCents)}
}

func viewRides(list []model.Ride) []rideView {
    out := make([]rideView, len(list))
    for i := range list {
        out[i] = viewRide(&list[i])
    }
    return out
}

// rideReq is the body of POST, PUT and PATCH.  Prices may be sent either as
// a decimal or as cents; cents win when both are present.
type rideReq struct {
    Origin            *string    `json:"origin"`
    Destination       *string    `json:"destination"`
    DepartureTime     *time.Time `json:"departure_time"`
    Capacity          *int       `json:"capacity"`
    SeatsAvailable    *int       `json:"seats_available"` // accepted as an alias of capacity
    PricePerSeat      *float64   `json:"price_per_seat"`
    PricePerSeatCents *int64     `json:"price_per_seat_cents"`
}

func (r rideReq) capacity() *int {
    if r.Capacity != nil {
        return r.Capacity
    }
    return r.SeatsAvailable
}

func (r rideReq) priceCents() *int64 {
    if r.PricePerSeatCents != nil {
        return r.PricePerSeatCents
    }
    if r.PricePerSeat != nil {
        c := centsFromAmount(*r.PricePerSeat)
        return &c
    }
    return nil
}

func deref[T any](p *T) T {
    var zero T
    if p == nil {
        return zero
    }
    return *p
}

// Create handles POST /v1/rides.
func (h *RideHandler) Create(c echo.Context) error {
    actor, err := getActor(c)
    if err != nil {
        return unauthorized(c)
    }
    var req rideReq
    if err := c.Bind(&req); err != nil {
        return badRequest(c, "invalid request body")
    }
    ride, err := h.Rides.Propose(c.Request().Context(), actor, service.RideInput{
        Origin:            deref(req.Origin),
        Destination:       deref(req.Destination),
        DepartureTime:     deref(req.DepartureTime),
        Capacity:          deref(req.capacity()),
        PricePerSeatCents: deref(req.priceCents()),
    })
    if err != nil {
        return respondError(c, err)
    }
    return c.JSON(http.StatusCreated, viewRide(ride))
}

// Update handles PUT and PATCH /v1/rides/:id.  Only supplied fields change.
func (h *RideHandler) Update(c echo.Context) error {
    actor, err := getActor(c)
    if err != nil {
        return unauthorized(c)
    }
    id, ok := pathID(c, "id")
    if !ok {
        return badRequest(c, "invalid ride id")
    }
    var req rideReq
    if err := c.Bind(&req); err != nil {
        return badRequest(c, "invalid request body")
    }
    ride, err := h.Rides.Modify(c.Request().Context(), actor, id, service.RidePatch{
        Origin:            req.Origin,
        Destination:       req.Destination,
        DepartureTime:     req.DepartureTime,
        Capacity:          req.capacity(),
        PricePerSeatCents: req.priceCents(),
    })
    if err != nil {
        return respondError(c, err)
    }
    return c.JSON(http.StatusOK, viewRide(ride))
}

// Cancel handles DELETE /v1/rides/:id.  The ride is kept with status
// cancelled and its live reservations are cancelled with it.
func (h *RideHandler) Cancel(c echo.Context) error {
    actor, err := getActor(c)
    if err != nil {
        return unauthorized(c)
    }
    id, ok := pathID(c, "id")
    if !ok {
        return badRequest(c, "invalid ride id")
    }
    ride, cancelled, err := h.Rides.CancelRide(c.Request().Context(), actor, id)
    if err != nil {
        return respondError(c, err)
    }
    return c.JSON(http.StatusOK, echo.Map{
        "message":                "ride cancelled",
        "ride":                   viewRide(ride),
        "cancelled_reservations": len(cancelled),
    })
}

// Complete handles POST /v1/rides/:id/complete.
func (h *RideHandler) Complete(c echo.Context) error {
    actor, err := getActor(c)
    if err != nil {
        return unauthorized(c)
    }
    id, ok := pathID(c, "id")
    if !ok {
        return badRequest(c, "invalid ride id")
    }
    ride, err := h.Rides.Complete(c.Request().Context(), actor, id)
    if err != nil {
        return respondError(c, err)
    }
    return c.JSON(http.StatusOK, viewRide(ride))
}

// Get handles GET /v1/rides/:id.
func (h *RideHandler) Get(c echo.Context) error {
    id, ok := pathID(c, "id")
    if !ok {
        return badRequest(c, "invalid ride id")
    }
    ride, err := h.Rides.Get(c.Request().Context(), id)
    if err != nil {
        return respondError(c, err)
    }
    return c.JSON(http.StatusOK, viewRide(ride))
}

// Search handles GET /v1/rides?origin=&destination=&date=YYYY-MM-DD&page=&page_size=.
func (h *RideHandler) Search(c echo.Context) error {
    q := service.SearchQuery{
        Origin:      c.QueryParam("origin"),
        Destination: c.QueryParam("destination"),
    }
    if s := strings.TrimSpace(c.QueryParam("date")); s != "" {
        d, err := time.Parse("2006-01-02", s)
        if err != nil {
            return badRequest(c, "date must be YYYY-MM-DD")
        }
        q.Date = &d
    }
    for name, dst := range map[string]*int{"page": &q.Page, "page_size": &q.PageSize} {
        if s := c.QueryParam(name); s != "" {
            n, err := strconv.Atoi(s)
            if err != nil {
                return badRequest(c, name+" must be a number")
            }
            *dst = n
        }
    }
    res, err := h.Rides.Search(c.Request().Context(), q)
    if err != nil {
        return respondError(c, err)
    }
    return c.JSON(http.StatusOK, echo.Map{
        "rides":     viewRides(res.Rides),
        "total":     res.Total,
        "page":      res.Page,
        "page_size": res.PageSize,
    })
}

// Mine handles GET /v1/my-rides.
func (h *RideHandler) Mine(c echo.Context) error {
    actor, err := getActor(c)
    if err != nil {
        return unauthorized(c)
    }
    list, err := h.Rides.ListByDriver(c.Request().Context(), actor)
    if err != nil {
        return respondError(c, err)
    }
    return c.JSON(http.StatusOK, echo.Map{"rides": viewRides(list)})
}

// Reservations handles GET /v1/rides/:id/reservations.
func (h *RideHandler) Reservations(c echo.Context) error {
    actor, err := getActor(c)
    if err != nil {
        return unauthorized(c)
    }
    id, ok := pathID(c, "id")
    if !ok {
        return badRequest(c, "invalid ride id")
    }
    list, err := h.Rides.ListReservations(c.Request().Context(), actor, id)
    if err != nil {
        return respondError(c, err)
    }
    return c.JSON(http.StatusOK, echo.Map{"reservations": list})
}
