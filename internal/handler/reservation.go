package handler

import (
    "context"
    "net/http"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/carpool-reservation/internal/model"
)

// ReservationService is the reservation state machine used by
// ReservationHandler.
type ReservationService interface {
    Book(ctx context.Context, actor model.Actor, rideID uint64) (*model.Reservation, error)
    Confirm(ctx context.Context, actor model.Actor, id uint64) (*model.Reservation, *model.Payment, error)
    Cancel(ctx context.Context, actor model.Actor, id uint64) (*model.Reservation, error)
    Get(ctx context.Context, actor model.Actor, id uint64) (*model.Reservation, error)
    ListMine(ctx context.Context, actor model.Actor) ([]model.Reservation, error)
    Payment(ctx context.Context, actor model.Actor, id uint64) (*model.Payment, error)
}

// ReservationHandler serves /v1/reservations and /v1/my-reservations.
type ReservationHandler struct {
    Reservations ReservationService
}

func NewReservationHandler(s ReservationService) *ReservationHandler {
    return &ReservationHandler{Reservations: s}
}

type paymentView struct {
    model.Payment
    Amount float64 `json:"amount"`
}

func viewPayment(p *model.Payment) paymentView {
    return paymentView{Payment: *p, Amount: amountFromCents(p.AmountCents)}
}

// Book handles POST /v1/reservations with body {"ride_id": n}.
func (h *ReservationHandler) Book(c echo.Context) error {
    actor, err := getActor(c)
    if err != nil {
        return unauthorized(c)
    }
    var body struct {
        RideID uint64 `json:"ride_id"`
    }
    if err := c.Bind(&body); err != nil || body.RideID == 0 {
        return badRequest(c, "ride_id is required")
    }
    res, err := h.Reservations.Book(c.Request().Context(), actor, body.RideID)
    if err != nil {
        return respondError(c, err)
    }
    return c.JSON(http.StatusCreated, res)
}

// Confirm handles POST /v1/reservations/:id/confirm.
func (h *ReservationHandler) Confirm(c echo.Context) error {
    actor, err := getActor(c)
    if err != nil {
        return unauthorized(c)
    }
    id, ok := pathID(c, "id")
    if !ok {
        return badRequest(c, "invalid reservation id")
    }
    res, pay, err := h.Reservations.Confirm(c.Request().Context(), actor, id)
    if err != nil {
        return respondError(c, err)
    }
    return c.JSON(http.StatusOK, echo.Map{
        "message":     "reservation confirmed",
        "reservation": res,
        "payment":     viewPayment(pay),
    })
}

// Cancel handles POST /v1/reservations/:id/cancel.
func (h *ReservationHandler) Cancel(c echo.Context) error {
    actor, err := getActor(c)
    if err != nil {
        return unauthorized(c)
    }
    id, ok := pathID(c, "id")
    if !ok {
        return badRequest(c, "invalid reservation id")
    }
    res, err := h.Reservations.Cancel(c.Request().Context(), actor, id)
    if err != nil {
        return respondError(c, err)
    }
    return c.JSON(http.StatusOK, echo.Map{"message": "reservation cancelled", "reservation": res})
}

// Get handles GET /v1/reservations/:id.
func (h *ReservationHandler) Get(c echo.Context) error {
    actor, err := getActor(c)
    if err != nil {
        return unauthorized(c)
    }
    id, ok := pathID(c, "id")
    if !ok {
        return badRequest(c, "invalid reservation id")
    }
    res, err := h.Reservations.Get(c.Request().Context(), actor, id)
    if err != nil {
        return respondError(c, err)
    }
    return c.JSON(http.StatusOK, res)
}

// Payment handles GET /v1/reservations/:id/payment.
func (h *ReservationHandler) Payment(c echo.Context) error {
    actor, err := getActor(c)
    if err != nil {
        return unauthorized(c)
    }
    id, ok := pathID(c, "id")
    if !ok {
        return badRequest(c, "invalid reservation id")
    }
    pay, err := h.Reservations.Payment(c.Request().Context(), actor, id)
    if err != nil {
        return respondError(c, err)
    }
    return c.JSON(http.StatusOK, viewPayment(pay))
}

// Mine handles GET /v1/my-reservations.
func (h *ReservationHandler) Mine(c echo.Context) error {
    actor, err := getActor(c)
    if err != nil {
        return unauthorized(c)
    }
    list, err := h.Reservations.ListMine(c.Request().Context(), actor)
    if err != nil {
        return respondError(c, err)
    }
    return c.JSON(http.StatusOK, echo.Map{"reservations": list})
}
