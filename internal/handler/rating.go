package handler

import (
    "context"
    "net/http"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/carpool-reservation/internal/model"
)

// RatingService records post-ride scores and reads user means.
type RatingService interface {
    Rate(ctx context.Context, actor model.Actor, rideID, rateeID uint64, score int) (*model.UserRating, error)
    Get(ctx context.Context, userID uint64) (*model.UserRating, error)
}

type RatingHandler struct {
    Ratings RatingService
}

func NewRatingHandler(r RatingService) *RatingHandler { return &RatingHandler{Ratings: r} }

type rateReq struct {
    RateeID uint64 `json:"ratee_id"`
    Score   int    `json:"score"`
}

// Rate handles POST /v1/rides/:id/ratings and returns the ratee's new mean.
func (h *RatingHandler) Rate(c echo.Context) error {
    actor, err := getActor(c)
    if err != nil {
        return unauthorized(c)
    }
    rideID, ok := pathID(c, "id")
    if !ok {
        return badRequest(c, "invalid ride id")
    }
    var req rateReq
    if err := c.Bind(&req); err != nil {
        return badRequest(c, "invalid request body")
    }
    ur, err := h.Ratings.Rate(c.Request().Context(), actor, rideID, req.RateeID, req.Score)
    if err != nil {
        return respondError(c, err)
    }
    return c.JSON(http.StatusCreated, ur)
}

// Get handles GET /v1/users/:id/rating.
func (h *RatingHandler) Get(c echo.Context) error {
    id, ok := pathID(c, "id")
    if !ok {
        return badRequest(c, "invalid user id")
    }
    ur, err := h.Ratings.Get(c.Request().Context(), id)
    if err != nil {
        return respondError(c, err)
    }
    return c.JSON(http.StatusOK, ur)
}
