package router

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/carpool-reservation/internal/handler"
)

// registerRides maps ride search and lifecycle endpoints.  Search and ride
// detail are public and may be served from the response cache.
func registerRides(public *echo.Group, user authed, h *handler.RideHandler, cache echo.MiddlewareFunc) {
	public.GET("/rides", h.Search, optional(cache)...)
	public.GET("/rides/:id", h.Get, optional(cache)...)

	user.add(http.MethodPost, "/rides", h.Create)
	user.add(http.MethodPut, "/rides/:id", h.Update)
	user.add(http.MethodPatch, "/rides/:id", h.Update)
	user.add(http.MethodDelete, "/rides/:id", h.Cancel)
	user.add(http.MethodPost, "/rides/:id/complete", h.Complete)
	user.add(http.MethodGet, "/rides/:id/reservations", h.Reservations)
	user.add(http.MethodGet, "/my-rides", h.Mine)
}

// registerRatings maps post-ride ratings.  User means are public.
func registerRatings(public *echo.Group, user authed, h *handler.RatingHandler) {
	public.GET("/users/:id/rating", h.Get)
	user.add(http.MethodPost, "/rides/:id/ratings", h.Rate)
}
