package router

import (
	"net/http"

	"github.com/iliyamo/carpool-reservation/internal/handler"
)

func registerReservations(user authed, h *handler.ReservationHandler) {
	user.add(http.MethodPost, "/reservations", h.Book)
	user.add(http.MethodGet, "/reservations/:id", h.Get)
	user.add(http.MethodPost, "/reservations/:id/confirm", h.Confirm)
	user.add(http.MethodPost, "/reservations/:id/cancel", h.Cancel)
	user.add(http.MethodGet, "/reservations/:id/payment", h.Payment)
	user.add(http.MethodGet, "/my-reservations", h.Mine)
}
