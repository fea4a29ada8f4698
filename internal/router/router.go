// Package router registers the HTTP routes of the API.
package router

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/carpool-reservation/internal/handler"
	"github.com/iliyamo/carpool-reservation/internal/middleware"
	"github.com/iliyamo/carpool-reservation/internal/model"
)

// Deps carries the handlers and shared middleware the routes are built from.
// Nil middleware entries are skipped.
type Deps struct {
	JWTSecret    string
	DB           handler.Pinger
	Auth         *handler.AuthHandler
	Rides        *handler.RideHandler
	Reservations *handler.ReservationHandler
	Ratings      *handler.RatingHandler
	Admin        *handler.AdminHandler

	RateLimit    echo.MiddlewareFunc // applied to every /v1 route
	Cache        echo.MiddlewareFunc // public ride reads only
	PurgeOnWrite echo.MiddlewareFunc // authenticated writes
}

// authed adds routes to a group with per-route authentication.  Attaching
// the JWT check to a sub-group instead would turn 404s for unknown /v1
// paths into 401s.
type authed struct {
	g  *echo.Group
	mw []echo.MiddlewareFunc
}

func (a authed) add(method, path string, h echo.HandlerFunc, extra ...echo.MiddlewareFunc) {
	mw := make([]echo.MiddlewareFunc, 0, len(a.mw)+len(extra))
	mw = append(append(mw, a.mw...), extra...)
	a.g.Add(method, path, h, mw...)
}

// Register wires every route onto e.
func Register(e *echo.Echo, d Deps) {
	e.GET("/healthz", handler.Health(d.DB))

	v1 := e.Group("/v1", optional(d.RateLimit)...)
	registerAuth(v1, d)

	// Capability checks (driver, passenger, owner) happen inside the
	// operations.
	user := authed{g: v1, mw: append([]echo.MiddlewareFunc{
		middleware.JWTAuth(d.JWTSecret),
		middleware.RequireRole(model.RoleDriver, model.RolePassenger, model.RoleAdmin),
	}, optional(d.PurgeOnWrite)...)}
	user.add(http.MethodGet, "/me", d.Auth.Me)

	registerRides(v1, user, d.Rides, d.Cache)
	registerReservations(user, d.Reservations)
	if d.Ratings != nil {
		registerRatings(v1, user, d.Ratings)
	}
	if d.Admin != nil {
		user.add(http.MethodPatch, "/admin/users/:id/active", d.Admin.SetUserActive,
			middleware.RequireRole(model.RoleAdmin))
	}
}

func registerAuth(v1 *echo.Group, d Deps) {
	g := v1.Group("/auth")
	g.POST("/register", d.Auth.Register)
	g.POST("/login", d.Auth.Login)
	g.POST("/refresh", d.Auth.Refresh) // rotates the refresh token
	// Accepts a refresh token in the body or a bearer access token, so it
	// is not behind JWTAuth.
	g.POST("/logout", d.Auth.Logout)
}

func optional(mw echo.MiddlewareFunc) []echo.MiddlewareFunc {
	if mw == nil {
		return nil
	}
	return []echo.MiddlewareFunc{mw}
}
