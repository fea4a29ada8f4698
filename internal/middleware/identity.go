package middleware

import (
    "strconv"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/carpool-reservation/internal/model"
)

// Context keys set by JWTAuth.
const (
    ctxUserID = "user_id"
    ctxRole   = "role"
    ctxActor  = "actor"
)

// ActorFrom returns the authenticated actor stored by JWTAuth.
func ActorFrom(c echo.Context) (model.Actor, bool) {
    a, ok := c.Get(ctxActor).(model.Actor)
    return a, ok && a.UserID != 0
}

// userKey identifies the caller for rate limiting; "anon" before JWTAuth
// has run or on public routes.
func userKey(c echo.Context) string {
    if a, ok := ActorFrom(c); ok {
        return strconv.FormatUint(a.UserID, 10)
    }
    return "anon"
}
