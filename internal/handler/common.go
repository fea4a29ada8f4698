package handler

import (
    "errors"
    "log"
    "math"
    "net/http"
    "strconv"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/carpool-reservation/internal/middleware"
    "github.com/iliyamo/carpool-reservation/internal/model"
    "github.com/iliyamo/carpool-reservation/internal/service"
)

var errNoActor = errors.New("no authenticated actor in context")

// getActor returns the caller stored by middleware.JWTAuth.
func getActor(c echo.Context) (model.Actor, error) {
    a, ok := middleware.ActorFrom(c)
    if !ok {
        return model.Actor{}, errNoActor
    }
    return a, nil
}

// pathID parses a positive numeric path parameter.
func pathID(c echo.Context, name string) (uint64, bool) {
    id, err := strconv.ParseUint(c.Param(name), 10, 64)
    return id, err == nil && id > 0
}

// statusFor maps an error kind onto an HTTP status.
func statusFor(k service.Kind) int {
    switch k {
    case service.KindValidation:
        return http.StatusBadRequest
    case service.KindAuthorization:
        return http.StatusForbidden
    case service.KindNotFound:
        return http.StatusNotFound
    case service.KindConflict:
        return http.StatusConflict
    case service.KindTransientStore:
        return http.StatusServiceUnavailable
    }
    return http.StatusInternalServerError
}

// respondError writes {"error": code, "message": text} for err.  Errors that
// are not *service.Error are logged and reported as 500.
func respondError(c echo.Context, err error) error {
    var e *service.Error
    if !errors.As(err, &e) {
        log.Printf("handler: %s %s: %v", c.Request().Method, c.Path(), err)
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal", "message": "internal server error"})
    }
    if e.Kind == service.KindTransientStore {
        c.Response().Header().Set("Retry-After", "1")
    }
    if e.Kind == service.KindInternal {
        log.Printf("handler: %s %s: %v", c.Request().Method, c.Path(), err)
    }
    return c.JSON(statusFor(e.Kind), echo.Map{"error": e.Code, "message": e.Message})
}

func unauthorized(c echo.Context) error {
    return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
}

func badRequest(c echo.Context, msg string) error {
    return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid_input", "message": msg})
}

// centsFromAmount converts a decimal amount to integer cents.
func centsFromAmount(v float64) int64 { return int64(math.Round(v * 100)) }

func amountFromCents(c uint32) float64 { return float64(c) / 100 }
