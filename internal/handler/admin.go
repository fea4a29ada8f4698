package handler

import (
    "context"
    "errors"
    "log"
    "net/http"
    "time"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/carpool-reservation/internal/model"
    "github.com/iliyamo/carpool-reservation/internal/repository"
)

// UserAdmin is the part of repository.UserRepo used by AdminHandler.
type UserAdmin interface {
    SetActive(ctx context.Context, id uint64, active bool) error
}

// AdminHandler serves /v1/admin.
type AdminHandler struct {
    Users  UserAdmin
    Tokens TokenStore
}

func NewAdminHandler(u UserAdmin, t TokenStore) *AdminHandler {
    return &AdminHandler{Users: u, Tokens: t}
}

type activeReq struct {
    Active *bool `json:"active"`
}

// SetUserActive handles PATCH /v1/admin/users/:id/active.  Deactivating a
// user also revokes every refresh token they hold; access tokens already
// issued run until they expire.
func (h *AdminHandler) SetUserActive(c echo.Context) error {
    actor, err := getActor(c)
    if err != nil {
        return unauthorized(c)
    }
    if actor.Role != model.RoleAdmin {
        return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
    }
    id, ok := pathID(c, "id")
    if !ok {
        return badRequest(c, "invalid user id")
    }
    var req activeReq
    if err := c.Bind(&req); err != nil || req.Active == nil {
        return badRequest(c, "active (boolean) is required")
    }
    if id == actor.UserID && !*req.Active {
        return badRequest(c, "can not deactivate yourself")
    }

    ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
    defer cancel()

    err = h.Users.SetActive(ctx, id, *req.Active)
    if errors.Is(err, repository.ErrNotFound) {
        return c.JSON(http.StatusNotFound, echo.Map{"error": "not_found", "message": "user not found"})
    }
    if err != nil {
        log.Printf("admin: set active user=%d: %v", id, err)
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal", "message": "internal server error"})
    }
    if !*req.Active {
        if err := h.Tokens.RevokeAllForUser(ctx, id); err != nil {
            log.Printf("admin: revoke tokens user=%d: %v", id, err)
        }
    }
    log.Printf("admin: user=%d active=%t by=%d", id, *req.Active, actor.UserID)
    return c.JSON(http.StatusOK, echo.Map{"user_id": id, "is_active": *req.Active})
}
