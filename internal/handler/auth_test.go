package handler

import (
    "context"
    "net/http"
    "strings"
    "testing"
    "time"

    "github.com/labstack/echo/v4"
    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"
    "golang.org/x/crypto/bcrypt"

    "github.com/iliyamo/carpool-reservation/internal/config"
    "github.com/iliyamo/carpool-reservation/internal/model"
    "github.com/iliyamo/carpool-reservation/internal/repository"
    "github.com/iliyamo/carpool-reservation/internal/utils"
)

type memUsers struct{ byEmail map[string]model.User }

func (m *memUsers) Create(_ context.Context, email, password string, role model.Role, cost int) (uint64, error) {
    if _, ok := m.byEmail[email]; ok {
        return 0, repository.ErrEmailExists
    }
    hash, err := utils.HashPassword(password, cost)
    if err != nil {
        return 0, err
    }
    u := model.User{ID: uint64(len(m.byEmail) + 1), Email: email, PasswordHash: hash, Role: role, IsActive: true}
    m.byEmail[email] = u
    return u.ID, nil
}

func (m *memUsers) GetByEmail(_ context.Context, email string) (model.User, error) {
    u, ok := m.byEmail[email]
    if !ok {
        return model.User{}, repository.ErrNotFound
    }
    return u, nil
}

func (m *memUsers) SetActive(_ context.Context, id uint64, active bool) error {
    for email, u := range m.byEmail {
        if u.ID == id {
            u.IsActive = active
            m.byEmail[email] = u
            return nil
        }
    }
    return repository.ErrNotFound
}

func (m *memUsers) GetByID(_ context.Context, id uint64) (model.User, error) {
    for _, u := range m.byEmail {
        if u.ID == id {
            return u, nil
        }
    }
    return model.User{}, repository.ErrNotFound
}

type memTokens struct {
    live map[string]uint64
}

func (m *memTokens) StoreRefresh(_ context.Context, userID uint64, hash string, _ time.Time) error {
    m.live[hash] = userID
    return nil
}

func (m *memTokens) ConsumeRefresh(_ context.Context, hash string) (uint64, error) {
    id, ok := m.live[hash]
    if !ok {
        return 0, repository.ErrNotFound
    }
    delete(m.live, hash)
    return id, nil
}

func (m *memTokens) RevokeAllForUser(_ context.Context, userID uint64) error {
    for h, id := range m.live {
        if id == userID {
            delete(m.live, h)
        }
    }
    return nil
}

func newAuthServer() (*echo.Echo, *memTokens) {
    tokens := &memTokens{live: map[string]uint64{}}
    h := NewAuthHandler(config.Config{JWTSecret: secret, AccessTTLMin: 5, RefreshTTLDays: 1, BcryptCost: bcrypt.MinCost},
        &memUsers{byEmail: map[string]model.User{}}, tokens)
    e := echo.New()
    e.POST("/register", h.Register)
    e.POST("/login", h.Login)
    e.POST("/refresh", h.Refresh)
    e.POST("/logout", h.Logout)
    return e, tokens
}

func TestRegisterLoginRefreshLogout(t *testing.T) {
    e, tokens := newAuthServer()

    rec := do(t, e, http.MethodPost, "/register", `{"email":"Ana@Example.com","password":"longenough","role":"driver"}`, nil)
    require.Equal(t, http.StatusCreated, rec.Code)
    user := decode(t, rec)["user"].(map[string]any)
    assert.Equal(t, "ana@example.com", user["email"])
    assert.Equal(t, "DRIVER", user["role"])

    rec = do(t, e, http.MethodPost, "/register", `{"email":"ana@example.com","password":"longenough","role":"DRIVER"}`, nil)
    assert.Equal(t, http.StatusConflict, rec.Code)

    rec = do(t, e, http.MethodPost, "/login", `{"email":"ana@example.com","password":"wrong-password"}`, nil)
    assert.Equal(t, http.StatusUnauthorized, rec.Code)

    rec = do(t, e, http.MethodPost, "/login", `{"email":"ana@example.com","password":"longenough"}`, nil)
    require.Equal(t, http.StatusOK, rec.Code)
    body := decode(t, rec)
    access := body["access"].(map[string]any)["token"].(string)
    refresh := body["refresh"].(map[string]any)["token"].(string)

    actor, err := utils.ParseAccessToken(secret, access)
    require.NoError(t, err)
    assert.Equal(t, model.RoleDriver, actor.Role)

    rec = do(t, e, http.MethodPost, "/refresh", `{"refresh_token":"`+refresh+`"}`, nil)
    require.Equal(t, http.StatusOK, rec.Code)
    rec = do(t, e, http.MethodPost, "/refresh", `{"refresh_token":"`+refresh+`"}`, nil)
    assert.Equal(t, http.StatusUnauthorized, rec.Code, "rotated token is revoked")

    assert.Len(t, tokens.live, 2)
    rec = do(t, e, http.MethodPost, "/logout", `{}`, &model.Actor{UserID: actor.UserID, Role: actor.Role})
    assert.Equal(t, http.StatusNoContent, rec.Code)
    assert.Empty(t, tokens.live)
}

func TestRegisterRejectsAdminAndWeakInput(t *testing.T) {
    e, _ := newAuthServer()
    for _, body := range []string{
        `{"email":"root@example.com","password":"longenough","role":"ADMIN"}`,
        `{"email":"x@example.com","password":"short","role":"PASSENGER"}`,
        `{"email":"not-an-email","password":"longenough","role":"PASSENGER"}`,
        `{"email":"x@example.com","password":"longenough","role":"pilot"}`,
        `{"email":"x@example.com","password":"` + strings.Repeat("p", utils.MaxPasswordBytes+1) + `","role":"PASSENGER"}`,
    } {
        rec := do(t, e, http.MethodPost, "/register", body, nil)
        assert.Equal(t, http.StatusBadRequest, rec.Code, body)
    }
}
