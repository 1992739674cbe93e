package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/crypto/bcrypt"

	"github.com/iliyamo/barbershop-booking/internal/middleware"
	"github.com/iliyamo/barbershop-booking/internal/model"
	"github.com/iliyamo/barbershop-booking/internal/repository"
	"github.com/iliyamo/barbershop-booking/internal/utils"
)

type memStaff map[string]model.StaffUser

func (m memStaff) GetByEmail(_ context.Context, email string) (model.StaffUser, error) {
	u, ok := m[email]
	if !ok {
		return model.StaffUser{}, repository.ErrNotFound
	}
	return u, nil
}

func (m memStaff) GetByID(_ context.Context, id uint64) (model.StaffUser, error) {
	for _, u := range m {
		if u.ID == id {
			return u, nil
		}
	}
	return model.StaffUser{}, repository.ErrNotFound
}

type memTokens struct {
	mu      sync.Mutex
	owner   map[string]uint64
	revoked map[string]bool
}

func newMemTokens() *memTokens {
	return &memTokens{owner: map[string]uint64{}, revoked: map[string]bool{}}
}

func (m *memTokens) StoreRefresh(_ context.Context, uid uint64, hash string, _ time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.owner[hash] = uid
	return nil
}

func (m *memTokens) ValidateRefresh(_ context.Context, hash string, _ time.Time) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	uid, ok := m.owner[hash]
	if !ok || m.revoked[hash] {
		return 0, repository.ErrTokenInvalid
	}
	return uid, nil
}

func (m *memTokens) RevokeByHash(_ context.Context, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.revoked[hash] = true
	return nil
}

func (m *memTokens) RevokeAllForUser(_ context.Context, uid uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for h, o := range m.owner {
		if o == uid {
			m.revoked[h] = true
		}
	}
	return nil
}

func (m *memTokens) live() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for h := range m.owner {
		if !m.revoked[h] {
			n++
		}
	}
	return n
}

const authSecret = "auth-test-secret"

func newAuth(t *testing.T) (*echo.Echo, *memTokens) {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret-pass"), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	users := memStaff{
		"admin@barber.test": {ID: 1, Email: "admin@barber.test", PasswordHash: string(hash), Role: model.RoleAdmin, IsActive: true},
		"old@barber.test":   {ID: 2, Email: "old@barber.test", PasswordHash: string(hash), Role: model.RoleStaff, IsActive: false},
	}
	tokens := newMemTokens()
	h := NewAuthHandler(AuthSettings{JWTSecret: authSecret, AccessTTL: time.Minute, RefreshTTL: time.Hour}, users, tokens, nil)

	e := echo.New()
	e.POST("/v1/auth/login", h.Login)
	e.POST("/v1/auth/refresh", h.Refresh)
	auth := e.Group("", middleware.JWTAuth(authSecret))
	auth.POST("/v1/auth/logout", h.Logout)
	auth.GET("/v1/me", h.Me)
	return e, tokens
}

func do(e *echo.Echo, method, path, body, bearer string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func login(t *testing.T, e *echo.Echo) authResp {
	t.Helper()
	rec := do(e, http.MethodPost, "/v1/auth/login", `{"email":" Admin@Barber.test ","password":"s3cret-pass"}`, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("login: %d %s", rec.Code, rec.Body.String())
	}
	var resp authResp
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	return resp
}

func TestLogin(t *testing.T) {
	e, tokens := newAuth(t)
	resp := login(t, e)
	if resp.User.ID != 1 || resp.User.Role != model.RoleAdmin || resp.Refresh.Token == "" {
		t.Fatalf("resp = %+v", resp)
	}
	claims, err := utils.ParseAccessToken(authSecret, resp.Access.Token)
	if err != nil || claims.Role != model.RoleAdmin {
		t.Fatalf("access token: %v %+v", err, claims)
	}
	if tokens.live() != 1 {
		t.Fatal("refresh token not stored")
	}

	for _, body := range []string{
		`{"email":"admin@barber.test","password":"wrong"}`,
		`{"email":"nobody@barber.test","password":"s3cret-pass"}`,
		`{"email":"old@barber.test","password":"s3cret-pass"}`,
	} {
		if rec := do(e, http.MethodPost, "/v1/auth/login", body, ""); rec.Code != http.StatusUnauthorized {
			t.Errorf("%s: status %d", body, rec.Code)
		}
	}
	if rec := do(e, http.MethodPost, "/v1/auth/login", `{"email":""}`, ""); rec.Code != http.StatusBadRequest {
		t.Errorf("empty body: %d", rec.Code)
	}
}

func TestRefreshRotates(t *testing.T) {
	e, tokens := newAuth(t)
	first := login(t, e)

	body := `{"refresh_token":"` + first.Refresh.Token + `"}`
	rec := do(e, http.MethodPost, "/v1/auth/refresh", body, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("refresh: %d %s", rec.Code, rec.Body.String())
	}
	var second authResp
	_ = json.Unmarshal(rec.Body.Bytes(), &second)
	if second.Refresh.Token == first.Refresh.Token || tokens.live() != 1 {
		t.Fatal("refresh token not rotated")
	}
	if rec := do(e, http.MethodPost, "/v1/auth/refresh", body, ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("reused refresh token: %d", rec.Code)
	}
}

func TestLogoutAndMe(t *testing.T) {
	e, tokens := newAuth(t)
	a := login(t, e)
	login(t, e)

	rec := do(e, http.MethodGet, "/v1/me", "", a.Access.Token)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"email":"admin@barber.test"`) {
		t.Fatalf("me: %d %s", rec.Code, rec.Body.String())
	}
	if rec := do(e, http.MethodGet, "/v1/me", "", ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("me without token: %d", rec.Code)
	}

	rec = do(e, http.MethodPost, "/v1/auth/logout", `{"refresh_token":"`+a.Refresh.Token+`"}`, a.Access.Token)
	if rec.Code != http.StatusNoContent || tokens.live() != 1 {
		t.Fatalf("single logout: %d, live=%d", rec.Code, tokens.live())
	}

	rec = do(e, http.MethodPost, "/v1/auth/logout", ``, a.Access.Token)
	if rec.Code != http.StatusNoContent || tokens.live() != 0 {
		t.Fatalf("logout all: %d, live=%d", rec.Code, tokens.live())
	}
}
