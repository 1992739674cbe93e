package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/barbershop-booking/internal/config"
	"github.com/iliyamo/barbershop-booking/internal/logger"
	"github.com/iliyamo/barbershop-booking/internal/model"
	"github.com/iliyamo/barbershop-booking/internal/utils"
)

const secret = "test-secret"

func bearer(t *testing.T, id uint64, role string) string {
	t.Helper()
	tok, err := utils.NewAccessToken(secret, id, role, time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	return "Bearer " + tok.Token
}

func protected() *echo.Echo {
	e := echo.New()
	g := e.Group("/admin", JWTAuth(secret), RequireRole(model.RoleAdmin))
	g.GET("/whoami", func(c echo.Context) error {
		id, ok := UserID(c)
		if !ok {
			return c.NoContent(http.StatusInternalServerError)
		}
		return c.JSON(http.StatusOK, echo.Map{"id": id, "role": c.Get("role")})
	})
	return e
}

func TestJWTAuthAndRole(t *testing.T) {
	e := protected()
	cases := []struct {
		name   string
		auth   string
		status int
		code   string
	}{
		{"no header", "", http.StatusUnauthorized, "missing_token"},
		{"not bearer", "Basic abc", http.StatusUnauthorized, "missing_token"},
		{"bad token", "Bearer nope", http.StatusUnauthorized, "invalid_token"},
		{"wrong role", bearer(t, 3, model.RoleStaff), http.StatusForbidden, "forbidden"},
		{"admin", bearer(t, 3, model.RoleAdmin), http.StatusOK, ""},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, "/admin/whoami", nil)
		if tc.auth != "" {
			req.Header.Set("Authorization", tc.auth)
		}
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		if rec.Code != tc.status {
			t.Errorf("%s: status %d, want %d (%s)", tc.name, rec.Code, tc.status, rec.Body.String())
		}
		if tc.status == http.StatusOK {
			if !strings.Contains(rec.Body.String(), `"id":3`) {
				t.Errorf("%s: body %s", tc.name, rec.Body.String())
			}
			continue
		}
		var body struct {
			Errors map[string]struct {
				Code    string `json:"code"`
				Message string `json:"message"`
			} `json:"errors"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Fatalf("%s: decode %s: %v", tc.name, rec.Body.String(), err)
		}
		if got := body.Errors["auth"]; got.Code != tc.code || got.Message == "" {
			t.Errorf("%s: errors.auth = %+v, want code %q", tc.name, got, tc.code)
		}
	}
}

func TestRequestIDAndAccessLog(t *testing.T) {
	var buf bytes.Buffer
	log := logger.New(&buf)

	e := echo.New()
	e.Use(RequestID(), AccessLog(log))
	var seen string
	e.GET("/ping", func(c echo.Context) error {
		seen = logger.RequestID(c.Request().Context())
		return c.String(http.StatusTeapot, "pong")
	})

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if seen != "abc-123" || rec.Header().Get(RequestIDHeader) != "abc-123" {
		t.Fatalf("request id: ctx=%q header=%q", seen, rec.Header().Get(RequestIDHeader))
	}
	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log line: %v (%s)", err, buf.String())
	}
	if entry["request_id"] != "abc-123" || entry["status"] != float64(http.StatusTeapot) || entry["path"] != "/ping" {
		t.Fatalf("entry = %v", entry)
	}

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))
	if len(rec.Header().Get(RequestIDHeader)) != 36 {
		t.Fatalf("generated id = %q", rec.Header().Get(RequestIDHeader))
	}
}

func TestBuildRateKey(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/v1/appointments", nil)
	req.Header.Set(echo.HeaderXRealIP, "203.0.113.9")
	c := e.NewContext(req, httptest.NewRecorder())
	c.SetPath("/v1/appointments")

	booking := config.RateLimitConfig{Prefix: "rl", KeyStrategy: "ip_user_route"}.Booking()
	if got, want := buildRateKey(booking, c), "rl:booking:ip:203.0.113.9:route:POST /v1/appointments"; got != want {
		t.Fatalf("key = %q, want %q", got, want)
	}

	c.Set("user_id", uint64(9))
	general := config.RateLimitConfig{Prefix: "rl", KeyStrategy: "ip_user"}
	if got, want := buildRateKey(general, c), "rl:ip:203.0.113.9:user:9"; got != want {
		t.Fatalf("key = %q, want %q", got, want)
	}
}

func TestCacheKeyIncludesParamsAndQuery(t *testing.T) {
	e := echo.New()
	cfg := config.CacheConfig{Prefix: "booking:cache", KeyStrategy: "route_query"}
	key := func(target, id string) string {
		c := e.NewContext(httptest.NewRequest(http.MethodGet, target, nil), httptest.NewRecorder())
		c.SetPath("/v1/services/:id")
		c.SetParamNames("id")
		c.SetParamValues(id)
		return cacheKeyFrom(cfg, c)
	}
	a, b, q := key("/v1/services/1", "1"), key("/v1/services/2", "2"), key("/v1/services/1?x=1", "1")
	if a == b || a == q {
		t.Fatalf("keys collide: %s %s %s", a, b, q)
	}
	if !strings.HasPrefix(a, "booking:cache:") || a != key("/v1/services/1", "1") {
		t.Fatalf("unstable key %s", a)
	}
}

func TestPayloadRoundTrip(t *testing.T) {
	hdr := http.Header{"Content-Type": {"application/json"}}
	bs, err := encodePayload(http.StatusOK, hdr, []byte(`{"ok":true}`))
	if err != nil {
		t.Fatal(err)
	}
	status, got, body, ok := decodePayload(bs)
	if !ok || status != http.StatusOK || got.Get("Content-Type") != "application/json" || string(body) != `{"ok":true}` {
		t.Fatalf("decode = %d %v %q %v", status, got, body, ok)
	}
	for _, bad := range []string{`{"s":200`, `{"b":"e30="}`, ``} {
		if _, _, _, ok := decodePayload([]byte(bad)); ok {
			t.Errorf("decodePayload(%q) accepted", bad)
		}
	}
}

func TestCaptureWriterLimit(t *testing.T) {
	rec := httptest.NewRecorder()
	cw := &captureWriter{ResponseWriter: rec, status: http.StatusOK, limit: 4}
	_, _ = cw.Write([]byte("abc"))
	_, _ = cw.Write([]byte("defg"))
	if cw.buf.String() != "abcd" || cw.size != 7 || rec.Body.String() != "abcdefg" {
		t.Fatalf("buf=%q size=%d body=%q", cw.buf.String(), cw.size, rec.Body.String())
	}
}

func TestDisabledRedisMiddlewaresPassThrough(t *testing.T) {
	log := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	e := echo.New()
	e.Use(
		NewTokenBucket(config.RateLimitConfig{Enabled: true}, nil, log),
		NewRedisCache(config.CacheConfig{Enabled: true}, nil),
		InvalidateCache(config.CacheConfig{Enabled: true}, nil, log),
	)
	e.POST("/x", func(c echo.Context) error { return c.NoContent(http.StatusCreated) })
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/x", nil))
	if rec.Code != http.StatusCreated {
		t.Fatalf("status %d", rec.Code)
	}
	if n, err := PurgeCache(context.Background(), nil, "p"); n != 0 || err != nil {
		t.Fatalf("PurgeCache(nil) = %d, %v", n, err)
	}
}

func TestUnknownKeyStrategyUsesAllParts(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/v1/services", nil)
	req.Header.Set(echo.HeaderXRealIP, "198.51.100.4")
	c := e.NewContext(req, httptest.NewRecorder())
	c.SetPath("/v1/services")

	cfg := config.RateLimitConfig{Prefix: "rl", KeyStrategy: "ip_bogus"}
	if got, want := buildRateKey(cfg, c), "rl:ip:198.51.100.4:user:anon:route:GET /v1/services"; got != want {
		t.Fatalf("key = %q, want %q", got, want)
	}
}

func TestParseBucketReply(t *testing.T) {
	r, err := parseBucketReply([]any{int64(0), int64(0), int64(1500)})
	if err != nil || r.Allowed || r.RetryIn != 1500*time.Millisecond {
		t.Fatalf("reply = %+v, %v", r, err)
	}
	r, err = parseBucketReply([]any{int64(1), "4", int64(0)})
	if err != nil || !r.Allowed || r.Remaining != 4 {
		t.Fatalf("reply = %+v, %v", r, err)
	}
	for _, bad := range []any{nil, []any{int64(1)}, []any{int64(1), 2.5, int64(0)}} {
		if _, err := parseBucketReply(bad); err == nil {
			t.Errorf("parseBucketReply(%#v) accepted", bad)
		}
	}
}
