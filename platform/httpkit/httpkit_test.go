package httpkit

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"funnel_backend/platform/apperr"
	"funnel_backend/platform/logger"
	"funnel_backend/platform/metrics"
	"funnel_backend/platform/ratelimit"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestClientKeyResolutionOrder(t *testing.T) {
	cases := []struct {
		name    string
		headers map[string]string
		want    string
	}{
		{
			name: "real ip wins",
			headers: map[string]string{
				"X-Real-IP":              "10.0.0.1",
				"X-Vercel-Forwarded-For": "10.0.0.2",
				"X-Forwarded-For":        "10.0.0.3",
			},
			want: "10.0.0.1",
		},
		{
			name: "platform header before generic",
			headers: map[string]string{
				"X-Vercel-Forwarded-For": "10.0.0.2, 172.16.0.1",
				"X-Forwarded-For":        "10.0.0.3",
			},
			want: "10.0.0.2",
		},
		{
			name:    "first forwarded hop",
			headers: map[string]string{"X-Forwarded-For": " 203.0.113.9 , 10.0.0.3"},
			want:    "203.0.113.9",
		},
		{
			name: "unknown sentinel",
			want: "unknown",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			for k, v := range tc.headers {
				req.Header.Set(k, v)
			}
			if got := ClientKey(req); got != tc.want {
				t.Fatalf("ClientKey() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestHandleErrorMapsKinds(t *testing.T) {
	cases := []struct {
		err        error
		wantStatus int
		wantCode   string
		wantMsg    string
	}{
		{apperr.Validation("email is required"), http.StatusBadRequest, "validation_error", "email is required"},
		{apperr.NotFound("funnel not found"), http.StatusNotFound, "not_found", "funnel not found"},
		{apperr.Storage("could not save lead", errors.New("pq: duplicate key")), http.StatusInternalServerError, "storage_error", "could not save lead"},
		{errors.New("dial tcp 10.0.0.5:5432: connection refused"), http.StatusInternalServerError, "internal_error", "internal server error"},
	}

	for _, tc := range cases {
		rec := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(rec)

		if !HandleError(c, tc.err) {
			t.Fatalf("expected HandleError to report handled")
		}
		if rec.Code != tc.wantStatus {
			t.Fatalf("status = %d, want %d", rec.Code, tc.wantStatus)
		}

		var body ErrorResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if body.Code != tc.wantCode || body.Error != tc.wantMsg {
			t.Fatalf("body = %+v, want code %q message %q", body, tc.wantCode, tc.wantMsg)
		}
		if strings.Contains(rec.Body.String(), "duplicate key") || strings.Contains(rec.Body.String(), "10.0.0.5") {
			t.Fatalf("response leaked underlying error: %s", rec.Body.String())
		}
	}
}

type failingLimiter struct{}

func (failingLimiter) Allow(context.Context, string) (bool, error) {
	return false, errors.New("redis down")
}

func newLimitedEngine(limiter ratelimit.Limiter) *gin.Engine {
	engine := gin.New()
	engine.POST("/lead", RateLimit(limiter, logger.Discard(), metrics.NewNoop()), func(c *gin.Context) {
		c.Status(http.StatusCreated)
	})
	return engine
}

func TestRateLimitMiddlewareRefusesAfterLimit(t *testing.T) {
	engine := newLimitedEngine(ratelimit.NewWindowLimiter(2, time.Minute))

	send := func(ip string) int {
		req := httptest.NewRequest(http.MethodPost, "/lead", nil)
		req.Header.Set("X-Real-IP", ip)
		rec := httptest.NewRecorder()
		engine.ServeHTTP(rec, req)
		return rec.Code
	}

	if code := send("1.1.1.1"); code != http.StatusCreated {
		t.Fatalf("first request = %d", code)
	}
	if code := send("1.1.1.1"); code != http.StatusCreated {
		t.Fatalf("second request = %d", code)
	}
	if code := send("1.1.1.1"); code != http.StatusTooManyRequests {
		t.Fatalf("third request = %d, want 429", code)
	}
	if code := send("2.2.2.2"); code != http.StatusCreated {
		t.Fatalf("other client = %d", code)
	}
}

func TestRateLimitMiddlewareSkipsRequestsWithoutClientIP(t *testing.T) {
	engine := newLimitedEngine(ratelimit.NewWindowLimiter(5, time.Minute))

	for i := 0; i < 8; i++ {
		req := httptest.NewRequest(http.MethodPost, "/lead", nil)
		rec := httptest.NewRecorder()
		engine.ServeHTTP(rec, req)
		if rec.Code != http.StatusCreated {
			t.Fatalf("request %d without ip headers = %d, want 201", i+1, rec.Code)
		}
	}

	// Identified clients are still limited alongside the unlimited ones.
	for i := 0; i < 5; i++ {
		req := httptest.NewRequest(http.MethodPost, "/lead", nil)
		req.Header.Set("X-Real-IP", "3.3.3.3")
		engine.ServeHTTP(httptest.NewRecorder(), req)
	}
	req := httptest.NewRequest(http.MethodPost, "/lead", nil)
	req.Header.Set("X-Real-IP", "3.3.3.3")
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("identified client over limit = %d, want 429", rec.Code)
	}
}

func TestRateLimitMiddlewareFailsOpen(t *testing.T) {
	engine := newLimitedEngine(failingLimiter{})

	req := httptest.NewRequest(http.MethodPost, "/lead", nil)
	req.Header.Set("X-Real-IP", "4.4.4.4")
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected request through on limiter error, got %d", rec.Code)
	}
}

type jwtConfig struct{ secret string }

func (c jwtConfig) GetJWTAccessSecret() string { return c.secret }

func signToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return token
}

func TestAuthRequiredSetsIdentity(t *testing.T) {
	cfg := jwtConfig{secret: "test-secret"}
	owner := uuid.New()

	engine := gin.New()
	engine.GET("/me", AuthRequired(cfg), func(c *gin.Context) {
		id := MustGetIdentity(c)
		if id == nil {
			return
		}
		c.String(http.StatusOK, id.UserID().String())
	})

	cases := []struct {
		name       string
		header     string
		wantStatus int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"wrong secret", "Bearer " + signToken(t, "other", jwt.MapClaims{"sub": owner.String(), "type": "access"}), http.StatusUnauthorized},
		{"refresh token", "Bearer " + signToken(t, cfg.secret, jwt.MapClaims{"sub": owner.String(), "type": "refresh"}), http.StatusUnauthorized},
		{"valid", "Bearer " + signToken(t, cfg.secret, jwt.MapClaims{"sub": owner.String(), "type": "access", "exp": time.Now().Add(time.Hour).Unix()}), http.StatusOK},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			engine.ServeHTTP(rec, req)

			if rec.Code != tc.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tc.wantStatus)
			}
			if tc.wantStatus == http.StatusOK && rec.Body.String() != owner.String() {
				t.Fatalf("body = %q, want owner id", rec.Body.String())
			}
		})
	}
}

func TestRequestIDEchoesOrAssigns(t *testing.T) {
	engine := gin.New()
	engine.Use(RequestID())
	engine.GET("/", func(c *gin.Context) {
		id, _ := c.Request.Context().Value(logger.RequestIDKey).(string)
		c.String(http.StatusOK, id)
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderRequestID, "abc-123")
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	if rec.Body.String() != "abc-123" || rec.Header().Get(HeaderRequestID) != "abc-123" {
		t.Fatalf("expected propagated request id, got body %q", rec.Body.String())
	}

	rec = httptest.NewRecorder()
	engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if _, err := uuid.Parse(rec.Header().Get(HeaderRequestID)); err != nil {
		t.Fatalf("expected generated uuid request id, got %q", rec.Header().Get(HeaderRequestID))
	}
}
