package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/event-reservation-engine/internal/config"
)

const secret = "test-secret"

func signed(t *testing.T, method jwt.SigningMethod, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(method, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return s
}

func runJWT(t *testing.T, header string) (*httptest.ResponseRecorder, echo.Context) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/v1/reservations", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	h := JWTAuth(secret)(func(c echo.Context) error { return c.NoContent(http.StatusNoContent) })
	require.NoError(t, h(c))
	return rec, c
}

func TestJWTAuth(t *testing.T) {
	valid := signed(t, jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": float64(7), "role": "CUSTOMER", "exp": time.Now().Add(time.Hour).Unix(),
	})
	rec, c := runJWT(t, "Bearer "+valid)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, float64(7), c.Get("user_id"))
	assert.Equal(t, "CUSTOMER", c.Get("role"))

	cases := map[string]string{
		"missing header": "",
		"not bearer":     "Basic abc",
		"garbage":        "Bearer not.a.token",
		"expired": "Bearer " + signed(t, jwt.SigningMethodHS256, jwt.MapClaims{
			"sub": "7", "exp": time.Now().Add(-time.Hour).Unix(),
		}),
		"wrong hmac": "Bearer " + signed(t, jwt.SigningMethodHS512, jwt.MapClaims{"sub": "7"}),
		"no subject": "Bearer " + signed(t, jwt.SigningMethodHS256, jwt.MapClaims{"role": "CUSTOMER"}),
	}
	for name, header := range cases {
		t.Run(name, func(t *testing.T) {
			rec, _ := runJWT(t, header)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
		})
	}
}

func limiterConfig() config.RateLimitConfig {
	return config.RateLimitConfig{
		Enabled:        true,
		Capacity:       2,
		RefillTokens:   1,
		RefillInterval: 3 * time.Second,
		TTL:            time.Minute,
		KeyStrategy:    "user",
		Prefix:         "rl:reservations",
	}
}

func runLimiter(t *testing.T, mw echo.MiddlewareFunc) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/v1/reservations", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.Set("user_id", float64(7))
	h := mw(func(c echo.Context) error { return c.NoContent(http.StatusCreated) })
	require.NoError(t, h(c))
	return rec
}

func TestTokenBucket(t *testing.T) {
	fixed := time.UnixMilli(1_700_000_000_000)
	now = func() time.Time { return fixed }
	t.Cleanup(func() { now = time.Now })

	cfg := limiterConfig()
	key := "rl:reservations:user:7"
	args := []interface{}{fixed.UnixMilli(), cfg.Capacity, cfg.RefillTokens, cfg.RefillInterval.Milliseconds(), int64(60)}

	t.Run("allowed", func(t *testing.T) {
		rdb, mock := redismock.NewClientMock()
		mock.ExpectEvalSha(limiterScript.Hash(), []string{key}, args...).SetVal([]interface{}{int64(1), int64(1), int64(0)})
		log, _ := test.NewNullLogger()

		rec := runLimiter(t, NewTokenBucket(cfg, rdb, log))
		assert.Equal(t, http.StatusCreated, rec.Code)
		assert.Equal(t, "1", rec.Header().Get("X-RateLimit-Remaining"))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("blocked", func(t *testing.T) {
		rdb, mock := redismock.NewClientMock()
		mock.ExpectEvalSha(limiterScript.Hash(), []string{key}, args...).SetVal([]interface{}{int64(0), int64(0), int64(1500)})
		log, _ := test.NewNullLogger()

		rec := runLimiter(t, NewTokenBucket(cfg, rdb, log))
		assert.Equal(t, http.StatusTooManyRequests, rec.Code)
		assert.Equal(t, "2", rec.Header().Get("Retry-After"))
	})

	t.Run("redis error fails open", func(t *testing.T) {
		rdb, mock := redismock.NewClientMock()
		mock.ExpectEvalSha(limiterScript.Hash(), []string{key}, args...).SetErr(errors.New("connection refused"))
		log, hook := test.NewNullLogger()

		rec := runLimiter(t, NewTokenBucket(cfg, rdb, log))
		assert.Equal(t, http.StatusCreated, rec.Code)
		assert.Len(t, hook.AllEntries(), 1)
	})

	t.Run("disabled", func(t *testing.T) {
		off := cfg
		off.Enabled = false
		rec := runLimiter(t, NewTokenBucket(off, nil, nil))
		assert.Equal(t, http.StatusCreated, rec.Code)
		assert.Empty(t, rec.Header().Get("X-RateLimit-Limit"))
	})
}

func TestBuildRateKey(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/v1/reservations", nil)
	req.Header.Set(echo.HeaderXRealIP, "10.0.0.1")
	c := e.NewContext(req, httptest.NewRecorder())
	c.SetPath("/v1/reservations")

	cfg := limiterConfig()
	assert.Equal(t, "rl:reservations:user:anon", buildRateKey(cfg, c))

	c.Set("user_id", "42")
	cfg.KeyStrategy = "ip"
	assert.Equal(t, "rl:reservations:ip:10.0.0.1", buildRateKey(cfg, c))
	cfg.KeyStrategy = "ip_user"
	assert.Equal(t, "rl:reservations:ip:10.0.0.1:user:42", buildRateKey(cfg, c))
	cfg.KeyStrategy = "ip_user_route"
	assert.Equal(t, "rl:reservations:ip:10.0.0.1:user:42:route:POST /v1/reservations", buildRateKey(cfg, c))
}
