package middleware

import (
	"encoding/base64"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/0xhank/casper/internal/infrastructure/config"
)

func token(t *testing.T, sub, iss, aud string, exp int64) string {
	t.Helper()
	header := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"RS256"}`))
	payload := base64.RawURLEncoding.EncodeToString([]byte(fmt.Sprintf(
		`{"sub":%q,"iss":%q,"aud":%q,"exp":%d}`, sub, iss, aud, exp,
	)))
	return header + "." + payload + ".sig"
}

func identityRequest(cfg config.AuthConfig, authorization string) (*httptest.ResponseRecorder, string) {
	gin.SetMode(gin.TestMode)
	router := gin.New()

	var entity string
	router.GET("/", Identity(cfg, "default"), func(c *gin.Context) {
		entity = Entity(c)
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w, entity
}

func TestIdentityDisabledUsesFallback(t *testing.T) {
	w, entity := identityRequest(config.AuthConfig{Enabled: false}, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "default", entity)
}

func TestIdentityAcceptsValidToken(t *testing.T) {
	cfg := config.AuthConfig{Enabled: true, Audience: "casper", Issuer: "https://issuer.example.com/"}
	tok := token(t, "user-42", cfg.Issuer, cfg.Audience, time.Now().Add(time.Hour).Unix())

	w, entity := identityRequest(cfg, "Bearer "+tok)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "user-42", entity)
}

func TestIdentityRejections(t *testing.T) {
	cfg := config.AuthConfig{Enabled: true, Audience: "casper", Issuer: "https://issuer.example.com/"}
	future := time.Now().Add(time.Hour).Unix()

	tests := []struct {
		name          string
		authorization string
	}{
		{"missing header", ""},
		{"not bearer", "Basic abc"},
		{"not a jwt", "Bearer nonsense"},
		{"expired", "Bearer " + token(t, "u", cfg.Issuer, cfg.Audience, time.Now().Add(-time.Minute).Unix())},
		{"wrong issuer", "Bearer " + token(t, "u", "https://other.example.com/", cfg.Audience, future)},
		{"wrong audience", "Bearer " + token(t, "u", cfg.Issuer, "other", future)},
		{"no subject", "Bearer " + token(t, "", cfg.Issuer, cfg.Audience, future)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, _ := identityRequest(cfg, tt.authorization)
			assert.Equal(t, http.StatusUnauthorized, w.Code)
		})
	}
}

func TestRateLimitBlocksAfterBurst(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/", RateLimit(config.RateLimitConfig{RequestsPerSecond: 1, Burst: 2, Enabled: true}), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		codes = append(codes, w.Code)
	}

	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}

func TestRateLimitEvictsIdleClients(t *testing.T) {
	gin.SetMode(gin.TestMode)

	now := time.Now()
	clock := func() time.Time { return now }

	router := gin.New()
	router.GET("/", rateLimit(config.RateLimitConfig{RequestsPerSecond: 1, Burst: 1, Enabled: true}, clock), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	do := func() int {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		return w.Code
	}

	// Exhaust the burst for this address.
	assert.Equal(t, http.StatusOK, do())
	assert.Equal(t, http.StatusTooManyRequests, do())

	// Past the idle TTL the entry is swept and the address gets a fresh
	// limiter with a full burst.
	now = now.Add(clientIdleTTL + sweepInterval)
	assert.Equal(t, http.StatusOK, do())
}
