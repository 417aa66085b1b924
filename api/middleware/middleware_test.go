package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/13g7895123/stock.warrant/config"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func request(r *gin.Engine, headers map[string]string) int {
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w.Code
}

func TestAuth(t *testing.T) {
	r := gin.New()
	r.Use(Auth([]string{"k1", "", "k2"}))
	r.GET("/x", func(c *gin.Context) { c.String(http.StatusOK, c.GetString(apiKeyContextKey)) })

	tests := []struct {
		name    string
		headers map[string]string
		want    int
	}{
		{"no key", nil, http.StatusUnauthorized},
		{"header key", map[string]string{"X-API-Key": "k1"}, http.StatusOK},
		{"bearer key", map[string]string{"Authorization": "Bearer k2"}, http.StatusOK},
		{"wrong key", map[string]string{"X-API-Key": "nope"}, http.StatusUnauthorized},
		{"basic auth ignored", map[string]string{"Authorization": "Basic azE="}, http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, request(r, tt.headers))
		})
	}
}

func TestAuth_NoKeysIsOpen(t *testing.T) {
	r := gin.New()
	r.Use(Auth(nil))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	assert.Equal(t, http.StatusOK, request(r, nil))
}

func TestRateLimit_PerIdentity(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	r := gin.New()
	r.Use(Auth([]string{"a", "b"}))
	r.Use(RateLimit(ctx, config.RateLimitConfig{RequestsPerSecond: 0.001, Burst: 2}))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	keyA := map[string]string{"X-API-Key": "a"}
	assert.Equal(t, http.StatusOK, request(r, keyA))
	assert.Equal(t, http.StatusOK, request(r, keyA))
	assert.Equal(t, http.StatusTooManyRequests, request(r, keyA))

	assert.Equal(t, http.StatusOK, request(r, map[string]string{"X-API-Key": "b"}))
}
