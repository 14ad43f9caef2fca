package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newEngine(rl *RateLimiter) *gin.Engine {
	r := gin.New()
	r.Use(UserMiddleware(), rl.Limit())
	r.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, UserID(c))
	})
	return r
}

func get(r http.Handler, userID string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.10:4000"
	if userID != "" {
		req.Header.Set(HeaderUserID, userID)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestUserMiddleware(t *testing.T) {
	r := newEngine(NewRateLimiter(0, 0))

	w := get(r, " user-1 ")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "user-1", w.Body.String())

	w = get(r, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Body.String())
}

func TestRateLimitPerClient(t *testing.T) {
	r := newEngine(NewRateLimiter(0.001, 2))

	assert.Equal(t, http.StatusOK, get(r, "").Code)
	assert.Equal(t, http.StatusOK, get(r, "").Code)
	assert.Equal(t, http.StatusTooManyRequests, get(r, "").Code)

	// A signed-in caller behind the same address has its own bucket.
	assert.Equal(t, http.StatusOK, get(r, "user-1").Code)
	assert.Equal(t, http.StatusOK, get(r, "user-1").Code)
	assert.Equal(t, http.StatusTooManyRequests, get(r, "user-1").Code)
	assert.Equal(t, http.StatusOK, get(r, "user-2").Code)
}

func TestRateLimitDisabled(t *testing.T) {
	r := newEngine(NewRateLimiter(0, 1))
	for i := 0; i < 10; i++ {
		assert.Equal(t, http.StatusOK, get(r, "").Code)
	}
}

func TestCleanup(t *testing.T) {
	at := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(1, 1)
	rl.now = func() time.Time { return at }

	rl.getClientLimiter("ip:a")
	at = at.Add(20 * time.Minute)
	rl.getClientLimiter("ip:b")
	at = at.Add(15 * time.Minute)

	assert.Equal(t, 1, rl.Cleanup(30*time.Minute))
	assert.Len(t, rl.clients, 1)
	assert.Contains(t, rl.clients, "ip:b")
}
