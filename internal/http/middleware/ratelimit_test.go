package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func newLimitedRouter(rps float64, burst int) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(NewRateLimiter(rps, burst, KeyByUserOrIP()).Handler())
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })
	return r
}

func get(r *gin.Engine, ip string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.RemoteAddr = ip + ":12345"
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRateLimiter_BurstThenReject(t *testing.T) {
	r := newLimitedRouter(0, 2) // no refill, bucket of 2

	for i := 0; i < 2; i++ {
		if w := get(r, "10.0.0.1"); w.Code != http.StatusOK {
			t.Fatalf("request %d status = %d", i, w.Code)
		}
	}
	w := get(r, "10.0.0.1")
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", w.Code)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Fatalf("missing Retry-After header")
	}
}

func TestRateLimiter_BucketsAreIndependent(t *testing.T) {
	r := newLimitedRouter(0, 1)

	if w := get(r, "10.0.0.1"); w.Code != http.StatusOK {
		t.Fatalf("first client status = %d", w.Code)
	}
	if w := get(r, "10.0.0.1"); w.Code != http.StatusTooManyRequests {
		t.Fatalf("exhausted client status = %d", w.Code)
	}
	// A different client still has its own full bucket.
	if w := get(r, "10.0.0.2"); w.Code != http.StatusOK {
		t.Fatalf("second client status = %d", w.Code)
	}
}

func TestKeyByUserOrIP_PrefersUserIdentity(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

	fn := KeyByUserOrIP()
	if got := fn(c); got[:3] != "ip:" {
		t.Fatalf("anonymous key = %q, want ip prefix", got)
	}
	c.Set("userID", "u1")
	if got := fn(c); got != "user:u1" {
		t.Fatalf("key = %q, want user:u1", got)
	}
}
