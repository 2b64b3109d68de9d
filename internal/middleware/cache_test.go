package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"

	"github.com/iliyamo/cinema-booking/internal/config"
)

func availabilityContext(e *echo.Echo, target string) echo.Context {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	c := e.NewContext(req, httptest.NewRecorder())
	// Echo resolves parameterized routes to their pattern; the cache key
	// must not use it or every showing shares one entry.
	c.SetPath("/v1/showings/:id/availability")
	return c
}

// Two showings behind the same parameterized route must never share a
// cache key; a guest asking for showing 2 must not see showing 1's seat
// map.
func TestCacheKeyDistinctPerShowing(t *testing.T) {
	e := echo.New()
	cfg := config.CacheConfig{Prefix: "availability", KeyStrategy: "route_query"}

	one := cacheKeyFrom(cfg, availabilityContext(e, "/v1/showings/1/availability"))
	two := cacheKeyFrom(cfg, availabilityContext(e, "/v1/showings/2/availability"))
	assert.NotEqual(t, one, two)

	// Repeat requests for the same showing keep hitting the same entry.
	oneAgain := cacheKeyFrom(cfg, availabilityContext(e, "/v1/showings/1/availability"))
	assert.Equal(t, one, oneAgain)
}

func TestCacheKeyIncludesQuery(t *testing.T) {
	e := echo.New()
	cfg := config.CacheConfig{Prefix: "availability", KeyStrategy: "route_query"}

	plain := cacheKeyFrom(cfg, availabilityContext(e, "/v1/showings/1/availability"))
	filtered := cacheKeyFrom(cfg, availabilityContext(e, "/v1/showings/1/availability?section=balcony"))
	assert.NotEqual(t, plain, filtered)
}

func TestBucketKeyStrategies(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/v1/showings/1/reservations", nil)
	c := e.NewContext(req, httptest.NewRecorder())
	c.SetPath("/v1/showings/:id/reservations")
	c.Set("user_id", "7")

	cfg := config.RateLimitConfig{Prefix: "rl", KeyStrategy: "user_route"}
	assert.Equal(t, "rl:user:7:route:POST /v1/showings/:id/reservations", bucketKey(cfg, c))

	cfg.KeyStrategy = "user"
	assert.Equal(t, "rl:user:7", bucketKey(cfg, c))

	// Unauthenticated callers collapse into the shared anon segment.
	anon := e.NewContext(httptest.NewRequest(http.MethodPost, "/v1/reservations", nil), httptest.NewRecorder())
	cfg.KeyStrategy = "user"
	assert.Equal(t, "rl:user:anon", bucketKey(cfg, anon))
}
