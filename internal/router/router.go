package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4" // Echo web framework used for routing
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/cinema-booking/internal/config"
	"github.com/iliyamo/cinema-booking/internal/handler"
	"github.com/iliyamo/cinema-booking/internal/middleware"
)

// RegisterRoutes registers routes that do not require authentication on the
// provided Echo instance.  Currently it exposes only a health check, used by
// load balancers and monitoring systems to verify the service is up.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
}

// RegisterBooking wires the booking handler onto the Echo instance.
//
// The public availability view lives outside the JWT group so guests can
// inspect a showing before logging in; it is the only read that benefits
// from response caching, so the Redis cache middleware is applied to it
// directly.  Everything that creates or mutates reservations requires a
// valid access token (the ownership guard needs the acting user id) and
// sits behind the token-bucket rate limiter to blunt booking storms on
// popular showings.
func RegisterBooking(e *echo.Echo, h *handler.BookingHandler, jwtSecret string, rdb *redis.Client) {
	cacheCfg := config.LoadCacheConfig()
	rateCfg := config.LoadRateLimitConfig()

	// Public seat-map/availability view, cached for a short TTL.
	e.GET("/v1/showings/:id/availability", h.GetAvailability, middleware.NewRedisCache(cacheCfg, rdb))

	auth := e.Group("/v1")
	auth.Use(middleware.JWTAuth(jwtSecret))
	// Tokens are issued by the external auth service; any customer or
	// admin may book, and Refund additionally checks for ADMIN itself.
	auth.Use(middleware.RequireRole("CUSTOMER", "ADMIN"))
	auth.Use(middleware.NewTokenBucket(rateCfg, rdb))

	// Availability check with a concrete seat selection / ticket count.
	auth.POST("/showings/:id/availability", h.CheckAvailability)
	// Reservation lifecycle. create -> pay | cancel; pay -> refund.
	auth.POST("/showings/:id/reservations", h.CreateReservation)
	auth.POST("/reservations/:id/pay", h.MarkPaid)
	auth.POST("/reservations/:id/cancel", h.Cancel)
	auth.POST("/reservations/:id/refund", h.Refund)
	auth.GET("/reservations", h.ListReservations)
	auth.GET("/reservations/:id", h.GetReservation)
}
