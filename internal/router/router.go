package router // package router defines how HTTP routes are registered for the API

import (
	"database/sql"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/iliyamo/ticket-sales/internal/handler"
	"github.com/iliyamo/ticket-sales/internal/middleware"
)

// bookingBodyLimit caps POST /v1/bookings bodies.
const bookingBodyLimit = "16K"

// RegisterRoutes registers operational routes.  db may be nil, in which
// case the health check does not ping the database.
func RegisterRoutes(e *echo.Echo, db *sql.DB) {
	e.GET("/healthz", handler.Health(db))
}

// RegisterAuth registers authentication routes.  Token endpoints live
// under /v1/auth behind the given rate limiter; /v1/me requires a valid
// access token of any back-office role.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string, limit echo.MiddlewareFunc) {
	g := e.Group("/v1/auth", limit)
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)
	// refresh rotates the refresh token; refresh-access keeps it.
	g.POST("/refresh", a.Refresh)
	g.POST("/refresh-access", a.RefreshAccess)
	// Logout takes a refresh_token in the body, or a bearer token to
	// revoke every session of the user.
	g.POST("/logout", a.Logout)

	auth := e.Group("/v1",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(staffRoles...),
	)
	auth.GET("/me", a.Me)
}

// RegisterPublic registers the unauthenticated catalogue.  cache wraps
// the browse routes only; availability is always computed fresh.
func RegisterPublic(e *echo.Echo, p *handler.BrowseHandler, av *handler.AvailabilityHandler, cache echo.MiddlewareFunc) {
	e.GET("/v1/event-days", p.ListEventDays, cache)
	e.GET("/v1/event-days/:id/sessions", p.ListSessions, cache)

	e.GET("/v1/sessions/:id/availability", av.Session)
	e.GET("/v1/availability", av.Batch)
}

// RegisterBookings registers the public purchase flow.
func RegisterBookings(e *echo.Echo, b *handler.BookingHandler, limit echo.MiddlewareFunc) {
	e.POST("/v1/bookings", b.Create, echomw.BodyLimit(bookingBodyLimit), limit)
	e.GET("/v1/bookings/:ref", b.Get)
}
