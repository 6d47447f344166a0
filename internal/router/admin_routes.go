package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/ticket-sales/internal/handler"
	"github.com/iliyamo/ticket-sales/internal/middleware"
	"github.com/iliyamo/ticket-sales/internal/model"
)

var staffRoles = []string{model.RoleStaff, model.RoleAdmin}

// RegisterAdmin registers back-office endpoints under /v1/admin.  Every
// route requires a valid JWT; reads accept STAFF and ADMIN, mutations
// ADMIN only.
func RegisterAdmin(e *echo.Echo, h *handler.AdminHandler, jwtSecret string) {
	g := e.Group(
		"/v1/admin",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(staffRoles...),
	)

	// ---- Reads ----
	g.GET("/sessions", h.ListSessions)
	g.GET("/sessions/:id/tickets", h.SessionTickets)

	admin := g.Group("", middleware.RequireRole(model.RoleAdmin))

	// ---- Catalogue ----
	admin.POST("/event-days", h.CreateEventDay)
	admin.POST("/sessions", h.CreateSession)
	admin.PATCH("/sessions/:id", h.UpdateSession)
	admin.DELETE("/sessions/:id", h.DeleteSession)

	// ---- Bookings ----
	admin.POST("/bookings/:ref/pay", h.PayBooking)
	admin.POST("/bookings/:ref/cancel", h.CancelBooking)
	admin.POST("/tickets/:id/cancel", h.CancelTicket)

	// ---- Maintenance ----
	admin.POST("/reap", h.Reap)
}
