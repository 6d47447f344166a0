package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/ticket-sales/internal/booking"
	"github.com/iliyamo/ticket-sales/internal/model"
	"github.com/iliyamo/ticket-sales/internal/repository"
)

const dateLayout = "2006-01-02"

// Sweeper runs one expiry sweep on demand.
type Sweeper interface {
	RunOnce(ctx context.Context) (int, error)
}

// AdminHandler serves the back-office endpoints.  Read endpoints are
// open to STAFF, mutations to ADMIN; the router enforces the roles.
type AdminHandler struct {
	Days     *repository.EventDayRepo
	Sessions *repository.SessionRepo
	Tickets  *repository.TicketRepo
	Bookings *booking.Service
	Reaper   Sweeper
	Logger   *slog.Logger
}

// NewAdminHandler constructs an AdminHandler.  reaper may be nil, in
// which case POST /v1/admin/reap sweeps through the booking service
// directly.
func NewAdminHandler(days *repository.EventDayRepo, sessions *repository.SessionRepo, tickets *repository.TicketRepo,
	svc *booking.Service, reaper Sweeper, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{Days: days, Sessions: sessions, Tickets: tickets, Bookings: svc, Reaper: reaper, Logger: orDiscard(logger)}
}

type createEventDayReq struct {
	EventDate string `json:"event_date"` // 2006-01-02
	Title     string `json:"title"`
}

type limitsReq struct {
	Adult   *int `json:"adult"`
	Student *int `json:"student"`
	Child   *int `json:"child"`
}

// merge applies the supplied fields over base.
func (l limitsReq) merge(base model.Counts) model.Counts {
	if l.Adult != nil {
		base.Adult = *l.Adult
	}
	if l.Student != nil {
		base.Student = *l.Student
	}
	if l.Child != nil {
		base.Child = *l.Child
	}
	return base
}

type createSessionReq struct {
	EventDayID uint64    `json:"event_day_id"`
	StartsAt   string    `json:"starts_at"` // RFC3339
	Limits     limitsReq `json:"limits"`
	IsActive   *bool     `json:"is_active"`
}

type updateSessionReq struct {
	Limits   *limitsReq `json:"limits"`
	IsActive *bool      `json:"is_active"`
}

// ListSessions handles GET /v1/admin/sessions and returns full ledger rows.
func (h *AdminHandler) ListSessions(c echo.Context) error {
	sessions, err := h.Sessions.List(c.Request().Context())
	if err != nil {
		return internalError(c, h.Logger, "list sessions failed", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": sessions})
}

// SessionTickets handles GET /v1/admin/sessions/:id/tickets.
func (h *AdminHandler) SessionTickets(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid session id"})
	}
	ctx := c.Request().Context()
	if _, err := h.Sessions.GetByID(ctx, id); err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "session not found"})
		}
		return internalError(c, h.Logger, "load session failed", err)
	}
	tickets, err := h.Tickets.ListBySession(ctx, id)
	if err != nil {
		return internalError(c, h.Logger, "list tickets failed", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": tickets})
}

// CreateEventDay handles POST /v1/admin/event-days.
func (h *AdminHandler) CreateEventDay(c echo.Context) error {
	var req createEventDayReq
	if err := bindStrict(c, &req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	date, err := time.Parse(dateLayout, strings.TrimSpace(req.EventDate))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "event_date must be YYYY-MM-DD"})
	}
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "title is required"})
	}
	day := model.EventDay{EventDate: date, Title: title}
	if err := h.Days.Create(c.Request().Context(), &day); err != nil {
		return internalError(c, h.Logger, "create event day failed", err)
	}
	return c.JSON(http.StatusCreated, day)
}

// CreateSession handles POST /v1/admin/sessions.  Sessions open for
// sales unless is_active is false.
func (h *AdminHandler) CreateSession(c echo.Context) error {
	var req createSessionReq
	if err := bindStrict(c, &req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if req.EventDayID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "event_day_id is required"})
	}
	startsAt, err := time.Parse(time.RFC3339, strings.TrimSpace(req.StartsAt))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "starts_at must be RFC3339"})
	}
	limits := req.Limits.merge(model.Counts{})
	if limits.AnyNegative() {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "limits must be non-negative"})
	}
	s := model.Session{EventDayID: req.EventDayID, StartsAt: startsAt.UTC(), Limits: limits, IsActive: true}
	if req.IsActive != nil {
		s.IsActive = *req.IsActive
	}
	if err := h.Sessions.Create(c.Request().Context(), &s); err != nil {
		if errors.Is(err, repository.ErrEventDayNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "event day not found"})
		}
		return internalError(c, h.Logger, "create session failed", err)
	}
	return c.JSON(http.StatusCreated, s)
}

// UpdateSession handles PATCH /v1/admin/sessions/:id.  Omitted limit
// fields keep their current value.  Limits below what is already sold
// are refused with 409; is_active then stays as it was.
func (h *AdminHandler) UpdateSession(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid session id"})
	}
	var req updateSessionReq
	if err := bindStrict(c, &req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if req.Limits == nil && req.IsActive == nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "nothing to update"})
	}
	ctx := c.Request().Context()
	cur, err := h.Sessions.GetByID(ctx, id)
	if err != nil {
		return h.sessionError(c, err, "load session failed")
	}
	var limits *model.Counts
	if req.Limits != nil {
		merged := req.Limits.merge(cur.Limits)
		if merged.AnyNegative() {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "limits must be non-negative"})
		}
		limits = &merged
	}
	s, err := h.Sessions.Update(ctx, id, limits, req.IsActive)
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return c.JSON(http.StatusConflict, echo.Map{"error": "limit below tickets already sold", "sold": cur.Sold})
		}
		return h.sessionError(c, err, "update session failed")
	}
	h.Logger.InfoContext(ctx, "session updated", "session_id", id, "limits", s.Limits, "is_active", s.IsActive)
	return c.JSON(http.StatusOK, s)
}

// DeleteSession handles DELETE /v1/admin/sessions/:id.  Sessions that
// have tickets are kept and 409 is returned.
func (h *AdminHandler) DeleteSession(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid session id"})
	}
	if err := h.Sessions.Delete(c.Request().Context(), id); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return c.JSON(http.StatusConflict, echo.Map{"error": "session has tickets; close it instead"})
		}
		return h.sessionError(c, err, "delete session failed")
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *AdminHandler) sessionError(c echo.Context, err error, msg string) error {
	if errors.Is(err, repository.ErrSessionNotFound) {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "session not found"})
	}
	return internalError(c, h.Logger, msg, err)
}

// bookingError maps lifecycle errors shared by the booking actions.
func (h *AdminHandler) bookingError(c echo.Context, err error, msg string) error {
	switch {
	case errors.Is(err, repository.ErrBookingNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "booking not found"})
	case errors.Is(err, repository.ErrTicketNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "ticket not found"})
	case errors.Is(err, booking.ErrNotPayable):
		return c.JSON(http.StatusConflict, echo.Map{"error": err.Error()})
	case errors.Is(err, booking.ErrUnavailable):
		c.Response().Header().Set("Retry-After", "1")
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "Unavailable", "message": "booking is busy, try again"})
	}
	return internalError(c, h.Logger, msg, err)
}

// PayBooking handles POST /v1/admin/bookings/:ref/pay.  Payment itself
// happens elsewhere; this records that it succeeded.
func (h *AdminHandler) PayBooking(c echo.Context) error {
	ref := strings.TrimSpace(c.Param("ref"))
	tickets, err := h.Bookings.Pay(c.Request().Context(), ref)
	if err != nil {
		return h.bookingError(c, err, "pay booking failed")
	}
	return c.JSON(http.StatusOK, newBookingView(tickets))
}

// CancelBooking handles POST /v1/admin/bookings/:ref/cancel.
func (h *AdminHandler) CancelBooking(c echo.Context) error {
	ref := strings.TrimSpace(c.Param("ref"))
	tickets, err := h.Bookings.Cancel(c.Request().Context(), ref)
	if err != nil {
		return h.bookingError(c, err, "cancel booking failed")
	}
	return c.JSON(http.StatusOK, newBookingView(tickets))
}

// CancelTicket handles POST /v1/admin/tickets/:id/cancel.
func (h *AdminHandler) CancelTicket(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid ticket id"})
	}
	t, err := h.Bookings.CancelTicket(c.Request().Context(), id)
	if err != nil {
		return h.bookingError(c, err, "cancel ticket failed")
	}
	return c.JSON(http.StatusOK, t)
}

// Reap handles POST /v1/admin/reap.
func (h *AdminHandler) Reap(c echo.Context) error {
	ctx := c.Request().Context()
	var n int
	var err error
	if h.Reaper != nil {
		n, err = h.Reaper.RunOnce(ctx)
	} else {
		n, err = h.Bookings.SweepExpired(ctx)
	}
	if err != nil {
		return internalError(c, h.Logger, "sweep failed", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"expired": n})
}
