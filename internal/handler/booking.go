package handler

import (
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

// BookingHandler serves the public purchase flow.
type BookingHandler struct {
	Bookings *booking.Service
	Logger   *slog.Logger
}

// NewBookingHandler constructs a BookingHandler.
func NewBookingHandler(svc *booking.Service, logger *slog.Logger) *BookingHandler {
	if svc == nil {
		panic("nil booking service passed to NewBookingHandler")
	}
	return &BookingHandler{Bookings: svc, Logger: orDiscard(logger)}
}

type purchaserReq struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
	Email string `json:"email"`
}

type createBookingReq struct {
	SessionID       uint64       `json:"session_id"`
	AdultQuantity   int          `json:"adult_quantity"`
	StudentQuantity int          `json:"student_quantity"`
	ChildQuantity   int          `json:"child_quantity"`
	PurchaserInfo   purchaserReq `json:"purchaser_info"`
}

// bookingView is the public representation of a booking.
type bookingView struct {
	BookingRef string         `json:"booking_ref"`
	Status     string         `json:"status"`
	SessionID  uint64         `json:"session_id"`
	ExpiresAt  *time.Time     `json:"expires_at,omitempty"`
	Quantities model.Counts   `json:"quantities"`
	Tickets    []model.Ticket `json:"tickets"`
}

// rejectionBody is returned for every refused reservation.
type rejectionBody struct {
	Error        string           `json:"error"`
	Reasons      []booking.Reason `json:"reasons"`
	Availability *model.Snapshot  `json:"availability,omitempty"`
}

// newBookingView summarises tickets sharing one booking reference.  The
// booking status is ACTIVE if any ticket is paid, PENDING if any still
// awaits payment, and CANCELLED otherwise.
func newBookingView(tickets []model.Ticket) bookingView {
	v := bookingView{Tickets: tickets, Status: string(model.TicketCancelled)}
	if len(tickets) == 0 {
		return v
	}
	v.BookingRef = tickets[0].BookingRef
	v.SessionID = tickets[0].SessionID
	hasActive, hasPending := false, false
	for _, t := range tickets {
		switch t.Status {
		case model.TicketActive:
			hasActive = true
		case model.TicketPending:
			hasPending = true
			if v.ExpiresAt == nil || (t.ExpiresAt != nil && t.ExpiresAt.Before(*v.ExpiresAt)) {
				v.ExpiresAt = t.ExpiresAt
			}
		}
		if t.Status != model.TicketCancelled {
			v.Quantities.Set(t.Category, v.Quantities.Get(t.Category)+t.Quantity)
		}
	}
	switch {
	case hasActive:
		v.Status = string(model.TicketActive)
	case hasPending:
		v.Status = string(model.TicketPending)
	}
	return v
}

// Create handles POST /v1/bookings.  The body is decoded strictly:
// unknown fields and non-integer quantities are rejected with 400.
// Quantity checks come first so that an empty request is reported as
// EmptyRequest whatever the rest of the body holds.
func (h *BookingHandler) Create(c echo.Context) error {
	var req createBookingReq
	if err := bindStrict(c, &req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body", "detail": err.Error()})
	}
	q := model.Counts{Adult: req.AdultQuantity, Student: req.StudentQuantity, Child: req.ChildQuantity}
	if d := booking.CheckRequest(q); !d.Accepted {
		return c.JSON(http.StatusBadRequest, rejectionBody{Error: "rejected", Reasons: d.Reasons})
	}
	if req.SessionID == 0 {
		// No session carries id 0, so an omitted id is an unknown session.
		return c.JSON(http.StatusNotFound, rejectionBody{Error: "rejected", Reasons: []booking.Reason{booking.ReasonSessionNotFound}})
	}
	p := model.Purchaser{
		Name:  strings.TrimSpace(req.PurchaserInfo.Name),
		Phone: strings.TrimSpace(req.PurchaserInfo.Phone),
		Email: strings.ToLower(strings.TrimSpace(req.PurchaserInfo.Email)),
	}
	if p.Name == "" || p.Phone == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "purchaser_info.name and purchaser_info.phone are required"})
	}

	res, err := h.Bookings.Reserve(c.Request().Context(), booking.Request{SessionID: req.SessionID, Quantities: q, Purchaser: p})
	if err != nil {
		if errors.Is(err, booking.ErrUnavailable) {
			c.Response().Header().Set("Retry-After", "1")
			return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "Unavailable", "message": "booking is busy, try again"})
		}
		return internalError(c, h.Logger, "reserve failed", err)
	}
	if d := res.Decision; !d.Accepted {
		status := http.StatusConflict
		switch {
		case d.Has(booking.ReasonSessionNotFound):
			status = http.StatusNotFound
		case d.IsValidationFailure():
			status = http.StatusBadRequest
		}
		return c.JSON(status, rejectionBody{Error: "rejected", Reasons: d.Reasons, Availability: d.Availability})
	}
	return c.JSON(http.StatusCreated, newBookingView(res.Tickets))
}

// Get handles GET /v1/bookings/:ref.
func (h *BookingHandler) Get(c echo.Context) error {
	ref := strings.TrimSpace(c.Param("ref"))
	if ref == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid booking reference"})
	}
	tickets, err := h.Bookings.Lookup(c.Request().Context(), ref)
	if err != nil {
		if errors.Is(err, repository.ErrBookingNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "booking not found"})
		}
		return internalError(c, h.Logger, "lookup booking failed", err)
	}
	return c.JSON(http.StatusOK, newBookingView(tickets))
}
