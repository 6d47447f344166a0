package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/ticket-sales/internal/model"
	"github.com/iliyamo/ticket-sales/internal/repository"
)

// BrowseHandler serves the unauthenticated catalogue.  Responses omit
// internal fields such as sold counts and timestamps.
type BrowseHandler struct {
	Days     *repository.EventDayRepo
	Sessions *repository.SessionRepo
	Logger   *slog.Logger
}

// NewBrowseHandler constructs a BrowseHandler.
func NewBrowseHandler(days *repository.EventDayRepo, sessions *repository.SessionRepo, logger *slog.Logger) *BrowseHandler {
	return &BrowseHandler{Days: days, Sessions: sessions, Logger: orDiscard(logger)}
}

// PublicEventDay is an event day as exposed to guests.
type PublicEventDay struct {
	ID        uint64 `json:"id"`
	EventDate string `json:"event_date"`
	Title     string `json:"title"`
}

// PublicSession is a session as exposed to guests.  Remaining is a hint
// only; the authoritative check happens when booking.
type PublicSession struct {
	ID        uint64       `json:"id"`
	StartsAt  time.Time    `json:"starts_at"`
	IsActive  bool         `json:"is_active"`
	SoldOut   bool         `json:"sold_out"`
	Remaining model.Counts `json:"remaining"`
}

func publicDay(d model.EventDay) PublicEventDay {
	return PublicEventDay{ID: d.ID, EventDate: d.EventDate.Format(dateLayout), Title: d.Title}
}

// ListEventDays handles GET /v1/event-days.
func (h *BrowseHandler) ListEventDays(c echo.Context) error {
	days, err := h.Days.List(c.Request().Context())
	if err != nil {
		return internalError(c, h.Logger, "list event days failed", err)
	}
	out := make([]PublicEventDay, 0, len(days))
	for _, d := range days {
		out = append(out, publicDay(d))
	}
	return c.JSON(http.StatusOK, echo.Map{"items": out})
}

// ListSessions handles GET /v1/event-days/:id/sessions.
func (h *BrowseHandler) ListSessions(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid event day id"})
	}
	ctx := c.Request().Context()
	day, err := h.Days.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrEventDayNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "event day not found"})
		}
		return internalError(c, h.Logger, "load event day failed", err)
	}
	sessions, err := h.Sessions.ListByEventDay(ctx, id)
	if err != nil {
		return internalError(c, h.Logger, "list sessions failed", err)
	}
	out := make([]PublicSession, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, PublicSession{
			ID:        s.ID,
			StartsAt:  s.StartsAt.UTC(),
			IsActive:  s.IsActive,
			SoldOut:   s.SoldOut,
			Remaining: s.Remaining(),
		})
	}
	return c.JSON(http.StatusOK, echo.Map{"event_day": publicDay(*day), "items": out})
}
