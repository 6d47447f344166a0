package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/ticket-sales/internal/booking"
	"github.com/iliyamo/ticket-sales/internal/model"
	"github.com/iliyamo/ticket-sales/internal/repository"
)

// maxBatchSessions bounds GET /v1/availability.
const maxBatchSessions = 100

// AvailabilityHandler exposes availability snapshots.  Responses are
// computed on every request and never cached.
type AvailabilityHandler struct {
	Calc   *booking.Calculator
	Logger *slog.Logger
}

// NewAvailabilityHandler constructs an AvailabilityHandler.
func NewAvailabilityHandler(calc *booking.Calculator, logger *slog.Logger) *AvailabilityHandler {
	return &AvailabilityHandler{Calc: calc, Logger: orDiscard(logger)}
}

// Session handles GET /v1/sessions/:id/availability.
func (h *AvailabilityHandler) Session(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid session id"})
	}
	snap, err := h.Calc.ForSession(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "session not found"})
		}
		return internalError(c, h.Logger, "compute availability failed", err)
	}
	return c.JSON(http.StatusOK, snap)
}

// Batch handles GET /v1/availability?session_ids=1,2,3.  Unknown ids are
// included with "unknown": true instead of failing the request.
func (h *AvailabilityHandler) Batch(c echo.Context) error {
	ids, err := parseIDList(c.QueryParam("session_ids"))
	if err != nil || len(ids) == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "session_ids must be a comma separated list of ids"})
	}
	if len(ids) > maxBatchSessions {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "too many session ids"})
	}
	snaps, err := h.Calc.ComputeAvailability(c.Request().Context(), ids)
	if err != nil {
		return internalError(c, h.Logger, "compute availability failed", err)
	}
	out := make([]model.Snapshot, 0, len(snaps))
	seen := make(map[uint64]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, snaps[id])
	}
	return c.JSON(http.StatusOK, echo.Map{"sessions": out})
}
