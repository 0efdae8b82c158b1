package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/cinema-live-seats/internal/model"
)

// TicketValidator marks tickets as used at the hall entrance.
type TicketValidator interface {
	Validate(ctx context.Context, ticketID uint64) (*model.Ticket, error)
}

// TicketHandler serves staff ticket operations.
type TicketHandler struct {
	Tickets  TicketValidator
	Notifier Notifier
	Logger   *zap.Logger
}

func NewTicketHandler(tickets TicketValidator, notifier Notifier, logger *zap.Logger) *TicketHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TicketHandler{Tickets: tickets, Notifier: notifier, Logger: logger}
}

// Validate handles POST /api/tickets/:id/validate.  Only booked or paid
// tickets can be validated; anything else is 409.
func (h *TicketHandler) Validate(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid ticket id"})
	}
	t, err := h.Tickets.Validate(c.Request().Context(), id)
	if err != nil {
		return repoError(c, h.Logger, err)
	}
	h.Notifier.NotifyAsync(t.ShowingID)
	return c.JSON(http.StatusOK, t)
}
