package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/cinema-live-seats/internal/model"
	"github.com/iliyamo/cinema-live-seats/internal/seatstream"
)

// ShowingStore is the read side of the showing catalogue.
type ShowingStore interface {
	GetByID(ctx context.Context, id uint64) (*model.Showing, error)
	ListUpcoming(ctx context.Context, from time.Time, limit int) ([]model.Showing, error)
}

// ShowingHandler serves the public showing catalogue and one-shot seat
// snapshots for clients that cannot hold a stream open.
type ShowingHandler struct {
	Showings   ShowingStore
	SeatSource seatstream.SeatStatusSource
	Logger     *zap.Logger
}

func NewShowingHandler(showings ShowingStore, seats seatstream.SeatStatusSource, logger *zap.Logger) *ShowingHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ShowingHandler{Showings: showings, SeatSource: seats, Logger: logger}
}

// List handles GET /api/showings?limit=N.
func (h *ShowingHandler) List(c echo.Context) error {
	limit := 50
	if v := c.QueryParam("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 200 {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "limit must be between 1 and 200"})
		}
		limit = n
	}
	items, err := h.Showings.ListUpcoming(c.Request().Context(), time.Now(), limit)
	if err != nil {
		return repoError(c, h.Logger, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// Get handles GET /api/showings/:id.
func (h *ShowingHandler) Get(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid showing id"})
	}
	s, err := h.Showings.GetByID(c.Request().Context(), id)
	if err != nil {
		return repoError(c, h.Logger, err)
	}
	return c.JSON(http.StatusOK, s)
}

// Seats handles GET /api/showings/:id/seats: the same snapshot the stream
// pushes, as plain JSON.
func (h *ShowingHandler) Seats(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid showing id"})
	}
	ctx := c.Request().Context()
	if _, err := h.Showings.GetByID(ctx, id); err != nil {
		return repoError(c, h.Logger, err)
	}
	seats, err := h.SeatSource.SeatStatuses(ctx, id)
	if err != nil {
		return repoError(c, h.Logger, err)
	}
	if seats == nil {
		seats = []model.SeatStatus{}
	}
	return c.JSON(http.StatusOK, seats)
}
