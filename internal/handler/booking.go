package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/cinema-live-seats/internal/model"
	"github.com/iliyamo/cinema-live-seats/internal/queue"
)

// BookingStore runs the booking flows.  Implemented by repository.BookingRepo.
type BookingStore interface {
	Reserve(ctx context.Context, showingID uint64, userID string, seatIDs []uint64) (*model.Booking, error)
	Complete(ctx context.Context, bookingID uint64, userID string, paymentRef *string) (*model.Booking, error)
	Cancel(ctx context.Context, bookingID uint64, userID string) (*model.Booking, error)
	ListByUser(ctx context.Context, userID string) ([]model.Booking, error)
}

// BookingEventPublisher sends booking.confirmed events.
type BookingEventPublisher interface {
	PublishBookingConfirmed(ctx context.Context, event queue.BookingConfirmedEvent) error
}

// BookingHandler serves the customer booking endpoints.  Every successful
// mutation notifies the seat stream of the affected showing.
type BookingHandler struct {
	Bookings  BookingStore
	Showings  ShowingStore
	Notifier  Notifier
	Publisher BookingEventPublisher // optional
	Logger    *zap.Logger

	publishTimeout time.Duration
}

func NewBookingHandler(bookings BookingStore, showings ShowingStore, notifier Notifier, publisher BookingEventPublisher, logger *zap.Logger) *BookingHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BookingHandler{
		Bookings:       bookings,
		Showings:       showings,
		Notifier:       notifier,
		Publisher:      publisher,
		Logger:         logger,
		publishTimeout: 10 * time.Second,
	}
}

// Reserve handles POST /api/showings/:id/reservations.  Body:
// {"seat_ids":[1,2]}.  The seats stay reserved until checkout completes or
// the sweeper expires them.
func (h *BookingHandler) Reserve(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	showingID, ok := parseID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid showing id"})
	}
	var body struct {
		SeatIDs []uint64 `json:"seat_ids"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	valid := 0
	for _, id := range body.SeatIDs {
		if id != 0 {
			valid++
		}
	}
	if valid == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "seat_ids is required"})
	}

	b, err := h.Bookings.Reserve(c.Request().Context(), showingID, userID, body.SeatIDs)
	if err != nil {
		return repoError(c, h.Logger, err)
	}
	h.Notifier.NotifyAsync(b.ShowingID)
	return c.JSON(http.StatusCreated, b)
}

// Complete handles POST /api/bookings/:id/complete.  Body (optional):
// {"payment_ref":"..."}.  Tickets become paid with a payment reference and
// booked without one.
func (h *BookingHandler) Complete(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	bookingID, ok := parseID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid booking id"})
	}
	var body struct {
		PaymentRef *string `json:"payment_ref"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}

	b, err := h.Bookings.Complete(c.Request().Context(), bookingID, userID, body.PaymentRef)
	if err != nil {
		return repoError(c, h.Logger, err)
	}
	h.Notifier.NotifyAsync(b.ShowingID)
	h.publishConfirmed(*b)
	return c.JSON(http.StatusOK, b)
}

// Cancel handles DELETE /api/bookings/:id.
func (h *BookingHandler) Cancel(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	bookingID, ok := parseID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid booking id"})
	}
	b, err := h.Bookings.Cancel(c.Request().Context(), bookingID, userID)
	if err != nil {
		return repoError(c, h.Logger, err)
	}
	h.Notifier.NotifyAsync(b.ShowingID)
	return c.JSON(http.StatusOK, b)
}

// ListMine handles GET /api/my-bookings.
func (h *BookingHandler) ListMine(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	items, err := h.Bookings.ListByUser(c.Request().Context(), userID)
	if err != nil {
		return repoError(c, h.Logger, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// publishConfirmed emits booking.confirmed in the background.  A broker
// outage never fails the checkout.
func (h *BookingHandler) publishConfirmed(b model.Booking) {
	if h.Publisher == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), h.publishTimeout)
		defer cancel()

		ev := queue.BookingConfirmedEvent{
			BookingID:   b.ID,
			UserID:      b.UserID,
			ShowingID:   b.ShowingID,
			SeatIDs:     b.SeatIDs,
			ConfirmedAt: time.Now().UTC().Format(time.RFC3339),
		}
		if b.PaymentRef != nil {
			ev.PaymentRef = *b.PaymentRef
		}
		if s, err := h.Showings.GetByID(ctx, b.ShowingID); err == nil {
			ev.FilmTitle = s.FilmTitle
			ev.HallName = s.HallName
			ev.StartsAt = s.StartsAt.UTC().Format(time.RFC3339)
		} else {
			h.Logger.Warn("showing lookup for booking event failed", zap.Uint64("booking_id", b.ID), zap.Error(err))
		}
		_ = h.Publisher.PublishBookingConfirmed(ctx, ev)
	}()
}
