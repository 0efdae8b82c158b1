package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/cinema-live-seats/internal/seatstream"
)

// StreamHandler serves the live seat-status event stream.
type StreamHandler struct {
	Registry   *seatstream.Registry
	Dispatcher *seatstream.Dispatcher
	Logger     *zap.Logger
}

func NewStreamHandler(reg *seatstream.Registry, d *seatstream.Dispatcher, logger *zap.Logger) *StreamHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StreamHandler{Registry: reg, Dispatcher: d, Logger: logger}
}

// Stream handles GET /api/seats/:id/stream.
//
// The response is text/event-stream: a retry hint and a keep-alive comment,
// then the current snapshot, then a "seats" event after every change to the
// showing's tickets.  The request stays open until the client goes away or
// the registry evicts the connection.  A showing at capacity gets 503
// before any stream bytes are written.
func (h *StreamHandler) Stream(c echo.Context) error {
	showingID, ok := parseID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid showing id"})
	}
	if !h.Registry.CanAdmit(showingID) {
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "too many connections for this showing"})
	}

	res := c.Response()
	hdr := res.Header()
	hdr.Set(echo.HeaderContentType, "text/event-stream")
	hdr.Set(echo.HeaderCacheControl, "no-cache, no-transform")
	hdr.Set(echo.HeaderConnection, "keep-alive")
	hdr.Set("X-Accel-Buffering", "no")
	res.WriteHeader(http.StatusOK)

	conn := seatstream.NewConnection(res)
	defer conn.Close()
	log := h.Logger.With(zap.Uint64("showing_id", showingID), zap.String("connection_id", conn.ID()))

	hello := append(seatstream.EncodeRetry(h.Registry.Config().RetryInterval), seatstream.EncodeComment("keep-alive")...)
	if err := conn.Send(hello); err != nil {
		return nil
	}

	ctx := c.Request().Context()
	if err := h.Dispatcher.Bootstrap(ctx, showingID, conn); err != nil {
		log.Debug("bootstrap write failed", zap.Error(err))
		return nil
	}
	if err := h.Registry.Subscribe(showingID, conn); err != nil {
		// Another client took the last slot after the admission check.
		log.Warn("stream rejected after open", zap.Error(err))
		_ = conn.Send(seatstream.EncodeComment(err.Error()))
		return nil
	}
	defer h.Registry.Unsubscribe(showingID, conn)

	select {
	case <-ctx.Done():
	case <-conn.Done():
	}
	return nil
}
