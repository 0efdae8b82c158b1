package router // package router registers the API routes on an echo instance

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cinema-live-seats/internal/handler"
)

// RegisterRoutes registers routes that need neither authentication nor
// extra middleware.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
}

// RegisterPublic registers the guest-facing read endpoints.  cache wraps
// the catalogue routes; limit wraps the stream endpoint so a client cannot
// open streams in a tight loop.  Seat snapshots are never cached.
func RegisterPublic(e *echo.Echo, showings *handler.ShowingHandler, stream *handler.StreamHandler, cache, limit echo.MiddlewareFunc) {
	e.GET("/api/showings", showings.List, cache)
	e.GET("/api/showings/:id", showings.Get, cache)
	e.GET("/api/showings/:id/seats", showings.Seats)
	e.GET("/api/seats/:id/stream", stream.Stream, limit)
}
