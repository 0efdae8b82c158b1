package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cinema-live-seats/internal/handler"
	"github.com/iliyamo/cinema-live-seats/internal/middleware"
)

// RegisterCustomer registers the booking endpoints.  All routes require a
// valid JWT with the CUSTOMER role; limit is applied after authentication
// so the rate key can include the user id.
func RegisterCustomer(e *echo.Echo, h *handler.BookingHandler, jwtSecret string, limit echo.MiddlewareFunc) {
	g := e.Group(
		"/api",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(middleware.RoleCustomer),
	)
	g.POST("/showings/:id/reservations", h.Reserve, limit)
	g.POST("/bookings/:id/complete", h.Complete, limit)
	g.DELETE("/bookings/:id", h.Cancel, limit)
	g.GET("/my-bookings", h.ListMine)
}
