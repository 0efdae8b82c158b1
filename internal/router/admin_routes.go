package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cinema-live-seats/internal/handler"
	"github.com/iliyamo/cinema-live-seats/internal/middleware"
)

// RegisterAdmin registers staff endpoints; they require the ADMIN role.
func RegisterAdmin(e *echo.Echo, h *handler.TicketHandler, jwtSecret string) {
	g := e.Group(
		"/api",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(middleware.RoleAdmin),
	)
	g.POST("/tickets/:id/validate", h.Validate)
}
