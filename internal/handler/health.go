package handler // HTTP handlers for the seat stream, showings, bookings and tickets

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// Health is a liveness check for load balancers.  It answers "ok" with 200.
func Health(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}
