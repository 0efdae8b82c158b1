package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/cinema-live-seats/internal/middleware"
	"github.com/iliyamo/cinema-live-seats/internal/repository"
)

// Notifier is the seat-stream hook every ticket mutation calls after commit.
type Notifier interface {
	NotifyAsync(showingID uint64)
}

// parseID reads a positive numeric path parameter.
func parseID(c echo.Context, name string) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return id, true
}

// getUserID returns the authenticated user id placed in the context by
// middleware.JWTAuth.
func getUserID(c echo.Context) (string, error) {
	if id := middleware.UserID(c); id != "" {
		return id, nil
	}
	return "", errors.New("invalid user_id in context")
}

// repoError maps repository sentinels onto HTTP responses.  Unknown errors
// are logged and reported as 500.
func repoError(c echo.Context, logger *zap.Logger, err error) error {
	var taken *repository.SeatsTakenError
	switch {
	case errors.As(err, &taken):
		return c.JSON(http.StatusConflict, echo.Map{"error": "seats unavailable", "seat_ids": taken.SeatIDs})
	case errors.Is(err, repository.ErrShowingNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "showing not found"})
	case errors.Is(err, repository.ErrNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "not found"})
	case errors.Is(err, repository.ErrForbidden):
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	case errors.Is(err, repository.ErrConflict):
		return c.JSON(http.StatusConflict, echo.Map{"error": "conflict"})
	}
	logger.Error("request failed",
		zap.String("method", c.Request().Method),
		zap.String("path", c.Path()),
		zap.Error(err))
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
}
