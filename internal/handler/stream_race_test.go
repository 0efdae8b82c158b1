package handler_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/iliyamo/cinema-live-seats/internal/handler"
	"github.com/iliyamo/cinema-live-seats/internal/model"
	"github.com/iliyamo/cinema-live-seats/internal/seatstream"
)

// slotThief fills the showing's last slot while the new stream is being
// bootstrapped, after the admission check already passed.
type slotThief struct {
	registry *seatstream.Registry
}

func (s slotThief) SeatStatuses(_ context.Context, showingID uint64) ([]model.SeatStatus, error) {
	_ = s.registry.Subscribe(showingID, seatstream.NewConnection(httptest.NewRecorder()))
	return nil, nil
}

func TestStream_LostSlotAfterAdmission(t *testing.T) {
	cfg := streamConfig()
	cfg.MaxClientsPerShowing = 1
	registry := seatstream.NewRegistry(cfg, nil)
	t.Cleanup(registry.Close)
	dispatcher := seatstream.NewDispatcher(registry, slotThief{registry: registry}, nil)

	core, logs := observer.New(zapcore.InfoLevel)
	h := handler.NewStreamHandler(registry, dispatcher, zap.New(core))

	e := echo.New()
	e.GET("/api/seats/:id/stream", h.Stream)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/seats/5/stream", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	require.True(t, strings.HasSuffix(body, ": "+seatstream.ErrTooManyConnections.Error()+"\n\n"), body)
	assert.Contains(t, body, "event: seats\ndata: []\n\n")
	assert.Equal(t, 1, registry.Count(5))

	rejected := logs.FilterMessage("stream rejected after open").All()
	require.Len(t, rejected, 1)
	assert.Equal(t, zapcore.WarnLevel, rejected[0].Level)
}
