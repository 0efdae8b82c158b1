package main // Entry point: HTTP API, seat stream, reservation sweeper and booking log consumer

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/iliyamo/cinema-live-seats/internal/config"
	"github.com/iliyamo/cinema-live-seats/internal/database"
	"github.com/iliyamo/cinema-live-seats/internal/handler"
	"github.com/iliyamo/cinema-live-seats/internal/middleware"
	"github.com/iliyamo/cinema-live-seats/internal/queue"
	"github.com/iliyamo/cinema-live-seats/internal/repository"
	"github.com/iliyamo/cinema-live-seats/internal/router"
	"github.com/iliyamo/cinema-live-seats/internal/seatstream"
	"github.com/iliyamo/cinema-live-seats/internal/service"
	"github.com/iliyamo/cinema-live-seats/internal/sweeper"
)

func main() {
	// A missing .env is fine; the environment may already be populated.
	_ = godotenv.Load()

	cfg := config.Load()
	logger, err := newLogger(cfg)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	db, err := database.Open(cfg)
	if err != nil {
		logger.Fatal("database", zap.String("driver", cfg.DBDriver), zap.Error(err))
	}
	defer db.Close()

	rdb := config.NewRedisClient()
	if rdb == nil {
		logger.Warn("redis unavailable; rate limiting and caching disabled")
	} else {
		defer rdb.Close()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	showings := repository.NewShowingRepo(db)
	bookings := repository.NewBookingRepo(db, cfg.DBDriver)
	tickets := repository.NewTicketRepo(db)

	registry := seatstream.NewRegistry(config.LoadStreamConfig(), logger.Named("registry"))
	dispatcher := seatstream.NewDispatcher(registry, tickets, logger.Named("dispatcher"))

	go sweeper.New(tickets, dispatcher, config.LoadSweeperConfig(), logger.Named("sweeper")).Run(ctx)
	go func() {
		if err := queue.StartBookingConsumer(ctx, cfg.RabbitMQURL, "logs", logger.Named("consumer")); err != nil {
			logger.Error("booking consumer stopped", zap.Error(err))
		}
	}()

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(requestLogger(logger.Named("http")))

	limit := middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb, logger.Named("ratelimit"))
	cache := middleware.NewRedisCache(config.LoadCacheConfig(), rdb, logger.Named("cache"))
	publisher := service.NewBookingPublisher(cfg.RabbitMQURL, logger.Named("publisher"))

	router.RegisterRoutes(e)
	router.RegisterPublic(e,
		handler.NewShowingHandler(showings, tickets, logger.Named("showings")),
		handler.NewStreamHandler(registry, dispatcher, logger.Named("stream")),
		cache, limit)
	router.RegisterCustomer(e,
		handler.NewBookingHandler(bookings, showings, dispatcher, publisher, logger.Named("bookings")),
		cfg.JWTSecret, limit)
	router.RegisterAdmin(e,
		handler.NewTicketHandler(tickets, dispatcher, logger.Named("tickets")),
		cfg.JWTSecret)

	addr := ":" + cfg.Port
	go func() {
		logger.Info("listening", zap.String("addr", addr), zap.String("env", cfg.Env))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("http server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	// Streams never finish on their own, so they are evicted before the
	// server waits for in-flight requests.
	registry.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown", zap.Error(err))
	}
	dispatcher.Wait()
}

func newLogger(cfg config.Config) (*zap.Logger, error) {
	if cfg.IsDev() {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// requestLogger writes one access log line per request through zap.
func requestLogger(logger *zap.Logger) echo.MiddlewareFunc {
	return echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogMethod:   true,
		LogURI:      true,
		LogStatus:   true,
		LogLatency:  true,
		LogRemoteIP: true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(_ echo.Context, v echomw.RequestLoggerValues) error {
			fields := []zap.Field{
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency),
				zap.String("remote_ip", v.RemoteIP),
			}
			if v.Error != nil {
				logger.Warn("request", append(fields, zap.Error(v.Error))...)
				return nil
			}
			logger.Info("request", fields...)
			return nil
		},
	})
}
