package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// BookingLogFile is the file, inside the consumer's log directory, that
// receives one line per confirmed booking.
const BookingLogFile = "booking.log"

// StartBookingConsumer consumes booking.confirmed until ctx is cancelled,
// appending each event to logDir/booking.log.  Broker outages are retried
// with doubling backoff up to 30s.  Malformed messages are rejected without
// requeue so they cannot loop.
func StartBookingConsumer(ctx context.Context, url, logDir string, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	backoff := time.Second
	for {
		conn, err := amqp.Dial(url)
		if err != nil {
			logger.Warn("broker dial failed", zap.Error(err), zap.Duration("retry_in", backoff))
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		err = consumeLoop(ctx, conn, logDir, logger)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		logger.Warn("consume loop ended, reconnecting", zap.Error(err))
		if !sleep(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func consumeLoop(ctx context.Context, conn *amqp.Connection, logDir string, logger *zap.Logger) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		logger.Warn("set QoS failed", zap.Error(err))
	}
	if _, err := ch.QueueDeclare(BookingConfirmedQueue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	msgs, err := ch.ConsumeWithContext(ctx, BookingConfirmedQueue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	logger.Info("booking consumer started", zap.String("queue", BookingConfirmedQueue))
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			if err := HandleMessage(logDir, d.Body); err != nil {
				logger.Error("booking message rejected", zap.Error(err))
				_ = d.Nack(false, false)
				continue
			}
			_ = d.Ack(false)
		}
	}
}

// HandleMessage decodes one booking.confirmed body and appends it to the
// booking log in logDir.
func HandleMessage(logDir string, body []byte) error {
	var ev BookingConfirmedEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	if ev.BookingID == 0 {
		return errors.New("event has no booking id")
	}
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return fmt.Errorf("mkdir logs: %w", err)
	}
	f, err := os.OpenFile(filepath.Join(logDir, BookingLogFile), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(FormatLogLine(ev)); err != nil {
		return fmt.Errorf("write log: %w", err)
	}
	return nil
}

// FormatLogLine renders ev as one newline-terminated log line.
func FormatLogLine(ev BookingConfirmedEvent) string {
	seats := make([]string, len(ev.SeatIDs))
	for i, id := range ev.SeatIDs {
		seats[i] = strconv.FormatUint(id, 10)
	}
	payment := ev.PaymentRef
	if payment == "" {
		payment = "-"
	}
	return fmt.Sprintf("[%s] Booking confirmed | booking_id=%d | user_id=%s | showing_id=%d | film=%q | hall=%q | starts_at=%s | payment=%s | seats=[%s]\n",
		ev.ConfirmedAt, ev.BookingID, ev.UserID, ev.ShowingID, ev.FilmTitle, ev.HallName, ev.StartsAt, payment, strings.Join(seats, ","))
}
