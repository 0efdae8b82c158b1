package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/iliyamo/cinema-live-seats/internal/model"
	"github.com/iliyamo/cinema-live-seats/internal/seatclient"
)

var errGaveUp = errors.New(seatclient.FailedMessage)

var statusOrder = []model.TicketStatus{
	model.TicketReserved,
	model.TicketBooked,
	model.TicketPaid,
	model.TicketValidated,
	model.TicketCancelled,
}

func newWatchCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "watch <showingId>",
		Short: "Stream seat updates for a showing until interrupted",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			showingID, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil || showingID == 0 {
				return fmt.Errorf("invalid showing id %q", args[0])
			}
			logger := zap.NewNop()
			if v.GetBool(verboseKey) {
				if logger, err = zap.NewDevelopment(); err != nil {
					return err
				}
				defer func() { _ = logger.Sync() }()
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return watch(ctx, cmd.OutOrStdout(), v, showingID, logger)
		},
	}
}

// watch runs a subscription until ctx ends or the manager gives up.
func watch(ctx context.Context, out io.Writer, v *viper.Viper, showingID uint64, logger *zap.Logger) error {
	var (
		mu       sync.Mutex
		gaveUp   = make(chan struct{})
		gaveOnce sync.Once
	)
	printf := func(format string, a ...any) {
		mu.Lock()
		defer mu.Unlock()
		fmt.Fprintf(out, format, a...)
	}

	m := seatclient.NewManager(v.GetString(baseURLKey), showingID, seatclient.Options{
		MaxRetries:     v.GetInt(maxRetriesKey),
		BaseRetryDelay: v.GetDuration(baseRetryDelayKey),
		MaxRetryDelay:  v.GetDuration(maxRetryDelayKey),
		Logger:         logger,
		OnStatus: func(s seatclient.State) {
			if s.Error != "" {
				printf("status: %s (%s)\n", s.Status, s.Error)
			} else {
				printf("status: %s\n", s.Status)
			}
			if s.Status == seatclient.StatusFailed {
				gaveOnce.Do(func() { close(gaveUp) })
			}
		},
		OnUpdate: func(seats []model.SeatStatus) {
			printf("seats: %s\n", summarize(seats))
		},
	})

	m.Connect()
	defer m.Disconnect()

	select {
	case <-ctx.Done():
		return nil
	case <-gaveUp:
		return errGaveUp
	}
}

// summarize renders per-status counts, e.g. "total=3 reserved=1 paid=2".
// Statuses with no tickets are left out.
func summarize(seats []model.SeatStatus) string {
	counts := make(map[model.TicketStatus]int, len(statusOrder))
	for _, s := range seats {
		counts[s.Status]++
	}
	parts := []string{fmt.Sprintf("total=%d", len(seats))}
	for _, st := range statusOrder {
		if n := counts[st]; n > 0 {
			parts = append(parts, fmt.Sprintf("%s=%d", st, n))
			delete(counts, st)
		}
	}
	for st, n := range counts {
		parts = append(parts, fmt.Sprintf("%s=%d", st, n))
	}
	return strings.Join(parts, " ")
}
