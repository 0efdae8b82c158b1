package handler_test

import (
	"bufio"
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/cinema-live-seats/internal/config"
	"github.com/iliyamo/cinema-live-seats/internal/database"
	"github.com/iliyamo/cinema-live-seats/internal/handler"
	"github.com/iliyamo/cinema-live-seats/internal/model"
	"github.com/iliyamo/cinema-live-seats/internal/queue"
	"github.com/iliyamo/cinema-live-seats/internal/repository"
	"github.com/iliyamo/cinema-live-seats/internal/router"
	"github.com/iliyamo/cinema-live-seats/internal/seatstream"
	"github.com/iliyamo/cinema-live-seats/internal/utils"
)

const jwtSecret = "handler-test-secret"

type recordingNotifier struct {
	mu  sync.Mutex
	ids []uint64
}

func (n *recordingNotifier) NotifyAsync(id uint64) {
	n.mu.Lock()
	n.ids = append(n.ids, id)
	n.mu.Unlock()
}

func (n *recordingNotifier) calls() []uint64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]uint64(nil), n.ids...)
}

type fakePublisher struct {
	events chan queue.BookingConfirmedEvent
}

func (p *fakePublisher) PublishBookingConfirmed(_ context.Context, ev queue.BookingConfirmedEvent) error {
	p.events <- ev
	return nil
}

type testEnv struct {
	db         *sql.DB
	srv        *httptest.Server
	registry   *seatstream.Registry
	dispatcher *seatstream.Dispatcher
	showings   *repository.ShowingRepo
	bookings   *repository.BookingRepo
	tickets    *repository.TicketRepo
	publisher  *fakePublisher
}

// newEnv wires the real repositories, registry and router against an
// in-memory database.  A nil notifier uses the dispatcher.
func newEnv(t *testing.T, cfg config.StreamConfig, notifier handler.Notifier) *testEnv {
	t.Helper()
	db, err := database.OpenSQLite(":memory:")
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db, "sqlite"))

	env := &testEnv{
		db:        db,
		showings:  repository.NewShowingRepo(db),
		bookings:  repository.NewBookingRepo(db, "sqlite"),
		tickets:   repository.NewTicketRepo(db),
		publisher: &fakePublisher{events: make(chan queue.BookingConfirmedEvent, 4)},
	}
	env.registry = seatstream.NewRegistry(cfg, nil)
	env.dispatcher = seatstream.NewDispatcher(env.registry, env.tickets, nil)
	if notifier == nil {
		notifier = env.dispatcher
	}

	noop := func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	e := echo.New()
	router.RegisterRoutes(e)
	router.RegisterPublic(e,
		handler.NewShowingHandler(env.showings, env.tickets, nil),
		handler.NewStreamHandler(env.registry, env.dispatcher, nil),
		noop, noop)
	router.RegisterCustomer(e, handler.NewBookingHandler(env.bookings, env.showings, notifier, env.publisher, nil), jwtSecret, noop)
	router.RegisterAdmin(e, handler.NewTicketHandler(env.tickets, notifier, nil), jwtSecret)

	env.srv = httptest.NewServer(e)
	t.Cleanup(func() {
		env.registry.Close()
		env.srv.Close()
		env.dispatcher.Wait()
		_ = db.Close()
	})
	return env
}

func streamConfig() config.StreamConfig {
	cfg := config.DefaultStreamConfig()
	cfg.KeepAliveInterval = time.Hour
	cfg.NotifyTimeout = 2 * time.Second
	return cfg
}

func (env *testEnv) seedShowing(t *testing.T) *model.Showing {
	t.Helper()
	s := &model.Showing{FilmTitle: "Solaris", HallName: "Hall 3", StartsAt: time.Now().Add(48 * time.Hour)}
	require.NoError(t, env.showings.Create(context.Background(), s))
	return s
}

func token(t *testing.T, sub, role string) string {
	t.Helper()
	tok, err := utils.NewAccessToken(jwtSecret, sub, role, time.Hour)
	require.NoError(t, err)
	return tok.Token
}

func (env *testEnv) do(t *testing.T, method, path, tok, body string) (int, string) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, env.srv.URL+path, r)
	require.NoError(t, err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(data)
}

// sseClient reads an event stream line by line.
type sseClient struct {
	resp   *http.Response
	cancel context.CancelFunc
	lines  chan string
}

func (env *testEnv) openStream(t *testing.T, showing string) *sseClient {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, env.srv.URL+"/api/seats/"+showing+"/stream", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)

	c := &sseClient{resp: resp, cancel: cancel, lines: make(chan string, 64)}
	go func() {
		defer close(c.lines)
		br := bufio.NewReader(resp.Body)
		for {
			line, err := br.ReadString('\n')
			if err != nil {
				return
			}
			c.lines <- strings.TrimRight(line, "\n")
		}
	}()
	t.Cleanup(c.close)
	return c
}

func (c *sseClient) close() {
	c.cancel()
	_ = c.resp.Body.Close()
}

func (c *sseClient) next(t *testing.T) string {
	t.Helper()
	select {
	case line, ok := <-c.lines:
		require.True(t, ok, "stream closed")
		return line
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for stream line")
		return ""
	}
}

// nextSeats skips to the next "seats" event and decodes its payload.
func (c *sseClient) nextSeats(t *testing.T) []model.SeatStatus {
	t.Helper()
	for {
		if c.next(t) != "event: seats" {
			continue
		}
		data := c.next(t)
		require.True(t, strings.HasPrefix(data, "data: "), data)
		var seats []model.SeatStatus
		require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(data, "data: ")), &seats))
		assert.Equal(t, "", c.next(t))
		return seats
	}
}
