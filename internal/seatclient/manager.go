// Package seatclient keeps a live subscription to one showing's seat
// stream, reconnecting with capped exponential backoff when it drops.
package seatclient

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/cinema-live-seats/internal/model"
)

// Status is the connection state reported by a Manager.
type Status string

const (
	StatusIdle         Status = "idle"
	StatusConnecting   Status = "connecting"
	StatusConnected    Status = "connected"
	StatusDisconnected Status = "disconnected"
	StatusError        Status = "error"
	StatusFailed       Status = "failed"
)

// FailedMessage is reported once retries are exhausted.
const FailedMessage = "connection failed after maximum retries, reconnect manually"

// State is a snapshot of the subscription's connection state.
type State struct {
	Status     Status `json:"status"`
	Error      string `json:"error,omitempty"`
	RetryCount int    `json:"retryCount"`
}

// Options configures a Manager.  Zero values take the defaults.
type Options struct {
	MaxRetries     int           // default 5
	BaseRetryDelay time.Duration // default 1s
	MaxRetryDelay  time.Duration // default 10s

	Dialer Dialer
	Logger *zap.Logger

	// OnUpdate receives every parsed seat snapshot.  Like OnStatus it runs
	// with the manager's lock held and must not call back into the Manager.
	OnUpdate func([]model.SeatStatus)
	// OnStatus receives every state transition.  It runs with the manager's
	// lock held and must not call back into the Manager.
	OnStatus func(State)
}

func (o *Options) setDefaults() {
	if o.MaxRetries <= 0 {
		o.MaxRetries = 5
	}
	if o.BaseRetryDelay <= 0 {
		o.BaseRetryDelay = time.Second
	}
	if o.MaxRetryDelay <= 0 {
		o.MaxRetryDelay = 10 * time.Second
	}
	if o.Dialer == nil {
		o.Dialer = HTTPDialer{}
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
}

type stopper interface {
	Stop() bool
}

// stream is the handle of one underlying connection attempt.  Handlers
// compare it to Manager.current and ignore events from stale handles.
type stream struct {
	cancel context.CancelFunc
}

// Manager maintains a single logical subscription to a showing's stream.
type Manager struct {
	url    string
	opts   Options
	logger *zap.Logger
	after  func(time.Duration, func()) stopper

	mu      sync.Mutex
	state   State
	current *stream
	timer   stopper
	gen     uint64
}

// NewManager builds a manager for the stream of showingID served under
// baseURL.  It stays idle until Connect.
func NewManager(baseURL string, showingID uint64, opts Options) *Manager {
	opts.setDefaults()
	return &Manager{
		url:    StreamURL(baseURL, showingID),
		opts:   opts,
		logger: opts.Logger.With(zap.Uint64("showing_id", showingID)),
		after: func(d time.Duration, f func()) stopper {
			return time.AfterFunc(d, f)
		},
		state: State{Status: StatusIdle},
	}
}

// StreamURL returns the stream endpoint for a showing.
func StreamURL(baseURL string, showingID uint64) string {
	return fmt.Sprintf("%s/api/seats/%d/stream", strings.TrimRight(baseURL, "/"), showingID)
}

// State returns the current connection state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Connect drops any existing stream or pending retry and opens a new one.
func (m *Manager) Connect() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connectLocked()
}

// Reconnect is Connect under a name that reads better at call sites that
// recover from the failed state.
func (m *Manager) Reconnect() { m.Connect() }

// Disconnect cancels a pending retry and closes the stream.  No callbacks
// fire for the old stream afterwards.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gen++
	m.teardownLocked()
	m.setStateLocked(State{Status: StatusDisconnected, RetryCount: m.state.RetryCount})
}

func (m *Manager) connectLocked() {
	m.gen++
	m.teardownLocked()

	ctx, cancel := context.WithCancel(context.Background())
	s := &stream{cancel: cancel}
	m.current = s
	m.setStateLocked(State{Status: StatusConnecting, Error: m.state.Error, RetryCount: m.state.RetryCount})

	go m.run(ctx, s)
}

func (m *Manager) teardownLocked() {
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	if m.current != nil {
		m.current.cancel()
		m.current = nil
	}
}

func (m *Manager) run(ctx context.Context, s *stream) {
	err := m.opts.Dialer.Stream(ctx, m.url,
		func() { m.handleOpen(s) },
		func(ev Event) { m.handleEvent(s, ev) },
	)
	if ctx.Err() != nil {
		return
	}
	m.handleError(s, err)
}

func (m *Manager) handleOpen(s *stream) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current != s {
		return
	}
	m.setStateLocked(State{Status: StatusConnected})
	m.logger.Info("seat stream connected")
}

func (m *Manager) handleEvent(s *stream, ev Event) {
	switch ev.Name {
	case "", "message", "seats":
	default:
		return
	}

	var seats []model.SeatStatus
	if err := json.Unmarshal([]byte(ev.Data), &seats); err != nil {
		m.logger.Warn("discarding malformed seat update", zap.String("event", ev.Name), zap.Error(err))
		return
	}

	// Held across the callback so no update is delivered once Disconnect
	// or a newer Connect has returned.
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current != s {
		return
	}
	if m.opts.OnUpdate != nil {
		m.opts.OnUpdate(seats)
	}
}

func (m *Manager) handleError(s *stream, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current != s {
		return
	}
	s.cancel()
	m.current = nil

	retries := m.state.RetryCount
	if retries >= m.opts.MaxRetries {
		m.logger.Error("seat stream failed", zap.Int("retries", retries), zap.Error(err))
		m.setStateLocked(State{Status: StatusFailed, Error: FailedMessage, RetryCount: retries})
		return
	}

	retries++
	delay := Backoff(retries, m.opts.BaseRetryDelay, m.opts.MaxRetryDelay)
	m.logger.Warn("seat stream lost", zap.Int("retry", retries), zap.Duration("delay", delay), zap.Error(err))
	m.setStateLocked(State{
		Status:     StatusError,
		Error:      fmt.Sprintf("connection lost, retrying in %s", delay),
		RetryCount: retries,
	})

	gen := m.gen
	m.timer = m.after(delay, func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if m.gen != gen {
			return
		}
		m.timer = nil
		m.connectLocked()
	})
}

func (m *Manager) setStateLocked(st State) {
	m.state = st
	if m.opts.OnStatus != nil {
		m.opts.OnStatus(st)
	}
}
