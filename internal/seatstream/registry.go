package seatstream

import (
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/cinema-live-seats/internal/config"
)

var (
	// ErrTooManyConnections is returned by Subscribe when the showing is at capacity.
	ErrTooManyConnections = errors.New("too many connections for showing")
	// ErrRegistryClosed is returned by Subscribe after Close.
	ErrRegistryClosed = errors.New("registry closed")
)

// pingComment is the body of the keep-alive comment frame.
const pingComment = "ping"

// Registry maps showing ids to the set of connections streaming that
// showing.  A showing appears only while it has at least one subscriber.
//
// All registry state lives in one process; every mutation goes through a
// single mutex.  Running several server processes needs a shared broadcast
// bus in front of Notify.
type Registry struct {
	cfg    config.StreamConfig
	logger *zap.Logger
	now    func() time.Time

	mu       sync.Mutex
	showings map[uint64]map[*Connection]struct{}
	closed   bool
}

// NewRegistry builds an empty registry.  A nil logger disables logging.
func NewRegistry(cfg config.StreamConfig, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
		showings: make(map[uint64]map[*Connection]struct{}),
	}
}

// Config returns the stream settings the registry was built with.
func (r *Registry) Config() config.StreamConfig { return r.cfg }

// Subscribe adds conn to the showing's subscriber set and arms its
// keep-alive timer.  At capacity it fails with ErrTooManyConnections and
// leaves the registry untouched.
func (r *Registry) Subscribe(showingID uint64, conn *Connection) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrRegistryClosed
	}
	set := r.showings[showingID]
	if _, ok := set[conn]; ok {
		return nil
	}
	if len(set) >= r.cfg.MaxClientsPerShowing {
		return ErrTooManyConnections
	}
	if set == nil {
		set = make(map[*Connection]struct{})
		r.showings[showingID] = set
	}
	set[conn] = struct{}{}
	conn.keepAlive = time.AfterFunc(r.cfg.KeepAliveInterval, func() { r.keepAlive(showingID, conn) })

	r.logger.Debug("subscriber added",
		zap.Uint64("showing_id", showingID),
		zap.String("connection_id", conn.ID()),
		zap.Int("subscribers", len(set)))
	return nil
}

// Unsubscribe removes conn from the showing, stops its keep-alive timer and
// closes it.  Removing a connection that is not subscribed does nothing.
func (r *Registry) Unsubscribe(showingID uint64, conn *Connection) {
	r.mu.Lock()
	set, ok := r.showings[showingID]
	if ok {
		_, ok = set[conn]
	}
	if !ok {
		r.mu.Unlock()
		return
	}
	delete(set, conn)
	remaining := len(set)
	if remaining == 0 {
		delete(r.showings, showingID)
	}
	if conn.keepAlive != nil {
		conn.keepAlive.Stop()
		conn.keepAlive = nil
	}
	r.mu.Unlock()

	conn.Close()
	r.logger.Debug("subscriber removed",
		zap.Uint64("showing_id", showingID),
		zap.String("connection_id", conn.ID()),
		zap.Int("subscribers", remaining))
}

// ForEachSubscriber calls fn for every connection subscribed to the
// showing when the call starts.  fn runs without the registry lock held,
// so it may call Unsubscribe.
func (r *Registry) ForEachSubscriber(showingID uint64, fn func(*Connection)) {
	for _, conn := range r.subscribers(showingID) {
		fn(conn)
	}
}

func (r *Registry) subscribers(showingID uint64) []*Connection {
	r.mu.Lock()
	defer r.mu.Unlock()
	set := r.showings[showingID]
	if len(set) == 0 {
		return nil
	}
	out := make([]*Connection, 0, len(set))
	for conn := range set {
		out = append(out, conn)
	}
	return out
}

// Count returns the number of subscribers for the showing.
func (r *Registry) Count(showingID uint64) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.showings[showingID])
}

// Has reports whether the showing has an entry in the registry.
func (r *Registry) Has(showingID uint64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.showings[showingID]
	return ok
}

// Showings returns the number of showings with at least one subscriber.
func (r *Registry) Showings() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.showings)
}

// CanAdmit reports whether Subscribe would currently accept a connection
// for the showing.  The answer may be stale by the time Subscribe runs.
func (r *Registry) CanAdmit(showingID uint64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return !r.closed && len(r.showings[showingID]) < r.cfg.MaxClientsPerShowing
}

// Close evicts every connection and rejects further subscriptions.
func (r *Registry) Close() {
	r.mu.Lock()
	r.closed = true
	var conns []*Connection
	for id, set := range r.showings {
		for conn := range set {
			if conn.keepAlive != nil {
				conn.keepAlive.Stop()
				conn.keepAlive = nil
			}
			conns = append(conns, conn)
		}
		delete(r.showings, id)
	}
	r.mu.Unlock()

	for _, conn := range conns {
		conn.Close()
	}
	r.logger.Info("registry closed", zap.Int("evicted", len(conns)))
}

// keepAlive runs on the connection's timer.  Connections older than the
// configured timeout are evicted; otherwise a ping is written and the timer
// rearmed.  A failed ping evicts the connection.
func (r *Registry) keepAlive(showingID uint64, conn *Connection) {
	if !r.subscribed(showingID, conn) {
		return
	}
	if age := r.now().Sub(conn.Established()); age > r.cfg.ConnectionTimeout {
		r.logger.Info("connection timed out",
			zap.Uint64("showing_id", showingID),
			zap.String("connection_id", conn.ID()),
			zap.Duration("age", age))
		r.Unsubscribe(showingID, conn)
		return
	}
	if err := conn.Send(EncodeComment(pingComment)); err != nil {
		r.logger.Debug("keep-alive write failed",
			zap.Uint64("showing_id", showingID),
			zap.String("connection_id", conn.ID()),
			zap.Error(err))
		r.Unsubscribe(showingID, conn)
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.showings[showingID][conn]; ok && conn.keepAlive != nil {
		conn.keepAlive.Reset(r.cfg.KeepAliveInterval)
	}
}

func (r *Registry) subscribed(showingID uint64, conn *Connection) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.showings[showingID][conn]
	return ok
}
