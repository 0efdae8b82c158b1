package seatstream

import (
	"errors"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrConnectionClosed is returned by Send after the connection was closed.
var ErrConnectionClosed = errors.New("connection closed")

// Writer is the write half of a streaming response.  *echo.Response and
// any http.ResponseWriter that implements http.Flusher satisfy it.
type Writer interface {
	io.Writer
	Flush()
}

// Connection is one open event stream.  Writes are serialised so the
// dispatcher and the keep-alive timer never interleave frames.
type Connection struct {
	id          string
	established time.Time

	mu     sync.Mutex
	w      Writer
	closed bool

	done      chan struct{}
	closeOnce sync.Once

	// keepAlive is owned by the Registry and only touched under its lock.
	keepAlive *time.Timer
}

// NewConnection wraps w.  The connection is established now.
func NewConnection(w Writer) *Connection {
	return &Connection{
		id:          uuid.NewString(),
		established: time.Now(),
		w:           w,
		done:        make(chan struct{}),
	}
}

// ID returns the connection's unique identifier.
func (c *Connection) ID() string { return c.id }

// Established returns the time the connection was accepted.
func (c *Connection) Established() time.Time { return c.established }

// Send writes one frame and flushes it to the client.
func (c *Connection) Send(frame []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrConnectionClosed
	}
	if _, err := c.w.Write(frame); err != nil {
		return err
	}
	c.w.Flush()
	return nil
}

// Close marks the connection closed and releases anyone waiting on Done.
// It waits for an in-flight Send to finish and is safe to call repeatedly.
func (c *Connection) Close() {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		c.w = nil
		c.mu.Unlock()
		close(c.done)
	})
}

// Done is closed once the connection has been closed.
func (c *Connection) Done() <-chan struct{} { return c.done }
