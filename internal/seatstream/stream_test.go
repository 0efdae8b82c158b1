package seatstream

import (
	"bytes"
	"errors"
	"sync"
	"time"

	"github.com/iliyamo/cinema-live-seats/internal/config"
)

// recorder is an in-memory Writer that keeps every write as one frame.
type recorder struct {
	mu      sync.Mutex
	frames  [][]byte
	flushes int
	fail    bool
}

func (r *recorder) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail {
		return 0, errors.New("broken pipe")
	}
	r.frames = append(r.frames, append([]byte(nil), p...))
	return len(p), nil
}

func (r *recorder) Flush() {
	r.mu.Lock()
	r.flushes++
	r.mu.Unlock()
}

func (r *recorder) setFail(v bool) {
	r.mu.Lock()
	r.fail = v
	r.mu.Unlock()
}

func (r *recorder) Frames() [][]byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([][]byte, len(r.frames))
	copy(out, r.frames)
	return out
}

func (r *recorder) count(frame []byte) int {
	n := 0
	for _, f := range r.Frames() {
		if bytes.Equal(f, frame) {
			n++
		}
	}
	return n
}

func testConfig() config.StreamConfig {
	return config.StreamConfig{
		KeepAliveInterval:    time.Hour,
		MaxClientsPerShowing: 150,
		ConnectionTimeout:    2 * time.Hour,
		RetryInterval:        2 * time.Second,
		NotifyTimeout:        time.Second,
	}
}

func isClosed(c *Connection) bool {
	select {
	case <-c.Done():
		return true
	default:
		return false
	}
}
