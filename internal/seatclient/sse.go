package seatclient

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// maxLineSize bounds a single SSE line; a full seat snapshot is one line.
const maxLineSize = 4 << 20

// ErrStreamClosed is reported when the server ends the stream.
var ErrStreamClosed = errors.New("stream closed by server")

// Event is one dispatched server-sent event.  Name is empty for unnamed
// events.
type Event struct {
	Name  string
	Data  string
	ID    string
	Retry time.Duration
}

// HTTPStatusError is returned when the stream endpoint answers with a non-200
// status, e.g. 503 when the showing is at capacity.
type HTTPStatusError struct {
	Code int
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("unexpected status %d %s", e.Code, http.StatusText(e.Code))
}

// Dialer opens an event stream.  onOpen runs once the stream is accepted,
// onEvent for every dispatched event.  Stream blocks until the stream ends
// or ctx is cancelled and always returns a non-nil error.
type Dialer interface {
	Stream(ctx context.Context, url string, onOpen func(), onEvent func(Event)) error
}

// HTTPDialer streams events over plain HTTP.
type HTTPDialer struct {
	Client *http.Client
}

// Stream implements Dialer.
func (d HTTPDialer) Stream(ctx context.Context, url string, onOpen func(), onEvent func(Event)) error {
	client := d.Client
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return &HTTPStatusError{Code: resp.StatusCode}
	}

	onOpen()
	if err := ReadEvents(resp.Body, onEvent); err != nil {
		return err
	}
	return ErrStreamClosed
}

// ReadEvents parses the text/event-stream format from r and calls fn for
// every event.  Comment lines are skipped.  It returns nil at EOF.
func ReadEvents(r io.Reader, fn func(Event)) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	var (
		ev      Event
		data    strings.Builder
		hasData bool
	)
	for sc.Scan() {
		line := sc.Text()
		if line == "" {
			if hasData {
				ev.Data = data.String()
				fn(ev)
			}
			ev = Event{ID: ev.ID}
			data.Reset()
			hasData = false
			continue
		}
		if strings.HasPrefix(line, ":") {
			continue
		}

		field, value, _ := strings.Cut(line, ":")
		value = strings.TrimPrefix(value, " ")
		switch field {
		case "event":
			ev.Name = value
		case "data":
			if hasData {
				data.WriteByte('\n')
			}
			data.WriteString(value)
			hasData = true
		case "id":
			ev.ID = value
		case "retry":
			if ms, err := strconv.Atoi(value); err == nil && ms >= 0 {
				ev.Retry = time.Duration(ms) * time.Millisecond
			}
		}
	}
	return sc.Err()
}
