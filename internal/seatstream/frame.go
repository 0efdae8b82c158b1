// Package seatstream pushes live seat-status snapshots to clients over
// server-sent events.  A Registry tracks the open connections per showing
// and keeps them alive; a Dispatcher recomputes a showing's snapshot and
// writes it to every subscriber.
package seatstream

import (
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"
)

// EventSeats is the event name carrying a seat-status snapshot.
const EventSeats = "seats"

// ErrInvalidEventName is returned for event names that would break framing.
var ErrInvalidEventName = errors.New("invalid event name")

// EncodeEvent renders payload as one named event frame:
//
//	event: <name>
//	data: <json>
//
// json.Marshal never emits raw newlines, so the payload always fits on a
// single data line.
func EncodeEvent(name string, payload any) ([]byte, error) {
	if name == "" || strings.ContainsAny(name, "\r\n") {
		return nil, ErrInvalidEventName
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, 0, len(name)+len(data)+16)
	buf = append(buf, "event: "...)
	buf = append(buf, name...)
	buf = append(buf, "\ndata: "...)
	buf = append(buf, data...)
	buf = append(buf, "\n\n"...)
	return buf, nil
}

// EncodeComment renders a comment frame.  Clients ignore comments; they
// only keep intermediaries from timing the stream out.
func EncodeComment(text string) []byte {
	text = strings.NewReplacer("\r", " ", "\n", " ").Replace(text)
	return []byte(": " + text + "\n\n")
}

// EncodeRetry renders the reconnect-delay hint for the client.
func EncodeRetry(d time.Duration) []byte {
	return []byte("retry: " + strconv.FormatInt(d.Milliseconds(), 10) + "\n\n")
}
