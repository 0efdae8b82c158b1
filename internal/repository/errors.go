// Package repository holds the SQL repositories for showings, bookings and
// tickets together with the sentinel errors they share. Handlers use
// errors.Is on these values to pick the HTTP status: ErrNotFound maps to
// 404, ErrForbidden to 403 and ErrConflict/ErrSeatUnavailable to 409.
package repository

import (
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned when the requested row does not exist.
var ErrNotFound = errors.New("not found")

// ErrForbidden is returned when the caller attempts an operation
// on a resource they do not own.
var ErrForbidden = errors.New("forbidden")

// ErrConflict is returned when an update cannot be performed because of
// the current state of the row, such as completing a cancelled booking.
var ErrConflict = errors.New("conflict")

// ErrShowingNotFound is returned by operations addressed to a showing id
// that has no row.
var ErrShowingNotFound = errors.New("showing not found")

// ErrSeatUnavailable is wrapped by SeatsTakenError.
var ErrSeatUnavailable = errors.New("seat unavailable")

// SeatsTakenError lists the seats that already carry a live ticket.
type SeatsTakenError struct {
	SeatIDs []uint64
}

func (e *SeatsTakenError) Error() string {
	return fmt.Sprintf("seats already taken: %v", e.SeatIDs)
}

func (e *SeatsTakenError) Unwrap() error { return ErrSeatUnavailable }

// dbTime normalises a timestamp before it is written so both drivers store
// and compare the same value.
func dbTime(t time.Time) time.Time { return t.UTC().Truncate(time.Second) }
