// Package queue defines the booking.confirmed message and the consumer
// that appends every confirmed booking to a log file.
package queue

// BookingConfirmedQueue is the durable queue confirmed bookings go to.
const BookingConfirmedQueue = "booking.confirmed"

// BookingConfirmedEvent is published when checkout completes.  It carries
// enough to log or notify without querying the primary database.
type BookingConfirmedEvent struct {
	BookingID   uint64   `json:"booking_id"`
	UserID      string   `json:"user_id"`
	ShowingID   uint64   `json:"showing_id"`
	FilmTitle   string   `json:"film_title"`
	HallName    string   `json:"hall_name"`
	StartsAt    string   `json:"starts_at"`
	SeatIDs     []uint64 `json:"seat_ids"`
	PaymentRef  string   `json:"payment_ref,omitempty"`
	ConfirmedAt string   `json:"confirmed_at"`
}
