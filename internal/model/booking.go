package model

import "time"

// BookingStatus is the checkout state of a booking.
type BookingStatus string

const (
	BookingPending   BookingStatus = "pending"
	BookingCompleted BookingStatus = "completed"
	BookingCancelled BookingStatus = "cancelled"
)

// Booking groups the tickets a user reserved for one showing.
//
// Fields:
//
//	ID         – primary key identifier.
//	ShowingID  – showing the tickets belong to.
//	UserID     – opaque identifier issued by the auth provider.
//	Status     – pending until checkout completes or the booking is cancelled.
//	PaymentRef – external payment reference, if any.
//	CreatedAt  – creation timestamp.
//	UpdatedAt  – last update timestamp.
type Booking struct {
	ID         uint64        `json:"id"`
	ShowingID  uint64        `json:"showing_id"`
	UserID     string        `json:"user_id"`
	Status     BookingStatus `json:"status"`
	PaymentRef *string       `json:"payment_ref,omitempty"`
	SeatIDs    []uint64      `json:"seat_ids"`
	CreatedAt  time.Time     `json:"created_at"`
	UpdatedAt  time.Time     `json:"updated_at"`
}
