package model

import "time"

// TicketStatus is the lifecycle state of a single ticket.
type TicketStatus string

const (
	TicketReserved  TicketStatus = "reserved"  // seat held while checkout is in progress
	TicketBooked    TicketStatus = "booked"    // checkout completed, pay at the counter
	TicketPaid      TicketStatus = "paid"      // checkout completed with a payment reference
	TicketValidated TicketStatus = "validated" // scanned at the hall entrance
	TicketCancelled TicketStatus = "cancelled" // released, the seat is free again
)

// Valid reports whether s is one of the known ticket states.
func (s TicketStatus) Valid() bool {
	switch s {
	case TicketReserved, TicketBooked, TicketPaid, TicketValidated, TicketCancelled:
		return true
	}
	return false
}

// Occupies reports whether a ticket in this state blocks its seat.
func (s TicketStatus) Occupies() bool {
	return s.Valid() && s != TicketCancelled
}

// Ticket ties one seat of a showing to an optional booking.
//
// Fields:
//
//	ID         – primary key identifier.
//	ShowingID  – the showing this ticket admits to.
//	SeatID     – seat in the showing's hall.
//	BookingID  – owning booking; nil until the ticket is linked.
//	Status     – lifecycle state (see TicketStatus).
//	ReservedAt – when the seat was reserved; drives reservation expiry.
//	UpdatedAt  – last status change.
type Ticket struct {
	ID         uint64       `json:"id"`
	ShowingID  uint64       `json:"showing_id"`
	SeatID     uint64       `json:"seat_id"`
	BookingID  *uint64      `json:"booking_id"`
	Status     TicketStatus `json:"status"`
	ReservedAt time.Time    `json:"reserved_at"`
	UpdatedAt  time.Time    `json:"updated_at"`
}

// SeatStatus is one row of a showing's live seat snapshot.  It is computed on
// demand and never stored.  UserID is nil when the ticket has no booking.
type SeatStatus struct {
	ID     uint64       `json:"id"`
	SeatID uint64       `json:"seatId"`
	Status TicketStatus `json:"status"`
	UserID *string      `json:"userId"`
}
