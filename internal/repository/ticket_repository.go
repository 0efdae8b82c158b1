package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/cinema-live-seats/internal/model"
)

// TicketRepo reads seat snapshots and performs ticket-level transitions.
type TicketRepo struct {
	db  *sql.DB
	now func() time.Time
}

// NewTicketRepo constructs a TicketRepo given a DB handle.
func NewTicketRepo(db *sql.DB) *TicketRepo { return &TicketRepo{db: db, now: time.Now} }

// SeatStatuses returns every ticket of the showing regardless of status,
// with the holder's user id taken from the linked booking.  Rows come in
// ticket id order.
func (r *TicketRepo) SeatStatuses(ctx context.Context, showingID uint64) ([]model.SeatStatus, error) {
	const q = `SELECT t.id, t.seat_id, t.status, b.user_id
               FROM tickets t
               LEFT JOIN bookings b ON b.id = t.booking_id
               WHERE t.showing_id = ?
               ORDER BY t.id`
	rows, err := r.db.QueryContext(ctx, q, showingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]model.SeatStatus, 0)
	for rows.Next() {
		var (
			s      model.SeatStatus
			userID sql.NullString
		)
		if err := rows.Scan(&s.ID, &s.SeatID, &s.Status, &userID); err != nil {
			return nil, err
		}
		if userID.Valid {
			uid := userID.String
			s.UserID = &uid
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// GetByID loads a single ticket.
func (r *TicketRepo) GetByID(ctx context.Context, ticketID uint64) (*model.Ticket, error) {
	return getTicket(ctx, r.db, ticketID)
}

// Validate marks a booked or paid ticket as validated.  Any other state
// yields ErrConflict.
func (r *TicketRepo) Validate(ctx context.Context, ticketID uint64) (*model.Ticket, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	t, err := getTicket(ctx, tx, ticketID)
	if err != nil {
		return nil, err
	}
	if t.Status != model.TicketBooked && t.Status != model.TicketPaid {
		return nil, ErrConflict
	}

	now := dbTime(r.now())
	res, err := tx.ExecContext(ctx,
		`UPDATE tickets SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
		model.TicketValidated, now, ticketID, t.Status)
	if err != nil {
		return nil, err
	}
	if n, err := res.RowsAffected(); err != nil {
		return nil, err
	} else if n == 0 {
		return nil, ErrConflict
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	t.Status = model.TicketValidated
	t.UpdatedAt = now
	return t, nil
}

// DeleteExpiredReservations removes reserved tickets whose reservation
// started before cutoff, then drops pending bookings left without tickets.
// It returns the ids of the showings that lost at least one ticket.
func (r *TicketRepo) DeleteExpiredReservations(ctx context.Context, cutoff time.Time) ([]uint64, error) {
	cutoff = dbTime(cutoff)

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	rows, err := tx.QueryContext(ctx,
		`SELECT DISTINCT showing_id FROM tickets WHERE status = ? AND reserved_at < ? ORDER BY showing_id`,
		model.TicketReserved, cutoff)
	if err != nil {
		return nil, err
	}
	var showings []uint64
	for rows.Next() {
		var id uint64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, err
		}
		showings = append(showings, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(showings) == 0 {
		return nil, nil
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM tickets WHERE status = ? AND reserved_at < ?`, model.TicketReserved, cutoff); err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM bookings WHERE status = ? AND NOT EXISTS (SELECT 1 FROM tickets t WHERE t.booking_id = bookings.id)`,
		model.BookingPending); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return showings, nil
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

func getTicket(ctx context.Context, q queryRower, ticketID uint64) (*model.Ticket, error) {
	var (
		t         model.Ticket
		bookingID sql.NullInt64
	)
	err := q.QueryRowContext(ctx,
		`SELECT id, showing_id, seat_id, booking_id, status, reserved_at, updated_at FROM tickets WHERE id = ?`, ticketID).
		Scan(&t.ID, &t.ShowingID, &t.SeatID, &bookingID, &t.Status, &t.ReservedAt, &t.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if bookingID.Valid {
		id := uint64(bookingID.Int64)
		t.BookingID = &id
	}
	return &t, nil
}
