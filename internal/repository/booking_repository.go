package repository

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/iliyamo/cinema-live-seats/internal/model"
)

// BookingRepo runs the reservation, checkout and cancellation flows.  Each
// flow is one transaction touching bookings and tickets together.
type BookingRepo struct {
	db        *sql.DB
	forUpdate string
	now       func() time.Time
}

// NewBookingRepo returns a BookingRepo for the given driver ("mysql" or
// "sqlite").  On MySQL the showing and booking rows are locked with
// SELECT ... FOR UPDATE; SQLite serialises writers on its own.
func NewBookingRepo(db *sql.DB, driver string) *BookingRepo {
	r := &BookingRepo{db: db, now: time.Now}
	if driver != "sqlite" {
		r.forUpdate = " FOR UPDATE"
	}
	return r
}

// DB exposes the underlying sql.DB.
func (r *BookingRepo) DB() *sql.DB { return r.db }

// Reserve holds seatIDs for userID on a showing.  It creates a pending
// booking and one reserved ticket per seat.  Seats that already carry a
// ticket in any state other than cancelled make the whole call fail with a
// *SeatsTakenError.
func (r *BookingRepo) Reserve(ctx context.Context, showingID uint64, userID string, seatIDs []uint64) (*model.Booking, error) {
	seatIDs = uniqueIDs(seatIDs)
	if len(seatIDs) == 0 {
		return nil, errors.New("no seats requested")
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	now := dbTime(r.now())

	var startsAt time.Time
	err = tx.QueryRowContext(ctx, `SELECT starts_at FROM showings WHERE id = ?`+r.forUpdate, showingID).Scan(&startsAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrShowingNotFound
	}
	if err != nil {
		return nil, err
	}
	if !startsAt.After(now) {
		return nil, ErrConflict
	}

	taken, err := takenSeats(ctx, tx, showingID, seatIDs)
	if err != nil {
		return nil, err
	}
	if len(taken) > 0 {
		return nil, &SeatsTakenError{SeatIDs: taken}
	}

	const insBooking = `INSERT INTO bookings (showing_id, user_id, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`
	res, err := tx.ExecContext(ctx, insBooking, showingID, userID, model.BookingPending, now, now)
	if err != nil {
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	bookingID := uint64(id)

	query := `INSERT INTO tickets (showing_id, seat_id, booking_id, status, reserved_at, updated_at) VALUES `
	args := make([]interface{}, 0, len(seatIDs)*6)
	for i, seatID := range seatIDs {
		if i > 0 {
			query += ","
		}
		query += "(?, ?, ?, ?, ?, ?)"
		args = append(args, showingID, seatID, bookingID, model.TicketReserved, now, now)
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &model.Booking{
		ID:        bookingID,
		ShowingID: showingID,
		UserID:    userID,
		Status:    model.BookingPending,
		SeatIDs:   seatIDs,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// Complete finishes checkout for a pending booking.  Its reserved tickets
// become paid when paymentRef is set and booked otherwise.  A booking whose
// reservations already expired yields ErrConflict.
func (r *BookingRepo) Complete(ctx context.Context, bookingID uint64, userID string, paymentRef *string) (*model.Booking, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	b, err := r.lockOwned(ctx, tx, bookingID, userID)
	if err != nil {
		return nil, err
	}
	if b.Status != model.BookingPending {
		return nil, ErrConflict
	}

	ticketStatus := model.TicketBooked
	if paymentRef != nil && strings.TrimSpace(*paymentRef) != "" {
		ticketStatus = model.TicketPaid
	} else {
		paymentRef = nil
	}

	now := dbTime(r.now())
	res, err := tx.ExecContext(ctx,
		`UPDATE tickets SET status = ?, updated_at = ? WHERE booking_id = ? AND status = ?`,
		ticketStatus, now, bookingID, model.TicketReserved)
	if err != nil {
		return nil, err
	}
	if n, err := res.RowsAffected(); err != nil {
		return nil, err
	} else if n == 0 {
		return nil, ErrConflict
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE bookings SET status = ?, payment_ref = ?, updated_at = ? WHERE id = ?`,
		model.BookingCompleted, paymentRef, now, bookingID); err != nil {
		return nil, err
	}

	out, err := loadBooking(ctx, tx, bookingID)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return out, nil
}

// Cancel releases a pending or completed booking and all of its live
// tickets.  Cancelling after the showing has started yields ErrConflict.
func (r *BookingRepo) Cancel(ctx context.Context, bookingID uint64, userID string) (*model.Booking, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	b, err := r.lockOwned(ctx, tx, bookingID, userID)
	if err != nil {
		return nil, err
	}
	if b.Status == model.BookingCancelled {
		return nil, ErrConflict
	}

	now := dbTime(r.now())
	var startsAt time.Time
	if err := tx.QueryRowContext(ctx, `SELECT starts_at FROM showings WHERE id = ?`, b.ShowingID).Scan(&startsAt); err != nil {
		return nil, err
	}
	if !startsAt.After(now) {
		return nil, ErrConflict
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE tickets SET status = ?, updated_at = ? WHERE booking_id = ? AND status IN (?, ?, ?)`,
		model.TicketCancelled, now, bookingID, model.TicketReserved, model.TicketBooked, model.TicketPaid); err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE bookings SET status = ?, updated_at = ? WHERE id = ?`,
		model.BookingCancelled, now, bookingID); err != nil {
		return nil, err
	}

	out, err := loadBooking(ctx, tx, bookingID)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return out, nil
}

// ListByUser returns the user's bookings, newest first, each with the seats
// it holds or held.
func (r *BookingRepo) ListByUser(ctx context.Context, userID string) ([]model.Booking, error) {
	const q = `SELECT b.id, b.showing_id, b.user_id, b.status, b.payment_ref, b.created_at, b.updated_at, t.seat_id
               FROM bookings b
               LEFT JOIN tickets t ON t.booking_id = b.id
               WHERE b.user_id = ?
               ORDER BY b.id DESC, t.id`
	rows, err := r.db.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]model.Booking, 0)
	for rows.Next() {
		var (
			b          model.Booking
			paymentRef sql.NullString
			seatID     sql.NullInt64
		)
		if err := rows.Scan(&b.ID, &b.ShowingID, &b.UserID, &b.Status, &paymentRef, &b.CreatedAt, &b.UpdatedAt, &seatID); err != nil {
			return nil, err
		}
		if n := len(out); n == 0 || out[n-1].ID != b.ID {
			if paymentRef.Valid {
				ref := paymentRef.String
				b.PaymentRef = &ref
			}
			b.SeatIDs = []uint64{}
			out = append(out, b)
		}
		if seatID.Valid {
			last := &out[len(out)-1]
			last.SeatIDs = append(last.SeatIDs, uint64(seatID.Int64))
		}
	}
	return out, rows.Err()
}

// lockOwned loads a booking inside tx and checks that userID owns it.
func (r *BookingRepo) lockOwned(ctx context.Context, tx *sql.Tx, bookingID uint64, userID string) (*model.Booking, error) {
	var b model.Booking
	err := tx.QueryRowContext(ctx,
		`SELECT id, showing_id, user_id, status FROM bookings WHERE id = ?`+r.forUpdate, bookingID).
		Scan(&b.ID, &b.ShowingID, &b.UserID, &b.Status)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if b.UserID != userID {
		return nil, ErrForbidden
	}
	return &b, nil
}

func loadBooking(ctx context.Context, tx *sql.Tx, bookingID uint64) (*model.Booking, error) {
	var (
		b          model.Booking
		paymentRef sql.NullString
	)
	err := tx.QueryRowContext(ctx,
		`SELECT id, showing_id, user_id, status, payment_ref, created_at, updated_at FROM bookings WHERE id = ?`, bookingID).
		Scan(&b.ID, &b.ShowingID, &b.UserID, &b.Status, &paymentRef, &b.CreatedAt, &b.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if paymentRef.Valid {
		ref := paymentRef.String
		b.PaymentRef = &ref
	}

	rows, err := tx.QueryContext(ctx, `SELECT seat_id FROM tickets WHERE booking_id = ? ORDER BY id`, bookingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	b.SeatIDs = []uint64{}
	for rows.Next() {
		var seatID uint64
		if err := rows.Scan(&seatID); err != nil {
			return nil, err
		}
		b.SeatIDs = append(b.SeatIDs, seatID)
	}
	return &b, rows.Err()
}

// takenSeats returns the subset of seatIDs that already hold a live ticket
// for the showing, in ascending order.
func takenSeats(ctx context.Context, tx *sql.Tx, showingID uint64, seatIDs []uint64) ([]uint64, error) {
	query := `SELECT DISTINCT seat_id FROM tickets WHERE showing_id = ? AND status <> ? AND seat_id IN (`
	args := make([]interface{}, 0, len(seatIDs)+2)
	args = append(args, showingID, model.TicketCancelled)
	for i, id := range seatIDs {
		if i > 0 {
			query += ","
		}
		query += "?"
		args = append(args, id)
	}
	query += ")"

	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var taken []uint64
	for rows.Next() {
		var id uint64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		taken = append(taken, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	sort.Slice(taken, func(i, j int) bool { return taken[i] < taken[j] })
	return taken, nil
}

// uniqueIDs drops zero and duplicate ids while preserving order.
func uniqueIDs(ids []uint64) []uint64 {
	seen := make(map[uint64]struct{}, len(ids))
	out := make([]uint64, 0, len(ids))
	for _, id := range ids {
		if id == 0 {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
