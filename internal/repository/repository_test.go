package repository

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/cinema-live-seats/internal/database"
	"github.com/iliyamo/cinema-live-seats/internal/model"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.OpenSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, database.Migrate(db, "sqlite"))
	return db
}

func seedShowing(t *testing.T, db *sql.DB, startsAt time.Time) *model.Showing {
	t.Helper()
	s := &model.Showing{FilmTitle: "Metropolis", HallName: "Hall 1", StartsAt: startsAt}
	require.NoError(t, NewShowingRepo(db).Create(context.Background(), s))
	return s
}

func TestShowingRepo_GetAndList(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	repo := NewShowingRepo(db)
	now := time.Now().UTC()

	past := seedShowing(t, db, now.Add(-2*time.Hour))
	later := seedShowing(t, db, now.Add(48*time.Hour))
	soon := seedShowing(t, db, now.Add(2*time.Hour))

	got, err := repo.GetByID(ctx, soon.ID)
	require.NoError(t, err)
	assert.Equal(t, "Metropolis", got.FilmTitle)
	assert.True(t, got.StartsAt.Equal(soon.StartsAt))

	_, err = repo.GetByID(ctx, 9999)
	assert.ErrorIs(t, err, ErrShowingNotFound)

	list, err := repo.ListUpcoming(ctx, now, 0)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, soon.ID, list[0].ID)
	assert.Equal(t, later.ID, list[1].ID)
	for _, s := range list {
		assert.NotEqual(t, past.ID, s.ID)
	}
}

func TestBookingRepo_ReserveAndSnapshot(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	show := seedShowing(t, db, time.Now().Add(24*time.Hour))
	bookings := NewBookingRepo(db, "sqlite")
	tickets := NewTicketRepo(db)

	b, err := bookings.Reserve(ctx, show.ID, "user-1", []uint64{3, 1, 3})
	require.NoError(t, err)
	assert.Equal(t, model.BookingPending, b.Status)
	assert.Equal(t, []uint64{3, 1}, b.SeatIDs)

	snap, err := tickets.SeatStatuses(ctx, show.ID)
	require.NoError(t, err)
	require.Len(t, snap, 2)
	assert.Equal(t, uint64(3), snap[0].SeatID)
	assert.Equal(t, uint64(1), snap[1].SeatID)
	assert.Less(t, snap[0].ID, snap[1].ID)
	for _, s := range snap {
		assert.Equal(t, model.TicketReserved, s.Status)
		require.NotNil(t, s.UserID)
		assert.Equal(t, "user-1", *s.UserID)
	}

	empty, err := tickets.SeatStatuses(ctx, show.ID+1)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestBookingRepo_ReserveRejectsTakenSeats(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	show := seedShowing(t, db, time.Now().Add(24*time.Hour))
	repo := NewBookingRepo(db, "sqlite")

	_, err := repo.Reserve(ctx, show.ID, "user-1", []uint64{1, 2})
	require.NoError(t, err)

	_, err = repo.Reserve(ctx, show.ID, "user-2", []uint64{2, 5, 1})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSeatUnavailable)
	var taken *SeatsTakenError
	require.True(t, errors.As(err, &taken))
	assert.Equal(t, []uint64{1, 2}, taken.SeatIDs)

	snap, err := NewTicketRepo(db).SeatStatuses(ctx, show.ID)
	require.NoError(t, err)
	assert.Len(t, snap, 2)
}

func TestBookingRepo_ReserveUnknownOrStartedShowing(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	repo := NewBookingRepo(db, "sqlite")

	_, err := repo.Reserve(ctx, 42, "user-1", []uint64{1})
	assert.ErrorIs(t, err, ErrShowingNotFound)

	started := seedShowing(t, db, time.Now().Add(-time.Minute))
	_, err = repo.Reserve(ctx, started.ID, "user-1", []uint64{1})
	assert.ErrorIs(t, err, ErrConflict)

	_, err = repo.Reserve(ctx, started.ID, "user-1", nil)
	assert.Error(t, err)
}

func TestBookingRepo_Complete(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	show := seedShowing(t, db, time.Now().Add(24*time.Hour))
	repo := NewBookingRepo(db, "sqlite")
	tickets := NewTicketRepo(db)

	paid, err := repo.Reserve(ctx, show.ID, "user-1", []uint64{1})
	require.NoError(t, err)
	counter, err := repo.Reserve(ctx, show.ID, "user-2", []uint64{2})
	require.NoError(t, err)

	_, err = repo.Complete(ctx, paid.ID, "user-2", nil)
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = repo.Complete(ctx, 9999, "user-1", nil)
	assert.ErrorIs(t, err, ErrNotFound)

	ref := "pi_123"
	done, err := repo.Complete(ctx, paid.ID, "user-1", &ref)
	require.NoError(t, err)
	assert.Equal(t, model.BookingCompleted, done.Status)
	require.NotNil(t, done.PaymentRef)
	assert.Equal(t, "pi_123", *done.PaymentRef)
	assert.Equal(t, []uint64{1}, done.SeatIDs)

	_, err = repo.Complete(ctx, paid.ID, "user-1", &ref)
	assert.ErrorIs(t, err, ErrConflict)

	blank := "  "
	_, err = repo.Complete(ctx, counter.ID, "user-2", &blank)
	require.NoError(t, err)

	snap, err := tickets.SeatStatuses(ctx, show.ID)
	require.NoError(t, err)
	require.Len(t, snap, 2)
	assert.Equal(t, model.TicketPaid, snap[0].Status)
	assert.Equal(t, model.TicketBooked, snap[1].Status)
}

func TestBookingRepo_CancelFreesSeats(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	show := seedShowing(t, db, time.Now().Add(24*time.Hour))
	repo := NewBookingRepo(db, "sqlite")

	b, err := repo.Reserve(ctx, show.ID, "user-1", []uint64{7})
	require.NoError(t, err)
	_, err = repo.Complete(ctx, b.ID, "user-1", nil)
	require.NoError(t, err)

	cancelled, err := repo.Cancel(ctx, b.ID, "user-1")
	require.NoError(t, err)
	assert.Equal(t, model.BookingCancelled, cancelled.Status)

	_, err = repo.Cancel(ctx, b.ID, "user-1")
	assert.ErrorIs(t, err, ErrConflict)

	again, err := repo.Reserve(ctx, show.ID, "user-2", []uint64{7})
	require.NoError(t, err)

	snap, err := NewTicketRepo(db).SeatStatuses(ctx, show.ID)
	require.NoError(t, err)
	require.Len(t, snap, 2)
	assert.Equal(t, model.TicketCancelled, snap[0].Status)
	assert.Equal(t, model.TicketReserved, snap[1].Status)

	repo.now = func() time.Time { return show.StartsAt.Add(time.Minute) }
	_, err = repo.Cancel(ctx, again.ID, "user-2")
	assert.ErrorIs(t, err, ErrConflict)
}

func TestBookingRepo_ListByUser(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	show := seedShowing(t, db, time.Now().Add(24*time.Hour))
	repo := NewBookingRepo(db, "sqlite")

	first, err := repo.Reserve(ctx, show.ID, "user-1", []uint64{1, 2})
	require.NoError(t, err)
	second, err := repo.Reserve(ctx, show.ID, "user-1", []uint64{5})
	require.NoError(t, err)
	_, err = repo.Reserve(ctx, show.ID, "user-2", []uint64{9})
	require.NoError(t, err)

	list, err := repo.ListByUser(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID)
	assert.Equal(t, []uint64{5}, list[0].SeatIDs)
	assert.Equal(t, first.ID, list[1].ID)
	assert.Equal(t, []uint64{1, 2}, list[1].SeatIDs)

	none, err := repo.ListByUser(ctx, "nobody")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestTicketRepo_Validate(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	show := seedShowing(t, db, time.Now().Add(24*time.Hour))
	bookings := NewBookingRepo(db, "sqlite")
	tickets := NewTicketRepo(db)

	b, err := bookings.Reserve(ctx, show.ID, "user-1", []uint64{1})
	require.NoError(t, err)
	snap, err := tickets.SeatStatuses(ctx, show.ID)
	require.NoError(t, err)
	ticketID := snap[0].ID

	_, err = tickets.Validate(ctx, ticketID)
	assert.ErrorIs(t, err, ErrConflict)

	_, err = bookings.Complete(ctx, b.ID, "user-1", nil)
	require.NoError(t, err)

	v, err := tickets.Validate(ctx, ticketID)
	require.NoError(t, err)
	assert.Equal(t, model.TicketValidated, v.Status)
	assert.Equal(t, show.ID, v.ShowingID)
	require.NotNil(t, v.BookingID)
	assert.Equal(t, b.ID, *v.BookingID)

	_, err = tickets.Validate(ctx, ticketID)
	assert.ErrorIs(t, err, ErrConflict)

	_, err = tickets.Validate(ctx, 9999)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTicketRepo_DeleteExpiredReservations(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	start := time.Now().UTC().Truncate(time.Second)
	showA := seedShowing(t, db, start.Add(24*time.Hour))
	showB := seedShowing(t, db, start.Add(24*time.Hour))
	bookings := NewBookingRepo(db, "sqlite")
	tickets := NewTicketRepo(db)

	bookings.now = func() time.Time { return start }
	stale, err := bookings.Reserve(ctx, showA.ID, "user-1", []uint64{1})
	require.NoError(t, err)
	kept, err := bookings.Reserve(ctx, showB.ID, "user-2", []uint64{1})
	require.NoError(t, err)
	_, err = bookings.Complete(ctx, kept.ID, "user-2", nil)
	require.NoError(t, err)

	bookings.now = func() time.Time { return start.Add(10 * time.Minute) }
	fresh, err := bookings.Reserve(ctx, showA.ID, "user-3", []uint64{2})
	require.NoError(t, err)

	affected, err := tickets.DeleteExpiredReservations(ctx, start.Add(5*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, []uint64{showA.ID}, affected)

	snapA, err := tickets.SeatStatuses(ctx, showA.ID)
	require.NoError(t, err)
	require.Len(t, snapA, 1)
	assert.Equal(t, uint64(2), snapA[0].SeatID)

	snapB, err := tickets.SeatStatuses(ctx, showB.ID)
	require.NoError(t, err)
	require.Len(t, snapB, 1)
	assert.Equal(t, model.TicketBooked, snapB[0].Status)

	list, err := bookings.ListByUser(ctx, "user-1")
	require.NoError(t, err)
	assert.Empty(t, list, "pending booking %d should be gone", stale.ID)
	list, err = bookings.ListByUser(ctx, "user-3")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, fresh.ID, list[0].ID)

	again, err := tickets.DeleteExpiredReservations(ctx, start.Add(5*time.Minute))
	require.NoError(t, err)
	assert.Empty(t, again)
}
