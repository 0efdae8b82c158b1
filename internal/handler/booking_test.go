package handler_test

import (
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/cinema-live-seats/internal/middleware"
	"github.com/iliyamo/cinema-live-seats/internal/model"
)

func TestBookingFlow(t *testing.T) {
	notifier := &recordingNotifier{}
	env := newEnv(t, streamConfig(), notifier)
	show := env.seedShowing(t)
	showPath := fmt.Sprintf("/api/showings/%d/reservations", show.ID)
	alice := token(t, "alice", middleware.RoleCustomer)
	bob := token(t, "bob", middleware.RoleCustomer)
	admin := token(t, "staff", middleware.RoleAdmin)

	code, body := env.do(t, http.MethodPost, showPath, alice, `{"seat_ids":[1,2]}`)
	require.Equal(t, http.StatusCreated, code, body)
	var booking model.Booking
	require.NoError(t, json.Unmarshal([]byte(body), &booking))
	assert.Equal(t, model.BookingPending, booking.Status)
	assert.Equal(t, []uint64{1, 2}, booking.SeatIDs)

	code, body = env.do(t, http.MethodPost, showPath, bob, `{"seat_ids":[2,3]}`)
	assert.Equal(t, http.StatusConflict, code)
	assert.JSONEq(t, `{"error":"seats unavailable","seat_ids":[2]}`, body)

	completePath := fmt.Sprintf("/api/bookings/%d/complete", booking.ID)
	code, _ = env.do(t, http.MethodPost, completePath, bob, `{}`)
	assert.Equal(t, http.StatusForbidden, code)

	code, body = env.do(t, http.MethodPost, completePath, alice, `{"payment_ref":"pi_42"}`)
	require.Equal(t, http.StatusOK, code, body)
	require.NoError(t, json.Unmarshal([]byte(body), &booking))
	assert.Equal(t, model.BookingCompleted, booking.Status)

	select {
	case ev := <-env.publisher.events:
		assert.Equal(t, booking.ID, ev.BookingID)
		assert.Equal(t, "alice", ev.UserID)
		assert.Equal(t, "Solaris", ev.FilmTitle)
		assert.Equal(t, "pi_42", ev.PaymentRef)
		assert.Equal(t, []uint64{1, 2}, ev.SeatIDs)
	case <-time.After(2 * time.Second):
		t.Fatal("booking.confirmed not published")
	}

	code, _ = env.do(t, http.MethodPost, completePath, alice, "")
	assert.Equal(t, http.StatusConflict, code)

	code, body = env.do(t, http.MethodGet, fmt.Sprintf("/api/showings/%d/seats", show.ID), "", "")
	require.Equal(t, http.StatusOK, code)
	var seats []model.SeatStatus
	require.NoError(t, json.Unmarshal([]byte(body), &seats))
	require.Len(t, seats, 2)
	assert.Equal(t, model.TicketPaid, seats[0].Status)

	code, body = env.do(t, http.MethodPost, fmt.Sprintf("/api/tickets/%d/validate", seats[0].ID), admin, "")
	require.Equal(t, http.StatusOK, code, body)
	assert.Contains(t, body, `"status":"validated"`)

	code, _ = env.do(t, http.MethodPost, fmt.Sprintf("/api/tickets/%d/validate", seats[0].ID), alice, "")
	assert.Equal(t, http.StatusForbidden, code)

	code, body = env.do(t, http.MethodDelete, fmt.Sprintf("/api/bookings/%d", booking.ID), alice, "")
	require.Equal(t, http.StatusOK, code, body)
	assert.Contains(t, body, `"status":"cancelled"`)

	code, body = env.do(t, http.MethodGet, "/api/my-bookings", alice, "")
	require.Equal(t, http.StatusOK, code)
	var mine struct {
		Items []model.Booking `json:"items"`
	}
	require.NoError(t, json.Unmarshal([]byte(body), &mine))
	require.Len(t, mine.Items, 1)
	assert.Equal(t, model.BookingCancelled, mine.Items[0].Status)

	// reserve, complete, validate, cancel
	assert.Equal(t, []uint64{show.ID, show.ID, show.ID, show.ID}, notifier.calls())
}

func TestBookingEndpoints_Validation(t *testing.T) {
	notifier := &recordingNotifier{}
	env := newEnv(t, streamConfig(), notifier)
	show := env.seedShowing(t)
	alice := token(t, "alice", middleware.RoleCustomer)

	code, _ := env.do(t, http.MethodGet, "/api/my-bookings", "", "")
	assert.Equal(t, http.StatusUnauthorized, code)

	code, _ = env.do(t, http.MethodGet, "/api/my-bookings", token(t, "staff", middleware.RoleAdmin), "")
	assert.Equal(t, http.StatusForbidden, code)

	code, _ = env.do(t, http.MethodPost, "/api/showings/x/reservations", alice, `{"seat_ids":[1]}`)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = env.do(t, http.MethodPost, fmt.Sprintf("/api/showings/%d/reservations", show.ID), alice, `{"seat_ids":[]}`)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = env.do(t, http.MethodPost, fmt.Sprintf("/api/showings/%d/reservations", show.ID), alice, `{"seat_ids":`)
	assert.Equal(t, http.StatusBadRequest, code)

	code, body := env.do(t, http.MethodPost, "/api/showings/999/reservations", alice, `{"seat_ids":[1]}`)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Contains(t, body, "showing not found")

	code, _ = env.do(t, http.MethodDelete, "/api/bookings/999", alice, "")
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = env.do(t, http.MethodPost, "/api/tickets/999/validate", token(t, "staff", middleware.RoleAdmin), "")
	assert.Equal(t, http.StatusNotFound, code)

	assert.Empty(t, notifier.calls())
}

func TestShowingEndpoints(t *testing.T) {
	env := newEnv(t, streamConfig(), &recordingNotifier{})
	show := env.seedShowing(t)

	code, body := env.do(t, http.MethodGet, "/healthz", "", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body)

	code, body = env.do(t, http.MethodGet, "/api/showings", "", "")
	require.Equal(t, http.StatusOK, code)
	var list struct {
		Items []model.Showing `json:"items"`
	}
	require.NoError(t, json.Unmarshal([]byte(body), &list))
	require.Len(t, list.Items, 1)
	assert.Equal(t, show.ID, list.Items[0].ID)

	code, _ = env.do(t, http.MethodGet, "/api/showings?limit=0", "", "")
	assert.Equal(t, http.StatusBadRequest, code)

	code, body = env.do(t, http.MethodGet, fmt.Sprintf("/api/showings/%d", show.ID), "", "")
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, `"film_title":"Solaris"`)

	code, _ = env.do(t, http.MethodGet, "/api/showings/404", "", "")
	assert.Equal(t, http.StatusNotFound, code)

	code, body = env.do(t, http.MethodGet, fmt.Sprintf("/api/showings/%d/seats", show.ID), "", "")
	require.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `[]`, body)

	code, _ = env.do(t, http.MethodGet, "/api/showings/404/seats", "", "")
	assert.Equal(t, http.StatusNotFound, code)
}
