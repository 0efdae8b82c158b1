package seatclient

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadEvents(t *testing.T) {
	input := "retry: 2000\n\n" +
		": keep-alive\n\n" +
		"event: seats\ndata: [1,\ndata: 2]\n\n" +
		"id: 7\r\ndata:plain\r\n\r\n" +
		"event: dangling\ndata: never dispatched"

	var got []Event
	require.NoError(t, ReadEvents(strings.NewReader(input), func(e Event) { got = append(got, e) }))
	require.Len(t, got, 2)
	assert.Equal(t, Event{Name: "seats", Data: "[1,\n2]"}, got[0])
	assert.Equal(t, Event{ID: "7", Data: "plain"}, got[1])
}

func TestReadEvents_RetryOnEvent(t *testing.T) {
	var got []Event
	require.NoError(t, ReadEvents(strings.NewReader("retry: 1500\ndata: x\n\n"), func(e Event) { got = append(got, e) }))
	require.Len(t, got, 1)
	assert.Equal(t, 1500*time.Millisecond, got[0].Retry)
}

func TestHTTPStatusError(t *testing.T) {
	var err error = &HTTPStatusError{Code: 503}
	var se *HTTPStatusError
	require.True(t, errors.As(err, &se))
	assert.Contains(t, err.Error(), "503")
}

func TestHTTPDialer_RejectedStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "full", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	opened := false
	err := HTTPDialer{}.Stream(context.Background(), srv.URL, func() { opened = true }, func(Event) {})

	var se *HTTPStatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusServiceUnavailable, se.Code)
	assert.False(t, opened)
}
