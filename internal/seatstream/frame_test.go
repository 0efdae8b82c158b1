package seatstream

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/cinema-live-seats/internal/model"
)

func TestEncodeEvent(t *testing.T) {
	uid := "u-1"
	frame, err := EncodeEvent(EventSeats, []model.SeatStatus{
		{ID: 1, SeatID: 10, Status: model.TicketReserved, UserID: &uid},
		{ID: 2, SeatID: 11, Status: model.TicketCancelled},
	})
	require.NoError(t, err)
	assert.Equal(t,
		"event: seats\n"+
			`data: [{"id":1,"seatId":10,"status":"reserved","userId":"u-1"},{"id":2,"seatId":11,"status":"cancelled","userId":null}]`+"\n\n",
		string(frame))
}

func TestEncodeEvent_EscapesNewlinesInPayload(t *testing.T) {
	frame, err := EncodeEvent("note", map[string]string{"text": "a\nb"})
	require.NoError(t, err)
	assert.Equal(t, "event: note\ndata: {\"text\":\"a\\nb\"}\n\n", string(frame))
}

func TestEncodeEvent_RejectsBadNames(t *testing.T) {
	for _, name := range []string{"", "a\nb", "x\r"} {
		_, err := EncodeEvent(name, 1)
		assert.ErrorIs(t, err, ErrInvalidEventName, "%q", name)
	}
	_, err := EncodeEvent("x", make(chan int))
	assert.Error(t, err)
}

func TestEncodeCommentAndRetry(t *testing.T) {
	assert.Equal(t, ": keep-alive\n\n", string(EncodeComment("keep-alive")))
	assert.Equal(t, ": a b\n\n", string(EncodeComment("a\nb")))
	assert.Equal(t, "retry: 2000\n\n", string(EncodeRetry(2*time.Second)))
}
