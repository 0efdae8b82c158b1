package seatclient

import "time"

// Backoff returns the delay before reconnect attempt number retry:
// base*2^retry, capped at max.
func Backoff(retry int, base, max time.Duration) time.Duration {
	d := base
	for i := 0; i < retry; i++ {
		if d >= max {
			return max
		}
		d *= 2
	}
	if d > max {
		return max
	}
	return d
}
