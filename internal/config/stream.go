package config

import "time"

// StreamConfig controls the live seat-availability stream.
//
//	KeepAliveInterval    – how often a ping comment is written to every open stream.
//	MaxClientsPerShowing – admission limit per showing; new streams beyond it get 503.
//	ConnectionTimeout    – hard lifetime of a stream; older streams are evicted on the next ping.
//	RetryInterval        – reconnect hint sent to clients in the "retry:" field.
//	NotifyTimeout        – upper bound for one snapshot query + fan-out triggered by a mutation.
type StreamConfig struct {
	KeepAliveInterval    time.Duration
	MaxClientsPerShowing int
	ConnectionTimeout    time.Duration
	RetryInterval        time.Duration
	NotifyTimeout        time.Duration
}

// DefaultStreamConfig returns the production defaults.
func DefaultStreamConfig() StreamConfig {
	return StreamConfig{
		KeepAliveInterval:    30 * time.Second,
		MaxClientsPerShowing: 150,
		ConnectionTimeout:    2 * time.Hour,
		RetryInterval:        2 * time.Second,
		NotifyTimeout:        10 * time.Second,
	}
}

// LoadStreamConfig reads SSE_* variables on top of DefaultStreamConfig.
// Non-positive values fall back to the defaults.
func LoadStreamConfig() StreamConfig {
	def := DefaultStreamConfig()
	cfg := StreamConfig{
		KeepAliveInterval:    envDur("SSE_KEEP_ALIVE_INTERVAL", def.KeepAliveInterval),
		MaxClientsPerShowing: envInt("SSE_MAX_CLIENTS_PER_SHOWING", def.MaxClientsPerShowing),
		ConnectionTimeout:    envDur("SSE_CONNECTION_TIMEOUT", def.ConnectionTimeout),
		RetryInterval:        envDur("SSE_RETRY_INTERVAL", def.RetryInterval),
		NotifyTimeout:        envDur("SSE_NOTIFY_TIMEOUT", def.NotifyTimeout),
	}
	if cfg.KeepAliveInterval <= 0 {
		cfg.KeepAliveInterval = def.KeepAliveInterval
	}
	if cfg.MaxClientsPerShowing < 1 {
		cfg.MaxClientsPerShowing = def.MaxClientsPerShowing
	}
	if cfg.ConnectionTimeout <= 0 {
		cfg.ConnectionTimeout = def.ConnectionTimeout
	}
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = def.RetryInterval
	}
	if cfg.NotifyTimeout <= 0 {
		cfg.NotifyTimeout = def.NotifyTimeout
	}
	return cfg
}

// SweeperConfig controls the stale reservation sweeper.  A reserved ticket
// older than ReservationTTL is deleted on the next sweep.
type SweeperConfig struct {
	ReservationTTL time.Duration
	Interval       time.Duration
}

func LoadSweeperConfig() SweeperConfig {
	cfg := SweeperConfig{
		ReservationTTL: envDur("RESERVATION_TTL", 5*time.Minute),
		Interval:       envDur("SWEEP_INTERVAL", 30*time.Second),
	}
	if cfg.ReservationTTL <= 0 {
		cfg.ReservationTTL = 5 * time.Minute
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Second
	}
	return cfg
}
