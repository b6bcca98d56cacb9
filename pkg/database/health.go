package database

import (
	"context"
	"time"
)

// Health is a point-in-time check of one database handle
type Health struct {
	Driver       string        `json:"driver"`
	Healthy      bool          `json:"healthy"`
	CheckedAt    time.Time     `json:"checked_at"`
	ResponseTime time.Duration `json:"response_time"`
	OpenConns    int           `json:"open_conns"`
	InUse        int           `json:"in_use"`
	Idle         int           `json:"idle"`
	Error        string        `json:"error,omitempty"`
}

func checkHealth(ctx context.Context, driver string, ping func(context.Context) error) Health {
	h := Health{Driver: driver, CheckedAt: time.Now()}
	start := time.Now()
	if err := ping(ctx); err != nil {
		h.Error = err.Error()
		return h
	}
	h.ResponseTime = time.Since(start)
	h.Healthy = true
	return h
}
