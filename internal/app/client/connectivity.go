package client

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// offlineThreshold is how many probes must fail in a row before the
// client flips to offline. One lost probe on flaky wifi does not count.
const offlineThreshold = 2

// healthChecker is the part of the transport connectivity relies on.
type healthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Connectivity tracks whether the server is reachable and notifies
// subscribers when it comes back.
type Connectivity struct {
	checker healthChecker
	log     *slog.Logger

	mu       sync.Mutex
	online   bool
	failures int
	onOnline []func()
}

// NewConnectivity starts optimistic: the client is considered online
// until probes prove otherwise, so the first sync is not delayed.
func NewConnectivity(checker healthChecker, log *slog.Logger) *Connectivity {
	return &Connectivity{
		checker: checker,
		log:     log.With("component", "connectivity"),
		online:  true,
	}
}

// Online reports the last known reachability.
func (c *Connectivity) Online() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.online
}

// OnOnline registers fn to run every time the server transitions from
// unreachable back to reachable.
func (c *Connectivity) OnOnline(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onOnline = append(c.onOnline, fn)
}

// Check probes the server once, updates the state and returns it.
func (c *Connectivity) Check(ctx context.Context) bool {
	err := c.checker.HealthCheck(ctx)

	c.mu.Lock()

	if err != nil {
		c.failures++
		if c.online && c.failures >= offlineThreshold {
			c.online = false
			c.log.Info("server is unreachable, working offline", "failures", c.failures)
		}
		online := c.online
		c.mu.Unlock()
		return online
	}

	c.failures = 0
	wasOffline := !c.online
	c.online = true

	var callbacks []func()
	if wasOffline {
		callbacks = make([]func(), len(c.onOnline))
		copy(callbacks, c.onOnline)
	}
	c.mu.Unlock()

	if wasOffline {
		c.log.Info("server is reachable again")
		for _, fn := range callbacks {
			fn()
		}
	}

	return true
}

// Watch probes the server on the given interval until ctx is cancelled.
func (c *Connectivity) Watch(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.Check(ctx)
		}
	}
}
