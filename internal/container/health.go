package container

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"
)

const pingTimeout = 2 * time.Second

// HealthStatus is the /ready payload
type HealthStatus struct {
	Overall    bool                       `json:"overall"`
	Components map[string]ComponentHealth `json:"components"`
}

type ComponentHealth struct {
	Healthy bool   `json:"healthy"`
	Message string `json:"message,omitempty"`
}

func (h *HealthStatus) report(name string, healthy bool, format string, args ...interface{}) {
	h.Components[name] = ComponentHealth{Healthy: healthy, Message: fmt.Sprintf(format, args...)}
	h.Overall = h.Overall && healthy
}

// Health pings the database and storage backend and summarizes the
// dispatcher and workers. Components not yet started report unhealthy.
func (c *Container) Health(ctx context.Context) *HealthStatus {
	c.mu.RLock()
	defer c.mu.RUnlock()

	h := &HealthStatus{Overall: true, Components: make(map[string]ComponentHealth, 4)}

	if c.conn == nil {
		h.report("database", false, "not initialized")
	} else if err := pingWithin(ctx, c.conn.PingContext); err != nil {
		h.report("database", false, "ping failed: %v", err)
	} else {
		h.report("database", true, "")
	}

	switch {
	case c.storage == nil:
		h.report("storage", false, "not initialized")
	case c.storage.Ping == nil:
		h.report("storage", true, "%s", c.config.Storage.Backend)
	default:
		if err := pingWithin(ctx, c.storage.Ping); err != nil {
			h.report("storage", false, "%v", err)
		} else {
			h.report("storage", true, "%s", c.config.Storage.Backend)
		}
	}

	if c.core == nil {
		h.report("dispatcher", false, "not initialized")
	} else {
		h.report("dispatcher", true, "handlers: %d", len(c.core.Dispatcher.ListHandlers()))
	}

	if c.workers == nil {
		h.report("workers", false, "not initialized")
	} else {
		h.report("workers", c.workers.IsRunning(), "%s", c.workerSummary())
	}
	return h
}

func pingWithin(ctx context.Context, ping func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	return ping(ctx)
}

// workerSummary lists the worker count and the last error of each worker, sorted by name
func (c *Container) workerSummary() string {
	stats := c.workers.Stats()
	names := make([]string, 0, len(stats))
	for name := range stats {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := []string{fmt.Sprintf("worker count: %d", c.workers.GetWorkerCount())}
	for _, name := range names {
		if e := stats[name].LastError; e != "" {
			parts = append(parts, fmt.Sprintf("%s last error: %s", name, e))
		}
	}
	return strings.Join(parts, "; ")
}
