package observability

import (
	"context"
	"sync"
	"time"
)

// Counters is an in-process backend for every hook interface. The server
// registers one and exposes its Snapshot.
type Counters struct {
	mu sync.Mutex
	s  Snapshot
}

// Snapshot is a point-in-time copy of Counters.
type Snapshot struct {
	Runs        int64            `json:"runs"`
	RunErrors   int64            `json:"run_errors"`
	Steps       int64            `json:"steps"`
	RunTime     time.Duration    `json:"run_time_ns"`
	CacheHits   int64            `json:"cache_hits"`
	CacheMisses int64            `json:"cache_misses"`
	CacheBytes  int64            `json:"cache_bytes"`
	Requests    int64            `json:"requests"`
	Statuses    map[int]int64    `json:"statuses,omitempty"`
	Routes      map[string]int64 `json:"routes,omitempty"`
}

// NewCounters returns zeroed counters.
func NewCounters() *Counters {
	return &Counters{}
}

// OnRunStart implements SimulationHooks.
func (c *Counters) OnRunStart(context.Context, int) {}

// OnRunComplete implements SimulationHooks.
func (c *Counters) OnRunComplete(_ context.Context, steps int, d time.Duration, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.s.Runs++
	c.s.Steps += int64(steps)
	c.s.RunTime += d
	if err != nil {
		c.s.RunErrors++
	}
}

// OnCacheHit implements CacheHooks.
func (c *Counters) OnCacheHit(context.Context, string) {
	c.mu.Lock()
	c.s.CacheHits++
	c.mu.Unlock()
}

// OnCacheMiss implements CacheHooks.
func (c *Counters) OnCacheMiss(context.Context, string) {
	c.mu.Lock()
	c.s.CacheMisses++
	c.mu.Unlock()
}

// OnCacheSet implements CacheHooks.
func (c *Counters) OnCacheSet(_ context.Context, _ string, size int) {
	c.mu.Lock()
	c.s.CacheBytes += int64(size)
	c.mu.Unlock()
}

// OnRequest implements HTTPHooks.
func (c *Counters) OnRequest(_ context.Context, _, route string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.s.Requests++
	if c.s.Routes == nil {
		c.s.Routes = make(map[string]int64)
	}
	c.s.Routes[route]++
}

// OnResponse implements HTTPHooks.
func (c *Counters) OnResponse(_ context.Context, _, _ string, status int, _ time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.s.Statuses == nil {
		c.s.Statuses = make(map[int]int64)
	}
	c.s.Statuses[status]++
}

// Snapshot returns a copy of the current values.
func (c *Counters) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.s
	if c.s.Statuses != nil {
		s.Statuses = make(map[int]int64, len(c.s.Statuses))
		for k, v := range c.s.Statuses {
			s.Statuses[k] = v
		}
	}
	if c.s.Routes != nil {
		s.Routes = make(map[string]int64, len(c.s.Routes))
		for k, v := range c.s.Routes {
			s.Routes[k] = v
		}
	}
	return s
}

var (
	_ SimulationHooks = (*Counters)(nil)
	_ CacheHooks      = (*Counters)(nil)
	_ HTTPHooks       = (*Counters)(nil)
)
