package views

import (
	"context"
	"maps"
	"sync"
)

// MemoryCounter is the process-local fallback used when Redis is not
// configured. Counts reset on restart.
type MemoryCounter struct {
	mu     sync.Mutex
	counts map[string]int64
}

func NewMemoryCounter() *MemoryCounter {
	return &MemoryCounter{counts: make(map[string]int64)}
}

func (c *MemoryCounter) Incr(_ context.Context, slug string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counts[slug]++
	return c.counts[slug], nil
}

func (c *MemoryCounter) All(context.Context) (map[string]int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return maps.Clone(c.counts), nil
}
