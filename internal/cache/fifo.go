// Package cache keeps geocode outcomes for repeated addresses.
//
// Both successful and failed outcomes are cached. An address whose providers were failing
// keeps returning that failure until the entry is evicted, even if the providers recover
// sooner.
package cache

import (
	"container/list"
	"context"
	"sync"

	t "github.com/evanhutnik/geocode-proxy/internal/types"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const DefaultCapacity = 100

type ComputeFunc func(ctx context.Context) (t.Outcome, error)

type FIFOOption func(*FIFO)

func LoggerOption(logger *zap.SugaredLogger) FIFOOption {
	return func(c *FIFO) {
		c.logger = logger
	}
}

type entry struct {
	key     string
	outcome t.Outcome
}

// FIFO is a bounded cache evicting strictly in insertion order. Reads never change an
// entry's position. Keys are raw addresses compared byte for byte.
type FIFO struct {
	mu       sync.Mutex
	capacity int
	order    *list.List
	entries  map[string]*list.Element
	group    singleflight.Group
	logger   *zap.SugaredLogger
}

// NewFIFO uses DefaultCapacity when capacity is not positive.
func NewFIFO(capacity int, opts ...FIFOOption) *FIFO {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	c := &FIFO{
		capacity: capacity,
		order:    list.New(),
		entries:  make(map[string]*list.Element),
		logger:   zap.NewNop().Sugar(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *FIFO) Get(key string) (t.Outcome, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[key]
	if !ok {
		return t.Outcome{}, false
	}
	return el.Value.(*entry).outcome, true
}

func (c *FIFO) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// GetOrCompute returns the cached outcome for key or runs compute and stores its result.
// Concurrent callers for the same missing key share a single compute call. Errors from
// compute are returned and not cached.
func (c *FIFO) GetOrCompute(ctx context.Context, key string, compute ComputeFunc) (t.Outcome, error) {
	if outcome, ok := c.Get(key); ok {
		c.logger.Debugw("cache hit", "address", key)
		return outcome, nil
	}

	v, err, shared := c.group.Do(key, func() (interface{}, error) {
		// another flight may have stored it between the Get above and this call
		if outcome, ok := c.Get(key); ok {
			return outcome, nil
		}
		outcome, err := compute(ctx)
		if err != nil {
			return nil, err
		}
		c.add(key, outcome)
		return outcome, nil
	})
	if err != nil {
		return t.Outcome{}, err
	}
	c.logger.Debugw("cache miss", "address", key, "shared", shared)
	return v.(t.Outcome), nil
}

func (c *FIFO) add(key string, outcome t.Outcome) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[key]; ok {
		el.Value.(*entry).outcome = outcome
		return
	}
	c.entries[key] = c.order.PushBack(&entry{key: key, outcome: outcome})

	for c.order.Len() > c.capacity {
		oldest := c.order.Front()
		c.order.Remove(oldest)
		delete(c.entries, oldest.Value.(*entry).key)
	}
}
