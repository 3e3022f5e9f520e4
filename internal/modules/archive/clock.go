package archive

import (
	"sync"
	"time"
)

// IDClock issues bill ids from the wall clock in milliseconds. An id is never reused:
// when the clock has not advanced past the last id, the next id is last+1.
type IDClock struct {
	mu   sync.Mutex
	now  func() time.Time
	last int64
}

// NewIDClock uses now as the time source; nil means time.Now.
func NewIDClock(now func() time.Time) *IDClock {
	if now == nil {
		now = time.Now
	}
	return &IDClock{now: now}
}

// Observe records an id issued elsewhere (e.g. loaded from the store).
func (c *IDClock) Observe(id int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if id > c.last {
		c.last = id
	}
}

// Next returns a fresh id and the creation time, truncated to milliseconds.
func (c *IDClock) Next() (int64, time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now().Truncate(time.Millisecond)
	id := now.UnixMilli()
	if id <= c.last {
		id = c.last + 1
	}
	c.last = id
	return id, now
}
