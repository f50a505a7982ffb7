package testutil

import (
	"sync"
	"time"
)

// Clock — управляемые часы.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock создаёт часы, показывающие t.
func NewClock(t time.Time) *Clock {
	return &Clock{now: t}
}

// Now возвращает текущее время часов.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance сдвигает часы на d.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Set устанавливает время.
func (c *Clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}
