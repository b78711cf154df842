package server

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/campaignlens/campaignlens/internal/campaign"
	"github.com/campaignlens/campaignlens/internal/metrics"
	"github.com/campaignlens/campaignlens/internal/query"
)

// Session is one cached filtered snapshot. The rows are pinned at
// creation: a dataset reload does not disturb an open session.
type Session struct {
	ID        string
	Filter    query.Filter
	Rows      []campaign.Record
	CreatedAt time.Time
	ExpiresAt time.Time
}

// SessionCache holds filtered snapshots under UUID keys with a fixed
// TTL. Expired entries miss immediately; the janitor reclaims them.
type SessionCache struct {
	mu      sync.RWMutex
	entries map[string]*Session
	ttl     time.Duration
}

func NewSessionCache(ttl time.Duration) *SessionCache {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &SessionCache{
		entries: make(map[string]*Session),
		ttl:     ttl,
	}
}

// Create stores a new session and returns it.
func (c *SessionCache) Create(f query.Filter, rows []campaign.Record) *Session {
	now := time.Now()
	s := &Session{
		ID:        uuid.New().String(),
		Filter:    f,
		Rows:      rows,
		CreatedAt: now,
		ExpiresAt: now.Add(c.ttl),
	}

	c.mu.Lock()
	c.entries[s.ID] = s
	active := len(c.entries)
	c.mu.Unlock()

	if m := metrics.Get(); m != nil {
		m.SetActiveSessions(float64(active))
	}
	return s
}

// Get returns the session if it exists and has not expired.
func (c *SessionCache) Get(id string) (*Session, bool) {
	c.mu.RLock()
	s, ok := c.entries[id]
	c.mu.RUnlock()

	if !ok || time.Now().After(s.ExpiresAt) {
		return nil, false
	}
	return s, true
}

// Len returns the number of cached sessions, expired or not.
func (c *SessionCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Sweep removes expired sessions and returns how many were dropped.
func (c *SessionCache) Sweep() int {
	now := time.Now()

	c.mu.Lock()
	dropped := 0
	for id, s := range c.entries {
		if now.After(s.ExpiresAt) {
			delete(c.entries, id)
			dropped++
		}
	}
	remaining := len(c.entries)
	c.mu.Unlock()

	if m := metrics.Get(); m != nil && dropped > 0 {
		m.AddSessionsExpired(float64(dropped))
		m.SetActiveSessions(float64(remaining))
	}
	return dropped
}

// Janitor sweeps on an interval until ctx is canceled.
func (c *SessionCache) Janitor(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.Sweep()
		}
	}
}
