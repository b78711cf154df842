package server

import (
	"context"
	"testing"
	"time"

	"github.com/campaignlens/campaignlens/internal/campaign"
	"github.com/campaignlens/campaignlens/internal/query"
)

func TestSessionCacheRoundTrip(t *testing.T) {
	cache := NewSessionCache(time.Hour)

	rows := []campaign.Record{{Industry: "Tech"}, {Industry: "Retail"}}
	sess := cache.Create(query.Filter{Industries: []string{"Tech"}}, rows)

	if sess.ID == "" {
		t.Fatal("session created without an ID")
	}
	if sess.ExpiresAt.Sub(sess.CreatedAt) != time.Hour {
		t.Errorf("TTL = %v, want 1h", sess.ExpiresAt.Sub(sess.CreatedAt))
	}

	got, ok := cache.Get(sess.ID)
	if !ok {
		t.Fatal("Get on fresh session missed")
	}
	if len(got.Rows) != 2 || got.Rows[0].Industry != "Tech" {
		t.Errorf("session rows = %+v, want pinned snapshot", got.Rows)
	}

	if _, ok := cache.Get("no-such-session"); ok {
		t.Error("Get on unknown ID hit")
	}
}

func TestSessionCacheExpiry(t *testing.T) {
	cache := NewSessionCache(10 * time.Millisecond)

	sess := cache.Create(query.Filter{}, nil)
	time.Sleep(20 * time.Millisecond)

	if _, ok := cache.Get(sess.ID); ok {
		t.Error("Get on expired session hit")
	}

	// Entry lingers until swept
	if cache.Len() != 1 {
		t.Errorf("Len = %d before sweep, want 1", cache.Len())
	}
	if dropped := cache.Sweep(); dropped != 1 {
		t.Errorf("Sweep dropped %d, want 1", dropped)
	}
	if cache.Len() != 0 {
		t.Errorf("Len = %d after sweep, want 0", cache.Len())
	}
}

func TestSessionCacheDefaultTTL(t *testing.T) {
	cache := NewSessionCache(0)
	if cache.ttl != time.Hour {
		t.Errorf("default ttl = %v, want 1h", cache.ttl)
	}
}

func TestJanitorStopsOnCancel(t *testing.T) {
	cache := NewSessionCache(time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		cache.Janitor(ctx, 10*time.Millisecond)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Janitor did not stop after cancel")
	}
}
