package sync

import (
	"context"
	"log"
	stdsync "sync"
	"time"

	"gapchat/internal/models"
	"gapchat/internal/store"
)

// Presence tracks online state for active sessions. Entering starts a
// heartbeat loop that re-upserts online=true to refresh last_seen; leaving
// stops the loop and writes offline best-effort. Readers never trust the
// stored flag alone, see IsUserOnline.
type Presence struct {
	store             *store.Store
	heartbeatInterval time.Duration

	mu         stdsync.Mutex
	heartbeats map[string]chan struct{}
}

func NewPresence(st *store.Store) *Presence {
	return &Presence{
		store:             st,
		heartbeatInterval: HeartbeatInterval,
		heartbeats:        make(map[string]chan struct{}),
	}
}

// Enter marks userID online and starts its heartbeat. Entering twice
// restarts the heartbeat, which is harmless: every beat is the same upsert.
func (p *Presence) Enter(ctx context.Context, userID string) error {
	if err := p.store.UpsertPresence(ctx, userID, true); err != nil {
		return err
	}

	p.mu.Lock()
	if stop, ok := p.heartbeats[userID]; ok {
		close(stop)
	}
	stop := make(chan struct{})
	p.heartbeats[userID] = stop
	p.mu.Unlock()

	go p.heartbeat(userID, stop)
	return nil
}

func (p *Presence) heartbeat(userID string, stop chan struct{}) {
	ticker := time.NewTicker(p.heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := p.store.UpsertPresence(context.Background(), userID, true); err != nil {
				log.Printf("presence heartbeat failed for user %s: %v", userID, err)
			}
		case <-stop:
			return
		}
	}
}

// Leave stops the heartbeat and writes offline. The write is best-effort:
// if it is lost, the liveness window expires the stale online flag.
func (p *Presence) Leave(userID string) {
	p.mu.Lock()
	if stop, ok := p.heartbeats[userID]; ok {
		close(stop)
		delete(p.heartbeats, userID)
	}
	p.mu.Unlock()

	_ = p.store.UpsertPresence(context.Background(), userID, false)
}

// SetVisible mirrors a visibility change (tab hidden/shown) into presence.
func (p *Presence) SetVisible(ctx context.Context, userID string, visible bool) error {
	return p.store.UpsertPresence(ctx, userID, visible)
}

// Beacon is the page-teardown path: a fire-and-forget offline write that is
// not awaited by the caller.
func (p *Presence) Beacon(userID string) {
	go func() {
		_ = p.store.UpsertPresence(context.Background(), userID, false)
	}()
}

// Snapshot returns the stored presence rows for all known users.
func (p *Presence) Snapshot(ctx context.Context) ([]models.UserPresence, error) {
	return p.store.ListPresence(ctx)
}

// IsOnline applies the liveness rule to a single user.
func (p *Presence) IsOnline(ctx context.Context, userID string) (bool, error) {
	presences, err := p.store.ListPresence(ctx)
	if err != nil {
		return false, err
	}

	now := time.Now().UTC()
	for _, presence := range presences {
		if presence.UserID == userID {
			return IsUserOnline(presence, now), nil
		}
	}
	return false, nil
}
