package commandqueue

import (
	"context"
	"sync"
	"time"
)

// Dedup is a time-bounded set of already-seen event keys. The update loop
// uses it to drop redelivered updates after a reconnect.
type Dedup struct {
	mu      sync.RWMutex
	seen    map[string]time.Time
	ttl     time.Duration
	ctx     context.Context
	cancel  context.CancelFunc
	started sync.Once
}

// NewDedup creates a dedup set whose entries expire after ttl
func NewDedup(ttl time.Duration) *Dedup {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Dedup{
		seen:   make(map[string]time.Time),
		ttl:    ttl,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Seen marks the key and reports whether it was already present and
// unexpired.
func (d *Dedup) Seen(key string) bool {
	d.started.Do(func() { go d.cleanup() })

	d.mu.Lock()
	defer d.mu.Unlock()

	at, exists := d.seen[key]
	d.seen[key] = time.Now()
	return exists && time.Since(at) <= d.ttl
}

// Size returns the number of tracked keys
func (d *Dedup) Size() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.seen)
}

// Stop ends the cleanup goroutine
func (d *Dedup) Stop() {
	d.cancel()
}

func (d *Dedup) cleanup() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-d.ctx.Done():
			return
		case <-ticker.C:
			d.mu.Lock()
			now := time.Now()
			for key, at := range d.seen {
				if now.Sub(at) > d.ttl {
					delete(d.seen, key)
				}
			}
			d.mu.Unlock()
		}
	}
}
