package auth

import (
	"context"
	"sync"
	"time"
)

// Denylist records tokens invalidated before their natural expiry.
type Denylist interface {
	// Revoke stores token for ttl. A non-positive ttl is a no-op.
	Revoke(ctx context.Context, token string, ttl time.Duration) error
	IsRevoked(ctx context.Context, token string) (bool, error)
}

// memorySweepEvery is how many revocations pass between expired entry sweeps.
const memorySweepEvery = 128

// MemoryDenylist is a process local Denylist. Entries lapse once their TTL
// has passed.
type MemoryDenylist struct {
	mu      sync.Mutex
	entries map[string]time.Time
	now     func() time.Time
	writes  int
}

// MemoryDenylistOption customizes a MemoryDenylist.
type MemoryDenylistOption func(*MemoryDenylist)

// WithDenylistClock injects a custom clock (useful for tests).
func WithDenylistClock(clock func() time.Time) MemoryDenylistOption {
	return func(d *MemoryDenylist) {
		if clock != nil {
			d.now = clock
		}
	}
}

// NewMemoryDenylist returns an empty in memory denylist.
func NewMemoryDenylist(opts ...MemoryDenylistOption) *MemoryDenylist {
	d := &MemoryDenylist{
		entries: make(map[string]time.Time),
		now:     time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(d)
		}
	}
	return d
}

func (d *MemoryDenylist) Revoke(ctx context.Context, token string, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if token == "" || ttl <= 0 {
		return nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	d.writes++
	if d.writes%memorySweepEvery == 0 {
		d.sweep(now)
	}
	d.entries[token] = now.Add(ttl)
	return nil
}

func (d *MemoryDenylist) IsRevoked(ctx context.Context, token string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	expiresAt, ok := d.entries[token]
	if !ok {
		return false, nil
	}
	if d.now().After(expiresAt) {
		delete(d.entries, token)
		return false, nil
	}
	return true, nil
}

// Len returns the number of live entries.
func (d *MemoryDenylist) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sweep(d.now())
	return len(d.entries)
}

func (d *MemoryDenylist) sweep(now time.Time) {
	for token, expiresAt := range d.entries {
		if now.After(expiresAt) {
			delete(d.entries, token)
		}
	}
}
