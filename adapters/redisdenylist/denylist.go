// Package redisdenylist stores revoked tokens in Redis so every instance of
// the service shares the same denylist.
package redisdenylist

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	auth "github.com/fenixedu/fenix-auth"
)

// DefaultPrefix is prepended to every token key.
const DefaultPrefix = "blacklist:"

// Denylist is a Redis backed auth.Denylist. Entries expire with the key TTL.
type Denylist struct {
	client redis.UniversalClient
	prefix string
}

var _ auth.Denylist = (*Denylist)(nil)

// New returns a Denylist using DefaultPrefix.
func New(client redis.UniversalClient) *Denylist {
	return NewWithPrefix(client, DefaultPrefix)
}

// NewWithPrefix returns a Denylist with a custom key prefix.
func NewWithPrefix(client redis.UniversalClient, prefix string) *Denylist {
	return &Denylist{
		client: client,
		prefix: prefix,
	}
}

func (d *Denylist) Revoke(ctx context.Context, token string, ttl time.Duration) error {
	if token == "" || ttl <= 0 {
		return nil
	}
	if err := d.client.Set(ctx, d.key(token), "1", ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (d *Denylist) IsRevoked(ctx context.Context, token string) (bool, error) {
	if token == "" {
		return false, nil
	}
	_, err := d.client.Get(ctx, d.key(token)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("redis get: %w", err)
	}
	return true, nil
}

// Ping checks the connection, used by health checks.
func (d *Denylist) Ping(ctx context.Context) error {
	return d.client.Ping(ctx).Err()
}

func (d *Denylist) key(token string) string {
	return d.prefix + token
}
