package interactions

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// ReplayGuard remembers recently accepted (timestamp, signature) pairs so a
// captured valid request cannot be replayed inside the freshness window. It
// is advisory: signature verification never depends on it, and a nil guard
// accepts everything.
type ReplayGuard struct {
	client *redis.Client
	ttl    time.Duration
}

// NewReplayGuard constructs a guard. ttl should match the signature
// freshness window; entries expire on their own afterwards.
func NewReplayGuard(client *redis.Client, ttl time.Duration) *ReplayGuard {
	return &ReplayGuard{client: client, ttl: ttl}
}

// FirstUse records the pair and reports whether this is its first
// appearance. Redis errors report true so a cache outage degrades to
// signature-only checking instead of rejecting valid traffic.
func (g *ReplayGuard) FirstUse(ctx context.Context, timestampText, signatureHex string) (bool, error) {
	if g == nil || g.client == nil || g.ttl <= 0 {
		return true, nil
	}
	key := "interactions:replay:" + timestampText + ":" + signatureHex
	ok, err := g.client.SetNX(ctx, key, 1, g.ttl).Result()
	if err != nil {
		return true, err
	}
	return ok, nil
}
