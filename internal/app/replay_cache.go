/**
 * @description
 * This file implements a Redis-backed replay suppressor for webhook
 * deliveries. It sits in front of the reconciliation path as a cheap
 * short-circuit for exact redeliveries; correctness never depends on it,
 * since the intent state machine and the idempotency-keyed ledger append
 * absorb replays on their own.
 *
 * @dependencies
 * - crypto/sha256: To key deliveries by body digest.
 * - github.com/redis/go-redis/v9: The Redis client library.
 */

package app

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// ReplayCache records webhook deliveries that have already been processed.
// Marking happens only after successful processing so a failed attempt never
// suppresses the provider's redelivery.
type ReplayCache interface {
	// Seen reports whether the delivery was already processed.
	Seen(ctx context.Context, body []byte) bool
	// MarkSeen records the delivery as processed.
	MarkSeen(ctx context.Context, body []byte)
}

// RedisReplayCache implements ReplayCache on a shared Redis instance.
type RedisReplayCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisReplayCache connects to Redis at the given URL. Returns an error
// when the URL cannot be parsed; connection failures surface per-call and
// degrade to treating every delivery as new.
func NewRedisReplayCache(redisURL string, ttl time.Duration) (*RedisReplayCache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	return &RedisReplayCache{client: redis.NewClient(opts), ttl: ttl}, nil
}

func replayKey(body []byte) string {
	digest := sha256.Sum256(body)
	return "webhook:seen:" + hex.EncodeToString(digest[:])
}

// Seen reports whether the delivery digest is already recorded. On a Redis
// error the delivery is treated as new and full reconciliation runs.
func (c *RedisReplayCache) Seen(ctx context.Context, body []byte) bool {
	n, err := c.client.Exists(ctx, replayKey(body)).Result()
	if err != nil {
		log.Printf("level=warn component=replay_cache msg=\"redis unavailable; skipping replay check\" err=%v", err)
		return false
	}
	return n > 0
}

// MarkSeen records the delivery digest with the configured TTL.
func (c *RedisReplayCache) MarkSeen(ctx context.Context, body []byte) {
	if err := c.client.Set(ctx, replayKey(body), 1, c.ttl).Err(); err != nil {
		log.Printf("level=warn component=replay_cache msg=\"redis unavailable; replay mark dropped\" err=%v", err)
	}
}

// Close releases the underlying Redis connection.
func (c *RedisReplayCache) Close() error {
	return c.client.Close()
}
