// Package idempotency records reservation submits by idempotency key so a
// draft creates at most one reservation, even when the customer retries after
// a timeout or two gateway instances receive the same submit.
package idempotency

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/leen-storefront/internal/booking"
)

const (
	DefaultTTL    = 24 * time.Hour
	pendingMarker = "pending"
	keyPrefix     = "leen:submit:"
)

var tracer = otel.Tracer("leen.internal.idempotency")

// releaseScript deletes the key only while it still holds the pending marker,
// so a release never discards a completed reservation.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// holdScript shortens the expiry of a key that still holds the pending marker.
var holdScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// RedisLedger keeps submit state in Redis.
type RedisLedger struct {
	client *redis.Client
	ttl    time.Duration
}

var _ booking.Ledger = (*RedisLedger)(nil)

func NewRedisLedger(client *redis.Client, ttl time.Duration) *RedisLedger {
	if client == nil {
		panic("idempotency: redis client required")
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisLedger{client: client, ttl: ttl}
}

func redisKey(key string) string {
	return keyPrefix + strings.TrimSpace(key)
}

func (l *RedisLedger) Claim(ctx context.Context, key string) (bool, *booking.Reservation, error) {
	ctx, span := tracer.Start(ctx, "idempotency.claim")
	defer span.End()
	span.SetAttributes(attribute.String("leen.idempotency_key", key))

	ok, err := l.client.SetNX(ctx, redisKey(key), pendingMarker, l.ttl).Result()
	if err != nil {
		span.RecordError(err)
		return false, nil, fmt.Errorf("idempotency: claim: %w", err)
	}
	if ok {
		return true, nil, nil
	}

	val, err := l.client.Get(ctx, redisKey(key)).Result()
	switch {
	case errors.Is(err, redis.Nil):
		// Released between SETNX and GET; the caller may retry.
		return false, nil, nil
	case err != nil:
		span.RecordError(err)
		return false, nil, fmt.Errorf("idempotency: read claim: %w", err)
	case val == pendingMarker:
		return false, nil, nil
	}

	var res booking.Reservation
	if err := json.Unmarshal([]byte(val), &res); err != nil {
		return false, nil, fmt.Errorf("idempotency: decode stored reservation: %w", err)
	}
	return false, &res, nil
}

func (l *RedisLedger) Complete(ctx context.Context, key string, r *booking.Reservation) error {
	if r == nil {
		return errors.New("idempotency: complete: nil reservation")
	}
	payload, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("idempotency: encode reservation: %w", err)
	}
	if err := l.client.Set(ctx, redisKey(key), payload, l.ttl).Err(); err != nil {
		return fmt.Errorf("idempotency: complete: %w", err)
	}
	return nil
}

func (l *RedisLedger) Release(ctx context.Context, key string) error {
	if err := releaseScript.Run(ctx, l.client, []string{redisKey(key)}, pendingMarker).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("idempotency: release: %w", err)
	}
	return nil
}

func (l *RedisLedger) Hold(ctx context.Context, key string, d time.Duration) error {
	if err := holdScript.Run(ctx, l.client, []string{redisKey(key)}, pendingMarker, d.Milliseconds()).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("idempotency: hold: %w", err)
	}
	return nil
}

type memoryEntry struct {
	res     *booking.Reservation
	expires time.Time
}

// MemoryLedger is the single-instance ledger used when Redis is not configured.
type MemoryLedger struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]memoryEntry
}

var _ booking.Ledger = (*MemoryLedger)(nil)

func NewMemoryLedger(ttl time.Duration) *MemoryLedger {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryLedger{ttl: ttl, now: time.Now, entries: map[string]memoryEntry{}}
}

func (l *MemoryLedger) Claim(_ context.Context, key string) (bool, *booking.Reservation, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	if e, ok := l.entries[key]; ok && now.Before(e.expires) {
		return false, e.res, nil
	}
	l.entries[key] = memoryEntry{expires: now.Add(l.ttl)}
	return true, nil, nil
}

func (l *MemoryLedger) Complete(_ context.Context, key string, r *booking.Reservation) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries[key] = memoryEntry{res: r, expires: l.now().Add(l.ttl)}
	return nil
}

func (l *MemoryLedger) Release(_ context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if e, ok := l.entries[key]; ok && e.res == nil {
		delete(l.entries, key)
	}
	return nil
}

func (l *MemoryLedger) Hold(_ context.Context, key string, d time.Duration) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if e, ok := l.entries[key]; ok && e.res == nil {
		e.expires = l.now().Add(d)
		l.entries[key] = e
	}
	return nil
}

// Sweep drops expired entries.
func (l *MemoryLedger) Sweep() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	n := 0
	for k, e := range l.entries {
		if !now.Before(e.expires) {
			delete(l.entries, k)
			n++
		}
	}
	return n
}
