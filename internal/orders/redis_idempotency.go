package orders

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisIdempotencyClient is the minimal client surface used by the redis
// idempotency store. *redis.Client satisfies it.
type RedisIdempotencyClient interface {
	SetNX(ctx context.Context, key string, value any, expiration time.Duration) *redis.BoolCmd
	Get(ctx context.Context, key string) *redis.StringCmd
}

// RedisIdempotencyStore backs the idempotency mapping with redis. SetNX
// provides the single-winner guarantee across processes; an optional TTL
// bounds growth.
type RedisIdempotencyStore struct {
	client    RedisIdempotencyClient
	keyPrefix string
	ttl       time.Duration
}

// NewRedisIdempotencyStore constructs a redis-backed store. A zero ttl keeps
// entries forever.
func NewRedisIdempotencyStore(client RedisIdempotencyClient, ttl time.Duration) *RedisIdempotencyStore {
	return &RedisIdempotencyStore{
		client:    client,
		keyPrefix: "idem:order:",
		ttl:       ttl,
	}
}

func (s *RedisIdempotencyStore) Lookup(ctx context.Context, key string) (string, bool, error) {
	id, err := s.client.Get(ctx, s.keyPrefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return id, true, nil
}

func (s *RedisIdempotencyStore) Record(ctx context.Context, key, orderID string) (string, bool, error) {
	rkey := s.keyPrefix + key

	// Two rounds cover the race where the winning entry expires between the
	// failed SetNX and the Get.
	for attempt := 0; attempt < 2; attempt++ {
		won, err := s.client.SetNX(ctx, rkey, orderID, s.ttl).Result()
		if err != nil {
			return "", false, err
		}
		if won {
			return orderID, true, nil
		}

		winner, err := s.client.Get(ctx, rkey).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return "", false, err
		}
		return winner, false, nil
	}

	return "", false, errors.New("idempotency key unstable: winner expired during record")
}
