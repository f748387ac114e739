package redisrepo

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/geocoder89/userhub/internal/idempotency"
	"github.com/redis/go-redis/v9"
)

// IdempotencyRepo is the redis-backed keyed response cache. SETNX gives the
// atomic insert-if-absent the gate needs, and redis expires records natively
// so no sweep is required for this backend.
type IdempotencyRepo struct {
	client *redis.Client
}

func NewIdempotencyRepo(client *redis.Client) *IdempotencyRepo {
	return &IdempotencyRepo{client: client}
}

func cacheKey(scope, key string) string {
	return "idempotency:" + scope + ":" + key
}

func (repo *IdempotencyRepo) Get(ctx context.Context, scope, key string) (idempotency.Record, error) {
	raw, err := repo.client.Get(ctx, cacheKey(scope, key)).Bytes()

	if err != nil {
		if errors.Is(err, redis.Nil) {
			return idempotency.Record{}, idempotency.ErrNotFound
		}

		return idempotency.Record{}, err
	}

	var rec idempotency.Record

	err = json.Unmarshal(raw, &rec)

	if err != nil {
		return idempotency.Record{}, err
	}

	return rec, nil
}

func (repo *IdempotencyRepo) PutIfAbsent(ctx context.Context, rec idempotency.Record) (bool, error) {
	raw, err := json.Marshal(rec)

	if err != nil {
		return false, err
	}

	ttl := time.Until(rec.ExpiresAt)

	if ttl <= 0 {
		// already expired, nothing to store
		return false, nil
	}

	return repo.client.SetNX(ctx, cacheKey(rec.Scope, rec.Key), raw, ttl).Result()
}

func (repo *IdempotencyRepo) Delete(ctx context.Context, scope, key string) error {
	return repo.client.Del(ctx, cacheKey(scope, key)).Err()
}
