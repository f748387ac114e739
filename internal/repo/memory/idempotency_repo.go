package memory

import (
	"context"
	"sync"

	"github.com/geocoder89/userhub/internal/idempotency"
)

// IdempotencyRepo is an in-memory keyed response cache. PutIfAbsent holds the
// mutex across check and insert, matching the atomicity the gate requires.
type IdempotencyRepo struct {
	mu sync.Mutex
	m  map[string]idempotency.Record
}

func NewIdempotencyRepo() *IdempotencyRepo {
	return &IdempotencyRepo{
		m: make(map[string]idempotency.Record),
	}
}

func mapKey(scope, key string) string {
	return scope + "\x00" + key
}

func (r *IdempotencyRepo) Get(ctx context.Context, scope, key string) (idempotency.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.m[mapKey(scope, key)]

	if !ok {
		return idempotency.Record{}, idempotency.ErrNotFound
	}

	return rec, nil
}

func (r *IdempotencyRepo) PutIfAbsent(ctx context.Context, rec idempotency.Record) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	k := mapKey(rec.Scope, rec.Key)

	_, exists := r.m[k]

	if exists {
		return false, nil
	}

	r.m[k] = rec

	return true, nil
}

func (r *IdempotencyRepo) Delete(ctx context.Context, scope, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.m, mapKey(scope, key))

	return nil
}

// Len reports the number of stored records. Test helper.

func (r *IdempotencyRepo) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.m)
}
