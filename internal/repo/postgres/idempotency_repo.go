package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/geocoder89/userhub/internal/idempotency"
	"github.com/geocoder89/userhub/internal/observability"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// IdempotencyRepo is the durable keyed response cache. PutIfAbsent relies on
// the (scope, key) primary key: ON CONFLICT DO NOTHING makes the insert the
// single arbitration point for racing duplicates.
type IdempotencyRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewIdempotencyRepo(pool *pgxpool.Pool, prom *observability.Prom) *IdempotencyRepo {
	return &IdempotencyRepo{
		pool: pool,
		prom: prom,
	}
}

func (repo *IdempotencyRepo) observe(op string, fn func() error) error {
	if repo.prom != nil {
		return repo.prom.ObserveDB(op, fn)
	}
	return fn()
}

func (repo *IdempotencyRepo) Get(ctx context.Context, scope, key string) (idempotency.Record, error) {
	var rec idempotency.Record

	err := repo.observe("idempotency.get", func() error {
		return repo.pool.QueryRow(ctx,
			`SELECT scope, key, request_hash, response_status, response_body, created_at, expires_at
			 FROM idempotency_keys
			 WHERE scope = $1 AND key = $2`,
			scope, key,
		).Scan(
			&rec.Scope,
			&rec.Key,
			&rec.RequestHash,
			&rec.ResponseStatus,
			&rec.ResponseBody,
			&rec.CreatedAt,
			&rec.ExpiresAt,
		)
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return idempotency.Record{}, idempotency.ErrNotFound
		}

		return idempotency.Record{}, err
	}

	return rec, nil
}

// PutIfAbsent stores the record unless one already exists for (scope, key).
// Returns false, nil when a concurrent writer got there first.

func (repo *IdempotencyRepo) PutIfAbsent(ctx context.Context, rec idempotency.Record) (bool, error) {
	var inserted bool

	err := repo.observe("idempotency.put_if_absent", func() error {
		tag, e := repo.pool.Exec(ctx,
			`INSERT INTO idempotency_keys (scope, key, request_hash, response_status, response_body, created_at, expires_at)
			 VALUES ($1,$2,$3,$4,$5,$6,$7)
			 ON CONFLICT (scope, key) DO NOTHING`,
			rec.Scope, rec.Key, rec.RequestHash, rec.ResponseStatus, rec.ResponseBody, rec.CreatedAt, rec.ExpiresAt,
		)

		if e != nil {
			return e
		}

		inserted = tag.RowsAffected() == 1
		return nil
	})

	if err != nil {
		return false, err
	}

	return inserted, nil
}

// DeleteExpired prunes stale records; postgres has no native TTL, so the
// reconciler sweeps them periodically.

func (repo *IdempotencyRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	var deleted int64

	err := repo.observe("idempotency.delete_expired", func() error {
		tag, e := repo.pool.Exec(ctx, `DELETE FROM idempotency_keys WHERE expires_at <= $1`, now)

		if e != nil {
			return e
		}

		deleted = tag.RowsAffected()
		return nil
	})

	return deleted, err
}

func (repo *IdempotencyRepo) Delete(ctx context.Context, scope, key string) error {
	return repo.observe("idempotency.delete", func() error {
		_, err := repo.pool.Exec(ctx,
			`DELETE FROM idempotency_keys WHERE scope = $1 AND key = $2`,
			scope, key,
		)
		return err
	})
}
