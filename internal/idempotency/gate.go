package idempotency

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log/slog"
	"time"
)

// Store is the durable keyed cache behind the gate. PutIfAbsent must be
// atomic: when two writers race on the same (scope, key), exactly one insert
// succeeds and the other returns false with no error.
type Store interface {
	Get(ctx context.Context, scope, key string) (Record, error)
	PutIfAbsent(ctx context.Context, rec Record) (bool, error)
	Delete(ctx context.Context, scope, key string) error
}

// Operation runs the guarded command and reports its outcome.
type Operation func(ctx context.Context) (status int, body []byte, err error)

// Result is what the gate hands back to the transport layer.
type Result struct {
	Status   int
	Body     []byte
	Replayed bool
}

type Gate struct {
	store Store
	ttl   time.Duration
	log   *slog.Logger
}

func NewGate(store Store, ttl time.Duration, log *slog.Logger) *Gate {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}

	if log == nil {
		log = slog.Default()
	}

	return &Gate{
		store: store,
		ttl:   ttl,
		log:   log,
	}
}

// Fingerprint computes the stable request fingerprint: a SHA-256 digest of
// the raw, unparsed body. Byte-identical retries match; anything else does
// not.

func Fingerprint(body []byte) string {
	sum := sha256.Sum256(body)

	return hex.EncodeToString(sum[:])
}

// Execute applies the dedup protocol around op.
//
// No key: op runs unguarded. Live record with a matching fingerprint: the
// stored response is replayed and op never runs. Live record with a different
// fingerprint: ErrKeyConflict and op never runs. Otherwise op runs, and a
// successful (2xx) outcome is recorded with a conditional insert so a race
// between identical concurrent requests stores exactly one record; the loser
// returns its own freshly computed result.

func (g *Gate) Execute(ctx context.Context, key, scope, fingerprint string, op Operation) (Result, error) {
	if key == "" {
		status, body, err := op(ctx)

		if err != nil {
			return Result{}, err
		}

		return Result{Status: status, Body: body}, nil
	}

	rec, err := g.store.Get(ctx, scope, key)

	if err != nil && !errors.Is(err, ErrNotFound) {
		return Result{}, err
	}

	if err == nil {
		if rec.Expired(time.Now().UTC()) {
			g.log.InfoContext(ctx, "idempotency key expired", "scope", scope, "key", key)

			// stale records lose their claim on the key; best effort delete
			_ = g.store.Delete(ctx, scope, key)
		} else {
			if rec.RequestHash != fingerprint {
				g.log.WarnContext(ctx, "idempotency key reused with different payload", "scope", scope, "key", key)

				return Result{}, ErrKeyConflict
			}

			g.log.InfoContext(ctx, "idempotency hit", "scope", scope, "key", key)

			return Result{
				Status:   rec.ResponseStatus,
				Body:     rec.ResponseBody,
				Replayed: true,
			}, nil
		}
	}

	status, body, err := op(ctx)

	if err != nil {
		return Result{}, err
	}

	// only successful outcomes are worth replaying
	if status >= 200 && status < 300 {
		stored, putErr := g.store.PutIfAbsent(ctx, New(scope, key, fingerprint, status, body, g.ttl))

		if putErr != nil {
			// the command already succeeded; a failed cache write only costs
			// replay protection for this key
			g.log.ErrorContext(ctx, "failed to store idempotency record", "scope", scope, "key", key, "err", putErr)
		} else if stored {
			g.log.InfoContext(ctx, "stored idempotency key", "scope", scope, "key", key)
		}
	}

	return Result{Status: status, Body: body}, nil
}
