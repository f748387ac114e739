package reconcile

import (
	"context"
	"log/slog"
	"time"

	"github.com/geocoder89/userhub/internal/domain/user"
	"github.com/geocoder89/userhub/internal/observability"
	"github.com/geocoder89/userhub/internal/users"
)

// DriftScanner finds write records whose projection never completed. The
// write store is the source of truth; a row it returns here is a user some
// query may currently be unable to see.
type DriftScanner interface {
	MissingFromReadModel(ctx context.Context, limit int) ([]user.User, error)
}

// KeyPruner removes expired idempotency records for backends without native
// TTL. May be nil (redis expires keys itself).
type KeyPruner interface {
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

type Config struct {
	Interval  time.Duration
	BatchSize int
}

// Reconciler is the out-of-band sweep that repairs read-model drift left by
// failed projections and prunes stale idempotency keys. Repair goes through
// the same projector the signup path uses; upsert-by-id keeps re-runs safe.
type Reconciler struct {
	cfg       Config
	scanner   DriftScanner
	projector *users.Projector
	pruner    KeyPruner
	log       *slog.Logger
	prom      *observability.Prom
}

func New(cfg Config, scanner DriftScanner, projector *users.Projector, pruner KeyPruner, log *slog.Logger, prom *observability.Prom) *Reconciler {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}

	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}

	return &Reconciler{
		cfg:       cfg,
		scanner:   scanner,
		projector: projector,
		pruner:    pruner,
		log:       log,
		prom:      prom,
	}
}

// Run sweeps until ctx is cancelled. Consecutive failures back off
// exponentially instead of hammering an unhealthy store.

func (r *Reconciler) Run(ctx context.Context) error {
	failures := 0

	for {
		err := r.SweepOnce(ctx)

		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}

			r.log.ErrorContext(ctx, "reconcile sweep failed", "err", err)

			if r.prom != nil {
				r.prom.ReconcileSweeps.WithLabelValues("error").Inc()
			}

			failures++
		} else {
			if r.prom != nil {
				r.prom.ReconcileSweeps.WithLabelValues("ok").Inc()
			}

			failures = 0
		}

		wait := r.cfg.Interval

		if failures > 0 {
			wait = ExponentialBackoff(failures - 1)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

// SweepOnce repairs one batch of drifted users and prunes expired keys.

func (r *Reconciler) SweepOnce(ctx context.Context) error {
	drifted, err := r.scanner.MissingFromReadModel(ctx, r.cfg.BatchSize)

	if err != nil {
		return err
	}

	for _, u := range drifted {
		err = r.projector.Project(ctx, user.ReadModelOf(u))

		if err != nil {
			return err
		}

		r.log.InfoContext(ctx, "repaired read model", "user_id", u.ID)

		if r.prom != nil {
			r.prom.ReconcileRepairs.Inc()
		}
	}

	if r.pruner != nil {
		deleted, err := r.pruner.DeleteExpired(ctx, time.Now().UTC())

		if err != nil {
			return err
		}

		if deleted > 0 {
			r.log.InfoContext(ctx, "pruned expired idempotency keys", "count", deleted)
		}
	}

	return nil
}
