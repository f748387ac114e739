package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/geocoder89/userhub/internal/config"
	"github.com/geocoder89/userhub/internal/db"
	"github.com/geocoder89/userhub/internal/observability"
	"github.com/geocoder89/userhub/internal/reconcile"
	"github.com/geocoder89/userhub/internal/repo/postgres"
	"github.com/geocoder89/userhub/internal/users"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	cfg := config.Load()

	log := observability.NewLogger(cfg.Env)

	ctx, stop := signal.NotifyContext(
		context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
	)

	defer stop()

	pool, err := db.NewPool(cfg.DBURL)

	if err != nil {
		log.Error("db connect failed", "err", err)
		os.Exit(1)
	}

	defer pool.Close()

	promReg := prometheus.NewRegistry()
	prom := observability.NewProm(promReg)

	readsRepo := postgres.NewUsersReadRepo(pool, prom)
	idemRepo := postgres.NewIdempotencyRepo(pool, prom)

	// redis expires its own keys; only the postgres cache needs pruning
	var pruner reconcile.KeyPruner

	if cfg.IdempotencyBackend != "redis" {
		pruner = idemRepo
	}

	r := reconcile.New(reconcile.Config{
		Interval:  cfg.ReconcileInterval,
		BatchSize: 100,
	}, readsRepo, users.NewProjector(readsRepo), pruner, log, prom)

	// probe + metrics sidecar listener
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Port+1)

		err := http.ListenAndServe(addr, reconcile.HealthHandler(pool, promReg))

		if err != nil && err != http.ErrServerClosed {
			log.Error("health listener failed", "err", err)
		}
	}()

	log.Info("reconciler has started", "interval", cfg.ReconcileInterval.String())

	err = r.Run(ctx)

	if err != nil && err != context.Canceled {
		log.Error("reconciler stopped with error", "err", err)
	}

	log.Info("reconciler shutdown complete")
}
