package http

import (
	"context"
	"log/slog"

	"github.com/geocoder89/userhub/internal/config"
	"github.com/geocoder89/userhub/internal/http/handlers"
	"github.com/geocoder89/userhub/internal/http/middlewares"
	"github.com/geocoder89/userhub/internal/idempotency"
	"github.com/geocoder89/userhub/internal/observability"
	"github.com/geocoder89/userhub/internal/repo/postgres"
	redisrepo "github.com/geocoder89/userhub/internal/repo/redis"
	"github.com/geocoder89/userhub/internal/security"
	"github.com/geocoder89/userhub/internal/users"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

const maxBodyBytes = 1 << 20 // 1 MiB

func NewRouter(log *slog.Logger, pool *pgxpool.Pool, rdb *redis.Client, cfg config.Config) *gin.Engine {
	if cfg.Env != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()

	// own registry so tests can build routers repeatedly
	promReg := prometheus.NewRegistry()
	prom := observability.NewProm(promReg)

	// middleware

	r.Use(gin.Recovery())
	r.Use(middlewares.RequestContext())
	r.Use(middlewares.RequestLogger(log))
	r.Use(middlewares.SecurityHeaders())

	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(middlewares.CORSMiddleware(cfg.CORSAllowedOrigins))
	}

	r.Use(middlewares.MaxBodyBytes(maxBodyBytes))
	r.Use(middlewares.RequireJSON())
	r.Use(prom.GinHandleMiddleware())

	if cfg.EnableTracing {
		r.Use(otelgin.Middleware("userhub"))
	}

	// wire up repositories
	writesRepo := postgres.NewUsersWriteRepo(pool, prom)
	readsRepo := postgres.NewUsersReadRepo(pool, prom)

	var idemStore idempotency.Store = postgres.NewIdempotencyRepo(pool, prom)

	if cfg.IdempotencyBackend == "redis" && rdb != nil {
		idemStore = redisrepo.NewIdempotencyRepo(rdb)
	}

	gate := idempotency.NewGate(idemStore, cfg.IdempotencyTTL, log)

	r.Use(middlewares.Idempotency(gate, prom))

	// services

	projector := users.NewProjector(readsRepo)
	signupSvc := users.NewSignupService(writesRepo, projector, security.NewBcryptHasher(), cfg.PasswordMinLength, log, prom)
	querySvc := users.NewQueryService(readsRepo, log)

	usersHandler := handlers.NewUsersHandler(signupSvc, querySvc)

	// health probes

	pingDB := func(ctx context.Context) error {
		if pool == nil {
			return nil
		}

		return pool.Ping(ctx)
	}

	var pingCache func(ctx context.Context) error

	if cfg.IdempotencyBackend == "redis" && rdb != nil {
		pingCache = func(ctx context.Context) error {
			return redisrepo.Ping(ctx, rdb)
		}
	}

	h := handlers.NewHealthHandler(pingDB, pingCache)
	r.GET("/healthz", h.Healthz)
	r.GET("/readyz", h.Readyz)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(promReg, promhttp.HandlerOpts{})))

	// Routes

	rl := middlewares.NewRateLimiter(cfg.RateLimit, cfg.RateWindow)

	r.POST("/signup", rl.RateLimiterMiddleware(), usersHandler.Signup)
	r.GET("/users/:id", usersHandler.GetUser)

	return r
}
