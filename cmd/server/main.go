package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"identityd/internal/identity/handler"
	"identityd/internal/identity/password"
	"identityd/internal/identity/service"
	"identityd/internal/identity/store/lockout"
	"identityd/internal/identity/store/session"
	"identityd/internal/identity/store/user"
	"identityd/internal/platform/config"
	"identityd/internal/platform/httpserver"
	"identityd/internal/platform/logger"
	"identityd/internal/platform/metrics"
	"identityd/internal/platform/postgres"
	"identityd/internal/platform/redis"
	"identityd/pkg/platform/audit/publisher"
)

// main wires configuration, stores, and the auth service into the HTTP
// server, then supervises everything until shutdown. Business logic lives in
// the internal packages.
func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		os.Stderr.WriteString("config: " + err.Error() + "\n")
		os.Exit(1)
	}
	log := logger.New(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rdb, err := redis.New(ctx, cfg.RedisURL)
	if err != nil {
		log.ErrorContext(ctx, "redis connect failed", "error", err.Error())
		os.Exit(1)
	}
	defer rdb.Close()

	pool, err := postgres.New(ctx, cfg.PostgresURL)
	if err != nil {
		log.ErrorContext(ctx, "postgres connect failed", "error", err.Error())
		os.Exit(1)
	}
	defer pool.Close()

	sessions := session.NewRedis(rdb.Client, cfg.SessionTTL)
	users := user.NewPostgres(pool)

	hashPool := password.NewPool(password.NewArgon2id(password.Params{
		MemoryKiB:   cfg.ArgonMemoryKiB,
		Iterations:  cfg.ArgonIterations,
		Parallelism: cfg.ArgonParallelism,
		SaltLength:  16,
		KeyLength:   32,
	}), cfg.HashWorkers, cfg.HashSubmitWait)
	defer hashPool.Close()

	var sink publisher.Publisher = publisher.Nop{}
	if len(cfg.KafkaBrokers) > 0 {
		kafka, err := publisher.NewKafka(cfg.KafkaBrokers, cfg.AuditTopic)
		if err != nil {
			log.ErrorContext(ctx, "kafka connect failed", "error", err.Error())
			os.Exit(1)
		}
		defer kafka.Close()
		if err := kafka.EnsureTopic(ctx, 3, 1); err != nil {
			log.ErrorContext(ctx, "audit topic setup failed", "error", err.Error())
			os.Exit(1)
		}
		sink = kafka
	}
	dispatcher := publisher.NewDispatcher(sink, log, 1024)

	opts := []service.Option{
		service.WithLogger(log),
		service.WithAuditPublisher(dispatcher),
	}
	if cfg.LockoutThreshold > 0 {
		opts = append(opts, service.WithLockout(lockout.NewRedis(rdb.Client), cfg.LockoutThreshold, cfg.LockoutWindow))
	}

	auth, err := service.New(sessions, users, hashPool, opts...)
	if err != nil {
		log.ErrorContext(ctx, "service setup failed", "error", err.Error())
		os.Exit(1)
	}

	router := chi.NewRouter()
	handler.New(auth, log, metrics.New(), cfg.SessionTTL).Register(router)
	router.Handle("/metrics", promhttp.Handler())
	router.Get("/healthz", healthz(rdb, pool))

	srv := httpserver.New(cfg.Addr, router)

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		if err := dispatcher.Run(groupCtx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		log.InfoContext(groupCtx, "starting identityd", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil {
		log.ErrorContext(ctx, "server exited with error", "error", err.Error())
		os.Exit(1)
	}
	log.InfoContext(ctx, "shutdown complete")
}

// healthz reports readiness of both backing stores.
func healthz(rdb *redis.Client, pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := rdb.Health(ctx); err != nil {
			http.Error(w, "session store unavailable", http.StatusServiceUnavailable)
			return
		}
		if err := pool.Ping(ctx); err != nil {
			http.Error(w, "user store unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}
}
