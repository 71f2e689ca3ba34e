package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	c "github.com/fjod/go_cart/cart-service/internal/cache"
	"github.com/fjod/go_cart/cart-service/internal/catalog"
	"github.com/fjod/go_cart/cart-service/internal/config"
	h "github.com/fjod/go_cart/cart-service/internal/http"
	"github.com/fjod/go_cart/cart-service/internal/poller"
	"github.com/fjod/go_cart/cart-service/internal/reconcile"
	"github.com/fjod/go_cart/cart-service/internal/repository"
	s "github.com/fjod/go_cart/cart-service/internal/service"
	"github.com/fjod/go_cart/cart-service/pkg/logger"
	"github.com/redis/go-redis/v9"
)

func main() {
	cfg := config.Load()
	log := logger.New(logger.Options{
		Service:   "cart-service",
		Env:       cfg.AppEnv,
		Level:     cfg.LogLevel,
		AddSource: true,
	})

	if err := run(cfg, log); err != nil {
		log.Error("cart service failed", "err", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := repository.OpenDB(&cfg.Postgres)
	if err != nil {
		return err
	}
	defer db.Close()
	log.Info("connected to postgres", "host", cfg.Postgres.Host, "db", cfg.Postgres.DBName)

	repo := repository.NewRepository(db)
	if cfg.RunMigrations {
		if err := repo.RunMigrations(); err != nil {
			return err
		}
		log.Info("migrations applied")
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer redisClient.Close()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis connection failed: %w", err)
	}
	log.Info("redis ping succeeded", "addr", cfg.RedisAddr)

	store := c.NewRedisHashStore(redisClient)
	authority := catalog.NewBreakerAuthority(
		catalog.NewPostgresAuthority(db),
		cfg.CatalogBreaker,
		log.With("component", "catalog"),
	)

	reconciler := reconcile.NewReconciler(store, authority, repo, log.With("component", "reconciler"))
	worker := reconcile.NewWorker(reconciler, cfg.Reconcile, log.With("component", "reconcile-worker"))

	service := s.NewCartService(store, authority, repo, worker,
		s.WithTTL(cfg.CartTTL),
		s.WithLogger(log.With("component", "cart-service")),
	)

	var wg sync.WaitGroup

	// Workers outlive the HTTP server so in-flight mutations still get synced.
	workerCtx, stopWorker := context.WithCancel(context.Background())
	wg.Add(1)
	go func() {
		defer wg.Done()
		worker.Run(workerCtx)
	}()

	if len(cfg.KafkaBrokers) > 0 {
		orders := poller.NewPoller(service, poller.Config{
			Brokers: cfg.KafkaBrokers,
			Topic:   cfg.KafkaTopic,
			GroupID: cfg.KafkaGroupID,
		}, log.With("component", "order-poller"))
		defer orders.Close()

		wg.Add(1)
		go func() {
			defer wg.Done()
			orders.Run(ctx)
		}()
	} else {
		log.Warn("KAFKA_BROKERS not set, order events are not consumed")
	}

	handler := h.NewCartHandler(service, cfg.RequestTimeout, log.With("component", "http"))
	addr := fmt.Sprintf(":%d", cfg.HTTPPort)
	srv := &http.Server{
		Addr:              addr,
		Handler:           h.NewRouter(handler, cfg.RequestTimeout),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("cart service listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutting down cart service")
	case err := <-serverErr:
		if err != nil {
			log.Error("http server error", "err", err)
		}
		stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", "err", err)
	}

	stopWorker()
	wg.Wait()
	log.Info("cart service stopped")
	return nil
}
