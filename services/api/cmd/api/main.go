package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	gormpg "gorm.io/driver/postgres"
	"gorm.io/gorm"

	"goongoom/pkg/audit"
	"goongoom/pkg/bus"
	"goongoom/pkg/config"
	"goongoom/pkg/db"
	"goongoom/pkg/telemetry"
	"goongoom/services/api"
	"goongoom/services/qna"
)

func main() {
	if err := run("api"); err != nil {
		log.New(os.Stderr, "", log.LstdFlags).Fatal(err)
	}
}

func run(serviceName string) error {
	configPath := flag.String("config", os.Getenv("CONFIG_PATH"), "path to config file")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, middleware, logger, err := telemetry.Init(ctx, serviceName)
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}

	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownTelemetry != nil {
			if err := shutdownTelemetry(shutdownCtx); err != nil {
				fmt.Fprintf(os.Stderr, "%s: telemetry shutdown error: %v\n", serviceName, err)
			}
		}
	}()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	pool, err := db.Open(ctx, cfg.Postgres.DSN)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer pool.Close()

	if err := db.Migrate(ctx, pool); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	store, err := qna.NewPG(pool)
	if err != nil {
		return fmt.Errorf("init store: %w", err)
	}
	service := qna.NewService(store)

	tokens, err := api.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	if err != nil {
		return fmt.Errorf("init token manager: %w", err)
	}

	opts := api.Options{
		Logger:         logger,
		VAPIDPublicKey: cfg.Push.VAPIDPublicKey,
	}

	if cfg.NATS.URL != "" {
		eventBus, err := bus.New(cfg.NATS.URL)
		if err != nil {
			return fmt.Errorf("connect nats: %w", err)
		}
		defer eventBus.Close()
		opts.Bus = eventBus
	} else {
		logger.Printf("WARN nats url not configured, domain events disabled")
	}

	if cfg.Redis.Addr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
		opts.Limiter = api.NewLimiter(
			api.NewRedisCounter(redisClient),
			cfg.RateLimit.QuestionsPerMinute,
			cfg.RateLimit.QuestionsPerHour,
		)
	} else {
		logger.Printf("WARN redis addr not configured, rate limiting disabled")
	}

	if cfg.IsProduction() {
		gormDB, err := gorm.Open(gormpg.Open(cfg.Postgres.DSN), &gorm.Config{})
		if err != nil {
			return fmt.Errorf("open audit database: %w", err)
		}
		sink, err := audit.NewGormSink(gormDB)
		if err != nil {
			return fmt.Errorf("init audit sink: %w", err)
		}
		opts.Recorder = audit.NewRecorder(sink, true, logger)
	}

	apiServer, err := api.New(service, tokens, opts)
	if err != nil {
		return fmt.Errorf("init api: %w", err)
	}

	routes, err := apiServer.Routes()
	if err != nil {
		return fmt.Errorf("build routes: %w", err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", healthHandler)
	mux.HandleFunc("/readyz", readyHandler(pool))
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/", routes)

	server := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      middleware(mux),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			fmt.Fprintf(os.Stderr, "%s: server shutdown error: %v\n", serviceName, err)
		}
	}()

	logger.Printf("INFO listening on %s", server.Addr)

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Printf("ERROR server failed: %v", err)
		return err
	}

	return nil
}

func healthHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func readyHandler(pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := db.Ping(r.Context(), pool); err != nil {
			http.Error(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}
}
