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

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"goongoom/pkg/bus"
	"goongoom/pkg/config"
	"goongoom/pkg/db"
	"goongoom/pkg/telemetry"
	"goongoom/services/notify"
	"goongoom/services/qna"
)

func main() {
	if err := run("notify"); err != nil {
		log.New(os.Stderr, "", log.LstdFlags).Fatal(err)
	}
}

func run(serviceName string) error {
	configPath := flag.String("config", os.Getenv("CONFIG_PATH"), "path to config file")
	addr := flag.String("addr", ":8081", "health and metrics listen address")
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
	if cfg.NATS.URL == "" {
		return errors.New("nats url is required")
	}

	pool, err := db.Open(ctx, cfg.Postgres.DSN)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer pool.Close()

	store, err := qna.NewPG(pool)
	if err != nil {
		return fmt.Errorf("init store: %w", err)
	}
	service := qna.NewService(store)

	eventBus, err := bus.New(cfg.NATS.URL)
	if err != nil {
		return fmt.Errorf("connect nats: %w", err)
	}
	defer eventBus.Close()

	var sender notify.PushSender
	if cfg.Push.VAPIDPublicKey != "" && cfg.Push.VAPIDPrivateKey != "" {
		webPush, err := notify.NewWebPushSender(cfg.Push.VAPIDPublicKey, cfg.Push.VAPIDPrivateKey, cfg.Push.Subject)
		if err != nil {
			return fmt.Errorf("init web push: %w", err)
		}
		sender = webPush
	} else {
		logger.Printf("WARN vapid keys not configured, web push disabled")
	}

	slack := notify.NewSlackNotifier(cfg.Slack.WebhookURL)
	if cfg.Slack.WebhookURL == "" {
		logger.Printf("WARN slack webhook not configured, answer relay disabled")
	}

	notifier, err := notify.New(service, eventBus, sender, slack, logger)
	if err != nil {
		return fmt.Errorf("init notify service: %w", err)
	}
	if err := notifier.Start(ctx); err != nil {
		return fmt.Errorf("start subscriptions: %w", err)
	}
	defer notifier.Close()

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if err := db.Ping(r.Context(), pool); err != nil {
			http.Error(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:    *addr,
		Handler: middleware(mux),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			fmt.Fprintf(os.Stderr, "%s: server shutdown error: %v\n", serviceName, err)
		}
	}()

	logger.Printf("INFO subscriptions started, listening on %s", server.Addr)

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Printf("ERROR server failed: %v", err)
		return err
	}

	return nil
}
