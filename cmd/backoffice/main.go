// Command backoffice runs the watchlist matching and alerting service.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/orovista/backoffice/internal/config"
	"github.com/orovista/backoffice/internal/database"
	"github.com/orovista/backoffice/internal/ingest"
	"github.com/orovista/backoffice/internal/server"
	"github.com/orovista/backoffice/internal/watchlist"
	"github.com/orovista/backoffice/internal/watchlist/alerting"
	"github.com/orovista/backoffice/internal/watchlist/notify"
	"github.com/orovista/backoffice/internal/watchlist/records"
	"github.com/orovista/backoffice/internal/watchlist/registry"
	"github.com/orovista/backoffice/internal/watchlist/scanner"
	"github.com/orovista/backoffice/pkg/logger"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	log, err := logger.New(cfg.Log.Level)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	if err := run(cfg, log); err != nil {
		log.Fatal("service stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(cfg.Database, log)
	if err != nil {
		return err
	}
	if err := database.Migrate(db); err != nil {
		return err
	}

	hub := notify.NewHub(log)
	defer hub.Shutdown()

	triageOpts := []alerting.TriageOption{}
	persisterOpts := []alerting.PersisterOption{
		alerting.WithRetries(cfg.Scan.MaxRetries, cfg.Scan.RetryBackoff),
	}
	if cfg.Redis.Enabled {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer client.Close()

		bridge := notify.NewBridge(client, hub, log)
		go bridge.Run(ctx)
		counter := alerting.NewRedisCounter(client, log)
		triageOpts = append(triageOpts, alerting.WithUnreadCounter(counter))
		persisterOpts = append(persisterOpts, alerting.WithUnreadCache(counter))
		log.Info("redis enabled", zap.String("addr", cfg.Redis.Addr))
	}

	registryStore := registry.NewStore(db, log)
	recordStore := records.NewStore(db, log)
	alertStore := alerting.NewStore(db)

	persister := alerting.NewPersister(alertStore, hub, log, persisterOpts...)
	triage := alerting.NewTriage(alertStore, hub, log, triageOpts...)

	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(collectors.NewGoCollector())
	metrics := watchlist.NewMetrics(promRegistry)

	engine := watchlist.NewEngine(scanner.New(registryStore, log), persister, log,
		watchlist.WithWorkers(cfg.Scan.Workers),
		watchlist.WithMetrics(metrics))

	if cfg.Kafka.Enabled {
		consumer := ingest.NewConsumer(cfg.Kafka, recordStore, engine, log)
		defer consumer.Close()
		go func() {
			if err := consumer.Run(ctx); err != nil {
				log.Error("ingestion consumer stopped", zap.Error(err))
			}
		}()
	}

	srv := server.New(cfg.Server, server.Deps{
		Engine:   engine,
		Triage:   triage,
		Registry: registryStore,
		Records:  recordStore,
		Hub:      hub,
		Gatherer: promRegistry,
	}, log)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Run() }()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err := <-errCh:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
