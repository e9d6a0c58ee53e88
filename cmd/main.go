package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/robfig/cron/v3"

	"alert-publisher/internal/api"
	"alert-publisher/internal/channels"
	"alert-publisher/internal/config"
	"alert-publisher/internal/kafka"
	"alert-publisher/internal/logging"
	"alert-publisher/internal/models"
	"alert-publisher/internal/publisher"
	"alert-publisher/internal/store"
	"alert-publisher/internal/ws"
)

func main() {
	// Load config
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.New(cfg.Logging.Dir, cfg.Logging.Level)
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}

	// Tracking store: Postgres when configured, in-memory otherwise. This is
	// the single branch on store presence; everything downstream sees the
	// same interface.
	var trackingStore store.Store
	if cfg.DB.DSN != "" {
		pg, err := store.NewPostgres(context.Background(), cfg.DB.DSN)
		if err != nil {
			logger.Errorf("Failed to connect to database: %v", err)
			log.Fatalf("Database connection failed: %v", err)
		}
		trackingStore = pg
		logger.Infof("Using Postgres tracking store")
	} else {
		trackingStore = store.NewMemoryStore()
		logger.Warnf("DB_DSN not set, using in-memory tracking store")
	}
	defer trackingStore.Close()

	// Delivery channels
	chs := []channels.Channel{
		channels.NewCellBroadcast(cfg.CellBroadcast, logger),
		channels.NewFcmPush(cfg.Fcm, logger),
	}
	logger.Infof("Channel %s configured (enabled=%v)", models.ChannelCellBroadcast, cfg.CellBroadcast.Enabled)
	logger.Infof("Channel %s configured (enabled=%v)", models.ChannelFcm, cfg.Fcm.Enabled)

	// Publisher service with result sinks
	svc := publisher.New(trackingStore, chs, logger, cfg)
	producer := kafka.NewProducer(cfg, logger)
	defer producer.Close()
	hub := ws.NewHub(logger)
	svc.AddResultSink(producer)
	svc.AddResultSink(hub)

	var wg sync.WaitGroup
	svc.Start(&wg)

	// Kafka consumer
	ctx, cancel := context.WithCancel(context.Background())
	consumer := kafka.NewConsumer(cfg, svc)
	consumer.Start(ctx, &wg)

	// Scheduled retry sweep
	retryCron := cron.New()
	_, err = retryCron.AddFunc(cfg.Publisher.RetryCronSpec, func() {
		if err := svc.RetryFailed(cfg.Publisher.MaxRetries); err != nil {
			logger.Errorf("Scheduled retry sweep failed: %v", err)
		}
	})
	if err != nil {
		log.Fatalf("Invalid retry cron spec %q: %v", cfg.Publisher.RetryCronSpec, err)
	}
	retryCron.Start()

	// API server
	handler := api.NewHandler(trackingStore, svc, hub, logger, cfg.Publisher.MaxRetries)
	router := api.NewRouter(handler, logger)
	go func() {
		logger.Infof("API started on %s", cfg.API.Port)
		if err := router.Run(cfg.API.Port); err != nil {
			logger.Errorf("API run failed: %v", err)
		}
	}()

	// Handle graceful shutdown
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	<-c
	logger.Infof("Shutting down...")
	cancel()
	retryCron.Stop()
	if err := consumer.Close(); err != nil {
		logger.Errorf("Kafka consumer close failed: %v", err)
	}
	svc.Stop()
	wg.Wait()
	svc.Drain()
	logger.Infof("Service stopped")
}
