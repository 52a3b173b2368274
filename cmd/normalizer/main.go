// Command normalizer runs the normalizer worker role: it consumes
// code.submitted and emits code.normalized.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/chartlylabs/codesim/internal/repo"
	"github.com/chartlylabs/codesim/internal/workers/normalizer"
	"github.com/chartlylabs/codesim/pkg/bus"
	"github.com/chartlylabs/codesim/pkg/config"
	"github.com/chartlylabs/codesim/pkg/store/blob"
	"github.com/chartlylabs/codesim/pkg/store/cache"
	"github.com/chartlylabs/codesim/pkg/telemetry"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("normalizer: load config: %v", err)
	}
	logger := telemetry.NewDefaultLogger(os.Stdout, "normalizer-worker", telemetry.Level(strings.ToLower(cfg.LogLevel)))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := repo.Open(cfg.RelationalDriver, cfg.RelationalDSN)
	if err != nil {
		log.Fatalf("normalizer: open relational store: %v", err)
	}
	defer db.Close()
	store := repo.New(db, cfg.RelationalDriver)
	if err := store.EnsureSchema(ctx); err != nil {
		log.Fatalf("normalizer: ensure schema: %v", err)
	}

	ch, err := cache.New(cfg.CacheURL)
	if err != nil {
		log.Fatalf("normalizer: connect cache: %v", err)
	}
	defer ch.Close()

	blobs, err := blob.New(ctx, blob.Options{
		Endpoint:     cfg.BlobEndpoint,
		Region:       cfg.BlobRegion,
		Bucket:       cfg.BlobBucket,
		AccessKey:    cfg.BlobAccessKey,
		SecretKey:    cfg.BlobSecretKey,
		UsePathStyle: true,
	})
	if err != nil {
		log.Fatalf("normalizer: build blob store: %v", err)
	}

	client, err := bus.Connect(ctx, cfg.BusBootstrapServers, cfg.BusClientID, cfg.BusConnectDeadline, logger,
		bus.ConsumerOpts(cfg.WorkerGroupID, []string{cfg.Topics.Submitted}, cfg.BusOffsetReset)...)
	if err != nil {
		log.Fatalf("normalizer: connect bus: %v", err)
	}
	defer client.Close()
	producer := bus.NewProducer(client)

	handler := &normalizer.Handler{
		Repo:            store,
		Cache:           ch,
		Blobs:           blobs,
		Pub:             producer,
		NormalizedTopic: cfg.Topics.Normalized,
		DeadletterTopic: cfg.Topics.Deadletter,
	}
	consumer := bus.NewConsumer(client, handler, logger)

	logger.Info(ctx, "normalizer_worker_started", map[string]any{"group_id": cfg.WorkerGroupID})
	if err := consumer.Run(ctx); err != nil {
		log.Fatalf("normalizer: consume: %v", err)
	}
}
