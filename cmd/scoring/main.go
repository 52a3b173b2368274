// Command scoring runs the scoring worker role: it consumes code.candidates,
// scores each pair, and emits the scan's terminal code.scored event.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/chartlylabs/codesim/internal/repo"
	"github.com/chartlylabs/codesim/internal/workers/scoring"
	"github.com/chartlylabs/codesim/pkg/bus"
	"github.com/chartlylabs/codesim/pkg/config"
	"github.com/chartlylabs/codesim/pkg/store/cache"
	"github.com/chartlylabs/codesim/pkg/telemetry"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("scoring: load config: %v", err)
	}
	logger := telemetry.NewDefaultLogger(os.Stdout, "scoring-worker", telemetry.Level(strings.ToLower(cfg.LogLevel)))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := repo.Open(cfg.RelationalDriver, cfg.RelationalDSN)
	if err != nil {
		log.Fatalf("scoring: open relational store: %v", err)
	}
	defer db.Close()
	store := repo.New(db, cfg.RelationalDriver)
	if err := store.EnsureSchema(ctx); err != nil {
		log.Fatalf("scoring: ensure schema: %v", err)
	}

	ch, err := cache.New(cfg.CacheURL)
	if err != nil {
		log.Fatalf("scoring: connect cache: %v", err)
	}
	defer ch.Close()

	client, err := bus.Connect(ctx, cfg.BusBootstrapServers, cfg.BusClientID, cfg.BusConnectDeadline, logger,
		bus.ConsumerOpts(cfg.WorkerGroupID, []string{cfg.Topics.Candidates}, cfg.BusOffsetReset)...)
	if err != nil {
		log.Fatalf("scoring: connect bus: %v", err)
	}
	defer client.Close()
	producer := bus.NewProducer(client)

	handler := &scoring.Handler{
		Repo:            store,
		Tokens:          ch,
		Pub:             producer,
		ScoredTopic:     cfg.Topics.Scored,
		DeadletterTopic: cfg.Topics.Deadletter,
		Winnow:          true,
	}
	consumer := bus.NewConsumer(client, handler, logger)

	logger.Info(ctx, "scoring_worker_started", map[string]any{"group_id": cfg.WorkerGroupID})
	if err := consumer.Run(ctx); err != nil {
		log.Fatalf("scoring: consume: %v", err)
	}
}
