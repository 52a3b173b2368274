// Command candidates runs the candidate-retrieval worker role: the fan-in
// barrier that consumes code.normalized and emits code.candidates.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/chartlylabs/codesim/internal/repo"
	"github.com/chartlylabs/codesim/internal/workers/candidates"
	"github.com/chartlylabs/codesim/pkg/bus"
	"github.com/chartlylabs/codesim/pkg/config"
	"github.com/chartlylabs/codesim/pkg/telemetry"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("candidates: load config: %v", err)
	}
	logger := telemetry.NewDefaultLogger(os.Stdout, "candidate-retrieval-worker", telemetry.Level(strings.ToLower(cfg.LogLevel)))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := repo.Open(cfg.RelationalDriver, cfg.RelationalDSN)
	if err != nil {
		log.Fatalf("candidates: open relational store: %v", err)
	}
	defer db.Close()
	store := repo.New(db, cfg.RelationalDriver)
	if err := store.EnsureSchema(ctx); err != nil {
		log.Fatalf("candidates: ensure schema: %v", err)
	}

	client, err := bus.Connect(ctx, cfg.BusBootstrapServers, cfg.BusClientID, cfg.BusConnectDeadline, logger,
		bus.ConsumerOpts(cfg.WorkerGroupID, []string{cfg.Topics.Normalized}, cfg.BusOffsetReset)...)
	if err != nil {
		log.Fatalf("candidates: connect bus: %v", err)
	}
	defer client.Close()
	producer := bus.NewProducer(client)

	handler := &candidates.Handler{
		Repo:            store,
		Pub:             producer,
		CandidatesTopic: cfg.Topics.Candidates,
		DeadletterTopic: cfg.Topics.Deadletter,
	}
	consumer := bus.NewConsumer(client, handler, logger)

	logger.Info(ctx, "candidate_retrieval_worker_started", map[string]any{"group_id": cfg.WorkerGroupID})
	if err := consumer.Run(ctx); err != nil {
		log.Fatalf("candidates: consume: %v", err)
	}
}
