// Package scoring implements the scoring worker role: score one candidate
// file pair by Jaccard similarity over their cached token sets, persist the
// result, track scan progress, and drive the terminal DONE transition once
// every pair has been scored.
package scoring

import (
	"context"
	"fmt"
	"time"

	"github.com/chartlylabs/codesim/internal/dlq"
	"github.com/chartlylabs/codesim/internal/model"
	"github.com/chartlylabs/codesim/internal/similarity"
	"github.com/chartlylabs/codesim/pkg/envelope"
	"github.com/chartlylabs/codesim/pkg/errors"
	"github.com/chartlylabs/codesim/pkg/idempotency"
)

// Repository is the subset of internal/repo.Repo the scoring worker needs.
// It is a superset of dlq.Repository.
type Repository interface {
	UpsertResult(ctx context.Context, res model.Result) error
	GetTotalPairs(ctx context.Context, scanID string) (int, bool, error)
	CountResults(ctx context.Context, scanID string) (int, error)
	TryMarkDoneEmitted(ctx context.Context, scanID string) (bool, error)
	AppendScanLog(ctx context.Context, scanID, message string) error
	UpdateScanStatusProgress(ctx context.Context, scanID string, status *model.ScanStatus, progress *int, paramsPatch map[string]any) error
	InsertAlert(ctx context.Context, a model.Alert) error
	GetScan(ctx context.Context, scanID string) (model.Scan, error)
}

// TokenSource is the subset of pkg/store/cache.Cache the worker needs to
// pull the token sequences the normalizer cached for each checksum.
type TokenSource interface {
	GetTokens(ctx context.Context, checksum string) ([]string, error)
}

// Publisher is the subset of pkg/bus.Producer the worker needs.
type Publisher interface {
	Publish(ctx context.Context, topic string, env envelope.Envelope) error
}

// Handler consumes code.candidates events, scores each pair, and — on the
// pair that completes the scan — emits the single terminal code.scored
// event. It satisfies pkg/bus.Handler.
type Handler struct {
	Repo            Repository
	Tokens          TokenSource
	Pub             Publisher
	ScoredTopic     string
	DeadletterTopic string
	// Winnow enables additive winnowing-fingerprint evidence in each
	// Result's details. Disabled by default since it is not required to
	// compute the score itself.
	Winnow bool
}

func (h *Handler) Handle(ctx context.Context, env envelope.Envelope) error {
	if env.EventType != envelope.Candidates {
		return nil
	}
	var payload envelope.CandidatesPayload
	if err := env.DecodePayload(&payload); err != nil {
		return h.fail(ctx, env, fmt.Errorf("decode candidates payload: %w", err))
	}
	if err := h.process(ctx, env, payload); err != nil {
		return h.fail(ctx, env, err)
	}
	return nil
}

func (h *Handler) process(ctx context.Context, env envelope.Envelope, payload envelope.CandidatesPayload) error {
	scan, err := h.Repo.GetScan(ctx, payload.ScanID)
	if err != nil {
		return fmt.Errorf("get scan: %w", err)
	}
	// A scan that already reached DONE must not have its Result rows or
	// progress touched again by a redelivered candidates event.
	if scan.Status == model.ScanDone {
		return nil
	}

	aID, bID := payload.FileAID, payload.FileBID
	checksumA, checksumB := payload.ChecksumA, payload.ChecksumB
	if aID > bID {
		aID, bID = bID, aID
		checksumA, checksumB = checksumB, checksumA
	}

	tokensA, err := h.Tokens.GetTokens(ctx, checksumA)
	if err != nil {
		return fmt.Errorf("missing tokens in cache (normalizer cache miss): %w", err)
	}
	tokensB, err := h.Tokens.GetTokens(ctx, checksumB)
	if err != nil {
		return fmt.Errorf("missing tokens in cache (normalizer cache miss): %w", err)
	}

	score := similarity.JaccardPercent(tokensA, tokensB)
	details := map[string]any{"pair_id": payload.PairID}
	if h.Winnow {
		fpA := similarity.Winnow(tokensA, 5, 4)
		fpB := similarity.Winnow(tokensB, 5, 4)
		shared := similarity.SharedFingerprints(fpA, fpB)
		details["shared_fingerprints"] = len(shared)
	}

	if err := h.Repo.UpsertResult(ctx, model.Result{
		ScanID:  payload.ScanID,
		FileAID: aID,
		FileBID: bID,
		Score:   score,
		Details: details,
	}); err != nil {
		return fmt.Errorf("upsert result: %w", err)
	}

	totalPairs, hasTotal, err := h.Repo.GetTotalPairs(ctx, payload.ScanID)
	if err != nil {
		return fmt.Errorf("get total pairs: %w", err)
	}

	done := false
	if hasTotal && totalPairs > 0 {
		processed, err := h.Repo.CountResults(ctx, payload.ScanID)
		if err != nil {
			return fmt.Errorf("count results: %w", err)
		}
		progress := minInt(99, roundPercent(processed, totalPairs))
		if err := h.Repo.UpdateScanStatusProgress(ctx, payload.ScanID, nil, &progress, map[string]any{}); err != nil {
			return fmt.Errorf("update progress: %w", err)
		}
		done = processed >= totalPairs
	}

	if !done {
		return nil
	}

	runtimeMs := time.Now().UTC().Sub(scan.CreatedAt).Milliseconds()

	doneStatus := model.ScanDone
	hundred := 100
	if err := h.Repo.UpdateScanStatusProgress(ctx, payload.ScanID, &doneStatus, &hundred, map[string]any{
		"runtime_ms": runtimeMs,
	}); err != nil {
		return fmt.Errorf("mark scan done: %w", err)
	}
	if err := h.Repo.AppendScanLog(ctx, payload.ScanID, "Scoring complete (DONE)"); err != nil {
		return fmt.Errorf("append scan log: %w", err)
	}

	emitted, err := h.Repo.TryMarkDoneEmitted(ctx, payload.ScanID)
	if err != nil {
		return fmt.Errorf("try mark done emitted: %w", err)
	}
	if !emitted {
		return nil
	}

	idemKey := idempotency.ScoredKey(payload.ScanID)
	out, err := envelope.New(envelope.Scored, payload.ScanID, env.CorrelationID, idemKey, envelope.ScoredPayload{
		ScanID:        payload.ScanID,
		CompletedAtMs: time.Now().UTC().UnixMilli(),
		TotalPairs:    int64(totalPairs),
	})
	if err != nil {
		return fmt.Errorf("build scored envelope: %w", err)
	}
	topic := h.ScoredTopic
	if topic == "" {
		topic = envelope.TopicScored
	}
	return h.Pub.Publish(ctx, topic, out)
}

func roundPercent(processed, total int) int {
	return int((float64(processed)/float64(total))*100 + 0.5)
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func (h *Handler) fail(ctx context.Context, env envelope.Envelope, cause error) error {
	return dlq.Handle(ctx, h.Repo, h.Pub, dlq.Input{
		Service:         "scoring-worker",
		ScanID:          env.ScanID,
		CorrelationID:   env.CorrelationID,
		ErrorCode:       string(errors.ScoringFailed),
		Err:             cause,
		OriginalTopic:   envelope.TopicCandidates,
		OriginalEventID: env.IdempotencyKey,
		DeadletterTopic: h.DeadletterTopic,
	})
}
