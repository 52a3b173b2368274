// Package candidates implements the candidate-retrieval worker role: the
// fan-in barrier that waits for every file of a scan to finish normalizing,
// then emits exactly one candidates event per unordered file pair.
package candidates

import (
	"context"
	"fmt"

	"github.com/chartlylabs/codesim/internal/dlq"
	"github.com/chartlylabs/codesim/internal/model"
	"github.com/chartlylabs/codesim/pkg/envelope"
	"github.com/chartlylabs/codesim/pkg/errors"
	"github.com/chartlylabs/codesim/pkg/idempotency"
)

// Repository is the subset of internal/repo.Repo the candidate-retrieval
// worker needs. It is a superset of dlq.Repository.
type Repository interface {
	MarkFileNormalized(ctx context.Context, fileID int64) error
	AppendScanLog(ctx context.Context, scanID, message string) error
	CountFilesNormalized(ctx context.Context, scanID string) (total, normalized int, err error)
	ListFilesForScan(ctx context.Context, scanID string) ([]model.File, error)
	TryMarkPairsGenerated(ctx context.Context, scanID string, totalPairs int) (bool, error)
	UpdateScanStatusProgress(ctx context.Context, scanID string, status *model.ScanStatus, progress *int, paramsPatch map[string]any) error
	InsertAlert(ctx context.Context, a model.Alert) error
}

// Publisher is the subset of pkg/bus.Producer the worker needs.
type Publisher interface {
	Publish(ctx context.Context, topic string, env envelope.Envelope) error
}

// Handler consumes code.normalized events and, once every file of a scan
// has been marked normalized, emits the scan's full candidate set. It
// satisfies pkg/bus.Handler.
type Handler struct {
	Repo            Repository
	Pub             Publisher
	CandidatesTopic string
	DeadletterTopic string
}

func (h *Handler) Handle(ctx context.Context, env envelope.Envelope) error {
	if env.EventType != envelope.Normalized {
		return nil
	}
	var payload envelope.NormalizedPayload
	if err := env.DecodePayload(&payload); err != nil {
		return h.fail(ctx, env, fmt.Errorf("decode normalized payload: %w", err))
	}
	if err := h.process(ctx, env, payload); err != nil {
		return h.fail(ctx, env, err)
	}
	return nil
}

func (h *Handler) process(ctx context.Context, env envelope.Envelope, payload envelope.NormalizedPayload) error {
	if err := h.Repo.MarkFileNormalized(ctx, payload.FileID); err != nil {
		return fmt.Errorf("mark file normalized: %w", err)
	}
	if err := h.Repo.AppendScanLog(ctx, payload.ScanID, fmt.Sprintf("Candidate retrieval: file %d normalized", payload.FileID)); err != nil {
		return fmt.Errorf("append scan log: %w", err)
	}

	total, normalized, err := h.Repo.CountFilesNormalized(ctx, payload.ScanID)
	if err != nil {
		return fmt.Errorf("count files normalized: %w", err)
	}

	// Generate candidates only once, when all files are normalized.
	if total <= 1 || normalized != total {
		return nil
	}

	files, err := h.Repo.ListFilesForScan(ctx, payload.ScanID)
	if err != nil {
		return fmt.Errorf("list files for scan: %w", err)
	}
	totalPairs := len(files) * (len(files) - 1) / 2

	// Single-shot latch: a crash between this call returning true and the
	// last emitPair below means the remaining pairs never get generated,
	// since no redelivery will see pairs_generated still false.
	ok, err := h.Repo.TryMarkPairsGenerated(ctx, payload.ScanID, totalPairs)
	if err != nil {
		return fmt.Errorf("try mark pairs generated: %w", err)
	}
	if !ok {
		return nil
	}

	scoring := model.ScanScoring
	progress := 5
	if err := h.Repo.UpdateScanStatusProgress(ctx, payload.ScanID, &scoring, &progress, map[string]any{
		"normalized_files": normalized,
		"total_files":      total,
	}); err != nil {
		return fmt.Errorf("transition to scoring: %w", err)
	}
	if err := h.Repo.AppendScanLog(ctx, payload.ScanID, fmt.Sprintf("Generating %d candidate pair(s)", totalPairs)); err != nil {
		return fmt.Errorf("append scan log: %w", err)
	}

	for i := 0; i < len(files); i++ {
		for j := i + 1; j < len(files); j++ {
			if err := h.emitPair(ctx, env, payload.ScanID, files[i], files[j]); err != nil {
				return fmt.Errorf("emit candidate pair: %w", err)
			}
		}
	}

	return h.Repo.AppendScanLog(ctx, payload.ScanID, "Candidate retrieval: emitted code.candidates")
}

func (h *Handler) emitPair(ctx context.Context, env envelope.Envelope, scanID string, fa, fb model.File) error {
	// Canonical ordering for idempotence and the DB's unique constraint.
	if fa.FileID > fb.FileID {
		fa, fb = fb, fa
	}
	pairID := idempotency.PairID(scanID, fa.FileID, fb.FileID)
	idemKey := idempotency.CandidatesKey(pairID)

	var langA, langB string
	if fa.Language != nil {
		langA = *fa.Language
	}
	if fb.Language != nil {
		langB = *fb.Language
	}

	payload := envelope.CandidatesPayload{
		ScanID:    scanID,
		PairID:    pairID,
		FileAID:   fa.FileID,
		FileBID:   fb.FileID,
		ChecksumA: fa.Checksum,
		ChecksumB: fb.Checksum,
		LanguageA: langA,
		LanguageB: langB,
	}
	out, err := envelope.New(envelope.Candidates, scanID, env.CorrelationID, idemKey, payload)
	if err != nil {
		return fmt.Errorf("build candidates envelope: %w", err)
	}
	topic := h.CandidatesTopic
	if topic == "" {
		topic = envelope.TopicCandidates
	}
	return h.Pub.Publish(ctx, topic, out)
}

func (h *Handler) fail(ctx context.Context, env envelope.Envelope, cause error) error {
	return dlq.Handle(ctx, h.Repo, h.Pub, dlq.Input{
		Service:         "candidate-retrieval-worker",
		ScanID:          env.ScanID,
		CorrelationID:   env.CorrelationID,
		ErrorCode:       string(errors.CandidateFailed),
		Err:             cause,
		OriginalTopic:   envelope.TopicNormalized,
		OriginalEventID: env.IdempotencyKey,
		DeadletterTopic: h.DeadletterTopic,
	})
}
