// Package normalizer implements the normalizer worker role: for each file
// of a submitted scan, canonicalize and tokenize its source once, cache the
// result by checksum, and emit one normalized event per file.
package normalizer

import (
	"context"
	"fmt"
	"unicode/utf8"

	"github.com/chartlylabs/codesim/internal/dlq"
	"github.com/chartlylabs/codesim/internal/model"
	"github.com/chartlylabs/codesim/internal/similarity"
	"github.com/chartlylabs/codesim/pkg/envelope"
	"github.com/chartlylabs/codesim/pkg/errors"
	"github.com/chartlylabs/codesim/pkg/idempotency"
)

// Repository is the subset of internal/repo.Repo the normalizer needs. It
// is a superset of dlq.Repository so Handler can hand itself straight to
// dlq.Handle on a fatal.
type Repository interface {
	GetScan(ctx context.Context, scanID string) (model.Scan, error)
	UpdateScanStatusProgress(ctx context.Context, scanID string, status *model.ScanStatus, progress *int, paramsPatch map[string]any) error
	AppendScanLog(ctx context.Context, scanID, message string) error
	InsertAlert(ctx context.Context, a model.Alert) error
}

// Cache is the subset of pkg/store/cache.Cache the normalizer needs.
type Cache interface {
	Has(ctx context.Context, checksum string) (bool, error)
	Set(ctx context.Context, checksum, normalized string, tokens []string) error
}

// BlobGetter is the subset of pkg/store/blob.Store the normalizer needs.
type BlobGetter interface {
	Get(ctx context.Context, objectKey string) ([]byte, error)
}

// Publisher is the subset of pkg/bus.Producer the normalizer needs.
type Publisher interface {
	Publish(ctx context.Context, topic string, env envelope.Envelope) error
}

// Handler consumes code.submitted events and emits code.normalized events.
// It satisfies pkg/bus.Handler; fatals are swallowed into internal/dlq
// rather than returned, so the bus offset still advances.
type Handler struct {
	Repo            Repository
	Cache           Cache
	Blobs           BlobGetter
	Pub             Publisher
	NormalizedTopic string
	DeadletterTopic string
}

func (h *Handler) Handle(ctx context.Context, env envelope.Envelope) error {
	if env.EventType != envelope.Submitted {
		return nil
	}
	var payload envelope.SubmittedPayload
	if err := env.DecodePayload(&payload); err != nil {
		return h.fail(ctx, env, fmt.Errorf("decode submitted payload: %w", err))
	}
	if err := h.process(ctx, env, payload); err != nil {
		return h.fail(ctx, env, err)
	}
	return nil
}

func (h *Handler) process(ctx context.Context, env envelope.Envelope, payload envelope.SubmittedPayload) error {
	scan, err := h.Repo.GetScan(ctx, payload.ScanID)
	if err != nil {
		return fmt.Errorf("get scan: %w", err)
	}
	// Only the first submitted event for a scan may move it out of PENDING;
	// a redelivery (including after the scan has reached DONE) must be a
	// no-op here so status/progress never regress.
	if scan.Status == model.ScanPending {
		normalizing := model.ScanNormalizing
		progress := 1
		if err := h.Repo.UpdateScanStatusProgress(ctx, payload.ScanID, &normalizing, &progress, map[string]any{}); err != nil {
			return fmt.Errorf("transition to normalizing: %w", err)
		}
	}
	if err := h.Repo.AppendScanLog(ctx, payload.ScanID, fmt.Sprintf("Normalizer: received %d file(s)", len(payload.Files))); err != nil {
		return fmt.Errorf("append scan log: %w", err)
	}

	for _, f := range payload.Files {
		if err := h.processFile(ctx, env, payload, f); err != nil {
			return fmt.Errorf("normalize file %d: %w", f.FileID, err)
		}
	}

	return h.Repo.AppendScanLog(ctx, payload.ScanID, "Normalizer: emitted code.normalized")
}

func (h *Handler) processFile(ctx context.Context, env envelope.Envelope, payload envelope.SubmittedPayload, f envelope.SubmittedFile) error {
	cacheHit, err := h.Cache.Has(ctx, f.Checksum)
	if err != nil {
		return fmt.Errorf("cache has: %w", err)
	}

	if !cacheHit {
		raw, err := h.Blobs.Get(ctx, f.ObjectKey)
		if err != nil {
			return fmt.Errorf("fetch blob: %w", err)
		}
		text := decodeText(raw)
		normalized := similarity.Normalize(text)
		tokens := similarity.Tokenize(normalized)
		if err := h.Cache.Set(ctx, f.Checksum, normalized, tokens); err != nil {
			return fmt.Errorf("cache set: %w", err)
		}
	}

	language := ""
	if f.Language != nil {
		language = *f.Language
	}
	normPayload := envelope.NormalizedPayload{
		ScanID:       payload.ScanID,
		FileID:       f.FileID,
		ObjectBucket: payload.ObjectBucket,
		ObjectKey:    f.ObjectKey,
		Checksum:     f.Checksum,
		Language:     language,
		CacheHit:     cacheHit,
		NormalizedRef: envelope.NormalizedRef{
			RedisNormKey:   "norm:" + f.Checksum,
			RedisTokensKey: "tokens:" + f.Checksum,
		},
	}
	idemKey := idempotency.NormalizedKey(payload.ScanID, f.FileID, f.Checksum)
	out, err := envelope.New(envelope.Normalized, payload.ScanID, env.CorrelationID, idemKey, normPayload)
	if err != nil {
		return fmt.Errorf("build normalized envelope: %w", err)
	}
	topic := h.NormalizedTopic
	if topic == "" {
		topic = envelope.TopicNormalized
	}
	return h.Pub.Publish(ctx, topic, out)
}

// decodeText decodes raw source bytes as UTF-8, falling back to a
// byte-for-byte Latin-1 (ISO-8859-1) decode when the bytes aren't valid
// UTF-8 — every byte 0x00-0xFF maps to the identically-numbered rune, so
// this never fails.
func decodeText(raw []byte) string {
	if utf8.Valid(raw) {
		return string(raw)
	}
	runes := make([]rune, len(raw))
	for i, b := range raw {
		runes[i] = rune(b)
	}
	return string(runes)
}

func (h *Handler) fail(ctx context.Context, env envelope.Envelope, cause error) error {
	return dlq.Handle(ctx, h.Repo, h.Pub, dlq.Input{
		Service:         "normalizer-worker",
		ScanID:          env.ScanID,
		CorrelationID:   env.CorrelationID,
		ErrorCode:       string(errors.NormalizeFailed),
		Err:             cause,
		OriginalTopic:   envelope.TopicSubmitted,
		OriginalEventID: env.IdempotencyKey,
		DeadletterTopic: h.DeadletterTopic,
	})
}
