// Package ingress implements the boundary contract consumed from the HTTP
// upload collaborator: persist the Scan, persist its Files, put their
// blobs, and emit exactly one submitted event, as one logical unit.
// Partial failure before bus emission marks the scan FAILED — ingress
// failures are surfaced directly to the caller, not dead-lettered, since
// there is no bus offset to protect here.
package ingress

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/chartlylabs/codesim/internal/model"
	"github.com/chartlylabs/codesim/pkg/envelope"
	"github.com/chartlylabs/codesim/pkg/errors"
	"github.com/chartlylabs/codesim/pkg/idempotency"
	"github.com/chartlylabs/codesim/pkg/store/blob"
)

// Repository is the subset of internal/repo.Repo ingress needs.
type Repository interface {
	CreateScan(ctx context.Context, scanID string, params map[string]any) error
	InsertFile(ctx context.Context, f model.File) (int64, error)
	InsertAlert(ctx context.Context, a model.Alert) error
	AppendScanLog(ctx context.Context, scanID, message string) error
	UpdateScanStatusProgress(ctx context.Context, scanID string, status *model.ScanStatus, progress *int, paramsPatch map[string]any) error
}

// BlobPutter is the subset of pkg/store/blob.Store ingress needs.
type BlobPutter interface {
	Put(ctx context.Context, objectKey string, body []byte) (blob.PutResult, error)
}

// Publisher is the subset of pkg/bus.Producer ingress needs.
type Publisher interface {
	Publish(ctx context.Context, topic string, env envelope.Envelope) error
}

// SubmitFile is one file of an incoming scan request, before it has an id
// or an object key.
type SubmitFile struct {
	Filename string
	Language *string
	Content  []byte
}

// SubmitRequest is the full incoming scan request.
type SubmitRequest struct {
	// CorrelationID ties every event of this scan together. A fresh one is
	// generated if empty.
	CorrelationID string
	// ObjectBucket is recorded into the submitted payload for workers that
	// need to know which bucket to fetch from.
	ObjectBucket   string
	Options        map[string]any
	Files          []SubmitFile
	SubmittedTopic string
}

// Submit performs the ingress boundary contract and returns the new scan's
// id. On any failure after the Scan row exists, the scan is marked FAILED
// before the error is returned; the caller is expected to surface that
// error directly, not retry it as a worker would.
func Submit(ctx context.Context, repo Repository, blobs BlobPutter, pub Publisher, req SubmitRequest) (scanID string, err error) {
	if len(req.Files) == 0 {
		return "", fmt.Errorf("ingress: at least one file required")
	}
	scanID = uuid.NewString()
	correlationID := req.CorrelationID
	if correlationID == "" {
		correlationID = uuid.NewString()
	}

	if err := repo.CreateScan(ctx, scanID, map[string]any{
		"logs":            []any{},
		"pairs_generated": false,
		"done_emitted":    false,
	}); err != nil {
		return "", fmt.Errorf("ingress: create scan: %w", err)
	}

	files, putErr := persistFiles(ctx, repo, blobs, scanID, req.Files)
	if putErr != nil {
		return scanID, failScan(ctx, repo, scanID, string(errors.UploadFailed), putErr)
	}

	payload := envelope.SubmittedPayload{
		ScanID:        scanID,
		ObjectBucket:  req.ObjectBucket,
		Files:         files,
		Options:       req.Options,
		SubmittedAtMs: time.Now().UTC().UnixMilli(),
	}
	idemKey := idempotency.SubmittedKey(scanID, correlationID)
	env, err := envelope.New(envelope.Submitted, scanID, correlationID, idemKey, payload)
	if err != nil {
		return scanID, failScan(ctx, repo, scanID, string(errors.UploadFailed), err)
	}

	topic := req.SubmittedTopic
	if topic == "" {
		topic = envelope.TopicSubmitted
	}
	if err := pub.Publish(ctx, topic, env); err != nil {
		return scanID, failScan(ctx, repo, scanID, string(errors.KafkaPublishFailed), err)
	}
	return scanID, nil
}

func persistFiles(ctx context.Context, repo Repository, blobs BlobPutter, scanID string, in []SubmitFile) ([]envelope.SubmittedFile, error) {
	out := make([]envelope.SubmittedFile, 0, len(in))
	for _, f := range in {
		objectKey := fmt.Sprintf("%s/%s__%s", scanID, uuid.NewString(), f.Filename)
		put, err := blobs.Put(ctx, objectKey, f.Content)
		if err != nil {
			return nil, fmt.Errorf("put blob %s: %w", f.Filename, err)
		}
		fileID, err := repo.InsertFile(ctx, model.File{
			ScanID:    scanID,
			Filename:  f.Filename,
			ObjectKey: put.ObjectKey,
			Checksum:  put.Checksum,
			Language:  f.Language,
			Size:      put.Size,
		})
		if err != nil {
			return nil, fmt.Errorf("insert file %s: %w", f.Filename, err)
		}
		out = append(out, envelope.SubmittedFile{
			FileID:    fileID,
			Filename:  f.Filename,
			ObjectKey: put.ObjectKey,
			Checksum:  put.Checksum,
			Language:  f.Language,
			Size:      put.Size,
		})
	}
	return out, nil
}

// failScan records the ingress failure as an Alert, logs it onto the scan,
// and transitions the scan to FAILED at progress 100. It returns an error
// wrapping the original cause so the HTTP collaborator can surface it
// directly.
func failScan(ctx context.Context, repo Repository, scanID, code string, cause error) error {
	if err := repo.InsertAlert(ctx, model.Alert{
		ScanID:    &scanID,
		Service:   "ingress",
		ErrorCode: code,
		Message:   cause.Error(),
		Payload:   map[string]any{"error": cause.Error()},
	}); err != nil {
		return fmt.Errorf("ingress: %w (also failed to record alert: %v)", cause, err)
	}
	_ = repo.AppendScanLog(ctx, scanID, fmt.Sprintf("ingress fatal: %s: %s", code, cause.Error()))
	failed := model.ScanFailed
	progress := 100
	_ = repo.UpdateScanStatusProgress(ctx, scanID, &failed, &progress, map[string]any{})
	return fmt.Errorf("ingress: %w", cause)
}
