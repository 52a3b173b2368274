// Package dlq implements the fatal-handling path shared by every worker:
// insert an Alert, log and fail the scan, and emit exactly one deadletter
// event — then the caller acknowledges the bus offset regardless, by
// design, so a poison-pill message can never wedge a consumer group.
package dlq

import (
	"context"
	"fmt"

	"github.com/chartlylabs/codesim/internal/model"
	"github.com/chartlylabs/codesim/pkg/envelope"
	"github.com/chartlylabs/codesim/pkg/idempotency"
)

// Repository is the subset of internal/repo.Repo the dead-letter path needs.
type Repository interface {
	InsertAlert(ctx context.Context, a model.Alert) error
	AppendScanLog(ctx context.Context, scanID, message string) error
	UpdateScanStatusProgress(ctx context.Context, scanID string, status *model.ScanStatus, progress *int, paramsPatch map[string]any) error
}

// Publisher is the subset of pkg/bus.Producer the dead-letter path needs.
type Publisher interface {
	Publish(ctx context.Context, topic string, env envelope.Envelope) error
}

// Input describes the fatal being dead-lettered.
type Input struct {
	Service         string
	ScanID          string // may be "" if the failure precedes scan creation
	CorrelationID   string
	ErrorCode       string
	Err             error
	OriginalTopic   string
	OriginalEventID string // the failed message's idempotency_key, for traceability
	Partition       *int32
	Offset          *int64
	DeadletterTopic string
}

// Handle performs the full propagation policy:
//  1. inserts an Alert row,
//  2. (if ScanID is known) appends a scan log line and marks the scan FAILED
//     with progress 100,
//  3. emits one deadletter event with a deterministic key.
//
// The relational transaction that caused the fatal must already have been
// rolled back by the caller before Handle runs — this function only issues
// fresh repository calls, each committed on its own, with no transaction
// spanning them.
func Handle(ctx context.Context, repo Repository, pub Publisher, in Input) error {
	code := in.ErrorCode
	if code == "" {
		code = "UNHANDLED"
	}
	errMsg := ""
	if in.Err != nil {
		errMsg = in.Err.Error()
	}

	payload := envelope.DeadletterPayload{
		OriginalTopic: in.OriginalTopic,
		OriginalEvent: in.OriginalEventID,
		Error:         errMsg,
		Partition:     in.Partition,
		Offset:        in.Offset,
	}

	var scanIDPtr *string
	if in.ScanID != "" {
		scanIDPtr = &in.ScanID
	}
	if err := repo.InsertAlert(ctx, model.Alert{
		ScanID:    scanIDPtr,
		Service:   in.Service,
		ErrorCode: code,
		Message:   errMsg,
		Payload: map[string]any{
			"original_topic": in.OriginalTopic,
			"original_event": in.OriginalEventID,
			"error":          errMsg,
			"partition":      in.Partition,
			"offset":         in.Offset,
		},
	}); err != nil {
		return fmt.Errorf("dlq: insert alert: %w", err)
	}

	if in.ScanID != "" {
		if err := repo.AppendScanLog(ctx, in.ScanID, fmt.Sprintf("%s fatal: %s: %s", in.Service, code, errMsg)); err != nil {
			return fmt.Errorf("dlq: append scan log: %w", err)
		}
		failed := model.ScanFailed
		progress := 100
		if err := repo.UpdateScanStatusProgress(ctx, in.ScanID, &failed, &progress, map[string]any{}); err != nil {
			return fmt.Errorf("dlq: mark scan failed: %w", err)
		}
	}

	idemKey := idempotency.DeadletterKey(in.Service, in.ScanID, in.CorrelationID, code)
	envScanID := in.ScanID
	if envScanID == "" {
		// A fatal before a Scan exists still needs a routable envelope;
		// the nil UUID makes that case visible downstream.
		envScanID = "00000000-0000-0000-0000-000000000000"
	}
	env, err := envelope.New(envelope.Deadletter, envScanID, in.CorrelationID, idemKey, payload)
	if err != nil {
		return fmt.Errorf("dlq: build envelope: %w", err)
	}
	if err := pub.Publish(ctx, in.DeadletterTopic, env); err != nil {
		return fmt.Errorf("dlq: publish deadletter: %w", err)
	}
	return nil
}
