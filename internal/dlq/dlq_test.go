package dlq

import (
	"context"
	"errors"
	"testing"

	"github.com/chartlylabs/codesim/internal/model"
	"github.com/chartlylabs/codesim/pkg/envelope"
)

type fakeRepo struct {
	alerts       []model.Alert
	logs         []string
	failedScanID string
	progress     int
}

func (f *fakeRepo) InsertAlert(ctx context.Context, a model.Alert) error {
	f.alerts = append(f.alerts, a)
	return nil
}
func (f *fakeRepo) AppendScanLog(ctx context.Context, scanID, message string) error {
	f.logs = append(f.logs, message)
	return nil
}
func (f *fakeRepo) UpdateScanStatusProgress(ctx context.Context, scanID string, status *model.ScanStatus, progress *int, paramsPatch map[string]any) error {
	if status != nil {
		f.failedScanID = scanID
	}
	if progress != nil {
		f.progress = *progress
	}
	return nil
}

type fakePublisher struct {
	published []envelope.Envelope
	topics    []string
}

func (f *fakePublisher) Publish(ctx context.Context, topic string, env envelope.Envelope) error {
	f.topics = append(f.topics, topic)
	f.published = append(f.published, env)
	return nil
}

func TestHandleMarksScanFailedAndEmitsDeadletter(t *testing.T) {
	repo := &fakeRepo{}
	pub := &fakePublisher{}

	err := Handle(context.Background(), repo, pub, Input{
		Service:         "scoring",
		ScanID:          "scan-1",
		CorrelationID:   "corr-1",
		ErrorCode:       "SCORING_FAILED",
		Err:             errors.New("cache miss for pair"),
		OriginalTopic:   "code.candidates",
		OriginalEventID: "pair-abc",
		DeadletterTopic: "code.deadletter",
	})
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if len(repo.alerts) != 1 {
		t.Fatalf("expected exactly one alert, got %d", len(repo.alerts))
	}
	if repo.alerts[0].ErrorCode != "SCORING_FAILED" {
		t.Fatalf("unexpected error code: %s", repo.alerts[0].ErrorCode)
	}
	if repo.failedScanID != "scan-1" || repo.progress != 100 {
		t.Fatalf("expected scan-1 marked failed at progress 100, got scan=%q progress=%d", repo.failedScanID, repo.progress)
	}
	if len(pub.published) != 1 || pub.topics[0] != "code.deadletter" {
		t.Fatalf("expected exactly one deadletter publish, got %d", len(pub.published))
	}
	if pub.published[0].EventType != envelope.Deadletter {
		t.Fatalf("expected deadletter event type, got %s", pub.published[0].EventType)
	}
}

func TestHandleWithoutScanIDSkipsScanMutation(t *testing.T) {
	repo := &fakeRepo{}
	pub := &fakePublisher{}

	err := Handle(context.Background(), repo, pub, Input{
		Service:         "ingress",
		CorrelationID:   "corr-1",
		ErrorCode:       "UPLOAD_FAILED",
		Err:             errors.New("blob put failed"),
		DeadletterTopic: "code.deadletter",
	})
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if len(repo.logs) != 0 {
		t.Fatalf("expected no scan log appended without a scan id")
	}
	if repo.failedScanID != "" {
		t.Fatalf("expected no scan mutation without a scan id")
	}
	if len(pub.published) != 1 {
		t.Fatalf("expected deadletter still emitted even without a scan id")
	}
	if pub.published[0].ScanID != "00000000-0000-0000-0000-000000000000" {
		t.Fatalf("expected nil UUID scan id fallback, got %q", pub.published[0].ScanID)
	}
}
