package ingress

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"testing"

	"github.com/chartlylabs/codesim/internal/model"
	"github.com/chartlylabs/codesim/pkg/envelope"
	"github.com/chartlylabs/codesim/pkg/store/blob"
)

type fakeRepo struct {
	scans        map[string]bool
	files        []model.File
	nextFileID   int64
	alerts       []model.Alert
	logs         []string
	failedScan   string
	failProgress int
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{scans: map[string]bool{}}
}

func (f *fakeRepo) CreateScan(ctx context.Context, scanID string, params map[string]any) error {
	f.scans[scanID] = true
	return nil
}
func (f *fakeRepo) InsertFile(ctx context.Context, file model.File) (int64, error) {
	f.nextFileID++
	file.FileID = f.nextFileID
	f.files = append(f.files, file)
	return f.nextFileID, nil
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
	if status != nil && *status == model.ScanFailed {
		f.failedScan = scanID
	}
	if progress != nil {
		f.failProgress = *progress
	}
	return nil
}

type fakeBlob struct {
	failOn string
}

func (b *fakeBlob) Put(ctx context.Context, objectKey string, body []byte) (blob.PutResult, error) {
	if b.failOn != "" && objectKey == b.failOn {
		return blob.PutResult{}, errors.New("simulated blob failure")
	}
	sum := sha256.Sum256(body)
	return blob.PutResult{ObjectKey: objectKey, Checksum: hex.EncodeToString(sum[:]), Size: int64(len(body))}, nil
}

type fakePublisher struct {
	published []envelope.Envelope
	fail      bool
}

func (p *fakePublisher) Publish(ctx context.Context, topic string, env envelope.Envelope) error {
	if p.fail {
		return errors.New("simulated publish failure")
	}
	p.published = append(p.published, env)
	return nil
}

func TestSubmitHappyPathEmitsOneSubmittedEvent(t *testing.T) {
	repo := newFakeRepo()
	blobs := &fakeBlob{}
	pub := &fakePublisher{}

	scanID, err := Submit(context.Background(), repo, blobs, pub, SubmitRequest{
		ObjectBucket: "codesim",
		Files: []SubmitFile{
			{Filename: "a.go", Content: []byte("package a")},
			{Filename: "b.go", Content: []byte("package b")},
		},
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if !repo.scans[scanID] {
		t.Fatalf("expected scan to be created")
	}
	if len(repo.files) != 2 {
		t.Fatalf("expected 2 files persisted, got %d", len(repo.files))
	}
	if len(pub.published) != 1 {
		t.Fatalf("expected exactly one submitted event, got %d", len(pub.published))
	}
	if pub.published[0].EventType != envelope.Submitted {
		t.Fatalf("expected submitted event type, got %s", pub.published[0].EventType)
	}
	if repo.failedScan != "" {
		t.Fatalf("expected no scan failure on happy path")
	}
}

func TestSubmitBlobFailureMarksScanFailed(t *testing.T) {
	repo := newFakeRepo()
	pub := &fakePublisher{}

	req := SubmitRequest{Files: []SubmitFile{{Filename: "a.go", Content: []byte("x")}}}
	always := alwaysFailBlob{}

	_, err := Submit(context.Background(), repo, always, pub, req)
	if err == nil {
		t.Fatalf("expected error from failing blob store")
	}
	if repo.failedScan == "" {
		t.Fatalf("expected scan to be marked failed")
	}
	if repo.failProgress != 100 {
		t.Fatalf("expected progress 100 on failure, got %d", repo.failProgress)
	}
	if len(repo.alerts) != 1 || repo.alerts[0].ErrorCode != "UPLOAD_FAILED" {
		t.Fatalf("expected one UPLOAD_FAILED alert, got %+v", repo.alerts)
	}
	if len(pub.published) != 0 {
		t.Fatalf("expected no submitted event on ingress failure")
	}
}

type alwaysFailBlob struct{}

func (alwaysFailBlob) Put(ctx context.Context, objectKey string, body []byte) (blob.PutResult, error) {
	return blob.PutResult{}, errors.New("blob store unavailable")
}

func TestSubmitPublishFailureMarksScanFailed(t *testing.T) {
	repo := newFakeRepo()
	blobs := &fakeBlob{}
	pub := &fakePublisher{fail: true}

	_, err := Submit(context.Background(), repo, blobs, pub, SubmitRequest{
		Files: []SubmitFile{{Filename: "a.go", Content: []byte("x")}},
	})
	if err == nil {
		t.Fatalf("expected error from failing publisher")
	}
	if repo.failedScan == "" {
		t.Fatalf("expected scan to be marked failed")
	}
	if len(repo.alerts) != 1 || repo.alerts[0].ErrorCode != "KAFKA_PUBLISH_FAILED" {
		t.Fatalf("expected one KAFKA_PUBLISH_FAILED alert, got %+v", repo.alerts)
	}
}

func TestSubmitRequiresAtLeastOneFile(t *testing.T) {
	repo := newFakeRepo()
	blobs := &fakeBlob{}
	pub := &fakePublisher{}
	if _, err := Submit(context.Background(), repo, blobs, pub, SubmitRequest{}); err == nil {
		t.Fatalf("expected error for empty file list")
	}
}
