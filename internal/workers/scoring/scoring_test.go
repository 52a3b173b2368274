package scoring

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/chartlylabs/codesim/internal/model"
	"github.com/chartlylabs/codesim/pkg/envelope"
)

type fakeRepo struct {
	status        model.ScanStatus
	results       []model.Result
	totalPairs    int
	hasTotal      bool
	processed     int
	doneEmittedOK bool
	statuses      []model.ScanStatus
	progresses    []int
	logs          []string
	alerts        []model.Alert
}

func (f *fakeRepo) UpsertResult(ctx context.Context, res model.Result) error {
	f.results = append(f.results, res)
	f.processed = len(f.results)
	return nil
}
func (f *fakeRepo) GetTotalPairs(ctx context.Context, scanID string) (int, bool, error) {
	return f.totalPairs, f.hasTotal, nil
}
func (f *fakeRepo) CountResults(ctx context.Context, scanID string) (int, error) {
	return f.processed, nil
}
func (f *fakeRepo) TryMarkDoneEmitted(ctx context.Context, scanID string) (bool, error) {
	if f.doneEmittedOK {
		return false, nil
	}
	f.doneEmittedOK = true
	return true, nil
}
func (f *fakeRepo) AppendScanLog(ctx context.Context, scanID, message string) error {
	f.logs = append(f.logs, message)
	return nil
}
func (f *fakeRepo) UpdateScanStatusProgress(ctx context.Context, scanID string, status *model.ScanStatus, progress *int, paramsPatch map[string]any) error {
	if status != nil {
		f.status = *status
		f.statuses = append(f.statuses, *status)
	}
	if progress != nil {
		f.progresses = append(f.progresses, *progress)
	}
	return nil
}
func (f *fakeRepo) InsertAlert(ctx context.Context, a model.Alert) error {
	f.alerts = append(f.alerts, a)
	return nil
}
func (f *fakeRepo) GetScan(ctx context.Context, scanID string) (model.Scan, error) {
	return model.Scan{ScanID: scanID, Status: f.status, CreatedAt: time.Now().UTC().Add(-time.Minute)}, nil
}

type fakeTokens struct {
	tokens map[string][]string
}

func (t *fakeTokens) GetTokens(ctx context.Context, checksum string) ([]string, error) {
	toks, ok := t.tokens[checksum]
	if !ok {
		return nil, errors.New("tokens miss")
	}
	return toks, nil
}

type fakePublisher struct {
	published []envelope.Envelope
	topics    []string
}

func (p *fakePublisher) Publish(ctx context.Context, topic string, env envelope.Envelope) error {
	p.topics = append(p.topics, topic)
	p.published = append(p.published, env)
	return nil
}

func candidatesEnvelope(t *testing.T, aID, bID int64, checksumA, checksumB string) envelope.Envelope {
	t.Helper()
	env, err := envelope.New(envelope.Candidates, "scan-1", "corr-1", "key-1", envelope.CandidatesPayload{
		ScanID:    "scan-1",
		PairID:    "pair-1",
		FileAID:   aID,
		FileBID:   bID,
		ChecksumA: checksumA,
		ChecksumB: checksumB,
	})
	if err != nil {
		t.Fatalf("build candidates envelope: %v", err)
	}
	return env
}

func TestHandleScoresIdenticalTokensAsHundred(t *testing.T) {
	repo := &fakeRepo{totalPairs: 1, hasTotal: true}
	tokens := &fakeTokens{tokens: map[string][]string{
		"aaa": {"package", "a"},
		"bbb": {"package", "a"},
	}}
	pub := &fakePublisher{}
	h := &Handler{Repo: repo, Tokens: tokens, Pub: pub}

	if err := h.Handle(context.Background(), candidatesEnvelope(t, 1, 2, "aaa", "bbb")); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if len(repo.results) != 1 || repo.results[0].Score != 100 {
		t.Fatalf("expected a single 100%% result, got %+v", repo.results)
	}
}

func TestHandleMarksDoneAndEmitsScoredOnLastPair(t *testing.T) {
	repo := &fakeRepo{totalPairs: 1, hasTotal: true}
	tokens := &fakeTokens{tokens: map[string][]string{
		"aaa": {"x"},
		"bbb": {"y"},
	}}
	pub := &fakePublisher{}
	h := &Handler{Repo: repo, Tokens: tokens, Pub: pub}

	if err := h.Handle(context.Background(), candidatesEnvelope(t, 1, 2, "aaa", "bbb")); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	foundDone := false
	for _, s := range repo.statuses {
		if s == model.ScanDone {
			foundDone = true
		}
	}
	if !foundDone {
		t.Fatalf("expected scan marked DONE, got statuses %+v", repo.statuses)
	}
	if len(pub.published) != 1 || pub.published[0].EventType != envelope.Scored {
		t.Fatalf("expected exactly one scored event, got %+v", pub.published)
	}
}

func TestHandleDoesNotMarkDoneBeforeLastPair(t *testing.T) {
	repo := &fakeRepo{totalPairs: 3, hasTotal: true}
	tokens := &fakeTokens{tokens: map[string][]string{
		"aaa": {"x"},
		"bbb": {"y"},
	}}
	pub := &fakePublisher{}
	h := &Handler{Repo: repo, Tokens: tokens, Pub: pub}

	if err := h.Handle(context.Background(), candidatesEnvelope(t, 1, 2, "aaa", "bbb")); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	for _, s := range repo.statuses {
		if s == model.ScanDone {
			t.Fatalf("did not expect DONE after only 1 of 3 pairs scored")
		}
	}
	if len(pub.published) != 0 {
		t.Fatalf("expected no scored event before the scan completes")
	}
}

func TestHandleCacheMissDeadletters(t *testing.T) {
	repo := &fakeRepo{totalPairs: 1, hasTotal: true}
	tokens := &fakeTokens{tokens: map[string][]string{}}
	pub := &fakePublisher{}
	h := &Handler{Repo: repo, Tokens: tokens, Pub: pub, DeadletterTopic: "code.deadletter"}

	if err := h.Handle(context.Background(), candidatesEnvelope(t, 1, 2, "aaa", "bbb")); err != nil {
		t.Fatalf("Handle should swallow the fatal into dlq, got %v", err)
	}
	if len(repo.alerts) != 1 || repo.alerts[0].ErrorCode != "SCORING_FAILED" {
		t.Fatalf("expected one SCORING_FAILED alert, got %+v", repo.alerts)
	}
	if len(pub.published) != 1 || pub.topics[0] != "code.deadletter" {
		t.Fatalf("expected exactly one deadletter publish, got %d", len(pub.published))
	}
}

func TestHandleOrdersCanonicallyRegardlessOfPayloadOrder(t *testing.T) {
	repo := &fakeRepo{totalPairs: 1, hasTotal: true}
	tokens := &fakeTokens{tokens: map[string][]string{
		"aaa": {"x"},
		"bbb": {"y"},
	}}
	pub := &fakePublisher{}
	h := &Handler{Repo: repo, Tokens: tokens, Pub: pub}

	// file_a_id/file_b_id arrive swapped relative to canonical order.
	if err := h.Handle(context.Background(), candidatesEnvelope(t, 2, 1, "bbb", "aaa")); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if len(repo.results) != 1 || repo.results[0].FileAID != 1 || repo.results[0].FileBID != 2 {
		t.Fatalf("expected canonically ordered result, got %+v", repo.results)
	}
}

func TestHandleRedeliveredCandidatesAfterDoneDoesNotRegressState(t *testing.T) {
	repo := &fakeRepo{status: model.ScanDone, totalPairs: 1, hasTotal: true}
	tokens := &fakeTokens{tokens: map[string][]string{
		"aaa": {"x"},
		"bbb": {"y"},
	}}
	pub := &fakePublisher{}
	h := &Handler{Repo: repo, Tokens: tokens, Pub: pub}

	for i := 0; i < 5; i++ {
		if err := h.Handle(context.Background(), candidatesEnvelope(t, 1, 2, "aaa", "bbb")); err != nil {
			t.Fatalf("Handle: %v", err)
		}
	}
	if len(repo.results) != 0 {
		t.Fatalf("expected no Result rows written once the scan is DONE, got %+v", repo.results)
	}
	if len(repo.statuses) != 0 || len(repo.progresses) != 0 {
		t.Fatalf("expected no status/progress mutation once the scan is DONE, got statuses=%+v progresses=%+v", repo.statuses, repo.progresses)
	}
	if len(pub.published) != 0 {
		t.Fatalf("expected no scored event re-emitted on redelivery, got %+v", pub.published)
	}
}
