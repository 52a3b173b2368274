package results

import (
	"context"
	"testing"

	"github.com/chartlylabs/codesim/internal/model"
)

func TestLabelThresholds(t *testing.T) {
	cases := []struct {
		score float64
		want  string
	}{
		{0, "low"},
		{40, "low"},
		{40.01, "medium"},
		{70, "medium"},
		{70.01, "high"},
		{100, "high"},
	}
	for _, c := range cases {
		if got := Label(c.score); got != c.want {
			t.Fatalf("Label(%v) = %q, want %q", c.score, got, c.want)
		}
	}
}

type fakeRepo struct {
	scan   model.Scan
	rows   []model.ResultView
	alerts []model.Alert
}

func (f *fakeRepo) GetScan(ctx context.Context, scanID string) (model.Scan, error) { return f.scan, nil }
func (f *fakeRepo) ListResultsPairsForScan(ctx context.Context, scanID string, limit int) ([]model.ResultView, error) {
	return f.rows, nil
}
func (f *fakeRepo) ListAlerts(ctx context.Context, scanID *string, limit int) ([]model.Alert, error) {
	return f.alerts, nil
}
func (f *fakeRepo) ListScansSummary(ctx context.Context, limit int) ([]model.ScanSummary, error) {
	return nil, nil
}

func TestListPairsForScanNotDoneReturnsProcessing(t *testing.T) {
	repo := &fakeRepo{scan: model.Scan{Status: model.ScanNormalizing, Progress: 40}}
	views, status, ok, err := ListPairsForScan(context.Background(), repo, "scan-1", 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatalf("expected ok=false while not DONE")
	}
	if views != nil {
		t.Fatalf("expected no views while not DONE")
	}
	if status.Status != model.ScanNormalizing || status.Progress != 40 {
		t.Fatalf("unexpected status projection: %+v", status)
	}
}

func TestListPairsForScanDoneAppliesLabels(t *testing.T) {
	repo := &fakeRepo{
		scan: model.Scan{Status: model.ScanDone, Progress: 100},
		rows: []model.ResultView{{FileAID: 1, FileBID: 2, Score: 85}},
	}
	views, _, ok, err := ListPairsForScan(context.Background(), repo, "scan-1", 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Fatalf("expected ok=true when DONE")
	}
	if len(views) != 1 || views[0].Label != "high" {
		t.Fatalf("expected label high, got %+v", views)
	}
}
