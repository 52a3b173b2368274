// Package results projects relational data into the shapes an upload
// collaborator reads back: the score label and the pair/alert listings.
package results

import (
	"context"

	"github.com/chartlylabs/codesim/internal/model"
)

// Label classifies a similarity score into a coarse risk band.
func Label(score float64) string {
	switch {
	case score > 70:
		return "high"
	case score > 40:
		return "medium"
	default:
		return "low"
	}
}

// Repository is the subset of internal/repo.Repo this package reads from.
type Repository interface {
	GetScan(ctx context.Context, scanID string) (model.Scan, error)
	ListResultsPairsForScan(ctx context.Context, scanID string, limit int) ([]model.ResultView, error)
	ListAlerts(ctx context.Context, scanID *string, limit int) ([]model.Alert, error)
	ListScansSummary(ctx context.Context, limit int) ([]model.ScanSummary, error)
}

// ScanStatusView is the minimal status projection exposed while a scan has
// not reached DONE.
type ScanStatusView struct {
	Status   model.ScanStatus
	Progress int
}

// ListPairsForScan returns the ranked, label-projected results for scanID.
// If the scan has not reached DONE, ok is false and callers should surface
// {status: "processing"} instead.
func ListPairsForScan(ctx context.Context, repo Repository, scanID string, limit int) (views []model.ResultView, status ScanStatusView, ok bool, err error) {
	scan, err := repo.GetScan(ctx, scanID)
	if err != nil {
		return nil, ScanStatusView{}, false, err
	}
	status = ScanStatusView{Status: scan.Status, Progress: scan.Progress}
	if scan.Status != model.ScanDone {
		return nil, status, false, nil
	}
	rows, err := repo.ListResultsPairsForScan(ctx, scanID, limit)
	if err != nil {
		return nil, status, false, err
	}
	for i := range rows {
		rows[i].Label = Label(rows[i].Score)
	}
	return rows, status, true, nil
}

// ListAlerts returns the most recent alerts, optionally scoped to one scan.
func ListAlerts(ctx context.Context, repo Repository, scanID *string, limit int) ([]model.Alert, error) {
	return repo.ListAlerts(ctx, scanID, limit)
}

// ListScans returns the most recent scan summaries.
func ListScans(ctx context.Context, repo Repository, limit int) ([]model.ScanSummary, error) {
	return repo.ListScansSummary(ctx, limit)
}
