// Package model defines the domain entities of the similarity-scanning
// pipeline: Scan, File, Result, Alert, plus the listing projections.
// Concrete storage lives in internal/repo and pkg/store/*; this package
// stays storage-agnostic.
package model

import "time"

// ScanStatus is the lifecycle state of a Scan.
type ScanStatus string

const (
	ScanPending     ScanStatus = "PENDING"
	ScanNormalizing ScanStatus = "NORMALIZING"
	ScanScoring     ScanStatus = "SCORING"
	ScanDone        ScanStatus = "DONE"
	ScanFailed      ScanStatus = "FAILED"
)

// LogEntry is one append-only line of a scan's params.logs. Time is the
// UTC wall-clock time of the entry as "HH:MM:SS" text.
type LogEntry struct {
	Time    string `json:"time"`
	Message string `json:"message"`
}

// Scan is the aggregate root of one similarity-scanning request.
type Scan struct {
	ScanID    string
	CreatedAt time.Time
	Status    ScanStatus
	Progress  int

	// Params is the free-form bag: logs, total_pairs, pairs_generated,
	// done_emitted, runtime_ms, and the progress counters workers patch in.
	Params map[string]any
}

// File is one source file belonging to a Scan.
type File struct {
	FileID       int64
	ScanID       string
	Filename     string
	ObjectKey    string
	Checksum     string
	Language     *string
	Size         int64
	CreatedAt    time.Time
	NormalizedAt *time.Time
}

// Result is the score for one unordered file pair within a scan. FileAID is
// always the smaller id (canonical ordering).
type Result struct {
	ScanID    string
	FileAID   int64
	FileBID   int64
	Score     float64
	Details   map[string]any
	CreatedAt time.Time
}

// Alert is an append-only incident record.
type Alert struct {
	AlertID   int64
	ScanID    *string
	Service   string
	ErrorCode string
	Message   string
	Payload   map[string]any
	CreatedAt time.Time
}

// ResultView is the pair-with-filenames projection exposed by the results
// listing contract, including the label projection.
type ResultView struct {
	FileAID      int64
	FileBID      int64
	FilenameA    string
	FilenameB    string
	Score        float64
	Label        string
	Details      map[string]any
}

// ScanSummary is the one-row-per-scan projection for a scan listing.
type ScanSummary struct {
	ScanID    string
	Status    ScanStatus
	Progress  int
	CreatedAt time.Time
	FileCount int
}
