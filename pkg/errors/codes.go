package errors

import (
	"bytes"
	"encoding/json"
	"sort"
)

// Code is a stable error code shared across all codesim workers.
// Once published, codes should be treated as API-stable.
type Code string

// CodeMeta provides metadata useful for retry decisions and documentation.
type CodeMeta struct {
	Retryable   bool   `json:"retryable"`
	Kind        string `json:"kind"` // ingress|transient|invariant|worker
	Description string `json:"description"`
}

// ---- INGRESS (§7.3) ----
const (
	UploadFailed Code = "UPLOAD_FAILED"
)

// ---- BUS (§7.1) ----
const (
	KafkaPublishFailed Code = "KAFKA_PUBLISH_FAILED"
)

// ---- WORKER ORIGINS (§7, one per consuming worker role) ----
const (
	NormalizeFailed Code = "NORMALIZE_FAILED"
	CandidateFailed Code = "CANDIDATE_FAILED"
	ScoringFailed   Code = "SCORING_FAILED"
)

// ---- CATCH-ALL ----
const (
	Unhandled Code = "UNHANDLED"
)

var registry = map[Code]CodeMeta{
	UploadFailed:       {Retryable: false, Kind: "ingress", Description: "blob put or relational insert failed before bus emit"},
	KafkaPublishFailed: {Retryable: true, Kind: "transient", Description: "bus publish failed"},
	NormalizeFailed:    {Retryable: false, Kind: "worker", Description: "normalizer worker fatal during message processing"},
	CandidateFailed:    {Retryable: false, Kind: "worker", Description: "candidate-retrieval worker fatal during message processing"},
	ScoringFailed:      {Retryable: false, Kind: "worker", Description: "scoring worker fatal during message processing"},
	Unhandled:          {Retryable: false, Kind: "worker", Description: "unclassified fatal"},
}

// Meta looks up metadata for a code. ok is false for unknown codes.
func Meta(c Code) (CodeMeta, bool) {
	m, ok := registry[c]
	return m, ok
}

// Known reports whether c is a registered code.
func Known(c Code) bool {
	_, ok := registry[c]
	return ok
}

// List returns all registered codes in stable (sorted) order.
func List() []Code {
	out := make([]Code, 0, len(registry))
	for c := range registry {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// ExportJSON renders the registry deterministically, sorted by code.
func ExportJSON() ([]byte, error) {
	codes := List()
	type entry struct {
		Code Code `json:"code"`
		CodeMeta
	}
	out := make([]entry, 0, len(codes))
	for _, c := range codes {
		out = append(out, entry{Code: c, CodeMeta: registry[c]})
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
