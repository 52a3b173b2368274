// Package envelope defines the bus message framing shared by every codesim
// worker. It is a contract package: the struct and topic names, not a
// transport implementation — pkg/bus wires it to a concrete bus client.
package envelope

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// EventType classifies a bus message. These five values are the entire
// vocabulary of the pipeline.
type EventType string

const (
	Submitted  EventType = "submitted"
	Normalized EventType = "normalized"
	Candidates EventType = "candidates"
	Scored     EventType = "scored"
	Deadletter EventType = "deadletter"
)

// Topic names (logical), overridable via pkg/config.
const (
	TopicSubmitted  = "code.submitted"
	TopicNormalized = "code.normalized"
	TopicCandidates = "code.candidates"
	TopicScored     = "code.scored"
	TopicDeadletter = "code.deadletter"
)

const SchemaVersion = "1.0"

var (
	ErrInvalid = errors.New("envelope: invalid")
)

// Envelope is the wire shape of every bus message. Payload is left as
// json.RawMessage so producers/consumers for a given EventType can decode
// into their own typed payload struct without this package knowing about
// every one of them.
type Envelope struct {
	SchemaVersion  string          `json:"schema_version"`
	EventType      EventType       `json:"event_type"`
	ScanID         string          `json:"scan_id"`
	CorrelationID  string          `json:"correlation_id"`
	IdempotencyKey string          `json:"idempotency_key"`
	ProducedAtMs   int64           `json:"produced_at_ms"`
	Payload        json.RawMessage `json:"payload"`
}

// New builds an envelope with the current wire schema version and
// produced_at_ms stamped from now. Payload is marshaled from v.
func New(eventType EventType, scanID, correlationID, idempotencyKey string, payload any) (Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("%w: marshal payload: %v", ErrInvalid, err)
	}
	return Envelope{
		SchemaVersion:  SchemaVersion,
		EventType:      eventType,
		ScanID:         scanID,
		CorrelationID:  correlationID,
		IdempotencyKey: idempotencyKey,
		ProducedAtMs:   time.Now().UTC().UnixMilli(),
		Payload:        raw,
	}, nil
}

// Validate checks the envelope carries the minimum fields required for
// routing and dedup. It does not validate payload shape — that is the
// consuming worker's job, since each event_type has a distinct payload.
func (e Envelope) Validate() error {
	if e.SchemaVersion == "" {
		return fmt.Errorf("%w: schema_version required", ErrInvalid)
	}
	switch e.EventType {
	case Submitted, Normalized, Candidates, Scored, Deadletter:
	default:
		return fmt.Errorf("%w: unknown event_type %q", ErrInvalid, e.EventType)
	}
	if e.ScanID == "" {
		return fmt.Errorf("%w: scan_id required", ErrInvalid)
	}
	if e.IdempotencyKey == "" {
		return fmt.Errorf("%w: idempotency_key required", ErrInvalid)
	}
	return nil
}

// PartitionKey returns the bus partition key for this message: the
// idempotency key, as bytes.
func (e Envelope) PartitionKey() []byte {
	return []byte(e.IdempotencyKey)
}

// DecodePayload unmarshals the envelope's payload into dst.
func (e Envelope) DecodePayload(dst any) error {
	if len(e.Payload) == 0 {
		return fmt.Errorf("%w: empty payload", ErrInvalid)
	}
	return json.Unmarshal(e.Payload, dst)
}

// Marshal serializes the envelope to its wire JSON form.
func (e Envelope) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

// Unmarshal parses a wire JSON envelope.
func Unmarshal(b []byte) (Envelope, error) {
	var e Envelope
	if err := json.Unmarshal(b, &e); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return e, nil
}
