// Package idempotency computes the deterministic dedup keys used as both
// bus partition keys and consumer-side idempotency tokens.
//
// Every key is a lowercase hex SHA-256 digest over the UTF-8 encoding of an
// ordered list of parts, separated by the ASCII unit-separator byte 0x1F.
// This must stay byte-exact across any future port: no part may be
// normalized, reordered, or re-encoded differently than the caller
// supplies it.
package idempotency

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
)

const unitSeparator = 0x1F

// StableKey hashes parts in order, joined by the unit separator. Callers
// are responsible for part order and content; this function performs no
// normalization so the result stays reproducible byte-for-byte.
func StableKey(parts ...string) string {
	h := sha256.New()
	for i, p := range parts {
		if i > 0 {
			h.Write([]byte{unitSeparator})
		}
		h.Write([]byte(p))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// SubmittedKey is the idempotency key for a code.submitted event.
func SubmittedKey(scanID, correlationID string) string {
	return StableKey("code.submitted", scanID, correlationID)
}

// NormalizedKey is the idempotency key for a code.normalized event.
func NormalizedKey(scanID string, fileID int64, checksum string) string {
	return StableKey("code.normalized", scanID, strconv.FormatInt(fileID, 10), checksum)
}

// PairID is the deterministic identifier of an unordered file pair within a
// scan. Callers MUST pass fileAID < fileBID (canonical ordering).
func PairID(scanID string, fileAID, fileBID int64) string {
	return StableKey(scanID, strconv.FormatInt(fileAID, 10), strconv.FormatInt(fileBID, 10))
}

// CandidatesKey is the idempotency key for a code.candidates event. It is
// the pair_id itself, not a further hash of it — the pair is already a
// stable, collision-resistant identifier.
func CandidatesKey(pairID string) string {
	return pairID
}

// ScoredKey is the idempotency key for the single terminal code.scored
// event of a scan.
func ScoredKey(scanID string) string {
	return StableKey("code.scored", scanID)
}

// DeadletterKey is the idempotency key for a code.deadletter event.
func DeadletterKey(service, scanID, correlationID, errorCode string) string {
	return StableKey("code.deadletter", service, scanID, correlationID, errorCode)
}
