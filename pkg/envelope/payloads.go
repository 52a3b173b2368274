package envelope

// Payload shapes for each event_type. Producers marshal one of these into
// Envelope.Payload; consumers call Envelope.DecodePayload into the matching
// type for the envelope's EventType.

// SubmittedFile describes one file of a submitted scan.
type SubmittedFile struct {
	FileID    int64   `json:"file_id"`
	Filename  string  `json:"filename"`
	ObjectKey string  `json:"object_key"`
	Checksum  string  `json:"checksum"`
	Language  *string `json:"language"`
	Size      int64   `json:"size"`
}

type SubmittedPayload struct {
	ScanID        string          `json:"scan_id"`
	ObjectBucket  string          `json:"object_bucket"`
	Files         []SubmittedFile `json:"files"`
	Options       map[string]any  `json:"options,omitempty"`
	SubmittedAtMs int64           `json:"submitted_at_ms"`
}

// NormalizedRef points at the two cache keys carrying the normalizer's
// output for a file's checksum, rather than duplicating that text onto the
// bus.
type NormalizedRef struct {
	RedisNormKey   string `json:"redis_norm_key"`
	RedisTokensKey string `json:"redis_tokens_key"`
}

type NormalizedPayload struct {
	ScanID        string        `json:"scan_id"`
	FileID        int64         `json:"file_id"`
	ObjectBucket  string        `json:"object_bucket"`
	ObjectKey     string        `json:"object_key"`
	Checksum      string        `json:"checksum"`
	Language      string        `json:"language"`
	CacheHit      bool          `json:"cache_hit"`
	NormalizedRef NormalizedRef `json:"normalized_ref"`
}

type CandidatesPayload struct {
	ScanID     string `json:"scan_id"`
	PairID     string `json:"pair_id"`
	FileAID    int64  `json:"file_a_id"`
	FileBID    int64  `json:"file_b_id"`
	ChecksumA  string `json:"checksum_a"`
	ChecksumB  string `json:"checksum_b"`
	LanguageA  string `json:"language_a"`
	LanguageB  string `json:"language_b"`
}

type ScoredPayload struct {
	ScanID        string `json:"scan_id"`
	CompletedAtMs int64  `json:"completed_at_ms"`
	TotalPairs    int64  `json:"total_pairs"`
}

// DeadletterPayload carries enough of the original message to diagnose a
// fatal without replaying the bus.
type DeadletterPayload struct {
	OriginalTopic string `json:"original_topic"`
	OriginalEvent string `json:"original_event"`
	Error         string `json:"error"`
	Traceback     string `json:"traceback,omitempty"`
	Partition     *int32 `json:"partition,omitempty"`
	Offset        *int64 `json:"offset,omitempty"`
}
