package driven

import "github.com/custodia-labs/synchronoux/internal/core/domain"

// Format converts between a batch of records and its wire payload.
type Format interface {
	// Encode serialises a batch. An empty batch must encode to a valid
	// empty collection (it is what the terminator carries).
	Encode(records []domain.SyncRecord) ([]byte, error)

	// Decode parses a payload produced by Encode on the remote side.
	Decode(payload []byte) ([]domain.SyncRecord, error)

	// Extension returns the file extension used for uploaded objects,
	// without the leading dot.
	Extension() string
}
