package history

import "vaultflow/internal/model"

// Store persists the transaction history log: append-only, deduplicated
// by transaction hash, pruned by age and count.
type Store interface {
	Append(record model.HistoryRecord) error
	List(limit int) ([]model.HistoryRecord, error)
}

const (
	// DefaultHorizonDays is how long entries are kept.
	DefaultHorizonDays = 30
	// DefaultMaxEntries caps the log length.
	DefaultMaxEntries = 200
)
