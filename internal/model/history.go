package model

import "time"

// HistoryRecord is one entry of the persisted transaction history log.
// The log is append-only, deduplicated by TxHash, pruned by age and count.
type HistoryRecord struct {
	TxHash    string    `json:"tx_hash"`
	ChainID   uint64    `json:"chain_id"`
	Kind      string    `json:"kind"`
	Amount    string    `json:"amount"`
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}
