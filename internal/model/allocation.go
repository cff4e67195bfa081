package model

import "math/big"

// AllocationEntry is one chain's slice of the total managed assets.
// Percentages are integer floor(raw*100/total) so the set sums to 100
// whenever the total raw balance is nonzero.
type AllocationEntry struct {
	ChainID    uint64   `json:"chain_id"`
	Name       string   `json:"name"`
	RawBalance *big.Int `json:"-"`
	Raw        string   `json:"raw_balance"`
	Percentage int      `json:"percentage"`
}
