package model

import "math/big"

// UserPosition is read fresh from chain, never stored.
type UserPosition struct {
	Shares      *big.Int
	TotalAssets *big.Int
	TotalSupply *big.Int
}

// ReconciledPosition is the derived view of a UserPosition: the current
// deposited value in asset smallest units and the vault share price.
type ReconciledPosition struct {
	DepositedValue *big.Int
	SharePrice     string
}
