package model

import "math/big"

// BalanceSnapshot is an oracle-signed attestation of the depositor's
// cross-chain balance, bound to a specific deposit amount and receiver.
// The vault contract verifies signature, nonce, and deadline; this layer
// passes the tuple through untouched. Snapshots are never persisted and
// are discarded once the deposit is submitted or the attempt aborts.
type BalanceSnapshot struct {
	Balance   *big.Int
	Nonce     *big.Int
	Deadline  *big.Int
	Assets    *big.Int
	Receiver  string
	Signature []byte
}

// HasCrossChainBalance reports whether the attested balance is nonzero,
// which selects the signature-augmented deposit path.
func (s BalanceSnapshot) HasCrossChainBalance() bool {
	return s.Balance != nil && s.Balance.Sign() > 0
}
