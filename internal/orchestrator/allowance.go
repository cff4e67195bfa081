package orchestrator

import "math/big"

// maxUint256 is the unlimited-approval amount. Requesting the maximum
// avoids a second approval prompt on every subsequent deposit.
var maxUint256 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))

// AllowanceGate decides whether an approval write must precede a
// deposit. It has no side effects of its own.
type AllowanceGate struct{}

// HasSufficientAllowance reports whether the current allowance covers
// the requested amount.
func (AllowanceGate) HasSufficientAllowance(current, requested *big.Int) bool {
	if current == nil || requested == nil {
		return false
	}
	return current.Cmp(requested) >= 0
}

// ApprovalAmount returns the allowance to request: the maximum
// representable unsigned integer.
func (AllowanceGate) ApprovalAmount() *big.Int {
	return new(big.Int).Set(maxUint256)
}
