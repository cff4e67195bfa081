package orchestrator

import (
	"math/big"
	"time"

	"github.com/shopspring/decimal"

	"vaultflow/internal/model"
)

// Reconciler derives the deposited value and share price from fresh
// on-chain reads. Yield display is decoupled from share-price movement:
// it applies a published annualized rate pro-rata over elapsed time.
type Reconciler struct{}

// Reconcile computes the deposited value using the vault's own
// share-price formula (integer division). When total assets or total
// supply is unavailable the position is valued 1:1 against shares.
func (Reconciler) Reconcile(position model.UserPosition) model.ReconciledPosition {
	shares := position.Shares
	if shares == nil {
		shares = big.NewInt(0)
	}

	if shares.Sign() == 0 {
		return model.ReconciledPosition{
			DepositedValue: big.NewInt(0),
			SharePrice:     sharePrice(position),
		}
	}

	if position.TotalAssets == nil || position.TotalSupply == nil ||
		position.TotalAssets.Sign() <= 0 || position.TotalSupply.Sign() <= 0 {
		return model.ReconciledPosition{
			DepositedValue: new(big.Int).Set(shares),
			SharePrice:     "1",
		}
	}

	value := new(big.Int).Mul(shares, position.TotalAssets)
	value.Quo(value, position.TotalSupply)
	return model.ReconciledPosition{
		DepositedValue: value,
		SharePrice:     sharePrice(position),
	}
}

// EstimateYield applies an annualized rate in basis points to the
// deposited value pro-rata over the elapsed period.
func (Reconciler) EstimateYield(depositedValue *big.Int, rateBasisPoints int64, elapsed time.Duration) *big.Int {
	if depositedValue == nil || depositedValue.Sign() <= 0 || rateBasisPoints <= 0 || elapsed <= 0 {
		return big.NewInt(0)
	}

	const secondsPerYear = 365 * 24 * 60 * 60

	yield := new(big.Int).Mul(depositedValue, big.NewInt(rateBasisPoints))
	yield.Mul(yield, big.NewInt(int64(elapsed.Seconds())))
	yield.Quo(yield, big.NewInt(10_000))
	yield.Quo(yield, big.NewInt(secondsPerYear))
	return yield
}

func sharePrice(position model.UserPosition) string {
	if position.TotalAssets == nil || position.TotalSupply == nil || position.TotalSupply.Sign() <= 0 {
		return "1"
	}
	assets := decimal.NewFromBigInt(position.TotalAssets, 0)
	supply := decimal.NewFromBigInt(position.TotalSupply, 0)
	return assets.DivRound(supply, 6).String()
}
