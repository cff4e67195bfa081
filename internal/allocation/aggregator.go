package allocation

import (
	"context"
	"math/big"
	"sort"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"vaultflow/internal/model"
)

// BalanceReader returns the vault's total managed assets on one network.
type BalanceReader interface {
	TotalManagedAssets(ctx context.Context, network model.Network) (*big.Int, error)
}

// Aggregator reconciles vault balances from every configured chain into
// one allocation view. Reads run concurrently; a failed or undeployed
// network contributes zero rather than aborting the set.
type Aggregator struct {
	reader   BalanceReader
	networks []model.Network
	logger   *zap.Logger
}

// NewAggregator builds an aggregator over the configured networks.
func NewAggregator(reader BalanceReader, networks []model.Network, logger *zap.Logger) *Aggregator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Aggregator{
		reader:   reader,
		networks: networks,
		logger:   logger,
	}
}

// Aggregate issues one balance read per network concurrently and
// computes the exact percentage allocation. Percentages are
// floor(raw*100/total) over big.Int so the set sums to 100 whenever the
// total is nonzero; all entries are zero when the total is zero. The
// result always has exactly one entry per configured network, sorted by
// descending raw balance.
func (a *Aggregator) Aggregate(ctx context.Context) ([]model.AllocationEntry, *big.Int, error) {
	balances := make([]*big.Int, len(a.networks))

	group, groupCtx := errgroup.WithContext(ctx)
	for i, network := range a.networks {
		i, network := i, network
		group.Go(func() error {
			balance, err := a.reader.TotalManagedAssets(groupCtx, network)
			if err != nil {
				a.logger.Warn("balance read failed",
					zap.Uint64("chain_id", network.ChainID),
					zap.Error(err),
				)
				balance = big.NewInt(0)
			}
			balances[i] = balance
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, nil, err
	}

	total := big.NewInt(0)
	for _, balance := range balances {
		total.Add(total, balance)
	}

	entries := make([]model.AllocationEntry, len(a.networks))
	hundred := big.NewInt(100)
	for i, network := range a.networks {
		raw := balances[i]
		percentage := 0
		if total.Sign() > 0 {
			p := new(big.Int).Mul(raw, hundred)
			p.Quo(p, total)
			percentage = int(p.Int64())
		}
		entries[i] = model.AllocationEntry{
			ChainID:    network.ChainID,
			Name:       network.Name,
			RawBalance: raw,
			Raw:        raw.String(),
			Percentage: percentage,
		}
	}

	sort.SliceStable(entries, func(i, j int) bool {
		cmp := entries[i].RawBalance.Cmp(entries[j].RawBalance)
		if cmp != 0 {
			return cmp > 0
		}
		return entries[i].ChainID < entries[j].ChainID
	})

	return entries, total, nil
}
