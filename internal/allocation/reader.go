package allocation

import (
	"context"
	"math/big"
	"time"

	"vaultflow/internal/chain"
	"vaultflow/internal/model"
	"vaultflow/internal/vault"
)

// ChainBalanceReader reads vault totals over the shared client pool.
// Transient RPC failures are retried with doubling backoff before the
// aggregator sees them.
type ChainBalanceReader struct {
	pool       *chain.Pool
	maxRetries int
	baseDelay  time.Duration
}

// NewChainBalanceReader builds a reader over the pool.
func NewChainBalanceReader(pool *chain.Pool, maxRetries int, baseDelay time.Duration) *ChainBalanceReader {
	return &ChainBalanceReader{
		pool:       pool,
		maxRetries: maxRetries,
		baseDelay:  baseDelay,
	}
}

// TotalManagedAssets dials the network if needed and reads totalAssets.
func (r *ChainBalanceReader) TotalManagedAssets(ctx context.Context, network model.Network) (*big.Int, error) {
	client, err := r.pool.ClientFor(ctx, network.ChainID)
	if err != nil {
		return nil, err
	}

	var total *big.Int
	err = chain.WithRetry(ctx, r.maxRetries, r.baseDelay, func(ctx context.Context) error {
		total, err = vault.NewReader(client, network).TotalAssets(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return total, nil
}
