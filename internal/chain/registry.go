package chain

import (
	"fmt"
	"sort"

	"github.com/ethereum/go-ethereum/common"

	"vaultflow/internal/model"
)

// UnsupportedChainError is returned when a chain id has no configured
// vault deployment.
type UnsupportedChainError struct {
	ChainID uint64
}

func (e *UnsupportedChainError) Error() string {
	return fmt.Sprintf("unsupported chain: %d", e.ChainID)
}

// Registry is a static lookup table of supported networks. Built once at
// process start; pure lookup, no logic.
type Registry struct {
	byID  map[uint64]model.Network
	order []uint64
}

// NewRegistry builds a registry from configured networks. Addresses must
// be valid hex addresses; duplicate chain ids are rejected.
func NewRegistry(networks []model.Network) (*Registry, error) {
	r := &Registry{byID: make(map[uint64]model.Network, len(networks))}
	for _, n := range networks {
		if n.ChainID == 0 {
			return nil, fmt.Errorf("network %q: chain id is required", n.Name)
		}
		if _, ok := r.byID[n.ChainID]; ok {
			return nil, fmt.Errorf("duplicate chain id: %d", n.ChainID)
		}
		if !common.IsHexAddress(n.VaultAddress) {
			return nil, fmt.Errorf("chain %d: invalid vault address: %s", n.ChainID, n.VaultAddress)
		}
		if !common.IsHexAddress(n.AssetAddress) {
			return nil, fmt.Errorf("chain %d: invalid asset address: %s", n.ChainID, n.AssetAddress)
		}
		if n.RPCURL == "" {
			return nil, fmt.Errorf("chain %d: rpc url is required", n.ChainID)
		}
		r.byID[n.ChainID] = n
		r.order = append(r.order, n.ChainID)
	}
	sort.Slice(r.order, func(i, j int) bool { return r.order[i] < r.order[j] })
	return r, nil
}

// Resolve returns the network for the chain id, or UnsupportedChainError.
func (r *Registry) Resolve(chainID uint64) (model.Network, error) {
	n, ok := r.byID[chainID]
	if !ok {
		return model.Network{}, &UnsupportedChainError{ChainID: chainID}
	}
	return n, nil
}

// Networks returns all configured networks ordered by chain id.
func (r *Registry) Networks() []model.Network {
	out := make([]model.Network, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.byID[id])
	}
	return out
}
