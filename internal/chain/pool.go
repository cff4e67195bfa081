package chain

import (
	"context"
	"fmt"
	"sync"

	"vaultflow/internal/model"
)

// Pool lazily dials and caches one Client per configured network.
type Pool struct {
	registry *Registry

	mu      sync.Mutex
	clients map[uint64]*Client
}

// NewPool builds a pool over the registry. Connections are established
// on first use per chain.
func NewPool(registry *Registry) *Pool {
	return &Pool{
		registry: registry,
		clients:  make(map[uint64]*Client),
	}
}

// ClientFor returns the client for the chain id, dialing if needed.
// Returns UnsupportedChainError before any network call for unknown ids.
func (p *Pool) ClientFor(ctx context.Context, chainID uint64) (*Client, error) {
	network, err := p.registry.Resolve(chainID)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if client, ok := p.clients[chainID]; ok {
		return client, nil
	}

	client, err := NewClient(ctx, network.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("dial chain %d: %w", chainID, err)
	}
	p.clients[chainID] = client
	return client, nil
}

// Network resolves the registry entry for the chain id.
func (p *Pool) Network(chainID uint64) (model.Network, error) {
	return p.registry.Resolve(chainID)
}

// Networks returns all configured networks.
func (p *Pool) Networks() []model.Network {
	return p.registry.Networks()
}

// Close closes every dialed client.
func (p *Pool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, client := range p.clients {
		client.Close()
	}
	p.clients = make(map[uint64]*Client)
}
