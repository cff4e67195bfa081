package chain

import (
	"errors"
	"testing"

	"vaultflow/internal/model"
)

func testNetworks() []model.Network {
	return []model.Network{
		{
			ChainID:      42161,
			Name:         "arbitrum",
			VaultAddress: "0x1111111111111111111111111111111111111111",
			AssetAddress: "0x2222222222222222222222222222222222222222",
			RPCURL:       "https://arb1.example.org/rpc",
		},
		{
			ChainID:      8453,
			Name:         "base",
			VaultAddress: "0x3333333333333333333333333333333333333333",
			AssetAddress: "0x4444444444444444444444444444444444444444",
			RPCURL:       "https://base.example.org/rpc",
		},
	}
}

func TestRegistryResolve(t *testing.T) {
	r, err := NewRegistry(testNetworks())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	n, err := r.Resolve(8453)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n.Name != "base" {
		t.Fatalf("resolved wrong network: %+v", n)
	}
}

func TestRegistryUnsupportedChain(t *testing.T) {
	r, err := NewRegistry(testNetworks())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err = r.Resolve(5)
	var unsupported *UnsupportedChainError
	if !errors.As(err, &unsupported) {
		t.Fatalf("expected UnsupportedChainError, got %v", err)
	}
	if unsupported.ChainID != 5 {
		t.Fatalf("wrong chain id in error: %d", unsupported.ChainID)
	}
}

func TestRegistryNetworksOrdered(t *testing.T) {
	r, err := NewRegistry(testNetworks())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	networks := r.Networks()
	if len(networks) != 2 {
		t.Fatalf("expected 2 networks, got %d", len(networks))
	}
	if networks[0].ChainID != 8453 || networks[1].ChainID != 42161 {
		t.Fatalf("networks not ordered by chain id: %+v", networks)
	}
}

func TestRegistryRejectsBadConfig(t *testing.T) {
	bad := testNetworks()
	bad[1].VaultAddress = "not-an-address"
	if _, err := NewRegistry(bad); err == nil {
		t.Fatalf("expected error for invalid vault address")
	}

	dup := testNetworks()
	dup[1].ChainID = dup[0].ChainID
	if _, err := NewRegistry(dup); err == nil {
		t.Fatalf("expected error for duplicate chain id")
	}
}
