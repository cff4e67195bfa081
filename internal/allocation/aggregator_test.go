package allocation

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"vaultflow/internal/model"
)

// scriptedReader serves balances keyed by chain id.
type scriptedReader struct {
	balances map[uint64]*big.Int
	errs     map[uint64]error
}

func (r *scriptedReader) TotalManagedAssets(_ context.Context, network model.Network) (*big.Int, error) {
	if err := r.errs[network.ChainID]; err != nil {
		return nil, err
	}
	if balance := r.balances[network.ChainID]; balance != nil {
		return new(big.Int).Set(balance), nil
	}
	return big.NewInt(0), nil
}

func testNetworks() []model.Network {
	return []model.Network{
		{ChainID: 1, Name: "ethereum"},
		{ChainID: 10, Name: "optimism"},
		{ChainID: 137, Name: "polygon"},
		{ChainID: 42161, Name: "arbitrum"},
	}
}

func percentagesByChain(entries []model.AllocationEntry) map[uint64]int {
	out := make(map[uint64]int, len(entries))
	for _, entry := range entries {
		out[entry.ChainID] = entry.Percentage
	}
	return out
}

func TestAggregateOneEntryPerNetwork(t *testing.T) {
	reader := &scriptedReader{balances: map[uint64]*big.Int{
		1:     big.NewInt(600),
		10:    big.NewInt(250),
		137:   big.NewInt(150),
		42161: big.NewInt(0),
	}}
	entries, total, err := NewAggregator(reader, testNetworks(), nil).Aggregate(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 4 {
		t.Fatalf("expected 4 entries, got %d", len(entries))
	}
	if total.Cmp(big.NewInt(1000)) != 0 {
		t.Fatalf("total mismatch: %s", total)
	}

	sum := 0
	for _, entry := range entries {
		sum += entry.Percentage
	}
	if sum != 100 {
		t.Fatalf("percentages sum to %d, want 100", sum)
	}
}

func TestAggregateFloorsDominantAllocation(t *testing.T) {
	reader := &scriptedReader{balances: map[uint64]*big.Int{
		1:  big.NewInt(999),
		10: big.NewInt(1),
	}}
	entries, _, err := NewAggregator(reader, testNetworks(), nil).Aggregate(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got := percentagesByChain(entries)
	want := map[uint64]int{1: 99, 10: 0, 137: 0, 42161: 0}
	for chainID, percentage := range want {
		if got[chainID] != percentage {
			t.Fatalf("chain %d: got %d%%, want %d%%", chainID, got[chainID], percentage)
		}
	}
}

func TestAggregateZeroTotal(t *testing.T) {
	reader := &scriptedReader{}
	entries, total, err := NewAggregator(reader, testNetworks(), nil).Aggregate(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total.Sign() != 0 {
		t.Fatalf("expected zero total, got %s", total)
	}
	for _, entry := range entries {
		if entry.Percentage != 0 {
			t.Fatalf("chain %d: expected 0%%, got %d%%", entry.ChainID, entry.Percentage)
		}
	}
}

func TestAggregateFailedReadContributesZero(t *testing.T) {
	reader := &scriptedReader{
		balances: map[uint64]*big.Int{1: big.NewInt(400)},
		errs:     map[uint64]error{137: errors.New("connection refused")},
	}
	entries, total, err := NewAggregator(reader, testNetworks(), nil).Aggregate(context.Background())
	if err != nil {
		t.Fatalf("a single failed read must not abort the set: %v", err)
	}
	if total.Cmp(big.NewInt(400)) != 0 {
		t.Fatalf("total mismatch: %s", total)
	}
	if got := percentagesByChain(entries)[137]; got != 0 {
		t.Fatalf("failed network should hold 0%%, got %d%%", got)
	}
}

func TestAggregateSortsDescendingWithChainTieBreak(t *testing.T) {
	reader := &scriptedReader{balances: map[uint64]*big.Int{
		1:     big.NewInt(100),
		10:    big.NewInt(300),
		137:   big.NewInt(100),
		42161: big.NewInt(500),
	}}
	entries, _, err := NewAggregator(reader, testNetworks(), nil).Aggregate(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	wantOrder := []uint64{42161, 10, 1, 137}
	for i, chainID := range wantOrder {
		if entries[i].ChainID != chainID {
			t.Fatalf("position %d: got chain %d, want %d", i, entries[i].ChainID, chainID)
		}
	}
}
