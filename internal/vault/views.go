package vault

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"vaultflow/internal/chain"
	"vaultflow/internal/model"
)

// Reader performs view calls against one network's vault and asset
// contracts.
type Reader struct {
	client *chain.Client
	vault  common.Address
	asset  common.Address
}

// NewReader builds a reader for the network using an already-dialed
// client.
func NewReader(client *chain.Client, network model.Network) *Reader {
	return &Reader{
		client: client,
		vault:  common.HexToAddress(network.VaultAddress),
		asset:  common.HexToAddress(network.AssetAddress),
	}
}

// TotalAssets returns the vault's total managed assets.
func (r *Reader) TotalAssets(ctx context.Context) (*big.Int, error) {
	parsed, err := VaultABI()
	if err != nil {
		return nil, err
	}
	return r.callUint256(ctx, r.vault, parsed, "totalAssets")
}

// TotalSupply returns the vault's total issued shares.
func (r *Reader) TotalSupply(ctx context.Context) (*big.Int, error) {
	parsed, err := VaultABI()
	if err != nil {
		return nil, err
	}
	return r.callUint256(ctx, r.vault, parsed, "totalSupply")
}

// ShareBalance returns the holder's vault share balance.
func (r *Reader) ShareBalance(ctx context.Context, holder common.Address) (*big.Int, error) {
	parsed, err := VaultABI()
	if err != nil {
		return nil, err
	}
	return r.callUint256(ctx, r.vault, parsed, "balanceOf", holder)
}

// Allowance returns the asset allowance granted by owner to the vault.
func (r *Reader) Allowance(ctx context.Context, owner common.Address) (*big.Int, error) {
	parsed, err := ERC20ABI()
	if err != nil {
		return nil, err
	}
	return r.callUint256(ctx, r.asset, parsed, "allowance", owner, r.vault)
}

// AssetBalance returns the holder's underlying-asset balance.
func (r *Reader) AssetBalance(ctx context.Context, holder common.Address) (*big.Int, error) {
	parsed, err := ERC20ABI()
	if err != nil {
		return nil, err
	}
	return r.callUint256(ctx, r.asset, parsed, "balanceOf", holder)
}

// Position reads shares, total assets, and total supply in one pass.
func (r *Reader) Position(ctx context.Context, holder common.Address) (model.UserPosition, error) {
	shares, err := r.ShareBalance(ctx, holder)
	if err != nil {
		return model.UserPosition{}, fmt.Errorf("share balance: %w", err)
	}
	totalAssets, err := r.TotalAssets(ctx)
	if err != nil {
		return model.UserPosition{}, fmt.Errorf("total assets: %w", err)
	}
	totalSupply, err := r.TotalSupply(ctx)
	if err != nil {
		return model.UserPosition{}, fmt.Errorf("total supply: %w", err)
	}
	return model.UserPosition{Shares: shares, TotalAssets: totalAssets, TotalSupply: totalSupply}, nil
}

func (r *Reader) callUint256(ctx context.Context, to common.Address, parsed abi.ABI, method string, args ...interface{}) (*big.Int, error) {
	data, err := parsed.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	msg := ethereum.CallMsg{To: &to, Data: data}
	resp, err := r.client.CallContract(ctx, msg, nil)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", method, err)
	}
	values, err := parsed.Unpack(method, resp)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	if len(values) != 1 {
		return nil, fmt.Errorf("%s return size %d", method, len(values))
	}
	value, ok := values[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("%s unexpected type %T", method, values[0])
	}
	return value, nil
}
