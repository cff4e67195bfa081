package vault

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"vaultflow/internal/model"
)

// DepositCalldata packs the plain deposit call.
func DepositCalldata(assets *big.Int, receiver common.Address) ([]byte, error) {
	parsed, err := VaultABI()
	if err != nil {
		return nil, err
	}
	data, err := parsed.Pack("deposit", assets, receiver)
	if err != nil {
		return nil, fmt.Errorf("pack deposit: %w", err)
	}
	return data, nil
}

// DepositWithSnapshotCalldata packs the signature-augmented deposit call.
// The snapshot tuple is passed through as issued; the contract verifies
// signature, nonce, and deadline.
func DepositWithSnapshotCalldata(assets *big.Int, receiver common.Address, snapshot model.BalanceSnapshot) ([]byte, error) {
	parsed, err := VaultABI()
	if err != nil {
		return nil, err
	}
	data, err := parsed.Pack("depositWithAttestation",
		assets,
		receiver,
		snapshot.Balance,
		snapshot.Nonce,
		snapshot.Deadline,
		snapshot.Signature,
	)
	if err != nil {
		return nil, fmt.Errorf("pack depositWithAttestation: %w", err)
	}
	return data, nil
}

// WithdrawCalldata packs the withdraw call.
func WithdrawCalldata(assets *big.Int, receiver, owner common.Address) ([]byte, error) {
	parsed, err := VaultABI()
	if err != nil {
		return nil, err
	}
	data, err := parsed.Pack("withdraw", assets, receiver, owner)
	if err != nil {
		return nil, fmt.Errorf("pack withdraw: %w", err)
	}
	return data, nil
}

// ApproveCalldata packs the asset approval call.
func ApproveCalldata(spender common.Address, amount *big.Int) ([]byte, error) {
	parsed, err := ERC20ABI()
	if err != nil {
		return nil, err
	}
	data, err := parsed.Pack("approve", spender, amount)
	if err != nil {
		return nil, fmt.Errorf("pack approve: %w", err)
	}
	return data, nil
}
