package wallet

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"vaultflow/internal/chain"
)

// Wallet signs and submits transactions. Implementations must be safe
// for use by both orchestrators; only one signing operation runs at a
// time so a second request queues behind the first.
type Wallet interface {
	Address() common.Address
	SignAndSend(ctx context.Context, client *chain.Client, chainID uint64, to common.Address, data []byte) (common.Hash, error)
}

// PrivateKeyWallet signs with a local secp256k1 key. Submission errors
// from the node are returned verbatim so the caller can classify them.
type PrivateKeyWallet struct {
	key     *ecdsa.PrivateKey
	address common.Address

	mu sync.Mutex
}

// NewPrivateKeyWallet parses a hex-encoded private key, with or without
// the 0x prefix.
func NewPrivateKeyWallet(hexKey string) (*PrivateKeyWallet, error) {
	hexKey = strings.TrimPrefix(strings.TrimSpace(hexKey), "0x")
	if hexKey == "" {
		return nil, fmt.Errorf("private key is required")
	}
	key, err := crypto.HexToECDSA(hexKey)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	return &PrivateKeyWallet{
		key:     key,
		address: crypto.PubkeyToAddress(key.PublicKey),
	}, nil
}

// Address returns the signing address.
func (w *PrivateKeyWallet) Address() common.Address {
	return w.address
}

// SignAndSend builds, signs, and submits a transaction carrying data to
// the target contract. Nonce and gas come from the node at submission
// time.
func (w *PrivateKeyWallet) SignAndSend(ctx context.Context, client *chain.Client, chainID uint64, to common.Address, data []byte) (common.Hash, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	nonce, err := client.PendingNonceAt(ctx, w.address)
	if err != nil {
		return common.Hash{}, fmt.Errorf("pending nonce: %w", err)
	}

	gasPrice, err := client.SuggestGasPrice(ctx)
	if err != nil {
		return common.Hash{}, fmt.Errorf("suggest gas price: %w", err)
	}

	gasLimit, err := client.EstimateGas(ctx, ethereum.CallMsg{
		From: w.address,
		To:   &to,
		Data: data,
	})
	if err != nil {
		// Preflight estimation failures carry the node's error payload;
		// the classifier decides whether they are terminal.
		return common.Hash{}, err
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &to,
		Value:    big.NewInt(0),
		Gas:      gasLimit,
		GasPrice: gasPrice,
		Data:     data,
	})

	signer := types.LatestSignerForChainID(new(big.Int).SetUint64(chainID))
	signed, err := types.SignTx(tx, signer, w.key)
	if err != nil {
		return common.Hash{}, fmt.Errorf("sign tx: %w", err)
	}

	if err := client.SendTransaction(ctx, signed); err != nil {
		return common.Hash{}, err
	}

	return signed.Hash(), nil
}
