package vault

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"vaultflow/internal/chain"
	"vaultflow/internal/model"
	"vaultflow/internal/wallet"
)

// Service binds a network's vault and asset contracts to a wallet. It
// performs the reads and writes the orchestrators need on that chain.
type Service struct {
	client  *chain.Client
	reader  *Reader
	wallet  wallet.Wallet
	network model.Network
	vault   common.Address
	asset   common.Address

	receiptInterval time.Duration
	logger          *zap.Logger
}

// NewService builds a service over an already-dialed client.
func NewService(client *chain.Client, network model.Network, w wallet.Wallet, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		client:          client,
		reader:          NewReader(client, network),
		wallet:          w,
		network:         network,
		vault:           common.HexToAddress(network.VaultAddress),
		asset:           common.HexToAddress(network.AssetAddress),
		receiptInterval: 2 * time.Second,
		logger:          logger,
	}
}

// Network returns the network this service is bound to.
func (s *Service) Network() model.Network {
	return s.network
}

// Allowance returns the owner's asset allowance granted to the vault.
func (s *Service) Allowance(ctx context.Context, owner common.Address) (*big.Int, error) {
	return s.reader.Allowance(ctx, owner)
}

// ShareBalance returns the holder's vault share balance.
func (s *Service) ShareBalance(ctx context.Context, holder common.Address) (*big.Int, error) {
	return s.reader.ShareBalance(ctx, holder)
}

// Position reads the holder's full on-chain position.
func (s *Service) Position(ctx context.Context, holder common.Address) (model.UserPosition, error) {
	return s.reader.Position(ctx, holder)
}

// SubmitApproval submits an asset approval for the vault spender.
func (s *Service) SubmitApproval(ctx context.Context, amount *big.Int) (string, error) {
	data, err := ApproveCalldata(s.vault, amount)
	if err != nil {
		return "", err
	}
	return s.submit(ctx, s.asset, data, "approve")
}

// SubmitDeposit submits the plain deposit write.
func (s *Service) SubmitDeposit(ctx context.Context, assets *big.Int, receiver common.Address) (string, error) {
	data, err := DepositCalldata(assets, receiver)
	if err != nil {
		return "", err
	}
	return s.submit(ctx, s.vault, data, "deposit")
}

// SubmitDepositWithSnapshot submits the signature-augmented deposit.
func (s *Service) SubmitDepositWithSnapshot(ctx context.Context, assets *big.Int, receiver common.Address, snapshot model.BalanceSnapshot) (string, error) {
	data, err := DepositWithSnapshotCalldata(assets, receiver, snapshot)
	if err != nil {
		return "", err
	}
	return s.submit(ctx, s.vault, data, "depositWithAttestation")
}

// SubmitWithdraw submits the withdraw write.
func (s *Service) SubmitWithdraw(ctx context.Context, assets *big.Int, receiver, owner common.Address) (string, error) {
	data, err := WithdrawCalldata(assets, receiver, owner)
	if err != nil {
		return "", err
	}
	return s.submit(ctx, s.vault, data, "withdraw")
}

// Confirm waits until the transaction is mined. A mined-but-reverted
// transaction yields a model.RevertError carrying the replayed revert
// reason when one can be extracted.
func (s *Service) Confirm(ctx context.Context, txHash string) error {
	hash := common.HexToHash(txHash)
	receipt, err := s.client.WaitForReceipt(ctx, hash, s.receiptInterval)
	if err != nil {
		return err
	}
	if receipt.Status == 1 {
		s.logger.Info("transaction confirmed",
			zap.Uint64("chain_id", s.network.ChainID),
			zap.String("tx", txHash),
			zap.Uint64("block", receipt.BlockNumber.Uint64()),
		)
		return nil
	}

	reason := s.replayRevertReason(ctx, hash, receipt.BlockNumber)
	return &model.RevertError{TxHash: txHash, Reason: reason}
}

func (s *Service) submit(ctx context.Context, to common.Address, data []byte, label string) (string, error) {
	hash, err := s.wallet.SignAndSend(ctx, s.client, s.network.ChainID, to, data)
	if err != nil {
		return "", err
	}
	s.logger.Info("transaction submitted",
		zap.Uint64("chain_id", s.network.ChainID),
		zap.String("method", label),
		zap.String("tx", hash.Hex()),
	)
	return hash.Hex(), nil
}

// replayRevertReason re-executes the transaction as an eth_call at its
// mined block; nodes include the revert reason in the call error.
func (s *Service) replayRevertReason(ctx context.Context, hash common.Hash, blockNumber *big.Int) string {
	tx, err := s.client.TransactionByHash(ctx, hash)
	if err != nil || tx == nil || tx.To() == nil {
		return ""
	}
	msg := ethereum.CallMsg{
		From: s.wallet.Address(),
		To:   tx.To(),
		Data: tx.Data(),
	}
	if _, err := s.client.CallContract(ctx, msg, blockNumber); err != nil {
		return model.ExtractRevertReason(err.Error())
	}
	return ""
}
