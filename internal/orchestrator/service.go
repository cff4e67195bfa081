package orchestrator

import (
	"context"
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"vaultflow/internal/model"
)

// VaultService is the per-chain contract surface the orchestrators
// drive: view reads, the four writes, and receipt confirmation.
type VaultService interface {
	Network() model.Network
	Allowance(ctx context.Context, owner common.Address) (*big.Int, error)
	ShareBalance(ctx context.Context, holder common.Address) (*big.Int, error)
	Position(ctx context.Context, holder common.Address) (model.UserPosition, error)
	SubmitApproval(ctx context.Context, amount *big.Int) (string, error)
	SubmitDeposit(ctx context.Context, assets *big.Int, receiver common.Address) (string, error)
	SubmitDepositWithSnapshot(ctx context.Context, assets *big.Int, receiver common.Address, snapshot model.BalanceSnapshot) (string, error)
	SubmitWithdraw(ctx context.Context, assets *big.Int, receiver, owner common.Address) (string, error)
	Confirm(ctx context.Context, txHash string) error
}

// HistoryRecorder receives terminal attempts for the persisted log.
type HistoryRecorder interface {
	Append(record model.HistoryRecord) error
}

// ErrAttemptInFlight is returned when a confirm action re-enters while a
// write for the same flow is still pending. No second submission occurs.
var ErrAttemptInFlight = errors.New("a transaction for this flow is already in flight")

// FlowError carries the classification of a failed write to the display
// layer.
type FlowError struct {
	Classification Classification
	Err            error
}

func (e *FlowError) Error() string {
	return e.Classification.Message
}

func (e *FlowError) Unwrap() error {
	return e.Err
}
