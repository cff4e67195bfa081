package orchestrator

import (
	"context"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"vaultflow/internal/model"
)

// WithdrawState is a state of the withdrawal flow.
type WithdrawState string

const (
	WithdrawInput       WithdrawState = "input"
	WithdrawWithdrawing WithdrawState = "withdrawing"
	WithdrawConfirming  WithdrawState = "confirming"
	WithdrawError       WithdrawState = "error"
)

// WithdrawOrchestrator drives the single-write withdrawal protocol.
// Withdrawal uses only the vault's own share accounting; there is no
// oracle dependency.
type WithdrawOrchestrator struct {
	svc        VaultService
	reconciler Reconciler
	history    HistoryRecorder
	logger     *zap.Logger

	owner          common.Address
	postCheckDelay time.Duration

	mu      sync.Mutex
	state   WithdrawState
	busy    bool
	attempt *model.TransactionAttempt
	lastErr *Classification
}

// NewWithdrawOrchestrator builds the withdrawal state machine for one
// owner on one chain.
func NewWithdrawOrchestrator(svc VaultService, history HistoryRecorder, owner common.Address, logger *zap.Logger) *WithdrawOrchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WithdrawOrchestrator{
		svc:            svc,
		history:        history,
		logger:         logger,
		owner:          owner,
		postCheckDelay: 5 * time.Second,
		state:          WithdrawInput,
	}
}

// State returns the current flow state.
func (o *WithdrawOrchestrator) State() WithdrawState {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// LastError returns the classification of the most recent failure, or
// nil.
func (o *WithdrawOrchestrator) LastError() *Classification {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.lastErr
}

// Reset returns the flow to input, discarding the entered amount.
func (o *WithdrawOrchestrator) Reset() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.state = WithdrawInput
	o.attempt = nil
	o.lastErr = nil
}

// ConfirmWithdraw validates the amount against the reconciled deposited
// value (vault share value, not wallet balance) and runs the withdrawal
// to a terminal state.
func (o *WithdrawOrchestrator) ConfirmWithdraw(ctx context.Context, amountInput string) (model.ReconciledPosition, error) {
	amount, err := ParseAmount(amountInput)
	if err != nil {
		return model.ReconciledPosition{}, err
	}
	assets := ToSmallestUnit(amount)

	o.mu.Lock()
	if o.busy {
		o.mu.Unlock()
		return model.ReconciledPosition{}, ErrAttemptInFlight
	}
	o.busy = true
	o.lastErr = nil
	o.mu.Unlock()
	defer func() {
		o.mu.Lock()
		o.busy = false
		o.mu.Unlock()
	}()

	position, err := o.svc.Position(ctx, o.owner)
	if err != nil {
		return model.ReconciledPosition{}, o.fail(nil, Classify(err), err)
	}
	reconciled := o.reconciler.Reconcile(position)
	if assets.Cmp(reconciled.DepositedValue) > 0 {
		return model.ReconciledPosition{}, &model.ValidationError{
			Reason: "amount exceeds deposited value",
		}
	}

	if err := o.runWithdraw(ctx, assets, position.Shares); err != nil {
		return model.ReconciledPosition{}, err
	}

	o.setState(WithdrawConfirming)
	refreshed, err := o.refresh(ctx)
	o.Reset()
	return refreshed, err
}

func (o *WithdrawOrchestrator) runWithdraw(ctx context.Context, assets, sharesBefore *big.Int) error {
	o.setState(WithdrawWithdrawing)
	attempt := &model.TransactionAttempt{
		ID:      uuid.NewString(),
		Kind:    model.AttemptWithdraw,
		ChainID: o.svc.Network().ChainID,
		Amount:  new(big.Int).Set(assets),
		Outcome: model.OutcomePending,
	}
	o.mu.Lock()
	o.attempt = attempt
	o.mu.Unlock()

	hash, err := o.svc.SubmitWithdraw(ctx, assets, o.owner, o.owner)
	if err != nil {
		cls := Classify(err)
		if cls.Cause == CauseSimulationFalseNeg && o.sharesDecreased(ctx, sharesBefore) {
			o.logger.Info("withdraw false negative recovered", zap.Uint64("chain_id", o.svc.Network().ChainID))
			o.finishAttempt(attempt, model.OutcomeConfirmed)
			return nil
		}
		return o.fail(attempt, cls, err)
	}

	o.mu.Lock()
	attempt.SubmittedHash = hash
	attempt.Outcome = model.OutcomeSubmitted
	o.mu.Unlock()

	if err := o.svc.Confirm(ctx, hash); err != nil {
		return o.fail(attempt, Classify(err), err)
	}
	o.finishAttempt(attempt, model.OutcomeConfirmed)
	return nil
}

func (o *WithdrawOrchestrator) sharesDecreased(ctx context.Context, before *big.Int) bool {
	if o.postCheckDelay > 0 {
		timer := time.NewTimer(o.postCheckDelay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return false
		case <-timer.C:
		}
	}
	after, err := o.svc.ShareBalance(ctx, o.owner)
	if err != nil || before == nil {
		return false
	}
	return after.Cmp(before) < 0
}

func (o *WithdrawOrchestrator) refresh(ctx context.Context) (model.ReconciledPosition, error) {
	position, err := o.svc.Position(ctx, o.owner)
	if err != nil {
		return model.ReconciledPosition{}, err
	}
	return o.reconciler.Reconcile(position), nil
}

func (o *WithdrawOrchestrator) setState(state WithdrawState) {
	o.mu.Lock()
	o.state = state
	o.mu.Unlock()
}

func (o *WithdrawOrchestrator) finishAttempt(attempt *model.TransactionAttempt, outcome model.AttemptOutcome) {
	o.mu.Lock()
	attempt.Outcome = outcome
	o.mu.Unlock()
	o.record(attempt)
}

func (o *WithdrawOrchestrator) fail(attempt *model.TransactionAttempt, cls Classification, err error) error {
	o.mu.Lock()
	o.state = WithdrawError
	o.lastErr = &cls
	if attempt != nil {
		switch cls.Cause {
		case CauseUserRejected:
			attempt.Outcome = model.OutcomeRejected
		case CauseOnChainRevert:
			attempt.Outcome = model.OutcomeReverted
		default:
			attempt.Outcome = model.OutcomeClassifiedError
		}
	}
	o.mu.Unlock()
	if attempt != nil {
		o.record(attempt)
	}

	o.logger.Warn("withdraw flow failed",
		zap.Uint64("chain_id", o.svc.Network().ChainID),
		zap.String("cause", string(cls.Cause)),
		zap.Error(err),
	)
	return &FlowError{Classification: cls, Err: err}
}

func (o *WithdrawOrchestrator) record(attempt *model.TransactionAttempt) {
	if o.history == nil || attempt.SubmittedHash == "" {
		return
	}
	record := model.HistoryRecord{
		TxHash:    attempt.SubmittedHash,
		ChainID:   attempt.ChainID,
		Kind:      string(attempt.Kind),
		Amount:    attempt.Amount.String(),
		Status:    string(attempt.Outcome),
		Timestamp: time.Now().UTC(),
	}
	if err := o.history.Append(record); err != nil {
		o.logger.Warn("history append failed", zap.Error(err))
	}
}
