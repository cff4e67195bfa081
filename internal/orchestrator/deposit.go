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
	"vaultflow/internal/oracle"
)

// DepositState is a state of the deposit flow.
type DepositState string

const (
	DepositInput      DepositState = "input"
	DepositApproving  DepositState = "approving"
	DepositDepositing DepositState = "depositing"
	DepositConfirming DepositState = "confirming"
	DepositError      DepositState = "error"
)

// DepositOrchestrator drives the multi-step deposit protocol: approval
// when the allowance is insufficient, an oracle balance snapshot, then
// the plain or signature-augmented deposit write. Transitions are
// event-driven and run to completion; a second confirm while a write is
// in flight performs no submission.
type DepositOrchestrator struct {
	svc        VaultService
	oracle     oracle.Client
	gate       AllowanceGate
	reconciler Reconciler
	history    HistoryRecorder
	logger     *zap.Logger

	depositor      common.Address
	postCheckDelay time.Duration

	mu      sync.Mutex
	state   DepositState
	busy    bool
	attempt *model.TransactionAttempt
	lastErr *Classification
}

// DepositOption adjusts orchestrator construction.
type DepositOption func(*DepositOrchestrator)

// WithPostCheckDelay sets the wait before the state re-read that follows
// a wallet simulation false negative.
func WithPostCheckDelay(d time.Duration) DepositOption {
	return func(o *DepositOrchestrator) {
		o.postCheckDelay = d
	}
}

// NewDepositOrchestrator builds the deposit state machine for one
// depositor on one chain.
func NewDepositOrchestrator(svc VaultService, oracleClient oracle.Client, history HistoryRecorder, depositor common.Address, logger *zap.Logger, opts ...DepositOption) *DepositOrchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	o := &DepositOrchestrator{
		svc:            svc,
		oracle:         oracleClient,
		history:        history,
		logger:         logger,
		depositor:      depositor,
		postCheckDelay: 5 * time.Second,
		state:          DepositInput,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// State returns the current flow state.
func (o *DepositOrchestrator) State() DepositState {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// LastError returns the classification of the most recent failure, or
// nil.
func (o *DepositOrchestrator) LastError() *Classification {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.lastErr
}

// Reset returns the flow to input, discarding the previously entered
// amount and any error.
func (o *DepositOrchestrator) Reset() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.state = DepositInput
	o.attempt = nil
	o.lastErr = nil
}

// Dismiss discards the attempt and forces a balance refresh, covering
// the case where the failure was itself a false negative.
func (o *DepositOrchestrator) Dismiss(ctx context.Context) (model.ReconciledPosition, error) {
	o.Reset()
	return o.refresh(ctx)
}

// ConfirmDeposit validates the amount and runs the deposit protocol to a
// terminal state. It returns the refreshed position on success. Invoking
// it again while a write is in flight returns ErrAttemptInFlight without
// submitting anything.
func (o *DepositOrchestrator) ConfirmDeposit(ctx context.Context, amountInput string) (model.ReconciledPosition, error) {
	amount, err := ParseAmount(amountInput)
	if err != nil {
		// Validation failures are resolved in input; the flow never leaves it.
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

	allowance, err := o.svc.Allowance(ctx, o.depositor)
	if err != nil {
		return model.ReconciledPosition{}, o.fail(nil, Classify(err), err)
	}

	if !o.gate.HasSufficientAllowance(allowance, assets) {
		if err := o.runApproval(ctx, assets); err != nil {
			return model.ReconciledPosition{}, err
		}
	}

	if err := o.runDeposit(ctx, assets); err != nil {
		return model.ReconciledPosition{}, err
	}

	o.setState(DepositConfirming)
	position, err := o.refresh(ctx)
	o.Reset()
	return position, err
}

// NoteConfirmation is invoked by external receipt watchers. A
// confirmation arriving for an abandoned or already-terminal attempt is
// ignored rather than reopening flow state.
func (o *DepositOrchestrator) NoteConfirmation(txHash string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.attempt == nil || o.attempt.SubmittedHash != txHash || o.attempt.Terminal() {
		return false
	}
	o.attempt.Outcome = model.OutcomeConfirmed
	return true
}

// runApproval submits the unlimited approval and waits for its on-chain
// confirmation. The dependent deposit is never submitted before that
// confirmation arrives.
func (o *DepositOrchestrator) runApproval(ctx context.Context, requested *big.Int) error {
	o.setState(DepositApproving)
	attempt := o.newAttempt(model.AttemptApprove, o.gate.ApprovalAmount())

	hash, err := o.svc.SubmitApproval(ctx, o.gate.ApprovalAmount())
	if err != nil {
		cls := Classify(err)
		if cls.Cause == CauseSimulationFalseNeg && o.allowanceRecovered(ctx, requested) {
			o.logger.Info("approval false negative recovered", zap.Uint64("chain_id", o.svc.Network().ChainID))
			o.finishAttempt(attempt, model.OutcomeConfirmed)
			return nil
		}
		return o.fail(attempt, cls, err)
	}

	o.markSubmitted(attempt, hash)
	if err := o.svc.Confirm(ctx, hash); err != nil {
		return o.fail(attempt, Classify(err), err)
	}
	o.finishAttempt(attempt, model.OutcomeConfirmed)
	return nil
}

// runDeposit obtains the oracle snapshot and submits the deposit write.
func (o *DepositOrchestrator) runDeposit(ctx context.Context, assets *big.Int) error {
	o.setState(DepositDepositing)

	snapshot, err := o.oracle.RequestSnapshot(ctx, oracle.SnapshotRequest{
		AmountSmallestUnit: assets,
		Depositor:          o.depositor.Hex(),
		ChainID:            o.svc.Network().ChainID,
	})
	if err != nil {
		// Abort before any write is submitted.
		oracleErr := &model.OracleUnavailableError{Err: err}
		return o.fail(nil, Classification{
			Cause:   CauseUnclassified,
			Message: "The balance attestation service is unreachable. No transaction was submitted.",
		}, oracleErr)
	}

	sharesBefore, err := o.svc.ShareBalance(ctx, o.depositor)
	if err != nil {
		return o.fail(nil, Classify(err), err)
	}

	kind := model.AttemptDeposit
	if snapshot.HasCrossChainBalance() {
		kind = model.AttemptDepositWithSnapshot
	}
	attempt := o.newAttempt(kind, assets)

	var hash string
	if snapshot.HasCrossChainBalance() {
		hash, err = o.svc.SubmitDepositWithSnapshot(ctx, assets, o.depositor, snapshot)
	} else {
		hash, err = o.svc.SubmitDeposit(ctx, assets, o.depositor)
	}
	if err != nil {
		cls := Classify(err)
		if cls.Cause == CauseSimulationFalseNeg && o.sharesIncreased(ctx, sharesBefore) {
			o.logger.Info("deposit false negative recovered", zap.Uint64("chain_id", o.svc.Network().ChainID))
			o.finishAttempt(attempt, model.OutcomeConfirmed)
			return nil
		}
		return o.fail(attempt, cls, err)
	}

	o.markSubmitted(attempt, hash)
	if err := o.svc.Confirm(ctx, hash); err != nil {
		return o.fail(attempt, Classify(err), err)
	}
	o.finishAttempt(attempt, model.OutcomeConfirmed)
	return nil
}

// allowanceRecovered re-reads the allowance after a short delay. A
// sufficient allowance means the approval actually landed despite the
// wallet's preflight error.
func (o *DepositOrchestrator) allowanceRecovered(ctx context.Context, requested *big.Int) bool {
	if !o.sleep(ctx) {
		return false
	}
	allowance, err := o.svc.Allowance(ctx, o.depositor)
	if err != nil {
		return false
	}
	return o.gate.HasSufficientAllowance(allowance, requested)
}

// sharesIncreased re-reads the share balance after a short delay.
func (o *DepositOrchestrator) sharesIncreased(ctx context.Context, before *big.Int) bool {
	if !o.sleep(ctx) {
		return false
	}
	after, err := o.svc.ShareBalance(ctx, o.depositor)
	if err != nil || before == nil {
		return false
	}
	return after.Cmp(before) > 0
}

func (o *DepositOrchestrator) sleep(ctx context.Context) bool {
	if o.postCheckDelay <= 0 {
		return true
	}
	timer := time.NewTimer(o.postCheckDelay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func (o *DepositOrchestrator) refresh(ctx context.Context) (model.ReconciledPosition, error) {
	position, err := o.svc.Position(ctx, o.depositor)
	if err != nil {
		return model.ReconciledPosition{}, err
	}
	return o.reconciler.Reconcile(position), nil
}

func (o *DepositOrchestrator) setState(state DepositState) {
	o.mu.Lock()
	o.state = state
	o.mu.Unlock()
}

func (o *DepositOrchestrator) newAttempt(kind model.AttemptKind, amount *big.Int) *model.TransactionAttempt {
	attempt := &model.TransactionAttempt{
		ID:      uuid.NewString(),
		Kind:    kind,
		ChainID: o.svc.Network().ChainID,
		Amount:  new(big.Int).Set(amount),
		Outcome: model.OutcomePending,
	}
	o.mu.Lock()
	o.attempt = attempt
	o.mu.Unlock()
	return attempt
}

func (o *DepositOrchestrator) markSubmitted(attempt *model.TransactionAttempt, hash string) {
	o.mu.Lock()
	attempt.SubmittedHash = hash
	attempt.Outcome = model.OutcomeSubmitted
	o.mu.Unlock()
}

func (o *DepositOrchestrator) finishAttempt(attempt *model.TransactionAttempt, outcome model.AttemptOutcome) {
	o.mu.Lock()
	attempt.Outcome = outcome
	o.mu.Unlock()
	o.record(attempt)
}

// fail moves the flow to error with the classification. Retry returns to
// input via Reset with the entered amount discarded.
func (o *DepositOrchestrator) fail(attempt *model.TransactionAttempt, cls Classification, err error) error {
	o.mu.Lock()
	o.state = DepositError
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

	o.logger.Warn("deposit flow failed",
		zap.Uint64("chain_id", o.svc.Network().ChainID),
		zap.String("cause", string(cls.Cause)),
		zap.Error(err),
	)
	return &FlowError{Classification: cls, Err: err}
}

func (o *DepositOrchestrator) record(attempt *model.TransactionAttempt) {
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
