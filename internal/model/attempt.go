package model

import "math/big"

// AttemptKind identifies the write a TransactionAttempt drives.
type AttemptKind string

const (
	AttemptApprove             AttemptKind = "approve"
	AttemptDeposit             AttemptKind = "deposit"
	AttemptDepositWithSnapshot AttemptKind = "deposit_with_snapshot"
	AttemptWithdraw            AttemptKind = "withdraw"
)

// AttemptOutcome is the lifecycle state of a TransactionAttempt.
type AttemptOutcome string

const (
	OutcomePending         AttemptOutcome = "pending"
	OutcomeSubmitted       AttemptOutcome = "submitted"
	OutcomeConfirmed       AttemptOutcome = "confirmed"
	OutcomeReverted        AttemptOutcome = "reverted"
	OutcomeRejected        AttemptOutcome = "rejected"
	OutcomeClassifiedError AttemptOutcome = "classified_error"
)

// TransactionAttempt tracks one wallet write from user confirmation to a
// terminal outcome. Owned exclusively by the orchestrator that created it.
type TransactionAttempt struct {
	ID            string
	Kind          AttemptKind
	ChainID       uint64
	Amount        *big.Int
	SubmittedHash string
	Outcome       AttemptOutcome
}

// Terminal reports whether the attempt can no longer change state.
func (a *TransactionAttempt) Terminal() bool {
	switch a.Outcome {
	case OutcomeConfirmed, OutcomeReverted, OutcomeRejected, OutcomeClassifiedError:
		return true
	default:
		return false
	}
}
